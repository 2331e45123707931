// server/internal/models/common.go
package models

// SurplusAction là bucket tái phân phối hiện tại của một item.
type SurplusAction string

const (
	ActionNone        SurplusAction = "NONE"
	ActionReleased    SurplusAction = "RELEASED_TO_PROD"
	ActionMarketplace SurplusAction = "MARKETPLACE"
	ActionDonation    SurplusAction = "DONATION"
	ActionShortFilm   SurplusAction = "SHORT_FILM"
	ActionStorage     SurplusAction = "STORAGE"
	ActionBuyback     SurplusAction = "BUYBACK"
)

// SurplusActions liệt kê tất cả các giá trị hợp lệ, dùng cho validation.
var SurplusActions = []SurplusAction{
	ActionNone,
	ActionReleased,
	ActionMarketplace,
	ActionDonation,
	ActionShortFilm,
	ActionStorage,
	ActionBuyback,
}

// IsValid kiểm tra xem action có nằm trong danh sách được phép không.
func (a SurplusAction) IsValid() bool {
	for _, v := range SurplusActions {
		if a == v {
			return true
		}
	}
	return false
}

// Department là bộ phận sở hữu item trong đoàn phim. Danh sách mở: các đoàn
// có thể thêm bộ phận riêng, nên không validate cứng như SurplusAction.
type Department = string

const (
	DeptRegie   Department = "REGIE"
	DeptDeco    Department = "DECO"
	DeptHMC     Department = "HMC"
	DeptCantine Department = "CANTINE"
)

// ItemStatus là trạng thái vòng đời vật lý của item, độc lập với surplus routing.
type ItemStatus string

const (
	StatusNew   ItemStatus = "NEW"
	StatusUsed  ItemStatus = "USED"
	StatusEmpty ItemStatus = "EMPTY"
)

func (s ItemStatus) IsValid() bool {
	return s == StatusNew || s == StatusUsed || s == StatusEmpty
}

// TransactionStatus: PENDING -> VALIDATED | CANCELLED, terminal sau khi chuyển.
type TransactionStatus string

const (
	TxnPending   TransactionStatus = "PENDING"
	TxnValidated TransactionStatus = "VALIDATED"
	TxnCancelled TransactionStatus = "CANCELLED"
)

func (s TransactionStatus) IsTerminal() bool {
	return s == TxnValidated || s == TxnCancelled
}
