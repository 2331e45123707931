// server/internal/store/store.go
package store

import (
	"context"
	"errors"

	"ecoset-logistics-api-server/internal/models"
)

// Lỗi chuẩn của tầng store. Engine dịch các lỗi này sang error taxonomy của nó.
var (
	ErrNotFound        = errors.New("document not found")
	ErrVersionConflict = errors.New("version conflict: document was modified concurrently")
	ErrDuplicateID     = errors.New("document with this ID already exists")
)

// ChangeEvent được phát sau mỗi lần ghi thành công, để hub đẩy xuống client.
type ChangeEvent struct {
	Event     string      `json:"event"` // e.g., "item_created", "transaction_validated"
	ProjectID string      `json:"projectID,omitempty"`
	Payload   interface{} `json:"payload,omitempty"`
}

// Notifier nhận change event. Đăng ký qua SetNotifier, gọi sau khi commit.
type Notifier func(ChangeEvent)

// TransactionFilter lọc danh sách giao dịch trong ledger.
type TransactionFilter struct {
	Status   models.TransactionStatus
	SellerID string
}

// Store là contract tối thiểu với document store:
// đọc một/nhiều document, tạo, partial update theo version, xóa,
// và batch ghi nhiều document trong một commit nguyên tử.
type Store interface {
	GetProject(ctx context.Context, projectID string) (models.Project, error)
	ListProjects(ctx context.Context) ([]models.Project, error)
	CreateProject(ctx context.Context, project models.Project) error
	UpdateProject(ctx context.Context, projectID string, patch map[string]interface{}) error
	DeleteProject(ctx context.Context, projectID string) error

	GetItem(ctx context.Context, projectID, itemID string) (models.ConsumableItem, error)
	ListItems(ctx context.Context, projectID string) ([]models.ConsumableItem, error)
	CreateItem(ctx context.Context, item models.ConsumableItem) error
	// UpdateItem áp dụng partial-field merge: các field không có trong patch
	// giữ nguyên. version phải khớp với bản ghi hiện tại, nếu không trả về
	// ErrVersionConflict.
	UpdateItem(ctx context.Context, projectID, itemID string, version int64, patch map[string]interface{}) error
	DeleteItem(ctx context.Context, projectID, itemID string) error

	GetTransaction(ctx context.Context, txnID string) (models.Transaction, error)
	ListTransactions(ctx context.Context, filter TransactionFilter) ([]models.Transaction, error)
	CreateTransaction(ctx context.Context, txn models.Transaction) error
	UpdateTransaction(ctx context.Context, txnID string, patch map[string]interface{}) error

	// NewBatch nhóm nhiều thao tác ghi vào một commit all-or-nothing.
	NewBatch() Batch

	SetNotifier(fn Notifier)
}

// Batch gom các thao tác ghi. Không thao tác nào được áp dụng trước Commit;
// Commit hoặc áp dụng tất cả hoặc không áp dụng gì.
type Batch interface {
	CreateItem(item models.ConsumableItem)
	UpdateItem(projectID, itemID string, version int64, patch map[string]interface{})
	// IncrementItemQuantity cộng delta vào quantityCurrent của item (compensating
	// credit khi reject transaction). Không cần version: $inc là nguyên tử.
	IncrementItemQuantity(projectID, itemID string, delta int)
	CreateTransaction(txn models.Transaction)
	UpdateTransaction(txnID string, patch map[string]interface{})
	Commit(ctx context.Context) error
}
