// server/internal/models/consumable_item.go
package models

import (
	"math"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// ConsumableItem là một đơn vị/lô vật tư tiêu hao của một đoàn phim.
// Giá dùng con trỏ để phân biệt "chưa có giá" với giá 0.
type ConsumableItem struct {
	ID              primitive.ObjectID `bson:"_id,omitempty" json:"-"`
	ItemID          string             `bson:"itemID" json:"itemID"` // User-friendly unique ID, e.g., "ITEM-A1B2C3D4"
	ProjectID       string             `bson:"projectID" json:"projectID"`
	Name            string             `bson:"name" json:"name"`             // Grouping key, không phải identity duy nhất
	Department      Department         `bson:"department" json:"department"`
	QuantityInitial int                `bson:"quantityInitial" json:"quantityInitial"`
	QuantityCurrent int                `bson:"quantityCurrent" json:"quantityCurrent"`
	QuantityStarted int                `bson:"quantityStarted" json:"quantityStarted"` // Luôn <= QuantityCurrent
	Unit            string             `bson:"unit" json:"unit"`
	Status          ItemStatus         `bson:"status" json:"status"`
	SurplusAction   SurplusAction      `bson:"surplusAction" json:"surplusAction"`
	Price           *float64           `bson:"price,omitempty" json:"price,omitempty"`
	OriginalPrice   *float64           `bson:"originalPrice,omitempty" json:"originalPrice,omitempty"`
	Purchased       bool               `bson:"purchased" json:"purchased"`
	IsBought        bool               `bson:"isBought" json:"isBought"`
	PhotoURL        string             `bson:"photoURL,omitempty" json:"photoURL,omitempty"`
	Version         int64              `bson:"version" json:"version"` // Concurrency stamp, tăng mỗi lần ghi
	CreatedAt       time.Time          `bson:"createdAt" json:"createdAt"`
	UpdatedAt       time.Time          `bson:"updatedAt" json:"updatedAt"`
}

// ReferencePrice trả về giá tham chiếu cho mọi tính toán chiết khấu:
// originalPrice nếu có, fallback sang price, fallback sang 0. Chỉ fallback
// khi field vắng mặt: originalPrice 0 là một mức giá chủ đích (đồ cho không),
// không phải thiếu dữ liệu. NaN/âm coi như 0.
func (it ConsumableItem) ReferencePrice() float64 {
	if it.OriginalPrice != nil {
		return coercePrice(it.OriginalPrice)
	}
	return coercePrice(it.Price)
}

// UnitPrice trả về giá bán hiện tại của item (fallback 0).
func (it ConsumableItem) UnitPrice() float64 {
	return coercePrice(it.Price)
}

func coercePrice(p *float64) float64 {
	if p == nil {
		return 0
	}
	v := *p
	if math.IsNaN(v) || math.IsInf(v, 0) || v < 0 {
		return 0
	}
	return v
}

// Sanitize ép dữ liệu inbound về trạng thái tôn trọng invariant trước khi vào engine:
// số lượng âm về 0, quantityStarted bị kẹp về QuantityCurrent, giá NaN/âm bị bỏ,
// surplusAction/status không hợp lệ quay về giá trị mặc định.
func (it *ConsumableItem) Sanitize() {
	if it.QuantityInitial < 0 {
		it.QuantityInitial = 0
	}
	if it.QuantityCurrent < 0 {
		it.QuantityCurrent = 0
	}
	if it.QuantityStarted < 0 {
		it.QuantityStarted = 0
	}
	if it.QuantityStarted > it.QuantityCurrent {
		it.QuantityStarted = it.QuantityCurrent
	}
	if it.Price != nil {
		v := coercePrice(it.Price)
		it.Price = &v
	}
	if it.OriginalPrice != nil {
		v := coercePrice(it.OriginalPrice)
		it.OriginalPrice = &v
	}
	if !it.SurplusAction.IsValid() {
		it.SurplusAction = ActionNone
	}
	if !it.Status.IsValid() {
		it.Status = StatusNew
	}
}

// Float64Ptr là helper nhỏ cho các trường giá optional.
func Float64Ptr(v float64) *float64 { return &v }
