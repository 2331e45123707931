// server/internal/models/transaction.go
package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// TransactionItem là snapshot của một dòng hàng tại thời điểm tạo giao dịch.
// Đây là bản copy, không phải live reference: item bị sửa sau đó không làm
// thay đổi giao dịch đã ghi.
type TransactionItem struct {
	ItemID   string  `bson:"itemID" json:"itemID"`
	Name     string  `bson:"name" json:"name"`
	Quantity int     `bson:"quantity" json:"quantity"`
	Price    float64 `bson:"price" json:"price"` // Đơn giá đã chốt
}

// Transaction là một đề nghị chuyển nhượng giữa một production (seller)
// và platform hoặc một production khác (buyer).
type Transaction struct {
	ID          primitive.ObjectID `bson:"_id,omitempty" json:"-"`
	TxnID       string             `bson:"txnID" json:"txnID"` // e.g., "TXN-A1B2C3D4"
	ProjectID   string             `bson:"projectID" json:"projectID"`
	SellerID    string             `bson:"sellerID" json:"sellerID"`
	SellerName  string             `bson:"sellerName" json:"sellerName"`
	BuyerID     string             `bson:"buyerID" json:"buyerID"`
	BuyerName   string             `bson:"buyerName" json:"buyerName"`
	Items       []TransactionItem  `bson:"items" json:"items"`
	TotalAmount float64            `bson:"totalAmount" json:"totalAmount"` // Luôn = Σ(price × quantity), derived
	Status      TransactionStatus  `bson:"status" json:"status"`
	Restored    bool               `bson:"restored" json:"restored"` // Stock đã được hoàn lại khi reject
	CreatedAt   time.Time          `bson:"createdAt" json:"createdAt"`
	InvoicedAt  *time.Time         `bson:"invoicedAt,omitempty" json:"invoicedAt,omitempty"`
}

// ComputeTotal tính tổng tiền từ các dòng hàng.
func ComputeTotal(items []TransactionItem) float64 {
	total := 0.0
	for _, line := range items {
		total += line.Price * float64(line.Quantity)
	}
	return total
}
