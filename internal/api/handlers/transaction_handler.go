// server/internal/api/handlers/transaction_handler.go
package handlers

import (
	"errors"
	"net/http"

	"ecoset-logistics-api-server/internal/models"
	"ecoset-logistics-api-server/internal/store"
	"ecoset-logistics-api-server/internal/surplus"

	"github.com/gin-gonic/gin"
)

type TransactionHandler struct {
	Store  store.Store
	Engine *surplus.Engine
}

// GetAllTransactions lấy danh sách giao dịch trong ledger, lọc được theo
// ?status= và ?sellerID=.
func (h *TransactionHandler) GetAllTransactions(c *gin.Context) {
	filter := store.TransactionFilter{
		Status:   models.TransactionStatus(c.Query("status")),
		SellerID: c.Query("sellerID"),
	}

	txns, err := h.Store.ListTransactions(c.Request.Context(), filter)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to query transactions"})
		return
	}

	c.JSON(http.StatusOK, txns)
}

// GetTransactionByID lấy chi tiết một giao dịch theo txnID.
func (h *TransactionHandler) GetTransactionByID(c *gin.Context) {
	txnID := c.Param("id")

	txn, err := h.Store.GetTransaction(c.Request.Context(), txnID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "Transaction not found"})
		} else {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to retrieve transaction"})
		}
		return
	}

	c.JSON(http.StatusOK, txn)
}

// ValidateTransaction xác nhận một giao dịch PENDING và đóng dấu invoicedAt.
func (h *TransactionHandler) ValidateTransaction(c *gin.Context) {
	txnID := c.Param("id")

	report, err := h.Engine.ValidateTransaction(c.Request.Context(), txnID)
	respond(c, report, err)
}

// RejectTransaction hủy một giao dịch PENDING và hoàn stock cho seller.
func (h *TransactionHandler) RejectTransaction(c *gin.Context) {
	txnID := c.Param("id")

	report, err := h.Engine.RejectTransaction(c.Request.Context(), txnID)
	respond(c, report, err)
}
