// server/internal/api/handlers/surplus_handler.go
package handlers

import (
	"net/http"

	"ecoset-logistics-api-server/internal/models"
	"ecoset-logistics-api-server/internal/surplus"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
)

type SurplusHandler struct {
	Engine *surplus.Engine
}

type RouteItemRequest struct {
	ItemID string `json:"itemID" binding:"required"`
	Action string `json:"action" binding:"required,surplusaction"`
}

type SplitItemRequest struct {
	ItemID   string `json:"itemID" binding:"required"`
	Quantity int    `json:"quantity" binding:"required,min=1"`
	Action   string `json:"action" binding:"required,surplusaction"`
}

type BuybackRequest struct {
	ItemID   string `json:"itemID" binding:"required"`
	Quantity int    `json:"quantity" binding:"required,min=1"`
}

type BulkRouteRequest struct {
	ItemIDs []string `json:"itemIDs" binding:"required,min=1"`
	Action  string   `json:"action" binding:"required,surplusaction"`
}

type BulkBuybackRequest struct {
	ItemIDs []string `json:"itemIDs" binding:"required,min=1"`
}

// respond gửi report của engine hoặc dịch lỗi engine sang HTTP status.
func respond(c *gin.Context, report surplus.MutationReport, err error) {
	if err != nil {
		logrus.WithError(err).Warn("Surplus operation failed")
		c.JSON(surplus.HTTPStatus(err), gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "success", "report": report})
}

// RouteItem chuyển một item vào một surplus action bucket.
func (h *SurplusHandler) RouteItem(c *gin.Context) {
	projectID := c.Param("id")

	var req RouteItemRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	report, err := h.Engine.RouteItem(c.Request.Context(), projectID, req.ItemID, models.SurplusAction(req.Action))
	respond(c, report, err)
}

// SplitItem tách một phần số lượng ra một item mới mang action đích.
func (h *SurplusHandler) SplitItem(c *gin.Context) {
	projectID := c.Param("id")

	var req SplitItemRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	report, err := h.Engine.SplitAndRoute(c.Request.Context(), projectID, req.ItemID, req.Quantity, models.SurplusAction(req.Action))
	respond(c, report, err)
}

// Buyback bán lại một phần hoặc toàn bộ item cho platform.
func (h *SurplusHandler) Buyback(c *gin.Context) {
	projectID := c.Param("id")

	var req BuybackRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	report, err := h.Engine.Buyback(c.Request.Context(), projectID, req.ItemID, req.Quantity)
	respond(c, report, err)
}

// BulkRoute chuyển cả danh sách item vào một bucket trong một batch nguyên tử.
func (h *SurplusHandler) BulkRoute(c *gin.Context) {
	projectID := c.Param("id")

	var req BulkRouteRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	report, err := h.Engine.BulkRoute(c.Request.Context(), projectID, req.ItemIDs, models.SurplusAction(req.Action))
	respond(c, report, err)
}

// BulkBuyback bán lại cả danh sách item cho platform trong một giao dịch gộp.
func (h *SurplusHandler) BulkBuyback(c *gin.Context) {
	projectID := c.Param("id")

	var req BulkBuybackRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	report, err := h.Engine.BulkBuyback(c.Request.Context(), projectID, req.ItemIDs)
	respond(c, report, err)
}
