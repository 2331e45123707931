// server/internal/api/handlers/item_handler.go
package handlers

import (
	"errors"
	"fmt"
	"net/http"
	"path/filepath"
	"strconv"
	"time"

	"ecoset-logistics-api-server/internal/models"
	"ecoset-logistics-api-server/internal/s3"
	"ecoset-logistics-api-server/internal/store"
	"ecoset-logistics-api-server/internal/surplus"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

type ItemHandler struct {
	Store      store.Store
	S3Uploader *s3.Uploader
}

type CreateItemRequest struct {
	Name            string   `json:"name" binding:"required"`
	Department      string   `json:"department" binding:"required"`
	QuantityInitial int      `json:"quantityInitial" binding:"required,min=1"`
	Unit            string   `json:"unit" binding:"required"`
	Status          string   `json:"status" binding:"omitempty,oneof=NEW USED EMPTY"`
	SurplusAction   string   `json:"surplusAction" binding:"omitempty,surplusaction"`
	Price           *float64 `json:"price" binding:"omitempty,min=0"`
	OriginalPrice   *float64 `json:"originalPrice" binding:"omitempty,min=0"`
	Purchased       bool     `json:"purchased"`
	IsBought        bool     `json:"isBought"`
}

type UpdateItemRequest struct {
	Version         int64    `json:"version" binding:"min=0"`
	Name            *string  `json:"name"`
	Department      *string  `json:"department"`
	QuantityCurrent *int     `json:"quantityCurrent" binding:"omitempty,min=0"`
	QuantityStarted *int     `json:"quantityStarted" binding:"omitempty,min=0"`
	Unit            *string  `json:"unit"`
	Status          *string  `json:"status" binding:"omitempty,oneof=NEW USED EMPTY"`
	Price           *float64 `json:"price" binding:"omitempty,min=0"`
	OriginalPrice   *float64 `json:"originalPrice" binding:"omitempty,min=0"`
	Purchased       *bool    `json:"purchased"`
	IsBought        *bool    `json:"isBought"`
}

// CreateItem tạo một consumable item mới trong scope của dự án.
func (h *ItemHandler) CreateItem(c *gin.Context) {
	projectID := c.Param("id")

	var req CreateItemRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	// Kiểm tra dự án tồn tại trước khi ghi item.
	if _, err := h.Store.GetProject(c.Request.Context(), projectID); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Project does not exist"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to check project existence"})
		return
	}

	status := models.ItemStatus(req.Status)
	if req.Status == "" {
		status = models.StatusNew
	}
	action := models.SurplusAction(req.SurplusAction)
	if req.SurplusAction == "" {
		action = models.ActionNone
	}

	newItem := models.ConsumableItem{
		ItemID:          surplus.NewItemID(),
		ProjectID:       projectID,
		Name:            req.Name,
		Department:      req.Department,
		QuantityInitial: req.QuantityInitial,
		QuantityCurrent: req.QuantityInitial,
		Unit:            req.Unit,
		Status:          status,
		SurplusAction:   action,
		Price:           req.Price,
		OriginalPrice:   req.OriginalPrice,
		Purchased:       req.Purchased,
		IsBought:        req.IsBought,
		CreatedAt:       time.Now(),
		UpdatedAt:       time.Now(),
	}
	newItem.Sanitize()

	if err := h.Store.CreateItem(c.Request.Context(), newItem); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to create item"})
		return
	}

	c.JSON(http.StatusCreated, newItem)
}

// GetItems lấy danh sách item của dự án. Hỗ trợ ?view= để lọc theo surplus
// bucket và ?grouped=true để trả về các hàng hiển thị gộp theo name.
func (h *ItemHandler) GetItems(c *gin.Context) {
	projectID := c.Param("id")

	items, err := h.Store.ListItems(c.Request.Context(), projectID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to query items"})
		return
	}

	if view := c.Query("view"); view != "" {
		items, err = surplus.FilterByView(items, surplus.View(view))
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
	}

	if grouped, _ := strconv.ParseBool(c.Query("grouped")); grouped {
		c.JSON(http.StatusOK, surplus.AggregateByName(items))
		return
	}

	c.JSON(http.StatusOK, items)
}

// GetItemByID lấy một item theo itemID.
func (h *ItemHandler) GetItemByID(c *gin.Context) {
	projectID := c.Param("id")
	itemID := c.Param("itemID")

	item, err := h.Store.GetItem(c.Request.Context(), projectID, itemID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "Item not found"})
		} else {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to retrieve item"})
		}
		return
	}

	c.JSON(http.StatusOK, item)
}

// UpdateItem cập nhật một phần các field của item. Client gửi kèm version
// đang giữ; nếu item đã bị ghi bởi người khác, trả về 409 để client reload.
func (h *ItemHandler) UpdateItem(c *gin.Context) {
	projectID := c.Param("id")
	itemID := c.Param("itemID")

	var req UpdateItemRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	patch := map[string]interface{}{}
	if req.Name != nil {
		patch["name"] = *req.Name
	}
	if req.Department != nil {
		patch["department"] = *req.Department
	}
	if req.QuantityCurrent != nil {
		patch["quantityCurrent"] = *req.QuantityCurrent
	}
	if req.QuantityStarted != nil {
		patch["quantityStarted"] = *req.QuantityStarted
	}
	if req.Unit != nil {
		patch["unit"] = *req.Unit
	}
	if req.Status != nil {
		patch["status"] = models.ItemStatus(*req.Status)
	}
	if req.Price != nil {
		patch["price"] = *req.Price
	}
	if req.OriginalPrice != nil {
		patch["originalPrice"] = *req.OriginalPrice
	}
	if req.Purchased != nil {
		patch["purchased"] = *req.Purchased
	}
	if req.IsBought != nil {
		patch["isBought"] = *req.IsBought
	}
	if len(patch) == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "No fields to update"})
		return
	}

	// quantityStarted không bao giờ được vượt quantityCurrent, kể cả khi
	// request chỉ gửi một trong hai field: so field còn thiếu với giá trị
	// đang lưu trước khi ghi.
	current, err := h.Store.GetItem(c.Request.Context(), projectID, itemID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "Item not found"})
		} else {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to retrieve item"})
		}
		return
	}
	effectiveCurrent := current.QuantityCurrent
	if req.QuantityCurrent != nil {
		effectiveCurrent = *req.QuantityCurrent
	}
	effectiveStarted := current.QuantityStarted
	if req.QuantityStarted != nil {
		effectiveStarted = *req.QuantityStarted
	}
	if effectiveStarted > effectiveCurrent {
		c.JSON(http.StatusBadRequest, gin.H{"error": "quantityStarted cannot exceed quantityCurrent"})
		return
	}

	if err := h.Store.UpdateItem(c.Request.Context(), projectID, itemID, req.Version, patch); err != nil {
		switch {
		case errors.Is(err, store.ErrNotFound):
			c.JSON(http.StatusNotFound, gin.H{"error": "Item not found"})
		case errors.Is(err, store.ErrVersionConflict):
			c.JSON(http.StatusConflict, gin.H{"error": "Item was modified concurrently, reload and retry"})
		default:
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to update item"})
		}
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "Item updated successfully"})
}

// DeleteItem xóa một item theo itemID.
func (h *ItemHandler) DeleteItem(c *gin.Context) {
	projectID := c.Param("id")
	itemID := c.Param("itemID")

	if err := h.Store.DeleteItem(c.Request.Context(), projectID, itemID); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "Item not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to delete item"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "Item deleted successfully"})
}

// UploadItemPhoto upload ảnh minh họa cho một marketplace listing và lưu URL
// vào item.
func (h *ItemHandler) UploadItemPhoto(c *gin.Context) {
	projectID := c.Param("id")
	itemID := c.Param("itemID")

	if h.S3Uploader == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "Photo storage is not configured"})
		return
	}

	item, err := h.Store.GetItem(c.Request.Context(), projectID, itemID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "Item not found"})
		} else {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to retrieve item"})
		}
		return
	}

	fileHeader, err := c.FormFile("photo")
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Photo file is required"})
		return
	}

	file, err := fileHeader.Open()
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to read uploaded file"})
		return
	}
	defer file.Close()

	objectKey := fmt.Sprintf("items/%s/%s/%s%s", projectID, itemID, uuid.New().String(), filepath.Ext(fileHeader.Filename))
	photoURL, err := h.S3Uploader.UploadItemPhoto(c.Request.Context(), file, objectKey, fileHeader.Header.Get("Content-Type"))
	if err != nil {
		logrus.WithError(err).WithField("itemID", itemID).Error("Failed to upload item photo")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to upload photo"})
		return
	}

	if err := h.Store.UpdateItem(c.Request.Context(), projectID, itemID, item.Version, map[string]interface{}{"photoURL": photoURL}); err != nil {
		if errors.Is(err, store.ErrVersionConflict) {
			c.JSON(http.StatusConflict, gin.H{"error": "Item was modified concurrently, reload and retry"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Photo uploaded but failed to update item"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"status": "success", "photoURL": photoURL})
}
