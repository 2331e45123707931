// server/internal/api/handlers/project_handler.go
package handlers

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"ecoset-logistics-api-server/internal/models"
	"ecoset-logistics-api-server/internal/store"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

type ProjectHandler struct {
	Store store.Store
}

type CreateProjectRequest struct {
	Name       string `json:"name" binding:"required"`
	Production string `json:"production" binding:"required"`
}

type UpdateProjectRequest struct {
	Name       string `json:"name"`
	Production string `json:"production"`
	Status     string `json:"status"`
}

// CreateProject tạo một dự án phim mới.
func (h *ProjectHandler) CreateProject(c *gin.Context) {
	var req CreateProjectRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	newProject := models.Project{
		ProjectID:  fmt.Sprintf("PROJ-%s", strings.ToUpper(uuid.New().String()[:8])),
		Name:       req.Name,
		Production: req.Production,
		Status:     "ACTIVE",
		CreatedAt:  time.Now(),
		UpdatedAt:  time.Now(),
	}

	if err := h.Store.CreateProject(c.Request.Context(), newProject); err != nil {
		if errors.Is(err, store.ErrDuplicateID) {
			c.JSON(http.StatusConflict, gin.H{"error": "Project with this ID already exists"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to create project"})
		return
	}

	c.JSON(http.StatusCreated, newProject)
}

// GetAllProjects lấy danh sách tất cả các dự án.
func (h *ProjectHandler) GetAllProjects(c *gin.Context) {
	projects, err := h.Store.ListProjects(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to query projects"})
		return
	}
	c.JSON(http.StatusOK, projects)
}

// GetProjectByID lấy thông tin dự án theo projectID.
func (h *ProjectHandler) GetProjectByID(c *gin.Context) {
	projectID := c.Param("id")

	project, err := h.Store.GetProject(c.Request.Context(), projectID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "Project not found"})
		} else {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to retrieve project"})
		}
		return
	}

	c.JSON(http.StatusOK, project)
}

// UpdateProject cập nhật metadata dự án theo projectID.
func (h *ProjectHandler) UpdateProject(c *gin.Context) {
	projectID := c.Param("id")

	var req UpdateProjectRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	patch := map[string]interface{}{}
	if req.Name != "" {
		patch["name"] = req.Name
	}
	if req.Production != "" {
		patch["production"] = req.Production
	}
	if req.Status != "" {
		patch["status"] = req.Status
	}
	if len(patch) == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "No fields to update"})
		return
	}

	if err := h.Store.UpdateProject(c.Request.Context(), projectID, patch); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "Project not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to update project"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "Project updated successfully"})
}

// DeleteProject xóa một dự án theo projectID.
func (h *ProjectHandler) DeleteProject(c *gin.Context) {
	projectID := c.Param("id")

	if err := h.Store.DeleteProject(c.Request.Context(), projectID); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "Project not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to delete project"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "Project deleted successfully"})
}
