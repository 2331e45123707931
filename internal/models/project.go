// server/internal/models/project.go
package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Project là metadata của một dự án phim. Items được lưu trong collection
// riêng scoped theo projectID, không bao giờ embed vào document này.
type Project struct {
	ID         primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	ProjectID  string             `bson:"projectID" json:"projectID"` // e.g., "PROJ-A1B2C3D4"
	Name       string             `bson:"name" json:"name"`
	Production string             `bson:"production" json:"production"` // Tên công ty sản xuất
	Status     string             `bson:"status" json:"status"`         // e.g., "ACTIVE", "WRAPPED", "ARCHIVED"
	CreatedAt  time.Time          `bson:"createdAt" json:"createdAt"`
	UpdatedAt  time.Time          `bson:"updatedAt" json:"updatedAt"`
}
