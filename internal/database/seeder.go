// server/internal/database/seeder.go
package database

import (
	"context"
	"time"

	"ecoset-logistics-api-server/config"

	"github.com/sirupsen/logrus"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
)

// Organization là document của một bên tham gia giao dịch (platform hoặc
// production company).
type Organization struct {
	OrgID     string    `bson:"orgID"`
	Name      string    `bson:"name"`
	Type      string    `bson:"type"` // "PLATFORM" hoặc "PRODUCTION"
	Status    string    `bson:"status"`
	CreatedAt time.Time `bson:"createdAt"`
}

// SeedPlatformBuyer đảm bảo organization của platform (buyer mặc định cho
// mọi giao dịch buyback) tồn tại trong database.
func SeedPlatformBuyer(db *mongo.Database, cfg config.Config) error {
	orgCollection := db.Collection("organizations")

	count, err := orgCollection.CountDocuments(context.Background(), bson.M{"orgID": cfg.Platform.BuyerID})
	if err != nil {
		return err
	}
	if count > 0 {
		logrus.Info("Platform buyer organization already exists. Seeding skipped.")
		return nil
	}

	logrus.Info("Platform buyer organization not found. Seeding...")
	platform := Organization{
		OrgID:     cfg.Platform.BuyerID,
		Name:      cfg.Platform.BuyerName,
		Type:      "PLATFORM",
		Status:    "active",
		CreatedAt: time.Now(),
	}

	if _, err := orgCollection.InsertOne(context.Background(), platform); err != nil {
		return err
	}

	logrus.Info("Platform buyer organization seeded successfully.")
	return nil
}
