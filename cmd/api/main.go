// server/cmd/api/main.go
package main

import (
	"context"
	"encoding/json"
	"time"

	"ecoset-logistics-api-server/config"
	"ecoset-logistics-api-server/internal/api/routes"
	"ecoset-logistics-api-server/internal/database"
	"ecoset-logistics-api-server/internal/s3"
	"ecoset-logistics-api-server/internal/socket"
	"ecoset-logistics-api-server/internal/store"
	"ecoset-logistics-api-server/internal/surplus"

	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

func main() {
	// 1. Load .env (nếu có) và configuration
	if err := godotenv.Load(); err != nil {
		logrus.Debug("No .env file found, relying on environment")
	}
	cfg, err := config.LoadConfig("./config")
	if err != nil {
		logrus.Fatalf("Could not load config: %v", err)
	}

	logrus.SetFormatter(&logrus.JSONFormatter{})

	// 2. Kết nối MongoDB
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	client, err := mongo.Connect(ctx, options.Client().ApplyURI(cfg.Mongo.URI))
	if err != nil {
		logrus.Fatalf("Failed to connect to MongoDB: %v", err)
	}
	defer client.Disconnect(context.Background())

	if err := client.Ping(ctx, nil); err != nil {
		logrus.Fatalf("Failed to ping MongoDB: %v", err)
	}
	db := client.Database(cfg.Mongo.DBName)

	// 3. Seed organization của platform buyer
	if err := database.SeedPlatformBuyer(db, cfg); err != nil {
		logrus.Fatalf("Failed to seed platform buyer: %v", err)
	}

	// 4. Khởi tạo store, hub và nối change feed vào hub
	st := store.NewMongoStore(db)
	wsHub := socket.NewHub()
	st.SetNotifier(func(ev store.ChangeEvent) {
		message, err := json.Marshal(ev)
		if err != nil {
			logrus.WithError(err).Warn("Failed to marshal change event")
			return
		}
		wsHub.Broadcast(ev.ProjectID, message)
	})

	// 5. S3 uploader cho ảnh item (optional: bỏ qua nếu chưa cấu hình bucket)
	var s3Uploader *s3.Uploader
	if cfg.S3.Bucket != "" {
		s3Uploader, err = s3.NewUploader(cfg.S3)
		if err != nil {
			logrus.Fatalf("Failed to initialize S3 uploader: %v", err)
		}
	} else {
		logrus.Warn("S3 bucket not configured, item photo upload disabled")
	}

	// 6. Surplus reconciliation engine
	engine := surplus.NewEngine(st, cfg.Platform)

	// 7. Truyền tất cả các thành phần cần thiết vào router và start server
	router := routes.SetupRouter(cfg, st, engine, s3Uploader, wsHub)

	logrus.Infof("Starting API server on port %s", cfg.Server.Port)
	if err := router.Run(":" + cfg.Server.Port); err != nil {
		logrus.Fatalf("Failed to run server: %v", err)
	}
}
