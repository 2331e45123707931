// server/internal/api/routes/routes.go
package routes

import (
	"ecoset-logistics-api-server/config"
	"ecoset-logistics-api-server/internal/api/handlers"
	"ecoset-logistics-api-server/internal/models"
	"ecoset-logistics-api-server/internal/s3"
	"ecoset-logistics-api-server/internal/socket"
	"ecoset-logistics-api-server/internal/store"
	"ecoset-logistics-api-server/internal/surplus"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"
)

// registerValidations đăng ký validation "surplusaction" cho các DTO,
// để mọi action đi qua binding đều nằm trong enum hợp lệ.
func registerValidations() {
	if v, ok := binding.Validator.Engine().(*validator.Validate); ok {
		v.RegisterValidation("surplusaction", func(fl validator.FieldLevel) bool {
			return models.SurplusAction(fl.Field().String()).IsValid()
		})
	}
}

// SetupRouter nhận vào các thành phần phụ thuộc và thiết lập các route.
func SetupRouter(
	cfg config.Config,
	st store.Store,
	engine *surplus.Engine,
	s3Uploader *s3.Uploader,
	wsHub *socket.Hub,
) *gin.Engine {
	registerValidations()

	router := gin.Default()
	router.Use(gin.Recovery())
	router.Use(cors.Default())

	// Khởi tạo các handlers
	projectHandler := &handlers.ProjectHandler{Store: st}
	itemHandler := &handlers.ItemHandler{Store: st, S3Uploader: s3Uploader}
	surplusHandler := &handlers.SurplusHandler{Engine: engine}
	transactionHandler := &handlers.TransactionHandler{Store: st, Engine: engine}
	webSocketHandler := &handlers.WebSocketHandler{Hub: wsHub}

	apiV1 := router.Group("/api/v1")
	{
		// Route cho WebSocket change feed
		apiV1.GET("/ws", webSocketHandler.ServeWs)

		// Project management (CRUD)
		projects := apiV1.Group("/projects")
		{
			projects.POST("/", projectHandler.CreateProject)
			projects.GET("/", projectHandler.GetAllProjects)
			projects.GET("/:id", projectHandler.GetProjectByID)
			projects.PUT("/:id", projectHandler.UpdateProject)
			projects.DELETE("/:id", projectHandler.DeleteProject)

			// Item management, scoped theo dự án
			items := projects.Group("/:id/items")
			{
				items.POST("/", itemHandler.CreateItem)
				items.GET("/", itemHandler.GetItems)
				items.GET("/:itemID", itemHandler.GetItemByID)
				items.PUT("/:itemID", itemHandler.UpdateItem)
				items.DELETE("/:itemID", itemHandler.DeleteItem)
				items.POST("/:itemID/photo", itemHandler.UploadItemPhoto)
			}

			// Surplus reconciliation operations
			surplusRoutes := projects.Group("/:id/surplus")
			{
				surplusRoutes.POST("/route", surplusHandler.RouteItem)
				surplusRoutes.POST("/split", surplusHandler.SplitItem)
				surplusRoutes.POST("/buyback", surplusHandler.Buyback)
				surplusRoutes.POST("/bulk-route", surplusHandler.BulkRoute)
				surplusRoutes.POST("/bulk-buyback", surplusHandler.BulkBuyback)
			}
		}

		// Transaction ledger
		transactions := apiV1.Group("/transactions")
		{
			transactions.GET("/", transactionHandler.GetAllTransactions)
			transactions.GET("/:id", transactionHandler.GetTransactionByID)
			transactions.POST("/:id/validate", transactionHandler.ValidateTransaction)
			transactions.POST("/:id/reject", transactionHandler.RejectTransaction)
		}
	}

	return router
}
