package server

import (
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"

	"github.com/edugradelab/gradelab-backend/internal/handlers"
	"github.com/edugradelab/gradelab-backend/internal/middleware"
	"github.com/edugradelab/gradelab-backend/internal/types"
)

type RouterConfig struct {
	AuthHandler     *handlers.AuthHandler
	UploadHandler   *handlers.UploadHandler
	AnalysisHandler *handlers.AnalysisHandler
	WebhookHandler  *handlers.WebhookHandler
	AdminHandler    *handlers.AdminHandler
	AuthMiddleware  *middleware.AuthMiddleware
}

func NewRouter(cfg RouterConfig) *gin.Engine {
	router := gin.Default()
	router.Use(otelgin.Middleware("gradelab-backend"))

	router.Use(cors.New(cors.Config{
		AllowOrigins: []string{
			"http://localhost:80",
			"http://localhost:3000",
		},
		AllowMethods:     []string{"GET", "POST", "PUT", "DELETE", "PATCH", "OPTIONS"},
		AllowHeaders:     []string{"Authorization", "Content-Type", "X-Requested-With"},
		AllowCredentials: true,
	}))

	// Public
	router.GET("/healthcheck", handlers.HealthCheck)
	api := router.Group("/api")
	{
		api.POST("/auth/register", cfg.AuthHandler.Register)
		api.POST("/auth/login", cfg.AuthHandler.Login)
		// External services call back here; see WebhookHandler for the
		// auth caveat.
		api.POST("/webhook/scanner", cfg.WebhookHandler.Scanner)
		api.POST("/webhook/ai-analysis", cfg.WebhookHandler.AIAnalysis)
	}

	// Protected
	protected := api.Group("/")
	protected.Use(cfg.AuthMiddleware.RequireAuth())
	{
		protected.GET("/auth/me", cfg.AuthHandler.Me)

		protected.POST("/uploads", cfg.AuthMiddleware.RequireRole(types.RoleTeacher, types.RoleAdmin), cfg.UploadHandler.Create)
		protected.GET("/uploads", cfg.UploadHandler.List)
		protected.GET("/uploads/:id", cfg.UploadHandler.Get)
		protected.GET("/uploads/:id/progress", cfg.AnalysisHandler.GetProgress)
		protected.GET("/analysis", cfg.AnalysisHandler.List)
	}

	// Admin
	admin := api.Group("/admin")
	admin.Use(cfg.AuthMiddleware.RequireAuth(), cfg.AuthMiddleware.RequireRole(types.RoleAdmin))
	{
		admin.GET("/users", cfg.AdminHandler.ListUsers)
		admin.PATCH("/users/:id", cfg.AdminHandler.UpdateUser)
		admin.DELETE("/users/:id", cfg.AdminHandler.DeleteUser)
		admin.GET("/logs", cfg.AdminHandler.ListLogs)
	}

	return router
}
