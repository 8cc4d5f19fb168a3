package app

import (
	"github.com/gin-gonic/gin"

	"github.com/edugradelab/gradelab-backend/internal/server"
)

func wireRouter(h Handlers, m Middleware) *gin.Engine {
	return server.NewRouter(server.RouterConfig{
		AuthHandler:     h.Auth,
		UploadHandler:   h.Upload,
		AnalysisHandler: h.Analysis,
		WebhookHandler:  h.Webhook,
		AdminHandler:    h.Admin,
		AuthMiddleware:  m.Auth,
	})
}
