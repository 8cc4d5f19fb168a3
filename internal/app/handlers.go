package app

import (
	"github.com/edugradelab/gradelab-backend/internal/handlers"
	"github.com/edugradelab/gradelab-backend/internal/logger"
	"github.com/edugradelab/gradelab-backend/internal/ratelimit"
)

type Handlers struct {
	Auth     *handlers.AuthHandler
	Upload   *handlers.UploadHandler
	Analysis *handlers.AnalysisHandler
	Webhook  *handlers.WebhookHandler
	Admin    *handlers.AdminHandler
}

func wireHandlers(log *logger.Logger, cfg Config, s Services) Handlers {
	log.Info("Wiring handlers...")
	loginLimiter := ratelimit.New(cfg.LoginAttempts, cfg.LoginWindow)
	registerLimiter := ratelimit.New(cfg.RegisterAttempts, cfg.RegisterWindow)
	return Handlers{
		Auth:     handlers.NewAuthHandler(log, s.Auth, s.Audit, loginLimiter, registerLimiter),
		Upload:   handlers.NewUploadHandler(log, s.Upload),
		Analysis: handlers.NewAnalysisHandler(log, s.Analysis),
		Webhook:  handlers.NewWebhookHandler(log, s.Reconciler),
		Admin:    handlers.NewAdminHandler(log, s.User, s.Audit),
	}
}
