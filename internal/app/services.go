package app

import (
	"gorm.io/gorm"

	"github.com/edugradelab/gradelab-backend/internal/logger"
	"github.com/edugradelab/gradelab-backend/internal/services"
)

type Services struct {
	Auth       services.AuthService
	Storage    services.StorageService
	Dispatcher services.PipelineDispatcher
	Audit      services.AuditService
	Upload     services.UploadService
	Reconciler services.ReconcilerService
	Analysis   services.AnalysisService
	User       services.UserService
}

func wireServices(db *gorm.DB, log *logger.Logger, cfg Config, r Repos) (Services, error) {
	log.Info("Wiring services...")
	storage, err := services.NewBucketService(log)
	if err != nil {
		return Services{}, err
	}
	dispatcher := services.NewHTTPDispatcher(log, cfg.ScannerURL, cfg.AIAnalysisURL, cfg.DispatchTimeout)
	audit := services.NewAuditService(log, r.SystemLog)
	return Services{
		Auth:       services.NewAuthService(db, log, r.User, cfg.JWTSecretKey, cfg.TokenTTL),
		Storage:    storage,
		Dispatcher: dispatcher,
		Audit:      audit,
		Upload:     services.NewUploadService(db, log, r.Upload, r.ScannerOutput, storage, dispatcher, audit),
		Reconciler: services.NewReconcilerService(db, log, r.Upload, r.ScannerOutput, r.Analysis, dispatcher, audit),
		Analysis:   services.NewAnalysisService(log, r.Upload, r.ScannerOutput, r.Analysis),
		User:       services.NewUserService(db, log, r.User, audit),
	}, nil
}
