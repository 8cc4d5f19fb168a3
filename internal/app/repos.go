package app

import (
	"gorm.io/gorm"

	"github.com/edugradelab/gradelab-backend/internal/logger"
	"github.com/edugradelab/gradelab-backend/internal/repos"
)

type Repos struct {
	User          repos.UserRepo
	Upload        repos.UploadRepo
	ScannerOutput repos.ScannerOutputRepo
	Analysis      repos.AnalysisRepo
	SystemLog     repos.SystemLogRepo
}

func wireRepos(db *gorm.DB, log *logger.Logger) Repos {
	log.Info("Wiring repos...")
	return Repos{
		User:          repos.NewUserRepo(db, log),
		Upload:        repos.NewUploadRepo(db, log),
		ScannerOutput: repos.NewScannerOutputRepo(db, log),
		Analysis:      repos.NewAnalysisRepo(db, log),
		SystemLog:     repos.NewSystemLogRepo(db, log),
	}
}
