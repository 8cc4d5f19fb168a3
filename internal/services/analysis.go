package services

import (
	"context"
	"errors"

	"gorm.io/gorm"

	"github.com/edugradelab/gradelab-backend/internal/apierr"
	"github.com/edugradelab/gradelab-backend/internal/logger"
	"github.com/edugradelab/gradelab-backend/internal/repos"
	"github.com/edugradelab/gradelab-backend/internal/requestdata"
	"github.com/edugradelab/gradelab-backend/internal/types"
)

// UploadProgress is the polling view: the upload's pipeline position
// plus whichever stage rows exist so far.
type UploadProgress struct {
	Upload        *types.Upload        `json:"upload"`
	ScannerOutput *types.ScannerOutput `json:"scannerOutput,omitempty"`
	Analysis      *types.Analysis      `json:"analysis,omitempty"`
}

type AnalysisService interface {
	GetProgress(ctx context.Context, caller requestdata.RequestData, uploadID uint) (*UploadProgress, error)
	ListForUser(ctx context.Context, caller requestdata.RequestData, page, limit int) ([]*types.Analysis, int64, error)
}

type analysisService struct {
	log          *logger.Logger
	uploadRepo   repos.UploadRepo
	scannerRepo  repos.ScannerOutputRepo
	analysisRepo repos.AnalysisRepo
}

func NewAnalysisService(log *logger.Logger, uploadRepo repos.UploadRepo, scannerRepo repos.ScannerOutputRepo, analysisRepo repos.AnalysisRepo) AnalysisService {
	return &analysisService{
		log:          log.With("service", "AnalysisService"),
		uploadRepo:   uploadRepo,
		scannerRepo:  scannerRepo,
		analysisRepo: analysisRepo,
	}
}

func (s *analysisService) GetProgress(ctx context.Context, caller requestdata.RequestData, uploadID uint) (*UploadProgress, error) {
	upload, err := s.uploadRepo.GetByID(ctx, nil, uploadID)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, apierr.NotFound("upload %d not found", uploadID)
	}
	if err != nil {
		return nil, apierr.Persistence(err)
	}
	if upload.UserID != caller.UserID && caller.Role != types.RoleAdmin {
		return nil, apierr.Forbidden("not your upload")
	}

	progress := &UploadProgress{Upload: upload}
	if out, err := s.scannerRepo.GetByUploadID(ctx, nil, uploadID); err == nil {
		progress.ScannerOutput = out
	} else if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, apierr.Persistence(err)
	}
	if analysis, err := s.analysisRepo.GetByUploadID(ctx, nil, uploadID); err == nil {
		progress.Analysis = analysis
	} else if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, apierr.Persistence(err)
	}
	return progress, nil
}

func (s *analysisService) ListForUser(ctx context.Context, caller requestdata.RequestData, page, limit int) ([]*types.Analysis, int64, error) {
	analyses, total, err := s.analysisRepo.ListByUser(ctx, nil, caller.UserID, page, limit)
	if err != nil {
		return nil, 0, apierr.Persistence(err)
	}
	return analyses, total, nil
}
