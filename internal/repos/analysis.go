package repos

import (
	"context"
	"errors"

	"gorm.io/gorm"

	"github.com/edugradelab/gradelab-backend/internal/logger"
	"github.com/edugradelab/gradelab-backend/internal/types"
)

type AnalysisRepo interface {
	GetByUploadID(ctx context.Context, tx *gorm.DB, uploadID uint) (*types.Analysis, error)
	// Upsert writes the row for a.UploadID, keyed by the upload_id
	// unique index; idempotent under webhook redelivery.
	Upsert(ctx context.Context, tx *gorm.DB, a *types.Analysis) error
	ListByUser(ctx context.Context, tx *gorm.DB, userID uint, page, limit int) ([]*types.Analysis, int64, error)
}

type analysisRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewAnalysisRepo(db *gorm.DB, baseLog *logger.Logger) AnalysisRepo {
	return &analysisRepo{db: db, log: baseLog.With("repo", "AnalysisRepo")}
}

func (r *analysisRepo) conn(tx *gorm.DB) *gorm.DB {
	if tx != nil {
		return tx
	}
	return r.db
}

func (r *analysisRepo) GetByUploadID(ctx context.Context, tx *gorm.DB, uploadID uint) (*types.Analysis, error) {
	var a types.Analysis
	err := r.conn(tx).WithContext(ctx).
		Where("upload_id = ?", uploadID).
		First(&a).Error
	if err != nil {
		return nil, err
	}
	return &a, nil
}

func (r *analysisRepo) Upsert(ctx context.Context, tx *gorm.DB, a *types.Analysis) error {
	conn := r.conn(tx).WithContext(ctx)

	var existing types.Analysis
	err := conn.Where("upload_id = ?", a.UploadID).First(&existing).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return conn.Create(a).Error
	}
	if err != nil {
		return err
	}

	a.ID = existing.ID
	a.CreatedAt = existing.CreatedAt
	return conn.Save(a).Error
}

func (r *analysisRepo) ListByUser(ctx context.Context, tx *gorm.DB, userID uint, page, limit int) ([]*types.Analysis, int64, error) {
	q := r.conn(tx).WithContext(ctx).Model(&types.Analysis{}).Where("user_id = ?", userID)

	var total int64
	if err := q.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var results []*types.Analysis
	if err := q.Order("created_at DESC").
		Limit(limit).
		Offset((page - 1) * limit).
		Find(&results).Error; err != nil {
		return nil, 0, err
	}
	return results, total, nil
}
