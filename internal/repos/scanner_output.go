package repos

import (
	"context"
	"errors"

	"gorm.io/gorm"

	"github.com/edugradelab/gradelab-backend/internal/logger"
	"github.com/edugradelab/gradelab-backend/internal/types"
)

type ScannerOutputRepo interface {
	Create(ctx context.Context, tx *gorm.DB, out *types.ScannerOutput) (*types.ScannerOutput, error)
	GetByUploadID(ctx context.Context, tx *gorm.DB, uploadID uint) (*types.ScannerOutput, error)
	// Upsert writes the row for out.UploadID: update when a row exists,
	// insert otherwise. Keyed by the upload_id unique index so webhook
	// redelivery never produces a second row.
	Upsert(ctx context.Context, tx *gorm.DB, out *types.ScannerOutput) error
	UpdateStatus(ctx context.Context, tx *gorm.DB, uploadID uint, status string) error
}

type scannerOutputRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewScannerOutputRepo(db *gorm.DB, baseLog *logger.Logger) ScannerOutputRepo {
	return &scannerOutputRepo{db: db, log: baseLog.With("repo", "ScannerOutputRepo")}
}

func (r *scannerOutputRepo) conn(tx *gorm.DB) *gorm.DB {
	if tx != nil {
		return tx
	}
	return r.db
}

func (r *scannerOutputRepo) Create(ctx context.Context, tx *gorm.DB, out *types.ScannerOutput) (*types.ScannerOutput, error) {
	if err := r.conn(tx).WithContext(ctx).Create(out).Error; err != nil {
		return nil, err
	}
	return out, nil
}

func (r *scannerOutputRepo) GetByUploadID(ctx context.Context, tx *gorm.DB, uploadID uint) (*types.ScannerOutput, error) {
	var out types.ScannerOutput
	err := r.conn(tx).WithContext(ctx).
		Where("upload_id = ?", uploadID).
		First(&out).Error
	if err != nil {
		return nil, err
	}
	return &out, nil
}

func (r *scannerOutputRepo) Upsert(ctx context.Context, tx *gorm.DB, out *types.ScannerOutput) error {
	conn := r.conn(tx).WithContext(ctx)

	var existing types.ScannerOutput
	err := conn.Where("upload_id = ?", out.UploadID).First(&existing).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return conn.Create(out).Error
	}
	if err != nil {
		return err
	}

	out.ID = existing.ID
	out.CreatedAt = existing.CreatedAt
	return conn.Save(out).Error
}

func (r *scannerOutputRepo) UpdateStatus(ctx context.Context, tx *gorm.DB, uploadID uint, status string) error {
	return r.conn(tx).WithContext(ctx).
		Model(&types.ScannerOutput{}).
		Where("upload_id = ?", uploadID).
		Update("status", status).Error
}
