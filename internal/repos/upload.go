package repos

import (
	"context"

	"gorm.io/gorm"

	"github.com/edugradelab/gradelab-backend/internal/logger"
	"github.com/edugradelab/gradelab-backend/internal/types"
)

type UploadFilter struct {
	// UserID of 0 means no owner restriction (admin listing).
	UserID uint
	Status string
	Page   int
	Limit  int
}

type UploadRepo interface {
	Create(ctx context.Context, tx *gorm.DB, upload *types.Upload) (*types.Upload, error)
	GetByID(ctx context.Context, tx *gorm.DB, id uint) (*types.Upload, error)
	UpdateStatusFrom(ctx context.Context, tx *gorm.DB, id uint, from, to string) (bool, error)
	List(ctx context.Context, tx *gorm.DB, filter UploadFilter) ([]*types.Upload, int64, error)
}

type uploadRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewUploadRepo(db *gorm.DB, baseLog *logger.Logger) UploadRepo {
	return &uploadRepo{db: db, log: baseLog.With("repo", "UploadRepo")}
}

func (r *uploadRepo) conn(tx *gorm.DB) *gorm.DB {
	if tx != nil {
		return tx
	}
	return r.db
}

func (r *uploadRepo) Create(ctx context.Context, tx *gorm.DB, upload *types.Upload) (*types.Upload, error) {
	if err := r.conn(tx).WithContext(ctx).Create(upload).Error; err != nil {
		return nil, err
	}
	return upload, nil
}

func (r *uploadRepo) GetByID(ctx context.Context, tx *gorm.DB, id uint) (*types.Upload, error) {
	var upload types.Upload
	err := r.conn(tx).WithContext(ctx).First(&upload, id).Error
	if err != nil {
		return nil, err
	}
	return &upload, nil
}

// UpdateStatusFrom advances the status only while the row still holds
// from. Zero rows affected means a concurrent writer moved it first.
func (r *uploadRepo) UpdateStatusFrom(ctx context.Context, tx *gorm.DB, id uint, from, to string) (bool, error) {
	res := r.conn(tx).WithContext(ctx).
		Model(&types.Upload{}).
		Where("id = ? AND status = ?", id, from).
		Update("status", to)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

func (r *uploadRepo) List(ctx context.Context, tx *gorm.DB, filter UploadFilter) ([]*types.Upload, int64, error) {
	q := r.conn(tx).WithContext(ctx).Model(&types.Upload{})
	if filter.UserID != 0 {
		q = q.Where("user_id = ?", filter.UserID)
	}
	if filter.Status != "" {
		q = q.Where("status = ?", filter.Status)
	}

	var total int64
	if err := q.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var uploads []*types.Upload
	if err := q.Order("created_at DESC").
		Limit(filter.Limit).
		Offset((filter.Page - 1) * filter.Limit).
		Find(&uploads).Error; err != nil {
		return nil, 0, err
	}
	return uploads, total, nil
}
