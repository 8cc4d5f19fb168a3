package repos

import (
	"context"

	"gorm.io/gorm"

	"github.com/edugradelab/gradelab-backend/internal/logger"
	"github.com/edugradelab/gradelab-backend/internal/types"
)

type SystemLogRepo interface {
	Create(ctx context.Context, tx *gorm.DB, entry *types.SystemLog) error
	ListByAction(ctx context.Context, tx *gorm.DB, action string, limit int) ([]*types.SystemLog, error)
}

type systemLogRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewSystemLogRepo(db *gorm.DB, baseLog *logger.Logger) SystemLogRepo {
	return &systemLogRepo{db: db, log: baseLog.With("repo", "SystemLogRepo")}
}

func (r *systemLogRepo) conn(tx *gorm.DB) *gorm.DB {
	if tx != nil {
		return tx
	}
	return r.db
}

func (r *systemLogRepo) Create(ctx context.Context, tx *gorm.DB, entry *types.SystemLog) error {
	return r.conn(tx).WithContext(ctx).Create(entry).Error
}

func (r *systemLogRepo) ListByAction(ctx context.Context, tx *gorm.DB, action string, limit int) ([]*types.SystemLog, error) {
	var entries []*types.SystemLog
	err := r.conn(tx).WithContext(ctx).
		Where("action = ?", action).
		Order("created_at DESC").
		Limit(limit).
		Find(&entries).Error
	if err != nil {
		return nil, err
	}
	return entries, nil
}
