package services

import (
	"context"
	"encoding/json"

	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/edugradelab/gradelab-backend/internal/apierr"
	"github.com/edugradelab/gradelab-backend/internal/logger"
	"github.com/edugradelab/gradelab-backend/internal/repos"
	"github.com/edugradelab/gradelab-backend/internal/types"
)

// Audit actions written to system_logs.
const (
	ActionLogin             = "login"
	ActionRegister          = "register"
	ActionFileUpload        = "file_upload"
	ActionScannerWebhook    = "scanner_webhook"
	ActionAIAnalysisWebhook = "ai_analysis_webhook"
	ActionAdminUserUpdate   = "admin_user_update"
	ActionAdminUserDelete   = "admin_user_delete"
)

var validActions = map[string]bool{
	ActionLogin:             true,
	ActionRegister:          true,
	ActionFileUpload:        true,
	ActionScannerWebhook:    true,
	ActionAIAnalysisWebhook: true,
	ActionAdminUserUpdate:   true,
	ActionAdminUserDelete:   true,
}

// AuditService appends rows to system_logs. Failures never propagate
// to the caller, a broken audit trail must not fail the operation it
// records.
type AuditService interface {
	Record(ctx context.Context, tx *gorm.DB, action string, userID *uint, detail map[string]interface{}, ip, userAgent string)
	// Recent returns the newest entries for one action, for the admin
	// audit view.
	Recent(ctx context.Context, action string, limit int) ([]*types.SystemLog, error)
}

type auditService struct {
	log           *logger.Logger
	systemLogRepo repos.SystemLogRepo
}

func NewAuditService(log *logger.Logger, systemLogRepo repos.SystemLogRepo) AuditService {
	return &auditService{
		log:           log.With("service", "AuditService"),
		systemLogRepo: systemLogRepo,
	}
}

func (as *auditService) Record(ctx context.Context, tx *gorm.DB, action string, userID *uint, detail map[string]interface{}, ip, userAgent string) {
	var detailJSON datatypes.JSON
	if detail != nil {
		raw, err := json.Marshal(detail)
		if err != nil {
			as.log.Warn("failed to encode audit detail", "action", action, "error", err)
		} else {
			detailJSON = datatypes.JSON(raw)
		}
	}
	entry := &types.SystemLog{
		UserID:    userID,
		Action:    action,
		Detail:    detailJSON,
		IPAddress: ip,
		UserAgent: userAgent,
	}
	if err := as.systemLogRepo.Create(ctx, tx, entry); err != nil {
		as.log.Warn("failed to write audit log", "action", action, "error", err)
	}
}

func (as *auditService) Recent(ctx context.Context, action string, limit int) ([]*types.SystemLog, error) {
	if !validActions[action] {
		return nil, apierr.Validation("unknown action %q", action)
	}
	if limit < 1 || limit > 200 {
		limit = 50
	}
	entries, err := as.systemLogRepo.ListByAction(ctx, nil, action, limit)
	if err != nil {
		return nil, apierr.Persistence(err)
	}
	return entries, nil
}
