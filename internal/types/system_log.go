package types

import (
	"time"

	"gorm.io/datatypes"
)

// SystemLog is an append-only audit trail entry. Rows are never updated
// or deleted; writes are best-effort and must not fail their caller.
type SystemLog struct {
	ID        uint           `gorm:"primaryKey;autoIncrement" json:"id"`
	UserID    *uint          `gorm:"index;column:user_id" json:"user_id,omitempty"`
	Action    string         `gorm:"not null;index;column:action" json:"action"`
	Detail    datatypes.JSON `gorm:"column:detail;type:jsonb" json:"detail"`
	IPAddress string         `gorm:"column:ip_address" json:"ip_address"`
	UserAgent string         `gorm:"column:user_agent" json:"user_agent"`
	CreatedAt time.Time      `gorm:"not null" json:"created_at"`
}

func (SystemLog) TableName() string { return "system_logs" }
