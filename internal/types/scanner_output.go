package types

import (
	"time"

	"gorm.io/datatypes"
)

const (
	StageStatusPending    = "pending"
	StageStatusProcessing = "processing"
	StageStatusCompleted  = "completed"
	StageStatusError      = "error"
)

// ScannerOutput holds the external scanner's result for one upload.
// The unique index on upload_id enforces the 0-or-1 row invariant that
// keeps webhook redelivery idempotent.
type ScannerOutput struct {
	ID                uint           `gorm:"primaryKey;autoIncrement" json:"id"`
	UploadID          uint           `gorm:"not null;uniqueIndex;column:upload_id" json:"upload_id"`
	Upload            *Upload        `gorm:"constraint:OnDelete:CASCADE;foreignKey:UploadID;references:ID" json:"upload,omitempty"`
	UserID            uint           `gorm:"not null;index;column:user_id" json:"user_id"`
	Status            string         `gorm:"not null;default:'pending';column:status" json:"status"`
	ScannedText       string         `gorm:"type:text;column:scanned_text" json:"scanned_text"`
	QuestionsDetected int            `gorm:"column:questions_detected" json:"questions_detected"`
	AnswersDetected   int            `gorm:"column:answers_detected" json:"answers_detected"`
	ScannedImageURL   string         `gorm:"column:scanned_image_url" json:"scanned_image_url"`
	Meta              datatypes.JSON `gorm:"column:meta;type:jsonb" json:"meta"`
	ScannedAt         *time.Time     `gorm:"column:scanned_at" json:"scanned_at,omitempty"`
	CreatedAt         time.Time      `gorm:"not null" json:"created_at"`
	UpdatedAt         time.Time      `gorm:"not null" json:"updated_at"`
}

func (ScannerOutput) TableName() string { return "scanner_outputs" }
