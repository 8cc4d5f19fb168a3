package types

import (
	"time"

	"gorm.io/datatypes"
)

// Analysis holds the AI grading result for one upload. Score and
// ResultData are only populated once Status is completed.
type Analysis struct {
	ID         uint           `gorm:"primaryKey;autoIncrement" json:"id"`
	UploadID   uint           `gorm:"not null;uniqueIndex;column:upload_id" json:"upload_id"`
	Upload     *Upload        `gorm:"constraint:OnDelete:CASCADE;foreignKey:UploadID;references:ID" json:"upload,omitempty"`
	UserID     uint           `gorm:"not null;index;column:user_id" json:"user_id"`
	Status     string         `gorm:"not null;default:'pending';column:status" json:"status"`
	Score      *float64       `gorm:"column:score" json:"score,omitempty"`
	Feedback   string         `gorm:"type:text;column:feedback" json:"feedback"`
	ResultData datatypes.JSON `gorm:"column:result_data;type:jsonb" json:"result_data"`
	PDFURL     string         `gorm:"column:pdf_url" json:"pdf_url"`
	CreatedAt  time.Time      `gorm:"not null" json:"created_at"`
	UpdatedAt  time.Time      `gorm:"not null" json:"updated_at"`
}

func (Analysis) TableName() string { return "analysis" }
