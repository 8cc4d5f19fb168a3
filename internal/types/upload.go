package types

import (
	"time"
)

type Upload struct {
	ID           uint      `gorm:"primaryKey;autoIncrement" json:"id"`
	UserID       uint      `gorm:"not null;index;column:user_id" json:"user_id"`
	User         *User     `gorm:"constraint:OnDelete:CASCADE;foreignKey:UserID;references:ID" json:"user,omitempty"`
	FileName     string    `gorm:"not null;column:file_name" json:"file_name"`
	OriginalName string    `gorm:"not null;column:original_name" json:"original_name"`
	FileSize     int64     `gorm:"column:file_size" json:"file_size"`
	ContentType  string    `gorm:"column:content_type" json:"content_type"`
	UploadPath   string    `gorm:"not null;column:upload_path" json:"upload_path"`
	FileURL      string    `gorm:"column:file_url" json:"file_url"`
	Status       string    `gorm:"not null;default:'uploaded';column:status;index" json:"status"`
	CreatedAt    time.Time `gorm:"not null" json:"created_at"`
	UpdatedAt    time.Time `gorm:"not null" json:"updated_at"`
}

func (Upload) TableName() string { return "uploads" }
