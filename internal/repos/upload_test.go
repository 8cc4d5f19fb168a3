package repos

import (
	"context"
	"testing"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/edugradelab/gradelab-backend/internal/logger"
	"github.com/edugradelab/gradelab-backend/internal/types"
)

func openRepoTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open("file::memory:"), &gorm.Config{})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	// Every pooled connection to :memory: sees its own database.
	sqlDB, err := db.DB()
	if err != nil {
		t.Fatalf("sql db: %v", err)
	}
	sqlDB.SetMaxOpenConns(1)
	if err := db.AutoMigrate(&types.Upload{}); err != nil {
		t.Fatalf("automigrate: %v", err)
	}
	return db
}

func TestUpdateStatusFromGuardsCurrentStatus(t *testing.T) {
	db := openRepoTestDB(t)
	repo := NewUploadRepo(db, logger.NewNop())

	upload := &types.Upload{
		UserID:       1,
		FileName:     "user_1/123_ab_exam.png",
		OriginalName: "exam.png",
		FileSize:     1,
		ContentType:  "image/png",
		UploadPath:   "user_1/123_ab_exam.png",
		Status:       "scanning",
	}
	if err := db.Create(upload).Error; err != nil {
		t.Fatalf("seed upload: %v", err)
	}

	advanced, err := repo.UpdateStatusFrom(context.Background(), nil, upload.ID, "scanning", "scanned")
	if err != nil {
		t.Fatalf("UpdateStatusFrom: %v", err)
	}
	if !advanced {
		t.Fatal("first transition: want advanced")
	}

	// Same delivery arriving twice finds the row already moved on.
	advanced, err = repo.UpdateStatusFrom(context.Background(), nil, upload.ID, "scanning", "scanned")
	if err != nil {
		t.Fatalf("UpdateStatusFrom repeat: %v", err)
	}
	if advanced {
		t.Fatal("repeated transition: want no rows affected")
	}

	var got types.Upload
	if err := db.First(&got, upload.ID).Error; err != nil {
		t.Fatalf("load upload: %v", err)
	}
	if got.Status != "scanned" {
		t.Fatalf("status: want=scanned got=%s", got.Status)
	}
}
