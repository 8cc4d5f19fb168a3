package services

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"gorm.io/gorm"

	"github.com/edugradelab/gradelab-backend/internal/apierr"
	"github.com/edugradelab/gradelab-backend/internal/logger"
	"github.com/edugradelab/gradelab-backend/internal/repos"
	"github.com/edugradelab/gradelab-backend/internal/requestdata"
	"github.com/edugradelab/gradelab-backend/internal/status"
	"github.com/edugradelab/gradelab-backend/internal/types"
)

const MaxUploadBytes = 10 << 20

var allowedContentTypes = map[string]bool{
	"image/jpeg":      true,
	"image/jpg":       true,
	"image/png":       true,
	"image/webp":      true,
	"application/pdf": true,
}

type IntakeInput struct {
	OriginalName string
	ContentType  string
	Size         int64
	File         io.Reader
	IPAddress    string
	UserAgent    string
}

type UploadService interface {
	// Intake validates and stores the file, creates the upload row in
	// status uploaded with its pending scanner stage, then asks the
	// scanner service to start. A failed dispatch leaves the upload in
	// place; the scan can be re-triggered out of band.
	Intake(ctx context.Context, caller requestdata.RequestData, in IntakeInput) (*types.Upload, error)
	Get(ctx context.Context, caller requestdata.RequestData, id uint) (*types.Upload, error)
	List(ctx context.Context, caller requestdata.RequestData, statusFilter string, page, limit int) ([]*types.Upload, int64, error)
}

type uploadService struct {
	db         *gorm.DB
	log        *logger.Logger
	uploadRepo repos.UploadRepo
	stageRepo  repos.ScannerOutputRepo
	storage    StorageService
	dispatcher PipelineDispatcher
	audit      AuditService
}

func NewUploadService(db *gorm.DB, log *logger.Logger, uploadRepo repos.UploadRepo, stageRepo repos.ScannerOutputRepo, storage StorageService, dispatcher PipelineDispatcher, audit AuditService) UploadService {
	return &uploadService{
		db:         db,
		log:        log.With("service", "UploadService"),
		uploadRepo: uploadRepo,
		stageRepo:  stageRepo,
		storage:    storage,
		dispatcher: dispatcher,
		audit:      audit,
	}
}

func (us *uploadService) Intake(ctx context.Context, caller requestdata.RequestData, in IntakeInput) (*types.Upload, error) {
	if in.OriginalName == "" || in.File == nil {
		return nil, apierr.Validation("no file provided")
	}
	contentType := strings.ToLower(strings.TrimSpace(in.ContentType))
	if !allowedContentTypes[contentType] {
		return nil, apierr.Validation("unsupported file type %q, allowed: jpeg, png, webp, pdf", contentType)
	}
	if in.Size <= 0 {
		return nil, apierr.Validation("empty file")
	}
	if in.Size > MaxUploadBytes {
		return nil, apierr.Validation("file exceeds the 10MB limit")
	}

	key := ObjectKey(caller.UserID, in.OriginalName)
	if err := us.storage.UploadFile(ctx, key, contentType, io.LimitReader(in.File, MaxUploadBytes)); err != nil {
		return nil, apierr.Downstream(fmt.Errorf("store file: %w", err))
	}

	upload := &types.Upload{
		UserID:       caller.UserID,
		FileName:     key,
		OriginalName: in.OriginalName,
		FileSize:     in.Size,
		ContentType:  contentType,
		UploadPath:   key,
		FileURL:      us.storage.GetPublicURL(key),
		Status:       string(status.Uploaded),
	}
	if err := us.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if _, err := us.uploadRepo.Create(ctx, tx, upload); err != nil {
			return err
		}
		_, err := us.stageRepo.Create(ctx, tx, &types.ScannerOutput{
			UploadID: upload.ID,
			UserID:   caller.UserID,
			Status:   types.StageStatusPending,
		})
		return err
	}); err != nil {
		// The object is already in the bucket; drop it rather than
		// leave it orphaned.
		if delErr := us.storage.DeleteFile(ctx, key); delErr != nil {
			us.log.Warn("failed to delete orphaned object", "key", key, "error", delErr)
		}
		return nil, apierr.Persistence(err)
	}

	us.audit.Record(ctx, nil, ActionFileUpload, &caller.UserID, map[string]interface{}{
		"uploadId":    upload.ID,
		"fileName":    in.OriginalName,
		"fileSize":    in.Size,
		"contentType": contentType,
	}, in.IPAddress, in.UserAgent)

	if err := us.dispatcher.DispatchScan(ctx, ScanRequest{
		UploadID: upload.ID,
		UserID:   caller.UserID,
		FileURL:  upload.FileURL,
		FileName: in.OriginalName,
	}); err != nil {
		// Upload survives, scanning simply has not started.
		us.log.Warn("scan dispatch failed", "upload_id", upload.ID, "error", err)
		return upload, nil
	}
	if _, err := us.uploadRepo.UpdateStatusFrom(ctx, nil, upload.ID, string(status.Uploaded), string(status.Scanning)); err != nil {
		us.log.Error("failed to mark upload scanning after dispatch", "upload_id", upload.ID, "error", err)
		return upload, nil
	}
	if err := us.stageRepo.UpdateStatus(ctx, nil, upload.ID, types.StageStatusProcessing); err != nil {
		us.log.Warn("failed to mark scanner stage processing", "upload_id", upload.ID, "error", err)
	}
	upload.Status = string(status.Scanning)
	return upload, nil
}

func (us *uploadService) Get(ctx context.Context, caller requestdata.RequestData, id uint) (*types.Upload, error) {
	upload, err := us.uploadRepo.GetByID(ctx, nil, id)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, apierr.NotFound("upload %d not found", id)
	}
	if err != nil {
		return nil, apierr.Persistence(err)
	}
	if upload.UserID != caller.UserID && caller.Role != types.RoleAdmin {
		return nil, apierr.Forbidden("not your upload")
	}
	return upload, nil
}

func (us *uploadService) List(ctx context.Context, caller requestdata.RequestData, statusFilter string, page, limit int) ([]*types.Upload, int64, error) {
	if statusFilter != "" && !status.Upload(statusFilter).Valid() {
		return nil, 0, apierr.Validation("unknown status %q", statusFilter)
	}
	filter := repos.UploadFilter{
		UserID: caller.UserID,
		Status: statusFilter,
		Page:   page,
		Limit:  limit,
	}
	if caller.Role == types.RoleAdmin {
		filter.UserID = 0
	}
	uploads, total, err := us.uploadRepo.List(ctx, nil, filter)
	if err != nil {
		return nil, 0, apierr.Persistence(err)
	}
	return uploads, total, nil
}
