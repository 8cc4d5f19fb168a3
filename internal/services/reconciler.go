package services

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/edugradelab/gradelab-backend/internal/apierr"
	"github.com/edugradelab/gradelab-backend/internal/logger"
	"github.com/edugradelab/gradelab-backend/internal/repos"
	"github.com/edugradelab/gradelab-backend/internal/status"
	"github.com/edugradelab/gradelab-backend/internal/types"
)

// Outcome discriminants reported by the external services.
const (
	OutcomeSuccess = "success"
	OutcomeError   = "error"
)

// ScannerResult is the canonical scanner webhook payload. Stage data
// may arrive as top-level fields or inside meta; top-level wins.
type ScannerResult struct {
	UploadID          uint                   `json:"uploadId"`
	Status            string                 `json:"status"`
	ScannedText       string                 `json:"scannedText,omitempty"`
	Confidence        float64                `json:"confidence,omitempty"`
	QuestionsDetected int                    `json:"questionsDetected,omitempty"`
	AnswersDetected   int                    `json:"answersDetected,omitempty"`
	ScannedImageURL   string                 `json:"scannedImageUrl,omitempty"`
	Meta              map[string]interface{} `json:"meta,omitempty"`
	Error             string                 `json:"error,omitempty"`
}

// AnalysisResult is the canonical AI-analysis webhook payload.
type AnalysisResult struct {
	UploadID     uint                   `json:"uploadId"`
	AnalysisID   *uint                  `json:"analysisId,omitempty"`
	Status       string                 `json:"status"`
	Score        *float64               `json:"score,omitempty"`
	Feedback     string                 `json:"feedback,omitempty"`
	AnalysisData map[string]interface{} `json:"analysisData,omitempty"`
	PDFURL       string                 `json:"pdfUrl,omitempty"`
	Error        string                 `json:"error,omitempty"`
}

// ReconcilerService applies webhook results to the upload status
// machine. Each call mutates at most one upload. The status change and
// the stage-row upsert commit in one transaction; the audit entry is
// written afterwards, best effort.
type ReconcilerService interface {
	ApplyScannerResult(ctx context.Context, res ScannerResult, ip, userAgent string) (*types.Upload, error)
	ApplyAnalysisResult(ctx context.Context, res AnalysisResult, ip, userAgent string) (*types.Upload, error)
}

type reconcilerService struct {
	db           *gorm.DB
	log          *logger.Logger
	uploadRepo   repos.UploadRepo
	scannerRepo  repos.ScannerOutputRepo
	analysisRepo repos.AnalysisRepo
	dispatcher   PipelineDispatcher
	audit        AuditService
	now          func() time.Time
}

func NewReconcilerService(db *gorm.DB, log *logger.Logger, uploadRepo repos.UploadRepo, scannerRepo repos.ScannerOutputRepo, analysisRepo repos.AnalysisRepo, dispatcher PipelineDispatcher, audit AuditService) ReconcilerService {
	return &reconcilerService{
		db:           db,
		log:          log.With("service", "ReconcilerService"),
		uploadRepo:   uploadRepo,
		scannerRepo:  scannerRepo,
		analysisRepo: analysisRepo,
		dispatcher:   dispatcher,
		audit:        audit,
		now:          time.Now,
	}
}

func (rs *reconcilerService) ApplyScannerResult(ctx context.Context, res ScannerResult, ip, userAgent string) (*types.Upload, error) {
	if res.UploadID == 0 {
		return nil, apierr.Validation("uploadId is required")
	}
	if res.Status != OutcomeSuccess && res.Status != OutcomeError {
		return nil, apierr.Validation("status must be %q or %q", OutcomeSuccess, OutcomeError)
	}

	upload, err := rs.uploadRepo.GetByID(ctx, nil, res.UploadID)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, apierr.NotFound("upload %d not found", res.UploadID)
	}
	if err != nil {
		return nil, apierr.Persistence(err)
	}

	if res.Status == OutcomeError {
		return rs.failUpload(ctx, upload, ActionScannerWebhook, res.Error, ip, userAgent)
	}

	current := status.Upload(upload.Status)
	out := rs.scannerOutputFrom(upload, res)

	switch current {
	case status.Analyzing, status.Completed:
		// Later stages already absorbed this result; refresh the stage
		// row and acknowledge the redelivery.
		if err := rs.scannerRepo.Upsert(ctx, nil, out); err != nil {
			return nil, apierr.Persistence(err)
		}
		rs.recordWebhook(ctx, ActionScannerWebhook, upload, res.Status, ip, userAgent)
		return upload, nil
	case status.Scanned:
		// The scanned commit landed but the analysis handoff never did.
		// Redelivery resumes the handoff instead of being absorbed.
		if err := rs.scannerRepo.Upsert(ctx, nil, out); err != nil {
			return nil, apierr.Persistence(err)
		}
	default:
		if !status.CanTransition(current, status.Scanned) {
			return nil, apierr.Transition(&status.TransitionError{UploadID: upload.ID, From: current, To: status.Scanned})
		}
		advanced := false
		if err := rs.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
			if err := rs.scannerRepo.Upsert(ctx, tx, out); err != nil {
				return err
			}
			var err error
			advanced, err = rs.uploadRepo.UpdateStatusFrom(ctx, tx, upload.ID, string(current), string(status.Scanned))
			return err
		}); err != nil {
			return nil, apierr.Persistence(err)
		}
		upload.Status = string(status.Scanned)
		if !advanced {
			// A concurrent delivery won the transition and owns the
			// analysis handoff.
			rs.recordWebhook(ctx, ActionScannerWebhook, upload, res.Status, ip, userAgent)
			return upload, nil
		}
	}

	rs.recordWebhook(ctx, ActionScannerWebhook, upload, res.Status, ip, userAgent)

	// Hand the scanned text to the grading service. A failed handoff
	// must not strand the upload in scanned.
	req := AnalysisRequest{
		UploadID:    upload.ID,
		UserID:      upload.UserID,
		ScannedText: out.ScannedText,
		Confidence:  res.Confidence,
	}
	if req.Confidence == 0 {
		if conf, ok := res.Meta["confidence"].(float64); ok {
			req.Confidence = conf
		}
	}
	if err := rs.dispatcher.DispatchAnalysis(ctx, req); err != nil {
		rs.log.Error("analysis dispatch failed", "upload_id", upload.ID, "error", err)
		if _, uErr := rs.uploadRepo.UpdateStatusFrom(ctx, nil, upload.ID, string(status.Scanned), string(status.Error)); uErr != nil {
			rs.log.Error("failed to mark upload error after dispatch failure", "upload_id", upload.ID, "error", uErr)
			return nil, apierr.Persistence(uErr)
		}
		upload.Status = string(status.Error)
		return nil, apierr.Downstream(err)
	}
	if err := rs.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := rs.analysisRepo.Upsert(ctx, tx, &types.Analysis{
			UploadID: upload.ID,
			UserID:   upload.UserID,
			Status:   types.StageStatusProcessing,
		}); err != nil {
			return err
		}
		_, err := rs.uploadRepo.UpdateStatusFrom(ctx, tx, upload.ID, string(status.Scanned), string(status.Analyzing))
		return err
	}); err != nil {
		return nil, apierr.Persistence(err)
	}
	upload.Status = string(status.Analyzing)
	return upload, nil
}

func (rs *reconcilerService) ApplyAnalysisResult(ctx context.Context, res AnalysisResult, ip, userAgent string) (*types.Upload, error) {
	if res.UploadID == 0 {
		return nil, apierr.Validation("uploadId is required")
	}
	if res.Status != OutcomeSuccess && res.Status != OutcomeError {
		return nil, apierr.Validation("status must be %q or %q", OutcomeSuccess, OutcomeError)
	}

	upload, err := rs.uploadRepo.GetByID(ctx, nil, res.UploadID)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, apierr.NotFound("upload %d not found", res.UploadID)
	}
	if err != nil {
		return nil, apierr.Persistence(err)
	}

	if res.Status == OutcomeError {
		return rs.failUpload(ctx, upload, ActionAIAnalysisWebhook, res.Error, ip, userAgent)
	}

	current := status.Upload(upload.Status)
	redelivery := current == status.Completed
	// Accepted from analyzing, and from scanned: an upload parked at
	// scanned lost its analyzing advance after the grading job was
	// already dispatched, so the result is still authoritative.
	// Anything earlier has not finished scanning and is rejected.
	if !redelivery && current != status.Scanned && !status.CanTransition(current, status.Completed) {
		return nil, apierr.Transition(&status.TransitionError{UploadID: upload.ID, From: current, To: status.Completed})
	}

	analysis := rs.analysisFrom(upload, res)
	if err := rs.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := rs.analysisRepo.Upsert(ctx, tx, analysis); err != nil {
			return err
		}
		if redelivery {
			return nil
		}
		_, err := rs.uploadRepo.UpdateStatusFrom(ctx, tx, upload.ID, string(current), string(status.Completed))
		return err
	}); err != nil {
		return nil, apierr.Persistence(err)
	}
	if !redelivery {
		upload.Status = string(status.Completed)
	}

	rs.recordWebhook(ctx, ActionAIAnalysisWebhook, upload, res.Status, ip, userAgent)
	return upload, nil
}

func (rs *reconcilerService) recordWebhook(ctx context.Context, action string, upload *types.Upload, outcome, ip, userAgent string) {
	rs.audit.Record(ctx, nil, action, &upload.UserID, map[string]interface{}{
		"uploadId": upload.ID,
		"status":   outcome,
	}, ip, userAgent)
}

// failUpload moves the upload to error and records the reason on the
// stage row for the webhook that reported it.
func (rs *reconcilerService) failUpload(ctx context.Context, upload *types.Upload, action, reason, ip, userAgent string) (*types.Upload, error) {
	current := status.Upload(upload.Status)
	if current == status.Error {
		// Error redelivery, nothing left to change.
		return upload, nil
	}
	if !status.CanTransition(current, status.Error) {
		return nil, apierr.Transition(&status.TransitionError{UploadID: upload.ID, From: current, To: status.Error})
	}

	if err := rs.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if action == ActionScannerWebhook {
			out := &types.ScannerOutput{
				UploadID: upload.ID,
				UserID:   upload.UserID,
				Status:   types.StageStatusError,
				Meta:     mustJSON(map[string]interface{}{"error": reason}),
			}
			if err := rs.scannerRepo.Upsert(ctx, tx, out); err != nil {
				return err
			}
		} else {
			analysis := &types.Analysis{
				UploadID: upload.ID,
				UserID:   upload.UserID,
				Status:   types.StageStatusError,
				Feedback: reason,
			}
			if err := rs.analysisRepo.Upsert(ctx, tx, analysis); err != nil {
				return err
			}
		}
		_, err := rs.uploadRepo.UpdateStatusFrom(ctx, tx, upload.ID, string(current), string(status.Error))
		return err
	}); err != nil {
		return nil, apierr.Persistence(err)
	}
	upload.Status = string(status.Error)

	rs.audit.Record(ctx, nil, action, &upload.UserID, map[string]interface{}{
		"uploadId": upload.ID,
		"status":   OutcomeError,
		"error":    reason,
	}, ip, userAgent)
	return upload, nil
}

func (rs *reconcilerService) scannerOutputFrom(upload *types.Upload, res ScannerResult) *types.ScannerOutput {
	now := rs.now()
	out := &types.ScannerOutput{
		UploadID:          upload.ID,
		UserID:            upload.UserID,
		Status:            types.StageStatusCompleted,
		ScannedText:       res.ScannedText,
		QuestionsDetected: res.QuestionsDetected,
		AnswersDetected:   res.AnswersDetected,
		ScannedImageURL:   res.ScannedImageURL,
		ScannedAt:         &now,
	}
	if res.Meta != nil {
		out.Meta = mustJSON(res.Meta)
		if out.ScannedText == "" {
			if text, ok := res.Meta["scannedText"].(string); ok {
				out.ScannedText = text
			}
		}
		if out.QuestionsDetected == 0 {
			if q, ok := res.Meta["questionsDetected"].(float64); ok {
				out.QuestionsDetected = int(q)
			}
		}
		if out.AnswersDetected == 0 {
			if a, ok := res.Meta["answersDetected"].(float64); ok {
				out.AnswersDetected = int(a)
			}
		}
	}
	return out
}

func (rs *reconcilerService) analysisFrom(upload *types.Upload, res AnalysisResult) *types.Analysis {
	analysis := &types.Analysis{
		UploadID: upload.ID,
		UserID:   upload.UserID,
		Status:   types.StageStatusCompleted,
		Score:    res.Score,
		Feedback: res.Feedback,
		PDFURL:   res.PDFURL,
	}
	if res.AnalysisData != nil {
		analysis.ResultData = mustJSON(res.AnalysisData)
		if analysis.Score == nil {
			if score, ok := res.AnalysisData["score"].(float64); ok {
				analysis.Score = &score
			}
		}
		if analysis.Feedback == "" {
			if feedback, ok := res.AnalysisData["feedback"].(string); ok {
				analysis.Feedback = feedback
			}
		}
		if analysis.PDFURL == "" {
			if pdf, ok := res.AnalysisData["pdfUrl"].(string); ok {
				analysis.PDFURL = pdf
			}
		}
	}
	return analysis
}

func mustJSON(v map[string]interface{}) datatypes.JSON {
	raw, err := json.Marshal(v)
	if err != nil {
		return nil
	}
	return datatypes.JSON(raw)
}
