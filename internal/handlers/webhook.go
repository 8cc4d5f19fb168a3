package handlers

import (
	"github.com/gin-gonic/gin"

	"github.com/edugradelab/gradelab-backend/internal/apierr"
	"github.com/edugradelab/gradelab-backend/internal/logger"
	"github.com/edugradelab/gradelab-backend/internal/services"
)

// WebhookHandler receives callbacks from the external scanner and
// grading services. These routes carry no caller identity; the
// reconciler trusts the uploadId in the body.
// TODO: add shared-secret signature verification once the scanner
// service supports signing its callbacks.
type WebhookHandler struct {
	log        *logger.Logger
	reconciler services.ReconcilerService
}

func NewWebhookHandler(log *logger.Logger, reconciler services.ReconcilerService) *WebhookHandler {
	return &WebhookHandler{
		log:        log.With("handler", "WebhookHandler"),
		reconciler: reconciler,
	}
}

func (wh *WebhookHandler) Scanner(c *gin.Context) {
	var res services.ScannerResult
	if err := c.ShouldBindJSON(&res); err != nil {
		RespondError(c, apierr.Validation("invalid request body"))
		return
	}
	upload, err := wh.reconciler.ApplyScannerResult(c.Request.Context(), res, c.ClientIP(), c.Request.UserAgent())
	if err != nil {
		wh.log.Warn("scanner webhook rejected", "upload_id", res.UploadID, "error", err)
		RespondError(c, err)
		return
	}
	RespondOK(c, "scanner result applied", gin.H{
		"uploadId": upload.ID,
		"status":   upload.Status,
	})
}

func (wh *WebhookHandler) AIAnalysis(c *gin.Context) {
	var res services.AnalysisResult
	if err := c.ShouldBindJSON(&res); err != nil {
		RespondError(c, apierr.Validation("invalid request body"))
		return
	}
	upload, err := wh.reconciler.ApplyAnalysisResult(c.Request.Context(), res, c.ClientIP(), c.Request.UserAgent())
	if err != nil {
		wh.log.Warn("ai-analysis webhook rejected", "upload_id", res.UploadID, "error", err)
		RespondError(c, err)
		return
	}
	RespondOK(c, "analysis result applied", gin.H{
		"uploadId": upload.ID,
		"status":   upload.Status,
	})
}
