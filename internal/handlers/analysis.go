package handlers

import (
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/edugradelab/gradelab-backend/internal/apierr"
	"github.com/edugradelab/gradelab-backend/internal/logger"
	"github.com/edugradelab/gradelab-backend/internal/services"
)

type AnalysisHandler struct {
	log             *logger.Logger
	analysisService services.AnalysisService
}

func NewAnalysisHandler(log *logger.Logger, analysisService services.AnalysisService) *AnalysisHandler {
	return &AnalysisHandler{
		log:             log.With("handler", "AnalysisHandler"),
		analysisService: analysisService,
	}
}

// GetProgress serves the polling endpoint the frontend hits while an
// upload works its way through the pipeline.
func (ah *AnalysisHandler) GetProgress(c *gin.Context) {
	rd := requestDataOrAbort(c)
	if rd == nil {
		return
	}
	uploadID, err := parseUintParam(c, "id")
	if err != nil {
		RespondError(c, err)
		return
	}
	progress, err := ah.analysisService.GetProgress(c.Request.Context(), *rd, uploadID)
	if err != nil {
		RespondError(c, err)
		return
	}
	RespondOK(c, "ok", progress)
}

// List returns the caller's analyses. With ?uploadId= it serves the
// single-upload polling view instead.
func (ah *AnalysisHandler) List(c *gin.Context) {
	rd := requestDataOrAbort(c)
	if rd == nil {
		return
	}
	if raw := c.Query("uploadId"); raw != "" {
		uploadID, err := strconv.ParseUint(raw, 10, 64)
		if err != nil || uploadID == 0 {
			RespondError(c, apierr.Validation("invalid uploadId %q", raw))
			return
		}
		progress, err := ah.analysisService.GetProgress(c.Request.Context(), *rd, uint(uploadID))
		if err != nil {
			RespondError(c, err)
			return
		}
		RespondOK(c, "ok", progress)
		return
	}
	page, limit := parsePagination(c)
	analyses, total, err := ah.analysisService.ListForUser(c.Request.Context(), *rd, page, limit)
	if err != nil {
		RespondError(c, err)
		return
	}
	RespondOK(c, "ok", gin.H{
		"analyses": analyses,
		"meta":     ListMeta{Total: total, Page: page, Limit: limit},
	})
}
