package handlers

import (
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/edugradelab/gradelab-backend/internal/apierr"
	"github.com/edugradelab/gradelab-backend/internal/logger"
	"github.com/edugradelab/gradelab-backend/internal/services"
)

type UploadHandler struct {
	log           *logger.Logger
	uploadService services.UploadService
}

func NewUploadHandler(log *logger.Logger, uploadService services.UploadService) *UploadHandler {
	return &UploadHandler{
		log:           log.With("handler", "UploadHandler"),
		uploadService: uploadService,
	}
}

func (uh *UploadHandler) Create(c *gin.Context) {
	rd := requestDataOrAbort(c)
	if rd == nil {
		return
	}
	fileHeader, err := c.FormFile("file")
	if err != nil {
		RespondError(c, apierr.Validation("no file provided"))
		return
	}
	file, err := fileHeader.Open()
	if err != nil {
		RespondError(c, apierr.Validation("could not read file"))
		return
	}
	defer file.Close()

	upload, err := uh.uploadService.Intake(c.Request.Context(), *rd, services.IntakeInput{
		OriginalName: fileHeader.Filename,
		ContentType:  fileHeader.Header.Get("Content-Type"),
		Size:         fileHeader.Size,
		File:         file,
		IPAddress:    c.ClientIP(),
		UserAgent:    c.Request.UserAgent(),
	})
	if err != nil {
		RespondError(c, err)
		return
	}
	RespondCreated(c, "file uploaded", gin.H{"upload": upload})
}

func (uh *UploadHandler) Get(c *gin.Context) {
	rd := requestDataOrAbort(c)
	if rd == nil {
		return
	}
	id, err := parseUintParam(c, "id")
	if err != nil {
		RespondError(c, err)
		return
	}
	upload, err := uh.uploadService.Get(c.Request.Context(), *rd, id)
	if err != nil {
		RespondError(c, err)
		return
	}
	RespondOK(c, "ok", gin.H{"upload": upload})
}

func (uh *UploadHandler) List(c *gin.Context) {
	rd := requestDataOrAbort(c)
	if rd == nil {
		return
	}
	page, limit := parsePagination(c)
	uploads, total, err := uh.uploadService.List(c.Request.Context(), *rd, c.Query("status"), page, limit)
	if err != nil {
		RespondError(c, err)
		return
	}
	RespondOK(c, "ok", gin.H{
		"uploads": uploads,
		"meta":    ListMeta{Total: total, Page: page, Limit: limit},
	})
}

func parseUintParam(c *gin.Context, name string) (uint, error) {
	raw := c.Param(name)
	v, err := strconv.ParseUint(raw, 10, 64)
	if err != nil || v == 0 {
		return 0, apierr.Validation("invalid %s %q", name, raw)
	}
	return uint(v), nil
}

func parsePagination(c *gin.Context) (page, limit int) {
	page, _ = strconv.Atoi(c.DefaultQuery("page", "1"))
	limit, _ = strconv.Atoi(c.DefaultQuery("limit", "20"))
	if page < 1 {
		page = 1
	}
	if limit < 1 || limit > 100 {
		limit = 20
	}
	return page, limit
}
