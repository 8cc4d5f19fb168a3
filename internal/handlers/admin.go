package handlers

import (
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/edugradelab/gradelab-backend/internal/apierr"
	"github.com/edugradelab/gradelab-backend/internal/logger"
	"github.com/edugradelab/gradelab-backend/internal/repos"
	"github.com/edugradelab/gradelab-backend/internal/services"
)

// AdminHandler serves the user-management and audit-log routes. All of
// them sit behind RequireRole(admin).
type AdminHandler struct {
	log          *logger.Logger
	userService  services.UserService
	auditService services.AuditService
}

func NewAdminHandler(log *logger.Logger, userService services.UserService, auditService services.AuditService) *AdminHandler {
	return &AdminHandler{
		log:          log.With("handler", "AdminHandler"),
		userService:  userService,
		auditService: auditService,
	}
}

func (ah *AdminHandler) ListUsers(c *gin.Context) {
	page, limit := parsePagination(c)
	filter := repos.UserFilter{
		Search: c.Query("search"),
		Page:   page,
		Limit:  limit,
	}
	if raw := c.Query("isActive"); raw != "" {
		active, err := strconv.ParseBool(raw)
		if err != nil {
			RespondError(c, apierr.Validation("invalid isActive %q", raw))
			return
		}
		filter.IsActive = &active
	}
	users, total, err := ah.userService.List(c.Request.Context(), filter)
	if err != nil {
		RespondError(c, err)
		return
	}
	RespondOK(c, "ok", gin.H{
		"users": users,
		"meta":  ListMeta{Total: total, Page: page, Limit: limit},
	})
}

func (ah *AdminHandler) UpdateUser(c *gin.Context) {
	rd := requestDataOrAbort(c)
	if rd == nil {
		return
	}
	id, err := parseUintParam(c, "id")
	if err != nil {
		RespondError(c, err)
		return
	}
	var req struct {
		Username *string `json:"username"`
		Role     *string `json:"role"`
		IsActive *bool   `json:"isActive"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		RespondError(c, apierr.Validation("invalid request body"))
		return
	}
	user, err := ah.userService.Update(c.Request.Context(), *rd, id, services.UserUpdateInput{
		Username: req.Username,
		Role:     req.Role,
		IsActive: req.IsActive,
	})
	if err != nil {
		RespondError(c, err)
		return
	}
	RespondOK(c, "user updated", gin.H{"user": user})
}

func (ah *AdminHandler) DeleteUser(c *gin.Context) {
	rd := requestDataOrAbort(c)
	if rd == nil {
		return
	}
	id, err := parseUintParam(c, "id")
	if err != nil {
		RespondError(c, err)
		return
	}
	if err := ah.userService.Delete(c.Request.Context(), *rd, id); err != nil {
		RespondError(c, err)
		return
	}
	RespondOK(c, "user deleted", nil)
}

func (ah *AdminHandler) ListLogs(c *gin.Context) {
	action := c.Query("action")
	if action == "" {
		RespondError(c, apierr.Validation("action is required"))
		return
	}
	limit := 0
	if raw := c.Query("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil {
			RespondError(c, apierr.Validation("invalid limit %q", raw))
			return
		}
		limit = n
	}
	entries, err := ah.auditService.Recent(c.Request.Context(), action, limit)
	if err != nil {
		RespondError(c, err)
		return
	}
	RespondOK(c, "ok", gin.H{"logs": entries})
}
