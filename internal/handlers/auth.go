package handlers

import (
	"github.com/gin-gonic/gin"

	"github.com/edugradelab/gradelab-backend/internal/apierr"
	"github.com/edugradelab/gradelab-backend/internal/logger"
	"github.com/edugradelab/gradelab-backend/internal/ratelimit"
	"github.com/edugradelab/gradelab-backend/internal/services"
	"github.com/edugradelab/gradelab-backend/internal/types"
)

type AuthHandler struct {
	log             *logger.Logger
	authService     services.AuthService
	audit           services.AuditService
	loginLimiter    *ratelimit.Limiter
	registerLimiter *ratelimit.Limiter
}

func NewAuthHandler(log *logger.Logger, authService services.AuthService, audit services.AuditService, loginLimiter, registerLimiter *ratelimit.Limiter) *AuthHandler {
	return &AuthHandler{
		log:             log.With("handler", "AuthHandler"),
		authService:     authService,
		audit:           audit,
		loginLimiter:    loginLimiter,
		registerLimiter: registerLimiter,
	}
}

type userView struct {
	ID       uint   `json:"id"`
	Username string `json:"username"`
	Email    string `json:"email"`
	Role     string `json:"role"`
}

func newUserView(u *types.User) userView {
	return userView{ID: u.ID, Username: u.Username, Email: u.Email, Role: u.Role}
}

func (ah *AuthHandler) Register(c *gin.Context) {
	// The limiter runs before any validation or store access.
	if !ah.registerLimiter.IsAllowed(c.ClientIP()) {
		RespondError(c, apierr.RateLimited("too many registration attempts, try again later"))
		return
	}
	var req struct {
		Username        string `json:"username"`
		Email           string `json:"email"`
		Password        string `json:"password"`
		ConfirmPassword string `json:"confirmPassword"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		RespondError(c, apierr.Validation("invalid request body"))
		return
	}
	user, token, err := ah.authService.RegisterUser(c.Request.Context(), services.RegisterInput{
		Username:        req.Username,
		Email:           req.Email,
		Password:        req.Password,
		ConfirmPassword: req.ConfirmPassword,
	})
	if err != nil {
		RespondError(c, err)
		return
	}
	ah.registerLimiter.Reset(c.ClientIP())
	ah.audit.Record(c.Request.Context(), nil, services.ActionRegister, &user.ID, map[string]interface{}{
		"email": user.Email,
	}, c.ClientIP(), c.Request.UserAgent())
	RespondCreated(c, "registration successful", gin.H{
		"user":      newUserView(user),
		"token":     token,
		"expiresIn": int(ah.authService.TokenTTL().Seconds()),
	})
}

func (ah *AuthHandler) Login(c *gin.Context) {
	// Rejected attempts count against the window whether or not the
	// credentials were ever checked.
	if !ah.loginLimiter.IsAllowed(c.ClientIP()) {
		RespondError(c, apierr.RateLimited("too many login attempts, try again later"))
		return
	}
	var req struct {
		Email    string `json:"email"`
		Password string `json:"password"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		RespondError(c, apierr.Validation("invalid request body"))
		return
	}
	user, token, err := ah.authService.LoginUser(c.Request.Context(), req.Email, req.Password)
	if err != nil {
		RespondError(c, err)
		return
	}
	ah.loginLimiter.Reset(c.ClientIP())
	ah.audit.Record(c.Request.Context(), nil, services.ActionLogin, &user.ID, map[string]interface{}{
		"email": user.Email,
	}, c.ClientIP(), c.Request.UserAgent())
	RespondOK(c, "login successful", gin.H{
		"user":      newUserView(user),
		"token":     token,
		"expiresIn": int(ah.authService.TokenTTL().Seconds()),
	})
}

func (ah *AuthHandler) Me(c *gin.Context) {
	rd := requestDataOrAbort(c)
	if rd == nil {
		return
	}
	RespondOK(c, "ok", gin.H{"user": userView{ID: rd.UserID, Username: rd.Username, Email: rd.Email, Role: rd.Role}})
}
