package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/edugradelab/gradelab-backend/internal/logger"
	"github.com/edugradelab/gradelab-backend/internal/requestdata"
	"github.com/edugradelab/gradelab-backend/internal/services"
	"github.com/edugradelab/gradelab-backend/internal/types"
)

func newGatedRouter(t *testing.T) (*gin.Engine, services.AuthService) {
	t.Helper()
	gin.SetMode(gin.TestMode)
	auth := services.NewAuthService(nil, logger.NewNop(), nil, "test-secret", time.Hour)
	am := NewAuthMiddleware(logger.NewNop(), auth)

	router := gin.New()
	protected := router.Group("/", am.RequireAuth())
	protected.GET("/me", func(c *gin.Context) {
		rd := requestdata.GetRequestData(c.Request.Context())
		c.JSON(http.StatusOK, gin.H{"userId": rd.UserID, "role": rd.Role})
	})
	protected.GET("/admin", am.RequireRole(types.RoleAdmin), func(c *gin.Context) {
		c.Status(http.StatusOK)
	})
	return router, auth
}

func get(router *gin.Engine, path, token string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, path, nil)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func TestRequireAuth(t *testing.T) {
	router, auth := newGatedRouter(t)

	if w := get(router, "/me", ""); w.Code != http.StatusUnauthorized {
		t.Fatalf("no token: want=401 got=%d", w.Code)
	}
	if w := get(router, "/me", "garbage"); w.Code != http.StatusUnauthorized {
		t.Fatalf("bad token: want=401 got=%d", w.Code)
	}

	token, err := auth.CreateToken(&types.User{ID: 7, Email: "t@example.com", Username: "t", Role: types.RoleTeacher})
	if err != nil {
		t.Fatalf("CreateToken: %v", err)
	}
	if w := get(router, "/me", token); w.Code != http.StatusOK {
		t.Fatalf("valid token: want=200 got=%d body=%s", w.Code, w.Body.String())
	}
}

func TestRequireRole(t *testing.T) {
	router, auth := newGatedRouter(t)

	teacherToken, err := auth.CreateToken(&types.User{ID: 7, Role: types.RoleTeacher})
	if err != nil {
		t.Fatalf("CreateToken: %v", err)
	}
	if w := get(router, "/admin", teacherToken); w.Code != http.StatusForbidden {
		t.Fatalf("teacher on admin route: want=403 got=%d", w.Code)
	}

	adminToken, err := auth.CreateToken(&types.User{ID: 8, Role: types.RoleAdmin})
	if err != nil {
		t.Fatalf("CreateToken: %v", err)
	}
	if w := get(router, "/admin", adminToken); w.Code != http.StatusOK {
		t.Fatalf("admin on admin route: want=200 got=%d", w.Code)
	}
}
