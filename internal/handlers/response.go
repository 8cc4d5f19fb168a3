package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/edugradelab/gradelab-backend/internal/apierr"
	"github.com/edugradelab/gradelab-backend/internal/requestdata"
)

// Envelope is the response shape every endpoint returns. Failure
// responses always carry a human-readable message and never a stack
// trace.
type Envelope struct {
	Success bool        `json:"success"`
	Message string      `json:"message"`
	Data    interface{} `json:"data,omitempty"`
}

func RespondOK(c *gin.Context, message string, data interface{}) {
	c.JSON(http.StatusOK, Envelope{Success: true, Message: message, Data: data})
}

func RespondCreated(c *gin.Context, message string, data interface{}) {
	c.JSON(http.StatusCreated, Envelope{Success: true, Message: message, Data: data})
}

func RespondError(c *gin.Context, err error) {
	ae := apierr.From(err)
	msg := ae.Error()
	if ae.Status >= http.StatusInternalServerError {
		msg = "internal server error"
	}
	c.JSON(ae.Status, Envelope{Success: false, Message: msg})
}

// ListMeta carries pagination totals alongside list payloads.
type ListMeta struct {
	Total int64 `json:"total"`
	Page  int   `json:"page"`
	Limit int   `json:"limit"`
}

// requestDataOrAbort pulls the authenticated caller from the request
// context. Routes behind RequireAuth always have one; a nil return
// means the response has already been written.
func requestDataOrAbort(c *gin.Context) *requestdata.RequestData {
	rd := requestdata.GetRequestData(c.Request.Context())
	if rd == nil {
		c.AbortWithStatusJSON(http.StatusUnauthorized, Envelope{Success: false, Message: "missing or invalid token"})
		return nil
	}
	return rd
}
