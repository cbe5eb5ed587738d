package handler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/smallbiznis/valora-identity/internal/service"
)

type envelope struct {
	Status  string `json:"status"`
	Message string `json:"message"`
	Data    any    `json:"data,omitempty"`
}

func respondSuccess(c *gin.Context, status int, message string, data any) {
	c.JSON(status, envelope{Status: "success", Message: message, Data: data})
}

// respondError translates service failures into the response envelope.
// Validation failures render as 422 with one entry per violated field; typed
// API errors carry their own status; anything else gets the fallback.
func respondError(c *gin.Context, err error, fallbackStatus int, fallbackStatusText, fallbackMessage string) {
	var vErr *service.ValidationError
	if errors.As(err, &vErr) {
		c.JSON(http.StatusUnprocessableEntity, gin.H{"errors": vErr.Fields})
		return
	}

	var apiErr *service.APIError
	if errors.As(err, &apiErr) {
		c.JSON(apiErr.Status, envelope{Status: apiErr.StatusText, Message: apiErr.Message})
		return
	}

	c.JSON(fallbackStatus, envelope{Status: fallbackStatusText, Message: fallbackMessage})
}
