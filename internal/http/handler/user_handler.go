package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/smallbiznis/valora-identity/internal/http/middleware"
	"github.com/smallbiznis/valora-identity/internal/service"
)

// UserHandler exposes membership-gated user reads.
type UserHandler struct {
	Identity *service.IdentityService
}

// NewUserHandler wires dependencies.
func NewUserHandler(identity *service.IdentityService) *UserHandler {
	return &UserHandler{Identity: identity}
}

func (h *UserHandler) GetUser(c *gin.Context) {
	callerID, ok := middleware.Subject(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, envelope{Status: "Unauthorized", Message: "Authentication required"})
		return
	}

	user, err := h.Identity.GetUser(c.Request.Context(), callerID, c.Param("id"))
	if err != nil {
		respondError(c, err, http.StatusInternalServerError, "error", "An error occurred while retrieving the user")
		return
	}

	respondSuccess(c, http.StatusOK, "User retrieved successfully", user)
}
