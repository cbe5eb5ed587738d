package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/smallbiznis/valora-identity/internal/service"
)

// AuthHandler exposes registration and login. Both endpoints issue the token
// themselves and therefore sit outside the auth middleware.
type AuthHandler struct {
	Identity *service.IdentityService
}

// NewAuthHandler wires dependencies.
func NewAuthHandler(identity *service.IdentityService) *AuthHandler {
	return &AuthHandler{Identity: identity}
}

func (h *AuthHandler) Register(c *gin.Context) {
	var req struct {
		FirstName string `json:"firstName"`
		LastName  string `json:"lastName"`
		Email     string `json:"email"`
		Password  string `json:"password"`
		Phone     string `json:"phone"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, envelope{Status: "Bad Request", Message: "Registration unsuccessful"})
		return
	}

	result, err := h.Identity.Register(c.Request.Context(), service.RegisterInput{
		FirstName: req.FirstName,
		LastName:  req.LastName,
		Email:     req.Email,
		Password:  req.Password,
		Phone:     req.Phone,
	})
	if err != nil {
		respondError(c, err, http.StatusBadRequest, "Bad Request", "Registration unsuccessful")
		return
	}

	respondSuccess(c, http.StatusCreated, "Registration successful", result)
}

func (h *AuthHandler) Login(c *gin.Context) {
	var req struct {
		Email    string `json:"email"`
		Password string `json:"password"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusUnauthorized, envelope{Status: "Bad Request", Message: "Authentication failed"})
		return
	}

	result, err := h.Identity.Login(c.Request.Context(), req.Email, req.Password)
	if err != nil {
		respondError(c, err, http.StatusInternalServerError, "Bad Request", "Server Error")
		return
	}

	respondSuccess(c, http.StatusOK, "Login successful", result)
}
