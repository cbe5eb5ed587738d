package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/smallbiznis/valora-identity/internal/http/middleware"
	"github.com/smallbiznis/valora-identity/internal/service"
)

// OrganisationHandler exposes organisation reads, creation, and membership
// additions.
type OrganisationHandler struct {
	Identity *service.IdentityService
}

// NewOrganisationHandler wires dependencies.
func NewOrganisationHandler(identity *service.IdentityService) *OrganisationHandler {
	return &OrganisationHandler{Identity: identity}
}

func (h *OrganisationHandler) List(c *gin.Context) {
	callerID, ok := middleware.Subject(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, envelope{Status: "Unauthorized", Message: "Authentication required"})
		return
	}

	orgs, err := h.Identity.Organisations(c.Request.Context(), callerID)
	if err != nil {
		respondError(c, err, http.StatusInternalServerError, "error", "Failed to fetch organisations")
		return
	}

	respondSuccess(c, http.StatusOK, "Organisations fetched successfully", gin.H{"organisations": orgs})
}

func (h *OrganisationHandler) Get(c *gin.Context) {
	callerID, ok := middleware.Subject(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, envelope{Status: "Unauthorized", Message: "Authentication required"})
		return
	}

	org, err := h.Identity.GetOrganisation(c.Request.Context(), callerID, c.Param("orgId"))
	if err != nil {
		respondError(c, err, http.StatusInternalServerError, "error", "Failed to fetch organisation")
		return
	}

	respondSuccess(c, http.StatusOK, "Organisation fetched successfully", org)
}

func (h *OrganisationHandler) Create(c *gin.Context) {
	callerID, ok := middleware.Subject(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, envelope{Status: "Unauthorized", Message: "Authentication required"})
		return
	}

	var req struct {
		Name        string `json:"name"`
		Description string `json:"description"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, envelope{Status: "Bad Request", Message: "Name is required"})
		return
	}

	org, err := h.Identity.CreateOrganisation(c.Request.Context(), callerID, req.Name, req.Description)
	if err != nil {
		respondError(c, err, http.StatusInternalServerError, "error", "Failed to create organisation")
		return
	}

	respondSuccess(c, http.StatusCreated, "Organisation created successfully", org)
}

func (h *OrganisationHandler) ListUsers(c *gin.Context) {
	callerID, ok := middleware.Subject(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, envelope{Status: "Unauthorized", Message: "Authentication required"})
		return
	}

	users, err := h.Identity.Members(c.Request.Context(), callerID, c.Param("orgId"))
	if err != nil {
		respondError(c, err, http.StatusInternalServerError, "error", "Failed to fetch organisation users")
		return
	}

	respondSuccess(c, http.StatusOK, "Organisation users fetched successfully", gin.H{"users": users})
}

func (h *OrganisationHandler) AddUser(c *gin.Context) {
	var req struct {
		UserID string `json:"userId"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, envelope{Status: "Bad Request", Message: "userId is required"})
		return
	}

	if err := h.Identity.AddMember(c.Request.Context(), c.Param("orgId"), req.UserID); err != nil {
		respondError(c, err, http.StatusInternalServerError, "error", "Failed to add user to organisation")
		return
	}

	respondSuccess(c, http.StatusOK, "User added to organisation successfully", nil)
}
