package service

import "github.com/smallbiznis/valora-identity/internal/domain"

// RegisterInput holds the registration payload before validation.
type RegisterInput struct {
	FirstName string
	LastName  string
	Email     string
	Password  string
	Phone     string
}

// UserView is the public-safe projection of a user. It never carries the
// password hash.
type UserView struct {
	UserID    string `json:"userId"`
	FirstName string `json:"firstName"`
	LastName  string `json:"lastName"`
	Email     string `json:"email"`
	Phone     string `json:"phone"`
}

// OrganisationView is the public projection of an organisation.
type OrganisationView struct {
	OrgID       string `json:"orgId"`
	Name        string `json:"name"`
	Description string `json:"description"`
}

// AuthResult bundles a fresh access token with the authenticated user.
type AuthResult struct {
	AccessToken string   `json:"accessToken"`
	User        UserView `json:"user"`
}

func newUserView(user domain.User) UserView {
	return UserView{
		UserID:    user.ID,
		FirstName: user.FirstName,
		LastName:  user.LastName,
		Email:     user.Email,
		Phone:     user.Phone,
	}
}

func newOrganisationView(org domain.Organisation) OrganisationView {
	return OrganisationView{
		OrgID:       org.ID,
		Name:        org.Name,
		Description: org.Description,
	}
}
