package repository

import (
	"context"

	"github.com/smallbiznis/valora-identity/internal/domain"
)

// UserRepository exposes persistence for users. Lookups return
// domain.ErrNotFound for missing rows; Create returns domain.ErrDuplicateEmail
// when the email unique constraint rejects the insert.
type UserRepository interface {
	Create(ctx context.Context, user domain.User) (domain.User, error)
	GetByEmail(ctx context.Context, email string) (domain.User, error)
	GetByID(ctx context.Context, userID string) (domain.User, error)
}

// OrganisationRepository exposes persistence for organisations.
type OrganisationRepository interface {
	Create(ctx context.Context, org domain.Organisation) (domain.Organisation, error)
	GetByID(ctx context.Context, orgID string) (domain.Organisation, error)
}

// MembershipRepository manages the user/organisation junction. Add is
// idempotent: re-adding an existing (user, org) pair is a no-op.
type MembershipRepository interface {
	Add(ctx context.Context, membership domain.Membership) error
	Exists(ctx context.Context, userID, orgID string) (bool, error)
	ListOrganisationsForUser(ctx context.Context, userID string) ([]domain.Organisation, error)
	ListUsersInOrganisation(ctx context.Context, orgID string) ([]domain.User, error)
}
