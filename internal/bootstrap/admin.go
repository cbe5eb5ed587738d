package bootstrap

import (
	"context"
	"errors"
	"fmt"

	"github.com/bwmarrin/snowflake"
	"github.com/google/uuid"
	"go.uber.org/fx"
	"go.uber.org/zap"

	"github.com/smallbiznis/valora-identity/internal/config"
	"github.com/smallbiznis/valora-identity/internal/domain"
	"github.com/smallbiznis/valora-identity/internal/password"
	"github.com/smallbiznis/valora-identity/internal/repository"
)

// EnsureAdmin seeds an admin user with a personal organisation for dev/e2e
// environments. Skipped when ADMIN_EMAIL is not configured.
func EnsureAdmin(
	lc fx.Lifecycle,
	cfg config.Config,
	users repository.UserRepository,
	orgs repository.OrganisationRepository,
	memberships repository.MembershipRepository,
	hasher *password.Hasher,
	node *snowflake.Node,
	logger *zap.Logger,
) {
	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			return ensureAdmin(ctx, cfg, users, orgs, memberships, hasher, node, logger)
		},
	})
}

func ensureAdmin(
	ctx context.Context,
	cfg config.Config,
	users repository.UserRepository,
	orgs repository.OrganisationRepository,
	memberships repository.MembershipRepository,
	hasher *password.Hasher,
	node *snowflake.Node,
	logger *zap.Logger,
) error {
	if cfg.AdminEmail == "" {
		return nil
	}

	if _, err := users.GetByEmail(ctx, cfg.AdminEmail); err == nil {
		return nil
	} else if !errors.Is(err, domain.ErrNotFound) {
		return fmt.Errorf("bootstrap lookup user: %w", err)
	}

	hashed, err := hasher.Hash(cfg.AdminPassword)
	if err != nil {
		return fmt.Errorf("bootstrap hash password: %w", err)
	}

	created, err := users.Create(ctx, domain.User{
		ID:           uuid.NewString(),
		FirstName:    "Admin",
		LastName:     "User",
		Email:        cfg.AdminEmail,
		PasswordHash: hashed,
	})
	if err != nil {
		return fmt.Errorf("bootstrap create user: %w", err)
	}

	org, err := orgs.Create(ctx, domain.Organisation{
		ID:          uuid.NewString(),
		Name:        "Admin's Organisation",
		Description: "Admin's default organisation",
	})
	if err != nil {
		return fmt.Errorf("bootstrap create organisation: %w", err)
	}

	membership := domain.Membership{
		ID:     node.Generate().Int64(),
		UserID: created.ID,
		OrgID:  org.ID,
	}
	if err := memberships.Add(ctx, membership); err != nil {
		return fmt.Errorf("bootstrap add membership: %w", err)
	}

	if logger != nil {
		logger.Info("bootstrap admin user created",
			zap.String("email", created.Email),
			zap.String("user_id", created.ID),
			zap.String("org_id", org.ID),
		)
	}
	return nil
}
