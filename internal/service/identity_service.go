package service

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/smallbiznis/valora-identity/internal/domain"
	"github.com/smallbiznis/valora-identity/internal/password"
	"github.com/smallbiznis/valora-identity/internal/repository"
	"github.com/smallbiznis/valora-identity/internal/token"
)

// MembershipCache caches per-user organisation ID sets. A nil cache is valid
// and means every authorization check goes to the store.
type MembershipCache interface {
	Get(ctx context.Context, userID string) ([]string, bool, error)
	Set(ctx context.Context, userID string, orgIDs []string) error
	Invalidate(ctx context.Context, userID string) error
}

// IdentityService orchestrates registration, login, and membership-gated
// access to users and organisations.
type IdentityService struct {
	users       repository.UserRepository
	orgs        repository.OrganisationRepository
	memberships repository.MembershipRepository
	orgCache    MembershipCache
	hasher      *password.Hasher
	tokens      *token.Codec
	snowflake   *snowflake.Node
	logger      *zap.Logger
	tracer      trace.Tracer
}

// NewIdentityService wires dependencies.
func NewIdentityService(
	users repository.UserRepository,
	orgs repository.OrganisationRepository,
	memberships repository.MembershipRepository,
	orgCache MembershipCache,
	hasher *password.Hasher,
	tokens *token.Codec,
	node *snowflake.Node,
	logger *zap.Logger,
) *IdentityService {
	return &IdentityService{
		users:       users,
		orgs:        orgs,
		memberships: memberships,
		orgCache:    orgCache,
		hasher:      hasher,
		tokens:      tokens,
		snowflake:   node,
		logger:      logger,
		tracer:      otel.Tracer("github.com/smallbiznis/valora-identity/internal/service"),
	}
}

// Register creates the user, their default organisation, and the membership
// linking them, then issues an access token.
//
// The existence pre-check and the insert are not atomic; a concurrent
// registration for the same email loses on the users.email unique constraint
// and surfaces as the same duplicate failure.
func (s *IdentityService) Register(ctx context.Context, in RegisterInput) (AuthResult, error) {
	ctx, span := s.startSpan(ctx, "IdentityService.Register")
	defer span.End()

	if vErr := validateRegistration(in); vErr != nil {
		return AuthResult{}, vErr
	}

	normalized := normalizeEmail(in.Email)
	if _, err := s.users.GetByEmail(ctx, normalized); err == nil {
		return AuthResult{}, newAPIError(http.StatusBadRequest, "Bad Request", "User already exists")
	} else if !errors.Is(err, domain.ErrNotFound) {
		span.RecordError(err)
		return AuthResult{}, fmt.Errorf("check existing user: %w", err)
	}

	hashed, err := s.hasher.Hash(in.Password)
	if err != nil {
		span.RecordError(err)
		return AuthResult{}, fmt.Errorf("hash password: %w", err)
	}

	user := domain.User{
		ID:           uuid.NewString(),
		FirstName:    strings.TrimSpace(in.FirstName),
		LastName:     strings.TrimSpace(in.LastName),
		Email:        normalized,
		PasswordHash: hashed,
		Phone:        strings.TrimSpace(in.Phone),
	}

	created, err := s.users.Create(ctx, user)
	if err != nil {
		if errors.Is(err, domain.ErrDuplicateEmail) {
			return AuthResult{}, newAPIError(http.StatusBadRequest, "Bad Request", "User already exists")
		}
		span.RecordError(err)
		return AuthResult{}, fmt.Errorf("create user: %w", err)
	}

	org, err := s.orgs.Create(ctx, domain.Organisation{
		ID:          uuid.NewString(),
		Name:        fmt.Sprintf("%s's Organisation", created.FirstName),
		Description: fmt.Sprintf("%s's default organisation", created.FirstName),
	})
	if err != nil {
		span.RecordError(err)
		return AuthResult{}, fmt.Errorf("create default organisation: %w", err)
	}

	if err := s.addMembership(ctx, created.ID, org.ID); err != nil {
		span.RecordError(err)
		return AuthResult{}, err
	}

	accessToken, err := s.tokens.Issue(created.ID)
	if err != nil {
		span.RecordError(err)
		return AuthResult{}, fmt.Errorf("issue token: %w", err)
	}

	s.audit("register.success", "user_id", created.ID, "org_id", org.ID)
	return AuthResult{AccessToken: accessToken, User: newUserView(created)}, nil
}

// Login authenticates by email and password. Unknown email and wrong password
// are indistinguishable to the caller.
func (s *IdentityService) Login(ctx context.Context, email, pass string) (AuthResult, error) {
	ctx, span := s.startSpan(ctx, "IdentityService.Login")
	defer span.End()

	user, err := s.users.GetByEmail(ctx, normalizeEmail(email))
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return AuthResult{}, authenticationFailed()
		}
		span.RecordError(err)
		return AuthResult{}, fmt.Errorf("lookup user: %w", err)
	}

	valid, err := s.hasher.Verify(pass, user.PasswordHash)
	if err != nil || !valid {
		return AuthResult{}, authenticationFailed()
	}

	accessToken, err := s.tokens.Issue(user.ID)
	if err != nil {
		span.RecordError(err)
		return AuthResult{}, fmt.Errorf("issue token: %w", err)
	}

	s.audit("login.success", "user_id", user.ID)
	return AuthResult{AccessToken: accessToken, User: newUserView(user)}, nil
}

// GetUser returns the target user if the caller is the target or shares at
// least one organisation with them.
func (s *IdentityService) GetUser(ctx context.Context, callerID, targetID string) (UserView, error) {
	ctx, span := s.startSpan(ctx, "IdentityService.GetUser")
	defer span.End()

	target, err := s.users.GetByID(ctx, targetID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return UserView{}, newAPIError(http.StatusNotFound, "error", "User not found")
		}
		span.RecordError(err)
		return UserView{}, fmt.Errorf("load user: %w", err)
	}

	if callerID != targetID {
		shared, err := s.shareOrganisation(ctx, callerID, targetID)
		if err != nil {
			span.RecordError(err)
			return UserView{}, err
		}
		if !shared {
			return UserView{}, newAPIError(http.StatusForbidden, "Forbidden", "You do not have access to this user")
		}
	}

	return newUserView(target), nil
}

// Organisations lists the organisations the caller belongs to. Order is not
// meaningful.
func (s *IdentityService) Organisations(ctx context.Context, callerID string) ([]OrganisationView, error) {
	ctx, span := s.startSpan(ctx, "IdentityService.Organisations")
	defer span.End()

	orgs, err := s.memberships.ListOrganisationsForUser(ctx, callerID)
	if err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("list organisations: %w", err)
	}

	views := make([]OrganisationView, 0, len(orgs))
	for _, org := range orgs {
		views = append(views, newOrganisationView(org))
	}
	return views, nil
}

// GetOrganisation returns the organisation if the caller is a member.
// Non-members get the same not-found failure as a missing organisation so
// existence is not leaked.
func (s *IdentityService) GetOrganisation(ctx context.Context, callerID, orgID string) (OrganisationView, error) {
	ctx, span := s.startSpan(ctx, "IdentityService.GetOrganisation")
	defer span.End()

	member, err := s.memberships.Exists(ctx, callerID, orgID)
	if err != nil {
		span.RecordError(err)
		return OrganisationView{}, fmt.Errorf("check membership: %w", err)
	}
	if !member {
		return OrganisationView{}, organisationNotFound()
	}

	org, err := s.orgs.GetByID(ctx, orgID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return OrganisationView{}, organisationNotFound()
		}
		span.RecordError(err)
		return OrganisationView{}, fmt.Errorf("load organisation: %w", err)
	}

	return newOrganisationView(org), nil
}

// Members lists the users belonging to an organisation. Gated the same way as
// GetOrganisation: non-members get the not-found failure.
func (s *IdentityService) Members(ctx context.Context, callerID, orgID string) ([]UserView, error) {
	ctx, span := s.startSpan(ctx, "IdentityService.Members")
	defer span.End()

	member, err := s.memberships.Exists(ctx, callerID, orgID)
	if err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("check membership: %w", err)
	}
	if !member {
		return nil, organisationNotFound()
	}

	users, err := s.memberships.ListUsersInOrganisation(ctx, orgID)
	if err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("list organisation users: %w", err)
	}

	views := make([]UserView, 0, len(users))
	for _, user := range users {
		views = append(views, newUserView(user))
	}
	return views, nil
}

// CreateOrganisation creates an organisation on behalf of an authenticated
// caller. The caller is not enrolled automatically; memberships come from
// registration or AddMember.
func (s *IdentityService) CreateOrganisation(ctx context.Context, callerID, name, description string) (OrganisationView, error) {
	ctx, span := s.startSpan(ctx, "IdentityService.CreateOrganisation")
	defer span.End()

	if strings.TrimSpace(name) == "" {
		return OrganisationView{}, newAPIError(http.StatusBadRequest, "Bad Request", "Name is required")
	}

	org, err := s.orgs.Create(ctx, domain.Organisation{
		ID:          uuid.NewString(),
		Name:        strings.TrimSpace(name),
		Description: strings.TrimSpace(description),
	})
	if err != nil {
		span.RecordError(err)
		return OrganisationView{}, fmt.Errorf("create organisation: %w", err)
	}

	s.audit("organisation.created", "org_id", org.ID, "caller_id", callerID)
	return newOrganisationView(org), nil
}

// AddMember adds a user to an organisation. Any authenticated caller may add
// any existing user to any existing organisation; the operation is idempotent.
func (s *IdentityService) AddMember(ctx context.Context, orgID, userID string) error {
	ctx, span := s.startSpan(ctx, "IdentityService.AddMember")
	defer span.End()

	if _, err := s.orgs.GetByID(ctx, orgID); err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return organisationNotFound()
		}
		span.RecordError(err)
		return fmt.Errorf("load organisation: %w", err)
	}

	if _, err := s.users.GetByID(ctx, userID); err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return newAPIError(http.StatusNotFound, "error", "User not found")
		}
		span.RecordError(err)
		return fmt.Errorf("load user: %w", err)
	}

	if err := s.addMembership(ctx, userID, orgID); err != nil {
		span.RecordError(err)
		return err
	}

	s.audit("membership.added", "org_id", orgID, "user_id", userID)
	return nil
}

func (s *IdentityService) addMembership(ctx context.Context, userID, orgID string) error {
	membership := domain.Membership{
		ID:     s.snowflake.Generate().Int64(),
		UserID: userID,
		OrgID:  orgID,
	}
	if err := s.memberships.Add(ctx, membership); err != nil {
		return fmt.Errorf("add membership: %w", err)
	}

	if s.orgCache != nil {
		if err := s.orgCache.Invalidate(ctx, userID); err != nil {
			s.log().Warn("invalidate membership cache", zap.String("user_id", userID), zap.Error(err))
		}
	}
	return nil
}

func (s *IdentityService) shareOrganisation(ctx context.Context, callerID, targetID string) (bool, error) {
	callerOrgs, err := s.organisationIDs(ctx, callerID)
	if err != nil {
		return false, err
	}
	if len(callerOrgs) == 0 {
		return false, nil
	}

	targetOrgs, err := s.organisationIDs(ctx, targetID)
	if err != nil {
		return false, err
	}

	seen := make(map[string]struct{}, len(callerOrgs))
	for _, id := range callerOrgs {
		seen[id] = struct{}{}
	}
	for _, id := range targetOrgs {
		if _, ok := seen[id]; ok {
			return true, nil
		}
	}
	return false, nil
}

// organisationIDs resolves the org-ID set for a user, consulting the cache
// first. Cache failures degrade to store reads, never to request failures.
func (s *IdentityService) organisationIDs(ctx context.Context, userID string) ([]string, error) {
	if s.orgCache != nil {
		ids, hit, err := s.orgCache.Get(ctx, userID)
		if err != nil {
			s.log().Warn("membership cache read", zap.String("user_id", userID), zap.Error(err))
		} else if hit {
			return ids, nil
		}
	}

	orgs, err := s.memberships.ListOrganisationsForUser(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("list organisations for user: %w", err)
	}

	ids := make([]string, 0, len(orgs))
	for _, org := range orgs {
		ids = append(ids, org.ID)
	}

	if s.orgCache != nil {
		if err := s.orgCache.Set(ctx, userID, ids); err != nil {
			s.log().Warn("membership cache write", zap.String("user_id", userID), zap.Error(err))
		}
	}
	return ids, nil
}

func authenticationFailed() *APIError {
	return newAPIError(http.StatusUnauthorized, "Bad Request", "Authentication failed")
}

func organisationNotFound() *APIError {
	return newAPIError(http.StatusNotFound, "error", "Organisation not found")
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func (s *IdentityService) startSpan(ctx context.Context, name string) (context.Context, trace.Span) {
	if s == nil || s.tracer == nil {
		return ctx, trace.SpanFromContext(ctx)
	}
	return s.tracer.Start(ctx, name)
}

func (s *IdentityService) audit(event string, attrs ...any) {
	logger := s.log()
	if logger == nil {
		return
	}
	fields := make([]zap.Field, 0, len(attrs)/2+2)
	fields = append(fields, zap.String("event", event), zap.Time("timestamp", time.Now().UTC()))
	for i := 0; i+1 < len(attrs); i += 2 {
		key, ok := attrs[i].(string)
		if !ok {
			continue
		}
		fields = append(fields, zap.Any(key, attrs[i+1]))
	}
	logger.Info("audit", fields...)
}

func (s *IdentityService) log() *zap.Logger {
	if s != nil && s.logger != nil {
		return s.logger
	}
	return zap.L()
}
