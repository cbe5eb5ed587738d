package service_test

import (
	"context"
	"net/http"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/smallbiznis/valora-identity/internal/domain"
	"github.com/smallbiznis/valora-identity/internal/password"
	"github.com/smallbiznis/valora-identity/internal/service"
	"github.com/smallbiznis/valora-identity/internal/token"
)

var testSecret = []byte("0123456789abcdef0123456789abcdef")

func newTestService(t *testing.T) (*service.IdentityService, *memoryStore) {
	t.Helper()

	store := newMemoryStore()
	hasher := password.NewHasher(password.Params{Time: 1, Memory: 16 * 1024})
	codec := token.NewCodec(testSecret, time.Hour)
	node, err := snowflake.NewNode(1)
	require.NoError(t, err)

	svc := service.NewIdentityService(
		store.users(),
		store.orgs(),
		store.memberships(),
		nil,
		hasher,
		codec,
		node,
		zap.NewNop(),
	)
	return svc, store
}

func register(t *testing.T, svc *service.IdentityService, firstName, email string) service.AuthResult {
	t.Helper()
	result, err := svc.Register(context.Background(), service.RegisterInput{
		FirstName: firstName,
		LastName:  "Tester",
		Email:     email,
		Password:  "password1",
		Phone:     "1234567890",
	})
	require.NoError(t, err)
	return result
}

func TestRegisterCreatesDefaultOrganisation(t *testing.T) {
	svc, store := newTestService(t)

	result, err := svc.Register(context.Background(), service.RegisterInput{
		FirstName: "A",
		LastName:  "B",
		Email:     "a@x.com",
		Password:  "password1",
		Phone:     "1234567890",
	})
	require.NoError(t, err)
	require.NotEmpty(t, result.AccessToken)
	require.Equal(t, "a@x.com", result.User.Email)
	require.NotEmpty(t, result.User.UserID)

	// Token subject is the new user's ID.
	codec := token.NewCodec(testSecret, time.Hour)
	subject, err := codec.Verify(result.AccessToken)
	require.NoError(t, err)
	require.Equal(t, result.User.UserID, subject)

	// Stored hash verifies against the original plaintext; plaintext is gone.
	stored := store.userByEmail(t, "a@x.com")
	require.NotEqual(t, "password1", stored.PasswordHash)
	hasher := password.NewHasher(password.DefaultParams())
	ok, err := hasher.Verify("password1", stored.PasswordHash)
	require.NoError(t, err)
	require.True(t, ok)

	// Default organisation exists and is linked to the new user.
	orgs, err := svc.Organisations(context.Background(), result.User.UserID)
	require.NoError(t, err)
	require.Len(t, orgs, 1)
	require.Equal(t, "A's Organisation", orgs[0].Name)
}

func TestRegisterDuplicateEmail(t *testing.T) {
	svc, store := newTestService(t)

	first := register(t, svc, "A", "a@x.com")

	_, err := svc.Register(context.Background(), service.RegisterInput{
		FirstName: "Other",
		LastName:  "Person",
		Email:     "a@x.com",
		Password:  "password1",
	})
	var apiErr *service.APIError
	require.ErrorAs(t, err, &apiErr)
	require.Equal(t, http.StatusBadRequest, apiErr.Status)
	require.Equal(t, "User already exists", apiErr.Message)

	// First user's record is unchanged.
	stored := store.userByEmail(t, "a@x.com")
	require.Equal(t, first.User.UserID, stored.ID)
	require.Equal(t, "A", stored.FirstName)
}

func TestRegisterValidation(t *testing.T) {
	svc, _ := newTestService(t)

	_, err := svc.Register(context.Background(), service.RegisterInput{
		FirstName: "A1",
		LastName:  "",
		Email:     "not-an-email",
		Password:  "short",
		Phone:     "call-me",
	})

	var vErr *service.ValidationError
	require.ErrorAs(t, err, &vErr)

	byField := make(map[string]string, len(vErr.Fields))
	for _, f := range vErr.Fields {
		byField[f.Field] = f.Message
	}
	require.Equal(t, "First name must contain only letters and spaces", byField["firstName"])
	require.Equal(t, "Last name is required", byField["lastName"])
	require.Equal(t, "Email must be a valid email address", byField["email"])
	require.Equal(t, "Password must be at least 8 characters long", byField["password"])
	require.Contains(t, byField["phone"], "Phone number")
	require.Len(t, vErr.Fields, 5)
}

func TestLogin(t *testing.T) {
	svc, _ := newTestService(t)
	registered := register(t, svc, "A", "a@x.com")

	result, err := svc.Login(context.Background(), "a@x.com", "password1")
	require.NoError(t, err)
	require.Equal(t, registered.User.UserID, result.User.UserID)

	codec := token.NewCodec(testSecret, time.Hour)
	subject, err := codec.Verify(result.AccessToken)
	require.NoError(t, err)
	require.Equal(t, registered.User.UserID, subject)
}

func TestLoginFailuresAreIndistinguishable(t *testing.T) {
	svc, _ := newTestService(t)
	register(t, svc, "A", "a@x.com")

	_, wrongPassword := svc.Login(context.Background(), "a@x.com", "wrong-password")
	_, unknownEmail := svc.Login(context.Background(), "nobody@x.com", "password1")

	var pwErr, emailErr *service.APIError
	require.ErrorAs(t, wrongPassword, &pwErr)
	require.ErrorAs(t, unknownEmail, &emailErr)
	require.Equal(t, *pwErr, *emailErr)
	require.Equal(t, http.StatusUnauthorized, pwErr.Status)
	require.Equal(t, "Authentication failed", pwErr.Message)
}

func TestGetUserSelf(t *testing.T) {
	svc, _ := newTestService(t)
	registered := register(t, svc, "A", "a@x.com")

	view, err := svc.GetUser(context.Background(), registered.User.UserID, registered.User.UserID)
	require.NoError(t, err)
	require.Equal(t, "a@x.com", view.Email)
}

func TestGetUserSharedOrganisation(t *testing.T) {
	svc, _ := newTestService(t)
	alice := register(t, svc, "Alice", "alice@x.com")
	bob := register(t, svc, "Bob", "bob@x.com")

	// Disjoint orgs after registration.
	_, err := svc.GetUser(context.Background(), alice.User.UserID, bob.User.UserID)
	var apiErr *service.APIError
	require.ErrorAs(t, err, &apiErr)
	require.Equal(t, http.StatusForbidden, apiErr.Status)

	// Adding Bob to Alice's default org grants visibility both ways.
	orgs, err := svc.Organisations(context.Background(), alice.User.UserID)
	require.NoError(t, err)
	require.NoError(t, svc.AddMember(context.Background(), orgs[0].OrgID, bob.User.UserID))

	view, err := svc.GetUser(context.Background(), alice.User.UserID, bob.User.UserID)
	require.NoError(t, err)
	require.Equal(t, "bob@x.com", view.Email)

	view, err = svc.GetUser(context.Background(), bob.User.UserID, alice.User.UserID)
	require.NoError(t, err)
	require.Equal(t, "alice@x.com", view.Email)
}

func TestGetUserNotFound(t *testing.T) {
	svc, _ := newTestService(t)
	registered := register(t, svc, "A", "a@x.com")

	_, err := svc.GetUser(context.Background(), registered.User.UserID, "missing-id")
	var apiErr *service.APIError
	require.ErrorAs(t, err, &apiErr)
	require.Equal(t, http.StatusNotFound, apiErr.Status)
}

func TestGetOrganisationHidesNonMemberOrgs(t *testing.T) {
	svc, _ := newTestService(t)
	alice := register(t, svc, "Alice", "alice@x.com")
	bob := register(t, svc, "Bob", "bob@x.com")

	aliceOrgs, err := svc.Organisations(context.Background(), alice.User.UserID)
	require.NoError(t, err)

	view, err := svc.GetOrganisation(context.Background(), alice.User.UserID, aliceOrgs[0].OrgID)
	require.NoError(t, err)
	require.Equal(t, "Alice's Organisation", view.Name)

	// Existing org, wrong caller: indistinguishable from a missing org.
	_, memberErr := svc.GetOrganisation(context.Background(), bob.User.UserID, aliceOrgs[0].OrgID)
	_, missingErr := svc.GetOrganisation(context.Background(), bob.User.UserID, "missing-org")

	var forbidden, missing *service.APIError
	require.ErrorAs(t, memberErr, &forbidden)
	require.ErrorAs(t, missingErr, &missing)
	require.Equal(t, *forbidden, *missing)
	require.Equal(t, http.StatusNotFound, forbidden.Status)
}

func TestMembers(t *testing.T) {
	svc, _ := newTestService(t)
	alice := register(t, svc, "Alice", "alice@x.com")
	bob := register(t, svc, "Bob", "bob@x.com")

	orgs, err := svc.Organisations(context.Background(), alice.User.UserID)
	require.NoError(t, err)
	orgID := orgs[0].OrgID

	// Non-members get the same not-found failure as a missing org.
	_, err = svc.Members(context.Background(), bob.User.UserID, orgID)
	var apiErr *service.APIError
	require.ErrorAs(t, err, &apiErr)
	require.Equal(t, http.StatusNotFound, apiErr.Status)
	require.Equal(t, "Organisation not found", apiErr.Message)

	members, err := svc.Members(context.Background(), alice.User.UserID, orgID)
	require.NoError(t, err)
	require.Len(t, members, 1)
	require.Equal(t, "alice@x.com", members[0].Email)

	require.NoError(t, svc.AddMember(context.Background(), orgID, bob.User.UserID))
	members, err = svc.Members(context.Background(), alice.User.UserID, orgID)
	require.NoError(t, err)
	require.Len(t, members, 2)
}

func TestCreateOrganisation(t *testing.T) {
	svc, _ := newTestService(t)
	alice := register(t, svc, "Alice", "alice@x.com")

	org, err := svc.CreateOrganisation(context.Background(), alice.User.UserID, "Acme", "widgets")
	require.NoError(t, err)
	require.Equal(t, "Acme", org.Name)

	// The creator is not enrolled automatically; reads require an explicit
	// membership.
	_, err = svc.GetOrganisation(context.Background(), alice.User.UserID, org.OrgID)
	var apiErr *service.APIError
	require.ErrorAs(t, err, &apiErr)
	require.Equal(t, http.StatusNotFound, apiErr.Status)

	require.NoError(t, svc.AddMember(context.Background(), org.OrgID, alice.User.UserID))
	view, err := svc.GetOrganisation(context.Background(), alice.User.UserID, org.OrgID)
	require.NoError(t, err)
	require.Equal(t, "Acme", view.Name)
}

func TestCreateOrganisationRequiresName(t *testing.T) {
	svc, _ := newTestService(t)
	alice := register(t, svc, "Alice", "alice@x.com")

	_, err := svc.CreateOrganisation(context.Background(), alice.User.UserID, "   ", "")
	var apiErr *service.APIError
	require.ErrorAs(t, err, &apiErr)
	require.Equal(t, http.StatusBadRequest, apiErr.Status)
	require.Equal(t, "Name is required", apiErr.Message)
}

func TestAddMemberIsIdempotent(t *testing.T) {
	svc, store := newTestService(t)
	alice := register(t, svc, "Alice", "alice@x.com")
	bob := register(t, svc, "Bob", "bob@x.com")

	orgs, err := svc.Organisations(context.Background(), alice.User.UserID)
	require.NoError(t, err)
	orgID := orgs[0].OrgID

	require.NoError(t, svc.AddMember(context.Background(), orgID, bob.User.UserID))
	require.NoError(t, svc.AddMember(context.Background(), orgID, bob.User.UserID))
	require.Equal(t, 1, store.membershipCount(bob.User.UserID, orgID))
}

func TestAddMemberMissingTargets(t *testing.T) {
	svc, _ := newTestService(t)
	alice := register(t, svc, "Alice", "alice@x.com")

	orgs, err := svc.Organisations(context.Background(), alice.User.UserID)
	require.NoError(t, err)

	var apiErr *service.APIError

	err = svc.AddMember(context.Background(), "missing-org", alice.User.UserID)
	require.ErrorAs(t, err, &apiErr)
	require.Equal(t, "Organisation not found", apiErr.Message)

	err = svc.AddMember(context.Background(), orgs[0].OrgID, "missing-user")
	require.ErrorAs(t, err, &apiErr)
	require.Equal(t, "User not found", apiErr.Message)
}

func TestMembershipCacheInvalidation(t *testing.T) {
	store := newMemoryStore()
	fake := &fakeCache{entries: make(map[string][]string)}
	hasher := password.NewHasher(password.Params{Time: 1, Memory: 16 * 1024})
	codec := token.NewCodec(testSecret, time.Hour)
	node, err := snowflake.NewNode(1)
	require.NoError(t, err)

	svc := service.NewIdentityService(
		store.users(), store.orgs(), store.memberships(),
		fake, hasher, codec, node, zap.NewNop(),
	)

	alice := register(t, svc, "Alice", "alice@x.com")
	bob := register(t, svc, "Bob", "bob@x.com")

	// A forbidden lookup populates both users' cache entries.
	_, err = svc.GetUser(context.Background(), alice.User.UserID, bob.User.UserID)
	require.Error(t, err)
	require.Contains(t, fake.entries, alice.User.UserID)
	require.Contains(t, fake.entries, bob.User.UserID)

	// Membership writes invalidate the affected user so the next check sees
	// the new org.
	orgs, err := svc.Organisations(context.Background(), alice.User.UserID)
	require.NoError(t, err)
	require.NoError(t, svc.AddMember(context.Background(), orgs[0].OrgID, bob.User.UserID))
	require.NotContains(t, fake.entries, bob.User.UserID)

	_, err = svc.GetUser(context.Background(), alice.User.UserID, bob.User.UserID)
	require.NoError(t, err)
}

type memoryStore struct {
	usersByID   map[string]domain.User
	orgsByID    map[string]domain.Organisation
	members     map[string]domain.Membership
	memberCount map[string]int
}

func newMemoryStore() *memoryStore {
	return &memoryStore{
		usersByID:   make(map[string]domain.User),
		orgsByID:    make(map[string]domain.Organisation),
		members:     make(map[string]domain.Membership),
		memberCount: make(map[string]int),
	}
}

func (s *memoryStore) users() *memoryUserRepo             { return &memoryUserRepo{store: s} }
func (s *memoryStore) orgs() *memoryOrgRepo               { return &memoryOrgRepo{store: s} }
func (s *memoryStore) memberships() *memoryMembershipRepo { return &memoryMembershipRepo{store: s} }

func (s *memoryStore) userByEmail(t *testing.T, email string) domain.User {
	t.Helper()
	for _, user := range s.usersByID {
		if user.Email == email {
			return user
		}
	}
	t.Fatalf("user %s not found", email)
	return domain.User{}
}

func (s *memoryStore) membershipCount(userID, orgID string) int {
	return s.memberCount[userID+"|"+orgID]
}

type memoryUserRepo struct {
	store *memoryStore
}

func (r *memoryUserRepo) Create(ctx context.Context, user domain.User) (domain.User, error) {
	for _, existing := range r.store.usersByID {
		if existing.Email == user.Email {
			return domain.User{}, domain.ErrDuplicateEmail
		}
	}
	user.CreatedAt = time.Now()
	user.UpdatedAt = user.CreatedAt
	r.store.usersByID[user.ID] = user
	return user, nil
}

func (r *memoryUserRepo) GetByEmail(ctx context.Context, email string) (domain.User, error) {
	for _, user := range r.store.usersByID {
		if user.Email == email {
			return user, nil
		}
	}
	return domain.User{}, domain.ErrNotFound
}

func (r *memoryUserRepo) GetByID(ctx context.Context, userID string) (domain.User, error) {
	user, ok := r.store.usersByID[userID]
	if !ok {
		return domain.User{}, domain.ErrNotFound
	}
	return user, nil
}

type memoryOrgRepo struct {
	store *memoryStore
}

func (r *memoryOrgRepo) Create(ctx context.Context, org domain.Organisation) (domain.Organisation, error) {
	org.CreatedAt = time.Now()
	org.UpdatedAt = org.CreatedAt
	r.store.orgsByID[org.ID] = org
	return org, nil
}

func (r *memoryOrgRepo) GetByID(ctx context.Context, orgID string) (domain.Organisation, error) {
	org, ok := r.store.orgsByID[orgID]
	if !ok {
		return domain.Organisation{}, domain.ErrNotFound
	}
	return org, nil
}

type memoryMembershipRepo struct {
	store *memoryStore
}

func (r *memoryMembershipRepo) Add(ctx context.Context, membership domain.Membership) error {
	key := membership.UserID + "|" + membership.OrgID
	if _, ok := r.store.members[key]; ok {
		return nil
	}
	r.store.memberCount[key]++
	membership.CreatedAt = time.Now()
	r.store.members[key] = membership
	return nil
}

func (r *memoryMembershipRepo) Exists(ctx context.Context, userID, orgID string) (bool, error) {
	_, ok := r.store.members[userID+"|"+orgID]
	return ok, nil
}

func (r *memoryMembershipRepo) ListOrganisationsForUser(ctx context.Context, userID string) ([]domain.Organisation, error) {
	var orgs []domain.Organisation
	for _, m := range r.store.members {
		if m.UserID == userID {
			orgs = append(orgs, r.store.orgsByID[m.OrgID])
		}
	}
	return orgs, nil
}

func (r *memoryMembershipRepo) ListUsersInOrganisation(ctx context.Context, orgID string) ([]domain.User, error) {
	var users []domain.User
	for _, m := range r.store.members {
		if m.OrgID == orgID {
			users = append(users, r.store.usersByID[m.UserID])
		}
	}
	return users, nil
}

type fakeCache struct {
	entries map[string][]string
}

func (f *fakeCache) Get(ctx context.Context, userID string) ([]string, bool, error) {
	ids, ok := f.entries[userID]
	return ids, ok, nil
}

func (f *fakeCache) Set(ctx context.Context, userID string, orgIDs []string) error {
	f.entries[userID] = orgIDs
	return nil
}

func (f *fakeCache) Invalidate(ctx context.Context, userID string) error {
	delete(f.entries, userID)
	return nil
}
