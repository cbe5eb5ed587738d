package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/smallbiznis/valora-identity/internal/domain"
)

// Compile-time interface assertions.
var (
	_ UserRepository         = (*PostgresUserRepo)(nil)
	_ OrganisationRepository = (*PostgresOrganisationRepo)(nil)
	_ MembershipRepository   = (*PostgresMembershipRepo)(nil)
)

const userColumns = `id, first_name, last_name, email, password_hash, phone, created_at, updated_at`

// PostgresUserRepo implements UserRepository on pgx.
type PostgresUserRepo struct {
	db *pgxpool.Pool
}

func NewPostgresUserRepo(pool *pgxpool.Pool) *PostgresUserRepo {
	return &PostgresUserRepo{db: pool}
}

const insertUserSQL = `INSERT INTO users (id, first_name, last_name, email, password_hash, phone)
VALUES ($1, $2, $3, $4, $5, $6)
RETURNING ` + userColumns

func (r *PostgresUserRepo) Create(ctx context.Context, user domain.User) (domain.User, error) {
	row := r.db.QueryRow(ctx, insertUserSQL,
		user.ID,
		user.FirstName,
		user.LastName,
		user.Email,
		user.PasswordHash,
		user.Phone,
	)

	created, err := scanUser(row)
	if err != nil {
		if isUniqueViolation(err) {
			return domain.User{}, domain.ErrDuplicateEmail
		}
		return domain.User{}, fmt.Errorf("create user: %w", err)
	}
	return created, nil
}

func (r *PostgresUserRepo) GetByEmail(ctx context.Context, email string) (domain.User, error) {
	row := r.db.QueryRow(ctx, `SELECT `+userColumns+` FROM users WHERE email = $1`, email)
	user, err := scanUser(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.User{}, domain.ErrNotFound
		}
		return domain.User{}, fmt.Errorf("get user by email: %w", err)
	}
	return user, nil
}

func (r *PostgresUserRepo) GetByID(ctx context.Context, userID string) (domain.User, error) {
	row := r.db.QueryRow(ctx, `SELECT `+userColumns+` FROM users WHERE id = $1`, userID)
	user, err := scanUser(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.User{}, domain.ErrNotFound
		}
		return domain.User{}, fmt.Errorf("get user by id: %w", err)
	}
	return user, nil
}

const orgColumns = `id, name, description, created_at, updated_at`

// PostgresOrganisationRepo implements OrganisationRepository on pgx.
type PostgresOrganisationRepo struct {
	db *pgxpool.Pool
}

func NewPostgresOrganisationRepo(pool *pgxpool.Pool) *PostgresOrganisationRepo {
	return &PostgresOrganisationRepo{db: pool}
}

const insertOrgSQL = `INSERT INTO organisations (id, name, description)
VALUES ($1, $2, $3)
RETURNING ` + orgColumns

func (r *PostgresOrganisationRepo) Create(ctx context.Context, org domain.Organisation) (domain.Organisation, error) {
	row := r.db.QueryRow(ctx, insertOrgSQL, org.ID, org.Name, org.Description)
	created, err := scanOrganisation(row)
	if err != nil {
		return domain.Organisation{}, fmt.Errorf("create organisation: %w", err)
	}
	return created, nil
}

func (r *PostgresOrganisationRepo) GetByID(ctx context.Context, orgID string) (domain.Organisation, error) {
	row := r.db.QueryRow(ctx, `SELECT `+orgColumns+` FROM organisations WHERE id = $1`, orgID)
	org, err := scanOrganisation(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.Organisation{}, domain.ErrNotFound
		}
		return domain.Organisation{}, fmt.Errorf("get organisation: %w", err)
	}
	return org, nil
}

// PostgresMembershipRepo implements MembershipRepository on pgx.
type PostgresMembershipRepo struct {
	db *pgxpool.Pool
}

func NewPostgresMembershipRepo(pool *pgxpool.Pool) *PostgresMembershipRepo {
	return &PostgresMembershipRepo{db: pool}
}

const insertMembershipSQL = `INSERT INTO user_organisations (id, user_id, org_id)
VALUES ($1, $2, $3)
ON CONFLICT (user_id, org_id) DO NOTHING`

func (r *PostgresMembershipRepo) Add(ctx context.Context, membership domain.Membership) error {
	if _, err := r.db.Exec(ctx, insertMembershipSQL, membership.ID, membership.UserID, membership.OrgID); err != nil {
		return fmt.Errorf("add membership: %w", err)
	}
	return nil
}

func (r *PostgresMembershipRepo) Exists(ctx context.Context, userID, orgID string) (bool, error) {
	var exists bool
	err := r.db.QueryRow(ctx,
		`SELECT EXISTS (SELECT 1 FROM user_organisations WHERE user_id = $1 AND org_id = $2)`,
		userID, orgID,
	).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("membership exists: %w", err)
	}
	return exists, nil
}

func (r *PostgresMembershipRepo) ListOrganisationsForUser(ctx context.Context, userID string) ([]domain.Organisation, error) {
	rows, err := r.db.Query(ctx, `
SELECT o.id, o.name, o.description, o.created_at, o.updated_at
FROM organisations o
JOIN user_organisations uo ON uo.org_id = o.id
WHERE uo.user_id = $1`, userID)
	if err != nil {
		return nil, fmt.Errorf("list organisations for user: %w", err)
	}
	defer rows.Close()

	var orgs []domain.Organisation
	for rows.Next() {
		org, err := scanOrganisation(rows)
		if err != nil {
			return nil, fmt.Errorf("scan organisation: %w", err)
		}
		orgs = append(orgs, org)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list organisations for user: %w", err)
	}
	return orgs, nil
}

func (r *PostgresMembershipRepo) ListUsersInOrganisation(ctx context.Context, orgID string) ([]domain.User, error) {
	rows, err := r.db.Query(ctx, `
SELECT u.id, u.first_name, u.last_name, u.email, u.password_hash, u.phone, u.created_at, u.updated_at
FROM users u
JOIN user_organisations uo ON uo.user_id = u.id
WHERE uo.org_id = $1`, orgID)
	if err != nil {
		return nil, fmt.Errorf("list users in organisation: %w", err)
	}
	defer rows.Close()

	var users []domain.User
	for rows.Next() {
		user, err := scanUser(rows)
		if err != nil {
			return nil, fmt.Errorf("scan user: %w", err)
		}
		users = append(users, user)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list users in organisation: %w", err)
	}
	return users, nil
}

func scanUser(row pgx.Row) (domain.User, error) {
	var user domain.User
	err := row.Scan(
		&user.ID,
		&user.FirstName,
		&user.LastName,
		&user.Email,
		&user.PasswordHash,
		&user.Phone,
		&user.CreatedAt,
		&user.UpdatedAt,
	)
	return user, err
}

func scanOrganisation(row pgx.Row) (domain.Organisation, error) {
	var org domain.Organisation
	err := row.Scan(
		&org.ID,
		&org.Name,
		&org.Description,
		&org.CreatedAt,
		&org.UpdatedAt,
	)
	return org, err
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == pgerrcode.UniqueViolation
}
