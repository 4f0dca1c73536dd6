package users

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/sabohub/sabohub/internal/db"
	"github.com/sabohub/sabohub/internal/roles"
	"github.com/sabohub/sabohub/internal/validation"
)

const (
	constraintEmailUnique = "users_email_lower_key"
	constraintOneCEO      = "users_one_ceo_per_company"
	constraintUserCompany = "users_company_id_fkey"
	userColumns           = `id, email, full_name, role, company_id, is_active, created_at, updated_at`
)

func scanUser(row pgx.Row) (*User, error) {
	var u User
	if err := row.Scan(
		&u.ID,
		&u.Email,
		&u.FullName,
		&u.Role,
		&u.CompanyID,
		&u.IsActive,
		&u.CreatedAt,
		&u.UpdatedAt,
	); err != nil {
		return nil, err
	}
	return &u, nil
}

// Insert creates a user through q, which may be a transaction. CEO inserts
// pass through the uniqueness guard; the partial unique index backs it up.
func Insert(ctx context.Context, q db.Querier, nu NewUser) (*User, error) {
	email, err := validation.NormalizeEmail(nu.Email)
	if err != nil {
		return nil, err
	}
	fullName, err := validation.NormalizeFullName(nu.FullName)
	if err != nil {
		return nil, err
	}
	if !nu.Role.IsValid() {
		return nil, roles.ErrInvalidRole
	}

	if nu.Role == roles.CEO {
		if err := CheckCEOAssignment(ctx, q, nu.CompanyID, uuid.Nil); err != nil {
			return nil, err
		}
	}

	var passwordHash *string
	if nu.PasswordHash != "" {
		passwordHash = &nu.PasswordHash
	}

	user, err := scanUser(q.QueryRow(ctx, `
		INSERT INTO users (email, full_name, password_hash, role, company_id)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING `+userColumns,
		email, fullName, passwordHash, nu.Role, nu.CompanyID,
	))
	if err != nil {
		return nil, mapWriteError(err, "failed to create user")
	}

	return user, nil
}

// EmailTaken reports whether any user already uses email (case-insensitive).
func EmailTaken(ctx context.Context, q db.Querier, email string) (bool, error) {
	var taken bool
	err := q.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM users WHERE lower(email) = lower($1))`, email).Scan(&taken)
	if err != nil {
		return false, fmt.Errorf("failed to check email: %w", err)
	}
	return taken, nil
}

// Load fetches a user by ID.
func Load(ctx context.Context, q db.Querier, userID uuid.UUID) (*User, error) {
	user, err := scanUser(q.QueryRow(ctx, `SELECT `+userColumns+` FROM users WHERE id = $1`, userID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("failed to load user: %w", err)
	}
	return user, nil
}

// LoadForUpdate fetches a user by ID and locks the row until the enclosing
// transaction ends.
func LoadForUpdate(ctx context.Context, q db.Querier, userID uuid.UUID) (*User, error) {
	user, err := scanUser(q.QueryRow(ctx, `SELECT `+userColumns+` FROM users WHERE id = $1 FOR UPDATE`, userID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("failed to load user: %w", err)
	}
	return user, nil
}

// LoadMember fetches userID and checks that it is an active member of
// companyID. Non-members and inactive users get ErrNotMember.
func LoadMember(ctx context.Context, q db.Querier, userID, companyID uuid.UUID, forUpdate bool) (*User, error) {
	load := Load
	if forUpdate {
		load = LoadForUpdate
	}
	user, err := load(ctx, q, userID)
	if err != nil {
		if errors.Is(err, ErrUserNotFound) {
			return nil, ErrNotMember
		}
		return nil, err
	}
	if user.CompanyID != companyID || !user.IsActive {
		return nil, ErrNotMember
	}
	return user, nil
}

func setRole(ctx context.Context, q db.Querier, userID uuid.UUID, role roles.Role) error {
	tag, err := q.Exec(ctx, `UPDATE users SET role = $2, updated_at = NOW() WHERE id = $1`, userID, role)
	if err != nil {
		return mapWriteError(err, "failed to update role")
	}
	if tag.RowsAffected() == 0 {
		return ErrUserNotFound
	}
	return nil
}

func mapWriteError(err error, msg string) error {
	if constraint, ok := db.UniqueViolation(err); ok {
		switch constraint {
		case constraintEmailUnique:
			return ErrDuplicateEmail
		case constraintOneCEO:
			return ErrCEOAlreadyExists
		}
	}
	if constraint, ok := db.ForeignKeyViolation(err); ok && constraint == constraintUserCompany {
		return ErrCompanyNotFound
	}
	return fmt.Errorf("%s: %w", msg, db.Classify(err))
}
