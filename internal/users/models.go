package users

import (
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/sabohub/sabohub/internal/roles"
)

var (
	ErrUserNotFound            = errors.New("user not found")
	ErrCompanyNotFound         = errors.New("company not found")
	ErrNotMember               = errors.New("user is not an active member of this company")
	ErrInsufficientPermissions = errors.New("insufficient permissions")
	ErrDuplicateEmail          = errors.New("email already registered")
	ErrCEOAlreadyExists        = errors.New("company already has a CEO")
	ErrCannotDeactivateCEO     = errors.New("cannot deactivate the company CEO")
	ErrCannotModifySelf        = errors.New("cannot change your own active status")
	ErrUserInactive            = errors.New("user is inactive")
)

// User is an employee of exactly one company.
type User struct {
	ID        uuid.UUID  `db:"id" json:"id"`
	Email     string     `db:"email" json:"email"`
	FullName  *string    `db:"full_name" json:"full_name"`
	Role      roles.Role `db:"role" json:"role"`
	CompanyID uuid.UUID  `db:"company_id" json:"company_id"`
	IsActive  bool       `db:"is_active" json:"is_active"`
	CreatedAt time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt time.Time  `db:"updated_at" json:"updated_at"`
}

// IsCEO reports whether u currently holds the CEO role.
func (u *User) IsCEO() bool {
	return u.Role == roles.CEO
}

// NewUser is the input for inserting a user. Email and FullName are
// normalized by Insert; PasswordHash, when set, is already a bcrypt hash.
type NewUser struct {
	Email        string
	FullName     string
	PasswordHash string
	Role         roles.Role
	CompanyID    uuid.UUID
}
