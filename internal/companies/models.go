package companies

import (
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/sabohub/sabohub/internal/users"
)

var (
	ErrCompanyNotFound      = users.ErrCompanyNotFound
	ErrDuplicateCompanyName = errors.New("company name already exists")
	ErrDetailTooLong        = errors.New("company detail is too long")
)

const maxDetailLength = 255

// Company is a tenant. Names are unique case-insensitively and immutable
// after creation.
type Company struct {
	ID           uuid.UUID `db:"id" json:"id"`
	Name         string    `db:"name" json:"name"`
	BusinessType string    `db:"business_type" json:"business_type"`
	ContactEmail string    `db:"contact_email" json:"contact_email"`
	ContactPhone string    `db:"contact_phone" json:"contact_phone"`
	Address      string    `db:"address" json:"address"`
	CreatedAt    time.Time `db:"created_at" json:"created_at"`
	UpdatedAt    time.Time `db:"updated_at" json:"updated_at"`
}

// Details holds the descriptive, mutable company fields.
type Details struct {
	BusinessType string
	ContactEmail string
	ContactPhone string
	Address      string
}
