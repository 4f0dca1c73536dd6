package invitations

import (
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/sabohub/sabohub/internal/roles"
	"github.com/sabohub/sabohub/internal/users"
)

var (
	ErrInvitationNotFound           = errors.New("invitation not found")
	ErrInvitationExpiredOrExhausted = errors.New("invitation expired or exhausted")
	ErrInvitationExpired            = fmt.Errorf("%w: expired", ErrInvitationExpiredOrExhausted)
	ErrInvitationExhausted          = fmt.Errorf("%w: usage limit reached", ErrInvitationExpiredOrExhausted)
	ErrInvalidLimit                 = errors.New("usage limit must be a positive integer")
	ErrInvalidTTL                   = errors.New("invitation lifetime must be positive")
	ErrRateLimited                  = errors.New("too many invitations created recently")
	ErrCodeGeneration               = errors.New("could not allocate a unique invitation code")

	ErrInvalidRole             = roles.ErrInvalidRole
	ErrDuplicateEmail          = users.ErrDuplicateEmail
	ErrNotMember               = users.ErrNotMember
	ErrInsufficientPermissions = users.ErrInsufficientPermissions
)

// Status is the computed redeemability of an invitation.
type Status string

const (
	StatusActive    Status = "ACTIVE"
	StatusExhausted Status = "EXHAUSTED"
	StatusExpired   Status = "EXPIRED"
)

// Invitation grants a subordinate role in one company to whoever presents
// its code, up to UsageLimit times before ExpiresAt.
type Invitation struct {
	ID         uuid.UUID  `db:"id" json:"id"`
	CompanyID  uuid.UUID  `db:"company_id" json:"company_id"`
	CreatedBy  uuid.UUID  `db:"created_by" json:"created_by"`
	Code       string     `db:"invitation_code" json:"invitation_code"`
	RoleType   roles.Role `db:"role_type" json:"role_type"`
	UsageLimit int        `db:"usage_limit" json:"usage_limit"`
	UsedCount  int        `db:"used_count" json:"used_count"`
	IsUsed     bool       `db:"is_used" json:"is_used"`
	ExpiresAt  time.Time  `db:"expires_at" json:"expires_at"`
	CreatedAt  time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt  time.Time  `db:"updated_at" json:"updated_at"`
}

// StatusAt reports the invitation status at now. Exhaustion wins over expiry.
func (i *Invitation) StatusAt(now time.Time) Status {
	if i.IsUsed || i.UsedCount >= i.UsageLimit {
		return StatusExhausted
	}
	if !now.Before(i.ExpiresAt) {
		return StatusExpired
	}
	return StatusActive
}

// Redeemable reports whether the invitation can be redeemed at now.
func (i *Invitation) Redeemable(now time.Time) bool {
	return i.StatusAt(now) == StatusActive
}

// RemainingUses is the number of redemptions left, ignoring expiry.
func (i *Invitation) RemainingUses() int {
	if i.UsedCount >= i.UsageLimit {
		return 0
	}
	return i.UsageLimit - i.UsedCount
}

func (i *Invitation) checkRedeemable(now time.Time) error {
	switch i.StatusAt(now) {
	case StatusExhausted:
		return ErrInvitationExhausted
	case StatusExpired:
		return ErrInvitationExpired
	}
	return nil
}

// ListItem is an invitation as shown to company managers.
type ListItem struct {
	Invitation
	Status         Status `json:"status"`
	CreatedByEmail string `json:"created_by_email"`
}

// CreateParams are the inputs to CreateInvitation. A zero TTL is rejected;
// callers wanting the default lifetime use Policy.DefaultTTL.
type CreateParams struct {
	CompanyID  uuid.UUID
	CreatedBy  uuid.UUID
	RoleType   roles.Role
	UsageLimit int
	TTL        time.Duration
}

// Policy bounds what CreateInvitation accepts.
type Policy struct {
	DefaultTTL    time.Duration
	MaxTTL        time.Duration
	MaxUsageLimit int
	// CreatePerHour caps invitations per creator per rolling hour. Zero
	// disables the cap.
	CreatePerHour int
}

// DefaultPolicy mirrors the configuration defaults.
func DefaultPolicy() Policy {
	return Policy{
		DefaultTTL:    7 * 24 * time.Hour,
		MaxTTL:        30 * 24 * time.Hour,
		MaxUsageLimit: 100,
		CreatePerHour: 30,
	}
}

// Profile is the data a new employee supplies when redeeming a code.
type Profile struct {
	Email    string
	FullName string
	Password string
}

// Redemption is the outcome of a successful RedeemInvitation.
type Redemption struct {
	User       *users.User `json:"user"`
	Invitation *Invitation `json:"invitation"`
}
