package events

import (
	"time"

	"github.com/google/uuid"
	"github.com/sabohub/sabohub/internal/roles"
)

// EventType enumerates supported event identifiers.
type EventType string

const (
	EventCompanyCreated        EventType = "company.created"
	EventInvitationCreated     EventType = "invitation.created"
	EventInvitationRevoked     EventType = "invitation.revoked"
	EventUserCreated           EventType = "user.created"
	EventUserRedeemed          EventType = "user.redeemed"
	EventUserRoleChanged       EventType = "user.role_changed"
	EventUserActiveChanged     EventType = "user.active_changed"
	EventCEOUniquenessRepaired EventType = "ceo.uniqueness_repaired"
)

// Event is a plain-data domain event. Events are published after the
// transaction that produced them has committed.
type Event struct {
	ID          uuid.UUID  `json:"id"`
	Type        EventType  `json:"type"`
	CompanyID   uuid.UUID  `json:"company_id"`
	ActorUserID *uuid.UUID `json:"actor_user_id,omitempty"`
	Timestamp   time.Time  `json:"timestamp"`
	Payload     any        `json:"payload"`
}

// New builds an event with a fresh ID and timestamp.
func New(eventType EventType, companyID uuid.UUID, actor *uuid.UUID, payload any) Event {
	return Event{
		ID:          uuid.New(),
		Type:        eventType,
		CompanyID:   companyID,
		ActorUserID: actor,
		Timestamp:   time.Now().UTC(),
		Payload:     payload,
	}
}

type CompanyCreatedPayload struct {
	Name         string     `json:"name"`
	BusinessType string     `json:"business_type,omitempty"`
	CEOUserID    *uuid.UUID `json:"ceo_user_id,omitempty"`
}

type InvitationCreatedPayload struct {
	InvitationID uuid.UUID  `json:"invitation_id"`
	RoleType     roles.Role `json:"role_type"`
	UsageLimit   int        `json:"usage_limit"`
	ExpiresAt    time.Time  `json:"expires_at"`
}

type InvitationRevokedPayload struct {
	InvitationID uuid.UUID `json:"invitation_id"`
	UsedCount    int       `json:"used_count"`
}

type UserCreatedPayload struct {
	UserID uuid.UUID  `json:"user_id"`
	Email  string     `json:"email"`
	Role   roles.Role `json:"role"`
}

type UserRedeemedPayload struct {
	UserID       uuid.UUID  `json:"user_id"`
	Email        string     `json:"email"`
	Role         roles.Role `json:"role"`
	InvitationID uuid.UUID  `json:"invitation_id"`
	UsedCount    int        `json:"used_count"`
	UsageLimit   int        `json:"usage_limit"`
	IsUsed       bool       `json:"is_used"`
}

type UserRoleChangedPayload struct {
	TargetUserID uuid.UUID  `json:"target_user_id"`
	PreviousRole roles.Role `json:"previous_role"`
	NewRole      roles.Role `json:"new_role"`
}

type UserActiveChangedPayload struct {
	TargetUserID uuid.UUID `json:"target_user_id"`
	IsActive     bool      `json:"is_active"`
}

type CEORepairedPayload struct {
	KeptCEO  *uuid.UUID  `json:"kept_ceo,omitempty"`
	Demoted  []uuid.UUID `json:"demoted,omitempty"`
	Promoted *uuid.UUID  `json:"promoted,omitempty"`
	DemoteTo roles.Role  `json:"demote_to"`
}
