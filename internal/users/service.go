package users

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/sabohub/sabohub/internal/db"
	"github.com/sabohub/sabohub/internal/events"
	"github.com/sabohub/sabohub/internal/roles"
)

// Service manages company members and the one-CEO-per-company rule.
type Service struct {
	pool       *pgxpool.Pool
	dispatcher events.Dispatcher
}

// NewService creates a users service. dispatcher may be nil.
func NewService(pool *pgxpool.Pool, dispatcher events.Dispatcher) *Service {
	return &Service{pool: pool, dispatcher: dispatcher}
}

func (s *Service) publish(ctx context.Context, evs ...events.Event) {
	if s.dispatcher == nil {
		return
	}
	for _, ev := range evs {
		s.dispatcher.Publish(ctx, ev)
	}
}

// CreateUser inserts a user directly, outside the invitation flow. actor is
// nil for system callers such as the admin CLI.
func (s *Service) CreateUser(ctx context.Context, actor *uuid.UUID, nu NewUser) (*User, error) {
	var user *User
	err := db.WithTx(ctx, s.pool, func(tx pgx.Tx) error {
		var err error
		user, err = Insert(ctx, tx, nu)
		return err
	})
	if err != nil {
		return nil, err
	}

	s.publish(ctx, events.New(events.EventUserCreated, user.CompanyID, actor, events.UserCreatedPayload{
		UserID: user.ID,
		Email:  user.Email,
		Role:   user.Role,
	}))

	return user, nil
}

// RequireMember returns the caller if it is an active member of companyID.
func (s *Service) RequireMember(ctx context.Context, userID, companyID uuid.UUID) (*User, error) {
	return LoadMember(ctx, s.pool, userID, companyID, false)
}

// ListMembers returns every user of the company, active or not, ordered by
// authority and then by join time.
func (s *Service) ListMembers(ctx context.Context, companyID uuid.UUID) ([]User, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT `+userColumns+`
		FROM users
		WHERE company_id = $1
		ORDER BY CASE role
			WHEN 'CEO' THEN 0
			WHEN 'BRANCH_MANAGER' THEN 1
			WHEN 'SHIFT_LEADER' THEN 2
			ELSE 3
		END, created_at, id
	`, companyID)
	if err != nil {
		return nil, fmt.Errorf("failed to list members: %w", err)
	}
	defer rows.Close()

	members := []User{}
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan member: %w", err)
		}
		members = append(members, *u)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to list members: %w", err)
	}

	return members, nil
}

// CEOState reports the company's guard state and, when set, the CEO's ID.
func (s *Service) CEOState(ctx context.Context, companyID uuid.UUID) (CEOState, *uuid.UUID, error) {
	return LoadCEOState(ctx, s.pool, companyID)
}

// ChangeRole sets the role of targetID. Only the company CEO may change
// roles. Promoting to CEO is rejected while another user holds the role;
// demoting the sole CEO leaves the company without one.
func (s *Service) ChangeRole(ctx context.Context, actorID, companyID, targetID uuid.UUID, newRole roles.Role) (roles.Role, error) {
	return s.changeRole(ctx, &actorID, companyID, targetID, newRole)
}

// AssignRole is ChangeRole for system callers with no acting user.
func (s *Service) AssignRole(ctx context.Context, companyID, targetID uuid.UUID, newRole roles.Role) (roles.Role, error) {
	return s.changeRole(ctx, nil, companyID, targetID, newRole)
}

func (s *Service) changeRole(ctx context.Context, actorID *uuid.UUID, companyID, targetID uuid.UUID, newRole roles.Role) (roles.Role, error) {
	if !newRole.IsValid() {
		return "", roles.ErrInvalidRole
	}

	var previous roles.Role
	err := db.WithTx(ctx, s.pool, func(tx pgx.Tx) error {
		if err := lockCompany(ctx, tx, companyID); err != nil {
			return err
		}

		if actorID != nil {
			actor, err := LoadMember(ctx, tx, *actorID, companyID, false)
			if err != nil {
				return err
			}
			if !actor.IsCEO() {
				return ErrInsufficientPermissions
			}
		}

		target, err := LoadForUpdate(ctx, tx, targetID)
		if err != nil {
			return err
		}
		if target.CompanyID != companyID {
			return ErrUserNotFound
		}
		previous = target.Role
		if previous == newRole {
			return nil
		}

		if newRole == roles.CEO {
			if !target.IsActive {
				return ErrUserInactive
			}
			ceoID, ok, err := currentCEO(ctx, tx, companyID)
			if err != nil {
				return err
			}
			if err := guardTransition(ceoID, ok, targetID); err != nil {
				return err
			}
		}

		return setRole(ctx, tx, targetID, newRole)
	})
	if err != nil {
		return "", err
	}

	if previous != newRole {
		s.publish(ctx, events.New(events.EventUserRoleChanged, companyID, actorID, events.UserRoleChangedPayload{
			TargetUserID: targetID,
			PreviousRole: previous,
			NewRole:      newRole,
		}))
	}

	return previous, nil
}

// TransferCEO hands the CEO role from the acting CEO to newCEOID in one
// transaction. The outgoing CEO becomes a branch manager.
func (s *Service) TransferCEO(ctx context.Context, actorID, companyID, newCEOID uuid.UUID) error {
	if actorID == newCEOID {
		return ErrCEOAlreadyExists
	}

	var successorPrevious roles.Role
	err := db.WithTx(ctx, s.pool, func(tx pgx.Tx) error {
		if err := lockCompany(ctx, tx, companyID); err != nil {
			return err
		}

		actor, err := LoadMember(ctx, tx, actorID, companyID, true)
		if err != nil {
			return err
		}
		if !actor.IsCEO() {
			return ErrInsufficientPermissions
		}

		successor, err := LoadForUpdate(ctx, tx, newCEOID)
		if err != nil {
			return err
		}
		if successor.CompanyID != companyID {
			return ErrUserNotFound
		}
		if !successor.IsActive {
			return ErrUserInactive
		}
		successorPrevious = successor.Role

		// The partial unique index is not deferrable: demote before promoting.
		if err := setRole(ctx, tx, actorID, roles.BranchManager); err != nil {
			return err
		}
		return setRole(ctx, tx, newCEOID, roles.CEO)
	})
	if err != nil {
		return err
	}

	s.publish(ctx,
		events.New(events.EventUserRoleChanged, companyID, &actorID, events.UserRoleChangedPayload{
			TargetUserID: actorID,
			PreviousRole: roles.CEO,
			NewRole:      roles.BranchManager,
		}),
		events.New(events.EventUserRoleChanged, companyID, &actorID, events.UserRoleChangedPayload{
			TargetUserID: newCEOID,
			PreviousRole: successorPrevious,
			NewRole:      roles.CEO,
		}),
	)

	return nil
}

// SetActive deactivates or reactivates a member. The actor must outrank the
// target, and the CEO can never be deactivated.
func (s *Service) SetActive(ctx context.Context, actorID, companyID, targetID uuid.UUID, active bool) error {
	if actorID == targetID {
		return ErrCannotModifySelf
	}

	changed := false
	err := db.WithTx(ctx, s.pool, func(tx pgx.Tx) error {
		actor, err := LoadMember(ctx, tx, actorID, companyID, false)
		if err != nil {
			return err
		}

		target, err := LoadForUpdate(ctx, tx, targetID)
		if err != nil {
			return err
		}
		if target.CompanyID != companyID {
			return ErrUserNotFound
		}
		if !active && target.IsCEO() {
			return ErrCannotDeactivateCEO
		}
		if !actor.Role.Outranks(target.Role) {
			return ErrInsufficientPermissions
		}
		if target.IsActive == active {
			return nil
		}

		if _, err := tx.Exec(ctx, `
			UPDATE users
			SET is_active = $2, updated_at = NOW()
			WHERE id = $1
		`, targetID, active); err != nil {
			return fmt.Errorf("failed to update active status: %w", err)
		}
		changed = true
		return nil
	})
	if err != nil {
		return err
	}

	if changed {
		s.publish(ctx, events.New(events.EventUserActiveChanged, companyID, &actorID, events.UserActiveChangedPayload{
			TargetUserID: targetID,
			IsActive:     active,
		}))
	}

	return nil
}
