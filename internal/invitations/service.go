package invitations

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/sabohub/sabohub/internal/db"
	"github.com/sabohub/sabohub/internal/events"
	"github.com/sabohub/sabohub/internal/roles"
	"github.com/sabohub/sabohub/internal/users"
)

const (
	constraintCodeUnique = "employee_invitations_invitation_code_key"
	codeAttempts         = 3
	invitationColumns    = `id, company_id, created_by, invitation_code, role_type, usage_limit, used_count, is_used, expires_at, created_at, updated_at`
)

// Service is the invitation store and redemption workflow.
type Service struct {
	pool       *pgxpool.Pool
	dispatcher events.Dispatcher
	policy     Policy
}

// NewService creates an invitation service. dispatcher may be nil.
func NewService(pool *pgxpool.Pool, dispatcher events.Dispatcher, policy Policy) *Service {
	return &Service{pool: pool, dispatcher: dispatcher, policy: policy}
}

// Policy returns the limits the service enforces.
func (s *Service) Policy() Policy {
	return s.policy
}

func (s *Service) publish(ctx context.Context, evs ...events.Event) {
	if s.dispatcher == nil {
		return
	}
	for _, ev := range evs {
		s.dispatcher.Publish(ctx, ev)
	}
}

func scanInvitation(row pgx.Row, extra ...any) (*Invitation, error) {
	var inv Invitation
	dest := []any{
		&inv.ID,
		&inv.CompanyID,
		&inv.CreatedBy,
		&inv.Code,
		&inv.RoleType,
		&inv.UsageLimit,
		&inv.UsedCount,
		&inv.IsUsed,
		&inv.ExpiresAt,
		&inv.CreatedAt,
		&inv.UpdatedAt,
	}
	if err := row.Scan(append(dest, extra...)...); err != nil {
		return nil, err
	}
	return &inv, nil
}

// validateCreate checks the request against the policy before any database
// work.
func validateCreate(p CreateParams, policy Policy) error {
	if !p.RoleType.Invitable() {
		return ErrInvalidRole
	}
	if p.UsageLimit <= 0 {
		return ErrInvalidLimit
	}
	if policy.MaxUsageLimit > 0 && p.UsageLimit > policy.MaxUsageLimit {
		return fmt.Errorf("%w: at most %d uses", ErrInvalidLimit, policy.MaxUsageLimit)
	}
	if p.TTL <= 0 {
		return ErrInvalidTTL
	}
	if policy.MaxTTL > 0 && p.TTL > policy.MaxTTL {
		return fmt.Errorf("%w: at most %s", ErrInvalidTTL, policy.MaxTTL)
	}
	return nil
}

// CreateInvitation issues a new code for a subordinate role. The creator
// must be an active CEO or branch manager of the company and may only grant
// roles below their own.
func (s *Service) CreateInvitation(ctx context.Context, p CreateParams) (*Invitation, error) {
	if err := validateCreate(p, s.policy); err != nil {
		return nil, err
	}

	var inv *Invitation
	err := db.WithTx(ctx, s.pool, func(tx pgx.Tx) error {
		// Locking the creator serializes the rate-limit count per creator.
		creator, err := users.LoadMember(ctx, tx, p.CreatedBy, p.CompanyID, true)
		if err != nil {
			return err
		}
		if !creator.Role.CanInvite(p.RoleType) {
			return ErrInsufficientPermissions
		}

		if s.policy.CreatePerHour > 0 {
			var recent int
			if err := tx.QueryRow(ctx, `
				SELECT COUNT(*)
				FROM employee_invitations
				WHERE created_by = $1 AND created_at > NOW() - INTERVAL '1 hour'
			`, p.CreatedBy).Scan(&recent); err != nil {
				return fmt.Errorf("failed to count recent invitations: %w", err)
			}
			if recent >= s.policy.CreatePerHour {
				return ErrRateLimited
			}
		}

		inv, err = insertWithUniqueCode(ctx, tx, p)
		return err
	})
	if err != nil {
		return nil, err
	}

	s.publish(ctx, events.New(events.EventInvitationCreated, inv.CompanyID, &inv.CreatedBy, events.InvitationCreatedPayload{
		InvitationID: inv.ID,
		RoleType:     inv.RoleType,
		UsageLimit:   inv.UsageLimit,
		ExpiresAt:    inv.ExpiresAt,
	}))

	return inv, nil
}

// insertWithUniqueCode stores the invitation with an expiry taken from the
// database clock, the same clock redemption checks against.
func insertWithUniqueCode(ctx context.Context, tx pgx.Tx, p CreateParams) (*Invitation, error) {
	ttlSeconds := p.TTL.Seconds()

	for attempt := 0; attempt < codeAttempts; attempt++ {
		code, err := GenerateCode()
		if err != nil {
			return nil, err
		}

		// A failed statement aborts the transaction, so each attempt runs
		// inside its own savepoint.
		sp, err := tx.Begin(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to create savepoint: %w", err)
		}

		inv, err := scanInvitation(sp.QueryRow(ctx, `
			INSERT INTO employee_invitations (company_id, created_by, invitation_code, role_type, usage_limit, expires_at)
			VALUES ($1, $2, $3, $4, $5, NOW() + $6::float8 * INTERVAL '1 second')
			RETURNING `+invitationColumns,
			p.CompanyID, p.CreatedBy, code, p.RoleType, p.UsageLimit, ttlSeconds,
		))
		if err == nil {
			if err := sp.Commit(ctx); err != nil {
				return nil, fmt.Errorf("failed to release savepoint: %w", err)
			}
			return inv, nil
		}
		_ = sp.Rollback(ctx)

		if constraint, ok := db.UniqueViolation(err); ok && constraint == constraintCodeUnique {
			continue
		}
		return nil, fmt.Errorf("failed to create invitation: %w", db.Classify(err))
	}

	return nil, ErrCodeGeneration
}

// ValidateInvitation looks up a code and reports whether it can be redeemed
// right now. It never writes.
func (s *Service) ValidateInvitation(ctx context.Context, code string) (*Invitation, error) {
	code = NormalizeCode(code)
	if !ValidateCodeFormat(code) {
		return nil, ErrInvitationNotFound
	}

	var now time.Time
	inv, err := scanInvitation(s.pool.QueryRow(ctx, `
		SELECT `+invitationColumns+`, NOW()
		FROM employee_invitations
		WHERE invitation_code = $1
	`, code), &now)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrInvitationNotFound
		}
		return nil, fmt.Errorf("failed to load invitation: %w", err)
	}

	if err := inv.checkRedeemable(now); err != nil {
		return nil, err
	}
	return inv, nil
}

// MarkRedeemed consumes one use of the invitation through q, which should be
// the redeeming transaction. It fails with ErrInvitationExhausted when no use
// is left, leaving the row untouched.
func MarkRedeemed(ctx context.Context, q db.Querier, invitationID uuid.UUID) (usedCount int, isUsed bool, err error) {
	err = q.QueryRow(ctx, `
		UPDATE employee_invitations
		SET used_count = used_count + 1, updated_at = NOW()
		WHERE id = $1
		  AND used_count < usage_limit
		  AND expires_at > NOW()
		RETURNING used_count, is_used
	`, invitationID).Scan(&usedCount, &isUsed)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return 0, false, ErrInvitationExhausted
		}
		return 0, false, fmt.Errorf("failed to mark invitation redeemed: %w", db.Classify(err))
	}
	return usedCount, isUsed, nil
}

func requireInviter(ctx context.Context, q db.Querier, actorID, companyID uuid.UUID) (*users.User, error) {
	actor, err := users.LoadMember(ctx, q, actorID, companyID, false)
	if err != nil {
		return nil, err
	}
	if !actor.Role.CanCreateInvitations() {
		return nil, ErrInsufficientPermissions
	}
	return actor, nil
}

// ListInvitations returns the company's invitations, newest first. Unless
// includeInactive is set only redeemable ones are returned.
func (s *Service) ListInvitations(ctx context.Context, actorID, companyID uuid.UUID, includeInactive bool) ([]ListItem, error) {
	if _, err := requireInviter(ctx, s.pool, actorID, companyID); err != nil {
		return nil, err
	}

	rows, err := s.pool.Query(ctx, `
		SELECT
		  i.id, i.company_id, i.created_by, i.invitation_code, i.role_type, i.usage_limit,
		  i.used_count, i.is_used, i.expires_at, i.created_at, i.updated_at,
		  u.email,
		  NOW()
		FROM employee_invitations i
		INNER JOIN users u ON u.id = i.created_by
		WHERE i.company_id = $1
		  AND ($2 OR (i.used_count < i.usage_limit AND i.expires_at > NOW()))
		ORDER BY i.created_at DESC, i.id
	`, companyID, includeInactive)
	if err != nil {
		return nil, fmt.Errorf("failed to list invitations: %w", err)
	}
	defer rows.Close()

	out := []ListItem{}
	for rows.Next() {
		var item ListItem
		var now time.Time
		inv, err := scanInvitation(rows, &item.CreatedByEmail, &now)
		if err != nil {
			return nil, fmt.Errorf("failed to scan invitation: %w", err)
		}
		item.Invitation = *inv
		item.Status = inv.StatusAt(now)
		out = append(out, item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to list invitations: %w", err)
	}

	return out, nil
}

// GetInvitation returns one invitation of the company.
func (s *Service) GetInvitation(ctx context.Context, actorID, companyID, invitationID uuid.UUID) (*ListItem, error) {
	if _, err := requireInviter(ctx, s.pool, actorID, companyID); err != nil {
		return nil, err
	}

	var item ListItem
	var now time.Time
	inv, err := scanInvitation(s.pool.QueryRow(ctx, `
		SELECT
		  i.id, i.company_id, i.created_by, i.invitation_code, i.role_type, i.usage_limit,
		  i.used_count, i.is_used, i.expires_at, i.created_at, i.updated_at,
		  u.email,
		  NOW()
		FROM employee_invitations i
		INNER JOIN users u ON u.id = i.created_by
		WHERE i.id = $1 AND i.company_id = $2
	`, invitationID, companyID), &item.CreatedByEmail, &now)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrInvitationNotFound
		}
		return nil, fmt.Errorf("failed to get invitation: %w", err)
	}
	item.Invitation = *inv
	item.Status = inv.StatusAt(now)
	return &item, nil
}

// RevokeInvitation ends an invitation early by moving its expiry to now. The
// row is kept. CEOs may revoke any invitation of their company, branch
// managers only their own.
func (s *Service) RevokeInvitation(ctx context.Context, actorID, companyID, invitationID uuid.UUID) (*Invitation, error) {
	var inv *Invitation
	err := db.WithTx(ctx, s.pool, func(tx pgx.Tx) error {
		actor, err := requireInviter(ctx, tx, actorID, companyID)
		if err != nil {
			return err
		}

		var now time.Time
		inv, err = scanInvitation(tx.QueryRow(ctx, `
			SELECT `+invitationColumns+`, NOW()
			FROM employee_invitations
			WHERE id = $1 AND company_id = $2
			FOR UPDATE
		`, invitationID, companyID), &now)
		if err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return ErrInvitationNotFound
			}
			return fmt.Errorf("failed to load invitation: %w", err)
		}

		if actor.Role != roles.CEO && inv.CreatedBy != actorID {
			return ErrInsufficientPermissions
		}
		if !now.Before(inv.ExpiresAt) {
			return ErrInvitationExpired
		}

		inv, err = scanInvitation(tx.QueryRow(ctx, `
			UPDATE employee_invitations
			SET expires_at = NOW(), updated_at = NOW()
			WHERE id = $1
			RETURNING `+invitationColumns,
			invitationID,
		))
		if err != nil {
			return fmt.Errorf("failed to revoke invitation: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.publish(ctx, events.New(events.EventInvitationRevoked, companyID, &actorID, events.InvitationRevokedPayload{
		InvitationID: inv.ID,
		UsedCount:    inv.UsedCount,
	}))

	return inv, nil
}
