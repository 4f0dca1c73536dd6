package invitations

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/sabohub/sabohub/internal/auth"
	"github.com/sabohub/sabohub/internal/db"
	"github.com/sabohub/sabohub/internal/events"
	"github.com/sabohub/sabohub/internal/users"
	"github.com/sabohub/sabohub/internal/validation"
)

// RedeemInvitation creates a user from an invitation code in one
// transaction. Either the user exists and the invitation lost one use, or
// nothing changed.
func (s *Service) RedeemInvitation(ctx context.Context, code string, profile Profile) (*Redemption, error) {
	code = NormalizeCode(code)
	if !ValidateCodeFormat(code) {
		return nil, ErrInvitationNotFound
	}

	email, err := validation.NormalizeEmail(profile.Email)
	if err != nil {
		return nil, err
	}
	if _, err := validation.NormalizeFullName(profile.FullName); err != nil {
		return nil, err
	}

	var passwordHash string
	if profile.Password != "" {
		if err := validation.ValidatePassword(profile.Password); err != nil {
			return nil, err
		}
		passwordHash, err = auth.HashPassword(profile.Password)
		if err != nil {
			return nil, err
		}
	}

	var result Redemption
	err = db.WithTx(ctx, s.pool, func(tx pgx.Tx) error {
		var now time.Time
		inv, err := scanInvitation(tx.QueryRow(ctx, `
			SELECT `+invitationColumns+`, NOW()
			FROM employee_invitations
			WHERE invitation_code = $1
			FOR UPDATE
		`, code), &now)
		if err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return ErrInvitationNotFound
			}
			return fmt.Errorf("failed to load invitation: %w", err)
		}
		if err := inv.checkRedeemable(now); err != nil {
			return err
		}

		taken, err := users.EmailTaken(ctx, tx, email)
		if err != nil {
			return err
		}
		if taken {
			return ErrDuplicateEmail
		}

		user, err := users.Insert(ctx, tx, users.NewUser{
			Email:        email,
			FullName:     profile.FullName,
			PasswordHash: passwordHash,
			Role:         inv.RoleType,
			CompanyID:    inv.CompanyID,
		})
		if err != nil {
			return err
		}

		inv.UsedCount, inv.IsUsed, err = MarkRedeemed(ctx, tx, inv.ID)
		if err != nil {
			return err
		}

		if _, err := tx.Exec(ctx, `
			INSERT INTO invitation_redemptions (invitation_id, user_id)
			VALUES ($1, $2)
		`, inv.ID, user.ID); err != nil {
			return fmt.Errorf("failed to record redemption: %w", err)
		}

		result = Redemption{User: user, Invitation: inv}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.publish(ctx, events.New(events.EventUserRedeemed, result.User.CompanyID, &result.User.ID, events.UserRedeemedPayload{
		UserID:       result.User.ID,
		Email:        result.User.Email,
		Role:         result.User.Role,
		InvitationID: result.Invitation.ID,
		UsedCount:    result.Invitation.UsedCount,
		UsageLimit:   result.Invitation.UsageLimit,
		IsUsed:       result.Invitation.IsUsed,
	}))

	return &result, nil
}
