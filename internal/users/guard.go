package users

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/sabohub/sabohub/internal/db"
	"github.com/sabohub/sabohub/internal/roles"
)

// CEOState is the per-company state of the CEO uniqueness guard.
type CEOState int

const (
	NoCEO CEOState = iota
	HasCEO
)

func (s CEOState) String() string {
	if s == HasCEO {
		return "HAS_CEO"
	}
	return "NO_CEO"
}

// MarshalText renders the state as its name in JSON.
func (s CEOState) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// lockCompany takes a row lock on the company so concurrent role changes in
// one company are serialized.
func lockCompany(ctx context.Context, q db.Querier, companyID uuid.UUID) error {
	var id uuid.UUID
	err := q.QueryRow(ctx, `SELECT id FROM companies WHERE id = $1 FOR UPDATE`, companyID).Scan(&id)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return ErrCompanyNotFound
		}
		return fmt.Errorf("failed to lock company: %w", db.Classify(err))
	}
	return nil
}

// currentCEO returns the company's CEO, if any.
func currentCEO(ctx context.Context, q db.Querier, companyID uuid.UUID) (uuid.UUID, bool, error) {
	var id uuid.UUID
	err := q.QueryRow(ctx, `
		SELECT id FROM users
		WHERE company_id = $1 AND role = $2
		ORDER BY created_at, id
		LIMIT 1
	`, companyID, roles.CEO).Scan(&id)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return uuid.Nil, false, nil
		}
		return uuid.Nil, false, fmt.Errorf("failed to load company CEO: %w", err)
	}
	return id, true, nil
}

// CheckCEOAssignment enforces the guard transition for making userID the CEO
// of companyID (uuid.Nil for a user that does not exist yet). It locks the
// company row, so q should be a transaction that goes on to perform the
// write.
//
//	NoCEO  + assign X        -> allowed (becomes HasCEO)
//	HasCEO(X) + assign X     -> allowed (no-op)
//	HasCEO(Y) + assign X     -> ErrCEOAlreadyExists
func CheckCEOAssignment(ctx context.Context, q db.Querier, companyID, userID uuid.UUID) error {
	if err := lockCompany(ctx, q, companyID); err != nil {
		return err
	}
	ceoID, ok, err := currentCEO(ctx, q, companyID)
	if err != nil {
		return err
	}
	return guardTransition(ceoID, ok, userID)
}

func guardTransition(currentCEOID uuid.UUID, hasCEO bool, candidate uuid.UUID) error {
	if !hasCEO {
		return nil
	}
	if candidate != uuid.Nil && currentCEOID == candidate {
		return nil
	}
	return ErrCEOAlreadyExists
}

// LoadCEOState reports whether the company currently has a CEO.
func LoadCEOState(ctx context.Context, q db.Querier, companyID uuid.UUID) (CEOState, *uuid.UUID, error) {
	ceoID, ok, err := currentCEO(ctx, q, companyID)
	if err != nil {
		return NoCEO, nil, err
	}
	if !ok {
		return NoCEO, nil, nil
	}
	return HasCEO, &ceoID, nil
}
