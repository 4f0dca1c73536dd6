package users

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/rs/zerolog/log"
	"github.com/sabohub/sabohub/internal/db"
	"github.com/sabohub/sabohub/internal/events"
	"github.com/sabohub/sabohub/internal/roles"
)

// DemoteTo is the role surplus CEOs receive during repair.
const DemoteTo = roles.BranchManager

type repairCandidate struct {
	ID        uuid.UUID
	Role      roles.Role
	IsActive  bool
	CreatedAt time.Time
}

type repairPlan struct {
	Keep    *uuid.UUID
	Demote  []uuid.UUID
	Promote *uuid.UUID
}

func (p repairPlan) empty() bool {
	return len(p.Demote) == 0 && p.Promote == nil
}

// planCEORepair decides how to restore a single CEO from a company's CEOs
// and branch managers. With several CEOs the earliest-created one stays and
// the rest are demoted. With none, the earliest-created active branch
// manager is promoted. Ties on created_at are broken by ID.
func planCEORepair(members []repairCandidate) repairPlan {
	sorted := make([]repairCandidate, len(members))
	copy(sorted, members)
	sort.SliceStable(sorted, func(i, j int) bool {
		if !sorted[i].CreatedAt.Equal(sorted[j].CreatedAt) {
			return sorted[i].CreatedAt.Before(sorted[j].CreatedAt)
		}
		return sorted[i].ID.String() < sorted[j].ID.String()
	})

	var plan repairPlan
	for _, m := range sorted {
		if m.Role != roles.CEO {
			continue
		}
		if plan.Keep == nil {
			id := m.ID
			plan.Keep = &id
			continue
		}
		plan.Demote = append(plan.Demote, m.ID)
	}
	if plan.Keep != nil {
		return plan
	}

	for _, m := range sorted {
		if m.Role == roles.BranchManager && m.IsActive {
			id := m.ID
			plan.Promote = &id
			break
		}
	}
	return plan
}

// RepairFailure records a company the repair could not fix.
type RepairFailure struct {
	CompanyID uuid.UUID `json:"company_id"`
	Error     string    `json:"error"`
}

// RepairReport summarizes a RepairCEOs run.
type RepairReport struct {
	Inspected  int             `json:"inspected"`
	Repaired   int             `json:"repaired"`
	Demoted    int             `json:"demoted"`
	Promoted   int             `json:"promoted"`
	Unresolved []uuid.UUID     `json:"unresolved"`
	Failures   []RepairFailure `json:"failures"`
}

// RepairCEOs is a one-off reconciliation tool for data written before the
// one-CEO index existed (or with it dropped). Every company whose CEO count
// is not exactly one is repaired in its own transaction; a failing company
// is recorded and the batch continues. A company with no CEO gets its
// earliest active branch manager promoted; inactive branch managers are never
// promoted, even when they are the only candidates. Companies left without a
// CEO because no active branch manager exists are listed as unresolved.
func (s *Service) RepairCEOs(ctx context.Context) (*RepairReport, error) {
	companyIDs, err := s.companiesNeedingRepair(ctx)
	if err != nil {
		return nil, err
	}

	report := &RepairReport{
		Inspected:  len(companyIDs),
		Unresolved: []uuid.UUID{},
		Failures:   []RepairFailure{},
	}

	for _, companyID := range companyIDs {
		if err := ctx.Err(); err != nil {
			return report, err
		}

		plan, err := s.repairCompany(ctx, companyID)
		if err != nil {
			log.Error().Err(err).Str("company_id", companyID.String()).Msg("CEO repair failed")
			report.Failures = append(report.Failures, RepairFailure{CompanyID: companyID, Error: err.Error()})
			continue
		}
		if plan.empty() {
			if plan.Keep == nil {
				report.Unresolved = append(report.Unresolved, companyID)
			}
			continue
		}

		report.Repaired++
		report.Demoted += len(plan.Demote)
		if plan.Promote != nil {
			report.Promoted++
		}

		log.Info().
			Str("company_id", companyID.String()).
			Int("demoted", len(plan.Demote)).
			Bool("promoted", plan.Promote != nil).
			Msg("Repaired CEO assignment")

		kept := plan.Keep
		if plan.Promote != nil {
			kept = plan.Promote
		}
		s.publish(ctx, events.New(events.EventCEOUniquenessRepaired, companyID, nil, events.CEORepairedPayload{
			KeptCEO:  kept,
			Demoted:  plan.Demote,
			Promoted: plan.Promote,
			DemoteTo: DemoteTo,
		}))
	}

	return report, nil
}

func (s *Service) companiesNeedingRepair(ctx context.Context) ([]uuid.UUID, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT c.id
		FROM companies c
		LEFT JOIN users u ON u.company_id = c.id AND u.role = $1
		GROUP BY c.id, c.created_at
		HAVING COUNT(u.id) <> 1
		ORDER BY c.created_at, c.id
	`, roles.CEO)
	if err != nil {
		return nil, fmt.Errorf("failed to find companies to repair: %w", err)
	}
	defer rows.Close()

	var ids []uuid.UUID
	for rows.Next() {
		var id uuid.UUID
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("failed to scan company: %w", err)
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to find companies to repair: %w", err)
	}
	return ids, nil
}

func (s *Service) repairCompany(ctx context.Context, companyID uuid.UUID) (repairPlan, error) {
	var plan repairPlan
	err := db.WithTx(ctx, s.pool, func(tx pgx.Tx) error {
		if err := lockCompany(ctx, tx, companyID); err != nil {
			return err
		}

		rows, err := tx.Query(ctx, `
			SELECT id, role, is_active, created_at
			FROM users
			WHERE company_id = $1 AND role IN ($2, $3)
			FOR UPDATE
		`, companyID, roles.CEO, roles.BranchManager)
		if err != nil {
			return fmt.Errorf("failed to load candidates: %w", err)
		}
		var candidates []repairCandidate
		for rows.Next() {
			var c repairCandidate
			if err := rows.Scan(&c.ID, &c.Role, &c.IsActive, &c.CreatedAt); err != nil {
				rows.Close()
				return fmt.Errorf("failed to scan candidate: %w", err)
			}
			candidates = append(candidates, c)
		}
		if err := rows.Err(); err != nil {
			rows.Close()
			return fmt.Errorf("failed to load candidates: %w", err)
		}
		rows.Close()

		plan = planCEORepair(candidates)
		for _, id := range plan.Demote {
			if err := setRole(ctx, tx, id, DemoteTo); err != nil {
				return err
			}
		}
		if plan.Promote != nil {
			if err := setRole(ctx, tx, *plan.Promote, roles.CEO); err != nil {
				return err
			}
		}
		return nil
	})
	return plan, err
}
