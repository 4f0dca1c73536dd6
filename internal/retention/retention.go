package retention

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"github.com/sabohub/sabohub/internal/db"
)

// CompanyExpiry counts invitations of one company that expired with uses
// left inside the report window.
type CompanyExpiry struct {
	CompanyID    uuid.UUID `json:"company_id"`
	Expired      int       `json:"expired"`
	UnusedSlots  int       `json:"unused_slots"`
	NeverUsed    int       `json:"never_used"`
	LatestExpiry time.Time `json:"latest_expiry"`
}

// ExpiryReport is the result of a sweep over recently expired invitations.
type ExpiryReport struct {
	Since     time.Time       `json:"since"`
	Until     time.Time       `json:"until"`
	Companies []CompanyExpiry `json:"companies"`
	Total     int             `json:"total"`
}

// ReportExpiredInvitations lists invitations whose expiry fell within the
// last window and that still had uses left. It only reads; expiry is derived
// from expires_at and never stored as a status.
func ReportExpiredInvitations(ctx context.Context, q db.Querier, window time.Duration) (*ExpiryReport, error) {
	if window <= 0 {
		return nil, fmt.Errorf("report window must be positive (got: %s)", window)
	}

	report := &ExpiryReport{Companies: []CompanyExpiry{}}
	if err := q.QueryRow(ctx, `SELECT NOW() - INTERVAL '1 second' * $1, NOW()`, window.Seconds()).Scan(&report.Since, &report.Until); err != nil {
		return nil, fmt.Errorf("failed to compute report window: %w", err)
	}

	rows, err := q.Query(ctx, `
		SELECT
		  company_id,
		  COUNT(*),
		  COALESCE(SUM(usage_limit - used_count), 0),
		  COUNT(*) FILTER (WHERE used_count = 0),
		  MAX(expires_at)
		FROM employee_invitations
		WHERE expires_at > $1
		  AND expires_at <= $2
		  AND used_count < usage_limit
		GROUP BY company_id
		ORDER BY company_id
	`, report.Since, report.Until)
	if err != nil {
		return nil, fmt.Errorf("failed to report expired invitations: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var c CompanyExpiry
		if err := rows.Scan(&c.CompanyID, &c.Expired, &c.UnusedSlots, &c.NeverUsed, &c.LatestExpiry); err != nil {
			return nil, fmt.Errorf("failed to scan expiry row: %w", err)
		}
		report.Total += c.Expired
		report.Companies = append(report.Companies, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to report expired invitations: %w", err)
	}

	return report, nil
}

// PurgeExpiredInvitations deletes invitations that expired before
// olderThan ago and were never redeemed. Redeemed invitations stay as the
// audit trail of who joined through them. Safe to run repeatedly.
//
// Returns the number of rows deleted.
func PurgeExpiredInvitations(ctx context.Context, q db.Querier, olderThan time.Duration) (int64, error) {
	if olderThan <= 0 {
		return 0, fmt.Errorf("purge age must be positive (got: %s)", olderThan)
	}

	tag, err := q.Exec(ctx, `
		DELETE FROM employee_invitations
		WHERE expires_at < NOW() - INTERVAL '1 second' * $1
		  AND used_count = 0
	`, olderThan.Seconds())
	if err != nil {
		return 0, fmt.Errorf("failed to purge expired invitations: %w", err)
	}

	return tag.RowsAffected(), nil
}

// RunSweepJob reports invitations that expired unused within window and logs
// the result. This is the entry point called by the cron scheduler.
func RunSweepJob(ctx context.Context, q db.Querier, window time.Duration) error {
	log.Info().Dur("window", window).Msg("Starting invitation expiry sweep")

	startTime := time.Now()

	report, err := ReportExpiredInvitations(ctx, q, window)
	if err != nil {
		log.Error().Err(err).Msg("Invitation expiry sweep failed")
		return fmt.Errorf("invitation expiry sweep failed: %w", err)
	}

	for _, c := range report.Companies {
		log.Info().
			Str("company_id", c.CompanyID.String()).
			Int("expired", c.Expired).
			Int("unused_slots", c.UnusedSlots).
			Int("never_used", c.NeverUsed).
			Msg("Invitations expired unused")
	}

	log.Info().
		Int("expired_total", report.Total).
		Int("companies", len(report.Companies)).
		Dur("duration", time.Since(startTime)).
		Msg("Invitation expiry sweep completed")

	return nil
}
