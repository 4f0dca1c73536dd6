package companies

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/sabohub/sabohub/internal/db"
	"github.com/sabohub/sabohub/internal/events"
	"github.com/sabohub/sabohub/internal/roles"
	"github.com/sabohub/sabohub/internal/users"
	"github.com/sabohub/sabohub/internal/validation"
)

const (
	constraintNameUnique = "companies_name_lower_key"
	companyColumns       = `id, name, business_type, contact_email, contact_phone, address, created_at, updated_at`
)

// Service is the company directory.
type Service struct {
	pool       *pgxpool.Pool
	dispatcher events.Dispatcher
}

// NewService creates a company directory. dispatcher may be nil.
func NewService(pool *pgxpool.Pool, dispatcher events.Dispatcher) *Service {
	return &Service{pool: pool, dispatcher: dispatcher}
}

func scanCompany(row pgx.Row) (*Company, error) {
	var c Company
	if err := row.Scan(
		&c.ID,
		&c.Name,
		&c.BusinessType,
		&c.ContactEmail,
		&c.ContactPhone,
		&c.Address,
		&c.CreatedAt,
		&c.UpdatedAt,
	); err != nil {
		return nil, err
	}
	return &c, nil
}

func normalizeDetails(d Details) (Details, error) {
	out := Details{
		BusinessType: strings.TrimSpace(d.BusinessType),
		ContactPhone: strings.TrimSpace(d.ContactPhone),
		Address:      strings.TrimSpace(d.Address),
	}
	if email := strings.TrimSpace(d.ContactEmail); email != "" {
		normalized, err := validation.NormalizeEmail(email)
		if err != nil {
			return Details{}, err
		}
		out.ContactEmail = normalized
	}
	for _, v := range []string{out.BusinessType, out.ContactPhone, out.Address} {
		if utf8.RuneCountInString(v) > maxDetailLength {
			return Details{}, ErrDetailTooLong
		}
	}
	return out, nil
}

func insertCompany(ctx context.Context, q db.Querier, name string, details Details) (*Company, error) {
	name, err := validation.NormalizeCompanyName(name)
	if err != nil {
		return nil, err
	}
	details, err = normalizeDetails(details)
	if err != nil {
		return nil, err
	}

	company, err := scanCompany(q.QueryRow(ctx, `
		INSERT INTO companies (name, business_type, contact_email, contact_phone, address)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING `+companyColumns,
		name, details.BusinessType, details.ContactEmail, details.ContactPhone, details.Address,
	))
	if err != nil {
		if constraint, ok := db.UniqueViolation(err); ok && constraint == constraintNameUnique {
			return nil, ErrDuplicateCompanyName
		}
		return nil, fmt.Errorf("failed to create company: %w", db.Classify(err))
	}
	return company, nil
}

// CreateCompany registers a company with no users.
func (s *Service) CreateCompany(ctx context.Context, name string, details Details) (*Company, error) {
	company, err := insertCompany(ctx, s.pool, name, details)
	if err != nil {
		return nil, err
	}

	s.publish(ctx, events.New(events.EventCompanyCreated, company.ID, nil, events.CompanyCreatedPayload{
		Name:         company.Name,
		BusinessType: company.BusinessType,
	}))

	return company, nil
}

// CreateCompanyWithCEO registers a company and its first CEO atomically.
// ceo.Role and ceo.CompanyID are overwritten.
func (s *Service) CreateCompanyWithCEO(ctx context.Context, name string, details Details, ceo users.NewUser) (*Company, *users.User, error) {
	var company *Company
	var user *users.User
	err := db.WithTx(ctx, s.pool, func(tx pgx.Tx) error {
		var err error
		company, err = insertCompany(ctx, tx, name, details)
		if err != nil {
			return err
		}

		ceo.Role = roles.CEO
		ceo.CompanyID = company.ID
		user, err = users.Insert(ctx, tx, ceo)
		return err
	})
	if err != nil {
		return nil, nil, err
	}

	s.publish(ctx,
		events.New(events.EventCompanyCreated, company.ID, nil, events.CompanyCreatedPayload{
			Name:         company.Name,
			BusinessType: company.BusinessType,
			CEOUserID:    &user.ID,
		}),
		events.New(events.EventUserCreated, company.ID, nil, events.UserCreatedPayload{
			UserID: user.ID,
			Email:  user.Email,
			Role:   user.Role,
		}),
	)

	return company, user, nil
}

func (s *Service) GetCompany(ctx context.Context, companyID uuid.UUID) (*Company, error) {
	company, err := scanCompany(s.pool.QueryRow(ctx, `SELECT `+companyColumns+` FROM companies WHERE id = $1`, companyID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrCompanyNotFound
		}
		return nil, fmt.Errorf("failed to get company: %w", err)
	}
	return company, nil
}

// ListCompanies returns all companies ordered by name.
func (s *Service) ListCompanies(ctx context.Context) ([]Company, error) {
	rows, err := s.pool.Query(ctx, `SELECT `+companyColumns+` FROM companies ORDER BY lower(name), id`)
	if err != nil {
		return nil, fmt.Errorf("failed to list companies: %w", err)
	}
	defer rows.Close()

	out := []Company{}
	for rows.Next() {
		c, err := scanCompany(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan company: %w", err)
		}
		out = append(out, *c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to list companies: %w", err)
	}
	return out, nil
}

// UpdateCompanyDetails replaces the descriptive fields. The name is not
// changed.
func (s *Service) UpdateCompanyDetails(ctx context.Context, companyID uuid.UUID, details Details) (*Company, error) {
	details, err := normalizeDetails(details)
	if err != nil {
		return nil, err
	}

	company, err := scanCompany(s.pool.QueryRow(ctx, `
		UPDATE companies
		SET business_type = $2, contact_email = $3, contact_phone = $4, address = $5, updated_at = NOW()
		WHERE id = $1
		RETURNING `+companyColumns,
		companyID, details.BusinessType, details.ContactEmail, details.ContactPhone, details.Address,
	))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrCompanyNotFound
		}
		return nil, fmt.Errorf("failed to update company: %w", db.Classify(err))
	}
	return company, nil
}

func (s *Service) publish(ctx context.Context, evs ...events.Event) {
	if s.dispatcher == nil {
		return
	}
	for _, ev := range evs {
		s.dispatcher.Publish(ctx, ev)
	}
}
