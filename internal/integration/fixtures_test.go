package integration

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/sabohub/sabohub/internal/audit"
	"github.com/sabohub/sabohub/internal/companies"
	"github.com/sabohub/sabohub/internal/events"
	"github.com/sabohub/sabohub/internal/invitations"
	"github.com/sabohub/sabohub/internal/roles"
	"github.com/sabohub/sabohub/internal/users"
	"github.com/stretchr/testify/require"
)

type testEnv struct {
	pool        *pgxpool.Pool
	recorder    *events.Recorder
	users       *users.Service
	companies   *companies.Service
	invitations *invitations.Service
}

func newTestEnv(t *testing.T, policy invitations.Policy) *testEnv {
	t.Helper()

	pool, cleanup := newTestDB(t)
	t.Cleanup(cleanup)

	dispatcher := events.NewInMemoryDispatcher()
	recorder := &events.Recorder{}
	dispatcher.SubscribeAll(recorder.Handle)
	audit.NewWriter(pool).Register(dispatcher)

	return &testEnv{
		pool:        pool,
		recorder:    recorder,
		users:       users.NewService(pool, dispatcher),
		companies:   companies.NewService(pool, dispatcher),
		invitations: invitations.NewService(pool, dispatcher, policy),
	}
}

func testContext(t *testing.T) context.Context {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	t.Cleanup(cancel)
	return ctx
}

func (e *testEnv) seedCompany(t *testing.T, name, ceoEmail string) (*companies.Company, *users.User) {
	t.Helper()
	company, ceo, err := e.companies.CreateCompanyWithCEO(testContext(t), name, companies.Details{
		BusinessType: "billiards",
	}, users.NewUser{
		Email:    ceoEmail,
		FullName: "Founder",
	})
	require.NoError(t, err)
	require.Equal(t, roles.CEO, ceo.Role)
	return company, ceo
}

func (e *testEnv) addMember(t *testing.T, companyID uuid.UUID, role roles.Role, email string) *users.User {
	t.Helper()
	user, err := e.users.CreateUser(testContext(t), nil, users.NewUser{
		Email:     email,
		FullName:  "Member " + email,
		Role:      role,
		CompanyID: companyID,
	})
	require.NoError(t, err)
	return user
}

func (e *testEnv) createInvitation(t *testing.T, companyID, creatorID uuid.UUID, role roles.Role, limit int) *invitations.Invitation {
	t.Helper()
	inv, err := e.invitations.CreateInvitation(testContext(t), invitations.CreateParams{
		CompanyID:  companyID,
		CreatedBy:  creatorID,
		RoleType:   role,
		UsageLimit: limit,
		TTL:        24 * time.Hour,
	})
	require.NoError(t, err)
	return inv
}

func (e *testEnv) usedCount(t *testing.T, invitationID uuid.UUID) (int, bool) {
	t.Helper()
	var used int
	var isUsed bool
	require.NoError(t, e.pool.QueryRow(testContext(t), `
		SELECT used_count, is_used FROM employee_invitations WHERE id = $1
	`, invitationID).Scan(&used, &isUsed))
	return used, isUsed
}

func (e *testEnv) countUsers(t *testing.T, companyID uuid.UUID) int {
	t.Helper()
	var n int
	require.NoError(t, e.pool.QueryRow(testContext(t), `
		SELECT COUNT(*) FROM users WHERE company_id = $1
	`, companyID).Scan(&n))
	return n
}

func (e *testEnv) countCEOs(t *testing.T, companyID uuid.UUID) int {
	t.Helper()
	var n int
	require.NoError(t, e.pool.QueryRow(testContext(t), `
		SELECT COUNT(*) FROM users WHERE company_id = $1 AND role = 'CEO'
	`, companyID).Scan(&n))
	return n
}

func (e *testEnv) roleOf(t *testing.T, userID uuid.UUID) roles.Role {
	t.Helper()
	var role roles.Role
	require.NoError(t, e.pool.QueryRow(testContext(t), `
		SELECT role FROM users WHERE id = $1
	`, userID).Scan(&role))
	return role
}
