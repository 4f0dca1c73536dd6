package integration

import (
	"testing"

	"github.com/google/uuid"
	"github.com/sabohub/sabohub/internal/companies"
	"github.com/sabohub/sabohub/internal/users"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCompanies_NamesAreUniqueIgnoringCase(t *testing.T) {
	env := newTestEnv(t, testPolicy())
	ctx := testContext(t)

	created, err := env.companies.CreateCompany(ctx, "  Sabo Arena ", companies.Details{BusinessType: "billiards"})
	require.NoError(t, err)
	assert.Equal(t, "Sabo Arena", created.Name)

	_, err = env.companies.CreateCompany(ctx, "SABO ARENA", companies.Details{})
	require.ErrorIs(t, err, companies.ErrDuplicateCompanyName)

	list, err := env.companies.ListCompanies(ctx)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, created.ID, list[0].ID)
}

func TestCompanies_CreateWithCEOIsAtomic(t *testing.T) {
	env := newTestEnv(t, testPolicy())
	env.seedCompany(t, "First Co", "taken@first.example")
	ctx := testContext(t)

	_, _, err := env.companies.CreateCompanyWithCEO(ctx, "Second Co", companies.Details{}, users.NewUser{
		Email: "Taken@First.example",
	})
	require.ErrorIs(t, err, users.ErrDuplicateEmail)

	list, err := env.companies.ListCompanies(ctx)
	require.NoError(t, err)
	assert.Len(t, list, 1, "the company insert must roll back with the user")
}

func TestCompanies_UpdateDetails(t *testing.T) {
	env := newTestEnv(t, testPolicy())
	company, _ := env.seedCompany(t, "Details Co", "ceo@details.example")
	ctx := testContext(t)

	updated, err := env.companies.UpdateCompanyDetails(ctx, company.ID, companies.Details{
		BusinessType: " cafe ",
		ContactEmail: "hello@details.example",
		Address:      "1 Main St",
	})
	require.NoError(t, err)
	assert.Equal(t, "Details Co", updated.Name)
	assert.Equal(t, "cafe", updated.BusinessType)
	assert.Equal(t, "1 Main St", updated.Address)

	got, err := env.companies.GetCompany(ctx, company.ID)
	require.NoError(t, err)
	assert.Equal(t, updated.ContactEmail, got.ContactEmail)

	_, err = env.companies.GetCompany(ctx, uuid.New())
	assert.ErrorIs(t, err, companies.ErrCompanyNotFound)

	_, err = env.companies.UpdateCompanyDetails(ctx, uuid.New(), companies.Details{})
	assert.ErrorIs(t, err, companies.ErrCompanyNotFound)
}

func TestUsers_CreateInUnknownCompany(t *testing.T) {
	env := newTestEnv(t, testPolicy())

	_, err := env.users.CreateUser(testContext(t), nil, users.NewUser{
		Email:     "ghost@nowhere.example",
		Role:      "STAFF",
		CompanyID: uuid.New(),
	})
	assert.ErrorIs(t, err, users.ErrCompanyNotFound)
}
