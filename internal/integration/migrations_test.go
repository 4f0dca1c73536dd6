package integration

import (
	"testing"

	"github.com/sabohub/sabohub/internal/db"
	"github.com/sabohub/sabohub/internal/roles"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMigrations_ApplyCleanly(t *testing.T) {
	pool, cleanup := newTestDB(t)
	defer cleanup()
	ctx := testContext(t)

	for _, table := range []string{"companies", "users", "employee_invitations", "invitation_redemptions", "audit_log"} {
		var exists bool
		require.NoError(t, pool.QueryRow(ctx, `SELECT to_regclass($1) IS NOT NULL`, "public."+table).Scan(&exists))
		assert.True(t, exists, "table %s", table)
	}

	var indexDef string
	require.NoError(t, pool.QueryRow(ctx, `
		SELECT indexdef FROM pg_indexes WHERE indexname = 'users_one_ceo_per_company'
	`).Scan(&indexDef))
	assert.Contains(t, indexDef, "UNIQUE")
	assert.Contains(t, indexDef, "WHERE")

	pending, err := db.PendingMigrations(ctx, pool)
	require.NoError(t, err)
	assert.Empty(t, pending)

	// Re-running is a no-op.
	require.NoError(t, db.RunMigrations(ctx, pool))
}

func TestMigrations_IsUsedIsDerived(t *testing.T) {
	env := newTestEnv(t, testPolicy())
	company, ceo := env.seedCompany(t, "Derived Co", "ceo@derived.example")
	inv := env.createInvitation(t, company.ID, ceo.ID, roles.Staff, 2)

	ctx := testContext(t)
	_, err := env.pool.Exec(ctx, `UPDATE employee_invitations SET used_count = 2 WHERE id = $1`, inv.ID)
	require.NoError(t, err)

	used, isUsed := env.usedCount(t, inv.ID)
	assert.Equal(t, 2, used)
	assert.True(t, isUsed)

	_, err = env.pool.Exec(ctx, `UPDATE employee_invitations SET used_count = 3 WHERE id = $1`, inv.ID)
	assert.Error(t, err, "used_count may never exceed usage_limit")
}
