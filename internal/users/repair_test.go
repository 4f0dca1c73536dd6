package users

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/sabohub/sabohub/internal/roles"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPlanCEORepair(t *testing.T) {
	t1 := time.Date(2024, 1, 1, 9, 0, 0, 0, time.UTC)
	t2 := t1.Add(time.Hour)
	t3 := t2.Add(time.Hour)

	t.Run("keeps earliest of several CEOs", func(t *testing.T) {
		first, second, third := uuid.New(), uuid.New(), uuid.New()
		plan := planCEORepair([]repairCandidate{
			{ID: third, Role: roles.CEO, IsActive: true, CreatedAt: t3},
			{ID: first, Role: roles.CEO, IsActive: true, CreatedAt: t1},
			{ID: second, Role: roles.CEO, IsActive: true, CreatedAt: t2},
		})

		require.NotNil(t, plan.Keep)
		assert.Equal(t, first, *plan.Keep)
		assert.Equal(t, []uuid.UUID{second, third}, plan.Demote)
		assert.Nil(t, plan.Promote)
		assert.False(t, plan.empty())
	})

	t.Run("ignores managers when a CEO exists", func(t *testing.T) {
		ceo, manager := uuid.New(), uuid.New()
		plan := planCEORepair([]repairCandidate{
			{ID: manager, Role: roles.BranchManager, IsActive: true, CreatedAt: t1},
			{ID: ceo, Role: roles.CEO, IsActive: true, CreatedAt: t2},
		})

		require.NotNil(t, plan.Keep)
		assert.Equal(t, ceo, *plan.Keep)
		assert.Empty(t, plan.Demote)
		assert.Nil(t, plan.Promote)
		assert.True(t, plan.empty())
	})

	t.Run("promotes earliest active manager when no CEO", func(t *testing.T) {
		inactive, early, late := uuid.New(), uuid.New(), uuid.New()
		plan := planCEORepair([]repairCandidate{
			{ID: late, Role: roles.BranchManager, IsActive: true, CreatedAt: t3},
			{ID: inactive, Role: roles.BranchManager, IsActive: false, CreatedAt: t1},
			{ID: early, Role: roles.BranchManager, IsActive: true, CreatedAt: t2},
		})

		assert.Nil(t, plan.Keep)
		require.NotNil(t, plan.Promote)
		assert.Equal(t, early, *plan.Promote)
		assert.Empty(t, plan.Demote)
	})

	t.Run("nothing to do without CEOs or managers", func(t *testing.T) {
		plan := planCEORepair(nil)
		assert.Nil(t, plan.Keep)
		assert.True(t, plan.empty())
	})

	t.Run("breaks created_at ties by ID", func(t *testing.T) {
		a := uuid.MustParse("00000000-0000-0000-0000-00000000000a")
		b := uuid.MustParse("00000000-0000-0000-0000-00000000000b")
		plan := planCEORepair([]repairCandidate{
			{ID: b, Role: roles.CEO, CreatedAt: t1},
			{ID: a, Role: roles.CEO, CreatedAt: t1},
		})

		require.NotNil(t, plan.Keep)
		assert.Equal(t, a, *plan.Keep)
		assert.Equal(t, []uuid.UUID{b}, plan.Demote)
	})

	t.Run("does not reorder the input", func(t *testing.T) {
		first, second := uuid.New(), uuid.New()
		in := []repairCandidate{
			{ID: second, Role: roles.CEO, CreatedAt: t2},
			{ID: first, Role: roles.CEO, CreatedAt: t1},
		}
		planCEORepair(in)
		assert.Equal(t, second, in[0].ID)
	})
}

func TestGuardTransition(t *testing.T) {
	alice, bob := uuid.New(), uuid.New()

	assert.NoError(t, guardTransition(uuid.Nil, false, bob))
	assert.NoError(t, guardTransition(uuid.Nil, false, uuid.Nil))
	assert.NoError(t, guardTransition(alice, true, alice))
	assert.ErrorIs(t, guardTransition(alice, true, bob), ErrCEOAlreadyExists)
	assert.ErrorIs(t, guardTransition(alice, true, uuid.Nil), ErrCEOAlreadyExists)
}

func TestCEOStateString(t *testing.T) {
	assert.Equal(t, "NO_CEO", NoCEO.String())
	assert.Equal(t, "HAS_CEO", HasCEO.String())

	text, err := HasCEO.MarshalText()
	require.NoError(t, err)
	assert.Equal(t, "HAS_CEO", string(text))
}
