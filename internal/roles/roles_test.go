package roles

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestIsValidRole_FailsClosed(t *testing.T) {
	for _, r := range All() {
		require.True(t, IsValidRole(string(r)), r)
	}
	for _, s := range []string{"", "ceo", "Ceo", " CEO", "MANAGER", "ADMIN", "STAFF "} {
		require.False(t, IsValidRole(s), s)
	}
}

func TestParse(t *testing.T) {
	r, err := Parse("SHIFT_LEADER")
	require.NoError(t, err)
	require.Equal(t, ShiftLeader, r)

	_, err = Parse("staff")
	require.ErrorIs(t, err, ErrInvalidRole)
}

func TestRoleRank_TotalOrder(t *testing.T) {
	require.Equal(t, 0, RoleRank(CEO))
	require.Equal(t, 1, RoleRank(BranchManager))
	require.Equal(t, 2, RoleRank(ShiftLeader))
	require.Equal(t, 3, RoleRank(Staff))
	require.Equal(t, -1, RoleRank(Role("OWNER")))

	all := All()
	for i := 1; i < len(all); i++ {
		require.True(t, all[i-1].Outranks(all[i]))
		require.False(t, all[i].Outranks(all[i-1]))
	}
	require.False(t, CEO.Outranks(CEO))
	require.False(t, CEO.Outranks(Role("bogus")))
}

func TestCanInvite(t *testing.T) {
	cases := []struct {
		inviter Role
		target  Role
		want    bool
	}{
		{CEO, BranchManager, true},
		{CEO, ShiftLeader, true},
		{CEO, Staff, true},
		{CEO, CEO, false},
		{BranchManager, BranchManager, false},
		{BranchManager, ShiftLeader, true},
		{BranchManager, Staff, true},
		{BranchManager, CEO, false},
		{ShiftLeader, Staff, false},
		{Staff, Staff, false},
		{CEO, Role("INTERN"), false},
	}
	for _, tc := range cases {
		require.Equal(t, tc.want, tc.inviter.CanInvite(tc.target), "%s -> %s", tc.inviter, tc.target)
	}
}

func TestInvitable(t *testing.T) {
	require.False(t, CEO.Invitable())
	require.True(t, BranchManager.Invitable())
	require.True(t, Staff.Invitable())
	require.False(t, Role("").Invitable())
}
