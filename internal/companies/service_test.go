package companies

import (
	"strings"
	"testing"

	"github.com/sabohub/sabohub/internal/validation"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalizeDetails(t *testing.T) {
	d, err := normalizeDetails(Details{
		BusinessType: "  billiards ",
		ContactEmail: " Owner@Sabo.VN ",
		ContactPhone: " 0901 ",
		Address:      " 1 Le Loi ",
	})
	require.NoError(t, err)
	assert.Equal(t, Details{
		BusinessType: "billiards",
		ContactEmail: "owner@sabo.vn",
		ContactPhone: "0901",
		Address:      "1 Le Loi",
	}, d)

	d, err = normalizeDetails(Details{})
	require.NoError(t, err)
	assert.Empty(t, d.ContactEmail)

	_, err = normalizeDetails(Details{ContactEmail: "not-an-email"})
	assert.ErrorIs(t, err, validation.ErrInvalidEmail)

	_, err = normalizeDetails(Details{Address: strings.Repeat("a", maxDetailLength+1)})
	assert.ErrorIs(t, err, ErrDetailTooLong)
}
