package invitations

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/sabohub/sabohub/internal/apperrors"
	"github.com/sabohub/sabohub/internal/db"
	"github.com/sabohub/sabohub/internal/validation"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWriteError(t *testing.T) {
	tests := []struct {
		err    error
		status int
		code   string
	}{
		{ErrInvitationNotFound, http.StatusNotFound, apperrors.CodeInvitationNotFound},
		{ErrInvitationExpired, http.StatusGone, apperrors.CodeInvitationExpiredOrExhausted},
		{ErrInvitationExhausted, http.StatusGone, apperrors.CodeInvitationExpiredOrExhausted},
		{fmt.Errorf("%w: at most 10 uses", ErrInvalidLimit), http.StatusBadRequest, apperrors.CodeInvalidLimit},
		{ErrInvalidTTL, http.StatusBadRequest, apperrors.CodeInvalidTTL},
		{ErrInvalidRole, http.StatusBadRequest, apperrors.CodeInvalidRole},
		{ErrRateLimited, http.StatusTooManyRequests, apperrors.CodeRateLimited},
		{ErrDuplicateEmail, http.StatusConflict, apperrors.CodeDuplicateEmail},
		{validation.ErrInvalidEmail, http.StatusBadRequest, apperrors.CodeInvalidEmail},
		{validation.ErrPasswordTooShort, http.StatusBadRequest, apperrors.CodeBadRequest},
		{ErrInsufficientPermissions, http.StatusForbidden, apperrors.CodeForbidden},
		{ErrNotMember, http.StatusNotFound, apperrors.CodeNotFound},
		{db.ErrConcurrencyConflict, http.StatusConflict, apperrors.CodeConcurrencyConflict},
	}

	for _, tt := range tests {
		t.Run(tt.err.Error(), func(t *testing.T) {
			rec := httptest.NewRecorder()
			require.True(t, WriteError(rec, httptest.NewRequest(http.MethodPost, "/", nil), tt.err))
			assert.Equal(t, tt.status, rec.Code)

			var resp apperrors.ErrorResponse
			require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
			assert.Equal(t, tt.code, resp.Error.Code)
		})
	}

	rec := httptest.NewRecorder()
	assert.False(t, WriteError(rec, httptest.NewRequest(http.MethodPost, "/", nil), errors.New("pq: connection reset")))
}

func TestHandleCreate_RejectsBadInput(t *testing.T) {
	r := chi.NewRouter()
	r.Post("/companies/{company_id}/invitations", HandleCreate(nil))

	tests := []struct {
		name   string
		target string
		body   string
		code   string
	}{
		{"bad company id", "/companies/x/invitations", `{"role_type":"STAFF"}`, apperrors.CodeBadRequest},
		{"bad body", "/companies/" + uuid.NewString() + "/invitations", `{`, apperrors.CodeBadRequest},
		{"unknown role", "/companies/" + uuid.NewString() + "/invitations", `{"role_type":"INTERN"}`, apperrors.CodeInvalidRole},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			r.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, tt.target, strings.NewReader(tt.body)))
			assert.Equal(t, http.StatusBadRequest, rec.Code)

			var resp apperrors.ErrorResponse
			require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
			assert.Equal(t, tt.code, resp.Error.Code)
		})
	}
}

func TestHandleCreate_RejectsOutOfRangeTTL(t *testing.T) {
	// The TTL is rejected before any database access.
	svc := NewService(nil, nil, DefaultPolicy())
	r := chi.NewRouter()
	r.Post("/companies/{company_id}/invitations", HandleCreate(svc))

	for _, hours := range []string{"0", "-5", "721", "3000000", "9223372036854775807"} {
		t.Run(hours, func(t *testing.T) {
			body := `{"role_type":"STAFF","ttl_hours":` + hours + `}`
			rec := httptest.NewRecorder()
			r.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/companies/"+uuid.NewString()+"/invitations", strings.NewReader(body)))
			assert.Equal(t, http.StatusBadRequest, rec.Code)

			var resp apperrors.ErrorResponse
			require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
			assert.Equal(t, apperrors.CodeInvalidTTL, resp.Error.Code)
		})
	}
}

func TestTTLHoursInRange(t *testing.T) {
	maxTTL := 30 * 24 * time.Hour
	assert.True(t, ttlHoursInRange(1, maxTTL))
	assert.True(t, ttlHoursInRange(720, maxTTL))
	assert.False(t, ttlHoursInRange(721, maxTTL))
	assert.False(t, ttlHoursInRange(0, maxTTL))

	assert.True(t, ttlHoursInRange(maxTTLHours, 0))
	assert.False(t, ttlHoursInRange(maxTTLHours+1, 0))
	assert.Positive(t, time.Duration(maxTTLHours)*time.Hour)
}

func TestHandleRedeem_MalformedCodeShortCircuits(t *testing.T) {
	// A malformed code never reaches the database, so no pool is needed.
	svc := NewService(nil, nil, DefaultPolicy())

	rec := httptest.NewRecorder()
	body := `{"code":"TEST_1718000000000","email":"new@sabo.vn"}`
	HandleRedeem(svc).ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/invitations/redeem", strings.NewReader(body)))

	assert.Equal(t, http.StatusNotFound, rec.Code)
	var resp apperrors.ErrorResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	assert.Equal(t, apperrors.CodeInvitationNotFound, resp.Error.Code)
}

func TestHandleValidate_BadBody(t *testing.T) {
	rec := httptest.NewRecorder()
	HandleValidate(nil).ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/invitations/validate", strings.NewReader("nope")))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}
