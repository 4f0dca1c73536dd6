package users

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/sabohub/sabohub/internal/apperrors"
	"github.com/sabohub/sabohub/internal/db"
	"github.com/sabohub/sabohub/internal/roles"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func decodeError(t *testing.T, rec *httptest.ResponseRecorder) apperrors.ErrorDetail {
	t.Helper()
	var resp apperrors.ErrorResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	return resp.Error
}

func TestWriteError(t *testing.T) {
	tests := []struct {
		err    error
		status int
		code   string
	}{
		{ErrNotMember, http.StatusNotFound, apperrors.CodeNotFound},
		{ErrUserNotFound, http.StatusNotFound, apperrors.CodeNotFound},
		{ErrInsufficientPermissions, http.StatusForbidden, apperrors.CodeForbidden},
		{fmt.Errorf("%w: %q", roles.ErrInvalidRole, "OWNER"), http.StatusBadRequest, apperrors.CodeInvalidRole},
		{ErrCEOAlreadyExists, http.StatusConflict, apperrors.CodeCEOAlreadyExists},
		{ErrDuplicateEmail, http.StatusConflict, apperrors.CodeDuplicateEmail},
		{ErrCannotDeactivateCEO, http.StatusConflict, apperrors.CodeConflict},
		{fmt.Errorf("failed to update role: %w", db.ErrConcurrencyConflict), http.StatusConflict, apperrors.CodeConcurrencyConflict},
	}

	for _, tt := range tests {
		t.Run(tt.err.Error(), func(t *testing.T) {
			rec := httptest.NewRecorder()
			req := httptest.NewRequest(http.MethodGet, "/", nil)

			require.True(t, WriteError(rec, req, tt.err))
			assert.Equal(t, tt.status, rec.Code)
			assert.Equal(t, tt.code, decodeError(t, rec).Code)
		})
	}

	t.Run("unknown errors are left to the caller", func(t *testing.T) {
		rec := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		assert.False(t, WriteError(rec, req, errors.New("boom")))
	})
}

func routeRequest(method, pattern, target, body string, h http.HandlerFunc) *httptest.ResponseRecorder {
	r := chi.NewRouter()
	r.Method(method, pattern, h)
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(method, target, strings.NewReader(body)))
	return rec
}

func TestHandleUpdateRole_RejectsBadInput(t *testing.T) {
	const pattern = "/companies/{company_id}/members/{user_id}/role"
	h := HandleUpdateRole(nil)
	companyID, userID := uuid.New(), uuid.New()

	rec := routeRequest(http.MethodPut, pattern, "/companies/nope/members/"+userID.String()+"/role", `{"role":"STAFF"}`, h)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = routeRequest(http.MethodPut, pattern, "/companies/"+companyID.String()+"/members/nope/role", `{"role":"STAFF"}`, h)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = routeRequest(http.MethodPut, pattern, "/companies/"+companyID.String()+"/members/"+userID.String()+"/role", `{"role":"ceo"}`, h)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, apperrors.CodeInvalidRole, decodeError(t, rec).Code)
}

func TestHandleSetActive_RequiresFlag(t *testing.T) {
	const pattern = "/companies/{company_id}/members/{user_id}/active"
	target := "/companies/" + uuid.NewString() + "/members/" + uuid.NewString() + "/active"

	rec := routeRequest(http.MethodPut, pattern, target, `{}`, HandleSetActive(nil))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestHandleTransferCEO_RequiresUserID(t *testing.T) {
	const pattern = "/companies/{company_id}/ceo-transfer"
	target := "/companies/" + uuid.NewString() + "/ceo-transfer"

	rec := routeRequest(http.MethodPost, pattern, target, `{"user_id":"00000000-0000-0000-0000-000000000000"}`, HandleTransferCEO(nil))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}
