package companies

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/sabohub/sabohub/internal/apperrors"
	"github.com/sabohub/sabohub/internal/audit"
	"github.com/sabohub/sabohub/internal/auth"
	"github.com/sabohub/sabohub/internal/roles"
	"github.com/sabohub/sabohub/internal/users"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeMembers struct {
	members map[uuid.UUID]*users.User
}

func (f *fakeMembers) RequireMember(_ context.Context, userID, companyID uuid.UUID) (*users.User, error) {
	u, ok := f.members[userID]
	if !ok || u.CompanyID != companyID {
		return nil, users.ErrNotMember
	}
	return u, nil
}

type fakeCompanies struct {
	company *Company
}

func (f *fakeCompanies) GetCompany(_ context.Context, companyID uuid.UUID) (*Company, error) {
	if f.company == nil || f.company.ID != companyID {
		return nil, ErrCompanyNotFound
	}
	return f.company, nil
}

type fakeAudit struct {
	items []audit.ListItem
	limit int
	err   error
}

func (f *fakeAudit) ListByCompany(_ context.Context, _ uuid.UUID, limit int) ([]audit.ListItem, error) {
	f.limit = limit
	return f.items, f.err
}

func serve(t *testing.T, pattern, target string, userID uuid.UUID, h http.HandlerFunc) *httptest.ResponseRecorder {
	t.Helper()
	r := chi.NewRouter()
	r.Get(pattern, h)

	req := httptest.NewRequest(http.MethodGet, target, nil)
	req = req.WithContext(auth.WithUserID(req.Context(), userID))
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	return rec
}

func TestHandleGetCompany(t *testing.T) {
	company := &Company{ID: uuid.New(), Name: "Sabo Billiards"}
	staff := &users.User{ID: uuid.New(), CompanyID: company.ID, Role: roles.Staff, IsActive: true}
	outsider := &users.User{ID: uuid.New(), CompanyID: uuid.New(), Role: roles.CEO, IsActive: true}
	members := &fakeMembers{members: map[uuid.UUID]*users.User{staff.ID: staff, outsider.ID: outsider}}
	h := HandleGetCompany(&fakeCompanies{company: company}, members)

	t.Run("member sees company", func(t *testing.T) {
		rec := serve(t, "/companies/{company_id}", "/companies/"+company.ID.String(), staff.ID, h)
		require.Equal(t, http.StatusOK, rec.Code)

		var resp struct {
			Data struct {
				Company Company    `json:"company"`
				Role    roles.Role `json:"role"`
			} `json:"data"`
		}
		require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
		assert.Equal(t, "Sabo Billiards", resp.Data.Company.Name)
		assert.Equal(t, roles.Staff, resp.Data.Role)
	})

	t.Run("non-member gets 404", func(t *testing.T) {
		rec := serve(t, "/companies/{company_id}", "/companies/"+company.ID.String(), outsider.ID, h)
		assert.Equal(t, http.StatusNotFound, rec.Code)
	})

	t.Run("bad company id", func(t *testing.T) {
		rec := serve(t, "/companies/{company_id}", "/companies/not-a-uuid", staff.ID, h)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})
}

func TestHandleListAudit(t *testing.T) {
	companyID := uuid.New()
	ceo := &users.User{ID: uuid.New(), CompanyID: companyID, Role: roles.CEO, IsActive: true}
	leader := &users.User{ID: uuid.New(), CompanyID: companyID, Role: roles.ShiftLeader, IsActive: true}
	members := &fakeMembers{members: map[uuid.UUID]*users.User{ceo.ID: ceo, leader.ID: leader}}
	target := "/companies/" + companyID.String() + "/audit?limit=10"

	t.Run("CEO can read", func(t *testing.T) {
		reader := &fakeAudit{items: []audit.ListItem{{ID: uuid.New(), Action: "user.redeemed", CompanyID: companyID}}}
		rec := serve(t, "/companies/{company_id}/audit", target, ceo.ID, HandleListAudit(reader, members))
		require.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, 10, reader.limit)
	})

	t.Run("shift leader is forbidden", func(t *testing.T) {
		rec := serve(t, "/companies/{company_id}/audit", target, leader.ID, HandleListAudit(&fakeAudit{}, members))
		assert.Equal(t, http.StatusForbidden, rec.Code)
	})

	t.Run("reader failure", func(t *testing.T) {
		rec := serve(t, "/companies/{company_id}/audit", target, ceo.ID, HandleListAudit(&fakeAudit{err: errors.New("down")}, members))
		assert.Equal(t, http.StatusInternalServerError, rec.Code)

		var resp apperrors.ErrorResponse
		require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
		assert.Equal(t, apperrors.CodeInternal, resp.Error.Code)
	})
}
