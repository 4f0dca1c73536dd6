package companies

import (
	"context"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"github.com/sabohub/sabohub/internal/apperrors"
	"github.com/sabohub/sabohub/internal/audit"
	"github.com/sabohub/sabohub/internal/auth"
	"github.com/sabohub/sabohub/internal/roles"
	"github.com/sabohub/sabohub/internal/users"
)

// MembershipChecker resolves the caller's membership in a company.
type MembershipChecker interface {
	RequireMember(ctx context.Context, userID, companyID uuid.UUID) (*users.User, error)
}

// AuditLister reads a company's audit trail.
type AuditLister interface {
	ListByCompany(ctx context.Context, companyID uuid.UUID, limit int) ([]audit.ListItem, error)
}

// CompanyGetter loads a single company.
type CompanyGetter interface {
	GetCompany(ctx context.Context, companyID uuid.UUID) (*Company, error)
}

func requireMember(w http.ResponseWriter, r *http.Request, members MembershipChecker) (uuid.UUID, *users.User, bool) {
	ctx := r.Context()

	companyID, err := uuid.Parse(chi.URLParam(r, "company_id"))
	if err != nil {
		apperrors.WriteBadRequest(w, r, "Invalid company ID")
		return uuid.Nil, nil, false
	}

	member, err := members.RequireMember(ctx, auth.GetUserID(ctx), companyID)
	if err != nil {
		if users.WriteError(w, r, err) {
			return uuid.Nil, nil, false
		}
		log.Error().Err(err).Msg("Failed to check company membership")
		apperrors.WriteInternalError(w, r, "Failed to check permissions")
		return uuid.Nil, nil, false
	}

	return companyID, member, true
}

// HandleGetCompany handles GET /api/v1/companies/{company_id}
func HandleGetCompany(companies CompanyGetter, members MembershipChecker) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		companyID, member, ok := requireMember(w, r, members)
		if !ok {
			return
		}

		company, err := companies.GetCompany(r.Context(), companyID)
		if err != nil {
			if users.WriteError(w, r, err) {
				return
			}
			log.Error().Err(err).Msg("Failed to get company")
			apperrors.WriteInternalError(w, r, "Failed to get company")
			return
		}

		apperrors.WriteSuccess(w, r, http.StatusOK, map[string]any{
			"company": company,
			"role":    member.Role,
		})
	}
}

// HandleListAudit handles GET /api/v1/companies/{company_id}/audit
func HandleListAudit(reader AuditLister, members MembershipChecker) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		companyID, member, ok := requireMember(w, r, members)
		if !ok {
			return
		}
		if member.Role != roles.CEO && member.Role != roles.BranchManager {
			apperrors.WriteForbidden(w, r, "Insufficient permissions")
			return
		}

		limit := 50
		if raw := r.URL.Query().Get("limit"); raw != "" {
			if v, err := strconv.Atoi(raw); err == nil {
				limit = v
			}
		}

		items, err := reader.ListByCompany(r.Context(), companyID, limit)
		if err != nil {
			log.Error().Err(err).Msg("Failed to list audit log")
			apperrors.WriteInternalError(w, r, "Failed to list audit log")
			return
		}

		apperrors.WriteSuccess(w, r, http.StatusOK, map[string]any{
			"events": items,
		})
	}
}
