package invitations

import (
	"encoding/json"
	"errors"
	"math"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"github.com/sabohub/sabohub/internal/apperrors"
	"github.com/sabohub/sabohub/internal/auth"
	"github.com/sabohub/sabohub/internal/roles"
	"github.com/sabohub/sabohub/internal/users"
	"github.com/sabohub/sabohub/internal/validation"
)

type CreateRequest struct {
	RoleType   string `json:"role_type"`
	UsageLimit *int   `json:"usage_limit"`
	TTLHours   *int   `json:"ttl_hours"`
}

type RedeemRequest struct {
	Code     string `json:"code"`
	Email    string `json:"email"`
	FullName string `json:"full_name"`
	Password string `json:"password"`
}

type ValidateRequest struct {
	Code string `json:"code"`
}

// ValidateResponse is what an anonymous caller learns about a code.
type ValidateResponse struct {
	CompanyID     uuid.UUID  `json:"company_id"`
	RoleType      roles.Role `json:"role_type"`
	ExpiresAt     time.Time  `json:"expires_at"`
	RemainingUses int        `json:"remaining_uses"`
}

// WriteError maps invitation errors onto HTTP responses and reports whether
// it wrote one.
func WriteError(w http.ResponseWriter, r *http.Request, err error) bool {
	switch {
	case errors.Is(err, ErrInvitationNotFound):
		apperrors.WriteError(w, r, http.StatusNotFound, apperrors.CodeInvitationNotFound, "Invitation not found")
	case errors.Is(err, ErrInvitationExpiredOrExhausted):
		apperrors.WriteError(w, r, http.StatusGone, apperrors.CodeInvitationExpiredOrExhausted, "Invitation has expired or has no uses left")
	case errors.Is(err, ErrInvalidLimit):
		apperrors.WriteError(w, r, http.StatusBadRequest, apperrors.CodeInvalidLimit, err.Error())
	case errors.Is(err, ErrInvalidTTL):
		apperrors.WriteError(w, r, http.StatusBadRequest, apperrors.CodeInvalidTTL, err.Error())
	case errors.Is(err, ErrRateLimited):
		apperrors.WriteTooManyRequests(w, r, "Too many invitations created recently")
	case errors.Is(err, validation.ErrEmailRequired),
		errors.Is(err, validation.ErrEmailTooLong),
		errors.Is(err, validation.ErrInvalidEmail):
		apperrors.WriteError(w, r, http.StatusBadRequest, apperrors.CodeInvalidEmail, err.Error())
	case validation.IsValidationError(err):
		apperrors.WriteBadRequest(w, r, err.Error())
	default:
		return users.WriteError(w, r, err)
	}
	return true
}

// maxTTLHours bounds ttl_hours when the policy sets no maximum, so the
// conversion to time.Duration cannot overflow.
const maxTTLHours = int(math.MaxInt64 / int64(time.Hour))

// ttlHoursInRange reports whether hours is positive and within maxTTL.
func ttlHoursInRange(hours int, maxTTL time.Duration) bool {
	limit := maxTTLHours
	if maxTTL > 0 {
		limit = int(maxTTL / time.Hour)
	}
	return hours > 0 && hours <= limit
}

// HandleCreate handles POST /api/v1/companies/{company_id}/invitations
func HandleCreate(service *Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		actorUserID := auth.GetUserID(ctx)

		companyID, err := uuid.Parse(chi.URLParam(r, "company_id"))
		if err != nil {
			apperrors.WriteBadRequest(w, r, "Invalid company ID")
			return
		}

		var req CreateRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			apperrors.WriteBadRequest(w, r, "Invalid request body")
			return
		}

		role, err := roles.Parse(req.RoleType)
		if err != nil {
			apperrors.WriteError(w, r, http.StatusBadRequest, apperrors.CodeInvalidRole, "Invalid role")
			return
		}

		params := CreateParams{
			CompanyID:  companyID,
			CreatedBy:  actorUserID,
			RoleType:   role,
			UsageLimit: 1,
			TTL:        service.Policy().DefaultTTL,
		}
		if req.UsageLimit != nil {
			params.UsageLimit = *req.UsageLimit
		}
		if req.TTLHours != nil {
			if !ttlHoursInRange(*req.TTLHours, service.Policy().MaxTTL) {
				WriteError(w, r, ErrInvalidTTL)
				return
			}
			params.TTL = time.Duration(*req.TTLHours) * time.Hour
		}

		inv, err := service.CreateInvitation(ctx, params)
		if err != nil {
			if WriteError(w, r, err) {
				return
			}
			log.Error().Err(err).Msg("Failed to create invitation")
			apperrors.WriteInternalError(w, r, "Failed to create invitation")
			return
		}

		log.Info().
			Str("invitation_id", inv.ID.String()).
			Str("company_id", companyID.String()).
			Str("role_type", inv.RoleType.String()).
			Msg("Invitation created")

		apperrors.WriteSuccess(w, r, http.StatusCreated, inv)
	}
}

// HandleList handles GET /api/v1/companies/{company_id}/invitations
func HandleList(service *Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		actorUserID := auth.GetUserID(ctx)

		companyID, err := uuid.Parse(chi.URLParam(r, "company_id"))
		if err != nil {
			apperrors.WriteBadRequest(w, r, "Invalid company ID")
			return
		}

		includeInactive := r.URL.Query().Get("all") == "true"

		items, err := service.ListInvitations(ctx, actorUserID, companyID, includeInactive)
		if err != nil {
			if WriteError(w, r, err) {
				return
			}
			log.Error().Err(err).Msg("Failed to list invitations")
			apperrors.WriteInternalError(w, r, "Failed to list invitations")
			return
		}

		apperrors.WriteSuccess(w, r, http.StatusOK, map[string]any{
			"invitations": items,
		})
	}
}

func companyAndInvitationParams(w http.ResponseWriter, r *http.Request) (uuid.UUID, uuid.UUID, bool) {
	companyID, err := uuid.Parse(chi.URLParam(r, "company_id"))
	if err != nil {
		apperrors.WriteBadRequest(w, r, "Invalid company ID")
		return uuid.Nil, uuid.Nil, false
	}
	invitationID, err := uuid.Parse(chi.URLParam(r, "invitation_id"))
	if err != nil {
		apperrors.WriteBadRequest(w, r, "Invalid invitation ID")
		return uuid.Nil, uuid.Nil, false
	}
	return companyID, invitationID, true
}

// HandleGet handles GET /api/v1/companies/{company_id}/invitations/{invitation_id}
func HandleGet(service *Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()

		companyID, invitationID, ok := companyAndInvitationParams(w, r)
		if !ok {
			return
		}

		item, err := service.GetInvitation(ctx, auth.GetUserID(ctx), companyID, invitationID)
		if err != nil {
			if WriteError(w, r, err) {
				return
			}
			log.Error().Err(err).Msg("Failed to get invitation")
			apperrors.WriteInternalError(w, r, "Failed to get invitation")
			return
		}

		apperrors.WriteSuccess(w, r, http.StatusOK, item)
	}
}

// HandleRevoke handles DELETE /api/v1/companies/{company_id}/invitations/{invitation_id}
func HandleRevoke(service *Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()

		companyID, invitationID, ok := companyAndInvitationParams(w, r)
		if !ok {
			return
		}

		inv, err := service.RevokeInvitation(ctx, auth.GetUserID(ctx), companyID, invitationID)
		if err != nil {
			if WriteError(w, r, err) {
				return
			}
			log.Error().Err(err).Msg("Failed to revoke invitation")
			apperrors.WriteInternalError(w, r, "Failed to revoke invitation")
			return
		}

		apperrors.WriteSuccess(w, r, http.StatusOK, map[string]any{
			"revoked":    true,
			"expires_at": inv.ExpiresAt,
		})
	}
}

// HandleValidate handles POST /api/v1/invitations/validate
func HandleValidate(service *Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req ValidateRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			apperrors.WriteBadRequest(w, r, "Invalid request body")
			return
		}

		inv, err := service.ValidateInvitation(r.Context(), req.Code)
		if err != nil {
			if WriteError(w, r, err) {
				return
			}
			log.Error().Err(err).Msg("Failed to validate invitation")
			apperrors.WriteInternalError(w, r, "Failed to validate invitation")
			return
		}

		apperrors.WriteSuccess(w, r, http.StatusOK, ValidateResponse{
			CompanyID:     inv.CompanyID,
			RoleType:      inv.RoleType,
			ExpiresAt:     inv.ExpiresAt,
			RemainingUses: inv.RemainingUses(),
		})
	}
}

// HandleRedeem handles POST /api/v1/invitations/redeem
func HandleRedeem(service *Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req RedeemRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			apperrors.WriteBadRequest(w, r, "Invalid request body")
			return
		}

		redemption, err := service.RedeemInvitation(r.Context(), req.Code, Profile{
			Email:    req.Email,
			FullName: req.FullName,
			Password: req.Password,
		})
		if err != nil {
			if WriteError(w, r, err) {
				return
			}
			log.Error().Err(err).Msg("Failed to redeem invitation")
			apperrors.WriteInternalError(w, r, "Failed to redeem invitation")
			return
		}

		log.Info().
			Str("user_id", redemption.User.ID.String()).
			Str("company_id", redemption.User.CompanyID.String()).
			Str("invitation_id", redemption.Invitation.ID.String()).
			Int("used_count", redemption.Invitation.UsedCount).
			Msg("Invitation redeemed")

		apperrors.WriteSuccess(w, r, http.StatusCreated, map[string]any{
			"user": redemption.User,
			"invitation": map[string]any{
				"id":          redemption.Invitation.ID,
				"used_count":  redemption.Invitation.UsedCount,
				"usage_limit": redemption.Invitation.UsageLimit,
				"is_used":     redemption.Invitation.IsUsed,
			},
		})
	}
}
