package users

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"github.com/sabohub/sabohub/internal/apperrors"
	"github.com/sabohub/sabohub/internal/auth"
	"github.com/sabohub/sabohub/internal/db"
	"github.com/sabohub/sabohub/internal/roles"
)

type RoleUpdateRequest struct {
	Role string `json:"role"`
}

type ActiveUpdateRequest struct {
	IsActive *bool `json:"is_active"`
}

type CEOTransferRequest struct {
	UserID uuid.UUID `json:"user_id"`
}

type MembersResponse struct {
	CEOState CEOState   `json:"ceo_state"`
	CEOID    *uuid.UUID `json:"ceo_id"`
	Members  []User     `json:"members"`
}

// WriteError maps users errors onto HTTP responses. It reports false when
// err is not one it knows, leaving the response unwritten.
func WriteError(w http.ResponseWriter, r *http.Request, err error) bool {
	switch {
	case errors.Is(err, ErrNotMember), errors.Is(err, ErrCompanyNotFound):
		apperrors.WriteNotFound(w, r, "Company not found")
	case errors.Is(err, ErrUserNotFound):
		apperrors.WriteNotFound(w, r, "User not found")
	case errors.Is(err, ErrInsufficientPermissions):
		apperrors.WriteForbidden(w, r, "Insufficient permissions")
	case errors.Is(err, roles.ErrInvalidRole):
		apperrors.WriteError(w, r, http.StatusBadRequest, apperrors.CodeInvalidRole, "Invalid role")
	case errors.Is(err, ErrCEOAlreadyExists):
		apperrors.WriteError(w, r, http.StatusConflict, apperrors.CodeCEOAlreadyExists, "Company already has a CEO")
	case errors.Is(err, ErrDuplicateEmail):
		apperrors.WriteError(w, r, http.StatusConflict, apperrors.CodeDuplicateEmail, "Email already registered")
	case errors.Is(err, ErrCannotDeactivateCEO):
		apperrors.WriteConflict(w, r, "The CEO cannot be deactivated")
	case errors.Is(err, ErrCannotModifySelf):
		apperrors.WriteBadRequest(w, r, "Cannot change your own active status")
	case errors.Is(err, ErrUserInactive):
		apperrors.WriteConflict(w, r, "User is inactive")
	case errors.Is(err, db.ErrConcurrencyConflict):
		apperrors.WriteConcurrencyConflict(w, r)
	default:
		return false
	}
	return true
}

func companyAndUserParams(w http.ResponseWriter, r *http.Request) (uuid.UUID, uuid.UUID, bool) {
	companyID, err := uuid.Parse(chi.URLParam(r, "company_id"))
	if err != nil {
		apperrors.WriteBadRequest(w, r, "Invalid company ID")
		return uuid.Nil, uuid.Nil, false
	}
	userID, err := uuid.Parse(chi.URLParam(r, "user_id"))
	if err != nil {
		apperrors.WriteBadRequest(w, r, "Invalid user ID")
		return uuid.Nil, uuid.Nil, false
	}
	return companyID, userID, true
}

// HandleListMembers handles GET /api/v1/companies/{company_id}/members
func HandleListMembers(service *Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		actorUserID := auth.GetUserID(ctx)

		companyID, err := uuid.Parse(chi.URLParam(r, "company_id"))
		if err != nil {
			apperrors.WriteBadRequest(w, r, "Invalid company ID")
			return
		}

		if _, err := service.RequireMember(ctx, actorUserID, companyID); err != nil {
			if WriteError(w, r, err) {
				return
			}
			log.Error().Err(err).Msg("Failed to check membership")
			apperrors.WriteInternalError(w, r, "Failed to list members")
			return
		}

		members, err := service.ListMembers(ctx, companyID)
		if err != nil {
			log.Error().Err(err).Msg("Failed to list members")
			apperrors.WriteInternalError(w, r, "Failed to list members")
			return
		}

		state, ceoID, err := service.CEOState(ctx, companyID)
		if err != nil {
			log.Error().Err(err).Msg("Failed to load CEO state")
			apperrors.WriteInternalError(w, r, "Failed to list members")
			return
		}

		apperrors.WriteSuccess(w, r, http.StatusOK, MembersResponse{
			CEOState: state,
			CEOID:    ceoID,
			Members:  members,
		})
	}
}

// HandleUpdateRole handles PUT /api/v1/companies/{company_id}/members/{user_id}/role
func HandleUpdateRole(service *Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		actorUserID := auth.GetUserID(ctx)

		companyID, targetUserID, ok := companyAndUserParams(w, r)
		if !ok {
			return
		}

		var req RoleUpdateRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			apperrors.WriteBadRequest(w, r, "Invalid request body")
			return
		}
		role, err := roles.Parse(req.Role)
		if err != nil {
			apperrors.WriteError(w, r, http.StatusBadRequest, apperrors.CodeInvalidRole, "Invalid role")
			return
		}

		previous, err := service.ChangeRole(ctx, actorUserID, companyID, targetUserID, role)
		if err != nil {
			if WriteError(w, r, err) {
				return
			}
			log.Error().Err(err).Msg("Failed to update role")
			apperrors.WriteInternalError(w, r, "Failed to update role")
			return
		}

		apperrors.WriteSuccess(w, r, http.StatusOK, map[string]any{
			"user_id":       targetUserID,
			"previous_role": previous,
			"role":          role,
		})
	}
}

// HandleSetActive handles PUT /api/v1/companies/{company_id}/members/{user_id}/active
func HandleSetActive(service *Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		actorUserID := auth.GetUserID(ctx)

		companyID, targetUserID, ok := companyAndUserParams(w, r)
		if !ok {
			return
		}

		var req ActiveUpdateRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.IsActive == nil {
			apperrors.WriteBadRequest(w, r, "Invalid request body")
			return
		}

		if err := service.SetActive(ctx, actorUserID, companyID, targetUserID, *req.IsActive); err != nil {
			if WriteError(w, r, err) {
				return
			}
			log.Error().Err(err).Msg("Failed to update active status")
			apperrors.WriteInternalError(w, r, "Failed to update active status")
			return
		}

		apperrors.WriteSuccess(w, r, http.StatusOK, map[string]any{
			"user_id":   targetUserID,
			"is_active": *req.IsActive,
		})
	}
}

// HandleTransferCEO handles POST /api/v1/companies/{company_id}/ceo-transfer
func HandleTransferCEO(service *Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		actorUserID := auth.GetUserID(ctx)

		companyID, err := uuid.Parse(chi.URLParam(r, "company_id"))
		if err != nil {
			apperrors.WriteBadRequest(w, r, "Invalid company ID")
			return
		}

		var req CEOTransferRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.UserID == uuid.Nil {
			apperrors.WriteBadRequest(w, r, "Invalid request body")
			return
		}

		if err := service.TransferCEO(ctx, actorUserID, companyID, req.UserID); err != nil {
			if WriteError(w, r, err) {
				return
			}
			log.Error().Err(err).Msg("Failed to transfer CEO role")
			apperrors.WriteInternalError(w, r, "Failed to transfer CEO role")
			return
		}

		apperrors.WriteSuccess(w, r, http.StatusOK, map[string]any{
			"ceo_id": req.UserID,
		})
	}
}
