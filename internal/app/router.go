package app

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/sabohub/sabohub/internal/apperrors"
	"github.com/sabohub/sabohub/internal/auth"
	"github.com/sabohub/sabohub/internal/companies"
	"github.com/sabohub/sabohub/internal/config"
	"github.com/sabohub/sabohub/internal/invitations"
	"github.com/sabohub/sabohub/internal/users"
)

// NewRouter creates and configures the Chi router with all middleware and routes
func NewRouter(pool *pgxpool.Pool, cfg *config.Config, svc *Services) *chi.Mux {
	r := chi.NewRouter()

	r.Use(middleware.RealIP)
	r.Use(apperrors.RequestIDMiddleware)
	r.Use(LoggingMiddleware)
	r.Use(RecoveryMiddleware)
	if cfg.BaseURL != "" {
		r.Use(cors.Handler(cors.Options{
			AllowedOrigins: []string{cfg.BaseURL},
			AllowedMethods: []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
			AllowedHeaders: []string{"Accept", "Authorization", "Content-Type", "X-Request-ID"},
			ExposedHeaders: []string{"X-Request-ID", "Retry-After"},
			MaxAge:         300,
		}))
	}
	r.Use(auth.AuthMiddleware(cfg.JWTSecret))

	r.Get("/healthz", handleHealthz)
	r.Get("/readyz", handleReadyz(pool))

	// Public invitation endpoints, limited per client IP.
	r.Route("/api/v1/invitations", func(r chi.Router) {
		r.Use(ContentTypeJSON)
		r.Use(RedeemRateLimitMiddleware(cfg.RedeemRateLimitRPM))

		r.Post("/validate", invitations.HandleValidate(svc.Invitations))
		r.Post("/redeem", invitations.HandleRedeem(svc.Invitations))
	})

	r.Route("/api/v1/companies/{company_id}", func(r chi.Router) {
		r.Use(ContentTypeJSON)
		r.Use(auth.RequireAuth)
		r.Use(UserRateLimitMiddleware(cfg.APIRateLimitRPM))

		r.Get("/", companies.HandleGetCompany(svc.Companies, svc.Users))
		r.Get("/audit", companies.HandleListAudit(svc.Audit, svc.Users))

		r.Get("/members", users.HandleListMembers(svc.Users))
		r.Put("/members/{user_id}/role", users.HandleUpdateRole(svc.Users))
		r.Put("/members/{user_id}/active", users.HandleSetActive(svc.Users))
		r.Post("/ceo-transfer", users.HandleTransferCEO(svc.Users))

		r.Post("/invitations", invitations.HandleCreate(svc.Invitations))
		r.Get("/invitations", invitations.HandleList(svc.Invitations))
		r.Get("/invitations/{invitation_id}", invitations.HandleGet(svc.Invitations))
		r.Delete("/invitations/{invitation_id}", invitations.HandleRevoke(svc.Invitations))
	})

	return r
}

// handleHealthz returns a simple liveness check
// Always returns 200 OK if the service is running
func handleHealthz(w http.ResponseWriter, r *http.Request) {
	apperrors.WriteSuccess(w, r, http.StatusOK, map[string]string{
		"status": "ok",
	})
}

// handleReadyz returns a readiness check that includes database connectivity
// Returns 200 OK if service is ready to accept traffic, 503 if not
func handleReadyz(pool *pgxpool.Pool) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if pool == nil {
			apperrors.WriteServiceUnavailable(w, r, "Database not configured")
			return
		}
		if err := pool.Ping(r.Context()); err != nil {
			apperrors.WriteServiceUnavailable(w, r, "Database connection failed")
			return
		}

		apperrors.WriteSuccess(w, r, http.StatusOK, map[string]string{
			"status": "ready",
			"db":     "ok",
		})
	}
}
