package app

import (
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog/log"
	"github.com/sabohub/sabohub/internal/audit"
	"github.com/sabohub/sabohub/internal/companies"
	"github.com/sabohub/sabohub/internal/config"
	"github.com/sabohub/sabohub/internal/events"
	"github.com/sabohub/sabohub/internal/invitations"
	"github.com/sabohub/sabohub/internal/notify"
	"github.com/sabohub/sabohub/internal/users"
)

// Services bundles the domain services over one pool and one dispatcher.
type Services struct {
	Dispatcher  events.Dispatcher
	Users       *users.Service
	Companies   *companies.Service
	Invitations *invitations.Service
	Audit       *audit.Reader
}

// InvitationPolicy derives invitation limits from configuration.
func InvitationPolicy(cfg *config.Config) invitations.Policy {
	return invitations.Policy{
		DefaultTTL:    cfg.InviteDefaultTTL(),
		MaxTTL:        cfg.InviteMaxTTL(),
		MaxUsageLimit: cfg.InviteMaxUsageLimit,
		CreatePerHour: cfg.InviteCreatePerHour,
	}
}

// NewServices wires the services and the event subscribers: the audit log
// always, the webhook notifier when configured.
func NewServices(pool *pgxpool.Pool, cfg *config.Config) *Services {
	dispatcher := events.NewInMemoryDispatcher()

	if pool != nil {
		audit.NewWriter(pool).Register(dispatcher)
	}

	if cfg.NotifyWebhookURL != "" {
		notify.NewWebhook(cfg.NotifyWebhookURL, cfg.BaseURL, cfg.NotifyTimeout()).Register(dispatcher)
		log.Info().Msg("Webhook notifications enabled")
	}

	return &Services{
		Dispatcher:  dispatcher,
		Users:       users.NewService(pool, dispatcher),
		Companies:   companies.NewService(pool, dispatcher),
		Invitations: invitations.NewService(pool, dispatcher, InvitationPolicy(cfg)),
		Audit:       audit.NewReader(pool),
	}
}
