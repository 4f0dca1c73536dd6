package audit

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"github.com/sabohub/sabohub/internal/db"
	"github.com/sabohub/sabohub/internal/events"
)

// Event represents an audit log entry.
type Event struct {
	ID          uuid.UUID              `db:"id"`
	CompanyID   uuid.NullUUID          `db:"company_id"`
	ActorUserID uuid.NullUUID          `db:"actor_user_id"`
	Action      string                 `db:"action"`
	Meta        map[string]interface{} `db:"meta"`
	CreatedAt   time.Time              `db:"created_at"`
}

// Writer persists audit log entries.
type Writer struct {
	q db.Querier
}

func NewWriter(q db.Querier) *Writer {
	return &Writer{q: q}
}

// LogParams contains parameters for logging an audit event.
type LogParams struct {
	CompanyID   *uuid.UUID
	ActorUserID *uuid.UUID
	Action      string
	Meta        map[string]interface{}
}

func (w *Writer) Log(ctx context.Context, params LogParams) error {
	metaJSON := []byte("{}")
	if params.Meta != nil {
		b, err := json.Marshal(params.Meta)
		if err != nil {
			log.Error().Err(err).Msg("Failed to marshal audit meta")
			return err
		}
		metaJSON = b
	}

	query := `
		INSERT INTO audit_log (company_id, actor_user_id, action, meta)
		VALUES ($1, $2, $3, $4)
	`

	companyID := toNullUUID(params.CompanyID)
	actorUserID := toNullUUID(params.ActorUserID)

	_, err := w.q.Exec(ctx, query, companyID, actorUserID, params.Action, metaJSON)
	if err != nil {
		log.Error().Err(err).Str("action", params.Action).Msg("Failed to write audit log")
		return err
	}

	log.Info().
		Str("action", params.Action).
		Interface("company_id", params.CompanyID).
		Interface("actor_user_id", params.ActorUserID).
		Msg("Audit event logged")

	return nil
}

// Register subscribes the writer to every domain event.
func (w *Writer) Register(d events.Dispatcher) {
	d.SubscribeAll(w.HandleEvent)
}

// HandleEvent records a domain event in the audit log.
func (w *Writer) HandleEvent(ctx context.Context, ev events.Event) error {
	meta, err := payloadMeta(ev)
	if err != nil {
		return err
	}

	var companyID *uuid.UUID
	if ev.CompanyID != uuid.Nil {
		id := ev.CompanyID
		companyID = &id
	}

	return w.Log(ctx, LogParams{
		CompanyID:   companyID,
		ActorUserID: ev.ActorUserID,
		Action:      string(ev.Type),
		Meta:        meta,
	})
}

func payloadMeta(ev events.Event) (map[string]interface{}, error) {
	meta := map[string]interface{}{}
	if ev.Payload != nil {
		b, err := json.Marshal(ev.Payload)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal event payload: %w", err)
		}
		if err := json.Unmarshal(b, &meta); err != nil {
			return nil, fmt.Errorf("event payload is not an object: %w", err)
		}
	}
	meta["event_id"] = ev.ID.String()
	return meta, nil
}

func toNullUUID(id *uuid.UUID) uuid.NullUUID {
	if id == nil {
		return uuid.NullUUID{}
	}
	return uuid.NullUUID{UUID: *id, Valid: true}
}
