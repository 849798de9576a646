package repository

import (
	"context"
	"database/sql"
	"log/slog"
	"time"

	"github.com/Shamsejaz/PrivacyGuard-sub000/pkg/domain"
)

// AuditEntry is one row of the session event journal. The journal
// stores the session's public ref, never the session ID itself.
type AuditEntry struct {
	ID               string
	Type             string
	SessionRef       string
	PrincipalID      string
	State            string
	Reason           string
	RemainingSeconds int
	OccurredAt       time.Time
}

// AuditRepository appends session lifecycle events to Postgres for
// compliance review. The registry stays authoritative; the journal is
// best effort.
type AuditRepository struct {
	db *sql.DB
}

// NewAuditRepository creates a new audit repository.
func NewAuditRepository(db *sql.DB) *AuditRepository {
	return &AuditRepository{db: db}
}

// EnsureSchema creates the journal table when it does not exist.
func (r *AuditRepository) EnsureSchema(ctx context.Context) error {
	query := `
		CREATE TABLE IF NOT EXISTS session_events (
			id UUID PRIMARY KEY,
			event_type TEXT NOT NULL,
			session_ref TEXT NOT NULL,
			principal_id TEXT NOT NULL,
			state TEXT NOT NULL,
			reason TEXT NOT NULL DEFAULT '',
			remaining_seconds INT NOT NULL DEFAULT 0,
			occurred_at TIMESTAMPTZ NOT NULL
		);
		CREATE INDEX IF NOT EXISTS session_events_session_ref_idx ON session_events (session_ref, occurred_at);
		CREATE INDEX IF NOT EXISTS session_events_principal_idx ON session_events (principal_id, occurred_at);
	`
	_, err := r.db.ExecContext(ctx, query)
	return err
}

// Record appends one event.
func (r *AuditRepository) Record(ctx context.Context, ev domain.SessionEvent) error {
	query := `
		INSERT INTO session_events (id, event_type, session_ref, principal_id, state, reason, remaining_seconds, occurred_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`
	_, err := r.db.ExecContext(ctx, query,
		ev.ID, string(ev.Type), domain.SessionRef(ev.SessionID), ev.PrincipalID,
		ev.State.String(), string(ev.Reason), ev.RemainingSeconds, ev.At,
	)
	return err
}

// ListBySession returns the journal for one session ref, oldest first.
func (r *AuditRepository) ListBySession(ctx context.Context, sessionRef string, limit int) ([]*AuditEntry, error) {
	query := `
		SELECT id, event_type, session_ref, principal_id, state, reason, remaining_seconds, occurred_at
		FROM session_events
		WHERE session_ref = $1
		ORDER BY occurred_at ASC
		LIMIT $2
	`
	return r.list(ctx, query, sessionRef, limit)
}

// ListByPrincipal returns the journal for one principal, newest first.
func (r *AuditRepository) ListByPrincipal(ctx context.Context, principalID string, limit int) ([]*AuditEntry, error) {
	query := `
		SELECT id, event_type, session_ref, principal_id, state, reason, remaining_seconds, occurred_at
		FROM session_events
		WHERE principal_id = $1
		ORDER BY occurred_at DESC
		LIMIT $2
	`
	return r.list(ctx, query, principalID, limit)
}

func (r *AuditRepository) list(ctx context.Context, query, key string, limit int) ([]*AuditEntry, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := r.db.QueryContext(ctx, query, key, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var entries []*AuditEntry
	for rows.Next() {
		e := &AuditEntry{}
		if err := rows.Scan(&e.ID, &e.Type, &e.SessionRef, &e.PrincipalID,
			&e.State, &e.Reason, &e.RemainingSeconds, &e.OccurredAt); err != nil {
			return nil, err
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// Consume drains a bus subscription into the journal until the channel
// closes or the context is canceled. Insert failures are logged and
// skipped so a database outage never stalls event delivery.
func (r *AuditRepository) Consume(ctx context.Context, events <-chan domain.SessionEvent, logger *slog.Logger) {
	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-events:
			if !ok {
				return
			}
			recordCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			if err := r.Record(recordCtx, ev); err != nil {
				logger.Error("audit record failed", "type", ev.Type, "error", err)
			}
			cancel()
		}
	}
}
