package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"claimdesk/internal/audit"
	txcontext "claimdesk/pkg/platform/tx"
)

// Postgres implements audit.Store using the transactional outbox pattern.
// Events are written to the outbox table in the same transaction as the
// business mutation and published to Kafka by the outbox worker.
type Postgres struct {
	db *sql.DB
}

func NewPostgres(db *sql.DB) *Postgres {
	return &Postgres{db: db}
}

func (s *Postgres) Append(ctx context.Context, event audit.Event) error {
	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshal audit payload: %w", err)
	}

	aggregateType := "claim"
	aggregateID := event.ClaimID
	if event.ReceiptID != "" {
		aggregateType = "receipt"
		aggregateID = event.ReceiptID
	}

	query := `
		INSERT INTO audit_outbox (id, aggregate_type, aggregate_id, claim_id, action, payload, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`
	_, err = txcontext.QuerierFrom(ctx, s.db).ExecContext(ctx, query,
		uuid.New(),
		aggregateType,
		aggregateID,
		event.ClaimID,
		string(event.Action),
		payload,
		time.Now(),
	)
	if err != nil {
		return fmt.Errorf("insert audit outbox entry: %w", err)
	}
	return nil
}

func (s *Postgres) ListByClaim(ctx context.Context, claimID string) ([]audit.Event, error) {
	query := `SELECT payload FROM audit_outbox WHERE claim_id = $1 ORDER BY created_at`
	rows, err := txcontext.QuerierFrom(ctx, s.db).QueryContext(ctx, query, claimID)
	if err != nil {
		return nil, fmt.Errorf("list audit events: %w", err)
	}
	defer rows.Close()

	var out []audit.Event
	for rows.Next() {
		var payload []byte
		if err := rows.Scan(&payload); err != nil {
			return nil, fmt.Errorf("scan audit event: %w", err)
		}
		var event audit.Event
		if err := json.Unmarshal(payload, &event); err != nil {
			return nil, fmt.Errorf("unmarshal audit event: %w", err)
		}
		out = append(out, event)
	}
	return out, rows.Err()
}

// NextBatch claims up to limit unpublished outbox rows for the worker.
func (s *Postgres) NextBatch(ctx context.Context, limit int) ([]audit.OutboxEntry, error) {
	query := `
		SELECT id, payload FROM audit_outbox
		WHERE published_at IS NULL
		ORDER BY created_at
		LIMIT $1
	`
	rows, err := s.db.QueryContext(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("fetch outbox batch: %w", err)
	}
	defer rows.Close()

	var out []audit.OutboxEntry
	for rows.Next() {
		var entry audit.OutboxEntry
		if err := rows.Scan(&entry.ID, &entry.Payload); err != nil {
			return nil, fmt.Errorf("scan outbox entry: %w", err)
		}
		out = append(out, entry)
	}
	return out, rows.Err()
}

// MarkPublished stamps outbox rows after the Kafka produce succeeded.
func (s *Postgres) MarkPublished(ctx context.Context, ids []uuid.UUID) error {
	if len(ids) == 0 {
		return nil
	}
	query := `UPDATE audit_outbox SET published_at = $1 WHERE id = ANY($2)`
	if _, err := s.db.ExecContext(ctx, query, time.Now(), ids); err != nil {
		return fmt.Errorf("mark outbox published: %w", err)
	}
	return nil
}

// Schema:
//
//	CREATE TABLE audit_outbox (
//	    id             uuid PRIMARY KEY,
//	    aggregate_type text NOT NULL,
//	    aggregate_id   text NOT NULL,
//	    claim_id       text NOT NULL,
//	    action         text NOT NULL,
//	    payload        jsonb NOT NULL,
//	    created_at     timestamptz NOT NULL,
//	    published_at   timestamptz
//	);
//	CREATE INDEX audit_outbox_unpublished_idx ON audit_outbox (created_at) WHERE published_at IS NULL;
