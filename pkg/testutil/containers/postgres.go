//go:build integration

package containers

import (
	"context"
	"database/sql"
	"strings"
	"testing"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/testcontainers/testcontainers-go"
	tcpostgres "github.com/testcontainers/testcontainers-go/modules/postgres"
)

// PostgresContainer wraps a testcontainers Postgres instance with the schema
// already applied.
type PostgresContainer struct {
	Container testcontainers.Container
	URL       string
	DB        *sql.DB
}

// NewPostgresContainer starts a new Postgres container and applies the schema.
func NewPostgresContainer(t *testing.T) *PostgresContainer {
	t.Helper()

	ctx := context.Background()

	container, err := tcpostgres.Run(ctx, "postgres:16-alpine",
		tcpostgres.WithDatabase("claimdesk_test"),
		tcpostgres.WithUsername("claimdesk"),
		tcpostgres.WithPassword("claimdesk"),
		tcpostgres.BasicWaitStrategies(),
	)
	if err != nil {
		t.Fatalf("failed to start postgres container: %v", err)
	}

	url, err := container.ConnectionString(ctx, "sslmode=disable")
	if err != nil {
		_ = container.Terminate(ctx)
		t.Fatalf("failed to get postgres connection string: %v", err)
	}

	db, err := sql.Open("pgx", url)
	if err != nil {
		_ = container.Terminate(ctx)
		t.Fatalf("failed to open postgres connection: %v", err)
	}
	db.SetMaxOpenConns(10)

	pingCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		_ = db.Close()
		_ = container.Terminate(ctx)
		t.Fatalf("failed to ping postgres: %v", err)
	}

	if _, err := db.ExecContext(ctx, schema); err != nil {
		_ = db.Close()
		_ = container.Terminate(ctx)
		t.Fatalf("failed to apply schema: %v", err)
	}

	// Note: We don't register t.Cleanup here because the container is managed
	// by the singleton Manager and shared across test suites. Ryuk handles cleanup.

	return &PostgresContainer{
		Container: container,
		URL:       url,
		DB:        db,
	}
}

// TruncateTables empties the given tables.
// Use between tests to ensure isolation.
func (p *PostgresContainer) TruncateTables(ctx context.Context, tables ...string) error {
	if len(tables) == 0 {
		return nil
	}
	_, err := p.DB.ExecContext(ctx, "TRUNCATE "+strings.Join(tables, ", ")+" CASCADE")
	return err
}

const schema = `
CREATE TABLE IF NOT EXISTS claims (
    id                  uuid PRIMARY KEY,
    reference           text NOT NULL UNIQUE,
    contract_id         uuid NOT NULL,
    type                text NOT NULL,
    declared_date       timestamptz NOT NULL,
    outstanding_capital bigint NOT NULL,
    claimed_amount      bigint NOT NULL DEFAULT 0,
    granted_amount      bigint,
    status              text NOT NULL,
    rejection_reason    text,
    payment             jsonb,
    documents_received  boolean NOT NULL DEFAULT false,
    history             jsonb NOT NULL DEFAULT '[]',
    created_at          timestamptz NOT NULL,
    updated_at          timestamptz NOT NULL,
    version             bigint NOT NULL
);
CREATE INDEX IF NOT EXISTS claims_status_idx ON claims (status);

CREATE TABLE IF NOT EXISTS receipts (
    id                uuid PRIMARY KEY,
    reference         text NOT NULL UNIQUE,
    claim_id          uuid NOT NULL REFERENCES claims (id),
    kind              text NOT NULL,
    beneficiary       text NOT NULL,
    beneficiary_class text NOT NULL,
    amount            bigint NOT NULL,
    status            text NOT NULL,
    note              text,
    created_at        timestamptz NOT NULL,
    validated_at      timestamptz,
    updated_at        timestamptz NOT NULL,
    version           bigint NOT NULL
);
CREATE INDEX IF NOT EXISTS receipts_claim_idx ON receipts (claim_id);
CREATE UNIQUE INDEX IF NOT EXISTS receipts_active_kind_idx ON receipts (claim_id, kind)
    WHERE status <> 'cancelled';

CREATE TABLE IF NOT EXISTS audit_outbox (
    id             uuid PRIMARY KEY,
    aggregate_type text NOT NULL,
    aggregate_id   text NOT NULL,
    claim_id       text NOT NULL,
    action         text NOT NULL,
    payload        jsonb NOT NULL,
    created_at     timestamptz NOT NULL,
    published_at   timestamptz
);
CREATE INDEX IF NOT EXISTS audit_outbox_unpublished_idx ON audit_outbox (created_at)
    WHERE published_at IS NULL;
`
