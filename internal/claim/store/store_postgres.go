package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"claimdesk/internal/claim/models"
	id "claimdesk/pkg/domain"
	"claimdesk/pkg/platform/sentinel"
	txcontext "claimdesk/pkg/platform/tx"
)

// Postgres persists claims. History and payment metadata are stored as jsonb;
// they are only ever read back whole, never queried field by field.
type Postgres struct {
	db *sql.DB
}

func NewPostgres(db *sql.DB) *Postgres {
	return &Postgres{db: db}
}

const claimColumns = `id, reference, contract_id, type, declared_date, outstanding_capital,
	claimed_amount, granted_amount, status, rejection_reason, payment, documents_received,
	history, created_at, updated_at, version`

func (s *Postgres) Create(ctx context.Context, claim *models.Claim) error {
	history, err := json.Marshal(claim.History)
	if err != nil {
		return fmt.Errorf("marshal claim history: %w", err)
	}
	claim.Version = 1

	query := `
		INSERT INTO claims (` + claimColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, NULL, $11, $12, $13, $14, $15)
	`
	_, err = txcontext.QuerierFrom(ctx, s.db).ExecContext(ctx, query,
		uuid.UUID(claim.ID),
		claim.Reference,
		uuid.UUID(claim.ContractID),
		string(claim.Type),
		claim.DeclaredDate,
		claim.OutstandingCapital,
		claim.ClaimedAmount,
		nullableInt64(claim.GrantedAmount),
		string(claim.Status),
		claim.RejectionReason,
		claim.DocumentsReceived,
		history,
		claim.CreatedAt,
		claim.UpdatedAt,
		claim.Version,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return sentinel.ErrConflict
		}
		return fmt.Errorf("insert claim: %w", err)
	}
	return nil
}

func (s *Postgres) FindByID(ctx context.Context, claimID id.ClaimID) (*models.Claim, error) {
	query := `SELECT ` + claimColumns + ` FROM claims WHERE id = $1`
	row := txcontext.QuerierFrom(ctx, s.db).QueryRowContext(ctx, query, uuid.UUID(claimID))
	claim, err := scanClaim(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, sentinel.ErrNotFound
		}
		return nil, fmt.Errorf("find claim: %w", err)
	}
	return claim, nil
}

// Update writes the full row guarded by the optimistic version; zero affected
// rows means either a missing claim or a stale version.
func (s *Postgres) Update(ctx context.Context, claim *models.Claim) error {
	history, err := json.Marshal(claim.History)
	if err != nil {
		return fmt.Errorf("marshal claim history: %w", err)
	}
	var payment []byte
	if claim.Payment != nil {
		payment, err = json.Marshal(claim.Payment)
		if err != nil {
			return fmt.Errorf("marshal claim payment: %w", err)
		}
	}

	query := `
		UPDATE claims SET
			granted_amount = $1, status = $2, rejection_reason = $3, payment = $4,
			documents_received = $5, history = $6, updated_at = $7, version = version + 1
		WHERE id = $8 AND version = $9
	`
	res, err := txcontext.QuerierFrom(ctx, s.db).ExecContext(ctx, query,
		nullableInt64(claim.GrantedAmount),
		string(claim.Status),
		claim.RejectionReason,
		payment,
		claim.DocumentsReceived,
		history,
		claim.UpdatedAt,
		uuid.UUID(claim.ID),
		claim.Version,
	)
	if err != nil {
		return fmt.Errorf("update claim: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("update claim rows affected: %w", err)
	}
	if affected == 0 {
		if _, findErr := s.FindByID(ctx, claim.ID); errors.Is(findErr, sentinel.ErrNotFound) {
			return sentinel.ErrNotFound
		}
		return sentinel.ErrConflict
	}
	claim.Version++
	return nil
}

func (s *Postgres) List(ctx context.Context, filter Filter) ([]*models.Claim, error) {
	query := `SELECT ` + claimColumns + ` FROM claims`
	args := []any{}
	if filter.Status != "" {
		query += ` WHERE status = $1`
		args = append(args, string(filter.Status))
	}
	query += ` ORDER BY created_at`

	rows, err := txcontext.QuerierFrom(ctx, s.db).QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list claims: %w", err)
	}
	defer rows.Close()

	var out []*models.Claim
	for rows.Next() {
		claim, err := scanClaim(rows)
		if err != nil {
			return nil, fmt.Errorf("scan claim: %w", err)
		}
		out = append(out, claim)
	}
	return out, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanClaim(row rowScanner) (*models.Claim, error) {
	var (
		claim           models.Claim
		claimID         uuid.UUID
		contractID      uuid.UUID
		claimType       string
		status          string
		grantedAmount   sql.NullInt64
		rejectionReason sql.NullString
		payment         []byte
		history         []byte
	)
	err := row.Scan(
		&claimID,
		&claim.Reference,
		&contractID,
		&claimType,
		&claim.DeclaredDate,
		&claim.OutstandingCapital,
		&claim.ClaimedAmount,
		&grantedAmount,
		&status,
		&rejectionReason,
		&payment,
		&claim.DocumentsReceived,
		&history,
		&claim.CreatedAt,
		&claim.UpdatedAt,
		&claim.Version,
	)
	if err != nil {
		return nil, err
	}

	claim.ID = id.ClaimID(claimID)
	claim.ContractID = id.ContractID(contractID)
	claim.Type = models.ClaimType(claimType)
	claim.Status = models.ClaimStatus(status)
	claim.RejectionReason = rejectionReason.String
	if grantedAmount.Valid {
		claim.GrantedAmount = &grantedAmount.Int64
	}
	if len(payment) > 0 {
		claim.Payment = &models.PaymentDetails{}
		if err := json.Unmarshal(payment, claim.Payment); err != nil {
			return nil, fmt.Errorf("unmarshal claim payment: %w", err)
		}
	}
	if len(history) > 0 {
		if err := json.Unmarshal(history, &claim.History); err != nil {
			return nil, fmt.Errorf("unmarshal claim history: %w", err)
		}
	}
	return &claim, nil
}

func nullableInt64(v *int64) sql.NullInt64 {
	if v == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: *v, Valid: true}
}

func isUniqueViolation(err error) bool {
	// pgx wraps server errors; SQLSTATE 23505 is unique_violation.
	type sqlState interface{ SQLState() string }
	var state sqlState
	return errors.As(err, &state) && state.SQLState() == "23505"
}

var _ Store = (*Postgres)(nil)

// Schema documents the expected table; migrations live with the deployment.
//
//	CREATE TABLE claims (
//	    id                  uuid PRIMARY KEY,
//	    reference           text NOT NULL UNIQUE,
//	    contract_id         uuid NOT NULL,
//	    type                text NOT NULL,
//	    declared_date       timestamptz NOT NULL,
//	    outstanding_capital bigint NOT NULL,
//	    claimed_amount      bigint NOT NULL DEFAULT 0,
//	    granted_amount      bigint,
//	    status              text NOT NULL,
//	    rejection_reason    text,
//	    payment             jsonb,
//	    documents_received  boolean NOT NULL DEFAULT false,
//	    history             jsonb NOT NULL DEFAULT '[]',
//	    created_at          timestamptz NOT NULL,
//	    updated_at          timestamptz NOT NULL,
//	    version             bigint NOT NULL
//	);
//	CREATE INDEX claims_status_idx ON claims (status);
