package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"claimdesk/internal/receipt/models"
	id "claimdesk/pkg/domain"
	"claimdesk/pkg/platform/sentinel"
	txcontext "claimdesk/pkg/platform/tx"
)

// Postgres persists receipts.
type Postgres struct {
	db *sql.DB
}

func NewPostgres(db *sql.DB) *Postgres {
	return &Postgres{db: db}
}

const receiptColumns = `id, reference, claim_id, kind, beneficiary, beneficiary_class,
	amount, status, note, created_at, validated_at, updated_at, version`

// CreateBatch inserts all receipts in one transaction, or reuses the ambient
// transaction when the caller already opened one.
func (s *Postgres) CreateBatch(ctx context.Context, receipts []*models.Receipt) error {
	if _, inTx := txcontext.From(ctx); inTx {
		return s.insertAll(ctx, receipts)
	}

	dbTx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin receipt batch: %w", err)
	}
	if err := s.insertAll(txcontext.WithTx(ctx, dbTx), receipts); err != nil {
		_ = dbTx.Rollback()
		return err
	}
	if err := dbTx.Commit(); err != nil {
		return fmt.Errorf("commit receipt batch: %w", err)
	}
	return nil
}

func (s *Postgres) insertAll(ctx context.Context, receipts []*models.Receipt) error {
	q := txcontext.QuerierFrom(ctx, s.db)
	query := `
		INSERT INTO receipts (` + receiptColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
	`
	for _, r := range receipts {
		r.Version = 1
		_, err := q.ExecContext(ctx, query,
			uuid.UUID(r.ID),
			r.Reference,
			uuid.UUID(r.ClaimID),
			string(r.Kind),
			r.Beneficiary,
			string(r.BeneficiaryClass),
			r.Amount,
			string(r.Status),
			r.Note,
			r.CreatedAt,
			r.ValidatedAt,
			r.UpdatedAt,
			r.Version,
		)
		if err != nil {
			if isUniqueViolation(err) {
				return sentinel.ErrConflict
			}
			return fmt.Errorf("insert receipt: %w", err)
		}
	}
	return nil
}

func (s *Postgres) Create(ctx context.Context, receipt *models.Receipt) error {
	return s.CreateBatch(ctx, []*models.Receipt{receipt})
}

func (s *Postgres) FindByID(ctx context.Context, receiptID id.ReceiptID) (*models.Receipt, error) {
	query := `SELECT ` + receiptColumns + ` FROM receipts WHERE id = $1`
	row := txcontext.QuerierFrom(ctx, s.db).QueryRowContext(ctx, query, uuid.UUID(receiptID))
	receipt, err := scanReceipt(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, sentinel.ErrNotFound
		}
		return nil, fmt.Errorf("find receipt: %w", err)
	}
	return receipt, nil
}

func (s *Postgres) Update(ctx context.Context, receipt *models.Receipt) error {
	query := `
		UPDATE receipts SET
			status = $1, note = $2, validated_at = $3, updated_at = $4, version = version + 1
		WHERE id = $5 AND version = $6
	`
	res, err := txcontext.QuerierFrom(ctx, s.db).ExecContext(ctx, query,
		string(receipt.Status),
		receipt.Note,
		receipt.ValidatedAt,
		receipt.UpdatedAt,
		uuid.UUID(receipt.ID),
		receipt.Version,
	)
	if err != nil {
		return fmt.Errorf("update receipt: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("update receipt rows affected: %w", err)
	}
	if affected == 0 {
		if _, findErr := s.FindByID(ctx, receipt.ID); errors.Is(findErr, sentinel.ErrNotFound) {
			return sentinel.ErrNotFound
		}
		return sentinel.ErrConflict
	}
	receipt.Version++
	return nil
}

func (s *Postgres) ListByClaim(ctx context.Context, claimID id.ClaimID) ([]*models.Receipt, error) {
	query := `SELECT ` + receiptColumns + ` FROM receipts WHERE claim_id = $1 ORDER BY created_at`
	rows, err := txcontext.QuerierFrom(ctx, s.db).QueryContext(ctx, query, uuid.UUID(claimID))
	if err != nil {
		return nil, fmt.Errorf("list receipts: %w", err)
	}
	defer rows.Close()

	var out []*models.Receipt
	for rows.Next() {
		receipt, err := scanReceipt(rows)
		if err != nil {
			return nil, fmt.Errorf("scan receipt: %w", err)
		}
		out = append(out, receipt)
	}
	return out, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanReceipt(row rowScanner) (*models.Receipt, error) {
	var (
		receipt     models.Receipt
		receiptID   uuid.UUID
		claimID     uuid.UUID
		kind        string
		class       string
		status      string
		note        sql.NullString
		validatedAt sql.NullTime
	)
	err := row.Scan(
		&receiptID,
		&receipt.Reference,
		&claimID,
		&kind,
		&receipt.Beneficiary,
		&class,
		&receipt.Amount,
		&status,
		&note,
		&receipt.CreatedAt,
		&validatedAt,
		&receipt.UpdatedAt,
		&receipt.Version,
	)
	if err != nil {
		return nil, err
	}

	receipt.ID = id.ReceiptID(receiptID)
	receipt.ClaimID = id.ClaimID(claimID)
	receipt.Kind = models.ReceiptKind(kind)
	receipt.BeneficiaryClass = models.BeneficiaryClass(class)
	receipt.Status = models.ReceiptStatus(status)
	receipt.Note = note.String
	if validatedAt.Valid {
		receipt.ValidatedAt = &validatedAt.Time
	}
	return &receipt, nil
}

func isUniqueViolation(err error) bool {
	// pgx wraps server errors; SQLSTATE 23505 is unique_violation.
	type sqlState interface{ SQLState() string }
	var state sqlState
	return errors.As(err, &state) && state.SQLState() == "23505"
}

var _ Store = (*Postgres)(nil)

// Schema:
//
//	CREATE TABLE receipts (
//	    id                uuid PRIMARY KEY,
//	    reference         text NOT NULL UNIQUE,
//	    claim_id          uuid NOT NULL REFERENCES claims (id),
//	    kind              text NOT NULL,
//	    beneficiary       text NOT NULL,
//	    beneficiary_class text NOT NULL,
//	    amount            bigint NOT NULL,
//	    status            text NOT NULL,
//	    note              text,
//	    created_at        timestamptz NOT NULL,
//	    validated_at      timestamptz,
//	    updated_at        timestamptz NOT NULL,
//	    version           bigint NOT NULL
//	);
//	CREATE INDEX receipts_claim_idx ON receipts (claim_id);
//	-- Belt and braces behind the service-level duplicate check:
//	CREATE UNIQUE INDEX receipts_active_kind_idx ON receipts (claim_id, kind)
//	    WHERE status <> 'cancelled';
