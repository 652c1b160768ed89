package batch

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"veritag/pkg/domain"
	"veritag/pkg/platform/sentinel"
	txcontext "veritag/pkg/platform/tx"
)

// Schema creates the registry tables. The unique index on codes.code is the
// registry-wide uniqueness guarantee; the sequences table serializes per-key
// allocation under concurrent issuance.
const Schema = `
CREATE TABLE IF NOT EXISTS batches (
	id            UUID PRIMARY KEY,
	batch_number  TEXT NOT NULL UNIQUE,
	product_type  TEXT NOT NULL,
	quantity      INTEGER NOT NULL CHECK (quantity > 0),
	unit          TEXT NOT NULL,
	produced_at   TIMESTAMPTZ NOT NULL,
	expires_at    TIMESTAMPTZ NOT NULL CHECK (expires_at > produced_at),
	status        TEXT NOT NULL,
	manifest_hash TEXT NOT NULL DEFAULT '',
	anchor_ref    TEXT NOT NULL DEFAULT '',
	created_at    TIMESTAMPTZ NOT NULL,
	updated_at    TIMESTAMPTZ NOT NULL
);
CREATE TABLE IF NOT EXISTS codes (
	code       TEXT PRIMARY KEY,
	batch_id   UUID NOT NULL REFERENCES batches (id),
	sequence   INTEGER NOT NULL,
	issued_at  TIMESTAMPTZ NOT NULL,
	status     TEXT NOT NULL,
	scanned_at TIMESTAMPTZ
);
CREATE INDEX IF NOT EXISTS codes_batch_idx ON codes (batch_id, sequence);
CREATE TABLE IF NOT EXISTS code_sequences (
	key  TEXT PRIMARY KEY,
	next INTEGER NOT NULL
);
`

// PostgresStore is the durable registry store.
type PostgresStore struct {
	db *sql.DB
}

// NewPostgres creates a registry store on db.
func NewPostgres(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

func (s *PostgresStore) exec(ctx context.Context) executor {
	if tx, ok := txcontext.From(ctx); ok {
		return tx
	}
	return s.db
}

type executor interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func (s *PostgresStore) ReserveSequences(ctx context.Context, key string, n int) (int, error) {
	var last int
	err := s.exec(ctx).QueryRowContext(ctx, `
		INSERT INTO code_sequences (key, next) VALUES ($1, $2)
		ON CONFLICT (key) DO UPDATE SET next = code_sequences.next + $2
		RETURNING next
	`, key, n).Scan(&last)
	if err != nil {
		return 0, fmt.Errorf("reserve sequences: %w", err)
	}
	return last - n + 1, nil
}

func (s *PostgresStore) CreateBatch(ctx context.Context, b *Batch, codes []Code) error {
	return txcontext.Run(ctx, s.db, func(ctx context.Context) error {
		tx, _ := txcontext.From(ctx)

		_, err := tx.ExecContext(ctx, `
			INSERT INTO batches (id, batch_number, product_type, quantity, unit, produced_at, expires_at, status, manifest_hash, anchor_ref, created_at, updated_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
		`, uuid.UUID(b.ID), b.BatchNumber, b.ProductType, b.Quantity, b.Unit, b.ProducedAt, b.ExpiresAt, b.Status, b.ManifestHash, b.AnchorRef, b.CreatedAt, b.UpdatedAt)
		if err != nil {
			return translateUnique(err, "insert batch")
		}

		stmt, err := tx.PrepareContext(ctx, pq.CopyIn("codes", "code", "batch_id", "sequence", "issued_at", "status", "scanned_at"))
		if err != nil {
			return fmt.Errorf("prepare code copy: %w", err)
		}
		for i := range codes {
			c := codes[i]
			if _, err := stmt.ExecContext(ctx, c.Value, uuid.UUID(c.BatchID), c.Sequence, c.IssuedAt, c.Status, c.ScannedAt); err != nil {
				stmt.Close()
				return translateUnique(err, "copy code")
			}
		}
		if _, err := stmt.ExecContext(ctx); err != nil {
			stmt.Close()
			return translateUnique(err, "flush code copy")
		}
		return stmt.Close()
	})
}

func translateUnique(err error, op string) error {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) && pqErr.Code == "23505" {
		return sentinel.ErrConflict
	}
	return fmt.Errorf("%s: %w", op, err)
}

const batchColumns = `id, batch_number, product_type, quantity, unit, produced_at, expires_at, status, manifest_hash, anchor_ref, created_at, updated_at`

func (s *PostgresStore) FindByID(ctx context.Context, id domain.BatchID) (*Batch, error) {
	row := s.exec(ctx).QueryRowContext(ctx,
		`SELECT `+batchColumns+` FROM batches WHERE id = $1`, uuid.UUID(id))
	return scanBatch(row)
}

func scanBatch(row *sql.Row) (*Batch, error) {
	var (
		b  Batch
		id uuid.UUID
	)
	err := row.Scan(&id, &b.BatchNumber, &b.ProductType, &b.Quantity, &b.Unit, &b.ProducedAt, &b.ExpiresAt, &b.Status, &b.ManifestHash, &b.AnchorRef, &b.CreatedAt, &b.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, sentinel.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scan batch: %w", err)
	}
	b.ID = domain.BatchID(id)
	return &b, nil
}

func (s *PostgresStore) FindCode(ctx context.Context, code string) (*Code, error) {
	row := s.exec(ctx).QueryRowContext(ctx, `
		SELECT code, batch_id, sequence, issued_at, status, scanned_at
		FROM codes WHERE code = $1
	`, code)

	var (
		c       Code
		batchID uuid.UUID
		scanned sql.NullTime
	)
	err := row.Scan(&c.Value, &batchID, &c.Sequence, &c.IssuedAt, &c.Status, &scanned)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, sentinel.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scan code: %w", err)
	}
	c.BatchID = domain.BatchID(batchID)
	if scanned.Valid {
		c.ScannedAt = &scanned.Time
	}
	return &c, nil
}

func (s *PostgresStore) ListCodes(ctx context.Context, id domain.BatchID) ([]Code, error) {
	if _, err := s.FindByID(ctx, id); err != nil {
		return nil, err
	}
	rows, err := s.exec(ctx).QueryContext(ctx, `
		SELECT code, batch_id, sequence, issued_at, status, scanned_at
		FROM codes WHERE batch_id = $1
		ORDER BY sequence ASC
	`, uuid.UUID(id))
	if err != nil {
		return nil, fmt.Errorf("query codes: %w", err)
	}
	defer rows.Close()

	var codes []Code
	for rows.Next() {
		var (
			c       Code
			batchID uuid.UUID
			scanned sql.NullTime
		)
		if err := rows.Scan(&c.Value, &batchID, &c.Sequence, &c.IssuedAt, &c.Status, &scanned); err != nil {
			return nil, fmt.Errorf("scan code row: %w", err)
		}
		c.BatchID = domain.BatchID(batchID)
		if scanned.Valid {
			c.ScannedAt = &scanned.Time
		}
		codes = append(codes, c)
	}
	return codes, rows.Err()
}

// Execute locks the batch row for update, runs validate, applies mutate, and
// writes the result back, all in one transaction (joining any transaction
// already carried by ctx).
func (s *PostgresStore) Execute(ctx context.Context, id domain.BatchID, validate func(*Batch) error, mutate func(*Batch)) (*Batch, error) {
	var result *Batch
	run := func(ctx context.Context) error {
		tx, _ := txcontext.From(ctx)
		row := tx.QueryRowContext(ctx,
			`SELECT `+batchColumns+` FROM batches WHERE id = $1 FOR UPDATE`, uuid.UUID(id))
		b, err := scanBatch(row)
		if err != nil {
			return err
		}
		if err := validate(b); err != nil {
			return err
		}
		mutate(b)
		_, err = tx.ExecContext(ctx, `
			UPDATE batches SET status = $2, updated_at = $3 WHERE id = $1
		`, uuid.UUID(id), b.Status, b.UpdatedAt)
		if err != nil {
			return fmt.Errorf("update batch: %w", err)
		}
		result = b
		return nil
	}

	// Join the caller's transaction when present (shipment completion), or
	// open our own.
	if _, ok := txcontext.From(ctx); ok {
		if err := run(ctx); err != nil {
			return nil, err
		}
		return result, nil
	}
	if err := txcontext.Run(ctx, s.db, run); err != nil {
		return nil, err
	}
	return result, nil
}

func (s *PostgresStore) ClaimFirstUse(ctx context.Context, code string, scannedAt time.Time) error {
	res, err := s.exec(ctx).ExecContext(ctx, `
		UPDATE codes SET status = $2, scanned_at = $3
		WHERE code = $1 AND status = $4
	`, code, CodeStatusScanned, scannedAt, CodeStatusActive)
	if err != nil {
		return fmt.Errorf("claim first use: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("claim first use rows: %w", err)
	}
	if n == 1 {
		return nil
	}

	// The compare-and-swap lost: report why.
	current, err := s.FindCode(ctx, code)
	if err != nil {
		return err
	}
	if current.Status == CodeStatusScanned {
		return sentinel.ErrAlreadyUsed
	}
	return sentinel.ErrInvalidState
}

func (s *PostgresStore) RevokeCode(ctx context.Context, code string) error {
	res, err := s.exec(ctx).ExecContext(ctx,
		`UPDATE codes SET status = $2 WHERE code = $1`, code, CodeStatusRevoked)
	if err != nil {
		return fmt.Errorf("revoke code: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return sentinel.ErrNotFound
	}
	return nil
}

func (s *PostgresStore) ExpireCodes(ctx context.Context, now time.Time) (int, error) {
	res, err := s.exec(ctx).ExecContext(ctx, `
		UPDATE codes SET status = $1
		FROM batches
		WHERE codes.batch_id = batches.id
		  AND codes.status = $2
		  AND batches.expires_at < $3
	`, CodeStatusExpired, CodeStatusActive, now)
	if err != nil {
		return 0, fmt.Errorf("expire codes: %w", err)
	}
	n, err := res.RowsAffected()
	return int(n), err
}
