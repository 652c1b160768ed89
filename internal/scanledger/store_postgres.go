package scanledger

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"veritag/pkg/domain"
	txcontext "veritag/pkg/platform/tx"
)

// Schema creates the ledger table. Applied by the integration test harness
// and by deployments that opt into auto-migration.
const Schema = `
CREATE TABLE IF NOT EXISTS scan_records (
	id         UUID PRIMARY KEY,
	code       TEXT NOT NULL,
	scanned_at TIMESTAMPTZ NOT NULL,
	location   TEXT NOT NULL DEFAULT '',
	agent_id   TEXT NOT NULL DEFAULT '',
	verdict    TEXT NOT NULL,
	corrects   UUID REFERENCES scan_records (id),
	seq        BIGSERIAL
);
CREATE INDEX IF NOT EXISTS scan_records_code_idx ON scan_records (code, seq);
`

// PostgresStore is the durable ledger. Appends join any transaction carried
// in the context.
type PostgresStore struct {
	db *sql.DB
}

// NewPostgres creates a ledger store on db.
func NewPostgres(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func (s *PostgresStore) exec(ctx context.Context) execer {
	if tx, ok := txcontext.From(ctx); ok {
		return tx
	}
	return s.db
}

func (s *PostgresStore) Append(ctx context.Context, record ScanRecord) error {
	var corrects any
	if record.Corrects != nil {
		corrects = uuid.UUID(*record.Corrects)
	}
	_, err := s.exec(ctx).ExecContext(ctx, `
		INSERT INTO scan_records (id, code, scanned_at, location, agent_id, verdict, corrects)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`, uuid.UUID(record.ID), record.Code, record.ScannedAt, record.Location, record.AgentID, record.Verdict, corrects)
	if err != nil {
		return fmt.Errorf("insert scan record: %w", err)
	}
	return nil
}

func (s *PostgresStore) HasPriorScan(ctx context.Context, code string) (bool, *ScanRecord, error) {
	row := s.exec(ctx).QueryRowContext(ctx, `
		SELECT id, code, scanned_at, location, agent_id, verdict, corrects
		FROM scan_records
		WHERE code = $1
		ORDER BY seq ASC
		LIMIT 1
	`, code)

	record, err := scanRow(row)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil, nil
	}
	if err != nil {
		return false, nil, fmt.Errorf("query prior scan: %w", err)
	}
	return true, record, nil
}

func (s *PostgresStore) ListByCode(ctx context.Context, code string) ([]ScanRecord, error) {
	rows, err := s.exec(ctx).QueryContext(ctx, `
		SELECT id, code, scanned_at, location, agent_id, verdict, corrects
		FROM scan_records
		WHERE code = $1
		ORDER BY seq ASC
	`, code)
	if err != nil {
		return nil, fmt.Errorf("query scan records: %w", err)
	}
	defer rows.Close()

	var records []ScanRecord
	for rows.Next() {
		record, err := scanRow(rows)
		if err != nil {
			return nil, fmt.Errorf("scan row: %w", err)
		}
		records = append(records, *record)
	}
	return records, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRow(row rowScanner) (*ScanRecord, error) {
	var (
		record   ScanRecord
		id       uuid.UUID
		corrects uuid.NullUUID
	)
	if err := row.Scan(&id, &record.Code, &record.ScannedAt, &record.Location, &record.AgentID, &record.Verdict, &corrects); err != nil {
		return nil, err
	}
	record.ID = domain.ScanID(id)
	if corrects.Valid {
		scanID := domain.ScanID(corrects.UUID)
		record.Corrects = &scanID
	}
	return &record, nil
}
