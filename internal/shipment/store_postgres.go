package shipment

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/lib/pq"

	"veritag/pkg/domain"
	"veritag/pkg/platform/sentinel"
	platformtx "veritag/pkg/platform/tx"
)

// Schema creates the shipment tables. Applied by the test harness and by
// deployment migrations.
const Schema = `
CREATE TABLE IF NOT EXISTS shipments (
    id                UUID PRIMARY KEY,
    origin            TEXT NOT NULL,
    destination       TEXT NOT NULL,
    departed_at       TIMESTAMPTZ NOT NULL,
    estimated_arrival TIMESTAMPTZ NOT NULL,
    arrived_at        TIMESTAMPTZ,
    status            TEXT NOT NULL,
    created_at        TIMESTAMPTZ NOT NULL,
    updated_at        TIMESTAMPTZ NOT NULL
);

CREATE TABLE IF NOT EXISTS shipment_batches (
    shipment_id UUID NOT NULL REFERENCES shipments(id),
    batch_id    UUID NOT NULL,
    position    INT  NOT NULL,
    PRIMARY KEY (shipment_id, batch_id)
);

CREATE INDEX IF NOT EXISTS idx_shipment_batches_batch ON shipment_batches (batch_id);

CREATE TABLE IF NOT EXISTS tracking_events (
    id          BIGSERIAL PRIMARY KEY,
    shipment_id UUID NOT NULL REFERENCES shipments(id),
    occurred_at TIMESTAMPTZ NOT NULL,
    location    TEXT NOT NULL,
    status      TEXT NOT NULL,
    note        TEXT NOT NULL DEFAULT ''
);

CREATE INDEX IF NOT EXISTS idx_tracking_events_shipment ON tracking_events (shipment_id, id);
`

type PostgresStore struct {
	db *sql.DB
}

func NewPostgres(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

type executor interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func (s *PostgresStore) conn(ctx context.Context) executor {
	if tx, ok := platformtx.From(ctx); ok {
		return tx
	}
	return s.db
}

func (s *PostgresStore) Create(ctx context.Context, sh *Shipment) error {
	return platformtx.Run(ctx, s.db, func(ctx context.Context) error {
		tx, _ := platformtx.From(ctx)
		_, err := tx.ExecContext(ctx, `
			INSERT INTO shipments (id, origin, destination, departed_at, estimated_arrival, arrived_at, status, created_at, updated_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
			sh.ID.String(), sh.Origin, sh.Destination, sh.DepartedAt, sh.EstimatedArrival,
			nullTime(sh.ArrivedAt), string(sh.Status), sh.CreatedAt, sh.UpdatedAt)
		if err != nil {
			return translateUnique(err)
		}
		for i, bid := range sh.BatchIDs {
			if _, err := tx.ExecContext(ctx, `
				INSERT INTO shipment_batches (shipment_id, batch_id, position) VALUES ($1, $2, $3)`,
				sh.ID.String(), bid.String(), i); err != nil {
				return translateUnique(err)
			}
		}
		for _, ev := range sh.Events {
			if err := insertEvent(ctx, tx, sh.ID, ev); err != nil {
				return err
			}
		}
		return nil
	})
}

func (s *PostgresStore) FindByID(ctx context.Context, id domain.ShipmentID) (*Shipment, error) {
	return s.load(ctx, s.conn(ctx), id, false)
}

func (s *PostgresStore) ListByBatch(ctx context.Context, batchID domain.BatchID) ([]*Shipment, error) {
	conn := s.conn(ctx)
	rows, err := conn.QueryContext(ctx, `
		SELECT shipment_id FROM shipment_batches WHERE batch_id = $1`, batchID.String())
	if err != nil {
		return nil, fmt.Errorf("list shipments by batch: %w", err)
	}
	defer rows.Close()

	var ids []domain.ShipmentID
	for rows.Next() {
		var raw string
		if err := rows.Scan(&raw); err != nil {
			return nil, err
		}
		id, err := domain.ParseShipmentID(raw)
		if err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	out := make([]*Shipment, 0, len(ids))
	for _, id := range ids {
		sh, err := s.load(ctx, conn, id, false)
		if err != nil {
			return nil, err
		}
		out = append(out, sh)
	}
	return out, nil
}

// Execute locks the shipment row for the duration of validate and mutate.
// When the caller already runs inside a transaction the row lock joins it,
// which is how a completion reconciles batches atomically.
func (s *PostgresStore) Execute(ctx context.Context, id domain.ShipmentID, validate func(*Shipment) error, mutate func(*Shipment) error) (*Shipment, error) {
	var out *Shipment
	run := func(ctx context.Context) error {
		conn, _ := platformtx.From(ctx)
		sh, err := s.load(ctx, conn, id, true)
		if err != nil {
			return err
		}
		if err := validate(sh); err != nil {
			return err
		}
		before := len(sh.Events)
		if err := mutate(sh); err != nil {
			return err
		}
		if _, err := conn.ExecContext(ctx, `
			UPDATE shipments SET status = $2, arrived_at = $3, updated_at = $4 WHERE id = $1`,
			sh.ID.String(), string(sh.Status), nullTime(sh.ArrivedAt), sh.UpdatedAt); err != nil {
			return fmt.Errorf("update shipment: %w", err)
		}
		for _, ev := range sh.Events[before:] {
			if err := insertEvent(ctx, conn, sh.ID, ev); err != nil {
				return err
			}
		}
		out = sh
		return nil
	}

	var err error
	if _, ok := platformtx.From(ctx); ok {
		err = run(ctx)
	} else {
		err = platformtx.Run(ctx, s.db, run)
	}
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (s *PostgresStore) load(ctx context.Context, conn executor, id domain.ShipmentID, forUpdate bool) (*Shipment, error) {
	query := `
		SELECT id, origin, destination, departed_at, estimated_arrival, arrived_at, status, created_at, updated_at
		FROM shipments WHERE id = $1`
	if forUpdate {
		query += " FOR UPDATE"
	}
	var (
		sh      Shipment
		rawID   string
		arrived sql.NullTime
		status  string
	)
	err := conn.QueryRowContext(ctx, query, id.String()).Scan(
		&rawID, &sh.Origin, &sh.Destination, &sh.DepartedAt, &sh.EstimatedArrival,
		&arrived, &status, &sh.CreatedAt, &sh.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, sentinel.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("load shipment: %w", err)
	}
	if sh.ID, err = domain.ParseShipmentID(rawID); err != nil {
		return nil, err
	}
	if arrived.Valid {
		at := arrived.Time
		sh.ArrivedAt = &at
	}
	sh.Status = Status(status)

	rows, err := conn.QueryContext(ctx, `
		SELECT batch_id FROM shipment_batches WHERE shipment_id = $1 ORDER BY position`, id.String())
	if err != nil {
		return nil, fmt.Errorf("load shipment batches: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var raw string
		if err := rows.Scan(&raw); err != nil {
			return nil, err
		}
		bid, err := domain.ParseBatchID(raw)
		if err != nil {
			return nil, err
		}
		sh.BatchIDs = append(sh.BatchIDs, bid)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	evRows, err := conn.QueryContext(ctx, `
		SELECT occurred_at, location, status, note FROM tracking_events
		WHERE shipment_id = $1 ORDER BY id`, id.String())
	if err != nil {
		return nil, fmt.Errorf("load tracking events: %w", err)
	}
	defer evRows.Close()
	for evRows.Next() {
		var (
			ev     TrackingEvent
			evStat string
		)
		if err := evRows.Scan(&ev.At, &ev.Location, &evStat, &ev.Note); err != nil {
			return nil, err
		}
		ev.Status = Status(evStat)
		sh.Events = append(sh.Events, ev)
	}
	if err := evRows.Err(); err != nil {
		return nil, err
	}
	return &sh, nil
}

func insertEvent(ctx context.Context, conn executor, id domain.ShipmentID, ev TrackingEvent) error {
	if _, err := conn.ExecContext(ctx, `
		INSERT INTO tracking_events (shipment_id, occurred_at, location, status, note)
		VALUES ($1, $2, $3, $4, $5)`,
		id.String(), ev.At, ev.Location, string(ev.Status), ev.Note); err != nil {
		return fmt.Errorf("insert tracking event: %w", err)
	}
	return nil
}

func nullTime(t *time.Time) sql.NullTime {
	if t == nil {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: *t, Valid: true}
}

func translateUnique(err error) error {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) && pqErr.Code == "23505" {
		return sentinel.ErrConflict
	}
	return err
}

// PostgresTxRunner opens one SQL transaction and carries it in ctx so every
// store call inside fn joins it.
type PostgresTxRunner struct {
	db *sql.DB
}

func NewPostgresTxRunner(db *sql.DB) *PostgresTxRunner { return &PostgresTxRunner{db: db} }

func (r *PostgresTxRunner) RunInTx(ctx context.Context, fn func(ctx context.Context) error) error {
	return platformtx.Run(ctx, r.db, fn)
}
