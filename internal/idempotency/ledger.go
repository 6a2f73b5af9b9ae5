package idempotency

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// ErrKeyConflict is returned by Commit when a record for the key already
// exists. Records are insert-once and never updated.
var ErrKeyConflict = errors.New("idempotency key already committed")

// Record maps a client idempotency key to the fingerprint of the request it
// was first used with and the terminal response served for it.
type Record struct {
	Key          string
	RequestHash  string
	ResponseBody json.RawMessage
	StatusCode   int
	CreatedAt    time.Time
}

// Ledger is the durable idempotency store. Lookup never mutates state.
// Concurrent Commits of the same key race at the storage layer; the loser
// gets ErrKeyConflict and is expected to fall back to Lookup.
type Ledger interface {
	Lookup(ctx context.Context, key string) (*Record, error)
	Commit(ctx context.Context, rec *Record) error
}

type postgresLedger struct {
	db *pgxpool.Pool
}

func NewPostgresLedger(db *pgxpool.Pool) Ledger {
	return &postgresLedger{db: db}
}

func (l *postgresLedger) Lookup(ctx context.Context, key string) (*Record, error) {
	query := `
		SELECT idempotency_key, request_hash, response_body, status_code, created_at
		FROM idempotency_keys
		WHERE idempotency_key = $1
	`

	var rec Record
	err := l.db.QueryRow(ctx, query, key).Scan(
		&rec.Key,
		&rec.RequestHash,
		&rec.ResponseBody,
		&rec.StatusCode,
		&rec.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("ledger: failed to select idempotency record: %w", err)
	}

	return &rec, nil
}

func (l *postgresLedger) Commit(ctx context.Context, rec *Record) error {
	query := `
		INSERT INTO idempotency_keys (idempotency_key, request_hash, response_body, status_code, created_at)
		VALUES ($1, $2, $3, $4, $5)
	`

	_, err := l.db.Exec(ctx, query,
		rec.Key,
		rec.RequestHash,
		rec.ResponseBody,
		rec.StatusCode,
		time.Now().UTC(),
	)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == pgerrcode.UniqueViolation {
			return ErrKeyConflict
		}
		return fmt.Errorf("ledger: failed to insert idempotency record: %w", err)
	}

	return nil
}
