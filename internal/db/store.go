package db

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/callcoach/backend/internal/archive"
	"github.com/callcoach/backend/internal/models"
)

// Store archives finished call sessions in Postgres.
type Store struct {
	Pool *pgxpool.Pool
}

const schema = `
CREATE TABLE IF NOT EXISTS call_sessions (
	call_id             TEXT PRIMARY KEY,
	customer_identifier TEXT NOT NULL,
	start_time          TIMESTAMPTZ NOT NULL,
	end_time            TIMESTAMPTZ NOT NULL,
	duration_ms         BIGINT NOT NULL,
	initial_lead_score  DOUBLE PRECISION NOT NULL,
	final_lead_score    DOUBLE PRECISION NOT NULL,
	payload             JSONB NOT NULL
);
CREATE INDEX IF NOT EXISTS call_sessions_end_time_idx ON call_sessions (end_time DESC);
CREATE INDEX IF NOT EXISTS call_sessions_customer_idx ON call_sessions (customer_identifier);
`

func New(ctx context.Context, databaseURL string) (*Store, error) {
	cfg, err := pgxpool.ParseConfig(databaseURL)
	if err != nil {
		return nil, err
	}
	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, err
	}
	return &Store{Pool: pool}, nil
}

func (s *Store) Close() {
	s.Pool.Close()
}

func (s *Store) Ping(ctx context.Context) error {
	return s.Pool.Ping(ctx)
}

func (s *Store) EnsureSchema(ctx context.Context) error {
	_, err := s.Pool.Exec(ctx, schema)
	return err
}

func (s *Store) WithTx(ctx context.Context, fn func(tx pgx.Tx) error) error {
	tx, err := s.Pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return err
	}
	defer func() {
		_ = tx.Rollback(ctx)
	}()
	if err := fn(tx); err != nil {
		return err
	}
	return tx.Commit(ctx)
}

func (s *Store) Save(ctx context.Context, session models.CallSession) error {
	payload, err := json.Marshal(session)
	if err != nil {
		return fmt.Errorf("marshal session: %w", err)
	}
	return s.WithTx(ctx, func(tx pgx.Tx) error {
		_, err := tx.Exec(ctx, `
			INSERT INTO call_sessions (call_id, customer_identifier, start_time, end_time, duration_ms, initial_lead_score, final_lead_score, payload)
			VALUES ($1,$2,$3,$4,$5,$6,$7,$8)
			ON CONFLICT (call_id) DO NOTHING
		`, session.CallID, session.CustomerIdentifier, session.StartTime, session.EndTime, session.Duration,
			session.InitialLeadScore, session.FinalLeadScore, payload)
		return err
	})
}

func (s *Store) Get(ctx context.Context, callID string) (models.CallSession, error) {
	row := s.Pool.QueryRow(ctx, `SELECT payload FROM call_sessions WHERE call_id = $1`, callID)
	return scanSession(row)
}

func (s *Store) Latest(ctx context.Context) (models.CallSession, error) {
	row := s.Pool.QueryRow(ctx, `SELECT payload FROM call_sessions ORDER BY end_time DESC LIMIT 1`)
	return scanSession(row)
}

func scanSession(row pgx.Row) (models.CallSession, error) {
	var payload []byte
	if err := row.Scan(&payload); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return models.CallSession{}, archive.ErrNotFound
		}
		return models.CallSession{}, err
	}
	var session models.CallSession
	if err := json.Unmarshal(payload, &session); err != nil {
		return models.CallSession{}, fmt.Errorf("unmarshal session: %w", err)
	}
	return session, nil
}

var _ archive.Archive = (*Store)(nil)
