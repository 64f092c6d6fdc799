package store

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"

	"github.com/chainwatch/pumpwatch/internal/model"
)

// Store is the optional Postgres sink for run results. The pipeline is
// file-to-stdout without it.
type Store struct {
	pool   *pgxpool.Pool
	logger zerolog.Logger
}

// Open connects to Postgres and verifies the connection.
func Open(ctx context.Context, url string, logger zerolog.Logger) (*Store, error) {
	poolConfig, err := pgxpool.ParseConfig(url)
	if err != nil {
		return nil, fmt.Errorf("failed to parse connection string: %w", err)
	}
	poolConfig.MaxConnLifetime = time.Hour

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to create connection pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	logger.Info().Msg("Connected to result store")

	return &Store{
		pool:   pool,
		logger: logger.With().Str("component", "store").Logger(),
	}, nil
}

func (s *Store) Close() {
	s.pool.Close()
	s.logger.Info().Msg("Result store closed")
}

// Migrate applies the result schema. Idempotent.
func (s *Store) Migrate(ctx context.Context) error {
	statements := []string{
		`CREATE TABLE IF NOT EXISTS pump_dump_events (
			id BIGSERIAL PRIMARY KEY,
			run_at TIMESTAMPTZ NOT NULL DEFAULT now(),
			interval_id BIGINT NOT NULL,
			token_type TEXT,
			direction TEXT NOT NULL,
			current_sum NUMERIC NOT NULL,
			previous_sum NUMERIC NOT NULL,
			difference NUMERIC NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS event_evidence (
			event_id BIGINT NOT NULL REFERENCES pump_dump_events(id),
			tx_hash TEXT NOT NULL,
			block_number BIGINT NOT NULL,
			value_eth NUMERIC NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS anomaly_annotations (
			id BIGSERIAL PRIMARY KEY,
			run_at TIMESTAMPTZ NOT NULL DEFAULT now(),
			tx_hash TEXT NOT NULL,
			score DOUBLE PRECISION NOT NULL,
			is_anomaly BOOLEAN NOT NULL
		)`,
	}

	for _, stmt := range statements {
		if _, err := s.pool.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("failed to apply schema: %w", err)
		}
	}
	return nil
}

// InsertEvent stores one event with its evidence transactions and returns the
// event row id.
func (s *Store) InsertEvent(ctx context.Context, event model.PumpDumpEvent, evidence []model.Transaction) (int64, error) {
	var eventID int64
	err := s.pool.QueryRow(ctx,
		`INSERT INTO pump_dump_events (interval_id, token_type, direction, current_sum, previous_sum, difference)
		 VALUES ($1, $2, $3, $4, $5, $6)
		 RETURNING id`,
		event.IntervalID,
		event.TokenType,
		string(event.Direction),
		event.CurrentSum.String(),
		event.PreviousSum.String(),
		event.Difference.String(),
	).Scan(&eventID)
	if err != nil {
		return 0, fmt.Errorf("failed to insert event: %w", err)
	}

	if len(evidence) == 0 {
		return eventID, nil
	}

	batch := &pgx.Batch{}
	for _, tx := range evidence {
		batch.Queue(
			`INSERT INTO event_evidence (event_id, tx_hash, block_number, value_eth)
			 VALUES ($1, $2, $3, $4)`,
			eventID, tx.Hash, tx.BlockNumber, tx.ValueEth.String(),
		)
	}
	br := s.pool.SendBatch(ctx, batch)
	defer br.Close()

	for i := 0; i < batch.Len(); i++ {
		if _, err := br.Exec(); err != nil {
			return 0, fmt.Errorf("failed to insert evidence for event %d: %w", eventID, err)
		}
	}
	return eventID, nil
}

// InsertAnnotations stores the per-transaction anomaly annotations.
func (s *Store) InsertAnnotations(ctx context.Context, annotations []model.Annotation) error {
	if len(annotations) == 0 {
		return nil
	}

	batch := &pgx.Batch{}
	for _, a := range annotations {
		batch.Queue(
			`INSERT INTO anomaly_annotations (tx_hash, score, is_anomaly)
			 VALUES ($1, $2, $3)`,
			a.TxHash, a.Score, a.IsAnomaly,
		)
	}
	br := s.pool.SendBatch(ctx, batch)
	defer br.Close()

	for i := 0; i < batch.Len(); i++ {
		if _, err := br.Exec(); err != nil {
			return fmt.Errorf("failed to insert annotation %d: %w", i, err)
		}
	}

	s.logger.Debug().Int("count", len(annotations)).Msg("Annotations stored")
	return nil
}
