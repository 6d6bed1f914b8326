package deadletter

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/Adithya-Monish-Kumar-K/Transaction-Ingestion-Pipeline/internal/pipeline"
	"github.com/Adithya-Monish-Kumar-K/Transaction-Ingestion-Pipeline/pkg/postgres"
)

// PostgresArchive stores dead-letter envelopes in the dead_letters table so
// operators can inspect and reprocess them without replaying the topic.
type PostgresArchive struct {
	db *postgres.Client
}

// NewPostgresArchive creates the archive and ensures its table exists.
func NewPostgresArchive(ctx context.Context, db *postgres.Client) (*PostgresArchive, error) {
	_, err := db.DB.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS dead_letters (
			id          UUID PRIMARY KEY,
			record_type TEXT NOT NULL,
			record_id   TEXT NOT NULL,
			stage       TEXT NOT NULL,
			detail      TEXT NOT NULL,
			envelope    JSONB NOT NULL,
			source      TEXT NOT NULL,
			ingested_at TIMESTAMPTZ NOT NULL
		)`)
	if err != nil {
		return nil, fmt.Errorf("creating dead_letters table: %w", err)
	}
	return &PostgresArchive{db: db}, nil
}

// Store inserts one envelope. Duplicate ids are ignored; the router may
// retry after a transient database error.
func (a *PostgresArchive) Store(ctx context.Context, env pipeline.DeadLetterEnvelope) error {
	payload, err := json.Marshal(env)
	if err != nil {
		return fmt.Errorf("marshaling envelope: %w", err)
	}
	_, err = a.db.DB.ExecContext(ctx, `
		INSERT INTO dead_letters (id, record_type, record_id, stage, detail, envelope, source, ingested_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (id) DO NOTHING`,
		env.ID,
		string(env.OriginalRecord.Type),
		env.OriginalRecord.ID(),
		string(env.FailureStage),
		strings.Join(env.FailureDetail, "; "),
		payload,
		env.Source.String(),
		env.IngestionTimestamp,
	)
	if err != nil {
		return fmt.Errorf("inserting dead letter: %w", err)
	}
	return nil
}

// Recent returns up to limit of the most recently archived envelopes.
func (a *PostgresArchive) Recent(ctx context.Context, limit int) ([]pipeline.DeadLetterEnvelope, error) {
	if limit <= 0 || limit > 500 {
		limit = 100
	}
	rows, err := a.db.DB.QueryContext(ctx, `
		SELECT envelope FROM dead_letters ORDER BY ingested_at DESC LIMIT $1`, limit)
	if err != nil {
		return nil, fmt.Errorf("querying dead letters: %w", err)
	}
	defer rows.Close()

	var envelopes []pipeline.DeadLetterEnvelope
	for rows.Next() {
		var payload []byte
		if err := rows.Scan(&payload); err != nil {
			return nil, fmt.Errorf("scanning dead letter: %w", err)
		}
		var env pipeline.DeadLetterEnvelope
		if err := json.Unmarshal(payload, &env); err != nil {
			return nil, fmt.Errorf("unmarshaling envelope: %w", err)
		}
		envelopes = append(envelopes, env)
	}
	return envelopes, rows.Err()
}
