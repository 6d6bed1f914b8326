// Package deadletter routes records that failed validation, publishing, or
// authentication to the dead-letter topic. Delivery failures are absorbed in
// two tiers: the dead-letter topic first, then a local structured log entry
// so that no record is ever silently dropped.
package deadletter

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/Adithya-Monish-Kumar-K/Transaction-Ingestion-Pipeline/internal/pipeline"
	apperrors "github.com/Adithya-Monish-Kumar-K/Transaction-Ingestion-Pipeline/pkg/errors"
	"github.com/Adithya-Monish-Kumar-K/Transaction-Ingestion-Pipeline/pkg/kafka"
	"github.com/Adithya-Monish-Kumar-K/Transaction-Ingestion-Pipeline/pkg/metrics"
	"github.com/Adithya-Monish-Kumar-K/Transaction-Ingestion-Pipeline/pkg/resilience"
)

// Transport sends one event to the dead-letter topic.
type Transport interface {
	Publish(ctx context.Context, event kafka.Event) error
}

// Archive persists envelopes for operator inspection. Optional; archive
// failures are logged and never affect routing.
type Archive interface {
	Store(ctx context.Context, env pipeline.DeadLetterEnvelope) error
}

// Config bounds dead-letter delivery. The retry budget is deliberately
// smaller than the primary publisher's.
type Config struct {
	MaxAttempts    int
	InitialBackoff time.Duration
	MaxBackoff     time.Duration
	AttemptTimeout time.Duration
}

// Router owns envelopes until they are handed off to the dead-letter topic
// or, failing that, the local fallback log.
type Router struct {
	transport Transport
	archive   Archive
	cfg       Config
	metrics   *metrics.Metrics
	logger    *slog.Logger
}

// New creates a Router. archive and m may be nil.
func New(transport Transport, archive Archive, cfg Config, m *metrics.Metrics) *Router {
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = 2
	}
	if cfg.AttemptTimeout <= 0 {
		cfg.AttemptTimeout = 5 * time.Second
	}
	return &Router{
		transport: transport,
		archive:   archive,
		cfg:       cfg,
		metrics:   m,
		logger:    slog.Default().With("component", "deadletter"),
	}
}

// NewEnvelope builds a DeadLetterEnvelope for a record that failed in the
// given stage. Exactly one envelope is created per non-delivered record.
func NewEnvelope(rec pipeline.CandidateRecord, stage pipeline.FailureStage, detail []string) pipeline.DeadLetterEnvelope {
	return pipeline.DeadLetterEnvelope{
		ID:                 uuid.NewString(),
		OriginalRecord:     rec,
		FailureStage:       stage,
		FailureDetail:      detail,
		IngestionTimestamp: time.Now().UTC(),
		Source:             rec.Source,
	}
}

// Send delivers env to the dead-letter topic. On exhaustion of the retry
// budget the envelope is written to the local fallback log and
// ErrDeadLetterUnavailable is returned; the envelope is never dropped.
func (r *Router) Send(ctx context.Context, env pipeline.DeadLetterEnvelope) error {
	if r.archive != nil {
		if err := r.archive.Store(ctx, env); err != nil {
			r.logger.Warn("dead-letter archive write failed",
				"envelope_id", env.ID,
				"error", err,
			)
		}
	}

	event := kafka.Event{
		Key:   env.OriginalRecord.ID(),
		Value: env,
		Headers: map[string]string{
			"envelope_id":   env.ID,
			"failure_stage": string(env.FailureStage),
		},
	}
	_, err := resilience.Retry(ctx, "deadletter", resilience.RetryConfig{
		MaxAttempts:  r.cfg.MaxAttempts,
		InitialDelay: r.cfg.InitialBackoff,
		MaxDelay:     r.cfg.MaxBackoff,
	}, func(ctx context.Context) error {
		return resilience.WithTimeout(ctx, r.cfg.AttemptTimeout, "deadletter-attempt", func(ctx context.Context) error {
			return r.transport.Publish(ctx, event)
		})
	})
	if err == nil {
		r.logger.Warn("record dead-lettered",
			"envelope_id", env.ID,
			"record_id", env.OriginalRecord.ID(),
			"stage", env.FailureStage,
		)
		return nil
	}

	r.fallbackLog(env, err)
	return apperrors.ErrDeadLetterUnavailable
}

// fallbackLog is the last absorption tier: an error-severity log line
// carrying the complete envelope so an operator can recover the record.
func (r *Router) fallbackLog(env pipeline.DeadLetterEnvelope, cause error) {
	payload, merr := json.Marshal(env)
	if merr != nil {
		payload = []byte(env.OriginalRecord.ID())
	}
	r.logger.Error("dead-letter topic unavailable, envelope written to fallback log",
		"envelope_id", env.ID,
		"record_id", env.OriginalRecord.ID(),
		"stage", env.FailureStage,
		"cause", cause,
		"envelope", string(payload),
	)
	if r.metrics != nil {
		r.metrics.FallbackLogged.Inc()
	}
}
