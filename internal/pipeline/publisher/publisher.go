// Package publisher delivers accepted records to the primary Kafka topic.
// It owns the retry discipline: bounded attempts with exponential backoff,
// a per-attempt timeout, permanent-failure short-circuit, and a circuit
// breaker so a dead broker fails fast instead of stalling every record.
package publisher

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/Adithya-Monish-Kumar-K/Transaction-Ingestion-Pipeline/internal/pipeline"
	apperrors "github.com/Adithya-Monish-Kumar-K/Transaction-Ingestion-Pipeline/pkg/errors"
	"github.com/Adithya-Monish-Kumar-K/Transaction-Ingestion-Pipeline/pkg/kafka"
	"github.com/Adithya-Monish-Kumar-K/Transaction-Ingestion-Pipeline/pkg/metrics"
	"github.com/Adithya-Monish-Kumar-K/Transaction-Ingestion-Pipeline/pkg/resilience"
)

// Transport sends one event to the downstream topic. *kafka.Producer
// satisfies it; tests substitute fakes.
type Transport interface {
	Publish(ctx context.Context, event kafka.Event) error
}

// Config bounds the publish operation.
type Config struct {
	MaxAttempts    int
	InitialBackoff time.Duration
	MaxBackoff     time.Duration
	AttemptTimeout time.Duration
}

// Publisher publishes records to the primary topic. Safe for concurrent use.
type Publisher struct {
	transport Transport
	cfg       Config
	breaker   *resilience.CircuitBreaker
	retryable func(error) bool
	metrics   *metrics.Metrics
	logger    *slog.Logger
}

// New creates a Publisher over the given transport. m may be nil.
func New(transport Transport, cfg Config, m *metrics.Metrics) *Publisher {
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = 3
	}
	if cfg.AttemptTimeout <= 0 {
		cfg.AttemptTimeout = 5 * time.Second
	}
	breakerCfg := resilience.CircuitBreakerConfig{}
	if m != nil {
		breakerCfg.OnStateChange = func(s resilience.State) {
			m.CircuitBreakerState.WithLabelValues("primary-topic").Set(float64(s))
		}
	}
	return &Publisher{
		transport: transport,
		cfg:       cfg,
		breaker:   resilience.NewCircuitBreaker("primary-topic", breakerCfg),
		retryable: kafka.IsRetryable,
		metrics:   m,
		logger:    slog.Default().With("component", "publisher"),
	}
}

// Publish attempts delivery of rec and reports the terminal outcome.
// Delivered means the transport acknowledged the write; Failed means the
// attempt budget is exhausted or the failure was permanent. The outcome's
// Attempts is the number of transport calls actually made.
func (p *Publisher) Publish(ctx context.Context, rec pipeline.CandidateRecord) pipeline.PublishOutcome {
	messageID := uuid.NewString()
	event := kafka.Event{
		Key:   rec.ID(),
		Value: rec.Fields,
		Headers: map[string]string{
			"message_id":  messageID,
			"record_type": string(rec.Type),
			"source":      rec.Source.String(),
		},
	}

	start := time.Now()
	permanent := false
	attempts, err := resilience.Retry(ctx, "publish", resilience.RetryConfig{
		MaxAttempts:  p.cfg.MaxAttempts,
		InitialDelay: p.cfg.InitialBackoff,
		MaxDelay:     p.cfg.MaxBackoff,
	}, func(ctx context.Context) error {
		return resilience.WithTimeout(ctx, p.cfg.AttemptTimeout, "publish-attempt", func(ctx context.Context) error {
			err := p.breaker.Execute(func() error {
				return p.transport.Publish(ctx, event)
			})
			if err == nil {
				return nil
			}
			if errors.Is(err, resilience.ErrCircuitOpen) {
				return err
			}
			if !p.retryable(err) {
				permanent = true
				return resilience.Permanent(err)
			}
			return err
		})
	})

	if p.metrics != nil {
		p.metrics.PublishAttempts.Observe(float64(attempts))
		p.metrics.PublishLatency.Observe(time.Since(start).Seconds())
	}

	if err != nil {
		// Terminal failures carry the transport taxonomy so callers can
		// distinguish exhausted retries from unretryable broker rejections.
		sentinel := apperrors.ErrTransientTransport
		if permanent {
			sentinel = apperrors.ErrPermanentTransport
		}
		p.logger.Error("publish failed",
			"record_id", rec.ID(),
			"record_type", rec.Type,
			"attempts", attempts,
			"error", err,
		)
		return pipeline.PublishOutcome{
			Status:    pipeline.PublishFailed,
			Attempts:  attempts,
			LastError: fmt.Errorf("%w: %w", sentinel, err),
		}
	}
	p.logger.Info("record delivered",
		"record_id", rec.ID(),
		"message_id", messageID,
		"attempts", attempts,
	)
	return pipeline.PublishOutcome{
		Status:    pipeline.PublishDelivered,
		Attempts:  attempts,
		MessageID: messageID,
	}
}
