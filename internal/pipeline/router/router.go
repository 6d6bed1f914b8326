// Package router coordinates each record's journey through the pipeline:
// authentication (stream path only), validation, publishing, and dead-letter
// routing. Every submitted record reaches exactly one terminal state,
// Delivered or DeadLettered, even under downstream failure, panics, or an
// exhausted per-record deadline.
package router

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/Adithya-Monish-Kumar-K/Transaction-Ingestion-Pipeline/internal/pipeline"
	"github.com/Adithya-Monish-Kumar-K/Transaction-Ingestion-Pipeline/internal/pipeline/deadletter"
	"github.com/Adithya-Monish-Kumar-K/Transaction-Ingestion-Pipeline/pkg/metrics"
	"github.com/Adithya-Monish-Kumar-K/Transaction-Ingestion-Pipeline/pkg/tracing"
)

// Validator decides whether a candidate record is acceptable.
type Validator interface {
	Validate(rec pipeline.CandidateRecord) pipeline.ValidationResult
}

// Publisher delivers an accepted record to the primary topic.
type Publisher interface {
	Publish(ctx context.Context, rec pipeline.CandidateRecord) pipeline.PublishOutcome
}

// DeadLetterSink receives envelopes for records that did not reach
// Delivered. A nil error means the envelope reached the dead-letter topic;
// ErrDeadLetterUnavailable means it was absorbed by the fallback log.
type DeadLetterSink interface {
	Send(ctx context.Context, env pipeline.DeadLetterEnvelope) error
}

// Authenticator verifies the signature of a raw stream-path body.
type Authenticator interface {
	Verify(rawBody []byte, signature string) bool
}

// AuthContext carries the raw bytes and signature of a stream submission.
// Verification must run on the raw body, before parsing.
type AuthContext struct {
	RawBody   []byte
	Signature string
}

// SubmitOptions modifies a single submission. Auth is present only on the
// stream path; Source labels metrics ("stream" or "batch").
type SubmitOptions struct {
	Auth   *AuthContext
	Source string
}

// Status is the terminal state of a submission.
type Status string

const (
	StatusDelivered    Status = "delivered"
	StatusDeadLettered Status = "dead_lettered"
)

// Receipt reports the terminal outcome of one submission.
type Receipt struct {
	Status     Status                `json:"status"`
	RecordID   string                `json:"record_id"`
	MessageID  string                `json:"message_id,omitempty"`
	EnvelopeID string                `json:"envelope_id,omitempty"`
	Stage      pipeline.FailureStage `json:"stage,omitempty"`
	Attempts   int                   `json:"attempts,omitempty"`
	Errors     []pipeline.FieldError `json:"errors,omitempty"`
}

// Config controls per-record limits.
type Config struct {
	RecordDeadline time.Duration
}

// Router is the orchestration core. It is safe for concurrent Submit calls;
// each record's journey is independent and single-threaded.
type Router struct {
	validator Validator
	publisher Publisher
	sink      DeadLetterSink
	auth      Authenticator
	counters  *pipeline.ServiceCounters
	metrics   *metrics.Metrics
	cfg       Config
	logger    *slog.Logger
}

// New creates a Router. auth may be nil when no stream path exists; m may
// be nil.
func New(v Validator, p Publisher, sink DeadLetterSink, auth Authenticator, counters *pipeline.ServiceCounters, m *metrics.Metrics, cfg Config) *Router {
	return &Router{
		validator: v,
		publisher: p,
		sink:      sink,
		auth:      auth,
		counters:  counters,
		metrics:   m,
		cfg:       cfg,
		logger:    slog.Default().With("component", "router"),
	}
}

// Counters returns a snapshot of the service counters for the status
// endpoint.
func (r *Router) Counters() pipeline.CountersSnapshot {
	return r.counters.Snapshot()
}

// Submit drives one candidate record to a terminal state and returns the
// receipt. It never panics and never returns before the record is either
// Delivered or DeadLettered.
func (r *Router) Submit(ctx context.Context, rec pipeline.CandidateRecord, opts SubmitOptions) (receipt Receipt) {
	r.counters.IncReceived()
	if r.metrics != nil {
		r.metrics.RecordsReceived.WithLabelValues(opts.Source, string(rec.Type)).Inc()
	}

	if r.cfg.RecordDeadline > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.cfg.RecordDeadline)
		defer cancel()
	}

	spanCtx, span := tracing.StartSpan(ctx, "submit", uuid.NewString())
	span.SetAttr("record_id", rec.ID())
	span.SetAttr("record_type", string(rec.Type))
	defer func() {
		if p := recover(); p != nil {
			r.logger.Error("panic during record journey",
				"record_id", rec.ID(),
				"panic", p,
			)
			receipt = r.deadLetter(rec, pipeline.StageSystem,
				[]string{fmt.Sprintf("internal fault: %v", p)}, nil, 0)
		}
		span.SetAttr("status", string(receipt.Status))
		span.End()
		span.Log()
	}()
	ctx = spanCtx

	if opts.Auth != nil {
		if r.auth == nil || !r.auth.Verify(opts.Auth.RawBody, opts.Auth.Signature) {
			return r.deadLetter(rec, pipeline.StageAuthentication,
				[]string{"signature verification failed"}, nil, 0)
		}
	}

	result := r.validator.Validate(rec)
	if !result.Accepted {
		r.counters.IncValidatedFailed()
		if r.metrics != nil {
			for _, fe := range result.Errors {
				r.metrics.ValidationFailures.WithLabelValues(string(rec.Type), fe.Rule).Inc()
			}
		}
		detail := make([]string, 0, len(result.Errors))
		for _, fe := range result.Errors {
			detail = append(detail, fe.String())
		}
		return r.deadLetter(rec, pipeline.StageValidation, detail, result.Errors, 0)
	}
	r.counters.IncValidatedOK()

	if ctx.Err() != nil {
		return r.deadLetter(rec, pipeline.StageSystem,
			[]string{"record deadline exceeded before publish"}, nil, 0)
	}

	outcome := r.publisher.Publish(ctx, *result.Record)
	if outcome.Status == pipeline.PublishDelivered {
		r.counters.IncPublished()
		if r.metrics != nil {
			r.metrics.RecordsPublished.WithLabelValues(string(rec.Type)).Inc()
		}
		return Receipt{
			Status:    StatusDelivered,
			RecordID:  rec.ID(),
			MessageID: outcome.MessageID,
			Attempts:  outcome.Attempts,
		}
	}

	detail := []string{"publish failed"}
	if outcome.LastError != nil {
		detail = []string{outcome.LastError.Error()}
	}
	return r.deadLetter(rec, pipeline.StagePublish, detail, nil, outcome.Attempts)
}

// deadLetter converts a failed record into its terminal DeadLettered state.
// The envelope is sent on a fresh context so dead-letter delivery still has
// a bounded window even when the record's own deadline is exhausted.
func (r *Router) deadLetter(rec pipeline.CandidateRecord, stage pipeline.FailureStage, detail []string, verrs []pipeline.FieldError, attempts int) Receipt {
	env := deadletter.NewEnvelope(rec, stage, detail)

	sendCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := r.sink.Send(sendCtx, env); err != nil {
		r.counters.IncFallbackLogged()
	} else {
		r.counters.IncDeadLettered()
	}
	if r.metrics != nil {
		r.metrics.RecordsDeadLettered.WithLabelValues(string(stage)).Inc()
	}

	return Receipt{
		Status:     StatusDeadLettered,
		RecordID:   rec.ID(),
		EnvelopeID: env.ID,
		Stage:      stage,
		Attempts:   attempts,
		Errors:     verrs,
	}
}
