// Package handler exposes the stream-path HTTP surface: transaction
// ingestion, validation-only checks, service status, and dead-letter
// inspection. Handlers are thin adapters over the record router; transport
// error text is never exposed to callers, validation detail always is.
package handler

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net"
	"net/http"

	"github.com/Adithya-Monish-Kumar-K/Transaction-Ingestion-Pipeline/internal/pipeline"
	"github.com/Adithya-Monish-Kumar-K/Transaction-Ingestion-Pipeline/internal/pipeline/router"
	"github.com/Adithya-Monish-Kumar-K/Transaction-Ingestion-Pipeline/internal/stream/ratelimit"
	apperrors "github.com/Adithya-Monish-Kumar-K/Transaction-Ingestion-Pipeline/pkg/errors"
	"github.com/Adithya-Monish-Kumar-K/Transaction-Ingestion-Pipeline/pkg/logger"
	"github.com/Adithya-Monish-Kumar-K/Transaction-Ingestion-Pipeline/pkg/metrics"
)

// maxBodySize caps webhook request bodies at 1 MiB.
const maxBodySize = 1 << 20

// Validator checks a record without publishing it, for the validate-only
// endpoint.
type Validator interface {
	Validate(rec pipeline.CandidateRecord) pipeline.ValidationResult
}

// Authenticator verifies the raw-body signature on the validate-only
// endpoint; the ingest endpoint authenticates through the router.
type Authenticator interface {
	Verify(rawBody []byte, signature string) bool
}

// EnvelopeReader lists recently archived dead-letter envelopes.
type EnvelopeReader interface {
	Recent(ctx context.Context, limit int) ([]pipeline.DeadLetterEnvelope, error)
}

// Options carries the optional collaborators of the stream handler.
type Options struct {
	SignatureHeader string
	RateLimit       int
	RateLimiter     *ratelimit.Limiter
	Guard           *DuplicateGuard
	Archive         EnvelopeReader
	Metrics         *metrics.Metrics
}

type Handler struct {
	router    *router.Router
	validator Validator
	checker   Authenticator
	opts      Options
	logger    *slog.Logger
}

func New(rt *router.Router, v Validator, checker Authenticator, opts Options) *Handler {
	if opts.SignatureHeader == "" {
		opts.SignatureHeader = "X-Signature"
	}
	return &Handler{
		router:    rt,
		validator: v,
		checker:   checker,
		opts:      opts,
		logger:    slog.Default().With("component", "stream-handler"),
	}
}

// Ingest accepts one transaction webhook, drives it through the router, and
// reports the terminal outcome to the caller.
func (h *Handler) Ingest(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	log := logger.FromContext(ctx)

	if h.opts.RateLimiter != nil && h.opts.RateLimit > 0 {
		if !h.opts.RateLimiter.Allow(callerKey(r), h.opts.RateLimit) {
			limitErr := apperrors.New(apperrors.ErrRateLimited, http.StatusTooManyRequests, "rate limit exceeded")
			h.writeError(w, apperrors.HTTPStatusCode(limitErr), limitErr.Message)
			return
		}
	}

	rec, rawBody, ok := h.readRecord(w, r)
	if !ok {
		return
	}

	if h.opts.Guard != nil {
		if !h.opts.Guard.Claim(ctx, rec.ID()) {
			if h.opts.Metrics != nil {
				h.opts.Metrics.DuplicatesSuppressed.Inc()
			}
			log.Info("duplicate delivery suppressed", "record_id", rec.ID())
			h.writeJSON(w, http.StatusOK, map[string]any{
				"status":         "duplicate",
				"transaction_id": rec.ID(),
			})
			return
		}
	}

	receipt := h.router.Submit(ctx, rec, router.SubmitOptions{
		Source: "stream",
		Auth: &router.AuthContext{
			RawBody:   rawBody,
			Signature: r.Header.Get(h.opts.SignatureHeader),
		},
	})
	if receipt.Status != router.StatusDelivered && h.opts.Guard != nil {
		// The record is dead-lettered, not delivered; the sender's retry
		// must not be short-circuited as a duplicate.
		h.opts.Guard.Release(ctx, rec.ID())
	}

	switch {
	case receipt.Status == router.StatusDelivered:
		log.Info("transaction ingested",
			"record_id", receipt.RecordID,
			"message_id", receipt.MessageID,
		)
		h.writeJSON(w, http.StatusOK, map[string]any{
			"status":         "success",
			"transaction_id": receipt.RecordID,
			"message_id":     receipt.MessageID,
		})
	case receipt.Stage == pipeline.StageAuthentication:
		h.writeJSON(w, apperrors.HTTPStatusCode(apperrors.ErrAuthenticationFailed), map[string]any{
			"status":  "error",
			"message": "signature verification failed",
		})
	case receipt.Stage == pipeline.StageValidation:
		h.writeJSON(w, apperrors.HTTPStatusCode(apperrors.ErrValidationFailed), map[string]any{
			"status":      "error",
			"message":     "transaction validation failed",
			"errors":      receipt.Errors,
			"envelope_id": receipt.EnvelopeID,
		})
	default:
		// Publish or system failure. The record is dead-lettered; do not
		// leak transport error text to the caller.
		log.Error("transaction dead-lettered",
			"record_id", receipt.RecordID,
			"stage", receipt.Stage,
			"envelope_id", receipt.EnvelopeID,
		)
		h.writeJSON(w, apperrors.HTTPStatusCode(apperrors.ErrInternal), map[string]any{
			"status":      "error",
			"message":     "failed to ingest transaction",
			"envelope_id": receipt.EnvelopeID,
		})
	}
}

// Validate checks signature and schema without publishing. Useful for
// webhook integration testing.
func (h *Handler) Validate(w http.ResponseWriter, r *http.Request) {
	rec, rawBody, ok := h.readRecord(w, r)
	if !ok {
		return
	}
	if h.checker != nil && !h.checker.Verify(rawBody, r.Header.Get(h.opts.SignatureHeader)) {
		h.writeJSON(w, apperrors.HTTPStatusCode(apperrors.ErrAuthenticationFailed), map[string]any{
			"status":  "error",
			"message": "signature verification failed",
		})
		return
	}
	result := h.validator.Validate(rec)
	if !result.Accepted {
		h.writeJSON(w, apperrors.HTTPStatusCode(apperrors.ErrValidationFailed), map[string]any{
			"status":  "error",
			"message": "transaction validation failed",
			"errors":  result.Errors,
		})
		return
	}
	h.writeJSON(w, http.StatusOK, map[string]any{
		"status":         "success",
		"transaction_id": rec.ID(),
	})
}

// Status returns the service counters snapshot.
func (h *Handler) Status(w http.ResponseWriter, r *http.Request) {
	h.writeJSON(w, http.StatusOK, map[string]any{
		"status":   "healthy",
		"service":  "transaction-ingestion",
		"counters": h.router.Counters(),
	})
}

// DeadLetters returns recently archived dead-letter envelopes.
func (h *Handler) DeadLetters(w http.ResponseWriter, r *http.Request) {
	if h.opts.Archive == nil {
		h.writeError(w, http.StatusNotFound, "dead-letter archive not configured")
		return
	}
	envelopes, err := h.opts.Archive.Recent(r.Context(), 100)
	if err != nil {
		h.logger.Error("failed to read dead-letter archive", "error", err)
		h.writeError(w, http.StatusInternalServerError, "failed to read dead-letter archive")
		return
	}
	h.writeJSON(w, http.StatusOK, map[string]any{
		"status":       "success",
		"dead_letters": envelopes,
		"count":        len(envelopes),
	})
}

// readRecord reads the raw body and parses it into a transaction candidate
// record. It writes the error response itself and reports ok=false when the
// body is unusable.
func (h *Handler) readRecord(w http.ResponseWriter, r *http.Request) (pipeline.CandidateRecord, []byte, bool) {
	rawBody, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodySize))
	if err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			tooLarge := apperrors.Newf(apperrors.ErrValidationFailed, http.StatusRequestEntityTooLarge,
				"request body exceeds %d bytes", maxBodySize)
			h.writeError(w, apperrors.HTTPStatusCode(tooLarge), tooLarge.Message)
		} else {
			h.writeError(w, http.StatusBadRequest, "failed to read request body")
		}
		return pipeline.CandidateRecord{}, nil, false
	}
	var fields map[string]any
	if err := json.Unmarshal(rawBody, &fields); err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid JSON body")
		return pipeline.CandidateRecord{}, nil, false
	}
	if len(fields) == 0 {
		h.writeError(w, http.StatusBadRequest, "request body must contain a JSON object")
		return pipeline.CandidateRecord{}, nil, false
	}
	rec := pipeline.CandidateRecord{
		Type:   pipeline.RecordTypeTransaction,
		Fields: fields,
		Source: pipeline.SourceDescriptor{RequestID: logger.RequestIDFromContext(r.Context())},
	}
	return rec, rawBody, true
}

// callerKey identifies a webhook caller for rate limiting.
func callerKey(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.logger.Error("failed to write response", "error", err)
	}
}

func (h *Handler) writeError(w http.ResponseWriter, status int, message string) {
	h.writeJSON(w, status, map[string]string{"status": "error", "message": message})
}
