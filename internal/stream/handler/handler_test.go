package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/Adithya-Monish-Kumar-K/Transaction-Ingestion-Pipeline/internal/pipeline"
	"github.com/Adithya-Monish-Kumar-K/Transaction-Ingestion-Pipeline/internal/pipeline/router"
	"github.com/Adithya-Monish-Kumar-K/Transaction-Ingestion-Pipeline/internal/pipeline/schema"
	"github.com/Adithya-Monish-Kumar-K/Transaction-Ingestion-Pipeline/internal/pipeline/signature"
	"github.com/Adithya-Monish-Kumar-K/Transaction-Ingestion-Pipeline/internal/stream/ratelimit"
)

type stubPublisher struct {
	calls   int
	outcome pipeline.PublishOutcome
}

func (s *stubPublisher) Publish(ctx context.Context, rec pipeline.CandidateRecord) pipeline.PublishOutcome {
	s.calls++
	return s.outcome
}

type stubSink struct {
	sent []pipeline.DeadLetterEnvelope
}

func (s *stubSink) Send(ctx context.Context, env pipeline.DeadLetterEnvelope) error {
	s.sent = append(s.sent, env)
	return nil
}

type stubArchive struct {
	envelopes []pipeline.DeadLetterEnvelope
	err       error
}

func (s *stubArchive) Recent(ctx context.Context, limit int) ([]pipeline.DeadLetterEnvelope, error) {
	return s.envelopes, s.err
}

var testSecret = []byte("handler-test-secret")

type testRig struct {
	handler   *Handler
	publisher *stubPublisher
	sink      *stubSink
	checker   *signature.Checker
}

func newTestRig(opts Options) *testRig {
	validator := schema.NewValidator(5 * time.Minute)
	checker := signature.NewChecker(testSecret)
	publisher := &stubPublisher{
		outcome: pipeline.PublishOutcome{Status: pipeline.PublishDelivered, Attempts: 1, MessageID: "msg-1"},
	}
	sink := &stubSink{}
	counters := &pipeline.ServiceCounters{}
	rt := router.New(validator, publisher, sink, checker, counters, nil, router.Config{})
	return &testRig{
		handler:   New(rt, validator, checker, opts),
		publisher: publisher,
		sink:      sink,
		checker:   checker,
	}
}

func validBody(t *testing.T) []byte {
	t.Helper()
	body, err := json.Marshal(map[string]any{
		"transaction_id":   "txn-777",
		"customer_id":      "cust-1",
		"amount":           125.50,
		"currency":         "EUR",
		"transaction_type": "purchase",
		"timestamp":        time.Now().UTC().Add(-time.Minute).Format(time.RFC3339),
		"payment_method":   map[string]any{"type": "debit_card"},
	})
	if err != nil {
		t.Fatal(err)
	}
	return body
}

func ingest(rig *testRig, body []byte, sign bool) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, "/api/v1/transactions", bytes.NewReader(body))
	if sign {
		req.Header.Set("X-Signature", rig.checker.Sign(body))
	}
	w := httptest.NewRecorder()
	rig.handler.Ingest(w, req)
	return w
}

func decode(t *testing.T, w *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var resp map[string]any
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decoding response %q: %v", w.Body.String(), err)
	}
	return resp
}

func TestIngestDeliversSignedValidRecord(t *testing.T) {
	rig := newTestRig(Options{})
	w := ingest(rig, validBody(t), true)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", w.Code, w.Body.String())
	}
	resp := decode(t, w)
	if resp["status"] != "success" || resp["transaction_id"] != "txn-777" {
		t.Errorf("response = %v", resp)
	}
	if rig.publisher.calls != 1 {
		t.Errorf("publisher called %d times, want 1", rig.publisher.calls)
	}
}

func TestIngestRejectsBadSignatureBeforeValidation(t *testing.T) {
	rig := newTestRig(Options{})
	// Invalid record AND missing signature: authentication must win.
	body := []byte(`{"transaction_id":"txn-1","amount":-50}`)
	w := ingest(rig, body, false)

	if w.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d, want 401", w.Code)
	}
	if rig.publisher.calls != 0 {
		t.Error("unauthenticated record must not be published")
	}
	if len(rig.sink.sent) != 1 || rig.sink.sent[0].FailureStage != pipeline.StageAuthentication {
		t.Errorf("sink = %+v, want one authentication envelope", rig.sink.sent)
	}
}

func TestIngestReturnsValidationErrors(t *testing.T) {
	rig := newTestRig(Options{})
	body := []byte(`{"transaction_id":"txn-2","customer_id":"c1","amount":-50,"currency":"USD","transaction_type":"purchase","timestamp":"2024-01-01T00:00:00Z","payment_method":{"type":"cash"}}`)
	w := ingest(rig, body, true)

	if w.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, body = %s", w.Code, w.Body.String())
	}
	resp := decode(t, w)
	if resp["envelope_id"] == "" || resp["envelope_id"] == nil {
		t.Error("validation failure must report the dead-letter envelope id")
	}
	errsList, ok := resp["errors"].([]any)
	if !ok || len(errsList) == 0 {
		t.Fatalf("errors = %v", resp["errors"])
	}
	first := errsList[0].(map[string]any)
	if first["message"] != "amount must be positive" {
		t.Errorf("first error = %v", first)
	}
	if len(rig.sink.sent) != 1 {
		t.Errorf("sink received %d envelopes, want 1", len(rig.sink.sent))
	}
}

func TestIngestHidesTransportErrorText(t *testing.T) {
	rig := newTestRig(Options{})
	rig.publisher.outcome = pipeline.PublishOutcome{
		Status:    pipeline.PublishFailed,
		Attempts:  3,
		LastError: errors.New("kafka: broker 10.0.0.17 unreachable"),
	}
	w := ingest(rig, validBody(t), true)

	if w.Code != http.StatusInternalServerError {
		t.Fatalf("status = %d, want 500", w.Code)
	}
	if bytes.Contains(w.Body.Bytes(), []byte("10.0.0.17")) {
		t.Error("transport error detail leaked to the caller")
	}
	resp := decode(t, w)
	if resp["envelope_id"] == "" || resp["envelope_id"] == nil {
		t.Error("response must carry the envelope id for support lookups")
	}
}

func TestIngestRejectsMalformedBody(t *testing.T) {
	rig := newTestRig(Options{})
	w := ingest(rig, []byte("{not json"), false)
	if w.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", w.Code)
	}
	if len(rig.sink.sent) != 0 {
		t.Error("unparseable bodies are rejected at the edge, not dead-lettered")
	}
}

func TestIngestRejectsOversizeBody(t *testing.T) {
	rig := newTestRig(Options{})
	w := ingest(rig, bytes.Repeat([]byte("a"), maxBodySize+1), false)
	if w.Code != http.StatusRequestEntityTooLarge {
		t.Errorf("status = %d, want 413", w.Code)
	}
}

type brokenReader struct{}

func (brokenReader) Read([]byte) (int, error) {
	return 0, errors.New("connection reset by peer")
}

func TestIngestReportsBodyReadFailure(t *testing.T) {
	rig := newTestRig(Options{})
	req := httptest.NewRequest(http.MethodPost, "/api/v1/transactions", brokenReader{})
	w := httptest.NewRecorder()
	rig.handler.Ingest(w, req)

	// A mid-read connection failure is not an oversize body.
	if w.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", w.Code)
	}
	if bytes.Contains(w.Body.Bytes(), []byte("too large")) || bytes.Contains(w.Body.Bytes(), []byte("exceeds")) {
		t.Errorf("read failure mislabeled as oversize: %s", w.Body.String())
	}
}

func TestIngestSuppressesDuplicateDelivery(t *testing.T) {
	store := newFakeClaimStore()
	rig := newTestRig(Options{Guard: NewDuplicateGuard(store, time.Minute)})
	body := validBody(t)

	if w := ingest(rig, body, true); w.Code != http.StatusOK {
		t.Fatalf("first delivery: status = %d", w.Code)
	}
	w := ingest(rig, body, true)
	if w.Code != http.StatusOK {
		t.Fatalf("second delivery: status = %d", w.Code)
	}
	resp := decode(t, w)
	if resp["status"] != "duplicate" {
		t.Errorf("second delivery response = %v, want duplicate", resp)
	}
	if rig.publisher.calls != 1 {
		t.Errorf("publisher called %d times, want 1", rig.publisher.calls)
	}
}

func TestIngestReleasesClaimWhenNotDelivered(t *testing.T) {
	store := newFakeClaimStore()
	rig := newTestRig(Options{Guard: NewDuplicateGuard(store, time.Minute)})
	rig.publisher.outcome = pipeline.PublishOutcome{
		Status:    pipeline.PublishFailed,
		Attempts:  3,
		LastError: errors.New("broker unreachable"),
	}
	body := validBody(t)

	if w := ingest(rig, body, true); w.Code != http.StatusInternalServerError {
		t.Fatalf("failed delivery: status = %d", w.Code)
	}

	// The sender retries after the 500; the record must be processed, not
	// answered as a duplicate of the failed attempt.
	rig.publisher.outcome = pipeline.PublishOutcome{Status: pipeline.PublishDelivered, Attempts: 1, MessageID: "msg-2"}
	w := ingest(rig, body, true)
	if w.Code != http.StatusOK {
		t.Fatalf("retried delivery: status = %d, body = %s", w.Code, w.Body.String())
	}
	resp := decode(t, w)
	if resp["status"] != "success" {
		t.Errorf("retried delivery response = %v, want success", resp)
	}
	if rig.publisher.calls != 2 {
		t.Errorf("publisher called %d times, want 2", rig.publisher.calls)
	}
}

func TestIngestBadSignatureDoesNotPoisonClaim(t *testing.T) {
	store := newFakeClaimStore()
	rig := newTestRig(Options{Guard: NewDuplicateGuard(store, time.Minute)})
	body := validBody(t)

	if w := ingest(rig, body, false); w.Code != http.StatusUnauthorized {
		t.Fatalf("unsigned delivery: status = %d", w.Code)
	}
	w := ingest(rig, body, true)
	if w.Code != http.StatusOK {
		t.Fatalf("signed delivery after rejected one: status = %d", w.Code)
	}
	if resp := decode(t, w); resp["status"] != "success" {
		t.Errorf("signed delivery response = %v, want success", resp)
	}
}

func TestIngestRateLimits(t *testing.T) {
	rig := newTestRig(Options{
		RateLimit:   2,
		RateLimiter: ratelimit.New(time.Minute),
	})
	body := validBody(t)
	for i := 0; i < 2; i++ {
		if w := ingest(rig, body, true); w.Code != http.StatusOK {
			t.Fatalf("request %d: status = %d", i, w.Code)
		}
	}
	w := ingest(rig, body, true)
	if w.Code != http.StatusTooManyRequests {
		t.Errorf("status = %d, want 429", w.Code)
	}
}

func TestValidateEndpointDoesNotPublish(t *testing.T) {
	rig := newTestRig(Options{})
	body := validBody(t)
	req := httptest.NewRequest(http.MethodPost, "/api/v1/transactions/validate", bytes.NewReader(body))
	req.Header.Set("X-Signature", rig.checker.Sign(body))
	w := httptest.NewRecorder()
	rig.handler.Validate(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", w.Code, w.Body.String())
	}
	if rig.publisher.calls != 0 {
		t.Error("validate-only endpoint must not publish")
	}
	if len(rig.sink.sent) != 0 {
		t.Error("validate-only endpoint must not dead-letter")
	}
}

func TestValidateEndpointReportsErrors(t *testing.T) {
	rig := newTestRig(Options{})
	body := []byte(`{"transaction_id":"txn-3"}`)
	req := httptest.NewRequest(http.MethodPost, "/api/v1/transactions/validate", bytes.NewReader(body))
	req.Header.Set("X-Signature", rig.checker.Sign(body))
	w := httptest.NewRecorder()
	rig.handler.Validate(w, req)

	if w.Code != http.StatusBadRequest {
		t.Fatalf("status = %d", w.Code)
	}
	resp := decode(t, w)
	if _, ok := resp["errors"].([]any); !ok {
		t.Errorf("response = %v", resp)
	}
}

func TestStatusReportsCounters(t *testing.T) {
	rig := newTestRig(Options{})
	ingest(rig, validBody(t), true)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/status", nil)
	w := httptest.NewRecorder()
	rig.handler.Status(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
	resp := decode(t, w)
	counters, ok := resp["counters"].(map[string]any)
	if !ok {
		t.Fatalf("response = %v", resp)
	}
	if counters["received"] != float64(1) || counters["published"] != float64(1) {
		t.Errorf("counters = %v", counters)
	}
}

func TestDeadLettersEndpoint(t *testing.T) {
	env := pipeline.DeadLetterEnvelope{ID: "env-1", FailureStage: pipeline.StageValidation}
	rig := newTestRig(Options{Archive: &stubArchive{envelopes: []pipeline.DeadLetterEnvelope{env}}})

	req := httptest.NewRequest(http.MethodGet, "/api/v1/deadletters", nil)
	w := httptest.NewRecorder()
	rig.handler.DeadLetters(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
	resp := decode(t, w)
	if resp["count"] != float64(1) {
		t.Errorf("count = %v", resp["count"])
	}
}

func TestDeadLettersWithoutArchive(t *testing.T) {
	rig := newTestRig(Options{})
	req := httptest.NewRequest(http.MethodGet, "/api/v1/deadletters", nil)
	w := httptest.NewRecorder()
	rig.handler.DeadLetters(w, req)
	if w.Code != http.StatusNotFound {
		t.Errorf("status = %d, want 404", w.Code)
	}
}
