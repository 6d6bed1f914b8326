package deadletter

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/Adithya-Monish-Kumar-K/Transaction-Ingestion-Pipeline/internal/pipeline"
	apperrors "github.com/Adithya-Monish-Kumar-K/Transaction-Ingestion-Pipeline/pkg/errors"
	"github.com/Adithya-Monish-Kumar-K/Transaction-Ingestion-Pipeline/pkg/kafka"
)

type fakeTransport struct {
	calls int
	err   error
	sent  []kafka.Event
}

func (f *fakeTransport) Publish(ctx context.Context, event kafka.Event) error {
	f.calls++
	if f.err != nil {
		return f.err
	}
	f.sent = append(f.sent, event)
	return nil
}

type fakeArchive struct {
	stored []pipeline.DeadLetterEnvelope
	err    error
}

func (f *fakeArchive) Store(ctx context.Context, env pipeline.DeadLetterEnvelope) error {
	if f.err != nil {
		return f.err
	}
	f.stored = append(f.stored, env)
	return nil
}

func fastConfig() Config {
	return Config{
		MaxAttempts:    2,
		InitialBackoff: time.Microsecond,
		MaxBackoff:     time.Millisecond,
		AttemptTimeout: time.Second,
	}
}

func testEnvelope() pipeline.DeadLetterEnvelope {
	rec := pipeline.CandidateRecord{
		Type:   pipeline.RecordTypeTransaction,
		Fields: map[string]any{"transaction_id": "txn-9"},
	}
	return NewEnvelope(rec, pipeline.StageValidation, []string{"amount: amount must be positive"})
}

func TestNewEnvelopePopulatesMetadata(t *testing.T) {
	rec := pipeline.CandidateRecord{
		Type:   pipeline.RecordTypeTransaction,
		Fields: map[string]any{"transaction_id": "txn-9"},
		Source: pipeline.SourceDescriptor{File: "drop.csv", Row: 3},
	}
	env := NewEnvelope(rec, pipeline.StagePublish, []string{"broker unreachable"})
	if env.ID == "" {
		t.Error("envelope must get a unique id")
	}
	if env.FailureStage != pipeline.StagePublish {
		t.Errorf("stage = %v", env.FailureStage)
	}
	if env.IngestionTimestamp.IsZero() {
		t.Error("envelope must be timestamped")
	}
	if env.Source != rec.Source {
		t.Errorf("source = %+v, want %+v", env.Source, rec.Source)
	}
	if env.OriginalRecord.ID() != "txn-9" {
		t.Errorf("original record id = %q", env.OriginalRecord.ID())
	}
}

func TestSendDeliversToTopic(t *testing.T) {
	transport := &fakeTransport{}
	r := New(transport, nil, fastConfig(), nil)

	env := testEnvelope()
	if err := r.Send(context.Background(), env); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(transport.sent) != 1 {
		t.Fatalf("sent %d events, want 1", len(transport.sent))
	}
	if transport.sent[0].Headers["envelope_id"] != env.ID {
		t.Errorf("envelope_id header = %q, want %q", transport.sent[0].Headers["envelope_id"], env.ID)
	}
}

func TestSendFallsBackWhenTopicUnavailable(t *testing.T) {
	transport := &fakeTransport{err: errors.New("all brokers down")}
	r := New(transport, nil, fastConfig(), nil)

	err := r.Send(context.Background(), testEnvelope())
	if !errors.Is(err, apperrors.ErrDeadLetterUnavailable) {
		t.Fatalf("error = %v, want ErrDeadLetterUnavailable", err)
	}
	if transport.calls != 2 {
		t.Errorf("transport called %d times, want the configured budget of 2", transport.calls)
	}
}

func TestSendArchivesBestEffort(t *testing.T) {
	transport := &fakeTransport{}
	archive := &fakeArchive{}
	r := New(transport, archive, fastConfig(), nil)

	env := testEnvelope()
	if err := r.Send(context.Background(), env); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(archive.stored) != 1 || archive.stored[0].ID != env.ID {
		t.Errorf("archive did not receive the envelope: %+v", archive.stored)
	}
}

func TestSendSucceedsDespiteArchiveFailure(t *testing.T) {
	transport := &fakeTransport{}
	archive := &fakeArchive{err: errors.New("db down")}
	r := New(transport, archive, fastConfig(), nil)

	if err := r.Send(context.Background(), testEnvelope()); err != nil {
		t.Fatalf("archive failure must not block topic delivery: %v", err)
	}
	if len(transport.sent) != 1 {
		t.Errorf("sent %d events, want 1", len(transport.sent))
	}
}
