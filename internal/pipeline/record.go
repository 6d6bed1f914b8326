// Package pipeline defines the shared types flowing through the ingestion
// pipeline: candidate records, validation results, publish outcomes,
// dead-letter envelopes, and the process-wide service counters.
package pipeline

import (
	"fmt"
	"time"
)

// RecordType tags a candidate record with its schema family.
type RecordType string

const (
	RecordTypeTransaction RecordType = "transaction"
	RecordTypeShop        RecordType = "shop"
	RecordTypeProduct     RecordType = "product"
)

// Valid reports whether t is a known record type.
func (t RecordType) Valid() bool {
	switch t {
	case RecordTypeTransaction, RecordTypeShop, RecordTypeProduct:
		return true
	}
	return false
}

// idFields maps each record type to its identifier field.
var idFields = map[RecordType]string{
	RecordTypeTransaction: "transaction_id",
	RecordTypeShop:        "shop_id",
	RecordTypeProduct:     "product_id",
}

// SourceDescriptor identifies where a candidate record came from: a CSV file
// and row on the batch path, or a webhook request id on the stream path.
type SourceDescriptor struct {
	File      string `json:"file,omitempty"`
	Row       int    `json:"row,omitempty"`
	RequestID string `json:"request_id,omitempty"`
}

func (s SourceDescriptor) String() string {
	if s.File != "" {
		return fmt.Sprintf("%s:%d", s.File, s.Row)
	}
	return s.RequestID
}

// CandidateRecord is the unit of work: one unvalidated record from either
// ingress path. It is never mutated after construction; validation produces
// a derived ValidationResult instead.
type CandidateRecord struct {
	Type   RecordType       `json:"type"`
	Fields map[string]any   `json:"fields"`
	Source SourceDescriptor `json:"source"`
}

// ID returns the record's identifier field when present, or "unknown".
func (r CandidateRecord) ID() string {
	field, ok := idFields[r.Type]
	if !ok {
		return "unknown"
	}
	if id, ok := r.Fields[field].(string); ok && id != "" {
		return id
	}
	return "unknown"
}

// FieldError describes one violated validation rule.
type FieldError struct {
	Path    string `json:"path"`
	Rule    string `json:"rule"`
	Message string `json:"message"`
}

func (e FieldError) String() string {
	return fmt.Sprintf("%s: %s", e.Path, e.Message)
}

// ValidationResult is the outcome of validating one candidate record.
// Accepted is true iff Errors is empty; Record is set only when accepted.
type ValidationResult struct {
	Accepted bool             `json:"accepted"`
	Record   *CandidateRecord `json:"record,omitempty"`
	Errors   []FieldError     `json:"errors,omitempty"`
}

// PublishStatus is the terminal outcome of a publish operation.
type PublishStatus string

const (
	PublishDelivered PublishStatus = "delivered"
	PublishFailed    PublishStatus = "failed"
)

// PublishOutcome reports how a publish operation ended. MessageID is set
// only when Delivered; LastError only when Failed. Attempts never exceeds
// the configured budget.
type PublishOutcome struct {
	Status    PublishStatus
	Attempts  int
	MessageID string
	LastError error
}

// FailureStage records which pipeline phase a dead-lettered record failed in.
type FailureStage string

const (
	StageValidation     FailureStage = "validation"
	StagePublish        FailureStage = "publish"
	StageAuthentication FailureStage = "authentication"
	StageSystem         FailureStage = "system"
)

// DeadLetterEnvelope wraps a record that did not reach Delivered, annotated
// with failure metadata. The JSON shape is stable so downstream reprocessing
// tooling can parse it.
type DeadLetterEnvelope struct {
	ID                 string           `json:"id"`
	OriginalRecord     CandidateRecord  `json:"original_record"`
	FailureStage       FailureStage     `json:"failure_stage"`
	FailureDetail      []string         `json:"failure_detail"`
	IngestionTimestamp time.Time        `json:"ingestion_timestamp"`
	Source             SourceDescriptor `json:"source_descriptor"`
}
