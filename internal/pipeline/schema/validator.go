package schema

import (
	"fmt"
	"time"

	"github.com/Adithya-Monish-Kumar-K/Transaction-Ingestion-Pipeline/internal/pipeline"
)

// Validator validates candidate records against the registered schemas.
// It is stateless apart from its configuration and safe for concurrent use.
type Validator struct {
	clockSkew time.Duration
	now       func() time.Time
	schemas   map[pipeline.RecordType]Schema
}

// NewValidator creates a Validator. clockSkew is the tolerance applied when
// rejecting timestamps in the future; zero falls back to 5 minutes.
func NewValidator(clockSkew time.Duration) *Validator {
	if clockSkew <= 0 {
		clockSkew = 5 * time.Minute
	}
	return &Validator{
		clockSkew: clockSkew,
		now:       time.Now,
		schemas: map[pipeline.RecordType]Schema{
			pipeline.RecordTypeTransaction: transactionSchema(),
			pipeline.RecordTypeShop:        shopSchema(),
			pipeline.RecordTypeProduct:     productSchema(),
		},
	}
}

// Validate checks rec against the schema for its record type and returns
// every violation found. It never modifies rec.
func (v *Validator) Validate(rec pipeline.CandidateRecord) pipeline.ValidationResult {
	s, ok := v.schemas[rec.Type]
	if !ok {
		return pipeline.ValidationResult{
			Errors: []pipeline.FieldError{{
				Path:    "type",
				Rule:    "record_type",
				Message: fmt.Sprintf("unknown record type %q", rec.Type),
			}},
		}
	}
	var errs []pipeline.FieldError
	for _, rule := range s.Fields {
		errs = append(errs, v.checkField("", rule, rec.Fields)...)
	}
	if len(errs) > 0 {
		return pipeline.ValidationResult{Errors: errs}
	}
	return pipeline.ValidationResult{Accepted: true, Record: &rec}
}

// checkField applies one rule to the value at rule.Name within obj,
// returning all violations for that field and (for objects) its subfields.
func (v *Validator) checkField(prefix string, rule FieldRule, obj map[string]any) []pipeline.FieldError {
	path := fieldPath(prefix, rule.Name)
	val, present := obj[rule.Name]
	if !present || val == nil {
		if rule.Required {
			return []pipeline.FieldError{{Path: path, Rule: "required", Message: path + " is required"}}
		}
		return nil
	}
	// Empty strings come from sparse CSV rows; treat them as absent.
	if s, ok := val.(string); ok && s == "" {
		if rule.Required {
			return []pipeline.FieldError{{Path: path, Rule: "required", Message: path + " is required"}}
		}
		return nil
	}

	switch rule.Kind {
	case KindString:
		return v.checkString(path, rule, val)
	case KindNumber:
		return checkNumber(path, rule, val, false)
	case KindInteger:
		return checkNumber(path, rule, val, true)
	case KindObject:
		nested, ok := val.(map[string]any)
		if !ok {
			return []pipeline.FieldError{{Path: path, Rule: "type", Message: path + " must be an object"}}
		}
		var errs []pipeline.FieldError
		for _, sub := range rule.Fields {
			errs = append(errs, v.checkField(path, sub, nested)...)
		}
		return errs
	}
	return nil
}

func (v *Validator) checkString(path string, rule FieldRule, val any) []pipeline.FieldError {
	s, ok := val.(string)
	if !ok {
		return []pipeline.FieldError{{Path: path, Rule: "type", Message: path + " must be a string"}}
	}
	var errs []pipeline.FieldError
	if rule.MinLen > 0 && len(s) < rule.MinLen {
		errs = append(errs, pipeline.FieldError{
			Path: path, Rule: "min_length",
			Message: fmt.Sprintf("%s must be at least %d characters", path, rule.MinLen),
		})
	}
	if rule.MaxLen > 0 && len(s) > rule.MaxLen {
		errs = append(errs, pipeline.FieldError{
			Path: path, Rule: "max_length",
			Message: fmt.Sprintf("%s must be at most %d characters", path, rule.MaxLen),
		})
	}
	if len(rule.Enum) > 0 && !contains(rule.Enum, s) {
		errs = append(errs, pipeline.FieldError{
			Path: path, Rule: "enum", Message: enumMessage(path, rule.Enum),
		})
	}
	if rule.Pattern != nil && !rule.Pattern.MatchString(s) {
		errs = append(errs, pipeline.FieldError{
			Path: path, Rule: "pattern",
			Message: fmt.Sprintf("%s has an invalid format", path),
		})
	}
	if rule.Timestamp {
		ts, err := time.Parse(time.RFC3339, s)
		if err != nil {
			errs = append(errs, pipeline.FieldError{
				Path: path, Rule: "format",
				Message: fmt.Sprintf("%s must be an ISO-8601 timestamp", path),
			})
		} else if rule.NotFuture && ts.After(v.now().Add(v.clockSkew)) {
			errs = append(errs, pipeline.FieldError{
				Path: path, Rule: "future",
				Message: fmt.Sprintf("%s must not be in the future", path),
			})
		}
	}
	return errs
}

func checkNumber(path string, rule FieldRule, val any, integer bool) []pipeline.FieldError {
	n, ok := toNumber(val)
	if !ok {
		kind := "number"
		if integer {
			kind = "integer"
		}
		return []pipeline.FieldError{{Path: path, Rule: "type", Message: fmt.Sprintf("%s must be a %s", path, kind)}}
	}
	var errs []pipeline.FieldError
	if integer && n != float64(int64(n)) {
		errs = append(errs, pipeline.FieldError{
			Path: path, Rule: "type", Message: path + " must be an integer",
		})
	}
	if rule.Min != nil && n < *rule.Min {
		msg := fmt.Sprintf("%s must be at least %v", path, *rule.Min)
		if *rule.Min > 0 {
			msg = path + " must be positive"
		}
		errs = append(errs, pipeline.FieldError{Path: path, Rule: "min", Message: msg})
	}
	if rule.Max != nil && n > *rule.Max {
		errs = append(errs, pipeline.FieldError{
			Path: path, Rule: "max",
			Message: fmt.Sprintf("%s must be at most %v", path, *rule.Max),
		})
	}
	return errs
}

func contains(values []string, s string) bool {
	for _, v := range values {
		if v == s {
			return true
		}
	}
	return false
}
