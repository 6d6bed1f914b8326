// Package schema implements the pure schema validator for candidate records.
// Each record type declares an ordered list of field rules; validation walks
// the rules in declaration order, collects every violation instead of
// stopping at the first, ignores unknown fields, and recurses into nested
// objects. The same record always yields the same result.
package schema

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/Adithya-Monish-Kumar-K/Transaction-Ingestion-Pipeline/internal/pipeline"
)

// Kind is the expected primitive type of a field.
type Kind int

const (
	KindString Kind = iota
	KindNumber
	KindInteger
	KindObject
	KindAny
)

func (k Kind) String() string {
	switch k {
	case KindString:
		return "string"
	case KindNumber:
		return "number"
	case KindInteger:
		return "integer"
	case KindObject:
		return "object"
	default:
		return "any"
	}
}

// FieldRule declares the constraints for one field. Declaration order in a
// Schema determines error ordering, so results are reproducible regardless
// of input field order.
type FieldRule struct {
	Name      string
	Kind      Kind
	Required  bool
	MinLen    int
	MaxLen    int
	Enum      []string
	Pattern   *regexp.Regexp
	Min       *float64
	Max       *float64
	Timestamp bool
	NotFuture bool
	Fields    []FieldRule
}

// Schema is the ordered rule set for one record type.
type Schema struct {
	Type   pipeline.RecordType
	Fields []FieldRule
}

func num(v float64) *float64 { return &v }

func fieldPath(prefix, name string) string {
	if prefix == "" {
		return name
	}
	return prefix + "." + name
}

// toNumber converts the numeric representations produced by JSON decoding
// and CSV parsing to float64.
func toNumber(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	}
	return 0, false
}

func enumMessage(path string, allowed []string) string {
	return fmt.Sprintf("%s must be one of: %s", path, strings.Join(allowed, ", "))
}
