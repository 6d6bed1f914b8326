package schema

import (
	"regexp"

	"github.com/Adithya-Monish-Kumar-K/Transaction-Ingestion-Pipeline/internal/pipeline"
)

var (
	idPattern       = regexp.MustCompile(`^[a-zA-Z0-9_-]+$`)
	countryPattern  = regexp.MustCompile(`^[A-Z]{2}$`)
	lastFourPattern = regexp.MustCompile(`^[0-9]{4}$`)
)

var (
	currencies       = []string{"USD", "EUR", "GBP", "JPY", "CAD", "AUD", "CHF", "CNY", "INR"}
	transactionTypes = []string{"purchase", "refund", "transfer", "deposit", "withdrawal"}
	paymentTypes     = []string{"credit_card", "debit_card", "bank_transfer", "digital_wallet", "cash"}
)

// transactionSchema declares the rules for financial transaction records.
// Field order here fixes the error ordering in validation results.
func transactionSchema() Schema {
	return Schema{
		Type: pipeline.RecordTypeTransaction,
		Fields: []FieldRule{
			{Name: "transaction_id", Kind: KindString, Required: true, MinLen: 1, MaxLen: 100, Pattern: idPattern},
			{Name: "customer_id", Kind: KindString, Required: true, MinLen: 1, MaxLen: 50, Pattern: idPattern},
			{Name: "amount", Kind: KindNumber, Required: true, Min: num(0.01), Max: num(1000000)},
			{Name: "currency", Kind: KindString, Required: true, Enum: currencies},
			{Name: "transaction_type", Kind: KindString, Required: true, Enum: transactionTypes},
			{Name: "timestamp", Kind: KindString, Required: true, Timestamp: true, NotFuture: true},
			{Name: "merchant_id", Kind: KindString, MaxLen: 50, Pattern: idPattern},
			{Name: "description", Kind: KindString, MaxLen: 500},
			{Name: "payment_method", Kind: KindObject, Required: true, Fields: []FieldRule{
				{Name: "type", Kind: KindString, Required: true, Enum: paymentTypes},
				{Name: "last_four", Kind: KindString, Pattern: lastFourPattern},
				{Name: "provider", Kind: KindString, MaxLen: 50},
			}},
			{Name: "location", Kind: KindObject, Fields: []FieldRule{
				{Name: "country", Kind: KindString, Pattern: countryPattern},
				{Name: "city", Kind: KindString, MaxLen: 100},
				{Name: "postal_code", Kind: KindString, MaxLen: 20},
			}},
			{Name: "metadata", Kind: KindAny},
		},
	}
}
