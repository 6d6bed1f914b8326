package schema

import (
	"regexp"

	"github.com/Adithya-Monish-Kumar-K/Transaction-Ingestion-Pipeline/internal/pipeline"
)

var (
	phonePattern = regexp.MustCompile(`^\+?[1-9]\d{1,14}$`)
	hoursPattern = regexp.MustCompile(`^([0-9]{2}:[0-9]{2}-[0-9]{2}:[0-9]{2}|closed)$`)
)

var (
	shopCategories = []string{
		"electronics", "clothing", "food_beverage", "health_beauty",
		"home_garden", "sports_outdoors", "books_media", "automotive",
		"toys_games", "jewelry_accessories", "services", "other",
	}
	shopStatuses = []string{"active", "inactive", "suspended", "pending"}
)

// shopSchema declares the rules for shop/merchant records.
func shopSchema() Schema {
	return Schema{
		Type: pipeline.RecordTypeShop,
		Fields: []FieldRule{
			{Name: "shop_id", Kind: KindString, Required: true, MinLen: 1, MaxLen: 50, Pattern: idPattern},
			{Name: "name", Kind: KindString, Required: true, MinLen: 1, MaxLen: 200},
			{Name: "description", Kind: KindString, MaxLen: 1000},
			{Name: "category", Kind: KindString, Required: true, Enum: shopCategories},
			{Name: "status", Kind: KindString, Required: true, Enum: shopStatuses},
			{Name: "owner", Kind: KindObject, Required: true, Fields: []FieldRule{
				{Name: "name", Kind: KindString, Required: true, MaxLen: 100},
				{Name: "email", Kind: KindString, Required: true, MaxLen: 100},
				{Name: "phone", Kind: KindString, Pattern: phonePattern},
			}},
			{Name: "address", Kind: KindObject, Required: true, Fields: []FieldRule{
				{Name: "street", Kind: KindString, Required: true, MaxLen: 200},
				{Name: "city", Kind: KindString, Required: true, MaxLen: 100},
				{Name: "state", Kind: KindString, MaxLen: 100},
				{Name: "postal_code", Kind: KindString, MaxLen: 20},
				{Name: "country", Kind: KindString, Required: true, Pattern: countryPattern},
			}},
			{Name: "contact", Kind: KindObject, Fields: []FieldRule{
				{Name: "phone", Kind: KindString, Pattern: phonePattern},
				{Name: "email", Kind: KindString, MaxLen: 100},
				{Name: "website", Kind: KindString, MaxLen: 200},
			}},
			{Name: "business_hours", Kind: KindObject, Fields: []FieldRule{
				{Name: "monday", Kind: KindString, Pattern: hoursPattern},
				{Name: "tuesday", Kind: KindString, Pattern: hoursPattern},
				{Name: "wednesday", Kind: KindString, Pattern: hoursPattern},
				{Name: "thursday", Kind: KindString, Pattern: hoursPattern},
				{Name: "friday", Kind: KindString, Pattern: hoursPattern},
				{Name: "saturday", Kind: KindString, Pattern: hoursPattern},
				{Name: "sunday", Kind: KindString, Pattern: hoursPattern},
			}},
			{Name: "registration_date", Kind: KindString, Required: true, Timestamp: true},
			{Name: "last_updated", Kind: KindString, Timestamp: true},
			{Name: "metadata", Kind: KindAny},
		},
	}
}
