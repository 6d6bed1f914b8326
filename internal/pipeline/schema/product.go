package schema

import "github.com/Adithya-Monish-Kumar-K/Transaction-Ingestion-Pipeline/internal/pipeline"

var productCategories = []string{
	"electronics", "clothing", "food_beverage", "health_beauty",
	"home_garden", "sports_outdoors", "books_media", "automotive",
	"toys_games", "jewelry_accessories", "digital_services", "other",
}

var productStatuses = []string{"active", "inactive", "discontinued", "out_of_stock"}

// productSchema declares the rules for product catalog records.
func productSchema() Schema {
	return Schema{
		Type: pipeline.RecordTypeProduct,
		Fields: []FieldRule{
			{Name: "product_id", Kind: KindString, Required: true, MinLen: 1, MaxLen: 50, Pattern: idPattern},
			{Name: "sku", Kind: KindString, Required: true, MinLen: 1, MaxLen: 100, Pattern: idPattern},
			{Name: "name", Kind: KindString, Required: true, MinLen: 1, MaxLen: 200},
			{Name: "description", Kind: KindString, MaxLen: 2000},
			{Name: "category", Kind: KindString, Required: true, Enum: productCategories},
			{Name: "subcategory", Kind: KindString, MaxLen: 100},
			{Name: "brand", Kind: KindString, MaxLen: 100},
			{Name: "price", Kind: KindObject, Required: true, Fields: []FieldRule{
				{Name: "amount", Kind: KindNumber, Required: true, Min: num(0), Max: num(1000000)},
				{Name: "currency", Kind: KindString, Required: true, Enum: currencies},
				{Name: "discount_amount", Kind: KindNumber, Min: num(0)},
				{Name: "discount_percentage", Kind: KindNumber, Min: num(0), Max: num(100)},
			}},
			{Name: "inventory", Kind: KindObject, Required: true, Fields: []FieldRule{
				{Name: "quantity", Kind: KindInteger, Required: true, Min: num(0)},
				{Name: "reserved", Kind: KindInteger, Min: num(0)},
				{Name: "warehouse_location", Kind: KindString, MaxLen: 100},
			}},
			{Name: "dimensions", Kind: KindObject, Fields: []FieldRule{
				{Name: "length", Kind: KindNumber, Min: num(0)},
				{Name: "width", Kind: KindNumber, Min: num(0)},
				{Name: "height", Kind: KindNumber, Min: num(0)},
				{Name: "weight", Kind: KindNumber, Min: num(0)},
			}},
			{Name: "attributes", Kind: KindObject, Fields: []FieldRule{
				{Name: "color", Kind: KindString, MaxLen: 50},
				{Name: "size", Kind: KindString, MaxLen: 20},
				{Name: "material", Kind: KindString, MaxLen: 100},
				{Name: "style", Kind: KindString, MaxLen: 50},
			}},
			{Name: "shop_id", Kind: KindString, Required: true, MaxLen: 50, Pattern: idPattern},
			{Name: "status", Kind: KindString, Required: true, Enum: productStatuses},
			{Name: "created_date", Kind: KindString, Required: true, Timestamp: true},
			{Name: "last_updated", Kind: KindString, Timestamp: true},
			{Name: "metadata", Kind: KindAny},
		},
	}
}
