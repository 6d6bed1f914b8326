package batch

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/Adithya-Monish-Kumar-K/Transaction-Ingestion-Pipeline/internal/pipeline"
)

// CSV header sets per record type, used both for auto-detection and for the
// row-to-record transforms.
var (
	transactionHeaders = []string{
		"transaction_id", "customer_id", "amount", "currency",
		"transaction_type", "timestamp", "merchant_id", "description",
		"payment_method_type", "payment_method_last_four", "payment_method_provider",
		"location_country", "location_city", "location_postal_code",
	}
	shopHeaders = []string{
		"shop_id", "name", "description", "category", "status",
		"owner_name", "owner_email", "owner_phone",
		"address_street", "address_city", "address_state", "address_postal_code", "address_country",
		"contact_phone", "contact_email", "contact_website",
		"registration_date", "last_updated",
	}
	productHeaders = []string{
		"product_id", "sku", "name", "description", "category", "subcategory", "brand",
		"price_amount", "price_currency", "price_discount_amount", "price_discount_percentage",
		"inventory_quantity", "inventory_reserved", "inventory_warehouse_location",
		"shop_id", "status", "created_date", "last_updated",
	}
)

// detectThreshold is the minimum header overlap needed to claim a type.
const detectThreshold = 6

// DetectRecordType infers the record type of a CSV file from its header
// row, defaulting to transaction when no type reaches the overlap
// threshold.
func DetectRecordType(headers []string) pipeline.RecordType {
	normalized := make(map[string]bool, len(headers))
	for _, h := range headers {
		normalized[strings.ToLower(strings.TrimSpace(h))] = true
	}
	overlap := func(known []string) int {
		n := 0
		for _, h := range known {
			if normalized[h] {
				n++
			}
		}
		return n
	}
	switch {
	case overlap(transactionHeaders) >= detectThreshold:
		return pipeline.RecordTypeTransaction
	case overlap(shopHeaders) >= detectThreshold:
		return pipeline.RecordTypeShop
	case overlap(productHeaders) >= detectThreshold:
		return pipeline.RecordTypeProduct
	}
	return pipeline.RecordTypeTransaction
}

// RowFunc receives each candidate record parsed from a CSV stream.
type RowFunc func(rec pipeline.CandidateRecord)

// ParseCSV reads a CSV stream and invokes fn once per data row. Rows that
// cannot be read cleanly still produce a candidate record (carrying the raw
// line) so the router dead-letters them instead of dropping them. The
// returned error covers only stream-level failures such as a missing
// header row.
func ParseCSV(r io.Reader, file string, fn RowFunc) (pipeline.RecordType, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	cr.TrimLeadingSpace = true

	headers, err := cr.Read()
	if err != nil {
		return "", fmt.Errorf("reading header row of %s: %w", file, err)
	}
	for i := range headers {
		headers[i] = strings.ToLower(strings.TrimSpace(headers[i]))
	}
	recordType := DetectRecordType(headers)

	line := 1
	for {
		line++
		row, err := cr.Read()
		if err == io.EOF {
			break
		}
		source := pipeline.SourceDescriptor{File: file, Row: line}
		if err != nil {
			fn(pipeline.CandidateRecord{
				Type:   recordType,
				Fields: map[string]any{"_malformed_row": err.Error()},
				Source: source,
			})
			continue
		}
		cells := make(map[string]string, len(headers))
		for i, h := range headers {
			if i < len(row) {
				cells[h] = strings.TrimSpace(row[i])
			}
		}
		fn(pipeline.CandidateRecord{
			Type:   recordType,
			Fields: transformRow(recordType, cells),
			Source: source,
		})
	}
	return recordType, nil
}

// transformRow converts flat CSV cells into the nested field structure the
// schema validator expects. Unparseable numbers keep their string value so
// validation reports them as type violations.
func transformRow(t pipeline.RecordType, cells map[string]string) map[string]any {
	switch t {
	case pipeline.RecordTypeShop:
		return transformShopRow(cells)
	case pipeline.RecordTypeProduct:
		return transformProductRow(cells)
	default:
		return transformTransactionRow(cells)
	}
}

func transformTransactionRow(cells map[string]string) map[string]any {
	fields := map[string]any{}
	setString(fields, cells, "transaction_id")
	setString(fields, cells, "customer_id")
	setNumber(fields, cells, "amount")
	setString(fields, cells, "currency")
	setString(fields, cells, "transaction_type")
	setString(fields, cells, "timestamp")
	setString(fields, cells, "merchant_id")
	setString(fields, cells, "description")

	payment := map[string]any{}
	setNested(payment, cells, "payment_method_type", "type")
	setNested(payment, cells, "payment_method_last_four", "last_four")
	setNested(payment, cells, "payment_method_provider", "provider")
	if len(payment) > 0 {
		fields["payment_method"] = payment
	}

	location := map[string]any{}
	setNested(location, cells, "location_country", "country")
	setNested(location, cells, "location_city", "city")
	setNested(location, cells, "location_postal_code", "postal_code")
	if len(location) > 0 {
		fields["location"] = location
	}
	return fields
}

func transformShopRow(cells map[string]string) map[string]any {
	fields := map[string]any{}
	setString(fields, cells, "shop_id")
	setString(fields, cells, "name")
	setString(fields, cells, "description")
	setString(fields, cells, "category")
	setString(fields, cells, "status")
	setString(fields, cells, "registration_date")
	setString(fields, cells, "last_updated")

	owner := map[string]any{}
	setNested(owner, cells, "owner_name", "name")
	setNested(owner, cells, "owner_email", "email")
	setNested(owner, cells, "owner_phone", "phone")
	if len(owner) > 0 {
		fields["owner"] = owner
	}

	address := map[string]any{}
	setNested(address, cells, "address_street", "street")
	setNested(address, cells, "address_city", "city")
	setNested(address, cells, "address_state", "state")
	setNested(address, cells, "address_postal_code", "postal_code")
	setNested(address, cells, "address_country", "country")
	if len(address) > 0 {
		fields["address"] = address
	}

	contact := map[string]any{}
	setNested(contact, cells, "contact_phone", "phone")
	setNested(contact, cells, "contact_email", "email")
	setNested(contact, cells, "contact_website", "website")
	if len(contact) > 0 {
		fields["contact"] = contact
	}

	hours := map[string]any{}
	for _, day := range []string{"monday", "tuesday", "wednesday", "thursday", "friday", "saturday", "sunday"} {
		setNested(hours, cells, "business_hours_"+day, day)
	}
	if len(hours) > 0 {
		fields["business_hours"] = hours
	}
	return fields
}

func transformProductRow(cells map[string]string) map[string]any {
	fields := map[string]any{}
	setString(fields, cells, "product_id")
	setString(fields, cells, "sku")
	setString(fields, cells, "name")
	setString(fields, cells, "description")
	setString(fields, cells, "category")
	setString(fields, cells, "subcategory")
	setString(fields, cells, "brand")
	setString(fields, cells, "shop_id")
	setString(fields, cells, "status")
	setString(fields, cells, "created_date")
	setString(fields, cells, "last_updated")

	price := map[string]any{}
	setNestedNumber(price, cells, "price_amount", "amount")
	setNested(price, cells, "price_currency", "currency")
	setNestedNumber(price, cells, "price_discount_amount", "discount_amount")
	setNestedNumber(price, cells, "price_discount_percentage", "discount_percentage")
	if len(price) > 0 {
		fields["price"] = price
	}

	inventory := map[string]any{}
	setNestedNumber(inventory, cells, "inventory_quantity", "quantity")
	setNestedNumber(inventory, cells, "inventory_reserved", "reserved")
	setNested(inventory, cells, "inventory_warehouse_location", "warehouse_location")
	if len(inventory) > 0 {
		fields["inventory"] = inventory
	}

	dimensions := map[string]any{}
	for _, d := range []string{"length", "width", "height", "weight"} {
		setNestedNumber(dimensions, cells, "dimensions_"+d, d)
	}
	if len(dimensions) > 0 {
		fields["dimensions"] = dimensions
	}

	attributes := map[string]any{}
	for _, a := range []string{"color", "size", "material", "style"} {
		setNested(attributes, cells, "attributes_"+a, a)
	}
	if len(attributes) > 0 {
		fields["attributes"] = attributes
	}

	// Images and tags are JSON arrays embedded in the CSV cell; a plain
	// value becomes a single-element list.
	if v := cells["images"]; v != "" {
		fields["images"] = parseList(v)
	}
	if v := cells["tags"]; v != "" {
		fields["tags"] = parseList(v)
	}
	return fields
}

func setString(fields map[string]any, cells map[string]string, name string) {
	if v, ok := cells[name]; ok && v != "" {
		fields[name] = v
	}
}

func setNested(obj map[string]any, cells map[string]string, cell, name string) {
	if v, ok := cells[cell]; ok && v != "" {
		obj[name] = v
	}
}

func setNumber(fields map[string]any, cells map[string]string, name string) {
	v, ok := cells[name]
	if !ok || v == "" {
		return
	}
	if f, err := strconv.ParseFloat(v, 64); err == nil {
		fields[name] = f
	} else {
		fields[name] = v
	}
}

func setNestedNumber(obj map[string]any, cells map[string]string, cell, name string) {
	v, ok := cells[cell]
	if !ok || v == "" {
		return
	}
	if f, err := strconv.ParseFloat(v, 64); err == nil {
		obj[name] = f
	} else {
		obj[name] = v
	}
}

func parseList(v string) []any {
	var list []any
	if err := json.Unmarshal([]byte(v), &list); err == nil {
		return list
	}
	parts := strings.Split(v, ",")
	list = make([]any, 0, len(parts))
	for _, p := range parts {
		list = append(list, strings.TrimSpace(p))
	}
	return list
}
