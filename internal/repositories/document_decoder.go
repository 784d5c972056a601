package repositories

import (
	"fmt"
	"math"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	domain "github.com/hanko-field/delivery/internal/domain"
)

// RawSnapshot is the delivery configuration as stored, before normalisation. Both the Firestore
// and the file backed sources decode into loosely typed maps first.
type RawSnapshot struct {
	Settings   map[string]any
	Calendar   map[string]any
	Methods    []map[string]any
	Surcharges []map[string]any
}

// DecodeSnapshot normalises raw configuration into a snapshot. Malformed values degrade to their
// zero or default value instead of failing the request.
func DecodeSnapshot(raw RawSnapshot) domain.Snapshot {
	snapshot := domain.Snapshot{
		Calendar:   decodeCalendar(raw.Calendar),
		Settings:   decodeSettings(raw.Settings),
		Methods:    make([]domain.ShippingMethod, 0, len(raw.Methods)),
		Surcharges: make([]domain.Surcharge, 0, len(raw.Surcharges)),
	}
	for i, doc := range raw.Methods {
		method := decodeMethod(doc)
		if method.ID == "" {
			method.ID = fmt.Sprintf("method-%d", i+1)
		}
		snapshot.Methods = append(snapshot.Methods, method)
	}
	for i, doc := range raw.Surcharges {
		surcharge := decodeSurcharge(doc)
		if surcharge.ID == "" {
			surcharge.ID = fmt.Sprintf("surcharge-%d", i+1)
		}
		snapshot.Surcharges = append(snapshot.Surcharges, surcharge)
	}
	return snapshot
}

// DecodeItem normalises a stored catalog document. The parent is resolved by the caller.
func DecodeItem(id string, raw map[string]any) domain.Item {
	item := domain.Item{
		ID:            strings.TrimSpace(id),
		ParentID:      asString(raw["parent_id"]),
		Name:          asString(raw["name"]),
		Weight:        asDecimal(raw["weight"]),
		Price:         asDecimal(raw["price"]),
		Attributes:    asValueMap(raw["attributes"]),
		Taxonomies:    asValueMap(raw["taxonomies"]),
		Categories:    asValues(raw["categories"]),
		ShippingClass: asString(raw["shipping_class"]),
		Availability: domain.Availability{
			StockQuantity:           asOptionalInt(raw["stock_quantity"]),
			Status:                  domain.ParseStockStatus(asString(raw["stock_status"])),
			BackordersAllowed:       asBool(raw["backorders_allowed"], false),
			ManualAvailableFrom:     asOptionalTime(raw["available_from"]),
			CalculatedAvailableFrom: asOptionalTime(raw["calculated_available_from"]),
			LeadTimeDays:            asInt(raw["lead_time_days"]),
		},
	}
	if item.ID == "" {
		item.ID = asString(raw["id"])
	}
	return item
}

func decodeSettings(raw map[string]any) domain.Settings {
	settings := domain.Settings{
		CutoffTime:          asString(raw["cutoff_time"]),
		ProcessingDays:      asFloat(raw["processing_days"]),
		DefaultLeadTimeDays: asInt(raw["default_lead_time_days"]),
		MaxVisibleStock:     asInt(raw["max_visible_stock"]),
	}
	if stacking := asString(raw["surcharge_stacking"]); stacking != "" {
		settings.SurchargeStacking = domain.ParseStackingStrategy(stacking)
	}
	if threshold, ok := asOptionalDecimal(raw["free_shipping_threshold"]); ok {
		settings.FreeShippingThreshold = &threshold
	}
	if tz := asString(raw["timezone"]); tz != "" {
		if loc, err := time.LoadLocation(tz); err == nil {
			settings.Location = loc
		}
	}
	return settings
}

func decodeCalendar(raw map[string]any) domain.CalendarSettings {
	if raw == nil {
		return domain.DefaultCalendarSettings()
	}
	calendar := domain.CalendarSettings{}
	if weekdays, ok := raw["weekdays"].([]any); ok {
		for _, value := range weekdays {
			if day, ok := asWeekday(value); ok {
				calendar.Weekdays = append(calendar.Weekdays, day)
			}
		}
	} else {
		calendar.Weekdays = domain.DefaultCalendarSettings().Weekdays
	}
	// A scalar holidays value is treated as an empty set.
	if holidays, ok := raw["holidays"].([]any); ok {
		for _, value := range holidays {
			if date, ok := asDateString(value); ok {
				calendar.Holidays = append(calendar.Holidays, date)
			}
		}
	}
	return calendar.Normalize()
}

func decodeMethod(raw map[string]any) domain.ShippingMethod {
	method := domain.ShippingMethod{
		ID:                 asString(raw["id"]),
		Name:               asString(raw["name"]),
		Enabled:            asBool(raw["enabled"], true),
		Priority:           asInt(raw["priority"]),
		Cost:               asDecimal(raw["cost"]),
		CostBasis:          domain.ParseCostBasis(asString(raw["cost_basis"])),
		TransitMin:         asInt(raw["transit_min"]),
		TransitMax:         asInt(raw["transit_max"]),
		Weight:             asDecimalRange(raw["min_weight"], raw["max_weight"]),
		Quantity:           domain.IntRange{Min: asOptionalInt(raw["min_quantity"]), Max: asOptionalInt(raw["max_quantity"])},
		BasketValue:        asDecimalRange(raw["min_value"], raw["max_value"]),
		Conditions:         decodeConditions(raw["conditions"]),
		RequiredCategories: asValues(raw["required_categories"]),
	}
	if express, ok := raw["express"].(map[string]any); ok {
		method.Express = domain.ExpressConfig{
			Enabled:    asBool(express["enabled"], true),
			CutoffTime: asString(express["cutoff_time"]),
			Cost:       asDecimal(express["cost"]),
			TransitMin: asOptionalInt(express["transit_min"]),
			TransitMax: asOptionalInt(express["transit_max"]),
		}
	}
	return method
}

func decodeSurcharge(raw map[string]any) domain.Surcharge {
	return domain.Surcharge{
		ID:                     asString(raw["id"]),
		Name:                   asString(raw["name"]),
		Enabled:                asBool(raw["enabled"], true),
		Priority:               asInt(raw["priority"]),
		Amount:                 asDecimal(raw["amount"]),
		AmountType:             domain.ParseAmountType(asString(raw["amount_type"])),
		ChargeBasis:            domain.ParseChargeBasis(asString(raw["charge_basis"])),
		Weight:                 asDecimalRange(raw["min_weight"], raw["max_weight"]),
		BasketValue:            asDecimalRange(raw["min_value"], raw["max_value"]),
		Conditions:             decodeConditions(raw["conditions"]),
		AppliesToExpress:       asBool(raw["applies_to_express"], true),
		ExemptFromFreeShipping: asBool(raw["exempt_from_free_shipping"], false),
	}
}

func decodeConditions(value any) []domain.AttributeCondition {
	list, ok := value.([]any)
	if !ok {
		return nil
	}
	conditions := make([]domain.AttributeCondition, 0, len(list))
	for _, entry := range list {
		raw, ok := entry.(map[string]any)
		if !ok {
			continue
		}
		conditions = append(conditions, domain.AttributeCondition{
			Type:   domain.ParseConditionType(asString(raw["type"])),
			Key:    asString(raw["key"]),
			Values: asValues(raw["values"]),
			Logic:  domain.ParseConditionLogic(asString(raw["logic"])),
		})
	}
	return conditions
}

func asString(value any) string {
	switch v := value.(type) {
	case string:
		return strings.TrimSpace(v)
	case fmt.Stringer:
		return strings.TrimSpace(v.String())
	case int, int64, float64, bool:
		return fmt.Sprint(v)
	default:
		return ""
	}
}

func asInt(value any) int {
	if v := asOptionalInt(value); v != nil {
		return *v
	}
	return 0
}

func asOptionalInt(value any) *int {
	var out int
	switch v := value.(type) {
	case int:
		out = v
	case int64:
		out = int(v)
	case float64:
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return nil
		}
		out = int(v)
	case string:
		parsed, err := strconv.Atoi(strings.TrimSpace(v))
		if err != nil {
			return nil
		}
		out = parsed
	default:
		return nil
	}
	return &out
}

func asFloat(value any) float64 {
	switch v := value.(type) {
	case int:
		return float64(v)
	case int64:
		return float64(v)
	case float64:
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return 0
		}
		return v
	case string:
		parsed, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
		if err != nil || math.IsNaN(parsed) || math.IsInf(parsed, 0) {
			return 0
		}
		return parsed
	default:
		return 0
	}
}

func asBool(value any, fallback bool) bool {
	switch v := value.(type) {
	case bool:
		return v
	case string:
		parsed, err := strconv.ParseBool(strings.TrimSpace(v))
		if err != nil {
			switch strings.ToLower(strings.TrimSpace(v)) {
			case "yes", "on":
				return true
			case "no", "off":
				return false
			}
			return fallback
		}
		return parsed
	default:
		return fallback
	}
}

func asDecimal(value any) decimal.Decimal {
	d, _ := asOptionalDecimal(value)
	return d
}

func asOptionalDecimal(value any) (decimal.Decimal, bool) {
	switch v := value.(type) {
	case int:
		return decimal.NewFromInt(int64(v)), true
	case int64:
		return decimal.NewFromInt(v), true
	case float64:
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return decimal.Zero, false
		}
		return decimal.NewFromFloat(v), true
	case string:
		trimmed := strings.TrimSpace(v)
		if trimmed == "" {
			return decimal.Zero, false
		}
		d, err := decimal.NewFromString(trimmed)
		if err != nil {
			return decimal.Zero, false
		}
		return d, true
	default:
		return decimal.Zero, false
	}
}

func asDecimalRange(minValue, maxValue any) domain.DecimalRange {
	var r domain.DecimalRange
	if d, ok := asOptionalDecimal(minValue); ok {
		r.Min = &d
	}
	if d, ok := asOptionalDecimal(maxValue); ok {
		r.Max = &d
	}
	return r
}

// asValues accepts a list or a single scalar. Blank entries are dropped.
func asValues(value any) []string {
	switch v := value.(type) {
	case []any:
		out := make([]string, 0, len(v))
		for _, entry := range v {
			if s := asString(entry); s != "" {
				out = append(out, s)
			}
		}
		return out
	case []string:
		out := make([]string, 0, len(v))
		for _, entry := range v {
			if s := strings.TrimSpace(entry); s != "" {
				out = append(out, s)
			}
		}
		return out
	default:
		if s := asString(v); s != "" {
			return []string{s}
		}
		return nil
	}
}

func asValueMap(value any) map[string][]string {
	raw, ok := value.(map[string]any)
	if !ok || len(raw) == 0 {
		return nil
	}
	keys := make([]string, 0, len(raw))
	for key := range raw {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	out := make(map[string][]string, len(raw))
	for _, key := range keys {
		trimmed := strings.TrimSpace(key)
		if trimmed == "" {
			continue
		}
		out[trimmed] = append(out[trimmed], asValues(raw[key])...)
	}
	return out
}

var weekdayNames = map[string]int{
	"monday": 1, "mon": 1,
	"tuesday": 2, "tue": 2,
	"wednesday": 3, "wed": 3,
	"thursday": 4, "thu": 4,
	"friday": 5, "fri": 5,
	"saturday": 6, "sat": 6,
	"sunday": 7, "sun": 7,
}

func asWeekday(value any) (int, bool) {
	if day := asOptionalInt(value); day != nil {
		return *day, true
	}
	day, ok := weekdayNames[strings.ToLower(asString(value))]
	return day, ok
}

// asDateString keeps the calendar date a stored value carries in its own zone. Timestamps are
// never shifted into UTC or the calendar zone first.
func asDateString(value any) (string, bool) {
	switch v := value.(type) {
	case time.Time:
		if v.IsZero() {
			return "", false
		}
		year, month, day := v.Date()
		return time.Date(year, month, day, 0, 0, 0, 0, time.UTC).Format(domain.DateLayout), true
	case string:
		trimmed := strings.TrimSpace(v)
		if _, err := time.Parse(domain.DateLayout, trimmed); err != nil {
			return "", false
		}
		return trimmed, true
	default:
		return "", false
	}
}

func asOptionalTime(value any) *time.Time {
	switch v := value.(type) {
	case time.Time:
		if v.IsZero() {
			return nil
		}
		t := v
		return &t
	case string:
		trimmed := strings.TrimSpace(v)
		if trimmed == "" {
			return nil
		}
		for _, layout := range []string{time.RFC3339, domain.DateLayout} {
			if parsed, err := time.Parse(layout, trimmed); err == nil {
				return &parsed
			}
		}
		return nil
	default:
		return nil
	}
}
