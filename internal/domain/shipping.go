package domain

import "github.com/shopspring/decimal"

// CostBasis defines what a shipping method's cost amount is multiplied by.
type CostBasis string

const (
	// CostFlat charges the amount once.
	CostFlat CostBasis = "flat"
	// CostPerWeight charges the amount per weight unit of the shipment.
	CostPerWeight CostBasis = "per_weight"
	// CostPerQuantity charges the amount per unit shipped.
	CostPerQuantity CostBasis = "per_quantity"
)

// ParseCostBasis maps stored identifiers onto a CostBasis, defaulting to flat.
func ParseCostBasis(raw string) CostBasis {
	switch normalizeToken(raw) {
	case "per_weight", "weight", "per_weight_unit":
		return CostPerWeight
	case "per_quantity", "quantity", "per_item", "per_quantity_unit":
		return CostPerQuantity
	default:
		return CostFlat
	}
}

// DecimalRange is an inclusive numeric range where either bound may be unset.
type DecimalRange struct {
	Min *decimal.Decimal
	Max *decimal.Decimal
}

// Contains reports whether value lies within the configured bounds.
func (r DecimalRange) Contains(value decimal.Decimal) bool {
	if r.Min != nil && value.LessThan(*r.Min) {
		return false
	}
	if r.Max != nil && value.GreaterThan(*r.Max) {
		return false
	}
	return true
}

// IntRange is an inclusive integer range where either bound may be unset.
type IntRange struct {
	Min *int
	Max *int
}

// Contains reports whether value lies within the configured bounds.
func (r IntRange) Contains(value int) bool {
	if r.Min != nil && value < *r.Min {
		return false
	}
	if r.Max != nil && value > *r.Max {
		return false
	}
	return true
}

// ExpressConfig describes the optional faster variant of a shipping method.
type ExpressConfig struct {
	Enabled    bool
	CutoffTime string
	Cost       decimal.Decimal
	TransitMin *int
	TransitMax *int
}

// ShippingMethod is a configured carrier service with its eligibility rules.
type ShippingMethod struct {
	ID                 string
	Name               string
	Enabled            bool
	Priority           int
	Cost               decimal.Decimal
	CostBasis          CostBasis
	TransitMin         int
	TransitMax         int
	Weight             DecimalRange
	Quantity           IntRange
	BasketValue        DecimalRange
	Conditions         []AttributeCondition
	RequiredCategories []string
	Express            ExpressConfig
}

// SupportsExpress reports whether the method offers an express variant.
func (m ShippingMethod) SupportsExpress() bool {
	return m.Express.Enabled
}

// Transit returns the transit range used for the requested service level. Methods without an
// express variant always use their base range.
func (m ShippingMethod) Transit(express bool) (int, int) {
	lower, upper := m.TransitMin, m.TransitMax
	if express && m.SupportsExpress() {
		if m.Express.TransitMin != nil {
			lower = *m.Express.TransitMin
		}
		if m.Express.TransitMax != nil {
			upper = *m.Express.TransitMax
		}
	}
	if lower < 0 {
		lower = 0
	}
	if upper < lower {
		upper = lower
	}
	return lower, upper
}
