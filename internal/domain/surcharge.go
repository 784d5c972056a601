package domain

import "github.com/shopspring/decimal"

// AmountType decides whether a surcharge amount is absolute or a share of the basket value.
type AmountType string

const (
	// AmountFlat is an absolute amount.
	AmountFlat AmountType = "flat"
	// AmountPercentage is a percentage of the basket value.
	AmountPercentage AmountType = "percentage"
)

// ParseAmountType maps stored identifiers onto an AmountType, defaulting to flat.
func ParseAmountType(raw string) AmountType {
	switch normalizeToken(raw) {
	case "percentage", "percent", "%":
		return AmountPercentage
	default:
		return AmountFlat
	}
}

// ChargeBasis is the unit a surcharge amount is multiplied against.
type ChargeBasis string

const (
	ChargeOnce             ChargeBasis = "once"
	ChargePerShippingClass ChargeBasis = "per_shipping_class"
	ChargePerCategory      ChargeBasis = "per_category"
	ChargePerLineItem      ChargeBasis = "per_line_item"
	ChargePerQuantity      ChargeBasis = "per_quantity"
)

// ParseChargeBasis maps stored identifiers onto a ChargeBasis, defaulting to once per basket.
func ParseChargeBasis(raw string) ChargeBasis {
	switch normalizeToken(raw) {
	case "per_shipping_class", "shipping_class":
		return ChargePerShippingClass
	case "per_category", "category":
		return ChargePerCategory
	case "per_line_item", "per_line", "per_item", "line_item":
		return ChargePerLineItem
	case "per_quantity", "per_quantity_unit", "quantity", "per_unit":
		return ChargePerQuantity
	default:
		return ChargeOnce
	}
}

// StackingStrategy resolves several applicable surcharges into the applied set.
type StackingStrategy string

const (
	StackAll        StackingStrategy = "all"
	StackFirstMatch StackingStrategy = "first_match"
	StackSmallest   StackingStrategy = "smallest"
	StackLargest    StackingStrategy = "largest"
)

// ParseStackingStrategy maps stored identifiers onto a StackingStrategy, defaulting to all.
func ParseStackingStrategy(raw string) StackingStrategy {
	switch normalizeToken(raw) {
	case "first_match", "first", "priority":
		return StackFirstMatch
	case "smallest", "min", "lowest":
		return StackSmallest
	case "largest", "max", "highest":
		return StackLargest
	default:
		return StackAll
	}
}

// Surcharge is a configured fee added to a basket when its rules match.
type Surcharge struct {
	ID                     string
	Name                   string
	Enabled                bool
	Priority               int
	Amount                 decimal.Decimal
	AmountType             AmountType
	ChargeBasis            ChargeBasis
	Weight                 DecimalRange
	BasketValue            DecimalRange
	Conditions             []AttributeCondition
	AppliesToExpress       bool
	ExemptFromFreeShipping bool
}

// AppliedSurcharge is a surcharge that matched a basket together with its computed cost.
type AppliedSurcharge struct {
	SurchargeID string
	Name        string
	Priority    int
	ChargeBasis ChargeBasis
	Units       int
	Cost        decimal.Decimal
}
