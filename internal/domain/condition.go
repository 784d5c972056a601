package domain

import "strings"

// ConditionType selects where the values for a condition are read from.
type ConditionType string

const (
	// ConditionAttribute reads a plain product attribute.
	ConditionAttribute ConditionType = "attribute"
	// ConditionTaxonomy reads terms of a taxonomy such as categories or tags.
	ConditionTaxonomy ConditionType = "taxonomy"
	// ConditionShippingClass reads the item's shipping class.
	ConditionShippingClass ConditionType = "shipping_class"
)

// ConditionLogic decides how product values are compared against required values.
type ConditionLogic string

const (
	// LogicAtLeastOne passes when product and required values intersect.
	LogicAtLeastOne ConditionLogic = "at_least_one"
	// LogicAll passes when every required value is present.
	LogicAll ConditionLogic = "all"
	// LogicNone passes when no required value is present.
	LogicNone ConditionLogic = "none"
	// LogicOnly passes when the product has values and all of them are required values.
	LogicOnly ConditionLogic = "only"
)

// AttributeCondition is a single predicate over an item's attribute, taxonomy or shipping class.
type AttributeCondition struct {
	Type   ConditionType
	Key    string
	Values []string
	Logic  ConditionLogic
}

// ParseConditionType maps stored identifiers onto a ConditionType, defaulting to attribute.
func ParseConditionType(raw string) ConditionType {
	switch normalizeToken(raw) {
	case "taxonomy", "category", "term":
		return ConditionTaxonomy
	case "shipping_class", "shippingclass":
		return ConditionShippingClass
	default:
		return ConditionAttribute
	}
}

// ParseConditionLogic maps stored identifiers onto a ConditionLogic. Unknown values fall back
// to at-least-one.
func ParseConditionLogic(raw string) ConditionLogic {
	switch normalizeToken(raw) {
	case "all", "and":
		return LogicAll
	case "none", "not", "exclude":
		return LogicNone
	case "only", "exclusive":
		return LogicOnly
	default:
		return LogicAtLeastOne
	}
}

func normalizeToken(raw string) string {
	token := strings.ToLower(strings.TrimSpace(raw))
	token = strings.ReplaceAll(token, "-", "_")
	return strings.ReplaceAll(token, " ", "_")
}
