package services

import (
	"strings"

	"golang.org/x/text/cases"

	domain "github.com/hanko-field/delivery/internal/domain"
)

// MatchValues compares an item's values against the required values of a condition. Comparison
// is case-insensitive; unknown logic behaves like at-least-one.
func MatchValues(productValues, requiredValues []string, logic domain.ConditionLogic) bool {
	fold := cases.Fold()
	product := foldSet(fold, productValues)
	required := foldSet(fold, requiredValues)

	switch logic {
	case domain.LogicAll:
		for value := range required {
			if _, ok := product[value]; !ok {
				return false
			}
		}
		return true
	case domain.LogicNone:
		return !intersects(product, required)
	case domain.LogicOnly:
		if len(product) == 0 {
			return false
		}
		for value := range product {
			if _, ok := required[value]; !ok {
				return false
			}
		}
		return true
	default:
		return intersects(product, required)
	}
}

// ConditionMatcher evaluates attribute conditions for single items and whole baskets using one
// value extraction callback.
type ConditionMatcher struct {
	extract ValueExtractor
}

// NewConditionMatcher returns a matcher using extract, or CatalogValues when extract is nil.
func NewConditionMatcher(extract ValueExtractor) *ConditionMatcher {
	if extract == nil {
		extract = CatalogValues
	}
	return &ConditionMatcher{extract: extract}
}

// Values returns the item's values for the condition.
func (m *ConditionMatcher) Values(item domain.Item, cond domain.AttributeCondition) []string {
	return m.extract(item, cond)
}

// ItemSatisfies evaluates one condition against one item. Conditions without required values
// pass.
func (m *ConditionMatcher) ItemSatisfies(item domain.Item, cond domain.AttributeCondition) bool {
	if !hasRequiredValues(cond) {
		return true
	}
	return MatchValues(m.extract(item, cond), cond.Values, cond.Logic)
}

// ItemSatisfiesAll reports whether the item passes every condition.
func (m *ConditionMatcher) ItemSatisfiesAll(item domain.Item, conds []domain.AttributeCondition) bool {
	for _, cond := range conds {
		if !m.ItemSatisfies(item, cond) {
			return false
		}
	}
	return true
}

// BasketSatisfies evaluates a condition for a basket: it passes when at least one line passes it
// on its own.
func (m *ConditionMatcher) BasketSatisfies(lines []domain.BasketLine, cond domain.AttributeCondition) bool {
	if !hasRequiredValues(cond) {
		return true
	}
	for _, line := range lines {
		if MatchValues(m.extract(line.Item, cond), cond.Values, cond.Logic) {
			return true
		}
	}
	return false
}

// BasketSatisfiesAll reports whether every condition is satisfied by some line of the basket.
// Different conditions may be satisfied by different lines.
func (m *ConditionMatcher) BasketSatisfiesAll(lines []domain.BasketLine, conds []domain.AttributeCondition) bool {
	for _, cond := range conds {
		if !m.BasketSatisfies(lines, cond) {
			return false
		}
	}
	return true
}

func hasRequiredValues(cond domain.AttributeCondition) bool {
	return hasNonBlank(cond.Values)
}

func foldSet(fold cases.Caser, values []string) map[string]struct{} {
	set := make(map[string]struct{}, len(values))
	for _, value := range values {
		trimmed := strings.TrimSpace(value)
		if trimmed == "" {
			continue
		}
		set[fold.String(trimmed)] = struct{}{}
	}
	return set
}

func intersects(a, b map[string]struct{}) bool {
	if len(b) < len(a) {
		a, b = b, a
	}
	for value := range a {
		if _, ok := b[value]; ok {
			return true
		}
	}
	return false
}

func hasNonBlank(values []string) bool {
	for _, value := range values {
		if strings.TrimSpace(value) != "" {
			return true
		}
	}
	return false
}
