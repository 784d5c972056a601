package services

import (
	"sort"
	"strings"

	domain "github.com/hanko-field/delivery/internal/domain"
)

// CategoryTaxonomy is the taxonomy key that addresses an item's categories.
const CategoryTaxonomy = "category"

var (
	categoryCondition      = domain.AttributeCondition{Type: domain.ConditionTaxonomy, Key: CategoryTaxonomy}
	shippingClassCondition = domain.AttributeCondition{Type: domain.ConditionShippingClass}
)

// CatalogValues is the default ValueExtractor. Variants without a value for the requested key
// fall back to their parent item.
func CatalogValues(item domain.Item, cond domain.AttributeCondition) []string {
	values := ownValues(item, cond)
	if len(values) == 0 && item.Parent != nil {
		values = ownValues(*item.Parent, cond)
	}
	return values
}

func ownValues(item domain.Item, cond domain.AttributeCondition) []string {
	switch cond.Type {
	case domain.ConditionShippingClass:
		if class := strings.TrimSpace(item.ShippingClass); class != "" {
			return []string{class}
		}
		return nil
	case domain.ConditionTaxonomy:
		if isCategoryKey(cond.Key) {
			return item.Categories
		}
		return lookupValues(item.Taxonomies, cond.Key)
	default:
		return lookupValues(item.Attributes, cond.Key)
	}
}

func isCategoryKey(key string) bool {
	switch strings.ToLower(strings.TrimSpace(key)) {
	case "", CategoryTaxonomy, "categories", "product_cat":
		return true
	}
	return false
}

func lookupValues(values map[string][]string, key string) []string {
	if len(values) == 0 {
		return nil
	}
	key = strings.TrimSpace(key)
	if found, ok := values[key]; ok {
		return found
	}
	keys := make([]string, 0, len(values))
	for candidate := range values {
		keys = append(keys, candidate)
	}
	sort.Strings(keys)
	for _, candidate := range keys {
		if strings.EqualFold(candidate, key) {
			return values[candidate]
		}
	}
	return nil
}
