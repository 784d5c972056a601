package services

import (
	"context"
	"sort"

	"github.com/shopspring/decimal"

	domain "github.com/hanko-field/delivery/internal/domain"
)

// ShipmentTotals are the aggregates numeric method filters are evaluated against.
type ShipmentTotals struct {
	Weight   decimal.Decimal
	Value    decimal.Decimal
	Quantity int
}

// ItemTotals computes weight and value for quantity units of item.
func ItemTotals(item domain.Item, quantity int) ShipmentTotals {
	qty := decimal.NewFromInt(int64(quantity))
	return ShipmentTotals{
		Weight:   item.Weight.Mul(qty),
		Value:    item.Price.Mul(qty),
		Quantity: quantity,
	}
}

// BasketTotals sums the totals of every line.
func BasketTotals(lines []domain.BasketLine) ShipmentTotals {
	totals := ShipmentTotals{Weight: decimal.Zero, Value: decimal.Zero}
	for _, line := range lines {
		lineTotals := ItemTotals(line.Item, line.Quantity)
		totals.Weight = totals.Weight.Add(lineTotals.Weight)
		totals.Value = totals.Value.Add(lineTotals.Value)
		totals.Quantity += line.Quantity
	}
	return totals
}

// ShippingCost is the cost of shipping totals with method, including the express supplement when
// express applies.
func ShippingCost(method domain.ShippingMethod, totals ShipmentTotals, express bool) decimal.Decimal {
	var cost decimal.Decimal
	switch method.CostBasis {
	case domain.CostPerWeight:
		cost = method.Cost.Mul(totals.Weight)
	case domain.CostPerQuantity:
		cost = method.Cost.Mul(decimal.NewFromInt(int64(totals.Quantity)))
	default:
		cost = method.Cost
	}
	if express && method.SupportsExpress() {
		cost = cost.Add(method.Express.Cost)
	}
	return cost.Round(2)
}

// MethodSelector filters configured shipping methods and ranks the survivors.
type MethodSelector struct {
	matcher *ConditionMatcher
	logger  EventLogger
}

// NewMethodSelector wires a selector around the shared condition matcher.
func NewMethodSelector(matcher *ConditionMatcher, logger EventLogger) *MethodSelector {
	if matcher == nil {
		matcher = NewConditionMatcher(nil)
	}
	return &MethodSelector{matcher: matcher, logger: loggerOrNoop(logger)}
}

// EligibleMethods returns every method applicable to quantity units of item, best first.
func (s *MethodSelector) EligibleMethods(ctx context.Context, item domain.Item, quantity int, methods []domain.ShippingMethod) []domain.ShippingMethod {
	quantity = normaliseQuantity(quantity)
	totals := ItemTotals(item, quantity)
	categories := s.matcher.Values(item, categoryCondition)

	eligible := make([]domain.ShippingMethod, 0, len(methods))
	for _, method := range methods {
		if !passesNumericFilters(method, totals) {
			continue
		}
		if !s.matcher.ItemSatisfiesAll(item, method.Conditions) {
			continue
		}
		if !categoriesAllowed(method.RequiredCategories, categories) {
			continue
		}
		eligible = append(eligible, method)
	}
	rankMethods(eligible)
	return eligible
}

// SelectMethod returns the preferred method for the item. ok is false when no method applies.
func (s *MethodSelector) SelectMethod(ctx context.Context, item domain.Item, quantity int, methods []domain.ShippingMethod) (domain.ShippingMethod, bool) {
	eligible := s.EligibleMethods(ctx, item, quantity, methods)
	if len(eligible) == 0 {
		s.logger(ctx, "method.none_applicable", map[string]any{"itemId": item.ID, "quantity": quantity, "candidates": len(methods)})
		return domain.ShippingMethod{}, false
	}
	s.logger(ctx, "method.selected", map[string]any{"itemId": item.ID, "quantity": quantity, "methodId": eligible[0].ID})
	return eligible[0], true
}

// EligibleBasketMethods returns every method applicable to the basket, best first. Ranges use
// basket totals and each condition passes when any single line passes it.
func (s *MethodSelector) EligibleBasketMethods(ctx context.Context, lines []domain.BasketLine, methods []domain.ShippingMethod) []domain.ShippingMethod {
	totals := BasketTotals(lines)
	var categories []string
	for _, line := range lines {
		categories = append(categories, s.matcher.Values(line.Item, categoryCondition)...)
	}

	eligible := make([]domain.ShippingMethod, 0, len(methods))
	for _, method := range methods {
		if !passesNumericFilters(method, totals) {
			continue
		}
		if !s.matcher.BasketSatisfiesAll(lines, method.Conditions) {
			continue
		}
		if !categoriesAllowed(method.RequiredCategories, categories) {
			continue
		}
		eligible = append(eligible, method)
	}
	rankMethods(eligible)
	return eligible
}

// SelectBasketMethod returns the preferred method for the basket.
func (s *MethodSelector) SelectBasketMethod(ctx context.Context, lines []domain.BasketLine, methods []domain.ShippingMethod) (domain.ShippingMethod, bool) {
	eligible := s.EligibleBasketMethods(ctx, lines, methods)
	if len(eligible) == 0 {
		s.logger(ctx, "method.none_applicable", map[string]any{"lines": len(lines), "candidates": len(methods)})
		return domain.ShippingMethod{}, false
	}
	s.logger(ctx, "method.selected", map[string]any{"lines": len(lines), "methodId": eligible[0].ID})
	return eligible[0], true
}

func passesNumericFilters(method domain.ShippingMethod, totals ShipmentTotals) bool {
	if !method.Enabled {
		return false
	}
	return method.Weight.Contains(totals.Weight) &&
		method.Quantity.Contains(totals.Quantity) &&
		method.BasketValue.Contains(totals.Value)
}

func categoriesAllowed(required, categories []string) bool {
	if !hasNonBlank(required) {
		return true
	}
	return MatchValues(categories, required, domain.LogicAtLeastOne)
}

// rankMethods orders by priority, then cost, then minimum transit. The sort is stable so equal
// methods keep their configured order.
func rankMethods(methods []domain.ShippingMethod) {
	sort.SliceStable(methods, func(i, j int) bool {
		a, b := methods[i], methods[j]
		if a.Priority != b.Priority {
			return a.Priority < b.Priority
		}
		if !a.Cost.Equal(b.Cost) {
			return a.Cost.LessThan(b.Cost)
		}
		return a.TransitMin < b.TransitMin
	})
}
