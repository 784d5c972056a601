package services

import (
	"context"
	"sort"

	"github.com/shopspring/decimal"
	"golang.org/x/text/cases"

	domain "github.com/hanko-field/delivery/internal/domain"
)

var hundred = decimal.NewFromInt(100)

// SurchargeEngineDeps configures a SurchargeEngine.
type SurchargeEngineDeps struct {
	Matcher               *ConditionMatcher
	Stacking              domain.StackingStrategy
	FreeShippingThreshold *decimal.Decimal
	Logger                EventLogger
}

// SurchargeEngine decides which configured surcharges apply to a basket and what they cost.
type SurchargeEngine struct {
	matcher   *ConditionMatcher
	stacking  domain.StackingStrategy
	threshold *decimal.Decimal
	logger    EventLogger
}

// NewSurchargeEngine builds an engine. An empty stacking strategy stacks every match.
func NewSurchargeEngine(deps SurchargeEngineDeps) *SurchargeEngine {
	matcher := deps.Matcher
	if matcher == nil {
		matcher = NewConditionMatcher(nil)
	}
	stacking := deps.Stacking
	if stacking == "" {
		stacking = domain.StackAll
	}
	return &SurchargeEngine{
		matcher:   matcher,
		stacking:  stacking,
		threshold: deps.FreeShippingThreshold,
		logger:    loggerOrNoop(deps.Logger),
	}
}

// Calculate returns the surcharges applied to basket after stacking. An empty basket or a basket
// matching nothing yields an empty slice.
func (e *SurchargeEngine) Calculate(ctx context.Context, basket domain.Basket, surcharges []domain.Surcharge) []domain.AppliedSurcharge {
	lines := activeLines(basket.Lines)
	if len(lines) == 0 || len(surcharges) == 0 {
		return []domain.AppliedSurcharge{}
	}

	totals := BasketTotals(lines)
	freeShipping := e.threshold != nil && totals.Value.GreaterThanOrEqual(*e.threshold)

	candidates := make([]domain.Surcharge, 0, len(surcharges))
	for _, surcharge := range surcharges {
		if !surcharge.Enabled {
			continue
		}
		if !surcharge.Weight.Contains(totals.Weight) || !surcharge.BasketValue.Contains(totals.Value) {
			continue
		}
		if basket.Express && !surcharge.AppliesToExpress {
			continue
		}
		if freeShipping && !surcharge.ExemptFromFreeShipping {
			continue
		}
		if !e.matcher.BasketSatisfiesAll(lines, surcharge.Conditions) {
			continue
		}
		candidates = append(candidates, surcharge)
	}
	sort.SliceStable(candidates, func(i, j int) bool {
		return candidates[i].Priority < candidates[j].Priority
	})

	applied := make([]domain.AppliedSurcharge, 0, len(candidates))
	for _, surcharge := range candidates {
		units := e.chargeUnits(surcharge.ChargeBasis, lines)
		cost := unitCost(surcharge, totals.Value).Mul(decimal.NewFromInt(int64(units))).Round(2)
		if !cost.IsPositive() {
			continue
		}
		applied = append(applied, domain.AppliedSurcharge{
			SurchargeID: surcharge.ID,
			Name:        surcharge.Name,
			Priority:    surcharge.Priority,
			ChargeBasis: surcharge.ChargeBasis,
			Units:       units,
			Cost:        cost,
		})
	}

	result := stack(applied, e.stacking)
	for _, charge := range result {
		e.logger(ctx, "surcharge.applied", map[string]any{
			"surchargeId": charge.SurchargeID,
			"cost":        charge.Cost.String(),
			"units":       charge.Units,
			"stacking":    string(e.stacking),
		})
	}
	return result
}

// TotalSurcharges sums the cost of applied surcharges.
func TotalSurcharges(applied []domain.AppliedSurcharge) decimal.Decimal {
	total := decimal.Zero
	for _, charge := range applied {
		total = total.Add(charge.Cost)
	}
	return total
}

func unitCost(surcharge domain.Surcharge, basketValue decimal.Decimal) decimal.Decimal {
	if surcharge.AmountType == domain.AmountPercentage {
		return surcharge.Amount.Div(hundred).Mul(basketValue)
	}
	return surcharge.Amount
}

func (e *SurchargeEngine) chargeUnits(basis domain.ChargeBasis, lines []domain.BasketLine) int {
	switch basis {
	case domain.ChargePerShippingClass:
		return e.distinctValues(lines, shippingClassCondition)
	case domain.ChargePerCategory:
		return e.distinctValues(lines, categoryCondition)
	case domain.ChargePerLineItem:
		keys := make(map[string]struct{}, len(lines))
		for _, line := range lines {
			keys[line.Key()] = struct{}{}
		}
		return len(keys)
	case domain.ChargePerQuantity:
		total := 0
		for _, line := range lines {
			total += line.Quantity
		}
		return total
	default:
		return 1
	}
}

// distinctValues counts the values present across lines, folded the same way the condition
// matcher compares them.
func (e *SurchargeEngine) distinctValues(lines []domain.BasketLine, cond domain.AttributeCondition) int {
	var values []string
	for _, line := range lines {
		values = append(values, e.matcher.Values(line.Item, cond)...)
	}
	return len(foldSet(cases.Fold(), values))
}

func stack(applied []domain.AppliedSurcharge, strategy domain.StackingStrategy) []domain.AppliedSurcharge {
	if len(applied) == 0 {
		return []domain.AppliedSurcharge{}
	}
	switch strategy {
	case domain.StackFirstMatch:
		return applied[:1]
	case domain.StackSmallest:
		best := applied[0]
		for _, charge := range applied[1:] {
			if charge.Cost.LessThan(best.Cost) {
				best = charge
			}
		}
		return []domain.AppliedSurcharge{best}
	case domain.StackLargest:
		best := applied[0]
		for _, charge := range applied[1:] {
			if charge.Cost.GreaterThan(best.Cost) {
				best = charge
			}
		}
		return []domain.AppliedSurcharge{best}
	default:
		return applied
	}
}

// activeLines drops lines with no item or a non-positive quantity.
func activeLines(lines []domain.BasketLine) []domain.BasketLine {
	out := make([]domain.BasketLine, 0, len(lines))
	for _, line := range lines {
		if line.Item.ID == "" || line.Quantity <= 0 {
			continue
		}
		out = append(out, line)
	}
	return out
}
