package services

import (
	"context"
	"fmt"
	"time"

	domain "github.com/hanko-field/delivery/internal/domain"
)

// AvailabilityResolverDeps bundles the collaborators required by the availability resolver.
type AvailabilityResolverDeps struct {
	Calendar            *BusinessCalendar
	DefaultLeadTimeDays int
	MaxVisibleStock     int
	Clock               func() time.Time
	Logger              EventLogger
}

// AvailabilityResolver decides when a requested quantity can leave the warehouse.
type AvailabilityResolver struct {
	calendar        *BusinessCalendar
	defaultLeadTime int
	maxVisible      int
	clock           func() time.Time
	logger          EventLogger
}

// NewAvailabilityResolver wires the resolver. A missing calendar defaults to Monday to Friday.
func NewAvailabilityResolver(deps AvailabilityResolverDeps) *AvailabilityResolver {
	cal := deps.Calendar
	if cal == nil {
		cal = NewBusinessCalendar(domain.DefaultCalendarSettings())
	}
	clock := deps.Clock
	if clock == nil {
		clock = time.Now
	}
	return &AvailabilityResolver{
		calendar:        cal,
		defaultLeadTime: deps.DefaultLeadTimeDays,
		maxVisible:      deps.MaxVisibleStock,
		clock:           clock,
		logger:          loggerOrNoop(deps.Logger),
	}
}

// ResolveAvailableFrom returns the earliest moment the quantity can ship. Items without any
// availability information are treated as immediately available.
func (r *AvailabilityResolver) ResolveAvailableFrom(ctx context.Context, item domain.Item, quantity int, now time.Time) time.Time {
	quantity = normaliseQuantity(quantity)
	if immediatelyAvailable(item.Availability, quantity) {
		return now
	}
	if restock, source, ok := r.restockDate(ctx, item.Availability, now); ok {
		r.logger(ctx, "availability.resolved", map[string]any{
			"itemId":   item.ID,
			"quantity": quantity,
			"source":   source,
			"date":     restock.Format(domain.DateLayout),
		})
		return restock
	}
	return now
}

// ResolveStockStatus describes stock for the requested quantity, including the restock date for
// a backordered remainder.
func (r *AvailabilityResolver) ResolveStockStatus(ctx context.Context, item domain.Item, quantity int) domain.StockStatusResult {
	quantity = normaliseQuantity(quantity)
	a := item.Availability
	now := r.clock()

	if !a.Tracked() {
		return r.untrackedStatus(ctx, a, now)
	}

	stock := *a.StockQuantity
	if stock < 0 {
		stock = 0
	}
	immediate := stock
	if a.Status != domain.StockInStock {
		immediate = 0
	}

	result := domain.StockStatusResult{
		Tracked:           true,
		AvailableQuantity: immediate,
	}

	if quantity <= immediate {
		result.InStock = true
		result.DisplayQuantity, result.Capped = r.visibleQuantity(immediate)
		if result.Capped {
			result.Message = fmt.Sprintf("%d+ in stock", result.DisplayQuantity)
		} else {
			result.Message = fmt.Sprintf("%d in stock", result.DisplayQuantity)
		}
		return result
	}

	result.DisplayQuantity, result.Capped = r.visibleQuantity(immediate)

	if !a.BackordersAllowed {
		result.InsufficientStock = true
		if immediate > 0 {
			result.Message = fmt.Sprintf("Only %d in stock", result.DisplayQuantity)
		} else {
			result.Message = "Out of stock"
		}
		return result
	}

	result.BackorderQuantity = quantity - immediate
	restock, _, ok := r.restockDate(ctx, a, now)
	if ok {
		result.RestockDate = &restock
	}

	switch {
	case immediate > 0 && ok:
		result.Message = fmt.Sprintf("%d available now, remaining %d available from %s", immediate, result.BackorderQuantity, restock.Format(domain.DateLayout))
	case immediate > 0:
		result.Message = fmt.Sprintf("%d available now, remaining %d on backorder", immediate, result.BackorderQuantity)
	case ok:
		result.Message = fmt.Sprintf("Available from %s", restock.Format(domain.DateLayout))
	default:
		result.Message = "Available on backorder"
	}
	return result
}

func (r *AvailabilityResolver) untrackedStatus(ctx context.Context, a domain.Availability, now time.Time) domain.StockStatusResult {
	if a.Status == domain.StockInStock {
		return domain.StockStatusResult{InStock: true, Message: "In stock"}
	}
	if !a.BackordersAllowed && a.Status == domain.StockOutOfStock {
		return domain.StockStatusResult{InsufficientStock: true, Message: "Out of stock"}
	}
	result := domain.StockStatusResult{Message: "Available on backorder"}
	if restock, _, ok := r.restockDate(ctx, a, now); ok {
		result.RestockDate = &restock
		result.Message = fmt.Sprintf("Available from %s", restock.Format(domain.DateLayout))
	}
	return result
}

// restockDate walks the override chain: manual date, calculated date, item lead time, default
// lead time. Override dates in the past are ignored.
func (r *AvailabilityResolver) restockDate(ctx context.Context, a domain.Availability, now time.Time) (time.Time, string, bool) {
	today := r.calendar.Date(now)
	if a.ManualAvailableFrom != nil {
		if manual := r.calendar.CalendarDate(*a.ManualAvailableFrom); !manual.Before(today) {
			return manual, "manual", true
		}
	}
	if a.CalculatedAvailableFrom != nil {
		if calculated := r.calendar.CalendarDate(*a.CalculatedAvailableFrom); !calculated.Before(today) {
			return calculated, "calculated", true
		}
	}
	if a.LeadTimeDays > 0 {
		return r.calendar.AddBusinessDays(ctx, now, a.LeadTimeDays), "lead_time", true
	}
	if r.defaultLeadTime > 0 {
		return r.calendar.AddBusinessDays(ctx, now, r.defaultLeadTime), "default_lead_time", true
	}
	return time.Time{}, "", false
}

func (r *AvailabilityResolver) visibleQuantity(quantity int) (int, bool) {
	if r.maxVisible > 0 && quantity > r.maxVisible {
		return r.maxVisible, true
	}
	return quantity, false
}

func immediatelyAvailable(a domain.Availability, quantity int) bool {
	return a.Tracked() && a.Status == domain.StockInStock && quantity <= *a.StockQuantity
}

func normaliseQuantity(quantity int) int {
	if quantity <= 0 {
		return 1
	}
	return quantity
}
