package services

import (
	"context"
	"time"

	"github.com/shopspring/decimal"

	domain "github.com/hanko-field/delivery/internal/domain"
)

type recordedEvent struct {
	event  string
	fields map[string]any
}

type eventRecorder struct {
	events []recordedEvent
}

func (r *eventRecorder) log(_ context.Context, event string, fields map[string]any) {
	r.events = append(r.events, recordedEvent{event: event, fields: fields})
}

func (r *eventRecorder) count(event string) int {
	n := 0
	for _, e := range r.events {
		if e.event == event {
			n++
		}
	}
	return n
}

func date(year int, month time.Month, day int) time.Time {
	return time.Date(year, month, day, 0, 0, 0, 0, time.UTC)
}

func intPtr(v int) *int {
	return &v
}

func decPtr(v string) *decimal.Decimal {
	d := decimal.RequireFromString(v)
	return &d
}

func dec(v string) decimal.Decimal {
	return decimal.RequireFromString(v)
}

func stockedItem(id string, stock int) domain.Item {
	return domain.Item{
		ID:     id,
		Weight: dec("1"),
		Price:  dec("10"),
		Availability: domain.Availability{
			StockQuantity: intPtr(stock),
			Status:        domain.StockInStock,
		},
	}
}

func flatMethod(id string, priority int, cost string, transitMin, transitMax int) domain.ShippingMethod {
	return domain.ShippingMethod{
		ID:         id,
		Name:       id,
		Enabled:    true,
		Priority:   priority,
		Cost:       dec(cost),
		CostBasis:  domain.CostFlat,
		TransitMin: transitMin,
		TransitMax: transitMax,
	}
}
