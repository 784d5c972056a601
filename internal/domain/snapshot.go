package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// DefaultCutoffTime is used when neither the store nor the environment configures a cutoff.
const DefaultCutoffTime = "14:00"

// Settings are the scalar options read alongside the calendar, methods and surcharges.
type Settings struct {
	CutoffTime            string
	ProcessingDays        float64
	DefaultLeadTimeDays   int
	MaxVisibleStock       int
	SurchargeStacking     StackingStrategy
	FreeShippingThreshold *decimal.Decimal
	Location              *time.Location
}

// Snapshot is the read-only configuration used for a single calculation request.
type Snapshot struct {
	Calendar   CalendarSettings
	Methods    []ShippingMethod
	Surcharges []Surcharge
	Settings   Settings
}

// MethodByID returns the configured method with the given identifier.
func (s Snapshot) MethodByID(id string) (ShippingMethod, bool) {
	for _, method := range s.Methods {
		if method.ID == id {
			return method, true
		}
	}
	return ShippingMethod{}, false
}

// WithDefaults fills unset scalar settings from fallback.
func (s Settings) WithDefaults(fallback Settings) Settings {
	out := s
	if out.CutoffTime == "" {
		out.CutoffTime = fallback.CutoffTime
	}
	if out.CutoffTime == "" {
		out.CutoffTime = DefaultCutoffTime
	}
	if out.ProcessingDays <= 0 {
		out.ProcessingDays = fallback.ProcessingDays
	}
	if out.DefaultLeadTimeDays <= 0 {
		out.DefaultLeadTimeDays = fallback.DefaultLeadTimeDays
	}
	if out.MaxVisibleStock <= 0 {
		out.MaxVisibleStock = fallback.MaxVisibleStock
	}
	if out.SurchargeStacking == "" {
		out.SurchargeStacking = fallback.SurchargeStacking
	}
	if out.SurchargeStacking == "" {
		out.SurchargeStacking = StackAll
	}
	if out.FreeShippingThreshold == nil {
		out.FreeShippingThreshold = fallback.FreeShippingThreshold
	}
	if out.Location == nil {
		out.Location = fallback.Location
	}
	if out.Location == nil {
		out.Location = time.UTC
	}
	return out
}
