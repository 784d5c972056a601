package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// StockStatusResult is the customer facing stock information for a requested quantity.
type StockStatusResult struct {
	Tracked           bool
	InStock           bool
	InsufficientStock bool
	AvailableQuantity int
	DisplayQuantity   int
	Capped            bool
	BackorderQuantity int
	RestockDate       *time.Time
	Message           string
}

// DeliveryWindow is the estimate for an item or a basket. Transit dependent fields are nil when
// no shipping method applies.
type DeliveryWindow struct {
	ItemID        string
	Quantity      int
	Express       bool
	AvailableFrom time.Time
	StartDate     time.Time
	Earliest      *time.Time
	Latest        *time.Time
	ShipBy        *time.Time
	Method        *ShippingMethod
	ShippingCost  *decimal.Decimal
	Stock         StockStatusResult
	Lines         []DeliveryWindow
}

// HasTransit reports whether the window carries delivery dates.
func (w DeliveryWindow) HasTransit() bool {
	return w.Method != nil && w.Earliest != nil && w.Latest != nil
}
