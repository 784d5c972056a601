package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// StockStatus mirrors the catalog's stock state for an item.
type StockStatus string

const (
	StockInStock    StockStatus = "in_stock"
	StockBackorder  StockStatus = "backorder"
	StockOutOfStock StockStatus = "out_of_stock"
)

// ParseStockStatus maps stored identifiers onto a StockStatus, defaulting to in stock.
func ParseStockStatus(raw string) StockStatus {
	switch normalizeToken(raw) {
	case "backorder", "onbackorder", "on_backorder":
		return StockBackorder
	case "out_of_stock", "outofstock":
		return StockOutOfStock
	default:
		return StockInStock
	}
}

// Availability carries the stock inputs used to decide when an item can leave the warehouse.
// Override dates are listed in descending priority.
type Availability struct {
	// StockQuantity is nil when the catalog does not track stock for the item.
	StockQuantity           *int
	Status                  StockStatus
	BackordersAllowed       bool
	ManualAvailableFrom     *time.Time
	CalculatedAvailableFrom *time.Time
	LeadTimeDays            int
}

// Tracked reports whether stock levels are managed for the item.
func (a Availability) Tracked() bool {
	return a.StockQuantity != nil
}

// Item is a purchasable catalog entry as resolved by the catalog collaborator.
type Item struct {
	ID            string
	ParentID      string
	Name          string
	Weight        decimal.Decimal
	Price         decimal.Decimal
	Availability  Availability
	Attributes    map[string][]string
	Taxonomies    map[string][]string
	Categories    []string
	ShippingClass string
	// Parent is set for variants so that missing values can fall back to the parent item.
	Parent *Item
}

// BasketLine is one item and quantity in a basket.
type BasketLine struct {
	ID       string
	Item     Item
	Quantity int
}

// Key identifies the line, falling back to the item identifier.
func (l BasketLine) Key() string {
	if l.ID != "" {
		return l.ID
	}
	return l.Item.ID
}

// Basket is a set of lines priced and shipped together.
type Basket struct {
	Lines   []BasketLine
	Express bool
}
