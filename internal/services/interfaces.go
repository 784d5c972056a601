package services

import (
	"context"

	"github.com/shopspring/decimal"

	domain "github.com/hanko-field/delivery/internal/domain"
)

// Type aliases expose domain models to the services package without reversing dependency direction.
type (
	DeliveryWindow    = domain.DeliveryWindow
	ShippingMethod    = domain.ShippingMethod
	AppliedSurcharge  = domain.AppliedSurcharge
	StockStatusResult = domain.StockStatusResult
	HealthReport      = domain.HealthReport
)

// DeliveryService resolves catalog items and configuration, then runs a fresh Estimator per call.
type DeliveryService interface {
	EstimateWindow(ctx context.Context, cmd EstimateWindowCommand) (WindowEstimate, error)
	EstimateBasketWindow(ctx context.Context, cmd EstimateBasketCommand) (WindowEstimate, error)
	SelectShipping(ctx context.Context, cmd SelectShippingCommand) (ShippingSelection, error)
	CalculateSurcharges(ctx context.Context, cmd CalculateSurchargesCommand) (SurchargeQuote, error)
	StockStatus(ctx context.Context, cmd StockStatusCommand) (StockStatusEstimate, error)
}

// HealthService produces readiness reports enriched with build metadata.
type HealthService interface {
	HealthReport(ctx context.Context) (HealthReport, error)
}

// BasketLineCommand references a catalog item and the requested quantity.
type BasketLineCommand struct {
	LineID   string
	ItemID   string
	Quantity int
}

type EstimateWindowCommand struct {
	ItemID   string
	Quantity int
	MethodID string
	Express  bool
}

type EstimateBasketCommand struct {
	Lines    []BasketLineCommand
	MethodID string
	Express  bool
}

// SelectShippingCommand targets a single item when ItemID is set, otherwise the basket lines.
type SelectShippingCommand struct {
	ItemID   string
	Quantity int
	Lines    []BasketLineCommand
}

type CalculateSurchargesCommand struct {
	Lines   []BasketLineCommand
	Express bool
}

type StockStatusCommand struct {
	ItemID   string
	Quantity int
}

// WindowEstimate carries the computed window. Found is false when no line could be estimated;
// MissingItems lists basket items the catalog did not know.
type WindowEstimate struct {
	EstimateID   string
	Found        bool
	Window       DeliveryWindow
	MissingItems []string
}

// MethodQuote is an eligible method with its cost for the request.
type MethodQuote struct {
	Method           ShippingMethod
	Cost             decimal.Decimal
	ExpressAvailable bool
	ExpressCost      *decimal.Decimal
}

type ShippingSelection struct {
	EstimateID   string
	Selected     *MethodQuote
	Eligible     []MethodQuote
	MissingItems []string
}

type SurchargeQuote struct {
	EstimateID   string
	Applied      []AppliedSurcharge
	Total        decimal.Decimal
	MissingItems []string
}

type StockStatusEstimate struct {
	EstimateID string
	ItemID     string
	Quantity   int
	Status     StockStatusResult
}
