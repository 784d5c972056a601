package services

import (
	"context"
	"errors"
	"testing"
	"time"

	domain "github.com/hanko-field/delivery/internal/domain"
	"github.com/hanko-field/delivery/internal/repositories"
)

type stubSettingsRepository struct {
	snapshot domain.Snapshot
	err      error
}

func (s *stubSettingsRepository) LoadSnapshot(context.Context) (domain.Snapshot, error) {
	return s.snapshot, s.err
}

type stubCatalogRepository struct {
	items map[string]domain.Item
	err   error
	calls map[string]int
}

func (s *stubCatalogRepository) GetItem(_ context.Context, id string) (domain.Item, error) {
	if s.calls == nil {
		s.calls = map[string]int{}
	}
	s.calls[id]++
	if s.err != nil {
		return domain.Item{}, s.err
	}
	item, ok := s.items[id]
	if !ok {
		return domain.Item{}, repositories.NewCatalogError("get", repositories.CatalogErrorItemNotFound, "missing", nil)
	}
	return item, nil
}

func newTestDeliveryService(t *testing.T, snapshot domain.Snapshot, catalog *stubCatalogRepository) DeliveryService {
	t.Helper()
	if snapshot.Calendar.Weekdays == nil {
		snapshot.Calendar = domain.DefaultCalendarSettings()
	}
	svc, err := NewDeliveryService(DeliveryServiceDeps{
		Settings:  &stubSettingsRepository{snapshot: snapshot},
		Catalog:   catalog,
		Defaults:  domain.Settings{CutoffTime: "14:00", ProcessingDays: 1},
		Clock:     func() time.Time { return wednesdayAt(10, 0) },
		RequestID: func(context.Context) string { return "est-1" },
	})
	if err != nil {
		t.Fatalf("NewDeliveryService: %v", err)
	}
	return svc
}

func testCatalog() *stubCatalogRepository {
	return &stubCatalogRepository{items: map[string]domain.Item{
		"sku-1": stockedItem("sku-1", 5),
		"sku-2": stockedItem("sku-2", 1),
	}}
}

func TestDeliveryServiceEstimateWindow(t *testing.T) {
	snapshot := domain.Snapshot{Methods: []domain.ShippingMethod{
		flatMethod("slow", 2, "3", 3, 5),
		flatMethod("fast", 1, "8", 1, 2),
	}}
	svc := newTestDeliveryService(t, snapshot, testCatalog())

	result, err := svc.EstimateWindow(context.Background(), EstimateWindowCommand{ItemID: "sku-1", Quantity: 2})
	if err != nil {
		t.Fatalf("EstimateWindow: %v", err)
	}
	if !result.Found || result.EstimateID != "est-1" {
		t.Fatalf("unexpected result: %+v", result)
	}
	if result.Window.Method == nil || result.Window.Method.ID != "fast" {
		t.Fatalf("expected fast method, got %+v", result.Window.Method)
	}
	if result.Window.ShippingCost == nil || result.Window.ShippingCost.String() != "8" {
		t.Fatalf("unexpected shipping cost: %v", result.Window.ShippingCost)
	}

	explicit, err := svc.EstimateWindow(context.Background(), EstimateWindowCommand{ItemID: "sku-1", MethodID: "slow"})
	if err != nil {
		t.Fatalf("EstimateWindow explicit: %v", err)
	}
	if explicit.Window.Method == nil || explicit.Window.Method.ID != "slow" {
		t.Fatalf("expected slow method, got %+v", explicit.Window.Method)
	}
	if !explicit.Window.Latest.After(*result.Window.Latest) {
		t.Fatalf("expected slow window to end later: %s vs %s", explicit.Window.Latest, result.Window.Latest)
	}
}

func TestDeliveryServiceEstimateWindowErrors(t *testing.T) {
	svc := newTestDeliveryService(t, domain.Snapshot{}, testCatalog())
	ctx := context.Background()

	if _, err := svc.EstimateWindow(ctx, EstimateWindowCommand{}); !errors.Is(err, ErrDeliveryInvalidInput) {
		t.Fatalf("expected invalid input, got %v", err)
	}
	if _, err := svc.EstimateWindow(ctx, EstimateWindowCommand{ItemID: "sku-1", Quantity: -1}); !errors.Is(err, ErrDeliveryInvalidInput) {
		t.Fatalf("expected invalid input for negative quantity, got %v", err)
	}
	if _, err := svc.EstimateWindow(ctx, EstimateWindowCommand{ItemID: "nope"}); !errors.Is(err, ErrDeliveryItemNotFound) {
		t.Fatalf("expected item not found, got %v", err)
	}
	if _, err := svc.EstimateWindow(ctx, EstimateWindowCommand{ItemID: "sku-1", MethodID: "ghost"}); !errors.Is(err, ErrDeliveryMethodNotFound) {
		t.Fatalf("expected method not found, got %v", err)
	}
}

func TestDeliveryServiceWithoutMethodsReturnsAvailabilityOnly(t *testing.T) {
	svc := newTestDeliveryService(t, domain.Snapshot{}, testCatalog())
	result, err := svc.EstimateWindow(context.Background(), EstimateWindowCommand{ItemID: "sku-1"})
	if err != nil {
		t.Fatalf("EstimateWindow: %v", err)
	}
	if !result.Found || result.Window.HasTransit() || result.Window.ShipBy != nil {
		t.Fatalf("expected availability only window, got %+v", result.Window)
	}
}

func TestDeliveryServiceUnavailableSource(t *testing.T) {
	svc, err := NewDeliveryService(DeliveryServiceDeps{
		Settings: &stubSettingsRepository{err: repositories.NewCatalogError("load", repositories.CatalogErrorSourceUnavailable, "down", errors.New("io"))},
		Catalog:  testCatalog(),
	})
	if err != nil {
		t.Fatalf("NewDeliveryService: %v", err)
	}
	if _, err := svc.EstimateWindow(context.Background(), EstimateWindowCommand{ItemID: "sku-1"}); !errors.Is(err, ErrDeliveryUnavailable) {
		t.Fatalf("expected unavailable, got %v", err)
	}
}

func TestDeliveryServiceBasketDropsMissingItems(t *testing.T) {
	catalog := testCatalog()
	svc := newTestDeliveryService(t, domain.Snapshot{Methods: []domain.ShippingMethod{flatMethod("std", 1, "5", 2, 3)}}, catalog)

	result, err := svc.EstimateBasketWindow(context.Background(), EstimateBasketCommand{Lines: []BasketLineCommand{
		{ItemID: "sku-1", Quantity: 1},
		{ItemID: "ghost", Quantity: 1},
		{ItemID: "ghost", Quantity: 2},
		{ItemID: "sku-2", Quantity: 1},
	}})
	if err != nil {
		t.Fatalf("EstimateBasketWindow: %v", err)
	}
	if !result.Found || len(result.Window.Lines) != 2 {
		t.Fatalf("expected two estimated lines, got %+v", result)
	}
	if len(result.MissingItems) != 1 || result.MissingItems[0] != "ghost" {
		t.Fatalf("unexpected missing items: %v", result.MissingItems)
	}
	if catalog.calls["ghost"] != 1 {
		t.Fatalf("expected missing item to be looked up once, got %d", catalog.calls["ghost"])
	}

	empty, err := svc.EstimateBasketWindow(context.Background(), EstimateBasketCommand{Lines: []BasketLineCommand{{ItemID: "ghost", Quantity: 1}}})
	if err != nil {
		t.Fatalf("EstimateBasketWindow: %v", err)
	}
	if empty.Found {
		t.Fatalf("expected no result for basket of unknown items, got %+v", empty)
	}
}

func TestDeliveryServiceBasketRequiresLines(t *testing.T) {
	svc := newTestDeliveryService(t, domain.Snapshot{}, testCatalog())
	if _, err := svc.EstimateBasketWindow(context.Background(), EstimateBasketCommand{}); !errors.Is(err, ErrDeliveryInvalidInput) {
		t.Fatalf("expected invalid input, got %v", err)
	}
}

func TestDeliveryServiceSelectShipping(t *testing.T) {
	express := flatMethod("express", 1, "10", 1, 2)
	express.Express = domain.ExpressConfig{Enabled: true, Cost: dec("5")}
	svc := newTestDeliveryService(t, domain.Snapshot{Methods: []domain.ShippingMethod{
		flatMethod("std", 2, "4", 2, 3),
		express,
	}}, testCatalog())

	selection, err := svc.SelectShipping(context.Background(), SelectShippingCommand{ItemID: "sku-1", Quantity: 1})
	if err != nil {
		t.Fatalf("SelectShipping: %v", err)
	}
	if selection.Selected == nil || selection.Selected.Method.ID != "express" {
		t.Fatalf("expected express selected, got %+v", selection.Selected)
	}
	if len(selection.Eligible) != 2 || selection.Eligible[1].Method.ID != "std" {
		t.Fatalf("unexpected eligible order: %+v", selection.Eligible)
	}
	if !selection.Selected.ExpressAvailable || selection.Selected.ExpressCost == nil || selection.Selected.ExpressCost.String() != "15" {
		t.Fatalf("unexpected express quote: %+v", selection.Selected)
	}
	if selection.Eligible[1].ExpressCost != nil {
		t.Fatalf("expected no express cost for std")
	}

	basket, err := svc.SelectShipping(context.Background(), SelectShippingCommand{Lines: []BasketLineCommand{{ItemID: "sku-1", Quantity: 1}, {ItemID: "sku-2", Quantity: 1}}})
	if err != nil {
		t.Fatalf("SelectShipping basket: %v", err)
	}
	if basket.Selected == nil || basket.Selected.Method.ID != "express" {
		t.Fatalf("expected express selected for basket, got %+v", basket.Selected)
	}
}

func TestDeliveryServiceCalculateSurcharges(t *testing.T) {
	snapshot := domain.Snapshot{Surcharges: []domain.Surcharge{{
		ID:               "handling",
		Enabled:          true,
		Amount:           dec("5"),
		AmountType:       domain.AmountFlat,
		ChargeBasis:      domain.ChargePerQuantity,
		AppliesToExpress: true,
	}}}
	svc := newTestDeliveryService(t, snapshot, testCatalog())

	quote, err := svc.CalculateSurcharges(context.Background(), CalculateSurchargesCommand{Lines: []BasketLineCommand{
		{ItemID: "sku-1", Quantity: 2},
		{ItemID: "ghost", Quantity: 4},
	}})
	if err != nil {
		t.Fatalf("CalculateSurcharges: %v", err)
	}
	if len(quote.Applied) != 1 || quote.Total.String() != "10" {
		t.Fatalf("unexpected quote: %+v", quote)
	}
	if len(quote.MissingItems) != 1 {
		t.Fatalf("expected one missing item, got %v", quote.MissingItems)
	}
}

func TestDeliveryServiceStockStatus(t *testing.T) {
	svc := newTestDeliveryService(t, domain.Snapshot{}, testCatalog())
	status, err := svc.StockStatus(context.Background(), StockStatusCommand{ItemID: "sku-2", Quantity: 3})
	if err != nil {
		t.Fatalf("StockStatus: %v", err)
	}
	if status.Quantity != 3 || !status.Status.InsufficientStock {
		t.Fatalf("expected insufficient stock, got %+v", status)
	}
	if _, err := svc.StockStatus(context.Background(), StockStatusCommand{ItemID: "ghost"}); !errors.Is(err, ErrDeliveryItemNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestNewDeliveryServiceRequiresRepositories(t *testing.T) {
	if _, err := NewDeliveryService(DeliveryServiceDeps{}); err == nil {
		t.Fatal("expected error without repositories")
	}
}
