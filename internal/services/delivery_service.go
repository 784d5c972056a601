package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.opentelemetry.io/otel/trace"

	domain "github.com/hanko-field/delivery/internal/domain"
	"github.com/hanko-field/delivery/internal/repositories"
)

var (
	// ErrDeliveryInvalidInput is returned when a command fails validation.
	ErrDeliveryInvalidInput = errors.New("delivery: invalid input")
	// ErrDeliveryItemNotFound is returned when the requested item is not in the catalog.
	ErrDeliveryItemNotFound = errors.New("delivery: item not found")
	// ErrDeliveryMethodNotFound is returned when a requested shipping method is not configured.
	ErrDeliveryMethodNotFound = errors.New("delivery: shipping method not found")
	// ErrDeliveryUnavailable is returned when configuration or catalog data cannot be loaded.
	ErrDeliveryUnavailable = errors.New("delivery: configuration source unavailable")
)

const maxBasketLines = 200

// DeliveryServiceDeps bundles collaborators required to construct the delivery service.
type DeliveryServiceDeps struct {
	Settings  repositories.SettingsRepository
	Catalog   repositories.CatalogRepository
	Defaults  domain.Settings
	Extractor ValueExtractor
	Clock     func() time.Time
	Logger    EventLogger
	Tracer    trace.Tracer
	Metrics   *EstimatorMetrics
	// RequestID supplies the estimate identifier; an empty result lets the estimator mint one.
	RequestID func(ctx context.Context) string
}

type deliveryService struct {
	settings  repositories.SettingsRepository
	catalog   repositories.CatalogRepository
	defaults  domain.Settings
	extractor ValueExtractor
	clock     func() time.Time
	logger    EventLogger
	tracer    trace.Tracer
	metrics   *EstimatorMetrics
	requestID func(ctx context.Context) string
}

var _ DeliveryService = (*deliveryService)(nil)

// NewDeliveryService assembles the delivery estimation service.
func NewDeliveryService(deps DeliveryServiceDeps) (DeliveryService, error) {
	if deps.Settings == nil {
		return nil, errors.New("delivery service: settings repository is required")
	}
	if deps.Catalog == nil {
		return nil, errors.New("delivery service: catalog repository is required")
	}
	extractor := deps.Extractor
	if extractor == nil {
		extractor = CatalogValues
	}
	clock := deps.Clock
	if clock == nil {
		clock = time.Now
	}
	return &deliveryService{
		settings:  deps.Settings,
		catalog:   deps.Catalog,
		defaults:  deps.Defaults,
		extractor: extractor,
		clock:     clock,
		logger:    loggerOrNoop(deps.Logger),
		tracer:    deps.Tracer,
		metrics:   deps.Metrics,
		requestID: deps.RequestID,
	}, nil
}

func (s *deliveryService) EstimateWindow(ctx context.Context, cmd EstimateWindowCommand) (WindowEstimate, error) {
	itemID := strings.TrimSpace(cmd.ItemID)
	if itemID == "" {
		return WindowEstimate{}, fmt.Errorf("%w: item id is required", ErrDeliveryInvalidInput)
	}
	if cmd.Quantity < 0 {
		return WindowEstimate{}, fmt.Errorf("%w: quantity must not be negative", ErrDeliveryInvalidInput)
	}

	snapshot, err := s.loadSnapshot(ctx)
	if err != nil {
		return WindowEstimate{}, err
	}
	method, err := methodByID(snapshot, cmd.MethodID)
	if err != nil {
		return WindowEstimate{}, err
	}
	item, err := s.getItem(ctx, itemID)
	if err != nil {
		return WindowEstimate{}, err
	}

	estimator := s.newEstimator(ctx, snapshot)
	window, ok := estimator.CalculateWindow(ctx, WindowRequest{
		Item:     item,
		Quantity: cmd.Quantity,
		Method:   method,
		Express:  cmd.Express,
	})
	return WindowEstimate{EstimateID: estimator.RequestID(), Found: ok, Window: window}, nil
}

func (s *deliveryService) EstimateBasketWindow(ctx context.Context, cmd EstimateBasketCommand) (WindowEstimate, error) {
	if err := validateLines(cmd.Lines); err != nil {
		return WindowEstimate{}, err
	}
	snapshot, err := s.loadSnapshot(ctx)
	if err != nil {
		return WindowEstimate{}, err
	}
	method, err := methodByID(snapshot, cmd.MethodID)
	if err != nil {
		return WindowEstimate{}, err
	}
	lines, missing, err := s.resolveLines(ctx, cmd.Lines)
	if err != nil {
		return WindowEstimate{}, err
	}

	estimator := s.newEstimator(ctx, snapshot)
	result := WindowEstimate{EstimateID: estimator.RequestID(), MissingItems: missing}
	if len(lines) == 0 {
		return result, nil
	}
	result.Window, result.Found = estimator.CalculateBasketWindow(ctx, BasketWindowRequest{
		Lines:   lines,
		Method:  method,
		Express: cmd.Express,
	})
	return result, nil
}

func (s *deliveryService) SelectShipping(ctx context.Context, cmd SelectShippingCommand) (ShippingSelection, error) {
	itemID := strings.TrimSpace(cmd.ItemID)
	if itemID == "" {
		if err := validateLines(cmd.Lines); err != nil {
			return ShippingSelection{}, err
		}
	} else if cmd.Quantity < 0 {
		return ShippingSelection{}, fmt.Errorf("%w: quantity must not be negative", ErrDeliveryInvalidInput)
	}

	snapshot, err := s.loadSnapshot(ctx)
	if err != nil {
		return ShippingSelection{}, err
	}

	var (
		lines   []domain.BasketLine
		missing []string
	)
	if itemID != "" {
		item, err := s.getItem(ctx, itemID)
		if err != nil {
			return ShippingSelection{}, err
		}
		lines = []domain.BasketLine{{Item: item, Quantity: normaliseQuantity(cmd.Quantity)}}
	} else {
		lines, missing, err = s.resolveLines(ctx, cmd.Lines)
		if err != nil {
			return ShippingSelection{}, err
		}
	}

	estimator := s.newEstimator(ctx, snapshot)
	selection := ShippingSelection{
		EstimateID:   estimator.RequestID(),
		Eligible:     []MethodQuote{},
		MissingItems: missing,
	}
	if len(lines) == 0 {
		return selection, nil
	}

	var eligible []domain.ShippingMethod
	if itemID != "" {
		eligible = estimator.EligibleMethods(ctx, lines[0].Item, lines[0].Quantity)
	} else {
		eligible = estimator.EligibleBasketMethods(ctx, lines)
	}

	totals := BasketTotals(lines)
	for _, method := range eligible {
		quote := MethodQuote{
			Method:           method,
			Cost:             ShippingCost(method, totals, false),
			ExpressAvailable: method.SupportsExpress(),
		}
		if quote.ExpressAvailable {
			expressCost := ShippingCost(method, totals, true)
			quote.ExpressCost = &expressCost
		}
		selection.Eligible = append(selection.Eligible, quote)
	}
	if len(selection.Eligible) > 0 {
		selected := selection.Eligible[0]
		selection.Selected = &selected
	}
	return selection, nil
}

func (s *deliveryService) CalculateSurcharges(ctx context.Context, cmd CalculateSurchargesCommand) (SurchargeQuote, error) {
	if err := validateLines(cmd.Lines); err != nil {
		return SurchargeQuote{}, err
	}
	snapshot, err := s.loadSnapshot(ctx)
	if err != nil {
		return SurchargeQuote{}, err
	}
	lines, missing, err := s.resolveLines(ctx, cmd.Lines)
	if err != nil {
		return SurchargeQuote{}, err
	}

	estimator := s.newEstimator(ctx, snapshot)
	applied := estimator.CalculateSurcharges(ctx, domain.Basket{Lines: lines, Express: cmd.Express})
	if applied == nil {
		applied = []domain.AppliedSurcharge{}
	}
	return SurchargeQuote{
		EstimateID:   estimator.RequestID(),
		Applied:      applied,
		Total:        TotalSurcharges(applied),
		MissingItems: missing,
	}, nil
}

func (s *deliveryService) StockStatus(ctx context.Context, cmd StockStatusCommand) (StockStatusEstimate, error) {
	itemID := strings.TrimSpace(cmd.ItemID)
	if itemID == "" {
		return StockStatusEstimate{}, fmt.Errorf("%w: item id is required", ErrDeliveryInvalidInput)
	}
	if cmd.Quantity < 0 {
		return StockStatusEstimate{}, fmt.Errorf("%w: quantity must not be negative", ErrDeliveryInvalidInput)
	}
	snapshot, err := s.loadSnapshot(ctx)
	if err != nil {
		return StockStatusEstimate{}, err
	}
	item, err := s.getItem(ctx, itemID)
	if err != nil {
		return StockStatusEstimate{}, err
	}

	estimator := s.newEstimator(ctx, snapshot)
	quantity := normaliseQuantity(cmd.Quantity)
	return StockStatusEstimate{
		EstimateID: estimator.RequestID(),
		ItemID:     item.ID,
		Quantity:   quantity,
		Status:     estimator.ResolveStockStatus(ctx, item, quantity),
	}, nil
}

func (s *deliveryService) newEstimator(ctx context.Context, snapshot domain.Snapshot) *Estimator {
	deps := EstimatorDeps{
		Snapshot:  snapshot,
		Extractor: s.extractor,
		Clock:     s.clock,
		Logger:    s.logger,
		Tracer:    s.tracer,
		Metrics:   s.metrics,
	}
	if s.requestID != nil {
		deps.RequestID = func() string { return s.requestID(ctx) }
	}
	return NewEstimator(ctx, deps)
}

func (s *deliveryService) loadSnapshot(ctx context.Context) (domain.Snapshot, error) {
	snapshot, err := s.settings.LoadSnapshot(ctx)
	if err != nil {
		return domain.Snapshot{}, translateRepositoryError(err)
	}
	snapshot.Settings = snapshot.Settings.WithDefaults(s.defaults)
	return snapshot, nil
}

func (s *deliveryService) getItem(ctx context.Context, itemID string) (domain.Item, error) {
	item, err := s.catalog.GetItem(ctx, itemID)
	if err != nil {
		return domain.Item{}, translateRepositoryError(err)
	}
	return item, nil
}

// resolveLines loads every distinct item once. Items the catalog does not know are reported as
// missing and their lines dropped; any other failure aborts the request.
func (s *deliveryService) resolveLines(ctx context.Context, commands []BasketLineCommand) ([]domain.BasketLine, []string, error) {
	items := make(map[string]domain.Item, len(commands))
	missingSet := make(map[string]struct{})
	var missing []string

	lines := make([]domain.BasketLine, 0, len(commands))
	for i, cmd := range commands {
		itemID := strings.TrimSpace(cmd.ItemID)
		if _, gone := missingSet[itemID]; gone {
			continue
		}
		item, ok := items[itemID]
		if !ok {
			loaded, err := s.getItem(ctx, itemID)
			switch {
			case errors.Is(err, ErrDeliveryItemNotFound):
				missingSet[itemID] = struct{}{}
				missing = append(missing, itemID)
				s.logger(ctx, "basket.item_missing", map[string]any{"itemId": itemID})
				continue
			case err != nil:
				return nil, nil, err
			}
			items[itemID] = loaded
			item = loaded
		}
		lineID := strings.TrimSpace(cmd.LineID)
		if lineID == "" {
			lineID = fmt.Sprintf("line-%d", i+1)
		}
		lines = append(lines, domain.BasketLine{ID: lineID, Item: item, Quantity: normaliseQuantity(cmd.Quantity)})
	}
	return lines, missing, nil
}

func validateLines(lines []BasketLineCommand) error {
	if len(lines) == 0 {
		return fmt.Errorf("%w: at least one line is required", ErrDeliveryInvalidInput)
	}
	if len(lines) > maxBasketLines {
		return fmt.Errorf("%w: at most %d lines are allowed", ErrDeliveryInvalidInput, maxBasketLines)
	}
	for i, line := range lines {
		if strings.TrimSpace(line.ItemID) == "" {
			return fmt.Errorf("%w: line %d item id is required", ErrDeliveryInvalidInput, i+1)
		}
		if line.Quantity < 0 {
			return fmt.Errorf("%w: line %d quantity must not be negative", ErrDeliveryInvalidInput, i+1)
		}
	}
	return nil
}

func methodByID(snapshot domain.Snapshot, methodID string) (*domain.ShippingMethod, error) {
	id := strings.TrimSpace(methodID)
	if id == "" {
		return nil, nil
	}
	method, ok := snapshot.MethodByID(id)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrDeliveryMethodNotFound, id)
	}
	return &method, nil
}

func translateRepositoryError(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}
	var repoErr repositories.RepositoryError
	if errors.As(err, &repoErr) {
		switch {
		case repoErr.IsNotFound():
			return fmt.Errorf("%w: %v", ErrDeliveryItemNotFound, err)
		case repoErr.IsUnavailable():
			return fmt.Errorf("%w: %v", ErrDeliveryUnavailable, err)
		}
	}
	return err
}
