package services

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"

	domain "github.com/hanko-field/delivery/internal/domain"
)

const instrumentationName = "github.com/hanko-field/delivery/internal/services"

const (
	autoMethodKey = "auto"
	noMethodKey   = "none"
)

// Window outcomes recorded on the delivery.windows.calculated counter.
const (
	OutcomeWindow           = "window"
	OutcomeAvailabilityOnly = "availability_only"
	OutcomeNoResult         = "no_result"
)

// EstimatorMetrics holds the instruments recorded by an Estimator. Nil instruments are skipped.
type EstimatorMetrics struct {
	windows  metric.Int64Counter
	memoHits metric.Int64Counter
}

// NewEstimatorMetrics registers the estimator instruments on meter, or on the global meter
// provider when meter is nil. Registration failures leave the affected instrument unset.
func NewEstimatorMetrics(meter metric.Meter) (*EstimatorMetrics, error) {
	if meter == nil {
		meter = otel.GetMeterProvider().Meter(instrumentationName)
	}
	windows, windowsErr := meter.Int64Counter(
		"delivery.windows.calculated",
		metric.WithDescription("Count of delivery window calculations by outcome"),
	)
	memoHits, memoErr := meter.Int64Counter(
		"delivery.memo.hits",
		metric.WithDescription("Count of delivery windows served from the per request memo"),
	)
	return &EstimatorMetrics{windows: windows, memoHits: memoHits}, errors.Join(windowsErr, memoErr)
}

func (m *EstimatorMetrics) recordWindow(ctx context.Context, outcome string) {
	if m == nil || m.windows == nil {
		return
	}
	m.windows.Add(ctx, 1, metric.WithAttributes(attribute.String("outcome", outcome)))
}

func (m *EstimatorMetrics) recordMemoHit(ctx context.Context) {
	if m == nil || m.memoHits == nil {
		return
	}
	m.memoHits.Add(ctx, 1)
}

// EstimatorDeps bundles the inputs of a single calculation request.
type EstimatorDeps struct {
	Snapshot  domain.Snapshot
	Extractor ValueExtractor
	Clock     func() time.Time
	Logger    EventLogger
	Tracer    trace.Tracer
	Metrics   *EstimatorMetrics
	RequestID func() string
}

// Estimator answers delivery, shipping and surcharge questions against one configuration
// snapshot. It memoizes windows and must not outlive the request it was built for.
type Estimator struct {
	requestID  string
	settings   domain.Settings
	methods    []domain.ShippingMethod
	surcharges []domain.Surcharge
	cutoff     clockTime
	clock      func() time.Time
	logger     EventLogger
	tracer     trace.Tracer
	metrics    *EstimatorMetrics

	calendar  *BusinessCalendar
	resolver  *AvailabilityResolver
	matcher   *ConditionMatcher
	selector  *MethodSelector
	surcharge *SurchargeEngine

	mu   sync.Mutex
	memo map[windowKey]domain.DeliveryWindow
}

type windowKey struct {
	itemID   string
	quantity int
	method   string
	express  bool
}

// NewEstimator builds the request scoped component graph from deps. Unset settings fall back to
// their documented defaults and an unparsable cutoff falls back to 14:00.
func NewEstimator(ctx context.Context, deps EstimatorDeps) *Estimator {
	logger := loggerOrNoop(deps.Logger)
	clock := deps.Clock
	if clock == nil {
		clock = time.Now
	}
	tracer := deps.Tracer
	if tracer == nil {
		tracer = otel.Tracer(instrumentationName)
	}
	requestID := ulid.Make().String()
	if deps.RequestID != nil {
		if id := strings.TrimSpace(deps.RequestID()); id != "" {
			requestID = id
		}
	}
	logger = withRequestID(logger, requestID)

	settings := deps.Snapshot.Settings.WithDefaults(domain.Settings{})
	cutoff, err := parseClockTime(settings.CutoffTime)
	if err != nil {
		logger(ctx, "window.invalid_cutoff", map[string]any{"cutoff": settings.CutoffTime, "error": err.Error()})
		cutoff, _ = parseClockTime(domain.DefaultCutoffTime)
	}

	calendar := NewBusinessCalendar(deps.Snapshot.Calendar,
		WithCalendarLocation(settings.Location),
		WithCalendarLogger(logger),
	)
	matcher := NewConditionMatcher(deps.Extractor)

	return &Estimator{
		requestID:  requestID,
		settings:   settings,
		methods:    deps.Snapshot.Methods,
		surcharges: deps.Snapshot.Surcharges,
		cutoff:     cutoff,
		clock:      clock,
		logger:     logger,
		tracer:     tracer,
		metrics:    deps.Metrics,
		calendar:   calendar,
		resolver: NewAvailabilityResolver(AvailabilityResolverDeps{
			Calendar:            calendar,
			DefaultLeadTimeDays: settings.DefaultLeadTimeDays,
			MaxVisibleStock:     settings.MaxVisibleStock,
			Clock:               clock,
			Logger:              logger,
		}),
		matcher:  matcher,
		selector: NewMethodSelector(matcher, logger),
		surcharge: NewSurchargeEngine(SurchargeEngineDeps{
			Matcher:               matcher,
			Stacking:              settings.SurchargeStacking,
			FreeShippingThreshold: settings.FreeShippingThreshold,
			Logger:                logger,
		}),
		memo: make(map[windowKey]domain.DeliveryWindow),
	}
}

// RequestID identifies the request this estimator serves.
func (e *Estimator) RequestID() string {
	return e.requestID
}

// Calendar exposes the business calendar built from the snapshot.
func (e *Estimator) Calendar() *BusinessCalendar {
	return e.calendar
}

// Reset drops every memoized window.
func (e *Estimator) Reset() {
	e.mu.Lock()
	e.memo = make(map[windowKey]domain.DeliveryWindow)
	e.mu.Unlock()
}

// WindowRequest asks for the delivery window of one item. A nil Method selects one from the
// snapshot.
type WindowRequest struct {
	Item     domain.Item
	Quantity int
	Method   *domain.ShippingMethod
	Express  bool
}

// BasketWindowRequest asks for the delivery window of a basket shipped with a single method.
type BasketWindowRequest struct {
	Lines   []domain.BasketLine
	Method  *domain.ShippingMethod
	Express bool
}

// CalculateWindow estimates delivery for one item. ok is false when the item is missing. When
// no shipping method applies the window carries availability only.
func (e *Estimator) CalculateWindow(ctx context.Context, req WindowRequest) (domain.DeliveryWindow, bool) {
	ctx, span := e.tracer.Start(ctx, "delivery.CalculateWindow")
	defer span.End()
	span.SetAttributes(
		attribute.String("delivery.item_id", req.Item.ID),
		attribute.Int("delivery.quantity", req.Quantity),
		attribute.Bool("delivery.express", req.Express),
	)

	window, ok := e.calculateWindow(ctx, req, true)
	if !ok {
		span.SetStatus(codes.Error, "item not found")
		e.metrics.recordWindow(ctx, OutcomeNoResult)
		return domain.DeliveryWindow{}, false
	}
	if window.Method != nil {
		span.SetAttributes(attribute.String("delivery.method_id", window.Method.ID))
	}
	e.metrics.recordWindow(ctx, windowOutcome(window))
	return window, true
}

// calculateWindow computes or recalls a line window. With autoSelect false a nil method yields an
// availability only window.
func (e *Estimator) calculateWindow(ctx context.Context, req WindowRequest, autoSelect bool) (domain.DeliveryWindow, bool) {
	if strings.TrimSpace(req.Item.ID) == "" {
		return domain.DeliveryWindow{}, false
	}
	quantity := normaliseQuantity(req.Quantity)
	key := windowKey{itemID: req.Item.ID, quantity: quantity, method: noMethodKey, express: req.Express}
	switch {
	case req.Method != nil:
		key.method = req.Method.ID
	case autoSelect:
		key.method = autoMethodKey
	}

	e.mu.Lock()
	cached, hit := e.memo[key]
	e.mu.Unlock()
	if hit {
		e.metrics.recordMemoHit(ctx)
		return cloneWindow(cached), true
	}

	var method *domain.ShippingMethod
	if req.Method != nil {
		m := *req.Method
		method = &m
	} else if autoSelect {
		if selected, ok := e.selector.SelectMethod(ctx, req.Item, quantity, e.methods); ok {
			method = &selected
		}
	}

	now := e.clock()
	window := e.buildWindow(ctx, req.Item, quantity, method, req.Express, now)
	if method != nil {
		cost := ShippingCost(*method, ItemTotals(req.Item, quantity), window.Express)
		window.ShippingCost = &cost
	}

	e.mu.Lock()
	e.memo[key] = cloneWindow(window)
	e.mu.Unlock()
	return window, true
}

// buildWindow runs the window algorithm for one item with an already resolved method.
func (e *Estimator) buildWindow(ctx context.Context, item domain.Item, quantity int, method *domain.ShippingMethod, express bool, now time.Time) domain.DeliveryWindow {
	expressActive := express && method != nil && method.SupportsExpress()

	cutoff := e.cutoff
	if expressActive && strings.TrimSpace(method.Express.CutoffTime) != "" {
		if parsed, err := parseClockTime(method.Express.CutoffTime); err == nil {
			cutoff = parsed
		} else {
			e.logger(ctx, "window.invalid_cutoff", map[string]any{"methodId": method.ID, "cutoff": method.Express.CutoffTime})
		}
	}

	start := e.startDate(ctx, now, cutoff)
	availableFrom := e.resolver.ResolveAvailableFrom(ctx, item, quantity, now)
	if availableDate := e.calendar.Date(availableFrom); availableDate.After(start) {
		start = availableDate
	}
	afterProcessing := e.calendar.AddBusinessDays(ctx, start, processingDays(e.settings.ProcessingDays))

	window := domain.DeliveryWindow{
		ItemID:        item.ID,
		Quantity:      quantity,
		AvailableFrom: availableFrom,
		StartDate:     start,
		Stock:         e.resolver.ResolveStockStatus(ctx, item, quantity),
	}

	if method == nil {
		e.logger(ctx, "window.no_method", map[string]any{
			"itemId":    item.ID,
			"quantity":  quantity,
			"startDate": start.Format(domain.DateLayout),
		})
		return window
	}

	transitMin, transitMax := method.Transit(expressActive)
	earliest := e.calendar.AddBusinessDays(ctx, afterProcessing, transitMin)
	latest := e.calendar.AddBusinessDays(ctx, afterProcessing, transitMax)
	shipBy := afterProcessing
	used := *method

	window.Express = expressActive
	window.Method = &used
	window.Earliest = &earliest
	window.Latest = &latest
	window.ShipBy = &shipBy

	e.logger(ctx, "window.calculated", map[string]any{
		"itemId":   item.ID,
		"quantity": quantity,
		"methodId": method.ID,
		"express":  expressActive,
		"earliest": earliest.Format(domain.DateLayout),
		"latest":   latest.Format(domain.DateLayout),
		"shipBy":   shipBy.Format(domain.DateLayout),
	})
	return window
}

// startDate is the first business day an order placed at now can be processed. Orders placed
// after the cutoff count from tomorrow.
func (e *Estimator) startDate(ctx context.Context, now time.Time, cutoff clockTime) time.Time {
	local := now.In(e.calendar.Location())
	today := e.calendar.Date(local)
	if local.After(cutoff.on(today)) {
		return e.calendar.NextBusinessDay(ctx, today.AddDate(0, 0, 1))
	}
	return e.calendar.NextBusinessDay(ctx, today)
}

// CalculateBasketWindow estimates delivery for a basket. Every line uses the same method, either
// the requested one or the best method for the basket, and the slowest line gates the result.
func (e *Estimator) CalculateBasketWindow(ctx context.Context, req BasketWindowRequest) (domain.DeliveryWindow, bool) {
	ctx, span := e.tracer.Start(ctx, "delivery.CalculateBasketWindow")
	defer span.End()
	span.SetAttributes(
		attribute.Int("delivery.lines", len(req.Lines)),
		attribute.Bool("delivery.express", req.Express),
	)

	lines := activeLines(req.Lines)
	if len(lines) == 0 {
		span.SetStatus(codes.Error, "empty basket")
		e.metrics.recordWindow(ctx, OutcomeNoResult)
		return domain.DeliveryWindow{}, false
	}

	method := req.Method
	if method == nil {
		if selected, ok := e.selector.SelectBasketMethod(ctx, lines, e.methods); ok {
			method = &selected
		}
	}
	if method != nil {
		span.SetAttributes(attribute.String("delivery.method_id", method.ID))
	}

	windows := make([]domain.DeliveryWindow, 0, len(lines))
	for _, line := range lines {
		window, ok := e.calculateWindow(ctx, WindowRequest{
			Item:     line.Item,
			Quantity: line.Quantity,
			Method:   method,
			Express:  req.Express,
		}, false)
		if !ok {
			continue
		}
		windows = append(windows, window)
	}

	basket := mergeWindows(windows)
	if method != nil {
		totals := BasketTotals(lines)
		cost := ShippingCost(*method, totals, basket.Express)
		basket.ShippingCost = &cost
	}
	e.metrics.recordWindow(ctx, windowOutcome(basket))
	return basket, true
}

// SelectMethod returns the preferred configured method for quantity units of item.
func (e *Estimator) SelectMethod(ctx context.Context, item domain.Item, quantity int) (domain.ShippingMethod, bool) {
	ctx, span := e.tracer.Start(ctx, "delivery.SelectMethod")
	defer span.End()
	span.SetAttributes(attribute.String("delivery.item_id", item.ID), attribute.Int("delivery.quantity", quantity))

	method, ok := e.selector.SelectMethod(ctx, item, quantity, e.methods)
	if ok {
		span.SetAttributes(attribute.String("delivery.method_id", method.ID))
	}
	return method, ok
}

// EligibleMethods lists every configured method applicable to quantity units of item, best first.
func (e *Estimator) EligibleMethods(ctx context.Context, item domain.Item, quantity int) []domain.ShippingMethod {
	return e.selector.EligibleMethods(ctx, item, quantity, e.methods)
}

// SelectBasketMethod returns the preferred configured method for the basket lines.
func (e *Estimator) SelectBasketMethod(ctx context.Context, lines []domain.BasketLine) (domain.ShippingMethod, bool) {
	ctx, span := e.tracer.Start(ctx, "delivery.SelectBasketMethod")
	defer span.End()
	span.SetAttributes(attribute.Int("delivery.lines", len(lines)))
	return e.selector.SelectBasketMethod(ctx, activeLines(lines), e.methods)
}

// EligibleBasketMethods lists every configured method applicable to the basket lines, best first.
func (e *Estimator) EligibleBasketMethods(ctx context.Context, lines []domain.BasketLine) []domain.ShippingMethod {
	return e.selector.EligibleBasketMethods(ctx, activeLines(lines), e.methods)
}

// CalculateSurcharges returns the configured surcharges applied to basket.
func (e *Estimator) CalculateSurcharges(ctx context.Context, basket domain.Basket) []domain.AppliedSurcharge {
	ctx, span := e.tracer.Start(ctx, "delivery.CalculateSurcharges")
	defer span.End()
	span.SetAttributes(
		attribute.Int("delivery.lines", len(basket.Lines)),
		attribute.Bool("delivery.express", basket.Express),
	)

	applied := e.surcharge.Calculate(ctx, basket, e.surcharges)
	span.SetAttributes(attribute.Int("delivery.surcharges_applied", len(applied)))
	return applied
}

// ResolveStockStatus describes stock for quantity units of item.
func (e *Estimator) ResolveStockStatus(ctx context.Context, item domain.Item, quantity int) domain.StockStatusResult {
	return e.resolver.ResolveStockStatus(ctx, item, quantity)
}

// mergeWindows combines line windows into the basket window: each bound is the latest bound of
// any line.
func mergeWindows(windows []domain.DeliveryWindow) domain.DeliveryWindow {
	basket := domain.DeliveryWindow{
		Stock: domain.StockStatusResult{InStock: true},
		Lines: make([]domain.DeliveryWindow, 0, len(windows)),
	}
	transit := len(windows) > 0
	for i, window := range windows {
		basket.Lines = append(basket.Lines, window)
		basket.Quantity += window.Quantity
		if i == 0 || window.AvailableFrom.After(basket.AvailableFrom) {
			basket.AvailableFrom = window.AvailableFrom
		}
		if i == 0 || window.StartDate.After(basket.StartDate) {
			basket.StartDate = window.StartDate
		}
		basket.Stock.InStock = basket.Stock.InStock && window.Stock.InStock
		basket.Stock.InsufficientStock = basket.Stock.InsufficientStock || window.Stock.InsufficientStock
		basket.Stock.BackorderQuantity += window.Stock.BackorderQuantity
		if window.Stock.RestockDate != nil && (basket.Stock.RestockDate == nil || window.Stock.RestockDate.After(*basket.Stock.RestockDate)) {
			restock := *window.Stock.RestockDate
			basket.Stock.RestockDate = &restock
		}

		if !window.HasTransit() {
			transit = false
			continue
		}
		if basket.Method == nil {
			method := *window.Method
			basket.Method = &method
			basket.Express = window.Express
		}
		basket.Earliest = laterOf(basket.Earliest, window.Earliest)
		basket.Latest = laterOf(basket.Latest, window.Latest)
		basket.ShipBy = laterOf(basket.ShipBy, window.ShipBy)
	}
	if !transit {
		basket.Method = nil
		basket.Express = false
		basket.Earliest = nil
		basket.Latest = nil
		basket.ShipBy = nil
	}
	if len(windows) == 0 {
		basket.Stock.InStock = false
	}
	return basket
}

func laterOf(current, candidate *time.Time) *time.Time {
	if candidate == nil {
		return current
	}
	if current == nil || candidate.After(*current) {
		value := *candidate
		return &value
	}
	return current
}

func windowOutcome(window domain.DeliveryWindow) string {
	if window.HasTransit() {
		return OutcomeWindow
	}
	return OutcomeAvailabilityOnly
}

func cloneWindow(window domain.DeliveryWindow) domain.DeliveryWindow {
	out := window
	out.Earliest = cloneTime(window.Earliest)
	out.Latest = cloneTime(window.Latest)
	out.ShipBy = cloneTime(window.ShipBy)
	out.Stock.RestockDate = cloneTime(window.Stock.RestockDate)
	if window.Method != nil {
		method := *window.Method
		out.Method = &method
	}
	if window.ShippingCost != nil {
		cost := *window.ShippingCost
		out.ShippingCost = &cost
	}
	if window.Lines != nil {
		out.Lines = make([]domain.DeliveryWindow, len(window.Lines))
		for i, line := range window.Lines {
			out.Lines[i] = cloneWindow(line)
		}
	}
	return out
}

func cloneTime(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	value := *t
	return &value
}

func processingDays(days float64) int {
	if days <= 0 || math.IsNaN(days) {
		return 0
	}
	return int(math.Ceil(days))
}

func withRequestID(logger EventLogger, requestID string) EventLogger {
	return func(ctx context.Context, event string, fields map[string]any) {
		enriched := make(map[string]any, len(fields)+1)
		for k, v := range fields {
			enriched[k] = v
		}
		enriched["estimateId"] = requestID
		logger(ctx, event, enriched)
	}
}

// clockTime is a time of day in minutes precision.
type clockTime struct {
	hour   int
	minute int
}

func (c clockTime) on(date time.Time) time.Time {
	return time.Date(date.Year(), date.Month(), date.Day(), c.hour, c.minute, 0, 0, date.Location())
}

// String renders the time as HH:MM.
func (c clockTime) String() string {
	return fmt.Sprintf("%02d:%02d", c.hour, c.minute)
}

func parseClockTime(raw string) (clockTime, error) {
	parts := strings.Split(strings.TrimSpace(raw), ":")
	if len(parts) < 2 || len(parts) > 3 {
		return clockTime{}, fmt.Errorf("delivery: invalid cutoff %q", raw)
	}
	hour, err := strconv.Atoi(parts[0])
	if err != nil || hour < 0 || hour > 23 {
		return clockTime{}, fmt.Errorf("delivery: invalid cutoff hour %q", raw)
	}
	minute, err := strconv.Atoi(parts[1])
	if err != nil || minute < 0 || minute > 59 {
		return clockTime{}, fmt.Errorf("delivery: invalid cutoff minute %q", raw)
	}
	return clockTime{hour: hour, minute: minute}, nil
}
