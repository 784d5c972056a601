package handlers

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"

	domain "github.com/hanko-field/delivery/internal/domain"
	"github.com/hanko-field/delivery/internal/platform/httpx"
	"github.com/hanko-field/delivery/internal/platform/requestctx"
	"github.com/hanko-field/delivery/internal/services"
)

// DeliveryHandlers exposes delivery window, shipping, surcharge and stock endpoints.
type DeliveryHandlers struct {
	delivery services.DeliveryService
}

// NewDeliveryHandlers constructs handlers backed by the delivery service.
func NewDeliveryHandlers(delivery services.DeliveryService) *DeliveryHandlers {
	return &DeliveryHandlers{delivery: delivery}
}

// Routes wires the delivery endpoints onto the API router.
func (h *DeliveryHandlers) Routes(r chi.Router) {
	if r == nil {
		return
	}
	r.Post("/delivery/window", h.postWindow)
	r.Post("/delivery/basket-window", h.postBasketWindow)
	r.Post("/shipping/select", h.postSelectShipping)
	r.Post("/surcharges/calculate", h.postSurcharges)
	r.Get("/items/{itemID}/stock-status", h.getStockStatus)
}

type lineRequest struct {
	LineID   string `json:"line_id"`
	ItemID   string `json:"item_id"`
	Quantity int    `json:"quantity"`
}

type windowRequest struct {
	ItemID   string `json:"item_id"`
	Quantity int    `json:"quantity"`
	MethodID string `json:"method_id"`
	Express  bool   `json:"express"`
}

type basketWindowRequest struct {
	Lines    []lineRequest `json:"lines"`
	MethodID string        `json:"method_id"`
	Express  bool          `json:"express"`
}

type selectShippingRequest struct {
	ItemID   string        `json:"item_id"`
	Quantity int           `json:"quantity"`
	Lines    []lineRequest `json:"lines"`
}

type surchargeRequest struct {
	Lines   []lineRequest `json:"lines"`
	Express bool          `json:"express"`
}

func (h *DeliveryHandlers) postWindow(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if !h.ready(ctx, w) {
		return
	}
	var req windowRequest
	if !decodeRequest(ctx, w, r, &req) {
		return
	}

	result, err := h.delivery.EstimateWindow(ctx, services.EstimateWindowCommand{
		ItemID:   req.ItemID,
		Quantity: req.Quantity,
		MethodID: req.MethodID,
		Express:  req.Express,
	})
	if err != nil {
		writeDeliveryError(ctx, w, err)
		return
	}
	ctx = requestctx.WithEstimateID(ctx, result.EstimateID)
	httpx.WriteJSON(ctx, w, http.StatusOK, buildWindowResponse(result))
}

func (h *DeliveryHandlers) postBasketWindow(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if !h.ready(ctx, w) {
		return
	}
	var req basketWindowRequest
	if !decodeRequest(ctx, w, r, &req) {
		return
	}

	result, err := h.delivery.EstimateBasketWindow(ctx, services.EstimateBasketCommand{
		Lines:    toLineCommands(req.Lines),
		MethodID: req.MethodID,
		Express:  req.Express,
	})
	if err != nil {
		writeDeliveryError(ctx, w, err)
		return
	}
	ctx = requestctx.WithEstimateID(ctx, result.EstimateID)
	httpx.WriteJSON(ctx, w, http.StatusOK, buildWindowResponse(result))
}

func (h *DeliveryHandlers) postSelectShipping(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if !h.ready(ctx, w) {
		return
	}
	var req selectShippingRequest
	if !decodeRequest(ctx, w, r, &req) {
		return
	}

	selection, err := h.delivery.SelectShipping(ctx, services.SelectShippingCommand{
		ItemID:   req.ItemID,
		Quantity: req.Quantity,
		Lines:    toLineCommands(req.Lines),
	})
	if err != nil {
		writeDeliveryError(ctx, w, err)
		return
	}

	payload := shippingSelectionResponse{
		EstimateID:   selection.EstimateID,
		Eligible:     make([]methodQuotePayload, 0, len(selection.Eligible)),
		MissingItems: nonNilStrings(selection.MissingItems),
	}
	for _, quote := range selection.Eligible {
		payload.Eligible = append(payload.Eligible, buildMethodQuote(quote))
	}
	if selection.Selected != nil {
		selected := buildMethodQuote(*selection.Selected)
		payload.Selected = &selected
	}
	ctx = requestctx.WithEstimateID(ctx, selection.EstimateID)
	httpx.WriteJSON(ctx, w, http.StatusOK, payload)
}

func (h *DeliveryHandlers) postSurcharges(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if !h.ready(ctx, w) {
		return
	}
	var req surchargeRequest
	if !decodeRequest(ctx, w, r, &req) {
		return
	}

	quote, err := h.delivery.CalculateSurcharges(ctx, services.CalculateSurchargesCommand{
		Lines:   toLineCommands(req.Lines),
		Express: req.Express,
	})
	if err != nil {
		writeDeliveryError(ctx, w, err)
		return
	}

	payload := surchargeResponse{
		EstimateID:   quote.EstimateID,
		Surcharges:   make([]appliedSurchargePayload, 0, len(quote.Applied)),
		Total:        formatMoney(quote.Total),
		MissingItems: nonNilStrings(quote.MissingItems),
	}
	for _, applied := range quote.Applied {
		payload.Surcharges = append(payload.Surcharges, appliedSurchargePayload{
			ID:          applied.SurchargeID,
			Name:        applied.Name,
			ChargeBasis: string(applied.ChargeBasis),
			Units:       applied.Units,
			Cost:        formatMoney(applied.Cost),
		})
	}
	ctx = requestctx.WithEstimateID(ctx, quote.EstimateID)
	httpx.WriteJSON(ctx, w, http.StatusOK, payload)
}

func (h *DeliveryHandlers) getStockStatus(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if !h.ready(ctx, w) {
		return
	}

	quantity := 1
	if raw := strings.TrimSpace(r.URL.Query().Get("quantity")); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 0 {
			httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "quantity must be a non-negative integer", http.StatusBadRequest))
			return
		}
		quantity = parsed
	}

	result, err := h.delivery.StockStatus(ctx, services.StockStatusCommand{
		ItemID:   chi.URLParam(r, "itemID"),
		Quantity: quantity,
	})
	if err != nil {
		writeDeliveryError(ctx, w, err)
		return
	}
	ctx = requestctx.WithEstimateID(ctx, result.EstimateID)
	httpx.WriteJSON(ctx, w, http.StatusOK, stockStatusResponse{
		EstimateID: result.EstimateID,
		ItemID:     result.ItemID,
		Quantity:   result.Quantity,
		Stock:      buildStockPayload(result.Status),
	})
}

func (h *DeliveryHandlers) ready(ctx context.Context, w http.ResponseWriter) bool {
	if h == nil || h.delivery == nil {
		httpx.WriteError(ctx, w, httpx.NewError("delivery_service_unavailable", "delivery service is unavailable", http.StatusServiceUnavailable))
		return false
	}
	return true
}

func decodeRequest(ctx context.Context, w http.ResponseWriter, r *http.Request, dst any) bool {
	if err := httpx.DecodeJSON(r, dst); err != nil {
		message := "request body must be valid JSON"
		if errors.Is(err, httpx.ErrEmptyBody) {
			message = "request body is required"
		}
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", message, http.StatusBadRequest))
		return false
	}
	return true
}

func writeDeliveryError(ctx context.Context, w http.ResponseWriter, err error) {
	if err == nil {
		return
	}
	switch {
	case errors.Is(err, services.ErrDeliveryInvalidInput):
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", err.Error(), http.StatusBadRequest))
	case errors.Is(err, services.ErrDeliveryItemNotFound):
		httpx.WriteError(ctx, w, httpx.NewError("item_not_found", "item not found", http.StatusNotFound))
	case errors.Is(err, services.ErrDeliveryMethodNotFound):
		httpx.WriteError(ctx, w, httpx.NewError("shipping_method_not_found", "shipping method not found", http.StatusNotFound))
	case errors.Is(err, services.ErrDeliveryUnavailable):
		httpx.WriteError(ctx, w, httpx.NewError("delivery_source_unavailable", "delivery configuration is unavailable", http.StatusServiceUnavailable))
	case errors.Is(err, context.DeadlineExceeded):
		httpx.WriteError(ctx, w, httpx.NewError("timeout", "request timed out", http.StatusGatewayTimeout))
	default:
		httpx.WriteError(ctx, w, httpx.NewError("delivery_error", "failed to estimate delivery", http.StatusInternalServerError))
	}
}

func toLineCommands(lines []lineRequest) []services.BasketLineCommand {
	if len(lines) == 0 {
		return nil
	}
	out := make([]services.BasketLineCommand, 0, len(lines))
	for _, line := range lines {
		out = append(out, services.BasketLineCommand{
			LineID:   line.LineID,
			ItemID:   line.ItemID,
			Quantity: line.Quantity,
		})
	}
	return out
}

type windowResponse struct {
	EstimateID   string         `json:"estimate_id"`
	Found        bool           `json:"found"`
	Window       *windowPayload `json:"window,omitempty"`
	MissingItems []string       `json:"missing_items"`
}

type windowPayload struct {
	ItemID        string          `json:"item_id,omitempty"`
	Quantity      int             `json:"quantity,omitempty"`
	Express       bool            `json:"express"`
	AvailableFrom string          `json:"available_from"`
	StartDate     string          `json:"start_date"`
	Earliest      string          `json:"earliest,omitempty"`
	Latest        string          `json:"latest,omitempty"`
	ShipBy        string          `json:"ship_by,omitempty"`
	Method        *methodPayload  `json:"method,omitempty"`
	ShippingCost  string          `json:"shipping_cost,omitempty"`
	Stock         stockPayload    `json:"stock"`
	Lines         []windowPayload `json:"lines,omitempty"`
}

type methodPayload struct {
	ID         string `json:"id"`
	Name       string `json:"name"`
	Priority   int    `json:"priority"`
	TransitMin int    `json:"transit_min"`
	TransitMax int    `json:"transit_max"`
}

type methodQuotePayload struct {
	Method           methodPayload `json:"method"`
	Cost             string        `json:"cost"`
	ExpressAvailable bool          `json:"express_available"`
	ExpressCost      string        `json:"express_cost,omitempty"`
}

type shippingSelectionResponse struct {
	EstimateID   string               `json:"estimate_id"`
	Selected     *methodQuotePayload  `json:"selected"`
	Eligible     []methodQuotePayload `json:"eligible"`
	MissingItems []string             `json:"missing_items"`
}

type appliedSurchargePayload struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	ChargeBasis string `json:"charge_basis"`
	Units       int    `json:"units"`
	Cost        string `json:"cost"`
}

type surchargeResponse struct {
	EstimateID   string                    `json:"estimate_id"`
	Surcharges   []appliedSurchargePayload `json:"surcharges"`
	Total        string                    `json:"total"`
	MissingItems []string                  `json:"missing_items"`
}

type stockPayload struct {
	Tracked           bool   `json:"tracked"`
	InStock           bool   `json:"in_stock"`
	InsufficientStock bool   `json:"insufficient_stock"`
	DisplayQuantity   *int   `json:"display_quantity,omitempty"`
	Capped            bool   `json:"capped"`
	BackorderQuantity int    `json:"backorder_quantity,omitempty"`
	RestockDate       string `json:"restock_date,omitempty"`
	Message           string `json:"message,omitempty"`
}

type stockStatusResponse struct {
	EstimateID string       `json:"estimate_id"`
	ItemID     string       `json:"item_id"`
	Quantity   int          `json:"quantity"`
	Stock      stockPayload `json:"stock"`
}

func buildWindowResponse(result services.WindowEstimate) windowResponse {
	resp := windowResponse{
		EstimateID:   result.EstimateID,
		Found:        result.Found,
		MissingItems: nonNilStrings(result.MissingItems),
	}
	if result.Found {
		window := buildWindowPayload(result.Window)
		resp.Window = &window
	}
	return resp
}

func buildWindowPayload(window domain.DeliveryWindow) windowPayload {
	payload := windowPayload{
		ItemID:        window.ItemID,
		Quantity:      window.Quantity,
		Express:       window.Express,
		AvailableFrom: formatDate(window.AvailableFrom),
		StartDate:     formatDate(window.StartDate),
		Earliest:      formatDatePtr(window.Earliest),
		Latest:        formatDatePtr(window.Latest),
		ShipBy:        formatDatePtr(window.ShipBy),
		Stock:         buildStockPayload(window.Stock),
	}
	if window.Method != nil {
		method := buildMethodPayload(*window.Method)
		payload.Method = &method
	}
	if window.ShippingCost != nil {
		payload.ShippingCost = formatMoney(*window.ShippingCost)
	}
	for _, line := range window.Lines {
		payload.Lines = append(payload.Lines, buildWindowPayload(line))
	}
	return payload
}

func buildMethodPayload(method domain.ShippingMethod) methodPayload {
	return methodPayload{
		ID:         method.ID,
		Name:       method.Name,
		Priority:   method.Priority,
		TransitMin: method.TransitMin,
		TransitMax: method.TransitMax,
	}
}

func buildMethodQuote(quote services.MethodQuote) methodQuotePayload {
	payload := methodQuotePayload{
		Method:           buildMethodPayload(quote.Method),
		Cost:             formatMoney(quote.Cost),
		ExpressAvailable: quote.ExpressAvailable,
	}
	if quote.ExpressCost != nil {
		payload.ExpressCost = formatMoney(*quote.ExpressCost)
	}
	return payload
}

func buildStockPayload(status domain.StockStatusResult) stockPayload {
	payload := stockPayload{
		Tracked:           status.Tracked,
		InStock:           status.InStock,
		InsufficientStock: status.InsufficientStock,
		Capped:            status.Capped,
		BackorderQuantity: status.BackorderQuantity,
		RestockDate:       formatDatePtr(status.RestockDate),
		Message:           status.Message,
	}
	if status.Tracked {
		display := status.DisplayQuantity
		payload.DisplayQuantity = &display
	}
	return payload
}

func formatDate(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.Format(domain.DateLayout)
}

func formatDatePtr(t *time.Time) string {
	if t == nil {
		return ""
	}
	return formatDate(*t)
}

func formatMoney(amount decimal.Decimal) string {
	return amount.StringFixed(2)
}

func nonNilStrings(values []string) []string {
	if values == nil {
		return []string{}
	}
	return values
}
