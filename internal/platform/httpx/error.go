package httpx

import (
	"context"
	"encoding/json"
	"maps"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5/middleware"

	"github.com/hanko-field/delivery/internal/platform/requestctx"
)

const (
	codeLimit    = 80
	messageLimit = 512
	idLimit      = 80
)

// Error is the JSON error envelope returned by the delivery API:
//
//	{"error": "item_not_found", "message": "...", "status": 404, "request_id": "...", "trace_id": "..."}
//
// Details are merged into the top-level object.
type Error struct {
	Code    string
	Message string
	Status  int
	Details map[string]any
}

// NewError builds an envelope; a zero status becomes 500.
func NewError(code, message string, status int) Error {
	if status == 0 {
		status = http.StatusInternalServerError
	}
	return Error{
		Code:    singleLine(code, codeLimit),
		Message: singleLine(message, messageLimit),
		Status:  status,
	}
}

// WithDetails returns a copy of e carrying extra fields such as the offending item id.
func (e Error) WithDetails(details map[string]any) Error {
	if len(details) > 0 {
		e.Details = maps.Clone(details)
	}
	return e
}

func (e Error) Error() string {
	if e.Message == "" {
		return e.Code
	}
	return e.Code + ": " + e.Message
}

// WriteError renders err, stamping the chi request id and trace id from ctx.
func WriteError(ctx context.Context, w http.ResponseWriter, err Error) {
	if err.Status == 0 {
		err.Status = http.StatusInternalServerError
	}

	body := make(map[string]any, 5+len(err.Details))
	maps.Copy(body, err.Details)
	body["error"] = err.Code
	body["message"] = err.Message
	body["status"] = err.Status
	if id := singleLine(middleware.GetReqID(ctx), idLimit); id != "" {
		body["request_id"] = id
	}
	if id := singleLine(requestctx.TraceID(ctx), 64); id != "" {
		body["trace_id"] = id
	}

	stampEstimate(ctx, w)
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(err.Status)
	_ = json.NewEncoder(w).Encode(body)
}

func stampEstimate(ctx context.Context, w http.ResponseWriter) {
	if id := singleLine(requestctx.EstimateID(ctx), idLimit); id != "" {
		w.Header().Set("X-Estimate-ID", id)
	}
}

// singleLine folds line breaks into spaces and truncates to limit bytes.
func singleLine(value string, limit int) string {
	value = strings.TrimSpace(strings.NewReplacer("\r\n", " ", "\n", " ", "\r", " ").Replace(value))
	if len(value) > limit {
		value = value[:limit]
	}
	return value
}
