package observability

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/hanko-field/delivery/internal/platform/requestctx"
)

func TestRequestLoggerMiddlewareLogsCompletion(t *testing.T) {
	core, logs := observer.New(zapcore.InfoLevel)
	handler := InjectLoggerMiddleware(zap.New(core))(RequestLoggerMiddleware()(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if requestctx.Logger(r.Context()) == requestctx.NoopLogger() {
			t.Errorf("expected request scoped logger")
		}
		w.Header().Set(EstimateHeader, "01JABCDEF")
		w.WriteHeader(http.StatusCreated)
		_, _ = w.Write([]byte("{}"))
	})))

	req := httptest.NewRequest(http.MethodPost, "/api/v1/delivery/window", nil)
	req.Header.Set(clientHeader, "storefront\x00-jp")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	entries := logs.FilterMessage("request completed").AllUntimed()
	if len(entries) != 1 {
		t.Fatalf("expected one completion entry, got %d", len(entries))
	}
	fields := entries[0].ContextMap()
	if fields["status"] != int64(http.StatusCreated) {
		t.Fatalf("unexpected status field: %#v", fields["status"])
	}
	if fields["estimate_id"] != "01JABCDEF" {
		t.Fatalf("unexpected estimate id: %#v", fields["estimate_id"])
	}
	if fields["client"] != "storefront-jp" {
		t.Fatalf("expected sanitised client, got %#v", fields["client"])
	}
	if fields["route"] != "/api/v1/delivery/window" {
		t.Fatalf("unexpected route: %#v", fields["route"])
	}
}

func TestRequestLoggerMiddlewareWarnsOnClientErrors(t *testing.T) {
	core, logs := observer.New(zapcore.InfoLevel)
	handler := InjectLoggerMiddleware(zap.New(core))(RequestLoggerMiddleware()(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	})))

	handler.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/api/v1/items/x/stock-status", nil))

	entries := logs.FilterMessage("request completed").AllUntimed()
	if len(entries) != 1 || entries[0].Level != zapcore.WarnLevel {
		t.Fatalf("expected warn completion entry, got %+v", entries)
	}
}

func TestRecoveryMiddlewareWritesJSONError(t *testing.T) {
	core, logs := observer.New(zapcore.ErrorLevel)
	handler := RecoveryMiddleware(zap.New(core))(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		panic("boom")
	}))

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))

	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("expected 500, got %d", rec.Code)
	}
	var payload map[string]any
	if err := json.Unmarshal(rec.Body.Bytes(), &payload); err != nil {
		t.Fatalf("invalid json body: %v", err)
	}
	if payload["error"] != "internal_server_error" {
		t.Fatalf("unexpected payload: %#v", payload)
	}
	if logs.FilterMessage("panic recovered").Len() != 1 {
		t.Fatalf("expected panic to be logged")
	}
}
