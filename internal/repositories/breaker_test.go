package repositories

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/sony/gobreaker"

	domain "github.com/hanko-field/delivery/internal/domain"
	"github.com/hanko-field/delivery/internal/platform/config"
)

type stubRegistry struct {
	snapshotErr error
	itemErr     error
	loads       int
	closed      bool
}

func (s *stubRegistry) Close(context.Context) error {
	s.closed = true
	return nil
}

func (s *stubRegistry) Settings() SettingsRepository { return stubSettings{s} }
func (s *stubRegistry) Catalog() CatalogRepository   { return stubCatalog{s} }
func (s *stubRegistry) Health() HealthRepository     { return nil }

type stubSettings struct{ reg *stubRegistry }

func (s stubSettings) LoadSnapshot(context.Context) (domain.Snapshot, error) {
	s.reg.loads++
	if s.reg.snapshotErr != nil {
		return domain.Snapshot{}, s.reg.snapshotErr
	}
	return domain.Snapshot{Settings: domain.Settings{CutoffTime: "13:00"}}, nil
}

type stubCatalog struct{ reg *stubRegistry }

func (s stubCatalog) GetItem(_ context.Context, id string) (domain.Item, error) {
	if s.reg.itemErr != nil {
		return domain.Item{}, s.reg.itemErr
	}
	return domain.Item{ID: id}, nil
}

func newTestBreaker(t *testing.T, inner Registry) *BreakerRegistry {
	t.Helper()
	reg, err := NewBreakerRegistry(inner, config.BreakerConfig{Timeout: time.Hour, FailureThreshold: 2, HalfOpenRequests: 1}, nil)
	if err != nil {
		t.Fatalf("NewBreakerRegistry: %v", err)
	}
	return reg
}

func TestBreakerRegistryOpensAfterConsecutiveFailures(t *testing.T) {
	inner := &stubRegistry{snapshotErr: errors.New("deadline exceeded")}
	reg := newTestBreaker(t, inner)

	for i := 0; i < 2; i++ {
		if _, err := reg.Settings().LoadSnapshot(context.Background()); err == nil {
			t.Fatalf("expected failure on attempt %d", i)
		}
	}
	if reg.State() != gobreaker.StateOpen {
		t.Fatalf("expected open breaker, got %s", reg.State())
	}

	_, err := reg.Settings().LoadSnapshot(context.Background())
	if !errors.Is(err, ErrSourceCircuitOpen) {
		t.Fatalf("expected circuit open error, got %v", err)
	}
	var repoErr RepositoryError
	if !errors.As(err, &repoErr) || !repoErr.IsUnavailable() {
		t.Fatalf("expected unavailable repository error, got %v", err)
	}
	if inner.loads != 2 {
		t.Fatalf("expected inner repository to be skipped while open, loads=%d", inner.loads)
	}
}

func TestBreakerRegistryIgnoresNotFound(t *testing.T) {
	inner := &stubRegistry{itemErr: NewCatalogError("get", CatalogErrorItemNotFound, "missing", nil)}
	reg := newTestBreaker(t, inner)

	for i := 0; i < 5; i++ {
		_, err := reg.Catalog().GetItem(context.Background(), "sku")
		if !errors.Is(err, ErrItemNotFound) {
			t.Fatalf("expected not found, got %v", err)
		}
	}
	if reg.State() != gobreaker.StateClosed {
		t.Fatalf("expected closed breaker, got %s", reg.State())
	}
}

func TestBreakerRegistryPassesThroughSuccess(t *testing.T) {
	inner := &stubRegistry{}
	reg := newTestBreaker(t, inner)

	snapshot, err := reg.Settings().LoadSnapshot(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if snapshot.Settings.CutoffTime != "13:00" {
		t.Fatalf("unexpected snapshot: %+v", snapshot.Settings)
	}
	item, err := reg.Catalog().GetItem(context.Background(), "sku-1")
	if err != nil || item.ID != "sku-1" {
		t.Fatalf("unexpected item %+v err %v", item, err)
	}
	if err := reg.Close(context.Background()); err != nil || !inner.closed {
		t.Fatalf("expected inner close, err=%v", err)
	}
}

func TestNewBreakerRegistryRequiresInner(t *testing.T) {
	if _, err := NewBreakerRegistry(nil, config.BreakerConfig{}, nil); err == nil {
		t.Fatal("expected error for nil registry")
	}
}
