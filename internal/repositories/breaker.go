package repositories

import (
	"context"
	"errors"
	"fmt"

	"github.com/sony/gobreaker"
	"go.uber.org/zap"

	domain "github.com/hanko-field/delivery/internal/domain"
	"github.com/hanko-field/delivery/internal/platform/config"
)

// ErrSourceCircuitOpen is returned while the breaker rejects calls to the configuration source.
var ErrSourceCircuitOpen = errors.New("repositories: configuration source circuit open")

// BreakerRegistry decorates a registry so that settings and catalog reads pass through a
// circuit breaker. Not-found lookups and caller cancellations do not count as failures.
type BreakerRegistry struct {
	inner    Registry
	settings *breakerSettings
	catalog  *breakerCatalog
	breaker  *gobreaker.CircuitBreaker
}

var _ Registry = (*BreakerRegistry)(nil)

// NewBreakerRegistry wraps inner with a breaker configured from cfg.
func NewBreakerRegistry(inner Registry, cfg config.BreakerConfig, logger *zap.Logger) (*BreakerRegistry, error) {
	if inner == nil {
		return nil, errors.New("breaker registry: inner registry is required")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	threshold := cfg.FailureThreshold
	if threshold == 0 {
		threshold = 1
	}

	cb := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        "delivery-source",
		MaxRequests: cfg.HalfOpenRequests,
		Timeout:     cfg.Timeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= threshold
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.Warn("circuit breaker state changed",
				zap.String("name", name),
				zap.String("from", from.String()),
				zap.String("to", to.String()),
			)
		},
	})

	registry := &BreakerRegistry{inner: inner, breaker: cb}
	if settings := inner.Settings(); settings != nil {
		registry.settings = &breakerSettings{inner: settings, breaker: cb}
	}
	if catalog := inner.Catalog(); catalog != nil {
		registry.catalog = &breakerCatalog{inner: catalog, breaker: cb}
	}
	return registry, nil
}

// State reports the breaker state.
func (r *BreakerRegistry) State() gobreaker.State {
	return r.breaker.State()
}

// Close releases the wrapped registry.
func (r *BreakerRegistry) Close(ctx context.Context) error {
	return r.inner.Close(ctx)
}

// Settings returns the guarded settings repository.
func (r *BreakerRegistry) Settings() SettingsRepository {
	if r.settings == nil {
		return nil
	}
	return r.settings
}

// Catalog returns the guarded catalog repository.
func (r *BreakerRegistry) Catalog() CatalogRepository {
	if r.catalog == nil {
		return nil
	}
	return r.catalog
}

// Health exposes the inner health repository unguarded so readiness observes the real source.
func (r *BreakerRegistry) Health() HealthRepository {
	return r.inner.Health()
}

type breakerSettings struct {
	inner   SettingsRepository
	breaker *gobreaker.CircuitBreaker
}

func (s *breakerSettings) LoadSnapshot(ctx context.Context) (domain.Snapshot, error) {
	var snapshot domain.Snapshot
	err := guard(s.breaker, func() error {
		var err error
		snapshot, err = s.inner.LoadSnapshot(ctx)
		return err
	})
	return snapshot, err
}

type breakerCatalog struct {
	inner   CatalogRepository
	breaker *gobreaker.CircuitBreaker
}

func (c *breakerCatalog) GetItem(ctx context.Context, itemID string) (domain.Item, error) {
	var item domain.Item
	err := guard(c.breaker, func() error {
		var err error
		item, err = c.inner.GetItem(ctx, itemID)
		return err
	})
	return item, err
}

// guard runs fn through the breaker. Errors that say nothing about source health are reported
// to the breaker as successes and returned to the caller unchanged.
func guard(cb *gobreaker.CircuitBreaker, fn func() error) error {
	var passthrough error
	_, err := cb.Execute(func() (interface{}, error) {
		callErr := fn()
		if callErr == nil {
			return nil, nil
		}
		if !countsAsFailure(callErr) {
			passthrough = callErr
			return nil, nil
		}
		return nil, callErr
	})
	switch {
	case errors.Is(err, gobreaker.ErrOpenState), errors.Is(err, gobreaker.ErrTooManyRequests):
		return NewCatalogError("breaker", CatalogErrorSourceUnavailable, "configuration source temporarily unavailable", fmt.Errorf("%w: %v", ErrSourceCircuitOpen, err))
	case err != nil:
		return err
	}
	return passthrough
}

func countsAsFailure(err error) bool {
	if errors.Is(err, context.Canceled) {
		return false
	}
	var repoErr RepositoryError
	if errors.As(err, &repoErr) {
		return !repoErr.IsNotFound()
	}
	return true
}
