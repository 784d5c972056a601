package repositories

import (
	"context"

	domain "github.com/hanko-field/delivery/internal/domain"
)

// Registry exposes the repositories backing delivery estimation and their lifecycle.
type Registry interface {
	Close(ctx context.Context) error

	Settings() SettingsRepository
	Catalog() CatalogRepository
	Health() HealthRepository
}

// RepositoryError wraps low-level persistence failures with categorisation used by handlers.
type RepositoryError interface {
	error
	IsNotFound() bool
	IsUnavailable() bool
}

// SettingsRepository loads the delivery configuration snapshot: calendar, shipping methods,
// surcharges and estimation settings. Malformed entries are normalised, never rejected.
type SettingsRepository interface {
	LoadSnapshot(ctx context.Context) (domain.Snapshot, error)
}

// CatalogRepository resolves catalog items including their parent for variants.
type CatalogRepository interface {
	GetItem(ctx context.Context, itemID string) (domain.Item, error)
}

// HealthRepository probes backing dependencies for readiness checks.
type HealthRepository interface {
	Collect(ctx context.Context) (domain.HealthReport, error)
}
