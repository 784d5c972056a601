package firestore

import (
	"context"
	"errors"
	"time"

	"github.com/hanko-field/delivery/internal/platform/config"
	pfirestore "github.com/hanko-field/delivery/internal/platform/firestore"
	"github.com/hanko-field/delivery/internal/repositories"
)

const probeTimeout = 2 * time.Second

// Registry serves settings and catalog data from Firestore collections.
type Registry struct {
	provider *pfirestore.Provider
	settings *SettingsRepository
	catalog  *CatalogRepository
	health   repositories.HealthRepository
}

var _ repositories.Registry = (*Registry)(nil)

// NewRegistry builds the Firestore-backed repositories sharing one client provider.
func NewRegistry(provider *pfirestore.Provider, cfg config.FirestoreConfig) (*Registry, error) {
	if provider == nil {
		return nil, errors.New("firestore registry: provider is required")
	}
	settings, err := NewSettingsRepository(provider, cfg.SettingsCollection)
	if err != nil {
		return nil, err
	}
	catalog, err := NewCatalogRepository(provider, cfg.CatalogCollection)
	if err != nil {
		return nil, err
	}
	health, err := repositories.NewProbeHealthRepository([]repositories.Probe{
		{Name: "firestore.settings", Timeout: probeTimeout, Required: true, Check: settings.Ping},
		{Name: "firestore.catalog", Timeout: probeTimeout, Check: catalog.Ping},
	}, repositories.WithProbeSource(config.SourceFirestore))
	if err != nil {
		return nil, err
	}
	return &Registry{
		provider: provider,
		settings: settings,
		catalog:  catalog,
		health:   health,
	}, nil
}

// Close releases the Firestore client.
func (r *Registry) Close(ctx context.Context) error {
	return r.provider.Close(ctx)
}

func (r *Registry) Settings() repositories.SettingsRepository { return r.settings }

func (r *Registry) Catalog() repositories.CatalogRepository { return r.catalog }

func (r *Registry) Health() repositories.HealthRepository { return r.health }
