package snapshot

import (
	"context"
	"errors"
	"time"

	"github.com/hanko-field/delivery/internal/repositories"
)

const probeTimeout = 3 * time.Second

// Registry serves settings and catalog data from a single snapshot repository.
type Registry struct {
	repo    *Repository
	health  repositories.HealthRepository
	closers []func() error
}

var _ repositories.Registry = (*Registry)(nil)

// NewRegistry wraps repo. sourceName labels readiness reports; closers run on Close.
func NewRegistry(repo *Repository, sourceName string, closers ...func() error) (*Registry, error) {
	if repo == nil {
		return nil, errors.New("snapshot registry: repository is required")
	}
	health, err := repositories.NewProbeHealthRepository([]repositories.Probe{
		{Name: "snapshot", Timeout: probeTimeout, Required: true, Check: repo.Ping},
	}, repositories.WithProbeSource(sourceName))
	if err != nil {
		return nil, err
	}
	return &Registry{repo: repo, health: health, closers: closers}, nil
}

// Close runs the registered closers and joins their errors.
func (r *Registry) Close(context.Context) error {
	var errs []error
	for _, closer := range r.closers {
		if closer == nil {
			continue
		}
		if err := closer(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (r *Registry) Settings() repositories.SettingsRepository { return r.repo }

func (r *Registry) Catalog() repositories.CatalogRepository { return r.repo }

func (r *Registry) Health() repositories.HealthRepository { return r.health }
