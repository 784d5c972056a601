package di

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	domain "github.com/hanko-field/delivery/internal/domain"
	"github.com/hanko-field/delivery/internal/platform/config"
	"github.com/hanko-field/delivery/internal/platform/observability"
	"github.com/hanko-field/delivery/internal/repositories"
	"github.com/hanko-field/delivery/internal/services"
)

// Services bundles the service-layer contracts that handlers rely upon.
type Services struct {
	Delivery services.DeliveryService
	Health   services.HealthService
}

// Container wires repositories and services for runtime use.
type Container struct {
	Config       config.Config
	Repositories repositories.Registry
	Services     Services
}

// Option customises container construction.
type Option func(*containerOptions)

type containerOptions struct {
	logger *zap.Logger
	build  services.BuildInfo
	clock  func() time.Time
}

// WithLogger sets the logger backing the estimation event port.
func WithLogger(logger *zap.Logger) Option {
	return func(o *containerOptions) {
		o.logger = logger
	}
}

// WithBuildInfo sets build metadata reported by readiness checks.
func WithBuildInfo(info services.BuildInfo) Option {
	return func(o *containerOptions) {
		o.build = info
	}
}

// WithClock overrides the clock used by services, primarily for tests.
func WithClock(clock func() time.Time) Option {
	return func(o *containerOptions) {
		if clock != nil {
			o.clock = clock
		}
	}
}

// NewContainer constructs the runtime dependencies on top of reg.
func NewContainer(ctx context.Context, cfg config.Config, reg repositories.Registry, opts ...Option) (*Container, error) {
	if reg == nil {
		return nil, errors.New("repositories registry is required")
	}

	options := containerOptions{clock: time.Now}
	for _, opt := range opts {
		if opt != nil {
			opt(&options)
		}
	}
	if options.logger == nil {
		options.logger = zap.NewNop()
	}

	svc, err := buildServices(ctx, reg, cfg, options)
	if err != nil {
		return nil, err
	}

	return &Container{
		Config:       cfg,
		Repositories: reg,
		Services:     svc,
	}, nil
}

// Close releases resources such as repository clients.
func (c *Container) Close(ctx context.Context) error {
	if c == nil || c.Repositories == nil {
		return nil
	}
	return c.Repositories.Close(ctx)
}

func buildServices(_ context.Context, reg repositories.Registry, cfg config.Config, opts containerOptions) (Services, error) {
	var svc Services

	metrics, err := services.NewEstimatorMetrics(nil)
	if err != nil {
		opts.logger.Warn("estimator metrics partially registered", zap.Error(err))
	}

	deliverySvc, err := services.NewDeliveryService(services.DeliveryServiceDeps{
		Settings: reg.Settings(),
		Catalog:  reg.Catalog(),
		Defaults: EstimationDefaults(cfg.Estimation),
		Clock:    opts.clock,
		Logger:   observability.CoreLogger(opts.logger),
		Metrics:  metrics,
	})
	if err != nil {
		return Services{}, fmt.Errorf("build delivery service: %w", err)
	}
	svc.Delivery = deliverySvc

	if healthRepo := reg.Health(); healthRepo != nil {
		build := opts.build
		if build.StartedAt.IsZero() {
			build.StartedAt = opts.clock().UTC()
		}
		healthSvc, err := services.NewHealthService(services.HealthServiceDeps{
			HealthRepository: healthRepo,
			Clock:            opts.clock,
			Build:            build,
		})
		if err != nil {
			return Services{}, fmt.Errorf("build health service: %w", err)
		}
		svc.Health = healthSvc
	}

	return svc, nil
}

// EstimationDefaults converts the environment estimation config into settings overlaid onto
// stored snapshots.
func EstimationDefaults(cfg config.EstimationConfig) domain.Settings {
	settings := domain.Settings{
		CutoffTime:          strings.TrimSpace(cfg.CutoffTime),
		ProcessingDays:      cfg.ProcessingDays,
		DefaultLeadTimeDays: cfg.DefaultLeadTimeDays,
		MaxVisibleStock:     cfg.MaxVisibleStock,
		Location:            cfg.Location(),
	}
	if strings.TrimSpace(cfg.SurchargeStacking) != "" {
		settings.SurchargeStacking = domain.ParseStackingStrategy(cfg.SurchargeStacking)
	}
	if raw := strings.TrimSpace(cfg.FreeShippingThreshold); raw != "" {
		if threshold, err := decimal.NewFromString(raw); err == nil {
			settings.FreeShippingThreshold = &threshold
		}
	}
	return settings
}
