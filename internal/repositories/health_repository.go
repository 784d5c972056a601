package repositories

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	domain "github.com/hanko-field/delivery/internal/domain"
)

const defaultProbeTimeout = 1500 * time.Millisecond

// Probe describes a dependency check executed during readiness checks. Probes for optional
// dependencies report degraded on failure; required probes report error.
type Probe struct {
	Name     string
	Timeout  time.Duration
	Required bool
	Check    func(context.Context) error
}

// ProbeHealthOption customises the probe-backed health repository.
type ProbeHealthOption func(*probeHealthRepository)

// WithProbeTimeout overrides the timeout applied when a probe omits its own.
func WithProbeTimeout(timeout time.Duration) ProbeHealthOption {
	return func(repo *probeHealthRepository) {
		if timeout > 0 {
			repo.defaultTimeout = timeout
		}
	}
}

// WithProbeClock injects a custom clock primarily for tests.
func WithProbeClock(clock func() time.Time) ProbeHealthOption {
	return func(repo *probeHealthRepository) {
		if clock != nil {
			repo.now = clock
		}
	}
}

// WithProbeSource records which configuration source backs the service.
func WithProbeSource(source string) ProbeHealthOption {
	return func(repo *probeHealthRepository) {
		repo.source = strings.TrimSpace(source)
	}
}

type probeHealthRepository struct {
	probes         []Probe
	defaultTimeout time.Duration
	now            func() time.Time
	source         string
}

var _ HealthRepository = (*probeHealthRepository)(nil)

// NewProbeHealthRepository constructs a HealthRepository evaluating probes concurrently.
func NewProbeHealthRepository(probes []Probe, opts ...ProbeHealthOption) (HealthRepository, error) {
	if len(probes) == 0 {
		return nil, errors.New("health repository: at least one probe is required")
	}
	for _, probe := range probes {
		if strings.TrimSpace(probe.Name) == "" {
			return nil, errors.New("health repository: probe missing name")
		}
		if probe.Check == nil {
			return nil, fmt.Errorf("health repository: probe %s missing check function", probe.Name)
		}
	}

	repo := &probeHealthRepository{
		probes:         append([]Probe(nil), probes...),
		defaultTimeout: defaultProbeTimeout,
		now:            time.Now,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(repo)
		}
	}
	return repo, nil
}

func (r *probeHealthRepository) Collect(ctx context.Context) (domain.HealthReport, error) {
	if ctx == nil {
		return domain.HealthReport{}, errors.New("health repository: context is required")
	}

	results := make(map[string]domain.DependencyHealth, len(r.probes))
	var (
		wg sync.WaitGroup
		mu sync.Mutex
	)
	for _, probe := range r.probes {
		wg.Add(1)
		go func(probe Probe) {
			defer wg.Done()
			result := r.run(ctx, probe)
			mu.Lock()
			results[probe.Name] = result
			mu.Unlock()
		}(probe)
	}
	wg.Wait()

	return domain.HealthReport{
		Status:      overallStatus(results),
		Checks:      results,
		Source:      r.source,
		GeneratedAt: r.now(),
	}, nil
}

func (r *probeHealthRepository) run(ctx context.Context, probe Probe) domain.DependencyHealth {
	timeout := probe.Timeout
	if timeout <= 0 {
		timeout = r.defaultTimeout
	}
	probeCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	start := r.now()
	err := probe.Check(probeCtx)
	end := r.now()
	if err == nil && probeCtx.Err() != nil {
		err = probeCtx.Err()
	}

	result := domain.DependencyHealth{
		Status:    domain.HealthStatusOK,
		Detail:    "ok",
		Latency:   end.Sub(start),
		CheckedAt: end,
	}
	if err == nil {
		return result
	}

	result.Error = err.Error()
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		result.Status, result.Detail = domain.HealthStatusError, "timeout"
	case errors.Is(err, context.Canceled):
		result.Status, result.Detail = domain.HealthStatusError, "cancelled"
	case probe.Required:
		result.Status, result.Detail = domain.HealthStatusError, err.Error()
	default:
		result.Status, result.Detail = domain.HealthStatusDegraded, err.Error()
	}
	return result
}

func overallStatus(results map[string]domain.DependencyHealth) string {
	status := domain.HealthStatusOK
	for _, result := range results {
		switch result.Status {
		case domain.HealthStatusOK, "":
		case domain.HealthStatusError:
			return domain.HealthStatusError
		default:
			status = domain.HealthStatusDegraded
		}
	}
	return status
}
