package domain

import "time"

const (
	// HealthStatusOK indicates all dependencies are healthy.
	HealthStatusOK = "ok"
	// HealthStatusDegraded indicates a dependency failed but estimates can still be served.
	HealthStatusDegraded = "degraded"
	// HealthStatusError indicates a dependency timed out or was cancelled.
	HealthStatusError = "error"
)

// DependencyHealth describes the outcome of one readiness probe.
type DependencyHealth struct {
	Status    string
	Detail    string
	Error     string
	Latency   time.Duration
	CheckedAt time.Time
}

// HealthReport aggregates dependency status for the readiness endpoint.
type HealthReport struct {
	Status      string
	Checks      map[string]DependencyHealth
	Version     string
	CommitSHA   string
	Environment string
	Source      string
	Uptime      time.Duration
	GeneratedAt time.Time
}
