package services

import (
	"context"
	"errors"
	"testing"
	"time"

	domain "github.com/hanko-field/delivery/internal/domain"
)

type stubHealthRepository struct {
	report domain.HealthReport
	err    error
	calls  int
}

func (s *stubHealthRepository) Collect(context.Context) (domain.HealthReport, error) {
	s.calls++
	return s.report, s.err
}

func TestHealthServiceEnrichesMetadata(t *testing.T) {
	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	now := start.Add(5 * time.Minute)
	repo := &stubHealthRepository{
		report: domain.HealthReport{
			Checks: map[string]domain.DependencyHealth{
				"firestore.settings": {Status: domain.HealthStatusOK},
			},
		},
	}

	svc, err := NewHealthService(HealthServiceDeps{
		HealthRepository: repo,
		Clock:            func() time.Time { return now },
		Build: BuildInfo{
			Version:     "1.2.3",
			CommitSHA:   "abc123",
			Environment: "prod",
			StartedAt:   start,
		},
	})
	if err != nil {
		t.Fatalf("NewHealthService: %v", err)
	}

	report, err := svc.HealthReport(context.Background())
	if err != nil {
		t.Fatalf("HealthReport: %v", err)
	}
	if report.Status != domain.HealthStatusOK {
		t.Fatalf("expected ok status, got %s", report.Status)
	}
	if report.Version != "1.2.3" || report.CommitSHA != "abc123" || report.Environment != "prod" {
		t.Fatalf("unexpected build metadata: %+v", report)
	}
	if report.Uptime != 5*time.Minute {
		t.Fatalf("expected uptime 5m, got %s", report.Uptime)
	}
	if !report.GeneratedAt.Equal(now) {
		t.Fatalf("expected generated at %s, got %s", now, report.GeneratedAt)
	}
}

func TestHealthServiceDerivesStatus(t *testing.T) {
	cases := []struct {
		name   string
		checks map[string]domain.DependencyHealth
		want   string
	}{
		{name: "empty", checks: nil, want: domain.HealthStatusOK},
		{name: "degraded", checks: map[string]domain.DependencyHealth{
			"a": {Status: domain.HealthStatusOK},
			"b": {Status: domain.HealthStatusDegraded},
		}, want: domain.HealthStatusDegraded},
		{name: "error wins", checks: map[string]domain.DependencyHealth{
			"a": {Status: domain.HealthStatusDegraded},
			"b": {Status: domain.HealthStatusError},
		}, want: domain.HealthStatusError},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			svc, err := NewHealthService(HealthServiceDeps{
				HealthRepository: &stubHealthRepository{report: domain.HealthReport{Checks: tc.checks}},
			})
			if err != nil {
				t.Fatalf("NewHealthService: %v", err)
			}
			report, err := svc.HealthReport(context.Background())
			if err != nil {
				t.Fatalf("HealthReport: %v", err)
			}
			if report.Status != tc.want {
				t.Fatalf("expected %s, got %s", tc.want, report.Status)
			}
			if report.Checks == nil {
				t.Fatal("expected non-nil checks map")
			}
		})
	}
}

func TestHealthServicePropagatesRepositoryError(t *testing.T) {
	boom := errors.New("collect failed")
	svc, err := NewHealthService(HealthServiceDeps{HealthRepository: &stubHealthRepository{err: boom}})
	if err != nil {
		t.Fatalf("NewHealthService: %v", err)
	}
	if _, err := svc.HealthReport(context.Background()); !errors.Is(err, boom) {
		t.Fatalf("expected repository error, got %v", err)
	}
}

func TestNewHealthServiceRequiresRepository(t *testing.T) {
	if _, err := NewHealthService(HealthServiceDeps{}); err == nil {
		t.Fatal("expected error")
	}
}
