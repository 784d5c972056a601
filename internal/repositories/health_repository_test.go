package repositories

import (
	"context"
	"errors"
	"testing"
	"time"

	domain "github.com/hanko-field/delivery/internal/domain"
)

func TestProbeHealthRepositoryCollectSuccess(t *testing.T) {
	probes := []Probe{
		{
			Name: "settings",
			Check: func(ctx context.Context) error {
				select {
				case <-time.After(5 * time.Millisecond):
					return nil
				case <-ctx.Done():
					return ctx.Err()
				}
			},
		},
		{Name: "catalog", Check: func(context.Context) error { return nil }},
	}

	now := time.Date(2024, time.October, 9, 12, 0, 0, 0, time.UTC)
	repo, err := NewProbeHealthRepository(probes,
		WithProbeClock(func() time.Time { return now }),
		WithProbeSource("file"),
	)
	if err != nil {
		t.Fatalf("NewProbeHealthRepository: %v", err)
	}

	report, err := repo.Collect(context.Background())
	if err != nil {
		t.Fatalf("Collect: %v", err)
	}
	if report.Status != domain.HealthStatusOK {
		t.Fatalf("expected status ok, got %s", report.Status)
	}
	if report.Source != "file" {
		t.Fatalf("expected source file, got %q", report.Source)
	}
	if len(report.Checks) != 2 {
		t.Fatalf("expected 2 checks, got %d", len(report.Checks))
	}
	for name, check := range report.Checks {
		if check.Status != domain.HealthStatusOK || check.CheckedAt != now {
			t.Fatalf("unexpected check %s: %+v", name, check)
		}
	}
	if report.GeneratedAt != now {
		t.Fatalf("expected generatedAt %s, got %s", now, report.GeneratedAt)
	}
}

func TestProbeHealthRepositoryOptionalFailureDegrades(t *testing.T) {
	expectedErr := errors.New("snapshot unreadable")
	repo, err := NewProbeHealthRepository([]Probe{
		{Name: "settings", Check: func(context.Context) error { return expectedErr }},
		{Name: "catalog", Check: func(context.Context) error { return nil }},
	})
	if err != nil {
		t.Fatalf("NewProbeHealthRepository: %v", err)
	}

	report, err := repo.Collect(context.Background())
	if err != nil {
		t.Fatalf("Collect: %v", err)
	}
	if report.Status != domain.HealthStatusDegraded {
		t.Fatalf("expected status degraded, got %s", report.Status)
	}
	if check := report.Checks["settings"]; check.Status != domain.HealthStatusDegraded || check.Error != expectedErr.Error() {
		t.Fatalf("unexpected settings check: %+v", check)
	}
}

func TestProbeHealthRepositoryRequiredFailureErrors(t *testing.T) {
	repo, err := NewProbeHealthRepository([]Probe{
		{Name: "settings", Required: true, Check: func(context.Context) error { return errors.New("down") }},
	})
	if err != nil {
		t.Fatalf("NewProbeHealthRepository: %v", err)
	}
	report, _ := repo.Collect(context.Background())
	if report.Status != domain.HealthStatusError {
		t.Fatalf("expected status error, got %s", report.Status)
	}
}

func TestProbeHealthRepositoryTimeout(t *testing.T) {
	repo, err := NewProbeHealthRepository([]Probe{
		{
			Name:    "firestore",
			Timeout: 5 * time.Millisecond,
			Check: func(ctx context.Context) error {
				select {
				case <-time.After(time.Second):
					return nil
				case <-ctx.Done():
					return ctx.Err()
				}
			},
		},
	})
	if err != nil {
		t.Fatalf("NewProbeHealthRepository: %v", err)
	}

	report, err := repo.Collect(context.Background())
	if err != nil {
		t.Fatalf("Collect: %v", err)
	}
	check := report.Checks["firestore"]
	if report.Status != domain.HealthStatusError || check.Detail != "timeout" {
		t.Fatalf("expected timeout error, got %+v", check)
	}
}

func TestNewProbeHealthRepositoryValidation(t *testing.T) {
	if _, err := NewProbeHealthRepository(nil); err == nil {
		t.Fatalf("expected error for empty probes")
	}
	if _, err := NewProbeHealthRepository([]Probe{{Name: " ", Check: func(context.Context) error { return nil }}}); err == nil {
		t.Fatalf("expected error for unnamed probe")
	}
	if _, err := NewProbeHealthRepository([]Probe{{Name: "settings"}}); err == nil {
		t.Fatalf("expected error for missing check")
	}
}
