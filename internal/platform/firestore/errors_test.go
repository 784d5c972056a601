package firestore

import (
	"context"
	"errors"
	"testing"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

func TestWrapErrorClassification(t *testing.T) {
	cases := []struct {
		name        string
		err         error
		notFound    bool
		unavailable bool
	}{
		{name: "not found", err: status.Error(codes.NotFound, "missing"), notFound: true},
		{name: "unavailable", err: status.Error(codes.Unavailable, "down"), unavailable: true},
		{name: "exhausted", err: status.Error(codes.ResourceExhausted, "quota"), unavailable: true},
		{name: "invalid", err: status.Error(codes.InvalidArgument, "bad")},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			err := WrapError("delivery_settings.get", tc.err)
			if IsNotFound(err) != tc.notFound {
				t.Fatalf("IsNotFound = %v, want %v", IsNotFound(err), tc.notFound)
			}
			if IsUnavailable(err) != tc.unavailable {
				t.Fatalf("IsUnavailable = %v, want %v", IsUnavailable(err), tc.unavailable)
			}
			if !errors.Is(err, tc.err) {
				t.Fatalf("expected wrapped error to unwrap to original")
			}
			if got := err.Error(); got == "" || got[:len("delivery_settings.get")] != "delivery_settings.get" {
				t.Fatalf("expected op prefix, got %q", got)
			}
		})
	}
}

func TestWrapErrorPassesThroughCancellation(t *testing.T) {
	if err := WrapError("op", context.Canceled); !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
	if err := WrapError("op", status.Error(codes.DeadlineExceeded, "slow")); !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("expected context.DeadlineExceeded, got %v", err)
	}
	if WrapError("op", nil) != nil {
		t.Fatalf("expected nil for nil error")
	}
}

func TestWrapErrorKeepsExistingClassification(t *testing.T) {
	inner := WrapError("", status.Error(codes.NotFound, "missing"))
	outer := WrapError("delivery_items.get", inner)
	var repoErr *Error
	if !errors.As(outer, &repoErr) {
		t.Fatalf("expected *Error, got %T", outer)
	}
	if repoErr.op != "delivery_items.get" || !repoErr.IsNotFound() {
		t.Fatalf("unexpected error: %+v", repoErr)
	}
}
