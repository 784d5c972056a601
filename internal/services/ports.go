package services

import (
	"context"

	domain "github.com/hanko-field/delivery/internal/domain"
)

// EventLogger receives structured diagnostic events from the estimation core. The core never
// depends on a concrete logging library.
type EventLogger = func(ctx context.Context, event string, fields map[string]any)

// ValueExtractor resolves the values an item carries for a condition. It is owned by the
// catalog collaborator; the matcher only compares the returned sets.
type ValueExtractor func(item domain.Item, cond domain.AttributeCondition) []string

func noopLogger(context.Context, string, map[string]any) {}

func loggerOrNoop(logger EventLogger) EventLogger {
	if logger == nil {
		return noopLogger
	}
	return logger
}
