package logging

import (
	"context"
	"log/slog"
	"time"
)

// OperationTimer tracks the duration of an operation for logging
type OperationTimer struct {
	logger    *slog.Logger
	operation string
	startTime time.Time
	ctx       context.Context
}

// StartTimer creates a new operation timer
func StartTimer(ctx context.Context, logger *slog.Logger, operation string) *OperationTimer {
	startTime := time.Now()

	// Preserve existing context but ensure we have a request ID
	if GetRequestID(ctx) == "" {
		ctx = NewRequestContext(ctx, operation)
	}

	timer := &OperationTimer{
		logger:    logger,
		operation: operation,
		startTime: startTime,
		ctx:       ctx,
	}

	logger.DebugContext(ctx, "Operation started",
		slog.String("operation", operation),
		slog.String("request_id", GetRequestID(ctx)),
	)

	return timer
}

// End completes the timer and logs the duration
func (t *OperationTimer) End() time.Duration {
	duration := time.Since(t.startTime)

	t.logger.InfoContext(t.ctx, "Operation completed",
		slog.String("operation", t.operation),
		slog.String("request_id", GetRequestID(t.ctx)),
		slog.Duration("duration", duration),
	)

	return duration
}

// EndWithError completes the timer and logs the duration with an error
func (t *OperationTimer) EndWithError(err error) time.Duration {
	duration := time.Since(t.startTime)

	if err != nil {
		t.logger.ErrorContext(t.ctx, "Operation failed",
			slog.String("operation", t.operation),
			slog.String("request_id", GetRequestID(t.ctx)),
			slog.Duration("duration", duration),
			slog.String("error", err.Error()),
		)
	} else {
		t.logger.InfoContext(t.ctx, "Operation completed",
			slog.String("operation", t.operation),
			slog.String("request_id", GetRequestID(t.ctx)),
			slog.Duration("duration", duration),
		)
	}

	return duration
}
