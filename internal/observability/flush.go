package observability

import (
	"context"
	"errors"
	"fmt"
	"io"

	"go.uber.org/zap"
)

// FlushTelemetry flushes telemetry buffers and closes the given resources
// (store clients) before process exit. Prometheus is pull-based, so this
// mainly flushes logs. Call during graceful shutdown after in-flight requests
// have drained.
func FlushTelemetry(ctx context.Context, logger *zap.Logger, closers ...io.Closer) error {
	var errs []error
	for _, c := range closers {
		if c == nil {
			continue
		}
		if err := c.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close: %w", err))
		}
	}
	if ctx.Err() != nil {
		errs = append(errs, ctx.Err())
	}
	if logger != nil {
		// Sync on stderr returns EINVAL on some platforms; not actionable.
		_ = logger.Sync()
	}
	return errors.Join(errs...)
}
