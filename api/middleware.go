package api

import (
	"context"
	"log/slog"
	"time"

	"github.com/jacentio/grove/fault"
)

// RequestLogger logs one line per request once the chain below it is done.
func RequestLogger(logger *slog.Logger) Step {
	if logger == nil {
		logger = slog.Default()
	}
	return func(ctx context.Context, c *Context, next Next) error {
		start := time.Now()
		err := next(ctx)

		attrs := []any{
			"action", c.Action,
			"uid", c.UID.String(),
			"duration", time.Since(start),
		}
		if err != nil {
			attrs = append(attrs, "kind", fault.KindOf(err).String(), "error", err)
			logger.InfoContext(ctx, "request rejected", attrs...)
			return err
		}
		logger.InfoContext(ctx, "request served", attrs...)
		return nil
	}
}

// Deny rejects every request reaching it with msg.
func Deny(msg string) Step {
	return func(context.Context, *Context, Next) error {
		return fault.Validationf("%s", msg)
	}
}
