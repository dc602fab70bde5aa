// Package logging builds the zap logger used by all binaries and enriches it with request context.
package logging

import (
	"context"
	"strings"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"saas-core/backend/internal/platform/requestctx"
)

// FieldFunc extracts log fields from request-scoped values owned by other packages (tenant binding,
// principal) without this package importing them.
type FieldFunc func(ctx context.Context) []zap.Field

// New returns a JSON production logger, or a console logger when env is "development".
// level is parsed with zapcore ("debug", "info", "warn", "error"); unknown levels fall back to info.
func New(level, env string) (*zap.Logger, error) {
	lvl, err := zapcore.ParseLevel(strings.TrimSpace(level))
	if err != nil {
		lvl = zapcore.InfoLevel
	}
	var cfg zap.Config
	if env == "development" {
		cfg = zap.NewDevelopmentConfig()
	} else {
		cfg = zap.NewProductionConfig()
	}
	cfg.Level = zap.NewAtomicLevelAt(lvl)
	return cfg.Build()
}

// FromContext returns base enriched with the request id and any fields produced by extra.
// A nil base yields a no-op logger.
func FromContext(ctx context.Context, base *zap.Logger, extra ...FieldFunc) *zap.Logger {
	if base == nil {
		base = zap.NewNop()
	}
	if ctx == nil {
		return base
	}
	var fields []zap.Field
	if id := requestctx.RequestIDFromContext(ctx); id != "" {
		fields = append(fields, zap.String("request_id", id))
	}
	for _, f := range extra {
		if f != nil {
			fields = append(fields, f(ctx)...)
		}
	}
	if len(fields) == 0 {
		return base
	}
	return base.With(fields...)
}
