package service

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

const instrumentationName = "saas-core/identity"

type authMetrics struct {
	signIns        metric.Int64Counter
	refreshes      metric.Int64Counter
	reuse          metric.Int64Counter
	verifications  metric.Int64Counter
	impersonations metric.Int64Counter
}

func newAuthMetrics() authMetrics {
	meter := otel.Meter(instrumentationName)
	signIns, _ := meter.Int64Counter("auth.sign_in", metric.WithDescription("Sign-in attempts by result"))
	refreshes, _ := meter.Int64Counter("auth.refresh", metric.WithDescription("Refresh attempts by result"))
	reuse, _ := meter.Int64Counter("auth.token_reuse_detected", metric.WithDescription("Refresh tokens presented after rotation"))
	verifications, _ := meter.Int64Counter("auth.verify", metric.WithDescription("Access verifications by result"))
	impersonations, _ := meter.Int64Counter("auth.impersonation", metric.WithDescription("Impersonation transitions"))
	return authMetrics{
		signIns:        signIns,
		refreshes:      refreshes,
		reuse:          reuse,
		verifications:  verifications,
		impersonations: impersonations,
	}
}

func count(ctx context.Context, c metric.Int64Counter, result string) {
	if c == nil {
		return
	}
	c.Add(ctx, 1, metric.WithAttributes(attribute.String("result", result)))
}
