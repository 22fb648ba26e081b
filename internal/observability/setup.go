package observability

import (
	"context"
	"net/http"

	"github.com/honeynil/GymLedgerService/internal/infrastructure/observability"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Setup initializes logging, metrics and tracing and returns the tracer
// shutdown function together with the metrics handler.
func Setup(serviceName, logLevel, otlpEndpoint string) (func(context.Context) error, http.Handler) {
	observability.InitLogger(logLevel)
	observability.InitMetrics()
	tracerShutdown := observability.InitTracing(serviceName, otlpEndpoint)
	return tracerShutdown, promhttp.Handler()
}
