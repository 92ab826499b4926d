package httpmiddleware

import (
	"net/http"

	sdkapp "github.com/go-faster/sdk/app"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

// Instrument wraps the handler with OpenTelemetry HTTP instrumentation.
// Span names use the matched route pattern so metric cardinality is not
// exploded by raw paths.
func Instrument(service string, m *sdkapp.Telemetry) Middleware {
	return func(next http.Handler) http.Handler {
		return otelhttp.NewHandler(next, service,
			otelhttp.WithTracerProvider(m.TracerProvider()),
			otelhttp.WithMeterProvider(m.MeterProvider()),
			otelhttp.WithSpanNameFormatter(func(operation string, r *http.Request) string {
				if p := r.Pattern; p != "" {
					return p
				}
				return operation
			}),
		)
	}
}
