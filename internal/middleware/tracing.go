package middleware

import (
	"fmt"
	"net/http"

	"github.com/go-chi/chi/v5"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

// Tracing names each span after chi's matched route pattern so spans stay
// low-cardinality ("POST /api/v1/checkout/{invoiceID}/generate" rather than
// one span name per invoice). The pattern is only known after chi has
// routed, hence the wrap around the inner handler.
func Tracing() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			operation := r.Method + " " + r.URL.Path
			if rctx := chi.RouteContext(r.Context()); rctx != nil && rctx.RoutePattern() != "" {
				operation = fmt.Sprintf("%s %s", r.Method, rctx.RoutePattern())
			}
			otelhttp.NewHandler(next, operation).ServeHTTP(w, r)
		})
	}
}
