package adapters

import (
	"net/http"

	"github.com/google/uuid"

	"github.com/swam244/flux/internal/limiter"
	"github.com/swam244/flux/internal/observability"
)

// Options configures a middleware builder.
type Options struct {
	// Endpoint labels analytics events emitted by hits through this
	// middleware; leave empty to omit per-endpoint breakdown.
	Endpoint string
	// Fallback is used when Extractor cannot derive a fingerprint (e.g. no
	// remote address available). Defaults to "anonymous".
	Fallback string
	// OnDenied customizes the 429 response; defaults to writeDenied.
	OnDenied func(w http.ResponseWriter, r *http.Request, result limiter.Result)
}

func (o Options) fallback() string {
	if o.Fallback != "" {
		return o.Fallback
	}
	return "anonymous"
}

func (o Options) onDenied() func(http.ResponseWriter, *http.Request, limiter.Result) {
	if o.OnDenied != nil {
		return o.OnDenied
	}
	return writeDenied
}

func writeDenied(w http.ResponseWriter, _ *http.Request, result limiter.Result) {
	for k, v := range result.ToHeaders() {
		w.Header().Set(k, v)
	}
	w.WriteHeader(http.StatusTooManyRequests)
	_, _ = w.Write([]byte(`{"error":"rate limit exceeded"}`))
}

// NetHTTP wraps next with a standard net/http middleware that evaluates one
// Hit per request using extractor to derive the fingerprint.
func NetHTTP(l *limiter.Limiter, extractor Extractor, opts Options) func(http.Handler) http.Handler {
	fallback := opts.fallback()
	onDenied := opts.onDenied()

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			fingerprint, ok := extractor.ExtractKey(r)
			if !ok {
				fingerprint = fallback
			}

			requestID := r.Header.Get("X-Request-ID")
			if requestID == "" {
				requestID = uuid.NewString()
			}
			ctx := observability.ContextWithRequestID(r.Context(), requestID)
			logger := observability.LoggerFromContext(ctx).With("request_id", requestID)
			ctx = observability.ContextWithLogger(ctx, logger)

			result, err := l.Hit(ctx, fingerprint, opts.Endpoint)
			if err != nil {
				http.Error(w, "rate limiter unavailable", http.StatusInternalServerError)
				return
			}

			for k, v := range result.ToHeaders() {
				w.Header().Set(k, v)
			}
			if !result.Allowed {
				onDenied(w, r, result)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
