package adapters

import (
	"net/http"
	"sync"

	"github.com/go-chi/chi/v5"
	"github.com/swam244/flux/internal/config"
	"github.com/swam244/flux/internal/limiter"
	"github.com/swam244/flux/internal/scripts"
)

// Factory builds a Limiter for a named preset, shared by RouteLimiter across
// every mux route so each preset's Limiter (and the store/registry it holds)
// is constructed at most once per process.
type Factory func(presetName string) (*limiter.Limiter, error)

// RouteLimiter lazily builds one Limiter per preset name and exposes a
// chi-friendly middleware per route, replacing the closure-cached singleton
// pattern with an explicit, inspectable cache.
type RouteLimiter struct {
	build Factory

	mu      sync.Mutex
	handles map[string]*limiter.LazyHandle[*limiter.Limiter]
}

// NewRouteLimiter builds a RouteLimiter backed by cfg, store, registry and
// emitter; build is invoked at most once per distinct preset name.
func NewRouteLimiter(cfg config.Config, store limiter.Store, registry *scripts.Registry, emitter limiter.Emitter) *RouteLimiter {
	return &RouteLimiter{
		build: func(presetName string) (*limiter.Limiter, error) {
			return limiter.FromConfig(cfg, presetName, store, registry, emitter)
		},
		handles: map[string]*limiter.LazyHandle[*limiter.Limiter]{},
	}
}

func (rl *RouteLimiter) handle(presetName string) *limiter.LazyHandle[*limiter.Limiter] {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	if h, ok := rl.handles[presetName]; ok {
		return h
	}
	h := limiter.NewLazyHandle(func() (*limiter.Limiter, error) {
		return rl.build(presetName)
	})
	rl.handles[presetName] = h
	return h
}

// Middleware returns a chi-compatible middleware applying presetName's
// Limiter, labeling analytics events with the route's chi pattern when
// available (falling back to endpoint when chi has no match, e.g. in tests).
func (rl *RouteLimiter) Middleware(presetName string, extractor Extractor, endpoint string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			l, err := rl.handle(presetName).Get()
			if err != nil {
				http.Error(w, "rate limiter unavailable", http.StatusInternalServerError)
				return
			}

			ep := endpoint
			if rctx := chi.RouteContext(r.Context()); rctx != nil && rctx.RoutePattern() != "" {
				ep = rctx.RoutePattern()
			}

			NetHTTP(l, extractor, Options{Endpoint: ep})(next).ServeHTTP(w, r)
		})
	}
}
