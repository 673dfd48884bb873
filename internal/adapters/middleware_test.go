package adapters

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/swam244/flux/internal/config"
	"github.com/swam244/flux/internal/limiter"
	"github.com/swam244/flux/internal/scripts"
)

type noopLoader struct{ n int }

func (n *noopLoader) ScriptLoad(_ context.Context, _ string) (string, error) {
	n.n++
	return "digest", nil
}

func testConfig() config.Config {
	cfg := config.Default()
	cfg.RateLimit = config.RateLimitDefaults{Policy: "fixed_window", Requests: 2, Period: 60}
	cfg.RateLimits = map[string]config.Preset{
		"strict": {Policy: "fixed_window", Requests: 1, Period: 60},
	}
	return cfg
}

func TestNetHTTPAllowsThenDenies(t *testing.T) {
	cfg := testConfig()
	store := limiter.NewMemoryStore()
	registry := scripts.NewRegistry(&noopLoader{})
	l, err := limiter.FromConfig(cfg, "", store, registry, nil)
	require.NoError(t, err)

	mw := NetHTTP(l, RemoteAddrExtractor, Options{Endpoint: "home"})
	handler := mw(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.RemoteAddr = "10.0.0.1:1234"

	rec1 := httptest.NewRecorder()
	handler.ServeHTTP(rec1, req)
	assert.Equal(t, http.StatusOK, rec1.Code)

	rec2 := httptest.NewRecorder()
	handler.ServeHTTP(rec2, req)
	assert.Equal(t, http.StatusOK, rec2.Code)

	rec3 := httptest.NewRecorder()
	handler.ServeHTTP(rec3, req)
	assert.Equal(t, http.StatusTooManyRequests, rec3.Code)
	assert.NotEmpty(t, rec3.Header().Get("Retry-After"))
}

func TestNetHTTPUsesFallbackWhenNoRemoteAddr(t *testing.T) {
	cfg := testConfig()
	store := limiter.NewMemoryStore()
	registry := scripts.NewRegistry(&noopLoader{})
	l, err := limiter.FromConfig(cfg, "", store, registry, nil)
	require.NoError(t, err)

	mw := NetHTTP(l, RemoteAddrExtractor, Options{Fallback: "anon"})
	handler := mw(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.RemoteAddr = ""
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestRouteLimiterBuildsOncePerPreset(t *testing.T) {
	cfg := testConfig()
	store := limiter.NewMemoryStore()
	registry := scripts.NewRegistry(&noopLoader{})
	rl := NewRouteLimiter(cfg, store, registry, nil)
	builds := 0
	build := rl.build
	rl.build = func(presetName string) (*limiter.Limiter, error) {
		builds++
		return build(presetName)
	}

	r := chi.NewRouter()
	r.With(rl.Middleware("strict", RemoteAddrExtractor, "checkout")).Get("/checkout", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})

	req := httptest.NewRequest(http.MethodGet, "/checkout", nil)
	req.RemoteAddr = "10.0.0.2:1"

	rec1 := httptest.NewRecorder()
	r.ServeHTTP(rec1, req)
	assert.Equal(t, http.StatusOK, rec1.Code)

	rec2 := httptest.NewRecorder()
	r.ServeHTTP(rec2, req)
	assert.Equal(t, http.StatusTooManyRequests, rec2.Code)
	assert.Equal(t, 1, builds)
}

func TestChainExtractorsFallsThrough(t *testing.T) {
	chain := ChainExtractors(HeaderExtractor("X-API-Key"), RemoteAddrExtractor)

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.RemoteAddr = "10.0.0.3:1"
	key, ok := chain.ExtractKey(req)
	require.True(t, ok)
	assert.Contains(t, key, "ip:")

	req.Header.Set("X-API-Key", "abc123")
	key, ok = chain.ExtractKey(req)
	require.True(t, ok)
	assert.Contains(t, key, "hdr:X-API-Key:abc123")
}
