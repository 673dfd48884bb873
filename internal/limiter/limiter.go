// Package limiter implements the rate-limiting façade: it composes the
// script registry, the store seam, jitter and analytics emission into a
// single Hit decision per fingerprint.
package limiter

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/swam244/flux/internal/analytics"
	"github.com/swam244/flux/internal/config"
	"github.com/swam244/flux/internal/observability"
	"github.com/swam244/flux/internal/scripts"
)

// Emitter appends an analytics event for a completed hit. Satisfied by
// *analytics.Producer; emission errors are logged, never surfaced to callers.
type Emitter interface {
	Emit(ctx context.Context, event analytics.Event) error
}

// Params are the effective policy parameters a Limiter was built with.
type Params struct {
	Policy   scripts.Policy
	Requests int
	Period   int
	Burst    int
}

// Limiter evaluates hits against one policy/parameter set.
type Limiter struct {
	store    Store
	registry *scripts.Registry
	params   Params

	keyPrefix     string
	jitterEnabled bool
	jitterMaxMS   int
	failSilently  bool

	analyticsEnabled bool
	emitter          Emitter

	now func() time.Time
}

// New builds a Limiter from a fully resolved preset. cfg supplies the
// ambient behavior (key prefix, jitter, fail_silently, analytics toggle);
// preset supplies the policy parameters.
func New(cfg config.Config, preset config.Preset, store Store, registry *scripts.Registry, emitter Emitter) (*Limiter, error) {
	policy := scripts.Policy(preset.Policy)
	if !policy.Valid() {
		return nil, fmt.Errorf("%w: unknown policy %q", ErrScript, preset.Policy)
	}
	return &Limiter{
		store:    store,
		registry: registry,
		params: Params{
			Policy:   policy,
			Requests: preset.Requests,
			Period:   preset.Period,
			Burst:    preset.EffectiveBurst(),
		},
		keyPrefix:        cfg.Flux.KeyPrefix,
		jitterEnabled:    cfg.Flux.JitterEnabled,
		jitterMaxMS:      cfg.Flux.JitterMaxMS,
		failSilently:     cfg.Flux.FailSilently,
		analyticsEnabled: cfg.Flux.AnalyticsEnabled,
		emitter:          emitter,
		now:              time.Now,
	}, nil
}

// FromConfig builds a Limiter from a named preset in cfg, falling back to
// [rate_limit] defaults when name is empty or unknown.
func FromConfig(cfg config.Config, name string, store Store, registry *scripts.Registry, emitter Emitter) (*Limiter, error) {
	return New(cfg, cfg.Preset(name), store, registry, emitter)
}

// Overrides selectively replaces fields of a named preset; nil fields are
// left untouched. This supports per-call-site tuning (spec.md §9's
// decorator override-merge behavior) without requiring a second named preset.
type Overrides struct {
	Policy   *string
	Requests *int
	Period   *int
	Burst    *int
}

// FromConfigWithOverrides resolves the named preset (or defaults), then
// applies any non-nil fields from overrides before building the Limiter.
func FromConfigWithOverrides(cfg config.Config, name string, overrides Overrides, store Store, registry *scripts.Registry, emitter Emitter) (*Limiter, error) {
	preset := cfg.Preset(name)
	if overrides.Policy != nil {
		preset.Policy = *overrides.Policy
	}
	if overrides.Requests != nil {
		preset.Requests = *overrides.Requests
	}
	if overrides.Period != nil {
		preset.Period = *overrides.Period
	}
	if overrides.Burst != nil {
		preset.Burst = *overrides.Burst
	}
	return New(cfg, preset, store, registry, emitter)
}

// key derives the store key for a fingerprint: prefix + hex(sha256(fp)).
func (l *Limiter) key(fingerprint string) string {
	sum := sha256.Sum256([]byte(fingerprint))
	return l.keyPrefix + hex.EncodeToString(sum[:])
}

// Hit evaluates one request against fingerprint's bucket and returns the
// decision. endpoint is only used to label the analytics event; pass "" when
// not tracking per-endpoint stats.
func (l *Limiter) Hit(ctx context.Context, fingerprint, endpoint string) (Result, error) {
	key := l.key(fingerprint)

	text, digest, err := l.registry.Lookup(ctx, l.params.Policy)
	if err != nil {
		return l.onFailure(ctx, err)
	}

	now := float64(l.now().UnixNano()) / 1e9
	args := l.scriptArgs(now)

	raw, err := l.store.EvalScript(ctx, digest, text, []string{key}, args...)
	if err != nil {
		return l.onFailure(ctx, err)
	}

	result, err := l.parseResult(raw)
	if err != nil {
		return l.onFailure(ctx, err)
	}

	if l.jitterEnabled {
		result.RetryAfter = applyJitter(result.RetryAfter, l.jitterMaxMS)
	}

	outcome := "denied"
	if result.Allowed {
		outcome = "allowed"
	}
	observability.RateLimitHitsTotal.WithLabelValues(string(l.params.Policy), outcome).Inc()

	if l.analyticsEnabled && l.emitter != nil {
		l.emitAsync(ctx, key, endpoint, result)
	}

	return result, nil
}

// Check is a synonym for Hit with no endpoint label.
func (l *Limiter) Check(ctx context.Context, fingerprint string) (Result, error) {
	return l.Hit(ctx, fingerprint, "")
}

// IsAllowed is a thin wrapper around Hit returning just the allowed bit.
// Any evaluation error is treated as denied unless fail_silently resolved it
// to an allowed Result already.
func (l *Limiter) IsAllowed(ctx context.Context, fingerprint string) bool {
	result, err := l.Check(ctx, fingerprint)
	if err != nil {
		return false
	}
	return result.Allowed
}

func (l *Limiter) scriptArgs(now float64) []interface{} {
	switch l.params.Policy {
	case scripts.GCRA:
		return []interface{}{now, l.params.Period, l.params.Requests, l.params.Burst, 1}
	case scripts.TokenBucket:
		return []interface{}{now, l.params.Period, l.params.Requests, l.params.Burst}
	case scripts.LeakyBucket:
		return []interface{}{now, l.params.Period, l.params.Requests, l.params.Burst}
	case scripts.FixedWindow:
		return []interface{}{now, l.params.Period, l.params.Requests}
	default:
		return nil
	}
}

func (l *Limiter) parseResult(raw interface{}) (Result, error) {
	vals, ok := raw.([]interface{})
	if !ok || len(vals) < 3 {
		return Result{}, fmt.Errorf("%w: unexpected script reply %#v", ErrScript, raw)
	}
	status := toInt(vals[0])
	retryAfterSec := toInt(vals[1])
	remaining := toInt(vals[2])

	if remaining < 0 {
		remaining = 0
	}
	retryAfter := time.Duration(retryAfterSec) * time.Second
	if retryAfter < 0 {
		retryAfter = 0
	}

	return Result{
		Allowed:    status == 0,
		Remaining:  remaining,
		RetryAfter: retryAfter,
		Policy:     l.params.Policy,
		Limit:      int64(l.params.Requests),
		ResetAt:    l.now().Add(time.Duration(l.params.Period) * time.Second),
	}, nil
}

func toInt(v interface{}) int64 {
	switch t := v.(type) {
	case int64:
		return t
	case int:
		return int64(t)
	case float64:
		return int64(t)
	default:
		return 0
	}
}

// onFailure implements §7's fail_silently semantics: infra/script failures
// become a fully-allowed Result when fail_silently is set, otherwise the
// error is wrapped and surfaced.
func (l *Limiter) onFailure(ctx context.Context, err error) (Result, error) {
	logger := observability.LoggerFromContext(ctx)
	if l.failSilently {
		observability.StoreFailuresTotal.WithLabelValues("failed_open").Inc()
		logger.Warn("rate limiter store failure, failing open", slog.Any("error", err))
		return Result{
			Allowed:   true,
			Remaining: int64(l.params.Requests),
			Policy:    l.params.Policy,
			Limit:     int64(l.params.Requests),
			ResetAt:   l.now().Add(time.Duration(l.params.Period) * time.Second),
		}, nil
	}
	observability.StoreFailuresTotal.WithLabelValues("propagated").Inc()
	return Result{}, fmt.Errorf("limiter: hit failed: %w", err)
}

func (l *Limiter) emitAsync(ctx context.Context, key, endpoint string, result Result) {
	event := analytics.Event{
		TimestampMS: l.now().UnixMilli(),
		Key:         key,
		Endpoint:    endpoint,
		Policy:      string(result.Policy),
		Allowed:     result.Allowed,
		Remaining:   result.Remaining,
		RetryAfter:  result.RetryAfter.Seconds(),
	}
	logger := observability.LoggerFromContext(ctx)
	requestID := observability.RequestIDFromContext(ctx)
	go func() {
		emitCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		if err := l.emitter.Emit(emitCtx, event); err != nil && !errors.Is(err, context.Canceled) {
			logger.Warn("analytics emission failed",
				slog.String("key", key),
				slog.String("request_id", requestID),
				slog.Any("error", err))
		}
	}()
}
