// Package scripts embeds the four rate-limiting policy scripts and tracks
// the content-addressed digest the store assigns to each after SCRIPT LOAD.
package scripts

import (
	"context"
	_ "embed"
	"fmt"
	"sync"
)

// Policy names a supported rate-limiting algorithm.
type Policy string

// Supported policies.
const (
	GCRA        Policy = "gcra"
	TokenBucket Policy = "token_bucket"
	LeakyBucket Policy = "leaky_bucket"
	FixedWindow Policy = "fixed_window"
)

// Valid reports whether p is one of the four supported policies.
func (p Policy) Valid() bool {
	switch p {
	case GCRA, TokenBucket, LeakyBucket, FixedWindow:
		return true
	default:
		return false
	}
}

var (
	//go:embed gcra.lua
	gcraSource string
	//go:embed token_bucket.lua
	tokenBucketSource string
	//go:embed leaky_bucket.lua
	leakyBucketSource string
	//go:embed fixed_window.lua
	fixedWindowSource string
)

var source = map[Policy]string{
	GCRA:        gcraSource,
	TokenBucket: tokenBucketSource,
	LeakyBucket: leakyBucketSource,
	FixedWindow: fixedWindowSource,
}

var order = []Policy{GCRA, TokenBucket, LeakyBucket, FixedWindow}

// Loader loads a script's text into the store and returns its digest. It is
// satisfied by the wire client's ScriptLoad method.
type Loader interface {
	ScriptLoad(ctx context.Context, source string) (digest string, err error)
}

// Registry holds script source and store-assigned digests for each policy.
type Registry struct {
	loader Loader

	mu      sync.RWMutex
	digests map[Policy]string
}

// NewRegistry constructs a Registry backed by loader.
func NewRegistry(loader Loader) *Registry {
	return &Registry{
		loader:  loader,
		digests: make(map[Policy]string, len(order)),
	}
}

// Preload loads all four policy scripts and returns the count loaded.
func (r *Registry) Preload(ctx context.Context) (int, error) {
	loaded := 0
	for _, policy := range order {
		if _, err := r.load(ctx, policy); err != nil {
			return loaded, err
		}
		loaded++
	}
	return loaded, nil
}

// Lookup returns the source text and digest for policy, loading it lazily
// when no digest has been recorded yet.
func (r *Registry) Lookup(ctx context.Context, policy Policy) (text string, digest string, err error) {
	text, ok := source[policy]
	if !ok {
		return "", "", fmt.Errorf("scripts: unknown policy %q", policy)
	}

	r.mu.RLock()
	digest, ok = r.digests[policy]
	r.mu.RUnlock()
	if ok {
		return text, digest, nil
	}

	digest, err = r.load(ctx, policy)
	if err != nil {
		return "", "", err
	}
	return text, digest, nil
}

func (r *Registry) load(ctx context.Context, policy Policy) (string, error) {
	text, ok := source[policy]
	if !ok {
		return "", fmt.Errorf("scripts: unknown policy %q", policy)
	}
	digest, err := r.loader.ScriptLoad(ctx, text)
	if err != nil {
		return "", fmt.Errorf("scripts: load %s: %w", policy, err)
	}
	r.mu.Lock()
	r.digests[policy] = digest
	r.mu.Unlock()
	return digest, nil
}

// PolicyForSource reverse-looks-up which policy a given script source text
// belongs to. Used by in-memory Store fakes that recognize a script by
// content rather than by interpreting Lua.
func PolicyForSource(text string) (Policy, bool) {
	for _, p := range order {
		if source[p] == text {
			return p, true
		}
	}
	return "", false
}

// Source returns the embedded script text for policy.
func Source(policy Policy) (string, bool) {
	text, ok := source[policy]
	return text, ok
}

// Digests returns a snapshot of currently known policy digests.
func (r *Registry) Digests() map[Policy]string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make(map[Policy]string, len(r.digests))
	for k, v := range r.digests {
		out[k] = v
	}
	return out
}
