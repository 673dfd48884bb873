package limiter

import "sync"

// LazyHandle holds a value built by a single call to Build on first Get,
// replacing the closure-cached singleton pattern a decorator would otherwise
// rely on with an explicit, thread-safe value any caller can hold and share.
type LazyHandle[T any] struct {
	once  sync.Once
	build func() (T, error)

	value T
	err   error
}

// NewLazyHandle returns a handle that calls build at most once, the first
// time Get is invoked by any goroutine.
func NewLazyHandle[T any](build func() (T, error)) *LazyHandle[T] {
	return &LazyHandle[T]{build: build}
}

// Get returns the built value, constructing it on the first call.
func (h *LazyHandle[T]) Get() (T, error) {
	h.once.Do(func() {
		h.value, h.err = h.build()
	})
	return h.value, h.err
}
