package wire

import "errors"

// ErrConnection wraps transport or reachability failures. Initial connect
// failures carry the literal "Redis Connection Failed" substring for
// compatibility with callers that grep log output for it.
var ErrConnection = errors.New("Redis Connection Failed")

// ErrPoolExhausted is returned when Borrow times out waiting for a free slot.
var ErrPoolExhausted = errors.New("wire: pool exhausted")

// ErrCommand wraps a well-formed error reply from the store (wrong type,
// syntax error, script semantics). It is never retried.
var ErrCommand = errors.New("wire: command error")
