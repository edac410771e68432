// Package ratelimit enforces a shared request quota across server processes.
package ratelimit

import (
	"context"
	"time"
)

// CounterStore is a shared counter with atomic increment-and-expire
// semantics. All mutation goes through Increment; there is no client-side
// read-modify-write, so concurrent increments from any number of processes
// are linearized by the store itself.
type CounterStore interface {
	// Increment atomically increments the counter for key and returns the
	// post-increment value together with the time left until the counter's
	// window expires. When the increment creates the counter, the
	// implementation sets it to expire after window.
	Increment(ctx context.Context, key string, window time.Duration) (int64, time.Duration, error)

	// Close releases the store connection.
	Close() error
}
