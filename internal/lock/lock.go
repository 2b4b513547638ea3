// Package lock serializes work on a key, such as concurrent verifications
// of one payment reference.
package lock

import (
	"context"
	"errors"
	"time"
)

// ErrNotAcquired is returned when the wait for a lock ends without it.
var ErrNotAcquired = errors.New("lock: not acquired")

// Locker hands out exclusive locks on string keys.
type Locker interface {
	// Acquire blocks until the key is locked, ctx is done, or the wait
	// times out. The returned release function is safe to call once.
	Acquire(ctx context.Context, key string) (release func(), err error)
}

// Options tunes lock behavior.
type Options struct {
	// TTL bounds how long a crashed holder can keep a distributed lock.
	TTL time.Duration
	// Wait bounds how long Acquire waits for a held lock.
	Wait time.Duration
	// Retry is the polling interval while waiting.
	Retry time.Duration
}

func (o Options) withDefaults() Options {
	if o.TTL <= 0 {
		o.TTL = 30 * time.Second
	}
	if o.Wait <= 0 {
		o.Wait = 10 * time.Second
	}
	if o.Retry <= 0 {
		o.Retry = 50 * time.Millisecond
	}
	return o
}
