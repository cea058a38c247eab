package speechsession

import "sync"

// frResult is a single attempt's outcome. Once its done channel is
// closed, value and err are immutable, so readers never need to
// synchronize on them beyond observing the close.
type frResult[T any] struct {
	done  chan struct{}
	value T
	err   error
}

// singleFlightFuture caches the in-flight or most recently resolved result
// of an idempotent async operation so concurrent callers share one
// attempt. Unlike golang.org/x/sync/singleflight, a successful result is
// retained after completion until explicitly invalidated — callers decide
// when a cached success is no longer usable (e.g. because the underlying
// connection transitioned to Disconnected). A failed attempt is never
// cached: the next call always retries.
type singleFlightFuture[T any] struct {
	mu      sync.Mutex
	pending *frResult[T]
	cached  *frResult[T]
}

// run returns the cached value if one is present and not invalidated,
// joins an in-flight attempt if one exists, or starts fn. invalidate
// reports whether a previously cached success must be discarded before
// being returned.
func (f *singleFlightFuture[T]) run(fn func() (T, error), invalidate func(T) bool) (T, error) {
	f.mu.Lock()
	if f.cached != nil {
		if invalidate != nil && invalidate(f.cached.value) {
			f.cached = nil
		} else {
			r := f.cached
			f.mu.Unlock()
			return r.value, r.err
		}
	}
	if f.pending != nil {
		r := f.pending
		f.mu.Unlock()
		<-r.done
		return r.value, r.err
	}

	r := &frResult[T]{done: make(chan struct{})}
	f.pending = r
	f.mu.Unlock()

	r.value, r.err = fn()
	close(r.done)

	f.mu.Lock()
	if f.pending == r {
		f.pending = nil
	}
	if r.err == nil {
		f.cached = r
	}
	f.mu.Unlock()

	return r.value, r.err
}

// reset discards any cached success, forcing the next run call to retry.
func (f *singleFlightFuture[T]) reset() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.cached = nil
}
