package cache

import (
	"context"
	"sync"
	"time"
)

// Fetcher loads the value for a source's current key.
type Fetcher[V any] func(ctx context.Context) (V, error)

// State is a point-in-time view of a source. Data is nil until something
// has been loaded; Err holds the last fetch failure without clearing Data.
type State[V any] struct {
	Data    *V
	Loading bool
	Err     error
}

type SourceOptions struct {
	TTL time.Duration
	// StaleWhileRevalidate surfaces an expired cache entry immediately
	// while a background fetch replaces it.
	StaleWhileRevalidate bool
}

// Source binds one cache key and one fetcher to reactive state. Reads go
// through the shared Cache; a fresh hit is returned synchronously with no
// fetch, otherwise a background fetch runs and only the most recently
// started fetch may update state (superseded results are discarded).
type Source[V any] struct {
	cache *Cache[V]
	fetch Fetcher[V]
	opts  SourceOptions

	mu     sync.Mutex
	key    string
	gen    uint64 // bumped whenever in-flight fetches must be discarded
	state  State[V]
	closed bool

	updates chan struct{}
}

func NewSource[V any](c *Cache[V], key string, fetch Fetcher[V], opts SourceOptions) *Source[V] {
	s := &Source[V]{
		cache:   c,
		fetch:   fetch,
		opts:    opts,
		key:     key,
		updates: make(chan struct{}, 1),
	}
	s.mu.Lock()
	s.loadLocked(context.Background(), false)
	s.mu.Unlock()
	return s
}

// State returns a snapshot of the current view.
func (s *Source[V]) State() State[V] {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Updates signals (coalesced) whenever state changes. Consumers select on
// it the way a UI subscription would.
func (s *Source[V]) Updates() <-chan struct{} {
	return s.updates
}

// Revalidate re-runs the fetcher regardless of cache freshness.
func (s *Source[V]) Revalidate(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	s.startFetchLocked(ctx)
}

// Mutate writes v straight into the cache and local state, bypassing the
// fetcher. Used after a known-good server response to skip a redundant
// round trip. Any in-flight fetch is superseded so a slow stale response
// cannot clobber the write.
func (s *Source[V]) Mutate(v V) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	s.gen++
	s.cache.Set(s.key, v, s.opts.TTL)
	s.state = State[V]{Data: &v}
	s.notifyLocked()
}

// Invalidate removes the cache entry and clears local state; the next
// consumer fetches fresh.
func (s *Source[V]) Invalidate() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	s.gen++
	s.cache.Delete(s.key)
	s.state = State[V]{}
	s.notifyLocked()
}

// SetKey rebinds the source to a new key, superseding any in-flight fetch
// for the old one, and loads the new key.
func (s *Source[V]) SetKey(ctx context.Context, key string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed || key == s.key {
		return
	}
	s.key = key
	s.gen++
	s.state = State[V]{}
	s.loadLocked(ctx, true)
}

// Close detaches the source: in-flight fetches are discarded and no
// further state updates occur.
func (s *Source[V]) Close() {
	s.mu.Lock()
	s.closed = true
	s.gen++
	s.mu.Unlock()
}

// loadLocked implements the read-through: fresh hit -> synchronous data;
// stale hit with SWR -> stale data now, fetch in background; miss -> fetch.
// The lookup goes through Peek, not Get: Get lazily evicts an expired
// entry, which would destroy the stale value before the SWR branch (or a
// failed refresh) could surface it.
func (s *Source[V]) loadLocked(ctx context.Context, notify bool) {
	v, fresh, ok := s.cache.Peek(s.key)
	if ok && fresh {
		s.state = State[V]{Data: &v}
		if notify {
			s.notifyLocked()
		}
		return
	}
	if ok && s.opts.StaleWhileRevalidate {
		// Stale data stays visible while the fetch runs; it is never
		// hidden behind a blocking spinner.
		s.state = State[V]{Data: &v, Loading: true}
		if notify {
			s.notifyLocked()
		}
		s.startFetchLocked(ctx)
		return
	}
	s.state = State[V]{Loading: true}
	if notify {
		s.notifyLocked()
	}
	s.startFetchLocked(ctx)
}

func (s *Source[V]) startFetchLocked(ctx context.Context) {
	s.gen++
	gen := s.gen
	key := s.key
	s.state.Loading = true
	s.notifyLocked()

	go func() {
		v, err := s.fetch(ctx)

		s.mu.Lock()
		defer s.mu.Unlock()
		if s.closed || gen != s.gen {
			// a newer fetch, mutation, or key change superseded this result
			return
		}
		s.state.Loading = false
		if err != nil {
			s.state.Err = err
			if s.state.Data == nil {
				if stale, ok := s.cache.GetStale(key); ok {
					s.state.Data = &stale
				}
			}
			s.notifyLocked()
			return
		}
		s.cache.Set(key, v, s.opts.TTL)
		s.state.Data = &v
		s.state.Err = nil
		s.notifyLocked()
	}()
}

func (s *Source[V]) notifyLocked() {
	select {
	case s.updates <- struct{}{}:
	default:
	}
}
