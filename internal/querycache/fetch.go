package querycache

import (
	"context"
	"time"

	"go.uber.org/zap"
)

// FetchFunc loads the value of one entry. It must honour ctx cancellation.
type FetchFunc func(ctx context.Context) (any, error)

// QueryOptions tune one query.
type QueryOptions struct {
	// StaleTime is how long fetched data counts as fresh. Zero means every
	// read refetches.
	StaleTime time.Duration
	// GCTime is how long the entry survives once nothing observes it.
	GCTime time.Duration
	// Retry is applied to failed fetches before the error is surfaced.
	Retry RetryPolicy
}

// Fetch returns the data cached under key when it is fresh and otherwise runs
// fn, caching its result. Concurrent fetches of one key share a single call.
func (s *Store) Fetch(ctx context.Context, key Key, fn FetchFunc, opts QueryOptions) (any, error) {
	s.mu.Lock()
	e := s.entry(key)
	if opts.GCTime > e.gcTime {
		e.gcTime = opts.GCTime
	}
	if e.hasData && !e.invalidated && s.now().Sub(e.updatedAt) < opts.StaleTime {
		data := e.data
		s.stats.Hits++
		s.mu.Unlock()
		s.recorder.Hit(key.scope())
		return data, nil
	}
	s.stats.Misses++
	s.mu.Unlock()
	s.recorder.Miss(key.scope())

	ch := s.group.DoChan(key.Hash(), func() (interface{}, error) {
		return s.runFetch(ctx, key, fn, opts)
	})

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case res := <-ch:
		return res.Val, res.Err
	}
}

func (s *Store) runFetch(parent context.Context, key Key, fn FetchFunc, opts QueryOptions) (any, error) {
	// The fetch is shared between callers, so one caller going away must not
	// cancel it. Only CancelQueries does.
	fctx, cancel := context.WithCancel(context.WithoutCancel(parent))
	inf := &inflight{cancel: cancel, done: make(chan struct{})}
	defer close(inf.done)
	defer cancel()

	hash := key.Hash()
	s.mu.Lock()
	e := s.entry(key)
	e.fetch = inf
	writeSeq, invalidSeq := e.writeSeq, e.invalidSeq
	s.stats.Fetches++
	s.mu.Unlock()

	start := time.Now()
	data, err := run(fctx, opts.Retry, fn)
	s.recorder.Fetched(key.scope(), time.Since(start), err)

	var events []Event
	s.mu.Lock()
	if inf.cancelled {
		if s.entries[hash] == e {
			s.scheduleGC(e)
		}
		s.mu.Unlock()
		s.logger.Debug("Discarded cancelled fetch", zap.Stringer("key", key))
		return nil, ErrCancelled
	}
	if e.fetch == inf {
		e.fetch = nil
	}
	current := s.entries[hash] == e
	switch {
	case err != nil:
		s.stats.FetchErrors++
		if current {
			e.err = err
		}
	case current && e.writeSeq == writeSeq:
		e.data = data
		e.hasData = true
		e.err = nil
		e.updatedAt = s.now()
		e.invalidated = e.invalidSeq != invalidSeq
		events = append(events, Event{Type: EventUpdated, Key: e.key})
	}
	if current {
		s.scheduleGC(e)
	}
	s.mu.Unlock()

	s.dispatch(events)
	if err != nil {
		s.logger.Debug("Query fetch failed", zap.Stringer("key", key), zap.Error(err))
		return nil, err
	}
	return data, nil
}

// Observer is a live subscription to one query. While at least one observer
// is open the entry is never garbage collected.
type Observer struct {
	store   *Store
	key     Key
	fn      FetchFunc
	opts    QueryOptions
	enabled bool
	closed  bool
}

// Observe registers an observer of key. A disabled observer never fetches
// and does not hold the entry.
func (s *Store) Observe(key Key, fn FetchFunc, opts QueryOptions, enabled bool) *Observer {
	o := &Observer{store: s, key: key, fn: fn, opts: opts, enabled: enabled}
	if !enabled {
		return o
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	e := s.entry(key)
	e.observers++
	if opts.GCTime > e.gcTime {
		e.gcTime = opts.GCTime
	}
	if e.gcTimer != nil {
		e.gcTimer.Stop()
		e.gcTimer = nil
	}
	return o
}

// Key is the observed key.
func (o *Observer) Key() Key { return o.key }

// Enabled reports whether the observer may fetch.
func (o *Observer) Enabled() bool { return o.enabled }

// Get reads through the cache.
func (o *Observer) Get(ctx context.Context) (any, error) {
	if !o.enabled {
		return nil, ErrDisabled
	}
	return o.store.Fetch(ctx, o.key, o.fn, o.opts)
}

// Refetch ignores freshness and fetches again.
func (o *Observer) Refetch(ctx context.Context) (any, error) {
	if !o.enabled {
		return nil, ErrDisabled
	}
	o.store.Invalidate(Exact(o.key))
	return o.store.Fetch(ctx, o.key, o.fn, o.opts)
}

// Peek returns the cached data without fetching.
func (o *Observer) Peek() (any, bool) {
	if !o.enabled {
		return nil, false
	}
	return o.store.Get(o.key)
}

// Subscribe reports changes of the observed entry.
func (o *Observer) Subscribe(fn func(Event)) (unsubscribe func()) {
	return o.store.Subscribe(Exact(o.key), fn)
}

// Close releases the observer. The entry is collected after its GC time
// once no observer remains.
func (o *Observer) Close() {
	if !o.enabled {
		return
	}
	s := o.store
	s.mu.Lock()
	defer s.mu.Unlock()
	if o.closed {
		return
	}
	o.closed = true

	e, ok := s.entries[o.key.Hash()]
	if !ok || e.observers == 0 {
		return
	}
	e.observers--
	if e.observers == 0 {
		if e.hasData || e.fetch != nil {
			s.scheduleGC(e)
		} else {
			s.drop(o.key.Hash(), e)
		}
	}
}
