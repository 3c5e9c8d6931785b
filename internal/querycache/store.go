// Package querycache is an in-process asynchronous query cache. Entries are
// addressed by hierarchical keys and support read-through fetches with a
// freshness window, garbage collection of unobserved entries, prefix
// invalidation, cancellation of in-flight fetches, and snapshot/restore for
// optimistic mutations.
//
// All state lives in one explicit Store guarded by a mutex. Multi-step
// sequences that must not interleave with other cache operations run inside
// Store.Update as a single transaction.
package querycache

import (
	"context"
	"errors"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"
)

// DefaultGCTime is how long an unobserved entry survives when neither the
// store nor the query asks for something else.
const DefaultGCTime = 5 * time.Minute

var (
	// ErrCancelled is returned to callers whose fetch was cancelled by
	// CancelQueries. A cancelled fetch never writes to the cache.
	ErrCancelled = errors.New("querycache: fetch cancelled")

	// ErrDisabled is returned by a disabled query instead of fetching.
	ErrDisabled = errors.New("querycache: query disabled")
)

// EventType classifies a cache change.
type EventType int

const (
	EventUpdated EventType = iota + 1
	EventInvalidated
	EventRemoved
)

func (t EventType) String() string {
	switch t {
	case EventUpdated:
		return "updated"
	case EventInvalidated:
		return "invalidated"
	case EventRemoved:
		return "removed"
	default:
		return "unknown"
	}
}

// Event reports a change to the entry at Key.
type Event struct {
	Type EventType
	Key  Key
}

// Recorder receives cache metrics. Scopes are low-cardinality key prefixes.
type Recorder interface {
	Hit(scope string)
	Miss(scope string)
	Fetched(scope string, duration time.Duration, err error)
	Invalidated(scope string, count int)
	Evicted(scope string)
	RolledBack(mutation string)
}

type nopRecorder struct{}

func (nopRecorder) Hit(string)                           {}
func (nopRecorder) Miss(string)                          {}
func (nopRecorder) Fetched(string, time.Duration, error) {}
func (nopRecorder) Invalidated(string, int)              {}
func (nopRecorder) Evicted(string)                       {}
func (nopRecorder) RolledBack(string)                    {}

// Stats is a point-in-time view of cache activity.
type Stats struct {
	Entries       int    `json:"entries"`
	Hits          uint64 `json:"hits"`
	Misses        uint64 `json:"misses"`
	Fetches       uint64 `json:"fetches"`
	FetchErrors   uint64 `json:"fetchErrors"`
	Invalidations uint64 `json:"invalidations"`
	Evictions     uint64 `json:"evictions"`
	Rollbacks     uint64 `json:"rollbacks"`
}

// EntryState describes one cache entry.
type EntryState struct {
	Key         Key
	Data        any
	UpdatedAt   time.Time
	Invalidated bool
	Err         error
	Observers   int
	Fetching    bool
}

type entry struct {
	key         Key
	data        any
	hasData     bool
	err         error
	updatedAt   time.Time
	invalidated bool

	// writeSeq changes on every direct write, so a fetch that started
	// earlier knows its result is outdated. invalidSeq does the same for
	// invalidations.
	writeSeq   uint64
	invalidSeq uint64

	observers int
	gcTime    time.Duration
	gcTimer   *time.Timer
	fetch     *inflight
}

type inflight struct {
	cancel    context.CancelFunc
	done      chan struct{}
	cancelled bool
}

type listener struct {
	filter Filter
	fn     func(Event)
}

// Store is the process-wide query cache. Create one per client session with
// New and share it between every query and mutation.
type Store struct {
	mu        sync.Mutex
	entries   map[string]*entry
	listeners map[uint64]listener
	nextID    uint64
	stats     Stats
	closed    bool

	group    singleflight.Group
	logger   *zap.Logger
	recorder Recorder
	now      func() time.Time
	gcTime   time.Duration
}

// Option configures a Store.
type Option func(*Store)

// WithLogger sets the logger.
func WithLogger(logger *zap.Logger) Option {
	return func(s *Store) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithRecorder sets the metrics recorder.
func WithRecorder(r Recorder) Option {
	return func(s *Store) {
		if r != nil {
			s.recorder = r
		}
	}
}

// WithClock replaces time.Now for freshness checks.
func WithClock(now func() time.Time) Option {
	return func(s *Store) {
		if now != nil {
			s.now = now
		}
	}
}

// WithGCTime sets the default retention of unobserved entries.
func WithGCTime(d time.Duration) Option {
	return func(s *Store) {
		if d > 0 {
			s.gcTime = d
		}
	}
}

// New creates an empty store.
func New(opts ...Option) *Store {
	s := &Store{
		entries:   make(map[string]*entry),
		listeners: make(map[uint64]listener),
		logger:    zap.NewNop(),
		recorder:  nopRecorder{},
		now:       time.Now,
		gcTime:    DefaultGCTime,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// ============================================================================
// TRANSACTIONS
// ============================================================================

// Txn is a view of the store held under its lock. It must not escape the
// function passed to Update.
type Txn struct {
	s      *Store
	events []Event
}

// Update runs fn with the store locked. Nothing else reads or writes the
// cache until fn returns. Subscribers are notified afterwards.
func (s *Store) Update(fn func(tx *Txn)) {
	tx := &Txn{s: s}
	func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		fn(tx)
	}()
	s.dispatch(tx.events)
}

func (tx *Txn) emit(t EventType, key Key) {
	tx.events = append(tx.events, Event{Type: t, Key: key})
}

// Get returns the data cached under key.
func (tx *Txn) Get(key Key) (any, bool) {
	e, ok := tx.s.entries[key.Hash()]
	if !ok || !e.hasData {
		return nil, false
	}
	return e.data, true
}

// Set writes data under key and marks it fresh.
func (tx *Txn) Set(key Key, data any) {
	e := tx.s.entry(key)
	e.data = data
	e.hasData = true
	e.err = nil
	e.updatedAt = tx.s.now()
	e.invalidated = false
	e.writeSeq++
	tx.emit(EventUpdated, e.key)
	tx.s.scheduleGC(e)
}

// Invalidate marks every matching entry stale so its next read refetches.
// Data stays readable until then.
func (tx *Txn) Invalidate(f Filter) int {
	n := 0
	for _, e := range tx.s.entries {
		if !f.Matches(e.key) {
			continue
		}
		e.invalidated = true
		e.invalidSeq++
		n++
		tx.emit(EventInvalidated, e.key)
	}
	tx.s.stats.Invalidations += uint64(n)
	tx.s.recorder.Invalidated(f.Key.scope(), n)
	return n
}

// Remove drops the data of every matching entry and cancels their fetches.
// Entries that still have observers keep their bookkeeping and read as
// misses.
func (tx *Txn) Remove(f Filter) int {
	n := 0
	for hash, e := range tx.s.entries {
		if !f.Matches(e.key) {
			continue
		}
		tx.s.cancelFetch(hash, e)
		if e.hasData {
			n++
		}
		e.data = nil
		e.hasData = false
		e.err = nil
		e.invalidated = false
		e.writeSeq++
		if e.observers == 0 {
			tx.s.drop(hash, e)
		}
		tx.emit(EventRemoved, e.key)
	}
	return n
}

// CancelFetches cancels the in-flight fetches of every matching entry and
// returns channels that close once each fetch has returned.
func (tx *Txn) CancelFetches(f Filter) []<-chan struct{} {
	var done []<-chan struct{}
	for hash, e := range tx.s.entries {
		if e.fetch == nil || !f.Matches(e.key) {
			continue
		}
		done = append(done, e.fetch.done)
		tx.s.cancelFetch(hash, e)
	}
	return done
}

// Snapshot captures every matching entry that holds data. An exact filter
// also records the absence of its key so Restore can undo a later write.
func (tx *Txn) Snapshot(f Filter) Snapshot {
	var snap Snapshot
	for _, e := range tx.s.entries {
		if !e.hasData || !f.Matches(e.key) {
			continue
		}
		snap.entries = append(snap.entries, snapshotEntry{
			key:         e.key,
			present:     true,
			data:        e.data,
			updatedAt:   e.updatedAt,
			invalidated: e.invalidated,
		})
	}
	if f.Exact && len(snap.entries) == 0 {
		snap.entries = append(snap.entries, snapshotEntry{key: f.Key})
	}
	return snap
}

// Restore puts every snapshotted entry back exactly as it was captured.
func (tx *Txn) Restore(snap Snapshot) {
	for _, se := range snap.entries {
		if !se.present {
			hash := se.key.Hash()
			e, ok := tx.s.entries[hash]
			if !ok || !e.hasData {
				continue
			}
			e.data = nil
			e.hasData = false
			e.writeSeq++
			if e.observers == 0 {
				tx.s.drop(hash, e)
			}
			tx.emit(EventRemoved, se.key)
			continue
		}

		e := tx.s.entry(se.key)
		e.data = se.data
		e.hasData = true
		e.err = nil
		e.updatedAt = se.updatedAt
		e.invalidated = se.invalidated
		e.writeSeq++
		tx.emit(EventUpdated, e.key)
		tx.s.scheduleGC(e)
	}
}

// ============================================================================
// STORE OPERATIONS
// ============================================================================

// Get returns the data cached under key without fetching.
func (s *Store) Get(key Key) (data any, ok bool) {
	s.Update(func(tx *Txn) { data, ok = tx.Get(key) })
	return data, ok
}

// Set writes data under key.
func (s *Store) Set(key Key, data any) {
	s.Update(func(tx *Txn) { tx.Set(key, data) })
}

// Invalidate marks every entry selected by f stale.
func (s *Store) Invalidate(f Filter) (n int) {
	s.Update(func(tx *Txn) { n = tx.Invalidate(f) })
	s.logger.Debug("Invalidated queries", zap.Stringer("key", f.Key), zap.Bool("exact", f.Exact), zap.Int("count", n))
	return n
}

// Remove drops every entry selected by f.
func (s *Store) Remove(f Filter) (n int) {
	s.Update(func(tx *Txn) { n = tx.Remove(f) })
	return n
}

// Snapshot captures the entries selected by f.
func (s *Store) Snapshot(f Filter) (snap Snapshot) {
	s.Update(func(tx *Txn) { snap = tx.Snapshot(f) })
	return snap
}

// Restore writes a snapshot back.
func (s *Store) Restore(snap Snapshot) {
	s.Update(func(tx *Txn) { tx.Restore(snap) })
}

// CancelQueries cancels the in-flight fetches selected by f and waits until
// they have returned or ctx ends.
func (s *Store) CancelQueries(ctx context.Context, f Filter) error {
	var done []<-chan struct{}
	s.Update(func(tx *Txn) { done = tx.CancelFetches(f) })

	for _, d := range done {
		select {
		case <-d:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return nil
}

// Peek describes the entry at key, if the store knows it.
func (s *Store) Peek(key Key) (EntryState, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.entries[key.Hash()]
	if !ok {
		return EntryState{}, false
	}
	return EntryState{
		Key:         e.key,
		Data:        e.data,
		UpdatedAt:   e.updatedAt,
		Invalidated: e.invalidated,
		Err:         e.err,
		Observers:   e.observers,
		Fetching:    e.fetch != nil,
	}, e.hasData
}

// Keys lists the keys selected by f that hold data.
func (s *Store) Keys(f Filter) []Key {
	s.mu.Lock()
	defer s.mu.Unlock()

	var keys []Key
	for _, e := range s.entries {
		if e.hasData && f.Matches(e.key) {
			keys = append(keys, e.key)
		}
	}
	return keys
}

// GCTime is how long an unobserved entry is retained.
func (s *Store) GCTime() time.Duration { return s.gcTime }

// Stats returns cache counters.
func (s *Store) Stats() Stats {
	s.mu.Lock()
	defer s.mu.Unlock()

	stats := s.stats
	for _, e := range s.entries {
		if e.hasData {
			stats.Entries++
		}
	}
	return stats
}

// Subscribe calls fn for every event on an entry selected by f. The returned
// function removes the subscription.
func (s *Store) Subscribe(f Filter, fn func(Event)) (unsubscribe func()) {
	s.mu.Lock()
	id := s.nextID
	s.nextID++
	s.listeners[id] = listener{filter: f, fn: fn}
	s.mu.Unlock()

	return func() {
		s.mu.Lock()
		delete(s.listeners, id)
		s.mu.Unlock()
	}
}

// Close cancels every fetch and stops garbage collection timers.
func (s *Store) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.closed = true
	for hash, e := range s.entries {
		s.cancelFetch(hash, e)
		if e.gcTimer != nil {
			e.gcTimer.Stop()
			e.gcTimer = nil
		}
	}
}

func (s *Store) rolledBack(mutation string) {
	s.mu.Lock()
	s.stats.Rollbacks++
	s.mu.Unlock()
	s.recorder.RolledBack(mutation)
}

// ============================================================================
// INTERNALS (callers hold s.mu)
// ============================================================================

func (s *Store) entry(key Key) *entry {
	hash := key.Hash()
	e, ok := s.entries[hash]
	if !ok {
		e = &entry{key: NewKey(key...), gcTime: s.gcTime}
		s.entries[hash] = e
	}
	return e
}

func (s *Store) cancelFetch(hash string, e *entry) {
	if e.fetch == nil {
		return
	}
	e.fetch.cancelled = true
	e.fetch.cancel()
	e.fetch = nil
	s.group.Forget(hash)
}

func (s *Store) drop(hash string, e *entry) {
	if e.gcTimer != nil {
		e.gcTimer.Stop()
		e.gcTimer = nil
	}
	delete(s.entries, hash)
}

func (s *Store) scheduleGC(e *entry) {
	if e.observers > 0 || s.closed {
		return
	}
	if e.gcTimer != nil {
		e.gcTimer.Stop()
	}
	hash := e.key.Hash()
	e.gcTimer = time.AfterFunc(e.gcTime, func() { s.collect(hash, e) })
}

func (s *Store) collect(hash string, e *entry) {
	s.mu.Lock()
	if s.entries[hash] != e || e.observers > 0 || e.fetch != nil || s.closed {
		s.mu.Unlock()
		return
	}
	delete(s.entries, hash)
	s.stats.Evictions++
	s.mu.Unlock()

	s.recorder.Evicted(e.key.scope())
	s.logger.Debug("Evicted unused query", zap.Stringer("key", e.key))
	s.dispatch([]Event{{Type: EventRemoved, Key: e.key}})
}

func (s *Store) dispatch(events []Event) {
	if len(events) == 0 {
		return
	}

	s.mu.Lock()
	listeners := make([]listener, 0, len(s.listeners))
	for _, l := range s.listeners {
		listeners = append(listeners, l)
	}
	s.mu.Unlock()

	for _, ev := range events {
		for _, l := range listeners {
			if l.filter.Matches(ev.Key) {
				l.fn(ev)
			}
		}
	}
}

// Snapshot is a captured copy of cache entries used to roll back an
// optimistic write.
type Snapshot struct {
	entries []snapshotEntry
}

type snapshotEntry struct {
	key         Key
	present     bool
	data        any
	updatedAt   time.Time
	invalidated bool
}

// Len is the number of captured entries.
func (s Snapshot) Len() int { return len(s.entries) }

// Keys lists the captured keys.
func (s Snapshot) Keys() []Key {
	keys := make([]Key, len(s.entries))
	for i, e := range s.entries {
		keys[i] = e.key
	}
	return keys
}
