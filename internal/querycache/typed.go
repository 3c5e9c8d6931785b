package querycache

import (
	"context"
	"fmt"
)

// Query is a typed Observer.
type Query[T any] struct {
	obs *Observer
}

// NewQuery observes key, loading it with fn.
func NewQuery[T any](s *Store, key Key, fn func(context.Context) (T, error), opts QueryOptions, enabled bool) *Query[T] {
	wrapped := func(ctx context.Context) (any, error) {
		return fn(ctx)
	}
	return &Query[T]{obs: s.Observe(key, wrapped, opts, enabled)}
}

// Key is the observed key.
func (q *Query[T]) Key() Key { return q.obs.Key() }

// Enabled reports whether the query may fetch.
func (q *Query[T]) Enabled() bool { return q.obs.Enabled() }

// Get reads through the cache.
func (q *Query[T]) Get(ctx context.Context) (T, error) {
	data, err := q.obs.Get(ctx)
	if err != nil {
		var zero T
		return zero, err
	}
	return cast[T](q.obs.key, data)
}

// Refetch fetches regardless of freshness.
func (q *Query[T]) Refetch(ctx context.Context) (T, error) {
	data, err := q.obs.Refetch(ctx)
	if err != nil {
		var zero T
		return zero, err
	}
	return cast[T](q.obs.key, data)
}

// Peek returns the cached value without fetching.
func (q *Query[T]) Peek() (T, bool) {
	data, ok := q.obs.Peek()
	if !ok {
		var zero T
		return zero, false
	}
	v, err := cast[T](q.obs.key, data)
	return v, err == nil
}

// Subscribe reports changes of the observed entry.
func (q *Query[T]) Subscribe(fn func(Event)) func() { return q.obs.Subscribe(fn) }

// Close releases the query.
func (q *Query[T]) Close() { q.obs.Close() }

// GetData reads a typed value from the cache.
func GetData[T any](s *Store, key Key) (T, bool) {
	data, ok := s.Get(key)
	if !ok {
		var zero T
		return zero, false
	}
	v, err := cast[T](key, data)
	return v, err == nil
}

// TxGet reads a typed value inside a transaction.
func TxGet[T any](tx *Txn, key Key) (T, bool) {
	data, ok := tx.Get(key)
	if !ok {
		var zero T
		return zero, false
	}
	v, err := cast[T](key, data)
	return v, err == nil
}

// FetchData is the typed form of Store.Fetch.
func FetchData[T any](ctx context.Context, s *Store, key Key, fn func(context.Context) (T, error), opts QueryOptions) (T, error) {
	data, err := s.Fetch(ctx, key, func(ctx context.Context) (any, error) { return fn(ctx) }, opts)
	if err != nil {
		var zero T
		return zero, err
	}
	return cast[T](key, data)
}

func cast[T any](key Key, data any) (T, error) {
	v, ok := data.(T)
	if !ok {
		var zero T
		return zero, fmt.Errorf("querycache: entry %s holds %T, not %T", key, data, zero)
	}
	return v, nil
}
