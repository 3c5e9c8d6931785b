package querycache

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func removeOptimistically(key Key) *Optimistic[string] {
	return &Optimistic[string]{
		Scope: func(string) Filter { return Exact(key) },
		Apply: func(tx *Txn, _ string) { tx.Remove(Exact(key)) },
	}
}

func TestMutation_OptimisticFailureRollsBack(t *testing.T) {
	// Arrange
	s := New()
	defer s.Close()
	key := NewKey("graphs", "detail", "g2")
	s.Set(key, record{ID: "g2", Items: []string{"a"}})

	var sawRemoved, onErrorCalled bool
	boom := errors.New("server said no")
	m := NewMutation(s, MutationOptions[string, struct{}]{
		Name:       "delete",
		Optimistic: removeOptimistically(key),
		Fn: func(ctx context.Context, id string) (struct{}, error) {
			_, ok := s.Get(key)
			sawRemoved = !ok
			return struct{}{}, boom
		},
		OnError: func(ctx context.Context, err error, id string) {
			onErrorCalled = true
		},
	})

	// Act
	_, err := m.Execute(context.Background(), "g2")

	// Assert
	assert.ErrorIs(t, err, boom)
	assert.True(t, sawRemoved, "entry must be gone while the request is in flight")
	assert.True(t, onErrorCalled)

	data, ok := GetData[record](s, key)
	require.True(t, ok)
	assert.Equal(t, record{ID: "g2", Items: []string{"a"}}, data)

	state := m.State()
	assert.Equal(t, StatusError, state.Status)
	assert.ErrorIs(t, state.Err, boom)
	assert.Equal(t, uint64(1), s.Stats().Rollbacks)
}

func TestMutation_SuccessKeepsOptimisticState(t *testing.T) {
	s := New()
	defer s.Close()
	key := NewKey("graphs", "detail", "g2")
	s.Set(key, "graph")

	var successResult string
	m := NewMutation(s, MutationOptions[string, string]{
		Name:       "delete",
		Optimistic: removeOptimistically(key),
		Fn: func(ctx context.Context, id string) (string, error) {
			return "deleted " + id, nil
		},
		OnSuccess: func(ctx context.Context, result string, id string) {
			successResult = result
		},
	})

	result, err := m.Execute(context.Background(), "g2")

	require.NoError(t, err)
	assert.Equal(t, "deleted g2", result)
	assert.Equal(t, "deleted g2", successResult)
	_, ok := s.Get(key)
	assert.False(t, ok)
	assert.Equal(t, StatusSuccess, m.State().Status)
	assert.Zero(t, s.Stats().Rollbacks)
}

func TestMutation_RetriesWithFixedDelay(t *testing.T) {
	s := New()
	defer s.Close()
	var calls int32
	var firstAt, secondAt time.Time

	m := NewMutation(s, MutationOptions[string, string]{
		Name:  "process",
		Retry: FixedRetry(1, 30*time.Millisecond),
		Fn: func(ctx context.Context, text string) (string, error) {
			if atomic.AddInt32(&calls, 1) == 1 {
				firstAt = time.Now()
				return "", errors.New("transient")
			}
			secondAt = time.Now()
			return "ok", nil
		},
	})

	result, err := m.Execute(context.Background(), "text")

	require.NoError(t, err)
	assert.Equal(t, "ok", result)
	assert.Equal(t, int32(2), atomic.LoadInt32(&calls))
	assert.GreaterOrEqual(t, secondAt.Sub(firstAt), 30*time.Millisecond)
}

func TestMutation_GivesUpAfterOneRetry(t *testing.T) {
	s := New()
	defer s.Close()
	var calls int32

	m := NewMutation(s, MutationOptions[string, string]{
		Retry: FixedRetry(1, time.Millisecond),
		Fn: func(ctx context.Context, text string) (string, error) {
			atomic.AddInt32(&calls, 1)
			return "", errors.New("still failing")
		},
	})

	_, err := m.Execute(context.Background(), "text")

	assert.Error(t, err)
	assert.Equal(t, int32(2), atomic.LoadInt32(&calls))
}

func TestMutation_CancelsInFlightFetchesInScope(t *testing.T) {
	s := New()
	defer s.Close()
	scope := NewKey("graphs")
	key := scope.Append("detail", "g1")
	s.Set(key, "before")
	s.Invalidate(Exact(key))

	started := make(chan struct{})
	fetchErr := make(chan error, 1)
	go func() {
		_, err := s.Fetch(context.Background(), key, func(ctx context.Context) (any, error) {
			close(started)
			<-ctx.Done()
			return "stale response", nil
		}, QueryOptions{})
		fetchErr <- err
	}()
	<-started

	m := NewMutation(s, MutationOptions[string, string]{
		Optimistic: &Optimistic[string]{Scope: func(string) Filter { return Scope(scope) }},
		Fn: func(ctx context.Context, _ string) (string, error) {
			return "", errors.New("rejected")
		},
	})
	_, err := m.Execute(context.Background(), "x")

	require.Error(t, err)
	assert.ErrorIs(t, <-fetchErr, ErrCancelled)

	data, ok := s.Get(key)
	require.True(t, ok)
	assert.Equal(t, "before", data)
}

func TestMutation_Reset(t *testing.T) {
	s := New()
	defer s.Close()
	m := NewMutation(s, MutationOptions[int, int]{
		Fn: func(ctx context.Context, v int) (int, error) { return v * 2, nil },
	})

	got, err := m.Execute(context.Background(), 21)
	require.NoError(t, err)
	assert.Equal(t, 42, got)
	assert.Equal(t, 42, m.State().Data)

	m.Reset()
	assert.Equal(t, StatusIdle, m.State().Status)
}
