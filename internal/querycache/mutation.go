package querycache

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"
)

// Status is the lifecycle stage of a mutation.
type Status int

const (
	StatusIdle Status = iota
	StatusPending
	StatusSuccess
	StatusError
)

func (s Status) String() string {
	switch s {
	case StatusPending:
		return "pending"
	case StatusSuccess:
		return "success"
	case StatusError:
		return "error"
	default:
		return "idle"
	}
}

// MutationState is what callers observe of the latest Execute.
type MutationState[R any] struct {
	Status    Status
	Data      R
	Err       error
	UpdatedAt time.Time
}

// Optimistic describes the optimistic half of a mutation. Before the request
// is sent, in-flight fetches under Cancel are cancelled, the entries under
// Scope are snapshotted and Apply writes the expected outcome. On failure the
// snapshot is restored.
type Optimistic[V any] struct {
	Scope func(vars V) Filter
	// Cancel selects the fetches to cancel. Nil means Scope.
	Cancel func(vars V) Filter
	Apply  func(tx *Txn, vars V)
}

// MutationOptions configure a Mutation.
type MutationOptions[V, R any] struct {
	Name       string
	Fn         func(ctx context.Context, vars V) (R, error)
	Optimistic *Optimistic[V]
	Retry      RetryPolicy

	// OnSuccess runs after Fn succeeded. OnError runs after a failed Fn and,
	// for optimistic mutations, after the rollback.
	OnSuccess func(ctx context.Context, result R, vars V)
	OnError   func(ctx context.Context, err error, vars V)
}

// Mutation runs a write against the server and keeps the cache consistent
// with its outcome. Failures are returned and recorded in State; they never
// panic past the mutation.
type Mutation[V, R any] struct {
	store  *Store
	opts   MutationOptions[V, R]
	logger *zap.Logger

	mu    sync.Mutex
	state MutationState[R]
}

// NewMutation binds opts to a store.
func NewMutation[V, R any](s *Store, opts MutationOptions[V, R]) *Mutation[V, R] {
	return &Mutation[V, R]{
		store:  s,
		opts:   opts,
		logger: s.logger.With(zap.String("mutation", opts.Name)),
	}
}

// Execute runs the mutation once to completion.
func (m *Mutation[V, R]) Execute(ctx context.Context, vars V) (R, error) {
	var zero R
	m.setState(MutationState[R]{Status: StatusPending})

	var snapshot *Snapshot
	if opt := m.opts.Optimistic; opt != nil {
		filter := opt.Scope(vars)
		cancelFilter := filter
		if opt.Cancel != nil {
			cancelFilter = opt.Cancel(vars)
		}
		if err := m.store.CancelQueries(ctx, cancelFilter); err != nil {
			return zero, m.fail(ctx, err, vars)
		}
		m.store.Update(func(tx *Txn) {
			// fetches started since CancelQueries returned
			tx.CancelFetches(cancelFilter)
			snap := tx.Snapshot(filter)
			snapshot = &snap
			if opt.Apply != nil {
				opt.Apply(tx, vars)
			}
		})
	}

	result, err := run(ctx, m.opts.Retry, func(ctx context.Context) (R, error) {
		return m.opts.Fn(ctx, vars)
	})
	if err != nil {
		if snapshot != nil {
			m.store.Restore(*snapshot)
			m.store.rolledBack(m.opts.Name)
			m.logger.Debug("Rolled back optimistic update", zap.Int("entries", snapshot.Len()))
		}
		return zero, m.fail(ctx, err, vars)
	}

	if m.opts.OnSuccess != nil {
		m.opts.OnSuccess(ctx, result, vars)
	}
	m.setState(MutationState[R]{Status: StatusSuccess, Data: result})
	return result, nil
}

func (m *Mutation[V, R]) fail(ctx context.Context, err error, vars V) error {
	m.logger.Debug("Mutation failed", zap.Error(err))
	if m.opts.OnError != nil {
		m.opts.OnError(ctx, err, vars)
	}
	m.setState(MutationState[R]{Status: StatusError, Err: err})
	return err
}

// State returns the outcome of the latest Execute.
func (m *Mutation[V, R]) State() MutationState[R] {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

// Reset returns the mutation to idle.
func (m *Mutation[V, R]) Reset() {
	m.setState(MutationState[R]{})
}

func (m *Mutation[V, R]) setState(state MutationState[R]) {
	if state.Status != StatusIdle {
		state.UpdatedAt = time.Now()
	}
	m.mu.Lock()
	m.state = state
	m.mu.Unlock()
}
