package pantry

import (
	"context"
	"sync/atomic"

	"pantry/internal/services"
)

// Subscription is a live listener created by Manager.Subscribe.
type Subscription struct {
	cancel  func()
	stopped atomic.Bool
	done    chan struct{}
}

// Close releases the listener. No callback starts after Close returns; one
// already running is allowed to finish. Close may be called from onChange.
func (s *Subscription) Close() {
	if s == nil {
		return
	}
	s.stopped.Store(true)
	s.cancel()
}

// Done is closed once the delivery goroutine has exited.
func (s *Subscription) Done() <-chan struct{} {
	return s.done
}

// Subscribe calls onChange with the full, ordered collection: first with the
// current state, then after every change. A slow callback skips intermediate
// states but always sees the newest one. The listener ends on Close or when
// ctx is done.
func (m *Manager) Subscribe(ctx context.Context, onChange func([]Item)) (*Subscription, error) {
	if onChange == nil {
		return nil, services.Wrap(services.ErrValidation, "pantry", "subscribe", "onChange callback required", nil)
	}
	inner, err := m.store.Subscribe(ctx)
	if err != nil {
		return nil, storeFailure("subscribe", "open subscription", err)
	}

	sub := &Subscription{cancel: inner.Close, done: make(chan struct{})}
	go func() {
		defer close(sub.done)
		for snapshot := range inner.Snapshots() {
			if sub.stopped.Load() {
				return
			}
			onChange(snapshot)
		}
	}()
	return sub, nil
}
