package records

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"pantry/internal/logging"
)

// Subscription delivers full collection snapshots. Only the newest undelivered
// snapshot is kept: a slow reader skips intermediate states but always
// observes the latest one.
type Subscription struct {
	id     uint64
	hub    *hub
	ch     chan []Item
	done   chan struct{}
	once   sync.Once
	closed bool
}

// Snapshots returns the delivery channel. It is closed when the subscription ends.
func (s *Subscription) Snapshots() <-chan []Item {
	return s.ch
}

// Done is closed when the subscription ends.
func (s *Subscription) Done() <-chan struct{} {
	return s.done
}

// Close releases the listener. It is safe to call more than once.
func (s *Subscription) Close() {
	if s == nil {
		return
	}
	s.once.Do(func() {
		s.hub.remove(s)
	})
}

type listFunc func(context.Context) ([]Item, error)

// hub fans snapshots out to subscribers. All sends happen with mu held and
// never block, so delivery order matches the order snapshots were read.
type hub struct {
	mu     sync.Mutex
	list   listFunc
	logger *slog.Logger
	nextID uint64
	subs   map[uint64]*Subscription
}

func newHub(list listFunc, logger *slog.Logger) *hub {
	return &hub{list: list, logger: logger, subs: make(map[uint64]*Subscription)}
}

func (h *hub) subscribe(ctx context.Context) (*Subscription, error) {
	h.mu.Lock()
	defer h.mu.Unlock()

	snapshot, err := h.list(ctx)
	if err != nil {
		return nil, fmt.Errorf("initial snapshot: %w", err)
	}
	h.nextID++
	sub := &Subscription{
		id:   h.nextID,
		hub:  h,
		ch:   make(chan []Item, 1),
		done: make(chan struct{}),
	}
	h.subs[sub.id] = sub
	sub.ch <- snapshot

	go func() {
		select {
		case <-ctx.Done():
			sub.Close()
		case <-sub.done:
		}
	}()
	return sub, nil
}

func (h *hub) remove(sub *Subscription) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.closeLocked(sub)
}

func (h *hub) closeLocked(sub *Subscription) {
	if sub.closed {
		return
	}
	sub.closed = true
	delete(h.subs, sub.id)
	close(sub.done)
	close(sub.ch)
}

func (h *hub) closeAll() {
	h.mu.Lock()
	defer h.mu.Unlock()
	for _, sub := range h.subs {
		h.closeLocked(sub)
	}
}

// notify re-reads the collection and offers it to every subscriber.
func (h *hub) notify(ctx context.Context) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if len(h.subs) == 0 {
		return
	}

	snapshot, err := h.list(context.WithoutCancel(ctx))
	if err != nil {
		logging.WarnWithContext(h.logger, "snapshot read failed", "snapshot_read_failed",
			logging.Error(err),
			logging.String(logging.FieldImpact, "subscribers keep their previous snapshot until the next change"))
		return
	}
	for _, sub := range h.subs {
		offer(sub.ch, snapshot)
	}
}

func offer(ch chan []Item, snapshot []Item) {
	select {
	case ch <- snapshot:
		return
	default:
	}
	select {
	case <-ch:
	default:
	}
	ch <- snapshot
}

// watchExternal polls PRAGMA data_version on a dedicated connection. The value
// changes whenever another connection commits.
func (s *Store) watchExternal(ctx context.Context) {
	defer close(s.pollDone)

	conn, err := s.db.Conn(ctx)
	if err != nil {
		s.logger.Warn("external change watcher disabled", logging.Error(err))
		return
	}
	defer conn.Close()

	var last int64
	if err := conn.QueryRowContext(ctx, "PRAGMA data_version").Scan(&last); err != nil {
		s.logger.Warn("external change watcher disabled", logging.Error(err))
		return
	}

	ticker := time.NewTicker(s.pollInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
		var current int64
		if err := conn.QueryRowContext(ctx, "PRAGMA data_version").Scan(&current); err != nil {
			if ctx.Err() != nil {
				return
			}
			s.logger.Debug("data_version poll failed", logging.Error(err))
			continue
		}
		if current != last {
			last = current
			s.hub.notify(ctx)
		}
	}
}
