// Package realtime pushes full-collection snapshots to subscribers whenever
// the backing collection changes.
package realtime

import (
	"context"
	"fmt"
	"slices"
	"sync"
	"sync/atomic"

	"github.com/prometheus/client_golang/prometheus"

	"estate/internal/log"
)

// Loader fetches the current full collection.
type Loader[T any] func(ctx context.Context) ([]T, error)

// Feed holds the subscribers of one collection. Refresh reloads the
// collection and hands every subscriber its own copy. When refreshes
// overlap, a load that started earlier never overwrites a later one.
type Feed[T any] struct {
	kind   string
	load   Loader[T]
	logger *log.Logger
	gauge  prometheus.Gauge

	mu        sync.Mutex
	subs      map[uint64]func([]T)
	nextID    uint64
	delivered uint64
	last      []T
	hasLast   bool

	requested atomic.Uint64
	deliverMu sync.Mutex
}

// NewFeed creates a feed for kind. gauge, when set, tracks the subscriber
// count.
func NewFeed[T any](kind string, load Loader[T], logger *log.Logger, gauge prometheus.Gauge) *Feed[T] {
	if logger == nil {
		logger = log.Default(log.ComponentRealtime)
	}
	return &Feed[T]{
		kind:   kind,
		load:   load,
		logger: logger.WithComponent(log.ComponentRealtime),
		gauge:  gauge,
		subs:   make(map[uint64]func([]T)),
	}
}

func (f *Feed[T]) Kind() string { return f.kind }

// Subscribe registers fn. If a snapshot has already been loaded fn receives
// it immediately. The returned function unsubscribes and is safe to call
// more than once. fn must not call Refresh on the same feed.
func (f *Feed[T]) Subscribe(fn func([]T)) (unsubscribe func()) {
	f.mu.Lock()
	id := f.nextID
	f.nextID++
	f.subs[id] = fn
	var initial []T
	hasInitial := f.hasLast
	if hasInitial {
		initial = slices.Clone(f.last)
	}
	f.updateGaugeLocked()
	f.mu.Unlock()

	if hasInitial {
		fn(initial)
	}

	var once sync.Once
	return func() {
		once.Do(func() {
			f.mu.Lock()
			delete(f.subs, id)
			f.updateGaugeLocked()
			f.mu.Unlock()
		})
	}
}

func (f *Feed[T]) updateGaugeLocked() {
	if f.gauge != nil {
		f.gauge.Set(float64(len(f.subs)))
	}
}

// Subscribers returns the current subscriber count.
func (f *Feed[T]) Subscribers() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.subs)
}

// Refresh loads the collection and delivers it. A load that finishes after
// a newer one has already been delivered is discarded. With no subscribers
// nothing is loaded and the cached snapshot is dropped as stale.
func (f *Feed[T]) Refresh(ctx context.Context) error {
	seq := f.requested.Add(1)

	f.mu.Lock()
	if len(f.subs) == 0 {
		f.delivered = max(f.delivered, seq)
		f.last, f.hasLast = nil, false
		f.mu.Unlock()
		return nil
	}
	f.mu.Unlock()

	items, err := f.load(ctx)
	if err != nil {
		f.logger.WarnContext(ctx, "Snapshot load failed", log.FieldKind, f.kind, log.FieldError, err)
		return fmt.Errorf("refresh %s: %w", f.kind, err)
	}

	f.mu.Lock()
	if seq <= f.delivered {
		f.mu.Unlock()
		f.logger.DebugContext(ctx, "Dropped stale snapshot", log.FieldKind, f.kind, "seq", seq)
		return nil
	}
	f.delivered = seq
	f.last = items
	f.hasLast = true
	subs := make([]func([]T), 0, len(f.subs))
	for _, fn := range f.subs {
		subs = append(subs, fn)
	}
	// Taking deliverMu before releasing mu keeps deliveries in sequence order.
	f.deliverMu.Lock()
	f.mu.Unlock()
	defer f.deliverMu.Unlock()

	for _, fn := range subs {
		fn(slices.Clone(items))
	}
	return nil
}
