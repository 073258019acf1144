package realtime

import (
	"context"
	"sync"

	"estate/internal/log"
)

// Refresher is the type-erased side of a Feed.
type Refresher interface {
	Kind() string
	Refresh(ctx context.Context) error
}

// Broadcaster forwards change notices to other processes.
type Broadcaster interface {
	Broadcast(ctx context.Context, kind string) error
}

// Hub routes change notices for an entity kind to the feeds that depend on
// it. A feed may be registered under several kinds, e.g. a booking
// statement feed listens to bookings and payments.
type Hub struct {
	mu          sync.RWMutex
	feeds       map[string][]Refresher
	broadcaster Broadcaster
	logger      *log.Logger
}

func NewHub(logger *log.Logger) *Hub {
	if logger == nil {
		logger = log.Default(log.ComponentRealtime)
	}
	return &Hub{
		feeds:  make(map[string][]Refresher),
		logger: logger.WithComponent(log.ComponentRealtime),
	}
}

// Register attaches r to its own kind plus any extra kinds.
func (h *Hub) Register(r Refresher, alsoOn ...string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for _, kind := range append([]string{r.Kind()}, alsoOn...) {
		h.feeds[kind] = append(h.feeds[kind], r)
	}
}

// SetBroadcaster enables cross-process fan-out.
func (h *Hub) SetBroadcaster(b Broadcaster) {
	h.mu.Lock()
	h.broadcaster = b
	h.mu.Unlock()
}

// Changed refreshes local feeds for kind and tells other processes.
func (h *Hub) Changed(ctx context.Context, kind string) {
	h.refreshLocal(ctx, kind)

	h.mu.RLock()
	b := h.broadcaster
	h.mu.RUnlock()
	if b == nil {
		return
	}
	if err := b.Broadcast(ctx, kind); err != nil {
		h.logger.WarnContext(ctx, "Change broadcast failed", log.FieldKind, kind, log.FieldError, err)
	}
}

func (h *Hub) refreshLocal(ctx context.Context, kind string) {
	h.mu.RLock()
	feeds := append([]Refresher(nil), h.feeds[kind]...)
	h.mu.RUnlock()

	for _, f := range feeds {
		// Errors are logged by the feed; subscribers keep their last snapshot.
		_ = f.Refresh(ctx)
	}
}
