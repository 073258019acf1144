// Package services orchestrates storage, ledger reconciliation, reporting
// and the event side effects of every write.
package services

import (
	"context"
	"fmt"

	"estate/internal/amqp"
	"estate/internal/core"
	"estate/internal/log"
	"estate/internal/metrics"
	"estate/internal/storage"
)

// EventPublisher publishes domain events; *amqp.Client satisfies it.
type EventPublisher interface {
	Publish(ctx context.Context, event *amqp.Event) error
}

// ChangeNotifier is told the kind of every collection a write touched;
// *realtime.Hub satisfies it.
type ChangeNotifier interface {
	Changed(ctx context.Context, kind string)
}

// Deps are shared by all services. Publisher, Changes and Metrics are
// optional.
type Deps struct {
	Store     storage.Store
	Publisher EventPublisher
	Changes   ChangeNotifier
	Metrics   *metrics.Metrics
	Logger    *log.Logger
}

// effects runs the side effects that follow a successful write. Failures
// are logged and never fail the request: the write itself is already
// committed.
type effects struct {
	publisher EventPublisher
	changes   ChangeNotifier
	logger    *log.Logger
}

func newEffects(d Deps, component string) effects {
	logger := d.Logger
	if logger == nil {
		logger = log.Default(component)
	}
	return effects{
		publisher: d.Publisher,
		changes:   d.Changes,
		logger:    logger.WithComponent(component),
	}
}

func (e effects) changed(ctx context.Context, kinds ...storage.Kind) {
	if e.changes == nil {
		return
	}
	for _, k := range kinds {
		e.changes.Changed(ctx, string(k))
	}
}

func (e effects) publish(ctx context.Context, event *amqp.Event) {
	if e.publisher == nil {
		e.logger.DebugContext(ctx, "No event publisher configured, skipping event", log.FieldEvent, event.Type)
		return
	}
	if err := e.publisher.Publish(ctx, event); err != nil {
		e.logger.ErrorContext(ctx, "Failed to publish event",
			log.FieldEvent, event.Type,
			"entity_id", event.EntityID,
			log.FieldError, err)
	}
}

// checkScope returns core.ErrOutOfScope when scope cannot see projectID.
func checkScope(scope core.Scope, projectID, what string) error {
	if !scope.Allows(projectID) {
		return fmt.Errorf("%s: %w", what, core.ErrOutOfScope)
	}
	return nil
}

// requireAdmin returns core.ErrForbidden for non-admin callers.
func requireAdmin(scope core.Scope, action string) error {
	if !scope.IsAdmin() {
		return fmt.Errorf("%s: %w", action, core.ErrForbidden)
	}
	return nil
}
