package services

import (
	"context"
	"fmt"

	"estate/internal/amqp"
	"estate/internal/core"
	"estate/internal/format"
	"estate/internal/log"
	"estate/internal/storage"
)

// NotificationService lists notifications and turns domain events into
// them.
type NotificationService struct {
	store storage.Store
	fmt   *format.Formatter
	fx    effects
}

func NewNotificationService(d Deps, f *format.Formatter) *NotificationService {
	return &NotificationService{store: d.Store, fmt: f, fx: newEffects(d, log.ComponentWorker)}
}

// List returns the notifications visible to scope, newest first. Restricted
// callers also see global notifications.
func (s *NotificationService) List(ctx context.Context, scope core.Scope, unreadOnly bool) ([]core.Notification, error) {
	all, err := s.store.ListNotifications(ctx, storage.Query{ProjectID: scope.ProjectID})
	if err != nil {
		return nil, fmt.Errorf("list notifications: %w", err)
	}
	out := all[:0]
	for _, n := range all {
		if unreadOnly && n.Read {
			continue
		}
		out = append(out, n)
	}
	return out, nil
}

func (s *NotificationService) MarkRead(ctx context.Context, scope core.Scope, id string) error {
	all, err := s.store.ListNotifications(ctx, storage.Query{ProjectID: scope.ProjectID})
	if err != nil {
		return fmt.Errorf("list notifications: %w", err)
	}
	visible := false
	for _, n := range all {
		if n.ID == id {
			visible = true
			break
		}
	}
	if !visible {
		// Restricted callers cannot tell a missing notification from a foreign one.
		if scope.Restricted() {
			return fmt.Errorf("notification %s: %w", id, core.ErrOutOfScope)
		}
		return fmt.Errorf("notification %s: %w", id, core.ErrNotFound)
	}
	if err := s.store.MarkNotificationRead(ctx, id); err != nil {
		return fmt.Errorf("mark read: %w", err)
	}
	s.fx.changed(ctx, storage.KindNotifications)
	return nil
}

// FromEvent stores the notification for a consumed event.
func (s *NotificationService) FromEvent(ctx context.Context, ev *amqp.Event) (core.Notification, error) {
	n := core.Notification{
		Kind:      string(ev.Type),
		Message:   s.message(ev),
		ProjectID: ev.ProjectID,
		EntityID:  ev.EntityID,
		CreatedAt: ev.OccurredAt,
	}
	saved, err := s.store.SaveNotification(ctx, n)
	if err != nil {
		return core.Notification{}, fmt.Errorf("save notification: %w", err)
	}
	s.fx.changed(ctx, storage.KindNotifications)
	return saved, nil
}

func (s *NotificationService) message(ev *amqp.Event) string {
	by := ""
	if ev.Actor != "" {
		by = " by " + ev.Actor
	}
	switch ev.Type {
	case amqp.EventBookingCreated:
		return fmt.Sprintf("New booking with a deposit of %s%s", s.fmt.Currency(ev.Amount), by)
	case amqp.EventBookingCancelled:
		return "Booking cancelled" + by
	case amqp.EventBookingCompleted:
		return fmt.Sprintf("Booking fully paid (%s)", s.fmt.Currency(ev.Amount))
	case amqp.EventPaymentRecorded:
		return fmt.Sprintf("Payment of %s recorded%s", s.fmt.Currency(ev.Amount), by)
	case amqp.EventExpenseCreated:
		return fmt.Sprintf("Expense of %s added%s", s.fmt.Currency(ev.Amount), by)
	}
	return string(ev.Type)
}
