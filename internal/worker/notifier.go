// Package worker holds the background jobs run by estate-notifier.
package worker

import (
	"context"
	"errors"
	"fmt"

	"estate/internal/amqp"
	"estate/internal/core"
	"estate/internal/log"

	"github.com/prometheus/client_golang/prometheus"
)

// NotificationWriter turns a consumed event into a stored notification;
// *services.NotificationService satisfies it.
type NotificationWriter interface {
	FromEvent(ctx context.Context, ev *amqp.Event) (core.Notification, error)
}

// EventSource delivers events to a handler until ctx ends; *amqp.Client
// satisfies it.
type EventSource interface {
	Consume(ctx context.Context, handler func(context.Context, *amqp.Event) error) error
}

// Notifier consumes domain events and stores one notification per event.
type Notifier struct {
	writer   NotificationWriter
	consumed *prometheus.CounterVec
	logger   *log.Logger
}

func NewNotifier(writer NotificationWriter, consumed *prometheus.CounterVec, logger *log.Logger) *Notifier {
	if logger == nil {
		logger = log.Default(log.ComponentWorker)
	}
	return &Notifier{
		writer:   writer,
		consumed: consumed,
		logger:   logger.WithComponent(log.ComponentWorker),
	}
}

// Handle processes a single event. A returned error makes the consumer
// requeue the message once.
func (n *Notifier) Handle(ctx context.Context, ev *amqp.Event) error {
	if ev == nil {
		return errors.New("nil event")
	}
	n.logger.InfoContext(ctx, "Processing event",
		log.FieldEvent, ev.Type,
		"event_id", ev.ID,
		"entity_id", ev.EntityID)

	saved, err := n.writer.FromEvent(ctx, ev)
	if err != nil {
		return fmt.Errorf("store notification for %s: %w", ev.Type, err)
	}
	if n.consumed != nil {
		n.consumed.WithLabelValues(string(ev.Type)).Inc()
	}

	n.logger.DebugContext(ctx, "Notification stored",
		"notification_id", saved.ID,
		log.FieldProjectID, saved.ProjectID)
	return nil
}

// Run consumes from src until ctx is cancelled. Cancellation is not an
// error.
func (n *Notifier) Run(ctx context.Context, src EventSource) error {
	err := src.Consume(ctx, n.Handle)
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}
