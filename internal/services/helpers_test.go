package services

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"

	"estate/internal/amqp"
	"estate/internal/core"
	"estate/internal/log"
	"estate/internal/storage"
	"estate/internal/storage/memory"
)

var errBoom = errors.New("boom")

var (
	admin      = core.Scope{UserID: "u-admin", Username: "admin", Role: core.RoleAdmin}
	agentP1    = core.Scope{UserID: "u-1", Username: "alice", Role: core.RoleUser, ProjectID: "p1"}
	agentP2    = core.Scope{UserID: "u-2", Username: "bob", Role: core.RoleUser, ProjectID: "p2"}
	reconciled = true
)

func testLogger() *log.Logger {
	return log.New(log.Config{Handler: slog.NewTextHandler(io.Discard, nil)})
}

type recordingPublisher struct {
	mu     sync.Mutex
	events []*amqp.Event
	err    error
}

func (p *recordingPublisher) Publish(_ context.Context, e *amqp.Event) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.err != nil {
		return p.err
	}
	p.events = append(p.events, e)
	return nil
}

func (p *recordingPublisher) types() []amqp.EventType {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]amqp.EventType, len(p.events))
	for i, e := range p.events {
		out[i] = e.Type
	}
	return out
}

type recordingChanges struct {
	mu    sync.Mutex
	kinds []string
}

func (c *recordingChanges) Changed(_ context.Context, kind string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.kinds = append(c.kinds, kind)
}

func (c *recordingChanges) saw(kind storage.Kind) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, k := range c.kinds {
		if k == string(kind) {
			return true
		}
	}
	return false
}

// faultyStore fails selected writes and passes everything else through.
type faultyStore struct {
	storage.Store
	saveUnit     error
	savePayment  error
	saveBooking  error
	saveDocument error
}

func (f *faultyStore) SaveUnit(ctx context.Context, u core.Unit) (core.Unit, error) {
	if f.saveUnit != nil {
		return core.Unit{}, f.saveUnit
	}
	return f.Store.SaveUnit(ctx, u)
}

func (f *faultyStore) SavePayment(ctx context.Context, p core.Payment) (core.Payment, error) {
	if f.savePayment != nil {
		return core.Payment{}, f.savePayment
	}
	return f.Store.SavePayment(ctx, p)
}

func (f *faultyStore) SaveBooking(ctx context.Context, b core.Booking) (core.Booking, error) {
	if f.saveBooking != nil && b.ID != "" {
		return core.Booking{}, f.saveBooking
	}
	return f.Store.SaveBooking(ctx, b)
}

func (f *faultyStore) SaveDocument(ctx context.Context, d core.Document) (core.Document, error) {
	if f.saveDocument != nil {
		return core.Document{}, f.saveDocument
	}
	return f.Store.SaveDocument(ctx, d)
}

type fixture struct {
	mem       *memory.Store
	store     *faultyStore
	publisher *recordingPublisher
	changes   *recordingChanges
	deps      Deps
}

// newFixture seeds two projects, an available unit priced 100000 in p1
// and a customer.
func newFixture(t *testing.T) *fixture {
	t.Helper()
	mem := memory.New()
	mem.Load(memory.Seed{
		Projects: []core.Project{{ID: "p1", Name: "Tower"}, {ID: "p2", Name: "Villas"}},
		Units: []core.Unit{
			{ID: "u1", Name: "A-101", Price: 100000, Status: core.UnitAvailable, ProjectID: "p1"},
			{ID: "u2", Name: "V-1", Price: 50000, Status: core.UnitAvailable, ProjectID: "p2"},
		},
		Customers: []core.Customer{{ID: "c1", Name: "Dana", ProjectID: "p1"}},
	})
	store := &faultyStore{Store: mem}
	pub := &recordingPublisher{}
	ch := &recordingChanges{}
	return &fixture{
		mem:       mem,
		store:     store,
		publisher: pub,
		changes:   ch,
		deps:      Deps{Store: store, Publisher: pub, Changes: ch, Logger: testLogger()},
	}
}
