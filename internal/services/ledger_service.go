package services

import (
	"context"
	"fmt"

	"estate/internal/core"
	"estate/internal/ledger"
	"estate/internal/log"
	"estate/internal/storage"

	"golang.org/x/sync/errgroup"
)

// BookingStatement is the reconciled payment picture of one booking.
type BookingStatement struct {
	Booking    core.Booking           `json:"booking"`
	Unit       core.Unit              `json:"unit"`
	Normalized ledger.Normalized      `json:"normalized"`
	Balance    ledger.Balance         `json:"balance"`
	Lines      []ledger.StatementLine `json:"lines"`
}

// LedgerService answers balance questions over stored bookings.
type LedgerService struct {
	store  storage.Store
	logger *log.Logger
}

func NewLedgerService(d Deps) *LedgerService {
	return &LedgerService{store: d.Store, logger: newEffects(d, log.ComponentLedger).logger}
}

// Statement reconciles one booking. The booking is loaded first so the scope
// check happens before anything else is read.
func (s *LedgerService) Statement(ctx context.Context, scope core.Scope, bookingID string) (BookingStatement, error) {
	b, err := s.store.GetBooking(ctx, bookingID)
	if err != nil {
		return BookingStatement{}, fmt.Errorf("get booking: %w", err)
	}
	if err := checkScope(scope, b.ProjectID, "booking "+bookingID); err != nil {
		return BookingStatement{}, err
	}
	return s.statement(ctx, b)
}

func (s *LedgerService) statement(ctx context.Context, b core.Booking) (BookingStatement, error) {
	var (
		unit     core.Unit
		payments []core.Payment
		extras   []core.ExtraPayment
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		u, err := s.store.GetUnit(gctx, b.UnitID)
		if err != nil {
			return fmt.Errorf("get unit: %w", err)
		}
		unit = u
		return nil
	})
	g.Go(func() error {
		p, err := s.store.ListPayments(gctx, storage.Query{BookingID: b.ID})
		if err != nil {
			return fmt.Errorf("list payments: %w", err)
		}
		payments = p
		return nil
	})
	g.Go(func() error {
		e, err := s.store.ListExtraPayments(gctx, storage.Query{BookingID: b.ID})
		if err != nil {
			return fmt.Errorf("list extra payments: %w", err)
		}
		extras = e
		return nil
	})
	if err := g.Wait(); err != nil {
		return BookingStatement{}, err
	}

	n, bal := ledger.Reconcile(b, unit, payments, extras)
	return BookingStatement{
		Booking:    b,
		Unit:       unit,
		Normalized: n,
		Balance:    bal,
		Lines:      ledger.Statement(unit.Price, n.Entries),
	}, nil
}

// BookingBalance is one row of a project balance sheet.
type BookingBalance struct {
	BookingID  string             `json:"booking_id"`
	UnitID     string             `json:"unit_id"`
	UnitName   string             `json:"unit_name"`
	CustomerID string             `json:"customer_id"`
	Status     core.BookingStatus `json:"status"`
	Method     ledger.Method      `json:"method"`
	Balance    ledger.Balance     `json:"balance"`
}

// ProjectBalances reconciles every booking in a project with one load of
// each collection. An empty projectID means every project visible to scope.
// Bookings whose unit is missing have no price to settle against and are
// left out.
func (s *LedgerService) ProjectBalances(ctx context.Context, scope core.Scope, projectID string) ([]BookingBalance, error) {
	project, err := scope.Resolve(projectID)
	if err != nil {
		return nil, fmt.Errorf("project %s: %w", projectID, err)
	}
	q := storage.Query{ProjectID: project}

	var (
		bookings []core.Booking
		units    []core.Unit
		payments []core.Payment
		extras   []core.ExtraPayment
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() (err error) { bookings, err = s.store.ListBookings(gctx, q); return })
	g.Go(func() (err error) { units, err = s.store.ListUnits(gctx, q); return })
	g.Go(func() (err error) { payments, err = s.store.ListPayments(gctx, q); return })
	g.Go(func() (err error) { extras, err = s.store.ListExtraPayments(gctx, q); return })
	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("load project ledger: %w", err)
	}

	unitByID := make(map[string]core.Unit, len(units))
	for _, u := range units {
		unitByID[u.ID] = u
	}

	out := make([]BookingBalance, 0, len(bookings))
	for _, b := range bookings {
		unit, ok := unitByID[b.UnitID]
		if !ok {
			s.logger.WarnContext(ctx, "Skipping booking with missing unit",
				log.NewFields().WithBooking(b.ID, b.ProjectID).ToSlice()...)
			continue
		}
		n, bal := ledger.Reconcile(b, unit, payments, extras)
		out = append(out, BookingBalance{
			BookingID:  b.ID,
			UnitID:     b.UnitID,
			UnitName:   unit.Name,
			CustomerID: b.CustomerID,
			Status:     b.Status,
			Method:     n.Method,
			Balance:    bal,
		})
	}
	return out, nil
}
