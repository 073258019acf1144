package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"estate/internal/amqp"
	"estate/internal/core"
	"estate/internal/ledger"
	"estate/internal/log"
	"estate/internal/metrics"
	"estate/internal/storage"

	"github.com/shopspring/decimal"
)

const (
	PaymentTypeDeposit     = "deposit"
	PaymentTypeInstallment = "installment"
)

// BookingService owns the booking lifecycle: reservation, payments,
// completion, cancellation and archive deletion.
type BookingService struct {
	store   storage.Store
	ledger  *LedgerService
	fx      effects
	metrics *metrics.Metrics
	now     func() time.Time
}

func NewBookingService(d Deps) *BookingService {
	return &BookingService{
		store:   d.Store,
		ledger:  NewLedgerService(d),
		fx:      newEffects(d, log.ComponentBooking),
		metrics: d.Metrics,
		now:     time.Now,
	}
}

// Receipt is returned after a payment is recorded.
type Receipt struct {
	PaymentID string           `json:"payment_id"`
	Statement BookingStatement `json:"statement"`
	Completed bool             `json:"completed"`
}

// BookingFilter narrows List. Empty fields do not filter.
type BookingFilter struct {
	ProjectID string
	Status    core.BookingStatus
}

func (s *BookingService) List(ctx context.Context, scope core.Scope, f BookingFilter) ([]core.Booking, error) {
	project, err := scope.Resolve(f.ProjectID)
	if err != nil {
		return nil, fmt.Errorf("project %s: %w", f.ProjectID, err)
	}
	all, err := s.store.ListBookings(ctx, storage.Query{ProjectID: project})
	if err != nil {
		return nil, fmt.Errorf("list bookings: %w", err)
	}
	out := all[:0]
	for _, b := range all {
		if f.Status != "" && b.Status != f.Status {
			continue
		}
		out = append(out, b)
	}
	return out, nil
}

func (s *BookingService) Get(ctx context.Context, scope core.Scope, id string) (core.Booking, error) {
	b, err := s.store.GetBooking(ctx, id)
	if err != nil {
		return core.Booking{}, fmt.Errorf("get booking: %w", err)
	}
	if err := checkScope(scope, b.ProjectID, "booking "+id); err != nil {
		return core.Booking{}, err
	}
	return b, nil
}

// Create reserves an available unit. The booking inherits the unit's
// project; its deposit, when positive, is stored as an itemized payment and
// the booking is stamped as reconciled so the deposit column mirrors the
// payments from then on.
func (s *BookingService) Create(ctx context.Context, scope core.Scope, in core.Booking) (core.Booking, error) {
	if in.UnitID == "" || in.CustomerID == "" {
		return core.Booking{}, core.ErrMissingLinkage
	}
	unit, err := s.store.GetUnit(ctx, in.UnitID)
	if err != nil {
		return core.Booking{}, fmt.Errorf("get unit: %w", err)
	}
	if err := checkScope(scope, unit.ProjectID, "unit "+unit.ID); err != nil {
		return core.Booking{}, err
	}
	customer, err := s.store.GetCustomer(ctx, in.CustomerID)
	if err != nil {
		return core.Booking{}, fmt.Errorf("get customer: %w", err)
	}
	if customer.ProjectID != "" {
		if err := checkScope(scope, customer.ProjectID, "customer "+customer.ID); err != nil {
			return core.Booking{}, err
		}
	}

	b := in
	b.ID = ""
	b.ProjectID = unit.ProjectID
	b.Status = core.BookingActive
	if b.BookingDate.IsZero() {
		b.BookingDate = core.DateOf(s.now())
	}
	reconciled := true
	b.DepositReconciled = &reconciled
	if err := b.Validate(); err != nil {
		return core.Booking{}, err
	}
	if unit.Status != core.UnitAvailable {
		return core.Booking{}, fmt.Errorf("unit %s is %s: %w", unit.ID, unit.Status, core.ErrInvalidState)
	}

	saved, err := s.store.SaveBooking(ctx, b)
	if err != nil {
		return core.Booking{}, fmt.Errorf("save booking: %w", err)
	}

	var deposit core.Payment
	if saved.AmountPaid > 0 {
		deposit, err = s.store.SavePayment(ctx, core.Payment{
			BookingID:   saved.ID,
			Amount:      saved.AmountPaid,
			PaymentDate: saved.BookingDate,
			PaymentType: PaymentTypeDeposit,
		})
		if err != nil {
			s.undo(ctx, "delete booking", func() error { return s.store.DeleteBooking(ctx, saved.ID) })
			return core.Booking{}, fmt.Errorf("save deposit: %w", err)
		}
	}

	unit.Status = core.UnitReserved
	if _, err := s.store.SaveUnit(ctx, unit); err != nil {
		if deposit.ID != "" {
			s.undo(ctx, "delete deposit", func() error { return s.store.DeletePayment(ctx, deposit.ID) })
		}
		s.undo(ctx, "delete booking", func() error { return s.store.DeleteBooking(ctx, saved.ID) })
		return core.Booking{}, fmt.Errorf("reserve unit: %w", err)
	}

	s.fx.logger.InfoContext(ctx, "Booking created",
		log.NewFields().WithOperation(log.OpCreate).WithBooking(saved.ID, saved.ProjectID).WithAmount(saved.AmountPaid).ToSlice()...)
	s.fx.changed(ctx, storage.KindBookings, storage.KindUnits, storage.KindPayments)
	s.fx.publish(ctx, amqp.NewEvent(amqp.EventBookingCreated, saved.ID, saved.ProjectID).
		WithAmount(saved.AmountPaid).WithActor(scope.Username))
	return saved, nil
}

// RecordPayment appends an itemized payment to an active booking and
// completes the booking when it becomes fully paid.
func (s *BookingService) RecordPayment(ctx context.Context, scope core.Scope, p core.Payment) (Receipt, error) {
	b, err := s.activeBooking(ctx, scope, p.BookingID)
	if err != nil {
		return Receipt{}, err
	}
	p.ID = ""
	if p.PaymentDate.IsZero() {
		p.PaymentDate = core.DateOf(s.now())
	}
	if p.PaymentType == "" {
		p.PaymentType = PaymentTypeInstallment
	}
	if err := p.Validate(); err != nil {
		return Receipt{}, err
	}

	if b.DepositReconciled == nil {
		if b, err = s.pinDepositMode(ctx, b); err != nil {
			return Receipt{}, err
		}
	}

	saved, err := s.store.SavePayment(ctx, p)
	if err != nil {
		return Receipt{}, fmt.Errorf("save payment: %w", err)
	}
	if err := s.mirrorDeposit(ctx, b); err != nil {
		s.undo(ctx, "delete payment", func() error { return s.store.DeletePayment(ctx, saved.ID) })
		return Receipt{}, err
	}

	if s.metrics != nil {
		s.metrics.PaymentsRecorded.Inc()
	}
	s.fx.changed(ctx, storage.KindPayments, storage.KindBookings)
	s.fx.publish(ctx, amqp.NewEvent(amqp.EventPaymentRecorded, b.ID, b.ProjectID).
		WithAmount(saved.Amount).WithActor(scope.Username))

	return s.settle(ctx, scope, b.ID, saved.ID)
}

// RecordExtraPayment appends an extra payment. Extras never touch the
// deposit column.
func (s *BookingService) RecordExtraPayment(ctx context.Context, scope core.Scope, e core.ExtraPayment) (Receipt, error) {
	b, err := s.activeBooking(ctx, scope, e.BookingID)
	if err != nil {
		return Receipt{}, err
	}
	e.ID = ""
	if e.PaymentDate.IsZero() {
		e.PaymentDate = core.DateOf(s.now())
	}
	if err := e.Validate(); err != nil {
		return Receipt{}, err
	}
	saved, err := s.store.SaveExtraPayment(ctx, e)
	if err != nil {
		return Receipt{}, fmt.Errorf("save extra payment: %w", err)
	}

	if s.metrics != nil {
		s.metrics.PaymentsRecorded.Inc()
	}
	s.fx.changed(ctx, storage.KindExtraPayments)
	s.fx.publish(ctx, amqp.NewEvent(amqp.EventPaymentRecorded, b.ID, b.ProjectID).
		WithAmount(saved.Amount).WithActor(scope.Username))

	return s.settle(ctx, scope, b.ID, saved.ID)
}

// Cancel releases the unit of an active booking.
func (s *BookingService) Cancel(ctx context.Context, scope core.Scope, id string) (core.Booking, error) {
	b, err := s.activeBooking(ctx, scope, id)
	if err != nil {
		return core.Booking{}, err
	}
	unit, err := s.store.GetUnit(ctx, b.UnitID)
	if err != nil {
		return core.Booking{}, fmt.Errorf("get unit: %w", err)
	}

	prev := b
	b.Status = core.BookingCancelled
	saved, err := s.store.SaveBooking(ctx, b)
	if err != nil {
		return core.Booking{}, fmt.Errorf("save booking: %w", err)
	}
	unit.Status = core.UnitAvailable
	if _, err := s.store.SaveUnit(ctx, unit); err != nil {
		s.undo(ctx, "restore booking", func() error { _, err := s.store.SaveBooking(ctx, prev); return err })
		return core.Booking{}, fmt.Errorf("release unit: %w", err)
	}

	s.fx.logger.InfoContext(ctx, "Booking cancelled",
		log.NewFields().WithOperation(log.OpCancel).WithBooking(saved.ID, saved.ProjectID).ToSlice()...)
	s.fx.changed(ctx, storage.KindBookings, storage.KindUnits)
	s.fx.publish(ctx, amqp.NewEvent(amqp.EventBookingCancelled, saved.ID, saved.ProjectID).WithActor(scope.Username))
	return saved, nil
}

// Delete hard-deletes an archived booking with its payment history. Only
// admins may do it and only for cancelled bookings.
func (s *BookingService) Delete(ctx context.Context, scope core.Scope, id string) error {
	if err := requireAdmin(scope, "delete booking"); err != nil {
		return err
	}
	b, err := s.Get(ctx, scope, id)
	if err != nil {
		return err
	}
	if b.Status != core.BookingCancelled {
		return fmt.Errorf("booking %s is %s: %w", id, b.Status, core.ErrInvalidState)
	}

	payments, err := s.store.ListPayments(ctx, storage.Query{BookingID: id})
	if err != nil {
		return fmt.Errorf("list payments: %w", err)
	}
	extras, err := s.store.ListExtraPayments(ctx, storage.Query{BookingID: id})
	if err != nil {
		return fmt.Errorf("list extra payments: %w", err)
	}
	for _, p := range payments {
		if err := s.store.DeletePayment(ctx, p.ID); err != nil && !errors.Is(err, core.ErrNotFound) {
			return fmt.Errorf("delete payment %s: %w", p.ID, err)
		}
	}
	for _, e := range extras {
		if err := s.store.DeleteExtraPayment(ctx, e.ID); err != nil && !errors.Is(err, core.ErrNotFound) {
			return fmt.Errorf("delete extra payment %s: %w", e.ID, err)
		}
	}
	if err := s.store.DeleteBooking(ctx, id); err != nil {
		return fmt.Errorf("delete booking: %w", err)
	}

	s.fx.logger.InfoContext(ctx, "Archived booking deleted",
		log.NewFields().WithOperation(log.OpDelete).WithBooking(id, b.ProjectID).ToSlice()...)
	s.fx.changed(ctx, storage.KindBookings, storage.KindPayments, storage.KindExtraPayments)
	return nil
}

func (s *BookingService) activeBooking(ctx context.Context, scope core.Scope, id string) (core.Booking, error) {
	if id == "" {
		return core.Booking{}, core.ErrMissingLinkage
	}
	b, err := s.Get(ctx, scope, id)
	if err != nil {
		return core.Booking{}, err
	}
	if b.Status != core.BookingActive {
		return core.Booking{}, fmt.Errorf("booking %s is %s: %w", id, b.Status, core.ErrInvalidState)
	}
	return b, nil
}

// pinDepositMode stamps an unflagged booking with the deposit mode its
// current rows resolve to. Without it a new payment could bring the
// itemized sum level with the deposit and flip the booking to mirrored,
// dropping the deposit from the total.
func (s *BookingService) pinDepositMode(ctx context.Context, b core.Booking) (core.Booking, error) {
	payments, err := s.store.ListPayments(ctx, storage.Query{BookingID: b.ID})
	if err != nil {
		return core.Booking{}, fmt.Errorf("list payments: %w", err)
	}
	n := ledger.Normalize(b, payments, nil)
	reconciled := !n.DepositCounted
	b.DepositReconciled = &reconciled
	saved, err := s.store.SaveBooking(ctx, b)
	if err != nil {
		return core.Booking{}, fmt.Errorf("pin deposit mode: %w", err)
	}
	s.fx.logger.InfoContext(ctx, "Deposit mode pinned",
		append(log.NewFields().WithBooking(b.ID, b.ProjectID).ToSlice(), "method", n.Method, "reconciled", reconciled)...)
	return saved, nil
}

// mirrorDeposit keeps AmountPaid equal to the itemized sum on reconciled
// bookings. Legacy bookings keep their standalone deposit.
func (s *BookingService) mirrorDeposit(ctx context.Context, b core.Booking) error {
	if b.DepositReconciled == nil || !*b.DepositReconciled {
		return nil
	}
	payments, err := s.store.ListPayments(ctx, storage.Query{BookingID: b.ID})
	if err != nil {
		return fmt.Errorf("list payments: %w", err)
	}
	var sum decimal.Decimal
	for _, p := range payments {
		if core.IsFinite(p.Amount) {
			sum = sum.Add(decimal.NewFromFloat(p.Amount))
		}
	}
	b.AmountPaid = sum.InexactFloat64()
	if _, err := s.store.SaveBooking(ctx, b); err != nil {
		return fmt.Errorf("mirror deposit: %w", err)
	}
	return nil
}

// settle reconciles the booking after a payment and completes it when fully
// paid. A failed completion is logged and left for the next payment; the
// payment itself is already committed.
func (s *BookingService) settle(ctx context.Context, scope core.Scope, bookingID, paymentID string) (Receipt, error) {
	st, err := s.ledger.Statement(ctx, scope, bookingID)
	if err != nil {
		return Receipt{}, fmt.Errorf("reconcile booking: %w", err)
	}
	r := Receipt{PaymentID: paymentID, Statement: st}
	if !st.Balance.IsFullyPaid {
		return r, nil
	}
	if err := s.complete(ctx, st.Booking, st.Unit); err != nil {
		s.fx.logger.ErrorContext(ctx, "Failed to complete fully paid booking",
			log.NewFields().WithBooking(bookingID, st.Booking.ProjectID).WithError(err).ToSlice()...)
		return r, nil
	}
	r.Completed = true
	r.Statement.Booking.Status = core.BookingCompleted
	r.Statement.Unit.Status = core.UnitSold

	s.fx.changed(ctx, storage.KindBookings, storage.KindUnits)
	s.fx.publish(ctx, amqp.NewEvent(amqp.EventBookingCompleted, bookingID, st.Booking.ProjectID).
		WithAmount(st.Balance.TotalPaid).WithActor(scope.Username))
	return r, nil
}

func (s *BookingService) complete(ctx context.Context, b core.Booking, unit core.Unit) error {
	prev := b
	b.Status = core.BookingCompleted
	if _, err := s.store.SaveBooking(ctx, b); err != nil {
		return fmt.Errorf("save booking: %w", err)
	}
	unit.Status = core.UnitSold
	if _, err := s.store.SaveUnit(ctx, unit); err != nil {
		s.undo(ctx, "restore booking", func() error { _, err := s.store.SaveBooking(ctx, prev); return err })
		return fmt.Errorf("mark unit sold: %w", err)
	}
	return nil
}

// undo runs a compensating write. Its failure leaves the store
// inconsistent, so it is logged loudly.
func (s *BookingService) undo(ctx context.Context, what string, fn func() error) {
	if err := fn(); err != nil {
		s.fx.logger.ErrorContext(ctx, "Rollback failed", log.FieldOperation, what, log.FieldError, err)
	}
}
