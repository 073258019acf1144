// Package storage defines the persistence port used by services and its
// SQLite implementation.
package storage

import (
	"context"
	"strings"

	"estate/internal/core"

	"github.com/google/uuid"
)

// Query narrows a list call. Empty fields do not filter.
type Query struct {
	ProjectID string
	BookingID string
	ExpenseID string
}

// Kind names an entity collection. Change notifications are keyed by kind.
type Kind string

const (
	KindProjects      Kind = "projects"
	KindUnits         Kind = "units"
	KindCustomers     Kind = "customers"
	KindBookings      Kind = "bookings"
	KindPayments      Kind = "payments"
	KindExtraPayments Kind = "extra_payments"
	KindExpenses      Kind = "expenses"
	KindCategories    Kind = "categories"
	KindDocuments     Kind = "documents"
	KindUsers         Kind = "users"
	KindNotifications Kind = "notifications"
)

// Save methods create the record when its ID is empty and replace it
// otherwise, returning the persisted shape. Get methods return
// core.ErrNotFound for unknown IDs.

type ProjectStore interface {
	ListProjects(ctx context.Context) ([]core.Project, error)
	GetProject(ctx context.Context, id string) (core.Project, error)
	SaveProject(ctx context.Context, p core.Project) (core.Project, error)
}

type UnitStore interface {
	ListUnits(ctx context.Context, q Query) ([]core.Unit, error)
	GetUnit(ctx context.Context, id string) (core.Unit, error)
	SaveUnit(ctx context.Context, u core.Unit) (core.Unit, error)
}

type CustomerStore interface {
	ListCustomers(ctx context.Context, q Query) ([]core.Customer, error)
	GetCustomer(ctx context.Context, id string) (core.Customer, error)
	SaveCustomer(ctx context.Context, c core.Customer) (core.Customer, error)
}

type BookingStore interface {
	ListBookings(ctx context.Context, q Query) ([]core.Booking, error)
	GetBooking(ctx context.Context, id string) (core.Booking, error)
	SaveBooking(ctx context.Context, b core.Booking) (core.Booking, error)
	DeleteBooking(ctx context.Context, id string) error
}

// PaymentStore filters payments and extra payments by project through
// their booking.
type PaymentStore interface {
	ListPayments(ctx context.Context, q Query) ([]core.Payment, error)
	SavePayment(ctx context.Context, p core.Payment) (core.Payment, error)
	DeletePayment(ctx context.Context, id string) error
	ListExtraPayments(ctx context.Context, q Query) ([]core.ExtraPayment, error)
	SaveExtraPayment(ctx context.Context, e core.ExtraPayment) (core.ExtraPayment, error)
	DeleteExtraPayment(ctx context.Context, id string) error
}

type ExpenseStore interface {
	ListExpenses(ctx context.Context, q Query) ([]core.Expense, error)
	GetExpense(ctx context.Context, id string) (core.Expense, error)
	SaveExpense(ctx context.Context, e core.Expense) (core.Expense, error)
	DeleteExpense(ctx context.Context, id string) error
	// ListCategories with a ProjectID returns that project's categories
	// plus the shared ones.
	ListCategories(ctx context.Context, q Query) ([]core.ExpenseCategory, error)
	SaveCategory(ctx context.Context, c core.ExpenseCategory) (core.ExpenseCategory, error)
	DeleteCategory(ctx context.Context, id string) error
}

type DocumentStore interface {
	ListDocuments(ctx context.Context, q Query) ([]core.Document, error)
	GetDocument(ctx context.Context, id string) (core.Document, error)
	SaveDocument(ctx context.Context, d core.Document) (core.Document, error)
}

// UserStore returns core.ErrConflict when a username is taken.
type UserStore interface {
	ListUsers(ctx context.Context) ([]core.User, error)
	GetUser(ctx context.Context, id string) (core.User, error)
	GetUserByUsername(ctx context.Context, username string) (core.User, error)
	SaveUser(ctx context.Context, u core.User) (core.User, error)
}

// NotificationStore lists a project's notifications plus global ones when
// filtered by ProjectID.
type NotificationStore interface {
	ListNotifications(ctx context.Context, q Query) ([]core.Notification, error)
	SaveNotification(ctx context.Context, n core.Notification) (core.Notification, error)
	MarkNotificationRead(ctx context.Context, id string) error
}

// Store is the full persistence port.
type Store interface {
	ProjectStore
	UnitStore
	CustomerStore
	BookingStore
	PaymentStore
	ExpenseStore
	DocumentStore
	UserStore
	NotificationStore
	Ping(ctx context.Context) error
	Close() error
}

// NewID returns a fresh record identifier.
func NewID() string {
	return uuid.NewString()
}

// NormalizeUsername is the canonical form used for uniqueness checks.
func NormalizeUsername(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}
