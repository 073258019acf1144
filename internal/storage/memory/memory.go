// Package memory is an in-process storage.Store used for development and
// tests. Records are copied in and out, so callers never share state with
// the store.
package memory

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"estate/internal/core"
	"estate/internal/storage"
)

type Store struct {
	mu            sync.RWMutex
	now           func() time.Time
	projects      map[string]core.Project
	units         map[string]core.Unit
	customers     map[string]core.Customer
	bookings      map[string]core.Booking
	payments      map[string]core.Payment
	extras        map[string]core.ExtraPayment
	expenses      map[string]core.Expense
	categories    map[string]core.ExpenseCategory
	documents     map[string]core.Document
	users         map[string]core.User
	notifications map[string]core.Notification
}

var _ storage.Store = (*Store)(nil)

// Seed is the JSON fixture accepted by NewFromFiles.
type Seed struct {
	Projects      []core.Project         `json:"projects"`
	Units         []core.Unit            `json:"units"`
	Customers     []core.Customer        `json:"customers"`
	Bookings      []core.Booking         `json:"bookings"`
	Payments      []core.Payment         `json:"payments"`
	ExtraPayments []core.ExtraPayment    `json:"extra_payments"`
	Expenses      []core.Expense         `json:"expenses"`
	Categories    []core.ExpenseCategory `json:"categories"`
}

func New() *Store {
	return &Store{
		now:           time.Now,
		projects:      map[string]core.Project{},
		units:         map[string]core.Unit{},
		customers:     map[string]core.Customer{},
		bookings:      map[string]core.Booking{},
		payments:      map[string]core.Payment{},
		extras:        map[string]core.ExtraPayment{},
		expenses:      map[string]core.Expense{},
		categories:    map[string]core.ExpenseCategory{},
		documents:     map[string]core.Document{},
		users:         map[string]core.User{},
		notifications: map[string]core.Notification{},
	}
}

// NewFromFiles loads base/seed.json when present and adds one shared
// category per line of base/seed_categories.txt.
func NewFromFiles(base string) (*Store, error) {
	s := New()
	raw, err := os.ReadFile(filepath.Join(base, "seed.json"))
	switch {
	case err == nil:
		var seed Seed
		if err := json.Unmarshal(raw, &seed); err != nil {
			return nil, fmt.Errorf("parse seed.json: %w", err)
		}
		s.Load(seed)
	case !os.IsNotExist(err):
		return nil, fmt.Errorf("read seed.json: %w", err)
	}

	for _, name := range readLines(filepath.Join(base, "seed_categories.txt")) {
		id := strings.ToLower(strings.ReplaceAll(name, " ", "-"))
		if _, ok := s.categories[id]; !ok {
			s.categories[id] = core.ExpenseCategory{ID: id, Name: name}
		}
	}
	return s, nil
}

// Load inserts every record of seed, keeping the IDs it carries.
func (s *Store) Load(seed Seed) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, v := range seed.Projects {
		s.projects[v.ID] = v
	}
	for _, v := range seed.Units {
		s.units[v.ID] = v
	}
	for _, v := range seed.Customers {
		s.customers[v.ID] = v
	}
	for _, v := range seed.Bookings {
		s.bookings[v.ID] = v
	}
	for _, v := range seed.Payments {
		s.payments[v.ID] = v
	}
	for _, v := range seed.ExtraPayments {
		s.extras[v.ID] = v
	}
	for _, v := range seed.Expenses {
		s.expenses[v.ID] = v
	}
	for _, v := range seed.Categories {
		s.categories[v.ID] = v
	}
}

func (s *Store) Ping(context.Context) error { return nil }
func (s *Store) Close() error               { return nil }

func ensureID(id string) string {
	if id == "" {
		return storage.NewID()
	}
	return id
}

func (s *Store) stamp(t time.Time) time.Time {
	if t.IsZero() {
		return s.now().UTC()
	}
	return t
}

func notFound(kind storage.Kind, id string) error {
	return fmt.Errorf("%s %s: %w", kind, id, core.ErrNotFound)
}

func collect[T any](m map[string]T, keep func(T) bool, less func(a, b T) bool) []T {
	out := make([]T, 0, len(m))
	for _, v := range m {
		if keep == nil || keep(v) {
			out = append(out, v)
		}
	}
	sort.Slice(out, func(i, j int) bool { return less(out[i], out[j]) })
	return out
}

func get[T any](m map[string]T, kind storage.Kind, id string) (T, error) {
	v, ok := m[id]
	if !ok {
		var zero T
		return zero, notFound(kind, id)
	}
	return v, nil
}

func remove[T any](m map[string]T, kind storage.Kind, id string) error {
	if _, ok := m[id]; !ok {
		return notFound(kind, id)
	}
	delete(m, id)
	return nil
}

func (s *Store) bookingProject(bookingID string) string {
	return s.bookings[bookingID].ProjectID
}

// Projects

func (s *Store) ListProjects(context.Context) ([]core.Project, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return collect(s.projects, nil, func(a, b core.Project) bool {
		if a.Name != b.Name {
			return a.Name < b.Name
		}
		return a.ID < b.ID
	}), nil
}

func (s *Store) GetProject(_ context.Context, id string) (core.Project, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return get(s.projects, storage.KindProjects, id)
}

func (s *Store) SaveProject(_ context.Context, p core.Project) (core.Project, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p.ID = ensureID(p.ID)
	p.CreatedAt = s.stamp(p.CreatedAt)
	s.projects[p.ID] = p
	return p, nil
}

// Units

func (s *Store) ListUnits(_ context.Context, q storage.Query) ([]core.Unit, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return collect(s.units, func(u core.Unit) bool {
		return q.ProjectID == "" || u.ProjectID == q.ProjectID
	}, func(a, b core.Unit) bool {
		if a.Name != b.Name {
			return a.Name < b.Name
		}
		return a.ID < b.ID
	}), nil
}

func (s *Store) GetUnit(_ context.Context, id string) (core.Unit, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return get(s.units, storage.KindUnits, id)
}

func (s *Store) SaveUnit(_ context.Context, u core.Unit) (core.Unit, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	u.ID = ensureID(u.ID)
	if u.Status == "" {
		u.Status = core.UnitAvailable
	}
	s.units[u.ID] = u
	return u, nil
}

// Customers

func (s *Store) ListCustomers(_ context.Context, q storage.Query) ([]core.Customer, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return collect(s.customers, func(c core.Customer) bool {
		return q.ProjectID == "" || c.ProjectID == "" || c.ProjectID == q.ProjectID
	}, func(a, b core.Customer) bool {
		if a.Name != b.Name {
			return a.Name < b.Name
		}
		return a.ID < b.ID
	}), nil
}

func (s *Store) GetCustomer(_ context.Context, id string) (core.Customer, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return get(s.customers, storage.KindCustomers, id)
}

func (s *Store) SaveCustomer(_ context.Context, c core.Customer) (core.Customer, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c.ID = ensureID(c.ID)
	s.customers[c.ID] = c
	return c, nil
}

// Bookings

func copyBooking(b core.Booking) core.Booking {
	if b.DepositReconciled != nil {
		v := *b.DepositReconciled
		b.DepositReconciled = &v
	}
	return b
}

func (s *Store) ListBookings(_ context.Context, q storage.Query) ([]core.Booking, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := collect(s.bookings, func(b core.Booking) bool {
		return q.ProjectID == "" || b.ProjectID == q.ProjectID
	}, func(a, b core.Booking) bool {
		if !a.BookingDate.Equal(b.BookingDate.Time) {
			return a.BookingDate.After(b.BookingDate.Time)
		}
		return a.ID < b.ID
	})
	for i := range out {
		out[i] = copyBooking(out[i])
	}
	return out, nil
}

func (s *Store) GetBooking(_ context.Context, id string) (core.Booking, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	b, err := get(s.bookings, storage.KindBookings, id)
	return copyBooking(b), err
}

func (s *Store) SaveBooking(_ context.Context, b core.Booking) (core.Booking, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	b.ID = ensureID(b.ID)
	if b.Status == "" {
		b.Status = core.BookingActive
	}
	b = copyBooking(b)
	s.bookings[b.ID] = b
	return copyBooking(b), nil
}

func (s *Store) DeleteBooking(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return remove(s.bookings, storage.KindBookings, id)
}

// Payments

func (s *Store) matchesBooking(q storage.Query, bookingID string) bool {
	if q.BookingID != "" && bookingID != q.BookingID {
		return false
	}
	return q.ProjectID == "" || s.bookingProject(bookingID) == q.ProjectID
}

func (s *Store) ListPayments(_ context.Context, q storage.Query) ([]core.Payment, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return collect(s.payments, func(p core.Payment) bool {
		return s.matchesBooking(q, p.BookingID)
	}, func(a, b core.Payment) bool {
		if !a.PaymentDate.Equal(b.PaymentDate.Time) {
			return a.PaymentDate.Before(b.PaymentDate.Time)
		}
		return a.ID < b.ID
	}), nil
}

func (s *Store) SavePayment(_ context.Context, p core.Payment) (core.Payment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p.ID = ensureID(p.ID)
	s.payments[p.ID] = p
	return p, nil
}

func (s *Store) DeletePayment(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return remove(s.payments, storage.KindPayments, id)
}

func (s *Store) ListExtraPayments(_ context.Context, q storage.Query) ([]core.ExtraPayment, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return collect(s.extras, func(e core.ExtraPayment) bool {
		return s.matchesBooking(q, e.BookingID)
	}, func(a, b core.ExtraPayment) bool {
		if !a.PaymentDate.Equal(b.PaymentDate.Time) {
			return a.PaymentDate.Before(b.PaymentDate.Time)
		}
		return a.ID < b.ID
	}), nil
}

func (s *Store) SaveExtraPayment(_ context.Context, e core.ExtraPayment) (core.ExtraPayment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e.ID = ensureID(e.ID)
	s.extras[e.ID] = e
	return e, nil
}

func (s *Store) DeleteExtraPayment(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return remove(s.extras, storage.KindExtraPayments, id)
}

// Expenses and categories

func (s *Store) ListExpenses(_ context.Context, q storage.Query) ([]core.Expense, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return collect(s.expenses, func(e core.Expense) bool {
		return q.ProjectID == "" || e.ProjectID == q.ProjectID
	}, func(a, b core.Expense) bool {
		if !a.Date.Equal(b.Date.Time) {
			return a.Date.After(b.Date.Time)
		}
		return a.ID < b.ID
	}), nil
}

func (s *Store) GetExpense(_ context.Context, id string) (core.Expense, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return get(s.expenses, storage.KindExpenses, id)
}

func (s *Store) SaveExpense(_ context.Context, e core.Expense) (core.Expense, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e.ID = ensureID(e.ID)
	s.expenses[e.ID] = e
	return e, nil
}

func (s *Store) DeleteExpense(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return remove(s.expenses, storage.KindExpenses, id)
}

func (s *Store) ListCategories(_ context.Context, q storage.Query) ([]core.ExpenseCategory, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return collect(s.categories, func(c core.ExpenseCategory) bool {
		return q.ProjectID == "" || c.ProjectID == "" || c.ProjectID == q.ProjectID
	}, func(a, b core.ExpenseCategory) bool {
		if a.Name != b.Name {
			return a.Name < b.Name
		}
		return a.ID < b.ID
	}), nil
}

func (s *Store) SaveCategory(_ context.Context, c core.ExpenseCategory) (core.ExpenseCategory, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c.ID = ensureID(c.ID)
	s.categories[c.ID] = c
	return c, nil
}

func (s *Store) DeleteCategory(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return remove(s.categories, storage.KindCategories, id)
}

// Documents

func (s *Store) ListDocuments(_ context.Context, q storage.Query) ([]core.Document, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return collect(s.documents, func(d core.Document) bool {
		return (q.ProjectID == "" || d.ProjectID == q.ProjectID) &&
			(q.BookingID == "" || d.BookingID == q.BookingID) &&
			(q.ExpenseID == "" || d.ExpenseID == q.ExpenseID)
	}, func(a, b core.Document) bool {
		if !a.CreatedAt.Equal(b.CreatedAt) {
			return a.CreatedAt.After(b.CreatedAt)
		}
		return a.ID < b.ID
	}), nil
}

func (s *Store) GetDocument(_ context.Context, id string) (core.Document, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return get(s.documents, storage.KindDocuments, id)
}

func (s *Store) SaveDocument(_ context.Context, d core.Document) (core.Document, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	d.ID = ensureID(d.ID)
	d.CreatedAt = s.stamp(d.CreatedAt)
	s.documents[d.ID] = d
	return d, nil
}

// Users

func (s *Store) ListUsers(context.Context) ([]core.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return collect(s.users, nil, func(a, b core.User) bool { return a.Username < b.Username }), nil
}

func (s *Store) GetUser(_ context.Context, id string) (core.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return get(s.users, storage.KindUsers, id)
}

func (s *Store) GetUserByUsername(_ context.Context, username string) (core.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	username = storage.NormalizeUsername(username)
	for _, u := range s.users {
		if u.Username == username {
			return u, nil
		}
	}
	return core.User{}, notFound(storage.KindUsers, username)
}

func (s *Store) SaveUser(_ context.Context, u core.User) (core.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	u.ID = ensureID(u.ID)
	u.Username = storage.NormalizeUsername(u.Username)
	for _, other := range s.users {
		if other.Username == u.Username && other.ID != u.ID {
			return u, fmt.Errorf("username %q: %w", u.Username, core.ErrConflict)
		}
	}
	u.CreatedAt = s.stamp(u.CreatedAt)
	s.users[u.ID] = u
	return u, nil
}

// Notifications

func (s *Store) ListNotifications(_ context.Context, q storage.Query) ([]core.Notification, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return collect(s.notifications, func(n core.Notification) bool {
		return q.ProjectID == "" || n.ProjectID == "" || n.ProjectID == q.ProjectID
	}, func(a, b core.Notification) bool {
		if !a.CreatedAt.Equal(b.CreatedAt) {
			return a.CreatedAt.After(b.CreatedAt)
		}
		return a.ID < b.ID
	}), nil
}

func (s *Store) SaveNotification(_ context.Context, n core.Notification) (core.Notification, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	n.ID = ensureID(n.ID)
	n.CreatedAt = s.stamp(n.CreatedAt)
	s.notifications[n.ID] = n
	return n, nil
}

func (s *Store) MarkNotificationRead(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	n, ok := s.notifications[id]
	if !ok {
		return notFound(storage.KindNotifications, id)
	}
	n.Read = true
	s.notifications[id] = n
	return nil
}

func readLines(path string) []string {
	f, err := os.Open(path)
	if err != nil {
		return nil
	}
	defer f.Close()
	var out []string
	sc := bufio.NewScanner(f)
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		out = append(out, line)
	}
	return out
}
