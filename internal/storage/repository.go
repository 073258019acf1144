package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"estate/internal/core"

	_ "modernc.org/sqlite"
)

type SQLiteRepository struct {
	db            *sql.DB
	schemaVersion uint
	now           func() time.Time
}

var _ Store = (*SQLiteRepository)(nil)

// NewSQLiteRepository opens the database file at dbPath, creating it and
// applying migrations as needed. Migrations run on their own connection, so
// dbPath must name a file rather than ":memory:".
func NewSQLiteRepository(dbPath string) (*SQLiteRepository, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	version, err := RunMigrations(dbPath)
	if err != nil {
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}
	// SQLite serializes writers; one connection avoids SQLITE_BUSY.
	db.SetMaxOpenConns(1)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	slog.Info("SQLite repository ready", "db_path", dbPath, "schema_version", version)

	return &SQLiteRepository{db: db, schemaVersion: version, now: time.Now}, nil
}

func (r *SQLiteRepository) Close() error {
	if r.db != nil {
		return r.db.Close()
	}
	return nil
}

func (r *SQLiteRepository) Ping(ctx context.Context) error {
	return r.db.PingContext(ctx)
}

func (r *SQLiteRepository) SchemaVersion() uint { return r.schemaVersion }

type scanner interface {
	Scan(dest ...any) error
}

// where accumulates optional AND conditions.
type where struct {
	clauses []string
	args    []any
}

func (w *where) add(clause string, args ...any) {
	w.clauses = append(w.clauses, clause)
	w.args = append(w.args, args...)
}

func (w *where) String() string {
	if len(w.clauses) == 0 {
		return ""
	}
	return " WHERE " + strings.Join(w.clauses, " AND ")
}

func notFound(kind Kind, id string, err error) error {
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("%s %s: %w", kind, id, core.ErrNotFound)
	}
	return fmt.Errorf("get %s %s: %w", kind, id, err)
}

func parseDate(s string) core.Date {
	if s == "" {
		return core.Date{}
	}
	d, err := core.ParseDate(s)
	if err != nil {
		return core.Date{}
	}
	return d
}

func parseTime(s string) time.Time {
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return time.Time{}
	}
	return t
}

func formatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}

func (r *SQLiteRepository) stamp(t time.Time) time.Time {
	if t.IsZero() {
		return r.now().UTC()
	}
	return t
}

func ensureID(id string) string {
	if id == "" {
		return NewID()
	}
	return id
}

func (r *SQLiteRepository) exec(ctx context.Context, op string, query string, args ...any) error {
	if _, err := r.db.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}

func (r *SQLiteRepository) deleteByID(ctx context.Context, kind Kind, table, id string) error {
	res, err := r.db.ExecContext(ctx, "DELETE FROM "+table+" WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("delete %s %s: %w", kind, id, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("%s %s: %w", kind, id, core.ErrNotFound)
	}
	return nil
}

// Projects

func scanProject(s scanner) (core.Project, error) {
	var p core.Project
	var created string
	if err := s.Scan(&p.ID, &p.Name, &created); err != nil {
		return p, err
	}
	p.CreatedAt = parseTime(created)
	return p, nil
}

func (r *SQLiteRepository) ListProjects(ctx context.Context) ([]core.Project, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT id, name, created_at FROM projects ORDER BY name, id`)
	if err != nil {
		return nil, fmt.Errorf("list projects: %w", err)
	}
	defer rows.Close()

	out := []core.Project{}
	for rows.Next() {
		p, err := scanProject(rows)
		if err != nil {
			return nil, fmt.Errorf("scan project: %w", err)
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

func (r *SQLiteRepository) GetProject(ctx context.Context, id string) (core.Project, error) {
	p, err := scanProject(r.db.QueryRowContext(ctx, `SELECT id, name, created_at FROM projects WHERE id = ?`, id))
	if err != nil {
		return p, notFound(KindProjects, id, err)
	}
	return p, nil
}

func (r *SQLiteRepository) SaveProject(ctx context.Context, p core.Project) (core.Project, error) {
	p.ID = ensureID(p.ID)
	p.CreatedAt = r.stamp(p.CreatedAt)
	err := r.exec(ctx, "save project", `
		INSERT INTO projects (id, name, created_at) VALUES (?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET name = excluded.name`,
		p.ID, p.Name, formatTime(p.CreatedAt))
	return p, err
}

// Units

const unitColumns = `id, name, price, status, project_id`

func scanUnit(s scanner) (core.Unit, error) {
	var u core.Unit
	var status string
	if err := s.Scan(&u.ID, &u.Name, &u.Price, &status, &u.ProjectID); err != nil {
		return u, err
	}
	u.Status = core.UnitStatus(status)
	return u, nil
}

func (r *SQLiteRepository) ListUnits(ctx context.Context, q Query) ([]core.Unit, error) {
	var w where
	if q.ProjectID != "" {
		w.add("project_id = ?", q.ProjectID)
	}
	rows, err := r.db.QueryContext(ctx, `SELECT `+unitColumns+` FROM units`+w.String()+` ORDER BY name, id`, w.args...)
	if err != nil {
		return nil, fmt.Errorf("list units: %w", err)
	}
	defer rows.Close()

	out := []core.Unit{}
	for rows.Next() {
		u, err := scanUnit(rows)
		if err != nil {
			return nil, fmt.Errorf("scan unit: %w", err)
		}
		out = append(out, u)
	}
	return out, rows.Err()
}

func (r *SQLiteRepository) GetUnit(ctx context.Context, id string) (core.Unit, error) {
	u, err := scanUnit(r.db.QueryRowContext(ctx, `SELECT `+unitColumns+` FROM units WHERE id = ?`, id))
	if err != nil {
		return u, notFound(KindUnits, id, err)
	}
	return u, nil
}

func (r *SQLiteRepository) SaveUnit(ctx context.Context, u core.Unit) (core.Unit, error) {
	u.ID = ensureID(u.ID)
	if u.Status == "" {
		u.Status = core.UnitAvailable
	}
	err := r.exec(ctx, "save unit", `
		INSERT INTO units (`+unitColumns+`) VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET name = excluded.name, price = excluded.price,
			status = excluded.status, project_id = excluded.project_id`,
		u.ID, u.Name, u.Price, string(u.Status), u.ProjectID)
	return u, err
}

// Customers

const customerColumns = `id, name, phone, email, project_id`

func scanCustomer(s scanner) (core.Customer, error) {
	var c core.Customer
	err := s.Scan(&c.ID, &c.Name, &c.Phone, &c.Email, &c.ProjectID)
	return c, err
}

func (r *SQLiteRepository) ListCustomers(ctx context.Context, q Query) ([]core.Customer, error) {
	var w where
	if q.ProjectID != "" {
		w.add("(project_id = ? OR project_id = '')", q.ProjectID)
	}
	rows, err := r.db.QueryContext(ctx, `SELECT `+customerColumns+` FROM customers`+w.String()+` ORDER BY name, id`, w.args...)
	if err != nil {
		return nil, fmt.Errorf("list customers: %w", err)
	}
	defer rows.Close()

	out := []core.Customer{}
	for rows.Next() {
		c, err := scanCustomer(rows)
		if err != nil {
			return nil, fmt.Errorf("scan customer: %w", err)
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

func (r *SQLiteRepository) GetCustomer(ctx context.Context, id string) (core.Customer, error) {
	c, err := scanCustomer(r.db.QueryRowContext(ctx, `SELECT `+customerColumns+` FROM customers WHERE id = ?`, id))
	if err != nil {
		return c, notFound(KindCustomers, id, err)
	}
	return c, nil
}

func (r *SQLiteRepository) SaveCustomer(ctx context.Context, c core.Customer) (core.Customer, error) {
	c.ID = ensureID(c.ID)
	err := r.exec(ctx, "save customer", `
		INSERT INTO customers (`+customerColumns+`) VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET name = excluded.name, phone = excluded.phone,
			email = excluded.email, project_id = excluded.project_id`,
		c.ID, c.Name, c.Phone, c.Email, c.ProjectID)
	return c, err
}

// Bookings

const bookingColumns = `id, unit_id, customer_id, booking_date, amount_paid, status, project_id, deposit_reconciled, notes`

func scanBooking(s scanner) (core.Booking, error) {
	var b core.Booking
	var date, status string
	var reconciled sql.NullBool
	if err := s.Scan(&b.ID, &b.UnitID, &b.CustomerID, &date, &b.AmountPaid, &status, &b.ProjectID, &reconciled, &b.Notes); err != nil {
		return b, err
	}
	b.BookingDate = parseDate(date)
	b.Status = core.BookingStatus(status)
	if reconciled.Valid {
		v := reconciled.Bool
		b.DepositReconciled = &v
	}
	return b, nil
}

func (r *SQLiteRepository) ListBookings(ctx context.Context, q Query) ([]core.Booking, error) {
	var w where
	if q.ProjectID != "" {
		w.add("project_id = ?", q.ProjectID)
	}
	rows, err := r.db.QueryContext(ctx, `SELECT `+bookingColumns+` FROM bookings`+w.String()+` ORDER BY booking_date DESC, id`, w.args...)
	if err != nil {
		return nil, fmt.Errorf("list bookings: %w", err)
	}
	defer rows.Close()

	out := []core.Booking{}
	for rows.Next() {
		b, err := scanBooking(rows)
		if err != nil {
			return nil, fmt.Errorf("scan booking: %w", err)
		}
		out = append(out, b)
	}
	return out, rows.Err()
}

func (r *SQLiteRepository) GetBooking(ctx context.Context, id string) (core.Booking, error) {
	b, err := scanBooking(r.db.QueryRowContext(ctx, `SELECT `+bookingColumns+` FROM bookings WHERE id = ?`, id))
	if err != nil {
		return b, notFound(KindBookings, id, err)
	}
	return b, nil
}

func (r *SQLiteRepository) SaveBooking(ctx context.Context, b core.Booking) (core.Booking, error) {
	b.ID = ensureID(b.ID)
	if b.Status == "" {
		b.Status = core.BookingActive
	}
	var reconciled sql.NullBool
	if b.DepositReconciled != nil {
		reconciled = sql.NullBool{Bool: *b.DepositReconciled, Valid: true}
	}
	err := r.exec(ctx, "save booking", `
		INSERT INTO bookings (`+bookingColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET unit_id = excluded.unit_id, customer_id = excluded.customer_id,
			booking_date = excluded.booking_date, amount_paid = excluded.amount_paid,
			status = excluded.status, project_id = excluded.project_id,
			deposit_reconciled = excluded.deposit_reconciled, notes = excluded.notes`,
		b.ID, b.UnitID, b.CustomerID, b.BookingDate.String(), b.AmountPaid, string(b.Status), b.ProjectID, reconciled, b.Notes)
	return b, err
}

func (r *SQLiteRepository) DeleteBooking(ctx context.Context, id string) error {
	return r.deleteByID(ctx, KindBookings, "bookings", id)
}

// Payments

const paymentColumns = `p.id, p.booking_id, p.amount, p.payment_date, p.payment_type, p.account_id, p.notes`

func scanPayment(s scanner) (core.Payment, error) {
	var p core.Payment
	var date string
	if err := s.Scan(&p.ID, &p.BookingID, &p.Amount, &date, &p.PaymentType, &p.AccountID, &p.Notes); err != nil {
		return p, err
	}
	p.PaymentDate = parseDate(date)
	return p, nil
}

func bookingFilter(q Query) where {
	var w where
	if q.BookingID != "" {
		w.add("p.booking_id = ?", q.BookingID)
	}
	if q.ProjectID != "" {
		w.add("b.project_id = ?", q.ProjectID)
	}
	return w
}

func (r *SQLiteRepository) ListPayments(ctx context.Context, q Query) ([]core.Payment, error) {
	w := bookingFilter(q)
	rows, err := r.db.QueryContext(ctx, `SELECT `+paymentColumns+` FROM payments p
		LEFT JOIN bookings b ON b.id = p.booking_id`+w.String()+` ORDER BY p.payment_date, p.id`, w.args...)
	if err != nil {
		return nil, fmt.Errorf("list payments: %w", err)
	}
	defer rows.Close()

	out := []core.Payment{}
	for rows.Next() {
		p, err := scanPayment(rows)
		if err != nil {
			return nil, fmt.Errorf("scan payment: %w", err)
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

func (r *SQLiteRepository) SavePayment(ctx context.Context, p core.Payment) (core.Payment, error) {
	p.ID = ensureID(p.ID)
	err := r.exec(ctx, "save payment", `
		INSERT INTO payments (id, booking_id, amount, payment_date, payment_type, account_id, notes)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET booking_id = excluded.booking_id, amount = excluded.amount,
			payment_date = excluded.payment_date, payment_type = excluded.payment_type,
			account_id = excluded.account_id, notes = excluded.notes`,
		p.ID, p.BookingID, p.Amount, p.PaymentDate.String(), p.PaymentType, p.AccountID, p.Notes)
	return p, err
}

func (r *SQLiteRepository) DeletePayment(ctx context.Context, id string) error {
	return r.deleteByID(ctx, KindPayments, "payments", id)
}

func (r *SQLiteRepository) ListExtraPayments(ctx context.Context, q Query) ([]core.ExtraPayment, error) {
	w := bookingFilter(q)
	rows, err := r.db.QueryContext(ctx, `SELECT p.id, p.booking_id, p.amount, p.payment_date, p.description
		FROM extra_payments p LEFT JOIN bookings b ON b.id = p.booking_id`+w.String()+` ORDER BY p.payment_date, p.id`, w.args...)
	if err != nil {
		return nil, fmt.Errorf("list extra payments: %w", err)
	}
	defer rows.Close()

	out := []core.ExtraPayment{}
	for rows.Next() {
		var e core.ExtraPayment
		var date string
		if err := rows.Scan(&e.ID, &e.BookingID, &e.Amount, &date, &e.Description); err != nil {
			return nil, fmt.Errorf("scan extra payment: %w", err)
		}
		e.PaymentDate = parseDate(date)
		out = append(out, e)
	}
	return out, rows.Err()
}

func (r *SQLiteRepository) SaveExtraPayment(ctx context.Context, e core.ExtraPayment) (core.ExtraPayment, error) {
	e.ID = ensureID(e.ID)
	err := r.exec(ctx, "save extra payment", `
		INSERT INTO extra_payments (id, booking_id, amount, payment_date, description) VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET booking_id = excluded.booking_id, amount = excluded.amount,
			payment_date = excluded.payment_date, description = excluded.description`,
		e.ID, e.BookingID, e.Amount, e.PaymentDate.String(), e.Description)
	return e, err
}

func (r *SQLiteRepository) DeleteExtraPayment(ctx context.Context, id string) error {
	return r.deleteByID(ctx, KindExtraPayments, "extra_payments", id)
}

// Expenses and categories

const expenseColumns = `id, date, description, amount, category_id, project_id, account_id, notes`

func scanExpense(s scanner) (core.Expense, error) {
	var e core.Expense
	var date string
	if err := s.Scan(&e.ID, &date, &e.Description, &e.Amount, &e.CategoryID, &e.ProjectID, &e.AccountID, &e.Notes); err != nil {
		return e, err
	}
	e.Date = parseDate(date)
	return e, nil
}

func (r *SQLiteRepository) ListExpenses(ctx context.Context, q Query) ([]core.Expense, error) {
	var w where
	if q.ProjectID != "" {
		w.add("project_id = ?", q.ProjectID)
	}
	rows, err := r.db.QueryContext(ctx, `SELECT `+expenseColumns+` FROM expenses`+w.String()+` ORDER BY date DESC, id`, w.args...)
	if err != nil {
		return nil, fmt.Errorf("list expenses: %w", err)
	}
	defer rows.Close()

	out := []core.Expense{}
	for rows.Next() {
		e, err := scanExpense(rows)
		if err != nil {
			return nil, fmt.Errorf("scan expense: %w", err)
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

func (r *SQLiteRepository) GetExpense(ctx context.Context, id string) (core.Expense, error) {
	e, err := scanExpense(r.db.QueryRowContext(ctx, `SELECT `+expenseColumns+` FROM expenses WHERE id = ?`, id))
	if err != nil {
		return e, notFound(KindExpenses, id, err)
	}
	return e, nil
}

func (r *SQLiteRepository) SaveExpense(ctx context.Context, e core.Expense) (core.Expense, error) {
	e.ID = ensureID(e.ID)
	err := r.exec(ctx, "save expense", `
		INSERT INTO expenses (`+expenseColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET date = excluded.date, description = excluded.description,
			amount = excluded.amount, category_id = excluded.category_id, project_id = excluded.project_id,
			account_id = excluded.account_id, notes = excluded.notes`,
		e.ID, e.Date.String(), e.Description, e.Amount, e.CategoryID, e.ProjectID, e.AccountID, e.Notes)
	return e, err
}

func (r *SQLiteRepository) DeleteExpense(ctx context.Context, id string) error {
	return r.deleteByID(ctx, KindExpenses, "expenses", id)
}

func (r *SQLiteRepository) ListCategories(ctx context.Context, q Query) ([]core.ExpenseCategory, error) {
	var w where
	if q.ProjectID != "" {
		w.add("(project_id = ? OR project_id = '')", q.ProjectID)
	}
	rows, err := r.db.QueryContext(ctx, `SELECT id, name, project_id FROM expense_categories`+w.String()+` ORDER BY name, id`, w.args...)
	if err != nil {
		return nil, fmt.Errorf("list categories: %w", err)
	}
	defer rows.Close()

	out := []core.ExpenseCategory{}
	for rows.Next() {
		var c core.ExpenseCategory
		if err := rows.Scan(&c.ID, &c.Name, &c.ProjectID); err != nil {
			return nil, fmt.Errorf("scan category: %w", err)
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

func (r *SQLiteRepository) SaveCategory(ctx context.Context, c core.ExpenseCategory) (core.ExpenseCategory, error) {
	c.ID = ensureID(c.ID)
	err := r.exec(ctx, "save category", `
		INSERT INTO expense_categories (id, name, project_id) VALUES (?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET name = excluded.name, project_id = excluded.project_id`,
		c.ID, c.Name, c.ProjectID)
	return c, err
}

func (r *SQLiteRepository) DeleteCategory(ctx context.Context, id string) error {
	return r.deleteByID(ctx, KindCategories, "expense_categories", id)
}

// Documents

const documentColumns = `id, name, path, content_type, size, booking_id, expense_id, project_id, uploaded_by, created_at`

func scanDocument(s scanner) (core.Document, error) {
	var d core.Document
	var created string
	if err := s.Scan(&d.ID, &d.Name, &d.Path, &d.ContentType, &d.Size, &d.BookingID, &d.ExpenseID, &d.ProjectID, &d.UploadedBy, &created); err != nil {
		return d, err
	}
	d.CreatedAt = parseTime(created)
	return d, nil
}

func (r *SQLiteRepository) ListDocuments(ctx context.Context, q Query) ([]core.Document, error) {
	var w where
	if q.ProjectID != "" {
		w.add("project_id = ?", q.ProjectID)
	}
	if q.BookingID != "" {
		w.add("booking_id = ?", q.BookingID)
	}
	if q.ExpenseID != "" {
		w.add("expense_id = ?", q.ExpenseID)
	}
	rows, err := r.db.QueryContext(ctx, `SELECT `+documentColumns+` FROM documents`+w.String()+` ORDER BY created_at DESC, id`, w.args...)
	if err != nil {
		return nil, fmt.Errorf("list documents: %w", err)
	}
	defer rows.Close()

	out := []core.Document{}
	for rows.Next() {
		d, err := scanDocument(rows)
		if err != nil {
			return nil, fmt.Errorf("scan document: %w", err)
		}
		out = append(out, d)
	}
	return out, rows.Err()
}

func (r *SQLiteRepository) GetDocument(ctx context.Context, id string) (core.Document, error) {
	d, err := scanDocument(r.db.QueryRowContext(ctx, `SELECT `+documentColumns+` FROM documents WHERE id = ?`, id))
	if err != nil {
		return d, notFound(KindDocuments, id, err)
	}
	return d, nil
}

func (r *SQLiteRepository) SaveDocument(ctx context.Context, d core.Document) (core.Document, error) {
	d.ID = ensureID(d.ID)
	d.CreatedAt = r.stamp(d.CreatedAt)
	err := r.exec(ctx, "save document", `
		INSERT INTO documents (`+documentColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET name = excluded.name, path = excluded.path,
			content_type = excluded.content_type, size = excluded.size, booking_id = excluded.booking_id,
			expense_id = excluded.expense_id, project_id = excluded.project_id`,
		d.ID, d.Name, d.Path, d.ContentType, d.Size, d.BookingID, d.ExpenseID, d.ProjectID, d.UploadedBy, formatTime(d.CreatedAt))
	return d, err
}

// Users

const userColumns = `id, username, password_hash, role, project_id, created_at`

func scanUser(s scanner) (core.User, error) {
	var u core.User
	var role, created string
	if err := s.Scan(&u.ID, &u.Username, &u.PasswordHash, &role, &u.ProjectID, &created); err != nil {
		return u, err
	}
	u.Role = core.Role(role)
	u.CreatedAt = parseTime(created)
	return u, nil
}

func (r *SQLiteRepository) ListUsers(ctx context.Context) ([]core.User, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT `+userColumns+` FROM users ORDER BY username`)
	if err != nil {
		return nil, fmt.Errorf("list users: %w", err)
	}
	defer rows.Close()

	out := []core.User{}
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, fmt.Errorf("scan user: %w", err)
		}
		out = append(out, u)
	}
	return out, rows.Err()
}

func (r *SQLiteRepository) GetUser(ctx context.Context, id string) (core.User, error) {
	u, err := scanUser(r.db.QueryRowContext(ctx, `SELECT `+userColumns+` FROM users WHERE id = ?`, id))
	if err != nil {
		return u, notFound(KindUsers, id, err)
	}
	return u, nil
}

func (r *SQLiteRepository) GetUserByUsername(ctx context.Context, username string) (core.User, error) {
	username = NormalizeUsername(username)
	u, err := scanUser(r.db.QueryRowContext(ctx, `SELECT `+userColumns+` FROM users WHERE username = ?`, username))
	if err != nil {
		return u, notFound(KindUsers, username, err)
	}
	return u, nil
}

func (r *SQLiteRepository) SaveUser(ctx context.Context, u core.User) (core.User, error) {
	u.ID = ensureID(u.ID)
	u.Username = NormalizeUsername(u.Username)
	u.CreatedAt = r.stamp(u.CreatedAt)
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO users (`+userColumns+`) VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET username = excluded.username, password_hash = excluded.password_hash,
			role = excluded.role, project_id = excluded.project_id`,
		u.ID, u.Username, u.PasswordHash, string(u.Role), u.ProjectID, formatTime(u.CreatedAt))
	if err != nil {
		if strings.Contains(err.Error(), "UNIQUE constraint failed") {
			return u, fmt.Errorf("username %q: %w", u.Username, core.ErrConflict)
		}
		return u, fmt.Errorf("save user: %w", err)
	}
	return u, nil
}

// Notifications

func (r *SQLiteRepository) ListNotifications(ctx context.Context, q Query) ([]core.Notification, error) {
	var w where
	if q.ProjectID != "" {
		w.add("(project_id = ? OR project_id = '')", q.ProjectID)
	}
	rows, err := r.db.QueryContext(ctx, `SELECT id, kind, message, project_id, entity_id, read, created_at
		FROM notifications`+w.String()+` ORDER BY created_at DESC, id`, w.args...)
	if err != nil {
		return nil, fmt.Errorf("list notifications: %w", err)
	}
	defer rows.Close()

	out := []core.Notification{}
	for rows.Next() {
		var n core.Notification
		var created string
		if err := rows.Scan(&n.ID, &n.Kind, &n.Message, &n.ProjectID, &n.EntityID, &n.Read, &created); err != nil {
			return nil, fmt.Errorf("scan notification: %w", err)
		}
		n.CreatedAt = parseTime(created)
		out = append(out, n)
	}
	return out, rows.Err()
}

func (r *SQLiteRepository) SaveNotification(ctx context.Context, n core.Notification) (core.Notification, error) {
	n.ID = ensureID(n.ID)
	n.CreatedAt = r.stamp(n.CreatedAt)
	err := r.exec(ctx, "save notification", `
		INSERT INTO notifications (id, kind, message, project_id, entity_id, read, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET kind = excluded.kind, message = excluded.message, read = excluded.read`,
		n.ID, n.Kind, n.Message, n.ProjectID, n.EntityID, n.Read, formatTime(n.CreatedAt))
	return n, err
}

func (r *SQLiteRepository) MarkNotificationRead(ctx context.Context, id string) error {
	res, err := r.db.ExecContext(ctx, `UPDATE notifications SET read = 1 WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("mark notification %s read: %w", id, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("%s %s: %w", KindNotifications, id, core.ErrNotFound)
	}
	return nil
}
