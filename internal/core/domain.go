package core

import (
	"encoding/json"
	"errors"
	"math"
	"strings"
	"time"
)

const dateLayout = "2006-01-02"

const (
	BookingActive    BookingStatus = "active"
	BookingCancelled BookingStatus = "cancelled"
	BookingCompleted BookingStatus = "completed"

	UnitAvailable UnitStatus = "available"
	UnitReserved  UnitStatus = "reserved"
	UnitSold      UnitStatus = "sold"

	RoleAdmin Role = "admin"
	RoleUser  Role = "user"
)

type (
	BookingStatus string
	UnitStatus    string
	Role          string

	Date struct {
		time.Time
	}

	Project struct {
		ID        string    `json:"id"`
		Name      string    `json:"name"`
		CreatedAt time.Time `json:"created_at"`
	}

	Unit struct {
		ID        string     `json:"id"`
		Name      string     `json:"name"`
		Price     float64    `json:"price"`
		Status    UnitStatus `json:"status"`
		ProjectID string     `json:"project_id"`
	}

	Customer struct {
		ID        string `json:"id"`
		Name      string `json:"name"`
		Phone     string `json:"phone,omitempty"`
		Email     string `json:"email,omitempty"`
		ProjectID string `json:"project_id,omitempty"`
	}

	// Booking is a reservation of a unit by a customer. AmountPaid is the
	// deposit column: mirrored from itemized payments on reconciled rows,
	// a standalone deposit on legacy rows.
	Booking struct {
		ID                string        `json:"id"`
		UnitID            string        `json:"unit_id"`
		CustomerID        string        `json:"customer_id"`
		BookingDate       Date          `json:"booking_date"`
		AmountPaid        float64       `json:"amount_paid"`
		Status            BookingStatus `json:"status"`
		ProjectID         string        `json:"project_id"`
		DepositReconciled *bool         `json:"deposit_reconciled,omitempty"`
		Notes             string        `json:"notes,omitempty"`
	}

	Payment struct {
		ID          string  `json:"id"`
		BookingID   string  `json:"booking_id"`
		Amount      float64 `json:"amount"`
		PaymentDate Date    `json:"payment_date"`
		PaymentType string  `json:"payment_type"`
		AccountID   string  `json:"account_id,omitempty"`
		Notes       string  `json:"notes,omitempty"`
	}

	// ExtraPayment is always added on top of the reconciled base.
	ExtraPayment struct {
		ID          string  `json:"id"`
		BookingID   string  `json:"booking_id"`
		Amount      float64 `json:"amount"`
		PaymentDate Date    `json:"payment_date"`
		Description string  `json:"description,omitempty"`
	}

	Expense struct {
		ID          string  `json:"id"`
		Date        Date    `json:"date"`
		Description string  `json:"description"`
		Amount      float64 `json:"amount"`
		CategoryID  string  `json:"category_id,omitempty"`
		ProjectID   string  `json:"project_id,omitempty"`
		AccountID   string  `json:"account_id,omitempty"`
		Notes       string  `json:"notes,omitempty"`
	}

	// ExpenseCategory with an empty ProjectID is shared by every project.
	ExpenseCategory struct {
		ID        string `json:"id"`
		Name      string `json:"name"`
		ProjectID string `json:"project_id,omitempty"`
	}

	Document struct {
		ID          string    `json:"id"`
		Name        string    `json:"name"`
		Path        string    `json:"path"`
		ContentType string    `json:"content_type"`
		Size        int64     `json:"size"`
		BookingID   string    `json:"booking_id,omitempty"`
		ExpenseID   string    `json:"expense_id,omitempty"`
		ProjectID   string    `json:"project_id,omitempty"`
		UploadedBy  string    `json:"uploaded_by,omitempty"`
		CreatedAt   time.Time `json:"created_at"`
	}

	User struct {
		ID           string    `json:"id"`
		Username     string    `json:"username"`
		PasswordHash string    `json:"-"`
		Role         Role      `json:"role"`
		ProjectID    string    `json:"project_id,omitempty"`
		CreatedAt    time.Time `json:"created_at"`
	}

	Notification struct {
		ID        string    `json:"id"`
		Kind      string    `json:"kind"`
		Message   string    `json:"message"`
		ProjectID string    `json:"project_id,omitempty"`
		EntityID  string    `json:"entity_id,omitempty"`
		Read      bool      `json:"read"`
		CreatedAt time.Time `json:"created_at"`
	}
)

var (
	ErrInvalidDay        = errors.New("invalid day")
	ErrInvalidMonth      = errors.New("invalid month")
	ErrInvalidDate       = errors.New("invalid date")
	ErrInvalidAmount     = errors.New("invalid amount")
	ErrInvalidPrice      = errors.New("invalid price")
	ErrEmptyDescription  = errors.New("empty description")
	ErrEmptyName         = errors.New("empty name")
	ErrMissingLinkage    = errors.New("missing required linkage")
	ErrInvalidStatus     = errors.New("invalid status")
	ErrInvalidRole       = errors.New("invalid role")
	ErrWeakPassword      = errors.New("password too short (min 8 characters)")
	ErrDescriptionLength = errors.New("description too long (max 200 characters)")
)

// NewDate creates a new Date from year, month, day
func NewDate(year, month, day int) Date {
	return Date{Time: time.Date(year, time.Month(month), day, 0, 0, 0, 0, time.UTC)}
}

// ParseDate parses a YYYY-MM-DD string.
func ParseDate(s string) (Date, error) {
	t, err := time.Parse(dateLayout, strings.TrimSpace(s))
	if err != nil {
		return Date{}, ErrInvalidDate
	}
	return Date{Time: t}, nil
}

// DateOf truncates t to its calendar day in UTC.
func DateOf(t time.Time) Date {
	y, m, d := t.Date()
	return NewDate(y, int(m), d)
}

func (d Date) Validate() error {
	if d.IsZero() {
		return ErrInvalidDate
	}
	_, month, day := d.Date()
	if day < 1 || day > 31 {
		return ErrInvalidDay
	}
	if month < 1 || month > 12 {
		return ErrInvalidMonth
	}
	return nil
}

// String returns the date as YYYY-MM-DD, or "" for the zero date.
func (d Date) String() string {
	if d.IsZero() {
		return ""
	}
	return d.Format(dateLayout)
}

func (d Date) MarshalJSON() ([]byte, error) {
	if d.IsZero() {
		return []byte("null"), nil
	}
	return json.Marshal(d.String())
}

func (d *Date) UnmarshalJSON(b []byte) error {
	var s string
	if string(b) == "null" {
		*d = Date{}
		return nil
	}
	if err := json.Unmarshal(b, &s); err != nil {
		return ErrInvalidDate
	}
	if s == "" {
		*d = Date{}
		return nil
	}
	parsed, err := ParseDate(s)
	if err != nil {
		return err
	}
	*d = parsed
	return nil
}

// IsFinite reports whether v is a usable amount (not NaN or ±Inf).
func IsFinite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}

func validAmount(v float64) error {
	if !IsFinite(v) || v <= 0 {
		return ErrInvalidAmount
	}
	return nil
}

func (s BookingStatus) Valid() bool {
	switch s {
	case BookingActive, BookingCancelled, BookingCompleted:
		return true
	}
	return false
}

func (s UnitStatus) Valid() bool {
	switch s {
	case UnitAvailable, UnitReserved, UnitSold:
		return true
	}
	return false
}

func (r Role) Valid() bool {
	return r == RoleAdmin || r == RoleUser
}

func (p Project) Validate() error {
	if strings.TrimSpace(p.Name) == "" {
		return ErrEmptyName
	}
	return nil
}

func (u Unit) Validate() error {
	if strings.TrimSpace(u.Name) == "" {
		return ErrEmptyName
	}
	if !IsFinite(u.Price) || u.Price < 0 {
		return ErrInvalidPrice
	}
	if strings.TrimSpace(u.ProjectID) == "" {
		return ErrMissingLinkage
	}
	if u.Status != "" && !u.Status.Valid() {
		return ErrInvalidStatus
	}
	return nil
}

func (c Customer) Validate() error {
	if strings.TrimSpace(c.Name) == "" {
		return ErrEmptyName
	}
	return nil
}

// Validate checks a booking before it is persisted. A zero deposit is
// allowed; a negative or non-finite one is not.
func (b Booking) Validate() error {
	if strings.TrimSpace(b.UnitID) == "" || strings.TrimSpace(b.CustomerID) == "" {
		return ErrMissingLinkage
	}
	if err := b.BookingDate.Validate(); err != nil {
		return err
	}
	if !IsFinite(b.AmountPaid) || b.AmountPaid < 0 {
		return ErrInvalidAmount
	}
	if b.Status != "" && !b.Status.Valid() {
		return ErrInvalidStatus
	}
	return nil
}

func (p Payment) Validate() error {
	if strings.TrimSpace(p.BookingID) == "" {
		return ErrMissingLinkage
	}
	if err := p.PaymentDate.Validate(); err != nil {
		return err
	}
	return validAmount(p.Amount)
}

func (e ExtraPayment) Validate() error {
	if strings.TrimSpace(e.BookingID) == "" {
		return ErrMissingLinkage
	}
	return validAmount(e.Amount)
}

func (e Expense) Validate() error {
	if err := e.Date.Validate(); err != nil {
		return err
	}
	if len(strings.TrimSpace(e.Description)) == 0 {
		return ErrEmptyDescription
	}
	if len(e.Description) > 200 {
		return ErrDescriptionLength
	}
	if err := validAmount(e.Amount); err != nil {
		return err
	}
	if strings.TrimSpace(e.ProjectID) == "" {
		return ErrMissingLinkage
	}
	return nil
}

func (c ExpenseCategory) Validate() error {
	if strings.TrimSpace(c.Name) == "" {
		return ErrEmptyName
	}
	return nil
}

func (d Document) Validate() error {
	if strings.TrimSpace(d.Name) == "" {
		return ErrEmptyName
	}
	if d.BookingID == "" && d.ExpenseID == "" {
		return ErrMissingLinkage
	}
	return nil
}

func (u User) Validate() error {
	if strings.TrimSpace(u.Username) == "" {
		return ErrEmptyName
	}
	if !u.Role.Valid() {
		return ErrInvalidRole
	}
	return nil
}
