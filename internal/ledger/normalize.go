// Package ledger reconciles a booking's deposit column with its itemized and
// extra payments and derives balances from the result.
package ledger

import (
	"math"

	"estate/internal/core"

	"github.com/shopspring/decimal"
)

// Epsilon is the tolerance under which a booking's deposit is considered a
// mirror of its itemized payments.
const Epsilon = 0.01

const (
	EntryDeposit EntryKind = "deposit"
	EntryPayment EntryKind = "payment"
	EntryExtra   EntryKind = "extra"
)

const (
	// MethodFlag means the booking's DepositReconciled flag decided the base.
	MethodFlag Method = "flag"
	// MethodMirrored means the deposit matched the itemized sum within Epsilon.
	MethodMirrored Method = "mirrored"
	// MethodLegacy means the deposit was added on top of the itemized sum.
	MethodLegacy Method = "legacy"
)

type (
	EntryKind string
	Method    string

	Entry struct {
		ID     string    `json:"id,omitempty"`
		Date   core.Date `json:"date"`
		Amount float64   `json:"amount"`
		Kind   EntryKind `json:"kind"`
	}

	// Normalized is the reconciled payment picture of one booking.
	Normalized struct {
		BookingID   string  `json:"booking_id"`
		PaymentsSum float64 `json:"payments_sum"`
		BaseAmount  float64 `json:"base_amount"`
		ExtraSum    float64 `json:"extra_sum"`
		TotalPaid   float64 `json:"total_paid"`
		Method      Method  `json:"method"`
		// DepositCounted is true when AmountPaid was added to the itemized sum.
		DepositCounted bool    `json:"deposit_counted"`
		Entries        []Entry `json:"entries"`
		// Invalid counts rows whose amount was NaN or infinite; they contribute 0.
		Invalid int `json:"invalid"`
	}
)

// NearlyEqual reports whether a and b differ by less than eps.
func NearlyEqual(a, b, eps float64) bool {
	return math.Abs(a-b) < eps
}

// Normalize reconciles one booking. Payments and extra payments belonging to
// other bookings are ignored, so callers may pass a project-wide slice.
//
// The deposit column is never double counted: when it mirrors the itemized
// sum only the itemized rows form the base, otherwise the deposit is added
// to them. Extra payments are always additive.
func Normalize(b core.Booking, payments []core.Payment, extras []core.ExtraPayment) Normalized {
	n := Normalized{BookingID: b.ID}

	var paymentsSum decimal.Decimal
	var paymentEntries []Entry
	for _, p := range payments {
		if p.BookingID != b.ID {
			continue
		}
		amt, ok := sanitize(p.Amount)
		if !ok {
			n.Invalid++
		}
		paymentsSum = paymentsSum.Add(decimal.NewFromFloat(amt))
		paymentEntries = append(paymentEntries, Entry{ID: p.ID, Date: p.PaymentDate, Amount: amt, Kind: EntryPayment})
	}
	n.PaymentsSum = paymentsSum.InexactFloat64()

	deposit, ok := sanitize(b.AmountPaid)
	if !ok {
		n.Invalid++
	}

	switch {
	case b.DepositReconciled != nil:
		n.Method = MethodFlag
		n.DepositCounted = !*b.DepositReconciled
	case NearlyEqual(deposit, n.PaymentsSum, Epsilon):
		n.Method = MethodMirrored
	default:
		n.Method = MethodLegacy
		n.DepositCounted = true
	}

	base := paymentsSum
	if n.DepositCounted {
		base = base.Add(decimal.NewFromFloat(deposit))
		if deposit != 0 {
			n.Entries = append(n.Entries, Entry{Date: b.BookingDate, Amount: deposit, Kind: EntryDeposit})
		}
	}
	n.BaseAmount = base.InexactFloat64()
	n.Entries = append(n.Entries, paymentEntries...)

	var extraSum decimal.Decimal
	for _, e := range extras {
		if e.BookingID != b.ID {
			continue
		}
		amt, ok := sanitize(e.Amount)
		if !ok {
			n.Invalid++
		}
		extraSum = extraSum.Add(decimal.NewFromFloat(amt))
		date := e.PaymentDate
		if date.IsZero() {
			date = b.BookingDate
		}
		n.Entries = append(n.Entries, Entry{ID: e.ID, Date: date, Amount: amt, Kind: EntryExtra})
	}
	n.ExtraSum = extraSum.InexactFloat64()
	n.TotalPaid = base.Add(extraSum).InexactFloat64()

	return n
}

// sanitize maps NaN and ±Inf to 0 and reports whether v was usable.
func sanitize(v float64) (float64, bool) {
	if !core.IsFinite(v) {
		return 0, false
	}
	return v, true
}
