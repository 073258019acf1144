package ledger

import (
	"sort"

	"estate/internal/core"

	"github.com/shopspring/decimal"
)

// Balance is what is left to pay on a unit.
type Balance struct {
	UnitPrice   float64 `json:"unit_price"`
	TotalPaid   float64 `json:"total_paid"`
	Remaining   float64 `json:"remaining"`
	IsFullyPaid bool    `json:"is_fully_paid"`
}

// StatementLine is one row of a booking statement.
type StatementLine struct {
	Entry
	CumulativePaid float64 `json:"cumulative_paid"`
	Remaining      float64 `json:"remaining"`
}

// ComputeBalance returns unit.Price - totalPaid. Overpayment yields a
// negative remaining value and still counts as fully paid; the comparison
// is exact, unlike the deposit check.
func ComputeBalance(unit core.Unit, totalPaid float64) Balance {
	remaining := unit.Price - totalPaid
	return Balance{
		UnitPrice:   unit.Price,
		TotalPaid:   totalPaid,
		Remaining:   remaining,
		IsFullyPaid: remaining <= 0,
	}
}

// Statement orders entries by date and returns the running paid and
// remaining figures after each one. Entries on the same date keep their
// input order.
func Statement(unitPrice float64, entries []Entry) []StatementLine {
	sorted := make([]Entry, len(entries))
	copy(sorted, entries)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Date.Before(sorted[j].Date.Time)
	})

	price := decimal.NewFromFloat(unitPrice)
	var paid decimal.Decimal
	lines := make([]StatementLine, 0, len(sorted))
	for _, e := range sorted {
		paid = paid.Add(decimal.NewFromFloat(e.Amount))
		lines = append(lines, StatementLine{
			Entry:          e,
			CumulativePaid: paid.InexactFloat64(),
			Remaining:      price.Sub(paid).InexactFloat64(),
		})
	}
	return lines
}

// Reconcile runs Normalize and ComputeBalance for one booking.
func Reconcile(b core.Booking, unit core.Unit, payments []core.Payment, extras []core.ExtraPayment) (Normalized, Balance) {
	n := Normalize(b, payments, extras)
	return n, ComputeBalance(unit, n.TotalPaid)
}
