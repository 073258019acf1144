package core

// Record is the uniform row consumed by the filter and report packages.
type Record struct {
	ID          string
	Date        Date
	Description string
	Amount      float64
	CategoryID  string
	ProjectID   string
	AccountID   string
	Notes       string
}

func (e Expense) Record() Record {
	return Record{
		ID:          e.ID,
		Date:        e.Date,
		Description: e.Description,
		Amount:      e.Amount,
		CategoryID:  e.CategoryID,
		ProjectID:   e.ProjectID,
		AccountID:   e.AccountID,
		Notes:       e.Notes,
	}
}

// Record maps a payment to a revenue row; the payment type acts as category.
func (p Payment) Record(projectID string) Record {
	return Record{
		ID:          p.ID,
		Date:        p.PaymentDate,
		Description: p.PaymentType,
		Amount:      p.Amount,
		CategoryID:  p.PaymentType,
		ProjectID:   projectID,
		AccountID:   p.AccountID,
		Notes:       p.Notes,
	}
}

// ExpenseRecords converts a slice of expenses.
func ExpenseRecords(expenses []Expense) []Record {
	out := make([]Record, len(expenses))
	for i, e := range expenses {
		out[i] = e.Record()
	}
	return out
}
