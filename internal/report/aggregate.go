// Package report groups expense and revenue records by category and project.
//
// Every function here is pure: the output depends on the multiset of input
// records, never on their order.
package report

import (
	"sort"

	"estate/internal/core"

	"github.com/shopspring/decimal"
)

const (
	UncategorizedID   = "uncategorized"
	UncategorizedName = "Uncategorized"
	NoProjectID       = "no-project"
	NoProjectName     = "No project"
)

// CategoryTotal is one row of a by-category breakdown.
type CategoryTotal struct {
	CategoryID       string  `json:"category_id"`
	Name             string  `json:"name"`
	TotalAmount      float64 `json:"total_amount"`
	TransactionCount int     `json:"transaction_count"`
	Share            float64 `json:"share"`
	Uncategorized    bool    `json:"uncategorized,omitempty"`
}

// ProjectTotal nests a by-category breakdown inside one project. Category
// shares are relative to the project total.
type ProjectTotal struct {
	ProjectID        string          `json:"project_id"`
	Name             string          `json:"name"`
	TotalAmount      float64         `json:"total_amount"`
	TransactionCount int             `json:"transaction_count"`
	Share            float64         `json:"share"`
	NoProject        bool            `json:"no_project,omitempty"`
	Categories       []CategoryTotal `json:"categories"`
}

// Quality counts records whose amounts were unusable or suspicious.
type Quality struct {
	Records int `json:"records"`
	// Invalid amounts (NaN, ±Inf) were summed as zero.
	Invalid  int `json:"invalid"`
	Negative int `json:"negative"`
}

// HasWarnings reports whether any record needs attention.
func (q Quality) HasWarnings() bool {
	return q.Invalid > 0 || q.Negative > 0
}

// Share returns amount/grandTotal, or 0 when grandTotal is zero or unusable.
func Share(amount, grandTotal float64) float64 {
	if grandTotal == 0 || !core.IsFinite(grandTotal) || !core.IsFinite(amount) {
		return 0
	}
	return amount / grandTotal
}

// Inspect reports data-quality problems without altering the records.
func Inspect(records []core.Record) Quality {
	q := Quality{Records: len(records)}
	for _, r := range records {
		switch {
		case !core.IsFinite(r.Amount):
			q.Invalid++
		case r.Amount < 0:
			q.Negative++
		}
	}
	return q
}

// GrandTotal sums records, counting invalid amounts as zero.
func GrandTotal(records []core.Record) float64 {
	var sum decimal.Decimal
	for _, r := range records {
		sum = sum.Add(amountOf(r))
	}
	return sum.InexactFloat64()
}

// AggregateByCategory groups records by category, sorted descending by total.
// Records with an empty or unknown category share a single uncategorized
// bucket which sorts by its amount and falls after named groups on ties.
func AggregateByCategory(records []core.Record, categories []core.ExpenseCategory) []CategoryTotal {
	names := categoryNames(categories)
	return aggregate(records, names)
}

// AggregateByProjectThenCategory groups records by project and then by
// category. Records without a project land in a synthetic no-project
// bucket. Both levels are sorted descending by total.
func AggregateByProjectThenCategory(records []core.Record, projects []core.Project, categories []core.ExpenseCategory) []ProjectTotal {
	if len(records) == 0 {
		return []ProjectTotal{}
	}

	projectNames := make(map[string]string, len(projects))
	for _, p := range projects {
		projectNames[p.ID] = p.Name
	}
	names := categoryNames(categories)

	byProject := make(map[string][]core.Record)
	for _, r := range records {
		key := r.ProjectID
		if key == "" {
			key = NoProjectID
		}
		byProject[key] = append(byProject[key], r)
	}

	grand := decimal.Zero
	out := make([]ProjectTotal, 0, len(byProject))
	for key, rs := range byProject {
		pt := ProjectTotal{ProjectID: key, TransactionCount: len(rs)}
		if key == NoProjectID {
			pt.Name = NoProjectName
			pt.NoProject = true
		} else if name, ok := projectNames[key]; ok {
			pt.Name = name
		} else {
			pt.Name = key
		}

		var sum decimal.Decimal
		for _, r := range rs {
			sum = sum.Add(amountOf(r))
		}
		grand = grand.Add(sum)
		pt.TotalAmount = sum.InexactFloat64()
		pt.Categories = aggregate(rs, names)
		out = append(out, pt)
	}

	total := grand.InexactFloat64()
	for i := range out {
		out[i].Share = Share(out[i].TotalAmount, total)
	}

	sort.Slice(out, func(i, j int) bool {
		a, b := out[i], out[j]
		if a.TotalAmount != b.TotalAmount {
			return a.TotalAmount > b.TotalAmount
		}
		if a.NoProject != b.NoProject {
			return !a.NoProject
		}
		if a.Name != b.Name {
			return a.Name < b.Name
		}
		return a.ProjectID < b.ProjectID
	})
	return out
}

func aggregate(records []core.Record, names map[string]string) []CategoryTotal {
	if len(records) == 0 {
		return []CategoryTotal{}
	}

	type bucket struct {
		sum   decimal.Decimal
		count int
	}
	buckets := make(map[string]*bucket)
	grand := decimal.Zero
	for _, r := range records {
		key := r.CategoryID
		if _, known := names[key]; !known || key == "" {
			key = UncategorizedID
		}
		b, ok := buckets[key]
		if !ok {
			b = &bucket{}
			buckets[key] = b
		}
		amt := amountOf(r)
		b.sum = b.sum.Add(amt)
		b.count++
		grand = grand.Add(amt)
	}

	total := grand.InexactFloat64()
	out := make([]CategoryTotal, 0, len(buckets))
	for key, b := range buckets {
		ct := CategoryTotal{
			CategoryID:       key,
			TotalAmount:      b.sum.InexactFloat64(),
			TransactionCount: b.count,
		}
		if key == UncategorizedID {
			ct.Name = UncategorizedName
			ct.Uncategorized = true
		} else {
			ct.Name = names[key]
		}
		ct.Share = Share(ct.TotalAmount, total)
		out = append(out, ct)
	}

	sort.Slice(out, func(i, j int) bool {
		a, b := out[i], out[j]
		if a.TotalAmount != b.TotalAmount {
			return a.TotalAmount > b.TotalAmount
		}
		if a.Uncategorized != b.Uncategorized {
			return !a.Uncategorized
		}
		if a.Name != b.Name {
			return a.Name < b.Name
		}
		return a.CategoryID < b.CategoryID
	})
	return out
}

func categoryNames(categories []core.ExpenseCategory) map[string]string {
	names := make(map[string]string, len(categories))
	for _, c := range categories {
		if c.ID == "" {
			continue
		}
		names[c.ID] = c.Name
	}
	return names
}

func amountOf(r core.Record) decimal.Decimal {
	if !core.IsFinite(r.Amount) {
		return decimal.Zero
	}
	return decimal.NewFromFloat(r.Amount)
}
