package report

import "estate/internal/core"

type View string

const (
	ViewCategory View = "category"
	ViewProject  View = "project"
)

// ParseView maps a query value to a View, defaulting to ViewCategory.
func ParseView(s string) View {
	if View(s) == ViewProject {
		return ViewProject
	}
	return ViewCategory
}

// Summary is a complete aggregation of one record collection, ready for
// rendering or export.
type Summary struct {
	Title      string          `json:"title,omitempty"`
	View       View            `json:"view"`
	GrandTotal float64         `json:"grand_total"`
	Count      int             `json:"count"`
	Categories []CategoryTotal `json:"categories,omitempty"`
	Projects   []ProjectTotal  `json:"projects,omitempty"`
	Quality    Quality         `json:"quality"`
	Records    []core.Record   `json:"-"`
}

// Summarize aggregates records in the requested view.
func Summarize(view View, records []core.Record, projects []core.Project, categories []core.ExpenseCategory) Summary {
	s := Summary{
		View:       view,
		GrandTotal: GrandTotal(records),
		Count:      len(records),
		Quality:    Inspect(records),
		Records:    records,
	}
	if view == ViewProject {
		s.Projects = AggregateByProjectThenCategory(records, projects, categories)
	} else {
		s.Categories = AggregateByCategory(records, categories)
	}
	return s
}

// PaymentTypeCategories synthesizes categories from the payment types
// present in records, so revenue rows aggregate under their own type.
func PaymentTypeCategories(records []core.Record) []core.ExpenseCategory {
	seen := make(map[string]bool)
	var out []core.ExpenseCategory
	for _, r := range records {
		if r.CategoryID == "" || seen[r.CategoryID] {
			continue
		}
		seen[r.CategoryID] = true
		out = append(out, core.ExpenseCategory{ID: r.CategoryID, Name: r.CategoryID})
	}
	return out
}
