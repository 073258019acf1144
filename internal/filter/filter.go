// Package filter narrows record collections by scope, date, category,
// project, amount and free text, and pages the result.
package filter

import (
	"sort"
	"strconv"
	"strings"

	"estate/internal/core"
)

// Criteria holds the optional filter dimensions. Zero values disable a
// dimension; dimensions are ANDed together.
type Criteria struct {
	StartDate  core.Date
	EndDate    core.Date
	CategoryID string
	ProjectID  string
	MinAmount  *float64
	MaxAmount  *float64
	// Query is matched case-insensitively against description, category
	// name, amount, notes and date. Any field matching is enough.
	Query string
}

// IsZero reports whether no dimension is set.
func (c Criteria) IsZero() bool {
	return c.StartDate.IsZero() && c.EndDate.IsZero() && c.CategoryID == "" &&
		c.ProjectID == "" && c.MinAmount == nil && c.MaxAmount == nil &&
		strings.TrimSpace(c.Query) == ""
}

// Apply returns the records visible to scope that satisfy c, preserving
// input order. The scope restriction is applied before anything else; a
// criteria project that conflicts with it yields core.ErrOutOfScope rather
// than an empty result. categoryNames maps category IDs to display names
// for the text query.
func Apply(records []core.Record, scope core.Scope, c Criteria, categoryNames map[string]string) ([]core.Record, error) {
	project, err := scope.Resolve(c.ProjectID)
	if err != nil {
		return nil, err
	}

	query := strings.ToLower(strings.TrimSpace(c.Query))
	out := make([]core.Record, 0, len(records))
	for _, r := range records {
		if !scope.Allows(r.ProjectID) {
			continue
		}
		if project != "" && r.ProjectID != project {
			continue
		}
		if !c.StartDate.IsZero() && r.Date.Before(c.StartDate.Time) {
			continue
		}
		if !c.EndDate.IsZero() && r.Date.After(c.EndDate.Time) {
			continue
		}
		if c.CategoryID != "" && r.CategoryID != c.CategoryID {
			continue
		}
		if c.MinAmount != nil && !(r.Amount >= *c.MinAmount) {
			continue
		}
		if c.MaxAmount != nil && !(r.Amount <= *c.MaxAmount) {
			continue
		}
		if query != "" && !matches(r, query, categoryNames) {
			continue
		}
		out = append(out, r)
	}
	return out, nil
}

func matches(r core.Record, query string, categoryNames map[string]string) bool {
	fields := []string{
		r.Description,
		categoryNames[r.CategoryID],
		AmountString(r.Amount),
		r.Notes,
		r.Date.String(),
	}
	for _, f := range fields {
		if f != "" && strings.Contains(strings.ToLower(f), query) {
			return true
		}
	}
	return false
}

// AmountString is the text form of an amount used for free-text search.
func AmountString(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

// Sort returns a copy of records ordered newest first, then by ID.
func Sort(records []core.Record) []core.Record {
	out := make([]core.Record, len(records))
	copy(out, records)
	sort.SliceStable(out, func(i, j int) bool {
		if !out[i].Date.Equal(out[j].Date.Time) {
			return out[i].Date.After(out[j].Date.Time)
		}
		return out[i].ID < out[j].ID
	})
	return out
}

// CategoryNames indexes categories by ID.
func CategoryNames(categories []core.ExpenseCategory) map[string]string {
	names := make(map[string]string, len(categories))
	for _, c := range categories {
		names[c.ID] = c.Name
	}
	return names
}
