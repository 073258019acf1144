package filter

import (
	"errors"
	"fmt"
	"testing"

	"estate/internal/core"
)

func ptr(v float64) *float64 { return &v }

func sampleRecords() []core.Record {
	return []core.Record{
		{ID: "e1", Date: core.NewDate(2024, 1, 10), Description: "Cement delivery", Amount: 1200.5, CategoryID: "mat", ProjectID: "P1"},
		{ID: "e2", Date: core.NewDate(2024, 2, 1), Description: "Crane rental", Amount: 800, CategoryID: "equip", ProjectID: "P1", Notes: "weekly"},
		{ID: "e3", Date: core.NewDate(2024, 2, 15), Description: "Site security", Amount: 300, CategoryID: "", ProjectID: "P2"},
		{ID: "e4", Date: core.NewDate(2024, 3, 1), Description: "Steel beams", Amount: 5000, CategoryID: "mat", ProjectID: "P2"},
	}
}

var names = map[string]string{"mat": "Materials", "equip": "Equipment"}

func ids(rs []core.Record) string {
	var s string
	for _, r := range rs {
		s += r.ID + ","
	}
	return s
}

func TestApply(t *testing.T) {
	admin := core.Scope{Role: core.RoleAdmin}
	tests := []struct {
		name     string
		scope    core.Scope
		criteria Criteria
		want     string
	}{
		{"no filters", admin, Criteria{}, "e1,e2,e3,e4,"},
		{"inclusive date range", admin, Criteria{StartDate: core.NewDate(2024, 2, 1), EndDate: core.NewDate(2024, 2, 15)}, "e2,e3,"},
		{"category", admin, Criteria{CategoryID: "mat"}, "e1,e4,"},
		{"project", admin, Criteria{ProjectID: "P2"}, "e3,e4,"},
		{"amount range", admin, Criteria{MinAmount: ptr(300), MaxAmount: ptr(1200.5)}, "e1,e2,e3,"},
		{"query description", admin, Criteria{Query: "CRANE"}, "e2,"},
		{"query category name", admin, Criteria{Query: "materials"}, "e1,e4,"},
		{"query amount", admin, Criteria{Query: "1200.5"}, "e1,"},
		{"query notes", admin, Criteria{Query: "week"}, "e2,"},
		{"query date", admin, Criteria{Query: "2024-03"}, "e4,"},
		{"dimensions are ANDed", admin, Criteria{CategoryID: "mat", Query: "steel"}, "e4,"},
		{"restricted scope applied first", core.Scope{ProjectID: "P1"}, Criteria{}, "e1,e2,"},
		{"restricted scope with matching project", core.Scope{ProjectID: "P1"}, Criteria{ProjectID: "P1", Query: "cement"}, "e1,"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Apply(sampleRecords(), tt.scope, tt.criteria, names)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if ids(got) != tt.want {
				t.Errorf("got %s, want %s", ids(got), tt.want)
			}
		})
	}
}

func TestApplyRejectsConflictingProject(t *testing.T) {
	got, err := Apply(sampleRecords(), core.Scope{ProjectID: "P1"}, Criteria{ProjectID: "P2"}, names)
	if !errors.Is(err, core.ErrOutOfScope) {
		t.Fatalf("expected ErrOutOfScope, got %v", err)
	}
	if got != nil {
		t.Fatalf("no records may be returned, got %v", got)
	}
}

func TestSort(t *testing.T) {
	rs := []core.Record{
		{ID: "b", Date: core.NewDate(2024, 1, 1)},
		{ID: "a", Date: core.NewDate(2024, 1, 1)},
		{ID: "c", Date: core.NewDate(2024, 5, 1)},
	}
	if got := ids(Sort(rs)); got != "c,a,b," {
		t.Fatalf("got %s", got)
	}
	if rs[0].ID != "b" {
		t.Fatal("Sort must not modify its input")
	}
}

func makeRecords(n int, project string) []core.Record {
	rs := make([]core.Record, n)
	for i := range rs {
		rs[i] = core.Record{ID: fmt.Sprintf("r%02d", i), ProjectID: project}
	}
	return rs
}

func TestPaginate(t *testing.T) {
	rs := makeRecords(45, "P1")
	tests := []struct {
		page, size    int
		wantPage      int
		wantItems     int
		wantPages     int
		wantFirstItem string
	}{
		{1, 20, 1, 20, 3, "r00"},
		{3, 20, 3, 5, 3, "r40"},
		{9, 20, 3, 5, 3, "r40"},
		{0, 20, 1, 20, 3, "r00"},
		{1, 0, 1, 20, 3, "r00"},
	}
	for _, tt := range tests {
		got := Paginate(rs, tt.page, tt.size)
		if got.Page != tt.wantPage || len(got.Items) != tt.wantItems || got.TotalPages != tt.wantPages || got.TotalItems != 45 {
			t.Errorf("Paginate(%d,%d) = page %d items %d pages %d", tt.page, tt.size, got.Page, len(got.Items), got.TotalPages)
			continue
		}
		if got.Items[0].ID != tt.wantFirstItem {
			t.Errorf("first item %s, want %s", got.Items[0].ID, tt.wantFirstItem)
		}
	}

	empty := Paginate(nil, 4, 10)
	if empty.Page != 1 || empty.TotalPages != 1 || len(empty.Items) != 0 {
		t.Errorf("empty = %+v", empty)
	}
}

func TestPageOf(t *testing.T) {
	tests := []struct{ index, size, want int }{
		{0, 20, 1},
		{19, 20, 1},
		{20, 20, 2},
		{41, 20, 3},
		{-1, 20, 0},
	}
	for _, tt := range tests {
		if got := PageOf(tt.index, tt.size); got != tt.want {
			t.Errorf("PageOf(%d, %d) = %d, want %d", tt.index, tt.size, got, tt.want)
		}
	}
}
