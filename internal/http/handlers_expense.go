package http

import (
	"errors"
	"net/http"

	"estate/internal/core"
	"estate/internal/filter"
)

type expenseRequest struct {
	Date        core.Date `json:"date"`
	Description string    `json:"description" validate:"required,max=200"`
	Amount      Amount    `json:"amount"`
	CategoryID  string    `json:"category_id" validate:"max=64"`
	ProjectID   string    `json:"project_id" validate:"max=64"`
	AccountID   string    `json:"account_id" validate:"max=64"`
	Notes       string    `json:"notes" validate:"max=500"`
}

type categoryRequest struct {
	Name      string `json:"name" validate:"required,max=80"`
	ProjectID string `json:"project_id" validate:"max=64"`
}

// expenseList is one page of filtered expenses plus the names of the
// categories they reference.
type expenseList struct {
	filter.PageResult
	CategoryNames map[string]string `json:"category_names"`
}

type locateResponse struct {
	Error string             `json:"error,omitempty"`
	Step  filter.Step        `json:"step"`
	Page  *filter.PageResult `json:"page,omitempty"`
}

func (s *Server) handleListExpenses(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	c, err := ParseCriteria(q)
	if err != nil {
		writeError(w, r, err)
		return
	}
	records, names, err := s.svc.Expenses.Records(r.Context(), scope(r), c)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, expenseList{
		PageResult:    filter.Paginate(records, parsePage(q), s.svc.Expenses.PageSize()),
		CategoryNames: names,
	})
}

func (s *Server) handleCreateExpense(w http.ResponseWriter, r *http.Request) {
	var req expenseRequest
	if err := s.decodeJSON(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	e, err := s.svc.Expenses.Create(r.Context(), scope(r), core.Expense{
		Date:        req.Date,
		Description: sanitizeInput(req.Description),
		Amount:      float64(req.Amount),
		CategoryID:  sanitizeInput(req.CategoryID),
		ProjectID:   sanitizeInput(req.ProjectID),
		AccountID:   sanitizeInput(req.AccountID),
		Notes:       sanitizeInput(req.Notes),
	})
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, e)
}

func (s *Server) handleDeleteExpense(w http.ResponseWriter, r *http.Request) {
	if err := s.svc.Expenses.Delete(r.Context(), scope(r), r.PathValue("id")); err != nil {
		writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// handleLocateExpense returns the page holding an expense within the
// filtered list. A missing target answers 404 with the final locator step.
func (s *Server) handleLocateExpense(w http.ResponseWriter, r *http.Request) {
	c, err := ParseCriteria(r.URL.Query())
	if err != nil {
		writeError(w, r, err)
		return
	}
	nav, err := s.svc.Expenses.Locate(r.Context(), scope(r), c, r.PathValue("id"))
	switch {
	case errors.Is(err, core.ErrNotFound):
		writeJSON(w, http.StatusNotFound, locateResponse{Error: CodeNotFound, Step: nav.Step})
		return
	case err != nil:
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, locateResponse{Step: nav.Step, Page: &nav.Page})
}

func (s *Server) handleListCategories(w http.ResponseWriter, r *http.Request) {
	cats, err := s.svc.Expenses.Categories(r.Context(), scope(r), r.URL.Query().Get("project"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, cats)
}

func (s *Server) handleCreateCategory(w http.ResponseWriter, r *http.Request) {
	var req categoryRequest
	if err := s.decodeJSON(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	c, err := s.svc.Expenses.CreateCategory(r.Context(), scope(r), core.ExpenseCategory{
		Name:      sanitizeInput(req.Name),
		ProjectID: sanitizeInput(req.ProjectID),
	})
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, c)
}
