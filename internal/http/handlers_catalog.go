package http

import (
	"net/http"

	"estate/internal/core"
)

type projectRequest struct {
	Name string `json:"name" validate:"required,max=120"`
}

type unitRequest struct {
	Name      string `json:"name" validate:"required,max=120"`
	Price     Amount `json:"price"`
	ProjectID string `json:"project_id" validate:"max=64"`
}

type customerRequest struct {
	Name      string `json:"name" validate:"required,max=120"`
	Phone     string `json:"phone" validate:"max=40"`
	Email     string `json:"email" validate:"omitempty,email,max=254"`
	ProjectID string `json:"project_id" validate:"max=64"`
}

func (s *Server) handleListProjects(w http.ResponseWriter, r *http.Request) {
	projects, err := s.svc.Catalog.Projects(r.Context(), scope(r))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, projects)
}

func (s *Server) handleCreateProject(w http.ResponseWriter, r *http.Request) {
	var req projectRequest
	if err := s.decodeJSON(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	p, err := s.svc.Catalog.CreateProject(r.Context(), scope(r), core.Project{Name: sanitizeInput(req.Name)})
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, p)
}

func (s *Server) handleProjectBalances(w http.ResponseWriter, r *http.Request) {
	balances, err := s.svc.Ledger.ProjectBalances(r.Context(), scope(r), r.PathValue("id"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, balances)
}

func (s *Server) handleListUnits(w http.ResponseWriter, r *http.Request) {
	units, err := s.svc.Catalog.Units(r.Context(), scope(r), r.URL.Query().Get("project"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, units)
}

// handleSaveUnit serves both POST /api/units and PUT /api/units/{id}.
func (s *Server) handleSaveUnit(w http.ResponseWriter, r *http.Request) {
	var req unitRequest
	if err := s.decodeJSON(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	u, err := s.svc.Catalog.SaveUnit(r.Context(), scope(r), core.Unit{
		ID:        r.PathValue("id"),
		Name:      sanitizeInput(req.Name),
		Price:     float64(req.Price),
		ProjectID: sanitizeInput(req.ProjectID),
	})
	if err != nil {
		writeError(w, r, err)
		return
	}
	status := http.StatusOK
	if r.Method == http.MethodPost {
		status = http.StatusCreated
	}
	writeJSON(w, status, u)
}

func (s *Server) handleListCustomers(w http.ResponseWriter, r *http.Request) {
	customers, err := s.svc.Catalog.Customers(r.Context(), scope(r), r.URL.Query().Get("project"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, customers)
}

func (s *Server) handleCreateCustomer(w http.ResponseWriter, r *http.Request) {
	var req customerRequest
	if err := s.decodeJSON(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	c, err := s.svc.Catalog.CreateCustomer(r.Context(), scope(r), core.Customer{
		Name:      sanitizeInput(req.Name),
		Phone:     sanitizeInput(req.Phone),
		Email:     sanitizeInput(req.Email),
		ProjectID: sanitizeInput(req.ProjectID),
	})
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, c)
}
