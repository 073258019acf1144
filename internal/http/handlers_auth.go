package http

import (
	"net/http"

	"estate/internal/core"
	"estate/internal/log"
	"estate/internal/services"
)

type loginRequest struct {
	Username string `json:"username" validate:"required,max=64"`
	Password string `json:"password" validate:"required,max=128"`
}

type createUserRequest struct {
	Username  string    `json:"username" validate:"required,min=3,max=64"`
	Password  string    `json:"password" validate:"required,min=8,max=128"`
	Role      core.Role `json:"role" validate:"omitempty,oneof=admin user"`
	ProjectID string    `json:"project_id" validate:"max=64"`
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := s.decodeJSON(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	session, err := s.svc.Users.Login(r.Context(), req.Username, req.Password)
	if err != nil {
		log.FromContext(r.Context()).WarnContext(r.Context(), "Login failed",
			"username", sanitizeInput(req.Username),
			log.FieldError, err)
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, session)
}

func (s *Server) handleMe(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, scope(r))
}

func (s *Server) handleListUsers(w http.ResponseWriter, r *http.Request) {
	users, err := s.svc.Users.List(r.Context(), scope(r))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, users)
}

func (s *Server) handleCreateUser(w http.ResponseWriter, r *http.Request) {
	var req createUserRequest
	if err := s.decodeJSON(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	u, err := s.svc.Users.Create(r.Context(), scope(r), services.NewUser{
		Username:  req.Username,
		Password:  req.Password,
		Role:      req.Role,
		ProjectID: sanitizeInput(req.ProjectID),
	})
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, u)
}
