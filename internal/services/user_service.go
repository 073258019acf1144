package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"estate/internal/auth"
	"estate/internal/core"
	"estate/internal/log"
	"estate/internal/storage"
)

// NewUser is the input to UserService.Create.
type NewUser struct {
	Username  string
	Password  string
	Role      core.Role
	ProjectID string
}

// Session is returned by a successful login.
type Session struct {
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expires_at"`
	User      core.User `json:"user"`
}

// UserService administers accounts and issues session tokens.
type UserService struct {
	store  storage.Store
	tokens *auth.JWTManager
	fx     effects
}

func NewUserService(d Deps, tokens *auth.JWTManager) *UserService {
	return &UserService{store: d.Store, tokens: tokens, fx: newEffects(d, log.ComponentAuth)}
}

// Create adds an account. Only admins may do it; a taken username yields
// core.ErrConflict.
func (s *UserService) Create(ctx context.Context, scope core.Scope, in NewUser) (core.User, error) {
	if err := requireAdmin(scope, "create user"); err != nil {
		return core.User{}, err
	}
	return s.create(ctx, in)
}

func (s *UserService) create(ctx context.Context, in NewUser) (core.User, error) {
	u := core.User{
		Username:  storage.NormalizeUsername(in.Username),
		Role:      in.Role,
		ProjectID: strings.TrimSpace(in.ProjectID),
	}
	if u.Role == "" {
		u.Role = core.RoleUser
	}
	if err := u.Validate(); err != nil {
		return core.User{}, err
	}
	if u.ProjectID != "" {
		if _, err := s.store.GetProject(ctx, u.ProjectID); err != nil {
			return core.User{}, fmt.Errorf("get project: %w", err)
		}
	}
	hash, err := auth.HashPassword(in.Password)
	if err != nil {
		return core.User{}, err
	}
	u.PasswordHash = hash

	saved, err := s.store.SaveUser(ctx, u)
	if err != nil {
		return core.User{}, fmt.Errorf("save user: %w", err)
	}
	s.fx.logger.InfoContext(ctx, "User created",
		log.FieldUserID, saved.ID, "username", saved.Username, "role", saved.Role)
	s.fx.changed(ctx, storage.KindUsers)
	return saved, nil
}

// Login checks credentials and issues a token. Unknown users and wrong
// passwords are indistinguishable to the caller.
func (s *UserService) Login(ctx context.Context, username, password string) (Session, error) {
	u, err := s.store.GetUserByUsername(ctx, username)
	if err != nil {
		if errors.Is(err, core.ErrNotFound) {
			return Session{}, auth.ErrInvalidCredentials
		}
		return Session{}, fmt.Errorf("get user: %w", err)
	}
	if err := auth.CheckPassword(u.PasswordHash, password); err != nil {
		s.fx.logger.WarnContext(ctx, "Failed login", "username", u.Username)
		return Session{}, err
	}
	token, expires, err := s.tokens.Generate(u)
	if err != nil {
		return Session{}, err
	}
	return Session{Token: token, ExpiresAt: expires, User: u}, nil
}

// Bootstrap creates the first admin when no account exists yet. It is a
// no-op otherwise.
func (s *UserService) Bootstrap(ctx context.Context, username, password string) (bool, error) {
	users, err := s.store.ListUsers(ctx)
	if err != nil {
		return false, fmt.Errorf("list users: %w", err)
	}
	if len(users) > 0 {
		return false, nil
	}
	if _, err := s.create(ctx, NewUser{Username: username, Password: password, Role: core.RoleAdmin}); err != nil {
		return false, fmt.Errorf("bootstrap admin: %w", err)
	}
	return true, nil
}

// List is admin only.
func (s *UserService) List(ctx context.Context, scope core.Scope) ([]core.User, error) {
	if err := requireAdmin(scope, "list users"); err != nil {
		return nil, err
	}
	users, err := s.store.ListUsers(ctx)
	if err != nil {
		return nil, fmt.Errorf("list users: %w", err)
	}
	return users, nil
}
