package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"estate/internal/auth"
	"estate/internal/core"
)

func newUserService(fx *fixture) (*UserService, *auth.JWTManager) {
	tokens := auth.NewJWTManager("0123456789abcdef0123456789abcdef", time.Hour)
	return NewUserService(fx.deps, tokens), tokens
}

func TestUserService_CreateAndLogin(t *testing.T) {
	fx := newFixture(t)
	svc, tokens := newUserService(fx)
	ctx := context.Background()

	u, err := svc.Create(ctx, admin, NewUser{Username: "  Alice ", Password: "correct horse", ProjectID: "p1"})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if u.Username != "alice" || u.Role != core.RoleUser || u.PasswordHash == "" || u.PasswordHash == "correct horse" {
		t.Errorf("user = %+v", u)
	}

	session, err := svc.Login(ctx, "ALICE", "correct horse")
	if err != nil {
		t.Fatalf("Login: %v", err)
	}
	claims, err := tokens.Validate(session.Token)
	if err != nil {
		t.Fatalf("Validate: %v", err)
	}
	if scope := claims.Scope(); scope.ProjectID != "p1" || scope.Username != "alice" || scope.IsAdmin() {
		t.Errorf("scope = %+v", scope)
	}

	for _, tc := range []struct{ user, pass string }{{"alice", "wrong password"}, {"nobody", "correct horse"}} {
		if _, err := svc.Login(ctx, tc.user, tc.pass); !errors.Is(err, auth.ErrInvalidCredentials) {
			t.Errorf("Login(%s) error = %v", tc.user, err)
		}
	}
}

func TestUserService_CreateRejections(t *testing.T) {
	fx := newFixture(t)
	svc, _ := newUserService(fx)
	ctx := context.Background()
	if _, err := svc.Create(ctx, admin, NewUser{Username: "alice", Password: "password1"}); err != nil {
		t.Fatalf("Create: %v", err)
	}

	tests := []struct {
		name    string
		scope   core.Scope
		in      NewUser
		wantErr error
	}{
		{"non-admin", agentP1, NewUser{Username: "carl", Password: "password1"}, core.ErrForbidden},
		{"duplicate username", admin, NewUser{Username: "ALICE", Password: "password1"}, core.ErrConflict},
		{"weak password", admin, NewUser{Username: "dora", Password: "short"}, core.ErrWeakPassword},
		{"bad role", admin, NewUser{Username: "erin", Password: "password1", Role: "root"}, core.ErrInvalidRole},
		{"unknown project", admin, NewUser{Username: "finn", Password: "password1", ProjectID: "p9"}, core.ErrNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := svc.Create(ctx, tt.scope, tt.in); !errors.Is(err, tt.wantErr) {
				t.Errorf("Create error = %v, want %v", err, tt.wantErr)
			}
		})
	}
}

func TestUserService_Bootstrap(t *testing.T) {
	fx := newFixture(t)
	svc, _ := newUserService(fx)
	ctx := context.Background()

	created, err := svc.Bootstrap(ctx, "root", "bootstrap-pass")
	if err != nil || !created {
		t.Fatalf("Bootstrap = %v, %v", created, err)
	}
	created, err = svc.Bootstrap(ctx, "other", "bootstrap-pass")
	if err != nil || created {
		t.Errorf("second Bootstrap = %v, %v", created, err)
	}

	users, err := svc.List(ctx, admin)
	if err != nil || len(users) != 1 || users[0].Role != core.RoleAdmin {
		t.Errorf("users = %+v, %v", users, err)
	}
	if _, err := svc.List(ctx, agentP1); !errors.Is(err, core.ErrForbidden) {
		t.Errorf("non-admin list error = %v", err)
	}
}
