package core

// Scope is the caller's identity as seen by filters and services. It is
// passed explicitly into every call that reads scoped data.
type Scope struct {
	UserID    string
	Username  string
	Role      Role
	ProjectID string
}

// Restricted reports whether the caller is bound to exactly one project.
func (s Scope) Restricted() bool {
	return s.ProjectID != ""
}

func (s Scope) IsAdmin() bool {
	return s.Role == RoleAdmin
}

// Allows reports whether a row belonging to projectID is visible.
func (s Scope) Allows(projectID string) bool {
	return !s.Restricted() || s.ProjectID == projectID
}

// Resolve returns the project a query should be limited to. A restricted
// caller asking for another project gets ErrOutOfScope.
func (s Scope) Resolve(requested string) (string, error) {
	if !s.Restricted() {
		return requested, nil
	}
	if requested != "" && requested != s.ProjectID {
		return "", ErrOutOfScope
	}
	return s.ProjectID, nil
}
