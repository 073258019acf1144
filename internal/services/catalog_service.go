package services

import (
	"context"
	"fmt"
	"strings"

	"estate/internal/core"
	"estate/internal/log"
	"estate/internal/storage"
)

// CatalogService manages projects, units and customers.
type CatalogService struct {
	store storage.Store
	fx    effects
}

func NewCatalogService(d Deps) *CatalogService {
	return &CatalogService{store: d.Store, fx: newEffects(d, log.ComponentApp)}
}

// Projects lists the projects visible to scope.
func (s *CatalogService) Projects(ctx context.Context, scope core.Scope) ([]core.Project, error) {
	all, err := s.store.ListProjects(ctx)
	if err != nil {
		return nil, fmt.Errorf("list projects: %w", err)
	}
	out := all[:0]
	for _, p := range all {
		if scope.Allows(p.ID) {
			out = append(out, p)
		}
	}
	return out, nil
}

// CreateProject is admin only.
func (s *CatalogService) CreateProject(ctx context.Context, scope core.Scope, p core.Project) (core.Project, error) {
	if err := requireAdmin(scope, "create project"); err != nil {
		return core.Project{}, err
	}
	p.ID = ""
	p.Name = strings.TrimSpace(p.Name)
	if err := p.Validate(); err != nil {
		return core.Project{}, err
	}
	saved, err := s.store.SaveProject(ctx, p)
	if err != nil {
		return core.Project{}, fmt.Errorf("save project: %w", err)
	}
	s.fx.changed(ctx, storage.KindProjects)
	return saved, nil
}

func (s *CatalogService) Units(ctx context.Context, scope core.Scope, projectID string) ([]core.Unit, error) {
	project, err := scope.Resolve(projectID)
	if err != nil {
		return nil, fmt.Errorf("project %s: %w", projectID, err)
	}
	units, err := s.store.ListUnits(ctx, storage.Query{ProjectID: project})
	if err != nil {
		return nil, fmt.Errorf("list units: %w", err)
	}
	return units, nil
}

// SaveUnit creates a unit, or updates its name and price. Status moves only
// through bookings, so an update keeps the stored status.
func (s *CatalogService) SaveUnit(ctx context.Context, scope core.Scope, u core.Unit) (core.Unit, error) {
	if u.ProjectID == "" && scope.Restricted() {
		u.ProjectID = scope.ProjectID
	}
	if err := checkScope(scope, u.ProjectID, "unit"); err != nil {
		return core.Unit{}, err
	}
	if u.ID != "" {
		existing, err := s.store.GetUnit(ctx, u.ID)
		if err != nil {
			return core.Unit{}, fmt.Errorf("get unit: %w", err)
		}
		if err := checkScope(scope, existing.ProjectID, "unit "+u.ID); err != nil {
			return core.Unit{}, err
		}
		u.Status = existing.Status
	} else {
		u.Status = core.UnitAvailable
	}
	if err := u.Validate(); err != nil {
		return core.Unit{}, err
	}
	if _, err := s.store.GetProject(ctx, u.ProjectID); err != nil {
		return core.Unit{}, fmt.Errorf("get project: %w", err)
	}
	saved, err := s.store.SaveUnit(ctx, u)
	if err != nil {
		return core.Unit{}, fmt.Errorf("save unit: %w", err)
	}
	s.fx.changed(ctx, storage.KindUnits)
	return saved, nil
}

func (s *CatalogService) Customers(ctx context.Context, scope core.Scope, projectID string) ([]core.Customer, error) {
	project, err := scope.Resolve(projectID)
	if err != nil {
		return nil, fmt.Errorf("project %s: %w", projectID, err)
	}
	customers, err := s.store.ListCustomers(ctx, storage.Query{ProjectID: project})
	if err != nil {
		return nil, fmt.Errorf("list customers: %w", err)
	}
	return customers, nil
}

func (s *CatalogService) CreateCustomer(ctx context.Context, scope core.Scope, c core.Customer) (core.Customer, error) {
	if c.ProjectID == "" && scope.Restricted() {
		c.ProjectID = scope.ProjectID
	}
	if err := checkScope(scope, c.ProjectID, "customer"); err != nil {
		return core.Customer{}, err
	}
	c.ID = ""
	c.Name = strings.TrimSpace(c.Name)
	if err := c.Validate(); err != nil {
		return core.Customer{}, err
	}
	saved, err := s.store.SaveCustomer(ctx, c)
	if err != nil {
		return core.Customer{}, fmt.Errorf("save customer: %w", err)
	}
	s.fx.changed(ctx, storage.KindCustomers)
	return saved, nil
}
