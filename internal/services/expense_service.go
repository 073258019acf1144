package services

import (
	"context"
	"fmt"
	"strings"
	"time"

	"estate/internal/amqp"
	"estate/internal/core"
	"estate/internal/filter"
	"estate/internal/log"
	"estate/internal/storage"
)

// ExpenseService orchestrates expense and category writes, filtered
// listings and record navigation.
type ExpenseService struct {
	store    storage.Store
	fx       effects
	pageSize int
	now      func() time.Time
}

func NewExpenseService(d Deps, pageSize int) *ExpenseService {
	if pageSize <= 0 {
		pageSize = filter.DefaultPageSize
	}
	return &ExpenseService{
		store:    d.Store,
		fx:       newEffects(d, log.ComponentExpense),
		pageSize: pageSize,
		now:      time.Now,
	}
}

func (s *ExpenseService) PageSize() int { return s.pageSize }

// Create saves an expense. A restricted caller's expense defaults to their
// project; a category, when given, must be visible from that project.
func (s *ExpenseService) Create(ctx context.Context, scope core.Scope, e core.Expense) (core.Expense, error) {
	if e.ProjectID == "" && scope.Restricted() {
		e.ProjectID = scope.ProjectID
	}
	if err := checkScope(scope, e.ProjectID, "expense"); err != nil {
		return core.Expense{}, err
	}
	e.ID = ""
	e.Description = strings.TrimSpace(e.Description)
	if e.Date.IsZero() {
		e.Date = core.DateOf(s.now())
	}
	if err := e.Validate(); err != nil {
		return core.Expense{}, err
	}
	if e.CategoryID != "" {
		if err := s.categoryVisible(ctx, e.ProjectID, e.CategoryID); err != nil {
			return core.Expense{}, err
		}
	}

	saved, err := s.store.SaveExpense(ctx, e)
	if err != nil {
		return core.Expense{}, fmt.Errorf("save expense: %w", err)
	}

	s.fx.logger.InfoContext(ctx, "Expense created",
		log.FieldExpenseID, saved.ID, log.FieldProjectID, saved.ProjectID, log.FieldAmount, saved.Amount)
	s.fx.changed(ctx, storage.KindExpenses)
	s.fx.publish(ctx, amqp.NewEvent(amqp.EventExpenseCreated, saved.ID, saved.ProjectID).
		WithAmount(saved.Amount).WithActor(scope.Username))
	return saved, nil
}

func (s *ExpenseService) categoryVisible(ctx context.Context, projectID, categoryID string) error {
	cats, err := s.store.ListCategories(ctx, storage.Query{ProjectID: projectID})
	if err != nil {
		return fmt.Errorf("list categories: %w", err)
	}
	for _, c := range cats {
		if c.ID == categoryID {
			return nil
		}
	}
	return fmt.Errorf("category %s: %w", categoryID, core.ErrMissingLinkage)
}

func (s *ExpenseService) Delete(ctx context.Context, scope core.Scope, id string) error {
	e, err := s.store.GetExpense(ctx, id)
	if err != nil {
		return fmt.Errorf("get expense: %w", err)
	}
	if err := checkScope(scope, e.ProjectID, "expense "+id); err != nil {
		return err
	}
	if err := s.store.DeleteExpense(ctx, id); err != nil {
		return fmt.Errorf("delete expense: %w", err)
	}
	s.fx.logger.InfoContext(ctx, "Expense deleted", log.FieldExpenseID, id, log.FieldProjectID, e.ProjectID)
	s.fx.changed(ctx, storage.KindExpenses)
	return nil
}

// Categories lists the categories usable in projectID: its own plus the
// shared ones.
func (s *ExpenseService) Categories(ctx context.Context, scope core.Scope, projectID string) ([]core.ExpenseCategory, error) {
	project, err := scope.Resolve(projectID)
	if err != nil {
		return nil, fmt.Errorf("project %s: %w", projectID, err)
	}
	cats, err := s.store.ListCategories(ctx, storage.Query{ProjectID: project})
	if err != nil {
		return nil, fmt.Errorf("list categories: %w", err)
	}
	return cats, nil
}

// CreateCategory rejects a name already used, case-insensitively, by a
// category visible from the same project. Only admins create shared
// categories.
func (s *ExpenseService) CreateCategory(ctx context.Context, scope core.Scope, c core.ExpenseCategory) (core.ExpenseCategory, error) {
	if c.ProjectID == "" && scope.Restricted() {
		c.ProjectID = scope.ProjectID
	}
	if c.ProjectID == "" {
		if err := requireAdmin(scope, "create shared category"); err != nil {
			return core.ExpenseCategory{}, err
		}
	} else if err := checkScope(scope, c.ProjectID, "category"); err != nil {
		return core.ExpenseCategory{}, err
	}
	c.ID = ""
	c.Name = strings.TrimSpace(c.Name)
	if err := c.Validate(); err != nil {
		return core.ExpenseCategory{}, err
	}

	existing, err := s.store.ListCategories(ctx, storage.Query{ProjectID: c.ProjectID})
	if err != nil {
		return core.ExpenseCategory{}, fmt.Errorf("list categories: %w", err)
	}
	for _, other := range existing {
		if strings.EqualFold(other.Name, c.Name) {
			return core.ExpenseCategory{}, fmt.Errorf("category %q: %w", c.Name, core.ErrConflict)
		}
	}

	saved, err := s.store.SaveCategory(ctx, c)
	if err != nil {
		return core.ExpenseCategory{}, fmt.Errorf("save category: %w", err)
	}
	s.fx.changed(ctx, storage.KindCategories)
	return saved, nil
}

// Records returns the expenses visible to scope that satisfy c, sorted
// newest first, with the category names used for search and display.
func (s *ExpenseService) Records(ctx context.Context, scope core.Scope, c filter.Criteria) ([]core.Record, map[string]string, error) {
	project, err := scope.Resolve(c.ProjectID)
	if err != nil {
		return nil, nil, fmt.Errorf("project %s: %w", c.ProjectID, err)
	}
	expenses, err := s.store.ListExpenses(ctx, storage.Query{ProjectID: project})
	if err != nil {
		return nil, nil, fmt.Errorf("list expenses: %w", err)
	}
	cats, err := s.store.ListCategories(ctx, storage.Query{ProjectID: project})
	if err != nil {
		return nil, nil, fmt.Errorf("list categories: %w", err)
	}
	names := filter.CategoryNames(cats)
	records, err := filter.Apply(core.ExpenseRecords(expenses), scope, c, names)
	if err != nil {
		return nil, nil, err
	}
	return filter.Sort(records), names, nil
}

// List returns one page of the filtered expenses.
func (s *ExpenseService) List(ctx context.Context, scope core.Scope, c filter.Criteria, page int) (filter.PageResult, error) {
	records, _, err := s.Records(ctx, scope, c)
	if err != nil {
		return filter.PageResult{}, err
	}
	return filter.Paginate(records, page, s.pageSize), nil
}

// Navigation is the outcome of Locate: the final locator step and, when
// found, the page holding the target.
type Navigation struct {
	Step filter.Step       `json:"step"`
	Page filter.PageResult `json:"page"`
}

// Locate finds the page of expense targetID within the list filtered by c.
// The page is rendered from a fresh load of the list and checked for the
// target; if the list changed shape in between, the index is recomputed
// once before giving up.
func (s *ExpenseService) Locate(ctx context.Context, scope core.Scope, c filter.Criteria, targetID string) (Navigation, error) {
	loc := filter.NewLocator(scope, s.pageSize)

	target, err := s.store.GetExpense(ctx, targetID)
	if err != nil {
		step := filter.Step{State: filter.NotFound, TargetID: targetID, Index: -1, Reason: filter.ReasonMissing}
		return Navigation{Step: step}, fmt.Errorf("get expense: %w", err)
	}

	list, _, err := s.Records(ctx, scope, c)
	if err != nil {
		return Navigation{}, err
	}
	step, err := loc.Locate(target.Record(), list)
	if err != nil {
		return Navigation{Step: step}, err
	}

	for step.State == filter.ConfirmingRender {
		current, _, err := s.Records(ctx, scope, c)
		if err != nil {
			return Navigation{Step: step}, err
		}
		rendered := filter.Paginate(current, step.Page, s.pageSize)
		step, err = loc.Confirm(rendered.Items, current)
		if err != nil {
			return Navigation{Step: step}, err
		}
		if step.State == filter.Found {
			return Navigation{Step: step, Page: rendered}, nil
		}
	}
	return Navigation{Step: step}, nil
}
