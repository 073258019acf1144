package filter

import (
	"errors"
	"testing"

	"estate/internal/core"
)

func TestLocatorFoundOnFirstRender(t *testing.T) {
	list := makeRecords(45, "P1")
	l := NewLocator(core.Scope{ProjectID: "P1"}, 20)

	step, err := l.Locate(list[27], list)
	if err != nil {
		t.Fatalf("Locate: %v", err)
	}
	if step.State != ConfirmingRender || step.Page != 2 || step.Index != 27 {
		t.Fatalf("step = %+v", step)
	}

	rendered := Paginate(list, step.Page, 20).Items
	step, err = l.Confirm(rendered, list)
	if err != nil || step.State != Found {
		t.Fatalf("Confirm = %+v, %v", step, err)
	}
}

func TestLocatorRecomputesOnceWhenListShifts(t *testing.T) {
	list := makeRecords(45, "P1")
	l := NewLocator(core.Scope{}, 20)

	step, err := l.Locate(list[21], list)
	if err != nil || step.Page != 2 {
		t.Fatalf("Locate = %+v, %v", step, err)
	}

	// The list lost its first five rows before the page rendered.
	shifted := list[5:]
	rendered := Paginate(list, step.Page, 20).Items[:0]
	step, err = l.Confirm(rendered, shifted)
	if err != nil {
		t.Fatalf("first Confirm: %v", err)
	}
	if step.State != ConfirmingRender || step.Page != 1 || !step.Retried {
		t.Fatalf("expected recompute to page 1, got %+v", step)
	}

	step, err = l.Confirm(Paginate(shifted, step.Page, 20).Items, shifted)
	if err != nil || step.State != Found {
		t.Fatalf("second Confirm = %+v, %v", step, err)
	}
}

func TestLocatorGivesUpAfterOneRetry(t *testing.T) {
	list := makeRecords(10, "P1")
	l := NewLocator(core.Scope{}, 5)

	if _, err := l.Locate(list[7], list); err != nil {
		t.Fatalf("Locate: %v", err)
	}
	if _, err := l.Confirm(nil, list); err != nil {
		t.Fatalf("first Confirm should retry, got %v", err)
	}
	step, err := l.Confirm(nil, list)
	if !errors.Is(err, core.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	if step.State != NotFound || step.Reason != ReasonMissing {
		t.Fatalf("step = %+v", step)
	}
}

func TestLocatorTargetRemovedBeforeRetry(t *testing.T) {
	list := makeRecords(10, "P1")
	l := NewLocator(core.Scope{}, 5)
	if _, err := l.Locate(list[3], list); err != nil {
		t.Fatalf("Locate: %v", err)
	}
	step, err := l.Confirm(nil, list[4:])
	if !errors.Is(err, core.ErrNotFound) || step.State != NotFound {
		t.Fatalf("Confirm = %+v, %v", step, err)
	}
}

func TestLocatorRejectsOutOfScopeTarget(t *testing.T) {
	list := append(makeRecords(3, "P1"), core.Record{ID: "other", ProjectID: "P2"})
	l := NewLocator(core.Scope{ProjectID: "P1"}, 20)

	step, err := l.Locate(core.Record{ID: "other", ProjectID: "P2"}, list)
	if !errors.Is(err, core.ErrOutOfScope) {
		t.Fatalf("expected ErrOutOfScope, got %v", err)
	}
	if step.State != NotFound || step.Reason != ReasonOutOfScope || step.Page != 0 || step.Index != -1 {
		t.Fatalf("step leaked position: %+v", step)
	}
}

func TestLocatorConfirmRequiresPendingNavigation(t *testing.T) {
	l := NewLocator(core.Scope{}, 20)
	if _, err := l.Confirm(nil, nil); !errors.Is(err, core.ErrInvalidState) {
		t.Fatalf("expected ErrInvalidState, got %v", err)
	}
	l.Reset()
	if l.State() != Idle {
		t.Fatalf("state after reset = %s", l.State())
	}
}

func TestStateTextRoundTrip(t *testing.T) {
	for st := Idle; st <= NotFound; st++ {
		b, _ := st.MarshalText()
		var got State
		if err := got.UnmarshalText(b); err != nil || got != st {
			t.Errorf("round trip %s = %s, %v", st, got, err)
		}
	}
	var s State
	if err := s.UnmarshalText([]byte("lost")); err == nil {
		t.Error("expected error for unknown state")
	}
}
