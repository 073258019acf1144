package filter

import (
	"fmt"

	"estate/internal/core"
)

type State int

const (
	Idle State = iota
	ResolvingIndex
	ConfirmingRender
	Found
	NotFound
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case ResolvingIndex:
		return "resolving_index"
	case ConfirmingRender:
		return "confirming_render"
	case Found:
		return "found"
	case NotFound:
		return "not_found"
	}
	return fmt.Sprintf("state(%d)", int(s))
}

func (s State) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

func (s *State) UnmarshalText(b []byte) error {
	for st := Idle; st <= NotFound; st++ {
		if st.String() == string(b) {
			*s = st
			return nil
		}
	}
	return fmt.Errorf("unknown locator state %q", b)
}

// Reason explains a NotFound outcome.
type Reason string

const (
	ReasonNone       Reason = ""
	ReasonOutOfScope Reason = "out_of_scope"
	ReasonMissing    Reason = "missing"
)

// Step is the observable outcome of a Locator transition.
type Step struct {
	State    State  `json:"state"`
	TargetID string `json:"target_id"`
	Index    int    `json:"index"`
	Page     int    `json:"page"`
	Reason   Reason `json:"reason,omitempty"`
	Retried  bool   `json:"retried,omitempty"`
}

// Locator finds the page of a record in a filtered, sorted list. It works
// in two phases: Locate resolves an index against the current list, and
// Confirm checks the rendered page actually holds the record. If the list
// changed shape in between, Confirm recomputes once and then gives up.
//
// A Locator is not safe for concurrent use.
type Locator struct {
	scope    core.Scope
	pageSize int

	state   State
	target  string
	index   int
	page    int
	retried bool
	reason  Reason
}

func NewLocator(scope core.Scope, pageSize int) *Locator {
	if pageSize <= 0 {
		pageSize = DefaultPageSize
	}
	return &Locator{scope: scope, pageSize: pageSize, index: -1}
}

func (l *Locator) State() State { return l.state }

// Locate starts a navigation to target within list. A target outside the
// caller's scope is rejected with core.ErrOutOfScope before the list is
// consulted.
func (l *Locator) Locate(target core.Record, list []core.Record) (Step, error) {
	l.state = ResolvingIndex
	l.target = target.ID
	l.retried = false
	l.reason = ReasonNone
	l.index, l.page = -1, 0

	if !l.scope.Allows(target.ProjectID) {
		return l.fail(ReasonOutOfScope, core.ErrOutOfScope)
	}
	return l.resolve(list)
}

// Confirm completes the navigation once the page has been rendered.
// rendered is the page the caller displayed; current is the full list as
// it is now.
func (l *Locator) Confirm(rendered, current []core.Record) (Step, error) {
	if l.state != ConfirmingRender {
		return l.step(), fmt.Errorf("confirm in state %s: %w", l.state, core.ErrInvalidState)
	}
	if IndexOf(rendered, l.target) >= 0 {
		l.state = Found
		return l.step(), nil
	}
	if l.retried {
		return l.fail(ReasonMissing, core.ErrNotFound)
	}
	l.retried = true
	l.state = ResolvingIndex
	return l.resolve(current)
}

// Reset returns the locator to Idle.
func (l *Locator) Reset() {
	*l = Locator{scope: l.scope, pageSize: l.pageSize, index: -1}
}

func (l *Locator) resolve(list []core.Record) (Step, error) {
	idx := IndexOf(list, l.target)
	if idx < 0 {
		return l.fail(ReasonMissing, core.ErrNotFound)
	}
	l.index = idx
	l.page = PageOf(idx, l.pageSize)
	l.state = ConfirmingRender
	return l.step(), nil
}

func (l *Locator) fail(reason Reason, err error) (Step, error) {
	l.state = NotFound
	l.reason = reason
	l.index, l.page = -1, 0
	return l.step(), fmt.Errorf("locate %s: %w", l.target, err)
}

func (l *Locator) step() Step {
	return Step{
		State:    l.state,
		TargetID: l.target,
		Index:    l.index,
		Page:     l.page,
		Reason:   l.reason,
		Retried:  l.retried,
	}
}
