package lifetime

import (
	"sync"

	"go.uber.org/zap"

	"github.com/wippyai/memsafe/errors"
	"github.com/wippyai/memsafe/resource"
)

const textTypeID uint32 = 1

// Scope is a lexical region that owns text values. Ending a scope releases
// everything it owns in reverse declaration order, after ending its children.
type Scope struct {
	table    *resource.UnifiedTable
	parent   *Scope
	name     string
	children []*Scope
	owned    []*OwnedText
	mu       sync.Mutex
	ended    bool
}

// NewScope creates a root scope with its own ownership table.
func NewScope(name string) *Scope {
	return &Scope{
		table: resource.NewTable(),
		name:  name,
	}
}

// Child opens a nested scope sharing the parent's table.
// A child of an ended scope starts out ended.
func (s *Scope) Child(name string) *Scope {
	s.mu.Lock()
	defer s.mu.Unlock()

	c := &Scope{
		table:  s.table,
		parent: s,
		name:   name,
		ended:  s.ended,
	}
	if !s.ended {
		s.children = append(s.children, c)
	}
	return c
}

// Name returns the scope name.
func (s *Scope) Name() string {
	return s.name
}

// Ended reports whether End has been called.
func (s *Scope) Ended() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.ended
}

// Table returns the ownership table backing this scope.
func (s *Scope) Table() *resource.UnifiedTable {
	return s.table
}

// NewText creates an owned text value in this scope.
func (s *Scope) NewText(name, value string) (*OwnedText, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.ended {
		return nil, errors.ScopeEnded(s.name)
	}
	buf := make([]byte, len(value))
	copy(buf, value)
	return s.adoptLocked(name, &textCell{buf: buf})
}

// adoptLocked registers cell as a new owned value. Caller holds s.mu.
func (s *Scope) adoptLocked(name string, cell *textCell) (*OwnedText, error) {
	h := s.table.Insert(textTypeID, cell)
	if h == 0 {
		return nil, errors.Closed(errors.PhaseRuntime, "ownership table")
	}
	t := &OwnedText{scope: s, name: name, handle: h}
	s.owned = append(s.owned, t)
	return t, nil
}

func (s *Scope) adopt(name string, cell *textCell) (*OwnedText, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.ended {
		return nil, errors.ScopeEnded(s.name)
	}
	return s.adoptLocked(name, cell)
}

// End ends child scopes, then drops owned values in reverse order.
// Outstanding exclusive borrows are returned before the drop.
// Ending a scope twice is a scope_ended fault.
func (s *Scope) End() error {
	s.mu.Lock()
	if s.ended {
		s.mu.Unlock()
		return errors.ScopeEnded(s.name)
	}
	s.ended = true
	children := s.children
	owned := s.owned
	s.children = nil
	s.owned = nil
	s.mu.Unlock()

	for i := len(children) - 1; i >= 0; i-- {
		if children[i].Ended() {
			continue
		}
		if err := children[i].End(); err != nil {
			return err
		}
	}

	released := 0
	for i := len(owned) - 1; i >= 0; i-- {
		t := owned[i]
		if t.moved || t.dropped {
			continue
		}
		s.table.ReturnMut(t.handle)
		if _, ok := s.table.Remove(t.handle); ok {
			released++
		}
		t.dropped = true
	}

	Logger().Debug("scope ended",
		zap.String("scope", s.name),
		zap.Int("released", released),
	)
	return nil
}
