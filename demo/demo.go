// Package demo runs the memory-safety demonstrations.
//
// Each section is a list of examples. Examples that attempt an unsafe
// operation must be stopped with the expected fault kind; an unsafe
// operation that succeeds fails the demonstration.
package demo

import (
	"context"
	stderrors "errors"
	"fmt"
	"io"

	"go.uber.org/zap"

	"github.com/wippyai/memsafe/errors"
)

// ErrUnsafeAllowed reports an unsafe operation that was not rejected.
var ErrUnsafeAllowed = stderrors.New("unsafe operation was allowed")

// Example is one demonstration.
type Example struct {
	Name  string
	Title string
	Run   func(ctx context.Context, n *Narrator) error
}

// Section is a named group of examples.
type Section struct {
	Name     string
	Title    string
	Examples []Example
}

// All returns every section in run order.
func All() []Section {
	return []Section{
		lifetimesSection(),
		overflowSection(),
		uafSection(),
		linearSection(),
		sessionSection(),
	}
}

// Sections returns the section names in run order.
func Sections() []string {
	all := All()
	names := make([]string, len(all))
	for i, s := range all {
		names[i] = s.Name
	}
	return names
}

// Lookup returns the section called name.
func Lookup(name string) (Section, error) {
	for _, s := range All() {
		if s.Name == name {
			return s, nil
		}
	}
	return Section{}, errors.NotFound(errors.PhaseRuntime, "section", name)
}

// Run runs the named sections, or all of them, with unstyled narration.
func Run(ctx context.Context, w io.Writer, names ...string) error {
	return RunWith(ctx, NewNarrator(w, ColorNever), names...)
}

// RunWith runs the named sections, or all of them, through n. It stops at
// the first failing example.
func RunWith(ctx context.Context, n *Narrator, names ...string) error {
	sections := All()
	if len(names) > 0 {
		sections = sections[:0]
		for _, name := range names {
			s, err := Lookup(name)
			if err != nil {
				return err
			}
			sections = append(sections, s)
		}
	}

	for _, s := range sections {
		n.Section(s.Title)
		for _, ex := range s.Examples {
			if err := ctx.Err(); err != nil {
				return err
			}
			n.Example(ex.Title)
			if err := ex.Run(ctx, n); err != nil {
				Logger().Error("example failed",
					zap.String("section", s.Name),
					zap.String("example", ex.Name),
					zap.Error(err))
				return fmt.Errorf("%s/%s: %w", s.Name, ex.Name, err)
			}
			Logger().Debug("example passed", zap.String("section", s.Name), zap.String("example", ex.Name))
		}
	}
	return n.Err()
}

// expectFault narrates err when it carries kind. A nil err means the unsafe
// operation went through, which is itself a failure.
func expectFault(n *Narrator, err error, kind errors.Kind, op string) error {
	if err == nil {
		return fmt.Errorf("%s: %w (expected %s)", op, ErrUnsafeAllowed, kind)
	}
	if !errors.IsKind(err, kind) {
		return fmt.Errorf("%s: expected %s fault: %w", op, kind, err)
	}
	n.Rejected(err)
	return nil
}
