package demo

import (
	"context"
	"strings"

	"github.com/wippyai/memsafe/errors"
	"github.com/wippyai/memsafe/lifetime"
)

func lifetimesSection() Section {
	return Section{
		Name:  "lifetimes",
		Title: "Lifetimes: a borrowed view never outlives its owner",
		Examples: []Example{
			{Name: "both-alive", Title: "Example 1 (works): result used while both owners live", Run: longestBothAlive},
			{Name: "inner-scope", Title: "Example 2 (works): result used before string2 is dropped", Run: longestInnerScope},
			{Name: "take-and-return", Title: "Example 3 (works): ownership moved in and back out", Run: takeAndReturnExample},
			{Name: "outlived", Title: "Example 4 (rejected): result read after string2 is dropped", Run: longestOutlived},
			{Name: "static", Title: "Static spans outlive every scope", Run: longestStatic},
		},
	}
}

// borrowPair declares string1 and string2 and borrows both.
func borrowPair(outer, inner *lifetime.Scope) (a, b lifetime.TextSpan, err error) {
	s1, err := outer.NewText("string1", "short")
	if err != nil {
		return a, b, err
	}
	s2, err := inner.NewText("string2", "long string")
	if err != nil {
		return a, b, err
	}
	if a, err = s1.Borrow(); err != nil {
		return a, b, err
	}
	b, err = s2.Borrow()
	return a, b, err
}

func longestBothAlive(_ context.Context, n *Narrator) error {
	top := lifetime.NewScope("main")
	defer top.End()

	a, b, err := borrowPair(top, top)
	if err != nil {
		return err
	}
	result := lifetime.LongestOf(a, b)
	text, err := result.Read()
	if err != nil {
		return err
	}
	n.Printf("The longest string is: %s", text)
	n.Note("result is bound to %s", strings.Join(result.Owners(), " and "))
	n.OK("Both string1 and string2 are still alive here")
	return nil
}

func longestInnerScope(_ context.Context, n *Narrator) error {
	top := lifetime.NewScope("main")
	defer top.End()

	inner := top.Child("block")
	a, b, err := borrowPair(top, inner)
	if err != nil {
		return err
	}
	result := lifetime.LongestOf(a, b)
	text, err := result.Read()
	if err != nil {
		return err
	}
	n.Printf("The longest string is: %s", text)
	n.OK("result used BEFORE string2 is dropped - this is OK!")
	return inner.End()
}

// takeAndReturn moves s into its own scope, uses it and hands it back.
func takeAndReturn(n *Narrator, caller *lifetime.Scope, s *lifetime.OwnedText) (*lifetime.OwnedText, error) {
	fn := caller.Child("take_and_return")
	s2, err := s.MoveTo(fn, "s2")
	if err != nil {
		return nil, err
	}
	v, err := s2.Value()
	if err != nil {
		return nil, err
	}
	n.Printf("%s", v)
	n.Note("s2 owns the text, len=%d cap=%d", s2.Len(), s2.Cap())

	back, err := s2.MoveTo(caller, "s")
	if err != nil {
		return nil, err
	}
	return back, fn.End()
}

func takeAndReturnExample(_ context.Context, n *Narrator) error {
	top := lifetime.NewScope("main")
	defer top.End()

	s, err := top.NewText("s", "hi")
	if err != nil {
		return err
	}
	n.Note("s owns the text, len=%d cap=%d", s.Len(), s.Cap())

	s, err = takeAndReturn(n, top, s)
	if err != nil {
		return err
	}
	v, err := s.Value()
	if err != nil {
		return err
	}
	n.Printf("%s", v)
	n.OK("Ownership moved into take_and_return and back; the text was never copied or freed")
	return nil
}

func longestOutlived(_ context.Context, n *Narrator) error {
	top := lifetime.NewScope("main")
	defer top.End()

	inner := top.Child("block")
	a, b, err := borrowPair(top, inner)
	if err != nil {
		return err
	}
	result := lifetime.LongestOf(a, b)
	if err := inner.End(); err != nil {
		return err
	}

	_, err = result.Read()
	if err := expectFault(n, err, errors.KindDangling, "read result after string2 dropped"); err != nil {
		return err
	}
	n.OK("result points into string2, which is gone; the read is refused instead of returning freed text")
	return nil
}

func longestStatic(_ context.Context, n *Narrator) error {
	result := lifetime.LongestOf(lifetime.Static("short"), lifetime.Static("long string"))
	text, err := result.Read()
	if err != nil {
		return err
	}
	n.Printf("The longest string is: %s", text)
	n.OK("Literals have no owner to outlive")
	return nil
}
