package lifetime

import (
	"testing"

	"github.com/wippyai/memsafe/errors"
	"github.com/wippyai/memsafe/resource"
)

type dropRecorder struct {
	names []string
}

func (r *dropRecorder) OnResourceEvent(e resource.Event) {
	if e.Type == resource.EventDropped {
		r.names = append(r.names, string(e.Value.(*textCell).buf))
	}
}

func TestScope_EndDropsInReverseOrder(t *testing.T) {
	s := NewScope("main")
	rec := &dropRecorder{}
	s.Table().Subscribe(rec)

	for _, v := range []string{"first", "second", "third"} {
		if _, err := s.NewText(v, v); err != nil {
			t.Fatalf("NewText: %v", err)
		}
	}

	if err := s.End(); err != nil {
		t.Fatalf("End: %v", err)
	}

	want := []string{"third", "second", "first"}
	if len(rec.names) != len(want) {
		t.Fatalf("dropped %v, want %v", rec.names, want)
	}
	for i := range want {
		if rec.names[i] != want[i] {
			t.Fatalf("dropped %v, want %v", rec.names, want)
		}
	}
	if s.Table().Len() != 0 {
		t.Fatalf("table still holds %d values", s.Table().Len())
	}
}

func TestScope_ChildrenEndFirst(t *testing.T) {
	s := NewScope("main")
	rec := &dropRecorder{}
	s.Table().Subscribe(rec)

	s.NewText("outer", "outer")
	c := s.Child("inner")
	c.NewText("inner", "inner")

	if err := s.End(); err != nil {
		t.Fatalf("End: %v", err)
	}
	if !c.Ended() {
		t.Fatal("child scope should end with its parent")
	}
	if len(rec.names) != 2 || rec.names[0] != "inner" || rec.names[1] != "outer" {
		t.Fatalf("drop order = %v", rec.names)
	}
}

func TestScope_EndTwice(t *testing.T) {
	s := NewScope("main")
	if err := s.End(); err != nil {
		t.Fatalf("End: %v", err)
	}
	if err := s.End(); !errors.IsKind(err, errors.KindScopeEnded) {
		t.Fatalf("second End = %v, want scope_ended", err)
	}
	if _, err := s.NewText("late", "x"); !errors.IsKind(err, errors.KindScopeEnded) {
		t.Fatalf("NewText on ended scope = %v", err)
	}
	if c := s.Child("late"); !c.Ended() {
		t.Fatal("child of an ended scope should start ended")
	}
}

func TestScope_EndReturnsExclusiveBorrow(t *testing.T) {
	s := NewScope("main")
	o, _ := s.NewText("count", "0")
	if _, err := o.BorrowMut(); err != nil {
		t.Fatalf("BorrowMut: %v", err)
	}
	if err := s.End(); err != nil {
		t.Fatalf("End: %v", err)
	}
	if s.Table().Len() != 0 {
		t.Fatal("borrowed value was not released at scope end")
	}
}
