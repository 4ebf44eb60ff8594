package demo

import (
	"context"

	"github.com/wippyai/memsafe/errors"
	"github.com/wippyai/memsafe/lifetime"
	"github.com/wippyai/memsafe/memory"
)

func uafSection() Section {
	return Section{
		Name:  "uaf",
		Title: "Use after free: ownership and borrowing",
		Examples: []Example{
			{Name: "use-after-move", Title: "Ownership", Run: useAfterMove},
			{Name: "dangling-reference", Title: "References can't outlive the data", Run: danglingReference},
			{Name: "exclusive-access", Title: "Exclusive mutable access", Run: exclusiveAccess},
			{Name: "borrow-length", Title: "Correct usage: borrow, don't move", Run: borrowLength},
			{Name: "reference-counting", Title: "Reference counting keeps shared data alive", Run: referenceCounting},
			{Name: "container", Title: "Data outlives its creating function while a container owns it", Run: containerOwns},
		},
	}
}

func useAfterMove(_ context.Context, n *Narrator) error {
	scope := lifetime.NewScope("main")
	defer scope.End()

	data, err := scope.NewText("data", "Hello")
	if err != nil {
		return err
	}
	moved, err := data.MoveTo(scope, "moved")
	if err != nil {
		return err
	}

	_, err = data.Value()
	if err := expectFault(n, err, errors.KindUseAfterMove, "read data after move"); err != nil {
		return err
	}

	v, err := moved.Value()
	if err != nil {
		return err
	}
	n.Printf("%s", v)
	n.OK("Can't access data after ownership moves")
	return nil
}

func danglingReference(_ context.Context, n *Narrator) error {
	outer := lifetime.NewScope("main")
	defer outer.End()

	inner := outer.Child("block")
	value, err := inner.NewText("value", "temporary")
	if err != nil {
		return err
	}
	reference, err := value.Borrow()
	if err != nil {
		return err
	}
	v, err := reference.Read()
	if err != nil {
		return err
	}
	n.Printf("value exists: %s", v)

	if err := inner.End(); err != nil {
		return err
	}
	_, err = reference.Read()
	if err := expectFault(n, err, errors.KindDangling, "read reference after value dropped"); err != nil {
		return err
	}
	n.OK("A reference to dropped data is refused, never dereferenced")
	return nil
}

func exclusiveAccess(_ context.Context, n *Narrator) error {
	scope := lifetime.NewScope("main")
	defer scope.End()

	count, err := scope.NewText("count", "")
	if err != nil {
		return err
	}
	countRef, err := count.Borrow()
	if err != nil {
		return err
	}

	mutableRef, err := count.BorrowMut()
	if err != nil {
		return err
	}
	if err := mutableRef.PushStr("+"); err != nil {
		return err
	}

	_, err = count.Borrow()
	if err := expectFault(n, err, errors.KindBorrowConflict, "borrow count while &mut count is live"); err != nil {
		return err
	}
	if err := mutableRef.Release(); err != nil {
		return err
	}

	_, err = countRef.Read()
	if err := expectFault(n, err, errors.KindStaleBorrow, "read count_ref taken before &mut count"); err != nil {
		return err
	}

	n.Printf("count = %d", count.Len())
	n.OK("Mutable reference has exclusive access")
	return nil
}

func borrowLength(_ context.Context, n *Narrator) error {
	scope := lifetime.NewScope("main")
	defer scope.End()

	message, err := scope.NewText("message", "Hello, Go!")
	if err != nil {
		return err
	}
	span, err := message.Borrow()
	if err != nil {
		return err
	}
	length, err := lifetime.Process(span)
	if err != nil {
		return err
	}

	v, err := message.Value()
	if err != nil {
		return err
	}
	n.Printf("Message: %s", v)
	n.Printf("Length: %d", length)
	n.OK("Borrowing allows safe, temporary access")
	return nil
}

func referenceCounting(ctx context.Context, n *Narrator) error {
	cfg := optionsFrom(ctx).Memory
	cfg.GC, cfg.BoundsChecking = true, true
	mem, err := memory.New(cfg)
	if err != nil {
		return err
	}

	n.Printf("Creating object with 2 references")
	ref1, err := mem.Allocate(4)
	if err != nil {
		return err
	}
	if err := mem.WriteInt32(ref1, 42); err != nil {
		return err
	}
	mem.AddRef(ref1)
	ref2 := ref1

	v, err := mem.ReadInt32(ref2)
	if err != nil {
		return err
	}
	count, _ := mem.RefCount(ref1)
	n.Printf("ref1.value = %d, ref2.value = %d (refCount %d)", v, v, count)

	n.Printf("Delete ref1")
	if err := mem.Free(ref1); err != nil {
		return err
	}
	if v, err = mem.ReadInt32(ref2); err != nil {
		return err
	}
	n.Printf("ref2.value = %d", v)
	n.OK("Object still alive - ref2 keeps it in memory")

	n.Printf("Delete ref2 (last reference)")
	if err := mem.Free(ref2); err != nil {
		return err
	}
	n.Note("%s", mem.SnapshotMessage(mem.Current()))

	_, err = mem.ReadInt32(ref2)
	if err := expectFault(n, err, errors.KindBoundsViolation, "read collected object"); err != nil {
		return err
	}
	n.OK("Now the object is collected and its bytes are unreachable")
	return nil
}

// createContainer builds a value in its own scope and moves it into the
// caller's container before returning.
func createContainer(caller *lifetime.Scope) (*lifetime.OwnedText, error) {
	fn := caller.Child("create_container")
	data, err := fn.NewText("data_ref", "100")
	if err != nil {
		return nil, err
	}
	stored, err := data.MoveTo(caller, "stored")
	if err != nil {
		return nil, err
	}
	return stored, fn.End()
}

func containerOwns(_ context.Context, n *Narrator) error {
	scope := lifetime.NewScope("main")
	defer scope.End()

	stored, err := createContainer(scope)
	if err != nil {
		return err
	}
	v, err := stored.Value()
	if err != nil {
		return err
	}
	n.Printf("Accessing data after function returned: %s", v)
	n.OK("No use-after-free - the container owns the value")
	return nil
}
