package demo

import (
	"context"
	"strings"

	"github.com/wippyai/memsafe/bounds"
	"github.com/wippyai/memsafe/errors"
	"github.com/wippyai/memsafe/lifetime"
	"github.com/wippyai/memsafe/memory"
)

func overflowSection() Section {
	return Section{
		Name:  "overflow",
		Title: "Buffer overflow: every index is checked",
		Examples: []Example{
			{Name: "fixed-array", Title: "Fixed-size arrays", Run: fixedArray},
			{Name: "growable-vector", Title: "Growable vector", Run: growableVector},
			{Name: "bounded-copy", Title: "Safe copying", Run: boundedCopy},
			{Name: "growable-string", Title: "Growable string", Run: growableString},
			{Name: "list-index", Title: "Lists", Run: listIndex},
			{Name: "password-field", Title: "Fixed password field next to is_admin", Run: passwordField},
			{Name: "independent-fields", Title: "Objects store fields separately", Run: independentFields},
		},
	}
}

func fixedArray(_ context.Context, n *Narrator) error {
	buffer := bounds.NewFixedBuffer("buffer", 5)
	if err := buffer.Set(0, 65); err != nil {
		return err
	}
	if err := buffer.Set(4, 69); err != nil {
		return err
	}
	n.Printf("Buffer: %v", buffer.Bytes())

	err := buffer.Set(10, 88)
	if err := expectFault(n, err, errors.KindOutOfBounds, "buffer[10] = 88"); err != nil {
		return err
	}
	n.Printf("Buffer: %v", buffer.Bytes())
	n.OK("Out of bounds writes are refused and nothing is written")
	return nil
}

func growableVector(_ context.Context, n *Narrator) error {
	data := []int{1, 2, 3}
	before := cap(data)
	data = append(data, 4, 5)
	n.Printf("Vec: %v (cap %d -> %d)", data, before, cap(data))
	n.OK("No overflow, the slice reallocates as needed")
	return nil
}

func boundedCopy(_ context.Context, n *Narrator) error {
	source := []int{1, 2, 3, 4, 5, 6, 7, 8}
	dest := make([]int, 5)

	err := bounds.CopyExact(dest, source)
	if err := expectFault(n, err, errors.KindLengthMismatch, "copy 8 elements into 5"); err != nil {
		return err
	}

	copied := bounds.CopyBounded(dest, source)
	n.Printf("Copied %d elements into dest", copied)
	n.Printf("dest: %v", dest)
	n.OK("Only what fits is copied; an exact copy of mismatched lengths is refused")
	return nil
}

func growableString(_ context.Context, n *Narrator) error {
	scope := lifetime.NewScope("main")
	defer scope.End()

	password, err := scope.NewText("password", "secret")
	if err != nil {
		return err
	}
	if err := password.PushStr("extralongstringthatwontoverflow"); err != nil {
		return err
	}
	n.Printf("Password length: %d (capacity %d)", password.Len(), password.Cap())
	n.OK("The string grows; there is no fixed buffer to overflow")
	return nil
}

func listIndex(_ context.Context, n *Narrator) error {
	numbers := bounds.NewFixedBuffer("numbers", 3)
	for i, v := range []byte{1, 2, 3} {
		if err := numbers.Set(i, v); err != nil {
			return err
		}
	}
	if err := numbers.Set(0, 99); err != nil {
		return err
	}
	n.Printf("Changed first element: %v", numbers.Bytes())

	_, err := numbers.Get(10)
	return expectFault(n, err, errors.KindOutOfBounds, "numbers[10]")
}

// passwordField replays the classic login overflow: a 24 byte password into
// a 16 byte field directly followed by is_admin.
func passwordField(_ context.Context, n *Narrator) error {
	mem, err := memory.New(memory.Config{Size: memory.DemoSize, StackStart: memory.DemoStackStart})
	if err != nil {
		return err
	}
	addr, err := mem.Allocate(memory.UserSize)
	if err != nil {
		return err
	}
	user := memory.UserView{Mem: mem, Base: addr}
	password := bounds.NewRegion(mem, "user.password", addr+memory.PasswordOffset, memory.PasswordSize)

	payload := []byte("secret0123456789\x01\x00\x00\x00")
	err = password.Write(payload)
	if err := expectFault(n, err, errors.KindOutOfBounds, "write 20 bytes into password[16]"); err != nil {
		return err
	}

	isAdmin, err := user.IsAdmin()
	if err != nil {
		return err
	}
	n.Printf("is_admin after the attempt: %d", isAdmin)
	if isAdmin != 0 {
		return errors.New(errors.PhaseBounds, errors.KindBoundsViolation).
			Subject("is_admin").
			Detail("overwritten by password write").
			Build()
	}

	written, err := password.WriteBounded(payload)
	if err != nil {
		return err
	}
	n.Printf("Bounded write kept %d of %d bytes", written, len(payload))
	n.OK("The field is a fixed window; adjacent fields are unreachable through it")
	return nil
}

type config struct {
	name string
	flag bool
}

func independentFields(_ context.Context, n *Narrator) error {
	c := config{name: strings.Repeat("A", 5)}
	n.Printf("Before: name=%q, flag=%t", c.name, c.flag)

	c.name = strings.Repeat("B", 1000)
	n.Printf("After:  name length=%d, flag=%t", len(c.name), c.flag)
	if c.flag {
		return errors.New(errors.PhaseBounds, errors.KindBoundsViolation).Subject("flag").Build()
	}
	n.OK("flag is untouched - the new name is a separate allocation")
	return nil
}
