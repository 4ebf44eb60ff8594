package demo

import (
	"context"

	"github.com/wippyai/memsafe/bounds"
	"github.com/wippyai/memsafe/errors"
	"github.com/wippyai/memsafe/linear"
)

func linearSection() Section {
	return Section{
		Name:  "linear",
		Title: "WebAssembly linear memory: the runtime checks every access",
		Examples: []Example{
			{Name: "in-bounds", Title: "Reads and writes inside the memory", Run: linearInBounds},
			{Name: "out-of-bounds", Title: "Access past the last page", Run: linearOutOfBounds},
			{Name: "grow", Title: "Growing up to the declared maximum", Run: linearGrow},
			{Name: "region", Title: "A password field inside linear memory", Run: linearRegion},
		},
	}
}

func withLinear(ctx context.Context, fn func(*linear.Memory) error) error {
	mem, err := linear.New(ctx, optionsFrom(ctx).Linear)
	if err != nil {
		return err
	}
	defer mem.Close(ctx)
	return fn(mem)
}

func linearInBounds(ctx context.Context, n *Narrator) error {
	return withLinear(ctx, func(mem *linear.Memory) error {
		if err := mem.WriteU32(0, 0xC0FFEE); err != nil {
			return err
		}
		v, err := mem.ReadU32(0)
		if err != nil {
			return err
		}
		n.Printf("memory[0..4] = 0x%X (size %d bytes, %d page)", v, mem.Size(), mem.Pages())
		n.OK("In-bounds access behaves like a plain byte array")
		return nil
	})
}

func linearOutOfBounds(ctx context.Context, n *Narrator) error {
	return withLinear(ctx, func(mem *linear.Memory) error {
		last := mem.Size() - 2
		err := mem.Write(last, []byte{1, 2, 3, 4})
		if err := expectFault(n, err, errors.KindOutOfBounds, "write 4 bytes at size-2"); err != nil {
			return err
		}
		tail, err := mem.Read(last, 2)
		if err != nil {
			return err
		}
		n.Printf("last two bytes after the attempt: %v", tail)

		_, err = mem.ReadU64(mem.Size())
		if err := expectFault(n, err, errors.KindOutOfBounds, "read at size"); err != nil {
			return err
		}
		n.OK("A straddling write is refused whole; nothing lands in the last page")
		return nil
	})
}

func linearGrow(ctx context.Context, n *Narrator) error {
	return withLinear(ctx, func(mem *linear.Memory) error {
		limit := optionsFrom(ctx).Linear.MaxPages
		if limit == 0 {
			n.Note("no maximum configured; growth is bounded only by the runtime")
			return nil
		}
		if room := limit - mem.Pages(); room > 0 {
			edge := mem.Size()
			prev, err := mem.Grow(room)
			if err != nil {
				return err
			}
			n.Printf("grew from %d to %d pages", prev, mem.Pages())
			if err := mem.WriteU32(edge, 7); err != nil {
				return err
			}
			n.Printf("offset %d is writable after growing", edge)
		}

		_, err := mem.Grow(1)
		if err := expectFault(n, err, errors.KindOutOfMemory, "grow past max pages"); err != nil {
			return err
		}
		n.OK("Growth stops at the declared maximum")
		return nil
	})
}

func linearRegion(ctx context.Context, n *Narrator) error {
	return withLinear(ctx, func(mem *linear.Memory) error {
		const base = 1024
		password := bounds.NewRegion(mem, "user.password", base, 16)
		if err := mem.WriteU32(base+16, 0); err != nil {
			return err
		}

		err := password.Write([]byte("secret0123456789876543210"))
		if err := expectFault(n, err, errors.KindOutOfBounds, "write 25 bytes into password[16]"); err != nil {
			return err
		}
		isAdmin, err := mem.ReadU32(base + 16)
		if err != nil {
			return err
		}
		n.Printf("is_admin after the attempt: %d", isAdmin)
		n.OK("The field check runs before the runtime check is ever needed")
		return nil
	})
}
