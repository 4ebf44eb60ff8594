package memory

import (
	"bytes"
	"fmt"

	"github.com/wippyai/memsafe/bounds"
	"github.com/wippyai/memsafe/errors"
)

// Scenario is a scripted sequence of memory operations whose snapshot
// history can be stepped through.
type Scenario struct {
	Build       func() (*Memory, error)
	Name        string
	Title       string
	Description string
	Code        string
}

// Scenarios returns every scenario in presentation order.
func Scenarios() []Scenario {
	return []Scenario{
		{
			Name:        "overflow",
			Title:       "Field overflow",
			Description: "A 20 byte password aimed at a 16 byte field is rejected before is_admin can change.",
			Code:        userStructCode,
			Build:       buildOverflow,
		},
		{
			Name:        "bounds",
			Title:       "Allocation bounds",
			Description: "With bounds checking on, every access must sit inside one allocation.",
			Code:        "char a[8]; char b[8];\nmemcpy(a, src, 12);",
			Build:       buildBounds,
		},
		{
			Name:        "dangling",
			Title:       "Freed and reused",
			Description: "A freed user slot is reused by the next allocation of the same size.",
			Code:        sessionStructCode,
			Build:       buildDangling,
		},
		{
			Name:        "refcount",
			Title:       "Reference counting",
			Description: "A block survives while any reference remains and is collected with the last.",
			Code:        "user = User()\nsession.user = user\ndel user\ndel session.user",
			Build:       buildRefcount,
		},
		{
			Name:        "stack",
			Title:       "Stack frames",
			Description: "Frames are carved downward from the top of memory and released in reverse.",
			Code:        "int main() {\n    int x = 42;\n    greet();\n}\n\nvoid greet() {\n    char name[8] = \"greet\";\n}",
			Build:       buildStack,
		},
	}
}

// ScenarioByName returns the scenario called name.
func ScenarioByName(name string) (Scenario, bool) {
	for _, s := range Scenarios() {
		if s.Name == name {
			return s, true
		}
	}
	return Scenario{}, false
}

const userStructCode = `typedef struct
{
    char username[16];
    char password[16];
    int is_admin;
} User;

User *user = malloc(sizeof(User));`

const sessionStructCode = `typedef struct
{
    int session_id;
    User *user;
} Session;

free(session->user);
User *evil = malloc(sizeof(User));`

func demoMemory(gc, checked bool) *Memory {
	return MustNew(Config{
		Size:           DemoSize,
		StackStart:     DemoStackStart,
		GC:             gc,
		BoundsChecking: checked,
	})
}

// expectFault turns a missing fault into an error and records a present one.
func expectFault(m *Memory, err error, kind errors.Kind, what string) error {
	if err == nil {
		return errors.New(errors.PhaseRuntime, kind).
			Subject(what).
			Detail("expected %s fault did not occur", kind).
			Build()
	}
	if !errors.IsKind(err, kind) {
		return errors.Wrap(errors.PhaseRuntime, kind, err, what)
	}
	m.Note(fmt.Sprintf("%s rejected: %s", what, errors.KindOf(err)))
	return nil
}

func buildOverflow() (*Memory, error) {
	m := demoMemory(false, false)

	user, err := m.Allocate(UserSize)
	if err != nil {
		return nil, err
	}
	if err := m.WriteString(user+UsernameOffset, "alice", UsernameSize); err != nil {
		return nil, err
	}
	if err := m.WriteInt32(user+IsAdminOffset, 0); err != nil {
		return nil, err
	}

	password := bounds.NewRegion(m, "password", user+PasswordOffset, PasswordSize)
	payload := append(bytes.Repeat([]byte{'A'}, PasswordSize+4), 1, 0, 0, 0)
	if err := expectFault(m, password.Write(payload), errors.KindOutOfBounds, "password write"); err != nil {
		return nil, err
	}
	if err := password.Write([]byte("hunter2")); err != nil {
		return nil, err
	}
	return m, nil
}

func buildBounds() (*Memory, error) {
	m := demoMemory(false, true)

	a, err := m.Allocate(8)
	if err != nil {
		return nil, err
	}
	if _, err := m.Allocate(8); err != nil {
		return nil, err
	}
	if err := m.WriteBytes(a, []byte("12345678"), ""); err != nil {
		return nil, err
	}
	if err := expectFault(m, m.WriteBytes(a, []byte("123456789012"), ""), errors.KindBoundsViolation, "12 byte write into a[8]"); err != nil {
		return nil, err
	}
	if err := expectFault(m, m.WriteCell(40, 0xFF), errors.KindBoundsViolation, "write to unallocated address 40"); err != nil {
		return nil, err
	}
	return m, nil
}

func buildDangling() (*Memory, error) {
	m := demoMemory(false, false)

	user, err := m.Allocate(UserSize)
	if err != nil {
		return nil, err
	}
	if err := m.WriteString(user+UsernameOffset, "alice", UsernameSize); err != nil {
		return nil, err
	}
	session, err := m.Allocate(SessionSize)
	if err != nil {
		return nil, err
	}
	if err := m.WriteInt32(session+SessionIDOffset, 1); err != nil {
		return nil, err
	}
	if err := m.WriteAddress(session+UserPointerOffset, user); err != nil {
		return nil, err
	}

	if err := m.Free(user); err != nil {
		return nil, err
	}
	m.Note(fmt.Sprintf("session 1 still names address %d", user))

	evil, err := m.Allocate(UserSize)
	if err != nil {
		return nil, err
	}
	if evil != user {
		return nil, errors.InvalidInput(errors.PhaseAlloc,
			fmt.Sprintf("expected slot %d to be reused, got %d", user, evil))
	}
	if err := m.WriteBytes(evil, bytes.Repeat([]byte{0x41}, UserSize), "fill reused slot with 0x41"); err != nil {
		return nil, err
	}
	m.Note("a generation-checked handle for session 1 now fails as dangling")
	return m, nil
}

func buildRefcount() (*Memory, error) {
	m := demoMemory(true, false)

	user, err := m.Allocate(UserSize)
	if err != nil {
		return nil, err
	}
	if err := m.WriteString(user+UsernameOffset, "alice", UsernameSize); err != nil {
		return nil, err
	}
	if !m.AddRef(user) {
		return nil, errors.InvalidInput(errors.PhaseAlloc, "addRef refused")
	}
	if err := m.Free(user); err != nil {
		return nil, err
	}
	if _, ok := m.Allocation(user); !ok {
		return nil, errors.UseAfterFree(errors.PhaseAlloc, "user")
	}
	if err := m.Free(user); err != nil {
		return nil, err
	}
	if _, ok := m.Allocation(user); ok {
		return nil, errors.InvalidInput(errors.PhaseAlloc, "last reference did not collect the block")
	}
	return m, nil
}

func buildStack() (*Memory, error) {
	m := demoMemory(false, false)

	x, err := m.AllocateStack(Int32Size)
	if err != nil {
		return nil, err
	}
	if err := m.WriteInt32(x, 42); err != nil {
		return nil, err
	}
	name, err := m.AllocateStack(8)
	if err != nil {
		return nil, err
	}
	if err := m.WriteString(name, "greet", 8); err != nil {
		return nil, err
	}
	if err := expectFault(m, allocErr(m.AllocateStack(FixedStringSize)), errors.KindStackOverflow, "third frame"); err != nil {
		return nil, err
	}
	if err := m.FreeStack(name); err != nil {
		return nil, err
	}
	if err := m.FreeStack(x); err != nil {
		return nil, err
	}
	return m, nil
}

func allocErr(_ uint32, err error) error {
	return err
}
