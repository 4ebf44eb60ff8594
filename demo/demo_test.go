package demo

import (
	"bytes"
	"context"
	stderrors "errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wippyai/memsafe/errors"
	"github.com/wippyai/memsafe/linear"
	"github.com/wippyai/memsafe/memory"
)

func TestRun_All(t *testing.T) {
	var out bytes.Buffer
	require.NoError(t, Run(context.Background(), &out))

	text := out.String()
	for _, want := range []string{
		"The longest string is: long string",
		"✗ rejected (dangling)",
		"Buffer: [65 0 0 0 69]",
		"Copied 5 elements into dest",
		"dest: [1 2 3 4 5]",
		"Password length: 37",
		"✗ rejected (use_after_move)",
		"✗ rejected (stale_borrow)",
		"Length: 10",
		"ref2.value = 42",
		"Accessing data after function returned: 100",
		"is_admin after the attempt: 0",
		"✗ rejected (out_of_memory)",
		"(reused freed slot: true)",
	} {
		assert.Contains(t, text, want)
	}
	assert.NotContains(t, text, "\x1b[", "unstyled output must not carry escapes")
}

func TestRun_SectionOrder(t *testing.T) {
	assert.Equal(t, []string{"lifetimes", "overflow", "uaf", "linear", "session"}, Sections())

	var out bytes.Buffer
	require.NoError(t, Run(context.Background(), &out, "uaf", "lifetimes"))

	text := out.String()
	uaf := strings.Index(text, "Use after free")
	lifetimes := strings.Index(text, "Lifetimes")
	require.True(t, uaf >= 0 && lifetimes >= 0)
	assert.Less(t, uaf, lifetimes, "sections run in the order given")
	assert.NotContains(t, text, "Buffer overflow")
}

func TestRun_EachSection(t *testing.T) {
	for _, name := range Sections() {
		t.Run(name, func(t *testing.T) {
			var out bytes.Buffer
			require.NoError(t, Run(context.Background(), &out, name))
			assert.Contains(t, out.String(), "✓")
		})
	}
}

func TestRun_UnknownSection(t *testing.T) {
	err := Run(context.Background(), &bytes.Buffer{}, "nope")
	require.Error(t, err)
	assert.True(t, errors.IsKind(err, errors.KindNotFound))
}

func TestRun_Cancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := Run(ctx, &bytes.Buffer{})
	assert.ErrorIs(t, err, context.Canceled)
}

func TestRun_Options(t *testing.T) {
	ctx := WithOptions(context.Background(), Options{
		Linear: linear.Config{Pages: 1, MaxPages: 3},
		Memory: memory.Config{Size: 128, StackStart: 96},
	})

	var out bytes.Buffer
	require.NoError(t, Run(ctx, &out, "linear", "uaf"))
	assert.Contains(t, out.String(), "grew from 1 to 3 pages")
	assert.Contains(t, out.String(), "ref2.value = 42")
}

func TestRun_OptionsNoMaximum(t *testing.T) {
	ctx := WithOptions(context.Background(), Options{Linear: linear.Config{Pages: 1}})

	var out bytes.Buffer
	require.NoError(t, Run(ctx, &out, "linear"))
	assert.Contains(t, out.String(), "no maximum configured")
}

func TestOptionsFrom_Default(t *testing.T) {
	assert.Equal(t, DefaultOptions(), optionsFrom(context.Background()))
}

func TestExpectFault(t *testing.T) {
	n := NewNarrator(&bytes.Buffer{}, ColorNever)

	err := expectFault(n, nil, errors.KindDangling, "read")
	assert.ErrorIs(t, err, ErrUnsafeAllowed)

	wrong := errors.UseAfterMove("x")
	err = expectFault(n, wrong, errors.KindDangling, "read")
	require.Error(t, err)
	assert.False(t, stderrors.Is(err, ErrUnsafeAllowed))
	assert.True(t, errors.IsKind(err, errors.KindUseAfterMove))

	assert.NoError(t, expectFault(n, errors.Dangling("r", "x"), errors.KindDangling, "read"))
}

func TestRunWith_FailingExample(t *testing.T) {
	var out bytes.Buffer
	n := NewNarrator(&out, ColorNever)

	s := Section{Name: "broken", Title: "Broken", Examples: []Example{{
		Name:  "allowed",
		Title: "unsafe op goes through",
		Run: func(_ context.Context, n *Narrator) error {
			return expectFault(n, nil, errors.KindOutOfBounds, "write")
		},
	}}}

	n.Section(s.Title)
	err := s.Examples[0].Run(context.Background(), n)
	assert.ErrorIs(t, err, ErrUnsafeAllowed)
	assert.Contains(t, err.Error(), "out_of_bounds")
}

func TestParseColor(t *testing.T) {
	tests := []struct {
		in   string
		want Color
		ok   bool
	}{
		{"never", ColorNever, true},
		{"auto", ColorAuto, true},
		{"", ColorAuto, true},
		{"always", ColorAlways, true},
		{"rainbow", ColorNever, false},
	}
	for _, tt := range tests {
		got, err := ParseColor(tt.in)
		if tt.ok {
			require.NoError(t, err, tt.in)
			assert.Equal(t, tt.want, got, tt.in)
		} else {
			assert.True(t, errors.IsKind(err, errors.KindInvalidInput), tt.in)
		}
	}
}

func TestNarrator_Styled(t *testing.T) {
	var out bytes.Buffer
	n := NewNarrator(&out, ColorAlways)
	n.Section("Title")
	n.OK("fine")
	require.NoError(t, n.Err())
	assert.Contains(t, out.String(), "\x1b[")
	assert.Contains(t, out.String(), "✓ fine")
}

type failingWriter struct{}

func (failingWriter) Write([]byte) (int, error) {
	return 0, stderrors.New("disk full")
}

func TestNarrator_StickyError(t *testing.T) {
	n := NewNarrator(failingWriter{}, ColorNever)
	n.Printf("one")
	n.Printf("two")
	assert.EqualError(t, n.Err(), "disk full")
}
