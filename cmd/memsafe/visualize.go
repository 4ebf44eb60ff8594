package main

import (
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"

	"github.com/wippyai/memsafe/errors"
	"github.com/wippyai/memsafe/memory"
)

var (
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#FAFAFA")).
			Background(lipgloss.Color("#7D56F4")).
			Padding(0, 1)

	allocStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#98FB98"))

	pointerStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#87CEEB")).
			Underline(true)

	changedStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#1A1A1A")).
			Background(lipgloss.Color("#FFD866"))

	freeStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#666666"))

	errorStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#FF6B6B"))

	helpStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#666666"))
)

const bytesPerRow = 16

type keyMap struct {
	Prev   key.Binding
	Next   key.Binding
	First  key.Binding
	Last   key.Binding
	Switch key.Binding
	Jump   key.Binding
	Help   key.Binding
	Quit   key.Binding
}

func (k keyMap) ShortHelp() []key.Binding {
	return []key.Binding{k.Prev, k.Next, k.Switch, k.Help, k.Quit}
}

func (k keyMap) FullHelp() [][]key.Binding {
	return [][]key.Binding{
		{k.Prev, k.Next, k.First, k.Last},
		{k.Switch, k.Jump, k.Help, k.Quit},
	}
}

var keys = keyMap{
	Prev:   key.NewBinding(key.WithKeys("left", "h"), key.WithHelp("←/h", "previous")),
	Next:   key.NewBinding(key.WithKeys("right", "l"), key.WithHelp("→/l", "next")),
	First:  key.NewBinding(key.WithKeys("home", "g"), key.WithHelp("home/g", "first")),
	Last:   key.NewBinding(key.WithKeys("end", "G"), key.WithHelp("end/G", "last")),
	Switch: key.NewBinding(key.WithKeys("tab"), key.WithHelp("tab", "next scenario")),
	Jump:   key.NewBinding(key.WithKeys(":"), key.WithHelp(":", "go to snapshot")),
	Help:   key.NewBinding(key.WithKeys("?"), key.WithHelp("?", "more keys")),
	Quit:   key.NewBinding(key.WithKeys("q", "ctrl+c"), key.WithHelp("q", "quit")),
}

type visualizeModel struct {
	err       error
	status    string
	mem       *memory.Memory
	scenarios []memory.Scenario
	help      help.Model
	jump      textinput.Model
	keys      keyMap
	selected  int
	jumping   bool
}

func newVisualizeModel(scenarios []memory.Scenario, selected int) *visualizeModel {
	ti := textinput.New()
	ti.Prompt = "snapshot: "
	ti.CharLimit = 4
	ti.Width = 6

	m := &visualizeModel{
		scenarios: scenarios,
		selected:  selected,
		help:      help.New(),
		jump:      ti,
		keys:      keys,
	}
	m.load()
	return m
}

// load builds the selected scenario and rewinds to its first snapshot.
func (m *visualizeModel) load() {
	m.status = ""
	m.mem, m.err = m.scenarios[m.selected].Build()
	if m.err == nil {
		m.err = m.mem.GoTo(0)
	}
}

func (m *visualizeModel) Init() tea.Cmd {
	return nil
}

func (m *visualizeModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.help.Width = msg.Width
		return m, nil

	case tea.KeyMsg:
		if m.jumping {
			return m.updateJump(msg)
		}

		switch {
		case key.Matches(msg, m.keys.Quit):
			return m, tea.Quit
		case key.Matches(msg, m.keys.Switch):
			m.selected = (m.selected + 1) % len(m.scenarios)
			m.load()
		case key.Matches(msg, m.keys.Help):
			m.help.ShowAll = !m.help.ShowAll
		}
		if m.mem == nil {
			return m, nil
		}

		switch {
		case key.Matches(msg, m.keys.Prev):
			m.mem.Previous()
		case key.Matches(msg, m.keys.Next):
			m.mem.Next()
		case key.Matches(msg, m.keys.First):
			_ = m.mem.GoTo(0)
		case key.Matches(msg, m.keys.Last):
			_ = m.mem.GoTo(m.mem.SnapshotCount() - 1)
		case key.Matches(msg, m.keys.Jump):
			m.jumping = true
			m.jump.Reset()
			return m, m.jump.Focus()
		}
	}
	return m, nil
}

func (m *visualizeModel) updateJump(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.Type {
	case tea.KeyEnter:
		m.jumping = false
		m.jump.Blur()
		i, err := strconv.Atoi(strings.TrimSpace(m.jump.Value()))
		if err != nil {
			m.status = fmt.Sprintf("not a snapshot number: %q", m.jump.Value())
			return m, nil
		}
		if err := m.mem.GoTo(i); err != nil {
			m.status = err.Error()
			return m, nil
		}
		m.status = ""
		return m, nil

	case tea.KeyEsc:
		m.jumping = false
		m.jump.Blur()
		return m, nil
	}

	var cmd tea.Cmd
	m.jump, cmd = m.jump.Update(msg)
	return m, cmd
}

func (m *visualizeModel) View() string {
	s := m.scenarios[m.selected]

	var b strings.Builder
	b.WriteString(titleStyle.Render("Memory Visualizer"))
	b.WriteString(" ")
	b.WriteString(s.Title)
	b.WriteString("\n\n")

	if m.err != nil {
		b.WriteString(errorStyle.Render(fmt.Sprintf("Error: %v", m.err)))
		b.WriteString("\n\n")
		b.WriteString(m.help.View(m.keys))
		return b.String()
	}

	b.WriteString(helpStyle.Render(s.Description))
	b.WriteString("\n\n")
	b.WriteString(renderSnapshot(m.mem, true))

	if m.jumping {
		b.WriteString("\n")
		b.WriteString(m.jump.View())
	}
	if m.status != "" {
		b.WriteString("\n")
		b.WriteString(errorStyle.Render(m.status))
	}
	b.WriteString("\n\n")
	b.WriteString(m.help.View(m.keys))
	return b.String()
}

func paint(styled bool, st lipgloss.Style, s string) string {
	if !styled {
		return s
	}
	return st.Render(s)
}

// renderSnapshot renders the snapshot mem currently reflects: message,
// hex grid, allocation table, usage and changes since the previous snapshot.
func renderSnapshot(mem *memory.Memory, styled bool) string {
	cur := mem.Current()

	changed := map[uint32]memory.Diff{}
	if cur > 0 {
		diffs, _ := mem.Diff(cur-1, cur)
		for _, d := range diffs {
			changed[d.Address] = d
		}
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Snapshot %d/%d: %s\n\n", cur, mem.SnapshotCount()-1, mem.SnapshotMessage(cur))

	cells := mem.Bytes()
	mask := mem.Mask()
	stackStart := mem.StackStart()
	for row := 0; row < len(cells); row += bytesPerRow {
		addr := uint32(row)
		switch {
		case row == 0:
			b.WriteString(paint(styled, helpStyle, "── heap ──") + "\n")
		case addr == stackStart:
			b.WriteString(paint(styled, helpStyle, "── stack ──") + "\n")
		}
		b.WriteString(memory.FormatHex(uint64(addr)))
		b.WriteString(" │")
		for i := row; i < row+bytesPerRow && i < len(cells); i++ {
			if uint32(i) == stackStart && i != row {
				b.WriteString(" ┆")
			}
			cell := fmt.Sprintf("%02x", cells[i].Value)
			st := freeStyle
			switch {
			case hasDiff(changed, uint32(i)):
				st = changedStyle
			case cells[i].Pointer:
				st = pointerStyle
			case mask[i]:
				st = allocStyle
			}
			if !styled && mask[i] {
				cell = strings.ToUpper(cell)
			}
			b.WriteString(" ")
			b.WriteString(paint(styled, st, cell))
		}
		b.WriteString("\n")
	}

	b.WriteString("\nAllocations:\n")
	allocs := mem.SnapshotAllocations(cur)
	if len(allocs) == 0 {
		b.WriteString("  (none)\n")
	}
	for _, a := range allocs {
		span := memory.AddressRange(a.Address, 0, a.Size, false)
		if a.Region == memory.RegionStack {
			span = memory.AddressRange(a.End()-1, 0, a.Size, true)
		}
		fmt.Fprintf(&b, "  %-5s %-10s size %-3d refs %d\n", a.Region, span, a.Size, a.RefCount)
	}

	st := mem.Stats()
	fmt.Fprintf(&b, "\nStack %d/%d used, heap %d/%d used, sp=%d\n",
		st.UsedStack, st.StackSize, st.UsedHeap, st.HeapSize, st.StackPointer)

	if len(changed) > 0 {
		b.WriteString("\nChanged:\n")
		n := 0
		for addr := uint32(0); addr < uint32(len(cells)) && n < 8; addr++ {
			d, ok := changed[addr]
			if !ok {
				continue
			}
			fmt.Fprintf(&b, "  %s: %s → %s\n", memory.FormatHex(uint64(addr)),
				memory.FormatHex(uint64(d.Old)), memory.FormatHex(uint64(d.New)))
			n++
		}
		if len(changed) > n {
			fmt.Fprintf(&b, "  … %d more\n", len(changed)-n)
		}
	}
	return b.String()
}

func hasDiff(changed map[uint32]memory.Diff, addr uint32) bool {
	_, ok := changed[addr]
	return ok
}

// dumpScenario writes every snapshot of s without styling.
func dumpScenario(w io.Writer, s memory.Scenario) error {
	mem, err := s.Build()
	if err != nil {
		return err
	}
	fmt.Fprintf(w, "%s\n%s\n", s.Title, s.Description)
	for i := 0; i < mem.SnapshotCount(); i++ {
		if err := mem.GoTo(i); err != nil {
			return err
		}
		fmt.Fprintf(w, "\n%s", renderSnapshot(mem, false))
	}
	return nil
}

func (a *app) visualizeCmd() *cobra.Command {
	var dump bool

	cmd := &cobra.Command{
		Use:   "visualize [scenario]",
		Short: "Step through the memory history of a scenario",
		Long: `Step through the snapshot history of a simulated memory scenario.

Scenarios: overflow, bounds, dangling, refcount, stack.
With --dump every snapshot is printed instead of starting the interactive view.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			scenarios := memory.Scenarios()
			selected := 0
			if len(args) == 1 {
				selected = -1
				for i, s := range scenarios {
					if s.Name == args[0] {
						selected = i
					}
				}
				if selected < 0 {
					return errors.NotFound(errors.PhaseRuntime, "scenario", args[0])
				}
			}

			if dump {
				return dumpScenario(cmd.OutOrStdout(), scenarios[selected])
			}

			p := tea.NewProgram(newVisualizeModel(scenarios, selected),
				tea.WithAltScreen(),
				tea.WithContext(cmd.Context()),
			)
			_, err := p.Run()
			return err
		},
	}

	cmd.Flags().BoolVar(&dump, "dump", false, "Print every snapshot and exit")
	return cmd
}
