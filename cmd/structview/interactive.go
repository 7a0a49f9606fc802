package main

import (
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/wippyai/structview"
	"github.com/wippyai/structview/schema"
)

var (
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#FAFAFA")).
			Background(lipgloss.Color("#7D56F4")).
			Padding(0, 1)

	indexStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#87CEEB"))

	selectedStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#FAFAFA")).
			Background(lipgloss.Color("#7D56F4"))

	detailStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#90EE90")).
			BorderStyle(lipgloss.NormalBorder()).
			BorderLeft(true).
			PaddingLeft(1)

	errorStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#FF6B6B"))

	helpStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#666666"))
)

const defaultPageRows = 10

func newBrowseCmd(o *options) *cobra.Command {
	return &cobra.Command{
		Use:   "browse",
		Short: "Page through records interactively",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if !term.IsTerminal(int(os.Stdout.Fd())) {
				return fmt.Errorf("browse needs a terminal; use dump for pipes")
			}
			t, err := o.open(cmd.Context())
			if err != nil {
				return err
			}
			defer t.close()

			source := o.dataPath
			if source == "" {
				source = o.wasmPath
			}
			p := tea.NewProgram(newBrowseModel(t, source), tea.WithAltScreen())
			_, err = p.Run()
			return err
		},
	}
}

type browseModel struct {
	table    *table
	source   string
	prompt   textinput.Model
	status   string
	top      int
	selected int
	rows     int
	jumping  bool
}

func newBrowseModel(t *table, source string) *browseModel {
	ti := textinput.New()
	ti.Prompt = "goto: "
	ti.Placeholder = "index"
	ti.CharLimit = 12
	ti.Width = 16
	return &browseModel{
		table:  t,
		source: source,
		prompt: ti,
		rows:   defaultPageRows,
	}
}

func (m *browseModel) Init() tea.Cmd {
	return nil
}

func (m *browseModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		// title, blank, detail block and help take roughly half the screen
		m.rows = max(msg.Height/2-2, 1)
		m.scroll()
		return m, nil

	case tea.KeyMsg:
		if m.jumping {
			return m.updatePrompt(msg)
		}
		last := m.table.view.Len() - 1
		switch msg.String() {
		case "ctrl+c", "q":
			return m, tea.Quit
		case "up", "k":
			m.move(m.selected - 1)
		case "down", "j":
			m.move(m.selected + 1)
		case "pgup", "b":
			m.move(m.selected - m.rows)
		case "pgdown", "f", " ":
			m.move(m.selected + m.rows)
		case "home", "g":
			m.move(0)
		case "end", "G":
			m.move(last)
		case ":":
			m.jumping = true
			m.status = ""
			m.prompt.SetValue("")
			return m, m.prompt.Focus()
		}
	}
	return m, nil
}

func (m *browseModel) updatePrompt(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "ctrl+c":
		return m, tea.Quit
	case "esc":
		m.closePrompt()
		return m, nil
	case "enter":
		raw := strings.TrimSpace(m.prompt.Value())
		m.closePrompt()
		i, err := strconv.Atoi(raw)
		if err != nil || !m.table.view.Contains(i) {
			m.status = fmt.Sprintf("no record %q (table has %d)", raw, m.table.view.Len())
			return m, nil
		}
		m.move(i)
		return m, nil
	}
	var cmd tea.Cmd
	m.prompt, cmd = m.prompt.Update(msg)
	return m, cmd
}

func (m *browseModel) closePrompt() {
	m.jumping = false
	m.prompt.Blur()
}

// move selects record i, clamped to the table, and scrolls it into view.
func (m *browseModel) move(i int) {
	m.selected = min(max(i, 0), max(m.table.view.Len()-1, 0))
	m.scroll()
}

func (m *browseModel) scroll() {
	if m.selected < m.top {
		m.top = m.selected
	}
	if m.selected >= m.top+m.rows {
		m.top = m.selected - m.rows + 1
	}
}

func (m *browseModel) View() string {
	v := m.table.view
	var b strings.Builder

	b.WriteString(titleStyle.Render("structview"))
	fmt.Fprintf(&b, " %s  %s  %d records × %d bytes\n\n", m.source, m.table.schema.Name, v.Len(), v.Stride())

	if v.Len() == 0 {
		b.WriteString("Table is empty.\n\n")
		b.WriteString(helpStyle.Render("q quit"))
		return b.String()
	}

	for i := m.top; i < m.top+m.rows && v.Contains(i); i++ {
		rec, _ := v.Get(i)
		line := fmt.Sprintf("%6d  %s", i, summarize(m.table.schema, rec))
		if i == m.selected {
			b.WriteString(selectedStyle.Render("> " + line))
		} else {
			b.WriteString(indexStyle.Render("  ") + line)
		}
		b.WriteString("\n")
	}

	b.WriteString("\n")
	if rec, ok := v.Get(m.selected); ok {
		if data, err := json.MarshalIndent(plain(rec), "", "  "); err == nil {
			b.WriteString(detailStyle.Render(string(data)))
		} else {
			b.WriteString(errorStyle.Render(err.Error()))
		}
		b.WriteString("\n\n")
	}

	if m.status != "" {
		b.WriteString(errorStyle.Render(m.status))
		b.WriteString("\n")
	}
	if m.jumping {
		b.WriteString(m.prompt.View())
		b.WriteString("\n")
		b.WriteString(helpStyle.Render("enter jump • esc cancel"))
	} else {
		b.WriteString(helpStyle.Render("↑/↓ move • pgup/pgdn page • g/G first/last • : goto • q quit"))
	}
	return b.String()
}

// summarize renders the top-level scalars of rec in field order.
func summarize(s *schema.Schema, rec structview.Record) string {
	parts := make([]string, 0, len(s.Fields))
	for _, f := range s.Fields {
		if f.Kind != schema.KindScalar {
			continue
		}
		parts = append(parts, fmt.Sprintf("%s=%v", f.Name, rec[f.Name]))
	}
	return strings.Join(parts, " ")
}
