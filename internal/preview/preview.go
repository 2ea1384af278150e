// Package preview is an interactive terminal browser for the tables, columns
// and sample rows inferred from an upload.
package preview

import (
	"context"
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/datachat/datachat/internal/schema"
)

// LoadFunc runs inference for the previewed file.
type LoadFunc func(ctx context.Context) (*schema.Result, error)

type mode int

const (
	modeLoading mode = iota
	modeList
	modeDetail
)

const cellWidth = 16

type tableEntry struct {
	table schema.Table
	rows  []schema.Record
}

// Model is the bubbletea model for the preview.
type Model struct {
	name string
	load LoadFunc

	mode    mode
	spinner spinner.Model
	filter  textinput.Model
	err     error

	entries     []tableEntry
	visibleIdxs []int
	cursor      int

	// detail view
	current   int
	rowOffset int
	colOffset int

	width  int
	height int
}

type loadedMsg struct {
	res *schema.Result
	err error
}

// New creates a preview of the named file. load runs when the program
// starts.
func New(name string, load LoadFunc) Model {
	s := spinner.New()
	s.Spinner = spinner.Dot
	s.Style = lipgloss.NewStyle().Foreground(lipgloss.Color("205"))

	f := textinput.New()
	f.Prompt = "Filter: "
	f.Placeholder = "table name"
	f.CharLimit = 128

	return Model{
		name:    name,
		load:    load,
		mode:    modeLoading,
		spinner: s,
		filter:  f,
		width:   100,
		height:  24,
	}
}

// Loaded creates a preview of an already inferred result.
func Loaded(name string, res *schema.Result) Model {
	m := New(name, nil)
	m.setResult(res)
	return m
}

func (m Model) Init() tea.Cmd {
	if m.mode != modeLoading || m.load == nil {
		return nil
	}
	load := m.load
	return tea.Batch(m.spinner.Tick, func() tea.Msg {
		res, err := load(context.Background())
		return loadedMsg{res: res, err: err}
	})
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		return m, nil

	case loadedMsg:
		if msg.err != nil {
			m.err = msg.err
			m.mode = modeList
			return m, nil
		}
		m.setResult(msg.res)
		return m, nil

	case spinner.TickMsg:
		if m.mode == modeLoading {
			var cmd tea.Cmd
			m.spinner, cmd = m.spinner.Update(msg)
			return m, cmd
		}
		return m, nil

	case tea.KeyMsg:
		if msg.String() == "ctrl+c" {
			return m, tea.Quit
		}
		switch {
		case m.mode == modeLoading:
			return m, nil
		case m.filter.Focused():
			return m.updateFilter(msg)
		case m.mode == modeDetail:
			return m.updateDetail(msg)
		default:
			return m.updateList(msg)
		}
	}
	return m, nil
}

func (m Model) updateList(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "q", "esc":
		return m, tea.Quit

	case "up", "k":
		m.moveCursor(-1)

	case "down", "j":
		m.moveCursor(1)

	case "home":
		m.cursor = 0

	case "end":
		m.cursor = max(0, len(m.visibleIdxs)-1)

	case "/":
		cmd := m.filter.Focus()
		return m, cmd

	case "enter":
		if len(m.visibleIdxs) == 0 {
			return m, nil
		}
		m.current = m.visibleIdxs[m.cursor]
		m.rowOffset = 0
		m.colOffset = 0
		m.mode = modeDetail
	}
	return m, nil
}

func (m Model) updateFilter(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "esc":
		m.filter.Blur()
		m.filter.SetValue("")
		m.applyFilter()
		return m, nil

	case "enter":
		m.filter.Blur()
		return m, nil
	}

	var cmd tea.Cmd
	m.filter, cmd = m.filter.Update(msg)
	m.applyFilter()
	return m, cmd
}

func (m Model) updateDetail(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	e := m.entries[m.current]
	switch msg.String() {
	case "q":
		return m, tea.Quit

	case "esc", "backspace":
		m.mode = modeList

	case "up", "k":
		m.rowOffset = max(0, m.rowOffset-1)

	case "down", "j":
		if m.rowOffset < len(e.rows)-1 {
			m.rowOffset++
		}

	case "pgdown", " ":
		m.rowOffset = min(max(0, len(e.rows)-1), m.rowOffset+m.pageSize())

	case "pgup":
		m.rowOffset = max(0, m.rowOffset-m.pageSize())

	case "left", "h":
		m.colOffset = max(0, m.colOffset-1)

	case "right", "l":
		if m.colOffset < len(e.table.Columns)-1 {
			m.colOffset++
		}
	}
	return m, nil
}

func (m Model) View() string {
	var b strings.Builder
	b.WriteString(titleStyle.Render("Preview: "+m.name) + "\n\n")

	switch {
	case m.mode == modeLoading:
		b.WriteString(fmt.Sprintf("  %s Inferring schema...\n", m.spinner.View()))
	case m.err != nil:
		b.WriteString(errStyle.Render("  "+m.err.Error()) + "\n\n")
		b.WriteString(dimStyle.Render("  q quit") + "\n")
	case m.mode == modeDetail:
		m.viewDetail(&b)
	default:
		m.viewList(&b)
	}
	return b.String()
}

func (m Model) viewList(b *strings.Builder) {
	if m.filter.Focused() || m.filter.Value() != "" {
		b.WriteString("  " + m.filter.View() + "\n\n")
	}

	header := fmt.Sprintf("  %-32s %8s %8s", "Table", "Columns", "Rows")
	b.WriteString(dimStyle.Render(header) + "\n")
	b.WriteString(dimStyle.Render("  "+strings.Repeat("─", min(m.width-4, 50))) + "\n")

	if len(m.visibleIdxs) == 0 {
		b.WriteString(dimStyle.Render("  No tables match the filter") + "\n")
	}

	listHeight := max(5, m.height-10)
	start := 0
	if m.cursor >= listHeight {
		start = m.cursor - listHeight + 1
	}
	end := min(start+listHeight, len(m.visibleIdxs))

	for vi := start; vi < end; vi++ {
		e := m.entries[m.visibleIdxs[vi]]
		cursor := "  "
		nameStyle := lipgloss.NewStyle()
		if vi == m.cursor {
			cursor = highlightStyle.Render("> ")
			nameStyle = nameStyle.Bold(true)
		}
		fmt.Fprintf(b, "%s%s %8d %8d\n", cursor,
			nameStyle.Render(fmt.Sprintf("%-32s", truncate(e.table.Name, 32))),
			len(e.table.Columns), len(e.rows))
	}

	b.WriteString("\n" + summaryStyle.Render(fmt.Sprintf("  %d tables, %d sampled rows", len(m.entries), m.totalRows())) + "\n")
	b.WriteString(dimStyle.Render("  ↑/↓ move • enter open • / filter • q quit") + "\n")
}

func (m Model) viewDetail(b *strings.Builder) {
	e := m.entries[m.current]
	b.WriteString(highlightStyle.Render("  "+e.table.Name) + "\n\n")

	for _, c := range e.table.Columns {
		null := "NOT NULL"
		if c.Nullable {
			null = "NULL"
		}
		fmt.Fprintf(b, "  %-28s %-16s %s\n", truncate(c.Name, 28), truncate(c.Type, 16), dimStyle.Render(null))
	}
	b.WriteString("\n")

	cols := m.visibleColumns(e)
	if len(e.rows) == 0 || len(cols) == 0 {
		b.WriteString(dimStyle.Render("  No sample rows") + "\n")
	} else {
		var hdr strings.Builder
		for _, c := range cols {
			fmt.Fprintf(&hdr, " %-*s", cellWidth, truncate(c.Name, cellWidth))
		}
		b.WriteString(dimStyle.Render(" "+hdr.String()) + "\n")

		end := min(m.rowOffset+m.pageSize(), len(e.rows))
		for _, row := range e.rows[m.rowOffset:end] {
			b.WriteString(" ")
			for _, c := range cols {
				fmt.Fprintf(b, " %-*s", cellWidth, truncate(FormatValue(row[c.Name]), cellWidth))
			}
			b.WriteString("\n")
		}
		b.WriteString(dimStyle.Render(fmt.Sprintf("\n  Rows %d-%d of %d • columns %d-%d of %d",
			m.rowOffset+1, end, len(e.rows),
			m.colOffset+1, m.colOffset+len(cols), len(e.table.Columns))) + "\n")
	}

	b.WriteString(dimStyle.Render("  ↑/↓ scroll • ←/→ columns • esc back • q quit") + "\n")
}

// FormatValue renders a sampled value for display.
func FormatValue(v any) string {
	switch v := v.(type) {
	case nil:
		return "NULL"
	case string:
		return strings.NewReplacer("\n", " ", "\t", " ").Replace(v)
	default:
		return fmt.Sprint(v)
	}
}

func (m *Model) setResult(res *schema.Result) {
	tables := res.AllTables()
	m.entries = make([]tableEntry, len(tables))
	for i, t := range tables {
		m.entries[i] = tableEntry{table: t, rows: res.SampleFor(t.Name)}
	}
	m.mode = modeList
	m.cursor = 0
	m.applyFilter()
}

func (m *Model) moveCursor(delta int) {
	if len(m.visibleIdxs) == 0 {
		return
	}
	m.cursor = min(max(0, m.cursor+delta), len(m.visibleIdxs)-1)
}

func (m *Model) applyFilter() {
	lower := strings.ToLower(m.filter.Value())
	m.visibleIdxs = m.visibleIdxs[:0]
	for i, e := range m.entries {
		if lower == "" || strings.Contains(strings.ToLower(e.table.Name), lower) {
			m.visibleIdxs = append(m.visibleIdxs, i)
		}
	}
	if m.cursor >= len(m.visibleIdxs) {
		m.cursor = max(0, len(m.visibleIdxs)-1)
	}
}

func (m Model) visibleColumns(e tableEntry) []schema.Column {
	if m.colOffset >= len(e.table.Columns) {
		return nil
	}
	n := max(1, (m.width-2)/(cellWidth+1))
	return e.table.Columns[m.colOffset:min(len(e.table.Columns), m.colOffset+n)]
}

func (m Model) pageSize() int {
	return max(3, m.height-len(m.entries[m.current].table.Columns)-12)
}

func (m Model) totalRows() int {
	n := 0
	for _, e := range m.entries {
		n += len(e.rows)
	}
	return n
}

func truncate(s string, maxLen int) string {
	r := []rune(s)
	if len(r) <= maxLen {
		return s
	}
	return string(r[:maxLen-1]) + "…"
}

var (
	titleStyle     = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("99")).BorderStyle(lipgloss.DoubleBorder()).BorderBottom(true).Padding(0, 1)
	highlightStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("205"))
	dimStyle       = lipgloss.NewStyle().Foreground(lipgloss.Color("241"))
	errStyle       = lipgloss.NewStyle().Foreground(lipgloss.Color("196"))
	summaryStyle   = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("99"))
)
