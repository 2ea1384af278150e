package preview

import (
	"context"
	"errors"
	"strings"
	"testing"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/datachat/datachat/internal/schema"
)

func testResult() *schema.Result {
	return &schema.Result{
		Tables: []schema.Table{
			{Name: "customers", Columns: []schema.Column{{Name: "id", Type: "INTEGER"}, {Name: "name", Type: "TEXT", Nullable: true}}},
			{Name: "orders", Columns: []schema.Column{{Name: "id", Type: "INTEGER"}, {Name: "total", Type: "REAL", Nullable: true}}},
			{Name: "order_items", Columns: []schema.Column{{Name: "order_id", Type: "INTEGER"}}},
		},
		TableRows: map[string][]schema.Record{
			"customers": {{"id": int64(1), "name": "ann"}, {"id": int64(2), "name": nil}},
			"orders":    {{"id": int64(10), "total": 9.5}},
		},
	}
}

func key(s string) tea.KeyMsg {
	switch s {
	case "enter":
		return tea.KeyMsg{Type: tea.KeyEnter}
	case "esc":
		return tea.KeyMsg{Type: tea.KeyEsc}
	case "down":
		return tea.KeyMsg{Type: tea.KeyDown}
	case "up":
		return tea.KeyMsg{Type: tea.KeyUp}
	case "right":
		return tea.KeyMsg{Type: tea.KeyRight}
	case "backspace":
		return tea.KeyMsg{Type: tea.KeyBackspace}
	}
	return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(s)}
}

func press(t *testing.T, m Model, keys ...string) Model {
	t.Helper()
	for _, k := range keys {
		next, _ := m.Update(key(k))
		m = next.(Model)
	}
	return m
}

func TestLoaded(t *testing.T) {
	m := Loaded("shop.db", testResult())
	if m.mode != modeList {
		t.Fatalf("mode = %d, want list", m.mode)
	}
	if len(m.entries) != 3 || len(m.visibleIdxs) != 3 {
		t.Errorf("entries = %d visible = %d", len(m.entries), len(m.visibleIdxs))
	}
	if m.totalRows() != 3 {
		t.Errorf("totalRows = %d, want 3", m.totalRows())
	}
	view := m.View()
	for _, want := range []string{"shop.db", "customers", "order_items", "3 tables, 3 sampled rows"} {
		if !strings.Contains(view, want) {
			t.Errorf("view missing %q", want)
		}
	}
}

func TestLoadCmd(t *testing.T) {
	called := false
	m := New("people.csv", func(context.Context) (*schema.Result, error) {
		called = true
		return &schema.Result{
			Table: &schema.Table{Name: "people", Columns: []schema.Column{{Name: "a", Type: "TEXT", Nullable: true}}},
			Rows:  []any{schema.Record{"a": "1"}},
		}, nil
	})
	if !strings.Contains(m.View(), "Inferring schema") {
		t.Error("loading view should show the spinner text")
	}
	if m.Init() == nil {
		t.Fatal("Init should start loading")
	}

	// Keys are ignored while loading.
	m = press(t, m, "enter")
	if m.mode != modeLoading {
		t.Fatal("mode changed while loading")
	}

	res, err := m.load(context.Background())
	next, _ := m.Update(loadedMsg{res: res, err: err})
	m = next.(Model)
	if !called || m.mode != modeList || len(m.entries) != 1 || len(m.entries[0].rows) != 1 {
		t.Errorf("after load: mode = %d entries = %+v", m.mode, m.entries)
	}
}

func TestLoadError(t *testing.T) {
	m := New("bad.json", nil)
	next, _ := m.Update(loadedMsg{err: errors.New("malformed input: bad.json")})
	m = next.(Model)
	if !strings.Contains(m.View(), "malformed input") {
		t.Errorf("view = %q", m.View())
	}
	// Enter on an empty list does nothing.
	m = press(t, m, "enter")
	if m.mode != modeList {
		t.Errorf("mode = %d, want list", m.mode)
	}
}

func TestCursor(t *testing.T) {
	m := Loaded("shop.db", testResult())
	m = press(t, m, "down", "down", "down")
	if m.cursor != 2 {
		t.Errorf("cursor = %d, want 2 (clamped)", m.cursor)
	}
	m = press(t, m, "up", "k", "k")
	if m.cursor != 0 {
		t.Errorf("cursor = %d, want 0", m.cursor)
	}
}

func TestFilter(t *testing.T) {
	m := Loaded("shop.db", testResult())
	m = press(t, m, "/", "o", "r", "d")
	if !m.filter.Focused() {
		t.Fatal("filter should be focused")
	}
	if len(m.visibleIdxs) != 2 {
		t.Errorf("visible = %d, want 2 (orders, order_items)", len(m.visibleIdxs))
	}

	// Enter keeps the filter; q is then a normal key again.
	m = press(t, m, "enter")
	if m.filter.Focused() || m.filter.Value() != "ord" {
		t.Errorf("focused = %v value = %q", m.filter.Focused(), m.filter.Value())
	}

	m = press(t, m, "/", "x", "y", "z")
	if len(m.visibleIdxs) != 0 || !strings.Contains(m.View(), "No tables match") {
		t.Errorf("visible = %d", len(m.visibleIdxs))
	}

	m = press(t, m, "esc")
	if m.filter.Value() != "" || len(m.visibleIdxs) != 3 {
		t.Errorf("esc should clear the filter: value = %q visible = %d", m.filter.Value(), len(m.visibleIdxs))
	}
}

func TestDetail(t *testing.T) {
	m := Loaded("shop.db", testResult())
	m = press(t, m, "enter")
	if m.mode != modeDetail || m.entries[m.current].table.Name != "customers" {
		t.Fatalf("mode = %d current = %d", m.mode, m.current)
	}
	view := m.View()
	for _, want := range []string{"INTEGER", "NOT NULL", "ann", "NULL", "Rows 1-2 of 2"} {
		if !strings.Contains(view, want) {
			t.Errorf("detail view missing %q", want)
		}
	}

	m = press(t, m, "down", "down", "down")
	if m.rowOffset != 1 {
		t.Errorf("rowOffset = %d, want 1", m.rowOffset)
	}
	m = press(t, m, "right", "right", "right")
	if m.colOffset != 1 {
		t.Errorf("colOffset = %d, want 1", m.colOffset)
	}

	m = press(t, m, "esc")
	if m.mode != modeList {
		t.Errorf("esc should return to the list")
	}
}

func TestDetail_FilteredSelection(t *testing.T) {
	m := Loaded("shop.db", testResult())
	m = press(t, m, "/", "i", "t", "e", "m", "enter", "enter")
	if m.mode != modeDetail || m.entries[m.current].table.Name != "order_items" {
		t.Fatalf("opened %q", m.entries[m.current].table.Name)
	}
	if !strings.Contains(m.View(), "No sample rows") {
		t.Error("empty table should say so")
	}
}

func TestQuit(t *testing.T) {
	m := Loaded("shop.db", testResult())
	_, cmd := m.Update(key("q"))
	if cmd == nil {
		t.Fatal("q should quit")
	}
	if _, ok := cmd().(tea.QuitMsg); !ok {
		t.Error("expected tea.QuitMsg")
	}
}

func TestFormatValue(t *testing.T) {
	tests := []struct {
		in   any
		want string
	}{
		{nil, "NULL"},
		{"a\nb", "a b"},
		{int64(42), "42"},
		{1.5, "1.5"},
		{true, "true"},
	}
	for _, tt := range tests {
		if got := FormatValue(tt.in); got != tt.want {
			t.Errorf("FormatValue(%v) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestTruncate(t *testing.T) {
	if got := truncate("customers", 20); got != "customers" {
		t.Errorf("got %q", got)
	}
	if got := truncate("customers", 5); got != "cust…" {
		t.Errorf("got %q", got)
	}
}
