package ui

import (
	"bytes"
	"strings"
	"testing"
)

func TestTable(t *testing.T) {
	var buf bytes.Buffer
	table := NewTable(&buf, []string{"Name", "Category", "Path"}, &TableOptions{NoColor: true})
	table.AddRow("Button", "atom", "/src/components/atoms/Button.tsx")
	table.AddRow("Card", "molecule")
	table.Render()

	lines := strings.Split(strings.TrimRight(buf.String(), "\n"), "\n")
	if len(lines) != 4 {
		t.Fatalf("expected header, rule and 2 rows, got %d lines:\n%s", len(lines), buf.String())
	}
	if lines[0] != "Name    Category  Path" {
		t.Errorf("unexpected header %q", lines[0])
	}
	if !strings.HasPrefix(lines[1], "──────  ────────  ─") {
		t.Errorf("unexpected rule %q", lines[1])
	}
	if lines[2] != "Button  atom      /src/components/atoms/Button.tsx" {
		t.Errorf("unexpected row %q", lines[2])
	}
	if lines[3] != "Card    molecule  " {
		t.Errorf("missing cells should render empty, got %q", lines[3])
	}
	if table.Len() != 2 {
		t.Errorf("expected 2 rows, got %d", table.Len())
	}
}

func TestTableEmptyHeaders(t *testing.T) {
	var buf bytes.Buffer
	table := NewTable(&buf, nil, nil)
	table.AddRow("ignored")
	table.Render()

	if buf.Len() != 0 {
		t.Errorf("expected no output, got %q", buf.String())
	}
}

func TestTableUnicodeWidth(t *testing.T) {
	var buf bytes.Buffer
	table := NewTable(&buf, []string{"Name", "X"}, &TableOptions{NoColor: true})
	table.AddRow("Ünïcode", "1")
	table.Render()

	lines := strings.Split(buf.String(), "\n")
	if lines[2] != "Ünïcode  1" {
		t.Errorf("expected rune-based padding, got %q", lines[2])
	}
}

func TestKeyValueTable(t *testing.T) {
	var buf bytes.Buffer
	kv := NewKeyValueTable(&buf, true)
	kv.AddRow("Name", "Button")
	kv.AddRow("Category", "atom")
	kv.Render()

	want := "Name:     Button\nCategory: atom\n"
	if buf.String() != want {
		t.Errorf("expected %q, got %q", want, buf.String())
	}
}

func TestListAndHeader(t *testing.T) {
	var buf bytes.Buffer
	Header(&buf, "Props", true)
	List(&buf, []string{"label: string", "size?: 'sm' | 'lg'"}, true)

	want := "Props\n─────\n• label: string\n• size?: 'sm' | 'lg'\n"
	if buf.String() != want {
		t.Errorf("expected %q, got %q", want, buf.String())
	}
}
