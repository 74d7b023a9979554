package manifest

import (
	"errors"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"
)

func TestParseSkipsShortLines(t *testing.T) {
	in := "ALT_HOLD 5.0\n\nLONELY\n   \nSPEED_MAX\t12.5 trailing tokens\n"
	m, err := Parse(strings.NewReader(in))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if m.Len() != 2 {
		t.Fatalf("expected 2 entries, got %d: %v", m.Len(), m.Names())
	}
	e, ok := m.Get("SPEED_MAX")
	if !ok || e.Raw != "12.5" || e.Line != 5 {
		t.Fatalf("unexpected SPEED_MAX entry: %+v", e)
	}
	if _, ok := m.Get("LONELY"); ok {
		t.Fatalf("single-token line should be ignored")
	}
}

func TestParseLongLine(t *testing.T) {
	long := strings.Repeat("x", 70*1024)
	in := "ALT_HOLD 5.0\nNOTE " + long + "\n" + long + "\nSPEED_MAX 12.5"
	m, err := Parse(strings.NewReader(in))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if m.Len() != 3 {
		t.Fatalf("expected 3 entries, got %d", m.Len())
	}
	e, ok := m.Get("SPEED_MAX")
	if !ok || e.Raw != "12.5" || e.Line != 4 {
		t.Fatalf("unexpected SPEED_MAX entry: %+v", e)
	}
	if e, _ := m.Get("NOTE"); len(e.Raw) != len(long) {
		t.Fatalf("long value truncated to %d bytes", len(e.Raw))
	}
}

func TestParseLastValueWins(t *testing.T) {
	m, err := Parse(strings.NewReader("GAIN 1\nGAIN 2\nGAIN 3\n"))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	e, _ := m.Get("GAIN")
	if e.Raw != "3" {
		t.Fatalf("expected last value 3, got %s", e.Raw)
	}
}

func TestNamesSorted(t *testing.T) {
	m, _ := Parse(strings.NewReader("b 1\na 2\nc 3\n"))
	if got := m.Names(); !reflect.DeepEqual(got, []string{"a", "b", "c"}) {
		t.Fatalf("Names() = %v", got)
	}
}

func TestEntryFloat(t *testing.T) {
	m, _ := Parse(strings.NewReader("MODE auto\nRATE 2.5\n"))
	e, _ := m.Get("MODE")
	if _, err := e.Float(); !errors.Is(err, ErrNotNumeric) {
		t.Fatalf("expected ErrNotNumeric, got %v", err)
	}
	floats := m.Floats()
	if len(floats) != 1 || floats["RATE"] != 2.5 {
		t.Fatalf("Floats() = %v", floats)
	}
}

func TestEmptyManifest(t *testing.T) {
	m, err := Parse(strings.NewReader(""))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if m.Len() != 0 || len(m.Names()) != 0 {
		t.Fatalf("expected empty manifest")
	}
}

func TestLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "blessed.parm")
	if err := os.WriteFile(path, []byte("ALT_HOLD 5.0\n"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	m, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if m.Len() != 1 {
		t.Fatalf("expected one entry")
	}
	if _, err := Load(filepath.Join(t.TempDir(), "missing.parm")); err == nil {
		t.Fatalf("expected error for missing file")
	}
}
