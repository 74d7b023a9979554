// Package manifest loads the blessed parameter list a fleet is checked against.
package manifest

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"sort"
	"strconv"
	"strings"
)

// ErrNotNumeric is returned for manifest values that do not parse as a number.
var ErrNotNumeric = errors.New("expected value is not numeric")

// Entry is one expected parameter. Raw keeps the manifest token verbatim.
type Entry struct {
	Name string
	Raw  string
	Line int
}

// Float parses the expected value.
func (e Entry) Float() (float64, error) {
	v, err := strconv.ParseFloat(e.Raw, 64)
	if err != nil {
		return 0, fmt.Errorf("%s=%q: %w", e.Name, e.Raw, ErrNotNumeric)
	}
	return v, nil
}

// Manifest maps parameter names to their expected values.
type Manifest struct {
	entries map[string]Entry
}

// New returns an empty manifest.
func New() *Manifest {
	return &Manifest{entries: make(map[string]Entry)}
}

// Set adds or replaces an entry.
func (m *Manifest) Set(name, raw string) {
	m.entries[name] = Entry{Name: name, Raw: raw}
}

// Parse reads whitespace separated "name value" records. Lines with fewer than
// two tokens are skipped; extra tokens are ignored; a repeated name keeps the
// last value seen.
func Parse(r io.Reader) (*Manifest, error) {
	m := New()
	br := bufio.NewReader(r)
	line := 0
	for {
		text, err := br.ReadString('\n')
		if err != nil && !errors.Is(err, io.EOF) {
			return nil, fmt.Errorf("read manifest: %w", err)
		}
		if text != "" {
			line++
			if tokens := strings.Fields(text); len(tokens) >= 2 {
				m.entries[tokens[0]] = Entry{Name: tokens[0], Raw: tokens[1], Line: line}
			}
		}
		if err != nil {
			return m, nil
		}
	}
}

// Load opens and parses a manifest file.
func Load(path string) (*Manifest, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open manifest: %w", err)
	}
	defer f.Close()
	return Parse(f)
}

// Len returns the number of expected parameters.
func (m *Manifest) Len() int { return len(m.entries) }

// Get returns the entry for name.
func (m *Manifest) Get(name string) (Entry, bool) {
	e, ok := m.entries[name]
	return e, ok
}

// Names returns all parameter names in lexical order.
func (m *Manifest) Names() []string {
	names := make([]string, 0, len(m.entries))
	for n := range m.entries {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// Entries returns all entries in name order.
func (m *Manifest) Entries() []Entry {
	out := make([]Entry, 0, len(m.entries))
	for _, n := range m.Names() {
		out = append(out, m.entries[n])
	}
	return out
}

// Floats returns the numeric entries keyed by name. Unparsable entries are left out.
func (m *Manifest) Floats() map[string]float64 {
	out := make(map[string]float64, len(m.entries))
	for n, e := range m.entries {
		if v, err := e.Float(); err == nil {
			out[n] = v
		}
	}
	return out
}
