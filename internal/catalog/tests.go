package catalog

import (
	"fmt"
	"strings"

	"rfpquote/internal"
)

// TestTable keeps test/certification prices in their configured order, which
// decides the winner of fuzzy lookups.
type TestTable struct {
	entries []internal.TestPriceEntry
	byName  map[string]int
}

func NewTestTable(entries []internal.TestPriceEntry) (*TestTable, error) {
	t := &TestTable{
		entries: make([]internal.TestPriceEntry, 0, len(entries)),
		byName:  make(map[string]int, len(entries)),
	}
	for _, e := range entries {
		if strings.TrimSpace(e.Name) == "" {
			return nil, fmt.Errorf("%w: test entry with empty name", ErrInvalidReference)
		}
		if _, ok := t.byName[e.Name]; ok {
			return nil, fmt.Errorf("%w: duplicate test %q", ErrInvalidReference, e.Name)
		}
		if e.Price.IsNegative() {
			return nil, fmt.Errorf("%w: test %q has negative price", ErrInvalidReference, e.Name)
		}
		t.byName[e.Name] = len(t.entries)
		t.entries = append(t.entries, e)
	}
	return t, nil
}

func (t *TestTable) Len() int { return len(t.entries) }

func (t *TestTable) Entries() []internal.TestPriceEntry {
	return append([]internal.TestPriceEntry(nil), t.entries...)
}

// Exact looks a test up by its exact name.
func (t *TestTable) Exact(name string) (internal.TestPriceEntry, bool) {
	pos, ok := t.byName[name]
	if !ok {
		return internal.TestPriceEntry{}, false
	}
	return t.entries[pos], true
}

// Lookup tries the exact name first, then the first entry (in table order) whose
// name contains the query or is contained in it, ignoring case.
func (t *TestTable) Lookup(name string) (internal.TestPriceEntry, bool) {
	if e, ok := t.Exact(name); ok {
		return e, true
	}
	q := strings.ToLower(strings.TrimSpace(name))
	if q == "" {
		return internal.TestPriceEntry{}, false
	}
	for _, e := range t.entries {
		n := strings.ToLower(e.Name)
		if strings.Contains(n, q) || strings.Contains(q, n) {
			return e, true
		}
	}
	return internal.TestPriceEntry{}, false
}

// Recommend maps free-text testing requirements onto table test names. Every table
// test related to a requirement by substring (either way, ignoring case) is kept once,
// in the order first seen.
func (t *TestTable) Recommend(requirements []string) []string {
	out := []string{}
	seen := map[string]struct{}{}
	for _, req := range requirements {
		r := strings.ToLower(strings.TrimSpace(req))
		if r == "" {
			continue
		}
		for _, e := range t.entries {
			n := strings.ToLower(e.Name)
			if !strings.Contains(n, r) && !strings.Contains(r, n) {
				continue
			}
			if _, ok := seen[e.Name]; ok {
				continue
			}
			seen[e.Name] = struct{}{}
			out = append(out, e.Name)
		}
	}
	return out
}
