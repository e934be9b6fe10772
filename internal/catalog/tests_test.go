package catalog

import (
	"testing"

	"github.com/shopspring/decimal"

	"rfpquote/internal"
)

func TestTestTableLookup(t *testing.T) {
	table, err := NewTestTable([]internal.TestPriceEntry{
		{Name: "High Voltage Test", Price: decimal.NewFromInt(1)},
		{Name: "Voltage Test", Price: decimal.NewFromInt(2)},
		{Name: "Routine Test", Price: decimal.NewFromInt(3)},
	})
	if err != nil {
		t.Fatal(err)
	}

	tests := []struct {
		query string
		want  string
		ok    bool
	}{
		{query: "Voltage Test", want: "Voltage Test", ok: true},
		{query: "voltage", want: "High Voltage Test", ok: true},
		{query: "Routine Test as per IS 7098", want: "Routine Test", ok: true},
		{query: "ROUTINE", want: "Routine Test", ok: true},
		{query: "", ok: false},
		{query: "Bending Test", ok: false},
	}

	for _, tc := range tests {
		t.Run(tc.query, func(t *testing.T) {
			got, ok := table.Lookup(tc.query)
			if ok != tc.ok || got.Name != tc.want {
				t.Fatalf("Lookup(%q) = %q,%v want %q,%v", tc.query, got.Name, ok, tc.want, tc.ok)
			}
		})
	}

	if _, ok := table.Exact("voltage test"); ok {
		t.Fatal("Exact must be case-sensitive")
	}
}

func TestTestTableRecommend(t *testing.T) {
	table, err := NewTestTable([]internal.TestPriceEntry{
		{Name: "Type Test"},
		{Name: "Routine Test"},
		{Name: "Acceptance Test"},
	})
	if err != nil {
		t.Fatal(err)
	}

	got := table.Recommend([]string{"routine test", "Acceptance Test at site", "type", "Routine", "", "Impulse"})
	want := []string{"Routine Test", "Acceptance Test", "Type Test"}
	if len(got) != len(want) {
		t.Fatalf("got %v want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("got %v want %v", got, want)
		}
	}
}
