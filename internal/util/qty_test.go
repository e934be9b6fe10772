package util

import (
	"errors"
	"testing"
)

func TestParseQuantity(t *testing.T) {
	cases := []struct {
		name  string
		input string
		want  string
	}{
		{name: "plain", input: "5000", want: "5000"},
		{name: "thousands with suffix", input: "5,000m", want: "5000"},
		{name: "indian grouping", input: "1,00,000 m", want: "100000"},
		{name: "spaced thousands", input: "1 200 meters", want: "1200"},
		{name: "mtrs", input: "750 mtrs", want: "750"},
		{name: "decimal", input: "12.5 m", want: "12.5"},
		{name: "kilometres", input: "2.5 km", want: "2500"},
		{name: "trailing dot", input: "300 m.", want: "300"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, err := ParseQuantity(tc.input)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got.String() != tc.want {
				t.Fatalf("got %s want %s", got.String(), tc.want)
			}
		})
	}
}

func TestParseQuantityInvalid(t *testing.T) {
	for _, input := range []string{"", "  ", "lot", "approx 500", "120 sqmm", "100mm", "meters", "-5 m"} {
		t.Run(input, func(t *testing.T) {
			_, err := ParseQuantity(input)
			if !errors.Is(err, ErrInvalidQuantity) {
				t.Fatalf("input %q: err=%v", input, err)
			}
		})
	}
}

func TestParseQty(t *testing.T) {
	cases := []struct {
		name  string
		input string
		want  string
	}{
		{name: "trailing meters", input: "1.1 kV XLPE Power Cable - 3C x 120 sqmm 5,000 m", want: "5000"},
		{name: "mtrs", input: "Control cable 12 core 1.5 sqmm - 2000 mtrs", want: "2000"},
		{name: "km", input: "FR-LSH 4C x 16 sqmm 1.5 km", want: "1500"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			parsed := ParseQty(tc.input)
			if parsed.Qty == nil {
				t.Fatalf("qty is nil")
			}
			if parsed.Qty.String() != tc.want {
				t.Fatalf("got %s want %s", parsed.Qty.String(), tc.want)
			}
		})
	}

	if parsed := ParseQty("PVC 4C x 16 sqmm - 5,000m"); parsed.QtyRaw == nil || *parsed.QtyRaw != "5,000m" {
		t.Fatalf("qtyRaw=%v", parsed.QtyRaw)
	}

	if parsed := ParseQty("3C x 120 sqmm"); parsed.Qty != nil {
		t.Fatalf("size taken for qty: %s", parsed.Qty.String())
	}
}
