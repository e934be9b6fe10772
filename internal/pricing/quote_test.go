package pricing

import (
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"rfpquote/internal"
	"rfpquote/internal/catalog"
	"rfpquote/internal/config"
	"rfpquote/internal/util"
)

func d(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func testReference(t *testing.T) *catalog.Reference {
	t.Helper()
	ref, err := catalog.NewReference(
		[]internal.CatalogProduct{
			{SKU: "PWR-100", Name: "Power cable", BasePricePerMeter: d("100")},
			{SKU: "CTL-40", Name: "Control cable", BasePricePerMeter: d("40.50")},
		},
		[]internal.TestPriceEntry{
			{Name: "Type Test", Price: d("150000"), DurationDays: 21},
			{Name: "Routine Test", Price: d("25000"), DurationDays: 3},
		},
		catalog.DefaultDiscountTiers(),
	)
	if err != nil {
		t.Fatal(err)
	}
	return ref
}

func mustCalculator(t *testing.T, policy Policy) *Calculator {
	t.Helper()
	c, err := NewCalculator(Options{Policy: policy, Now: func() time.Time { return time.Date(2026, 1, 15, 10, 0, 0, 0, time.UTC) }})
	if err != nil {
		t.Fatal(err)
	}
	return c
}

func TestQuoteOverheadContingency(t *testing.T) {
	q, err := mustCalculator(t, PolicyOverheadContingency).Quote(testReference(t), []LineItem{{SKU: "PWR-100", Quantity: d("5000")}}, nil)
	if err != nil {
		t.Fatal(err)
	}

	checks := []struct {
		name string
		got  decimal.Decimal
		want string
	}{
		{name: "unit price", got: q.Lines[0].UnitPrice, want: "95"},
		{name: "line total", got: q.Lines[0].LineTotal, want: "475000"},
		{name: "material", got: q.MaterialSubtotal, want: "475000"},
		{name: "tests", got: q.TestSubtotal, want: "0"},
		{name: "overhead", got: q.Overhead, want: "23750"},
		{name: "contingency", got: q.Contingency, want: "14250"},
		{name: "margin", got: q.Margin, want: "0"},
		{name: "grand total", got: q.GrandTotal, want: "513000"},
	}
	for _, c := range checks {
		if !c.got.Equal(d(c.want)) {
			t.Fatalf("%s = %s, want %s", c.name, c.got, c.want)
		}
	}
	if q.ID == "" || q.Policy != PolicyOverheadContingency {
		t.Fatalf("id=%q policy=%s", q.ID, q.Policy)
	}
	if q.Terms != DefaultTerms || q.Terms.ValidityDays != 30 || q.Terms.AdvancePercent != 30 || q.Terms.BalancePercent != 70 {
		t.Fatalf("terms=%+v", q.Terms)
	}
}

func TestQuoteFlatMargin(t *testing.T) {
	q, err := mustCalculator(t, PolicyFlatMargin).Quote(testReference(t),
		[]LineItem{{SKU: "PWR-100", Quantity: d("5000")}},
		[]string{"Routine Test"})
	if err != nil {
		t.Fatal(err)
	}
	// (475000 + 25000) * 1.20
	if !q.Subtotal.Equal(d("500000")) || !q.Margin.Equal(d("100000")) || !q.GrandTotal.Equal(d("600000")) {
		t.Fatalf("subtotal=%s margin=%s total=%s", q.Subtotal, q.Margin, q.GrandTotal)
	}
	if !q.Overhead.IsZero() || !q.Contingency.IsZero() {
		t.Fatalf("flat margin must not add overhead/contingency: %s %s", q.Overhead, q.Contingency)
	}
}

func TestDiscountTierSelection(t *testing.T) {
	tiers := catalog.DefaultDiscountTiers()
	tests := []struct {
		qty  string
		want string
	}{
		{qty: "0.5", want: "0"},
		{qty: "1999", want: "0"},
		{qty: "2000", want: "3"},
		{qty: "4999", want: "3"},
		{qty: "5000", want: "5"},
		{qty: "9999", want: "5"},
		{qty: "10000", want: "8"},
		{qty: "250000", want: "8"},
	}

	for _, tc := range tests {
		t.Run(tc.qty, func(t *testing.T) {
			if got := DiscountFor(tiers, d(tc.qty)); !got.Equal(d(tc.want)) {
				t.Fatalf("DiscountFor(%s) = %s, want %s", tc.qty, got, tc.want)
			}
		})
	}
}

func TestQuoteSkipsUnknownSKU(t *testing.T) {
	items := []LineItem{
		{SKU: "PWR-100", Quantity: d("1000")},
		{SKU: "NOPE-1", Quantity: d("500")},
		{SKU: "CTL-40", Quantity: d("2000")},
	}
	q, err := mustCalculator(t, PolicyOverheadContingency).Quote(testReference(t), items, nil)
	if err != nil {
		t.Fatal(err)
	}
	if len(q.Lines) != 2 || len(q.Skipped) != 1 || q.Skipped[0].SKU != "NOPE-1" {
		t.Fatalf("lines=%d skipped=%+v", len(q.Lines), q.Skipped)
	}
	// 100*1000 + 40.50*0.97*2000
	if !q.MaterialSubtotal.Equal(d("178570")) {
		t.Fatalf("material=%s", q.MaterialSubtotal)
	}
	if !q.GrandTotal.Equal(d("192855.6")) {
		t.Fatalf("grand total=%s", q.GrandTotal)
	}
}

func TestQuoteUnpricedTestsKept(t *testing.T) {
	q, err := mustCalculator(t, PolicyOverheadContingency).Quote(testReference(t), nil, []string{"Type Test", "Impulse Test", "routine test"})
	if err != nil {
		t.Fatal(err)
	}
	if len(q.Tests) != 3 {
		t.Fatalf("tests=%d", len(q.Tests))
	}
	if !q.Tests[0].Priced || q.Tests[1].Priced || q.Tests[2].Priced {
		t.Fatalf("priced flags=%+v", q.Tests)
	}
	if !q.TestSubtotal.Equal(d("150000")) {
		t.Fatalf("test subtotal=%s", q.TestSubtotal)
	}
	if got := q.Unpriced(); len(got) != 2 || got[0] != "Impulse Test" {
		t.Fatalf("unpriced=%v", got)
	}
}

func TestQuoteRejectsMalformedItems(t *testing.T) {
	c := mustCalculator(t, PolicyOverheadContingency)
	ref := testReference(t)

	tests := []struct {
		name  string
		items []LineItem
		tests []string
		field string
	}{
		{name: "empty sku", items: []LineItem{{SKU: " ", Quantity: d("1")}}, field: "products[0].sku"},
		{name: "zero quantity", items: []LineItem{{SKU: "PWR-100", Quantity: d("1")}, {SKU: "PWR-100"}}, field: "products[1].quantity"},
		{name: "negative quantity", items: []LineItem{{SKU: "PWR-100", Quantity: d("-5")}}, field: "products[0].quantity"},
		{name: "empty test", tests: []string{""}, field: "tests[0]"},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			_, err := c.Quote(ref, tc.items, tc.tests)
			var inputErr *InputError
			if !errors.As(err, &inputErr) || inputErr.Field != tc.field {
				t.Fatalf("err=%v", err)
			}
		})
	}

	if _, err := c.Quote(nil, nil, nil); err == nil {
		t.Fatal("expected error without reference")
	}
}

func TestCalculatorPolicySelection(t *testing.T) {
	if _, err := NewCalculator(Options{}); err == nil {
		t.Fatal("policy must be chosen explicitly")
	}
	if _, err := NewCalculator(Options{Policy: "markup"}); err == nil {
		t.Fatal("unknown policy accepted")
	}

	c, err := NewCalculatorFromConfig(config.Config{MarkupPolicy: config.PolicyFlatMargin})
	if err != nil {
		t.Fatal(err)
	}
	if c.Policy() != PolicyFlatMargin {
		t.Fatalf("policy=%s", c.Policy())
	}
	other, err := c.WithPolicy(PolicyOverheadContingency)
	if err != nil || other.Policy() != PolicyOverheadContingency || c.Policy() != PolicyFlatMargin {
		t.Fatalf("WithPolicy err=%v", err)
	}

	if p, err := ParsePolicy(" Flat_Margin "); err != nil || p != PolicyFlatMargin {
		t.Fatalf("p=%s err=%v", p, err)
	}
}

func TestParseRequest(t *testing.T) {
	req, err := ParseRequest([]byte(`{"products":[{"sku":"PWR-100","quantity":"5,000m"},{"sku":"CTL-40","quantity":2500.5}],"tests":["Type Test"],"policy":"flat_margin"}`))
	if err != nil {
		t.Fatal(err)
	}
	if len(req.Items) != 2 || !req.Items[0].Quantity.Equal(d("5000")) || !req.Items[1].Quantity.Equal(d("2500.5")) {
		t.Fatalf("items=%+v", req.Items)
	}
	if req.Policy != PolicyFlatMargin || len(req.Tests) != 1 {
		t.Fatalf("req=%+v", req)
	}

	tests := []struct {
		name  string
		body  string
		field string
	}{
		{name: "malformed json", body: `{"products":`, field: "body"},
		{name: "empty", body: `{}`, field: "products"},
		{name: "non numeric", body: `{"products":[{"sku":"A","quantity":"about 500"}]}`, field: "products[0].quantity"},
		{name: "missing quantity", body: `{"products":[{"sku":"A"}]}`, field: "products[0].quantity"},
		{name: "bad policy", body: `{"products":[{"sku":"A","quantity":1}],"policy":"cost_plus"}`, field: "policy"},
		{name: "zero quantity", body: `{"products":[{"sku":"A","quantity":0}]}`, field: "products[0].quantity"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			_, err := ParseRequest([]byte(tc.body))
			var inputErr *InputError
			if !errors.As(err, &inputErr) || inputErr.Field != tc.field {
				t.Fatalf("err=%v", err)
			}
		})
	}

	_, err = ParseRequest([]byte(`{"products":[{"sku":"A","quantity":"lots"}]}`))
	if !errors.Is(err, util.ErrInvalidQuantity) {
		t.Fatalf("expected ErrInvalidQuantity in chain, got %v", err)
	}
}
