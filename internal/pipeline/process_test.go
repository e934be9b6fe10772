package pipeline

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/xuri/excelize/v2"

	"rfpquote/internal"
	"rfpquote/internal/catalog"
	"rfpquote/internal/config"
	"rfpquote/internal/pricing"
	"rfpquote/internal/storage"
)

func testHolder(t *testing.T) *catalog.Holder {
	t.Helper()
	products := []internal.CatalogProduct{
		{
			SKU: "PWR-XLPE-3C120", Name: "1.1 kV XLPE 3C x 120 sqmm", Category: "Power Cable",
			BasePricePerMeter: decimal.NewFromInt(100),
			Specs:             map[string]any{"voltage_grade": "1.1 kV", "insulation": "XLPE", "cores": 3, "conductor_size_sqmm": 120},
		},
		{
			SKU: "CTL-PVC-12C2.5", Name: "1.1 kV PVC control 12C x 2.5 sqmm", Category: "Control Cable",
			BasePricePerMeter: decimal.NewFromInt(40),
			Specs:             map[string]any{"voltage_grade": "1.1 kV", "insulation": "PVC", "cores": 12, "conductor_size_sqmm": 2.5},
		},
	}
	tests := []internal.TestPriceEntry{
		{Name: "Type Test", Price: decimal.NewFromInt(150000), DurationDays: 21},
		{Name: "Routine Test", Price: decimal.NewFromInt(25000), DurationDays: 3},
	}
	ref, err := catalog.NewReference(products, tests, catalog.DefaultDiscountTiers())
	if err != nil {
		t.Fatal(err)
	}
	return catalog.NewHolder(ref)
}

func testRFP() internal.RFP {
	return internal.RFP{
		ID:                 "TOT-2026-001",
		Title:              "LT cables for substation",
		Client:             "State Utility",
		SubmissionDeadline: "2026-04-10",
		EstimatedValue:     "₹4.5 Cr",
		ScopeOfSupply: []internal.ScopeItem{
			{Item: "1.1 kV XLPE Power Cable - 3C x 120 sqmm", Quantity: "5,000m"},
			{Item: "1.1 kV PVC control cable 12C x 2.5 sqmm", Quantity: ""},
			{Item: "Assorted accessories", Quantity: "10 m"},
			{Item: "1.1 kV XLPE 3C x 95 sqmm", Quantity: "lots"},
		},
		TestingRequirements: []string{"Type Test", "Special Fire Test", "type test"},
	}
}

func newTestAnalyzer(t *testing.T, db *storage.DB) *Analyzer {
	t.Helper()
	calc, err := pricing.NewCalculator(pricing.Options{Policy: pricing.PolicyOverheadContingency})
	if err != nil {
		t.Fatal(err)
	}
	a := NewAnalyzer(db, testHolder(t), calc, config.Config{DefaultQuantityM: 1000, MatchTopN: 3})
	a.now = func() time.Time { return time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC) }
	return a
}

func TestAnalyze(t *testing.T) {
	a := newTestAnalyzer(t, nil)
	analysis, err := a.Analyze(testRFP())
	if err != nil {
		t.Fatal(err)
	}

	reqs := analysis.Requirements
	if len(reqs) != 4 {
		t.Fatalf("requirements=%d", len(reqs))
	}
	if reqs[0].SelectedSKU != "PWR-XLPE-3C120" || reqs[0].QuantityM == nil || !reqs[0].QuantityM.Equal(decimal.NewFromInt(5000)) {
		t.Fatalf("req0=%+v", reqs[0])
	}
	if !reqs[1].Defaulted || reqs[1].SelectedSKU != "CTL-PVC-12C2.5" || !reqs[1].QuantityM.Equal(decimal.NewFromInt(1000)) {
		t.Fatalf("req1=%+v", reqs[1])
	}
	if reqs[2].SelectedSKU != "" || !strings.Contains(reqs[2].Problem, "no cable attributes") {
		t.Fatalf("req2=%+v", reqs[2])
	}
	if reqs[3].QuantityM != nil || !strings.Contains(reqs[3].Problem, "invalid quantity") {
		t.Fatalf("req3=%+v", reqs[3])
	}
	if len(analysis.Problems) != 2 {
		t.Fatalf("problems=%v", analysis.Problems)
	}

	if len(analysis.Tests) != 2 || analysis.Tests[0] != "Type Test" || analysis.Tests[1] != "Special Fire Test" {
		t.Fatalf("tests=%v", analysis.Tests)
	}

	q := analysis.Quote
	if len(q.Lines) != 2 {
		t.Fatalf("lines=%+v", q.Lines)
	}
	checks := []struct {
		name string
		got  decimal.Decimal
		want string
	}{
		{"material", q.MaterialSubtotal, "515000"},
		{"tests", q.TestSubtotal, "150000"},
		{"overhead", q.Overhead, "33250"},
		{"contingency", q.Contingency, "19950"},
		{"grand total", q.GrandTotal, "718200"},
	}
	for _, c := range checks {
		if !c.got.Equal(decimal.RequireFromString(c.want)) {
			t.Fatalf("%s = %s, want %s", c.name, c.got, c.want)
		}
	}
	if unpriced := q.Unpriced(); len(unpriced) != 1 || unpriced[0] != "Special Fire Test" {
		t.Fatalf("unpriced=%v", unpriced)
	}
	if !analysis.Qualification.Qualified {
		t.Fatalf("qualification=%+v", analysis.Qualification)
	}
}

func TestAnalyzeStoredPersistsQuote(t *testing.T) {
	db, err := storage.Open(filepath.Join(t.TempDir(), "app.db"))
	if err != nil {
		t.Fatal(err)
	}
	defer db.Close()
	if err := db.UpsertRFPs([]internal.RFP{testRFP()}); err != nil {
		t.Fatal(err)
	}

	a := newTestAnalyzer(t, db)
	analysis, err := a.AnalyzeStored("TOT-2026-001")
	if err != nil {
		t.Fatal(err)
	}
	rec, err := db.GetQuote(analysis.Quote.ID)
	if err != nil || rec == nil {
		t.Fatalf("quote record=%v err=%v", rec, err)
	}
	if !rec.GrandTotal.Equal(analysis.Quote.GrandTotal) || rec.RFPID == nil || *rec.RFPID != "TOT-2026-001" {
		t.Fatalf("record=%+v", rec)
	}
	recs, err := db.ListQuotesByRFP("TOT-2026-001")
	if err != nil || len(recs) != 1 {
		t.Fatalf("records=%d err=%v", len(recs), err)
	}

	if _, err := a.AnalyzeStored("NOPE"); !errors.Is(err, ErrRFPNotFound) {
		t.Fatalf("err=%v", err)
	}
}

func TestExportAnalysis(t *testing.T) {
	a := newTestAnalyzer(t, nil)
	analysis, err := a.Analyze(testRFP())
	if err != nil {
		t.Fatal(err)
	}

	out := filepath.Join(t.TempDir(), "exports", "quote.xlsx")
	if err := ExportAnalysisToXLSX(analysis, out); err != nil {
		t.Fatal(err)
	}
	if _, err := os.Stat(out); err != nil {
		t.Fatal(err)
	}

	f, err := excelize.OpenFile(out)
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()
	matches, err := f.GetRows(SheetMatches)
	if err != nil {
		t.Fatal(err)
	}
	if len(matches) < 5 || matches[1][6] != "PWR-XLPE-3C120" {
		t.Fatalf("matches=%v", matches)
	}
	quote, err := f.GetRows(SheetQuote)
	if err != nil {
		t.Fatal(err)
	}
	found := false
	for _, row := range quote {
		if len(row) >= 2 && row[0] == "grand_total" && row[1] == "718200" {
			found = true
		}
	}
	if !found {
		t.Fatalf("grand total row missing: %v", quote)
	}

	md := RenderMarkdown(analysis)
	for _, want := range []string{"# RFP Response: TOT-2026-001", "Grand Total: ₹7,18,200.00", "| Special Fire Test | TBD | TBD |", "## Needs Review"} {
		if !strings.Contains(md, want) {
			t.Fatalf("markdown missing %q:\n%s", want, md)
		}
	}
}

func TestMoney(t *testing.T) {
	tests := map[string]string{
		"0":          "0.00",
		"999.5":      "999.50",
		"513000":     "5,13,000.00",
		"12345678.9": "1,23,45,678.90",
		"-4500":      "-4,500.00",
	}
	for in, want := range tests {
		if got := money(decimal.RequireFromString(in)); got != want {
			t.Fatalf("money(%s)=%s want %s", in, got, want)
		}
	}
}
