package catalog

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/shopspring/decimal"

	"rfpquote/internal/util"
)

func TestLoadDirJSON(t *testing.T) {
	ref, err := LoadDir(filepath.Join("testdata", "json"))
	if err != nil {
		t.Fatal(err)
	}
	if ref.Index().Len() != 3 {
		t.Fatalf("products=%d", ref.Index().Len())
	}
	p, ok := ref.Product("CTL-PVC-12C2.5-1.1")
	if !ok || !p.BasePricePerMeter.Equal(decimal.RequireFromString("85.5")) {
		t.Fatalf("product=%+v", p)
	}
	if n, ok := p.SpecNumber("conductor_size_sqmm"); !ok || n != 2.5 {
		t.Fatalf("size=%v ok=%v", n, ok)
	}

	entries := ref.Tests().Entries()
	wantOrder := []string{"Type Test", "Routine Test", "Acceptance Test", "Fire Resistance Test"}
	if len(entries) != len(wantOrder) {
		t.Fatalf("tests=%d", len(entries))
	}
	for i, name := range wantOrder {
		if entries[i].Name != name {
			t.Fatalf("test %d = %s, want %s", i, entries[i].Name, name)
		}
	}
	if entries[0].DurationDays != 21 {
		t.Fatalf("duration=%d", entries[0].DurationDays)
	}
	if len(ref.Tiers()) != 4 {
		t.Fatalf("expected default tiers, got %d", len(ref.Tiers()))
	}
}

func TestLoadDirYAML(t *testing.T) {
	ref, err := LoadDir(filepath.Join("testdata", "yaml"))
	if err != nil {
		t.Fatal(err)
	}
	p, ok := ref.Product("HV-XLPE-3C240-11")
	if !ok || !p.BasePricePerMeter.Equal(decimal.RequireFromString("1250.75")) {
		t.Fatalf("product=%+v", p)
	}
	if v, _ := p.SpecString("voltage_grade"); v != "11 kV" {
		t.Fatalf("voltage=%q", v)
	}
	if got := p.SpecDisplay("certifications"); got != "IS 7098 Part 2" {
		t.Fatalf("certifications=%q", got)
	}

	entries := ref.Tests().Entries()
	if len(entries) != 2 || entries[1].Name != "Partial Discharge Test" {
		t.Fatalf("tests=%+v", entries)
	}

	tiers := ref.Tiers()
	if len(tiers) != 2 || !tiers[0].DiscountPercent.Equal(decimal.RequireFromString("2.5")) {
		t.Fatalf("tiers=%+v", tiers)
	}
}

func TestLoadDirRequiresCatalog(t *testing.T) {
	if _, err := LoadDir(t.TempDir()); err == nil {
		t.Fatal("expected error for missing catalog")
	}
}

func TestLoadDirWithoutTests(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "catalog.json"), []byte(`[{"sku":"X","name":"x","category":"c","base_price_per_meter":1,"specs":{}}]`), 0o644); err != nil {
		t.Fatal(err)
	}
	ref, err := LoadDir(dir)
	if err != nil {
		t.Fatal(err)
	}
	if ref.Tests().Len() != 0 {
		t.Fatalf("tests=%d", ref.Tests().Len())
	}
}

func TestDecodeTestPricesListForm(t *testing.T) {
	entries, err := DecodeTestPrices([]byte(`[{"name":"B","price":"2.50","duration_days":1},{"name":"A","price":1}]`), util.FormatJSON)
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 2 || entries[0].Name != "B" || !entries[0].Price.Equal(decimal.RequireFromString("2.5")) {
		t.Fatalf("entries=%+v", entries)
	}

	if _, err := DecodeTestPrices([]byte(`"nope"`), util.FormatJSON); err == nil {
		t.Fatal("expected error for scalar payload")
	}
}
