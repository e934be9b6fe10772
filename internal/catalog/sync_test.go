package catalog

import (
	"bytes"
	"errors"
	"path/filepath"
	"strings"
	"testing"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"

	"rfpquote/internal"
	"rfpquote/internal/config"
	"rfpquote/internal/storage"
)

func openTestDB(t *testing.T) *storage.DB {
	t.Helper()
	db, err := storage.Open(filepath.Join(t.TempDir(), "app.db"))
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = db.Close() })
	return db
}

func TestSyncImportAndReload(t *testing.T) {
	db := openTestDB(t)
	if _, err := LoadFromDB(db); !errors.Is(err, ErrNoStoredReference) {
		t.Fatalf("expected ErrNoStoredReference, got %v", err)
	}

	holder := NewHolder(nil)
	svc := NewSyncService(db, holder, config.Config{})

	ref, err := svc.ImportDir(filepath.Join("testdata", "json"))
	if err != nil {
		t.Fatal(err)
	}
	if holder.Current() != ref {
		t.Fatal("import did not publish the snapshot")
	}

	stored, err := LoadFromDB(db)
	if err != nil {
		t.Fatal(err)
	}
	if stored.Index().Len() != 3 || stored.Products()[0].SKU != "PWR-XLPE-3C120-1.1" {
		t.Fatalf("stored products=%d", stored.Index().Len())
	}
	if stored.Tests().Entries()[3].Name != "Fire Resistance Test" {
		t.Fatal("test order not preserved in storage")
	}

	changed, err := svc.Reload()
	if err != nil {
		t.Fatal(err)
	}
	if changed {
		t.Fatal("reload of identical data reported a change")
	}
	if last, _ := db.GetMetadata(metaLastImport); last == nil {
		t.Fatal("import timestamp not recorded")
	}
}

func TestSyncAdminWrites(t *testing.T) {
	db := openTestDB(t)
	holder := NewHolder(nil)
	svc := NewSyncService(db, holder, config.Config{})
	if _, err := svc.ImportDir(filepath.Join("testdata", "json")); err != nil {
		t.Fatal(err)
	}
	before := holder.Current()

	if _, err := svc.UpsertProduct(internal.CatalogProduct{SKU: "NEW-1", Name: "new", Category: "Power Cable", BasePricePerMeter: decimal.NewFromInt(10)}); err != nil {
		t.Fatal(err)
	}
	if _, err := svc.UpsertTest(internal.TestPriceEntry{Name: "Routine Test", Price: decimal.NewFromInt(30000), DurationDays: 2}); err != nil {
		t.Fatal(err)
	}
	found, err := svc.DeleteProduct("FR-LSH-4C16-1.1")
	if err != nil || !found {
		t.Fatalf("delete found=%v err=%v", found, err)
	}
	found, err = svc.DeleteTest("No Such Test")
	if err != nil || found {
		t.Fatalf("delete missing test found=%v err=%v", found, err)
	}
	if _, err := svc.UpsertTest(internal.TestPriceEntry{Name: "Bad", Price: decimal.NewFromInt(-1)}); !errors.Is(err, ErrInvalidReference) {
		t.Fatalf("expected ErrInvalidReference, got %v", err)
	}

	if before.Index().Len() != 3 {
		t.Fatal("earlier snapshot mutated by admin writes")
	}

	stored, err := LoadFromDB(db)
	if err != nil {
		t.Fatal(err)
	}
	skus := []string{}
	for _, p := range stored.Products() {
		skus = append(skus, p.SKU)
	}
	if len(skus) != 3 || skus[2] != "NEW-1" {
		t.Fatalf("stored skus=%v", skus)
	}
	if e, _ := stored.Tests().Exact("Routine Test"); !e.Price.Equal(decimal.NewFromInt(30000)) {
		t.Fatalf("stored routine price=%s", e.Price)
	}
	if _, ok := stored.Tests().Exact("Bad"); ok {
		t.Fatal("rejected test was persisted")
	}

	changed, err := svc.Reload()
	if err != nil || changed {
		t.Fatalf("storage and snapshot diverged: changed=%v err=%v", changed, err)
	}
}

func TestSyncStampsWritesAndLogsFailures(t *testing.T) {
	db := openTestDB(t)
	svc := NewSyncService(db, NewHolder(nil), config.Config{})
	if _, err := svc.ImportDir(filepath.Join("testdata", "json")); err != nil {
		t.Fatal(err)
	}
	if _, err := svc.UpsertTest(internal.TestPriceEntry{Name: "Routine Test", Price: decimal.NewFromInt(30000), DurationDays: 2}); err != nil {
		t.Fatal(err)
	}
	if last, _ := db.GetMetadata(metaLastWrite); last == nil {
		t.Fatal("admin write timestamp not recorded")
	}

	var buf bytes.Buffer
	prev := log.Logger
	log.Logger = zerolog.New(&buf)
	t.Cleanup(func() { log.Logger = prev })

	if err := db.Close(); err != nil {
		t.Fatal(err)
	}
	svc.stamp(metaLastWrite)
	if out := buf.String(); !strings.Contains(out, "reference timestamp not recorded") || !strings.Contains(out, metaLastWrite) {
		t.Fatalf("log=%q", out)
	}
}
