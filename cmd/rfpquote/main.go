package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"rfpquote/internal"
	"rfpquote/internal/catalog"
	"rfpquote/internal/config"
	"rfpquote/internal/matching"
	"rfpquote/internal/pipeline"
	"rfpquote/internal/pricing"
	"rfpquote/internal/rfp"
	"rfpquote/internal/storage"
	"rfpquote/internal/util"
)

func main() {
	cfg, err := config.Load()
	must(err)
	config.SetupLogger(cfg)

	if len(os.Args) < 2 {
		usage()
		os.Exit(1)
	}

	must(os.MkdirAll(filepath.Dir(cfg.DBPath), 0o755))
	db, err := storage.Open(cfg.DBPath)
	must(err)
	defer db.Close()

	cmd := os.Args[1]
	switch cmd {
	case "reference:import":
		fs := flag.NewFlagSet(cmd, flag.ExitOnError)
		dir := fs.String("dir", cfg.DataDir, "directory with catalog, test_pricing and discount_tiers files")
		_ = fs.Parse(os.Args[2:])
		svc := catalog.NewSyncService(db, catalog.NewHolder(nil), cfg)
		ref, err := svc.ImportDir(*dir)
		must(err)
		fmt.Printf("reference imported: %d products, %d tests, %d tiers\n", ref.Index().Len(), ref.Tests().Len(), len(ref.Tiers()))
	case "reference:sync":
		must(cfg.Require("REFERENCE_BASE_URL", cfg.ReferenceBaseURL))
		svc := catalog.NewSyncService(db, catalog.NewHolder(nil), cfg)
		ref, err := svc.PullRemote(context.Background())
		must(err)
		fmt.Printf("reference synced: %d products, %d tests\n", ref.Index().Len(), ref.Tests().Len())
	case "rfp:import":
		fs := flag.NewFlagSet(cmd, flag.ExitOnError)
		file := fs.String("file", "", "rfps.json or rfps.yaml")
		html := fs.String("html", "", "saved tender listing page")
		_ = fs.Parse(os.Args[2:])
		var rfps []internal.RFP
		switch {
		case *file != "":
			rfps, err = rfp.LoadFile(*file)
		case *html != "":
			rfps, err = importHTML(db, *html)
		default:
			err = fmt.Errorf("--file or --html is required")
		}
		must(err)
		must(db.UpsertRFPs(rfps))
		fmt.Printf("imported %d rfps\n", len(rfps))
	case "rfp:from-email":
		fs := flag.NewFlagSet(cmd, flag.ExitOnError)
		file := fs.String("file", "", ".eml file")
		_ = fs.Parse(os.Args[2:])
		if *file == "" {
			must(fmt.Errorf("--file is required"))
		}
		raw, err := os.ReadFile(*file)
		must(err)
		scope, err := pipeline.ExtractFromEmail(raw)
		must(err)
		existing, err := db.ListRFPs()
		must(err)
		draft := pipeline.DraftFromEmail(scope, existing, time.Now())
		must(db.UpsertRFPs([]internal.RFP{draft}))
		fmt.Printf("draft %s %q: %d scope items, attachments=%v\n", draft.ID, draft.Title, len(draft.ScopeOfSupply), scope.Attachments)
	case "rfp:scan":
		fs := flag.NewFlagSet(cmd, flag.ExitOnError)
		window := fs.Int("window", cfg.ScanWindowDays, "days ahead")
		_ = fs.Parse(os.Args[2:])
		rfps, err := db.ListRFPs()
		must(err)
		now := time.Now()
		listings := rfp.Scan(rfps, now, *window)
		fmt.Printf("%d rfps due in the next %d days\n", len(listings), *window)
		for _, l := range listings {
			q := rfp.Qualify(l.RFP, now)
			fmt.Printf("  %-16s %3d days  %-14s %s (%s) qualified=%t %s\n", l.ID, l.DaysRemaining, l.EstimatedValue, l.Title, l.Client, q.Qualified, q.Reason)
		}
	case "rfp:prioritize":
		rfps, err := db.ListRFPs()
		must(err)
		for i, p := range rfp.Prioritize(rfps, time.Now()) {
			fmt.Printf("%d. %-16s score=%d (value %d, deadline %d) %s\n", i+1, p.ID, p.Score, p.ValueScore, p.DeadlineScore, p.Title)
		}
	case "rfp:show":
		fs := flag.NewFlagSet(cmd, flag.ExitOnError)
		id := fs.String("id", "", "rfp id")
		_ = fs.Parse(os.Args[2:])
		found, err := db.GetRFP(strings.TrimSpace(*id))
		must(err)
		if found == nil {
			must(fmt.Errorf("rfp not found: %s", *id))
		}
		printJSON(found)
	case "catalog:search":
		fs := flag.NewFlagSet(cmd, flag.ExitOnError)
		q := fs.String("q", "", "search text")
		_ = fs.Parse(os.Args[2:])
		ref := loadReference(db)
		results := ref.Index().Search(*q)
		fmt.Printf("%d products match %q\n", len(results), *q)
		for _, p := range results {
			fmt.Printf("  %-20s %-40s %s/m\n", p.SKU, p.Name, p.BasePricePerMeter.StringFixed(2))
		}
	case "match":
		fs := flag.NewFlagSet(cmd, flag.ExitOnError)
		text := fs.String("text", "", "requirement text")
		_ = fs.Parse(os.Args[2:])
		ref := loadReference(db)
		report := matching.NewMatcher(cfg).Match(*text, ref.Products())
		fmt.Printf("requirement: %s (%s)\n", report.Parsed, report.Status)
		for i, res := range report.Results {
			fmt.Printf("  %d. %-20s %5.1f%%  %s\n", i+1, res.SKU, res.Score, res.Name)
		}
	case "quote":
		fs := flag.NewFlagSet(cmd, flag.ExitOnError)
		products := fs.String("products", "", "SKU=qty pairs separated by ';' (e.g. \"PWR-1=5,000m;CTL-2=2km\")")
		tests := fs.String("tests", "", "test names separated by ';'")
		policy := fs.String("policy", "", "overhead_contingency|flat_margin")
		_ = fs.Parse(os.Args[2:])
		items, err := parseProducts(*products)
		must(err)
		calc, err := pricing.NewCalculatorFromConfig(cfg)
		must(err)
		if *policy != "" {
			p, err := pricing.ParsePolicy(*policy)
			must(err)
			calc, err = calc.WithPolicy(p)
			must(err)
		}
		q, err := calc.Quote(loadReference(db), items, splitList(*tests))
		must(err)
		must(db.InsertQuote(q.ID, nil, string(q.Policy), q.GrandTotal, q))
		printJSON(q)
	case "tests:price":
		fs := flag.NewFlagSet(cmd, flag.ExitOnError)
		name := fs.String("name", "", "test name")
		_ = fs.Parse(os.Args[2:])
		entry, ok := loadReference(db).Tests().Lookup(*name)
		if !ok {
			must(fmt.Errorf("no test price for %q", *name))
		}
		fmt.Printf("%s: %s (%d days)\n", entry.Name, entry.Price.StringFixed(2), entry.DurationDays)
	case "analyze":
		fs := flag.NewFlagSet(cmd, flag.ExitOnError)
		id := fs.String("id", "", "rfp id")
		out := fs.String("out", "", "output .xlsx or .md path")
		_ = fs.Parse(os.Args[2:])
		if strings.TrimSpace(*id) == "" {
			must(fmt.Errorf("--id is required"))
		}
		calc, err := pricing.NewCalculatorFromConfig(cfg)
		must(err)
		analyzer := pipeline.NewAnalyzer(db, catalog.NewHolder(loadReference(db)), calc, cfg)
		analysis, err := analyzer.AnalyzeStored(*id)
		must(err)
		md := pipeline.RenderMarkdown(analysis)
		switch {
		case *out == "":
			fmt.Print(md)
		case strings.EqualFold(filepath.Ext(*out), ".xlsx"):
			must(pipeline.ExportAnalysisToXLSX(analysis, *out))
			fmt.Printf("analysis of %s exported to %s\n", analysis.RFP.ID, *out)
		default:
			must(os.MkdirAll(filepath.Dir(*out), 0o755))
			must(os.WriteFile(*out, []byte(md), 0o644))
			fmt.Printf("analysis of %s written to %s\n", analysis.RFP.ID, *out)
		}
	case "extract":
		fs := flag.NewFlagSet(cmd, flag.ExitOnError)
		input := fs.String("input", "", "input file path")
		inType := fs.String("type", "", "text|html|xlsx|pdf|eml (default: from extension)")
		_ = fs.Parse(os.Args[2:])
		if *input == "" {
			must(fmt.Errorf("--input is required"))
		}
		lines, err := pipeline.ExtractFromFile(*input, *inType)
		must(err)
		for _, item := range pipeline.ScopeFromLines(lines) {
			qty := item.Quantity
			if qty == "" {
				qty = "-"
			}
			fmt.Printf("  %-60s %s\n", item.Item, qty)
		}
		fmt.Printf("extract done lines=%d\n", len(lines))
	default:
		usage()
		os.Exit(1)
	}
}

func loadReference(db *storage.DB) *catalog.Reference {
	ref, err := catalog.LoadFromDB(db)
	if errors.Is(err, catalog.ErrNoStoredReference) {
		must(fmt.Errorf("%w: run reference:import first", err))
	}
	must(err)
	return ref
}

func importHTML(db *storage.DB, path string) ([]internal.RFP, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	existing, err := db.ListRFPs()
	if err != nil {
		return nil, err
	}
	return rfp.ParseHTMLListing(f, existing, time.Now())
}

func parseProducts(spec string) ([]pricing.LineItem, error) {
	items := []pricing.LineItem{}
	for _, pair := range splitList(spec) {
		sku, qty, ok := strings.Cut(pair, "=")
		if !ok {
			return nil, fmt.Errorf("product %q: want SKU=quantity", pair)
		}
		q, err := util.ParseQuantity(qty)
		if err != nil {
			return nil, fmt.Errorf("product %s: %w", sku, err)
		}
		items = append(items, pricing.LineItem{SKU: strings.TrimSpace(sku), Quantity: q})
	}
	return items, nil
}

func splitList(s string) []string {
	out := []string{}
	for _, part := range strings.Split(s, ";") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

func printJSON(v any) {
	data, err := json.MarshalIndent(v, "", "  ")
	must(err)
	fmt.Println(string(data))
}

func usage() {
	fmt.Println("usage: rfpquote <command>")
	fmt.Println("commands:")
	fmt.Println("  reference:import [--dir=./data]")
	fmt.Println("  reference:sync")
	fmt.Println("  rfp:import --file=./data/rfps.json | --html=./listing.html")
	fmt.Println("  rfp:from-email --file=./request.eml")
	fmt.Println("  rfp:scan [--window=90]")
	fmt.Println("  rfp:prioritize")
	fmt.Println("  rfp:show --id=RFP-2026-0001")
	fmt.Println("  catalog:search --q=xlpe")
	fmt.Println("  match --text=\"1.1 kV XLPE 3C x 120 sqmm\"")
	fmt.Println("  quote --products=\"SKU=5,000m;SKU2=2km\" [--tests=\"Type Test;Routine Test\"] [--policy=flat_margin]")
	fmt.Println("  tests:price --name=\"type test\"")
	fmt.Println("  analyze --id=RFP-2026-0001 [--out=./out/quote.xlsx|./out/quote.md]")
	fmt.Println("  extract --input=./scope.pdf [--type=text|html|xlsx|pdf|eml]")
}

func must(err error) {
	if err == nil {
		return
	}
	fmt.Fprintf(os.Stderr, "error: %v\n", err)
	os.Exit(1)
}
