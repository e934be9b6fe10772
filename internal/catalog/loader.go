package catalog

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/shopspring/decimal"
	"gopkg.in/yaml.v3"

	"rfpquote/internal"
	"rfpquote/internal/util"
)

// Base names of the reference data files inside a data directory.
const (
	CatalogFile       = "catalog"
	TestPricingFile   = "test_pricing"
	DiscountTiersFile = "discount_tiers"
)

// LoadDir reads the reference tables from dir. The catalog is required; a missing
// test-price file yields an empty table and missing tiers fall back to the defaults.
func LoadDir(dir string) (*Reference, error) {
	path, ok := util.FindDataFile(dir, CatalogFile)
	if !ok {
		return nil, fmt.Errorf("no %s.{json,yaml} in %s", CatalogFile, dir)
	}
	var products []internal.CatalogProduct
	if err := util.DecodeFile(path, &products); err != nil {
		return nil, err
	}

	var tests []internal.TestPriceEntry
	if path, ok := util.FindDataFile(dir, TestPricingFile); ok {
		format, err := util.FormatFromPath(path)
		if err != nil {
			return nil, err
		}
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, err
		}
		tests, err = DecodeTestPrices(data, format)
		if err != nil {
			return nil, fmt.Errorf("decode %s: %w", path, err)
		}
	}

	tiers := DefaultDiscountTiers()
	if path, ok := util.FindDataFile(dir, DiscountTiersFile); ok {
		tiers = nil
		if err := util.DecodeFile(path, &tiers); err != nil {
			return nil, err
		}
	}

	return NewReference(products, tests, tiers)
}

type testPriceBody struct {
	Price        decimal.Decimal `json:"price" yaml:"price"`
	DurationDays int             `json:"duration_days" yaml:"duration_days"`
}

// DecodeTestPrices accepts either the keyed form {"<name>": {"price", "duration_days"}}
// or a list of entries. Key order of the keyed form is preserved.
func DecodeTestPrices(data []byte, format util.Format) ([]internal.TestPriceEntry, error) {
	switch format {
	case util.FormatJSON:
		return decodeTestPricesJSON(data)
	case util.FormatYAML:
		return decodeTestPricesYAML(data)
	default:
		return nil, fmt.Errorf("unsupported format: %s", format)
	}
}

func decodeTestPricesJSON(data []byte) ([]internal.TestPriceEntry, error) {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 {
		return nil, nil
	}
	if trimmed[0] == '[' {
		var out []internal.TestPriceEntry
		err := json.Unmarshal(trimmed, &out)
		return out, err
	}

	dec := json.NewDecoder(bytes.NewReader(trimmed))
	tok, err := dec.Token()
	if err != nil {
		return nil, err
	}
	if delim, ok := tok.(json.Delim); !ok || delim != '{' {
		return nil, fmt.Errorf("expected object or array of test prices")
	}

	out := []internal.TestPriceEntry{}
	for dec.More() {
		tok, err := dec.Token()
		if err != nil {
			return nil, err
		}
		name, ok := tok.(string)
		if !ok {
			return nil, fmt.Errorf("unexpected token %v", tok)
		}
		var body testPriceBody
		if err := dec.Decode(&body); err != nil {
			return nil, fmt.Errorf("test %q: %w", name, err)
		}
		out = append(out, internal.TestPriceEntry{Name: name, Price: body.Price, DurationDays: body.DurationDays})
	}
	if _, err := dec.Token(); err != nil && err != io.EOF {
		return nil, err
	}
	return out, nil
}

func decodeTestPricesYAML(data []byte) ([]internal.TestPriceEntry, error) {
	var doc yaml.Node
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, err
	}
	if len(doc.Content) == 0 {
		return nil, nil
	}
	root := doc.Content[0]

	switch root.Kind {
	case yaml.SequenceNode:
		var out []internal.TestPriceEntry
		err := root.Decode(&out)
		return out, err
	case yaml.MappingNode:
		out := make([]internal.TestPriceEntry, 0, len(root.Content)/2)
		for i := 0; i+1 < len(root.Content); i += 2 {
			name := root.Content[i].Value
			var body testPriceBody
			if err := root.Content[i+1].Decode(&body); err != nil {
				return nil, fmt.Errorf("test %q: %w", name, err)
			}
			out = append(out, internal.TestPriceEntry{Name: name, Price: body.Price, DurationDays: body.DurationDays})
		}
		return out, nil
	default:
		return nil, fmt.Errorf("expected mapping or sequence of test prices")
	}
}
