package catalog

import (
	"sort"
	"strings"

	"rfpquote/internal"
	"rfpquote/internal/util"
)

type Index struct {
	products   []internal.CatalogProduct
	bySKU      map[string]int
	searchText [][]string
}

func BuildIndex(products []internal.CatalogProduct) *Index {
	idx := &Index{
		products:   append([]internal.CatalogProduct(nil), products...),
		bySKU:      make(map[string]int, len(products)),
		searchText: make([][]string, len(products)),
	}

	for i, p := range idx.products {
		idx.bySKU[strings.TrimSpace(p.SKU)] = i

		fields := []string{strings.ToLower(p.Name), strings.ToLower(p.Category)}
		for _, key := range p.SpecKeys() {
			switch v := p.Specs[key].(type) {
			case string:
				fields = append(fields, strings.ToLower(v))
			case []any, []string:
				for _, item := range p.SpecList(key) {
					fields = append(fields, strings.ToLower(item))
				}
			}
		}
		idx.searchText[i] = fields
	}

	return idx
}

func (i *Index) Len() int { return len(i.products) }

func (i *Index) Get(sku string) (internal.CatalogProduct, bool) {
	pos, ok := i.bySKU[strings.TrimSpace(sku)]
	if !ok {
		return internal.CatalogProduct{}, false
	}
	return i.products[pos], true
}

// Search returns products whose name, category or any textual spec value contains
// the query (case-insensitive), in catalog order.
func (i *Index) Search(query string) []internal.CatalogProduct {
	q := strings.ToLower(strings.TrimSpace(query))
	if q == "" {
		return nil
	}
	out := []internal.CatalogProduct{}
	for pos, fields := range i.searchText {
		for _, f := range fields {
			if strings.Contains(f, q) {
				out = append(out, i.products[pos])
				break
			}
		}
	}
	return out
}

type Page struct {
	Items []internal.CatalogProduct `json:"items"`
	Page  int                       `json:"page"`
	Size  int                       `json:"size"`
	Total int                       `json:"total"`
	Pages int                       `json:"pages"`
}

// Page lists the catalog in pages; category filtering is case-insensitive equality.
func (i *Index) Page(page, size int, category string) Page {
	if page < 1 {
		page = 1
	}
	if size < 1 {
		size = 20
	}
	if size > 200 {
		size = 200
	}

	filtered := i.products
	if c := strings.TrimSpace(category); c != "" {
		filtered = make([]internal.CatalogProduct, 0)
		for _, p := range i.products {
			if strings.EqualFold(p.Category, c) {
				filtered = append(filtered, p)
			}
		}
	}

	total := len(filtered)
	start := (page - 1) * size
	end := start + size
	if start > total {
		start = total
	}
	if end > total {
		end = total
	}

	return Page{
		Items: append([]internal.CatalogProduct{}, filtered[start:end]...),
		Page:  page,
		Size:  size,
		Total: total,
		Pages: (total + size - 1) / size,
	}
}

type ComparisonRow struct {
	Key    string   `json:"key"`
	Label  string   `json:"label"`
	Values []string `json:"values"`
}

type Comparison struct {
	SKUs []string        `json:"skus"`
	Rows []ComparisonRow `json:"rows"`
}

// Compare lays the requested products side by side over the sorted union of their spec keys.
func (i *Index) Compare(skus []string) Comparison {
	want := map[string]struct{}{}
	for _, s := range skus {
		if s = strings.TrimSpace(s); s != "" {
			want[s] = struct{}{}
		}
	}

	selected := []internal.CatalogProduct{}
	for _, p := range i.products {
		if _, ok := want[p.SKU]; ok {
			selected = append(selected, p)
		}
	}

	keySet := map[string]struct{}{}
	for _, p := range selected {
		for k := range p.Specs {
			keySet[k] = struct{}{}
		}
	}
	keys := make([]string, 0, len(keySet))
	for k := range keySet {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	out := Comparison{SKUs: make([]string, 0, len(selected)), Rows: make([]ComparisonRow, 0, len(keys))}
	for _, p := range selected {
		out.SKUs = append(out.SKUs, p.SKU)
	}
	for _, k := range keys {
		row := ComparisonRow{Key: k, Label: util.Humanize(k), Values: make([]string, 0, len(selected))}
		for _, p := range selected {
			row.Values = append(row.Values, p.SpecDisplay(k))
		}
		out.Rows = append(out.Rows, row)
	}
	return out
}
