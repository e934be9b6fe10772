package catalog

import (
	"fmt"
	"testing"

	"rfpquote/internal"
)

func TestIndexSearch(t *testing.T) {
	idx := testReference(t).Index()

	tests := []struct {
		query string
		want  []string
	}{
		{query: "xlpe", want: []string{"A"}},
		{query: "CABLE", want: []string{"A", "B"}},
		{query: "steel", want: []string{"B"}},
		{query: "bis", want: []string{"A"}},
		{query: "power", want: []string{"A", "B"}},
		{query: "   ", want: nil},
		{query: "nothing", want: []string{}},
	}

	for _, tc := range tests {
		t.Run(tc.query, func(t *testing.T) {
			got := idx.Search(tc.query)
			if len(got) != len(tc.want) {
				t.Fatalf("got %d results, want %d", len(got), len(tc.want))
			}
			for i := range got {
				if got[i].SKU != tc.want[i] {
					t.Fatalf("result %d = %s, want %s", i, got[i].SKU, tc.want[i])
				}
			}
		})
	}
}

func TestIndexPage(t *testing.T) {
	products := make([]internal.CatalogProduct, 0, 45)
	for i := 0; i < 45; i++ {
		p := product(fmt.Sprintf("SKU-%02d", i), "cable", 1, nil)
		if i%3 == 0 {
			p.Category = "Control Cable"
		}
		products = append(products, p)
	}
	idx := BuildIndex(products)

	page := idx.Page(3, 20, "")
	if page.Total != 45 || page.Pages != 3 || len(page.Items) != 5 || page.Items[0].SKU != "SKU-40" {
		t.Fatalf("page=%+v", page)
	}

	page = idx.Page(0, 0, "control cable")
	if page.Page != 1 || page.Size != 20 || page.Total != 15 || page.Items[1].SKU != "SKU-03" {
		t.Fatalf("filtered page=%+v", page)
	}

	page = idx.Page(10, 500, "")
	if page.Size != 200 || len(page.Items) != 0 || page.Pages != 1 {
		t.Fatalf("out of range page=%+v", page)
	}
}

func TestIndexCompare(t *testing.T) {
	idx := testReference(t).Index()

	cmp := idx.Compare([]string{"B", "A", "missing"})
	if len(cmp.SKUs) != 2 || cmp.SKUs[0] != "A" {
		t.Fatalf("skus=%v", cmp.SKUs)
	}

	keys := []string{"armour", "certifications", "cores", "insulation"}
	if len(cmp.Rows) != len(keys) {
		t.Fatalf("rows=%d", len(cmp.Rows))
	}
	for i, k := range keys {
		if cmp.Rows[i].Key != k {
			t.Fatalf("row %d key=%s want %s", i, cmp.Rows[i].Key, k)
		}
	}
	if got := cmp.Rows[0].Values; got[0] != "N/A" || got[1] != "Steel Wire" {
		t.Fatalf("armour=%v", got)
	}
	if got := cmp.Rows[1].Values[0]; got != "BIS, IS 7098" {
		t.Fatalf("certifications=%q", got)
	}
	if cmp.Rows[2].Label != "Cores" {
		t.Fatalf("label=%q", cmp.Rows[2].Label)
	}
}
