package catalog

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/shopspring/decimal"

	"rfpquote/internal"
)

// ErrInvalidReference marks reference tables that break the shape the matcher and
// the quote calculator rely on.
var ErrInvalidReference = errors.New("invalid reference data")

// Reference is an immutable snapshot of the three reference tables. Matching and
// quoting read it concurrently without locks; updates build a new snapshot.
type Reference struct {
	index *Index
	tests *TestTable
	tiers []internal.DiscountTier
}

// DefaultDiscountTiers is the volume discount schedule used when none is configured.
func DefaultDiscountTiers() []internal.DiscountTier {
	return []internal.DiscountTier{
		{MinQuantity: decimal.NewFromInt(10000), DiscountPercent: decimal.NewFromInt(8)},
		{MinQuantity: decimal.NewFromInt(5000), DiscountPercent: decimal.NewFromInt(5)},
		{MinQuantity: decimal.NewFromInt(2000), DiscountPercent: decimal.NewFromInt(3)},
		{MinQuantity: decimal.Zero, DiscountPercent: decimal.Zero},
	}
}

func NewReference(products []internal.CatalogProduct, tests []internal.TestPriceEntry, tiers []internal.DiscountTier) (*Reference, error) {
	seen := make(map[string]struct{}, len(products))
	for i, p := range products {
		sku := strings.TrimSpace(p.SKU)
		if sku == "" {
			return nil, fmt.Errorf("%w: product #%d has empty sku", ErrInvalidReference, i+1)
		}
		if _, ok := seen[sku]; ok {
			return nil, fmt.Errorf("%w: duplicate sku %s", ErrInvalidReference, sku)
		}
		seen[sku] = struct{}{}
		if p.BasePricePerMeter.IsNegative() {
			return nil, fmt.Errorf("%w: sku %s has negative base price", ErrInvalidReference, sku)
		}
	}

	table, err := NewTestTable(tests)
	if err != nil {
		return nil, err
	}

	ordered, err := normalizeTiers(tiers)
	if err != nil {
		return nil, err
	}

	return &Reference{index: BuildIndex(products), tests: table, tiers: ordered}, nil
}

// normalizeTiers orders tiers by descending minimum quantity and checks that a
// trailing zero-minimum tier exists so every quantity resolves to a discount.
func normalizeTiers(tiers []internal.DiscountTier) ([]internal.DiscountTier, error) {
	if len(tiers) == 0 {
		return nil, fmt.Errorf("%w: discount tier table is empty", ErrInvalidReference)
	}
	out := append([]internal.DiscountTier(nil), tiers...)
	sort.SliceStable(out, func(i, j int) bool { return out[i].MinQuantity.GreaterThan(out[j].MinQuantity) })

	hundred := decimal.NewFromInt(100)
	for i, t := range out {
		if t.MinQuantity.IsNegative() {
			return nil, fmt.Errorf("%w: negative tier minimum %s", ErrInvalidReference, t.MinQuantity)
		}
		if t.DiscountPercent.IsNegative() || t.DiscountPercent.GreaterThan(hundred) {
			return nil, fmt.Errorf("%w: tier discount %s%% out of range", ErrInvalidReference, t.DiscountPercent)
		}
		if i > 0 && out[i-1].MinQuantity.Equal(t.MinQuantity) {
			return nil, fmt.Errorf("%w: duplicate tier minimum %s", ErrInvalidReference, t.MinQuantity)
		}
	}
	if !out[len(out)-1].MinQuantity.IsZero() {
		return nil, fmt.Errorf("%w: discount tiers need a trailing tier with minimum 0", ErrInvalidReference)
	}
	return out, nil
}

// Products returns the catalog in load order. Callers must not modify it.
func (r *Reference) Products() []internal.CatalogProduct { return r.index.products }

func (r *Reference) Product(sku string) (internal.CatalogProduct, bool) { return r.index.Get(sku) }

func (r *Reference) Index() *Index { return r.index }

func (r *Reference) Tests() *TestTable { return r.tests }

// Tiers returns the discount schedule in descending minimum-quantity order.
func (r *Reference) Tiers() []internal.DiscountTier {
	return append([]internal.DiscountTier(nil), r.tiers...)
}

// WithProduct returns a copy of the snapshot with the product added or replaced in place.
func (r *Reference) WithProduct(p internal.CatalogProduct) (*Reference, error) {
	products := append([]internal.CatalogProduct(nil), r.Products()...)
	replaced := false
	for i := range products {
		if products[i].SKU == p.SKU {
			products[i] = p
			replaced = true
			break
		}
	}
	if !replaced {
		products = append(products, p)
	}
	return NewReference(products, r.tests.Entries(), r.tiers)
}

// WithoutProduct returns a copy of the snapshot without the given sku.
func (r *Reference) WithoutProduct(sku string) (*Reference, bool, error) {
	products := make([]internal.CatalogProduct, 0, len(r.Products()))
	found := false
	for _, p := range r.Products() {
		if p.SKU == sku {
			found = true
			continue
		}
		products = append(products, p)
	}
	if !found {
		return r, false, nil
	}
	next, err := NewReference(products, r.tests.Entries(), r.tiers)
	return next, true, err
}

// WithTest returns a copy of the snapshot with the test entry added or replaced in place.
func (r *Reference) WithTest(entry internal.TestPriceEntry) (*Reference, error) {
	entries := r.tests.Entries()
	replaced := false
	for i := range entries {
		if entries[i].Name == entry.Name {
			entries[i] = entry
			replaced = true
			break
		}
	}
	if !replaced {
		entries = append(entries, entry)
	}
	return NewReference(r.Products(), entries, r.tiers)
}

// WithoutTest returns a copy of the snapshot without the named test.
func (r *Reference) WithoutTest(name string) (*Reference, bool, error) {
	entries := r.tests.Entries()
	out := entries[:0]
	found := false
	for _, e := range entries {
		if e.Name == name {
			found = true
			continue
		}
		out = append(out, e)
	}
	if !found {
		return r, false, nil
	}
	next, err := NewReference(r.Products(), out, r.tiers)
	return next, true, err
}

// WithTiers returns a copy of the snapshot with a new discount schedule.
func (r *Reference) WithTiers(tiers []internal.DiscountTier) (*Reference, error) {
	return NewReference(r.Products(), r.tests.Entries(), tiers)
}
