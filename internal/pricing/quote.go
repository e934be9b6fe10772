package pricing

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"

	"rfpquote/internal"
	"rfpquote/internal/catalog"
	"rfpquote/internal/config"
)

// InputError describes a malformed quote input field.
type InputError struct {
	Field  string
	Reason string
	Err    error
}

func (e *InputError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

func (e *InputError) Unwrap() error { return e.Err }

type LineItem struct {
	SKU      string          `json:"sku"`
	Quantity decimal.Decimal `json:"quantity"`
}

type QuoteLine struct {
	SKU             string          `json:"sku"`
	Name            string          `json:"name"`
	Quantity        decimal.Decimal `json:"quantity"`
	BasePrice       decimal.Decimal `json:"base_price"`
	DiscountPercent decimal.Decimal `json:"discount_percent"`
	UnitPrice       decimal.Decimal `json:"unit_price"`
	LineTotal       decimal.Decimal `json:"line_total"`
}

// QuoteTest is a requested test. Unpriced tests stay on the quote as TBD lines.
type QuoteTest struct {
	Name         string          `json:"name"`
	Priced       bool            `json:"priced"`
	Price        decimal.Decimal `json:"price"`
	DurationDays int             `json:"duration_days"`
}

type SkippedItem struct {
	SKU      string          `json:"sku"`
	Quantity decimal.Decimal `json:"quantity"`
	Reason   string          `json:"reason"`
}

// Terms are fixed commercial annotations printed on every quote.
type Terms struct {
	ValidityDays   int    `json:"validity_days"`
	AdvancePercent int    `json:"advance_percent"`
	BalancePercent int    `json:"balance_percent"`
	Payment        string `json:"payment"`
}

var DefaultTerms = Terms{
	ValidityDays:   30,
	AdvancePercent: 30,
	BalancePercent: 70,
	Payment:        "30% advance, 70% on delivery",
}

type Quote struct {
	ID               string          `json:"id"`
	CreatedAt        time.Time       `json:"created_at"`
	Policy           Policy          `json:"policy"`
	Lines            []QuoteLine     `json:"lines"`
	Tests            []QuoteTest     `json:"tests"`
	Skipped          []SkippedItem   `json:"skipped"`
	MaterialSubtotal decimal.Decimal `json:"material_subtotal"`
	TestSubtotal     decimal.Decimal `json:"test_subtotal"`
	Subtotal         decimal.Decimal `json:"subtotal"`
	Overhead         decimal.Decimal `json:"overhead"`
	Contingency      decimal.Decimal `json:"contingency"`
	Margin           decimal.Decimal `json:"margin"`
	GrandTotal       decimal.Decimal `json:"grand_total"`
	Terms            Terms           `json:"terms"`
}

// Unpriced lists the names of requested tests missing from the price table.
func (q Quote) Unpriced() []string {
	out := []string{}
	for _, t := range q.Tests {
		if !t.Priced {
			out = append(out, t.Name)
		}
	}
	return out
}

type Options struct {
	Policy Policy
	Terms  *Terms
	Now    func() time.Time
}

type Calculator struct {
	policy Policy
	terms  Terms
	now    func() time.Time
}

func NewCalculator(opts Options) (*Calculator, error) {
	if _, err := opts.Policy.Apply(decimal.Zero); err != nil {
		return nil, err
	}
	c := &Calculator{policy: opts.Policy, terms: DefaultTerms, now: time.Now}
	if opts.Terms != nil {
		c.terms = *opts.Terms
	}
	if opts.Now != nil {
		c.now = opts.Now
	}
	return c, nil
}

func NewCalculatorFromConfig(cfg config.Config) (*Calculator, error) {
	policy, err := ParsePolicy(cfg.MarkupPolicy)
	if err != nil {
		return nil, err
	}
	return NewCalculator(Options{Policy: policy})
}

func (c *Calculator) Policy() Policy { return c.policy }

// WithPolicy returns a calculator sharing everything but the markup policy.
func (c *Calculator) WithPolicy(p Policy) (*Calculator, error) {
	if _, err := p.Apply(decimal.Zero); err != nil {
		return nil, err
	}
	next := *c
	next.policy = p
	return &next, nil
}

// Quote prices items and tests against ref. Unknown SKUs are skipped and unknown
// tests are kept as unpriced lines; only malformed items fail the call.
func (c *Calculator) Quote(ref *catalog.Reference, items []LineItem, testNames []string) (Quote, error) {
	if ref == nil {
		return Quote{}, errors.New("no reference data loaded")
	}
	if err := validateItems(items, testNames); err != nil {
		return Quote{}, err
	}

	q := Quote{
		ID:               uuid.NewString(),
		CreatedAt:        c.now().UTC(),
		Policy:           c.policy,
		Lines:            []QuoteLine{},
		Tests:            []QuoteTest{},
		Skipped:          []SkippedItem{},
		MaterialSubtotal: decimal.Zero,
		TestSubtotal:     decimal.Zero,
		Terms:            c.terms,
	}

	tiers := ref.Tiers()
	for _, item := range items {
		sku := strings.TrimSpace(item.SKU)
		p, ok := ref.Product(sku)
		if !ok {
			log.Warn().Str("sku", sku).Str("quantity", item.Quantity.String()).Msg("unknown sku skipped from quote")
			q.Skipped = append(q.Skipped, SkippedItem{SKU: sku, Quantity: item.Quantity, Reason: "sku not found in catalog"})
			continue
		}

		line := PriceLine(p.SKU, p.Name, p.BasePricePerMeter, item.Quantity, tiers)
		q.Lines = append(q.Lines, line)
		q.MaterialSubtotal = q.MaterialSubtotal.Add(line.LineTotal)
	}

	for _, name := range testNames {
		name = strings.TrimSpace(name)
		entry, ok := ref.Tests().Exact(name)
		if !ok {
			log.Info().Str("test", name).Msg("test not in price table, quoted as TBD")
			q.Tests = append(q.Tests, QuoteTest{Name: name, Price: decimal.Zero})
			continue
		}
		q.Tests = append(q.Tests, QuoteTest{Name: entry.Name, Priced: true, Price: entry.Price, DurationDays: entry.DurationDays})
		q.TestSubtotal = q.TestSubtotal.Add(entry.Price)
	}

	q.Subtotal = q.MaterialSubtotal.Add(q.TestSubtotal)
	markup, err := c.policy.Apply(q.Subtotal)
	if err != nil {
		return Quote{}, err
	}
	q.Overhead = markup.Overhead
	q.Contingency = markup.Contingency
	q.Margin = markup.Margin
	q.GrandTotal = markup.Total

	return q, nil
}

// PriceLine computes one material line with the volume discount for qty.
func PriceLine(sku, name string, base, qty decimal.Decimal, tiers []internal.DiscountTier) QuoteLine {
	discount := DiscountFor(tiers, qty)
	unit := DiscountedUnitPrice(base, discount)
	return QuoteLine{
		SKU:             sku,
		Name:            name,
		Quantity:        qty,
		BasePrice:       base,
		DiscountPercent: discount,
		UnitPrice:       unit,
		LineTotal:       unit.Mul(qty),
	}
}

func validateItems(items []LineItem, testNames []string) error {
	for i, item := range items {
		if strings.TrimSpace(item.SKU) == "" {
			return &InputError{Field: fmt.Sprintf("products[%d].sku", i), Reason: "empty sku"}
		}
		if !item.Quantity.IsPositive() {
			return &InputError{Field: fmt.Sprintf("products[%d].quantity", i), Reason: "quantity must be positive"}
		}
	}
	for i, name := range testNames {
		if strings.TrimSpace(name) == "" {
			return &InputError{Field: fmt.Sprintf("tests[%d]", i), Reason: "empty test name"}
		}
	}
	return nil
}
