package internal

import (
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"
)

// Spec attribute keys used by the matcher.
const (
	SpecVoltageGrade  = "voltage_grade"
	SpecInsulation    = "insulation"
	SpecCores         = "cores"
	SpecConductorSize = "conductor_size_sqmm"
)

type CatalogProduct struct {
	SKU               string          `json:"sku" yaml:"sku"`
	Name              string          `json:"name" yaml:"name"`
	Category          string          `json:"category" yaml:"category"`
	BasePricePerMeter decimal.Decimal `json:"base_price_per_meter" yaml:"base_price_per_meter"`
	Specs             map[string]any  `json:"specs" yaml:"specs"`
}

// SpecString returns a scalar spec value rendered as a string.
func (p CatalogProduct) SpecString(key string) (string, bool) {
	v, ok := p.Specs[key]
	if !ok || v == nil {
		return "", false
	}
	switch t := v.(type) {
	case string:
		return t, true
	case []any, []string:
		return "", false
	default:
		return fmt.Sprint(t), true
	}
}

// SpecNumber returns a numeric spec value. Numeric strings are accepted.
func (p CatalogProduct) SpecNumber(key string) (float64, bool) {
	v, ok := p.Specs[key]
	if !ok || v == nil {
		return 0, false
	}
	switch t := v.(type) {
	case float64:
		return t, true
	case float32:
		return float64(t), true
	case int:
		return float64(t), true
	case int64:
		return float64(t), true
	case uint64:
		return float64(t), true
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(t), 64)
		return f, err == nil
	default:
		return 0, false
	}
}

// SpecList returns a list spec value (e.g. certifications). Scalars yield a one-element list.
func (p CatalogProduct) SpecList(key string) []string {
	v, ok := p.Specs[key]
	if !ok || v == nil {
		return nil
	}
	switch t := v.(type) {
	case []string:
		return append([]string(nil), t...)
	case []any:
		out := make([]string, 0, len(t))
		for _, item := range t {
			out = append(out, fmt.Sprint(item))
		}
		return out
	default:
		s, _ := p.SpecString(key)
		return []string{s}
	}
}

// SpecDisplay renders any spec value for tables; lists are joined by ", ".
func (p CatalogProduct) SpecDisplay(key string) string {
	v, ok := p.Specs[key]
	if !ok || v == nil {
		return "N/A"
	}
	switch v.(type) {
	case []any, []string:
		return strings.Join(p.SpecList(key), ", ")
	default:
		s, _ := p.SpecString(key)
		return s
	}
}

// SpecKeys returns the spec keys in sorted order.
func (p CatalogProduct) SpecKeys() []string {
	keys := make([]string, 0, len(p.Specs))
	for k := range p.Specs {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

type TestPriceEntry struct {
	Name         string          `json:"name" yaml:"name"`
	Price        decimal.Decimal `json:"price" yaml:"price"`
	DurationDays int             `json:"duration_days" yaml:"duration_days"`
}

type DiscountTier struct {
	MinQuantity     decimal.Decimal `json:"min_quantity" yaml:"min_quantity"`
	DiscountPercent decimal.Decimal `json:"discount_percent" yaml:"discount_percent"`
}

type ScopeItem struct {
	Item     string `json:"item" yaml:"item"`
	Quantity string `json:"quantity" yaml:"quantity"`
}

type RFP struct {
	ID                  string         `json:"id" yaml:"id"`
	Title               string         `json:"title" yaml:"title"`
	Client              string         `json:"client" yaml:"client"`
	SubmissionDeadline  string         `json:"submission_deadline" yaml:"submission_deadline"`
	EstimatedValue      string         `json:"estimated_value" yaml:"estimated_value"`
	URL                 string         `json:"url,omitempty" yaml:"url,omitempty"`
	ScopeOfSupply       []ScopeItem    `json:"scope_of_supply,omitempty" yaml:"scope_of_supply,omitempty"`
	TechnicalSpecs      map[string]any `json:"technical_specs,omitempty" yaml:"technical_specs,omitempty"`
	TestingRequirements []string       `json:"testing_requirements,omitempty" yaml:"testing_requirements,omitempty"`
}

// DeadlineLayout is the date format of RFP submission deadlines.
const DeadlineLayout = "2006-01-02"

type DocumentSource string

const (
	SourceText      DocumentSource = "text"
	SourceHTMLTable DocumentSource = "html_table"
	SourceXLSX      DocumentSource = "xlsx"
	SourcePDF       DocumentSource = "pdf"
	SourceEmail     DocumentSource = "email"
)

// ExtractedLine is a scope-of-supply candidate pulled out of a raw RFP document.
type ExtractedLine struct {
	LineNo   int
	Source   DocumentSource
	RawLine  string
	Item     string
	Quantity *string
	Meta     map[string]any
}
