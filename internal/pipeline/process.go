package pipeline

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"

	"rfpquote/internal"
	"rfpquote/internal/catalog"
	"rfpquote/internal/config"
	"rfpquote/internal/matching"
	"rfpquote/internal/pricing"
	"rfpquote/internal/rfp"
	"rfpquote/internal/storage"
	"rfpquote/internal/util"
)

var ErrRFPNotFound = errors.New("rfp not found")

// RequirementAnalysis is one scope-of-supply line after matching.
type RequirementAnalysis struct {
	LineNo      int              `json:"line_no"`
	Item        string           `json:"item"`
	Quantity    string           `json:"quantity"`
	QuantityM   *decimal.Decimal `json:"quantity_m,omitempty"`
	Defaulted   bool             `json:"quantity_defaulted"`
	Match       matching.Report  `json:"match"`
	SelectedSKU string           `json:"selected_sku,omitempty"`
	Problem     string           `json:"problem,omitempty"`
}

type Analysis struct {
	RFP           internal.RFP          `json:"rfp"`
	Qualification rfp.Qualification     `json:"qualification"`
	Requirements  []RequirementAnalysis `json:"requirements"`
	Tests         []string              `json:"tests"`
	Quote         pricing.Quote         `json:"quote"`
	Problems      []string              `json:"problems"`
}

// Analyzer runs the technical and pricing stages over one RFP against the
// reference snapshot current at call time.
type Analyzer struct {
	db         *storage.DB
	holder     *catalog.Holder
	matcher    *matching.Matcher
	calc       *pricing.Calculator
	defaultQty decimal.Decimal
	now        func() time.Time
}

func NewAnalyzer(db *storage.DB, holder *catalog.Holder, calc *pricing.Calculator, cfg config.Config) *Analyzer {
	qty := decimal.NewFromFloat(cfg.DefaultQuantityM)
	if !qty.IsPositive() {
		qty = decimal.NewFromInt(1000)
	}
	return &Analyzer{
		db:         db,
		holder:     holder,
		matcher:    matching.NewMatcher(cfg),
		calc:       calc,
		defaultQty: qty,
		now:        time.Now,
	}
}

// AnalyzeStored loads the RFP by id from storage, analyses it and records the quote.
func (a *Analyzer) AnalyzeStored(id string) (Analysis, error) {
	if a.db == nil {
		return Analysis{}, errors.New("analyzer has no storage")
	}
	r, err := a.db.GetRFP(strings.TrimSpace(id))
	if err != nil {
		return Analysis{}, err
	}
	if r == nil {
		return Analysis{}, fmt.Errorf("%w: %s", ErrRFPNotFound, id)
	}
	analysis, err := a.Analyze(*r)
	if err != nil {
		return Analysis{}, err
	}
	if err := a.Save(analysis); err != nil {
		return Analysis{}, err
	}
	return analysis, nil
}

func (a *Analyzer) Analyze(r internal.RFP) (Analysis, error) {
	start := time.Now()
	ref := a.holder.Current()
	if ref == nil {
		return Analysis{}, errors.New("no reference data loaded")
	}

	analysis := Analysis{
		RFP:           r,
		Qualification: rfp.Qualify(r, a.now()),
		Requirements:  make([]RequirementAnalysis, 0, len(r.ScopeOfSupply)),
		Problems:      []string{},
	}

	items := make([]pricing.LineItem, 0, len(r.ScopeOfSupply))
	for i, scope := range r.ScopeOfSupply {
		req := RequirementAnalysis{LineNo: i + 1, Item: scope.Item, Quantity: scope.Quantity}
		req.Match = a.matcher.Match(scope.Item, ref.Products())

		qty, defaulted, err := a.quantity(scope.Quantity)
		req.Defaulted = defaulted
		if err != nil {
			req.Problem = err.Error()
		} else {
			req.QuantityM = &qty
		}

		top, matched := req.Match.Top()
		switch {
		case !matched && req.Match.Status == matching.StatusNoAttributes:
			req.Problem = joinProblem(req.Problem, "no cable attributes recognised")
		case !matched:
			req.Problem = joinProblem(req.Problem, "no catalog product matched")
		default:
			req.SelectedSKU = top.SKU
		}

		if req.Problem != "" {
			analysis.Problems = append(analysis.Problems, fmt.Sprintf("line %d (%s): %s", req.LineNo, scope.Item, req.Problem))
		}
		if req.SelectedSKU != "" && req.QuantityM != nil {
			items = append(items, pricing.LineItem{SKU: req.SelectedSKU, Quantity: *req.QuantityM})
		}
		analysis.Requirements = append(analysis.Requirements, req)
	}

	analysis.Tests = testsFor(ref, r.TestingRequirements)
	quote, err := a.calc.Quote(ref, items, analysis.Tests)
	if err != nil {
		return Analysis{}, err
	}
	analysis.Quote = quote

	log.Info().
		Str("rfp", r.ID).
		Int("requirements", len(analysis.Requirements)).
		Int("priced_lines", len(quote.Lines)).
		Int("problems", len(analysis.Problems)).
		Str("grand_total", quote.GrandTotal.StringFixed(2)).
		Dur("took", time.Since(start)).
		Msg("rfp analysed")
	return analysis, nil
}

// Save records the analysis as a quote keyed by the quote id.
func (a *Analyzer) Save(analysis Analysis) error {
	if a.db == nil {
		return nil
	}
	rfpID := analysis.RFP.ID
	return a.db.InsertQuote(analysis.Quote.ID, &rfpID, string(analysis.Quote.Policy), analysis.Quote.GrandTotal, analysis)
}

// quantity parses a scope quantity. Blank quantities fall back to the configured
// default; malformed ones are an error so the line is reported instead of priced.
func (a *Analyzer) quantity(raw string) (decimal.Decimal, bool, error) {
	if strings.TrimSpace(raw) == "" {
		return a.defaultQty, true, nil
	}
	qty, err := util.ParseQuantity(raw)
	if err != nil {
		return decimal.Zero, false, err
	}
	if !qty.IsPositive() {
		return decimal.Zero, false, fmt.Errorf("%w: %q is not positive", util.ErrInvalidQuantity, raw)
	}
	return qty, false, nil
}

// testsFor maps RFP testing requirements onto table tests. Requirements that
// match nothing are kept verbatim so they show up as unpriced on the quote.
func testsFor(ref *catalog.Reference, requirements []string) []string {
	out := []string{}
	seen := map[string]struct{}{}
	add := func(name string) {
		key := strings.ToLower(name)
		if _, ok := seen[key]; ok {
			return
		}
		seen[key] = struct{}{}
		out = append(out, name)
	}
	for _, req := range requirements {
		req = strings.TrimSpace(req)
		if req == "" {
			continue
		}
		names := ref.Tests().Recommend([]string{req})
		if len(names) == 0 {
			add(req)
			continue
		}
		for _, name := range names {
			add(name)
		}
	}
	return out
}

func joinProblem(a, b string) string {
	if a == "" {
		return b
	}
	return a + "; " + b
}
