package matching

import (
	"math"
	"sort"
	"strconv"

	"github.com/shopspring/decimal"

	"rfpquote/internal"
	"rfpquote/internal/config"
	"rfpquote/internal/util"
)

// DefaultTopN is the number of ranked candidates kept per requirement.
const DefaultTopN = 3

type Attribute string

const (
	AttrVoltage    Attribute = "voltage"
	AttrInsulation Attribute = "insulation"
	AttrCores      Attribute = "cores"
	AttrSize       Attribute = "size"
)

type Outcome string

const (
	OutcomeExact    Outcome = "exact-match"
	OutcomeClose    Outcome = "close-match"
	OutcomeMismatch Outcome = "mismatch"
)

type Status string

const (
	StatusMatched      Status = "matched"
	StatusNoMatch      Status = "no_match"
	StatusNoAttributes Status = "no_attributes"
)

type AttributeOutcome struct {
	Attribute Attribute `json:"attribute"`
	Outcome   Outcome   `json:"outcome"`
	Points    float64   `json:"points"`
	Requested string    `json:"requested"`
	Offered   string    `json:"offered"`
}

type MatchResult struct {
	SKU       string             `json:"sku"`
	Name      string             `json:"name"`
	UnitPrice decimal.Decimal    `json:"unit_price"`
	Score     float64            `json:"score"`
	Outcomes  []AttributeOutcome `json:"outcomes"`
}

// Report is the ranked outcome for one requirement text. Status tells a requirement
// with no recognised attributes apart from one that simply matched nothing.
type Report struct {
	Requirement string        `json:"requirement"`
	Parsed      Requirement   `json:"parsed"`
	Status      Status        `json:"status"`
	Results     []MatchResult `json:"results"`
}

func (r Report) Top() (MatchResult, bool) {
	if len(r.Results) == 0 {
		return MatchResult{}, false
	}
	return r.Results[0], true
}

type Matcher struct {
	topN int
}

func NewMatcher(cfg config.Config) *Matcher {
	topN := cfg.MatchTopN
	if topN <= 0 {
		topN = DefaultTopN
	}
	return &Matcher{topN: topN}
}

// Match parses text and ranks products against it with the default top-3 cut.
func Match(text string, products []internal.CatalogProduct) []MatchResult {
	return (&Matcher{topN: DefaultTopN}).Match(text, products).Results
}

func (m *Matcher) Match(text string, products []internal.CatalogProduct) Report {
	req := ParseRequirement(text)
	report := m.Rank(req, products)
	report.Requirement = text
	return report
}

// Rank scores every product, drops zero scores and keeps the best topN. Ties keep
// catalog order.
func (m *Matcher) Rank(req Requirement, products []internal.CatalogProduct) Report {
	report := Report{Parsed: req, Results: []MatchResult{}}
	if req.Empty() {
		report.Status = StatusNoAttributes
		return report
	}

	results := make([]MatchResult, 0, len(products))
	for _, p := range products {
		res, ok := Score(req, p)
		if !ok || res.Score <= 0 {
			continue
		}
		results = append(results, res)
	}

	sort.SliceStable(results, func(i, j int) bool { return results[i].Score > results[j].Score })
	if len(results) > m.topN {
		results = results[:m.topN]
	}

	report.Results = results
	report.Status = StatusMatched
	if len(results) == 0 {
		report.Status = StatusNoMatch
	}
	return report
}

// Score rates one product against req. It reports false when req has no
// recognised attributes, since there is nothing to score against.
func Score(req Requirement, p internal.CatalogProduct) (MatchResult, bool) {
	total := req.Criteria()
	if total == 0 {
		return MatchResult{}, false
	}

	res := MatchResult{SKU: p.SKU, Name: p.Name, UnitPrice: p.BasePricePerMeter, Outcomes: make([]AttributeOutcome, 0, total)}
	points := 0.0
	add := func(attr Attribute, requested string, pts float64) {
		points += pts
		res.Outcomes = append(res.Outcomes, AttributeOutcome{
			Attribute: attr,
			Outcome:   outcomeFor(pts),
			Points:    pts,
			Requested: requested,
			Offered:   offered(p, attr),
		})
	}

	if req.Voltage != nil {
		pts := 0.0
		if v, ok := p.SpecString(internal.SpecVoltageGrade); ok && v == string(*req.Voltage) {
			pts = 1
		}
		add(AttrVoltage, string(*req.Voltage), pts)
	}

	if req.Insulation != nil {
		pts := 0.0
		if v, ok := p.SpecString(internal.SpecInsulation); ok && util.ContainsFold(v, string(*req.Insulation)) {
			pts = 1
		}
		add(AttrInsulation, string(*req.Insulation), pts)
	}

	if req.Cores != nil {
		add(AttrCores, strconv.Itoa(*req.Cores), scoreCores(*req.Cores, p))
	}

	if req.SizeSqmm != nil {
		add(AttrSize, strconv.FormatFloat(*req.SizeSqmm, 'f', -1, 64), scoreSize(*req.SizeSqmm, p))
	}

	res.Score = points / float64(total) * 100
	return res, true
}

func scoreCores(want int, p internal.CatalogProduct) float64 {
	have, ok := p.SpecNumber(internal.SpecCores)
	if !ok {
		return 0
	}
	if have == float64(want) {
		return 1
	}
	if have != 0 && math.Abs(have-float64(want)) <= 2 {
		return 0.5
	}
	return 0
}

func scoreSize(want float64, p internal.CatalogProduct) float64 {
	have, ok := p.SpecNumber(internal.SpecConductorSize)
	if !ok {
		return 0
	}
	if have == want {
		return 1
	}
	// The relative gap is undefined for a zero request.
	if want == 0 || have == 0 {
		return 0
	}
	if math.Abs(have-want)/want <= 0.25 {
		return 0.5
	}
	return 0
}

func outcomeFor(points float64) Outcome {
	switch {
	case points >= 1:
		return OutcomeExact
	case points > 0:
		return OutcomeClose
	default:
		return OutcomeMismatch
	}
}

func offered(p internal.CatalogProduct, attr Attribute) string {
	switch attr {
	case AttrVoltage:
		return p.SpecDisplay(internal.SpecVoltageGrade)
	case AttrInsulation:
		return p.SpecDisplay(internal.SpecInsulation)
	case AttrCores:
		return p.SpecDisplay(internal.SpecCores)
	default:
		return p.SpecDisplay(internal.SpecConductorSize)
	}
}
