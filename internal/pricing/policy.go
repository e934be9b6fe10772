package pricing

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"

	"rfpquote/internal/config"
)

// Policy names the markup formula applied on top of the material+test subtotal.
type Policy string

const (
	// PolicyOverheadContingency adds 5% overhead and 3% contingency.
	PolicyOverheadContingency Policy = config.PolicyOverheadContingency
	// PolicyFlatMargin adds a 20% margin.
	PolicyFlatMargin Policy = config.PolicyFlatMargin
)

var (
	OverheadRate    = decimal.RequireFromString("0.05")
	ContingencyRate = decimal.RequireFromString("0.03")
	MarginRate      = decimal.RequireFromString("0.20")
)

func ParsePolicy(s string) (Policy, error) {
	switch p := Policy(strings.ToLower(strings.TrimSpace(s))); p {
	case PolicyOverheadContingency, PolicyFlatMargin:
		return p, nil
	default:
		return "", fmt.Errorf("unknown markup policy %q", s)
	}
}

// Markup holds the components a policy adds. Components a policy does not use stay zero.
type Markup struct {
	Overhead    decimal.Decimal
	Contingency decimal.Decimal
	Margin      decimal.Decimal
	Total       decimal.Decimal
}

func (p Policy) Apply(subtotal decimal.Decimal) (Markup, error) {
	switch p {
	case PolicyOverheadContingency:
		overhead := subtotal.Mul(OverheadRate)
		contingency := subtotal.Mul(ContingencyRate)
		return Markup{
			Overhead:    overhead,
			Contingency: contingency,
			Total:       subtotal.Add(overhead).Add(contingency),
		}, nil
	case PolicyFlatMargin:
		margin := subtotal.Mul(MarginRate)
		return Markup{Margin: margin, Total: subtotal.Add(margin)}, nil
	default:
		return Markup{}, fmt.Errorf("unknown markup policy %q", string(p))
	}
}

func (p Policy) Label() string {
	switch p {
	case PolicyOverheadContingency:
		return "Overhead 5% + Contingency 3%"
	case PolicyFlatMargin:
		return "Margin 20%"
	default:
		return string(p)
	}
}
