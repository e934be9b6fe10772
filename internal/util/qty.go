package util

import (
	"errors"
	"fmt"
	"regexp"
	"strings"

	"github.com/shopspring/decimal"
)

// ErrInvalidQuantity is returned when a quantity string has no numeric value left
// after separators and unit suffixes are removed.
var ErrInvalidQuantity = errors.New("invalid quantity")

var (
	unitSuffixPattern = regexp.MustCompile(`(?i)\s*(kms?|kilomet(?:er|re)s?|rmt|rm|mtrs?|met(?:er|re)s?|m)\.?$`)
	plainNumber       = regexp.MustCompile(`^\d+(?:\.\d+)?$`)
	withUnitPattern   = regexp.MustCompile(`(?i)(?:^|[^0-9.,])(\d{1,3}(?:,\d{2,3})+(?:\.\d+)?|\d+(?:\.\d+)?)\s*(kms?|rmt|rm|mtrs?|met(?:er|re)s?|m)\b`)
)

// ParseQuantity converts an upstream quantity string such as "5,000m", "1 200 meters"
// or "2.5 km" into meters. Thousands separators and a trailing unit are stripped first;
// anything else left over yields ErrInvalidQuantity.
func ParseQuantity(input string) (decimal.Decimal, error) {
	raw := strings.TrimSpace(strings.NewReplacer("\u00a0", " ", "\u202f", " ").Replace(input))
	if raw == "" {
		return decimal.Zero, fmt.Errorf("%w: empty", ErrInvalidQuantity)
	}

	multiplier := decimal.NewFromInt(1)
	s := raw
	if m := unitSuffixPattern.FindStringSubmatch(s); m != nil {
		unit := strings.ToLower(m[1])
		if strings.HasPrefix(unit, "km") || strings.HasPrefix(unit, "kilomet") {
			multiplier = decimal.NewFromInt(1000)
		}
		s = s[:len(s)-len(m[0])]
	}
	s = strings.NewReplacer(",", "", " ", "", "_", "").Replace(s)

	if !plainNumber.MatchString(s) {
		return decimal.Zero, fmt.Errorf("%w: %q", ErrInvalidQuantity, input)
	}
	value, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, fmt.Errorf("%w: %q", ErrInvalidQuantity, input)
	}
	return value.Mul(multiplier), nil
}

type ParsedQty struct {
	Qty    *decimal.Decimal
	Unit   *string
	QtyRaw *string
}

// ParseQty finds the last "<number> <length unit>" token on a document line.
// QtyRaw is the token as written.
// Numbers without a length unit are ignored so that sizes ("120 sqmm") and core
// counts ("3C") are never taken for quantities.
func ParseQty(line string) ParsedQty {
	line = strings.NewReplacer("\u00a0", " ", "\u202f", " ").Replace(line)

	matches := withUnitPattern.FindAllStringSubmatchIndex(line, -1)
	if len(matches) == 0 {
		return ParsedQty{}
	}
	last := matches[len(matches)-1]
	qtyRaw := line[last[2]:last[5]]
	unit := normalizeUnit(line[last[4]:last[5]])

	out := ParsedQty{Unit: &unit, QtyRaw: &qtyRaw}
	if value, err := ParseQuantity(qtyRaw); err == nil {
		out.Qty = &value
	}
	return out
}

func normalizeUnit(unit string) string {
	u := strings.ToLower(strings.TrimSpace(unit))
	switch {
	case strings.HasPrefix(u, "km"):
		return "km"
	default:
		return "m"
	}
}
