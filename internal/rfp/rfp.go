package rfp

import (
	"fmt"
	"math"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"rfpquote/internal"
)

const (
	// MinLeadDays is the shortest lead time a bid is worth qualifying for.
	MinLeadDays = 7
	// PriorityLimit caps the prioritised list.
	PriorityLimit = 5
)

var (
	crore = decimal.NewFromInt(10_000_000)
	lakh  = decimal.NewFromInt(100_000)

	reValueNumber = regexp.MustCompile(`\d[\d,]*(?:\.\d+)?`)
	reCrore       = regexp.MustCompile(`(?i)\b(?:cr|crs|crore|crores)\b`)
	reLakh        = regexp.MustCompile(`(?i)\b(?:l|lac|lacs|lakh|lakhs)\b`)
	reGeneratedID = regexp.MustCompile(`^RFP-(\d{4})-(\d+)$`)
)

// Listing is an RFP due inside the scan window.
type Listing struct {
	internal.RFP
	DaysRemaining int `json:"days_remaining"`
}

type Qualification struct {
	Qualified bool   `json:"qualified"`
	Reason    string `json:"reason"`
}

type Priority struct {
	internal.RFP
	DaysRemaining *int `json:"days_remaining,omitempty"`
	ValueScore    int  `json:"value_score"`
	DeadlineScore int  `json:"deadline_score"`
	Score         int  `json:"priority_score"`
}

// DaysUntil counts whole calendar days from now's date to the deadline date.
func DaysUntil(deadline string, now time.Time) (int, error) {
	d, err := time.ParseInLocation(internal.DeadlineLayout, strings.TrimSpace(deadline), now.Location())
	if err != nil {
		return 0, fmt.Errorf("parse deadline %q: %w", deadline, err)
	}
	today := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())
	return int(math.Round(d.Sub(today).Hours() / 24)), nil
}

// Scan returns the RFPs due between today and today+windowDays, soonest first.
// RFPs with an unreadable deadline are left out.
func Scan(rfps []internal.RFP, now time.Time, windowDays int) []Listing {
	out := []Listing{}
	for _, r := range rfps {
		days, err := DaysUntil(r.SubmissionDeadline, now)
		if err != nil || days < 0 || days > windowDays {
			continue
		}
		out = append(out, Listing{RFP: r, DaysRemaining: days})
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].DaysRemaining < out[j].DaysRemaining })
	return out
}

func Qualify(r internal.RFP, now time.Time) Qualification {
	if strings.TrimSpace(r.EstimatedValue) == "" {
		return Qualification{Reason: "no estimated value"}
	}
	if strings.TrimSpace(r.SubmissionDeadline) == "" {
		return Qualification{Qualified: true, Reason: "no deadline given"}
	}
	days, err := DaysUntil(r.SubmissionDeadline, now)
	if err != nil {
		return Qualification{Reason: "unreadable deadline"}
	}
	if days < MinLeadDays {
		return Qualification{Reason: fmt.Sprintf("deadline in %d days, need at least %d", days, MinLeadDays)}
	}
	return Qualification{Qualified: true, Reason: fmt.Sprintf("%d days to deadline", days)}
}

// Prioritize scores every RFP on value and deadline and returns the best five.
// Equal scores keep input order.
func Prioritize(rfps []internal.RFP, now time.Time) []Priority {
	out := make([]Priority, 0, len(rfps))
	for _, r := range rfps {
		p := Priority{RFP: r}
		if v, ok := ParseEstimatedValue(r.EstimatedValue); ok {
			p.ValueScore = valueScore(v)
		}
		if days, err := DaysUntil(r.SubmissionDeadline, now); err == nil {
			p.DaysRemaining = &days
			p.DeadlineScore = deadlineScore(days)
		}
		p.Score = p.ValueScore + p.DeadlineScore
		out = append(out, p)
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Score > out[j].Score })
	if len(out) > PriorityLimit {
		out = out[:PriorityLimit]
	}
	return out
}

func valueScore(v decimal.Decimal) int {
	switch {
	case v.GreaterThanOrEqual(crore.Mul(decimal.NewFromInt(5))):
		return 50
	case v.GreaterThanOrEqual(crore):
		return 40
	case v.GreaterThanOrEqual(lakh.Mul(decimal.NewFromInt(50))):
		return 30
	default:
		return 20
	}
}

func deadlineScore(days int) int {
	switch {
	case days >= 30 && days <= 60:
		return 50
	case days >= 15 && days < 30:
		return 40
	case days > 60 && days <= 90:
		return 35
	default:
		return 20
	}
}

// ParseEstimatedValue reads Indian-style amounts such as "₹4.5 Cr", "₹75 Lakh"
// or "₹12,50,000" into rupees.
func ParseEstimatedValue(s string) (decimal.Decimal, bool) {
	num := reValueNumber.FindString(s)
	if num == "" {
		return decimal.Zero, false
	}
	v, err := decimal.NewFromString(strings.ReplaceAll(num, ",", ""))
	if err != nil {
		return decimal.Zero, false
	}
	rest := s[strings.Index(s, num)+len(num):]
	switch {
	case reCrore.MatchString(rest):
		v = v.Mul(crore)
	case reLakh.MatchString(rest):
		v = v.Mul(lakh)
	}
	return v, true
}

// NextID returns the next RFP-YYYY-NNNN id for year.
func NextID(rfps []internal.RFP, year int) string {
	max := 0
	for _, r := range rfps {
		m := reGeneratedID.FindStringSubmatch(r.ID)
		if m == nil || m[1] != strconv.Itoa(year) {
			continue
		}
		if n, err := strconv.Atoi(m[2]); err == nil && n > max {
			max = n
		}
	}
	return fmt.Sprintf("RFP-%d-%04d", year, max+1)
}

func Find(rfps []internal.RFP, id string) (internal.RFP, bool) {
	id = strings.TrimSpace(id)
	for _, r := range rfps {
		if strings.EqualFold(r.ID, id) {
			return r, true
		}
	}
	return internal.RFP{}, false
}
