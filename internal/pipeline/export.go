package pipeline

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/shopspring/decimal"
	"github.com/xuri/excelize/v2"

	"rfpquote/internal/matching"
	"rfpquote/internal/util"
)

const (
	SheetMatches = "Matches"
	SheetQuote   = "Quote"
)

// ExportAnalysisToXLSX writes one row per ranked candidate on "Matches" and the
// priced quote on "Quote".
func ExportAnalysisToXLSX(a Analysis, outputPath string) error {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName(f.GetSheetName(0), SheetMatches); err != nil {
		return err
	}
	if _, err := f.NewSheet(SheetQuote); err != nil {
		return err
	}

	writeRow(f, SheetMatches, 1, []any{
		"line_no", "requirement", "quantity", "quantity_m", "status", "rank", "sku", "name",
		"score", "voltage", "insulation", "cores", "size", "selected", "problem",
	})
	r := 2
	for _, req := range a.Requirements {
		qtyM := ""
		if req.QuantityM != nil {
			qtyM = req.QuantityM.String()
		}
		if len(req.Match.Results) == 0 {
			writeRow(f, SheetMatches, r, []any{req.LineNo, req.Item, req.Quantity, qtyM, string(req.Match.Status), "", "", "", "", "", "", "", "", "", req.Problem})
			r++
			continue
		}
		for rank, res := range req.Match.Results {
			selected := ""
			if res.SKU == req.SelectedSKU && rank == 0 {
				selected = "yes"
			}
			writeRow(f, SheetMatches, r, []any{
				req.LineNo, req.Item, req.Quantity, qtyM, string(req.Match.Status), rank + 1, res.SKU, res.Name,
				res.Score,
				outcomeCell(res, matching.AttrVoltage),
				outcomeCell(res, matching.AttrInsulation),
				outcomeCell(res, matching.AttrCores),
				outcomeCell(res, matching.AttrSize),
				selected, req.Problem,
			})
			r++
		}
	}

	q := a.Quote
	writeRow(f, SheetQuote, 1, []any{"RFP", a.RFP.ID, a.RFP.Title})
	writeRow(f, SheetQuote, 2, []any{"Quote", q.ID, q.Policy.Label()})
	writeRow(f, SheetQuote, 4, []any{"sku", "name", "quantity_m", "base_price", "discount_percent", "unit_price", "line_total"})
	r = 5
	for _, line := range q.Lines {
		writeRow(f, SheetQuote, r, []any{line.SKU, line.Name, num(line.Quantity), num(line.BasePrice), num(line.DiscountPercent), num(line.UnitPrice), num(line.LineTotal)})
		r++
	}
	r++
	writeRow(f, SheetQuote, r, []any{"test", "price", "duration_days"})
	r++
	for _, t := range q.Tests {
		if t.Priced {
			writeRow(f, SheetQuote, r, []any{t.Name, num(t.Price), t.DurationDays})
		} else {
			writeRow(f, SheetQuote, r, []any{t.Name, "TBD", "TBD"})
		}
		r++
	}
	r++
	for _, total := range []struct {
		label string
		value decimal.Decimal
	}{
		{"material_subtotal", q.MaterialSubtotal},
		{"test_subtotal", q.TestSubtotal},
		{"subtotal", q.Subtotal},
		{"overhead", q.Overhead},
		{"contingency", q.Contingency},
		{"margin", q.Margin},
		{"grand_total", q.GrandTotal},
	} {
		writeRow(f, SheetQuote, r, []any{total.label, num(total.value)})
		r++
	}
	writeRow(f, SheetQuote, r+1, []any{"terms", fmt.Sprintf("Valid %d days; %s", q.Terms.ValidityDays, q.Terms.Payment)})

	if err := os.MkdirAll(filepath.Dir(outputPath), 0o755); err != nil {
		return err
	}
	return f.SaveAs(outputPath)
}

func writeRow(f *excelize.File, sheet string, row int, values []any) {
	for i, v := range values {
		cell, _ := excelize.CoordinatesToCellName(i+1, row)
		_ = f.SetCellValue(sheet, cell, v)
	}
}

func outcomeCell(res matching.MatchResult, attr matching.Attribute) string {
	for _, o := range res.Outcomes {
		if o.Attribute == attr {
			return fmt.Sprintf("%s (%s vs %s)", o.Outcome, o.Requested, o.Offered)
		}
	}
	return ""
}

func num(d decimal.Decimal) float64 {
	f, _ := d.Round(2).Float64()
	return f
}

// RenderMarkdown summarises an analysis for chat replies and report files.
func RenderMarkdown(a Analysis) string {
	var b strings.Builder
	fmt.Fprintf(&b, "# RFP Response: %s\n\n", a.RFP.ID)
	fmt.Fprintf(&b, "**Title:** %s\n", a.RFP.Title)
	fmt.Fprintf(&b, "**Client:** %s\n", a.RFP.Client)
	if a.RFP.SubmissionDeadline != "" {
		fmt.Fprintf(&b, "**Submission Deadline:** %s\n", a.RFP.SubmissionDeadline)
	}
	if a.RFP.EstimatedValue != "" {
		fmt.Fprintf(&b, "**Estimated Value:** %s\n", a.RFP.EstimatedValue)
	}
	fmt.Fprintf(&b, "**Qualification:** %s\n\n", qualificationLabel(a))

	b.WriteString("## Technical Match\n\n")
	b.WriteString("| # | Requirement | Qty | Top SKU | Score | Alternatives |\n")
	b.WriteString("|---|-------------|-----|---------|-------|--------------|\n")
	for _, req := range a.Requirements {
		top, ok := req.Match.Top()
		sku, score := "-", "-"
		if ok {
			sku = top.SKU
			score = fmt.Sprintf("%.0f%%", top.Score)
		}
		alts := []string{}
		for _, res := range req.Match.Results[min(1, len(req.Match.Results)):] {
			alts = append(alts, fmt.Sprintf("%s (%.0f%%)", res.SKU, res.Score))
		}
		qty := req.Quantity
		if req.Defaulted && req.QuantityM != nil {
			qty = req.QuantityM.String() + "m (assumed)"
		}
		fmt.Fprintf(&b, "| %d | %s | %s | %s | %s | %s |\n", req.LineNo, escapeCell(req.Item), escapeCell(qty), sku, score, strings.Join(alts, ", "))
	}

	q := a.Quote
	b.WriteString("\n## Pricing\n\n")
	b.WriteString("| SKU | Qty (m) | Unit Price | Discount | Line Total |\n")
	b.WriteString("|-----|---------|------------|----------|------------|\n")
	for _, line := range q.Lines {
		fmt.Fprintf(&b, "| %s | %s | ₹%s | %s%% | ₹%s |\n", line.SKU, line.Quantity.String(), money(line.UnitPrice), line.DiscountPercent.String(), money(line.LineTotal))
	}
	if len(q.Tests) > 0 {
		b.WriteString("\n| Test | Cost | Duration |\n")
		b.WriteString("|------|------|----------|\n")
		for _, t := range q.Tests {
			if t.Priced {
				fmt.Fprintf(&b, "| %s | ₹%s | %d days |\n", escapeCell(t.Name), money(t.Price), t.DurationDays)
			} else {
				fmt.Fprintf(&b, "| %s | TBD | TBD |\n", escapeCell(t.Name))
			}
		}
	}

	b.WriteString("\n")
	fmt.Fprintf(&b, "- Material: ₹%s\n", money(q.MaterialSubtotal))
	fmt.Fprintf(&b, "- Testing: ₹%s\n", money(q.TestSubtotal))
	fmt.Fprintf(&b, "- Subtotal: ₹%s\n", money(q.Subtotal))
	if q.Margin.IsZero() {
		fmt.Fprintf(&b, "- Overhead: ₹%s\n", money(q.Overhead))
		fmt.Fprintf(&b, "- Contingency: ₹%s\n", money(q.Contingency))
	} else {
		fmt.Fprintf(&b, "- Margin: ₹%s\n", money(q.Margin))
	}
	fmt.Fprintf(&b, "- **Grand Total: ₹%s** (%s)\n", money(q.GrandTotal), q.Policy.Label())
	fmt.Fprintf(&b, "\nValidity: %d days. Payment: %s.\n", q.Terms.ValidityDays, q.Terms.Payment)

	if len(a.Problems) > 0 {
		b.WriteString("\n## Needs Review\n\n")
		for _, p := range a.Problems {
			fmt.Fprintf(&b, "- %s\n", p)
		}
	}
	return b.String()
}

func qualificationLabel(a Analysis) string {
	if a.Qualification.Qualified {
		return "qualified, " + a.Qualification.Reason
	}
	return "not qualified, " + a.Qualification.Reason
}

func escapeCell(s string) string {
	return strings.ReplaceAll(util.NormalizeSpaces(s), "|", "/")
}

// money renders an amount with Indian digit grouping ("12,34,567.50").
func money(d decimal.Decimal) string {
	s := d.StringFixed(2)
	neg := strings.HasPrefix(s, "-")
	s = strings.TrimPrefix(s, "-")
	intPart, frac := s[:len(s)-3], s[len(s)-3:]

	if len(intPart) > 3 {
		head, tail := intPart[:len(intPart)-3], intPart[len(intPart)-3:]
		groups := []string{}
		for len(head) > 2 {
			groups = append([]string{head[len(head)-2:]}, groups...)
			head = head[:len(head)-2]
		}
		if head != "" {
			groups = append([]string{head}, groups...)
		}
		intPart = strings.Join(groups, ",") + "," + tail
	}
	if neg {
		return "-" + intPart + frac
	}
	return intPart + frac
}
