package pipeline

import (
	"bytes"
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/jhillyerd/enmime"
	pdf "github.com/ledongthuc/pdf"
	"github.com/xuri/excelize/v2"

	"rfpquote/internal"
	"rfpquote/internal/matching"
	"rfpquote/internal/util"
)

var (
	ignorePatterns = []*regexp.Regexp{
		regexp.MustCompile(`^--+$`),
		regexp.MustCompile(`(?i)^(thanks|thank you|regards|best regards|sincerely)`),
		regexp.MustCompile(`(?i)^(tel|phone|mob(ile)?)[:.\s]`),
		regexp.MustCompile(`(?i)^e-?mail[:\s]`),
		regexp.MustCompile(`(?i)^http`),
		regexp.MustCompile(`(?i)^page \d+( of \d+)?$`),
	}
	reLeadingBullet = regexp.MustCompile(`^(?:[-*•]+|\d{1,3}[.)])\s+`)
	reSeparators    = regexp.MustCompile(`[;|]+`)
	reHasDigit      = regexp.MustCompile(`\d`)
)

// EmailScope is what an RFP e-mail yields: its headers, body and scope lines
// from the body and any xlsx/pdf attachments.
type EmailScope struct {
	Subject     string
	From        string
	Text        string
	Attachments []string
	Lines       []internal.ExtractedLine
}

func ExtractFromEmail(raw []byte) (EmailScope, error) {
	env, err := enmime.ReadEnvelope(bytes.NewReader(raw))
	if err != nil {
		return EmailScope{}, err
	}

	lines := make([]internal.ExtractedLine, 0)
	if env.Text != "" {
		lines = append(lines, ExtractText(env.Text)...)
	}
	if env.HTML != "" {
		lines = append(lines, ExtractHTMLTables(env.HTML)...)
	}

	attachmentNames := make([]string, 0, len(env.Attachments))
	for _, att := range env.Attachments {
		filename := strings.TrimSpace(att.FileName)
		if filename == "" {
			filename = "attachment"
		}
		attachmentNames = append(attachmentNames, filename)

		var extra []internal.ExtractedLine
		switch lower := strings.ToLower(filename); {
		case strings.HasSuffix(lower, ".xlsx"):
			extra, err = ExtractXLSX(att.Content)
		case strings.HasSuffix(lower, ".pdf"):
			extra, err = ExtractPDF(att.Content)
		default:
			continue
		}
		if err != nil {
			continue
		}
		for i := range extra {
			extra[i].Meta["attachment"] = filename
		}
		lines = append(lines, extra...)
	}

	lines = dedupeLines(lines)
	for i := range lines {
		lines[i].Meta["origin"] = string(lines[i].Source)
		lines[i].Source = internal.SourceEmail
		lines[i].LineNo = i + 1
	}

	return EmailScope{
		Subject:     env.GetHeader("Subject"),
		From:        env.GetHeader("From"),
		Text:        env.Text,
		Attachments: attachmentNames,
		Lines:       lines,
	}, nil
}

// ExtractText keeps the lines of free text that name at least one cable attribute.
func ExtractText(text string) []internal.ExtractedLine {
	out := []internal.ExtractedLine{}
	for i, line := range splitLines(text) {
		if item := lineToScope(internal.SourceText, i+1, line); item != nil {
			out = append(out, *item)
		}
	}
	return out
}

// ExtractHTMLTables reads scope rows from tables whose header names an item or
// description column.
func ExtractHTMLTables(html string) []internal.ExtractedLine {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return nil
	}

	out := []internal.ExtractedLine{}
	globalLine := 0
	doc.Find("table").Each(func(_ int, table *goquery.Selection) {
		rows := table.Find("tr")
		if rows.Length() < 2 {
			return
		}

		headers := []string{}
		rows.First().Find("th,td").Each(func(_ int, cell *goquery.Selection) {
			headers = append(headers, util.NormalizeKey(cell.Text()))
		})
		itemIdx, qtyIdx, unitIdx := inferColumns(headers)

		rows.Slice(1, rows.Length()).Each(func(_ int, row *goquery.Selection) {
			cells := []string{}
			row.Find("th,td").Each(func(_ int, cell *goquery.Selection) {
				cells = append(cells, util.NormalizeSpaces(cell.Text()))
			})
			if len(cells) == 0 {
				return
			}

			line := rowToScope(internal.SourceHTMLTable, globalLine+1, cells, itemIdx, qtyIdx, unitIdx)
			if line == nil {
				return
			}
			globalLine++
			line.Meta["row"] = cells
			out = append(out, *line)
		})
	})

	return out
}

func ExtractXLSX(content []byte) ([]internal.ExtractedLine, error) {
	f, err := excelize.OpenReader(bytes.NewReader(content))
	if err != nil {
		return nil, err
	}
	defer f.Close()

	lineNo := 0
	out := []internal.ExtractedLine{}
	for _, sheet := range f.GetSheetList() {
		rows, err := f.GetRows(sheet)
		if err != nil || len(rows) == 0 {
			continue
		}

		itemIdx, qtyIdx, unitIdx := -1, -1, -1
		for i, row := range rows {
			cells := normalizeCells(row)
			if len(cells) == 0 {
				continue
			}
			if i < 3 && itemIdx < 0 {
				keys := make([]string, len(cells))
				for k, c := range cells {
					keys[k] = util.NormalizeKey(c)
				}
				itemIdx, qtyIdx, unitIdx = inferColumns(keys)
				if itemIdx >= 0 || qtyIdx >= 0 {
					continue
				}
			}

			line := rowToScope(internal.SourceXLSX, lineNo+1, cells, itemIdx, qtyIdx, unitIdx)
			if line == nil {
				continue
			}
			lineNo++
			line.Meta["sheet"] = sheet
			line.Meta["rowNumber"] = i + 1
			out = append(out, *line)
		}
	}

	return out, nil
}

func ExtractPDF(content []byte) ([]internal.ExtractedLine, error) {
	r, err := pdf.NewReader(bytes.NewReader(content), int64(len(content)))
	if err != nil {
		return nil, err
	}

	out := []internal.ExtractedLine{}
	lineNo := 0
	for i := 1; i <= r.NumPage(); i++ {
		p := r.Page(i)
		if p.V.IsNull() {
			continue
		}
		text, err := p.GetPlainText(nil)
		if err != nil {
			continue
		}
		for _, line := range splitLines(text) {
			lineNo++
			item := lineToScope(internal.SourcePDF, lineNo, line)
			if item == nil {
				continue
			}
			item.Meta["page"] = i
			out = append(out, *item)
		}
	}
	return out, nil
}

func splitLines(text string) []string {
	text = strings.ReplaceAll(text, "\r\n", "\n")
	parts := strings.Split(text, "\n")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}

// lineToScope turns one line of prose into a scope candidate. Lines without a
// recognised voltage, insulation, core count or size are dropped.
func lineToScope(source internal.DocumentSource, lineNo int, rawLine string) *internal.ExtractedLine {
	compact := util.NormalizeSpaces(rawLine)
	if compact == "" || isLikelyNoise(compact) {
		return nil
	}

	parsed := util.ParseQty(compact)
	item := compact
	if parsed.QtyRaw != nil {
		if idx := strings.LastIndex(item, *parsed.QtyRaw); idx >= 0 {
			item = item[:idx] + " " + item[idx+len(*parsed.QtyRaw):]
		}
	}
	item = cleanItem(item)
	if matching.ParseRequirement(item).Empty() {
		return nil
	}

	line := internal.ExtractedLine{
		LineNo:  lineNo,
		Source:  source,
		RawLine: compact,
		Item:    item,
		Meta:    map[string]any{},
	}
	if parsed.QtyRaw != nil {
		line.Quantity = util.StringPtr(*parsed.QtyRaw)
	}
	return &line
}

// rowToScope handles a table row. The quantity comes from the quantity column,
// with the unit column appended, and falls back to a quantity token in the row.
func rowToScope(source internal.DocumentSource, lineNo int, cells []string, itemIdx, qtyIdx, unitIdx int) *internal.ExtractedLine {
	item := cleanItem(pickCell(cells, itemIdx, 0))
	if item == "" || matching.ParseRequirement(item).Empty() {
		return nil
	}

	rawLine := strings.Join(cells, " | ")
	line := internal.ExtractedLine{
		LineNo:  lineNo,
		Source:  source,
		RawLine: rawLine,
		Item:    item,
		Meta:    map[string]any{},
	}

	qty := pickCell(cells, qtyIdx, -1)
	if qty != "" && reHasDigit.MatchString(qty) {
		if unit := pickCell(cells, unitIdx, -1); unit != "" && util.ParseQty(qty).Qty == nil && util.ParseQty(qty+" "+unit).Qty != nil {
			qty = qty + " " + unit
		}
		line.Quantity = util.StringPtr(qty)
	} else if parsed := util.ParseQty(rawLine); parsed.QtyRaw != nil {
		line.Quantity = util.StringPtr(*parsed.QtyRaw)
	}
	return &line
}

func cleanItem(s string) string {
	s = reSeparators.ReplaceAllString(s, " ")
	s = util.NormalizeSpaces(s)
	s = reLeadingBullet.ReplaceAllString(s, "")
	return strings.Trim(s, " -:,")
}

func isLikelyNoise(line string) bool {
	for _, re := range ignorePatterns {
		if re.MatchString(strings.TrimSpace(line)) {
			return true
		}
	}
	return false
}

func dedupeLines(lines []internal.ExtractedLine) []internal.ExtractedLine {
	seen := map[string]struct{}{}
	out := make([]internal.ExtractedLine, 0, len(lines))
	for _, line := range lines {
		qtyKey := "null"
		if line.Quantity != nil {
			qtyKey = *line.Quantity
		}
		key := util.NormalizeKey(line.Item) + "|" + qtyKey
		if _, exists := seen[key]; exists {
			continue
		}
		seen[key] = struct{}{}
		out = append(out, line)
	}
	return out
}

func findHeaderIndex(headers []string, probes []string) int {
	for _, probe := range probes {
		for i, h := range headers {
			if strings.Contains(h, probe) {
				return i
			}
		}
	}
	return -1
}

func pickCell(cells []string, idx int, fallback int) string {
	if idx >= 0 && idx < len(cells) {
		return strings.TrimSpace(cells[idx])
	}
	if fallback >= 0 && fallback < len(cells) {
		return strings.TrimSpace(cells[fallback])
	}
	return ""
}

func inferColumns(headers []string) (itemIdx, qtyIdx, unitIdx int) {
	itemIdx = findHeaderIndex(headers, []string{"description", "item", "particular", "material", "product", "specification"})
	qtyIdx = findHeaderIndex(headers, []string{"qty", "quantity", "quan"})
	unitIdx = findHeaderIndex(headers, []string{"uom", "unit"})
	return
}

func normalizeCells(row []string) []string {
	out := make([]string, 0, len(row))
	for _, c := range row {
		out = append(out, util.NormalizeSpaces(c))
	}
	return out
}
