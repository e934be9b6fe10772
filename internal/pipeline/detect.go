package pipeline

import (
	"regexp"
	"strconv"
	"strings"

	"rfpquote/internal"
)

type Intent string

const (
	IntentScan    Intent = "scan"
	IntentSelect  Intent = "select"
	IntentUnknown Intent = "unknown"
)

type DetectResult struct {
	Intent     Intent
	SelectedID string
	Reason     string
}

var (
	scanKeywords      = []string{"scan", "find", "search", "show", "list", "rfp", "tender", "cable", "wire"}
	selectionKeywords = []string{"select", "choose", "pick", "option", "number", "go with", "analyze", "analyse", "#"}

	reStandaloneNumber = regexp.MustCompile(`\b(\d+)\b`)
	selectionPatterns  = []*regexp.Regexp{
		regexp.MustCompile(`select.*?(\d+)`),
		regexp.MustCompile(`choose.*?(\d+)`),
		regexp.MustCompile(`option.*?(\d+)`),
		regexp.MustCompile(`#(\d+)`),
		regexp.MustCompile(`number.*?(\d+)`),
		regexp.MustCompile(`rfp.*?(\d+)`),
	}
)

func IsScanRequest(message string) bool {
	return containsAny(strings.ToLower(message), scanKeywords)
}

func IsSelectionRequest(message string) bool {
	lower := strings.ToLower(message)
	return containsAny(lower, selectionKeywords) || reStandaloneNumber.MatchString(lower)
}

// ExtractSelection resolves which listed RFP a message points at: an id named in
// the text first, then a 1-based position. It returns "" when nothing resolves.
func ExtractSelection(message string, listed []internal.RFP) string {
	lower := strings.ToLower(message)
	for _, r := range listed {
		if r.ID != "" && strings.Contains(lower, strings.ToLower(r.ID)) {
			return r.ID
		}
	}

	for _, m := range reStandaloneNumber.FindAllStringSubmatch(message, -1) {
		if id, ok := byPosition(m[1], listed); ok {
			return id
		}
	}

	for _, re := range selectionPatterns {
		if m := re.FindStringSubmatch(lower); m != nil {
			if id, ok := byPosition(m[1], listed); ok {
				return id
			}
		}
	}
	return ""
}

// DetectIntent routes a chat message. Selection only applies once RFPs have been
// listed; with nothing listed every message is treated as a scan.
func DetectIntent(message string, listed []internal.RFP) DetectResult {
	if len(listed) > 0 && IsSelectionRequest(message) {
		if id := ExtractSelection(message, listed); id != "" {
			return DetectResult{Intent: IntentSelect, SelectedID: id, Reason: "selection_resolved"}
		}
		return DetectResult{Intent: IntentUnknown, Reason: "selection_unresolved"}
	}
	if IsScanRequest(message) {
		return DetectResult{Intent: IntentScan, Reason: "scan_keywords"}
	}
	if len(listed) == 0 {
		return DetectResult{Intent: IntentScan, Reason: "nothing_listed"}
	}
	return DetectResult{Intent: IntentUnknown, Reason: "rules_negative"}
}

func byPosition(num string, listed []internal.RFP) (string, bool) {
	n, err := strconv.Atoi(num)
	if err != nil || n < 1 || n > len(listed) {
		return "", false
	}
	return listed[n-1].ID, true
}

func containsAny(s string, keywords []string) bool {
	for _, kw := range keywords {
		if strings.Contains(s, kw) {
			return true
		}
	}
	return false
}
