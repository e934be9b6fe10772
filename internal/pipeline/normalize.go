package pipeline

import (
	"strings"
	"time"

	"rfpquote/internal"
	"rfpquote/internal/rfp"
	"rfpquote/internal/util"
)

// ScopeFromLines folds extracted lines into scope-of-supply items. Repeated items
// keep the first line that carried a quantity.
func ScopeFromLines(lines []internal.ExtractedLine) []internal.ScopeItem {
	out := make([]internal.ScopeItem, 0, len(lines))
	index := map[string]int{}
	for _, line := range lines {
		key := util.NormalizeKey(line.Item)
		qty := ""
		if line.Quantity != nil {
			qty = strings.TrimSpace(*line.Quantity)
		}
		if i, seen := index[key]; seen {
			if out[i].Quantity == "" {
				out[i].Quantity = qty
			}
			continue
		}
		index[key] = len(out)
		out = append(out, internal.ScopeItem{Item: line.Item, Quantity: qty})
	}
	return out
}

// DraftFromEmail turns an RFP e-mail into a draft RFP record with the next free id.
func DraftFromEmail(scope EmailScope, existing []internal.RFP, now time.Time) internal.RFP {
	title := strings.TrimSpace(scope.Subject)
	if title == "" {
		title = "RFP by e-mail"
	}
	return internal.RFP{
		ID:            rfp.NextID(existing, now.Year()),
		Title:         title,
		Client:        strings.TrimSpace(scope.From),
		ScopeOfSupply: ScopeFromLines(scope.Lines),
	}
}
