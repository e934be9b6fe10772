package pipeline

import (
	"testing"

	"rfpquote/internal"
)

var listed = []internal.RFP{{ID: "TOT-2026-001"}, {ID: "TOT-2026-002"}, {ID: "PGCIL/2026/117"}}

func TestExtractSelection(t *testing.T) {
	tests := []struct {
		message string
		want    string
	}{
		{message: "let's go with tot-2026-002", want: "TOT-2026-002"},
		{message: "2", want: "TOT-2026-002"},
		{message: "I pick number 3", want: "PGCIL/2026/117"},
		{message: "select option #1 please", want: "TOT-2026-001"},
		{message: "choose the 9th or 1st", want: ""},
		{message: "choose 7", want: ""},
		{message: "the first one", want: ""},
	}
	for _, tc := range tests {
		t.Run(tc.message, func(t *testing.T) {
			if got := ExtractSelection(tc.message, listed); got != tc.want {
				t.Fatalf("got %q want %q", got, tc.want)
			}
		})
	}
}

func TestDetectIntent(t *testing.T) {
	tests := []struct {
		message string
		listed  []internal.RFP
		intent  Intent
		id      string
	}{
		{message: "Scan for cable tenders", intent: IntentScan},
		{message: "hello", intent: IntentScan},
		{message: "analyze 2", listed: listed, intent: IntentSelect, id: "TOT-2026-002"},
		{message: "pick 12", listed: listed, intent: IntentUnknown},
		{message: "show me new tenders", listed: listed, intent: IntentScan},
		{message: "hello", listed: listed, intent: IntentUnknown},
	}
	for _, tc := range tests {
		t.Run(tc.message, func(t *testing.T) {
			got := DetectIntent(tc.message, tc.listed)
			if got.Intent != tc.intent || got.SelectedID != tc.id {
				t.Fatalf("got %+v", got)
			}
		})
	}
}

func TestKeywordRules(t *testing.T) {
	if !IsScanRequest("List RFPs") || IsScanRequest("thanks") {
		t.Fatal("scan rules")
	}
	if !IsSelectionRequest("#2") || !IsSelectionRequest("3") || IsSelectionRequest("thanks") {
		t.Fatal("selection rules")
	}
}
