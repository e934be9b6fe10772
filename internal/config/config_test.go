package config

import "testing"

func TestLoadDefaults(t *testing.T) {
	t.Setenv("MARKUP_POLICY", "")
	t.Setenv("MATCH_TOP_N", "")
	cfg, err := Load()
	if err == nil {
		t.Fatalf("expected error for empty policy, got cfg=%+v", cfg)
	}

	t.Setenv("MARKUP_POLICY", "Flat_Margin")
	t.Setenv("MATCH_TOP_N", "0")
	t.Setenv("ALLOW_ORIGINS", "http://a.test, http://b.test,")
	cfg, err = Load()
	if err != nil {
		t.Fatal(err)
	}
	if cfg.MarkupPolicy != PolicyFlatMargin {
		t.Fatalf("policy=%q", cfg.MarkupPolicy)
	}
	if cfg.MatchTopN != 3 {
		t.Fatalf("topN=%d", cfg.MatchTopN)
	}
	if len(cfg.AllowOrigins) != 2 || cfg.AllowOrigins[1] != "http://b.test" {
		t.Fatalf("origins=%v", cfg.AllowOrigins)
	}
}

func TestLoadRejectsUnknownPolicy(t *testing.T) {
	t.Setenv("MARKUP_POLICY", "cost_plus")
	if _, err := Load(); err == nil {
		t.Fatal("expected error")
	}
}
