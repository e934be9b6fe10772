package catalog

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"strings"
	"testing"

	"rfpquote/internal/config"
)

type roundTripFunc func(*http.Request) (*http.Response, error)

func (f roundTripFunc) RoundTrip(req *http.Request) (*http.Response, error) {
	return f(req)
}

func jsonResponse(status int, payload any) *http.Response {
	blob, _ := json.Marshal(payload)
	return &http.Response{
		StatusCode: status,
		Body:       io.NopCloser(strings.NewReader(string(blob))),
		Header:     make(http.Header),
	}
}

func testClientConfig() config.Config {
	return config.Config{
		ReferenceBaseURL:      "https://example.test/api/v1",
		ReferenceAPIToken:     "test",
		ReferenceRateLimitRPS: 1000,
		ReferenceTimeoutMs:    1000,
	}
}

func TestFetchReferenceWithRetry(t *testing.T) {
	calls := map[string]int{}

	client := NewClient(testClientConfig())
	client.httpClient = &http.Client{
		Transport: roundTripFunc(func(r *http.Request) (*http.Response, error) {
			if got := r.Header.Get("Authorization"); got != "Bearer test" {
				t.Fatalf("authorization=%q", got)
			}
			calls[r.URL.Path]++
			switch r.URL.Path {
			case "/api/v1/catalog":
				if calls[r.URL.Path] == 1 {
					return jsonResponse(http.StatusServiceUnavailable, map[string]any{"error": "boom"}), nil
				}
				return jsonResponse(http.StatusOK, map[string]any{"success": true, "data": []map[string]any{
					{"sku": "C-1", "name": "Cable 1", "category": "LV", "base_price_per_meter": "100", "specs": map[string]any{"cores": 3}},
					{"sku": "C-2", "name": "Cable 2", "category": "LV", "base_price_per_meter": 80.5, "specs": map[string]any{}},
				}}), nil
			case "/api/v1/test-pricing":
				return jsonResponse(http.StatusOK, map[string]any{"success": true, "data": []map[string]any{
					{"name": "Routine Test", "price": 5000, "duration_days": 2},
				}}), nil
			case "/api/v1/discount-tiers":
				return jsonResponse(http.StatusOK, map[string]any{"success": true, "data": []any{}}), nil
			default:
				t.Fatalf("unexpected path %s", r.URL.Path)
				return nil, nil
			}
		}),
	}

	ref, err := client.FetchReference(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if calls["/api/v1/catalog"] != 2 {
		t.Fatalf("catalog calls=%d", calls["/api/v1/catalog"])
	}
	if ref.Index().Len() != 2 {
		t.Fatalf("products=%d", ref.Index().Len())
	}
	p, ok := ref.Product("C-2")
	if !ok || p.BasePricePerMeter.String() != "80.5" {
		t.Fatalf("C-2=%+v ok=%v", p, ok)
	}
	if ref.Tests().Len() != 1 {
		t.Fatalf("tests=%d", ref.Tests().Len())
	}
	if len(ref.Tiers()) != 4 {
		t.Fatalf("expected default tiers, got %d", len(ref.Tiers()))
	}
}

func TestFetchUnsuccessfulEnvelope(t *testing.T) {
	client := NewClient(testClientConfig())
	client.httpClient = &http.Client{
		Transport: roundTripFunc(func(r *http.Request) (*http.Response, error) {
			return jsonResponse(http.StatusOK, map[string]any{"success": false, "message": "catalog locked"}), nil
		}),
	}

	_, err := client.GetCatalog(context.Background())
	if err == nil || !strings.Contains(err.Error(), "catalog locked") {
		t.Fatalf("err=%v", err)
	}
}

func TestFetchRequiresBaseURL(t *testing.T) {
	cfg := testClientConfig()
	cfg.ReferenceBaseURL = ""
	if _, err := NewClient(cfg).GetCatalog(context.Background()); err == nil {
		t.Fatal("expected missing base url error")
	}
}

func TestFetchStopsOnClientError(t *testing.T) {
	attempts := 0
	client := NewClient(testClientConfig())
	client.httpClient = &http.Client{
		Transport: roundTripFunc(func(r *http.Request) (*http.Response, error) {
			attempts++
			return jsonResponse(http.StatusNotFound, map[string]any{}), nil
		}),
	}
	if _, err := client.GetDiscountTiers(context.Background()); err == nil {
		t.Fatal("expected error")
	}
	if attempts != 1 {
		t.Fatalf("attempts=%d", attempts)
	}
}
