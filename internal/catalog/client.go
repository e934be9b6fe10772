package catalog

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math/rand"
	"net/http"
	"net/url"
	"strings"
	"time"

	"rfpquote/internal"
	"rfpquote/internal/config"
	"rfpquote/internal/util"
)

const maxAttempts = 5

// Client pulls the three reference tables from a remote reference service that
// wraps its payloads in a {success, data} envelope.
type Client struct {
	cfg        config.Config
	httpClient *http.Client
	limiter    *RateLimiter
}

type apiResponse struct {
	Success bool            `json:"success"`
	Message string          `json:"message"`
	Errors  json.RawMessage `json:"errors"`
	Data    json.RawMessage `json:"data"`
}

func NewClient(cfg config.Config) *Client {
	return &Client{
		cfg:        cfg,
		httpClient: &http.Client{Timeout: time.Duration(cfg.ReferenceTimeoutMs) * time.Millisecond},
		limiter:    NewRateLimiter(cfg.ReferenceRateLimitRPS),
	}
}

func (c *Client) GetCatalog(ctx context.Context) ([]internal.CatalogProduct, error) {
	body, err := c.fetchJSON(ctx, "catalog", nil)
	if err != nil {
		return nil, err
	}
	var products []internal.CatalogProduct
	if err := json.Unmarshal(body, &products); err != nil {
		return nil, fmt.Errorf("decode catalog: %w", err)
	}
	return products, nil
}

func (c *Client) GetTestPricing(ctx context.Context) ([]internal.TestPriceEntry, error) {
	body, err := c.fetchJSON(ctx, "test-pricing", nil)
	if err != nil {
		return nil, err
	}
	entries, err := DecodeTestPrices(body, util.FormatJSON)
	if err != nil {
		return nil, fmt.Errorf("decode test pricing: %w", err)
	}
	return entries, nil
}

func (c *Client) GetDiscountTiers(ctx context.Context) ([]internal.DiscountTier, error) {
	body, err := c.fetchJSON(ctx, "discount-tiers", nil)
	if err != nil {
		return nil, err
	}
	var tiers []internal.DiscountTier
	if err := json.Unmarshal(body, &tiers); err != nil {
		return nil, fmt.Errorf("decode discount tiers: %w", err)
	}
	if len(tiers) == 0 {
		return DefaultDiscountTiers(), nil
	}
	return tiers, nil
}

// FetchReference pulls all tables and validates them into a snapshot.
func (c *Client) FetchReference(ctx context.Context) (*Reference, error) {
	products, err := c.GetCatalog(ctx)
	if err != nil {
		return nil, err
	}
	tests, err := c.GetTestPricing(ctx)
	if err != nil {
		return nil, err
	}
	tiers, err := c.GetDiscountTiers(ctx)
	if err != nil {
		return nil, err
	}
	return NewReference(products, tests, tiers)
}

func (c *Client) fetchJSON(ctx context.Context, endpoint string, params map[string]string) ([]byte, error) {
	if err := c.cfg.Require("REFERENCE_BASE_URL", c.cfg.ReferenceBaseURL); err != nil {
		return nil, err
	}

	baseURL := strings.TrimRight(c.cfg.ReferenceBaseURL, "/") + "/"
	u, err := url.Parse(baseURL + endpoint)
	if err != nil {
		return nil, err
	}

	q := u.Query()
	for k, v := range params {
		if strings.TrimSpace(v) != "" {
			q.Set(k, v)
		}
	}
	u.RawQuery = q.Encode()

	var lastErr error
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, err
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
		if err != nil {
			return nil, err
		}
		if token := strings.TrimSpace(c.cfg.ReferenceAPIToken); token != "" {
			req.Header.Set("Authorization", "Bearer "+token)
		}
		req.Header.Set("Accept", "application/json")

		resp, err := c.httpClient.Do(req)
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			lastErr = err
			continue
		}

		body, readErr := io.ReadAll(resp.Body)
		_ = resp.Body.Close()
		if readErr != nil {
			lastErr = readErr
			continue
		}

		if resp.StatusCode < 200 || resp.StatusCode >= 300 {
			if isRetryableStatus(resp.StatusCode) && attempt < maxAttempts {
				lastErr = fmt.Errorf("reference status %d", resp.StatusCode)
				if err := sleepCtx(ctx, backoff(attempt)); err != nil {
					return nil, err
				}
				continue
			}
			return nil, fmt.Errorf("reference api error: status=%d body=%s", resp.StatusCode, string(body))
		}

		var apiResp apiResponse
		if err := json.Unmarshal(body, &apiResp); err != nil {
			return nil, err
		}
		if !apiResp.Success {
			msg := apiResp.Message
			if msg == "" {
				msg = string(apiResp.Errors)
			}
			return nil, fmt.Errorf("reference api unsuccessful: %s", msg)
		}
		return apiResp.Data, nil
	}

	if lastErr == nil {
		lastErr = errors.New("reference request failed")
	}
	return nil, lastErr
}

func backoff(attempt int) time.Duration {
	return time.Duration(250*(1<<(attempt-1))+rand.Intn(100)) * time.Millisecond
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

func isRetryableStatus(status int) bool {
	switch status {
	case http.StatusTooManyRequests, http.StatusInternalServerError, http.StatusBadGateway,
		http.StatusServiceUnavailable, http.StatusGatewayTimeout:
		return true
	default:
		return false
	}
}
