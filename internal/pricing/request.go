package pricing

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"

	"rfpquote/internal/util"
)

// Request is a decoded quote request. Policy is empty when the caller did not pick one.
type Request struct {
	Items  []LineItem
	Tests  []string
	Policy Policy
}

type requestBody struct {
	Products []struct {
		SKU      string          `json:"sku"`
		Quantity json.RawMessage `json:"quantity"`
	} `json:"products"`
	Tests  []string `json:"tests"`
	Policy string   `json:"policy"`
}

// ParseRequest decodes {"products":[{"sku","quantity"}],"tests":[...],"policy"}.
// Quantities may be JSON numbers or strings such as "5,000m".
func ParseRequest(data []byte) (Request, error) {
	var body requestBody
	if err := json.Unmarshal(data, &body); err != nil {
		return Request{}, &InputError{Field: "body", Reason: "malformed JSON", Err: err}
	}
	if len(body.Products) == 0 && len(body.Tests) == 0 {
		return Request{}, &InputError{Field: "products", Reason: "no products or tests requested"}
	}

	req := Request{Items: make([]LineItem, 0, len(body.Products)), Tests: body.Tests}
	for i, p := range body.Products {
		field := fmt.Sprintf("products[%d].quantity", i)
		qty, err := ParseQuantityJSON(p.Quantity)
		if err != nil {
			return Request{}, &InputError{Field: field, Reason: err.Error(), Err: err}
		}
		req.Items = append(req.Items, LineItem{SKU: strings.TrimSpace(p.SKU), Quantity: qty})
	}

	if strings.TrimSpace(body.Policy) != "" {
		policy, err := ParsePolicy(body.Policy)
		if err != nil {
			return Request{}, &InputError{Field: "policy", Reason: err.Error(), Err: err}
		}
		req.Policy = policy
	}

	if err := validateItems(req.Items, req.Tests); err != nil {
		return Request{}, err
	}
	return req, nil
}

// ParseQuantityJSON accepts a JSON number or a quantity string.
func ParseQuantityJSON(raw json.RawMessage) (decimal.Decimal, error) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return decimal.Zero, fmt.Errorf("%w: quantity is required", util.ErrInvalidQuantity)
	}
	if raw[0] == '"' {
		var s string
		if err := json.Unmarshal(raw, &s); err != nil {
			return decimal.Zero, err
		}
		return util.ParseQuantity(s)
	}
	qty, err := decimal.NewFromString(string(raw))
	if err != nil {
		return decimal.Zero, fmt.Errorf("%w: %s", util.ErrInvalidQuantity, string(raw))
	}
	return qty, nil
}
