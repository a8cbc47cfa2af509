package poller

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"ecocash/internal/domain"
)

// HTTPChecker calls the service's lookup endpoint.
type HTTPChecker struct {
	BaseURL string
	Client  *http.Client
}

// NewHTTPChecker creates a new HTTPChecker.
func NewHTTPChecker(baseURL string, client *http.Client) *HTTPChecker {
	if client == nil {
		client = http.DefaultClient
	}
	return &HTTPChecker{BaseURL: strings.TrimRight(baseURL, "/"), Client: client}
}

type lookupResponse struct {
	Status   string `json:"status"`
	Redirect string `json:"redirect"`
}

// Check performs GET /v1/payments/ecocash/orders/:order_id/lookup.
func (c *HTTPChecker) Check(ctx context.Context, orderID string) (*CheckResult, error) {
	endpoint := fmt.Sprintf("%s/v1/payments/ecocash/orders/%s/lookup", c.BaseURL, url.PathEscape(orderID))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.Client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("lookup returned status %d", resp.StatusCode)
	}

	var body lookupResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return nil, fmt.Errorf("failed to decode lookup response: %w", err)
	}

	return &CheckResult{
		Status:      domain.ConfirmationStatus(strings.ToUpper(body.Status)),
		RedirectURL: body.Redirect,
	}, nil
}
