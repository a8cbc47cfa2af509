package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"
)

type gatewayClient struct {
	baseURL string
	http    *http.Client
}

func newGatewayClient(baseURL string) *gatewayClient {
	return &gatewayClient{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{Timeout: 45 * time.Second},
	}
}

type initiateRequest struct {
	OrderID       string `json:"order_id"`
	MSISDN        string `json:"msisdn"`
	CartSessionID string `json:"cart_session_id,omitempty"`
}

type pollSettings struct {
	InitialDelayMS int64 `json:"initial_delay_ms"`
	IntervalMS     int64 `json:"interval_ms"`
	MaxDurationMS  int64 `json:"max_duration_ms"`
}

type initiateResponse struct {
	Result          string       `json:"result"`
	OrderID         string       `json:"order_id"`
	SourceReference string       `json:"source_reference"`
	Redirect        string       `json:"redirect"`
	Poll            pollSettings `json:"poll"`
}

type statusResponse struct {
	OrderID         string `json:"order_id"`
	Status          string `json:"status"`
	SourceReference string `json:"source_reference"`
	ConfirmedVia    string `json:"confirmed_via"`
	Redirect        string `json:"redirect"`
}

type errorResponse struct {
	Error  string            `json:"error"`
	Fields map[string]string `json:"fields"`
}

func (c *gatewayClient) initiate(ctx context.Context, req initiateRequest, idempotencyKey string) (*initiateResponse, error) {
	body, err := json.Marshal(req)
	if err != nil {
		return nil, err
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/v1/payments/ecocash", bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	httpReq.Header.Set("Content-Type", "application/json")
	if idempotencyKey != "" {
		httpReq.Header.Set("Idempotency-Key", idempotencyKey)
	}

	var out initiateResponse
	if err := c.do(httpReq, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *gatewayClient) status(ctx context.Context, orderID string) (*statusResponse, error) {
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet,
		c.baseURL+"/v1/payments/ecocash/orders/"+url.PathEscape(orderID), nil)
	if err != nil {
		return nil, err
	}

	var out statusResponse
	if err := c.do(httpReq, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *gatewayClient) do(req *http.Request, out any) error {
	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		var e errorResponse
		_ = json.NewDecoder(resp.Body).Decode(&e)
		if len(e.Fields) > 0 {
			return fmt.Errorf("gateway returned %d: %s %v", resp.StatusCode, e.Error, e.Fields)
		}
		return fmt.Errorf("gateway returned %d: %s", resp.StatusCode, e.Error)
	}

	return json.NewDecoder(resp.Body).Decode(out)
}
