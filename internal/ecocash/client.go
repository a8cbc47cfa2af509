package ecocash

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"net"
	"net/http"
	"strings"
	"time"
	"unicode/utf8"
)

// DefaultBaseURL is the EcoCash open API root.
const DefaultBaseURL = "https://developers.ecocash.co.zw/api/ecocash_pay"

const (
	initiatePath = "/api/v2/payment/instant/c2b"
	lookupPath   = "/api/v1/transaction/c2b/status"
	sandboxPath  = "/sandbox"

	apiKeyHeader   = "X-API-KEY"
	maxBodyLogSize = 2048
)

// Config holds EcoCash API settings.
type Config struct {
	BaseURL         string
	APIKey          string
	Sandbox         bool
	InitiateTimeout time.Duration
	LookupTimeout   time.Duration
}

// Client talks to the EcoCash C2B API.
type Client struct {
	cfg        Config
	httpClient *http.Client
}

// NewClient creates a new Client. A nil transport uses http.DefaultTransport.
func NewClient(cfg Config, transport http.RoundTripper) *Client {
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	if cfg.InitiateTimeout <= 0 {
		cfg.InitiateTimeout = 30 * time.Second
	}
	if cfg.LookupTimeout <= 0 {
		cfg.LookupTimeout = 20 * time.Second
	}
	if transport == nil {
		transport = http.DefaultTransport
	}

	return &Client{
		cfg:        cfg,
		httpClient: &http.Client{Transport: transport},
	}
}

// InitiatePayment submits a C2B instant payment request.
// A 2xx response only means the request was accepted for processing.
func (c *Client) InitiatePayment(ctx context.Context, req PaymentRequest) (*Response, error) {
	ctx, cancel := context.WithTimeout(ctx, c.cfg.InitiateTimeout)
	defer cancel()

	resp, err := c.post(ctx, c.endpoint(initiatePath), req)
	if err != nil {
		return resp, err
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return resp, fmt.Errorf("%w: %d", ErrUnexpectedStatus, resp.StatusCode)
	}

	return resp, nil
}

// LookupTransaction asks the provider for the status of a transaction.
func (c *Client) LookupTransaction(ctx context.Context, req LookupRequest) (*LookupResult, error) {
	ctx, cancel := context.WithTimeout(ctx, c.cfg.LookupTimeout)
	defer cancel()

	resp, err := c.post(ctx, c.endpoint(lookupPath), req)
	if err != nil {
		return nil, err
	}

	result := &LookupResult{Response: *resp}

	if resp.StatusCode == http.StatusNotFound {
		return result, ErrTransactionNotFound
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return result, fmt.Errorf("%w: %d", ErrUnexpectedStatus, resp.StatusCode)
	}

	var body lookupBody
	if err := json.Unmarshal(resp.Body, &body); err != nil {
		return result, fmt.Errorf("%w: %v", ErrMalformedResponse, err)
	}

	result.ProviderStatus = body.Status
	if result.ProviderStatus == "" {
		result.ProviderStatus = body.TransactionStatus
	}
	if result.ProviderStatus == "" {
		return result, fmt.Errorf("%w: missing status", ErrMalformedResponse)
	}

	result.Status = NormalizeStatus(result.ProviderStatus)

	return result, nil
}

func (c *Client) endpoint(path string) string {
	url := strings.TrimRight(c.cfg.BaseURL, "/") + path
	if c.cfg.Sandbox {
		url += sandboxPath
	}
	return url
}

func (c *Client) post(ctx context.Context, url string, payload any) (*Response, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("failed to encode request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to build request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set(apiKeyHeader, c.cfg.APIKey)

	log.Printf("[ecocash][client] request method=POST url=%s headers={%s} body=%s",
		url, redactHeaders(httpReq.Header), c.truncate(body))

	start := time.Now()
	httpResp, err := c.httpClient.Do(httpReq)
	if err != nil {
		log.Printf("[ecocash][client] transport error url=%s elapsed=%s err=%v", url, time.Since(start), err)
		return nil, classifyTransportError(err)
	}
	defer httpResp.Body.Close()

	respBody, err := io.ReadAll(httpResp.Body)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrProviderUnreachable, err)
	}

	log.Printf("[ecocash][client] response url=%s status=%d elapsed=%s body=%s",
		url, httpResp.StatusCode, time.Since(start), c.truncate(respBody))

	resp := &Response{StatusCode: httpResp.StatusCode}
	if json.Valid(respBody) {
		resp.Body = respBody
	}

	return resp, nil
}

func (c *Client) truncate(b []byte) string {
	s := redactSecret(string(b), c.cfg.APIKey)
	if len(s) <= maxBodyLogSize {
		return s
	}

	cut := maxBodyLogSize
	for cut > 0 && !utf8.RuneStart(s[cut]) {
		cut--
	}
	return s[:cut] + "...(truncated)"
}

func classifyTransportError(err error) error {
	if errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("%w: %v", ErrProviderTimeout, err)
	}

	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return fmt.Errorf("%w: %v", ErrProviderTimeout, err)
	}

	return fmt.Errorf("%w: %v", ErrProviderUnreachable, err)
}
