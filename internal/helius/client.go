// Package helius talks to the Helius webhook and price APIs.
package helius

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"time"
)

// DefaultBaseURL is the Helius REST API root.
const DefaultBaseURL = "https://api.helius.xyz/v0"

// Config holds Helius API settings
type Config struct {
	BaseURL        string
	APIKey         string
	RequestTimeout time.Duration
}

var errMalformedResponse = errors.New("malformed response")

// CreateWebhookRequest is the body of POST /webhooks.
type CreateWebhookRequest struct {
	WebhookURL       string   `json:"webhookURL"`
	TransactionTypes []string `json:"transactionTypes"`
	AccountAddresses []string `json:"accountAddresses"`
	WebhookType      string   `json:"webhookType"`
	AuthHeader       string   `json:"authHeader,omitempty"`
	TxnStatus        string   `json:"txnStatus,omitempty"`
}

type createWebhookResponse struct {
	WebhookID string `json:"webhookID"`
}

type tokenPriceResponse struct {
	Price *float64 `json:"price"`
}

// StatusError is a non-2xx response from the API.
type StatusError struct {
	Op         string
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("helius %s: unexpected status %d: %s", e.Op, e.StatusCode, e.Body)
}

// Temporary reports whether the request is worth repeating.
func (e *StatusError) Temporary() bool {
	return e.StatusCode == http.StatusTooManyRequests || e.StatusCode >= 500
}

// Client is a thin HTTP client for the Helius API. Each method makes exactly one request.
type Client struct {
	cfg    Config
	http   *http.Client
	logger *slog.Logger
}

// NewClient creates a Helius client
func NewClient(cfg Config, logger *slog.Logger) *Client {
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	if cfg.RequestTimeout <= 0 {
		cfg.RequestTimeout = 10 * time.Second
	}
	return &Client{
		cfg:    cfg,
		http:   &http.Client{Timeout: cfg.RequestTimeout},
		logger: logger,
	}
}

func (c *Client) endpoint(path string, query url.Values) string {
	if query == nil {
		query = url.Values{}
	}
	query.Set("api-key", c.cfg.APIKey)
	return c.cfg.BaseURL + path + "?" + query.Encode()
}

// CreateWebhook registers a webhook and returns the provider's id for it.
func (c *Client) CreateWebhook(ctx context.Context, req CreateWebhookRequest) (string, error) {
	body, err := json.Marshal(req)
	if err != nil {
		return "", fmt.Errorf("failed to marshal webhook request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint("/webhooks", nil), bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("failed to build webhook request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	var out createWebhookResponse
	if err := c.do(httpReq, "create webhook", &out); err != nil {
		return "", err
	}
	if out.WebhookID == "" {
		return "", fmt.Errorf("helius create webhook: %w: no webhookID", errMalformedResponse)
	}

	c.logger.Info("Helius webhook created",
		slog.String("webhook_id", out.WebhookID),
		slog.String("webhook_url", req.WebhookURL),
	)
	return out.WebhookID, nil
}

// DeleteWebhook removes a webhook. A webhook that no longer exists counts as deleted.
func (c *Client) DeleteWebhook(ctx context.Context, webhookID string) error {
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodDelete,
		c.endpoint("/webhooks/"+url.PathEscape(webhookID), nil), nil)
	if err != nil {
		return fmt.Errorf("failed to build webhook request: %w", err)
	}

	err = c.do(httpReq, "delete webhook", nil)
	var se *StatusError
	if errors.As(err, &se) && se.StatusCode == http.StatusNotFound {
		c.logger.Info("Helius webhook already gone", slog.String("webhook_id", webhookID))
		return nil
	}
	if err != nil {
		return err
	}

	c.logger.Info("Helius webhook deleted", slog.String("webhook_id", webhookID))
	return nil
}

// TokenPrice returns the USD price of a token mint.
func (c *Client) TokenPrice(ctx context.Context, mint string) (float64, error) {
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet,
		c.endpoint("/token-price", url.Values{"address": {mint}}), nil)
	if err != nil {
		return 0, fmt.Errorf("failed to build price request: %w", err)
	}

	var out tokenPriceResponse
	if err := c.do(httpReq, "token price", &out); err != nil {
		return 0, err
	}
	if out.Price == nil {
		return 0, fmt.Errorf("%w for %s", ErrNoPrice, mint)
	}
	return *out.Price, nil
}

func (c *Client) do(req *http.Request, op string, out any) error {
	resp, err := c.http.Do(req)
	if err != nil {
		// url.Error carries the request URL, which holds the api key.
		var ue *url.Error
		if errors.As(err, &ue) {
			err = ue.Err
		}
		return fmt.Errorf("helius %s: %w", op, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return &StatusError{Op: op, StatusCode: resp.StatusCode, Body: string(bytes.TrimSpace(snippet))}
	}

	if out == nil {
		io.Copy(io.Discard, resp.Body)
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("helius %s: %w: %v", op, errMalformedResponse, err)
	}
	return nil
}
