package stripe

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"
)

// Client talks to the Stripe REST API over form-encoded HTTP.
type Client struct {
	secretKey  string
	baseURL    string
	httpClient *http.Client
}

// NewClient creates a live gateway client.
func NewClient(secretKey, baseURL string) *Client {
	return &Client{
		secretKey: secretKey,
		baseURL:   strings.TrimSuffix(baseURL, "/"),
		httpClient: &http.Client{
			Timeout: 15 * time.Second,
		},
	}
}

type apiError struct {
	Error struct {
		Type    string `json:"type"`
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

// CreateIntent mints a payment intent with automatic payment methods enabled.
func (c *Client) CreateIntent(ctx context.Context, amountMinor int64, currency string, metadata map[string]string) (Intent, error) {
	form := url.Values{}
	form.Set("amount", strconv.FormatInt(amountMinor, 10))
	form.Set("currency", currency)
	form.Set("automatic_payment_methods[enabled]", "true")
	for key, value := range metadata {
		form.Set(fmt.Sprintf("metadata[%s]", key), value)
	}

	return c.doIntent(ctx, http.MethodPost, "/v1/payment_intents", strings.NewReader(form.Encode()))
}

// GetIntent retrieves an intent by id.
func (c *Client) GetIntent(ctx context.Context, intentID string) (Intent, error) {
	return c.doIntent(ctx, http.MethodGet, "/v1/payment_intents/"+url.PathEscape(intentID), nil)
}

// VerifySucceeded reports whether the intent status is succeeded.
func (c *Client) VerifySucceeded(ctx context.Context, intentID string) (bool, error) {
	intent, err := c.GetIntent(ctx, intentID)
	if err != nil {
		return false, err
	}
	return intent.Status == StatusSucceeded, nil
}

func (c *Client) doIntent(ctx context.Context, method, path string, body io.Reader) (Intent, error) {
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return Intent{}, fmt.Errorf("create request: %w", err)
	}

	req.Header.Set("Authorization", "Bearer "+c.secretKey)
	if body != nil {
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	}
	req.Header.Set("User-Agent", "CourseMarket-Server-Go/1.0.0")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return Intent{}, fmt.Errorf("%w: %v", ErrGatewayUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return Intent{}, ErrIntentNotFound
	}

	if resp.StatusCode != http.StatusOK {
		var apiErr apiError
		if err := json.NewDecoder(resp.Body).Decode(&apiErr); err == nil && apiErr.Error.Message != "" {
			return Intent{}, fmt.Errorf("stripe API error: status=%d, code=%s: %s",
				resp.StatusCode, apiErr.Error.Code, apiErr.Error.Message)
		}
		return Intent{}, fmt.Errorf("stripe API error: status=%d", resp.StatusCode)
	}

	var intent Intent
	if err := json.NewDecoder(resp.Body).Decode(&intent); err != nil {
		return Intent{}, fmt.Errorf("decode response: %w", err)
	}

	return intent, nil
}
