package stripe

import (
	"context"
	"errors"
	"log/slog"

	"github.com/coursemarket/server-go/pkg/config"
)

// Intent statuses reported by the gateway.
const (
	StatusSucceeded = "succeeded"
	StatusCanceled  = "canceled"
)

var (
	// ErrIntentNotFound indicates the gateway has no record of the intent.
	ErrIntentNotFound = errors.New("payment intent not found")
	// ErrGatewayUnavailable indicates a network failure or timeout talking to the gateway.
	ErrGatewayUnavailable = errors.New("payment gateway unavailable")
	// ErrInvalidSignature indicates a webhook payload failed authenticity verification.
	ErrInvalidSignature = errors.New("invalid webhook signature")
)

// Intent is a gateway-side handle representing a single attempted charge.
type Intent struct {
	ID           string            `json:"id"`
	ClientSecret string            `json:"client_secret"`
	Status       string            `json:"status"`
	Amount       int64             `json:"amount"`
	Currency     string            `json:"currency"`
	Metadata     map[string]string `json:"metadata"`
}

// Gateway is the payment provider capability consumed by the purchase
// workflows. Implementations must be safe for concurrent use. Mock and live
// gateways are indistinguishable to callers except in how intent identifiers
// are formatted.
type Gateway interface {
	// CreateIntent mints a new payment intent for the given amount in minor
	// currency units. The metadata is opaque to the gateway and echoed back
	// on retrieval and in webhook events.
	CreateIntent(ctx context.Context, amountMinor int64, currency string, metadata map[string]string) (Intent, error)

	// GetIntent retrieves an intent by its identifier.
	GetIntent(ctx context.Context, intentID string) (Intent, error)

	// VerifySucceeded reports whether the intent has reached the succeeded
	// state. A transport failure returns an error, never a false success.
	VerifySucceeded(ctx context.Context, intentID string) (bool, error)
}

// NewGateway selects the gateway implementation once, at construction time.
// Without a secret key the server runs against the local mock; call sites
// never branch on credentials.
func NewGateway(cfg config.StripeConfig, logger *slog.Logger) Gateway {
	if cfg.MockMode() {
		logger.Warn("no stripe credentials configured, payment gateway running in mock mode")
		return NewMockGateway()
	}
	return NewClient(cfg.SecretKey, cfg.BaseURL)
}
