package stripe

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Webhook event types the server acts on.
const (
	EventPaymentSucceeded = "payment_intent.succeeded"
	EventPaymentFailed    = "payment_intent.payment_failed"
)

// DefaultWebhookTolerance bounds how old a signed webhook timestamp may be.
const DefaultWebhookTolerance = 5 * time.Minute

// Event is a gateway webhook delivery.
type Event struct {
	ID   string `json:"id"`
	Type string `json:"type"`
	Data struct {
		Object Intent `json:"object"`
	} `json:"data"`
}

// Intent returns the payment intent carried by the event.
func (e Event) Intent() Intent {
	return e.Data.Object
}

// ParseWebhook verifies the Stripe-Signature header against the shared secret
// and unmarshals the event. It returns ErrInvalidSignature before touching the
// payload contents, so a tampered delivery causes no state change.
func ParseWebhook(payload []byte, sigHeader, secret string) (Event, error) {
	if err := VerifySignature(payload, sigHeader, secret, DefaultWebhookTolerance); err != nil {
		return Event{}, err
	}

	var event Event
	if err := json.Unmarshal(payload, &event); err != nil {
		return Event{}, fmt.Errorf("parse webhook payload: %w", err)
	}

	return event, nil
}

// VerifySignature checks the v1 scheme of the Stripe-Signature header:
// HMAC-SHA256 over "{timestamp}.{payload}" with the endpoint secret. Multiple
// v1 entries are accepted if any matches (secret rotation).
func VerifySignature(payload []byte, sigHeader, secret string, tolerance time.Duration) error {
	timestamp, signatures, err := parseSignatureHeader(sigHeader)
	if err != nil {
		return err
	}

	if tolerance > 0 {
		issued := time.Unix(timestamp, 0)
		if time.Since(issued) > tolerance {
			return fmt.Errorf("%w: timestamp outside tolerance", ErrInvalidSignature)
		}
	}

	mac := hmac.New(sha256.New, []byte(secret))
	fmt.Fprintf(mac, "%d.", timestamp)
	mac.Write(payload)
	expected := mac.Sum(nil)

	for _, signature := range signatures {
		decoded, err := hex.DecodeString(signature)
		if err != nil {
			continue
		}
		if hmac.Equal(decoded, expected) {
			return nil
		}
	}

	return ErrInvalidSignature
}

// SignPayload produces a Stripe-Signature header value for the payload. Used
// by tests and by local tooling that replays webhook deliveries.
func SignPayload(payload []byte, secret string, at time.Time) string {
	mac := hmac.New(sha256.New, []byte(secret))
	fmt.Fprintf(mac, "%d.", at.Unix())
	mac.Write(payload)
	return fmt.Sprintf("t=%d,v1=%s", at.Unix(), hex.EncodeToString(mac.Sum(nil)))
}

func parseSignatureHeader(header string) (timestamp int64, signatures []string, err error) {
	if strings.TrimSpace(header) == "" {
		return 0, nil, fmt.Errorf("%w: missing signature header", ErrInvalidSignature)
	}

	for _, part := range strings.Split(header, ",") {
		kv := strings.SplitN(strings.TrimSpace(part), "=", 2)
		if len(kv) != 2 {
			continue
		}
		switch kv[0] {
		case "t":
			timestamp, err = strconv.ParseInt(kv[1], 10, 64)
			if err != nil {
				return 0, nil, fmt.Errorf("%w: malformed timestamp", ErrInvalidSignature)
			}
		case "v1":
			signatures = append(signatures, kv[1])
		}
	}

	if timestamp == 0 || len(signatures) == 0 {
		return 0, nil, fmt.Errorf("%w: malformed signature header", ErrInvalidSignature)
	}

	return timestamp, signatures, nil
}
