package stripe

import (
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const webhookSecret = "whsec_test_secret"

func signedPayload(t *testing.T, eventType, intentID string) ([]byte, string) {
	t.Helper()
	payload := []byte(fmt.Sprintf(
		`{"id":"evt_1","type":%q,"data":{"object":{"id":%q,"status":"succeeded","metadata":{"courseId":"3","userId":"4"}}}}`,
		eventType, intentID,
	))
	return payload, SignPayload(payload, webhookSecret, time.Now())
}

func TestParseWebhookValidSignature(t *testing.T) {
	payload, header := signedPayload(t, EventPaymentSucceeded, "pi_123")

	event, err := ParseWebhook(payload, header, webhookSecret)
	require.NoError(t, err)

	assert.Equal(t, "evt_1", event.ID)
	assert.Equal(t, EventPaymentSucceeded, event.Type)
	assert.Equal(t, "pi_123", event.Intent().ID)
	assert.Equal(t, "3", event.Intent().Metadata["courseId"])
}

func TestParseWebhookWrongSecret(t *testing.T) {
	payload, header := signedPayload(t, EventPaymentSucceeded, "pi_123")

	_, err := ParseWebhook(payload, header, "whsec_other")
	assert.ErrorIs(t, err, ErrInvalidSignature)
}

func TestParseWebhookTamperedPayload(t *testing.T) {
	payload, header := signedPayload(t, EventPaymentSucceeded, "pi_123")
	payload[len(payload)-2] = 'x'

	_, err := ParseWebhook(payload, header, webhookSecret)
	assert.ErrorIs(t, err, ErrInvalidSignature)
}

func TestParseWebhookMissingHeader(t *testing.T) {
	payload, _ := signedPayload(t, EventPaymentSucceeded, "pi_123")

	_, err := ParseWebhook(payload, "", webhookSecret)
	assert.ErrorIs(t, err, ErrInvalidSignature)
}

func TestVerifySignatureStaleTimestamp(t *testing.T) {
	payload := []byte(`{"id":"evt_1"}`)
	header := SignPayload(payload, webhookSecret, time.Now().Add(-10*time.Minute))

	err := VerifySignature(payload, header, webhookSecret, DefaultWebhookTolerance)
	assert.ErrorIs(t, err, ErrInvalidSignature)
}

func TestVerifySignatureRotatedSecrets(t *testing.T) {
	payload := []byte(`{"id":"evt_1"}`)
	now := time.Now()

	// Header carrying an old-secret signature plus the current one.
	stale := SignPayload(payload, "whsec_retired", now)
	current := SignPayload(payload, webhookSecret, now)
	combined := stale + "," + current[len(fmt.Sprintf("t=%d,", now.Unix())):]

	err := VerifySignature(payload, combined, webhookSecret, DefaultWebhookTolerance)
	assert.NoError(t, err)
}
