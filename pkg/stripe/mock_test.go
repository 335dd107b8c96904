package stripe

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMockGatewayCreateIntentEmbedsMetadata(t *testing.T) {
	gateway := NewMockGateway()

	intent, err := gateway.CreateIntent(context.Background(), 4999, "usd", map[string]string{
		"courseId": "12",
		"userId":   "34",
	})
	require.NoError(t, err)

	assert.True(t, IsMockIntentID(intent.ID))
	assert.Equal(t, intent.ID, intent.ClientSecret)
	assert.Equal(t, StatusSucceeded, intent.Status)
	assert.Equal(t, int64(4999), intent.Amount)

	courseID, userID, ok := ParseMockIntentID(intent.ID)
	require.True(t, ok)
	assert.Equal(t, uint(12), courseID)
	assert.Equal(t, uint(34), userID)
}

func TestMockGatewayGetIntentSurvivesRestart(t *testing.T) {
	gateway := NewMockGateway()

	intent, err := gateway.CreateIntent(context.Background(), 100, "usd", map[string]string{
		"courseId": "7",
		"userId":   "9",
	})
	require.NoError(t, err)

	// A fresh gateway has no stored intents, like a restarted process.
	fresh := NewMockGateway()
	got, err := fresh.GetIntent(context.Background(), intent.ID)
	require.NoError(t, err)
	assert.Equal(t, "7", got.Metadata["courseId"])
	assert.Equal(t, "9", got.Metadata["userId"])
}

func TestMockGatewayGetIntentUnknown(t *testing.T) {
	gateway := NewMockGateway()

	_, err := gateway.GetIntent(context.Background(), "pi_123_secret_456")
	assert.ErrorIs(t, err, ErrIntentNotFound)
}

func TestMockGatewayVerifySucceeded(t *testing.T) {
	gateway := NewMockGateway()

	intent, err := gateway.CreateIntent(context.Background(), 100, "usd", map[string]string{
		"courseId": "1",
		"userId":   "2",
	})
	require.NoError(t, err)

	ok, err := gateway.VerifySucceeded(context.Background(), intent.ID)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = gateway.VerifySucceeded(context.Background(), "pi_live_id")
	require.NoError(t, err)
	assert.False(t, ok)

	ok, err = gateway.VerifySucceeded(context.Background(), "mock_secret_malformed")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestParseMockIntentIDRejectsGarbage(t *testing.T) {
	cases := []string{
		"",
		"pi_123",
		"mock_secret_",
		"mock_secret_uuid_notanumber_5",
		"mock_secret_uuid_5_notanumber",
	}

	for _, id := range cases {
		_, _, ok := ParseMockIntentID(id)
		assert.False(t, ok, "expected %q to be rejected", id)
	}
}
