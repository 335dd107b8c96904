package stripe

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"sync"

	"github.com/google/uuid"
)

// mockIntentPrefix marks locally synthesized intent identifiers. The id format
// is mock_secret_{uuid}_{courseId}_{userId}, so the webhook-free confirm path
// can recover the course without a gateway round trip.
const mockIntentPrefix = "mock_secret_"

// MockGateway synthesizes intents locally without any network calls. Every
// mock intent is considered succeeded as soon as it exists.
type MockGateway struct {
	mu      sync.RWMutex
	intents map[string]Intent
}

// NewMockGateway creates a credential-less gateway for development and tests.
func NewMockGateway() *MockGateway {
	return &MockGateway{intents: make(map[string]Intent)}
}

// CreateIntent synthesizes an intent whose identifier embeds the course and
// user from the metadata.
func (m *MockGateway) CreateIntent(ctx context.Context, amountMinor int64, currency string, metadata map[string]string) (Intent, error) {
	id := fmt.Sprintf("%s%s_%s_%s", mockIntentPrefix, uuid.New().String(), metadata["courseId"], metadata["userId"])

	intent := Intent{
		ID:           id,
		ClientSecret: id,
		Status:       StatusSucceeded,
		Amount:       amountMinor,
		Currency:     currency,
		Metadata:     copyMetadata(metadata),
	}

	m.mu.Lock()
	m.intents[id] = intent
	m.mu.Unlock()

	return intent, nil
}

// GetIntent returns a previously created intent, or reconstructs one from the
// identifier itself when the process has restarted since creation.
func (m *MockGateway) GetIntent(ctx context.Context, intentID string) (Intent, error) {
	m.mu.RLock()
	intent, ok := m.intents[intentID]
	m.mu.RUnlock()
	if ok {
		return intent, nil
	}

	courseID, userID, ok := ParseMockIntentID(intentID)
	if !ok {
		return Intent{}, ErrIntentNotFound
	}

	return Intent{
		ID:           intentID,
		ClientSecret: intentID,
		Status:       StatusSucceeded,
		Metadata: map[string]string{
			"courseId": strconv.FormatUint(uint64(courseID), 10),
			"userId":   strconv.FormatUint(uint64(userID), 10),
		},
	}, nil
}

// VerifySucceeded always succeeds for well-formed mock identifiers.
func (m *MockGateway) VerifySucceeded(ctx context.Context, intentID string) (bool, error) {
	if !IsMockIntentID(intentID) {
		return false, nil
	}
	_, _, ok := ParseMockIntentID(intentID)
	return ok, nil
}

// IsMockIntentID reports whether the identifier was synthesized by a mock gateway.
func IsMockIntentID(intentID string) bool {
	return strings.HasPrefix(intentID, mockIntentPrefix)
}

// ParseMockIntentID extracts the course and user ids embedded in a mock
// identifier. ok is false for identifiers not in mock format.
func ParseMockIntentID(intentID string) (courseID, userID uint, ok bool) {
	if !IsMockIntentID(intentID) {
		return 0, 0, false
	}

	// mock_secret_{uuid}_{courseId}_{userId} splits into 5 parts; the uuid
	// itself contains no underscores.
	parts := strings.Split(intentID, "_")
	if len(parts) < 5 {
		return 0, 0, false
	}

	course, err := strconv.ParseUint(parts[3], 10, 32)
	if err != nil {
		return 0, 0, false
	}

	user, err := strconv.ParseUint(parts[4], 10, 32)
	if err != nil {
		return 0, 0, false
	}

	return uint(course), uint(user), true
}

func copyMetadata(metadata map[string]string) map[string]string {
	copied := make(map[string]string, len(metadata))
	for key, value := range metadata {
		copied[key] = value
	}
	return copied
}
