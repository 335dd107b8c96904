package purchase

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"log/slog"

	"gorm.io/gorm"

	"github.com/coursemarket/server-go/internal/features/course"
	"github.com/coursemarket/server-go/internal/features/notification"
	"github.com/coursemarket/server-go/pkg/metrics"
	"github.com/coursemarket/server-go/pkg/stripe"
	"github.com/coursemarket/server-go/pkg/types"
)

// Service reconciles payments into purchase records. Both the confirm
// endpoint and the webhook funnel through recordPurchase, so either path can
// arrive first and the other becomes a no-op.
type Service struct {
	db       *gorm.DB
	logger   *slog.Logger
	gateway  stripe.Gateway
	currency string
}

// NewService builds a purchase service instance.
func NewService(db *gorm.DB, logger *slog.Logger, gateway stripe.Gateway, currency string) *Service {
	if currency == "" {
		currency = "usd"
	}
	return &Service{db: db, logger: logger, gateway: gateway, currency: currency}
}

// IntentResponse is returned to the client to drive the payment UI.
type IntentResponse struct {
	ClientSecret    string `json:"clientSecret"`
	PaymentIntentID string `json:"paymentIntentId"`
}

// CreatePaymentIntent opens a payment for a course after checking the user
// does not already own it.
func (s *Service) CreatePaymentIntent(ctx context.Context, userID, courseID uint) (IntentResponse, error) {
	crs, err := course.Get(s.db.WithContext(ctx), courseID)
	if err != nil {
		if errors.Is(err, course.ErrCourseNotFound) {
			return IntentResponse{}, ErrCourseNotFound
		}
		return IntentResponse{}, err
	}

	owned, err := HasCompleted(s.db.WithContext(ctx), userID, courseID)
	if err != nil {
		return IntentResponse{}, err
	}
	if owned {
		return IntentResponse{}, ErrAlreadyPurchased
	}

	intent, err := s.gateway.CreateIntent(ctx, crs.Price.MinorUnits(), s.currency, map[string]string{
		"courseId":   strconv.FormatUint(uint64(courseID), 10),
		"userId":     strconv.FormatUint(uint64(userID), 10),
		"courseName": crs.Title,
	})
	if err != nil {
		return IntentResponse{}, err
	}

	return IntentResponse{ClientSecret: intent.ClientSecret, PaymentIntentID: intent.ID}, nil
}

// ConfirmPurchase verifies the payment with the gateway and records the
// purchase. Repeated confirms for the same intent return the existing
// purchase unchanged.
func (s *Service) ConfirmPurchase(ctx context.Context, userID uint, intentID string) (Purchase, error) {
	succeeded, err := s.gateway.VerifySucceeded(ctx, intentID)
	if err != nil {
		return Purchase{}, err
	}
	if !succeeded {
		return Purchase{}, ErrPaymentNotVerified
	}

	if existing, err := GetByIntentID(s.db.WithContext(ctx), intentID); err == nil {
		return existing, nil
	} else if !errors.Is(err, gorm.ErrRecordNotFound) {
		return Purchase{}, err
	}

	courseID, err := s.resolveCourseID(ctx, intentID)
	if err != nil {
		return Purchase{}, err
	}

	return s.recordPurchase(ctx, userID, courseID, intentID, "confirm")
}

// HandleWebhookEvent applies a verified gateway event. Succeeded events
// create the purchase if the confirm endpoint has not already; failed events
// flip an existing purchase to failed.
func (s *Service) HandleWebhookEvent(ctx context.Context, event stripe.Event) error {
	intent := event.Intent()

	switch event.Type {
	case stripe.EventPaymentSucceeded:
		return s.applySucceeded(ctx, intent)
	case stripe.EventPaymentFailed:
		return s.applyFailed(ctx, intent)
	default:
		s.logger.InfoContext(ctx, "webhook event ignored", slog.String("type", event.Type))
		return nil
	}
}

func (s *Service) applySucceeded(ctx context.Context, intent stripe.Intent) error {
	if _, err := GetByIntentID(s.db.WithContext(ctx), intent.ID); err == nil {
		s.logger.InfoContext(ctx, "purchase already recorded",
			slog.String("payment_intent_id", intent.ID))
		return nil
	} else if !errors.Is(err, gorm.ErrRecordNotFound) {
		return err
	}

	courseIDStr, okCourse := intent.Metadata["courseId"]
	userIDStr, okUser := intent.Metadata["userId"]
	if !okCourse || !okUser {
		s.logger.WarnContext(ctx, "webhook intent missing metadata",
			slog.String("payment_intent_id", intent.ID))
		return nil
	}

	courseID, err := parseUintField(courseIDStr)
	if err != nil {
		return ErrInvalidIntentID
	}
	userID, err := parseUintField(userIDStr)
	if err != nil {
		return ErrInvalidIntentID
	}

	_, err = s.recordPurchase(ctx, userID, courseID, intent.ID, "webhook")
	if errors.Is(err, ErrCourseNotFound) {
		s.logger.WarnContext(ctx, "webhook references unknown course",
			slog.String("payment_intent_id", intent.ID),
			slog.Uint64("course_id", uint64(courseID)))
		return nil
	}
	return err
}

func (s *Service) applyFailed(ctx context.Context, intent stripe.Intent) error {
	p, err := GetByIntentID(s.db.WithContext(ctx), intent.ID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil
		}
		return err
	}

	if err := s.db.WithContext(ctx).Model(&p).
		Update("status", types.PurchaseStatusFailed).Error; err != nil {
		return err
	}

	s.notify(ctx, p.UserID, types.NotificationGeneral,
		"Payment Failed", "Your payment has failed. Please try again.", nil)
	return nil
}

// recordPurchase inserts the purchase with the course's current price as the
// charged amount. A unique violation on the intent id means the concurrent
// path won the race, so the existing row is re-read and returned.
func (s *Service) recordPurchase(ctx context.Context, userID, courseID uint, intentID, source string) (Purchase, error) {
	crs, err := course.Get(s.db.WithContext(ctx), courseID)
	if err != nil {
		if errors.Is(err, course.ErrCourseNotFound) {
			return Purchase{}, ErrCourseNotFound
		}
		return Purchase{}, err
	}

	p := Purchase{
		UserID:          userID,
		CourseID:        courseID,
		Amount:          crs.Price,
		PaymentIntentID: intentID,
		PurchasedAt:     time.Now().UTC(),
		Status:          types.PurchaseStatusCompleted,
	}

	if err := s.db.WithContext(ctx).Create(&p).Error; err != nil {
		if isUniqueViolation(err) {
			return GetByIntentID(s.db.WithContext(ctx), intentID)
		}
		return Purchase{}, err
	}

	p.Course = &crs
	metrics.RecordPurchaseReconciled(source)

	title, message := "Purchase Successful", fmt.Sprintf("You have successfully purchased '%s'", crs.Title)
	if source == "webhook" {
		title = "Purchase Confirmed"
		message = fmt.Sprintf("Your purchase of '%s' has been confirmed via webhook", crs.Title)
	}
	purchaseID := p.ID
	s.notify(ctx, userID, types.NotificationPurchaseConfirmation, title, message, &purchaseID)

	return p, nil
}

// resolveCourseID extracts the course from a mock token directly, otherwise
// asks the gateway for the intent metadata.
func (s *Service) resolveCourseID(ctx context.Context, intentID string) (uint, error) {
	if stripe.IsMockIntentID(intentID) {
		courseID, _, ok := stripe.ParseMockIntentID(intentID)
		if !ok {
			return 0, ErrInvalidIntentID
		}
		return courseID, nil
	}

	intent, err := s.gateway.GetIntent(ctx, intentID)
	if err != nil {
		return 0, err
	}

	raw, ok := intent.Metadata["courseId"]
	if !ok {
		return 0, ErrInvalidIntentID
	}
	return parseUintField(raw)
}

// notify records an in-app notification. Failures are logged, never
// surfaced: the purchase state change already happened.
func (s *Service) notify(ctx context.Context, userID uint, kind types.NotificationType, title, message string, relatedID *uint) {
	_, err := notification.Create(s.db.WithContext(ctx), notification.CreateInput{
		UserID:          userID,
		Type:            kind,
		Title:           title,
		Message:         message,
		RelatedEntityID: relatedID,
	})
	if err != nil {
		s.logger.ErrorContext(ctx, "purchase notification failed",
			slog.Uint64("user_id", uint64(userID)),
			slog.String("error", err.Error()))
	}
}

func parseUintField(raw string) (uint, error) {
	parsed, err := strconv.ParseUint(strings.TrimSpace(raw), 10, 32)
	if err != nil {
		return 0, err
	}
	return uint(parsed), nil
}

func isUniqueViolation(err error) bool {
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	msg := err.Error()
	return strings.Contains(msg, "duplicate key") || strings.Contains(msg, "UNIQUE constraint")
}
