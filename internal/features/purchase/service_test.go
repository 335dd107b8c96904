package purchase

import (
	"context"
	"fmt"
	"io"
	"testing"

	"log/slog"

	"github.com/glebarez/sqlite"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/coursemarket/server-go/internal/features/course"
	"github.com/coursemarket/server-go/internal/features/notification"
	"github.com/coursemarket/server-go/internal/features/user"
	"github.com/coursemarket/server-go/pkg/stripe"
	"github.com/coursemarket/server-go/pkg/types"
)

func openTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", uuid.NewString())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		TranslateError: true,
		Logger:         gormlogger.Default.LogMode(gormlogger.Silent),
	})
	require.NoError(t, err)

	require.NoError(t, db.AutoMigrate(
		&user.User{}, &course.Course{}, &Purchase{}, &notification.Notification{},
	))
	return db
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type fixture struct {
	db         *gorm.DB
	gateway    *stripe.MockGateway
	svc        *Service
	learner    user.User
	instructor user.User
	courseID   uint
	price      types.Money
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	db := openTestDB(t)
	gateway := stripe.NewMockGateway()
	svc := NewService(db, discardLogger(), gateway, "usd")

	instructor, err := user.Create(db, user.CreateInput{
		Email:     "instructor@example.com",
		Password:  "password123",
		FirstName: "Ada",
		LastName:  "Instructor",
		Role:      types.RoleInstructor,
	})
	require.NoError(t, err)

	learner, err := user.Create(db, user.CreateInput{
		Email:     "learner@example.com",
		Password:  "password123",
		FirstName: "Bo",
		LastName:  "Learner",
		Role:      types.RoleLearner,
	})
	require.NoError(t, err)

	price := types.NewMoney(29.99)
	crs, err := course.Create(db, course.CreateInput{
		Title:        "Intro to Go",
		Description:  "From zero to goroutines",
		Price:        price,
		InstructorID: instructor.ID,
	})
	require.NoError(t, err)

	return &fixture{
		db: db, gateway: gateway, svc: svc,
		learner: learner, instructor: instructor,
		courseID: crs.ID, price: price,
	}
}

func (f *fixture) purchaseCount(t *testing.T, intentID string) int64 {
	t.Helper()
	var count int64
	require.NoError(t, f.db.Model(&Purchase{}).
		Where("payment_intent_id = ?", intentID).Count(&count).Error)
	return count
}

func (f *fixture) succeededEvent(intentID string) stripe.Event {
	event := stripe.Event{ID: "evt_1", Type: stripe.EventPaymentSucceeded}
	event.Data.Object = stripe.Intent{
		ID:     intentID,
		Status: stripe.StatusSucceeded,
		Metadata: map[string]string{
			"courseId": fmt.Sprintf("%d", f.courseID),
			"userId":   fmt.Sprintf("%d", f.learner.ID),
		},
	}
	return event
}

func TestCreatePaymentIntent(t *testing.T) {
	f := newFixture(t)

	resp, err := f.svc.CreatePaymentIntent(context.Background(), f.learner.ID, f.courseID)
	require.NoError(t, err)

	assert.NotEmpty(t, resp.ClientSecret)
	assert.True(t, stripe.IsMockIntentID(resp.PaymentIntentID))

	courseID, userID, ok := stripe.ParseMockIntentID(resp.PaymentIntentID)
	require.True(t, ok)
	assert.Equal(t, f.courseID, courseID)
	assert.Equal(t, f.learner.ID, userID)
}

func TestCreatePaymentIntentUnknownCourse(t *testing.T) {
	f := newFixture(t)

	_, err := f.svc.CreatePaymentIntent(context.Background(), f.learner.ID, 9999)
	assert.ErrorIs(t, err, ErrCourseNotFound)
}

func TestCreatePaymentIntentAlreadyOwned(t *testing.T) {
	f := newFixture(t)

	resp, err := f.svc.CreatePaymentIntent(context.Background(), f.learner.ID, f.courseID)
	require.NoError(t, err)

	_, err = f.svc.ConfirmPurchase(context.Background(), f.learner.ID, resp.PaymentIntentID)
	require.NoError(t, err)

	_, err = f.svc.CreatePaymentIntent(context.Background(), f.learner.ID, f.courseID)
	assert.ErrorIs(t, err, ErrAlreadyPurchased)
}

func TestConfirmPurchase(t *testing.T) {
	f := newFixture(t)

	resp, err := f.svc.CreatePaymentIntent(context.Background(), f.learner.ID, f.courseID)
	require.NoError(t, err)

	p, err := f.svc.ConfirmPurchase(context.Background(), f.learner.ID, resp.PaymentIntentID)
	require.NoError(t, err)

	assert.Equal(t, f.learner.ID, p.UserID)
	assert.Equal(t, f.courseID, p.CourseID)
	assert.Equal(t, types.PurchaseStatusCompleted, p.Status)
	assert.True(t, f.price.Equal(p.Amount))
	assert.False(t, p.PurchasedAt.IsZero())

	// The buyer gets a confirmation notification.
	count, err := notification.UnreadCount(f.db, f.learner.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(1), count)
}

func TestConfirmPurchaseIsIdempotent(t *testing.T) {
	f := newFixture(t)

	resp, err := f.svc.CreatePaymentIntent(context.Background(), f.learner.ID, f.courseID)
	require.NoError(t, err)

	first, err := f.svc.ConfirmPurchase(context.Background(), f.learner.ID, resp.PaymentIntentID)
	require.NoError(t, err)

	second, err := f.svc.ConfirmPurchase(context.Background(), f.learner.ID, resp.PaymentIntentID)
	require.NoError(t, err)

	assert.Equal(t, first.ID, second.ID)
	assert.Equal(t, int64(1), f.purchaseCount(t, resp.PaymentIntentID))
}

func TestRecordPurchaseInsertConflictReturnsExisting(t *testing.T) {
	f := newFixture(t)

	// Drive both reconciliation paths past their existence checks straight
	// into the insert, so the second one hits the unique index on the
	// intent id and must resolve to the row the first one created.
	intentID := "pi_raced"
	first, err := f.svc.recordPurchase(context.Background(), f.learner.ID, f.courseID, intentID, "confirm")
	require.NoError(t, err)

	second, err := f.svc.recordPurchase(context.Background(), f.learner.ID, f.courseID, intentID, "webhook")
	require.NoError(t, err)

	assert.Equal(t, first.ID, second.ID)
	assert.Equal(t, types.PurchaseStatusCompleted, second.Status)
	assert.Equal(t, int64(1), f.purchaseCount(t, intentID))
}

func TestConfirmPurchaseFailsClosedOnVerification(t *testing.T) {
	f := newFixture(t)

	_, err := f.svc.ConfirmPurchase(context.Background(), f.learner.ID, "pi_never_verified")
	assert.ErrorIs(t, err, ErrPaymentNotVerified)
	assert.Equal(t, int64(0), f.purchaseCount(t, "pi_never_verified"))
}

// outageGateway fails verification at the transport level.
type outageGateway struct {
	stripe.Gateway
}

func (outageGateway) VerifySucceeded(ctx context.Context, intentID string) (bool, error) {
	return false, stripe.ErrGatewayUnavailable
}

func TestConfirmPurchaseSurfacesGatewayOutage(t *testing.T) {
	f := newFixture(t)
	svc := NewService(f.db, discardLogger(), outageGateway{}, "usd")

	_, err := svc.ConfirmPurchase(context.Background(), f.learner.ID, "pi_down")
	assert.ErrorIs(t, err, stripe.ErrGatewayUnavailable)
	assert.NotErrorIs(t, err, ErrPaymentNotVerified)
	assert.Equal(t, int64(0), f.purchaseCount(t, "pi_down"))
}

func TestConfirmPurchaseSnapshotsPrice(t *testing.T) {
	f := newFixture(t)

	resp, err := f.svc.CreatePaymentIntent(context.Background(), f.learner.ID, f.courseID)
	require.NoError(t, err)

	p, err := f.svc.ConfirmPurchase(context.Background(), f.learner.ID, resp.PaymentIntentID)
	require.NoError(t, err)

	// A later price change must not rewrite what was charged.
	newPrice := types.NewMoney(99.99)
	_, err = course.Update(f.db, f.courseID, course.UpdateInput{Price: &newPrice})
	require.NoError(t, err)

	stored, err := GetByIntentID(f.db, resp.PaymentIntentID)
	require.NoError(t, err)
	assert.True(t, f.price.Equal(stored.Amount))
	assert.Equal(t, p.ID, stored.ID)
}

func TestWebhookSucceededCreatesPurchase(t *testing.T) {
	f := newFixture(t)

	intentID := "pi_webhook_first"
	require.NoError(t, f.svc.HandleWebhookEvent(context.Background(), f.succeededEvent(intentID)))

	stored, err := GetByIntentID(f.db, intentID)
	require.NoError(t, err)
	assert.Equal(t, types.PurchaseStatusCompleted, stored.Status)
	assert.Equal(t, f.learner.ID, stored.UserID)
	assert.True(t, f.price.Equal(stored.Amount))
}

func TestWebhookAfterConfirmIsNoOp(t *testing.T) {
	f := newFixture(t)

	resp, err := f.svc.CreatePaymentIntent(context.Background(), f.learner.ID, f.courseID)
	require.NoError(t, err)

	_, err = f.svc.ConfirmPurchase(context.Background(), f.learner.ID, resp.PaymentIntentID)
	require.NoError(t, err)

	require.NoError(t, f.svc.HandleWebhookEvent(context.Background(), f.succeededEvent(resp.PaymentIntentID)))
	assert.Equal(t, int64(1), f.purchaseCount(t, resp.PaymentIntentID))
}

func TestConfirmAfterWebhookReturnsExisting(t *testing.T) {
	f := newFixture(t)

	resp, err := f.svc.CreatePaymentIntent(context.Background(), f.learner.ID, f.courseID)
	require.NoError(t, err)

	require.NoError(t, f.svc.HandleWebhookEvent(context.Background(), f.succeededEvent(resp.PaymentIntentID)))

	p, err := f.svc.ConfirmPurchase(context.Background(), f.learner.ID, resp.PaymentIntentID)
	require.NoError(t, err)
	assert.Equal(t, types.PurchaseStatusCompleted, p.Status)
	assert.Equal(t, int64(1), f.purchaseCount(t, resp.PaymentIntentID))
}

func TestWebhookRepeatedDeliveries(t *testing.T) {
	f := newFixture(t)

	intentID := "pi_redelivered"
	for i := 0; i < 3; i++ {
		require.NoError(t, f.svc.HandleWebhookEvent(context.Background(), f.succeededEvent(intentID)))
	}

	assert.Equal(t, int64(1), f.purchaseCount(t, intentID))
}

func TestWebhookFailedMarksPurchase(t *testing.T) {
	f := newFixture(t)

	intentID := "pi_flaky"
	require.NoError(t, f.svc.HandleWebhookEvent(context.Background(), f.succeededEvent(intentID)))

	failed := stripe.Event{ID: "evt_2", Type: stripe.EventPaymentFailed}
	failed.Data.Object = stripe.Intent{ID: intentID, Status: stripe.StatusCanceled}
	require.NoError(t, f.svc.HandleWebhookEvent(context.Background(), failed))

	stored, err := GetByIntentID(f.db, intentID)
	require.NoError(t, err)
	assert.Equal(t, types.PurchaseStatusFailed, stored.Status)
}

func TestWebhookFailedWithoutPurchaseIsNoOp(t *testing.T) {
	f := newFixture(t)

	failed := stripe.Event{ID: "evt_3", Type: stripe.EventPaymentFailed}
	failed.Data.Object = stripe.Intent{ID: "pi_unknown", Status: stripe.StatusCanceled}

	assert.NoError(t, f.svc.HandleWebhookEvent(context.Background(), failed))
}

func TestWebhookIgnoresUnknownEventTypes(t *testing.T) {
	f := newFixture(t)

	event := stripe.Event{ID: "evt_4", Type: "charge.refunded"}
	assert.NoError(t, f.svc.HandleWebhookEvent(context.Background(), event))
}

func TestWebhookSucceededUnknownCourseIsSkipped(t *testing.T) {
	f := newFixture(t)

	event := f.succeededEvent("pi_ghost_course")
	event.Data.Object.Metadata["courseId"] = "4242"

	require.NoError(t, f.svc.HandleWebhookEvent(context.Background(), event))
	assert.Equal(t, int64(0), f.purchaseCount(t, "pi_ghost_course"))
}

func TestListForUser(t *testing.T) {
	f := newFixture(t)

	resp, err := f.svc.CreatePaymentIntent(context.Background(), f.learner.ID, f.courseID)
	require.NoError(t, err)
	_, err = f.svc.ConfirmPurchase(context.Background(), f.learner.ID, resp.PaymentIntentID)
	require.NoError(t, err)

	purchases, err := ListForUser(f.db, f.learner.ID)
	require.NoError(t, err)
	require.Len(t, purchases, 1)
	require.NotNil(t, purchases[0].Course)
	assert.Equal(t, "Intro to Go", purchases[0].Course.Title)

	none, err := ListForUser(f.db, f.instructor.ID)
	require.NoError(t, err)
	assert.Empty(t, none)
}
