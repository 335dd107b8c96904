package livelesson

import (
	"context"
	"fmt"
	"io"
	"math/rand"
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
	"github.com/coursemarket/server-go/internal/services/matching"
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
		&user.User{}, &course.Course{},
		&LiveLessonRequest{}, &InstructorAssignment{},
		&notification.Notification{},
	))
	return db
}

func newService(t *testing.T, db *gorm.DB) *Service {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	matcher := matching.NewService(db, logger, rand.NewSource(7))
	return NewService(db, logger, matcher)
}

func createUser(t *testing.T, db *gorm.DB, email string, role types.UserRole) user.User {
	t.Helper()
	usr, err := user.Create(db, user.CreateInput{
		Email:     email,
		Password:  "password123",
		FirstName: "Test",
		LastName:  "User",
		Role:      role,
	})
	require.NoError(t, err)
	return usr
}

func TestCreateRequestAssignsInstructor(t *testing.T) {
	db := openTestDB(t)
	svc := newService(t, db)

	learner := createUser(t, db, "learner@example.com", types.RoleLearner)
	instructor := createUser(t, db, "instructor@example.com", types.RoleInstructor)

	req, err := svc.CreateRequest(context.Background(), CreateRequestInput{
		UserID:      learner.ID,
		Topic:       "linear algebra",
		Description: "matrices and eigenvalues",
		Duration:    60,
	})
	require.NoError(t, err)

	assert.Equal(t, types.RequestStatusAssigned, req.Status)
	require.NotNil(t, req.Assignment)
	assert.Equal(t, instructor.ID, req.Assignment.InstructorID)
	assert.Equal(t, types.RequestStatusAssigned, req.Assignment.Status)
	assert.False(t, req.Assignment.AssignedAt.IsZero())

	// The instructor receives an assignment notification.
	count, err := notification.UnreadCount(db, instructor.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(1), count)
}

func TestCreateRequestStaysPendingWithoutInstructors(t *testing.T) {
	db := openTestDB(t)
	svc := newService(t, db)

	learner := createUser(t, db, "learner@example.com", types.RoleLearner)

	req, err := svc.CreateRequest(context.Background(), CreateRequestInput{
		UserID:      learner.ID,
		Topic:       "calculus",
		Description: "derivatives and integrals",
		Duration:    30,
	})
	assert.ErrorIs(t, err, matching.ErrNoInstructorsAvailable)

	assert.NotZero(t, req.ID)
	assert.Equal(t, types.RequestStatusPending, req.Status)
	assert.Nil(t, req.Assignment)

	var count int64
	require.NoError(t, db.Model(&InstructorAssignment{}).Count(&count).Error)
	assert.Zero(t, count)
}

func TestCreateRequestValidation(t *testing.T) {
	db := openTestDB(t)
	svc := newService(t, db)

	_, err := svc.CreateRequest(context.Background(), CreateRequestInput{
		UserID: 1, Topic: "   ", Description: "something", Duration: 60,
	})
	assert.ErrorIs(t, err, ErrTopicRequired)

	_, err = svc.CreateRequest(context.Background(), CreateRequestInput{
		UserID: 1, Topic: "algebra", Description: "  ", Duration: 60,
	})
	assert.ErrorIs(t, err, ErrDescriptionRequired)

	_, err = svc.CreateRequest(context.Background(), CreateRequestInput{
		UserID: 1, Topic: "algebra", Description: "something", Duration: 0,
	})
	assert.ErrorIs(t, err, ErrInvalidDuration)
}

func TestUpdateStatusKeepsRequestAndAssignmentInLockstep(t *testing.T) {
	db := openTestDB(t)
	svc := newService(t, db)

	learner := createUser(t, db, "learner@example.com", types.RoleLearner)
	instructor := createUser(t, db, "instructor@example.com", types.RoleInstructor)

	req, err := svc.CreateRequest(context.Background(), CreateRequestInput{
		UserID: learner.ID, Topic: "physics", Description: "mechanics basics", Duration: 45,
	})
	require.NoError(t, err)

	updated, err := svc.UpdateStatus(context.Background(), req.ID, instructor.ID, types.RoleInstructor, types.RequestStatusCompleted)
	require.NoError(t, err)
	assert.Equal(t, types.RequestStatusCompleted, updated.Status)

	var storedReq LiveLessonRequest
	require.NoError(t, db.First(&storedReq, req.ID).Error)
	var storedAsg InstructorAssignment
	require.NoError(t, db.First(&storedAsg, "request_id = ?", req.ID).Error)

	assert.Equal(t, types.RequestStatusCompleted, storedReq.Status)
	assert.Equal(t, types.RequestStatusCompleted, storedAsg.Status)

	// Completion notifies the requester.
	count, err := notification.UnreadCount(db, learner.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(1), count)
}

func TestUpdateStatusAuthorization(t *testing.T) {
	db := openTestDB(t)
	svc := newService(t, db)

	learner := createUser(t, db, "learner@example.com", types.RoleLearner)
	instructor := createUser(t, db, "instructor@example.com", types.RoleInstructor)
	stranger := createUser(t, db, "stranger@example.com", types.RoleLearner)
	admin := createUser(t, db, "admin@example.com", types.RoleAdmin)

	req, err := svc.CreateRequest(context.Background(), CreateRequestInput{
		UserID: learner.ID, Topic: "chemistry", Description: "organic chemistry help", Duration: 30,
	})
	require.NoError(t, err)

	_, err = svc.UpdateStatus(context.Background(), req.ID, stranger.ID, types.RoleLearner, types.RequestStatusCancelled)
	assert.ErrorIs(t, err, ErrForbidden)

	_, err = svc.UpdateStatus(context.Background(), req.ID, learner.ID, types.RoleLearner, types.RequestStatusCancelled)
	assert.NoError(t, err)

	_, err = svc.UpdateStatus(context.Background(), req.ID, instructor.ID, types.RoleInstructor, types.RequestStatusAssigned)
	assert.NoError(t, err)

	_, err = svc.UpdateStatus(context.Background(), req.ID, admin.ID, types.RoleAdmin, types.RequestStatusCompleted)
	assert.NoError(t, err)
}

func TestUpdateStatusPendingRequestWithoutAssignment(t *testing.T) {
	db := openTestDB(t)
	svc := newService(t, db)

	learner := createUser(t, db, "learner@example.com", types.RoleLearner)

	req, err := svc.CreateRequest(context.Background(), CreateRequestInput{
		UserID: learner.ID, Topic: "biology", Description: "cell biology intro", Duration: 30,
	})
	require.ErrorIs(t, err, matching.ErrNoInstructorsAvailable)
	require.Equal(t, types.RequestStatusPending, req.Status)

	updated, err := svc.UpdateStatus(context.Background(), req.ID, learner.ID, types.RoleLearner, types.RequestStatusCancelled)
	require.NoError(t, err)
	assert.Equal(t, types.RequestStatusCancelled, updated.Status)
	assert.Nil(t, updated.Assignment)
}

func TestUpdateStatusUnknownRequest(t *testing.T) {
	db := openTestDB(t)
	svc := newService(t, db)

	_, err := svc.UpdateStatus(context.Background(), 404, 1, types.RoleAdmin, types.RequestStatusCancelled)
	assert.ErrorIs(t, err, ErrRequestNotFound)
}

func TestUpdateStatusRejectsUnknownStatus(t *testing.T) {
	db := openTestDB(t)
	svc := newService(t, db)

	_, err := svc.UpdateStatus(context.Background(), 1, 1, types.RoleAdmin, types.RequestStatus("abandoned"))
	assert.ErrorIs(t, err, ErrInvalidStatus)
}

func TestListForRequesterAndAssignedTo(t *testing.T) {
	db := openTestDB(t)
	svc := newService(t, db)

	learner := createUser(t, db, "learner@example.com", types.RoleLearner)
	instructor := createUser(t, db, "instructor@example.com", types.RoleInstructor)
	other := createUser(t, db, "other@example.com", types.RoleLearner)

	for i := 0; i < 2; i++ {
		_, err := svc.CreateRequest(context.Background(), CreateRequestInput{
			UserID: learner.ID, Topic: fmt.Sprintf("topic %d", i), Description: "weekly tutoring", Duration: 30,
		})
		require.NoError(t, err)
	}

	mine, err := svc.ListForRequester(context.Background(), learner.ID)
	require.NoError(t, err)
	require.Len(t, mine, 2)
	for _, req := range mine {
		require.NotNil(t, req.Assignment)
		require.NotNil(t, req.Assignment.Instructor)
		assert.Equal(t, instructor.ID, req.Assignment.Instructor.ID)
	}

	none, err := svc.ListForRequester(context.Background(), other.ID)
	require.NoError(t, err)
	assert.Empty(t, none)

	assigned, err := svc.ListAssignedTo(context.Background(), instructor.ID)
	require.NoError(t, err)
	require.Len(t, assigned, 2)
	for _, asg := range assigned {
		require.NotNil(t, asg.Request)
		require.NotNil(t, asg.Request.User)
		assert.Equal(t, learner.ID, asg.Request.User.ID)
	}
}
