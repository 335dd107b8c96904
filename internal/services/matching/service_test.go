package matching

import (
	"context"
	"fmt"
	"io"
	"math/rand"
	"testing"
	"time"

	"log/slog"

	"github.com/glebarez/sqlite"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/coursemarket/server-go/internal/features/course"
	"github.com/coursemarket/server-go/internal/features/user"
	"github.com/coursemarket/server-go/pkg/types"
)

// testAssignment mirrors the assignment table without importing the live
// lesson feature, which itself depends on this package.
type testAssignment struct {
	ID           uint `gorm:"primaryKey"`
	RequestID    uint
	InstructorID uint
	MatchScore   int
	AssignedAt   time.Time
	Status       types.RequestStatus
}

func (testAssignment) TableName() string { return "instructor_assignments" }

func openTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", uuid.NewString())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		TranslateError: true,
		Logger:         gormlogger.Default.LogMode(gormlogger.Silent),
	})
	require.NoError(t, err)

	require.NoError(t, db.AutoMigrate(&user.User{}, &course.Course{}, &testAssignment{}))
	return db
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func createInstructor(t *testing.T, db *gorm.DB, email string) user.User {
	t.Helper()
	usr, err := user.Create(db, user.CreateInput{
		Email:     email,
		Password:  "password123",
		FirstName: "Test",
		LastName:  "Instructor",
		Role:      types.RoleInstructor,
	})
	require.NoError(t, err)
	return usr
}

func createCourse(t *testing.T, db *gorm.DB, instructorID uint, title, description string) course.Course {
	t.Helper()
	crs, err := course.Create(db, course.CreateInput{
		Title:        title,
		Description:  description,
		Price:        types.NewMoney(49.99),
		InstructorID: instructorID,
	})
	require.NoError(t, err)
	return crs
}

func TestFindBestInstructorNoInstructors(t *testing.T) {
	db := openTestDB(t)
	svc := NewService(db, discardLogger(), rand.NewSource(1))

	_, err := svc.FindBestInstructor(context.Background(), "go basics", "")
	assert.ErrorIs(t, err, ErrNoInstructorsAvailable)
}

func TestFindBestInstructorPrefersRelatedCourse(t *testing.T) {
	db := openTestDB(t)

	expert := createInstructor(t, db, "expert@example.com")
	other := createInstructor(t, db, "other@example.com")
	createCourse(t, db, expert.ID, "Advanced Go Programming", "Concurrency and channels")
	createCourse(t, db, other.ID, "Watercolor Painting", "Brushes and paper")

	// The relevance bonus (10) always beats the jitter range (0..5), so the
	// match is deterministic regardless of the seed.
	svc := NewService(db, discardLogger(), rand.NewSource(time.Now().UnixNano()))

	match, err := svc.FindBestInstructor(context.Background(), "go programming", "want to learn goroutines")
	require.NoError(t, err)
	assert.Equal(t, expert.ID, match.InstructorID)
}

func TestFindBestInstructorMatchesTopicInsideTitle(t *testing.T) {
	db := openTestDB(t)

	expert := createInstructor(t, db, "expert@example.com")
	createInstructor(t, db, "other@example.com")
	createCourse(t, db, expert.ID, "React", "Components and hooks")

	svc := NewService(db, discardLogger(), rand.NewSource(time.Now().UnixNano()))

	// The course title appears inside the broader topic string.
	match, err := svc.FindBestInstructor(context.Background(), "Building SPAs with React and Redux", "")
	require.NoError(t, err)
	assert.Equal(t, expert.ID, match.InstructorID)
}

func TestFindBestInstructorMatchIsCaseInsensitive(t *testing.T) {
	db := openTestDB(t)

	expert := createInstructor(t, db, "expert@example.com")
	createInstructor(t, db, "other@example.com")
	createCourse(t, db, expert.ID, "PYTHON FUNDAMENTALS", "Syntax and stdlib")

	svc := NewService(db, discardLogger(), rand.NewSource(time.Now().UnixNano()))

	match, err := svc.FindBestInstructor(context.Background(), "python fundamentals", "")
	require.NoError(t, err)
	assert.Equal(t, expert.ID, match.InstructorID)
}

func TestFindBestInstructorAvoidsLoadedInstructor(t *testing.T) {
	db := openTestDB(t)

	busy := createInstructor(t, db, "busy@example.com")
	free := createInstructor(t, db, "free@example.com")

	// Enough active assignments that the penalty (2 each) outweighs the
	// jitter range even in the worst case.
	for i := 0; i < 6; i++ {
		require.NoError(t, db.Create(&testAssignment{
			RequestID:    uint(i + 1),
			InstructorID: busy.ID,
			AssignedAt:   time.Now(),
			Status:       types.RequestStatusAssigned,
		}).Error)
	}

	svc := NewService(db, discardLogger(), rand.NewSource(time.Now().UnixNano()))

	match, err := svc.FindBestInstructor(context.Background(), "anything", "")
	require.NoError(t, err)
	assert.Equal(t, free.ID, match.InstructorID)
}

func TestFindBestInstructorIgnoresCompletedAssignments(t *testing.T) {
	db := openTestDB(t)

	expert := createInstructor(t, db, "expert@example.com")
	createInstructor(t, db, "other@example.com")
	createCourse(t, db, expert.ID, "Go Basics", "")

	// Completed assignments carry no load penalty.
	for i := 0; i < 20; i++ {
		require.NoError(t, db.Create(&testAssignment{
			RequestID:    uint(i + 1),
			InstructorID: expert.ID,
			AssignedAt:   time.Now(),
			Status:       types.RequestStatusCompleted,
		}).Error)
	}

	svc := NewService(db, discardLogger(), rand.NewSource(time.Now().UnixNano()))

	match, err := svc.FindBestInstructor(context.Background(), "go basics", "")
	require.NoError(t, err)
	assert.Equal(t, expert.ID, match.InstructorID)
}

func TestFindBestInstructorDeterministicWithSeed(t *testing.T) {
	db := openTestDB(t)

	for i := 0; i < 5; i++ {
		createInstructor(t, db, fmt.Sprintf("instructor%d@example.com", i))
	}

	first := NewService(db, discardLogger(), rand.NewSource(42))
	second := NewService(db, discardLogger(), rand.NewSource(42))

	matchA, err := first.FindBestInstructor(context.Background(), "topic", "")
	require.NoError(t, err)
	matchB, err := second.FindBestInstructor(context.Background(), "topic", "")
	require.NoError(t, err)

	assert.Equal(t, matchA, matchB)
}
