package matching

import (
	"context"
	"errors"
	"math/rand"
	"strings"
	"sync"

	"log/slog"

	"gorm.io/gorm"

	"github.com/coursemarket/server-go/internal/features/course"
	"github.com/coursemarket/server-go/internal/features/user"
	"github.com/coursemarket/server-go/pkg/types"
)

const (
	relevanceBonus  = 10
	loadPenalty     = 2
	randomJitterMax = 5
)

// ErrNoInstructorsAvailable indicates no instructor account exists to serve
// a lesson request.
var ErrNoInstructorsAvailable = errors.New("no instructors available")

// Match is the outcome of scoring the instructor pool for a request.
type Match struct {
	InstructorID uint `json:"instructorId"`
	Score        int  `json:"score"`
}

// Service scores instructors for incoming live lesson requests. The random
// jitter source is injected so tests can drive it deterministically.
type Service struct {
	db     *gorm.DB
	logger *slog.Logger

	mu  sync.Mutex
	rng *rand.Rand
}

// NewService builds a matching service around the given jitter source.
func NewService(db *gorm.DB, logger *slog.Logger, src rand.Source) *Service {
	return &Service{db: db, logger: logger, rng: rand.New(src)}
}

// FindBestInstructor scores every instructor against the request topic and
// returns the highest scorer. Ties keep the first instructor seen, so the
// stable id ordering of the pool decides.
func (s *Service) FindBestInstructor(ctx context.Context, topic, description string) (Match, error) {
	instructors, err := user.ListInstructors(s.db.WithContext(ctx))
	if err != nil {
		return Match{}, err
	}
	if len(instructors) == 0 {
		return Match{}, ErrNoInstructorsAvailable
	}

	coursesByInstructor, err := s.loadCourses(ctx)
	if err != nil {
		return Match{}, err
	}

	activeAssignments, err := s.loadActiveAssignmentCounts(ctx)
	if err != nil {
		return Match{}, err
	}

	best := Match{Score: -1 << 31}
	for _, instructor := range instructors {
		score := s.score(topic, coursesByInstructor[instructor.ID], activeAssignments[instructor.ID])
		if score > best.Score {
			best = Match{InstructorID: instructor.ID, Score: score}
		}
	}

	s.logger.InfoContext(ctx, "instructor matched",
		slog.Uint64("instructor_id", uint64(best.InstructorID)),
		slog.Int("score", best.Score),
		slog.String("topic", topic))

	return best, nil
}

// score computes one instructor's total: a relevance bonus when any of their
// courses overlaps the topic, minus a penalty per active assignment, plus
// uniform random jitter.
func (s *Service) score(topic string, courses []course.Course, activeCount int64) int {
	score := 0

	if hasRelatedCourse(topic, courses) {
		score += relevanceBonus
	}

	score -= loadPenalty * int(activeCount)
	score += s.jitter()

	return score
}

// hasRelatedCourse checks topic overlap case-insensitively in both
// directions: the topic appearing in a course title or description, or a
// course title appearing inside the topic.
func hasRelatedCourse(topic string, courses []course.Course) bool {
	loweredTopic := strings.ToLower(topic)
	for _, crs := range courses {
		loweredTitle := strings.ToLower(crs.Title)
		loweredDescription := strings.ToLower(crs.Description)
		if strings.Contains(loweredTitle, loweredTopic) ||
			strings.Contains(loweredDescription, loweredTopic) ||
			strings.Contains(loweredTopic, loweredTitle) {
			return true
		}
	}
	return false
}

func (s *Service) jitter() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.rng.Intn(randomJitterMax + 1)
}

func (s *Service) loadCourses(ctx context.Context) (map[uint][]course.Course, error) {
	var courses []course.Course
	if err := s.db.WithContext(ctx).Find(&courses).Error; err != nil {
		return nil, err
	}

	byInstructor := make(map[uint][]course.Course, len(courses))
	for _, crs := range courses {
		byInstructor[crs.InstructorID] = append(byInstructor[crs.InstructorID], crs)
	}
	return byInstructor, nil
}

// loadActiveAssignmentCounts queries the assignments table directly to keep
// this package from depending on the live lesson feature.
func (s *Service) loadActiveAssignmentCounts(ctx context.Context) (map[uint]int64, error) {
	type row struct {
		InstructorID uint
		Total        int64
	}

	var rows []row
	if err := s.db.WithContext(ctx).
		Table("instructor_assignments").
		Select("instructor_id, COUNT(*) AS total").
		Where("status = ?", types.RequestStatusAssigned).
		Group("instructor_id").
		Scan(&rows).Error; err != nil {
		return nil, err
	}

	counts := make(map[uint]int64, len(rows))
	for _, r := range rows {
		counts[r.InstructorID] = r.Total
	}
	return counts, nil
}
