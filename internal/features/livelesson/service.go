package livelesson

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"log/slog"

	"gorm.io/gorm"

	"github.com/coursemarket/server-go/internal/features/notification"
	"github.com/coursemarket/server-go/internal/services/matching"
	"github.com/coursemarket/server-go/pkg/metrics"
	"github.com/coursemarket/server-go/pkg/types"
)

// Service coordinates lesson requests, the matching engine, and instructor
// assignments.
type Service struct {
	db       *gorm.DB
	logger   *slog.Logger
	matching *matching.Service
}

// NewService builds a live lesson service instance.
func NewService(db *gorm.DB, logger *slog.Logger, matcher *matching.Service) *Service {
	return &Service{db: db, logger: logger, matching: matcher}
}

// CreateRequestInput carries the fields for a new lesson request.
type CreateRequestInput struct {
	UserID        uint
	Topic         string
	Description   string
	PreferredDate *time.Time
	Duration      int
}

// CreateRequest persists a lesson request and immediately runs the matching
// engine. When an instructor is found the request and its assignment are
// written as assigned together. When no instructor exists the pending row is
// kept for later dispatch and matching.ErrNoInstructorsAvailable is returned
// alongside it, so the caller can see the request was created but not served.
func (s *Service) CreateRequest(ctx context.Context, input CreateRequestInput) (LiveLessonRequest, error) {
	topic := strings.TrimSpace(input.Topic)
	if topic == "" {
		return LiveLessonRequest{}, ErrTopicRequired
	}
	description := strings.TrimSpace(input.Description)
	if description == "" {
		return LiveLessonRequest{}, ErrDescriptionRequired
	}
	if input.Duration <= 0 {
		return LiveLessonRequest{}, ErrInvalidDuration
	}

	request := LiveLessonRequest{
		UserID:        input.UserID,
		Topic:         topic,
		Description:   description,
		PreferredDate: input.PreferredDate,
		Duration:      input.Duration,
		Status:        types.RequestStatusPending,
	}

	if err := s.db.WithContext(ctx).Create(&request).Error; err != nil {
		return LiveLessonRequest{}, err
	}

	match, err := s.matching.FindBestInstructor(ctx, request.Topic, request.Description)
	if err != nil {
		if errors.Is(err, matching.ErrNoInstructorsAvailable) {
			s.logger.WarnContext(ctx, "lesson request left pending",
				slog.Uint64("request_id", uint64(request.ID)),
				slog.String("topic", request.Topic))
			return request, err
		}
		return LiveLessonRequest{}, err
	}

	assignment := InstructorAssignment{
		RequestID:    request.ID,
		InstructorID: match.InstructorID,
		MatchScore:   match.Score,
		AssignedAt:   time.Now().UTC(),
		Status:       types.RequestStatusAssigned,
	}

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(&assignment).Error; err != nil {
			return err
		}
		return tx.Model(&request).Update("status", types.RequestStatusAssigned).Error
	})
	if err != nil {
		return LiveLessonRequest{}, err
	}

	request.Status = types.RequestStatusAssigned
	request.Assignment = &assignment
	metrics.RecordLessonAssignment()

	s.notifyInstructor(ctx, match.InstructorID, request)

	if err := s.db.WithContext(ctx).
		Preload("Assignment.Instructor").
		First(&request, request.ID).Error; err != nil {
		return LiveLessonRequest{}, err
	}

	return request, nil
}

// UpdateStatus sets a new status on the request and, when an assignment
// exists, on the assignment as well so the two never diverge. The requester,
// the assigned instructor, and admins may update.
func (s *Service) UpdateStatus(ctx context.Context, requestID, actorID uint, actorRole types.UserRole, status types.RequestStatus) (LiveLessonRequest, error) {
	if !status.Valid() {
		return LiveLessonRequest{}, ErrInvalidStatus
	}

	var request LiveLessonRequest
	if err := s.db.WithContext(ctx).First(&request, requestID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return LiveLessonRequest{}, ErrRequestNotFound
		}
		return LiveLessonRequest{}, err
	}

	var assignment *InstructorAssignment
	var loaded InstructorAssignment
	err := s.db.WithContext(ctx).
		Preload("Instructor").
		First(&loaded, "request_id = ?", requestID).Error
	switch {
	case err == nil:
		assignment = &loaded
	case errors.Is(err, gorm.ErrRecordNotFound):
		assignment = nil
	default:
		return LiveLessonRequest{}, err
	}

	allowed := request.UserID == actorID ||
		(assignment != nil && assignment.InstructorID == actorID) ||
		actorRole.IsAdmin()
	if !allowed {
		return LiveLessonRequest{}, ErrForbidden
	}

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Model(&request).Update("status", status).Error; err != nil {
			return err
		}
		if assignment != nil {
			return tx.Model(assignment).Update("status", status).Error
		}
		return nil
	})
	if err != nil {
		return LiveLessonRequest{}, err
	}

	request.Status = status
	if assignment != nil {
		assignment.Status = status
		request.Assignment = assignment
	}

	if status == types.RequestStatusCompleted {
		s.notifyCompletion(ctx, request)
	}

	return request, nil
}

// ListForRequester returns the user's own lesson requests newest first,
// assignment and instructor included when present.
func (s *Service) ListForRequester(ctx context.Context, userID uint) ([]LiveLessonRequest, error) {
	var requests []LiveLessonRequest
	err := s.db.WithContext(ctx).
		Preload("Assignment.Instructor").
		Where("user_id = ?", userID).
		Order("created_at DESC").
		Find(&requests).Error
	return requests, err
}

// ListAssignedTo returns the assignments pointing at the instructor, newest
// first, with the underlying request and its requester preloaded.
func (s *Service) ListAssignedTo(ctx context.Context, instructorID uint) ([]InstructorAssignment, error) {
	var assignments []InstructorAssignment
	err := s.db.WithContext(ctx).
		Preload("Request.User").
		Where("instructor_id = ?", instructorID).
		Order("assigned_at DESC").
		Find(&assignments).Error
	return assignments, err
}

// notifyInstructor records an in-app notification for a fresh assignment.
// Failures are logged, never surfaced: the assignment already happened.
func (s *Service) notifyInstructor(ctx context.Context, instructorID uint, request LiveLessonRequest) {
	requestID := request.ID
	_, err := notification.Create(s.db.WithContext(ctx), notification.CreateInput{
		UserID:          instructorID,
		Type:            types.NotificationLessonAssignment,
		Title:           "New Lesson Assigned",
		Message:         fmt.Sprintf("You have been assigned a new lesson request: '%s'", request.Topic),
		RelatedEntityID: &requestID,
	})
	if err != nil {
		s.logger.ErrorContext(ctx, "assignment notification failed",
			slog.Uint64("instructor_id", uint64(instructorID)),
			slog.Uint64("request_id", uint64(request.ID)),
			slog.String("error", err.Error()))
	}
}

func (s *Service) notifyCompletion(ctx context.Context, request LiveLessonRequest) {
	requestID := request.ID
	_, err := notification.Create(s.db.WithContext(ctx), notification.CreateInput{
		UserID:          request.UserID,
		Type:            types.NotificationLessonCompleted,
		Title:           "Lesson Completed",
		Message:         fmt.Sprintf("Your lesson on '%s' has been marked as completed", request.Topic),
		RelatedEntityID: &requestID,
	})
	if err != nil {
		s.logger.ErrorContext(ctx, "completion notification failed",
			slog.Uint64("request_id", uint64(request.ID)),
			slog.String("error", err.Error()))
	}
}
