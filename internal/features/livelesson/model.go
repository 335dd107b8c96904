package livelesson

import (
	"time"

	"github.com/coursemarket/server-go/internal/features/user"
	"github.com/coursemarket/server-go/pkg/types"
)

// LiveLessonRequest is a learner's ask for a one-on-one tutoring session.
type LiveLessonRequest struct {
	types.BaseModel
	UserID        uint                `gorm:"not null;index" json:"userId"`
	Topic         string              `gorm:"not null" json:"topic"`
	Description   string              `gorm:"type:text;not null" json:"description"`
	PreferredDate *time.Time          `json:"preferredDate,omitempty"`
	Duration      int                 `gorm:"not null" json:"duration"`
	Status        types.RequestStatus `gorm:"type:varchar(20);not null;default:'pending'" json:"status"`

	User       *user.User            `gorm:"foreignKey:UserID" json:"user,omitempty"`
	Assignment *InstructorAssignment `gorm:"foreignKey:RequestID" json:"assignment,omitempty"`
}

// TableName overrides the default table name.
func (LiveLessonRequest) TableName() string { return "live_lesson_requests" }

// InstructorAssignment pairs a lesson request with the instructor picked by
// the matching engine. The unique index keeps at most one assignment per
// request.
type InstructorAssignment struct {
	types.BaseModel
	RequestID    uint                `gorm:"not null;uniqueIndex" json:"requestId"`
	InstructorID uint                `gorm:"not null;index" json:"instructorId"`
	MatchScore   int                 `gorm:"not null" json:"matchScore"`
	AssignedAt   time.Time           `gorm:"not null" json:"assignedAt"`
	Status       types.RequestStatus `gorm:"type:varchar(20);not null;default:'assigned'" json:"status"`

	Request    *LiveLessonRequest `gorm:"foreignKey:RequestID" json:"request,omitempty"`
	Instructor *user.User         `gorm:"foreignKey:InstructorID" json:"instructor,omitempty"`
}

// TableName overrides the default table name.
func (InstructorAssignment) TableName() string { return "instructor_assignments" }
