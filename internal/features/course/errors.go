package course

import "errors"

var (
	ErrCourseNotFound = errors.New("course not found")
	ErrTitleRequired  = errors.New("course title is required")
	ErrNegativePrice  = errors.New("course price cannot be negative")
	ErrForbidden      = errors.New("you don't have permission to modify this course")
)
