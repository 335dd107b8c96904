package livelesson

import "errors"

var (
	// ErrRequestNotFound indicates the lesson request does not exist.
	ErrRequestNotFound = errors.New("lesson request not found")

	// ErrForbidden indicates the caller may not update the request.
	ErrForbidden = errors.New("you don't have permission to update this request")

	// ErrTopicRequired indicates a lesson request without a topic.
	ErrTopicRequired = errors.New("topic is required")

	// ErrDescriptionRequired indicates a lesson request without a description.
	ErrDescriptionRequired = errors.New("description is required")

	// ErrInvalidDuration indicates a non-positive requested duration.
	ErrInvalidDuration = errors.New("duration must be positive")

	// ErrInvalidStatus indicates an unknown request status value.
	ErrInvalidStatus = errors.New("invalid request status")
)
