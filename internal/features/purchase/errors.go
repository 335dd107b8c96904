package purchase

import "errors"

var (
	// ErrCourseNotFound indicates the intent references a missing course.
	ErrCourseNotFound = errors.New("course not found")

	// ErrAlreadyPurchased indicates the user already owns the course.
	ErrAlreadyPurchased = errors.New("course already purchased")

	// ErrPaymentNotVerified indicates the gateway did not confirm the
	// payment as succeeded.
	ErrPaymentNotVerified = errors.New("payment verification failed")

	// ErrInvalidIntentID indicates a malformed payment intent token.
	ErrInvalidIntentID = errors.New("invalid payment token")
)
