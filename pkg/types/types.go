package types

import (
	"database/sql/driver"
	"time"

	"github.com/shopspring/decimal"
)

// UserRole represents the closed set of account roles. Roles are assigned at
// registration and never change afterwards.
type UserRole string

const (
	RoleLearner    UserRole = "learner"
	RoleInstructor UserRole = "instructor"
	RoleAdmin      UserRole = "admin"
)

// Valid reports whether the role is one of the known values.
func (r UserRole) Valid() bool {
	switch r {
	case RoleLearner, RoleInstructor, RoleAdmin:
		return true
	}
	return false
}

// IsAdmin reports whether the role grants administrative access.
func (r UserRole) IsAdmin() bool { return r == RoleAdmin }

// PurchaseStatus represents purchase state.
type PurchaseStatus string

const (
	PurchaseStatusPending   PurchaseStatus = "pending"
	PurchaseStatusCompleted PurchaseStatus = "completed"
	PurchaseStatusFailed    PurchaseStatus = "failed"
	PurchaseStatusRefunded  PurchaseStatus = "refunded"
)

// RequestStatus represents the lifecycle state shared by live lesson requests
// and their instructor assignments.
type RequestStatus string

const (
	RequestStatusPending   RequestStatus = "pending"
	RequestStatusAssigned  RequestStatus = "assigned"
	RequestStatusCompleted RequestStatus = "completed"
	RequestStatusCancelled RequestStatus = "cancelled"
)

// Valid reports whether the status is one of the known values.
func (s RequestStatus) Valid() bool {
	switch s {
	case RequestStatusPending, RequestStatusAssigned, RequestStatusCompleted, RequestStatusCancelled:
		return true
	}
	return false
}

// NotificationType classifies user-facing notifications.
type NotificationType string

const (
	NotificationLessonAssignment     NotificationType = "lesson_assignment"
	NotificationPurchaseConfirmation NotificationType = "purchase_confirmation"
	NotificationLessonCompleted      NotificationType = "lesson_completed"
	NotificationGeneral              NotificationType = "general"
)

// BaseModel contains common fields for all models. IDs are integer surrogates
// owned by the database.
type BaseModel struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	CreatedAt time.Time `gorm:"column:created_at" json:"createdAt"`
	UpdatedAt time.Time `gorm:"column:updated_at" json:"updatedAt"`
}

// Money wraps decimal.Decimal for money values
type Money decimal.Decimal

// NewMoney creates Money from float64
func NewMoney(value float64) Money {
	return Money(decimal.NewFromFloat(value))
}

// NewMoneyFromString creates Money from string
func NewMoneyFromString(value string) (Money, error) {
	d, err := decimal.NewFromString(value)
	if err != nil {
		return Money{}, err
	}
	return Money(d), nil
}

// Float64 returns the float64 representation
func (m Money) Float64() float64 {
	return decimal.Decimal(m).InexactFloat64()
}

// String returns string representation
func (m Money) String() string {
	return decimal.Decimal(m).String()
}

// MinorUnits returns the amount in minor currency units (e.g. cents), rounded
// to the nearest unit. Payment gateways bill in minor units.
func (m Money) MinorUnits() int64 {
	return decimal.Decimal(m).Mul(decimal.NewFromInt(100)).Round(0).IntPart()
}

// Add adds two Money values
func (m Money) Add(other Money) Money {
	return Money(decimal.Decimal(m).Add(decimal.Decimal(other)))
}

// Sub subtracts other from m
func (m Money) Sub(other Money) Money {
	return Money(decimal.Decimal(m).Sub(decimal.Decimal(other)))
}

// GreaterThan returns true if m > other
func (m Money) GreaterThan(other Money) bool {
	return decimal.Decimal(m).GreaterThan(decimal.Decimal(other))
}

// LessThan returns true if m < other
func (m Money) LessThan(other Money) bool {
	return decimal.Decimal(m).LessThan(decimal.Decimal(other))
}

// IsNegative returns true if the value is below zero
func (m Money) IsNegative() bool {
	return decimal.Decimal(m).IsNegative()
}

// IsZero returns true if value is zero
func (m Money) IsZero() bool {
	return decimal.Decimal(m).IsZero()
}

// Equal reports whether two Money values are numerically equal.
func (m Money) Equal(other Money) bool {
	return decimal.Decimal(m).Equal(decimal.Decimal(other))
}

// Value implements driver.Valuer for database serialization
func (m Money) Value() (driver.Value, error) {
	return decimal.Decimal(m).Value()
}

// Scan implements sql.Scanner for database deserialization
func (m *Money) Scan(value interface{}) error {
	var d decimal.Decimal
	if err := d.Scan(value); err != nil {
		return err
	}
	*m = Money(d)
	return nil
}

// MarshalJSON implements json.Marshaler
func (m Money) MarshalJSON() ([]byte, error) {
	return decimal.Decimal(m).MarshalJSON()
}

// UnmarshalJSON implements json.Unmarshaler
func (m *Money) UnmarshalJSON(data []byte) error {
	var d decimal.Decimal
	if err := d.UnmarshalJSON(data); err != nil {
		return err
	}
	*m = Money(d)
	return nil
}
