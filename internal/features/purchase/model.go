package purchase

import (
	"time"

	"gorm.io/gorm"

	"github.com/coursemarket/server-go/internal/features/course"
	"github.com/coursemarket/server-go/pkg/types"
)

// Purchase records a completed (or failed) course payment. The unique index
// on PaymentIntentID is what makes payment reconciliation idempotent across
// the confirm endpoint and the webhook.
type Purchase struct {
	types.BaseModel
	UserID          uint                 `gorm:"not null;index" json:"userId"`
	CourseID        uint                 `gorm:"not null;index" json:"courseId"`
	Amount          types.Money          `gorm:"type:numeric(10,2);not null" json:"amount"`
	PaymentIntentID string               `gorm:"not null;uniqueIndex" json:"paymentIntentId"`
	PurchasedAt     time.Time            `gorm:"not null" json:"purchasedAt"`
	Status          types.PurchaseStatus `gorm:"type:varchar(20);not null;default:'pending'" json:"status"`

	Course *course.Course `gorm:"foreignKey:CourseID" json:"course,omitempty"`
}

// TableName overrides the default table name.
func (Purchase) TableName() string { return "purchases" }

// GetByIntentID loads a purchase by its payment intent, course preloaded.
func GetByIntentID(db *gorm.DB, intentID string) (Purchase, error) {
	var p Purchase
	err := db.Preload("Course").First(&p, "payment_intent_id = ?", intentID).Error
	return p, err
}

// HasCompleted reports whether the user already owns the course.
func HasCompleted(db *gorm.DB, userID, courseID uint) (bool, error) {
	var count int64
	err := db.Model(&Purchase{}).
		Where("user_id = ? AND course_id = ? AND status = ?", userID, courseID, types.PurchaseStatusCompleted).
		Count(&count).Error
	return count > 0, err
}

// ListForUser returns the user's purchases newest first with courses
// preloaded.
func ListForUser(db *gorm.DB, userID uint) ([]Purchase, error) {
	var purchases []Purchase
	err := db.Preload("Course").
		Where("user_id = ?", userID).
		Order("created_at DESC").
		Find(&purchases).Error
	return purchases, err
}
