package notification

import (
	"errors"

	"gorm.io/gorm"

	"github.com/coursemarket/server-go/pkg/pagination"
	"github.com/coursemarket/server-go/pkg/types"
)

// Notification represents an in-app message delivered to a user.
type Notification struct {
	types.BaseModel
	UserID          uint                   `gorm:"not null;index" json:"userId"`
	Type            types.NotificationType `gorm:"type:varchar(40);not null" json:"type"`
	Title           string                 `gorm:"not null" json:"title"`
	Message         string                 `gorm:"type:text;not null" json:"message"`
	Read            bool                   `gorm:"column:is_read;not null;default:false" json:"isRead"`
	RelatedEntityID *uint                  `json:"relatedEntityId,omitempty"`
}

// TableName overrides the default table name.
func (Notification) TableName() string { return "notifications" }

// CreateInput carries the fields for a new notification.
type CreateInput struct {
	UserID          uint
	Type            types.NotificationType
	Title           string
	Message         string
	RelatedEntityID *uint
}

// Create inserts a notification for a user.
func Create(db *gorm.DB, input CreateInput) (Notification, error) {
	n := Notification{
		UserID:          input.UserID,
		Type:            input.Type,
		Title:           input.Title,
		Message:         input.Message,
		RelatedEntityID: input.RelatedEntityID,
	}

	if err := db.Create(&n).Error; err != nil {
		return Notification{}, err
	}

	return n, nil
}

// ListForUser returns the user's notifications newest first.
func ListForUser(db *gorm.DB, userID uint, params pagination.Params) ([]Notification, int64, error) {
	query := db.Model(&Notification{}).Where("user_id = ?", userID)

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var notifications []Notification
	if err := query.
		Order("created_at DESC").
		Offset(params.Skip).
		Limit(params.Limit).
		Find(&notifications).Error; err != nil {
		return nil, 0, err
	}

	return notifications, total, nil
}

// UnreadCount returns the number of unread notifications for the user.
func UnreadCount(db *gorm.DB, userID uint) (int64, error) {
	var count int64
	err := db.Model(&Notification{}).
		Where("user_id = ? AND is_read = ?", userID, false).
		Count(&count).Error
	return count, err
}

// MarkRead flags a single notification as read. The user scoping prevents
// marking another user's notification.
func MarkRead(db *gorm.DB, userID, notificationID uint) (Notification, error) {
	var n Notification
	if err := db.First(&n, "id = ? AND user_id = ?", notificationID, userID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return Notification{}, ErrNotificationNotFound
		}
		return Notification{}, err
	}

	if n.Read {
		return n, nil
	}

	if err := db.Model(&n).Update("is_read", true).Error; err != nil {
		return Notification{}, err
	}

	n.Read = true
	return n, nil
}

// MarkAllRead flags every unread notification for the user and returns how
// many rows changed.
func MarkAllRead(db *gorm.DB, userID uint) (int64, error) {
	result := db.Model(&Notification{}).
		Where("user_id = ? AND is_read = ?", userID, false).
		Update("is_read", true)
	return result.RowsAffected, result.Error
}
