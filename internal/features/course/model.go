package course

import (
	"strings"

	"gorm.io/gorm"

	"github.com/coursemarket/server-go/internal/features/user"
	"github.com/coursemarket/server-go/pkg/pagination"
	"github.com/coursemarket/server-go/pkg/types"
)

// Course represents a pre-recorded course offered on the marketplace.
// Courses are never hard-deleted; they are deactivated via the active flag.
type Course struct {
	types.BaseModel

	Title        string      `gorm:"type:varchar(200);not null" json:"title"`
	Description  string      `gorm:"type:text;not null" json:"description"`
	Price        types.Money `gorm:"type:numeric(10,2);not null" json:"price"`
	InstructorID uint        `gorm:"not null;index;column:instructor_id" json:"instructorId"`
	ImageURL     *string     `gorm:"type:text;column:image_url" json:"imageUrl,omitempty"`
	Active       bool        `gorm:"not null;default:true;column:is_active;index" json:"isActive"`

	Instructor *user.User `gorm:"foreignKey:InstructorID" json:"instructor,omitempty"`
}

// TableName overrides the default table name.
func (Course) TableName() string { return "courses" }

// CanMutate reports whether the actor may modify the course: the owning
// instructor or an admin.
func CanMutate(actorID uint, role types.UserRole, c Course) bool {
	return role.IsAdmin() || actorID == c.InstructorID
}

// ListFilters defines catalog query filters.
type ListFilters struct {
	Keyword      string
	InstructorID *uint
	ActiveOnly   bool
}

// CreateInput carries data for creating a new course.
type CreateInput struct {
	Title        string
	Description  string
	Price        types.Money
	InstructorID uint
	ImageURL     *string
}

// UpdateInput captures mutable course fields.
type UpdateInput struct {
	Title            *string
	Description      *string
	Price            *types.Money
	ImageURL         *string
	ImageURLProvided bool
	Active           *bool
}

// List retrieves paginated courses with filters, newest first.
func List(db *gorm.DB, filters ListFilters, params pagination.Params) ([]Course, int64, error) {
	query := db.Model(&Course{})

	if filters.ActiveOnly {
		query = query.Where("is_active = ?", true)
	}

	if filters.InstructorID != nil {
		query = query.Where("instructor_id = ?", *filters.InstructorID)
	}

	if filters.Keyword != "" {
		keyword := "%" + strings.ToLower(filters.Keyword) + "%"
		query = query.Where("LOWER(title) LIKE ? OR LOWER(description) LIKE ?", keyword, keyword)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var courses []Course
	err := query.
		Preload("Instructor").
		Order("created_at DESC").
		Offset(params.Skip).
		Limit(params.Limit).
		Find(&courses).Error

	return courses, total, err
}

// ListByInstructor returns all courses owned by an instructor, active or not.
func ListByInstructor(db *gorm.DB, instructorID uint) ([]Course, error) {
	var courses []Course
	if err := db.Where("instructor_id = ?", instructorID).Order("created_at DESC").Find(&courses).Error; err != nil {
		return nil, err
	}
	return courses, nil
}

// Get retrieves a course by ID.
func Get(db *gorm.DB, id uint) (Course, error) {
	var c Course
	if err := db.Preload("Instructor").First(&c, "id = ?", id).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return c, ErrCourseNotFound
		}
		return c, err
	}
	return c, nil
}

// Create inserts a new course.
func Create(db *gorm.DB, input CreateInput) (Course, error) {
	title := strings.TrimSpace(input.Title)
	if title == "" {
		return Course{}, ErrTitleRequired
	}

	if input.Price.IsNegative() {
		return Course{}, ErrNegativePrice
	}

	c := Course{
		Title:        title,
		Description:  strings.TrimSpace(input.Description),
		Price:        input.Price,
		InstructorID: input.InstructorID,
		ImageURL:     input.ImageURL,
		Active:       true,
	}

	if err := db.Create(&c).Error; err != nil {
		return c, err
	}

	return c, nil
}

// Update modifies an existing course. Authorization is the caller's concern;
// handlers check CanMutate before calling.
func Update(db *gorm.DB, id uint, input UpdateInput) (Course, error) {
	c, err := Get(db, id)
	if err != nil {
		return c, err
	}

	updates := map[string]interface{}{}

	if input.Title != nil {
		trimmed := strings.TrimSpace(*input.Title)
		if trimmed == "" {
			return c, ErrTitleRequired
		}
		updates["title"] = trimmed
	}

	if input.Description != nil {
		updates["description"] = strings.TrimSpace(*input.Description)
	}

	if input.Price != nil {
		if input.Price.IsNegative() {
			return c, ErrNegativePrice
		}
		updates["price"] = *input.Price
	}

	if input.ImageURLProvided {
		updates["image_url"] = input.ImageURL
	}

	if input.Active != nil {
		updates["is_active"] = *input.Active
	}

	if len(updates) == 0 {
		return c, nil
	}

	if err := db.Model(&c).Updates(updates).Error; err != nil {
		return c, err
	}

	return Get(db, id)
}

// Deactivate flips the active flag off. Purchases referencing the course keep
// their snapshot amounts.
func Deactivate(db *gorm.DB, id uint) (Course, error) {
	inactive := false
	return Update(db, id, UpdateInput{Active: &inactive})
}
