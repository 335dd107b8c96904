package user

import (
	"errors"
	"strings"

	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"

	"github.com/coursemarket/server-go/pkg/types"
)

// User represents a registered account. The role is assigned at registration
// and immutable afterwards.
type User struct {
	types.BaseModel

	Email     string         `gorm:"type:varchar(255);not null;uniqueIndex" json:"email"`
	Password  string         `gorm:"type:varchar(255);not null" json:"-"`
	FirstName string         `gorm:"type:varchar(100);not null;column:first_name" json:"firstName"`
	LastName  string         `gorm:"type:varchar(100);not null;column:last_name" json:"lastName"`
	Role      types.UserRole `gorm:"type:varchar(20);not null;default:'learner';index" json:"role"`

	RefreshToken *string `gorm:"type:text;column:refresh_token" json:"-"`
}

// TableName overrides the default table name.
func (User) TableName() string { return "users" }

// FullName joins first and last name for display.
func (u User) FullName() string {
	return strings.TrimSpace(u.FirstName + " " + u.LastName)
}

// ComparePassword checks a plaintext password against the stored hash.
func (u User) ComparePassword(password string) bool {
	return bcrypt.CompareHashAndPassword([]byte(u.Password), []byte(password)) == nil
}

// CreateInput carries data for creating a new user.
type CreateInput struct {
	Email     string
	Password  string
	FirstName string
	LastName  string
	Role      types.UserRole
}

// Get retrieves a user by ID.
func Get(db *gorm.DB, id uint) (User, error) {
	var usr User
	if err := db.First(&usr, "id = ?", id).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return usr, ErrUserNotFound
		}
		return usr, err
	}
	return usr, nil
}

// GetByEmail retrieves a user by email.
func GetByEmail(db *gorm.DB, email string) (User, error) {
	var usr User
	if err := db.First(&usr, "LOWER(email) = ?", strings.ToLower(strings.TrimSpace(email))).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return usr, ErrUserNotFound
		}
		return usr, err
	}
	return usr, nil
}

// ListInstructors returns all users holding the instructor role. The matching
// engine scores over this candidate set.
func ListInstructors(db *gorm.DB) ([]User, error) {
	var instructors []User
	if err := db.Where("role = ?", types.RoleInstructor).Order("id").Find(&instructors).Error; err != nil {
		return nil, err
	}
	return instructors, nil
}

// Create inserts a new user with hashed password.
func Create(db *gorm.DB, input CreateInput) (User, error) {
	if len(input.Password) < 8 {
		return User{}, ErrInvalidPassword
	}

	if !input.Role.Valid() {
		return User{}, ErrInvalidRole
	}

	hashedPassword, err := bcrypt.GenerateFromPassword([]byte(input.Password), 10)
	if err != nil {
		return User{}, err
	}

	usr := User{
		Email:     strings.ToLower(strings.TrimSpace(input.Email)),
		Password:  string(hashedPassword),
		FirstName: strings.TrimSpace(input.FirstName),
		LastName:  strings.TrimSpace(input.LastName),
		Role:      input.Role,
	}

	if err := db.Create(&usr).Error; err != nil {
		if isUniqueViolation(err) {
			return usr, ErrEmailTaken
		}
		return usr, err
	}

	return usr, nil
}

func isUniqueViolation(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	msg := err.Error()
	return strings.Contains(msg, "duplicate key") || strings.Contains(msg, "UNIQUE constraint")
}
