package bootstrap

import (
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"

	"github.com/coursemarket/server-go/internal/features/user"
	"github.com/coursemarket/server-go/pkg/types"
)

const (
	defaultAdminEmail     = "admin@coursemarket.com"
	defaultAdminPassword  = "Admin123!"
	defaultAdminFirstName = "Platform"
	defaultAdminLastName  = "Admin"
)

// EnsureDefaultAdmin creates or synchronizes the default admin account.
// Registration never produces admins, so this is the only way one appears.
func EnsureDefaultAdmin(db *gorm.DB, logger *slog.Logger) error {
	var existing user.User
	err := db.Where("LOWER(email) = ?", strings.ToLower(defaultAdminEmail)).First(&existing).Error
	switch {
	case errors.Is(err, gorm.ErrRecordNotFound):
		_, createErr := user.Create(db, user.CreateInput{
			Email:     defaultAdminEmail,
			Password:  defaultAdminPassword,
			FirstName: defaultAdminFirstName,
			LastName:  defaultAdminLastName,
			Role:      types.RoleAdmin,
		})
		if createErr != nil {
			if isUndefinedTableError(createErr) {
				logger.Warn("default admin skipped - users table missing", slog.String("email", defaultAdminEmail))
				return nil
			}
			return fmt.Errorf("create admin: %w", createErr)
		}

		logger.Info("default admin created", slog.String("email", defaultAdminEmail))
		return nil

	case err != nil:
		if isUndefinedTableError(err) {
			logger.Warn("default admin skipped - users table missing", slog.String("email", defaultAdminEmail))
			return nil
		}
		return fmt.Errorf("get admin: %w", err)
	}

	updates := map[string]interface{}{}

	if needsPasswordReset(existing.Password) {
		hashedPassword, hashErr := bcrypt.GenerateFromPassword([]byte(defaultAdminPassword), 10)
		if hashErr != nil {
			return fmt.Errorf("hash admin password: %w", hashErr)
		}
		updates["password"] = string(hashedPassword)
	}

	if existing.Role != types.RoleAdmin {
		updates["role"] = types.RoleAdmin
	}

	if len(updates) == 0 {
		logger.Info("default admin already up to date", slog.String("email", defaultAdminEmail))
		return nil
	}

	if err := db.Model(&existing).Updates(updates).Error; err != nil {
		return fmt.Errorf("update admin: %w", err)
	}

	logger.Info("default admin synchronized", slog.String("email", defaultAdminEmail))
	return nil
}

func needsPasswordReset(hashedPassword string) bool {
	if hashedPassword == "" {
		return true
	}

	if err := bcrypt.CompareHashAndPassword([]byte(hashedPassword), []byte(defaultAdminPassword)); err != nil {
		return true
	}

	return false
}

func isUndefinedTableError(err error) bool {
	if err == nil {
		return false
	}

	message := err.Error()
	return strings.Contains(message, "relation \"users\" does not exist") ||
		strings.Contains(message, "no such table: users")
}
