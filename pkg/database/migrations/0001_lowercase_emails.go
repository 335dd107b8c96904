package migrations

import "gorm.io/gorm"

func init() {
	Register("0001_lowercase_user_emails", func(db *gorm.DB) error {
		// Login matches case-insensitively; stored emails must be lowercase
		// for the unique index to catch case-variant duplicates.
		return db.Exec("UPDATE users SET email = LOWER(email) WHERE email <> LOWER(email)").Error
	})
}
