package auth

import (
	"regexp"
	"strings"
	"time"

	"gorm.io/gorm"

	"github.com/coursemarket/server-go/internal/features/user"
	"github.com/coursemarket/server-go/internal/utils/jwt"
	"github.com/coursemarket/server-go/pkg/types"
)

type RegisterInput struct {
	Email     string
	Password  string
	FirstName string
	LastName  string
	Role      types.UserRole
}

type LoginInput struct {
	Email    string
	Password string
}

type AuthResponse struct {
	User         *user.User `json:"user"`
	AccessToken  string     `json:"accessToken"`
	RefreshToken string     `json:"refreshToken"`
}

type TokenConfig struct {
	JWTSecret          string
	JWTRefreshSecret   string
	AccessTokenExpiry  time.Duration
	RefreshTokenExpiry time.Duration
}

var emailRegex = regexp.MustCompile(`^[^\s@]+@[^\s@]+\.[^\s@]+$`)

// Register creates a new account. The caller picks learner or instructor;
// an empty role defaults to learner, and admin accounts are only seeded.
func Register(db *gorm.DB, input RegisterInput, cfg TokenConfig) (*AuthResponse, error) {
	if input.Email == "" || input.Password == "" || input.FirstName == "" || input.LastName == "" {
		return nil, ErrMissingFields
	}

	if !emailRegex.MatchString(input.Email) {
		return nil, ErrInvalidEmail
	}

	if len(input.Password) < 8 {
		return nil, ErrWeakPassword
	}

	role := input.Role
	if role == "" {
		role = types.RoleLearner
	}
	if role == types.RoleAdmin {
		return nil, user.ErrInvalidRole
	}

	newUser, err := user.Create(db, user.CreateInput{
		Email:     input.Email,
		Password:  input.Password,
		FirstName: input.FirstName,
		LastName:  input.LastName,
		Role:      role,
	})
	if err != nil {
		return nil, err
	}

	return issueTokens(db, newUser, cfg)
}

// Login authenticates a user and returns tokens.
func Login(db *gorm.DB, input LoginInput, cfg TokenConfig) (*AuthResponse, error) {
	if input.Email == "" || input.Password == "" {
		return nil, ErrMissingFields
	}

	usr, err := user.GetByEmail(db, input.Email)
	if err != nil {
		return nil, ErrInvalidCredentials
	}

	if !usr.ComparePassword(input.Password) {
		return nil, ErrInvalidCredentials
	}

	return issueTokens(db, usr, cfg)
}

// Logout clears the refresh token for a user.
func Logout(db *gorm.DB, accessToken string, cfg TokenConfig) error {
	claims, err := jwt.VerifyToken(accessToken, cfg.JWTSecret)
	if err != nil {
		// Expired tokens can still be revoked.
		claims, err = jwt.DecodeWithoutVerify(accessToken)
		if err != nil {
			return ErrInvalidToken
		}
	}

	usr, err := user.Get(db, claims.UserID)
	if err != nil {
		return err
	}

	usr.RefreshToken = nil
	return db.Save(&usr).Error
}

// RefreshAccessToken rotates the token pair using a valid refresh token.
func RefreshAccessToken(db *gorm.DB, refreshToken string, cfg TokenConfig) (*jwt.TokenPair, error) {
	claims, err := jwt.VerifyToken(refreshToken, cfg.JWTRefreshSecret)
	if err != nil {
		return nil, ErrInvalidToken
	}

	usr, err := user.Get(db, claims.UserID)
	if err != nil {
		return nil, err
	}

	if usr.RefreshToken == nil || *usr.RefreshToken != refreshToken {
		return nil, ErrInvalidToken
	}

	accessToken, err := jwt.GenerateAccessToken(usr.ID, usr.Email, usr.Role, cfg.JWTSecret, cfg.AccessTokenExpiry)
	if err != nil {
		return nil, err
	}

	newRefreshToken, err := jwt.GenerateRefreshToken(usr.ID, cfg.JWTRefreshSecret, cfg.RefreshTokenExpiry)
	if err != nil {
		return nil, err
	}

	usr.RefreshToken = &newRefreshToken
	if err := db.Save(&usr).Error; err != nil {
		return nil, err
	}

	return &jwt.TokenPair{
		AccessToken:  accessToken,
		RefreshToken: newRefreshToken,
	}, nil
}

// ExtractToken extracts the bearer token from an Authorization header.
func ExtractToken(authHeader string) string {
	if authHeader == "" {
		return ""
	}
	return strings.TrimSpace(strings.TrimPrefix(authHeader, "Bearer "))
}

func issueTokens(db *gorm.DB, usr user.User, cfg TokenConfig) (*AuthResponse, error) {
	accessToken, err := jwt.GenerateAccessToken(usr.ID, usr.Email, usr.Role, cfg.JWTSecret, cfg.AccessTokenExpiry)
	if err != nil {
		return nil, err
	}

	refreshToken, err := jwt.GenerateRefreshToken(usr.ID, cfg.JWTRefreshSecret, cfg.RefreshTokenExpiry)
	if err != nil {
		return nil, err
	}

	usr.RefreshToken = &refreshToken
	if err := db.Save(&usr).Error; err != nil {
		return nil, err
	}

	return &AuthResponse{
		User:         &usr,
		AccessToken:  accessToken,
		RefreshToken: refreshToken,
	}, nil
}
