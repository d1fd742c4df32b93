package auth

import (
	"context"
	"errors"
	"strings"

	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"

	"restoran-pos/internal/models"
	"restoran-pos/internal/scope"
)

var (
	ErrInvalidCredentials = errors.New("invalid email or password")
	ErrUserInactive       = errors.New("user is deactivated")
)

// Authenticate checks email and password against the stored bcrypt hash.
// Unknown email and wrong password both yield ErrInvalidCredentials.
func Authenticate(ctx context.Context, db *gorm.DB, email, password string) (models.User, error) {
	email = strings.TrimSpace(strings.ToLower(email))

	var user models.User
	if err := db.WithContext(ctx).Where("email = ?", email).First(&user).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return models.User{}, ErrInvalidCredentials
		}
		return models.User{}, err
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		return models.User{}, ErrInvalidCredentials
	}
	if !user.IsActive {
		return models.User{}, ErrUserInactive
	}
	return user, nil
}

// LoadPrincipal builds the acting principal of user, including the
// terminals currently assigned to them.
func LoadPrincipal(ctx context.Context, db *gorm.DB, user models.User) (scope.Principal, error) {
	var assigned []uint
	if err := db.WithContext(ctx).Model(&models.Terminal{}).
		Where("assigned_to_id = ?", user.ID).
		Pluck("id", &assigned).Error; err != nil {
		return scope.Principal{}, err
	}
	return scope.PrincipalFromUser(user, assigned), nil
}
