package service

import (
	"context"
	"errors"

	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"

	"openpatrol/api/internal/model"
)

// AuthService handles authentication business logic
type AuthService struct {
	db *gorm.DB
}

// NewAuthService creates a new auth service
func NewAuthService(db *gorm.DB) *AuthService {
	return &AuthService{db: db}
}

// Authenticate validates user credentials. Credential failures and inactive
// accounts both come back as KindForbidden so the login response never leaks
// which one it was.
func (s *AuthService) Authenticate(ctx context.Context, email, password string) (*model.User, error) {
	var user model.User
	if err := s.db.WithContext(ctx).Where("email = ?", email).First(&user).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, newError(KindForbidden, "invalid credentials")
		}
		return nil, err
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.Password), []byte(password)); err != nil {
		return nil, newError(KindForbidden, "invalid credentials")
	}

	if !user.Active {
		return nil, newError(KindForbidden, "invalid credentials")
	}

	return &user, nil
}

// RecordLogin writes a login log entry, best-effort. userID is nil when the
// email did not match any account.
func (s *AuthService) RecordLogin(ctx context.Context, userID *uint, email, clientIP, userAgent string, success bool, errorMsg string) {
	entry := model.LoginLog{
		UserID:    userID,
		Email:     email,
		IP:        clientIP,
		UserAgent: userAgent,
		Success:   success,
		ErrorMsg:  errorMsg,
	}
	s.db.WithContext(ctx).Create(&entry)
}
