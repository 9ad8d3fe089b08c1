package model

import (
	"time"

	"gorm.io/gorm"
)

// Role values. Each user has exactly one role; service scoping is carried
// separately via ServiceID.
const (
	RoleGuard      = "guard"
	RoleSupervisor = "supervisor"
	RoleAdmin      = "admin"
)

// User represents a system user (guard, supervisor or admin)
type User struct {
	ID        uint           `json:"id" gorm:"primaryKey"`
	Email     string         `json:"email" gorm:"uniqueIndex;size:100;not null"`
	Password  string         `json:"-" gorm:"size:255"` // hashed password
	Name      string         `json:"name" gorm:"size:100;not null"`
	Phone     string         `json:"phone" gorm:"size:20"`
	Role      string         `json:"role" gorm:"size:20;default:'guard'"` // guard, supervisor, admin
	ServiceID *uint          `json:"service_id"`                          // nil for admins
	Active    bool           `json:"active" gorm:"default:true"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	DeletedAt gorm.DeletedAt `json:"-" gorm:"index"`
}

// ValidRole reports whether role is one of the known role values.
func ValidRole(role string) bool {
	return role == RoleGuard || role == RoleSupervisor || role == RoleAdmin
}

// LoginRequest represents login credentials
type LoginRequest struct {
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required"`
}

// LoginResponse represents login response
type LoginResponse struct {
	Token string   `json:"token"`
	User  UserInfo `json:"user"`
}

// UserInfo is the user payload returned by auth endpoints, enriched with the
// service name when it can be resolved.
type UserInfo struct {
	ID          uint    `json:"id"`
	Email       string  `json:"email"`
	Name        string  `json:"name"`
	Role        string  `json:"role"`
	ServiceID   *uint   `json:"service_id"`
	ServiceName *string `json:"service_name,omitempty"`
}

// CreateUserRequest is the admin user-provisioning payload
type CreateUserRequest struct {
	Email     string `json:"email" binding:"required,email"`
	Password  string `json:"password" binding:"required,min=8"`
	Name      string `json:"name" binding:"required"`
	Role      string `json:"role" binding:"required"`
	ServiceID *uint  `json:"service_id"`
	Phone     string `json:"phone"`
	Active    *bool  `json:"active"`
}

// UpdateUserRequest is the admin user-update payload; nil fields are left
// untouched.
type UpdateUserRequest struct {
	Email     *string `json:"email"`
	Password  *string `json:"password"`
	Name      *string `json:"name"`
	Role      *string `json:"role"`
	ServiceID *uint   `json:"service_id"`
	Phone     *string `json:"phone"`
	Active    *bool   `json:"active"`
}
