package model

import (
	"time"

	"gorm.io/gorm"
)

// Validation radius bounds in meters
const (
	MinValidationRadius = 10
	MaxValidationRadius = 500
)

// Checkpoint represents a fixed patrol location carrying a unique QR token.
// Belongs to exactly one Service.
type Checkpoint struct {
	ID                uint           `json:"id" gorm:"primaryKey"`
	ServiceID         uint           `json:"service_id" gorm:"not null;index"`
	Service           *Service       `json:"service,omitempty"`
	Name              string         `json:"name" gorm:"size:100;not null"`
	Description       string         `json:"description"`
	Latitude          float64        `json:"latitude" gorm:"not null"`
	Longitude         float64        `json:"longitude" gorm:"not null"`
	ValidationRadiusM *int           `json:"validation_radius_meters"` // nil means config default
	QRCode            string         `json:"qr_code" gorm:"uniqueIndex;size:50;not null"`
	Active            bool           `json:"active" gorm:"default:true"`
	CreatedAt         time.Time      `json:"created_at"`
	UpdatedAt         time.Time      `json:"updated_at"`
	DeletedAt         gorm.DeletedAt `json:"-" gorm:"index"`
}

// CheckpointInfo is a checkpoint enriched with its service name; the name is
// best-effort and omitted when the lookup fails.
type CheckpointInfo struct {
	Checkpoint
	ServiceName *string `json:"service_name,omitempty"`
}

// CreateCheckpointRequest is the admin checkpoint-creation payload
type CreateCheckpointRequest struct {
	Name              string  `json:"name" binding:"required"`
	Description       string  `json:"description"`
	Latitude          float64 `json:"latitude" binding:"required"`
	Longitude         float64 `json:"longitude" binding:"required"`
	ServiceID         uint    `json:"service_id" binding:"required"`
	ValidationRadiusM *int    `json:"validation_radius_meters"`
	Active            *bool   `json:"active"`
}

// UpdateCheckpointRequest is the admin checkpoint-update payload
type UpdateCheckpointRequest struct {
	Name              *string  `json:"name"`
	Description       *string  `json:"description"`
	Latitude          *float64 `json:"latitude"`
	Longitude         *float64 `json:"longitude"`
	ServiceID         *uint    `json:"service_id"`
	ValidationRadiusM *int     `json:"validation_radius_meters"`
	Active            *bool    `json:"active"`
}
