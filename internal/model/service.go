package model

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"

	"gorm.io/gorm"
)

// WeekdayList is a set of weekday indices stored as a JSON array.
// Indices follow the upstream convention: 0 = Monday .. 6 = Sunday.
type WeekdayList []int

// Value implements driver.Valuer
func (w WeekdayList) Value() (driver.Value, error) {
	if w == nil {
		return "[]", nil
	}
	data, err := json.Marshal(w)
	if err != nil {
		return nil, err
	}
	return string(data), nil
}

// Scan implements sql.Scanner
func (w *WeekdayList) Scan(value interface{}) error {
	if value == nil {
		*w = nil
		return nil
	}
	switch v := value.(type) {
	case []byte:
		return json.Unmarshal(v, w)
	case string:
		return json.Unmarshal([]byte(v), w)
	default:
		return fmt.Errorf("cannot scan %T into WeekdayList", value)
	}
}

// Service represents a patrol contract: a site with an operating schedule and
// a round interval. The operating window may wrap midnight (StartTime >
// EndTime means an overnight shift).
type Service struct {
	ID                   uint           `json:"id" gorm:"primaryKey"`
	Name                 string         `json:"name" gorm:"uniqueIndex;size:100;not null"`
	Description          string         `json:"description"`
	OperatingDays        WeekdayList    `json:"operating_days" gorm:"type:jsonb;not null"`
	StartTime            string         `json:"start_time" gorm:"size:5;not null"` // HH:MM
	EndTime              string         `json:"end_time" gorm:"size:5;not null"`   // HH:MM
	RoundIntervalMinutes int            `json:"round_interval_minutes" gorm:"not null"`
	Active               bool           `json:"active" gorm:"default:true"`
	CreatedAt            time.Time      `json:"created_at"`
	UpdatedAt            time.Time      `json:"updated_at"`
	DeletedAt            gorm.DeletedAt `json:"-" gorm:"index"`
}

// CreateServiceRequest is the admin service-creation payload
type CreateServiceRequest struct {
	Name                 string `json:"name" binding:"required"`
	Description          string `json:"description"`
	OperatingDays        []int  `json:"operating_days" binding:"required"`
	StartTime            string `json:"start_time" binding:"required"`
	EndTime              string `json:"end_time" binding:"required"`
	RoundIntervalMinutes int    `json:"round_interval_minutes" binding:"required"`
	Active               *bool  `json:"active"`
}

// UpdateServiceRequest is the admin service-update payload
type UpdateServiceRequest struct {
	Name                 *string `json:"name"`
	Description          *string `json:"description"`
	OperatingDays        *[]int  `json:"operating_days"`
	StartTime            *string `json:"start_time"`
	EndTime              *string `json:"end_time"`
	RoundIntervalMinutes *int    `json:"round_interval_minutes"`
	Active               *bool   `json:"active"`
}
