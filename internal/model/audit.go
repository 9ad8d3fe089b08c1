package model

import (
	"time"
)

// LoginLog records authentication attempts.
type LoginLog struct {
	ID        uint      `json:"id" gorm:"primaryKey"`
	UserID    *uint     `json:"user_id" gorm:"column:user_id"`
	Email     string    `json:"email" gorm:"type:varchar(100)"`
	IP        string    `json:"ip" gorm:"type:varchar(50)"`
	UserAgent string    `json:"user_agent" gorm:"column:user_agent;type:varchar(500)"`
	Success   bool      `json:"success" gorm:"not null;default:true"`
	ErrorMsg  string    `json:"error_msg,omitempty" gorm:"column:error_msg;type:text"`
	CreatedAt time.Time `json:"created_at" gorm:"not null"`
}

func (LoginLog) TableName() string {
	return "login_logs"
}
