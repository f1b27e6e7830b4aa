package models

import (
	"time"
)

// User model for authentication
type User struct {
	ID             string     `gorm:"primaryKey;column:id" json:"id"`
	Name           string     `gorm:"column:name" json:"name"`
	Email          string     `gorm:"column:email;uniqueIndex;not null" json:"email"`
	PasswordHash   string     `gorm:"column:password_hash;not null" json:"-"`
	Role           string     `gorm:"column:role;default:officer" json:"role"`
	ClearanceLevel int        `gorm:"column:clearance_level;default:1" json:"clearanceLevel"`
	LastLogin      *time.Time `gorm:"column:last_login" json:"lastLogin,omitempty"`
	CreatedAt      time.Time  `json:"createdAt"`
	UpdatedAt      time.Time  `json:"updatedAt"`
}

func (User) TableName() string {
	return "users"
}
