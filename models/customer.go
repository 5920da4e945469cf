package models

import (
	"time"

	"gorm.io/gorm"
)

type Customer struct {
	ID    uint    `gorm:"primaryKey" json:"id"`
	Phone string  `gorm:"type:varchar(20);uniqueIndex;not null" json:"phone"`
	Email *string `gorm:"type:varchar(100);uniqueIndex" json:"email,omitempty"`
	Name  string  `gorm:"type:varchar(100)" json:"name"`
	// Points is the loyalty balance; it never goes negative.
	Points    int            `gorm:"not null;default:0" json:"points"`
	CreatedAt time.Time      `gorm:"not null" json:"created_at"`
	UpdatedAt time.Time      `gorm:"not null" json:"updated_at"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"-"`
}
