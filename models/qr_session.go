package models

import (
	"fmt"
	"time"
)

type SessionStatus string

const (
	SessionActive    SessionStatus = "active"
	SessionCompleted SessionStatus = "completed"
)

// QrSession is one table occupancy: created when a customer scans the table
// code, completed through settlement or an explicit end. Completed sessions
// are never mutated again.
type QrSession struct {
	ID         uint          `gorm:"primaryKey" json:"id"`
	TableID    uint          `gorm:"not null;index" json:"table_id"`
	Table      Table         `gorm:"foreignKey:TableID" json:"table"`
	CustomerID *uint         `gorm:"index" json:"customer_id,omitempty"`
	Customer   *Customer     `gorm:"foreignKey:CustomerID" json:"customer,omitempty"`
	Status     SessionStatus `gorm:"type:varchar(20);not null;default:'active'" json:"status"`
	Orders     []Order       `gorm:"foreignKey:QrSessionID" json:"orders,omitempty"`
	CreatedAt  time.Time     `gorm:"not null" json:"created_at"`
	UpdatedAt  time.Time     `gorm:"not null" json:"updated_at"`
}

// Room returns the notification room customers of this session subscribe to.
func (s *QrSession) Room() string {
	return fmt.Sprintf("QR_SESSION_%d", s.ID)
}
