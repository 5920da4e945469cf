package models

import "time"

type OrderStatus string

const (
	OrderNew        OrderStatus = "new"
	OrderInProgress OrderStatus = "in_progress"
	OrderDone       OrderStatus = "done"
	OrderCancelled  OrderStatus = "cancelled"
	OrderPaid       OrderStatus = "paid"
)

// IsTerminal reports whether no further transition is allowed.
func (s OrderStatus) IsTerminal() bool {
	return s == OrderCancelled || s == OrderPaid
}

// Editable reports whether items may still be added or changed.
func (s OrderStatus) Editable() bool {
	return s == OrderNew || s == OrderInProgress
}

type Order struct {
	ID           uint        `gorm:"primaryKey" json:"id"`
	QrSessionID  uint        `gorm:"not null;index" json:"qr_session_id"`
	QrSession    QrSession   `gorm:"foreignKey:QrSessionID" json:"-"`
	Status       OrderStatus `gorm:"type:varchar(20);not null;default:'new'" json:"status"`
	TotalPrice   float64     `gorm:"type:decimal(12,2);not null;default:0.00" json:"total_price"`
	AdminID      *uint       `gorm:"index" json:"admin_id,omitempty"`
	Admin        *User       `gorm:"foreignKey:AdminID" json:"-"`
	CancelReason string      `gorm:"type:text" json:"cancel_reason,omitempty"`
	OrderItems   []OrderItem `gorm:"foreignKey:OrderID" json:"order_items"`
	CreatedAt    time.Time   `gorm:"not null" json:"created_at"`
	UpdatedAt    time.Time   `gorm:"not null" json:"updated_at"`
}

// RecalcTotal keeps the invariant total_price == sum(quantity * unit_price).
func (o *Order) RecalcTotal() {
	var total float64
	for _, item := range o.OrderItems {
		total += float64(item.Quantity) * item.UnitPrice
	}
	o.TotalPrice = total
}
