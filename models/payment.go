package models

import "time"

type PaymentStatus string

const (
	PaymentPending    PaymentStatus = "pending"
	PaymentProcessing PaymentStatus = "processing"
	PaymentPaid       PaymentStatus = "paid"
	PaymentFailed     PaymentStatus = "failed"
)

// Open reports whether the payment still blocks new payment requests for
// its order. At most one open payment may exist per order.
func (s PaymentStatus) Open() bool {
	return s == PaymentPending || s == PaymentProcessing
}

type PaymentMethod string

const (
	MethodCash    PaymentMethod = "cash"
	MethodBanking PaymentMethod = "banking"
	MethodQR      PaymentMethod = "qr"
	MethodCard    PaymentMethod = "card"
)

func (m PaymentMethod) Valid() bool {
	switch m {
	case MethodCash, MethodBanking, MethodQR, MethodCard:
		return true
	}
	return false
}

// CompatibleWith reports whether an open payment created with method m may be
// reused for a request with method other. Banking and qr both resolve to a
// bank transfer, so they are interchangeable; cash and card are not.
func (m PaymentMethod) CompatibleWith(other PaymentMethod) bool {
	if m == other {
		return true
	}
	bankLike := func(x PaymentMethod) bool { return x == MethodBanking || x == MethodQR }
	return bankLike(m) && bankLike(other)
}

type Payment struct {
	ID              uint          `gorm:"primaryKey" json:"id"`
	OrderID         uint          `gorm:"not null;index" json:"order_id"`
	Order           Order         `gorm:"foreignKey:OrderID" json:"-"`
	Method          PaymentMethod `gorm:"type:varchar(20);not null" json:"method"`
	Amount          float64       `gorm:"type:decimal(12,2);not null" json:"amount"`
	Status          PaymentStatus `gorm:"type:varchar(20);not null;default:'pending'" json:"status"`
	TransactionCode *string       `gorm:"type:varchar(100)" json:"transaction_code,omitempty"`
	RefCode         string        `gorm:"type:varchar(64);index" json:"ref_code"`
	PrintedBill     bool          `gorm:"not null;default:false" json:"printed_bill"`
	ConfirmedAt     *time.Time    `json:"confirmed_at,omitempty"`
	CreatedAt       time.Time     `gorm:"not null" json:"created_at"`
	UpdatedAt       time.Time     `gorm:"not null" json:"updated_at"`
}
