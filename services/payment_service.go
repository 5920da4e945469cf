package services

import (
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/yeremiapane/qr-dine/hub"
	"github.com/yeremiapane/qr-dine/models"
	"github.com/yeremiapane/qr-dine/utils"
)

// PaymentResult is what a payment request returns to the caller. IsExisting
// flags that a still-open payment was reused instead of a new row created.
type PaymentResult struct {
	Payment     *models.Payment     `json:"payment"`
	Instruction *PaymentInstruction `json:"instruction,omitempty"`
	IsExisting  bool                `json:"is_existing"`
}

// PaymentService creates and confirms payment records. It guards the
// one-open-payment-per-order invariant by doing the lookup and the insert
// under the same row lock.
type PaymentService struct {
	db       *gorm.DB
	provider PaymentInstructionProvider
	loyalty  *LoyaltyService
	notifier hub.Notifier
}

func NewPaymentService(db *gorm.DB, provider PaymentInstructionProvider, loyalty *LoyaltyService, notifier hub.Notifier) *PaymentService {
	return &PaymentService{db: db, provider: provider, loyalty: loyalty, notifier: notifier}
}

// RequestPayment starts (or resumes) payment of one order at its current
// total. Cash settles synchronously; banking/qr/card stay pending until the
// external confirmation arrives.
func (s *PaymentService) RequestPayment(orderID uint, method models.PaymentMethod, printBill bool) (*PaymentResult, error) {
	if !method.Valid() {
		return nil, utils.NewInvalidInput("unknown payment method %q", method)
	}

	var result *PaymentResult
	err := s.db.Transaction(func(tx *gorm.DB) error {
		var order models.Order
		if err := forUpdate(tx).First(&order, orderID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return utils.NewNotFound("order %d not found", orderID)
			}
			return err
		}

		var err error
		result, err = s.requestPaymentTx(tx, &order, method, order.TotalPrice, printBill)
		return err
	})
	if err != nil {
		return nil, err
	}

	s.publishRequested(result)
	return result, nil
}

// requestPaymentTx is the transactional core of RequestPayment, also invoked
// by the settlement orchestrator after loyalty redemption fixed the amount.
// The caller holds the order row lock.
func (s *PaymentService) requestPaymentTx(tx *gorm.DB, order *models.Order, method models.PaymentMethod, amount float64, printBill bool) (*PaymentResult, error) {
	if order.Status == models.OrderPaid {
		return nil, utils.NewConflict("order %d is already settled", order.ID)
	}

	// Reuse guard: a duplicate request for a compatible method gets the
	// open payment back instead of a second row.
	var existing models.Payment
	err := forUpdate(tx).
		Where("order_id = ? AND status IN ?", order.ID,
			[]models.PaymentStatus{models.PaymentPending, models.PaymentProcessing}).
		Order("created_at DESC").
		First(&existing).Error
	if err == nil {
		if !existing.Method.CompatibleWith(method) {
			return nil, utils.NewConflict("a %s payment for order %d is still in progress", existing.Method, order.ID)
		}
		result := &PaymentResult{Payment: &existing, IsExisting: true}
		if existing.Method == models.MethodBanking || existing.Method == models.MethodQR {
			// Regenerated at the recorded amount, never the current total.
			instruction, err := s.provider.Instructions(order.ID, existing.Amount)
			if err != nil {
				return nil, err
			}
			result.Instruction = instruction
		}
		return result, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, err
	}

	result := &PaymentResult{}
	if method == models.MethodBanking || method == models.MethodQR {
		// Provider config is checked before any row exists.
		instruction, err := s.provider.Instructions(order.ID, amount)
		if err != nil {
			return nil, err
		}
		result.Instruction = instruction
	}

	payment := models.Payment{
		OrderID:     order.ID,
		Method:      method,
		Amount:      amount,
		Status:      models.PaymentPending,
		RefCode:     uuid.NewString(),
		PrintedBill: printBill,
	}
	if method == models.MethodCash {
		now := time.Now()
		payment.Status = models.PaymentPaid
		payment.ConfirmedAt = &now
	}
	if err := tx.Create(&payment).Error; err != nil {
		return nil, err
	}

	if method == models.MethodCash {
		if err := tx.Model(order).Update("status", models.OrderPaid).Error; err != nil {
			return nil, err
		}
		order.Status = models.OrderPaid
	}

	result.Payment = &payment
	return result, nil
}

// settleOrderTx bills one confirmed order during admin settlement: any open
// payment a customer abandoned is marked failed, a paid cash payment row is
// written for the order total, and the order flips to paid with the settling
// admin stamped. Runs inside the settlement transaction.
func (s *PaymentService) settleOrderTx(tx *gorm.DB, order *models.Order, adminID uint) error {
	if err := tx.Model(&models.Payment{}).
		Where("order_id = ? AND status IN ?", order.ID,
			[]models.PaymentStatus{models.PaymentPending, models.PaymentProcessing}).
		Update("status", models.PaymentFailed).Error; err != nil {
		return err
	}

	now := time.Now()
	payment := models.Payment{
		OrderID:     order.ID,
		Method:      models.MethodCash,
		Amount:      order.TotalPrice,
		Status:      models.PaymentPaid,
		RefCode:     uuid.NewString(),
		ConfirmedAt: &now,
	}
	if err := tx.Create(&payment).Error; err != nil {
		return err
	}

	return tx.Model(order).Updates(map[string]interface{}{
		"status":   models.OrderPaid,
		"admin_id": adminID,
	}).Error
}

// ConfirmExternalPayment processes a provider callback for the most recent
// pending payment of the session. A failed confirmation releases the order
// back to new so it can be paid again.
func (s *PaymentService) ConfirmExternalPayment(sessionID uint, externalAmount float64, success bool, transactionCode string) (*models.Payment, error) {
	var payment models.Payment
	var order models.Order
	err := s.db.Transaction(func(tx *gorm.DB) error {
		err := forUpdate(tx).
			Joins("JOIN orders ON orders.id = payments.order_id").
			Where("orders.qr_session_id = ? AND payments.status = ?", sessionID, models.PaymentPending).
			Order("payments.created_at DESC").
			First(&payment).Error
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return utils.NewNotFound("no pending payment for session %d", sessionID)
			}
			return err
		}

		if externalAmount != 0 && externalAmount != payment.Amount {
			return utils.NewAmountMismatch(payment.Amount, externalAmount)
		}

		if err := forUpdate(tx).First(&order, payment.OrderID).Error; err != nil {
			return err
		}

		now := time.Now()
		if transactionCode != "" {
			payment.TransactionCode = &transactionCode
		}
		if !success {
			payment.Status = models.PaymentFailed
			if err := tx.Save(&payment).Error; err != nil {
				return err
			}
			order.Status = models.OrderNew
			return tx.Save(&order).Error
		}

		payment.Status = models.PaymentPaid
		payment.ConfirmedAt = &now
		if err := tx.Save(&payment).Error; err != nil {
			return err
		}
		if err := tx.Model(&order).Update("status", models.OrderPaid).Error; err != nil {
			return err
		}

		// Accrue loyalty points on the amount actually paid.
		var session models.QrSession
		if err := tx.First(&session, sessionID).Error; err != nil {
			return err
		}
		if session.CustomerID != nil {
			if _, err := s.loyalty.Earn(tx, *session.CustomerID, payment.Amount); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	if success {
		// The payment itself succeeded; failure to close the session is
		// logged and not surfaced to the provider.
		if err := s.closeSession(sessionID); err != nil {
			utils.ErrorLogger.Printf("payment confirmed but closing session %d failed: %v", sessionID, err)
		}
		s.notifier.Publish(hub.SessionRoom(sessionID), hub.EventPaymentSuccess, payment)
		s.notifier.Publish(hub.RoomStaff, hub.EventPaymentSuccess, payment)
	} else {
		s.notifier.Publish(hub.SessionRoom(sessionID), hub.EventPaymentFailed, payment)
		s.notifier.Publish(hub.RoomStaff, hub.EventPaymentFailed, payment)
	}
	return &payment, nil
}

func (s *PaymentService) closeSession(sessionID uint) error {
	return s.db.Model(&models.QrSession{}).
		Where("id = ? AND status = ?", sessionID, models.SessionActive).
		Update("status", models.SessionCompleted).Error
}

// Refund reduces the stored amount by the refunded value. The original
// charged amount survives only in the log line and staff notification.
func (s *PaymentService) Refund(paymentID uint, amount float64, reason string) (*models.Payment, error) {
	if amount <= 0 {
		return nil, utils.NewInvalidInput("refund amount must be positive")
	}

	var payment models.Payment
	err := s.db.Transaction(func(tx *gorm.DB) error {
		if err := forUpdate(tx).First(&payment, paymentID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return utils.NewNotFound("payment %d not found", paymentID)
			}
			return err
		}
		if amount > payment.Amount {
			return utils.NewInvalidInput("refund %.2f exceeds payment amount %.2f", amount, payment.Amount)
		}

		payment.Amount -= amount
		return tx.Save(&payment).Error
	})
	if err != nil {
		return nil, err
	}

	utils.InfoLogger.Printf("refunded %.2f on payment %d: %s", amount, payment.ID, reason)
	s.notifier.Publish(hub.RoomStaff, hub.EventStaffNotif, map[string]interface{}{
		"payment_id": payment.ID,
		"refunded":   amount,
		"reason":     reason,
	})
	return &payment, nil
}

// GetByID loads one payment.
func (s *PaymentService) GetByID(paymentID uint) (*models.Payment, error) {
	var payment models.Payment
	if err := s.db.First(&payment, paymentID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, utils.NewNotFound("payment %d not found", paymentID)
		}
		return nil, err
	}
	return &payment, nil
}

// List filters payments by session and creation window; zero values skip
// the corresponding filter.
func (s *PaymentService) List(sessionID uint, from, to time.Time) ([]models.Payment, error) {
	query := s.db.Model(&models.Payment{})
	if sessionID != 0 {
		query = query.Joins("JOIN orders ON orders.id = payments.order_id").
			Where("orders.qr_session_id = ?", sessionID)
	}
	if !from.IsZero() {
		query = query.Where("payments.created_at >= ?", from)
	}
	if !to.IsZero() {
		query = query.Where("payments.created_at <= ?", to)
	}

	var payments []models.Payment
	if err := query.Order("payments.created_at DESC").Find(&payments).Error; err != nil {
		return nil, err
	}
	return payments, nil
}

func (s *PaymentService) publishRequested(result *PaymentResult) {
	if result.IsExisting {
		return
	}
	payment := result.Payment
	if payment.Status == models.PaymentPaid {
		s.notifier.Publish(hub.RoomStaff, hub.EventPaymentSuccess, payment)
		return
	}
	s.notifier.Publish(hub.RoomStaff, hub.EventPaymentPending, payment)
}
