package services

import (
	"errors"

	"gorm.io/gorm"

	"github.com/yeremiapane/qr-dine/hub"
	"github.com/yeremiapane/qr-dine/models"
	"github.com/yeremiapane/qr-dine/utils"
)

// SettlementResult summarizes one settled session and is also the payload
// broadcast to the session room.
type SettlementResult struct {
	SessionID       uint    `json:"session_id"`
	OrdersConfirmed []uint  `json:"orders_confirmed"`
	OrdersCancelled []uint  `json:"orders_cancelled"`
	TotalAmount     float64 `json:"total_amount"`
	PointsUsed      int     `json:"points_used,omitempty"`
	DiscountAmount  float64 `json:"discount_amount,omitempty"`
	PointsEarned    int     `json:"points_earned,omitempty"`
}

// PayOrderResult is the customer-initiated single-order payment outcome.
type PayOrderResult struct {
	*PaymentResult
	PointsUsed     int     `json:"points_used,omitempty"`
	DiscountAmount float64 `json:"discount_amount,omitempty"`
	PointsEarned   int     `json:"points_earned,omitempty"`
}

// SettlementService turns a session's in-flight orders into one paid/closed
// outcome. Orders, payments, the loyalty balance and the session row all
// move inside a single transaction; the notification fan-out happens after
// commit and never rolls anything back.
type SettlementService struct {
	db       *gorm.DB
	payments *PaymentService
	loyalty  *LoyaltyService
	notifier hub.Notifier
}

func NewSettlementService(db *gorm.DB, payments *PaymentService, loyalty *LoyaltyService, notifier hub.Notifier) *SettlementService {
	return &SettlementService{db: db, payments: payments, loyalty: loyalty, notifier: notifier}
}

// SettleSession settles every order of an active session: orders the kitchen
// acknowledged (in_progress/done) are billed and paid, orders it never
// picked up (new) are cancelled instead of silently charged, and the session
// closes. The second of two concurrent settlements observes the completed
// status under the row lock and fails with a conflict.
func (s *SettlementService) SettleSession(sessionID uint, adminID uint) (*SettlementResult, error) {
	result := &SettlementResult{SessionID: sessionID}

	err := s.db.Transaction(func(tx *gorm.DB) error {
		var session models.QrSession
		if err := forUpdate(tx).First(&session, sessionID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return utils.NewNotFound("session %d not found", sessionID)
			}
			return err
		}
		if session.Status != models.SessionActive {
			return utils.NewConflict("session %d is not active", sessionID)
		}

		var orders []models.Order
		if err := forUpdate(tx).
			Where("qr_session_id = ?", sessionID).Find(&orders).Error; err != nil {
			return err
		}
		if len(orders) == 0 {
			return utils.NewNotFound("session %d has no orders", sessionID)
		}

		var toConfirm, toCancel []models.Order
		for _, order := range orders {
			switch order.Status {
			case models.OrderInProgress, models.OrderDone:
				toConfirm = append(toConfirm, order)
				result.TotalAmount += order.TotalPrice
			case models.OrderNew:
				toCancel = append(toCancel, order)
			}
			// paid and cancelled orders are left untouched
		}

		for _, order := range toCancel {
			updates := map[string]interface{}{
				"status":        models.OrderCancelled,
				"admin_id":      adminID,
				"cancel_reason": "unacknowledged at settlement",
			}
			if err := tx.Model(&models.Order{}).Where("id = ?", order.ID).Updates(updates).Error; err != nil {
				return err
			}
			result.OrdersCancelled = append(result.OrdersCancelled, order.ID)
		}

		for i := range toConfirm {
			if err := s.payments.settleOrderTx(tx, &toConfirm[i], adminID); err != nil {
				return err
			}
			result.OrdersConfirmed = append(result.OrdersConfirmed, toConfirm[i].ID)
		}

		// Redeem-then-earn against the session's customer, inside the same
		// transaction as the order updates.
		if session.CustomerID != nil && result.TotalAmount > 0 {
			redeemed, err := s.loyalty.RedeemAll(tx, *session.CustomerID, result.TotalAmount)
			if err != nil {
				return err
			}
			result.PointsUsed = redeemed.PointsUsed
			result.DiscountAmount = redeemed.DiscountAmount

			final := result.TotalAmount - redeemed.DiscountAmount
			if _, err := s.loyalty.Earn(tx, *session.CustomerID, final); err != nil {
				return err
			}
			result.PointsEarned = pointsEarnedFor(final)
		}

		return tx.Model(&session).Update("status", models.SessionCompleted).Error
	})
	if err != nil {
		var appErr *utils.AppError
		if errors.As(err, &appErr) {
			return nil, err
		}
		return nil, utils.NewSettlementFailed(err)
	}

	// Post-commit fan-out; a dead hub never undoes the settlement.
	s.notifier.Publish(hub.SessionRoom(sessionID), hub.EventSessionPaid, result)
	s.notifier.Publish(hub.RoomStaff, hub.EventSessionPaid, result)
	return result, nil
}

// PayOrder is the customer-initiated path: optional redeem-all before the
// amount is fixed, then a payment record. Cash completes synchronously with
// point accrual; banking/qr return instructions and stay pending.
func (s *SettlementService) PayOrder(orderID uint, method models.PaymentMethod, usePoints bool, printBill bool) (*PayOrderResult, error) {
	if !method.Valid() {
		return nil, utils.NewInvalidInput("unknown payment method %q", method)
	}

	result := &PayOrderResult{}
	err := s.db.Transaction(func(tx *gorm.DB) error {
		var order models.Order
		if err := forUpdate(tx).First(&order, orderID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return utils.NewNotFound("order %d not found", orderID)
			}
			return err
		}

		var session models.QrSession
		if err := tx.First(&session, order.QrSessionID).Error; err != nil {
			return err
		}

		amount := order.TotalPrice

		// Redemption only applies when this request will create a new
		// payment; a reused open payment keeps its recorded amount.
		var open int64
		if err := tx.Model(&models.Payment{}).
			Where("order_id = ? AND status IN ?", order.ID,
				[]models.PaymentStatus{models.PaymentPending, models.PaymentProcessing}).
			Count(&open).Error; err != nil {
			return err
		}

		if usePoints && open == 0 && session.CustomerID != nil {
			redeemed, err := s.loyalty.RedeemAll(tx, *session.CustomerID, amount)
			if err != nil {
				return err
			}
			result.PointsUsed = redeemed.PointsUsed
			result.DiscountAmount = redeemed.DiscountAmount
			amount -= redeemed.DiscountAmount
		}

		paymentResult, err := s.payments.requestPaymentTx(tx, &order, method, amount, printBill)
		if err != nil {
			return err
		}
		result.PaymentResult = paymentResult

		if !paymentResult.IsExisting && method == models.MethodCash && session.CustomerID != nil {
			if _, err := s.loyalty.Earn(tx, *session.CustomerID, amount); err != nil {
				return err
			}
			result.PointsEarned = pointsEarnedFor(amount)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.payments.publishRequested(result.PaymentResult)
	return result, nil
}

func pointsEarnedFor(amount float64) int {
	earned := int(amount / amountPerEarnedPoint)
	if earned < 1 {
		return 0
	}
	return earned
}
