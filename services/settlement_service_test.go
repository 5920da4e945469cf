package services

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/yeremiapane/qr-dine/hub"
	"github.com/yeremiapane/qr-dine/models"
	"github.com/yeremiapane/qr-dine/utils"
)

func TestSettleSessionConfirmsAndCancels(t *testing.T) {
	db := setupTestDB(t)
	settlement, _, _, _, _, notifier := newTestStack(db)
	session := seedSession(t, db, nil)

	inProgress := seedOrder(t, db, session.ID, models.OrderInProgress, 30000)
	done := seedOrder(t, db, session.ID, models.OrderDone, 20000)
	unacknowledged := seedOrder(t, db, session.ID, models.OrderNew, 15000)

	result, err := settlement.SettleSession(session.ID, 1)
	require.NoError(t, err)

	assert.ElementsMatch(t, []uint{inProgress.ID, done.ID}, result.OrdersConfirmed)
	assert.Equal(t, []uint{unacknowledged.ID}, result.OrdersCancelled)
	assert.Equal(t, float64(50000), result.TotalAmount, "cancelled orders do not bill")

	for _, id := range result.OrdersConfirmed {
		var order models.Order
		require.NoError(t, db.First(&order, id).Error)
		assert.Equal(t, models.OrderPaid, order.Status)
		require.NotNil(t, order.AdminID)
		assert.EqualValues(t, 1, *order.AdminID)

		var payment models.Payment
		require.NoError(t, db.Where("order_id = ?", id).First(&payment).Error)
		assert.Equal(t, models.PaymentPaid, payment.Status)
		assert.Equal(t, order.TotalPrice, payment.Amount)
	}

	var cancelled models.Order
	require.NoError(t, db.First(&cancelled, unacknowledged.ID).Error)
	assert.Equal(t, models.OrderCancelled, cancelled.Status)
	assert.NotEmpty(t, cancelled.CancelReason)

	var reloadedSession models.QrSession
	require.NoError(t, db.First(&reloadedSession, session.ID).Error)
	assert.Equal(t, models.SessionCompleted, reloadedSession.Status)

	events := notifier.byType(hub.EventSessionPaid)
	require.Len(t, events, 2)
	assert.Equal(t, hub.SessionRoom(session.ID), events[0].Room)
	assert.Equal(t, hub.RoomStaff, events[1].Room)
	published, ok := events[0].Data.(*SettlementResult)
	require.True(t, ok)
	assert.Equal(t, result.TotalAmount, published.TotalAmount)
}

func TestSettleSessionSkipsTerminalOrders(t *testing.T) {
	db := setupTestDB(t)
	settlement, _, _, _, _, _ := newTestStack(db)
	session := seedSession(t, db, nil)

	paid := seedOrder(t, db, session.ID, models.OrderPaid, 30000)
	alreadyCancelled := seedOrder(t, db, session.ID, models.OrderCancelled, 10000)
	done := seedOrder(t, db, session.ID, models.OrderDone, 20000)

	result, err := settlement.SettleSession(session.ID, 1)
	require.NoError(t, err)

	assert.Equal(t, []uint{done.ID}, result.OrdersConfirmed)
	assert.Empty(t, result.OrdersCancelled)
	assert.Equal(t, float64(20000), result.TotalAmount)

	// Previously settled rows are untouched.
	var reloaded models.Order
	require.NoError(t, db.First(&reloaded, paid.ID).Error)
	assert.Equal(t, models.OrderPaid, reloaded.Status)
	reloaded = models.Order{}
	require.NoError(t, db.First(&reloaded, alreadyCancelled.ID).Error)
	assert.Equal(t, models.OrderCancelled, reloaded.Status)
}

func TestSettleSessionWithLoyalty(t *testing.T) {
	db := setupTestDB(t)
	settlement, _, _, _, _, _ := newTestStack(db)
	customer := seedCustomer(t, db, 300)
	session := seedSession(t, db, &customer.ID)
	seedOrder(t, db, session.ID, models.OrderDone, 100000)

	result, err := settlement.SettleSession(session.ID, 1)
	require.NoError(t, err)

	// 300 points redeem into 30,000 discount, then 70,000 paid earns 7.
	assert.Equal(t, 300, result.PointsUsed)
	assert.Equal(t, float64(30000), result.DiscountAmount)
	assert.Equal(t, 7, result.PointsEarned)

	var reloaded models.Customer
	require.NoError(t, db.First(&reloaded, customer.ID).Error)
	assert.Equal(t, 7, reloaded.Points, "balance is zeroed by redemption, then accrues")
}

func TestSettleSessionNotActive(t *testing.T) {
	db := setupTestDB(t)
	settlement, _, _, _, _, _ := newTestStack(db)
	session := seedSession(t, db, nil)
	seedOrder(t, db, session.ID, models.OrderDone, 10000)

	_, err := settlement.SettleSession(session.ID, 1)
	require.NoError(t, err)

	// Settling twice conflicts: the session already completed.
	_, err = settlement.SettleSession(session.ID, 1)
	require.Error(t, err)
	assert.Equal(t, 409, utils.StatusOf(err))
}

func TestSettleSessionNoOrders(t *testing.T) {
	db := setupTestDB(t)
	settlement, _, _, _, _, _ := newTestStack(db)
	session := seedSession(t, db, nil)

	_, err := settlement.SettleSession(session.ID, 1)
	require.Error(t, err)
	assert.Equal(t, 404, utils.StatusOf(err))

	var reloaded models.QrSession
	require.NoError(t, db.First(&reloaded, session.ID).Error)
	assert.Equal(t, models.SessionActive, reloaded.Status)
}

func TestSettleSessionUnknownSession(t *testing.T) {
	db := setupTestDB(t)
	settlement, _, _, _, _, _ := newTestStack(db)

	_, err := settlement.SettleSession(999, 1)
	require.Error(t, err)
	assert.Equal(t, 404, utils.StatusOf(err))
}

func TestSettleSessionFailsOpenPayments(t *testing.T) {
	db := setupTestDB(t)
	settlement, payments, _, _, _, _ := newTestStack(db)
	session := seedSession(t, db, nil)
	order := seedOrder(t, db, session.ID, models.OrderDone, 40000)

	abandoned, err := payments.RequestPayment(order.ID, models.MethodBanking, false)
	require.NoError(t, err)

	_, err = settlement.SettleSession(session.ID, 1)
	require.NoError(t, err)

	var reloaded models.Payment
	require.NoError(t, db.First(&reloaded, abandoned.Payment.ID).Error)
	assert.Equal(t, models.PaymentFailed, reloaded.Status, "abandoned open payments are closed out")

	var paidCount int64
	require.NoError(t, db.Model(&models.Payment{}).
		Where("order_id = ? AND status = ?", order.ID, models.PaymentPaid).
		Count(&paidCount).Error)
	assert.EqualValues(t, 1, paidCount)
}

// TestSettleSessionRollsBackAtomically injects a failure into the final
// session update and verifies that no order, payment, or loyalty write
// survives.
func TestSettleSessionRollsBackAtomically(t *testing.T) {
	db := setupTestDB(t)
	settlement, _, _, _, _, notifier := newTestStack(db)
	customer := seedCustomer(t, db, 300)
	session := seedSession(t, db, &customer.ID)
	confirmable := seedOrder(t, db, session.ID, models.OrderDone, 100000)
	unacknowledged := seedOrder(t, db, session.ID, models.OrderNew, 5000)

	injected := errors.New("injected write failure")
	err := db.Callback().Update().Before("gorm:update").Register("fail_session_update", func(tx *gorm.DB) {
		if tx.Statement.Table == "qr_sessions" {
			tx.AddError(injected)
		}
	})
	require.NoError(t, err)
	defer db.Callback().Update().Remove("fail_session_update")

	_, err = settlement.SettleSession(session.ID, 1)
	require.Error(t, err)
	assert.Equal(t, 500, utils.StatusOf(err))

	// Everything the settlement touched must be back to its prior state.
	var order models.Order
	require.NoError(t, db.First(&order, confirmable.ID).Error)
	assert.Equal(t, models.OrderDone, order.Status)

	order = models.Order{}
	require.NoError(t, db.First(&order, unacknowledged.ID).Error)
	assert.Equal(t, models.OrderNew, order.Status)

	var payments int64
	require.NoError(t, db.Model(&models.Payment{}).Count(&payments).Error)
	assert.EqualValues(t, 0, payments)

	var reloadedCustomer models.Customer
	require.NoError(t, db.First(&reloadedCustomer, customer.ID).Error)
	assert.Equal(t, 300, reloadedCustomer.Points, "loyalty writes roll back with the rest")

	var reloadedSession models.QrSession
	require.NoError(t, db.First(&reloadedSession, session.ID).Error)
	assert.Equal(t, models.SessionActive, reloadedSession.Status)

	assert.Empty(t, notifier.byType(hub.EventSessionPaid), "no notification for a rolled-back settlement")
}

func TestPayOrderCashWithPoints(t *testing.T) {
	db := setupTestDB(t)
	settlement, _, _, _, _, _ := newTestStack(db)
	customer := seedCustomer(t, db, 200)
	session := seedSession(t, db, &customer.ID)
	order := seedOrder(t, db, session.ID, models.OrderDone, 50000)

	result, err := settlement.PayOrder(order.ID, models.MethodCash, true, false)
	require.NoError(t, err)

	assert.Equal(t, 200, result.PointsUsed)
	assert.Equal(t, float64(20000), result.DiscountAmount)
	assert.Equal(t, float64(30000), result.Payment.Amount, "payment covers the discounted amount")
	assert.Equal(t, models.PaymentPaid, result.Payment.Status)
	assert.Equal(t, 3, result.PointsEarned)

	var reloaded models.Customer
	require.NoError(t, db.First(&reloaded, customer.ID).Error)
	assert.Equal(t, 3, reloaded.Points)
}

func TestPayOrderBankingWithPoints(t *testing.T) {
	db := setupTestDB(t)
	settlement, _, _, _, _, _ := newTestStack(db)
	customer := seedCustomer(t, db, 100)
	session := seedSession(t, db, &customer.ID)
	order := seedOrder(t, db, session.ID, models.OrderDone, 50000)

	result, err := settlement.PayOrder(order.ID, models.MethodBanking, true, false)
	require.NoError(t, err)

	assert.Equal(t, float64(10000), result.DiscountAmount)
	assert.Equal(t, float64(40000), result.Payment.Amount)
	assert.Equal(t, models.PaymentPending, result.Payment.Status)
	require.NotNil(t, result.Instruction)
	assert.Equal(t, float64(40000), result.Instruction.Amount)
	// Points are earned only once the external confirmation lands.
	assert.Equal(t, 0, result.PointsEarned)
}

func TestPayOrderReuseDoesNotBurnPoints(t *testing.T) {
	db := setupTestDB(t)
	settlement, payments, _, _, _, _ := newTestStack(db)
	customer := seedCustomer(t, db, 500)
	session := seedSession(t, db, &customer.ID)
	order := seedOrder(t, db, session.ID, models.OrderDone, 50000)

	_, err := payments.RequestPayment(order.ID, models.MethodBanking, false)
	require.NoError(t, err)

	result, err := settlement.PayOrder(order.ID, models.MethodQR, true, false)
	require.NoError(t, err)
	assert.True(t, result.IsExisting)
	assert.Equal(t, 0, result.PointsUsed)

	var reloaded models.Customer
	require.NoError(t, db.First(&reloaded, customer.ID).Error)
	assert.Equal(t, 500, reloaded.Points, "reusing an open payment must not touch the balance")
}

func TestPayOrderInvalidMethod(t *testing.T) {
	db := setupTestDB(t)
	settlement, _, _, _, _, _ := newTestStack(db)

	_, err := settlement.PayOrder(1, models.PaymentMethod("barter"), false, false)
	require.Error(t, err)
	assert.Equal(t, 400, utils.StatusOf(err))
}
