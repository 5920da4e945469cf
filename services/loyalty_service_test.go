package services

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yeremiapane/qr-dine/models"
	"github.com/yeremiapane/qr-dine/utils"
)

func TestRedeemAllFullDiscount(t *testing.T) {
	db := setupTestDB(t)
	loyalty := NewLoyaltyService(db)
	customer := seedCustomer(t, db, 300)

	result, err := loyalty.RedeemAll(db, customer.ID, 100000)
	require.NoError(t, err)

	assert.Equal(t, float64(30000), result.DiscountAmount)
	assert.Equal(t, 300, result.PointsUsed)

	var reloaded models.Customer
	require.NoError(t, db.First(&reloaded, customer.ID).Error)
	assert.Equal(t, 0, reloaded.Points)
}

func TestRedeemAllCappedAtTotal(t *testing.T) {
	db := setupTestDB(t)
	loyalty := NewLoyaltyService(db)
	customer := seedCustomer(t, db, 10000)

	// 10000 points are worth 1,000,000 but the bill is only 5000: the
	// discount stops at the bill while the whole balance is consumed.
	result, err := loyalty.RedeemAll(db, customer.ID, 5000)
	require.NoError(t, err)

	assert.Equal(t, float64(5000), result.DiscountAmount)
	assert.Equal(t, 50, result.PointsUsed)

	var reloaded models.Customer
	require.NoError(t, db.First(&reloaded, customer.ID).Error)
	assert.Equal(t, 0, reloaded.Points, "redemption must zero the balance even when capped")
}

func TestRedeemAllZeroBalance(t *testing.T) {
	db := setupTestDB(t)
	loyalty := NewLoyaltyService(db)
	customer := seedCustomer(t, db, 0)

	result, err := loyalty.RedeemAll(db, customer.ID, 50000)
	require.NoError(t, err)
	assert.Equal(t, 0, result.PointsUsed)
	assert.Equal(t, float64(0), result.DiscountAmount)
}

func TestRedeemAllBelowOneUnit(t *testing.T) {
	db := setupTestDB(t)
	loyalty := NewLoyaltyService(db)
	customer := seedCustomer(t, db, 99)

	// 99 points do not reach one redeem unit: no discount, but the balance
	// is still cleared because redemption is all-or-nothing.
	result, err := loyalty.RedeemAll(db, customer.ID, 50000)
	require.NoError(t, err)
	assert.Equal(t, float64(0), result.DiscountAmount)
	assert.Equal(t, 0, result.PointsUsed)

	var reloaded models.Customer
	require.NoError(t, db.First(&reloaded, customer.ID).Error)
	assert.Equal(t, 0, reloaded.Points)
}

func TestRedeemAllUnknownCustomer(t *testing.T) {
	db := setupTestDB(t)
	loyalty := NewLoyaltyService(db)

	_, err := loyalty.RedeemAll(db, 999, 1000)
	require.Error(t, err)
	assert.Equal(t, 404, utils.StatusOf(err))
}

func TestEarnAccrues(t *testing.T) {
	db := setupTestDB(t)
	loyalty := NewLoyaltyService(db)
	customer := seedCustomer(t, db, 5)

	balance, err := loyalty.Earn(db, customer.ID, 45000)
	require.NoError(t, err)
	assert.Equal(t, 9, balance, "floor(45000/10000)=4 earned on top of 5")
}

func TestEarnBelowThreshold(t *testing.T) {
	db := setupTestDB(t)
	loyalty := NewLoyaltyService(db)
	customer := seedCustomer(t, db, 7)

	balance, err := loyalty.Earn(db, customer.ID, 9999)
	require.NoError(t, err)
	assert.Equal(t, 7, balance)
}

func TestAdjust(t *testing.T) {
	db := setupTestDB(t)
	loyalty := NewLoyaltyService(db)
	customer := seedCustomer(t, db, 100)

	balance, err := loyalty.Adjust(customer.ID, 50, PointsOpAdd)
	require.NoError(t, err)
	assert.Equal(t, 150, balance)

	balance, err = loyalty.Adjust(customer.ID, 200, PointsOpSubtract)
	require.NoError(t, err)
	assert.Equal(t, 0, balance, "subtract floors at zero")

	balance, err = loyalty.Adjust(customer.ID, 42, PointsOpSet)
	require.NoError(t, err)
	assert.Equal(t, 42, balance)

	_, err = loyalty.Adjust(customer.ID, 1, "MULTIPLY")
	require.Error(t, err)
	assert.Equal(t, 400, utils.StatusOf(err))
}
