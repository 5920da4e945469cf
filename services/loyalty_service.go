package services

import (
	"errors"
	"math"

	"gorm.io/gorm"

	"github.com/yeremiapane/qr-dine/models"
	"github.com/yeremiapane/qr-dine/utils"
)

// Loyalty conversion rates: every 100 points redeem into 10,000 of discount,
// every 10,000 paid earns 1 point.
const (
	pointsPerRedeemUnit  = 100
	redeemUnitValue      = 10000
	amountPerEarnedPoint = 10000
)

// Adjustment operations accepted by Adjust.
const (
	PointsOpAdd      = "ADD"
	PointsOpSubtract = "SUBTRACT"
	PointsOpSet      = "SET"
)

// RedeemResult reports what a redeem-all took from the balance.
type RedeemResult struct {
	PointsUsed     int     `json:"points_used"`
	DiscountAmount float64 `json:"discount_amount"`
}

// LoyaltyService is the point ledger. RedeemAll and Earn only ever run inside
// the settlement transaction that owns them, so they take the caller's tx.
type LoyaltyService struct {
	db *gorm.DB
}

func NewLoyaltyService(db *gorm.DB) *LoyaltyService {
	return &LoyaltyService{db: db}
}

// RedeemAll converts the entire balance into a discount, capped at
// totalAmount. Redemption is all-or-nothing: once any points exist the
// balance drops to zero even when the cap wastes part of it.
func (s *LoyaltyService) RedeemAll(tx *gorm.DB, customerID uint, totalAmount float64) (*RedeemResult, error) {
	var customer models.Customer
	if err := forUpdate(tx).First(&customer, customerID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, utils.NewNotFound("customer %d not found", customerID)
		}
		return nil, err
	}

	if customer.Points <= 0 {
		return &RedeemResult{}, nil
	}

	discount := math.Floor(float64(customer.Points)/pointsPerRedeemUnit) * redeemUnitValue
	if discount > totalAmount {
		discount = totalAmount
	}

	// points_used reports the points worth of the discount actually granted;
	// the balance itself always drops to zero (all-or-nothing redemption).
	pointsUsed := int(discount) / (redeemUnitValue / pointsPerRedeemUnit)
	if err := tx.Model(&customer).Update("points", 0).Error; err != nil {
		return nil, err
	}

	return &RedeemResult{PointsUsed: pointsUsed, DiscountAmount: discount}, nil
}

// Earn accrues floor(finalAmount / 10000) points and returns the new balance.
func (s *LoyaltyService) Earn(tx *gorm.DB, customerID uint, finalAmount float64) (int, error) {
	earned := int(math.Floor(finalAmount / amountPerEarnedPoint))

	var customer models.Customer
	if err := forUpdate(tx).First(&customer, customerID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return 0, utils.NewNotFound("customer %d not found", customerID)
		}
		return 0, err
	}

	if earned < 1 {
		return customer.Points, nil
	}

	newBalance := customer.Points + earned
	if err := tx.Model(&customer).Update("points", newBalance).Error; err != nil {
		return 0, err
	}
	return newBalance, nil
}

// Adjust is the staff-facing balance correction. SUBTRACT and SET floor the
// balance at zero.
func (s *LoyaltyService) Adjust(customerID uint, points int, op string) (int, error) {
	var newBalance int
	err := s.db.Transaction(func(tx *gorm.DB) error {
		var customer models.Customer
		if err := forUpdate(tx).First(&customer, customerID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return utils.NewNotFound("customer %d not found", customerID)
			}
			return err
		}

		switch op {
		case PointsOpAdd:
			newBalance = customer.Points + points
		case PointsOpSubtract:
			newBalance = customer.Points - points
			if newBalance < 0 {
				newBalance = 0
			}
		case PointsOpSet:
			newBalance = points
			if newBalance < 0 {
				newBalance = 0
			}
		default:
			return utils.NewInvalidInput("unknown points operation %q", op)
		}

		return tx.Model(&customer).Update("points", newBalance).Error
	})
	if err != nil {
		return 0, err
	}
	return newBalance, nil
}
