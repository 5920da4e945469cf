package services

import (
	"errors"

	"gorm.io/gorm"

	"github.com/yeremiapane/qr-dine/hub"
	"github.com/yeremiapane/qr-dine/models"
	"github.com/yeremiapane/qr-dine/utils"
)

// OrderItemInput is one requested line item.
type OrderItemInput struct {
	MenuID   uint   `json:"menu_id" binding:"required"`
	Quantity int    `json:"quantity" binding:"required"`
	Note     string `json:"note"`
}

// OrderService owns the order lifecycle while a session is open:
// new -> in_progress -> done, with cancellation from any non-terminal state.
// Marking an order paid is reserved for settlement.
type OrderService struct {
	db       *gorm.DB
	notifier hub.Notifier
}

func NewOrderService(db *gorm.DB, notifier hub.Notifier) *OrderService {
	return &OrderService{db: db, notifier: notifier}
}

// Create places a new order on an active session, capturing menu unit prices.
func (s *OrderService) Create(sessionID uint, items []OrderItemInput) (*models.Order, error) {
	if len(items) == 0 {
		return nil, utils.NewInvalidInput("order needs at least one item")
	}
	for _, item := range items {
		if item.Quantity < 1 {
			return nil, utils.NewInvalidInput("quantity must be at least 1")
		}
	}

	var order models.Order
	err := s.db.Transaction(func(tx *gorm.DB) error {
		var session models.QrSession
		if err := tx.First(&session, sessionID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return utils.NewNotFound("session %d not found", sessionID)
			}
			return err
		}
		if session.Status != models.SessionActive {
			return utils.NewConflict("session %d is not active", sessionID)
		}

		order = models.Order{
			QrSessionID: sessionID,
			Status:      models.OrderNew,
		}
		if err := tx.Create(&order).Error; err != nil {
			return err
		}

		return s.appendItems(tx, &order, items)
	})
	if err != nil {
		return nil, err
	}

	s.notifier.Publish(hub.RoomStaff, hub.EventOrderUpdate, order)
	return &order, nil
}

// AddItems appends items to an order that the kitchen has not finished yet.
func (s *OrderService) AddItems(orderID uint, items []OrderItemInput) (*models.Order, error) {
	if len(items) == 0 {
		return nil, utils.NewInvalidInput("no items to add")
	}
	for _, item := range items {
		if item.Quantity < 1 {
			return nil, utils.NewInvalidInput("quantity must be at least 1")
		}
	}

	var order models.Order
	err := s.db.Transaction(func(tx *gorm.DB) error {
		if err := forUpdate(tx).First(&order, orderID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return utils.NewNotFound("order %d not found", orderID)
			}
			return err
		}
		if !order.Status.Editable() {
			return utils.NewConflict("order %d can no longer be changed", orderID)
		}

		return s.appendItems(tx, &order, items)
	})
	if err != nil {
		return nil, err
	}

	s.notifier.Publish(hub.RoomStaff, hub.EventOrderUpdate, order)
	return &order, nil
}

// appendItems creates item rows at current menu prices and refreshes the
// order total. Runs inside the caller's transaction.
func (s *OrderService) appendItems(tx *gorm.DB, order *models.Order, items []OrderItemInput) error {
	for _, item := range items {
		var menu models.Menu
		if err := tx.First(&menu, item.MenuID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return utils.NewNotFound("menu %d not found", item.MenuID)
			}
			return err
		}

		orderItem := models.OrderItem{
			OrderID:   order.ID,
			MenuID:    menu.ID,
			Quantity:  item.Quantity,
			UnitPrice: menu.Price,
			Note:      item.Note,
		}
		if err := tx.Create(&orderItem).Error; err != nil {
			return err
		}
	}

	return s.recalcTotal(tx, order)
}

// SetItemQuantity changes one line's quantity. A quantity below 1 is
// rejected; callers wanting zero must remove the item instead.
func (s *OrderService) SetItemQuantity(itemID uint, quantity int) (*models.Order, error) {
	if quantity < 1 {
		return nil, utils.NewInvalidInput("quantity must be at least 1")
	}

	var order models.Order
	err := s.db.Transaction(func(tx *gorm.DB) error {
		var item models.OrderItem
		if err := tx.First(&item, itemID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return utils.NewNotFound("order item %d not found", itemID)
			}
			return err
		}

		if err := forUpdate(tx).First(&order, item.OrderID).Error; err != nil {
			return err
		}
		if !order.Status.Editable() {
			return utils.NewConflict("order %d can no longer be changed", order.ID)
		}

		if err := tx.Model(&item).Update("quantity", quantity).Error; err != nil {
			return err
		}
		return s.recalcTotal(tx, &order)
	})
	if err != nil {
		return nil, err
	}
	return &order, nil
}

// RemoveItem deletes one line item. Removing the last item deletes the order
// itself; an order never survives as an empty shell.
func (s *OrderService) RemoveItem(itemID uint) (orderDeleted bool, err error) {
	err = s.db.Transaction(func(tx *gorm.DB) error {
		var item models.OrderItem
		if err := tx.First(&item, itemID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return utils.NewNotFound("order item %d not found", itemID)
			}
			return err
		}

		var order models.Order
		if err := forUpdate(tx).First(&order, item.OrderID).Error; err != nil {
			return err
		}
		if !order.Status.Editable() {
			return utils.NewConflict("order %d can no longer be changed", order.ID)
		}

		if err := tx.Delete(&item).Error; err != nil {
			return err
		}

		var remaining int64
		if err := tx.Model(&models.OrderItem{}).Where("order_id = ?", order.ID).Count(&remaining).Error; err != nil {
			return err
		}
		if remaining == 0 {
			orderDeleted = true
			return tx.Delete(&order).Error
		}
		return s.recalcTotal(tx, &order)
	})
	return orderDeleted, err
}

// Cancel moves any non-terminal order to cancelled. Payment rows, if any,
// are left alone.
func (s *OrderService) Cancel(orderID uint, reason string, adminID *uint) (*models.Order, error) {
	var order models.Order
	err := s.db.Transaction(func(tx *gorm.DB) error {
		if err := forUpdate(tx).First(&order, orderID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return utils.NewNotFound("order %d not found", orderID)
			}
			return err
		}
		if order.Status.IsTerminal() {
			return utils.NewConflict("order %d is already %s", orderID, order.Status)
		}

		order.Status = models.OrderCancelled
		order.CancelReason = reason
		order.AdminID = adminID
		return tx.Save(&order).Error
	})
	if err != nil {
		return nil, err
	}

	s.notifier.Publish(hub.RoomStaff, hub.EventOrderUpdate, order)
	return &order, nil
}

// Start is the kitchen acknowledgement: new -> in_progress.
func (s *OrderService) Start(orderID uint) (*models.Order, error) {
	return s.advance(orderID, models.OrderNew, models.OrderInProgress)
}

// Finish marks a served order: in_progress -> done.
func (s *OrderService) Finish(orderID uint) (*models.Order, error) {
	return s.advance(orderID, models.OrderInProgress, models.OrderDone)
}

func (s *OrderService) advance(orderID uint, from, to models.OrderStatus) (*models.Order, error) {
	var order models.Order
	err := s.db.Transaction(func(tx *gorm.DB) error {
		if err := forUpdate(tx).First(&order, orderID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return utils.NewNotFound("order %d not found", orderID)
			}
			return err
		}
		if order.Status != from {
			return utils.NewConflict("order %d is %s, not %s", orderID, order.Status, from)
		}

		order.Status = to
		return tx.Save(&order).Error
	})
	if err != nil {
		return nil, err
	}

	s.notifier.Publish(hub.SessionRoom(order.QrSessionID), hub.EventOrderUpdate, order)
	s.notifier.Publish(hub.RoomStaff, hub.EventOrderUpdate, order)
	return &order, nil
}

// Get loads one order with its items.
func (s *OrderService) Get(orderID uint) (*models.Order, error) {
	var order models.Order
	if err := s.db.Preload("OrderItems").First(&order, orderID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, utils.NewNotFound("order %d not found", orderID)
		}
		return nil, err
	}
	return &order, nil
}

// recalcTotal re-derives total_price from the surviving items.
func (s *OrderService) recalcTotal(tx *gorm.DB, order *models.Order) error {
	if err := tx.Preload("OrderItems").First(order, order.ID).Error; err != nil {
		return err
	}
	order.RecalcTotal()
	return tx.Model(order).Update("total_price", order.TotalPrice).Error
}
