package controllers

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/yeremiapane/qr-dine/models"
	"github.com/yeremiapane/qr-dine/services"
	"github.com/yeremiapane/qr-dine/utils"
)

type OrderController struct {
	Orders *services.OrderService
}

func NewOrderController(orders *services.OrderService) *OrderController {
	return &OrderController{Orders: orders}
}

// CreateOrder -> POST /orders
func (oc *OrderController) CreateOrder(c *gin.Context) {
	type reqBody struct {
		QrSessionID uint                      `json:"qr_session_id" binding:"required"`
		Items       []services.OrderItemInput `json:"items" binding:"required"`
	}

	var body reqBody
	if err := c.ShouldBindJSON(&body); err != nil {
		utils.RespondError(c, http.StatusBadRequest, err)
		return
	}

	order, err := oc.Orders.Create(body.QrSessionID, body.Items)
	if err != nil {
		utils.RespondAppError(c, err)
		return
	}

	utils.RespondJSON(c, http.StatusCreated, "Order created", order)
}

// GetOrderByID -> GET /orders/:order_id
func (oc *OrderController) GetOrderByID(c *gin.Context) {
	orderID, err := strconv.Atoi(c.Param("order_id"))
	if err != nil {
		utils.RespondError(c, http.StatusBadRequest, err)
		return
	}

	order, err := oc.Orders.Get(uint(orderID))
	if err != nil {
		utils.RespondAppError(c, err)
		return
	}

	utils.RespondJSON(c, http.StatusOK, "Order detail", order)
}

// AddItems -> POST /orders/:order_id/items
func (oc *OrderController) AddItems(c *gin.Context) {
	orderID, err := strconv.Atoi(c.Param("order_id"))
	if err != nil {
		utils.RespondError(c, http.StatusBadRequest, err)
		return
	}

	type reqBody struct {
		Items []services.OrderItemInput `json:"items" binding:"required"`
	}

	var body reqBody
	if err := c.ShouldBindJSON(&body); err != nil {
		utils.RespondError(c, http.StatusBadRequest, err)
		return
	}

	order, err := oc.Orders.AddItems(uint(orderID), body.Items)
	if err != nil {
		utils.RespondAppError(c, err)
		return
	}

	utils.RespondJSON(c, http.StatusOK, "Items added", order)
}

// UpdateItemQuantity -> PATCH /order-items/:item_id
func (oc *OrderController) UpdateItemQuantity(c *gin.Context) {
	itemID, err := strconv.Atoi(c.Param("item_id"))
	if err != nil {
		utils.RespondError(c, http.StatusBadRequest, err)
		return
	}

	type reqBody struct {
		Quantity int `json:"quantity" binding:"required"`
	}

	var body reqBody
	if err := c.ShouldBindJSON(&body); err != nil {
		utils.RespondError(c, http.StatusBadRequest, err)
		return
	}

	order, err := oc.Orders.SetItemQuantity(uint(itemID), body.Quantity)
	if err != nil {
		utils.RespondAppError(c, err)
		return
	}

	utils.RespondJSON(c, http.StatusOK, "Quantity updated", order)
}

// RemoveItem -> DELETE /order-items/:item_id
func (oc *OrderController) RemoveItem(c *gin.Context) {
	itemID, err := strconv.Atoi(c.Param("item_id"))
	if err != nil {
		utils.RespondError(c, http.StatusBadRequest, err)
		return
	}

	orderDeleted, err := oc.Orders.RemoveItem(uint(itemID))
	if err != nil {
		utils.RespondAppError(c, err)
		return
	}

	utils.RespondJSON(c, http.StatusOK, "Item removed", gin.H{"order_deleted": orderDeleted})
}

// CancelOrder -> POST /orders/:order_id/cancel
func (oc *OrderController) CancelOrder(c *gin.Context) {
	orderID, err := strconv.Atoi(c.Param("order_id"))
	if err != nil {
		utils.RespondError(c, http.StatusBadRequest, err)
		return
	}

	type reqBody struct {
		Reason string `json:"reason"`
	}

	var body reqBody
	if err := c.ShouldBindJSON(&body); err != nil && err.Error() != "EOF" {
		utils.RespondError(c, http.StatusBadRequest, err)
		return
	}

	var adminID *uint
	if raw, exists := c.Get("user_id"); exists {
		id := raw.(uint)
		adminID = &id
	}

	order, err := oc.Orders.Cancel(uint(orderID), body.Reason, adminID)
	if err != nil {
		utils.RespondAppError(c, err)
		return
	}

	utils.RespondJSON(c, http.StatusOK, "Order cancelled", order)
}

// StartOrder -> POST /orders/:order_id/start (kitchen acknowledgement)
func (oc *OrderController) StartOrder(c *gin.Context) {
	oc.advance(c, oc.Orders.Start, "Order in progress")
}

// FinishOrder -> POST /orders/:order_id/finish
func (oc *OrderController) FinishOrder(c *gin.Context) {
	oc.advance(c, oc.Orders.Finish, "Order done")
}

func (oc *OrderController) advance(c *gin.Context, fn func(uint) (*models.Order, error), message string) {
	orderID, err := strconv.Atoi(c.Param("order_id"))
	if err != nil {
		utils.RespondError(c, http.StatusBadRequest, err)
		return
	}

	order, err := fn(uint(orderID))
	if err != nil {
		utils.RespondAppError(c, err)
		return
	}

	utils.RespondJSON(c, http.StatusOK, message, order)
}
