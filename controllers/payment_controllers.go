package controllers

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/yeremiapane/qr-dine/models"
	"github.com/yeremiapane/qr-dine/services"
	"github.com/yeremiapane/qr-dine/utils"
)

type PaymentController struct {
	Settlement *services.SettlementService
	Payments   *services.PaymentService
}

func NewPaymentController(settlement *services.SettlementService, payments *services.PaymentService) *PaymentController {
	return &PaymentController{Settlement: settlement, Payments: payments}
}

// CreatePayment -> POST /payment, the customer-initiated single-order path.
func (pc *PaymentController) CreatePayment(c *gin.Context) {
	type reqBody struct {
		OrderID   uint   `json:"order_id" binding:"required"`
		Method    string `json:"method" binding:"required"`
		UsePoints bool   `json:"use_points"`
		PrintBill bool   `json:"print_bill"`
	}

	var body reqBody
	if err := c.ShouldBindJSON(&body); err != nil {
		utils.RespondError(c, http.StatusBadRequest, err)
		return
	}

	result, err := pc.Settlement.PayOrder(body.OrderID, models.PaymentMethod(body.Method), body.UsePoints, body.PrintBill)
	if err != nil {
		utils.RespondAppError(c, err)
		return
	}

	message := "Payment initiated"
	if result.IsExisting {
		message = "Existing payment returned"
	}
	utils.RespondJSON(c, http.StatusOK, message, result)
}

// PaymentCallback -> PUT /payment/callback, the external confirmation for
// the most recent pending payment of a session.
func (pc *PaymentController) PaymentCallback(c *gin.Context) {
	type reqBody struct {
		QrSessionID     uint    `json:"qr_session_id" binding:"required"`
		TransactionCode string  `json:"transaction_code"`
		Amount          float64 `json:"amount"`
		Success         *bool   `json:"success" binding:"required"`
	}

	var body reqBody
	if err := c.ShouldBindJSON(&body); err != nil {
		utils.RespondError(c, http.StatusBadRequest, err)
		return
	}

	payment, err := pc.Payments.ConfirmExternalPayment(body.QrSessionID, body.Amount, *body.Success, body.TransactionCode)
	if err != nil {
		utils.RespondAppError(c, err)
		return
	}

	utils.RespondJSON(c, http.StatusOK, "Payment confirmation processed", payment)
}

// RefundPayment -> POST /payment/:payment_id/refund
func (pc *PaymentController) RefundPayment(c *gin.Context) {
	paymentID, err := strconv.Atoi(c.Param("payment_id"))
	if err != nil {
		utils.RespondError(c, http.StatusBadRequest, err)
		return
	}

	type reqBody struct {
		Amount float64 `json:"amount" binding:"required"`
		Reason string  `json:"reason"`
	}

	var body reqBody
	if err := c.ShouldBindJSON(&body); err != nil {
		utils.RespondError(c, http.StatusBadRequest, err)
		return
	}

	payment, err := pc.Payments.Refund(uint(paymentID), body.Amount, body.Reason)
	if err != nil {
		utils.RespondAppError(c, err)
		return
	}

	utils.RespondJSON(c, http.StatusOK, "Payment refunded", payment)
}

// GetPaymentByID -> GET /payment/:payment_id
func (pc *PaymentController) GetPaymentByID(c *gin.Context) {
	paymentID, err := strconv.Atoi(c.Param("payment_id"))
	if err != nil {
		utils.RespondError(c, http.StatusBadRequest, err)
		return
	}

	payment, err := pc.Payments.GetByID(uint(paymentID))
	if err != nil {
		utils.RespondAppError(c, err)
		return
	}

	utils.RespondJSON(c, http.StatusOK, "Payment detail", payment)
}

// GetPayments -> GET /payment?qr_session_id=&from=&to=
func (pc *PaymentController) GetPayments(c *gin.Context) {
	var sessionID uint
	if raw := c.Query("qr_session_id"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil {
			utils.RespondError(c, http.StatusBadRequest, err)
			return
		}
		sessionID = uint(parsed)
	}

	var from, to time.Time
	if raw := c.Query("from"); raw != "" {
		parsed, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			utils.RespondError(c, http.StatusBadRequest, err)
			return
		}
		from = parsed
	}
	if raw := c.Query("to"); raw != "" {
		parsed, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			utils.RespondError(c, http.StatusBadRequest, err)
			return
		}
		to = parsed
	}

	payments, err := pc.Payments.List(sessionID, from, to)
	if err != nil {
		utils.RespondAppError(c, err)
		return
	}

	utils.RespondJSON(c, http.StatusOK, "List of payments", payments)
}
