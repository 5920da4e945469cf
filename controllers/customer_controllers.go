package controllers

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/yeremiapane/qr-dine/models"
	"github.com/yeremiapane/qr-dine/services"
	"github.com/yeremiapane/qr-dine/utils"
)

type CustomerController struct {
	DB      *gorm.DB
	Loyalty *services.LoyaltyService
}

func NewCustomerController(db *gorm.DB, loyalty *services.LoyaltyService) *CustomerController {
	return &CustomerController{DB: db, Loyalty: loyalty}
}

// GetAllCustomers
func (cc *CustomerController) GetAllCustomers(c *gin.Context) {
	var customers []models.Customer
	if err := cc.DB.Find(&customers).Error; err != nil {
		utils.RespondError(c, http.StatusInternalServerError, err)
		return
	}

	utils.RespondJSON(c, http.StatusOK, "List of customers", customers)
}

// CreateCustomer -> register a loyalty member
func (cc *CustomerController) CreateCustomer(c *gin.Context) {
	type reqBody struct {
		Phone string  `json:"phone" binding:"required"`
		Email *string `json:"email"`
		Name  string  `json:"name"`
	}

	var body reqBody
	if err := c.ShouldBindJSON(&body); err != nil {
		utils.RespondError(c, http.StatusBadRequest, err)
		return
	}

	customer := models.Customer{
		Phone: body.Phone,
		Email: body.Email,
		Name:  body.Name,
	}
	if err := cc.DB.Create(&customer).Error; err != nil {
		utils.RespondError(c, http.StatusConflict, err)
		return
	}

	utils.InfoLogger.Printf("New customer created (ID=%d, phone=%s)", customer.ID, customer.Phone)
	utils.RespondJSON(c, http.StatusCreated, "Customer created", customer)
}

// GetCustomerByID
func (cc *CustomerController) GetCustomerByID(c *gin.Context) {
	customerID, err := strconv.Atoi(c.Param("customer_id"))
	if err != nil {
		utils.RespondError(c, http.StatusBadRequest, err)
		return
	}

	var customer models.Customer
	if err := cc.DB.First(&customer, customerID).Error; err != nil {
		utils.RespondError(c, http.StatusNotFound, err)
		return
	}

	utils.RespondJSON(c, http.StatusOK, "Customer detail", customer)
}

// DeleteCustomer -> soft delete
func (cc *CustomerController) DeleteCustomer(c *gin.Context) {
	customerID, err := strconv.Atoi(c.Param("customer_id"))
	if err != nil {
		utils.RespondError(c, http.StatusBadRequest, err)
		return
	}

	if err := cc.DB.Delete(&models.Customer{}, customerID).Error; err != nil {
		utils.RespondError(c, http.StatusInternalServerError, err)
		return
	}

	utils.RespondJSON(c, http.StatusOK, "Customer deleted", gin.H{"customer_id": customerID})
}

// AdjustPoints -> POST /customers/:customer_id/points, the staff-facing
// balance correction.
func (cc *CustomerController) AdjustPoints(c *gin.Context) {
	customerID, err := strconv.Atoi(c.Param("customer_id"))
	if err != nil {
		utils.RespondError(c, http.StatusBadRequest, err)
		return
	}

	type reqBody struct {
		Points int    `json:"points" binding:"required"`
		Op     string `json:"op" binding:"required"`
	}

	var body reqBody
	if err := c.ShouldBindJSON(&body); err != nil {
		utils.RespondError(c, http.StatusBadRequest, err)
		return
	}

	balance, err := cc.Loyalty.Adjust(uint(customerID), body.Points, body.Op)
	if err != nil {
		utils.RespondAppError(c, err)
		return
	}

	utils.RespondJSON(c, http.StatusOK, "Points adjusted", gin.H{"points": balance})
}
