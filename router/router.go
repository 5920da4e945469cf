package router

import (
	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/yeremiapane/qr-dine/controllers"
	"github.com/yeremiapane/qr-dine/hub"
	"github.com/yeremiapane/qr-dine/middlewares"
	"github.com/yeremiapane/qr-dine/services"
)

func SetupRouter(db *gorm.DB, h *hub.Hub) *gin.Engine {
	r := gin.Default()

	r.Use(middlewares.CORSMiddlewares())
	r.Use(middlewares.LoggerMiddleware())
	r.Use(middlewares.NewRateLimiter(50, 1).RateLimit())

	// Services
	loyaltySvc := services.NewLoyaltyService(db)
	paymentSvc := services.NewPaymentService(db, services.GetBankTransferService(), loyaltySvc, h)
	settlementSvc := services.NewSettlementService(db, paymentSvc, loyaltySvc, h)
	orderSvc := services.NewOrderService(db, h)
	sessionSvc := services.NewSessionService(db, h)

	// Controllers
	userCtrl := controllers.NewUserController(db)
	sessionCtrl := controllers.NewSessionController(sessionSvc, settlementSvc)
	orderCtrl := controllers.NewOrderController(orderSvc)
	paymentCtrl := controllers.NewPaymentController(settlementSvc, paymentSvc)
	customerCtrl := controllers.NewCustomerController(db, loyaltySvc)
	wsCtrl := controllers.NewWSController(h)

	r.GET("/ping", func(c *gin.Context) {
		c.JSON(200, gin.H{"message": "pong"})
	})

	// Login/register behind the strict limiter
	public := r.Group("/")
	public.Use(middlewares.NewStrictRateLimiter())
	{
		public.POST("/register", userCtrl.Register)
		public.POST("/login", userCtrl.Login)
	}

	// -- CUSTOMER (no auth) --
	r.POST("/qr-sessions/scan", sessionCtrl.ScanTable)
	r.GET("/qr-sessions/:session_id/validate", sessionCtrl.ValidateSession)
	r.PUT("/qr-sessions/:session_id/end", sessionCtrl.EndSession)

	r.POST("/orders", orderCtrl.CreateOrder)
	r.GET("/orders/:order_id", orderCtrl.GetOrderByID)
	r.POST("/orders/:order_id/items", orderCtrl.AddItems)
	r.POST("/orders/:order_id/cancel", orderCtrl.CancelOrder)
	r.PATCH("/order-items/:item_id", orderCtrl.UpdateItemQuantity)
	r.DELETE("/order-items/:item_id", orderCtrl.RemoveItem)

	r.POST("/payment", paymentCtrl.CreatePayment)
	r.PUT("/payment/callback", paymentCtrl.PaymentCallback)

	// Websocket subscribe; staff rooms are checked in the handler
	wsGroup := r.Group("/ws")
	wsGroup.Use(middlewares.WebSocketAuthMiddleware())
	{
		wsGroup.GET("/:room", wsCtrl.Subscribe)
	}

	// -- STAFF/ADMIN --
	auth := r.Group("/")
	auth.Use(middlewares.AuthMiddleware())
	{
		staff := auth.Group("/")
		staff.Use(middlewares.RequireRole("staff"))
		{
			staff.GET("/payment", paymentCtrl.GetPayments)
			staff.GET("/payment/:payment_id", paymentCtrl.GetPaymentByID)

			staff.POST("/orders/:order_id/start", orderCtrl.StartOrder)
			staff.POST("/orders/:order_id/finish", orderCtrl.FinishOrder)

			staff.GET("/customers", customerCtrl.GetAllCustomers)
			staff.POST("/customers", customerCtrl.CreateCustomer)
			staff.GET("/customers/:customer_id", customerCtrl.GetCustomerByID)
		}

		admin := auth.Group("/")
		admin.Use(middlewares.RequireRole())
		{
			admin.POST("/sessions/:session_id/settle", sessionCtrl.SettleSession)
			admin.POST("/payment/:payment_id/refund", paymentCtrl.RefundPayment)
			admin.POST("/customers/:customer_id/points", customerCtrl.AdjustPoints)
			admin.DELETE("/customers/:customer_id", customerCtrl.DeleteCustomer)
		}
	}

	return r
}
