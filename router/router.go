package router

import (
	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/parkeaya/parking-app/controllers"
	"github.com/parkeaya/parking-app/middlewares"
	"github.com/parkeaya/parking-app/models"
)

func SetupRouter(db *gorm.DB) *gin.Engine {
	r := gin.Default()

	r.Use(middlewares.SecurityHeaders())
	r.Use(middlewares.CORSMiddlewares())
	r.Use(middlewares.LoggerMiddleware())

	userCtrl := controllers.NewUserController(db)
	carCtrl := controllers.NewCarController(db)
	lotCtrl := controllers.NewParkingLotController(db)
	reservationCtrl := controllers.NewReservationController(db)
	paymentCtrl := controllers.NewPaymentController(db)
	ticketCtrl := controllers.NewTicketController(db)

	// ----------------------------------------------------------------
	//                      PUBLIC ROUTES
	// ----------------------------------------------------------------
	r.GET("/ping", func(c *gin.Context) {
		c.JSON(200, gin.H{"message": "pong"})
	})

	public := r.Group("/")
	public.Use(middlewares.NewStrictRateLimiter())
	{
		public.POST("/register", userCtrl.Register)
		public.POST("/login", userCtrl.Login)
	}

	// Catalog of bookable lots, no login required
	r.GET("/parking-lots", lotCtrl.GetAvailableLots)
	r.GET("/parking-lots/:lot_id", lotCtrl.GetLotByID)
	r.GET("/reservations/kinds", reservationCtrl.GetReservationKinds)

	// ----------------------------------------------------------------
	//                      AUTHENTICATED ROUTES
	// ----------------------------------------------------------------
	auth := r.Group("/")
	auth.Use(middlewares.AuthMiddleware())

	auth.POST("/logout", userCtrl.Logout)
	auth.GET("/profile", userCtrl.GetProfile)

	// VEHICLES (clients manage their own)
	auth.GET("/cars", carCtrl.GetMyCars)
	auth.POST("/cars", middlewares.RequireRoles(models.RoleClient), carCtrl.CreateCar)
	auth.PATCH("/cars/:car_id", carCtrl.UpdateCar)
	auth.DELETE("/cars/:car_id", carCtrl.DeleteCar)

	// PARKING LOTS (owners publish, admin approves)
	auth.POST("/parking-lots", middlewares.RequireRoles(models.RoleOwner), lotCtrl.CreateLot)
	auth.GET("/my/parking-lots", middlewares.RequireRoles(models.RoleOwner), lotCtrl.GetMyLots)
	auth.PATCH("/parking-lots/:lot_id", middlewares.RequireRoles(models.RoleOwner), lotCtrl.UpdateLot)

	// RESERVATIONS
	auth.POST("/reservations", middlewares.RequireRoles(models.RoleClient), reservationCtrl.CreateReservation)
	auth.GET("/reservations", reservationCtrl.GetReservations)
	auth.GET("/reservations/:reservation_id", reservationCtrl.GetReservationByID)
	auth.POST("/reservations/:reservation_id/cancel", reservationCtrl.CancelReservation)
	auth.POST("/reservations/:reservation_id/extend", reservationCtrl.ExtendReservation)
	auth.POST("/checkin/:code", reservationCtrl.CheckIn)
	auth.POST("/checkout/:code", reservationCtrl.CheckOut)

	// PAYMENTS, with stricter limits and headers
	payments := auth.Group("/payments")
	payments.Use(middlewares.PaymentSecurityHeaders())
	payments.Use(middlewares.PaymentRateLimiter())
	{
		payments.POST("", paymentCtrl.CreatePayment)
		payments.GET("", paymentCtrl.GetPayments)
		payments.GET("/pending", paymentCtrl.GetPendingPayments)
		payments.GET("/:payment_id", paymentCtrl.GetPaymentByID)
		payments.GET("/:payment_id/history", paymentCtrl.GetPaymentHistory)
		payments.POST("/:payment_id/process", paymentCtrl.ProcessPayment)
		payments.POST("/:payment_id/refund", paymentCtrl.RefundPayment)
		payments.POST("/:payment_id/cancel", paymentCtrl.CancelPayment)
		payments.POST("/:payment_id/validate",
			middlewares.RequireRoles(models.RoleOwner), paymentCtrl.ValidatePayment)
	}

	// TICKETS (owners issue and validate at the gate)
	tickets := auth.Group("/tickets")
	{
		tickets.POST("", middlewares.RequireRoles(models.RoleOwner), ticketCtrl.CreateTicket)
		tickets.GET("", ticketCtrl.GetTickets)
		tickets.GET("/valid", ticketCtrl.GetValidTickets)
		tickets.GET("/:code", ticketCtrl.GetTicketByCode)
		tickets.GET("/:code/history", ticketCtrl.GetTicketHistory)
		tickets.POST("/:code/validate",
			middlewares.RequireRoles(models.RoleOwner), ticketCtrl.ValidateTicket)
		tickets.POST("/:code/cancel", ticketCtrl.CancelTicket)
	}

	// ADMIN
	admin := auth.Group("/admin")
	admin.Use(middlewares.RequireRoles(models.RoleAdmin))
	{
		admin.GET("/users", userCtrl.GetAllUsers)
		admin.DELETE("/users/:user_id", userCtrl.DeactivateUser)
		admin.GET("/parking-lots/pending", lotCtrl.GetPendingLots)
		admin.POST("/parking-lots/:lot_id/approve", lotCtrl.ApproveLot)
		admin.POST("/parking-lots/:lot_id/reject", lotCtrl.RejectLot)
	}

	return r
}
