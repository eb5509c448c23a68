package controllers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/parkeaya/parking-app/models"
	"github.com/parkeaya/parking-app/services"
	"github.com/parkeaya/parking-app/utils"
)

type PaymentController struct {
	DB      *gorm.DB
	Service *services.PaymentService
}

func NewPaymentController(db *gorm.DB) *PaymentController {
	return &PaymentController{
		DB:      db,
		Service: services.NewPaymentService(db),
	}
}

// CreatePayment opens a payment for a reservation. Card payments settle
// immediately; yape/plin stay pending until confirmed.
func (pc *PaymentController) CreatePayment(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		utils.RespondError(c, http.StatusUnauthorized, errors.New("unauthorized"))
		return
	}

	var req struct {
		ReservationID uint   `json:"reservation_id" binding:"required"`
		Method        string `json:"method" binding:"required,oneof=card yape plin"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.RespondBindingError(c, err)
		return
	}

	payment, err := pc.Service.Create(actor, req.ReservationID, req.Method, c.ClientIP())
	if err != nil {
		respondServiceError(c, err)
		return
	}

	utils.RespondJSON(c, http.StatusCreated, "Payment created", payment)
}

// ProcessPayment confirms a pending wallet payment.
func (pc *PaymentController) ProcessPayment(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		utils.RespondError(c, http.StatusUnauthorized, errors.New("unauthorized"))
		return
	}

	payment, err := pc.Service.Process(actor, c.Param("payment_id"), c.ClientIP())
	if err != nil {
		respondServiceError(c, err)
		return
	}

	utils.RespondJSON(c, http.StatusOK, "Payment processed", payment)
}

// RefundPayment reverses a settled payment within the 30-day window.
func (pc *PaymentController) RefundPayment(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		utils.RespondError(c, http.StatusUnauthorized, errors.New("unauthorized"))
		return
	}

	payment, err := pc.Service.Refund(actor, c.Param("payment_id"), c.ClientIP())
	if err != nil {
		respondServiceError(c, err)
		return
	}

	utils.RespondJSON(c, http.StatusOK, "Payment refunded", payment)
}

// CancelPayment aborts an unsettled payment.
func (pc *PaymentController) CancelPayment(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		utils.RespondError(c, http.StatusUnauthorized, errors.New("unauthorized"))
		return
	}

	var existing models.Payment
	err := pc.DB.Preload("Reservation").Preload("Reservation.ParkingLot").
		Where("id = ?", c.Param("payment_id")).First(&existing).Error
	if err != nil {
		utils.RespondError(c, http.StatusNotFound, err)
		return
	}
	if existing.UserID != actor.UserID && !actor.PrivilegedFor(&existing.Reservation.ParkingLot) {
		utils.RespondError(c, http.StatusForbidden, ErrNoPermission)
		return
	}

	payment, err := pc.Service.CancelPayment(existing.ID, "Cancelled by payer", c.ClientIP())
	if err != nil {
		respondServiceError(c, err)
		return
	}

	utils.RespondJSON(c, http.StatusOK, "Payment cancelled", payment)
}

// GetPayments -> role-filtered listing
func (pc *PaymentController) GetPayments(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		utils.RespondError(c, http.StatusUnauthorized, errors.New("unauthorized"))
		return
	}

	q := pc.DB.Preload("Reservation").Preload("Reservation.ParkingLot").
		Order("created_at desc")

	switch actor.Role {
	case models.RoleAdmin:
		// no filter
	case models.RoleOwner:
		q = q.Joins("JOIN reservations ON reservations.id = payments.reservation_id").
			Joins("JOIN parking_lots ON parking_lots.id = reservations.parking_lot_id").
			Where("parking_lots.owner_id = ?", actor.UserID)
	default:
		q = q.Where("payments.user_id = ?", actor.UserID)
	}

	if status := c.Query("status"); status != "" {
		q = q.Where("payments.status = ?", status)
	}
	if method := c.Query("method"); method != "" {
		q = q.Where("payments.method = ?", method)
	}

	var payments []models.Payment
	if err := q.Find(&payments).Error; err != nil {
		utils.RespondError(c, http.StatusInternalServerError, err)
		return
	}

	utils.RespondJSON(c, http.StatusOK, "Payments", payments)
}

// GetPendingPayments -> the caller's unconfirmed wallet payments
func (pc *PaymentController) GetPendingPayments(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		utils.RespondError(c, http.StatusUnauthorized, errors.New("unauthorized"))
		return
	}

	var payments []models.Payment
	err := pc.DB.Preload("Reservation").
		Where("user_id = ? AND status = ?", actor.UserID, models.PaymentStatusPending).
		Order("created_at desc").
		Find(&payments).Error
	if err != nil {
		utils.RespondError(c, http.StatusInternalServerError, err)
		return
	}

	utils.RespondJSON(c, http.StatusOK, "Pending payments", payments)
}

// GetPaymentByID -> detail with visibility check
func (pc *PaymentController) GetPaymentByID(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		utils.RespondError(c, http.StatusUnauthorized, errors.New("unauthorized"))
		return
	}

	var payment models.Payment
	err := pc.DB.Preload("Reservation").Preload("Reservation.ParkingLot").
		Where("id = ?", c.Param("payment_id")).First(&payment).Error
	if err != nil {
		utils.RespondError(c, http.StatusNotFound, err)
		return
	}

	if payment.UserID != actor.UserID && !actor.PrivilegedFor(&payment.Reservation.ParkingLot) {
		utils.RespondError(c, http.StatusForbidden, ErrNoPermission)
		return
	}

	utils.RespondJSON(c, http.StatusOK, "Payment detail", payment)
}

// GetPaymentHistory -> the audit trail of one payment
func (pc *PaymentController) GetPaymentHistory(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		utils.RespondError(c, http.StatusUnauthorized, errors.New("unauthorized"))
		return
	}

	var payment models.Payment
	err := pc.DB.Preload("Reservation").Preload("Reservation.ParkingLot").
		Where("id = ?", c.Param("payment_id")).First(&payment).Error
	if err != nil {
		utils.RespondError(c, http.StatusNotFound, err)
		return
	}

	if payment.UserID != actor.UserID && !actor.PrivilegedFor(&payment.Reservation.ParkingLot) {
		utils.RespondError(c, http.StatusForbidden, ErrNoPermission)
		return
	}

	history, err := pc.Service.History(payment.ID)
	if err != nil {
		utils.RespondError(c, http.StatusInternalServerError, err)
		return
	}

	utils.RespondJSON(c, http.StatusOK, "Payment history", history)
}

// ValidatePayment lets a lot owner (or admin) confirm a wallet payment
// received out of band.
func (pc *PaymentController) ValidatePayment(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		utils.RespondError(c, http.StatusUnauthorized, errors.New("unauthorized"))
		return
	}

	payment, err := pc.Service.Process(actor, c.Param("payment_id"), c.ClientIP())
	if err != nil {
		respondServiceError(c, err)
		return
	}

	utils.RespondJSON(c, http.StatusOK, "Payment validated", payment)
}
