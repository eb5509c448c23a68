package controllers

import (
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/parkeaya/parking-app/models"
	"github.com/parkeaya/parking-app/services"
	"github.com/parkeaya/parking-app/utils"
)

type ReservationController struct {
	DB      *gorm.DB
	Service *services.ReservationService
}

func NewReservationController(db *gorm.DB) *ReservationController {
	return &ReservationController{
		DB:      db,
		Service: services.NewReservationService(db),
	}
}

// CreateReservation -> clients book a slot
func (rc *ReservationController) CreateReservation(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		utils.RespondError(c, http.StatusUnauthorized, errors.New("unauthorized"))
		return
	}
	if actor.Role != models.RoleClient {
		utils.RespondError(c, http.StatusForbidden,
			errors.New("only clients can create reservations"))
		return
	}

	var req struct {
		CarID           uint      `json:"car_id" binding:"required"`
		ParkingLotID    uint      `json:"parking_lot_id" binding:"required"`
		EntryTime       time.Time `json:"entry_time" binding:"required"`
		DurationMinutes int       `json:"duration_minutes" binding:"required,gt=0"`
		Kind            string    `json:"kind" binding:"required,oneof=hourly daily monthly"`
		Notes           string    `json:"notes"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.RespondBindingError(c, err)
		return
	}

	reservation, err := rc.Service.Create(actor, services.CreateReservationInput{
		CarID:           req.CarID,
		ParkingLotID:    req.ParkingLotID,
		EntryTime:       req.EntryTime,
		DurationMinutes: req.DurationMinutes,
		Kind:            req.Kind,
		Notes:           req.Notes,
	})
	if err != nil {
		respondServiceError(c, err)
		return
	}

	utils.RespondJSON(c, http.StatusCreated, "Reservation created", reservation)
}

// GetReservations -> role-filtered listing: admins see everything, owners
// see reservations on their lots, clients see their own.
func (rc *ReservationController) GetReservations(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		utils.RespondError(c, http.StatusUnauthorized, errors.New("unauthorized"))
		return
	}

	q := rc.DB.Preload("Car").Preload("ParkingLot").Order("created_at desc")

	switch actor.Role {
	case models.RoleAdmin:
		// no filter
	case models.RoleOwner:
		q = q.Joins("JOIN parking_lots ON parking_lots.id = reservations.parking_lot_id").
			Where("parking_lots.owner_id = ?", actor.UserID)
	default:
		q = q.Where("reservations.user_id = ?", actor.UserID)
	}

	if status := c.Query("status"); status != "" {
		q = q.Where("reservations.status = ?", status)
	}
	if kind := c.Query("kind"); kind != "" {
		q = q.Where("reservations.kind = ?", kind)
	}

	var reservations []models.Reservation
	if err := q.Find(&reservations).Error; err != nil {
		utils.RespondError(c, http.StatusInternalServerError, err)
		return
	}

	utils.RespondJSON(c, http.StatusOK, "Reservations", reservations)
}

// GetReservationByID -> detail, same visibility rules as the listing
func (rc *ReservationController) GetReservationByID(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		utils.RespondError(c, http.StatusUnauthorized, errors.New("unauthorized"))
		return
	}

	var reservation models.Reservation
	err := rc.DB.Preload("Car").Preload("ParkingLot").
		First(&reservation, c.Param("reservation_id")).Error
	if err != nil {
		utils.RespondError(c, http.StatusNotFound, err)
		return
	}

	if reservation.UserID != actor.UserID && !actor.PrivilegedFor(&reservation.ParkingLot) {
		utils.RespondError(c, http.StatusForbidden, ErrNoPermission)
		return
	}

	utils.RespondJSON(c, http.StatusOK, "Reservation detail", reservation)
}

// CancelReservation -> frees the slot; timing policy enforced in the service
func (rc *ReservationController) CancelReservation(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		utils.RespondError(c, http.StatusUnauthorized, errors.New("unauthorized"))
		return
	}

	id, err := paramUint(c, "reservation_id")
	if err != nil {
		utils.RespondError(c, http.StatusBadRequest, err)
		return
	}

	reservation, err := rc.Service.Cancel(actor, id)
	if err != nil {
		respondServiceError(c, err)
		return
	}

	utils.RespondJSON(c, http.StatusOK, "Reservation cancelled", reservation)
}

// ExtendReservation -> adds time and cost to an active reservation
func (rc *ReservationController) ExtendReservation(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		utils.RespondError(c, http.StatusUnauthorized, errors.New("unauthorized"))
		return
	}

	id, err := paramUint(c, "reservation_id")
	if err != nil {
		utils.RespondError(c, http.StatusBadRequest, err)
		return
	}

	var req struct {
		ExtraMinutes int    `json:"extra_minutes" binding:"required,gt=0"`
		Kind         string `json:"kind" binding:"omitempty,oneof=hourly daily monthly"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.RespondBindingError(c, err)
		return
	}

	reservation, err := rc.Service.Extend(actor, id, req.ExtraMinutes, req.Kind)
	if err != nil {
		respondServiceError(c, err)
		return
	}

	utils.RespondJSON(c, http.StatusOK, "Reservation extended", reservation)
}

// CheckIn -> by reservation code, 30-minute window for clients
func (rc *ReservationController) CheckIn(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		utils.RespondError(c, http.StatusUnauthorized, errors.New("unauthorized"))
		return
	}

	reservation, err := rc.Service.CheckIn(actor, c.Param("code"))
	if err != nil {
		respondServiceError(c, err)
		return
	}

	utils.RespondJSON(c, http.StatusOK, "Check-in successful", reservation)
}

// CheckOut -> by reservation code, frees the slot and settles final cost
func (rc *ReservationController) CheckOut(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		utils.RespondError(c, http.StatusUnauthorized, errors.New("unauthorized"))
		return
	}

	result, err := rc.Service.CheckOut(actor, c.Param("code"))
	if err != nil {
		respondServiceError(c, err)
		return
	}

	utils.RespondJSON(c, http.StatusOK, "Check-out successful", result)
}

// GetReservationKinds -> pricing catalog for clients
func (rc *ReservationController) GetReservationKinds(c *gin.Context) {
	utils.RespondJSON(c, http.StatusOK, "Reservation kinds", gin.H{
		"kinds": []gin.H{
			{"value": models.ReservationKindHourly, "label": "Per hour", "min_minutes": models.MinMinutesHourly},
			{"value": models.ReservationKindDaily, "label": "Per day", "min_minutes": models.MinMinutesDaily},
			{"value": models.ReservationKindMonthly, "label": "Per month", "min_minutes": models.MinMinutesMonthly},
		},
	})
}
