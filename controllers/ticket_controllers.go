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

type TicketController struct {
	DB      *gorm.DB
	Service *services.TicketService
}

func NewTicketController(db *gorm.DB) *TicketController {
	return &TicketController{
		DB:      db,
		Service: services.NewTicketService(db),
	}
}

// CreateTicket issues a gate ticket for an active reservation. Restricted
// to lot owners and admins.
func (tc *TicketController) CreateTicket(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		utils.RespondError(c, http.StatusUnauthorized, errors.New("unauthorized"))
		return
	}

	var req struct {
		ReservationID uint   `json:"reservation_id" binding:"required"`
		Notes         string `json:"notes" binding:"max=255"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.RespondBindingError(c, err)
		return
	}

	ticket, err := tc.Service.Issue(actor, req.ReservationID, req.Notes, c.ClientIP())
	if err != nil {
		respondServiceError(c, err)
		return
	}

	utils.RespondJSON(c, http.StatusCreated, "Ticket issued", ticket)
}

// GetTickets -> role-filtered listing
func (tc *TicketController) GetTickets(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		utils.RespondError(c, http.StatusUnauthorized, errors.New("unauthorized"))
		return
	}

	q := tc.DB.Preload("Reservation").Preload("Reservation.ParkingLot").
		Order("created_at desc")

	switch actor.Role {
	case models.RoleAdmin:
		// no filter
	case models.RoleOwner:
		q = q.Joins("JOIN reservations ON reservations.id = tickets.reservation_id").
			Joins("JOIN parking_lots ON parking_lots.id = reservations.parking_lot_id").
			Where("parking_lots.owner_id = ?", actor.UserID)
	default:
		q = q.Where("tickets.user_id = ?", actor.UserID)
	}

	if status := c.Query("status"); status != "" {
		q = q.Where("tickets.status = ?", status)
	}

	var tickets []models.Ticket
	if err := q.Find(&tickets).Error; err != nil {
		utils.RespondError(c, http.StatusInternalServerError, err)
		return
	}

	utils.RespondJSON(c, http.StatusOK, "Tickets", tickets)
}

// GetValidTickets -> the caller's tickets still inside their window
func (tc *TicketController) GetValidTickets(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		utils.RespondError(c, http.StatusUnauthorized, errors.New("unauthorized"))
		return
	}

	tickets, err := tc.Service.ListValid(actor)
	if err != nil {
		utils.RespondError(c, http.StatusInternalServerError, err)
		return
	}

	utils.RespondJSON(c, http.StatusOK, "Valid tickets", tickets)
}

// GetTicketByCode -> detail with visibility check
func (tc *TicketController) GetTicketByCode(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		utils.RespondError(c, http.StatusUnauthorized, errors.New("unauthorized"))
		return
	}

	ticket, err := tc.Service.FindByCode(actor, c.Param("code"))
	if err != nil {
		respondServiceError(c, err)
		return
	}

	utils.RespondJSON(c, http.StatusOK, "Ticket detail", ticket)
}

// GetTicketHistory -> the audit trail of one ticket
func (tc *TicketController) GetTicketHistory(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		utils.RespondError(c, http.StatusUnauthorized, errors.New("unauthorized"))
		return
	}

	ticket, err := tc.Service.FindByCode(actor, c.Param("code"))
	if err != nil {
		respondServiceError(c, err)
		return
	}

	history, err := tc.Service.History(ticket.ID)
	if err != nil {
		utils.RespondError(c, http.StatusInternalServerError, err)
		return
	}

	utils.RespondJSON(c, http.StatusOK, "Ticket history", history)
}

// ValidateTicket redeems a ticket at the gate. Restricted to lot owners
// and admins.
func (tc *TicketController) ValidateTicket(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		utils.RespondError(c, http.StatusUnauthorized, errors.New("unauthorized"))
		return
	}

	ticket, err := tc.Service.Validate(actor, c.Param("code"), c.ClientIP(), c.Request.UserAgent())
	if err != nil {
		respondServiceError(c, err)
		return
	}

	utils.RespondJSON(c, http.StatusOK, "Ticket validated", ticket)
}

// CancelTicket voids a still-valid ticket.
func (tc *TicketController) CancelTicket(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		utils.RespondError(c, http.StatusUnauthorized, errors.New("unauthorized"))
		return
	}

	var req struct {
		Reason string `json:"reason"`
	}
	// The body is optional; an empty reason gets a default in the service.
	_ = c.ShouldBindJSON(&req)

	ticket, err := tc.Service.Cancel(actor, c.Param("code"), req.Reason, c.ClientIP())
	if err != nil {
		respondServiceError(c, err)
		return
	}

	utils.RespondJSON(c, http.StatusOK, "Ticket cancelled", ticket)
}
