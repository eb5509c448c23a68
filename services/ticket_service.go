package services

import (
	"errors"
	"time"

	"gorm.io/gorm"

	"github.com/parkeaya/parking-app/models"
	"github.com/parkeaya/parking-app/utils"
)

var ErrTicketWindow = errors.New("ticket is outside its validity window")

// TicketService issues and validates gate tickets. A ticket is issued by
// the lot owner (or an admin) once the reservation's payment is confirmed,
// honored once inside its validity window, and audited like payments:
// every event appends a TicketHistory row in the same transaction.
type TicketService struct {
	db  *gorm.DB
	now func() time.Time
}

func NewTicketService(db *gorm.DB) *TicketService {
	return &TicketService{
		db:  db,
		now: time.Now,
	}
}

// Issue creates a ticket for an active reservation. Only the lot owner and
// admins issue tickets; the validity window opens with the check-in window
// and closes when the checkout grace runs out.
func (s *TicketService) Issue(actor Actor, reservationID uint, notes, clientIP string) (*models.Ticket, error) {
	var reservation models.Reservation
	err := s.db.Preload("ParkingLot").First(&reservation, reservationID).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}

	if !actor.PrivilegedFor(&reservation.ParkingLot) {
		return nil, ErrForbidden
	}
	if reservation.Status != models.ReservationStatusActive {
		return nil, ErrInvalidStateTransition
	}

	var live int64
	err = s.db.Model(&models.Ticket{}).
		Where("reservation_id = ? AND status = ?", reservation.ID, models.TicketStatusValid).
		Count(&live).Error
	if err != nil {
		return nil, err
	}
	if live > 0 {
		return nil, FieldErrors{"reservation_id": "this reservation already has a valid ticket"}
	}

	ticket := models.Ticket{
		Code:          models.GenerateTicketCode(),
		ReservationID: reservation.ID,
		UserID:        reservation.UserID,
		Status:        models.TicketStatusValid,
		ValidFrom:     reservation.EntryTime.Add(-CheckInWindowMinutes * time.Minute),
		ValidUntil:    reservation.ExitTime.Add(GraceMinutes * time.Minute),
		Notes:         notes,
	}

	tx := s.db.Begin()
	if tx.Error != nil {
		return nil, tx.Error
	}
	if err := tx.Create(&ticket).Error; err != nil {
		tx.Rollback()
		return nil, err
	}
	if err := s.recordHistory(tx, ticket.ID, models.TicketActionIssued,
		"Ticket issued for reservation "+reservation.Code, actor.UserID, clientIP, ""); err != nil {
		tx.Rollback()
		return nil, err
	}
	if err := tx.Commit().Error; err != nil {
		return nil, err
	}

	utils.InfoLogger.Printf("Ticket %s issued for reservation %s", ticket.Code, reservation.Code)
	return &ticket, nil
}

// Validate redeems a ticket at the gate. Only the lot owner and admins may
// validate. Every attempt, accepted or not, bumps the attempt counter and
// leaves a history row; a ticket past its window is moved to expired.
func (s *TicketService) Validate(actor Actor, code, clientIP, userAgent string) (*models.Ticket, error) {
	ticket, err := s.findByCode(code)
	if err != nil {
		return nil, err
	}
	if !actor.PrivilegedFor(&ticket.Reservation.ParkingLot) {
		return nil, ErrForbidden
	}

	now := s.now()

	tx := s.db.Begin()
	if tx.Error != nil {
		return nil, tx.Error
	}
	err = tx.Model(&models.Ticket{}).Where("id = ?", ticket.ID).
		Update("validation_attempts", gorm.Expr("validation_attempts + 1")).Error
	if err != nil {
		tx.Rollback()
		return nil, err
	}
	ticket.ValidationAttempts++

	reject := func(action, details string, cause error) (*models.Ticket, error) {
		if err := s.recordHistory(tx, ticket.ID, action, details, actor.UserID, clientIP, userAgent); err != nil {
			tx.Rollback()
			return nil, err
		}
		if err := tx.Commit().Error; err != nil {
			return nil, err
		}
		return nil, cause
	}

	if ticket.Status != models.TicketStatusValid {
		return reject(models.TicketActionRejected,
			"Validation refused: ticket is "+ticket.Status, ErrInvalidStateTransition)
	}
	if now.After(ticket.ValidUntil) {
		err = tx.Model(&models.Ticket{}).
			Where("id = ? AND status = ?", ticket.ID, models.TicketStatusValid).
			Update("status", models.TicketStatusExpired).Error
		if err != nil {
			tx.Rollback()
			return nil, err
		}
		ticket.Status = models.TicketStatusExpired
		return reject(models.TicketActionExpired,
			"Validation refused: validity window closed", ErrTicketWindow)
	}
	if now.Before(ticket.ValidFrom) {
		return reject(models.TicketActionRejected,
			"Validation refused: validity window not open yet", ErrTicketWindow)
	}

	res := tx.Model(&models.Ticket{}).
		Where("id = ? AND status = ?", ticket.ID, models.TicketStatusValid).
		Updates(map[string]interface{}{
			"status":       models.TicketStatusUsed,
			"used_at":      now,
			"validated_at": now,
			"validated_by": actor.UserID,
		})
	if res.Error != nil {
		tx.Rollback()
		return nil, res.Error
	}
	if res.RowsAffected == 0 {
		tx.Rollback()
		return nil, ErrInvalidStateTransition
	}
	if err := s.recordHistory(tx, ticket.ID, models.TicketActionValidated,
		"Ticket accepted at the gate", actor.UserID, clientIP, userAgent); err != nil {
		tx.Rollback()
		return nil, err
	}
	if err := tx.Commit().Error; err != nil {
		return nil, err
	}

	validatedBy := actor.UserID
	ticket.Status = models.TicketStatusUsed
	ticket.UsedAt = &now
	ticket.ValidatedAt = &now
	ticket.ValidatedBy = &validatedBy

	utils.InfoLogger.Printf("Ticket %s validated by user %d", ticket.Code, actor.UserID)
	return ticket, nil
}

// Cancel voids a still-valid ticket. The holder and privileged actors may
// cancel; used and expired tickets stay as they are.
func (s *TicketService) Cancel(actor Actor, code, reason, clientIP string) (*models.Ticket, error) {
	ticket, err := s.findByCode(code)
	if err != nil {
		return nil, err
	}
	if ticket.UserID != actor.UserID && !actor.PrivilegedFor(&ticket.Reservation.ParkingLot) {
		return nil, ErrForbidden
	}
	if ticket.Status != models.TicketStatusValid {
		return nil, ErrInvalidStateTransition
	}
	if reason == "" {
		reason = "Cancelled by the holder"
	}

	tx := s.db.Begin()
	if tx.Error != nil {
		return nil, tx.Error
	}
	res := tx.Model(&models.Ticket{}).
		Where("id = ? AND status = ?", ticket.ID, models.TicketStatusValid).
		Update("status", models.TicketStatusCancelled)
	if res.Error != nil {
		tx.Rollback()
		return nil, res.Error
	}
	if res.RowsAffected == 0 {
		tx.Rollback()
		return nil, ErrInvalidStateTransition
	}
	if err := s.recordHistory(tx, ticket.ID, models.TicketActionCancelled,
		reason, actor.UserID, clientIP, ""); err != nil {
		tx.Rollback()
		return nil, err
	}
	if err := tx.Commit().Error; err != nil {
		return nil, err
	}

	ticket.Status = models.TicketStatusCancelled
	utils.InfoLogger.Printf("Ticket %s cancelled", ticket.Code)
	return ticket, nil
}

// ListValid returns the caller's tickets still honorable right now.
func (s *TicketService) ListValid(actor Actor) ([]models.Ticket, error) {
	var tickets []models.Ticket
	err := s.db.Preload("Reservation").Preload("Reservation.ParkingLot").
		Where("user_id = ? AND status = ? AND valid_until > ?",
			actor.UserID, models.TicketStatusValid, s.now()).
		Order("valid_from asc").
		Find(&tickets).Error
	return tickets, err
}

// History lists the audit trail of a ticket, oldest first.
func (s *TicketService) History(ticketID uint) ([]models.TicketHistory, error) {
	var history []models.TicketHistory
	err := s.db.Where("ticket_id = ?", ticketID).
		Order("created_at asc").Find(&history).Error
	return history, err
}

// FindByCode loads a ticket with its reservation and lot, enforcing that
// the caller is the holder or privileged for the lot.
func (s *TicketService) FindByCode(actor Actor, code string) (*models.Ticket, error) {
	ticket, err := s.findByCode(code)
	if err != nil {
		return nil, err
	}
	if ticket.UserID != actor.UserID && !actor.PrivilegedFor(&ticket.Reservation.ParkingLot) {
		return nil, ErrForbidden
	}
	return ticket, nil
}

func (s *TicketService) findByCode(code string) (*models.Ticket, error) {
	var ticket models.Ticket
	err := s.db.Preload("Reservation").Preload("Reservation.ParkingLot").
		Where("code = ?", code).First(&ticket).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &ticket, nil
}

func (s *TicketService) recordHistory(tx *gorm.DB, ticketID uint, action, details string, userID uint, ip, userAgent string) error {
	return tx.Create(&models.TicketHistory{
		TicketID:  ticketID,
		Action:    action,
		Details:   details,
		UserID:    userID,
		IPAddress: ip,
		UserAgent: userAgent,
	}).Error
}
