package services

import (
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/parkeaya/parking-app/models"
	"github.com/parkeaya/parking-app/utils"
)

// GraceMinutes is the free tolerance applied at checkout.
const GraceMinutes = 15

// CheckInWindowMinutes is how early an unprivileged actor may check in.
const CheckInWindowMinutes = 30

var ErrCheckInWindow = errors.New("check-in opens 30 minutes before the reservation start")

// Actor is the authenticated caller as the services see it: an id and an
// enumerated role, nothing duck-typed.
type Actor struct {
	UserID uint
	Role   string
}

// PrivilegedFor reports whether the actor may bypass timing restrictions on
// reservations of this lot: platform admins and the lot's owner.
func (a Actor) PrivilegedFor(lot *models.ParkingLot) bool {
	if a.Role == models.RoleAdmin {
		return true
	}
	return a.Role == models.RoleOwner && lot.OwnerID == a.UserID
}

// ReservationService drives the reservation lifecycle. Every mutating
// operation runs in a single transaction that locks the parking lot row
// before touching the reservation row.
type ReservationService struct {
	db     *gorm.DB
	ledger *SlotLedger
	now    func() time.Time
}

func NewReservationService(db *gorm.DB) *ReservationService {
	return &ReservationService{
		db:     db,
		ledger: NewSlotLedger(),
		now:    time.Now,
	}
}

type CreateReservationInput struct {
	CarID           uint
	ParkingLotID    uint
	EntryTime       time.Time
	DurationMinutes int
	Kind            string
	Notes           string
}

// Create books a slot for a client. Validation, the slot decrement and the
// reservation insert all commit or roll back together.
func (s *ReservationService) Create(actor Actor, in CreateReservationInput) (*models.Reservation, error) {
	now := s.now()

	fields := FieldErrors{}
	if in.EntryTime.Before(now) {
		fields["entry_time"] = "reservations cannot start in the past"
	}
	min := models.MinMinutesForKind(in.Kind)
	if min == 0 {
		fields["kind"] = "must be one of: hourly daily monthly"
	} else if in.DurationMinutes < min {
		fields["duration_minutes"] = "below the minimum for this reservation kind"
	}
	if len(fields) > 0 {
		return nil, fields
	}

	var car models.Car
	if err := s.db.Where("id = ? AND user_id = ?", in.CarID, actor.UserID).First(&car).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, FieldErrors{"car_id": "vehicle not found or not owned by you"}
		}
		return nil, err
	}

	tx := s.db.Begin()
	if tx.Error != nil {
		return nil, tx.Error
	}

	// Lot row first: this serializes concurrent bookings on the same lot.
	lot, err := s.ledger.Reserve(tx, in.ParkingLotID)
	if err != nil {
		tx.Rollback()
		return nil, err
	}

	if !lot.AcceptsKind(in.Kind) {
		tx.Rollback()
		return nil, FieldErrors{"kind": "this parking lot does not accept that reservation kind"}
	}

	exit := in.EntryTime.Add(time.Duration(in.DurationMinutes) * time.Minute)

	var conflicts int64
	err = tx.Model(&models.Reservation{}).
		Where("car_id = ? AND status = ? AND entry_time < ? AND exit_time > ?",
			car.ID, models.ReservationStatusActive, exit, in.EntryTime).
		Count(&conflicts).Error
	if err != nil {
		tx.Rollback()
		return nil, err
	}
	if conflicts > 0 {
		tx.Rollback()
		return nil, ErrVehicleConflict
	}

	reservation := models.Reservation{
		Code:            uuid.NewString(),
		UserID:          actor.UserID,
		CarID:           car.ID,
		ParkingLotID:    lot.ID,
		EntryTime:       in.EntryTime,
		ExitTime:        &exit,
		DurationMinutes: in.DurationMinutes,
		EstimatedCost:   utils.RoundMoney(lot.RatePerMinute() * float64(in.DurationMinutes)),
		Kind:            in.Kind,
		Status:          models.ReservationStatusActive,
		Notes:           in.Notes,
	}
	if err := tx.Create(&reservation).Error; err != nil {
		tx.Rollback()
		return nil, err
	}

	if err := tx.Commit().Error; err != nil {
		return nil, err
	}

	utils.InfoLogger.Printf("Reservation %s created: lot %d, car %d, %d slots left",
		reservation.Code, lot.ID, car.ID, lot.AvailableSlots)
	return &reservation, nil
}

// Cancel releases the slot and moves the reservation to cancelled.
// Unprivileged actors may only cancel their own reservation before it
// starts; the lot owner and admins may cancel any active reservation.
func (s *ReservationService) Cancel(actor Actor, reservationID uint) (*models.Reservation, error) {
	reservation, err := s.findByID(reservationID)
	if err != nil {
		return nil, err
	}

	privileged := actor.PrivilegedFor(&reservation.ParkingLot)
	if !privileged && reservation.UserID != actor.UserID {
		return nil, ErrForbidden
	}

	now := s.now()
	if reservation.Status != models.ReservationStatusActive {
		return nil, ErrInvalidStateTransition
	}
	if !privileged && !reservation.EntryTime.After(now) {
		return nil, ErrInvalidStateTransition
	}

	err = s.transition(reservation, map[string]interface{}{
		"status": models.ReservationStatusCancelled,
	})
	if err != nil {
		return nil, err
	}
	reservation.Status = models.ReservationStatusCancelled

	utils.InfoLogger.Printf("Reservation %s cancelled by user %d", reservation.Code, actor.UserID)
	return reservation, nil
}

// CheckIn records arrival against a reservation code. Clients may check in
// up to 30 minutes before their entry time; the lot owner and admins are
// exempt from the window.
func (s *ReservationService) CheckIn(actor Actor, code string) (*models.Reservation, error) {
	reservation, err := s.FindByCode(code)
	if err != nil {
		return nil, err
	}

	privileged := actor.PrivilegedFor(&reservation.ParkingLot)
	if !privileged && reservation.UserID != actor.UserID {
		return nil, ErrForbidden
	}

	if reservation.Status != models.ReservationStatusActive || reservation.CheckedInAt != nil {
		return nil, ErrInvalidStateTransition
	}

	now := s.now()
	if !privileged {
		if reservation.EntryTime.Sub(now) > CheckInWindowMinutes*time.Minute {
			return nil, ErrCheckInWindow
		}
	}

	// Guarded against a concurrent checkout/cancel/check-in between the
	// load above and this write.
	res := s.db.Model(&models.Reservation{}).
		Where("id = ? AND status = ? AND checked_in_at IS NULL",
			reservation.ID, models.ReservationStatusActive).
		Update("checked_in_at", now)
	if res.Error != nil {
		return nil, res.Error
	}
	if res.RowsAffected == 0 {
		return nil, ErrInvalidStateTransition
	}
	reservation.CheckedInAt = &now

	utils.InfoLogger.Printf("Reservation %s checked in", reservation.Code)
	return reservation, nil
}

// CheckOutResult is returned to the HTTP layer after a checkout.
type CheckOutResult struct {
	Reservation   *models.Reservation `json:"reservation"`
	FinalCost     float64             `json:"final_cost"`
	ParkedMinutes int                 `json:"parked_minutes"`
}

// CheckOut frees the slot and finalizes cost from the real parked time.
// The first 15 minutes are free; after that, billing is per minute at the
// lot's hourly rate.
func (s *ReservationService) CheckOut(actor Actor, code string) (*CheckOutResult, error) {
	reservation, err := s.FindByCode(code)
	if err != nil {
		return nil, err
	}

	if !actor.PrivilegedFor(&reservation.ParkingLot) && reservation.UserID != actor.UserID {
		return nil, ErrForbidden
	}
	if reservation.Status != models.ReservationStatusActive {
		return nil, ErrInvalidStateTransition
	}

	now := s.now()
	elapsed := now.Sub(reservation.EntryTime).Minutes()
	if elapsed < 0 {
		elapsed = 0
	}

	var finalCost float64
	if elapsed > GraceMinutes {
		rate := reservation.ParkingLot.RatePerMinute()
		finalCost = utils.RoundMoney(rate * (elapsed - GraceMinutes))
	}

	err = s.transition(reservation, map[string]interface{}{
		"exit_time":        now,
		"duration_minutes": int(elapsed),
		"final_cost":       finalCost,
		"status":           models.ReservationStatusFinished,
	})
	if err != nil {
		return nil, err
	}
	reservation.ExitTime = &now
	reservation.DurationMinutes = int(elapsed)
	reservation.FinalCost = &finalCost
	reservation.Status = models.ReservationStatusFinished

	utils.InfoLogger.Printf("Reservation %s checked out: %.0f minutes, %s",
		reservation.Code, elapsed, utils.FormatCurrency(finalCost))
	return &CheckOutResult{
		Reservation:   reservation,
		FinalCost:     finalCost,
		ParkedMinutes: int(elapsed),
	}, nil
}

// Extend lengthens an active reservation and adds the extra cost to the
// estimate. The slot count does not change, the slot is already held.
func (s *ReservationService) Extend(actor Actor, reservationID uint, extraMinutes int, newKind string) (*models.Reservation, error) {
	if extraMinutes <= 0 {
		return nil, FieldErrors{"extra_minutes": "must be greater than 0"}
	}
	if newKind != "" && models.MinMinutesForKind(newKind) == 0 {
		return nil, FieldErrors{"kind": "must be one of: hourly daily monthly"}
	}

	reservation, err := s.findByID(reservationID)
	if err != nil {
		return nil, err
	}

	if !actor.PrivilegedFor(&reservation.ParkingLot) && reservation.UserID != actor.UserID {
		return nil, ErrForbidden
	}
	if reservation.Status != models.ReservationStatusActive {
		return nil, ErrInvalidStateTransition
	}

	extraCost := utils.RoundMoney(reservation.ParkingLot.RatePerMinute() * float64(extraMinutes))
	newExit := reservation.ExitTime.Add(time.Duration(extraMinutes) * time.Minute)
	newDuration := reservation.DurationMinutes + extraMinutes
	newEstimate := utils.RoundMoney(reservation.EstimatedCost + extraCost)
	kind := reservation.Kind
	if newKind != "" {
		kind = newKind
	}

	tx := s.db.Begin()
	if tx.Error != nil {
		return nil, tx.Error
	}

	// Lot row first, same ordering as every other reservation mutation.
	if _, err := s.ledger.lockLot(tx, reservation.ParkingLotID); err != nil {
		tx.Rollback()
		return nil, err
	}

	// The status guard keeps a checkout/cancel that committed after the
	// load above from being overwritten on a terminal reservation.
	res := tx.Model(&models.Reservation{}).
		Where("id = ? AND status = ?", reservation.ID, models.ReservationStatusActive).
		Updates(map[string]interface{}{
			"exit_time":        newExit,
			"duration_minutes": newDuration,
			"estimated_cost":   newEstimate,
			"kind":             kind,
		})
	if res.Error != nil {
		tx.Rollback()
		return nil, res.Error
	}
	if res.RowsAffected == 0 {
		tx.Rollback()
		return nil, ErrInvalidStateTransition
	}
	if err := tx.Commit().Error; err != nil {
		return nil, err
	}

	reservation.ExitTime = &newExit
	reservation.DurationMinutes = newDuration
	reservation.EstimatedCost = newEstimate
	reservation.Kind = kind

	utils.InfoLogger.Printf("Reservation %s extended by %d minutes (+%s)",
		reservation.Code, extraMinutes, utils.FormatCurrency(extraCost))
	return reservation, nil
}

// FindByCode loads a reservation with its lot and car by reference code.
func (s *ReservationService) FindByCode(code string) (*models.Reservation, error) {
	var reservation models.Reservation
	err := s.db.Preload("ParkingLot").Preload("Car").
		Where("code = ?", code).First(&reservation).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &reservation, nil
}

func (s *ReservationService) findByID(id uint) (*models.Reservation, error) {
	var reservation models.Reservation
	err := s.db.Preload("ParkingLot").Preload("Car").First(&reservation, id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &reservation, nil
}

// transition applies a terminal state change and releases the slot in one
// transaction, lot row locked first. The status guard on the UPDATE keeps a
// concurrent cancel/checkout pair from releasing the slot twice: whichever
// transaction loses the race matches zero rows and rolls back.
func (s *ReservationService) transition(reservation *models.Reservation, updates map[string]interface{}) error {
	tx := s.db.Begin()
	if tx.Error != nil {
		return tx.Error
	}

	if _, err := s.ledger.lockLot(tx, reservation.ParkingLotID); err != nil {
		tx.Rollback()
		return err
	}

	res := tx.Model(&models.Reservation{}).
		Where("id = ? AND status = ?", reservation.ID, models.ReservationStatusActive).
		Updates(updates)
	if res.Error != nil {
		tx.Rollback()
		return res.Error
	}
	if res.RowsAffected == 0 {
		tx.Rollback()
		return ErrInvalidStateTransition
	}

	if _, err := s.ledger.Release(tx, reservation.ParkingLotID); err != nil {
		tx.Rollback()
		return err
	}

	return tx.Commit().Error
}
