package services

import (
	"errors"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/parkeaya/parking-app/models"
	"github.com/parkeaya/parking-app/utils"
)

// SlotLedger owns the available-slot counter of every parking lot. All
// mutations go through Reserve/Release inside the caller's transaction so
// the counter can never go negative or exceed capacity, even with
// concurrent bookings against the same lot.
//
// Lock ordering is always lot row first, then reservation/payment rows.
type SlotLedger struct{}

func NewSlotLedger() *SlotLedger {
	return &SlotLedger{}
}

// lockLot fetches the lot under SELECT ... FOR UPDATE. SQLite (used by the
// test suite) has no row locks and rejects the clause; its single-writer
// model gives the same serialization there.
func (sl *SlotLedger) lockLot(tx *gorm.DB, lotID uint) (*models.ParkingLot, error) {
	q := tx
	if tx.Dialector.Name() != "sqlite" {
		q = tx.Clauses(clause.Locking{Strength: "UPDATE"})
	}

	var lot models.ParkingLot
	if err := q.First(&lot, lotID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &lot, nil
}

// Reserve takes one slot from the lot. The lot must be approved and active
// and have capacity left. Returns the locked lot so the caller can read
// rates without a second query.
//
// The decrement is guarded in SQL rather than computed from the loaded row,
// so a stale read can never push the counter below zero even without the
// row lock.
func (sl *SlotLedger) Reserve(tx *gorm.DB, lotID uint) (*models.ParkingLot, error) {
	lot, err := sl.lockLot(tx, lotID)
	if err != nil {
		return nil, err
	}

	if !lot.Approved || !lot.Active {
		return nil, ErrLotUnavailable
	}

	res := tx.Model(&models.ParkingLot{}).
		Where("id = ? AND available_slots > 0", lotID).
		Update("available_slots", gorm.Expr("available_slots - 1"))
	if res.Error != nil {
		return nil, res.Error
	}
	if res.RowsAffected == 0 {
		return nil, ErrNoCapacity
	}

	lot.AvailableSlots--
	return lot, nil
}

// Release returns one slot to the lot. Releasing beyond capacity means the
// ledger and the reservations disagree; that is logged and the counter is
// left at capacity rather than corrupted further.
func (sl *SlotLedger) Release(tx *gorm.DB, lotID uint) (*models.ParkingLot, error) {
	lot, err := sl.lockLot(tx, lotID)
	if err != nil {
		return nil, err
	}

	res := tx.Model(&models.ParkingLot{}).
		Where("id = ? AND available_slots < capacity", lotID).
		Update("available_slots", gorm.Expr("available_slots + 1"))
	if res.Error != nil {
		return nil, res.Error
	}
	if res.RowsAffected == 0 {
		utils.ErrorLogger.Printf(
			"slot ledger: release on lot %d would exceed capacity (%d/%d), ignoring",
			lot.ID, lot.AvailableSlots, lot.Capacity)
		return lot, nil
	}

	lot.AvailableSlots++
	return lot, nil
}
