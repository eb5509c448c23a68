package services

import (
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"gorm.io/gorm"
)

func TestReserveDecrementsUntilEmpty(t *testing.T) {
	db := setupTestDB(t)
	f := seedFixtures(t, db)
	ledger := NewSlotLedger()

	// Capacity 2: exactly two reservations succeed, the third fails and
	// must not touch the counter.
	for i := 0; i < 2; i++ {
		err := db.Transaction(func(tx *gorm.DB) error {
			_, err := ledger.Reserve(tx, f.lot.ID)
			return err
		})
		assert.NoError(t, err)
	}
	assert.Equal(t, 0, lotSlots(t, db, f.lot.ID))

	err := db.Transaction(func(tx *gorm.DB) error {
		_, err := ledger.Reserve(tx, f.lot.ID)
		return err
	})
	assert.ErrorIs(t, err, ErrNoCapacity)
	assert.Equal(t, 0, lotSlots(t, db, f.lot.ID))
}

func TestReserveRejectsUnavailableLot(t *testing.T) {
	db := setupTestDB(t)
	f := seedFixtures(t, db)
	ledger := NewSlotLedger()

	db.Model(&f.lot).Update("approved", false)
	err := db.Transaction(func(tx *gorm.DB) error {
		_, err := ledger.Reserve(tx, f.lot.ID)
		return err
	})
	assert.ErrorIs(t, err, ErrLotUnavailable)

	db.Model(&f.lot).Updates(map[string]interface{}{"approved": true, "active": false})
	err = db.Transaction(func(tx *gorm.DB) error {
		_, err := ledger.Reserve(tx, f.lot.ID)
		return err
	})
	assert.ErrorIs(t, err, ErrLotUnavailable)
	assert.Equal(t, 2, lotSlots(t, db, f.lot.ID))
}

func TestReserveUnknownLot(t *testing.T) {
	db := setupTestDB(t)
	seedFixtures(t, db)
	ledger := NewSlotLedger()

	err := db.Transaction(func(tx *gorm.DB) error {
		_, err := ledger.Reserve(tx, 9999)
		return err
	})
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestReleaseClampsAtCapacity(t *testing.T) {
	db := setupTestDB(t)
	f := seedFixtures(t, db)
	ledger := NewSlotLedger()

	// One slot taken, one release restores it.
	db.Model(&f.lot).Update("available_slots", 1)
	err := db.Transaction(func(tx *gorm.DB) error {
		_, err := ledger.Release(tx, f.lot.ID)
		return err
	})
	assert.NoError(t, err)
	assert.Equal(t, 2, lotSlots(t, db, f.lot.ID))

	// A release at full capacity is a no-op, never an overflow.
	err = db.Transaction(func(tx *gorm.DB) error {
		_, err := ledger.Release(tx, f.lot.ID)
		return err
	})
	assert.NoError(t, err)
	assert.Equal(t, 2, lotSlots(t, db, f.lot.ID))
}

// singleConn pins the pool to one connection so concurrent goroutines
// contend on real transactions instead of tripping sqlite busy errors.
func singleConn(t *testing.T, db *gorm.DB) {
	t.Helper()
	sqlDB, err := db.DB()
	if err != nil {
		t.Fatalf("underlying db: %v", err)
	}
	sqlDB.SetMaxOpenConns(1)
}

func TestConcurrentReserveLastSlot(t *testing.T) {
	db := setupTestDB(t)
	f := seedFixtures(t, db)
	ledger := NewSlotLedger()
	singleConn(t, db)

	db.Model(&f.lot).Update("available_slots", 1)

	errs := make(chan error, 2)
	for i := 0; i < 2; i++ {
		go func() {
			errs <- db.Transaction(func(tx *gorm.DB) error {
				_, err := ledger.Reserve(tx, f.lot.ID)
				return err
			})
		}()
	}

	var won, lost int
	for i := 0; i < 2; i++ {
		err := <-errs
		switch {
		case err == nil:
			won++
		case errors.Is(err, ErrNoCapacity):
			lost++
		default:
			t.Fatalf("unexpected error: %v", err)
		}
	}
	assert.Equal(t, 1, won)
	assert.Equal(t, 1, lost)
	assert.Equal(t, 0, lotSlots(t, db, f.lot.ID))
}

func TestCounterBoundsUnderConcurrentChurn(t *testing.T) {
	db := setupTestDB(t)
	f := seedFixtures(t, db)
	ledger := NewSlotLedger()
	singleConn(t, db)

	db.Model(&f.lot).Update("available_slots", 1)

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			_ = db.Transaction(func(tx *gorm.DB) error {
				var err error
				if n%2 == 0 {
					_, err = ledger.Reserve(tx, f.lot.ID)
				} else {
					_, err = ledger.Release(tx, f.lot.ID)
				}
				return err
			})
		}(i)
	}
	wg.Wait()

	slots := lotSlots(t, db, f.lot.ID)
	assert.GreaterOrEqual(t, slots, 0)
	assert.LessOrEqual(t, slots, f.lot.Capacity)
}

func TestReserveRollbackRestoresCounter(t *testing.T) {
	db := setupTestDB(t)
	f := seedFixtures(t, db)
	ledger := NewSlotLedger()

	tx := db.Begin()
	_, err := ledger.Reserve(tx, f.lot.ID)
	assert.NoError(t, err)
	tx.Rollback()

	assert.Equal(t, 2, lotSlots(t, db, f.lot.ID))
}
