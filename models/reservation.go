package models

import "time"

// Reservation states. Transitions are monotonic: active -> cancelled or
// active -> finished, nothing leaves a terminal state.
const (
	ReservationStatusActive    = "active"
	ReservationStatusCancelled = "cancelled"
	ReservationStatusFinished  = "finished"
)

// Reservation kinds with their minimum durations in minutes.
const (
	ReservationKindHourly  = "hourly"
	ReservationKindDaily   = "daily"
	ReservationKindMonthly = "monthly"

	MinMinutesHourly  = 60
	MinMinutesDaily   = 1440
	MinMinutesMonthly = 43200
)

type Reservation struct {
	ID              uint        `gorm:"primaryKey" json:"id"`
	Code            string      `gorm:"type:varchar(36);unique;not null;index" json:"code"`
	UserID          uint        `gorm:"not null;index" json:"user_id"`
	User            User        `gorm:"foreignKey:UserID" json:"-"`
	CarID           uint        `gorm:"not null;index" json:"car_id"`
	Car             Car         `gorm:"foreignKey:CarID" json:"car"`
	ParkingLotID    uint        `gorm:"not null;index" json:"parking_lot_id"`
	ParkingLot      ParkingLot  `gorm:"foreignKey:ParkingLotID" json:"parking_lot"`
	EntryTime       time.Time   `gorm:"not null;index" json:"entry_time"`
	ExitTime        *time.Time  `json:"exit_time,omitempty"`
	DurationMinutes int         `gorm:"not null" json:"duration_minutes"`
	EstimatedCost   float64     `gorm:"type:decimal(8,2);not null" json:"estimated_cost"`
	FinalCost       *float64    `gorm:"type:decimal(8,2)" json:"final_cost,omitempty"`
	Kind            string      `gorm:"type:varchar(10);not null;default:'hourly'" json:"kind"`
	Status          string      `gorm:"type:varchar(20);not null;default:'active';index" json:"status"`
	Notes           string      `gorm:"type:varchar(255);not null;default:''" json:"notes"`
	CheckedInAt     *time.Time  `json:"checked_in_at,omitempty"`
	CreatedAt       time.Time   `json:"created_at"`
	UpdatedAt       time.Time   `json:"updated_at"`
}

// MinMinutesForKind returns the minimum duration for a reservation kind,
// or 0 for an unknown kind.
func MinMinutesForKind(kind string) int {
	switch kind {
	case ReservationKindHourly:
		return MinMinutesHourly
	case ReservationKindDaily:
		return MinMinutesDaily
	case ReservationKindMonthly:
		return MinMinutesMonthly
	}
	return 0
}

// CanCancel reports whether an unprivileged actor may still cancel.
func (r *Reservation) CanCancel(now time.Time) bool {
	return r.Status == ReservationStatusActive && r.EntryTime.After(now)
}

// RemainingMinutes is the time left until entry for an active reservation,
// nil once the window has started or the reservation is not active.
func (r *Reservation) RemainingMinutes(now time.Time) *int {
	if r.Status != ReservationStatusActive || !r.EntryTime.After(now) {
		return nil
	}
	minutes := int(r.EntryTime.Sub(now).Minutes())
	return &minutes
}
