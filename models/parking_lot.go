package models

import "time"

// ParkingLot is a facility published by an owner. AvailableSlots is the
// live counter; it must only be mutated through services.SlotLedger so the
// 0 <= available <= capacity invariant survives concurrent bookings.
type ParkingLot struct {
	ID             uint       `gorm:"primaryKey" json:"id"`
	OwnerID        uint       `gorm:"not null;index" json:"owner_id"`
	Owner          User       `gorm:"foreignKey:OwnerID" json:"-"`
	Name           string     `gorm:"type:varchar(255);not null" json:"name"`
	Address        string     `gorm:"type:varchar(255)" json:"address"`
	Capacity       int        `gorm:"not null" json:"capacity"`
	AvailableSlots int        `gorm:"not null" json:"available_slots"`
	HourlyRate     float64    `gorm:"type:decimal(8,2);not null" json:"hourly_rate"`
	DailyRate      *float64   `gorm:"type:decimal(8,2)" json:"daily_rate,omitempty"`
	MonthlyRate    *float64   `gorm:"type:decimal(8,2)" json:"monthly_rate,omitempty"`
	Approved       bool       `gorm:"not null;default:false" json:"approved"`
	Active         bool       `gorm:"not null;default:true" json:"active"`
	ApprovedAt     *time.Time `json:"approved_at,omitempty"`
	CreatedAt      time.Time  `json:"created_at"`
	UpdatedAt      time.Time  `json:"updated_at"`
}

// AcceptsKind reports whether the lot prices the requested reservation kind.
// Hourly pricing is mandatory; daily and monthly are opt-in per lot.
func (p *ParkingLot) AcceptsKind(kind string) bool {
	switch kind {
	case ReservationKindHourly:
		return true
	case ReservationKindDaily:
		return p.DailyRate != nil
	case ReservationKindMonthly:
		return p.MonthlyRate != nil
	}
	return false
}

// RatePerMinute is the base used for estimates, extensions and checkout.
func (p *ParkingLot) RatePerMinute() float64 {
	return p.HourlyRate / 60.0
}
