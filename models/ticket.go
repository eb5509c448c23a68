package models

import "time"

// Ticket states. valid -> used | cancelled | expired, all terminal.
const (
	TicketStatusValid     = "valid"
	TicketStatusUsed      = "used"
	TicketStatusExpired   = "expired"
	TicketStatusCancelled = "cancelled"
)

// Ticket is the validation pass issued against a reservation once its
// payment is confirmed. Gate staff validate it by code on arrival; it is
// single use and only honored inside its validity window.
type Ticket struct {
	ID                 uint        `gorm:"primaryKey" json:"id"`
	Code               string      `gorm:"type:varchar(50);unique;not null;index" json:"code"`
	ReservationID      uint        `gorm:"not null;index" json:"reservation_id"`
	Reservation        Reservation `gorm:"foreignKey:ReservationID" json:"reservation"`
	UserID             uint        `gorm:"not null;index" json:"user_id"`
	User               User        `gorm:"foreignKey:UserID" json:"-"`
	Status             string      `gorm:"type:varchar(20);not null;default:'valid';index" json:"status"`
	ValidFrom          time.Time   `gorm:"not null" json:"valid_from"`
	ValidUntil         time.Time   `gorm:"not null" json:"valid_until"`
	ValidatedBy        *uint       `json:"validated_by,omitempty"`
	ValidatedAt        *time.Time  `json:"validated_at,omitempty"`
	UsedAt             *time.Time  `json:"used_at,omitempty"`
	ValidationAttempts int         `gorm:"not null;default:0" json:"validation_attempts"`
	Notes              string      `gorm:"type:varchar(255);not null;default:''" json:"notes"`
	CreatedAt          time.Time   `json:"created_at"`
	UpdatedAt          time.Time   `json:"updated_at"`
}

// GenerateTicketCode builds a gate-quotable code like TKT-4QX81QJ0MW.
func GenerateTicketCode() string {
	return randomReference("TKT")
}

// IsValid reports whether the ticket would be honored at the gate right
// now: valid state and inside [ValidFrom, ValidUntil].
func (t *Ticket) IsValid(now time.Time) bool {
	if t.Status != TicketStatusValid {
		return false
	}
	return !now.Before(t.ValidFrom) && !now.After(t.ValidUntil)
}

// RemainingValidity is the time left until the window closes, zero once it
// has passed.
func (t *Ticket) RemainingValidity(now time.Time) time.Duration {
	if now.After(t.ValidUntil) {
		return 0
	}
	return t.ValidUntil.Sub(now)
}
