package models

import "time"

// Ticket history actions.
const (
	TicketActionIssued    = "issued"
	TicketActionValidated = "validated"
	TicketActionRejected  = "rejected"
	TicketActionExpired   = "expired"
	TicketActionCancelled = "cancelled"
)

// TicketHistory is the append-only audit trail of ticket events, written
// in the same transaction as the event itself.
type TicketHistory struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	TicketID  uint      `gorm:"not null;index" json:"ticket_id"`
	Ticket    Ticket    `gorm:"foreignKey:TicketID" json:"-"`
	Action    string    `gorm:"type:varchar(20);not null" json:"action"`
	Details   string    `gorm:"type:text;not null" json:"details"`
	UserID    uint      `gorm:"not null" json:"user_id"`
	IPAddress string    `gorm:"type:varchar(45)" json:"ip_address"`
	UserAgent string    `gorm:"type:varchar(255)" json:"user_agent"`
	CreatedAt time.Time `json:"created_at"`
}
