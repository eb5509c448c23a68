package models

import "time"

// PaymentHistory is the append-only audit trail of payment state changes.
// Rows are written in the same transaction as the transition and are never
// updated or deleted.
type PaymentHistory struct {
	ID             uint      `gorm:"primaryKey" json:"id"`
	PaymentID      string    `gorm:"type:varchar(36);not null;index" json:"payment_id"`
	Payment        Payment   `gorm:"foreignKey:PaymentID" json:"-"`
	PreviousStatus string    `gorm:"type:varchar(20);not null" json:"previous_status"`
	NewStatus      string    `gorm:"type:varchar(20);not null" json:"new_status"`
	Message        string    `gorm:"type:text;not null" json:"message"`
	IPAddress      string    `gorm:"type:varchar(45)" json:"ip_address"`
	CreatedAt      time.Time `json:"created_at"`
}
