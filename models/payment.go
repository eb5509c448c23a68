package models

import (
	"fmt"
	"math/rand"
	"time"
)

// Payment states
const (
	PaymentStatusPending    = "pending"
	PaymentStatusProcessing = "processing"
	PaymentStatusPaid       = "paid"
	PaymentStatusFailed     = "failed"
	PaymentStatusRefunded   = "refunded"
	PaymentStatusCancelled  = "cancelled"
)

// Payment methods
const (
	PaymentMethodCard = "card"
	PaymentMethodYape = "yape"
	PaymentMethodPlin = "plin"
)

// RefundWindow is how long after settlement a payment stays refundable.
const RefundWindow = 30 * 24 * time.Hour

// Payment is the one-to-one settlement record for a reservation.
// PlatformFee and OwnerAmount are computed exactly once, when the payment
// transitions to paid, and must always sum to Amount.
type Payment struct {
	ID            string      `gorm:"type:varchar(36);primaryKey" json:"id"`
	Reference     string      `gorm:"type:varchar(50);unique;not null;index" json:"reference"`
	ReservationID uint        `gorm:"not null;uniqueIndex" json:"reservation_id"`
	Reservation   Reservation `gorm:"foreignKey:ReservationID" json:"reservation"`
	UserID        uint        `gorm:"not null;index" json:"user_id"`
	User          User        `gorm:"foreignKey:UserID" json:"-"`
	Amount        float64     `gorm:"type:decimal(8,2);not null" json:"amount"`
	Currency      string      `gorm:"type:varchar(3);not null;default:'PEN'" json:"currency"`
	Method        string      `gorm:"type:varchar(20);not null" json:"method"`
	Status        string      `gorm:"type:varchar(20);not null;default:'pending';index" json:"status"`
	TransactionID *string     `gorm:"type:varchar(100)" json:"transaction_id,omitempty"`
	GatewayData   string      `gorm:"type:text" json:"gateway_data,omitempty"`
	PlatformFee   float64     `gorm:"type:decimal(8,2);not null;default:0" json:"platform_fee"`
	OwnerAmount   float64     `gorm:"type:decimal(8,2);not null;default:0" json:"owner_amount"`
	Attempts      int         `gorm:"not null;default:0" json:"attempts"`
	LastError     *string     `gorm:"type:text" json:"last_error,omitempty"`
	CreatedAt     time.Time   `json:"created_at"`
	UpdatedAt     time.Time   `json:"updated_at"`
	PaidAt        *time.Time  `json:"paid_at,omitempty"`
	RefundedAt    *time.Time  `json:"refunded_at,omitempty"`
}

const referenceChars = "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"

func randomReference(prefix string) string {
	b := make([]byte, 10)
	for i := range b {
		b[i] = referenceChars[rand.Intn(len(referenceChars))]
	}
	return fmt.Sprintf("%s-%s", prefix, string(b))
}

// GeneratePaymentReference builds a human-quotable reference like
// PAY-8K2NQ0ZV1D.
func GeneratePaymentReference() string {
	return randomReference("PAY")
}

// GenerateTransactionID builds the internal settlement reference written
// when a payment transitions to paid.
func GenerateTransactionID() string {
	return randomReference("TXN")
}

// CanRefund reports whether the refund preconditions hold: the payment is
// settled, its reservation is active or cancelled, and the settlement is at
// most 30 days old.
func (p *Payment) CanRefund(now time.Time) bool {
	if p.Status != PaymentStatusPaid || p.PaidAt == nil {
		return false
	}
	if p.Reservation.Status != ReservationStatusActive &&
		p.Reservation.Status != ReservationStatusCancelled {
		return false
	}
	return now.Sub(*p.PaidAt) <= RefundWindow
}
