package services

import (
	"encoding/json"
	"errors"
	"os"
	"strconv"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/parkeaya/parking-app/models"
	"github.com/parkeaya/parking-app/utils"
)

// DefaultCommission is the platform cut used when PLATFORM_COMMISSION is
// not configured. Expressed as a percentage.
const DefaultCommission = 10.0

// PaymentService owns the payment state machine and the revenue split.
// Every state change appends a PaymentHistory row in the same transaction;
// no external gateway is ever called inside a transaction — card payments
// settle locally, wallet payments (yape/plin) wait for manual validation.
type PaymentService struct {
	db         *gorm.DB
	commission float64
	now        func() time.Time
}

func NewPaymentService(db *gorm.DB) *PaymentService {
	commission := DefaultCommission
	if raw := os.Getenv("PLATFORM_COMMISSION"); raw != "" {
		if parsed, err := strconv.ParseFloat(raw, 64); err == nil {
			commission = parsed
		} else {
			utils.ErrorLogger.Printf("Invalid PLATFORM_COMMISSION %q, using %.2f", raw, DefaultCommission)
		}
	}
	return &PaymentService{
		db:         db,
		commission: commission,
		now:        time.Now,
	}
}

// CommissionFraction normalizes the configured commission: values above 1
// are percentages (20 -> 0.20), values at or below 1 are already fractions.
func CommissionFraction(raw float64) float64 {
	if raw > 1 {
		return raw / 100
	}
	return raw
}

// Split computes the platform fee and owner payout for an amount, both
// rounded half-up to 2 decimals. Any rounding residue is folded into the
// owner payout so fee + payout always equals the amount.
func Split(amount, rawCommission float64) (fee, ownerPayout float64) {
	fraction := CommissionFraction(rawCommission)
	fee = utils.RoundMoney(amount * fraction)
	ownerPayout = utils.RoundMoney(amount - fee)
	if residue := utils.RoundMoney(amount - fee - ownerPayout); residue != 0 {
		ownerPayout = utils.RoundMoney(ownerPayout + residue)
	}
	return fee, ownerPayout
}

// Create opens a payment for the caller's reservation. Card payments are
// settled immediately; yape/plin stay pending until Process or owner
// validation confirms them.
func (s *PaymentService) Create(actor Actor, reservationID uint, method, clientIP string) (*models.Payment, error) {
	var reservation models.Reservation
	err := s.db.Preload("ParkingLot").First(&reservation, reservationID).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}

	if reservation.UserID != actor.UserID && !actor.PrivilegedFor(&reservation.ParkingLot) {
		return nil, ErrForbidden
	}

	var existing int64
	if err := s.db.Model(&models.Payment{}).Where("reservation_id = ?", reservation.ID).Count(&existing).Error; err != nil {
		return nil, err
	}
	if existing > 0 {
		return nil, FieldErrors{"reservation_id": "this reservation already has a payment"}
	}

	amount := reservation.EstimatedCost
	if reservation.FinalCost != nil {
		amount = *reservation.FinalCost
	}

	payment := models.Payment{
		ID:            uuid.NewString(),
		Reference:     models.GeneratePaymentReference(),
		ReservationID: reservation.ID,
		UserID:        reservation.UserID,
		Amount:        amount,
		Currency:      "PEN",
		Method:        method,
		Status:        models.PaymentStatusPending,
	}

	tx := s.db.Begin()
	if tx.Error != nil {
		return nil, tx.Error
	}
	if err := tx.Create(&payment).Error; err != nil {
		tx.Rollback()
		return nil, err
	}
	if err := s.recordHistory(tx, payment.ID, "", models.PaymentStatusPending,
		"Payment created for reservation "+reservation.Code, clientIP); err != nil {
		tx.Rollback()
		return nil, err
	}
	if err := tx.Commit().Error; err != nil {
		return nil, err
	}

	utils.InfoLogger.Printf("Payment %s created: %s for reservation %s",
		payment.Reference, utils.FormatCurrency(amount), reservation.Code)

	// Card payments confirm synchronously.
	if method == models.PaymentMethodCard {
		return s.Process(actor, payment.ID, clientIP)
	}
	return &payment, nil
}

// Process confirms a pending payment: pending -> processing -> paid, with
// settlement computed at the paid transition. Each hop writes one history
// row; all of it commits atomically.
func (s *PaymentService) Process(actor Actor, paymentID, clientIP string) (*models.Payment, error) {
	payment, err := s.findForActor(actor, paymentID)
	if err != nil {
		return nil, err
	}
	if payment.Status != models.PaymentStatusPending {
		return nil, ErrInvalidStateTransition
	}

	fee, ownerPayout := Split(payment.Amount, s.commission)
	paidAt := s.now()
	transactionID := models.GenerateTransactionID()
	gatewayData, err := json.Marshal(map[string]interface{}{
		"channel":    "internal",
		"method":     payment.Method,
		"commission": s.commission,
	})
	if err != nil {
		return nil, err
	}

	tx := s.db.Begin()
	if tx.Error != nil {
		return nil, tx.Error
	}

	res := tx.Model(&models.Payment{}).
		Where("id = ? AND status = ?", payment.ID, models.PaymentStatusPending).
		Updates(map[string]interface{}{
			"status":   models.PaymentStatusProcessing,
			"attempts": gorm.Expr("attempts + 1"),
		})
	if res.Error != nil {
		tx.Rollback()
		return nil, res.Error
	}
	if res.RowsAffected == 0 {
		tx.Rollback()
		return nil, ErrInvalidStateTransition
	}
	if err := s.recordHistory(tx, payment.ID, models.PaymentStatusPending,
		models.PaymentStatusProcessing, "Payment confirmation started", clientIP); err != nil {
		tx.Rollback()
		return nil, err
	}

	err = tx.Model(&models.Payment{}).
		Where("id = ?", payment.ID).
		Updates(map[string]interface{}{
			"status":         models.PaymentStatusPaid,
			"platform_fee":   fee,
			"owner_amount":   ownerPayout,
			"paid_at":        paidAt,
			"transaction_id": transactionID,
			"gateway_data":   string(gatewayData),
		}).Error
	if err != nil {
		tx.Rollback()
		return nil, err
	}
	if err := s.recordHistory(tx, payment.ID, models.PaymentStatusProcessing,
		models.PaymentStatusPaid, "Payment settled", clientIP); err != nil {
		tx.Rollback()
		return nil, err
	}

	if err := tx.Commit().Error; err != nil {
		return nil, err
	}

	payment.Status = models.PaymentStatusPaid
	payment.PlatformFee = fee
	payment.OwnerAmount = ownerPayout
	payment.PaidAt = &paidAt
	payment.TransactionID = &transactionID
	payment.GatewayData = string(gatewayData)
	payment.Attempts++

	utils.InfoLogger.Printf("Payment %s settled: fee %s, owner payout %s",
		payment.Reference, utils.FormatCurrency(fee), utils.FormatCurrency(ownerPayout))
	return payment, nil
}

// Fail marks a pending or processing payment as failed, recording the
// reason for the next attempt.
func (s *PaymentService) Fail(paymentID, reason, clientIP string) (*models.Payment, error) {
	return s.abort(paymentID, models.PaymentStatusFailed, reason, clientIP)
}

// CancelPayment cancels a payment that has not been settled yet.
func (s *PaymentService) CancelPayment(paymentID, reason, clientIP string) (*models.Payment, error) {
	return s.abort(paymentID, models.PaymentStatusCancelled, reason, clientIP)
}

func (s *PaymentService) abort(paymentID, target, reason, clientIP string) (*models.Payment, error) {
	payment, err := s.findByID(paymentID)
	if err != nil {
		return nil, err
	}
	if payment.Status != models.PaymentStatusPending && payment.Status != models.PaymentStatusProcessing {
		return nil, ErrInvalidStateTransition
	}
	previous := payment.Status

	tx := s.db.Begin()
	if tx.Error != nil {
		return nil, tx.Error
	}

	updates := map[string]interface{}{"status": target}
	if target == models.PaymentStatusFailed {
		updates["attempts"] = gorm.Expr("attempts + 1")
		updates["last_error"] = reason
	}
	res := tx.Model(&models.Payment{}).
		Where("id = ? AND status = ?", payment.ID, previous).
		Updates(updates)
	if res.Error != nil {
		tx.Rollback()
		return nil, res.Error
	}
	if res.RowsAffected == 0 {
		tx.Rollback()
		return nil, ErrInvalidStateTransition
	}
	if err := s.recordHistory(tx, payment.ID, previous, target, reason, clientIP); err != nil {
		tx.Rollback()
		return nil, err
	}
	if err := tx.Commit().Error; err != nil {
		return nil, err
	}

	payment.Status = target
	return payment, nil
}

// Refund reverses a settled payment. Only allowed while the linked
// reservation is active or cancelled and within 30 days of settlement.
func (s *PaymentService) Refund(actor Actor, paymentID, clientIP string) (*models.Payment, error) {
	payment, err := s.findForActor(actor, paymentID)
	if err != nil {
		return nil, err
	}

	now := s.now()
	if !payment.CanRefund(now) {
		if payment.Status == models.PaymentStatusPaid && payment.PaidAt != nil &&
			now.Sub(*payment.PaidAt) > models.RefundWindow {
			return nil, ErrRefundWindowExpired
		}
		return nil, ErrInvalidStateTransition
	}

	tx := s.db.Begin()
	if tx.Error != nil {
		return nil, tx.Error
	}

	res := tx.Model(&models.Payment{}).
		Where("id = ? AND status = ?", payment.ID, models.PaymentStatusPaid).
		Updates(map[string]interface{}{
			"status":      models.PaymentStatusRefunded,
			"refunded_at": now,
		})
	if res.Error != nil {
		tx.Rollback()
		return nil, res.Error
	}
	if res.RowsAffected == 0 {
		tx.Rollback()
		return nil, ErrInvalidStateTransition
	}
	if err := s.recordHistory(tx, payment.ID, models.PaymentStatusPaid,
		models.PaymentStatusRefunded, "Refund of "+utils.FormatCurrency(payment.Amount), clientIP); err != nil {
		tx.Rollback()
		return nil, err
	}
	if err := tx.Commit().Error; err != nil {
		return nil, err
	}

	payment.Status = models.PaymentStatusRefunded
	payment.RefundedAt = &now

	utils.InfoLogger.Printf("Payment %s refunded", payment.Reference)
	return payment, nil
}

// History lists the audit trail of a payment, oldest first.
func (s *PaymentService) History(paymentID string) ([]models.PaymentHistory, error) {
	var history []models.PaymentHistory
	err := s.db.Where("payment_id = ?", paymentID).
		Order("created_at asc").Find(&history).Error
	return history, err
}

func (s *PaymentService) findByID(id string) (*models.Payment, error) {
	var payment models.Payment
	err := s.db.Preload("Reservation").Preload("Reservation.ParkingLot").
		Where("id = ?", id).First(&payment).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &payment, nil
}

// findForActor loads a payment and enforces that the caller is the payer,
// an admin, or the owner of the lot the reservation belongs to.
func (s *PaymentService) findForActor(actor Actor, id string) (*models.Payment, error) {
	payment, err := s.findByID(id)
	if err != nil {
		return nil, err
	}
	if payment.UserID != actor.UserID && !actor.PrivilegedFor(&payment.Reservation.ParkingLot) {
		return nil, ErrForbidden
	}
	return payment, nil
}

func (s *PaymentService) recordHistory(tx *gorm.DB, paymentID, previous, next, message, ip string) error {
	return tx.Create(&models.PaymentHistory{
		PaymentID:      paymentID,
		PreviousStatus: previous,
		NewStatus:      next,
		Message:        message,
		IPAddress:      ip,
	}).Error
}
