package services

import (
	"errors"
	"fmt"
	"strings"
)

// Sentinel errors raised by the reservation and payment services.
// Controllers map these onto HTTP status codes.
var (
	ErrLotUnavailable         = errors.New("parking lot is not available")
	ErrNoCapacity             = errors.New("no available slots in this parking lot")
	ErrVehicleConflict        = errors.New("vehicle already has a reservation in that time range")
	ErrInvalidStateTransition = errors.New("operation not allowed in the current state")
	ErrRefundWindowExpired    = errors.New("refund window of 30 days has expired")
	ErrNotFound               = errors.New("record not found")
	ErrForbidden              = errors.New("you do not have permission for this resource")
)

// FieldErrors carries field-keyed validation messages for 400 responses.
type FieldErrors map[string]string

func (fe FieldErrors) Error() string {
	parts := make([]string, 0, len(fe))
	for field, msg := range fe {
		parts = append(parts, fmt.Sprintf("%s: %s", field, msg))
	}
	return strings.Join(parts, "; ")
}

// AsFieldErrors unwraps err into FieldErrors if it carries them.
func AsFieldErrors(err error) (FieldErrors, bool) {
	var fe FieldErrors
	if errors.As(err, &fe) {
		return fe, true
	}
	return nil, false
}
