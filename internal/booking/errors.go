package booking

import (
	"errors"
	"fmt"
)

var (
	ErrNotFound        = errors.New("record not found")
	ErrForbidden       = errors.New("forbidden")
	ErrSlotInactive    = errors.New("time slot is not bookable")
	ErrPackageInactive = errors.New("package is not bookable")
)

// Voucher rejection reasons, in validation order.
var (
	ErrVoucherNotFound        = errors.New("voucher not found")
	ErrVoucherExpired         = errors.New("voucher expired")
	ErrVoucherExhausted       = errors.New("voucher usage limit reached")
	ErrVoucherMinAmountNotMet = errors.New("order amount below voucher minimum")
	ErrVoucherNotApplicable   = errors.New("voucher not applicable to package")
)

// CapacityExceededError rejects a booking that would overfill a slot.
type CapacityExceededError struct {
	Date      string
	SlotID    uint64
	Requested uint32
	Remaining uint32
}

func (e *CapacityExceededError) Error() string {
	return fmt.Sprintf("slot %d on %s has %d seats left, %d requested", e.SlotID, e.Date, e.Remaining, e.Requested)
}

// HolidayClosedError rejects a booking on a closed date.
type HolidayClosedError struct {
	Date   string
	Reason string
}

func (e *HolidayClosedError) Error() string {
	if e.Reason == "" {
		return fmt.Sprintf("venue closed on %s", e.Date)
	}
	return fmt.Sprintf("venue closed on %s: %s", e.Date, e.Reason)
}

// InvalidStateTransitionError rejects an illegal booking status change.
type InvalidStateTransitionError struct {
	From string
	To   string
}

func (e *InvalidStateTransitionError) Error() string {
	return fmt.Sprintf("cannot move booking from %s to %s", e.From, e.To)
}

func IsCapacityExceeded(err error) *CapacityExceededError {
	var target *CapacityExceededError
	if errors.As(err, &target) {
		return target
	}
	return nil
}

func IsHolidayClosed(err error) *HolidayClosedError {
	var target *HolidayClosedError
	if errors.As(err, &target) {
		return target
	}
	return nil
}

func IsInvalidTransition(err error) *InvalidStateTransitionError {
	var target *InvalidStateTransitionError
	if errors.As(err, &target) {
		return target
	}
	return nil
}

// InputError collects per-field validation messages.
type InputError struct {
	fields map[string][]string
}

func newInputError() *InputError {
	return &InputError{fields: make(map[string][]string)}
}

func IsInputError(err error) *InputError {
	var target *InputError
	if errors.As(err, &target) {
		return target
	}
	return nil
}

func (ie *InputError) addError(field, msg string) {
	ie.fields[field] = append(ie.fields[field], msg)
}

func (ie *InputError) fieldsCount() int { return len(ie.fields) }

func (ie *InputError) Error() string { return fmt.Sprintf("%+v", ie.fields) }

func (ie *InputError) Fields() map[string][]string { return ie.fields }
