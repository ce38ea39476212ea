package booking

import (
	"context"

	"github.com/iliyamo/playhouse-booking/internal/model"
)

// Store is the persistence the Manager needs.  Lookups return ErrNotFound
// (possibly wrapped) for missing rows; HolidayOn returns nil, nil when the
// date is open.
type Store interface {
	// WithTx runs fn in one transaction, committing when fn returns nil
	// and rolling back otherwise.
	WithTx(ctx context.Context, fn func(ctx context.Context, tx Tx) error) error

	PackageByID(ctx context.Context, id uint64) (*model.Package, error)
	TimeSlotByID(ctx context.Context, id uint64) (*model.TimeSlot, error)
	ListTimeSlots(ctx context.Context, activeOnly bool) ([]model.TimeSlot, error)
	HolidayOn(ctx context.Context, date string) (*model.Holiday, error)
	BookedBySlot(ctx context.Context, date string) (map[uint64]uint32, error)
	VoucherByCode(ctx context.Context, code string) (*model.DiscountVoucher, error)
	BookingByID(ctx context.Context, id uint64) (*model.Booking, error)
}

// Tx is a unit of work.  Lock* methods hold the row until the transaction
// ends so that check-then-write sequences on slots, vouchers and bookings
// are serialised.
type Tx interface {
	PackageByID(ctx context.Context, id uint64) (*model.Package, error)
	LockTimeSlot(ctx context.Context, id uint64) (*model.TimeSlot, error)
	HolidayOn(ctx context.Context, date string) (*model.Holiday, error)
	// BookedChildren sums children of non-cancelled bookings for the slot
	// on date.
	BookedChildren(ctx context.Context, slotID uint64, date string) (uint32, error)
	LockVoucher(ctx context.Context, code string) (*model.DiscountVoucher, error)
	// IncrementVoucherUsage adds one use only while used_count is below
	// usage_limit and returns ErrVoucherExhausted otherwise.
	IncrementVoucherUsage(ctx context.Context, voucherID uint64) error
	InsertBooking(ctx context.Context, b *model.Booking) error
	InsertRedemption(ctx context.Context, r *model.VoucherRedemption) error
	LockBooking(ctx context.Context, id uint64) (*model.Booking, error)
	UpdateBookingStatus(ctx context.Context, b *model.Booking) error
}

// Notifier is told about bookings after their state change commits.
type Notifier interface {
	BookingConfirmed(ctx context.Context, b model.Booking, pkg model.Package, slot model.TimeSlot) error
}

// Logger is the subset of the echo/gommon logger the Manager writes to.
type Logger interface {
	Infof(format string, args ...interface{})
	Warnf(format string, args ...interface{})
	Errorf(format string, args ...interface{})
}

type nopNotifier struct{}

func (nopNotifier) BookingConfirmed(context.Context, model.Booking, model.Package, model.TimeSlot) error {
	return nil
}
