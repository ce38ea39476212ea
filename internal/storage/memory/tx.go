package memory

import (
	"context"
	"fmt"

	"github.com/iliyamo/playhouse-booking/internal/booking"
	"github.com/iliyamo/playhouse-booking/internal/model"
)

// transaction runs with DB.mu held by WithTx, so its methods never lock.
type transaction struct {
	db              *DB
	rollbackActions []func()
}

func (t *transaction) PackageByID(ctx context.Context, id uint64) (*model.Package, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return t.db.packageByID(id)
}

func (t *transaction) LockTimeSlot(ctx context.Context, id uint64) (*model.TimeSlot, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return t.db.slotByID(id)
}

func (t *transaction) HolidayOn(_ context.Context, date string) (*model.Holiday, error) {
	return t.db.holidayOn(date), nil
}

func (t *transaction) BookedChildren(_ context.Context, slotID uint64, date string) (uint32, error) {
	return t.db.bookedChildren(slotID, date), nil
}

func (t *transaction) LockVoucher(_ context.Context, code string) (*model.DiscountVoucher, error) {
	return t.db.voucherByCode(code)
}

func (t *transaction) IncrementVoucherUsage(_ context.Context, voucherID uint64) error {
	for _, v := range t.db.vouchers {
		if v.ID != voucherID {
			continue
		}
		if v.UsedCount >= v.UsageLimit {
			return booking.ErrVoucherExhausted
		}
		v.UsedCount++
		t.rollbackActions = append(t.rollbackActions, func() { v.UsedCount-- })
		return nil
	}
	return fmt.Errorf("voucher %d: %w", voucherID, booking.ErrNotFound)
}

func (t *transaction) InsertBooking(_ context.Context, b *model.Booking) error {
	b.ID = t.db.id()
	stored := *b
	t.db.bookings[b.ID] = &stored
	id := b.ID
	t.rollbackActions = append(t.rollbackActions, func() { delete(t.db.bookings, id) })
	return nil
}

func (t *transaction) InsertRedemption(_ context.Context, r *model.VoucherRedemption) error {
	r.ID = t.db.id()
	t.db.redemptions = append(t.db.redemptions, *r)
	n := len(t.db.redemptions) - 1
	t.rollbackActions = append(t.rollbackActions, func() { t.db.redemptions = t.db.redemptions[:n] })
	return nil
}

func (t *transaction) LockBooking(_ context.Context, id uint64) (*model.Booking, error) {
	return t.db.bookingByID(id)
}

func (t *transaction) UpdateBookingStatus(_ context.Context, b *model.Booking) error {
	stored, ok := t.db.bookings[b.ID]
	if !ok {
		return fmt.Errorf("booking %d: %w", b.ID, booking.ErrNotFound)
	}
	prev := *stored
	stored.Status = b.Status
	stored.PaymentRef = b.PaymentRef
	stored.UpdatedAt = b.UpdatedAt
	t.rollbackActions = append(t.rollbackActions, func() { *stored = prev })
	return nil
}
