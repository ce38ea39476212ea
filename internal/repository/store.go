package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/iliyamo/playhouse-booking/internal/booking"
	"github.com/iliyamo/playhouse-booking/internal/model"
)

// Store implements booking.Store on MySQL.  Transactions run at READ
// COMMITTED so every statement reads the latest committed rows.  The FOR
// UPDATE lock on the time slot only serialises admissions for that slot;
// the booked-children sum is itself a locking read, so it sees bookings
// committed by whichever transaction held the slot lock before.
type Store struct {
	db *sql.DB
}

func NewStore(db *sql.DB) *Store { return &Store{db: db} }

var _ booking.Store = (*Store)(nil)

var txOptions = &sql.TxOptions{Isolation: sql.LevelReadCommitted}

func (s *Store) WithTx(ctx context.Context, fn func(ctx context.Context, tx booking.Tx) error) error {
	tx, err := s.db.BeginTx(ctx, txOptions)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	committed := false
	defer func() {
		if !committed {
			_ = tx.Rollback()
		}
	}()

	if err := fn(ctx, &storeTx{tx: tx}); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	committed = true
	return nil
}

func (s *Store) PackageByID(ctx context.Context, id uint64) (*model.Package, error) {
	return getPackage(ctx, s.db, id)
}

func (s *Store) TimeSlotByID(ctx context.Context, id uint64) (*model.TimeSlot, error) {
	return getTimeSlot(ctx, s.db, id, false)
}

func (s *Store) ListTimeSlots(ctx context.Context, activeOnly bool) ([]model.TimeSlot, error) {
	return listTimeSlots(ctx, s.db, activeOnly)
}

func (s *Store) HolidayOn(ctx context.Context, date string) (*model.Holiday, error) {
	return activeHoliday(ctx, s.db, date)
}

func (s *Store) BookedBySlot(ctx context.Context, date string) (map[uint64]uint32, error) {
	return bookedBySlot(ctx, s.db, date)
}

func (s *Store) VoucherByCode(ctx context.Context, code string) (*model.DiscountVoucher, error) {
	return getVoucherByCode(ctx, s.db, code, false)
}

func (s *Store) BookingByID(ctx context.Context, id uint64) (*model.Booking, error) {
	return getBooking(ctx, s.db, id, false)
}

type storeTx struct {
	tx *sql.Tx
}

func (t *storeTx) PackageByID(ctx context.Context, id uint64) (*model.Package, error) {
	return getPackage(ctx, t.tx, id)
}

func (t *storeTx) LockTimeSlot(ctx context.Context, id uint64) (*model.TimeSlot, error) {
	return getTimeSlot(ctx, t.tx, id, true)
}

func (t *storeTx) HolidayOn(ctx context.Context, date string) (*model.Holiday, error) {
	return activeHoliday(ctx, t.tx, date)
}

func (t *storeTx) BookedChildren(ctx context.Context, slotID uint64, date string) (uint32, error) {
	return bookedChildren(ctx, t.tx, slotID, date, true)
}

func (t *storeTx) LockVoucher(ctx context.Context, code string) (*model.DiscountVoucher, error) {
	return getVoucherByCode(ctx, t.tx, code, true)
}

func (t *storeTx) IncrementVoucherUsage(ctx context.Context, voucherID uint64) error {
	ok, err := incrementVoucherUsage(ctx, t.tx, voucherID)
	if err != nil {
		return err
	}
	if !ok {
		return booking.ErrVoucherExhausted
	}
	return nil
}

func (t *storeTx) InsertBooking(ctx context.Context, b *model.Booking) error {
	res, err := t.tx.ExecContext(ctx,
		`INSERT INTO bookings
		   (reference, user_id, package_id, time_slot_id, booking_date, number_of_children,
		    subtotal, discount, total_amount, voucher_code, status, payment_ref,
		    parent_name, parent_phone, parent_email, notes, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		b.Reference, b.UserID, b.PackageID, b.TimeSlotID, b.Date, b.NumberOfChildren,
		b.Subtotal, b.Discount, b.TotalAmount, nullString(b.VoucherCode), b.Status, nullString(b.PaymentRef),
		b.ParentName, b.ParentPhone, nullString(b.ParentEmail), nullString(b.Notes), b.CreatedAt, b.UpdatedAt)
	if err != nil {
		return mapErr(err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return err
	}
	b.ID = uint64(id)
	return nil
}

func (t *storeTx) InsertRedemption(ctx context.Context, r *model.VoucherRedemption) error {
	return insertRedemption(ctx, t.tx, r)
}

func (t *storeTx) LockBooking(ctx context.Context, id uint64) (*model.Booking, error) {
	return getBooking(ctx, t.tx, id, true)
}

func (t *storeTx) UpdateBookingStatus(ctx context.Context, b *model.Booking) error {
	res, err := t.tx.ExecContext(ctx,
		`UPDATE bookings SET status = ?, payment_ref = ?, updated_at = ? WHERE id = ?`,
		b.Status, nullString(b.PaymentRef), b.UpdatedAt, b.ID)
	if err != nil {
		return err
	}
	return affected(res)
}
