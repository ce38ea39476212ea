package repository

import (
	"context"
	"database/sql"
	"strings"

	"github.com/iliyamo/playhouse-booking/internal/model"
)

// BookingRepo serves booking reads for customer and admin listings.
// Writes go through Store so that admission and status changes run under
// row locks.
type BookingRepo struct {
	db *sql.DB
}

func NewBookingRepo(db *sql.DB) *BookingRepo { return &BookingRepo{db: db} }

const bookingColumns = `id, reference, user_id, package_id, time_slot_id, DATE_FORMAT(booking_date, '%Y-%m-%d'),
	number_of_children, subtotal, discount, total_amount, voucher_code, status, payment_ref,
	parent_name, parent_phone, parent_email, notes, created_at, updated_at`

func scanBooking(row rowScanner) (*model.Booking, error) {
	var b model.Booking
	var voucher, payment, email, notesCol sql.NullString
	if err := row.Scan(&b.ID, &b.Reference, &b.UserID, &b.PackageID, &b.TimeSlotID, &b.Date,
		&b.NumberOfChildren, &b.Subtotal, &b.Discount, &b.TotalAmount, &voucher, &b.Status, &payment,
		&b.ParentName, &b.ParentPhone, &email, &notesCol, &b.CreatedAt, &b.UpdatedAt); err != nil {
		return nil, mapErr(err)
	}
	b.VoucherCode = stringPtr(voucher)
	b.PaymentRef = stringPtr(payment)
	b.ParentEmail = stringPtr(email)
	b.Notes = stringPtr(notesCol)
	return &b, nil
}

func scanBookings(rows *sql.Rows) ([]model.Booking, error) {
	defer rows.Close()
	out := []model.Booking{}
	for rows.Next() {
		b, err := scanBooking(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *b)
	}
	return out, rows.Err()
}

func getBooking(ctx context.Context, q querier, id uint64, lock bool) (*model.Booking, error) {
	query := `SELECT ` + bookingColumns + ` FROM bookings WHERE id = ?`
	if lock {
		query += ` FOR UPDATE`
	}
	return scanBooking(q.QueryRowContext(ctx, query, id))
}

// bookedChildrenQuery sums children of non-cancelled bookings for one
// slot and date.  With lock set the read is FOR SHARE, which bypasses the
// transaction snapshot.
func bookedChildrenQuery(lock bool) string {
	query := `SELECT COALESCE(SUM(number_of_children), 0) FROM bookings
		 WHERE time_slot_id = ? AND booking_date = ? AND status <> ?`
	if lock {
		query += ` FOR SHARE`
	}
	return query
}

func bookedChildren(ctx context.Context, q querier, slotID uint64, date string, lock bool) (uint32, error) {
	var sum uint32
	err := q.QueryRowContext(ctx, bookedChildrenQuery(lock), slotID, date, model.StatusCancelled).Scan(&sum)
	return sum, err
}

func bookedBySlot(ctx context.Context, q querier, date string) (map[uint64]uint32, error) {
	rows, err := q.QueryContext(ctx,
		`SELECT time_slot_id, COALESCE(SUM(number_of_children), 0) FROM bookings
		 WHERE booking_date = ? AND status <> ?
		 GROUP BY time_slot_id`,
		date, model.StatusCancelled)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make(map[uint64]uint32)
	for rows.Next() {
		var (
			slotID uint64
			sum    uint32
		)
		if err := rows.Scan(&slotID, &sum); err != nil {
			return nil, err
		}
		out[slotID] = sum
	}
	return out, rows.Err()
}

func (r *BookingRepo) GetByID(ctx context.Context, id uint64) (*model.Booking, error) {
	return getBooking(ctx, r.db, id, false)
}

// ListByUser returns a customer's bookings, newest first.
func (r *BookingRepo) ListByUser(ctx context.Context, userID uint64, limit, offset int) ([]model.Booking, error) {
	return r.List(ctx, model.BookingFilter{UserID: userID, Limit: limit, Offset: offset})
}

// List returns bookings matching f, newest first.  Limit defaults to 50.
func (r *BookingRepo) List(ctx context.Context, f model.BookingFilter) ([]model.Booking, error) {
	var (
		where []string
		args  []interface{}
	)
	if f.Status != "" {
		where = append(where, "status = ?")
		args = append(args, f.Status)
	}
	if f.Date != "" {
		where = append(where, "booking_date = ?")
		args = append(args, f.Date)
	}
	if f.TimeSlotID != 0 {
		where = append(where, "time_slot_id = ?")
		args = append(args, f.TimeSlotID)
	}
	if f.UserID != 0 {
		where = append(where, "user_id = ?")
		args = append(args, f.UserID)
	}

	query := `SELECT ` + bookingColumns + ` FROM bookings`
	if len(where) > 0 {
		query += ` WHERE ` + strings.Join(where, " AND ")
	}
	limit := f.Limit
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	query += ` ORDER BY id DESC LIMIT ? OFFSET ?`
	args = append(args, limit, f.Offset)

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	return scanBookings(rows)
}

// BookedBySlot returns occupied children per slot on date.
func (r *BookingRepo) BookedBySlot(ctx context.Context, date string) (map[uint64]uint32, error) {
	return bookedBySlot(ctx, r.db, date)
}
