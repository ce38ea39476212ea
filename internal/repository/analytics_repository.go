package repository

import (
	"context"
	"database/sql"

	"github.com/shopspring/decimal"

	"github.com/iliyamo/playhouse-booking/internal/model"
)

// Summary aggregates bookings over a date range.  Revenue counts
// confirmed and completed bookings only.
type Summary struct {
	From           string          `json:"from"`
	To             string          `json:"to"`
	TotalBookings  uint64          `json:"total_bookings"`
	Pending        uint64          `json:"pending"`
	Confirmed      uint64          `json:"confirmed"`
	Completed      uint64          `json:"completed"`
	Cancelled      uint64          `json:"cancelled"`
	Children       uint64          `json:"children"`
	Revenue        decimal.Decimal `json:"revenue"`
	DiscountsGiven decimal.Decimal `json:"discounts_given"`
}

type DailyRevenue struct {
	Date     string          `json:"date"`
	Bookings uint64          `json:"bookings"`
	Revenue  decimal.Decimal `json:"revenue"`
}

type PackageBookings struct {
	PackageID uint64          `json:"package_id"`
	Name      string          `json:"name"`
	Bookings  uint64          `json:"bookings"`
	Children  uint64          `json:"children"`
	Revenue   decimal.Decimal `json:"revenue"`
}

type SlotUtilisation struct {
	SlotID      uint64  `json:"slot_id"`
	Label       string  `json:"label"`
	MaxCapacity uint32  `json:"max_capacity"`
	Booked      uint32  `json:"booked"`
	Utilisation float64 `json:"utilisation"`
}

// AnalyticsRepo runs the admin dashboard queries.
type AnalyticsRepo struct {
	db *sql.DB
}

func NewAnalyticsRepo(db *sql.DB) *AnalyticsRepo { return &AnalyticsRepo{db: db} }

// Summary counts bookings whose session date falls in [from, to].
func (r *AnalyticsRepo) Summary(ctx context.Context, from, to string) (Summary, error) {
	s := Summary{From: from, To: to}
	err := r.db.QueryRowContext(ctx,
		`SELECT COUNT(*),
		        COALESCE(SUM(status = 'pending'), 0),
		        COALESCE(SUM(status = 'confirmed'), 0),
		        COALESCE(SUM(status = 'completed'), 0),
		        COALESCE(SUM(status = 'cancelled'), 0),
		        COALESCE(SUM(CASE WHEN status <> 'cancelled' THEN number_of_children ELSE 0 END), 0),
		        COALESCE(SUM(CASE WHEN status IN ('confirmed', 'completed') THEN total_amount ELSE 0 END), 0),
		        COALESCE(SUM(CASE WHEN status IN ('confirmed', 'completed') THEN discount ELSE 0 END), 0)
		 FROM bookings WHERE booking_date BETWEEN ? AND ?`,
		from, to).Scan(&s.TotalBookings, &s.Pending, &s.Confirmed, &s.Completed, &s.Cancelled,
		&s.Children, &s.Revenue, &s.DiscountsGiven)
	return s, err
}

// RevenueByDay returns paid revenue per session date in [from, to].
func (r *AnalyticsRepo) RevenueByDay(ctx context.Context, from, to string) ([]DailyRevenue, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT DATE_FORMAT(booking_date, '%Y-%m-%d'), COUNT(*), COALESCE(SUM(total_amount), 0)
		 FROM bookings
		 WHERE booking_date BETWEEN ? AND ? AND status IN (?, ?)
		 GROUP BY booking_date ORDER BY booking_date`,
		from, to, model.StatusConfirmed, model.StatusCompleted)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []DailyRevenue{}
	for rows.Next() {
		var d DailyRevenue
		if err := rows.Scan(&d.Date, &d.Bookings, &d.Revenue); err != nil {
			return nil, err
		}
		out = append(out, d)
	}
	return out, rows.Err()
}

// BookingsByPackage groups non-cancelled bookings in [from, to] by package.
func (r *AnalyticsRepo) BookingsByPackage(ctx context.Context, from, to string) ([]PackageBookings, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT p.id, p.name, COUNT(b.id), COALESCE(SUM(b.number_of_children), 0), COALESCE(SUM(b.total_amount), 0)
		 FROM packages p
		 JOIN bookings b ON b.package_id = p.id
		 WHERE b.booking_date BETWEEN ? AND ? AND b.status <> ?
		 GROUP BY p.id, p.name ORDER BY COUNT(b.id) DESC, p.id`,
		from, to, model.StatusCancelled)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []PackageBookings{}
	for rows.Next() {
		var p PackageBookings
		if err := rows.Scan(&p.PackageID, &p.Name, &p.Bookings, &p.Children, &p.Revenue); err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

// SlotUtilisation reports how full each active slot is on date.
func (r *AnalyticsRepo) SlotUtilisation(ctx context.Context, date string) ([]SlotUtilisation, error) {
	slots, err := listTimeSlots(ctx, r.db, true)
	if err != nil {
		return nil, err
	}
	booked, err := bookedBySlot(ctx, r.db, date)
	if err != nil {
		return nil, err
	}

	out := make([]SlotUtilisation, 0, len(slots))
	for _, s := range slots {
		u := SlotUtilisation{SlotID: s.ID, Label: s.Label, MaxCapacity: s.MaxCapacity, Booked: booked[s.ID]}
		if s.MaxCapacity > 0 {
			u.Utilisation = float64(u.Booked) / float64(s.MaxCapacity)
		}
		out = append(out, u)
	}
	return out, nil
}
