package memory

import (
	"context"
	"sort"

	"github.com/shopspring/decimal"

	"github.com/iliyamo/playhouse-booking/internal/model"
	"github.com/iliyamo/playhouse-booking/internal/repository"
)

// Analytics computes the dashboard aggregates over the in-memory
// bookings with the same rules as repository.AnalyticsRepo.
type Analytics struct{ db *DB }

func (db *DB) Analytics() Analytics { return Analytics{db: db} }

func paid(b *model.Booking) bool {
	return b.Status == model.StatusConfirmed || b.Status == model.StatusCompleted
}

func (a Analytics) inRange(from, to string, fn func(b *model.Booking)) {
	for _, b := range a.db.bookings {
		if b.Date >= from && b.Date <= to {
			fn(b)
		}
	}
}

func (a Analytics) Summary(_ context.Context, from, to string) (repository.Summary, error) {
	a.db.mu.Lock()
	defer a.db.mu.Unlock()

	s := repository.Summary{From: from, To: to}
	a.inRange(from, to, func(b *model.Booking) {
		s.TotalBookings++
		switch b.Status {
		case model.StatusPending:
			s.Pending++
		case model.StatusConfirmed:
			s.Confirmed++
		case model.StatusCompleted:
			s.Completed++
		case model.StatusCancelled:
			s.Cancelled++
		}
		if b.HoldsCapacity() {
			s.Children += uint64(b.NumberOfChildren)
		}
		if paid(b) {
			s.Revenue = s.Revenue.Add(b.TotalAmount)
			s.DiscountsGiven = s.DiscountsGiven.Add(b.Discount)
		}
	})
	return s, nil
}

func (a Analytics) RevenueByDay(_ context.Context, from, to string) ([]repository.DailyRevenue, error) {
	a.db.mu.Lock()
	defer a.db.mu.Unlock()

	byDate := make(map[string]*repository.DailyRevenue)
	a.inRange(from, to, func(b *model.Booking) {
		if !paid(b) {
			return
		}
		d, ok := byDate[b.Date]
		if !ok {
			d = &repository.DailyRevenue{Date: b.Date, Revenue: decimal.Zero}
			byDate[b.Date] = d
		}
		d.Bookings++
		d.Revenue = d.Revenue.Add(b.TotalAmount)
	})

	out := make([]repository.DailyRevenue, 0, len(byDate))
	for _, d := range byDate {
		out = append(out, *d)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Date < out[j].Date })
	return out, nil
}

func (a Analytics) BookingsByPackage(_ context.Context, from, to string) ([]repository.PackageBookings, error) {
	a.db.mu.Lock()
	defer a.db.mu.Unlock()

	byPkg := make(map[uint64]*repository.PackageBookings)
	a.inRange(from, to, func(b *model.Booking) {
		if !b.HoldsCapacity() {
			return
		}
		p, ok := byPkg[b.PackageID]
		if !ok {
			p = &repository.PackageBookings{PackageID: b.PackageID, Revenue: decimal.Zero}
			if pkg, found := a.db.packages[b.PackageID]; found {
				p.Name = pkg.Name
			}
			byPkg[b.PackageID] = p
		}
		p.Bookings++
		p.Children += uint64(b.NumberOfChildren)
		p.Revenue = p.Revenue.Add(b.TotalAmount)
	})

	out := make([]repository.PackageBookings, 0, len(byPkg))
	for _, p := range byPkg {
		out = append(out, *p)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Bookings != out[j].Bookings {
			return out[i].Bookings > out[j].Bookings
		}
		return out[i].PackageID < out[j].PackageID
	})
	return out, nil
}

func (a Analytics) SlotUtilisation(ctx context.Context, date string) ([]repository.SlotUtilisation, error) {
	slots, err := a.db.ListTimeSlots(ctx, true)
	if err != nil {
		return nil, err
	}
	booked, err := a.db.BookedBySlot(ctx, date)
	if err != nil {
		return nil, err
	}

	out := make([]repository.SlotUtilisation, 0, len(slots))
	for _, s := range slots {
		u := repository.SlotUtilisation{SlotID: s.ID, Label: s.Label, MaxCapacity: s.MaxCapacity, Booked: booked[s.ID]}
		if s.MaxCapacity > 0 {
			u.Utilisation = float64(u.Booked) / float64(s.MaxCapacity)
		}
		out = append(out, u)
	}
	return out, nil
}
