package memory

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/iliyamo/playhouse-booking/internal/booking"
	"github.com/iliyamo/playhouse-booking/internal/model"
	"github.com/iliyamo/playhouse-booking/internal/repository"
)

// Packages, TimeSlots, Holidays, Vouchers and Bookings expose the DB with
// the method sets of the matching repository types.

type Packages struct{ db *DB }

func (db *DB) Packages() Packages { return Packages{db: db} }

func (r Packages) GetByID(ctx context.Context, id uint64) (*model.Package, error) {
	return r.db.PackageByID(ctx, id)
}

// List returns packages ordered by price, then id.
func (r Packages) List(_ context.Context, activeOnly bool) ([]model.Package, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	out := []model.Package{}
	for _, p := range r.db.packages {
		if activeOnly && !p.IsActive {
			continue
		}
		out = append(out, *p)
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].Price.Equal(out[j].Price) {
			return out[i].Price.LessThan(out[j].Price)
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

func (r Packages) Create(_ context.Context, p *model.Package) error {
	p.ID = 0
	p.CreatedAt = time.Now().UTC()
	p.UpdatedAt = p.CreatedAt
	*p = r.db.AddPackage(*p)
	return nil
}

func (r Packages) Update(_ context.Context, p *model.Package) error {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	cur, ok := r.db.packages[p.ID]
	if !ok {
		return fmt.Errorf("package %d: %w", p.ID, booking.ErrNotFound)
	}
	if r.db.referenced(func(b *model.Booking) bool { return b.PackageID == p.ID }) && !samePackageTerms(*cur, *p) {
		return repository.ErrPackageInUse
	}
	p.CreatedAt = cur.CreatedAt
	p.UpdatedAt = time.Now().UTC()
	stored := *p
	r.db.packages[p.ID] = &stored
	return nil
}

func samePackageTerms(cur, next model.Package) bool {
	sameDesc := (cur.Description == nil) == (next.Description == nil) &&
		(cur.Description == nil || *cur.Description == *next.Description)
	return cur.Name == next.Name && cur.Type == next.Type && sameDesc &&
		cur.DurationMinutes == next.DurationMinutes && cur.MaxChildren == next.MaxChildren
}

func (r Packages) Delete(_ context.Context, id uint64) error {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	if _, ok := r.db.packages[id]; !ok {
		return fmt.Errorf("package %d: %w", id, booking.ErrNotFound)
	}
	if r.db.referenced(func(b *model.Booking) bool { return b.PackageID == id }) {
		return repository.ErrConflict
	}
	delete(r.db.packages, id)
	return nil
}

// referenced reports whether any booking matches; db.mu must be held.
func (db *DB) referenced(match func(*model.Booking) bool) bool {
	for _, b := range db.bookings {
		if match(b) {
			return true
		}
	}
	return false
}

type TimeSlots struct{ db *DB }

func (db *DB) TimeSlots() TimeSlots { return TimeSlots{db: db} }

func (r TimeSlots) GetByID(ctx context.Context, id uint64) (*model.TimeSlot, error) {
	return r.db.TimeSlotByID(ctx, id)
}

func (r TimeSlots) List(ctx context.Context, activeOnly bool) ([]model.TimeSlot, error) {
	return r.db.ListTimeSlots(ctx, activeOnly)
}

func (r TimeSlots) Create(_ context.Context, s *model.TimeSlot) error {
	s.ID = 0
	s.CreatedAt = time.Now().UTC()
	s.UpdatedAt = s.CreatedAt
	*s = r.db.AddTimeSlot(*s)
	return nil
}

func (r TimeSlots) Update(_ context.Context, s *model.TimeSlot) error {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	cur, ok := r.db.slots[s.ID]
	if !ok {
		return fmt.Errorf("time slot %d: %w", s.ID, booking.ErrNotFound)
	}
	s.CreatedAt = cur.CreatedAt
	s.UpdatedAt = time.Now().UTC()
	stored := *s
	r.db.slots[s.ID] = &stored
	return nil
}

func (r TimeSlots) Delete(_ context.Context, id uint64) error {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	if _, ok := r.db.slots[id]; !ok {
		return fmt.Errorf("time slot %d: %w", id, booking.ErrNotFound)
	}
	if r.db.referenced(func(b *model.Booking) bool { return b.TimeSlotID == id }) {
		return repository.ErrConflict
	}
	delete(r.db.slots, id)
	return nil
}

type Holidays struct{ db *DB }

func (db *DB) Holidays() Holidays { return Holidays{db: db} }

// List returns entries in [from, to]; empty bounds are open.
func (r Holidays) List(_ context.Context, from, to string) ([]model.Holiday, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	out := []model.Holiday{}
	for _, h := range r.db.holidays {
		if (from != "" && h.Date < from) || (to != "" && h.Date > to) {
			continue
		}
		out = append(out, *h)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Date < out[j].Date })
	return out, nil
}

func (r Holidays) Create(_ context.Context, h *model.Holiday) error {
	r.db.mu.Lock()
	if _, ok := r.db.holidays[h.Date]; ok {
		r.db.mu.Unlock()
		return repository.ErrDuplicate
	}
	r.db.mu.Unlock()
	h.ID = 0
	h.CreatedAt = time.Now().UTC()
	*h = r.db.AddHoliday(*h)
	return nil
}

func (r Holidays) find(id uint64) (*model.Holiday, error) {
	for _, h := range r.db.holidays {
		if h.ID == id {
			return h, nil
		}
	}
	return nil, fmt.Errorf("holiday %d: %w", id, booking.ErrNotFound)
}

// Update changes the reason and active flag of an entry.
func (r Holidays) Update(_ context.Context, h *model.Holiday) error {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	cur, err := r.find(h.ID)
	if err != nil {
		return err
	}
	cur.Reason = h.Reason
	cur.IsActive = h.IsActive
	*h = *cur
	return nil
}

func (r Holidays) Delete(_ context.Context, id uint64) error {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	h, err := r.find(id)
	if err != nil {
		return err
	}
	delete(r.db.holidays, h.Date)
	return nil
}

type Vouchers struct{ db *DB }

func (db *DB) Vouchers() Vouchers { return Vouchers{db: db} }

func (r Vouchers) byID(id uint64) (*model.DiscountVoucher, error) {
	for _, v := range r.db.vouchers {
		if v.ID == id {
			return v, nil
		}
	}
	return nil, fmt.Errorf("voucher %d: %w", id, booking.ErrNotFound)
}

func (r Vouchers) GetByID(_ context.Context, id uint64) (*model.DiscountVoucher, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	v, err := r.byID(id)
	if err != nil {
		return nil, err
	}
	out := *v
	return &out, nil
}

func (r Vouchers) GetByCode(ctx context.Context, code string) (*model.DiscountVoucher, error) {
	return r.db.VoucherByCode(ctx, code)
}

func (r Vouchers) List(_ context.Context) ([]model.DiscountVoucher, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	out := []model.DiscountVoucher{}
	for _, v := range r.db.vouchers {
		out = append(out, *v)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID > out[j].ID })
	return out, nil
}

func (r Vouchers) Create(_ context.Context, v *model.DiscountVoucher) error {
	r.db.mu.Lock()
	if _, ok := r.db.vouchers[booking.NormalizeCode(v.Code)]; ok {
		r.db.mu.Unlock()
		return repository.ErrDuplicate
	}
	r.db.mu.Unlock()
	v.ID = 0
	v.UsedCount = 0
	v.CreatedAt = time.Now().UTC()
	v.UpdatedAt = v.CreatedAt
	*v = r.db.AddVoucher(*v)
	return nil
}

// Update overwrites the voucher terms but never the used count.  A usage
// limit below the used count yields ErrConflict.
func (r Vouchers) Update(_ context.Context, v *model.DiscountVoucher) error {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	cur, err := r.byID(v.ID)
	if err != nil {
		return err
	}
	if v.UsageLimit < cur.UsedCount {
		return repository.ErrConflict
	}
	code := booking.NormalizeCode(v.Code)
	if other, ok := r.db.vouchers[code]; ok && other.ID != v.ID {
		return repository.ErrDuplicate
	}
	delete(r.db.vouchers, cur.Code)
	next := *v
	next.Code = code
	next.UsedCount = cur.UsedCount
	next.CreatedAt = cur.CreatedAt
	next.UpdatedAt = time.Now().UTC()
	r.db.vouchers[code] = &next
	*v = next
	return nil
}

func (r Vouchers) Delete(_ context.Context, id uint64) error {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	v, err := r.byID(id)
	if err != nil {
		return err
	}
	for _, red := range r.db.redemptions {
		if red.VoucherID == id {
			return repository.ErrConflict
		}
	}
	delete(r.db.vouchers, v.Code)
	return nil
}

// Redemptions lists the uses of a voucher, newest first.
func (r Vouchers) Redemptions(_ context.Context, voucherID uint64) ([]model.VoucherRedemption, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	out := []model.VoucherRedemption{}
	for i := len(r.db.redemptions) - 1; i >= 0; i-- {
		if r.db.redemptions[i].VoucherID == voucherID {
			out = append(out, r.db.redemptions[i])
		}
	}
	return out, nil
}

type Bookings struct{ db *DB }

func (db *DB) Bookings() Bookings { return Bookings{db: db} }

func (r Bookings) GetByID(ctx context.Context, id uint64) (*model.Booking, error) {
	return r.db.BookingByID(ctx, id)
}

func (r Bookings) ListByUser(ctx context.Context, userID uint64, limit, offset int) ([]model.Booking, error) {
	return r.List(ctx, model.BookingFilter{UserID: userID, Limit: limit, Offset: offset})
}

// List returns bookings matching f, newest first.  Limit defaults to 50.
func (r Bookings) List(_ context.Context, f model.BookingFilter) ([]model.Booking, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	out := []model.Booking{}
	for _, b := range r.db.bookings {
		switch {
		case f.Status != "" && b.Status != f.Status,
			f.Date != "" && b.Date != f.Date,
			f.TimeSlotID != 0 && b.TimeSlotID != f.TimeSlotID,
			f.UserID != 0 && b.UserID != f.UserID:
			continue
		}
		out = append(out, *b)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID > out[j].ID })

	limit := f.Limit
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	if f.Offset >= len(out) {
		return []model.Booking{}, nil
	}
	out = out[f.Offset:]
	if limit < len(out) {
		out = out[:limit]
	}
	return out, nil
}
