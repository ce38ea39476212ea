package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/iliyamo/playhouse-booking/internal/booking"
	"github.com/iliyamo/playhouse-booking/internal/model"
)

// DB is an in-memory booking.Store.  Transactions are serialised by a
// single mutex and undone through recorded rollback actions.
type DB struct {
	mu          sync.Mutex
	packages    map[uint64]*model.Package
	slots       map[uint64]*model.TimeSlot
	holidays    map[string]*model.Holiday
	vouchers    map[string]*model.DiscountVoucher
	bookings    map[uint64]*model.Booking
	redemptions []model.VoucherRedemption
	nextID      uint64
}

func New() *DB {
	return &DB{
		packages: make(map[uint64]*model.Package),
		slots:    make(map[uint64]*model.TimeSlot),
		holidays: make(map[string]*model.Holiday),
		vouchers: make(map[string]*model.DiscountVoucher),
		bookings: make(map[uint64]*model.Booking),
	}
}

func (db *DB) id() uint64 {
	db.nextID++
	return db.nextID
}

// AddPackage stores p, assigning an ID when it has none.
func (db *DB) AddPackage(p model.Package) model.Package {
	db.mu.Lock()
	defer db.mu.Unlock()
	if p.ID == 0 {
		p.ID = db.id()
	}
	db.packages[p.ID] = &p
	return p
}

func (db *DB) AddTimeSlot(s model.TimeSlot) model.TimeSlot {
	db.mu.Lock()
	defer db.mu.Unlock()
	if s.ID == 0 {
		s.ID = db.id()
	}
	db.slots[s.ID] = &s
	return s
}

func (db *DB) AddHoliday(h model.Holiday) model.Holiday {
	db.mu.Lock()
	defer db.mu.Unlock()
	if h.ID == 0 {
		h.ID = db.id()
	}
	db.holidays[h.Date] = &h
	return h
}

func (db *DB) AddVoucher(v model.DiscountVoucher) model.DiscountVoucher {
	db.mu.Lock()
	defer db.mu.Unlock()
	if v.ID == 0 {
		v.ID = db.id()
	}
	v.Code = booking.NormalizeCode(v.Code)
	db.vouchers[v.Code] = &v
	return v
}

// AddBooking stores b as is, bypassing admission.  Used to seed occupancy.
func (db *DB) AddBooking(b model.Booking) model.Booking {
	db.mu.Lock()
	defer db.mu.Unlock()
	if b.ID == 0 {
		b.ID = db.id()
	}
	db.bookings[b.ID] = &b
	return b
}

// Redemptions returns every recorded voucher redemption.
func (db *DB) Redemptions() []model.VoucherRedemption {
	db.mu.Lock()
	defer db.mu.Unlock()
	return append([]model.VoucherRedemption(nil), db.redemptions...)
}

func (db *DB) WithTx(ctx context.Context, fn func(ctx context.Context, tx booking.Tx) error) error {
	db.mu.Lock()
	defer db.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return err
	}

	trx := &transaction{db: db}
	if err := fn(ctx, trx); err != nil {
		for i := len(trx.rollbackActions) - 1; i >= 0; i-- {
			trx.rollbackActions[i]()
		}
		return err
	}
	return nil
}

func (db *DB) PackageByID(_ context.Context, id uint64) (*model.Package, error) {
	db.mu.Lock()
	defer db.mu.Unlock()
	return db.packageByID(id)
}

func (db *DB) packageByID(id uint64) (*model.Package, error) {
	p, ok := db.packages[id]
	if !ok {
		return nil, fmt.Errorf("package %d: %w", id, booking.ErrNotFound)
	}
	out := *p
	return &out, nil
}

func (db *DB) TimeSlotByID(_ context.Context, id uint64) (*model.TimeSlot, error) {
	db.mu.Lock()
	defer db.mu.Unlock()
	return db.slotByID(id)
}

func (db *DB) slotByID(id uint64) (*model.TimeSlot, error) {
	s, ok := db.slots[id]
	if !ok {
		return nil, fmt.Errorf("time slot %d: %w", id, booking.ErrNotFound)
	}
	out := *s
	return &out, nil
}

func (db *DB) ListTimeSlots(_ context.Context, activeOnly bool) ([]model.TimeSlot, error) {
	db.mu.Lock()
	defer db.mu.Unlock()

	out := make([]model.TimeSlot, 0, len(db.slots))
	for _, s := range db.slots {
		if activeOnly && !s.IsActive {
			continue
		}
		out = append(out, *s)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].StartTime != out[j].StartTime {
			return out[i].StartTime < out[j].StartTime
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

func (db *DB) HolidayOn(_ context.Context, date string) (*model.Holiday, error) {
	db.mu.Lock()
	defer db.mu.Unlock()
	return db.holidayOn(date), nil
}

func (db *DB) holidayOn(date string) *model.Holiday {
	h, ok := db.holidays[date]
	if !ok || !h.IsActive {
		return nil
	}
	out := *h
	return &out
}

func (db *DB) BookedBySlot(_ context.Context, date string) (map[uint64]uint32, error) {
	db.mu.Lock()
	defer db.mu.Unlock()

	out := make(map[uint64]uint32)
	for _, b := range db.bookings {
		if b.Date == date && b.HoldsCapacity() {
			out[b.TimeSlotID] += b.NumberOfChildren
		}
	}
	return out, nil
}

func (db *DB) bookedChildren(slotID uint64, date string) uint32 {
	var sum uint32
	for _, b := range db.bookings {
		if b.TimeSlotID == slotID && b.Date == date && b.HoldsCapacity() {
			sum += b.NumberOfChildren
		}
	}
	return sum
}

func (db *DB) VoucherByCode(_ context.Context, code string) (*model.DiscountVoucher, error) {
	db.mu.Lock()
	defer db.mu.Unlock()
	return db.voucherByCode(code)
}

func (db *DB) voucherByCode(code string) (*model.DiscountVoucher, error) {
	v, ok := db.vouchers[booking.NormalizeCode(code)]
	if !ok {
		return nil, fmt.Errorf("voucher %s: %w", code, booking.ErrNotFound)
	}
	out := *v
	out.ApplicablePackages = append([]string(nil), v.ApplicablePackages...)
	return &out, nil
}

func (db *DB) BookingByID(_ context.Context, id uint64) (*model.Booking, error) {
	db.mu.Lock()
	defer db.mu.Unlock()
	return db.bookingByID(id)
}

func (db *DB) bookingByID(id uint64) (*model.Booking, error) {
	b, ok := db.bookings[id]
	if !ok {
		return nil, fmt.Errorf("booking %d: %w", id, booking.ErrNotFound)
	}
	out := *b
	return &out, nil
}
