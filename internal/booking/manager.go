package booking

import (
	"context"
	"errors"
	"fmt"
	"net/mail"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/iliyamo/playhouse-booking/internal/model"
)

const dateLayout = "2006-01-02"

// Config tunes a Manager.  Zero values pick UTC, the wall clock, uuid
// references and a five second notification timeout.
type Config struct {
	Location      *time.Location
	NotifyTimeout time.Duration
	Now           func() time.Time
	NewReference  func() string
}

// Manager owns booking creation and status changes.
type Manager struct {
	l             Logger
	store         Store
	notifier      Notifier
	loc           *time.Location
	notifyTimeout time.Duration
	now           func() time.Time
	newRef        func() string
}

func New(l Logger, store Store, notifier Notifier, conf Config) *Manager {
	m := &Manager{
		l:             l,
		store:         store,
		notifier:      notifier,
		loc:           conf.Location,
		notifyTimeout: conf.NotifyTimeout,
		now:           conf.Now,
		newRef:        conf.NewReference,
	}
	if m.notifier == nil {
		m.notifier = nopNotifier{}
	}
	if m.loc == nil {
		m.loc = time.UTC
	}
	if m.notifyTimeout <= 0 {
		m.notifyTimeout = 5 * time.Second
	}
	if m.now == nil {
		m.now = time.Now
	}
	if m.newRef == nil {
		m.newRef = uuid.NewString
	}
	return m
}

// Today returns the current calendar date at the venue.
func (m *Manager) Today() string {
	return m.now().In(m.loc).Format(dateLayout)
}

// Actor is the caller of a status change.
type Actor struct {
	UserID  uint64
	IsAdmin bool
}

// CreateInput is a customer's booking request.
type CreateInput struct {
	UserID           uint64
	PackageID        uint64
	TimeSlotID       uint64
	Date             string
	NumberOfChildren uint32
	VoucherCode      string
	ParentName       string
	ParentPhone      string
	ParentEmail      string
	Notes            string
}

func (in *CreateInput) validate(today string) error {
	inputErr := newInputError()

	if in.UserID == 0 {
		inputErr.addError("user_id", "provide user_id")
	}
	if in.PackageID == 0 {
		inputErr.addError("package_id", "provide package_id")
	}
	if in.TimeSlotID == 0 {
		inputErr.addError("time_slot_id", "provide time_slot_id")
	}
	if err := validDate(in.Date); err != nil {
		inputErr.addError("date", "date must be YYYY-MM-DD")
	} else if in.Date < today {
		inputErr.addError("date", "date must not be in the past")
	}
	if in.NumberOfChildren < 1 {
		inputErr.addError("number_of_children", "book at least one child")
	}
	if strings.TrimSpace(in.ParentName) == "" {
		inputErr.addError("parent_name", "provide parent_name")
	}
	if strings.TrimSpace(in.ParentPhone) == "" {
		inputErr.addError("parent_phone", "provide parent_phone")
	}
	if in.ParentEmail != "" {
		if _, err := mail.ParseAddress(in.ParentEmail); err != nil {
			inputErr.addError("parent_email", "provide valid email")
		}
	}

	if inputErr.fieldsCount() > 0 {
		return inputErr
	}
	return nil
}

func validDate(s string) error {
	_, err := time.Parse(dateLayout, s)
	return err
}

// CreateBooking admits and prices a booking and stores it as pending.
// The slot row stays locked from the occupancy read until the insert,
// and a voucher use is claimed with a guarded increment in the same
// transaction.
func (m *Manager) CreateBooking(ctx context.Context, in CreateInput) (*model.Booking, error) {
	today := m.Today()
	if err := in.validate(today); err != nil {
		return nil, err
	}
	code := NormalizeCode(in.VoucherCode)

	var created model.Booking
	err := m.store.WithTx(ctx, func(ctx context.Context, tx Tx) error {
		pkg, err := tx.PackageByID(ctx, in.PackageID)
		if err != nil {
			return fmt.Errorf("load package %d: %w", in.PackageID, err)
		}
		if !pkg.IsActive {
			return ErrPackageInactive
		}
		if pkg.MaxChildren > 0 && in.NumberOfChildren > pkg.MaxChildren {
			inputErr := newInputError()
			inputErr.addError("number_of_children", fmt.Sprintf("at most %d children for %s", pkg.MaxChildren, pkg.Name))
			return inputErr
		}

		slot, err := tx.LockTimeSlot(ctx, in.TimeSlotID)
		if err != nil {
			return fmt.Errorf("lock time slot %d: %w", in.TimeSlotID, err)
		}
		holiday, err := tx.HolidayOn(ctx, in.Date)
		if err != nil {
			return fmt.Errorf("load holiday for %s: %w", in.Date, err)
		}
		booked, err := tx.BookedChildren(ctx, slot.ID, in.Date)
		if err != nil {
			return fmt.Errorf("sum bookings for slot %d: %w", slot.ID, err)
		}
		if err := Admit(in.Date, *slot, holiday, booked, in.NumberOfChildren); err != nil {
			return err
		}

		subtotal := pkg.OrderAmount(in.NumberOfChildren)
		discount := decimal.Zero
		var voucher *model.DiscountVoucher
		if code != "" {
			voucher, err = tx.LockVoucher(ctx, code)
			if errors.Is(err, ErrNotFound) {
				return ErrVoucherNotFound
			}
			if err != nil {
				return fmt.Errorf("lock voucher %s: %w", code, err)
			}
			if err := CheckVoucher(voucher, subtotal, pkg.Type, today); err != nil {
				return err
			}
			discount = ComputeDiscount(*voucher, subtotal)
			if err := tx.IncrementVoucherUsage(ctx, voucher.ID); err != nil {
				return fmt.Errorf("claim voucher %s: %w", code, err)
			}
		}

		now := m.now().UTC()
		quote := newQuote(subtotal, discount)
		b := model.Booking{
			Reference:        m.newRef(),
			UserID:           in.UserID,
			PackageID:        pkg.ID,
			TimeSlotID:       slot.ID,
			Date:             in.Date,
			NumberOfChildren: in.NumberOfChildren,
			Subtotal:         quote.Subtotal,
			Discount:         quote.Discount,
			TotalAmount:      quote.Total,
			Status:           model.StatusPending,
			ParentName:       strings.TrimSpace(in.ParentName),
			ParentPhone:      strings.TrimSpace(in.ParentPhone),
			CreatedAt:        now,
			UpdatedAt:        now,
		}
		if voucher != nil {
			b.VoucherCode = &voucher.Code
		}
		if in.ParentEmail != "" {
			email := in.ParentEmail
			b.ParentEmail = &email
		}
		if notes := strings.TrimSpace(in.Notes); notes != "" {
			b.Notes = &notes
		}
		if err := tx.InsertBooking(ctx, &b); err != nil {
			return fmt.Errorf("insert booking: %w", err)
		}

		if voucher != nil {
			r := model.VoucherRedemption{
				VoucherID:  voucher.ID,
				BookingID:  b.ID,
				UserID:     b.UserID,
				Discount:   discount,
				RedeemedAt: now,
			}
			if err := tx.InsertRedemption(ctx, &r); err != nil {
				return fmt.Errorf("record redemption: %w", err)
			}
		}

		created = b
		return nil
	})
	if err != nil {
		return nil, err
	}

	m.l.Infof("booking %s created: slot %d on %s, %d children, total %s",
		created.Reference, created.TimeSlotID, created.Date, created.NumberOfChildren, created.TotalAmount)
	return &created, nil
}

// ConfirmBooking marks a pending booking as paid and notifies the
// customer.  Notification failures are logged and do not undo the
// confirmation.
func (m *Manager) ConfirmBooking(ctx context.Context, id uint64, paymentRef string) (*model.Booking, error) {
	var ref *string
	if paymentRef = strings.TrimSpace(paymentRef); paymentRef != "" {
		ref = &paymentRef
	}
	b, err := m.transition(ctx, id, model.StatusConfirmed, Actor{IsAdmin: true}, ref)
	if err != nil {
		return nil, err
	}
	m.notifyConfirmed(ctx, *b)
	return b, nil
}

// CompleteBooking closes a confirmed booking after the visit.
func (m *Manager) CompleteBooking(ctx context.Context, id uint64) (*model.Booking, error) {
	return m.transition(ctx, id, model.StatusCompleted, Actor{IsAdmin: true}, nil)
}

// CancelBooking cancels a pending or confirmed booking, freeing its
// seats.  Customers may cancel only their own bookings.  A redeemed
// voucher use is not returned.
func (m *Manager) CancelBooking(ctx context.Context, id uint64, actor Actor) (*model.Booking, error) {
	return m.transition(ctx, id, model.StatusCancelled, actor, nil)
}

// UpdateStatus applies an admin status change by target name.
func (m *Manager) UpdateStatus(ctx context.Context, id uint64, status, paymentRef string) (*model.Booking, error) {
	switch status {
	case model.StatusConfirmed:
		return m.ConfirmBooking(ctx, id, paymentRef)
	case model.StatusCompleted:
		return m.CompleteBooking(ctx, id)
	case model.StatusCancelled:
		return m.CancelBooking(ctx, id, Actor{IsAdmin: true})
	default:
		b, err := m.store.BookingByID(ctx, id)
		if err != nil {
			return nil, fmt.Errorf("load booking %d: %w", id, err)
		}
		return nil, &InvalidStateTransitionError{From: b.Status, To: status}
	}
}

func (m *Manager) transition(ctx context.Context, id uint64, to string, actor Actor, paymentRef *string) (*model.Booking, error) {
	var updated model.Booking
	err := m.store.WithTx(ctx, func(ctx context.Context, tx Tx) error {
		b, err := tx.LockBooking(ctx, id)
		if err != nil {
			return fmt.Errorf("lock booking %d: %w", id, err)
		}
		if !actor.IsAdmin && b.UserID != actor.UserID {
			return ErrForbidden
		}
		from := b.Status
		if err := Transition(b, to); err != nil {
			return err
		}
		if paymentRef != nil {
			b.PaymentRef = paymentRef
		}
		b.UpdatedAt = m.now().UTC()
		if err := tx.UpdateBookingStatus(ctx, b); err != nil {
			return fmt.Errorf("update booking %d %s->%s: %w", id, from, to, err)
		}
		updated = *b
		return nil
	})
	if err != nil {
		return nil, err
	}

	m.l.Infof("booking %s is now %s", updated.Reference, updated.Status)
	return &updated, nil
}

func (m *Manager) notifyConfirmed(ctx context.Context, b model.Booking) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), m.notifyTimeout)
	defer cancel()

	pkg, err := m.store.PackageByID(ctx, b.PackageID)
	if err != nil {
		m.l.Warnf("notify booking %s: load package: %v", b.Reference, err)
		return
	}
	slot, err := m.store.TimeSlotByID(ctx, b.TimeSlotID)
	if err != nil {
		m.l.Warnf("notify booking %s: load slot: %v", b.Reference, err)
		return
	}
	if err := m.notifier.BookingConfirmed(ctx, b, *pkg, *slot); err != nil {
		m.l.Errorf("notify booking %s: %v", b.Reference, err)
	}
}

// GetBooking returns a booking visible to actor.
func (m *Manager) GetBooking(ctx context.Context, id uint64, actor Actor) (*model.Booking, error) {
	b, err := m.store.BookingByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("load booking %d: %w", id, err)
	}
	if !actor.IsAdmin && b.UserID != actor.UserID {
		return nil, ErrForbidden
	}
	return b, nil
}

// Availability reports occupancy of every active slot on date.  On a
// holiday every slot is closed with nothing remaining.
func (m *Manager) Availability(ctx context.Context, date string) ([]model.SlotAvailability, error) {
	if err := validDate(date); err != nil {
		inputErr := newInputError()
		inputErr.addError("date", "date must be YYYY-MM-DD")
		return nil, inputErr
	}

	slots, err := m.store.ListTimeSlots(ctx, true)
	if err != nil {
		return nil, fmt.Errorf("list time slots: %w", err)
	}
	holiday, err := m.store.HolidayOn(ctx, date)
	if err != nil {
		return nil, fmt.Errorf("load holiday for %s: %w", date, err)
	}
	booked, err := m.store.BookedBySlot(ctx, date)
	if err != nil {
		return nil, fmt.Errorf("sum bookings on %s: %w", date, err)
	}

	closed := holiday != nil && holiday.IsActive
	out := make([]model.SlotAvailability, 0, len(slots))
	for _, s := range slots {
		a := model.SlotAvailability{
			Slot:      s,
			Date:      date,
			Booked:    booked[s.ID],
			Remaining: remainingSeats(s.MaxCapacity, booked[s.ID]),
			Closed:    closed,
		}
		if closed {
			a.Remaining = 0
		}
		out = append(out, a)
	}
	return out, nil
}

// PreviewInput asks what a voucher would take off an order.
type PreviewInput struct {
	Code             string
	PackageID        uint64
	NumberOfChildren uint32
}

// PreviewVoucher validates a voucher against an order without claiming a
// use.
func (m *Manager) PreviewVoucher(ctx context.Context, in PreviewInput) (Quote, error) {
	code := NormalizeCode(in.Code)
	if code == "" {
		return Quote{}, ErrVoucherNotFound
	}
	children := in.NumberOfChildren
	if children == 0 {
		children = 1
	}

	pkg, err := m.store.PackageByID(ctx, in.PackageID)
	if err != nil {
		return Quote{}, fmt.Errorf("load package %d: %w", in.PackageID, err)
	}
	subtotal := pkg.OrderAmount(children)

	v, err := m.store.VoucherByCode(ctx, code)
	if errors.Is(err, ErrNotFound) {
		return Quote{}, ErrVoucherNotFound
	}
	if err != nil {
		return Quote{}, fmt.Errorf("load voucher %s: %w", code, err)
	}
	if err := CheckVoucher(v, subtotal, pkg.Type, m.Today()); err != nil {
		return Quote{}, err
	}
	return newQuote(subtotal, ComputeDiscount(*v, subtotal)), nil
}
