package memory

import (
	"context"
	"errors"
	"testing"

	"github.com/shopspring/decimal"

	"github.com/iliyamo/playhouse-booking/internal/booking"
	"github.com/iliyamo/playhouse-booking/internal/model"
)

func TestWithTxRollsBack(t *testing.T) {
	db := New()
	v := db.AddVoucher(model.DiscountVoucher{Code: "summer", UsageLimit: 2, IsActive: true})
	ctx := context.Background()
	boom := errors.New("boom")

	err := db.WithTx(ctx, func(ctx context.Context, tx booking.Tx) error {
		if err := tx.IncrementVoucherUsage(ctx, v.ID); err != nil {
			return err
		}
		b := &model.Booking{TimeSlotID: 1, Date: "2026-10-20", NumberOfChildren: 3, Status: model.StatusPending}
		if err := tx.InsertBooking(ctx, b); err != nil {
			return err
		}
		if err := tx.InsertRedemption(ctx, &model.VoucherRedemption{VoucherID: v.ID, BookingID: b.ID, Discount: decimal.NewFromInt(5)}); err != nil {
			return err
		}
		return boom
	})
	if !errors.Is(err, boom) {
		t.Fatalf("expected boom, got %v", err)
	}

	stored, err := db.VoucherByCode(ctx, "SUMMER")
	if err != nil {
		t.Fatalf("voucher: %v", err)
	}
	if stored.UsedCount != 0 {
		t.Fatalf("expected used count rolled back, got %d", stored.UsedCount)
	}
	booked, _ := db.BookedBySlot(ctx, "2026-10-20")
	if booked[1] != 0 {
		t.Fatalf("expected booking rolled back, got %d children", booked[1])
	}
	if n := len(db.Redemptions()); n != 0 {
		t.Fatalf("expected no redemptions, got %d", n)
	}
}

func TestIncrementVoucherUsageGuard(t *testing.T) {
	db := New()
	v := db.AddVoucher(model.DiscountVoucher{Code: "ONCE", UsageLimit: 1, IsActive: true})
	ctx := context.Background()

	claim := func() error {
		return db.WithTx(ctx, func(ctx context.Context, tx booking.Tx) error {
			return tx.IncrementVoucherUsage(ctx, v.ID)
		})
	}
	if err := claim(); err != nil {
		t.Fatalf("first claim: %v", err)
	}
	if err := claim(); !errors.Is(err, booking.ErrVoucherExhausted) {
		t.Fatalf("expected ErrVoucherExhausted, got %v", err)
	}
}

func TestUpdateBookingStatusRollsBack(t *testing.T) {
	db := New()
	b := db.AddBooking(model.Booking{Status: model.StatusPending})
	ctx := context.Background()

	_ = db.WithTx(ctx, func(ctx context.Context, tx booking.Tx) error {
		locked, err := tx.LockBooking(ctx, b.ID)
		if err != nil {
			return err
		}
		locked.Status = model.StatusCancelled
		if err := tx.UpdateBookingStatus(ctx, locked); err != nil {
			return err
		}
		return errors.New("abort")
	})

	stored, err := db.BookingByID(ctx, b.ID)
	if err != nil {
		t.Fatalf("booking: %v", err)
	}
	if stored.Status != model.StatusPending {
		t.Fatalf("expected pending after rollback, got %s", stored.Status)
	}
}

func TestLookupsReportNotFound(t *testing.T) {
	db := New()
	ctx := context.Background()

	if _, err := db.PackageByID(ctx, 9); !errors.Is(err, booking.ErrNotFound) {
		t.Fatalf("package: expected ErrNotFound, got %v", err)
	}
	if _, err := db.BookingByID(ctx, 9); !errors.Is(err, booking.ErrNotFound) {
		t.Fatalf("booking: expected ErrNotFound, got %v", err)
	}
	if h, err := db.HolidayOn(ctx, "2026-01-01"); h != nil || err != nil {
		t.Fatalf("holiday: expected nil, nil; got %v, %v", h, err)
	}
}

func TestListByUser(t *testing.T) {
	db := New()
	for i := 0; i < 3; i++ {
		db.AddBooking(model.Booking{UserID: 5})
	}
	db.AddBooking(model.Booking{UserID: 6})

	got, err := db.Bookings().ListByUser(context.Background(), 5, 2, 0)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(got) != 2 || got[0].ID < got[1].ID {
		t.Fatalf("expected two newest bookings first, got %+v", got)
	}
	rest, _ := db.Bookings().ListByUser(context.Background(), 5, 2, 2)
	if len(rest) != 1 {
		t.Fatalf("expected one booking on second page, got %d", len(rest))
	}
}
