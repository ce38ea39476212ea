package memory

import (
	"context"
	"errors"
	"testing"

	"github.com/shopspring/decimal"

	"github.com/iliyamo/playhouse-booking/internal/booking"
	"github.com/iliyamo/playhouse-booking/internal/model"
	"github.com/iliyamo/playhouse-booking/internal/repository"
)

func TestPackageUpdateOnceBooked(t *testing.T) {
	ctx := context.Background()
	db := New()
	pkgs := db.Packages()
	p := &model.Package{Name: "Play", Type: model.PackagePlaySession, Price: decimal.NewFromInt(250), MaxChildren: 10, IsActive: true}
	if err := pkgs.Create(ctx, p); err != nil {
		t.Fatalf("create: %v", err)
	}
	db.AddBooking(model.Booking{PackageID: p.ID, Status: model.StatusPending})

	renamed := *p
	renamed.Name = "Play+"
	if err := pkgs.Update(ctx, &renamed); !errors.Is(err, repository.ErrPackageInUse) {
		t.Fatalf("rename of booked package: %v", err)
	}
	repriced := *p
	repriced.Price = decimal.NewFromInt(300)
	repriced.IsActive = false
	if err := pkgs.Update(ctx, &repriced); err != nil {
		t.Fatalf("reprice: %v", err)
	}
	if err := pkgs.Delete(ctx, p.ID); !errors.Is(err, repository.ErrConflict) {
		t.Fatalf("delete of booked package: %v", err)
	}

	list, _ := pkgs.List(ctx, true)
	if len(list) != 0 {
		t.Fatalf("inactive package listed: %+v", list)
	}
}

func TestVoucherAdminRules(t *testing.T) {
	ctx := context.Background()
	db := New()
	vouchers := db.Vouchers()
	v := &model.DiscountVoucher{Code: "summer10", DiscountType: model.DiscountPercentage, UsageLimit: 5, IsActive: true}
	if err := vouchers.Create(ctx, v); err != nil {
		t.Fatalf("create: %v", err)
	}
	if v.Code != "SUMMER10" {
		t.Fatalf("code = %q, want upper-case", v.Code)
	}
	if err := vouchers.Create(ctx, &model.DiscountVoucher{Code: "Summer10"}); !errors.Is(err, repository.ErrDuplicate) {
		t.Fatalf("duplicate code: %v", err)
	}

	err := db.WithTx(ctx, func(ctx context.Context, tx booking.Tx) error {
		for i := 0; i < 3; i++ {
			if err := tx.IncrementVoucherUsage(ctx, v.ID); err != nil {
				return err
			}
		}
		return tx.InsertRedemption(ctx, &model.VoucherRedemption{VoucherID: v.ID})
	})
	if err != nil {
		t.Fatalf("redeem: %v", err)
	}

	lowered := *v
	lowered.UsageLimit = 2
	if err := vouchers.Update(ctx, &lowered); !errors.Is(err, repository.ErrConflict) {
		t.Fatalf("limit below used count: %v", err)
	}
	renamed := *v
	renamed.Code = "autumn10"
	renamed.UsedCount = 0
	if err := vouchers.Update(ctx, &renamed); err != nil {
		t.Fatalf("rename: %v", err)
	}
	if renamed.UsedCount != 3 {
		t.Fatalf("used count overwritten: %d", renamed.UsedCount)
	}
	if _, err := db.VoucherByCode(ctx, "SUMMER10"); !errors.Is(err, booking.ErrNotFound) {
		t.Fatalf("old code still resolves: %v", err)
	}
	if err := vouchers.Delete(ctx, v.ID); !errors.Is(err, repository.ErrConflict) {
		t.Fatalf("delete of redeemed voucher: %v", err)
	}
	reds, _ := vouchers.Redemptions(ctx, v.ID)
	if len(reds) != 1 {
		t.Fatalf("redemptions = %d", len(reds))
	}
}

func TestHolidaysAndBookingFilter(t *testing.T) {
	ctx := context.Background()
	db := New()
	hols := db.Holidays()
	h := &model.Holiday{Date: "2026-12-25", Reason: "Christmas", IsActive: true}
	if err := hols.Create(ctx, h); err != nil {
		t.Fatalf("create: %v", err)
	}
	if err := hols.Create(ctx, &model.Holiday{Date: "2026-12-25"}); !errors.Is(err, repository.ErrDuplicate) {
		t.Fatalf("duplicate date: %v", err)
	}
	h.IsActive = false
	if err := hols.Update(ctx, h); err != nil {
		t.Fatalf("update: %v", err)
	}
	if got, _ := db.HolidayOn(ctx, "2026-12-25"); got != nil {
		t.Fatal("inactive holiday still closes the venue")
	}
	if list, _ := hols.List(ctx, "2026-12-01", "2026-12-31"); len(list) != 1 {
		t.Fatalf("list = %+v", list)
	}
	if err := hols.Delete(ctx, h.ID); err != nil {
		t.Fatalf("delete: %v", err)
	}

	db.AddBooking(model.Booking{Date: "2026-10-20", TimeSlotID: 1, Status: model.StatusPending})
	db.AddBooking(model.Booking{Date: "2026-10-20", TimeSlotID: 2, Status: model.StatusConfirmed})
	db.AddBooking(model.Booking{Date: "2026-10-21", TimeSlotID: 1, Status: model.StatusConfirmed})

	got, _ := db.Bookings().List(ctx, model.BookingFilter{Date: "2026-10-20", Status: model.StatusConfirmed})
	if len(got) != 1 || got[0].TimeSlotID != 2 {
		t.Fatalf("filtered = %+v", got)
	}
}
