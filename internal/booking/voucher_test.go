package booking_test

import (
	"errors"
	"testing"

	"github.com/shopspring/decimal"

	"github.com/iliyamo/playhouse-booking/internal/booking"
	"github.com/iliyamo/playhouse-booking/internal/model"
)

func dec(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func welcome20() model.DiscountVoucher {
	return model.DiscountVoucher{
		Code:         "WELCOME20",
		DiscountType: model.DiscountPercentage,
		Value:        dec("20"),
		MinAmount:    dec("200"),
		MaxDiscount:  dec("100"),
		ValidFrom:    "2026-01-01",
		ValidTill:    "2026-12-31",
		UsageLimit:   50,
		UsedCount:    3,
		IsActive:     true,
	}
}

func TestCheckVoucher(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(v *model.DiscountVoucher)
		nilV    bool
		amount  string
		pkgType string
		today   string
		wantErr error
	}{
		{name: "valid", amount: "1000", today: "2026-10-15"},
		{name: "missing", nilV: true, amount: "1000", today: "2026-10-15", wantErr: booking.ErrVoucherNotFound},
		{name: "inactive", mutate: func(v *model.DiscountVoucher) { v.IsActive = false }, amount: "1000", today: "2026-10-15", wantErr: booking.ErrVoucherNotFound},
		{name: "first valid day", amount: "1000", today: "2026-01-01"},
		{name: "last valid day", amount: "1000", today: "2026-12-31"},
		{name: "before window", amount: "1000", today: "2025-12-31", wantErr: booking.ErrVoucherExpired},
		{name: "after window", amount: "1000", today: "2027-01-01", wantErr: booking.ErrVoucherExpired},
		{name: "exhausted", mutate: func(v *model.DiscountVoucher) { v.UsageLimit, v.UsedCount = 1, 1 }, amount: "1000", today: "2026-10-15", wantErr: booking.ErrVoucherExhausted},
		{name: "below minimum", amount: "199.99", today: "2026-10-15", wantErr: booking.ErrVoucherMinAmountNotMet},
		{name: "exactly minimum", amount: "200", today: "2026-10-15"},
		{
			name:    "wrong package",
			mutate:  func(v *model.DiscountVoucher) { v.ApplicablePackages = []string{model.PackageBirthdayParty} },
			amount:  "1000",
			pkgType: model.PackagePlaySession,
			today:   "2026-10-15",
			wantErr: booking.ErrVoucherNotApplicable,
		},
		{
			name:    "listed package",
			mutate:  func(v *model.DiscountVoucher) { v.ApplicablePackages = []string{model.PackageBirthdayParty} },
			amount:  "1000",
			pkgType: model.PackageBirthdayParty,
			today:   "2026-10-15",
		},
		{
			name: "expiry reported before exhaustion",
			mutate: func(v *model.DiscountVoucher) {
				v.UsageLimit, v.UsedCount = 1, 1
			},
			amount:  "1000",
			today:   "2027-02-01",
			wantErr: booking.ErrVoucherExpired,
		},
		{
			name: "exhaustion reported before minimum",
			mutate: func(v *model.DiscountVoucher) {
				v.UsageLimit, v.UsedCount = 1, 1
			},
			amount:  "10",
			today:   "2026-10-15",
			wantErr: booking.ErrVoucherExhausted,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var v *model.DiscountVoucher
			if !tt.nilV {
				w := welcome20()
				if tt.mutate != nil {
					tt.mutate(&w)
				}
				v = &w
			}
			pkgType := tt.pkgType
			if pkgType == "" {
				pkgType = model.PackagePlaySession
			}

			err := booking.CheckVoucher(v, dec(tt.amount), pkgType, tt.today)
			if !errors.Is(err, tt.wantErr) {
				t.Fatalf("expected %v, got %v", tt.wantErr, err)
			}
		})
	}
}

func TestComputeDiscount(t *testing.T) {
	tests := []struct {
		name   string
		v      model.DiscountVoucher
		amount string
		want   string
	}{
		{name: "percentage capped", v: welcome20(), amount: "1000", want: "100"},
		{name: "percentage under cap", v: welcome20(), amount: "300", want: "60"},
		{name: "percentage rounds", v: welcome20(), amount: "333.33", want: "66.67"},
		{
			name:   "fixed",
			v:      model.DiscountVoucher{DiscountType: model.DiscountFixed, Value: dec("50"), MaxDiscount: dec("80")},
			amount: "400",
			want:   "50",
		},
		{
			name:   "fixed capped by max",
			v:      model.DiscountVoucher{DiscountType: model.DiscountFixed, Value: dec("150"), MaxDiscount: dec("80")},
			amount: "400",
			want:   "80",
		},
		{
			name:   "fixed capped by amount",
			v:      model.DiscountVoucher{DiscountType: model.DiscountFixed, Value: dec("150"), MaxDiscount: dec("500")},
			amount: "120",
			want:   "120",
		},
		{
			name:   "unknown type",
			v:      model.DiscountVoucher{DiscountType: "bogus", Value: dec("10"), MaxDiscount: dec("10")},
			amount: "100",
			want:   "0",
		},
		{
			name:   "negative value",
			v:      model.DiscountVoucher{DiscountType: model.DiscountFixed, Value: dec("-5"), MaxDiscount: dec("10")},
			amount: "100",
			want:   "0",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := booking.ComputeDiscount(tt.v, dec(tt.amount))
			if !got.Equal(dec(tt.want)) {
				t.Fatalf("expected %s, got %s", tt.want, got)
			}
			if got.GreaterThan(dec(tt.amount)) {
				t.Fatalf("discount %s exceeds amount %s", got, tt.amount)
			}
		})
	}
}

func TestNormalizeCode(t *testing.T) {
	if got := booking.NormalizeCode("  welcome20 "); got != "WELCOME20" {
		t.Fatalf("expected WELCOME20, got %q", got)
	}
}
