package booking

import (
	"strings"

	"github.com/shopspring/decimal"

	"github.com/iliyamo/playhouse-booking/internal/model"
)

var hundred = decimal.NewFromInt(100)

// NormalizeCode upper-cases and trims a voucher code.
func NormalizeCode(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}

// CheckVoucher validates v for an order of amount on packageType, with
// today as YYYY-MM-DD.  Checks run in a fixed order and the first
// failure is returned: existence, active flag, date window, remaining
// usage, minimum amount, package applicability.  A nil v is missing.
func CheckVoucher(v *model.DiscountVoucher, amount decimal.Decimal, packageType, today string) error {
	if v == nil || !v.IsActive {
		return ErrVoucherNotFound
	}
	if today < v.ValidFrom || today > v.ValidTill {
		return ErrVoucherExpired
	}
	if v.UsedCount >= v.UsageLimit {
		return ErrVoucherExhausted
	}
	if amount.LessThan(v.MinAmount) {
		return ErrVoucherMinAmountNotMet
	}
	if !appliesTo(v.ApplicablePackages, packageType) {
		return ErrVoucherNotApplicable
	}
	return nil
}

func appliesTo(types []string, packageType string) bool {
	if len(types) == 0 {
		return true
	}
	for _, t := range types {
		if t == packageType {
			return true
		}
	}
	return false
}

// ComputeDiscount returns the discount v grants on amount.  The result
// is never negative and never above MaxDiscount or amount.
func ComputeDiscount(v model.DiscountVoucher, amount decimal.Decimal) decimal.Decimal {
	var d decimal.Decimal
	switch v.DiscountType {
	case model.DiscountPercentage:
		d = amount.Mul(v.Value).Div(hundred)
	case model.DiscountFixed:
		d = v.Value
	default:
		return decimal.Zero
	}
	d = decimal.Min(d, v.MaxDiscount, amount)
	if d.IsNegative() {
		return decimal.Zero
	}
	return d.Round(2)
}

// Quote is a priced order, before or after a voucher.
type Quote struct {
	Subtotal decimal.Decimal `json:"subtotal"`
	Discount decimal.Decimal `json:"discount"`
	Total    decimal.Decimal `json:"total"`
}

func newQuote(subtotal, discount decimal.Decimal) Quote {
	return Quote{Subtotal: subtotal, Discount: discount, Total: subtotal.Sub(discount)}
}
