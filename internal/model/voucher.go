package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// Discount types.
const (
	DiscountPercentage = "percentage"
	DiscountFixed      = "fixed"
)

// DiscountVoucher is a redeemable discount code.  Dates are calendar
// dates (YYYY-MM-DD) and the window is inclusive on both ends.  An empty
// ApplicablePackages list applies the voucher to every package type.
//
// Fields:
//  ID                 – primary key identifier.
//  Code               – unique code, stored upper case.
//  DiscountType       – percentage or fixed.
//  Value              – percent (0-100) or fixed amount.
//  MinAmount          – smallest order the voucher applies to.
//  MaxDiscount        – cap on the discount granted.
//  ValidFrom          – first valid date.
//  ValidTill          – last valid date.
//  UsageLimit         – total redemptions allowed.
//  UsedCount          – redemptions so far, never above UsageLimit.
//  ApplicablePackages – package types the voucher applies to.
//  IsActive           – inactive vouchers behave as missing.
type DiscountVoucher struct {
	ID                 uint64          `json:"id"`                  // discount_vouchers.id
	Code               string          `json:"code"`                // discount_vouchers.code
	DiscountType       string          `json:"discount_type"`       // discount_vouchers.discount_type
	Value              decimal.Decimal `json:"value"`               // discount_vouchers.value
	MinAmount          decimal.Decimal `json:"min_amount"`          // discount_vouchers.min_amount
	MaxDiscount        decimal.Decimal `json:"max_discount"`        // discount_vouchers.max_discount
	ValidFrom          string          `json:"valid_from"`          // discount_vouchers.valid_from
	ValidTill          string          `json:"valid_till"`          // discount_vouchers.valid_till
	UsageLimit         uint32          `json:"usage_limit"`         // discount_vouchers.usage_limit
	UsedCount          uint32          `json:"used_count"`          // discount_vouchers.used_count
	ApplicablePackages []string        `json:"applicable_packages"` // discount_vouchers.applicable_packages (JSON)
	IsActive           bool            `json:"is_active"`           // discount_vouchers.is_active
	CreatedAt          time.Time       `json:"created_at"`          // discount_vouchers.created_at
	UpdatedAt          time.Time       `json:"updated_at"`          // discount_vouchers.updated_at
}

// VoucherRedemption records one successful use of a voucher.
type VoucherRedemption struct {
	ID         uint64          `json:"id"`
	VoucherID  uint64          `json:"voucher_id"`
	BookingID  uint64          `json:"booking_id"`
	UserID     uint64          `json:"user_id"`
	Discount   decimal.Decimal `json:"discount"`
	RedeemedAt time.Time       `json:"redeemed_at"`
}
