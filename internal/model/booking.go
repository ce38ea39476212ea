package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// Booking statuses.
const (
	StatusPending   = "pending"
	StatusConfirmed = "confirmed"
	StatusCompleted = "completed"
	StatusCancelled = "cancelled"
)

// Booking reserves NumberOfChildren seats of a time slot on Date for a
// package.  Cancelled bookings hold no capacity.
//
// Fields:
//  ID               – primary key identifier.
//  Reference        – public booking reference (uuid).
//  UserID           – customer who booked.
//  PackageID        – booked package.
//  TimeSlotID       – booked slot.
//  Date             – session date, YYYY-MM-DD.
//  NumberOfChildren – seats held in the slot.
//  Subtotal         – amount before discount.
//  Discount         – voucher discount applied.
//  TotalAmount      – Subtotal minus Discount.
//  VoucherCode      – redeemed voucher, if any.
//  Status           – pending, confirmed, completed or cancelled.
//  PaymentRef       – external payment reference, set on confirmation.
//  ParentName       – contact name.
//  ParentPhone      – contact phone, normalised.
//  ParentEmail      – optional contact email.
//  Notes            – free text from the customer.
type Booking struct {
	ID               uint64          `json:"id"`                 // bookings.id
	Reference        string          `json:"reference"`          // bookings.reference
	UserID           uint64          `json:"user_id"`            // bookings.user_id
	PackageID        uint64          `json:"package_id"`         // bookings.package_id
	TimeSlotID       uint64          `json:"time_slot_id"`       // bookings.time_slot_id
	Date             string          `json:"date"`               // bookings.booking_date
	NumberOfChildren uint32          `json:"number_of_children"` // bookings.number_of_children
	Subtotal         decimal.Decimal `json:"subtotal"`           // bookings.subtotal
	Discount         decimal.Decimal `json:"discount"`           // bookings.discount
	TotalAmount      decimal.Decimal `json:"total_amount"`       // bookings.total_amount
	VoucherCode      *string         `json:"voucher_code"`       // bookings.voucher_code (nullable)
	Status           string          `json:"status"`             // bookings.status
	PaymentRef       *string         `json:"payment_ref"`        // bookings.payment_ref (nullable)
	ParentName       string          `json:"parent_name"`        // bookings.parent_name
	ParentPhone      string          `json:"parent_phone"`       // bookings.parent_phone
	ParentEmail      *string         `json:"parent_email"`       // bookings.parent_email (nullable)
	Notes            *string         `json:"notes"`              // bookings.notes (nullable)
	CreatedAt        time.Time       `json:"created_at"`         // bookings.created_at
	UpdatedAt        time.Time       `json:"updated_at"`         // bookings.updated_at
}

// HoldsCapacity reports whether the booking counts towards slot occupancy.
func (b Booking) HoldsCapacity() bool { return b.Status != StatusCancelled }

// BookingFilter narrows admin booking listings.  Zero values match all.
type BookingFilter struct {
	Status     string
	Date       string
	TimeSlotID uint64
	UserID     uint64
	Limit      int
	Offset     int
}
