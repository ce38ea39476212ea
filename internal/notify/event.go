// Package notify carries booking events from the API to the notifier
// process over RabbitMQ and renders them into WhatsApp messages.
package notify

import (
	"time"

	"github.com/iliyamo/playhouse-booking/internal/model"
)

// BookingConfirmedQueue is the durable queue confirmed bookings are
// published to.
const BookingConfirmedQueue = "booking.confirmed"

// BookingConfirmedEvent is published when a booking is confirmed.  It
// carries everything the notifier needs so that it never reads the
// primary database.
type BookingConfirmedEvent struct {
	BookingID        uint64 `json:"booking_id"`
	Reference        string `json:"reference"`
	UserID           uint64 `json:"user_id"`
	PackageName      string `json:"package_name"`
	PackageType      string `json:"package_type"`
	SlotLabel        string `json:"slot_label"`
	StartTime        string `json:"start_time"`
	EndTime          string `json:"end_time"`
	Date             string `json:"date"`
	NumberOfChildren uint32 `json:"number_of_children"`
	TotalAmount      string `json:"total_amount"`
	Discount         string `json:"discount"`
	VoucherCode      string `json:"voucher_code,omitempty"`
	ParentName       string `json:"parent_name"`
	ParentPhone      string `json:"parent_phone"`
	ConfirmedAt      string `json:"confirmed_at"`
}

// NewBookingConfirmedEvent flattens a confirmed booking with its package
// and slot.
func NewBookingConfirmedEvent(b model.Booking, pkg model.Package, slot model.TimeSlot, at time.Time) BookingConfirmedEvent {
	ev := BookingConfirmedEvent{
		BookingID:        b.ID,
		Reference:        b.Reference,
		UserID:           b.UserID,
		PackageName:      pkg.Name,
		PackageType:      pkg.Type,
		SlotLabel:        slot.Label,
		StartTime:        slot.StartTime,
		EndTime:          slot.EndTime,
		Date:             b.Date,
		NumberOfChildren: b.NumberOfChildren,
		TotalAmount:      b.TotalAmount.StringFixed(2),
		Discount:         b.Discount.StringFixed(2),
		ParentName:       b.ParentName,
		ParentPhone:      b.ParentPhone,
		ConfirmedAt:      at.UTC().Format(time.RFC3339),
	}
	if b.VoucherCode != nil {
		ev.VoucherCode = *b.VoucherCode
	}
	return ev
}
