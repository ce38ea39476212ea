package notify

import (
	"fmt"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/shopspring/decimal"
)

// Currency prefixes rendered amounts.
var Currency = "₹"

func money(amount string) string {
	d, err := decimal.NewFromString(amount)
	if err != nil {
		return Currency + amount
	}
	return Currency + humanize.FormatFloat("#,###.##", d.InexactFloat64())
}

func longDate(date string) string {
	t, err := time.Parse("2006-01-02", date)
	if err != nil {
		return date
	}
	return t.Format("Mon, 2 Jan 2006")
}

func children(n uint32) string {
	if n == 1 {
		return "1 child"
	}
	return fmt.Sprintf("%d children", n)
}

// CustomerConfirmation is the WhatsApp text sent to the parent.
func CustomerConfirmation(ev BookingConfirmedEvent) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Hi %s, your booking is confirmed!\n", ev.ParentName)
	fmt.Fprintf(&b, "%s on %s, %s (%s-%s)\n", ev.PackageName, longDate(ev.Date), ev.SlotLabel, ev.StartTime, ev.EndTime)
	fmt.Fprintf(&b, "For %s. Total paid: %s", children(ev.NumberOfChildren), money(ev.TotalAmount))
	if ev.VoucherCode != "" {
		fmt.Fprintf(&b, " (voucher %s saved %s)", ev.VoucherCode, money(ev.Discount))
	}
	fmt.Fprintf(&b, "\nBooking ref: %s\nPlease arrive 10 minutes early. Socks are mandatory in the play area.", shortRef(ev.Reference))
	return b.String()
}

// InternalAlert is the WhatsApp text sent to venue staff.
func InternalAlert(ev BookingConfirmedEvent) string {
	return fmt.Sprintf("New confirmed booking %s: %s, %s %s, %s, %s. Parent %s (%s).",
		shortRef(ev.Reference), ev.PackageName, ev.Date, ev.StartTime, children(ev.NumberOfChildren),
		money(ev.TotalAmount), ev.ParentName, ev.ParentPhone)
}

// OTPMessage is the WhatsApp text carrying a login code.
func OTPMessage(code string, ttl time.Duration) string {
	return fmt.Sprintf("%s is your PlayHouse login code. It expires in %d minutes. Do not share it with anyone.",
		code, int(ttl.Minutes()))
}

// shortRef is the first block of a uuid reference, upper-cased.
func shortRef(ref string) string {
	if i := strings.IndexByte(ref, '-'); i > 0 {
		ref = ref[:i]
	}
	return strings.ToUpper(ref)
}
