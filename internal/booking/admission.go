package booking

import "github.com/iliyamo/playhouse-booking/internal/model"

// Admit decides whether requested more children fit into slot on date
// given booked children already holding capacity there.  The holiday
// check runs before the capacity check so a closed date is reported as
// closed even when seats remain.  Callers must hold the slot lock (or an
// equivalent serialisation) from the booked read until the insert.
func Admit(date string, slot model.TimeSlot, holiday *model.Holiday, booked, requested uint32) error {
	if !slot.IsActive {
		return ErrSlotInactive
	}
	if holiday != nil && holiday.IsActive {
		return &HolidayClosedError{Date: date, Reason: holiday.Reason}
	}
	remaining := remainingSeats(slot.MaxCapacity, booked)
	if requested > remaining {
		return &CapacityExceededError{
			Date:      date,
			SlotID:    slot.ID,
			Requested: requested,
			Remaining: remaining,
		}
	}
	return nil
}

func remainingSeats(capacity, booked uint32) uint32 {
	if booked >= capacity {
		return 0
	}
	return capacity - booked
}
