package model

import "time"

// Holiday marks a date on which the venue is closed.  Only active
// entries block bookings.
type Holiday struct {
	ID        uint64    `json:"id"`         // holidays.id
	Date      string    `json:"date"`       // holidays.holiday_date (YYYY-MM-DD)
	Reason    string    `json:"reason"`     // holidays.reason
	IsActive  bool      `json:"is_active"`  // holidays.is_active
	CreatedAt time.Time `json:"created_at"` // holidays.created_at
}
