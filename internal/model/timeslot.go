package model

import "time"

// TimeSlot is a fixed daily window with a child capacity.  Capacity is
// applied per calendar date: every date gets MaxCapacity seats.
//
// Fields:
//  ID          – primary key identifier.
//  Label       – display label such as "Morning".
//  StartTime   – local start time, HH:MM.
//  EndTime     – local end time, HH:MM (after StartTime).
//  MaxCapacity – children admitted per slot per day.
//  IsActive    – inactive slots reject new bookings.
type TimeSlot struct {
	ID          uint64    `json:"id"`           // time_slots.id
	Label       string    `json:"label"`        // time_slots.label
	StartTime   string    `json:"start_time"`   // time_slots.start_time
	EndTime     string    `json:"end_time"`     // time_slots.end_time
	MaxCapacity uint32    `json:"max_capacity"` // time_slots.max_capacity
	IsActive    bool      `json:"is_active"`    // time_slots.is_active
	CreatedAt   time.Time `json:"created_at"`   // time_slots.created_at
	UpdatedAt   time.Time `json:"updated_at"`   // time_slots.updated_at
}

// SlotAvailability is the occupancy of one slot on one date.
type SlotAvailability struct {
	Slot      TimeSlot `json:"slot"`
	Date      string   `json:"date"`
	Booked    uint32   `json:"booked"`
	Remaining uint32   `json:"remaining"`
	Closed    bool     `json:"closed"`
}
