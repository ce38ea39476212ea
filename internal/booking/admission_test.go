package booking_test

import (
	"errors"
	"testing"

	"github.com/iliyamo/playhouse-booking/internal/booking"
	"github.com/iliyamo/playhouse-booking/internal/model"
)

func TestAdmit(t *testing.T) {
	slot := model.TimeSlot{ID: 3, MaxCapacity: 15, IsActive: true}
	holiday := &model.Holiday{Date: "2026-12-25", Reason: "Christmas", IsActive: true}

	tests := []struct {
		name      string
		slot      model.TimeSlot
		holiday   *model.Holiday
		booked    uint32
		requested uint32
		wantErr   string
	}{
		{name: "fits", slot: slot, booked: 10, requested: 5},
		{name: "last seat", slot: slot, booked: 14, requested: 1},
		{name: "over by one", slot: slot, booked: 14, requested: 2, wantErr: "capacity"},
		{name: "already full", slot: slot, booked: 15, requested: 1, wantErr: "capacity"},
		{name: "overbooked legacy data", slot: slot, booked: 20, requested: 1, wantErr: "capacity"},
		{name: "holiday with room", slot: slot, holiday: holiday, booked: 0, requested: 1, wantErr: "holiday"},
		{name: "holiday before capacity", slot: slot, holiday: holiday, booked: 15, requested: 5, wantErr: "holiday"},
		{name: "inactive holiday ignored", slot: slot, holiday: &model.Holiday{IsActive: false}, requested: 1},
		{name: "inactive slot", slot: model.TimeSlot{MaxCapacity: 15}, requested: 1, wantErr: "inactive"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := booking.Admit("2026-12-25", tt.slot, tt.holiday, tt.booked, tt.requested)
			switch tt.wantErr {
			case "":
				if err != nil {
					t.Fatalf("expected admission, got %v", err)
				}
			case "capacity":
				if booking.IsCapacityExceeded(err) == nil {
					t.Fatalf("expected CapacityExceededError, got %v", err)
				}
			case "holiday":
				if booking.IsHolidayClosed(err) == nil {
					t.Fatalf("expected HolidayClosedError, got %v", err)
				}
			case "inactive":
				if !errors.Is(err, booking.ErrSlotInactive) {
					t.Fatalf("expected ErrSlotInactive, got %v", err)
				}
			}
		})
	}
}

func TestAdmitReportsRemaining(t *testing.T) {
	slot := model.TimeSlot{ID: 7, MaxCapacity: 15, IsActive: true}

	err := booking.Admit("2026-10-20", slot, nil, 14, 2)
	ce := booking.IsCapacityExceeded(err)
	if ce == nil {
		t.Fatalf("expected CapacityExceededError, got %v", err)
	}
	if ce.Remaining != 1 || ce.Requested != 2 || ce.SlotID != 7 || ce.Date != "2026-10-20" {
		t.Fatalf("unexpected error fields: %+v", ce)
	}
}
