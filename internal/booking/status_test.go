package booking_test

import (
	"testing"

	"github.com/iliyamo/playhouse-booking/internal/booking"
	"github.com/iliyamo/playhouse-booking/internal/model"
)

func TestTransitions(t *testing.T) {
	statuses := []string{model.StatusPending, model.StatusConfirmed, model.StatusCompleted, model.StatusCancelled}
	allowed := map[[2]string]bool{
		{model.StatusPending, model.StatusConfirmed}:   true,
		{model.StatusPending, model.StatusCancelled}:   true,
		{model.StatusConfirmed, model.StatusCompleted}: true,
		{model.StatusConfirmed, model.StatusCancelled}: true,
	}

	for _, from := range statuses {
		for _, to := range statuses {
			want := allowed[[2]string{from, to}]
			if got := booking.CanTransition(from, to); got != want {
				t.Errorf("CanTransition(%s, %s) = %v, want %v", from, to, got, want)
			}

			b := &model.Booking{Status: from}
			err := booking.Transition(b, to)
			if want {
				if err != nil || b.Status != to {
					t.Errorf("Transition(%s, %s): err=%v status=%s", from, to, err, b.Status)
				}
				continue
			}
			ite := booking.IsInvalidTransition(err)
			if ite == nil {
				t.Errorf("Transition(%s, %s): expected InvalidStateTransitionError, got %v", from, to, err)
				continue
			}
			if ite.From != from || ite.To != to || b.Status != from {
				t.Errorf("Transition(%s, %s): error %+v, status %s", from, to, ite, b.Status)
			}
		}
	}
}
