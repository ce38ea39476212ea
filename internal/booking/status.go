package booking

import "github.com/iliyamo/playhouse-booking/internal/model"

var transitions = map[string][]string{
	model.StatusPending:   {model.StatusConfirmed, model.StatusCancelled},
	model.StatusConfirmed: {model.StatusCompleted, model.StatusCancelled},
}

// CanTransition reports whether a booking may move from one status to
// another.  Completed and cancelled are terminal.
func CanTransition(from, to string) bool {
	for _, next := range transitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// Transition moves b to status to or returns InvalidStateTransitionError.
func Transition(b *model.Booking, to string) error {
	if !CanTransition(b.Status, to) {
		return &InvalidStateTransitionError{From: b.Status, To: to}
	}
	b.Status = to
	return nil
}
