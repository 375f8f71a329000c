package appointment

import (
	"fmt"

	"github.com/jwalitptl/salon-api/internal/model"
)

// transitions lists the statuses reachable from each status. Rewriting the
// current status is always allowed.
var transitions = map[model.AppointmentStatus][]model.AppointmentStatus{
	model.AppointmentStatusScheduled: {
		model.AppointmentStatusConfirmed,
		model.AppointmentStatusCancelled,
		model.AppointmentStatusNoShow,
	},
	model.AppointmentStatusConfirmed: {
		model.AppointmentStatusCompleted,
		model.AppointmentStatusCancelled,
		model.AppointmentStatusNoShow,
	},
	model.AppointmentStatusCompleted: nil,
	model.AppointmentStatusCancelled: nil,
	model.AppointmentStatusNoShow:    nil,
}

// CanTransition reports whether an appointment in status from may move to to.
func CanTransition(from, to model.AppointmentStatus) bool {
	next, ok := transitions[from]
	if !ok || !to.Valid() {
		return false
	}
	if from == to {
		return true
	}
	for _, s := range next {
		if s == to {
			return true
		}
	}
	return false
}

// Terminal reports whether no other status is reachable from s.
func Terminal(s model.AppointmentStatus) bool {
	return len(transitions[s]) == 0
}

type InvalidTransitionError struct {
	From model.AppointmentStatus
	To   model.AppointmentStatus
}

func (e *InvalidTransitionError) Error() string {
	return fmt.Sprintf("invalid status transition from %s to %s", e.From, e.To)
}
