package notify

import (
	"github.com/jemini-foods/api/internal/enum"
	"github.com/jemini-foods/api/internal/present"
)

// ToastMessage is the short success text shown to the actor after a change.
func ToastMessage(ev Event) string {
	noun := "Order"
	if ev.Kind == enum.KindReservation {
		noun = "Reservation"
	}
	return noun + " is now " + present.Describe(ev.Kind, ev.NewStatus).Label
}
