package status

// ReservationStatus is the persisted status literal of a table reservation.
type ReservationStatus string

const (
	ReservationPending   ReservationStatus = "pending"
	ReservationConfirmed ReservationStatus = "confirmed"
	ReservationCancelled ReservationStatus = "cancelled"
	ReservationCompleted ReservationStatus = "completed"
)

var reservations = newMachine(
	[]ReservationStatus{ReservationPending, ReservationConfirmed, ReservationCompleted},
	[]ReservationStatus{ReservationCancelled},
)

// ReservationSteps is the progression shown by reservation trackers.
var ReservationSteps = []ReservationStatus{ReservationPending, ReservationConfirmed, ReservationCompleted}

// ParseReservationStatus returns the ReservationStatus for an exact literal match.
func ParseReservationStatus(s string) (ReservationStatus, error) {
	return reservations.parse(s)
}

// NextReservationStatus returns the status immediately following cur.
// ok is false when cur is terminal.
func NextReservationStatus(cur ReservationStatus) (next ReservationStatus, ok bool, err error) {
	return reservations.nextOf(cur)
}

// IsForwardReservationTransition reports whether to is the next status after
// from, or cancelled while from is pending or confirmed.
func IsForwardReservationTransition(from, to ReservationStatus) (bool, error) {
	return reservations.isForward(from, to)
}

// AllowedReservationTransitions lists every status reachable from from in one step.
func AllowedReservationTransitions(from ReservationStatus) []ReservationStatus {
	return reservations.allowedFrom(from)
}

func (s ReservationStatus) Valid() bool    { return reservations.known[s] }
func (s ReservationStatus) Terminal() bool { return reservations.terminal[s] }

// ReservationStepIndex returns the position of s within ReservationSteps,
// or -1 for cancelled and unknown statuses.
func ReservationStepIndex(s ReservationStatus) int {
	for i, step := range ReservationSteps {
		if step == s {
			return i
		}
	}
	return -1
}
