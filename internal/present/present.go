// Package present maps status literals to display metadata for the three
// tracker variants. Every function here is pure and never fails: unknown
// input falls back to Unknown so a bad record cannot break a view.
package present

import (
	"github.com/jemini-foods/api/internal/enum"
	"github.com/jemini-foods/api/internal/status"
)

// Variant selects how much metadata a view carries.
type Variant string

const (
	Full    Variant = "full"
	Compact Variant = "compact"
	Minimal Variant = "minimal"
)

// ParseVariant returns the named variant, falling back to Full.
func ParseVariant(s string) Variant {
	switch Variant(s) {
	case Compact:
		return Compact
	case Minimal:
		return Minimal
	}
	return Full
}

// Display is the complete metadata for one status.
type Display struct {
	Label       string `json:"label"`
	ShortLabel  string `json:"short_label"`
	ColorToken  string `json:"color_token"`
	Icon        string `json:"icon"`
	Description string `json:"description"`
}

// Unknown is returned for any status outside the enumeration.
var Unknown = Display{
	Label:       "Unknown",
	ShortLabel:  "Unknown",
	ColorToken:  "neutral",
	Icon:        "help-circle",
	Description: "Status is not recognised",
}

var orderDisplays = map[status.OrderStatus]Display{
	status.OrderPending: {
		Label: "Pending", ShortLabel: "Pending", ColorToken: "gray", Icon: "clock",
		Description: "Your pre-order has been received",
	},
	status.OrderBooked: {
		Label: "Order Booked", ShortLabel: "Booked", ColorToken: "blue", Icon: "calendar-check",
		Description: "Your pre-order is booked and waiting for a chef",
	},
	status.OrderTaken: {
		Label: "Order Taken", ShortLabel: "Taken", ColorToken: "indigo", Icon: "user-check",
		Description: "A chef has taken your order",
	},
	status.OrderMaking: {
		Label: "Preparing", ShortLabel: "Making", ColorToken: "orange", Icon: "chef-hat",
		Description: "Your food is being prepared",
	},
	status.OrderReady: {
		Label: "Ready for Pickup", ShortLabel: "Ready", ColorToken: "green", Icon: "package-check",
		Description: "Your order is ready to collect",
	},
	status.OrderCompleted: {
		Label: "Completed", ShortLabel: "Done", ColorToken: "emerald", Icon: "check-circle",
		Description: "Order collected. Enjoy your meal!",
	},
	status.OrderRejected: {
		Label: "Rejected", ShortLabel: "Rejected", ColorToken: "red", Icon: "x-circle",
		Description: "The restaurant could not accept this order",
	},
}

var reservationDisplays = map[status.ReservationStatus]Display{
	status.ReservationPending: {
		Label: "Awaiting Confirmation", ShortLabel: "Pending", ColorToken: "yellow", Icon: "clock",
		Description: "Your reservation request is waiting for confirmation",
	},
	status.ReservationConfirmed: {
		Label: "Confirmed", ShortLabel: "Confirmed", ColorToken: "green", Icon: "calendar-check",
		Description: "Your table is reserved",
	},
	status.ReservationCancelled: {
		Label: "Cancelled", ShortLabel: "Cancelled", ColorToken: "red", Icon: "calendar-x",
		Description: "This reservation has been cancelled",
	},
	status.ReservationCompleted: {
		Label: "Completed", ShortLabel: "Done", ColorToken: "emerald", Icon: "check-circle",
		Description: "Thanks for dining with us",
	},
}

// DescribeOrder returns the display metadata for an order status literal.
func DescribeOrder(s string) Display {
	if d, ok := orderDisplays[status.OrderStatus(s)]; ok {
		return d
	}
	return Unknown
}

// DescribeReservation returns the display metadata for a reservation status literal.
func DescribeReservation(s string) Display {
	if d, ok := reservationDisplays[status.ReservationStatus(s)]; ok {
		return d
	}
	return Unknown
}

// Describe dispatches on entity kind. Unknown kinds yield Unknown.
func Describe(kind, s string) Display {
	switch kind {
	case enum.KindOrder:
		return DescribeOrder(s)
	case enum.KindReservation:
		return DescribeReservation(s)
	}
	return Unknown
}

// View is the rendered form of a status for one variant. Fields not carried
// by the variant are left empty and omitted from JSON.
type View struct {
	Status      string   `json:"status"`
	Variant     Variant  `json:"variant"`
	Label       string   `json:"label,omitempty"`
	ShortLabel  string   `json:"short_label,omitempty"`
	ColorToken  string   `json:"color_token,omitempty"`
	Icon        string   `json:"icon,omitempty"`
	Description string   `json:"description,omitempty"`
	Progress    *float64 `json:"progress,omitempty"`
}

// Render produces the view of status s of an entity of kind for variant v.
func Render(kind, s string, v Variant) View {
	d := Describe(kind, s)
	switch v {
	case Compact:
		return View{Status: s, Variant: Compact, Label: d.Label, Icon: d.Icon}
	case Minimal:
		p := Progress(kind, s)
		return View{Status: s, Variant: Minimal, Progress: &p}
	}
	p := Progress(kind, s)
	return View{
		Status:      s,
		Variant:     Full,
		Label:       d.Label,
		ShortLabel:  d.ShortLabel,
		ColorToken:  d.ColorToken,
		Icon:        d.Icon,
		Description: d.Description,
		Progress:    &p,
	}
}

// Progress returns index/(steps-1) for the status within its step tracker.
// Statuses off the tracker (rejected, cancelled, unknown) report 0.
func Progress(kind, s string) float64 {
	var idx, steps int
	switch kind {
	case enum.KindOrder:
		idx, steps = status.OrderStepIndex(status.OrderStatus(s)), len(status.OrderSteps)
	case enum.KindReservation:
		idx, steps = status.ReservationStepIndex(status.ReservationStatus(s)), len(status.ReservationSteps)
	default:
		return 0
	}
	if idx < 0 || steps < 2 {
		return 0
	}
	return float64(idx) / float64(steps-1)
}

// Step is one entry of a step tracker.
type Step struct {
	Status  string `json:"status"`
	Label   string `json:"label"`
	Icon    string `json:"icon"`
	Done    bool   `json:"done"`
	Current bool   `json:"current"`
}

// OrderTracker returns the four tracker steps for an order in status s.
// A rejected or unknown order has no completed steps.
func OrderTracker(s string) []Step {
	idx := status.OrderStepIndex(status.OrderStatus(s))
	finished := status.OrderStatus(s) == status.OrderCompleted
	steps := make([]Step, len(status.OrderSteps))
	for i, st := range status.OrderSteps {
		d := orderDisplays[st]
		steps[i] = Step{
			Status:  string(st),
			Label:   d.ShortLabel,
			Icon:    d.Icon,
			Done:    idx >= 0 && (i < idx || finished),
			Current: i == idx && !finished,
		}
	}
	return steps
}
