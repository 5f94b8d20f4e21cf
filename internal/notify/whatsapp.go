package notify

import (
	"errors"
	"net/url"
	"strings"

	"github.com/jemini-foods/api/internal/enum"
	"github.com/jemini-foods/api/internal/present"
)

var ErrNoPhone = errors.New("phone number has no digits")

const (
	DefaultOrderTemplate       = "Hi {name}, your Jemini Foods order {ref} is now: {status}."
	DefaultReservationTemplate = "Hi {name}, your Jemini Foods reservation {ref} is now: {status}."
)

// BuildLink returns https://wa.me/<digits>?text=<encoded text>. Every
// non-digit in phone is dropped.
func BuildLink(phone, text string) (string, error) {
	var b strings.Builder
	for _, r := range phone {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	if b.Len() == 0 {
		return "", ErrNoPhone
	}
	return "https://wa.me/" + b.String() + "?text=" + encodeText(text), nil
}

// QueryEscape writes spaces as '+', which WhatsApp shows literally.
func encodeText(s string) string {
	return strings.ReplaceAll(url.QueryEscape(s), "+", "%20")
}

// WhatsApp composes customer-facing deep links for status changes.
type WhatsApp struct {
	OrderTemplate       string
	ReservationTemplate string
}

// Message fills the template for ev.Kind. Placeholders: {name}, {ref}, {status}.
func (w WhatsApp) Message(ev Event) string {
	tmpl := w.OrderTemplate
	if tmpl == "" {
		tmpl = DefaultOrderTemplate
	}
	if ev.Kind == enum.KindReservation {
		tmpl = w.ReservationTemplate
		if tmpl == "" {
			tmpl = DefaultReservationTemplate
		}
	}
	r := strings.NewReplacer(
		"{name}", ev.CustomerName,
		"{ref}", ShortRef(ev.EntityID.String()),
		"{status}", present.Describe(ev.Kind, ev.NewStatus).Label,
	)
	return r.Replace(tmpl)
}

// Link builds the deep link for ev.
func (w WhatsApp) Link(ev Event) (string, error) {
	return BuildLink(ev.CustomerPhone, w.Message(ev))
}

// ShortRef is the customer-facing reference for an id: its first 8 characters, uppercased.
func ShortRef(id string) string {
	if len(id) > 8 {
		id = id[:8]
	}
	return "#" + strings.ToUpper(id)
}
