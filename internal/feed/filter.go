// Package feed builds live status snapshots and pushes them to WebSocket
// subscribers whenever a matching order or reservation changes.
package feed

import (
	"errors"
	"fmt"
	"net/url"
	"sort"
	"strings"

	"github.com/google/uuid"
	"github.com/jemini-foods/api/internal/database"
	"github.com/jemini-foods/api/internal/enum"
	"github.com/jemini-foods/api/internal/present"
	"github.com/jemini-foods/api/internal/status"
)

var ErrInvalidFilter = errors.New("invalid feed filter")

// Topic prefixes per entity kind.
const (
	TopicOrders       = "orders"
	TopicReservations = "reservations"
)

// Filter selects the records a subscription watches. Zero fields match all.
type Filter struct {
	Kind     string
	EntityID uuid.UUID
	OwnerID  uuid.UUID
	Date     string
	Statuses []string
	Variant  present.Variant
}

// FromQuery reads kind, id, owner, date, status (comma separated) and variant.
func FromQuery(q url.Values) (Filter, error) {
	f := Filter{Kind: enum.KindOrder, Variant: present.Compact}
	switch k := q.Get("kind"); k {
	case "", TopicOrders, enum.KindOrder:
	case TopicReservations, enum.KindReservation:
		f.Kind = enum.KindReservation
	default:
		return Filter{}, fmt.Errorf("%w: kind %q", ErrInvalidFilter, k)
	}
	var err error
	if f.EntityID, err = parseOptionalUUID(q.Get("id")); err != nil {
		return Filter{}, fmt.Errorf("%w: id", ErrInvalidFilter)
	}
	if f.OwnerID, err = parseOptionalUUID(q.Get("owner")); err != nil {
		return Filter{}, fmt.Errorf("%w: owner", ErrInvalidFilter)
	}
	f.Date = q.Get("date")
	if s := q.Get("status"); s != "" {
		f.Statuses = strings.Split(s, ",")
	}
	if v := q.Get("variant"); v != "" {
		f.Variant = present.ParseVariant(v)
	}
	return f.normalize()
}

// ParseTopic is the inverse of Filter.Topic.
func ParseTopic(topic string) (Filter, error) {
	parts := strings.Split(topic, ":")
	f := Filter{Variant: present.Compact}
	switch parts[0] {
	case TopicOrders:
		f.Kind = enum.KindOrder
	case TopicReservations:
		f.Kind = enum.KindReservation
	default:
		return Filter{}, fmt.Errorf("%w: topic %q", ErrInvalidFilter, topic)
	}
	rest := parts[1:]
	if len(rest)%2 != 0 {
		return Filter{}, fmt.Errorf("%w: topic %q", ErrInvalidFilter, topic)
	}
	for i := 0; i < len(rest); i += 2 {
		key, val := rest[i], rest[i+1]
		var err error
		switch key {
		case "id":
			f.EntityID, err = uuid.Parse(val)
		case "owner":
			f.OwnerID, err = uuid.Parse(val)
		case "date":
			f.Date = val
		case "status":
			f.Statuses = strings.Split(val, ",")
		case "variant":
			f.Variant = present.ParseVariant(val)
		default:
			err = fmt.Errorf("unknown segment %q", key)
		}
		if err != nil {
			return Filter{}, fmt.Errorf("%w: topic %q: %v", ErrInvalidFilter, topic, err)
		}
	}
	return f.normalize()
}

// Topic is the canonical hub room name for f. Equal filters give equal topics.
func (f Filter) Topic() string {
	var b strings.Builder
	if f.Kind == enum.KindReservation {
		b.WriteString(TopicReservations)
	} else {
		b.WriteString(TopicOrders)
	}
	if f.EntityID != uuid.Nil {
		b.WriteString(":id:" + f.EntityID.String())
	}
	if f.OwnerID != uuid.Nil {
		b.WriteString(":owner:" + f.OwnerID.String())
	}
	if f.Date != "" {
		b.WriteString(":date:" + f.Date)
	}
	if len(f.Statuses) > 0 {
		b.WriteString(":status:" + strings.Join(f.Statuses, ","))
	}
	if f.Variant != present.Compact {
		b.WriteString(":variant:" + string(f.Variant))
	}
	return b.String()
}

// normalize validates f and sorts its statuses so topics are canonical.
func (f Filter) normalize() (Filter, error) {
	if f.Date != "" {
		if _, err := database.ParseDate(f.Date); err != nil {
			return Filter{}, fmt.Errorf("%w: %v", ErrInvalidFilter, err)
		}
	}
	seen := make(map[string]bool, len(f.Statuses))
	var statuses []string
	for _, s := range f.Statuses {
		s = strings.TrimSpace(s)
		if s == "" || seen[s] {
			continue
		}
		var err error
		if f.Kind == enum.KindReservation {
			_, err = status.ParseReservationStatus(s)
		} else {
			_, err = status.ParseOrderStatus(s)
		}
		if err != nil {
			return Filter{}, fmt.Errorf("%w: %v", ErrInvalidFilter, err)
		}
		seen[s] = true
		statuses = append(statuses, s)
	}
	sort.Strings(statuses)
	f.Statuses = statuses
	return f, nil
}

// Status filters are ignored here: a record leaving a status set must
// still refresh that subscription.
func (f Filter) touchesOrder(o database.Order) bool {
	return f.Kind == enum.KindOrder &&
		(f.EntityID == uuid.Nil || f.EntityID == o.ID) &&
		(f.OwnerID == uuid.Nil || f.OwnerID == o.CustomerID) &&
		(f.Date == "" || f.Date == database.FormatDate(o.PickupDate))
}

func (f Filter) touchesReservation(r database.Reservation) bool {
	return f.Kind == enum.KindReservation &&
		(f.EntityID == uuid.Nil || f.EntityID == r.ID) &&
		(f.OwnerID == uuid.Nil || f.OwnerID == r.CustomerID) &&
		(f.Date == "" || f.Date == database.FormatDate(r.ReservationDate))
}

func parseOptionalUUID(s string) (uuid.UUID, error) {
	if s == "" {
		return uuid.Nil, nil
	}
	return uuid.Parse(s)
}
