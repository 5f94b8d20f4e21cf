package status

// OrderStatus is the persisted status literal of a pre-order.
type OrderStatus string

// These literals are stored verbatim and must never change.
const (
	OrderPending   OrderStatus = "pending"
	OrderBooked    OrderStatus = "booked"
	OrderTaken     OrderStatus = "taken"
	OrderMaking    OrderStatus = "making"
	OrderReady     OrderStatus = "ready"
	OrderCompleted OrderStatus = "completed"
	OrderRejected  OrderStatus = "rejected"
)

// orders: pending is the pre-step alias of booked, completed the terminal
// alias of ready, rejected the error branch.
var orders = newMachine(
	[]OrderStatus{OrderPending, OrderBooked, OrderTaken, OrderMaking, OrderReady, OrderCompleted},
	[]OrderStatus{OrderRejected},
)

// OrderSteps is the progression shown by step trackers.
var OrderSteps = []OrderStatus{OrderBooked, OrderTaken, OrderMaking, OrderReady}

// orderTimestampKeys are the keys of the persisted per-status timestamp map.
var orderTimestampKeys = map[OrderStatus]string{
	OrderBooked: "booked",
	OrderTaken:  "taken",
	OrderMaking: "making",
	OrderReady:  "ready",
}

// ParseOrderStatus returns the OrderStatus for an exact literal match.
func ParseOrderStatus(s string) (OrderStatus, error) {
	return orders.parse(s)
}

// NextOrderStatus returns the status immediately following cur.
// ok is false when cur is terminal.
func NextOrderStatus(cur OrderStatus) (next OrderStatus, ok bool, err error) {
	return orders.nextOf(cur)
}

// IsForwardOrderTransition reports whether to is the next status after from,
// or rejected while from is non-terminal.
func IsForwardOrderTransition(from, to OrderStatus) (bool, error) {
	return orders.isForward(from, to)
}

// AllowedOrderTransitions lists every status reachable from from in one step.
func AllowedOrderTransitions(from OrderStatus) []OrderStatus {
	return orders.allowedFrom(from)
}

// Valid reports whether s is part of the enumeration.
func (s OrderStatus) Valid() bool { return orders.known[s] }

// Terminal reports whether s has no forward transition.
func (s OrderStatus) Terminal() bool { return orders.terminal[s] }

// TimestampKey returns the timestamp map key stamped when an order enters s.
func TimestampKey(s OrderStatus) (string, bool) {
	k, ok := orderTimestampKeys[s]
	return k, ok
}

// IsTimestampKey reports whether key is one of the persisted timestamp keys.
func IsTimestampKey(key string) bool {
	for _, k := range orderTimestampKeys {
		if k == key {
			return true
		}
	}
	return false
}

// OrderStepIndex returns the position of s within OrderSteps.
// pending maps to the first step and completed to the last; rejected and
// unknown statuses return -1.
func OrderStepIndex(s OrderStatus) int {
	switch s {
	case OrderPending:
		return 0
	case OrderCompleted:
		return len(OrderSteps) - 1
	}
	for i, step := range OrderSteps {
		if step == s {
			return i
		}
	}
	return -1
}
