package redisx

import "time"

const (
	// Cached status snapshot: order_status:{order_id} -> {"status": "...", "updated_at": "..."}
	KeyOrderStatus = "order_status:%s"

	// Per-entity mutation lock: inflight:{kind}:{id} -> holder token
	KeyInflight = "inflight:%s:%s"
)

var (
	TTLStatusCache = 5 * time.Minute
)
