// Package inflight keeps at most one status mutation running per entity.
package inflight

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/jemini-foods/api/internal/redisx"
)

var ErrBusy = errors.New("mutation already in flight")

// Guard hands out per-key exclusive holds. Acquire never waits: a held key
// returns ErrBusy immediately. The returned release func is safe to call once.
type Guard interface {
	Acquire(ctx context.Context, key string) (release func(), err error)
}

// Key builds the guard key for one entity.
func Key(kind, id string) string {
	return fmt.Sprintf(redisx.KeyInflight, kind, id)
}

// Local is a process-scoped Guard.
type Local struct {
	mu   sync.Mutex
	held map[string]struct{}
}

func NewLocal() *Local {
	return &Local{held: make(map[string]struct{})}
}

func (l *Local) Acquire(ctx context.Context, key string) (func(), error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	if _, ok := l.held[key]; ok {
		return nil, ErrBusy
	}
	l.held[key] = struct{}{}

	var once sync.Once
	return func() {
		once.Do(func() {
			l.mu.Lock()
			delete(l.held, key)
			l.mu.Unlock()
		})
	}, nil
}
