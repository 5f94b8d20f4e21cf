package feed

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/jemini-foods/api/internal/database"
	"github.com/jemini-foods/api/internal/ws"
)

// Hub is satisfied by *ws.Hub.
type Hub interface {
	Topics() []string
	Broadcast(topic string, message []byte)
	Register(c *ws.Client, initial []byte)
}

// Publisher pushes fresh snapshots to every subscription a change touches.
// Builds and deliveries are serialised so each subscriber sees snapshots in
// the order they were taken.
type Publisher struct {
	builder *Builder
	hub     Hub
	timeout time.Duration
	mu      sync.Mutex
}

func NewPublisher(builder *Builder, hub Hub, timeout time.Duration) *Publisher {
	return &Publisher{builder: builder, hub: hub, timeout: timeout}
}

// Subscribe registers c and queues its initial snapshot.
func (p *Publisher) Subscribe(ctx context.Context, c *ws.Client) error {
	f, err := ParseTopic(c.Topic())
	if err != nil {
		return err
	}
	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	p.mu.Lock()
	defer p.mu.Unlock()
	msg, err := p.render(ctx, f)
	if err != nil {
		return err
	}
	p.hub.Register(c, msg)
	return nil
}

func (p *Publisher) OrderChanged(ctx context.Context, o database.Order) {
	p.changed(ctx, func(f Filter) bool { return f.touchesOrder(o) })
}

func (p *Publisher) ReservationChanged(ctx context.Context, r database.Reservation) {
	p.changed(ctx, func(f Filter) bool { return f.touchesReservation(r) })
}

func (p *Publisher) changed(ctx context.Context, touches func(Filter) bool) {
	// The caller's request may finish before every topic is refreshed.
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), p.timeout)
	defer cancel()

	p.mu.Lock()
	defer p.mu.Unlock()
	for _, topic := range p.hub.Topics() {
		f, err := ParseTopic(topic)
		if err != nil || !touches(f) {
			continue
		}
		msg, err := p.render(ctx, f)
		if err != nil {
			log.Printf("ERROR: feed snapshot %s: %v", topic, err)
			continue
		}
		p.hub.Broadcast(topic, msg)
	}
}

func (p *Publisher) render(ctx context.Context, f Filter) ([]byte, error) {
	snap, err := p.builder.Build(ctx, f)
	if err != nil {
		return nil, err
	}
	msg, err := json.Marshal(snap)
	if err != nil {
		return nil, fmt.Errorf("marshal snapshot: %w", err)
	}
	return msg, nil
}
