package notify

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"time"

	"github.com/segmentio/kafka-go"
)

const (
	TopicStatusChanged = "status.changed"
	EventStatusChanged = "StatusChanged"
)

var errKafkaQueueFull = errors.New("kafka queue full")

// Envelope wraps every event published to Kafka.
type Envelope struct {
	EventID       string          `json:"event_id"`
	EventType     string          `json:"event_type"`
	EventVersion  int             `json:"event_version"`
	OccurredAt    time.Time       `json:"occurred_at"`
	Producer      string          `json:"producer"`
	CorrelationID string          `json:"correlation_id,omitempty"`
	Payload       json.RawMessage `json:"payload"`
}

// Producer is a buffered, asynchronous Kafka writer.
type Producer struct {
	w       *kafka.Writer
	inbox   chan kafka.Message
	closeCh chan struct{}
}

func NewProducer(brokers []string, topic string, buf int) *Producer {
	return &Producer{
		w: &kafka.Writer{
			Addr:         kafka.TCP(brokers...),
			Topic:        topic,
			Balancer:     &kafka.Hash{},
			RequiredAcks: kafka.RequireAll,
		},
		inbox:   make(chan kafka.Message, buf),
		closeCh: make(chan struct{}),
	}
}

// Start runs the writer loop until Close.
func (p *Producer) Start() {
	go func() {
		defer close(p.closeCh)
		for m := range p.inbox {
			ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			if err := p.w.WriteMessages(ctx, m); err != nil {
				log.Printf("ERROR: kafka write %s: %v", p.w.Topic, err)
			}
			cancel()
		}
		if err := p.w.Close(); err != nil {
			log.Printf("ERROR: kafka close: %v", err)
		}
	}()
}

// Publish queues a message. It returns false when the buffer is full.
func (p *Producer) Publish(key, value []byte, headers ...kafka.Header) bool {
	select {
	case p.inbox <- kafka.Message{Key: key, Value: value, Time: time.Now(), Headers: headers}:
		return true
	default:
		return false
	}
}

// Close flushes queued messages and waits for the writer to finish.
func (p *Producer) Close() {
	close(p.inbox)
	<-p.closeCh
}

type kafkaPublisher interface {
	Publish(key, value []byte, headers ...kafka.Header) bool
}

// Kafka publishes events keyed by entity id, so one entity's changes stay
// ordered within a partition.
type Kafka struct {
	producer kafkaPublisher
	service  string
}

func NewKafka(producer kafkaPublisher, service string) *Kafka {
	return &Kafka{producer: producer, service: service}
}

func (k *Kafka) Notify(_ context.Context, ev Event) error {
	payload, err := json.Marshal(ev)
	if err != nil {
		return err
	}
	env := Envelope{
		EventID:       ev.ID.String(),
		EventType:     EventStatusChanged,
		EventVersion:  1,
		OccurredAt:    ev.OccurredAt.UTC(),
		Producer:      k.service,
		CorrelationID: ev.EntityID.String(),
		Payload:       payload,
	}
	b, err := json.Marshal(env)
	if err != nil {
		return err
	}
	ok := k.producer.Publish([]byte(ev.EntityID.String()), b,
		kafka.Header{Key: "x-event-type", Value: []byte(EventStatusChanged)},
		kafka.Header{Key: "x-event-version", Value: []byte("1")},
		kafka.Header{Key: "x-entity-kind", Value: []byte(ev.Kind)},
	)
	if !ok {
		return errKafkaQueueFull
	}
	return nil
}
