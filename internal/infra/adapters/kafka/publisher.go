package kafka

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/segmentio/kafka-go"

	"discord-storefront/internal/domain/ports/adapter"
	"discord-storefront/internal/infra/logging"
	"discord-storefront/internal/infra/metrics"
)

var _ adapter.EventPublisher = (*Publisher)(nil)

var ErrQueueFull = errors.New("event queue is full")

const (
	producerName = "discord-storefront"
	eventVersion = 1
	writeTimeout = 10 * time.Second
)

// Envelope wraps every event written to the orders topic.
type Envelope struct {
	EventID       string          `json:"event_id"`
	EventType     string          `json:"event_type"`
	EventVersion  int             `json:"event_version"`
	OccurredAt    time.Time       `json:"occurred_at"`
	Producer      string          `json:"producer"`
	TraceID       string          `json:"trace_id,omitempty"`
	CorrelationID string          `json:"correlation_id,omitempty"`
	Payload       json.RawMessage `json:"payload"`
}

type OrderPayload struct {
	OrderID   string `json:"order_id"`
	ServerID  string `json:"server_id"`
	ProductID string `json:"product_id"`
	BuyerID   string `json:"buyer_id"`
	Status    string `json:"status"`
	Amount    string `json:"amount,omitempty"`
	Currency  string `json:"currency,omitempty"`
}

type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// Publisher queues events in memory and writes them from one goroutine.
// Publish never blocks; a full queue drops the event.
type Publisher struct {
	w     messageWriter
	inbox chan kafka.Message
	done  chan struct{}
	once  sync.Once
	log   *zerolog.Logger
}

func NewPublisher(brokers []string, topic string, buf int, logger *zerolog.Logger) *Publisher {
	w := &kafka.Writer{
		Addr:         kafka.TCP(brokers...),
		Topic:        topic,
		Balancer:     &kafka.Hash{},
		RequiredAcks: kafka.RequireAll,
		BatchTimeout: 50 * time.Millisecond,
	}
	return newPublisher(w, buf, logger)
}

func newPublisher(w messageWriter, buf int, logger *zerolog.Logger) *Publisher {
	if buf <= 0 {
		buf = 256
	}
	l := logger.With().Str("component", "EventPublisher").Logger()
	return &Publisher{
		w:     w,
		inbox: make(chan kafka.Message, buf),
		done:  make(chan struct{}),
		log:   &l,
	}
}

// Start runs the write loop until Close is called.
func (p *Publisher) Start() {
	go func() {
		defer close(p.done)
		for m := range p.inbox {
			p.write(m)
		}
		if err := p.w.Close(); err != nil {
			p.log.Warn().Err(err).Msg("close kafka writer")
		}
	}()
}

func (p *Publisher) write(m kafka.Message) {
	ctx, cancel := context.WithTimeout(context.Background(), writeTimeout)
	defer cancel()
	typ := headerValue(m, "event_type")
	if err := p.w.WriteMessages(ctx, m); err != nil {
		metrics.IncEventPublished(typ, "error")
		p.log.Warn().Err(err).Str("event", typ).Str("order_id", string(m.Key)).Msg("write event failed")
		return
	}
	metrics.IncEventPublished(typ, "sent")
}

func (p *Publisher) Publish(ctx context.Context, ev adapter.OrderEvent) error {
	payload, err := json.Marshal(OrderPayload{
		OrderID:   ev.OrderID,
		ServerID:  ev.ServerID,
		ProductID: ev.ProductID,
		BuyerID:   ev.BuyerID,
		Status:    ev.Status,
		Amount:    ev.Amount,
		Currency:  ev.Currency,
	})
	if err != nil {
		return err
	}
	occurred := ev.OccurredAt
	if occurred.IsZero() {
		occurred = time.Now().UTC()
	}
	env := Envelope{
		EventID:       uuid.NewString(),
		EventType:     string(ev.Type),
		EventVersion:  eventVersion,
		OccurredAt:    occurred,
		Producer:      producerName,
		TraceID:       logging.TraceID(ctx),
		CorrelationID: ev.OrderID,
		Payload:       payload,
	}
	value, err := json.Marshal(env)
	if err != nil {
		return err
	}
	msg := kafka.Message{
		Key:     []byte(ev.OrderID), // keeps one order's events on one partition
		Value:   value,
		Time:    occurred,
		Headers: []kafka.Header{{Key: "event_type", Value: []byte(ev.Type)}},
	}
	select {
	case p.inbox <- msg:
		return nil
	default:
		metrics.IncEventPublished(string(ev.Type), "error")
		return ErrQueueFull
	}
}

// Close flushes queued events and waits for the writer to stop.
func (p *Publisher) Close() {
	p.once.Do(func() { close(p.inbox) })
	<-p.done
}

func headerValue(m kafka.Message, key string) string {
	for _, h := range m.Headers {
		if h.Key == key {
			return string(h.Value)
		}
	}
	return ""
}
