package events

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/segmentio/kafka-go"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/propagation"
)

// MessageWriter is the subset of *kafka.Writer the notifier needs.
type MessageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
}

var _ MessageWriter = (*kafka.Writer)(nil)

// KafkaNotifier publishes events to a Kafka topic keyed by order id.
type KafkaNotifier struct {
	Writer MessageWriter
	Topic  string
}

// NewKafkaWriter builds a writer for brokers with acks from all replicas.
func NewKafkaWriter(brokers []string) *kafka.Writer {
	return &kafka.Writer{
		Addr:                   kafka.TCP(brokers...),
		Balancer:               &kafka.Hash{},
		RequiredAcks:           kafka.RequireAll,
		AllowAutoTopicCreation: true,
	}
}

// Name implements Notifier.
func (KafkaNotifier) Name() string { return "kafka" }

// Notify implements Notifier.
func (n KafkaNotifier) Notify(ctx context.Context, event Event) error {
	if n.Writer == nil {
		return errors.New("kafka writer not configured")
	}
	value, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("encode event: %w", err)
	}
	headers := []kafka.Header{
		{Key: "event_id", Value: []byte(event.ID)},
		{Key: "event_topic", Value: []byte(event.Topic)},
	}
	msg := kafka.Message{
		Topic:   n.Topic,
		Key:     []byte(event.AggregateID),
		Value:   value,
		Headers: InjectTraceHeaders(ctx, headers),
		Time:    event.OccurredAt,
	}
	if err := n.Writer.WriteMessages(ctx, msg); err != nil {
		return fmt.Errorf("publish %s: %w", event.Topic, err)
	}
	return nil
}

// InjectTraceHeaders appends the W3C trace context of ctx to headers.
func InjectTraceHeaders(ctx context.Context, headers []kafka.Header) []kafka.Header {
	carrier := propagation.MapCarrier{}
	otel.GetTextMapPropagator().Inject(ctx, carrier)
	for k, v := range carrier {
		headers = append(headers, kafka.Header{Key: k, Value: []byte(v)})
	}
	return headers
}

// ExtractTraceHeaders restores the trace context carried in headers.
func ExtractTraceHeaders(ctx context.Context, headers []kafka.Header) context.Context {
	carrier := propagation.MapCarrier{}
	for _, h := range headers {
		carrier[h.Key] = string(h.Value)
	}
	return otel.GetTextMapPropagator().Extract(ctx, carrier)
}

// Ping dials the first reachable broker.
func Ping(ctx context.Context, brokers []string) error {
	var joined error
	for _, broker := range brokers {
		conn, err := kafka.DialContext(ctx, "tcp", broker)
		if err != nil {
			joined = errors.Join(joined, err)
			continue
		}
		return conn.Close()
	}
	if joined == nil {
		return errors.New("no kafka brokers configured")
	}
	return joined
}
