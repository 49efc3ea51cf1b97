// Package events mirrors realtime broadcasts onto a Kafka topic for
// downstream consumers (analytics, audit, responder integrations).
package events

import (
	"context"
	"encoding/json"
	"log"
	"time"

	"github.com/segmentio/kafka-go"
)

const DefaultTopic = "emergency_events"

// MessageWriter is satisfied by *kafka.Writer.
type MessageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// Envelope is the record value written for every event.
type Envelope struct {
	Event     string          `json:"event"`
	Data      json.RawMessage `json:"data"`
	Timestamp time.Time       `json:"timestamp"`
}

// Publisher writes every broadcast event to Kafka keyed by vehicle number,
// so all events of one vehicle land on the same partition in order.
type Publisher struct {
	writer  MessageWriter
	timeout time.Duration
	now     func() time.Time
}

// NewWriter builds an async kafka-go writer. Delivery errors are logged from
// the completion callback.
func NewWriter(brokers []string, topic string) *kafka.Writer {
	if topic == "" {
		topic = DefaultTopic
	}
	return &kafka.Writer{
		Addr:                   kafka.TCP(brokers...),
		Topic:                  topic,
		Balancer:               &kafka.Hash{},
		BatchTimeout:           50 * time.Millisecond,
		RequiredAcks:           kafka.RequireOne,
		AllowAutoTopicCreation: true,
		Async:                  true,
		Completion: func(messages []kafka.Message, err error) {
			if err != nil {
				log.Printf("Kafka delivery of %d events to %s failed: %v", len(messages), topic, err)
			}
		},
	}
}

func NewPublisher(writer MessageWriter) *Publisher {
	return &Publisher{writer: writer, timeout: 5 * time.Second, now: time.Now}
}

// Broadcast implements the services broadcaster contract. Errors are logged,
// never returned.
func (p *Publisher) Broadcast(event string, data interface{}) {
	raw, err := toRaw(data)
	if err != nil {
		log.Printf("Kafka publisher failed to encode %s: %v", event, err)
		return
	}

	value, err := json.Marshal(Envelope{Event: event, Data: raw, Timestamp: p.now().UTC()})
	if err != nil {
		log.Printf("Kafka publisher failed to encode %s envelope: %v", event, err)
		return
	}

	msg := kafka.Message{
		Key:   []byte(VehicleKey(raw)),
		Value: value,
		Headers: []kafka.Header{
			{Key: "event", Value: []byte(event)},
		},
	}

	ctx, cancel := context.WithTimeout(context.Background(), p.timeout)
	defer cancel()
	if err := p.writer.WriteMessages(ctx, msg); err != nil {
		log.Printf("Kafka publish of %s failed: %v", event, err)
	}
}

func (p *Publisher) Close() error {
	return p.writer.Close()
}

func toRaw(data interface{}) (json.RawMessage, error) {
	switch v := data.(type) {
	case json.RawMessage:
		return v, nil
	case []byte:
		return v, nil
	case nil:
		return json.RawMessage("null"), nil
	}
	return json.Marshal(data)
}

// VehicleKey finds the vehicle number in an event payload: at the top level
// or under "emergency" or "vehicle". Returns "" when there is none.
func VehicleKey(raw json.RawMessage) string {
	var keyed struct {
		VehicleNumber string `json:"vehicleNumber"`
		Emergency     *struct {
			VehicleNumber string `json:"vehicleNumber"`
		} `json:"emergency"`
		Vehicle *struct {
			VehicleNumber string `json:"vehicleNumber"`
		} `json:"vehicle"`
	}
	if err := json.Unmarshal(raw, &keyed); err != nil {
		return ""
	}

	switch {
	case keyed.VehicleNumber != "":
		return keyed.VehicleNumber
	case keyed.Emergency != nil && keyed.Emergency.VehicleNumber != "":
		return keyed.Emergency.VehicleNumber
	case keyed.Vehicle != nil:
		return keyed.Vehicle.VehicleNumber
	}
	return ""
}
