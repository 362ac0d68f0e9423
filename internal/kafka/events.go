package kafka

import (
	"context"
	"encoding/json"
	"strconv"

	"github.com/ariefcatur/go-sales-graphql/internal/sales"
	"github.com/pkg/errors"
	"github.com/segmentio/kafka-go"
)

const (
	HeaderEventType    = "x-event-type"
	HeaderEventVersion = "x-event-version"
)

// EventPublisher adapts a Producer to sales.Publisher.
type EventPublisher struct {
	P *Producer
}

func (e EventPublisher) PublishEvent(ctx context.Context, ev sales.Envelope) error {
	b, err := json.Marshal(ev)
	if err != nil {
		return errors.Wrap(err, "encode envelope")
	}
	return e.P.Publish(ctx, sales.PartitionKey(sales.ID(ev.CorrelationID)), b,
		kafka.Header{Key: HeaderEventType, Value: []byte(ev.EventType)},
		kafka.Header{Key: HeaderEventVersion, Value: []byte(strconv.Itoa(ev.EventVersion))},
	)
}

// DecodeEnvelope reads an order event from a consumed message.
func DecodeEnvelope(m kafka.Message) (sales.Envelope, error) {
	var env sales.Envelope
	if err := json.Unmarshal(m.Value, &env); err != nil {
		return env, errors.Wrap(err, "decode envelope")
	}
	return env, nil
}
