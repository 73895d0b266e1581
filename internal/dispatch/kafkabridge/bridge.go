// Package kafkabridge feeds the dispatcher from Kafka topics. Offsets are
// committed only after the event is accepted by the dispatcher, keeping
// delivery at-least-once end to end.
package kafkabridge

import (
	"context"
	"encoding/json"
	"errors"
	"strings"

	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"

	"github.com/greenstem/order-pipeline/internal/dispatch"
	"github.com/greenstem/order-pipeline/internal/model"
	"github.com/greenstem/order-pipeline/internal/obs"
)

// Client holds the broker list shared by readers.
type Client struct {
	Brokers []string
}

// NewClient parses a comma-separated broker list. An empty list disables
// the bridge.
func NewClient(brokersCSV string) *Client {
	brokers := []string{}
	for _, b := range strings.Split(brokersCSV, ",") {
		b = strings.TrimSpace(b)
		if b != "" {
			brokers = append(brokers, b)
		}
	}
	return &Client{Brokers: brokers}
}

// Enabled reports whether brokers are configured.
func (c *Client) Enabled() bool {
	return len(c.Brokers) > 0
}

// NewReader builds a consumer-group reader for topic.
func (c *Client) NewReader(topic, groupID string) *kafka.Reader {
	return kafka.NewReader(kafka.ReaderConfig{
		Brokers:  c.Brokers,
		Topic:    topic,
		GroupID:  groupID,
		MinBytes: 10e3,
		MaxBytes: 10e6,
	})
}

// Bridge pumps order-created messages into the dispatcher.
type Bridge struct {
	reader *kafka.Reader
	disp   *dispatch.Dispatcher
}

// NewBridge wires a reader to the dispatcher.
func NewBridge(reader *kafka.Reader, disp *dispatch.Dispatcher) *Bridge {
	return &Bridge{reader: reader, disp: disp}
}

// Run consumes until ctx is done. Malformed messages are logged and
// committed so a poison payload cannot wedge the partition.
func (b *Bridge) Run(ctx context.Context) error {
	for {
		msg, err := b.reader.FetchMessage(ctx)
		if err != nil {
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				return nil
			}
			return model.Wrap(model.CodeInternal, err, "kafka fetch")
		}

		var order model.Order
		if err := json.Unmarshal(msg.Value, &order); err != nil {
			obs.Logger.Error("order_event_malformed",
				zap.Int("partition", msg.Partition),
				zap.Int64("offset", msg.Offset),
				zap.Error(err),
			)
			if err := b.reader.CommitMessages(ctx, msg); err != nil {
				return model.Wrap(model.CodeInternal, err, "kafka commit")
			}
			continue
		}

		if !b.disp.Publish(dispatch.Event{Kind: dispatch.KindOrderCreated, Order: order}) {
			// Intake closed during shutdown; leave the offset
			// uncommitted so the group redelivers.
			return nil
		}
		if err := b.reader.CommitMessages(ctx, msg); err != nil {
			return model.Wrap(model.CodeInternal, err, "kafka commit")
		}
	}
}

// Close releases the underlying reader.
func (b *Bridge) Close() error { return b.reader.Close() }
