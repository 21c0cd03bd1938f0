package kafka

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/pkg/errors"
	"github.com/segmentio/kafka-go"
)

type messageReader interface {
	FetchMessage(ctx context.Context) (kafka.Message, error)
	CommitMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// Consumer reads the shipment change feed. A fresh group starts at the tail
// of the topic: live views only care about changes made after they opened.
type Consumer struct {
	r     messageReader
	topic string

	handled atomic.Uint64
}

func NewConsumer(brokers []string, topic, groupID string) *Consumer {
	cfg := kafka.ReaderConfig{
		Brokers:           brokers,
		GroupID:           groupID,
		StartOffset:       kafka.LastOffset,
		MaxWait:           250 * time.Millisecond,
		HeartbeatInterval: 3 * time.Second,
		SessionTimeout:    30 * time.Second,
	}
	if groupID != "" {
		cfg.GroupTopics = []string{topic}
	} else {
		cfg.Topic = topic
	}
	return &Consumer{r: kafka.NewReader(cfg), topic: topic}
}

func newConsumerWithReader(r messageReader, topic string) *Consumer {
	return &Consumer{r: r, topic: topic}
}

// Handled is the number of messages processed and committed so far.
func (c *Consumer) Handled() uint64 {
	return c.handled.Load()
}

func (c *Consumer) Close() error {
	return c.r.Close()
}

// Consume blocks until ctx is done or the reader fails. A cancelled ctx is
// returned as is so callers can tell shutdown from a broken feed.
func (c *Consumer) Consume(ctx context.Context, handler func(key, value []byte) error) error {
	for {
		msg, err := c.r.FetchMessage(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			return errors.Wrapf(err, "fetch change from %s", c.topic)
		}
		if err := handler(msg.Key, msg.Value); err != nil {
			// без commit: сообщение придёт снова после перезапуска
			return errors.Wrapf(err, "handle change at offset %d", msg.Offset)
		}
		if err := c.r.CommitMessages(ctx, msg); err != nil {
			return errors.Wrapf(err, "commit offset %d", msg.Offset)
		}
		c.handled.Add(1)
	}
}
