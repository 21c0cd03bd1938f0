package changefeed

import (
	"context"
	"log/slog"
	"time"
)

// Consumer delivers raw change messages. *kafka.Consumer satisfies it.
type Consumer interface {
	Consume(ctx context.Context, handler func(key, value []byte) error) error
}

type Listener interface {
	Listen(ctx context.Context, channel string, handler func(payload []byte) error) error
}

// PostgresSource reads changes straight from a LISTEN/NOTIFY channel.
type PostgresSource struct {
	l       Listener
	channel string
}

func NewPostgresSource(l Listener, channel string) *PostgresSource {
	return &PostgresSource{l: l, channel: channel}
}

func (s *PostgresSource) Consume(ctx context.Context, handler func(key, value []byte) error) error {
	return s.l.Listen(ctx, s.channel, func(payload []byte) error {
		return handler(nil, payload)
	})
}

// Run feeds the hub from src until ctx is done. When the source fails it is
// restarted after retryDelay.
func (h *Hub) Run(ctx context.Context, src Consumer, retryDelay time.Duration) error {
	if retryDelay <= 0 {
		retryDelay = time.Second
	}
	for {
		err := src.Consume(ctx, h.HandleMessage)
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if err != nil {
			slog.Error("change feed source stopped", "error", err.Error())
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(retryDelay):
		}
	}
}
