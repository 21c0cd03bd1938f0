package pgshipments

import (
	"context"
	"log/slog"

	"github.com/jackc/pgx/v5"
	"github.com/pkg/errors"
)

// Listen subscribes a dedicated pool connection to a NOTIFY channel and passes
// every payload to handler until ctx is done or handler fails.
func (s *Storage) Listen(ctx context.Context, channel string, handler func(payload []byte) error) error {
	conn, err := s.pool.Acquire(ctx)
	if err != nil {
		return errors.Wrap(err, "acquire listen conn")
	}
	defer conn.Release()

	if _, err := conn.Exec(ctx, "LISTEN "+pgx.Identifier{channel}.Sanitize()); err != nil {
		return errors.Wrap(err, "listen")
	}
	defer func() {
		// соединение вернётся в пул, подписка на нём не нужна
		if _, err := conn.Exec(context.Background(), "UNLISTEN *"); err != nil {
			slog.Warn("unlisten", "channel", channel, "error", err.Error())
		}
	}()

	slog.Info("postgres listener started", "channel", channel)
	for {
		n, err := conn.Conn().WaitForNotification(ctx)
		if err != nil {
			return errors.Wrap(err, "wait notification")
		}
		if err := handler([]byte(n.Payload)); err != nil {
			return err
		}
	}
}
