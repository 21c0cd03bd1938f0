package relay

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/BearBump/TrackView/internal/broker/messages"
	"github.com/pkg/errors"
)

type Listener interface {
	Listen(ctx context.Context, channel string, handler func(payload []byte) error) error
}

type Producer interface {
	Publish(ctx context.Context, topic string, key, value []byte) error
}

// Relay forwards Postgres change notifications to a Kafka topic, keyed by
// shipment so changes of one shipment stay ordered within a partition.
type Relay struct {
	listener Listener
	producer Producer

	channel string
	topic   string

	publishAttempts int
	restartDelay    time.Duration

	startedAtUnixNano  int64
	lastChangeUnixNano atomic.Int64
	listening          atomic.Bool
	totalReceived      atomic.Int64
	totalPublished     atomic.Int64
	totalSkipped       atomic.Int64
	totalErrors        atomic.Int64
	restarts           atomic.Int64
	lastErrorMu        sync.Mutex
	lastError          string
}

func New(listener Listener, producer Producer, channel, topic string) *Relay {
	return &Relay{
		listener:          listener,
		producer:          producer,
		channel:           channel,
		topic:             topic,
		publishAttempts:   10,
		restartDelay:      time.Second,
		startedAtUnixNano: time.Now().UTC().UnixNano(),
	}
}

func (r *Relay) WithSettings(publishAttempts int, restartDelay time.Duration) *Relay {
	if publishAttempts > 0 {
		r.publishAttempts = publishAttempts
	}
	if restartDelay > 0 {
		r.restartDelay = restartDelay
	}
	return r
}

type Stats struct {
	StartedAt      time.Time  `json:"startedAt"`
	LastChangeAt   *time.Time `json:"lastChangeAt,omitempty"`
	Listening      bool       `json:"listening"`
	TotalReceived  int64      `json:"totalReceived"`
	TotalPublished int64      `json:"totalPublished"`
	TotalSkipped   int64      `json:"totalSkipped"`
	TotalErrors    int64      `json:"totalErrors"`
	Restarts       int64      `json:"restarts"`
	LastError      string     `json:"lastError,omitempty"`
}

func (r *Relay) Stats() Stats {
	st := Stats{
		StartedAt:      time.Unix(0, r.startedAtUnixNano).UTC(),
		Listening:      r.listening.Load(),
		TotalReceived:  r.totalReceived.Load(),
		TotalPublished: r.totalPublished.Load(),
		TotalSkipped:   r.totalSkipped.Load(),
		TotalErrors:    r.totalErrors.Load(),
		Restarts:       r.restarts.Load(),
	}
	if n := r.lastChangeUnixNano.Load(); n > 0 {
		t := time.Unix(0, n).UTC()
		st.LastChangeAt = &t
	}
	r.lastErrorMu.Lock()
	st.LastError = r.lastError
	r.lastErrorMu.Unlock()
	return st
}

// Ready reports whether the relay currently holds a LISTEN connection.
func (r *Relay) Ready() bool {
	return r.listening.Load()
}

func (r *Relay) setLastError(err error) {
	r.lastErrorMu.Lock()
	r.lastError = err.Error()
	r.lastErrorMu.Unlock()
}

// Run listens until ctx is done, reconnecting after listener failures.
func (r *Relay) Run(ctx context.Context) error {
	for {
		r.listening.Store(true)
		err := r.listener.Listen(ctx, r.channel, func(payload []byte) error {
			return r.forward(ctx, payload)
		})
		r.listening.Store(false)

		if ctx.Err() != nil {
			return ctx.Err()
		}
		if err != nil {
			r.totalErrors.Add(1)
			r.setLastError(err)
			slog.Error("postgres listener stopped", "channel", r.channel, "error", err.Error())
		}
		r.restarts.Add(1)

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(r.restartDelay):
		}
	}
}

func (r *Relay) forward(ctx context.Context, payload []byte) error {
	r.totalReceived.Add(1)
	r.lastChangeUnixNano.Store(time.Now().UTC().UnixNano())

	var c messages.Change
	if err := json.Unmarshal(payload, &c); err != nil || c.Table == "" {
		r.totalSkipped.Add(1)
		if err == nil {
			err = errors.New("change without table")
		}
		slog.Warn("skip malformed change", "error", err.Error())
		return nil
	}

	if err := r.publish(ctx, c.Key(), payload); err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		r.totalErrors.Add(1)
		r.setLastError(err)
		slog.Error("publish change", "table", c.Table, "kind", c.Kind, "error", err.Error())
		return nil
	}
	r.totalPublished.Add(1)
	return nil
}

// publish повторяет отправку с растущей паузой: Kafka может быть ещё не готова
// сразу после старта.
func (r *Relay) publish(ctx context.Context, key, value []byte) error {
	var pubErr error
	for i := 0; i < r.publishAttempts; i++ {
		pubErr = r.producer.Publish(ctx, r.topic, key, value)
		if pubErr == nil {
			return nil
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(time.Duration(150*(i+1)) * time.Millisecond):
		}
	}
	return errors.Wrapf(pubErr, "publish after %d attempts", r.publishAttempts)
}
