package changefeed

import (
	"context"
	"encoding/json"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/BearBump/TrackView/internal/broker/messages"
	"github.com/stretchr/testify/require"
)

func eventInserted(shipmentID string) messages.Change {
	return messages.Change{
		Table:  "shipment_events",
		Kind:   messages.ChangeKindInsert,
		Record: map[string]any{"id": "e1", "shipment_id": shipmentID, "event_type": "en_route"},
	}
}

func shipmentFilters(id string) []Filter {
	return []Filter{
		{Table: "shipment_events", Kind: messages.ChangeKindInsert, Column: "shipment_id", Value: id},
		{Table: "shipments", Kind: messages.ChangeKindUpdate, Column: "id", Value: id},
	}
}

func TestFilter_Matches(t *testing.T) {
	f := Filter{Table: "shipments", Kind: messages.ChangeKindUpdate, Column: "id", Value: "s1"}

	require.True(t, f.Matches(messages.Change{Table: "shipments", Kind: "UPDATE", Record: map[string]any{"id": "s1"}}))
	require.False(t, f.Matches(messages.Change{Table: "shipments", Kind: "UPDATE", Record: map[string]any{"id": "s2"}}))
	require.False(t, f.Matches(messages.Change{Table: "shipments", Kind: "INSERT", Record: map[string]any{"id": "s1"}}))
	require.False(t, f.Matches(messages.Change{Table: "shipment_events", Kind: "UPDATE", Record: map[string]any{"id": "s1"}}))

	all := Filter{Table: "shipments", Kind: messages.ChangeKindUpdate}
	require.True(t, all.Matches(messages.Change{Table: "shipments", Kind: "UPDATE"}))
}

func TestHub_DispatchToMatchingSubscriptions(t *testing.T) {
	h := NewHub()
	ctx := context.Background()

	got1 := make(chan messages.Change, 4)
	got2 := make(chan messages.Change, 4)
	_, err := h.Subscribe(ctx, "shipment-s1", shipmentFilters("s1"), func(c messages.Change) { got1 <- c })
	require.NoError(t, err)
	_, err = h.Subscribe(ctx, "shipment-s2", shipmentFilters("s2"), func(c messages.Change) { got2 <- c })
	require.NoError(t, err)
	require.Equal(t, 2, h.Active())

	require.Equal(t, 1, h.Dispatch(eventInserted("s1")))

	select {
	case c := <-got1:
		require.Equal(t, "s1", c.Field("shipment_id"))
	case <-time.After(time.Second):
		t.Fatal("s1 subscriber not notified")
	}
	select {
	case <-got2:
		t.Fatal("s2 subscriber must not be notified")
	case <-time.After(50 * time.Millisecond):
	}

	require.Equal(t, 0, h.Dispatch(eventInserted("other")))
}

func TestHub_CloseIsIdempotent(t *testing.T) {
	h := NewHub()
	var calls atomic.Int32
	sub, err := h.Subscribe(context.Background(), "shipment-s1", shipmentFilters("s1"), func(messages.Change) { calls.Add(1) })
	require.NoError(t, err)

	require.NoError(t, sub.Close())
	require.NoError(t, sub.Close())
	require.Equal(t, 0, h.Active())
	require.Equal(t, 0, h.Dispatch(eventInserted("s1")))
	time.Sleep(20 * time.Millisecond)
	require.Equal(t, int32(0), calls.Load())
}

func TestHub_SubscribeValidates(t *testing.T) {
	h := NewHub()
	_, err := h.Subscribe(context.Background(), "x", nil, func(messages.Change) {})
	require.Error(t, err)
	_, err = h.Subscribe(context.Background(), "x", shipmentFilters("s1"), nil)
	require.Error(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = h.Subscribe(ctx, "x", shipmentFilters("s1"), func(messages.Change) {})
	require.ErrorIs(t, err, context.Canceled)
	require.Equal(t, 0, h.Active())
}

func TestHub_HandleMessage(t *testing.T) {
	h := NewHub()
	got := make(chan messages.Change, 1)
	_, err := h.Subscribe(context.Background(), "shipment-s1", shipmentFilters("s1"), func(c messages.Change) { got <- c })
	require.NoError(t, err)

	// битое сообщение пропускается без ошибки
	require.NoError(t, h.HandleMessage(nil, []byte("not-json")))

	b, err := json.Marshal(messages.Change{Table: "shipments", Kind: "UPDATE", Record: map[string]any{"id": "s1", "status": "delivered"}})
	require.NoError(t, err)
	require.NoError(t, h.HandleMessage([]byte("s1"), b))

	select {
	case c := <-got:
		require.Equal(t, "delivered", c.Field("status"))
	case <-time.After(time.Second):
		t.Fatal("not dispatched")
	}
}

type scriptedConsumer struct {
	calls atomic.Int32
	msgs  [][]byte
}

func (c *scriptedConsumer) Consume(ctx context.Context, handler func(key, value []byte) error) error {
	if c.calls.Add(1) == 1 {
		return errors.New("broker down")
	}
	for _, m := range c.msgs {
		if err := handler(nil, m); err != nil {
			return err
		}
	}
	<-ctx.Done()
	return ctx.Err()
}

func TestHub_RunRestartsFailedSource(t *testing.T) {
	h := NewHub()
	got := make(chan messages.Change, 1)
	_, err := h.Subscribe(context.Background(), "shipment-s1", shipmentFilters("s1"), func(c messages.Change) { got <- c })
	require.NoError(t, err)

	b, _ := json.Marshal(eventInserted("s1"))
	src := &scriptedConsumer{msgs: [][]byte{b}}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- h.Run(ctx, src, 10*time.Millisecond) }()

	select {
	case <-got:
	case <-time.After(2 * time.Second):
		t.Fatal("source was not restarted")
	}
	require.GreaterOrEqual(t, src.calls.Load(), int32(2))

	cancel()
	require.ErrorIs(t, <-done, context.Canceled)
}

type fakeListener struct {
	channel  string
	payloads [][]byte
}

func (l *fakeListener) Listen(ctx context.Context, channel string, handler func(payload []byte) error) error {
	l.channel = channel
	for _, p := range l.payloads {
		if err := handler(p); err != nil {
			return err
		}
	}
	return errors.New("connection lost")
}

func TestPostgresSource_Consume(t *testing.T) {
	l := &fakeListener{payloads: [][]byte{[]byte("a"), []byte("b")}}
	src := NewPostgresSource(l, "trackview_changes")

	var got []string
	err := src.Consume(context.Background(), func(key, value []byte) error {
		require.Nil(t, key)
		got = append(got, string(value))
		return nil
	})
	require.Error(t, err)
	require.Equal(t, "trackview_changes", l.channel)
	require.Equal(t, []string{"a", "b"}, got)
}
