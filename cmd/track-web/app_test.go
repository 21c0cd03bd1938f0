package main

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"sync/atomic"
	"testing"
	"time"

	"github.com/BearBump/TrackView/internal/api/web"
	"github.com/BearBump/TrackView/internal/broker/messages"
	"github.com/BearBump/TrackView/internal/changefeed"
	"github.com/BearBump/TrackView/internal/models"
	"github.com/BearBump/TrackView/internal/render"
	"github.com/BearBump/TrackView/internal/services/shipments"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
)

type emptyRepo struct{}

func (emptyRepo) GetShipmentByTrackCode(context.Context, string) (*models.Shipment, error) {
	return nil, nil
}
func (emptyRepo) ListShipmentEvents(context.Context, string) ([]*models.ShipmentEvent, error) {
	return nil, nil
}
func (emptyRepo) ListShipmentsByDriver(context.Context, string) ([]*models.Shipment, error) {
	return nil, nil
}
func (emptyRepo) ListEventsForShipments(context.Context, []string) ([]*models.ShipmentEvent, error) {
	return nil, nil
}

// scriptedSource отдаёт заранее заданные сообщения и ждёт отмены.
type scriptedSource struct {
	payloads [][]byte
	handled  atomic.Uint64
}

func (s *scriptedSource) Consume(ctx context.Context, handler func(key, value []byte) error) error {
	for _, p := range s.payloads {
		if err := handler(nil, p); err != nil {
			return err
		}
		s.handled.Add(1)
	}
	<-ctx.Done()
	return ctx.Err()
}

func (s *scriptedSource) Handled() uint64 {
	return s.handled.Load()
}

func TestRunTrackWeb_ServesAndFeedsHub(t *testing.T) {
	hub := changefeed.NewHub()
	got := make(chan messages.Change, 1)
	sub, err := hub.Subscribe(context.Background(), "test", []changefeed.Filter{
		{Table: "shipments", Kind: messages.ChangeKindUpdate, Column: "id", Value: "s1"},
	}, func(c messages.Change) { got <- c })
	require.NoError(t, err)
	defer sub.Close()

	payload, err := json.Marshal(messages.Change{
		Table: "shipments", Kind: messages.ChangeKindUpdate,
		Record: map[string]any{"id": "s1", "status": "delivered"},
	})
	require.NoError(t, err)

	srv, err := web.NewServer(shipments.New(emptyRepo{}), nil, hub, render.New(time.UTC), nil, web.Config{})
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	addrs := make(chan [2]string, 1)
	done := make(chan error, 1)
	go func() {
		done <- runTrackWeb(ctx, trackWebOpts{
			httpAddr:   "127.0.0.1:0",
			grpcAddr:   "127.0.0.1:0",
			feedSource: "test",
			onListen:   func(g, h string) { addrs <- [2]string{g, h} },
		}, srv.Router(), hub, &scriptedSource{payloads: [][]byte{[]byte("not json"), payload}})
	}()

	var a [2]string
	select {
	case a = <-addrs:
	case <-time.After(2 * time.Second):
		t.Fatal("servers did not start")
	}

	select {
	case c := <-got:
		require.Equal(t, "delivered", c.Field("status"))
	case <-time.After(2 * time.Second):
		t.Fatal("change was not dispatched")
	}

	require.Eventually(t, func() bool {
		resp, err := http.Get("http://" + a[1] + "/healthz")
		if err != nil {
			return false
		}
		resp.Body.Close()
		return resp.StatusCode == http.StatusOK
	}, 2*time.Second, 20*time.Millisecond)

	var stats feedStats
	require.Eventually(t, func() bool {
		resp, err := http.Get("http://" + a[1] + "/feedz")
		if err != nil {
			return false
		}
		defer resp.Body.Close()
		stats = feedStats{}
		if err := json.NewDecoder(resp.Body).Decode(&stats); err != nil {
			return false
		}
		return stats.Handled != nil && *stats.Handled == 2
	}, 2*time.Second, 20*time.Millisecond)
	require.Equal(t, "test", stats.Source)
	require.Equal(t, 1, stats.Subscriptions)

	resp, err := http.Get("http://" + a[1] + "/api/shipments/NOPE")
	require.NoError(t, err)
	resp.Body.Close()
	require.Equal(t, http.StatusNotFound, resp.StatusCode)

	conn, err := grpc.NewClient(a[0], grpc.WithTransportCredentials(insecure.NewCredentials()))
	require.NoError(t, err)
	defer conn.Close()
	checkCtx, checkCancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer checkCancel()
	hr, err := healthpb.NewHealthClient(conn).Check(checkCtx, &healthpb.HealthCheckRequest{Service: "trackview.web"}, grpc.WaitForReady(true))
	require.NoError(t, err)
	require.Equal(t, healthpb.HealthCheckResponse_SERVING, hr.GetStatus())

	cancel()
	select {
	case err := <-done:
		require.True(t, errors.Is(err, context.Canceled), "unexpected error: %v", err)
	case <-time.After(3 * time.Second):
		t.Fatal("timeout waiting servers to stop")
	}
}

func TestRunTrackWeb_ListenError(t *testing.T) {
	hub := changefeed.NewHub()
	err := runTrackWeb(context.Background(), trackWebOpts{
		httpAddr: "127.0.0.1:0",
		grpcAddr: "not-an-address",
	}, http.NotFoundHandler(), hub, &scriptedSource{})
	require.Error(t, err)
}
