package main

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/BearBump/TrackView/config"
	"github.com/BearBump/TrackView/internal/services/relay"
	"github.com/stretchr/testify/require"
)

type blockingListener struct{}

func (blockingListener) Listen(ctx context.Context, _ string, _ func([]byte) error) error {
	<-ctx.Done()
	return ctx.Err()
}

type noopProducer struct{}

func (noopProducer) Publish(context.Context, string, []byte, []byte) error { return nil }

func testFactories(closed *bool) relayFactories {
	return relayFactories{
		newListener: func(*config.Config) (relay.Listener, func(), error) {
			return blockingListener{}, func() { *closed = true }, nil
		},
		newProducer: func(*config.Config) (relay.Producer, func()) {
			return noopProducer{}, nil
		},
	}
}

func TestDefaultRelayFactories_ProducerNonNil(t *testing.T) {
	f := defaultRelayFactories()
	p, closeFn := f.newProducer(&config.Config{Kafka: config.KafkaConfig{Host: "localhost", Port: 9092}})
	require.NotNil(t, p)
	require.NotNil(t, closeFn)
	closeFn()
}

func TestRunFeedRelay_ListenerErrorAborts(t *testing.T) {
	f := relayFactories{
		newListener: func(*config.Config) (relay.Listener, func(), error) {
			return nil, nil, errors.New("postgres is down")
		},
		newProducer: func(*config.Config) (relay.Producer, func()) { return noopProducer{}, nil },
	}
	err := RunFeedRelay(context.Background(), &config.Config{}, f, relayOpts{httpAddr: "127.0.0.1:0", grpcAddr: "127.0.0.1:0"})
	require.EqualError(t, err, "postgres is down")
}

func TestRunFeedRelay_OpsEndpoints(t *testing.T) {
	closed := false
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	addrCh := make(chan string, 1)
	opts := relayOpts{
		httpAddr: "127.0.0.1:0",
		grpcAddr: "127.0.0.1:0",
		onListen: func(_grpcAddr, httpAddr string) { addrCh <- httpAddr },
	}
	cfg := &config.Config{Kafka: config.KafkaConfig{Host: "kafka", Port: 9092}}

	errCh := make(chan error, 1)
	go func() { errCh <- RunFeedRelay(ctx, cfg, testFactories(&closed), opts) }()

	base := "http://" + <-addrCh

	resp, err := http.Get(base + "/healthz")
	require.NoError(t, err)
	resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	require.Eventually(t, func() bool {
		resp, err := http.Get(base + "/readyz")
		if err != nil {
			return false
		}
		resp.Body.Close()
		return resp.StatusCode == http.StatusOK
	}, 2*time.Second, 10*time.Millisecond)

	resp, err = http.Get(base + "/stats")
	require.NoError(t, err)
	body, _ := io.ReadAll(resp.Body)
	resp.Body.Close()
	var st relay.Stats
	require.NoError(t, json.Unmarshal(body, &st))
	require.True(t, st.Listening)

	resp, err = http.Get(base + "/config")
	require.NoError(t, err)
	body, _ = io.ReadAll(resp.Body)
	resp.Body.Close()
	require.Contains(t, string(body), `"topic":"shipments.changes"`)
	require.Contains(t, string(body), "kafka:9092")

	cancel()
	select {
	case err := <-errCh:
		require.Error(t, err)
	case <-time.After(3 * time.Second):
		t.Fatal("relay did not stop")
	}
	require.True(t, closed)
}

func TestRelayRouter_NotReadyWithoutListener(t *testing.T) {
	r := relay.New(blockingListener{}, noopProducer{}, "c", "t")
	h := newRelayRouter(relayHTTPOpts{relay: r})

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/readyz", nil))
	require.Equal(t, http.StatusServiceUnavailable, rec.Code)
}
