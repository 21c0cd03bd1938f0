package main

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/BearBump/TrackView/config"
	"github.com/BearBump/TrackView/internal/services/relay"
	"github.com/go-chi/chi/v5"
)

type relayHTTPOpts struct {
	relay *relay.Relay
	cfg   *config.Config
	topic string
}

func newRelayRouter(opts relayHTTPOpts) http.Handler {
	r := chi.NewRouter()

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})
	r.Get("/readyz", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		if opts.relay == nil || !opts.relay.Ready() {
			w.WriteHeader(http.StatusServiceUnavailable)
			_, _ = w.Write([]byte(`{"status":"not_ready"}`))
			return
		}
		_, _ = w.Write([]byte(`{"status":"ready"}`))
	})

	r.Get("/stats", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		if opts.relay == nil {
			_, _ = w.Write([]byte(`{"error":"relay not wired"}`))
			return
		}
		_ = json.NewEncoder(w).Encode(opts.relay.Stats())
	})

	r.Get("/config", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		if opts.cfg == nil {
			_, _ = w.Write([]byte(`{"error":"config not wired"}`))
			return
		}
		// только операционные настройки, без паролей
		out := map[string]any{
			"topic":               opts.topic,
			"publishAttempts":     opts.cfg.TrackView.RelayPublishAttempts,
			"restartDelaySeconds": opts.cfg.TrackView.RelayRestartDelaySeconds,
			"kafkaBrokers":        opts.cfg.Kafka.Brokers(),
		}
		_ = json.NewEncoder(w).Encode(out)
	})

	return r
}

func runRelayHTTPServer(ctx context.Context, lis net.Listener, opts relayHTTPOpts) error {
	srv := &http.Server{Handler: newRelayRouter(opts), ReadHeaderTimeout: 5 * time.Second}
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
		_ = lis.Close()
	}()

	slog.Info("relay ops HTTP listening", "addr", lis.Addr().String())
	if err := srv.Serve(lis); !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	<-ctx.Done()
	return ctx.Err()
}
