package main

import (
	"context"
	"log/slog"
	"net"
	"time"

	"github.com/BearBump/TrackView/config"
	"github.com/BearBump/TrackView/internal/api/grpchealth"
	"github.com/BearBump/TrackView/internal/broker/kafka"
	"github.com/BearBump/TrackView/internal/services/relay"
	"github.com/BearBump/TrackView/internal/storage/pgshipments"
)

type relayFactories struct {
	newListener func(cfg *config.Config) (l relay.Listener, closeFn func(), err error)
	newProducer func(cfg *config.Config) (p relay.Producer, closeFn func())
}

func defaultRelayFactories() relayFactories {
	return relayFactories{
		newListener: func(cfg *config.Config) (relay.Listener, func(), error) {
			st, err := pgshipments.New(cfg.Database.ConnString())
			if err != nil {
				return nil, nil, err
			}
			return st, st.Close, nil
		},
		newProducer: func(cfg *config.Config) (relay.Producer, func()) {
			p := kafka.NewProducer(cfg.Kafka.Brokers())
			return p, func() { _ = p.Close() }
		},
	}
}

type relayOpts struct {
	httpAddr string
	grpcAddr string
	onListen func(grpcAddr, httpAddr string)
}

func RunFeedRelay(ctx context.Context, cfg *config.Config, f relayFactories, opts relayOpts) error {
	topic := cfg.Kafka.ChangesTopicName
	if topic == "" {
		topic = "shipments.changes"
	}
	if opts.httpAddr == "" {
		opts.httpAddr = cfg.TrackView.RelayHTTPAddr
	}
	if opts.httpAddr == "" {
		opts.httpAddr = ":8082"
	}
	if opts.grpcAddr == "" {
		opts.grpcAddr = cfg.TrackView.RelayGRPCAddr
	}
	if opts.grpcAddr == "" {
		opts.grpcAddr = ":50052"
	}
	restartDelay := time.Duration(cfg.TrackView.RelayRestartDelaySeconds) * time.Second
	if restartDelay <= 0 {
		restartDelay = time.Second
	}

	listener, closeFn, err := f.newListener(cfg)
	if err != nil {
		return err
	}
	if closeFn != nil {
		defer closeFn()
	}
	producer, closeProducer := f.newProducer(cfg)
	if closeProducer != nil {
		defer closeProducer()
	}

	r := relay.New(listener, producer, pgshipments.ChangesChannel, topic).
		WithSettings(cfg.TrackView.RelayPublishAttempts, restartDelay)

	grpcLis, err := net.Listen("tcp", opts.grpcAddr)
	if err != nil {
		return err
	}
	httpLis, err := net.Listen("tcp", opts.httpAddr)
	if err != nil {
		_ = grpcLis.Close()
		return err
	}
	if opts.onListen != nil {
		opts.onListen(grpcLis.Addr().String(), httpLis.Addr().String())
	}

	grpcErr := make(chan error, 1)
	go func() { grpcErr <- grpchealth.Serve(ctx, grpcLis, "trackview.relay") }()

	httpErr := make(chan error, 1)
	go func() {
		httpErr <- runRelayHTTPServer(ctx, httpLis, relayHTTPOpts{relay: r, cfg: cfg, topic: topic})
	}()

	relayErr := make(chan error, 1)
	go func() {
		slog.Info("feed relay started", "channel", pgshipments.ChangesChannel, "topic", topic)
		relayErr <- r.Run(ctx)
	}()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case err := <-relayErr:
		return err
	case err := <-grpcErr:
		return err
	case err := <-httpErr:
		return err
	}
}
