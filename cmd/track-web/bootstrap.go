package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/BearBump/TrackView/config"
	"github.com/BearBump/TrackView/internal/api/web"
	"github.com/BearBump/TrackView/internal/broker/kafka"
	"github.com/BearBump/TrackView/internal/cache/rediscache"
	"github.com/BearBump/TrackView/internal/changefeed"
	"github.com/BearBump/TrackView/internal/render"
	"github.com/BearBump/TrackView/internal/services/auth"
	"github.com/BearBump/TrackView/internal/services/shipments"
	"github.com/BearBump/TrackView/internal/storage/pgshipments"
)

const (
	feedSourceKafka    = "kafka"
	feedSourcePostgres = "postgres"
)

type trackWebApp struct {
	ctx     context.Context
	cancel  context.CancelFunc
	opts    trackWebOpts
	handler http.Handler
	hub     *changefeed.Hub
	source  changefeed.Consumer
	closers []func()
}

func mustBootstrapTrackWeb() *trackWebApp {
	cfg, err := config.LoadFromEnv()
	if err != nil {
		panic(fmt.Sprintf("ошибка парсинга конфига, %v", err))
	}
	tv := cfg.TrackView

	grpcAddr := tv.GRPCAddr
	if grpcAddr == "" {
		grpcAddr = ":50051"
	}
	httpAddr := tv.HTTPAddr
	if httpAddr == "" {
		httpAddr = ":8080"
	}
	feedSource := tv.ChangeFeedSource
	if feedSource == "" {
		feedSource = feedSourceKafka
	}
	topic := cfg.Kafka.ChangesTopicName
	if topic == "" {
		topic = "shipments.changes"
	}
	sessionTTL := time.Duration(tv.SessionTTLSeconds) * time.Second
	if sessionTTL <= 0 {
		sessionTTL = 12 * time.Hour
	}

	loc := time.UTC
	if tv.DisplayTimeZone != "" {
		loc, err = time.LoadLocation(tv.DisplayTimeZone)
		if err != nil {
			panic(fmt.Sprintf("unknown display time zone %q: %v", tv.DisplayTimeZone, err))
		}
	}

	app := &trackWebApp{hub: changefeed.NewHub()}

	st := mustOpenPostgresWithRetry(cfg.Database.ConnString(), 60*time.Second)
	app.closers = append(app.closers, st.Close)

	sessions := rediscache.New(cfg.Redis.Addr())
	limiter := rediscache.NewRateLimiter(cfg.Redis.Addr())
	app.closers = append(app.closers,
		func() { _ = sessions.Close() },
		func() { _ = limiter.Close() },
	)

	tokens, err := auth.NewTokenSigner(tv.JWTSecret)
	if err != nil {
		panic(err)
	}
	authSvc := auth.New(st, sessions, limiter, auth.NewBcryptHasher(tv.BcryptCost), tokens, auth.Config{
		SessionTTL: sessionTTL,
		LoginLimit: int64(tv.LoginRateLimitPerMinute),
	})

	srv, err := web.NewServer(shipments.New(st), authSvc, app.hub, render.New(loc), limiter, web.Config{
		CookieName:   tv.SessionCookieName,
		CookieSecure: tv.CookieSecure,
		LookupLimit:  int64(tv.LookupRateLimitPerMinute),
		SwaggerPath:  tv.SwaggerPath,
	})
	if err != nil {
		panic(err)
	}
	app.handler = srv.Router()

	switch feedSource {
	case feedSourceKafka:
		group := tv.KafkaConsumerGroup
		if group == "" {
			// каждому экземпляру нужен весь поток изменений
			host, _ := os.Hostname()
			group = "track-web-" + host
		}
		consumer := kafka.NewConsumer(cfg.Kafka.Brokers(), topic, group)
		app.closers = append(app.closers, func() { _ = consumer.Close() })
		app.source = consumer
		slog.Info("change feed via kafka", "topic", topic, "group", group)
	case feedSourcePostgres:
		app.source = changefeed.NewPostgresSource(st, pgshipments.ChangesChannel)
		slog.Info("change feed via postgres", "channel", pgshipments.ChangesChannel)
	default:
		panic(fmt.Sprintf("unknown change_feed_source %q", feedSource))
	}

	app.ctx, app.cancel = signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	app.opts = trackWebOpts{
		httpAddr:   httpAddr,
		grpcAddr:   grpcAddr,
		feedSource: feedSource,
	}
	return app
}

func mustOpenPostgresWithRetry(connString string, wait time.Duration) *pgshipments.Storage {
	deadline := time.Now().Add(wait)
	var lastErr error
	for time.Now().Before(deadline) {
		st, err := pgshipments.New(connString)
		if err == nil {
			return st
		}
		lastErr = err
		slog.Warn("postgres is not ready, retrying", "error", err.Error())
		time.Sleep(1 * time.Second)
	}
	panic(fmt.Sprintf("postgres is not ready after %s: %v", wait, lastErr))
}

func (a *trackWebApp) Close() {
	if a.cancel != nil {
		a.cancel()
	}
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
}

func (a *trackWebApp) Run() error {
	return runTrackWeb(a.ctx, a.opts, a.handler, a.hub, a.source)
}
