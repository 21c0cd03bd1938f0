package main

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/BearBump/TrackView/internal/api/grpchealth"
	"github.com/BearBump/TrackView/internal/changefeed"
)

type trackWebOpts struct {
	httpAddr string
	grpcAddr string

	feedSource string

	onListen func(grpcAddr, httpAddr string)
}

func runTrackWeb(ctx context.Context, opts trackWebOpts, handler http.Handler, hub *changefeed.Hub, src changefeed.Consumer) error {
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
	go func() { grpcErr <- grpchealth.Serve(ctx, grpcLis, "trackview.web") }()

	httpErr := make(chan error, 1)
	go func() { httpErr <- runWebServer(ctx, httpLis, newWebRouter(handler, hub, src, opts.feedSource)) }()

	go func() {
		slog.Info("change feed started", "source", opts.feedSource)
		_ = hub.Run(ctx, src, time.Second)
	}()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case err := <-grpcErr:
		return err
	case err := <-httpErr:
		return err
	}
}

func runWebServer(ctx context.Context, lis net.Listener, handler http.Handler) error {
	// живые потоки завершаются вместе с ctx, иначе Shutdown ждёт их до таймаута
	srv := &http.Server{
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
		BaseContext:       func(net.Listener) context.Context { return ctx },
	}
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	slog.Info("web server listening", "addr", lis.Addr().String())
	if err := srv.Serve(lis); !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	<-ctx.Done()
	return ctx.Err()
}
