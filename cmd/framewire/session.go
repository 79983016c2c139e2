package main

import (
	"context"
	"os/signal"
	"sync/atomic"
	"syscall"

	"github.com/danmuck/framewire/internal/channel"
	"github.com/danmuck/framewire/internal/config"
	"github.com/danmuck/framewire/internal/endpoint"
	"github.com/danmuck/framewire/internal/logging"
	"github.com/danmuck/framewire/internal/observability"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"
)

// session is one connected endpoint with its typed channel.
type session struct {
	cfg config.Config
	ep  *endpoint.Endpoint
	ch  *channel.Channel
	log zerolog.Logger
}

// runSession opens the endpoint described by cfg, runs fn over it and
// tears everything down. The probe server, when configured, runs for the
// whole call so it also reports the time spent waiting for a peer.
func runSession(parent context.Context, cfg config.Config, fn func(ctx context.Context, s *session) error) error {
	ctx, stop := signal.NotifyContext(parent, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	log := logging.For("framewire", cfg.Debug).With().Str("role", cfg.Role).Logger()
	var live atomic.Pointer[endpoint.Endpoint]

	g, gctx := errgroup.WithContext(ctx)
	probeCtx, stopProbe := context.WithCancel(gctx)
	defer stopProbe()
	if cfg.Metrics.Addr != "" {
		router := observability.NewRouter("framewire", cfg.Role, func() bool {
			ep := live.Load()
			return ep != nil && ep.Connected()
		}, log)
		g.Go(func() error {
			log.Info().Str("addr", cfg.Metrics.Addr).Msg("probe listening")
			return observability.Serve(probeCtx, cfg.Metrics.Addr, router)
		})
	}

	g.Go(func() error {
		defer stopProbe()
		ep, err := endpoint.Open(gctx, cfg.EndpointConfig())
		if err != nil {
			return err
		}
		live.Store(ep)
		defer ep.Close()

		opts, err := cfg.ChannelOptions()
		if err != nil {
			return err
		}
		ch, err := channel.New(ep, opts)
		if err != nil {
			return err
		}
		return fn(gctx, &session{cfg: cfg, ep: ep, ch: ch, log: log})
	})
	return g.Wait()
}
