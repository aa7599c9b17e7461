// Package app is the composition root: one channel plus the domain
// controllers bound to it.
package app

import (
	"context"
	"fmt"
	"io"
	"log"

	"ddt.game/internal/channel"
	"ddt.game/internal/config"
	"ddt.game/internal/stream"
)

type App struct {
	Channel *channel.Channel
	Modules *Modules

	cfg config.Config
	log *log.Logger
}

func New(cfg config.Config, logger *log.Logger) (*App, error) {
	if logger == nil {
		logger = log.Default()
	}
	ch, err := channel.New(cfg, prefixed(logger, "[net] "))
	if err != nil {
		return nil, err
	}
	return &App{
		Channel: ch,
		Modules: NewModules(ch, logger),
		cfg:     cfg,
		log:     logger,
	}, nil
}

// Start registers the controllers, logs in, opens the stream and requests
// the initial snapshots.
func (a *App) Start(ctx context.Context) error {
	if err := a.cfg.RequireCredentials(); err != nil {
		return err
	}
	a.Modules.Init()
	if err := a.Channel.EstablishConnection(ctx, a.cfg.Account, a.cfg.Password); err != nil {
		return fmt.Errorf("establish connection: %w", err)
	}
	a.Modules.RequestAll()
	return nil
}

// Run reports events to w and ticks until ctx is done or the stream
// closes. A stream loss is returned as an error.
func (a *App) Run(ctx context.Context, w io.Writer) error {
	a.Modules.Report(w)

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	var lost error
	sub := a.Channel.OnState(func(sc stream.StateChange) {
		fmt.Fprintf(w, "stream %s\n", sc.State)
		if sc.Closed() {
			lost = sc.Err
			if lost == nil {
				lost = fmt.Errorf("stream closed by server")
			}
			cancel()
		}
	})
	defer a.Channel.OffState(sub)

	if err := a.Channel.Run(ctx, a.cfg.TickInterval); err != nil {
		return err
	}
	return lost
}

// Close disposes the controllers and shuts the channel down.
func (a *App) Close() error {
	a.Modules.Dispose()
	return a.Channel.Close()
}
