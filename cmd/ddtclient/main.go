package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/urfave/cli/v3"

	"ddt.game/internal/app"
	"ddt.game/internal/config"
	"ddt.game/internal/devserver"
)

func main() {
	ctx, cancel := signalContext()
	defer cancel()

	if err := newCommand().Run(ctx, os.Args); err != nil {
		fmt.Fprintln(os.Stderr, "ddtclient:", err)
		os.Exit(1)
	}
}

func newCommand() *cli.Command {
	return &cli.Command{
		Name:  "ddtclient",
		Usage: "game network client",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "config", Aliases: []string{"c"}, Usage: "YAML config file"},
			&cli.StringFlag{Name: "env-file", Value: ".env", Usage: "dotenv file with DDT_ variables (optional)"},
		},
		Commands: []*cli.Command{
			{
				Name:  "run",
				Usage: "log in, open the stream and print module events",
				Flags: []cli.Flag{
					&cli.BoolFlag{Name: "sign", Usage: "perform the daily sign-in once connected"},
					&cli.DurationFlag{Name: "for", Usage: "stop after this long (0 runs until interrupted)"},
				},
				Action: runClient,
			},
			{
				Name:  "replay",
				Usage: "feed a frame journal through the modules offline",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "dir", Usage: "journal directory (defaults to journal_dir)"},
				},
				Action: runReplay,
			},
			{
				Name:  "serve",
				Usage: "run the in-memory development server",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "listen", Value: "127.0.0.1:8080", Usage: "http listen address"},
				},
				Action: runServe,
			},
		},
	}
}

func newLogger(prefix string) *log.Logger {
	return log.New(os.Stdout, prefix, log.LstdFlags|log.Lmicroseconds)
}

func loadConfig(cmd *cli.Command) (config.Config, error) {
	return config.Load(cmd.String("config"), cmd.String("env-file"))
}

func runClient(ctx context.Context, cmd *cli.Command) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	logger := newLogger("[ddtclient] ")
	a, err := app.New(cfg, logger)
	if err != nil {
		return err
	}
	defer func() {
		if err := a.Close(); err != nil {
			logger.Printf("close: %v", err)
		}
	}()

	if d := cmd.Duration("for"); d > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, d)
		defer cancel()
	}
	if err := a.Start(ctx); err != nil {
		return err
	}
	if cmd.Bool("sign") {
		a.Modules.DailySign.Get().Sign()
	}
	logger.Printf("connected to %s as %s", cfg.BaseURL, cfg.Account)
	return a.Run(ctx, os.Stdout)
}

func runReplay(ctx context.Context, cmd *cli.Command) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	dir := cmd.String("dir")
	if dir == "" {
		dir = cfg.JournalDir
	}
	if dir == "" {
		return errors.New("missing -dir (or journal_dir)")
	}
	stats, err := app.Replay(dir, os.Stdout, newLogger("[replay] "))
	if err != nil {
		return err
	}
	fmt.Printf("replay ok: files=%d inbound=%d outbound=%d\n", stats.Files, stats.Inbound, stats.Outbound)
	return nil
}

func runServe(ctx context.Context, cmd *cli.Command) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	if err := cfg.RequireCredentials(); err != nil {
		return err
	}
	logger := newLogger("[devserver] ")
	srv := devserver.New(devserver.Options{Account: cfg.Account, Password: cfg.Password}, logger)
	httpSrv := &http.Server{
		Addr:              cmd.String("listen"),
		Handler:           srv.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = httpSrv.Shutdown(shutdownCtx)
	}()

	logger.Printf("listening on http://%s", httpSrv.Addr)
	if err := httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("listen: %w", err)
	}
	return nil
}

func signalContext() (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(context.Background())
	ch := make(chan os.Signal, 1)
	signal.Notify(ch, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-ch
		cancel()
	}()
	return ctx, cancel
}
