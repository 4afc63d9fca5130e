package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/sasha-s/go-deadlock"

	"github.com/sakshamg567/snakearena/internal/admin"
	"github.com/sakshamg567/snakearena/internal/config"
	"github.com/sakshamg567/snakearena/internal/results"
	"github.com/sakshamg567/snakearena/internal/room"
	"github.com/sakshamg567/snakearena/internal/transport"
	"github.com/sakshamg567/snakearena/logger"
	"github.com/sakshamg567/snakearena/pkg/utils"
)

func main() {
	if err := config.LoadEnv(".env"); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to read .env: %v\n", err)
		os.Exit(1)
	}
	cfg, err := config.Parse(os.Args[0], os.Args[1:])
	if err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return
		}
		fmt.Fprintf(os.Stderr, "%v\n", err)
		os.Exit(2)
	}

	if err := initLogging(cfg); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize logging: %v\n", err)
		os.Exit(1)
	}
	deadlock.Opts.Disable = !cfg.DeadlockDetect

	if err := run(cfg); err != nil {
		logger.Error("%v", err)
		os.Exit(1)
	}
}

func initLogging(cfg *config.Config) error {
	level, err := logger.ParseLevel(cfg.LogLevel)
	if err != nil {
		return err
	}
	logger.SetLevel(level)

	if cfg.LogFile != "" {
		f, err := os.OpenFile(cfg.LogFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			return fmt.Errorf("open log file: %w", err)
		}
		logger.SetOutput(f)
	}
	return nil
}

func templates(cfg *config.Config) ([]room.Template, error) {
	var out []room.Template
	if !cfg.SkipBuiltin {
		builtin, err := room.DefaultTemplates()
		if err != nil {
			return nil, err
		}
		out = append(out, builtin...)
	}
	if cfg.LayoutDir != "" {
		layouts, err := utils.LoadLayouts(cfg.LayoutDir)
		if err != nil {
			return nil, fmt.Errorf("load layouts: %w", err)
		}
		for _, l := range layouts {
			out = append(out, room.TemplateFromLayout(l))
		}
	}
	return out, nil
}

func run(cfg *config.Config) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var (
		rec results.Recorder
		src admin.ResultSource
	)
	if cfg.RedisAddr != "" {
		rr := results.NewRedisRecorder(results.NewRedisPool(cfg.RedisAddr), cfg.RedisKey, cfg.RedisChannel)
		defer rr.Close()
		rec, src = rr, rr
		logger.Info("Publishing results to redis at %s", cfg.RedisAddr)
	}

	tmpls, err := templates(cfg)
	if err != nil {
		return err
	}
	rm, err := room.NewRoomManager(ctx, tmpls, cfg.TickTimeout, rec)
	if err != nil {
		return err
	}
	logger.Info("Loaded %d rooms", rm.Len())

	tcp, err := transport.ListenTCP(cfg.GameAddr, rm.Waiting)
	if err != nil {
		return err
	}

	app := admin.NewApp(rm, src)
	transport.RegisterWebSocket(app, rm.Waiting)

	errc := make(chan error, 2)
	go func() { errc <- tcp.Serve(ctx) }()
	go func() {
		logger.Info("Admin API listening on %s", cfg.HTTPAddr)
		errc <- app.Listen(cfg.HTTPAddr)
	}()

	select {
	case <-ctx.Done():
		logger.Info("Received shutdown signal, stopping server...")
	case err = <-errc:
	}

	stop()
	rm.Shutdown()
	if serr := app.Shutdown(); serr != nil {
		logger.Warn("http shutdown: %v", serr)
	}
	return err
}
