package cmd

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"

	"aigateway/internal/config"
	"aigateway/internal/provider/factory"
	"aigateway/internal/server"
)

const serveUsage = `Usage:
  aigateway serve [--config <path>] [--port <port>]

Flags:
  --config string   Optional YAML configuration file; environment variables override it
  --port   int      Override server port from configuration`

func serve(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("serve", flag.ContinueOnError)
	fs.Usage = func() {
		fmt.Fprintln(os.Stderr, serveUsage)
	}

	var cfgPath string
	var overridePort int
	fs.StringVar(&cfgPath, "config", "", "path to configuration file")
	fs.IntVar(&overridePort, "port", 0, "override server port")

	if err := fs.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return nil
		}
		return fmt.Errorf("parse serve flags: %w", err)
	}

	cfg, err := config.Load(cfgPath)
	if err != nil {
		return err
	}

	if overridePort != 0 {
		if overridePort <= 0 || overridePort > 65535 {
			return fmt.Errorf("port override %d must be a valid TCP port", overridePort)
		}
		cfg.Server.Port = overridePort
	}

	level, err := config.ParseLogLevel(cfg.Log.Level)
	if err != nil {
		return err
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})))

	client, err := factory.New(cfg)
	if err != nil {
		// The resolution failure itself is logged; callers only ever see a
		// generic message.
		slog.Error("failed to initialize AI client", "err", err)
		return errors.New("AI service unavailable")
	}

	srv, err := server.New(cfg, client)
	if err != nil {
		return err
	}

	return srv.Run(ctx)
}
