package main

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/DoyleJ11/disk-defender-backend/internal/config"
	"github.com/DoyleJ11/disk-defender-backend/internal/httpapi"
	"github.com/DoyleJ11/disk-defender-backend/internal/hub"
	"github.com/DoyleJ11/disk-defender-backend/internal/logger"
	"github.com/DoyleJ11/disk-defender-backend/internal/observability"
	"github.com/DoyleJ11/disk-defender-backend/internal/session"
	"github.com/DoyleJ11/disk-defender-backend/internal/ws"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.opentelemetry.io/otel"
	"go.uber.org/multierr"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"
)

const (
	shutdownTimeout = 10 * time.Second
	meterName       = "github.com/DoyleJ11/disk-defender-backend"
)

type runFunc func(ctx context.Context, cfg config.Config) error

func newRootCmd(run runFunc) *cobra.Command {
	v := viper.New()
	var cfgFile string

	cmd := &cobra.Command{
		Use:   "defender",
		Short: "Disk Drive Defender game server",
		Long: `defender runs the authoritative server for Disk Drive Defender.

Clients connect over a websocket at /ws?code=LOBBY&pid=PLAYER. Lobbies are
created with POST /lobbies and listed with GET /lobbies.

Every flag can also be set with a DEFENDER_ environment variable
(for example DEFENDER_ADDR=:9000), a .env file, or a config file.`,
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(v, cfgFile)
			if err != nil {
				return err
			}
			return run(cmd.Context(), cfg)
		},
	}

	flags := cmd.Flags()
	flags.StringVar(&cfgFile, "config", "", "config file (json, yaml or toml)")
	flags.String("addr", ":8080", "listen address")
	flags.String("log-level", "info", "log level (debug, info, warn, error)")
	flags.Bool("log-dev", false, "human-readable development logs")
	flags.String("default-lobby", "MAIN", "code of the lobby that always exists")
	flags.Bool("fill-bots", false, "start lobbies with bots filling empty roles")
	flags.Bool("strict-service", false, "verify service claims against the server cursor")
	flags.StringSlice("allowed-origins", nil, "websocket origin patterns")
	flags.Bool("metrics", true, "serve /metrics")

	for key, flag := range map[string]string{
		"addr":            "addr",
		"log_level":       "log-level",
		"log_dev":         "log-dev",
		"default_lobby":   "default-lobby",
		"fill_bots":       "fill-bots",
		"strict_service":  "strict-service",
		"allowed_origins": "allowed-origins",
		"metrics":         "metrics",
	} {
		_ = v.BindPFlag(key, flags.Lookup(flag))
	}
	return cmd
}

func run(parent context.Context, cfg config.Config) error {
	log, err := logger.New(cfg.LogLevel, cfg.LogDev)
	if err != nil {
		return err
	}
	defer func() { _ = log.Sync() }()

	ctx, stop := signal.NotifyContext(parent, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	var (
		metricsHandler  http.Handler
		metricsShutdown = func(context.Context) error { return nil }
		gameMetrics     *observability.Metrics
	)
	if cfg.Metrics {
		metricsHandler, metricsShutdown, err = observability.InitMetrics()
		if err != nil {
			return err
		}
		if gameMetrics, err = observability.NewMetrics(otel.Meter(meterName)); err != nil {
			return fmt.Errorf("create metrics: %w", err)
		}
	}

	h := hub.NewHub(context.Background(), hub.Config{
		DefaultCode: cfg.DefaultLobby,
		Session: session.Options{
			FillBots:      cfg.FillBots,
			StrictService: cfg.StrictService,
			Metrics:       gameMetrics,
		},
		Log: log,
	})

	if cfg.Metrics {
		lobbies, conns := hubGauges(h)
		if err := observability.RegisterGauges(otel.Meter(meterName), lobbies, conns); err != nil {
			return fmt.Errorf("register gauges: %w", err)
		}
	}

	handler := httpapi.SetupRoutes(h, httpapi.Options{
		WS: ws.Config{
			OriginPatterns: cfg.AllowedOrigins,
			ActionRate:     rate.Limit(cfg.ActionRate),
			ActionBurst:    cfg.ActionBurst,
			WriteTimeout:   cfg.WriteTimeout,
			PingInterval:   cfg.PingInterval,
			PingTimeout:    cfg.PingTimeout,
			OutboxSize:     cfg.OutboxSize,
		},
		Metrics: metricsHandler,
		Log:     log,
	})

	srv := &http.Server{
		Addr:              cfg.Addr,
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
		// Cancelling ctx unblocks websocket readers, which Shutdown does not track.
		BaseContext: func(net.Listener) context.Context { return ctx },
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.Info("listening", zap.String("addr", cfg.Addr), zap.String("default_lobby", cfg.DefaultLobby))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		log.Info("shutting down")

		sctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		stop()

		var errs error
		errs = multierr.Append(errs, srv.Shutdown(sctx))
		errs = multierr.Append(errs, h.Shutdown(sctx))
		errs = multierr.Append(errs, metricsShutdown(sctx))
		return errs
	})

	return g.Wait()
}

// hubGauges samples the hub for the lobby and connection gauges.
func hubGauges(h *hub.Hub) (lobbies, conns func(context.Context) (int64, error)) {
	lobbies = func(ctx context.Context) (int64, error) {
		views, err := h.Views(ctx)
		return int64(len(views)), err
	}
	conns = func(ctx context.Context) (int64, error) {
		views, err := h.Views(ctx)
		if err != nil {
			return 0, err
		}
		var n int64
		for _, v := range views {
			n += int64(v.Connections)
		}
		return n, nil
	}
	return lobbies, conns
}
