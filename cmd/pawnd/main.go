package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"nftpawn/config"
	"nftpawn/observability/logging"
	telemetry "nftpawn/observability/otel"
)

func main() {
	var cfgPath string
	var listenFlag string
	flag.StringVar(&cfgPath, "config", "./pawnd.toml", "path to daemon configuration (created with defaults when missing)")
	flag.StringVar(&listenFlag, "listen", "", "override the configured listen address")
	flag.Parse()

	if err := run(cfgPath, listenFlag); err != nil {
		fmt.Fprintf(os.Stderr, "pawnd: %v\n", err)
		os.Exit(1)
	}
}

func run(cfgPath, listenOverride string) error {
	cfg, err := config.Load(cfgPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if strings.TrimSpace(listenOverride) != "" {
		cfg.ListenAddress = listenOverride
	}

	env := cfg.Log.Env
	if fromEnv := strings.TrimSpace(os.Getenv("PAWN_ENV")); fromEnv != "" {
		env = fromEnv
	}
	opts := []logging.Option{logging.WithLevel(cfg.Log.Level)}
	if strings.TrimSpace(cfg.Log.File) != "" {
		opts = append(opts, logging.WithFile(cfg.Log.File, cfg.Log.MaxSizeMB, cfg.Log.MaxBackups))
	}
	logger := logging.Setup("pawnd", env, opts...)

	shutdownTelemetry, err := telemetry.Init(context.Background(), telemetry.Config{
		ServiceName: "pawnd",
		Environment: env,
		Endpoint:    cfg.Telemetry.Endpoint,
		Insecure:    cfg.Telemetry.Insecure,
		Headers:     telemetry.ParseHeaders(cfg.Telemetry.Headers),
		Metrics:     cfg.Telemetry.Metrics,
		Traces:      cfg.Telemetry.Traces,
	})
	if err != nil {
		return fmt.Errorf("initialise telemetry: %w", err)
	}
	defer func() {
		if err := shutdownTelemetry(context.Background()); err != nil {
			logger.Warn("telemetry shutdown failed", "error", err)
		}
	}()

	logger.Info("configuration loaded",
		"listen", cfg.ListenAddress,
		"storage", cfg.Storage,
		"datadir", cfg.DataDir,
		"programid", cfg.ProgramID,
		"env", env,
		"faucet_enabled", cfg.Faucet.Enabled,
		logging.MaskField("faucet_token", cfg.Faucet.Token),
		"otlp_endpoint", cfg.Telemetry.Endpoint,
		logging.MaskField("otlp_headers", cfg.Telemetry.Headers),
	)

	node, err := newNode(cfg, logger)
	if err != nil {
		return err
	}
	defer node.Close()

	server := &http.Server{
		Handler:           otelhttp.NewHandler(node.Handler(), "pawnd"),
		ReadHeaderTimeout: 10 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	listener, err := net.Listen("tcp", cfg.ListenAddress)
	if err != nil {
		return fmt.Errorf("listen: %w", err)
	}
	serveErr := make(chan error, 1)
	go func() {
		logger.Info("listening", "listen", listener.Addr().String())
		if err := server.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	select {
	case err := <-serveErr:
		if err != nil {
			return fmt.Errorf("serve: %w", err)
		}
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), time.Duration(cfg.ShutdownSeconds)*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Warn("graceful shutdown failed", "error", err)
	}
	logger.Info("stopped")
	return nil
}
