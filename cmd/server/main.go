package main

import (
	"context"
	"errors"
	"flag"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/andy6609/chat-relay/internal/audit"
	"github.com/andy6609/chat-relay/internal/chat"
	"github.com/andy6609/chat-relay/internal/config"
	"github.com/andy6609/chat-relay/internal/console"
	"github.com/andy6609/chat-relay/internal/credential"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

func main() {
	envFile := flag.String("env", ".env", "optional dotenv file")
	addr := flag.String("addr", "", "chat listen address (overrides CHAT_ADDR)")
	metricsAddr := flag.String("metrics-addr", "", "metrics listen address (overrides CHAT_METRICS_ADDR)")
	usersFile := flag.String("users", "", "credential file (overrides CHAT_USERS_FILE)")
	auditFile := flag.String("audit", "", "audit log file (overrides CHAT_AUDIT_FILE)")
	interactive := flag.Bool("console", true, "read operator commands from stdin")
	flag.Parse()

	cfg, err := config.LoadServer(*envFile)
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}
	override(&cfg.Addr, *addr)
	override(&cfg.MetricsAddr, *metricsAddr)
	override(&cfg.UsersFile, *usersFile)
	override(&cfg.AuditFile, *auditFile)
	if err := config.Validate(cfg); err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: config.Level(cfg.LogLevel),
	}))

	creds, err := credential.LoadFile(cfg.UsersFile, logger)
	if err != nil {
		logger.Error("failed to load credentials", "error", err)
		os.Exit(1)
	}

	fileSink, err := audit.NewFileSink(cfg.AuditFile, logger)
	if err != nil {
		logger.Error("failed to open audit log", "error", err)
		os.Exit(1)
	}
	sink := audit.Multi{fileSink, audit.LogSink{Logger: logger}}

	srv := chat.NewServer(chat.Options{
		Addr:        cfg.Addr,
		Credentials: creds,
		Audit:       sink,
		Logger:      logger,
		SendBuffer:  cfg.SendBuffer,
	})
	if err := srv.Start(); err != nil {
		logger.Error("failed to start server", "error", err)
		os.Exit(1)
	}

	metrics := startMetrics(cfg.MetricsAddr, logger)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if *interactive {
		go console.New(srv, os.Stdout, sink).Run(ctx, os.Stdin)
	}

	select {
	case <-ctx.Done():
	case <-srv.Done():
	}

	srv.Shutdown()
	if metrics != nil {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = metrics.Shutdown(shutdownCtx)
	}
}

func startMetrics(addr string, logger *slog.Logger) *http.Server {
	if addr == "" {
		return nil
	}
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	hs := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}
	go func() {
		if err := hs.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("metrics server failed", "error", err)
		}
	}()
	logger.Info("metrics endpoint started", "addr", addr)
	return hs
}

func override(dst *string, v string) {
	if v != "" {
		*dst = v
	}
}
