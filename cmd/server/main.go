// Command server runs the game over TCP and WebSocket.
package main

import (
	"context"
	"errors"
	"flag"
	"log/slog"
	"math/rand"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/lmittmann/tint"

	"github.com/quyht-dev/tienlen/internal/app"
	"github.com/quyht-dev/tienlen/internal/config"
	"github.com/quyht-dev/tienlen/internal/transport/tcp"
	"github.com/quyht-dev/tienlen/internal/transport/ws"
)

func main() {
	configPath := flag.String("config", "config.json", "path to the JSON config file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	logger := slog.New(tint.NewHandler(os.Stderr, &tint.Options{
		Level:      cfg.SlogLevel(),
		TimeFormat: time.TimeOnly,
	}))
	slog.SetDefault(logger)

	if err := run(cfg, logger); err != nil {
		logger.Error("server stopped", "error", err)
		os.Exit(1)
	}
}

func run(cfg *config.Config, logger *slog.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	voice := app.NewVoiceService(cfg.VivoxSecret, cfg.VivoxIssuer, cfg.VivoxDomain, cfg.VoiceTokenTTL())
	if voice == nil {
		logger.Info("voice tokens disabled")
	}
	sessions := app.NewSessions()
	rooms := app.NewRoomRegistry(rand.New(rand.NewSource(time.Now().UnixNano())))
	d := app.NewDispatcher(sessions, rooms, voice, logger)

	monitor := app.NewMonitor(sessions, cfg.PingInterval(), cfg.SweepInterval(), cfg.SessionTimeout(), logger)
	tcpServer := tcp.NewServer(d, cfg.MaxFrameBytes, cfg.SendQueueSize, logger)
	httpServer := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           ws.NewRouter(ws.NewHandler(d, cfg.MaxFrameBytes, cfg.SendQueueSize, logger), rooms),
		ReadHeaderTimeout: 5 * time.Second,
	}

	var wg sync.WaitGroup
	errs := make(chan error, 2)

	wg.Add(4)
	go func() { defer wg.Done(); monitor.Run(ctx) }()
	go func() { defer wg.Done(); rooms.RunReaper(ctx, cfg.SweepInterval(), cfg.RoomTTL()) }()
	go func() {
		defer wg.Done()
		if err := tcpServer.ListenAndServe(ctx, cfg.TCPAddr); err != nil {
			errs <- err
		}
	}()
	go func() {
		defer wg.Done()
		logger.Info("http listening", "addr", cfg.HTTPAddr)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errs <- err
		}
	}()

	var runErr error
	select {
	case <-ctx.Done():
		logger.Info("shutting down")
	case runErr = <-errs:
		stop()
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Warn("http shutdown", "error", err)
	}
	wg.Wait()
	return runErr
}
