package main

import (
	"context"
	"errors"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/jonboulle/clockwork"

	"github.com/sofiavldd2005/gs-dashboard-experiment/internal/adapter/httpserver"
	"github.com/sofiavldd2005/gs-dashboard-experiment/internal/adapter/metrics"
	"github.com/sofiavldd2005/gs-dashboard-experiment/internal/adapter/websocket"
	"github.com/sofiavldd2005/gs-dashboard-experiment/internal/broadcast"
	"github.com/sofiavldd2005/gs-dashboard-experiment/internal/domain"
	"github.com/sofiavldd2005/gs-dashboard-experiment/internal/funnel"
	"github.com/sofiavldd2005/gs-dashboard-experiment/internal/platform/config"
	"github.com/sofiavldd2005/gs-dashboard-experiment/internal/platform/logging"
	"github.com/sofiavldd2005/gs-dashboard-experiment/internal/platform/version"
	"github.com/sofiavldd2005/gs-dashboard-experiment/internal/radiolink"
	"github.com/sofiavldd2005/gs-dashboard-experiment/internal/session"
)

func setupConfig() *config.Config {
	cfg, err := config.Load()
	if err != nil {
		// Use log before slog is initialized
		log.Fatalf("Failed to load config: %v", err)
	}
	return cfg
}

func setupTransmitter(ctx context.Context, cfg *config.Config, clock clockwork.Clock, m *metrics.CommandMetrics) (radiolink.Transmitter, func()) {
	if cfg.RadioLinkAddr == "" {
		slog.Info("No radio link configured, commands will only be logged")
		return radiolink.NewLogTransmitter(nil), func() {}
	}

	tx, err := radiolink.DialUDP(ctx, cfg.RadioLinkAddr, cfg.RadioLinkTimeout,
		radiolink.WithClock(clock),
		radiolink.WithBreakerMetrics(m),
	)
	if err != nil {
		slog.Error("Failed to set up radio link", "addr", cfg.RadioLinkAddr, "error", err)
		os.Exit(1)
	}
	slog.Info("Radio link configured", "addr", tx.RemoteAddr().String())
	return tx, func() { _ = tx.Close() }
}

type shutdownDeps struct {
	server        *httpserver.Server
	viewers       *websocket.Handler
	hub           *broadcast.Hub
	stopRadioLink context.CancelFunc
	radioLinkDone <-chan struct{}
}

func runGracefulShutdown(cfg *config.Config, deps shutdownDeps) <-chan struct{} {
	done := make(chan struct{})
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	go func() {
		<-sigChan
		slog.Info("Shutdown signal received, cleaning up...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
		defer cancel()

		if err := deps.server.Shutdown(shutdownCtx); err != nil {
			slog.Error("Server shutdown error", "error", err)
		}

		// Viewers drain their backlog, see the hub close and hang up.
		deps.hub.Close()
		if err := deps.viewers.Shutdown(shutdownCtx); err != nil {
			slog.Error("Viewer shutdown error", "error", err)
		}

		deps.stopRadioLink()
		select {
		case <-deps.radioLinkDone:
		case <-shutdownCtx.Done():
			slog.Error("Radio link did not stop in time")
		}

		close(done)
	}()

	return done
}

func main() {
	clock := clockwork.NewRealClock()

	cfg := setupConfig()

	logging.InitLogger(cfg.LogLevel, cfg.LogFormat)
	slog.Info("Application starting", "env", cfg.AppEnv, "port", cfg.Port, "version", version.Get().String())

	reg := metrics.NewRegistry()
	httpMetrics := metrics.NewHTTPMetrics(reg)
	telemetryMetrics := metrics.NewTelemetryMetrics(reg)
	commandMetrics := metrics.NewCommandMetrics(reg)
	wsMetrics := metrics.NewWebSocketMetrics(reg)

	hub := broadcast.NewHub(cfg.TelemetryBuffer, broadcast.WithMetrics(telemetryMetrics))
	commands := funnel.New(cfg.CommandQueue, funnel.WithMetrics(commandMetrics))

	radioCtx, stopRadioLink := context.WithCancel(context.Background())
	tx, closeTransmitter := setupTransmitter(radioCtx, cfg, clock, commandMetrics)
	defer closeTransmitter()

	link := radiolink.New(commands, tx, radiolink.WithMetrics(commandMetrics))
	radioLinkDone := make(chan struct{})
	go func() {
		defer close(radioLinkDone)
		if err := link.Run(radioCtx); err != nil {
			slog.Error("Radio link stopped", "error", err)
		}
	}()

	limits := websocket.NewLimits(cfg.MaxViewers, cfg.MaxViewersPerIP, cfg.WSUpgradeRate, cfg.WSUpgradeBurst, clock)
	viewers := websocket.NewHandler(hub, commands, limits, websocket.HandlerConfig{
		AppURL:        cfg.AppURL,
		IsDevelopment: !cfg.IsProduction(),
		Session: session.Config{
			PingInterval: cfg.WSPingInterval,
			PongWait:     cfg.WSPongWait,
			WriteWait:    cfg.WSWriteWait,
		},
	},
		websocket.WithMetrics(wsMetrics, telemetryMetrics),
		websocket.WithSessionOptions(session.WithClock(clock)),
	)

	checks := []httpserver.HealthCheck{
		httpserver.ClosedCheck("telemetry_hub", hub, domain.ErrHubClosed),
		httpserver.ClosedCheck("command_funnel", commands, domain.ErrFunnelClosed),
	}
	if udp, ok := tx.(*radiolink.UDPTransmitter); ok {
		checks = append(checks, httpserver.HealthCheck{Name: "radio_link", Check: udp.Ready})
	}

	srv, err := httpserver.NewServer(cfg, hub, viewers,
		httpserver.WithClock(clock),
		httpserver.WithMetrics(reg, httpMetrics),
		httpserver.WithHealthChecks(checks...),
	)
	if err != nil {
		slog.Error("Failed to create server", "error", err)
		os.Exit(1)
	}

	done := runGracefulShutdown(cfg, shutdownDeps{
		server:        srv,
		viewers:       viewers,
		hub:           hub,
		stopRadioLink: stopRadioLink,
		radioLinkDone: radioLinkDone,
	})

	if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		slog.Error("Server error", "error", err)
		os.Exit(1)
	}

	<-done
}
