// Command voxwire places a live voice call to a platform agent from the
// local machine: microphone in, agent audio out, until either side hangs
// up.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/voxwire/voxwire/internal/call"
	"github.com/voxwire/voxwire/internal/config"
	"github.com/voxwire/voxwire/internal/health"
	"github.com/voxwire/voxwire/internal/history"
	"github.com/voxwire/voxwire/internal/observe"
	"github.com/voxwire/voxwire/pkg/audio/device"
	"github.com/voxwire/voxwire/pkg/transport"
	"github.com/voxwire/voxwire/pkg/transport/peer"
	"github.com/voxwire/voxwire/pkg/transport/socket"
)

func main() {
	os.Exit(run())
}

func run() int {
	// ── CLI flags ──────────────────────────────────────────────────────────────
	configPath := flag.String("config", "config.yaml", "path to the YAML configuration file")
	flag.Parse()

	// ── Load configuration ────────────────────────────────────────────────────
	cfg, err := config.Load(*configPath)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			fmt.Fprintf(os.Stderr, "voxwire: config file %q not found — copy configs/example.yaml to get started\n", *configPath)
		} else {
			fmt.Fprintf(os.Stderr, "voxwire: %v\n", err)
		}
		return 1
	}

	// ── Logger ────────────────────────────────────────────────────────────────
	logger := newLogger(cfg.Diagnostics.LogLevel)
	slog.SetDefault(logger)

	slog.Info("voxwire starting",
		"config", *configPath,
		"transport", cfg.Platform.Transport,
		"sample_rate", cfg.Audio.SampleRate,
		"log_level", cfg.Diagnostics.LogLevel,
	)

	// ── Signal context ────────────────────────────────────────────────────────
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// ── Observability ─────────────────────────────────────────────────────────
	otelShutdown, err := observe.InitProvider(ctx, observe.ProviderConfig{
		ServiceName:    "voxwire",
		ServiceVersion: version,
	})
	if err != nil {
		slog.Error("failed to initialise telemetry", "err", err)
		return 1
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := otelShutdown(shutdownCtx); err != nil {
			slog.Warn("telemetry shutdown error", "err", err)
		}
	}()

	// ── Platform clients ──────────────────────────────────────────────────────
	histClient := history.NewClient(cfg.Platform.BaseURL,
		history.WithAuthToken(cfg.Platform.AuthToken),
	)

	devices := &device.Live{}

	lifecycle := call.New(call.Config{
		Devices:     devices,
		History:     histClient,
		Dial:        transportDialer(cfg, histClient, logger),
		AgentID:     cfg.Platform.AgentID,
		SampleRate:  cfg.Audio.SampleRate,
		FrameSize:   cfg.Audio.FrameSize,
		GraceWindow: time.Duration(cfg.Call.GraceWindowSeconds) * time.Second,
		Logger:      logger,
	})

	// ── Diagnostics listener ──────────────────────────────────────────────────
	var diagSrv *http.Server
	if cfg.Diagnostics.ListenAddr != "" {
		mux := http.NewServeMux()
		health.New(health.Checker{
			Name: "call",
			Check: func(context.Context) error {
				if lifecycle.State() == call.StateEnded {
					return errors.New("call ended")
				}
				return nil
			},
		}).Register(mux)
		mux.Handle("GET /metrics", promhttp.Handler())

		diagSrv = &http.Server{Addr: cfg.Diagnostics.ListenAddr, Handler: mux}
		go func() {
			slog.Info("diagnostics listening", "addr", cfg.Diagnostics.ListenAddr)
			if err := diagSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				slog.Error("diagnostics server error", "err", err)
			}
		}()
	}

	// ── Place the call ────────────────────────────────────────────────────────
	if err := lifecycle.Dial(ctx); err != nil {
		slog.Error("dial failed", "err", err)
		return 1
	}

	slog.Info("call in progress — press Ctrl+C to hang up")

	select {
	case <-ctx.Done():
		slog.Info("hangup signal received")
		hangupCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		_ = lifecycle.HangUp(hangupCtx)
		cancel()
		<-lifecycle.Done()
	case <-lifecycle.Done():
	}

	slog.Info("call finished", "reason", lifecycle.EndReason())

	// ── Graceful shutdown ─────────────────────────────────────────────────────
	if diagSrv != nil {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := diagSrv.Shutdown(shutdownCtx); err != nil {
			slog.Warn("diagnostics shutdown error", "err", err)
		}
	}
	slog.Info("goodbye")
	return 0
}

// version is overridden at build time via -ldflags.
var version = "dev"

// transportDialer returns the DialFunc matching the configured transport
// kind.
func transportDialer(cfg *config.Config, hist *history.Client, logger *slog.Logger) call.DialFunc {
	switch cfg.Platform.Transport {
	case config.TransportPeer:
		return func(ctx context.Context, callID string) (transport.Transport, error) {
			return peer.Dial(ctx, hist.SignalURL(callID), cfg.Audio.SampleRate,
				peer.WithLogger(logger),
				peer.WithAuthToken(cfg.Platform.AuthToken),
			)
		}
	default:
		return func(ctx context.Context, callID string) (transport.Transport, error) {
			return socket.Dial(ctx, hist.StreamURL(callID),
				socket.WithLogger(logger),
				socket.WithAuthToken(cfg.Platform.AuthToken),
			)
		}
	}
}

// ── Logger ─────────────────────────────────────────────────────────────────────

func newLogger(level config.LogLevel) *slog.Logger {
	var lvl slog.Level
	switch level {
	case config.LogDebug:
		lvl = slog.LevelDebug
	case config.LogWarn:
		lvl = slog.LevelWarn
	case config.LogError:
		lvl = slog.LevelError
	default:
		lvl = slog.LevelInfo
	}
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: lvl}))
}
