package main

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/dgnsrekt/perf_console/internal/aggregate"
	"github.com/dgnsrekt/perf_console/internal/api"
	"github.com/dgnsrekt/perf_console/internal/browsersync"
	"github.com/dgnsrekt/perf_console/internal/config"
	"github.com/dgnsrekt/perf_console/internal/controller"
	"github.com/dgnsrekt/perf_console/internal/events"
	"github.com/dgnsrekt/perf_console/internal/filter"
	"github.com/dgnsrekt/perf_console/internal/journal"
	"github.com/dgnsrekt/perf_console/internal/metrics"
	"github.com/dgnsrekt/perf_console/internal/netutil"
	"github.com/dgnsrekt/perf_console/internal/notify"
	"github.com/dgnsrekt/perf_console/internal/refresh"
	"github.com/dgnsrekt/perf_console/internal/views"
	"gopkg.in/natefinch/lumberjack.v2"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	if err := setupLogger(cfg.LogLevel, cfg.LogFile); err != nil {
		_, _ = io.WriteString(os.Stderr, "logger setup failed: "+err.Error()+"\n")
		os.Exit(1)
	}

	slog.Info("perf console config loaded",
		"backend_url", cfg.BackendURL,
		"bind_addr", cfg.BindAddr,
		"fetch_timeout_ms", cfg.FetchTimeoutMS,
		"port_auto_fallback", cfg.PortAutoFallback,
		"port_candidates", cfg.PortCandidates,
		"layout_file", cfg.LayoutFile,
		"views_dir", cfg.ViewsDir,
		"journal_dir", cfg.JournalDir,
		"cdp_url", cfg.CDPURL,
		"log_level", cfg.LogLevel,
		"log_file", cfg.LogFile,
	)

	layout, err := config.LoadLayout(cfg.LayoutFile)
	if err != nil {
		slog.Error("failed to load layout", "path", cfg.LayoutFile, "error", err)
		os.Exit(1)
	}
	settings, err := filter.SettingsFromLayout(layout)
	if err != nil {
		slog.Error("invalid layout timezone", "timezone", layout.Timezone, "error", err)
		os.Exit(1)
	}

	ln, err := netutil.Listen(cfg.BindAddr, cfg.PortCandidates, cfg.PortAutoFallback)
	if err != nil {
		slog.Error("failed to bind", "preferred", cfg.BindAddr, "error", err)
		os.Exit(1)
	}

	store, err := views.NewStore(cfg.ViewsDir)
	if err != nil {
		slog.Error("failed to open view store", "dir", cfg.ViewsDir, "error", err)
		os.Exit(1)
	}

	broker := events.NewBroker()
	recorder := metrics.NewRecorder(nil)
	observers := refresh.Observers{broker, recorder}

	if cfg.JournalDir != "" {
		jw := journal.NewWriter(cfg.JournalDir, 1024, cfg.JournalMB)
		defer func() { _ = jw.Close() }()
		observers = append(observers, jw)
	}
	var notifier *notify.FailureNotifier
	if cfg.NTFYEndpoint != "" {
		notifier = notify.NewFailureNotifier(nil, cfg.NTFYEndpoint, cfg.BackendURL)
		observers = append(observers, notifier)
	}

	fetchTimeout := time.Duration(cfg.FetchTimeoutMS) * time.Millisecond
	client := aggregate.NewClient(cfg.BackendURL, fetchTimeout, nil)
	coord := refresh.NewCoordinator(client, refresh.Options{Observer: observers})

	opts := controller.Options{}
	if cfg.CDPURL != "" {
		syncer := browsersync.NewSyncer(cfg.CDPURL, cfg.TabURLFilter)
		connectCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		if err := syncer.Connect(connectCtx); err != nil {
			slog.Warn("browser address sync disabled", "cdp_url", cfg.CDPURL, "error", err)
		} else {
			defer syncer.Close()
			opts.Sink = syncer
		}
		cancel()
	}

	svc := controller.NewService(coord, filter.New(settings, time.Now()), opts)
	svc.Start()

	h := api.NewServer(svc, api.Options{
		Views:   store,
		Events:  events.SSEHandler(broker),
		Stream:  events.WSHandler(broker),
		Metrics: recorder.Handler(),
	})
	srv := &http.Server{Handler: h}

	go func() {
		addr := ln.Addr().String()
		slog.Info("perf console listening", "addr", addr, "docs", "http://"+addr+"/docs")
		if err := srv.Serve(ln); err != nil && err != http.ErrServerClosed {
			slog.Error("perf console server failed", "error", err)
			os.Exit(1)
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		slog.Error("perf console shutdown failed", "error", err)
	}
	// Stop producing refresh events before draining their observers.
	svc.Close()
	coord.Close()
	if notifier != nil {
		notifier.Wait()
	}
}

func setupLogger(level, filename string) error {
	if err := os.MkdirAll(filepath.Dir(filename), 0o755); err != nil {
		return err
	}

	logWriter := &lumberjack.Logger{
		Filename:   filename,
		MaxSize:    25,
		MaxBackups: 10,
		MaxAge:     14,
		Compress:   true,
	}

	var slogLevel slog.Level
	switch level {
	case "debug":
		slogLevel = slog.LevelDebug
	case "warn":
		slogLevel = slog.LevelWarn
	case "error":
		slogLevel = slog.LevelError
	default:
		slogLevel = slog.LevelInfo
	}

	h := slog.NewTextHandler(io.MultiWriter(os.Stdout, logWriter), &slog.HandlerOptions{Level: slogLevel})
	slog.SetDefault(slog.New(h))
	return nil
}
