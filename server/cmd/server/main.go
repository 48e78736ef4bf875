package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/rzadesk/rzadesk/server/internal/alerts"
	"github.com/rzadesk/rzadesk/server/internal/api"
	"github.com/rzadesk/rzadesk/server/internal/auth"
	"github.com/rzadesk/rzadesk/server/internal/config"
	"github.com/rzadesk/rzadesk/server/internal/metrics"
	"github.com/rzadesk/rzadesk/server/internal/session"
	"github.com/rzadesk/rzadesk/server/internal/ws"
)

// version is set at build time with -ldflags "-X main.version=...".
var version = "dev"

func main() {
	configPath := flag.String("config", "config.yaml", "path to config file")
	uiDir := flag.String("ui-dir", "", "serve the calculator UI static files from this directory; leave empty to disable")
	flag.Parse()

	var level slog.LevelVar
	level.Set(slog.LevelInfo)
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: &level}))
	slog.SetDefault(logger)

	slog.Info("rzadesk-server starting", "config", *configPath, "version", version)

	cfg, err := config.Load(*configPath)
	if err != nil {
		slog.Error("failed to load config", "err", err)
		os.Exit(1)
	}
	level.Set(cfg.Server.Level())

	slog.Info("config loaded",
		"http_port", cfg.Server.HTTPPort,
		"auth_mode", cfg.Server.Auth.Mode,
		"session_ttl", cfg.Server.Session.TTL,
		"strict", cfg.Server.Calc.Strict,
		"alert_rules", len(cfg.Server.Alerts.Rules),
	)

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	// Session store with background idle eviction.
	st := session.New(cfg.Server.Session.TTL)

	// WebSocket hub: pushes each session's feed to the UI.
	hub := ws.New(st, cfg.Server.Stream.Interval)
	go hub.Run(ctx)

	// Alerts engine: evaluates rules on every session calculation.
	alertEngine := alerts.New(cfg.Server.Alerts)

	go st.Run(ctx, func(ids []string) {
		for _, id := range ids {
			alertEngine.Forget(id)
			hub.Closed(id)
		}
	})

	reg := metrics.New(st.Count)

	apiHandler := api.New(st, api.Options{
		Version:  version,
		Strict:   cfg.Server.Calc.Strict,
		Audit:    cfg.Server.Audit,
		Alerts:   alertEngine,
		Metrics:  reg,
		Notifier: hub,
	})

	go func() {
		err := config.Watch(ctx, *configPath, func(c *config.Config) {
			level.Set(c.Server.Level())
			apiHandler.SetStrict(c.Server.Calc.Strict)
			st.SetTTL(c.Server.Session.TTL)
		})
		if err != nil {
			slog.Warn("config watch disabled", "err", err)
		}
	}()

	mux := http.NewServeMux()
	mux.Handle("/api/", apiHandler)
	mux.Handle("/metrics", reg)
	mux.Handle(ws.PathPrefix, hub)

	// Optional: serve the pre-built UI from a local directory.
	// The "/" catch-all serves index.html for any unknown path (SPA routing).
	if *uiDir != "" {
		fs := http.FileServer(http.Dir(*uiDir))
		mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
			path := filepath.Join(*uiDir, filepath.Clean("/"+r.URL.Path))
			if _, err := os.Stat(path); os.IsNotExist(err) {
				http.ServeFile(w, r, filepath.Join(*uiDir, "index.html"))
				return
			}
			fs.ServeHTTP(w, r)
		})
		slog.Info("serving UI static files", "dir", *uiDir)
	}

	handler := api.CORS(cfg.Server.AllowedOrigins, auth.Middleware(cfg.Server.Auth, mux))

	httpSrv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Server.HTTPPort),
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		slog.Info("HTTP server listening", "port", cfg.Server.HTTPPort)
		if err := httpSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("HTTP server stopped", "err", err)
			cancel()
		}
	}()

	<-ctx.Done()
	slog.Info("rzadesk-server shutting down")
	shutdownCtx, done := context.WithTimeout(context.Background(), 10*time.Second)
	defer done()
	httpSrv.Shutdown(shutdownCtx) //nolint:errcheck
	alertEngine.Wait()
}
