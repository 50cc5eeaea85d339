package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	mcpserver "github.com/mark3labs/mcp-go/server"
	"tailscale.com/tsnet"

	"github.com/meltforce/gymdesk/internal/auth"
	"github.com/meltforce/gymdesk/internal/billing"
	"github.com/meltforce/gymdesk/internal/client"
	"github.com/meltforce/gymdesk/internal/config"
	"github.com/meltforce/gymdesk/internal/logging"
	"github.com/meltforce/gymdesk/internal/mcp"
	"github.com/meltforce/gymdesk/internal/server"
	"github.com/meltforce/gymdesk/internal/storage"
	"github.com/meltforce/gymdesk/internal/sweep"
	"github.com/meltforce/gymdesk/internal/telemetry"
)

// Version is set at build time via -ldflags.
var Version = "dev"

func main() {
	configPath := flag.String("config", "config.yaml", "path to config file")
	migrateOnly := flag.Bool("migrate-only", false, "run migrations and exit")
	mcpStdio := flag.Bool("mcp-stdio", false, "serve MCP over stdin/stdout instead of HTTP (token from GYMDESK_TOKEN)")
	remote := flag.String("server", "", "with -mcp-stdio: read data from this GymDesk server instead of the database")
	flag.Parse()

	// .env is optional; real environment variables win.
	_ = godotenv.Load()

	if *mcpStdio {
		if err := runStdio(*configPath, *remote); err != nil {
			fmt.Fprintln(os.Stderr, "gymdesk:", err)
			os.Exit(1)
		}
		return
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintln(os.Stderr, "failed to load config:", err)
		os.Exit(1)
	}

	log, logCloser, err := logging.New(cfg.Log)
	if err != nil {
		fmt.Fprintln(os.Stderr, "failed to set up logging:", err)
		os.Exit(1)
	}
	defer logCloser.Close()
	log.Info("GymDesk starting", "version", Version, "driver", cfg.Database.Driver)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	shutdownTracing, err := telemetry.Setup(ctx, "gymdesk", Version, cfg.Telemetry.OTLPEndpoint)
	if err != nil {
		log.Error("telemetry setup failed", "error", err)
		os.Exit(1)
	}
	defer func() {
		sctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shutdownTracing(sctx); err != nil {
			log.Warn("telemetry shutdown", "error", err)
		}
	}()

	// SQLite creates its schema on open; only Postgres is migrated.
	if cfg.Database.Driver == "postgres" {
		if err := storage.RunMigrations(cfg.Database.DSN(), "migrations"); err != nil {
			log.Error("migration failed", "error", err)
			os.Exit(1)
		}
		log.Info("migrations applied")
	}
	if *migrateOnly {
		log.Info("migrate-only: exiting")
		return
	}

	db, err := storage.Open(ctx, cfg.Database, log)
	if err != nil {
		log.Error("failed to open database", "error", err)
		os.Exit(1)
	}
	defer db.Close()
	log.Info("database connected")

	if cfg.Live.Sweep.Enabled {
		sw := sweep.New(db, cfg.Live.Sweep.MaxAge, log)
		if err := sw.Schedule(ctx, cfg.Live.Sweep.Schedule); err != nil {
			log.Error("sweep setup failed", "error", err)
			os.Exit(1)
		}
		log.Info("stale live-session sweep enabled", "schedule", cfg.Live.Sweep.Schedule, "max_age", cfg.Live.Sweep.MaxAge)
	}

	var payments *billing.Processor
	if cfg.Billing.StripeWebhookSecret != "" {
		payments = billing.NewProcessor(db, cfg.Billing.StripeWebhookSecret, log)
	} else {
		log.Info("billing webhook disabled (no stripe_webhook_secret)")
	}

	verifier := auth.NewVerifier(cfg.Auth.JWTSecret)
	srv := server.New(db, verifier, payments, cfg.Server.CORSOrigins, log)

	mcpSrv := mcp.New(db, Version, log)
	srv.SetMCP(mcpserver.NewStreamableHTTPServer(mcpSrv,
		mcpserver.WithHTTPContextFunc(func(ctx context.Context, r *http.Request) context.Context {
			if id, ok := auth.FromContext(r.Context()); ok {
				return auth.WithIdentity(ctx, id)
			}
			return ctx
		}),
	))

	// Start server: tsnet or plain HTTP
	var listener net.Listener
	if cfg.Tailscale.Enabled {
		tsServer := &tsnet.Server{
			Hostname: cfg.Tailscale.Hostname,
			Dir:      cfg.Tailscale.StateDir,
		}
		if err := tsServer.Start(); err != nil {
			log.Error("tsnet start failed", "error", err)
			os.Exit(1)
		}
		defer tsServer.Close()

		listener, err = tsServer.Listen("tcp", ":80")
		if err != nil {
			log.Error("tsnet listen failed", "error", err)
			os.Exit(1)
		}
		log.Info("tsnet server starting", "hostname", cfg.Tailscale.Hostname)
	} else {
		addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
		listener, err = net.Listen("tcp", addr)
		if err != nil {
			log.Error("listen failed", "addr", addr, "error", err)
			os.Exit(1)
		}
		log.Info("server starting", "addr", addr)
	}

	httpSrv := &http.Server{
		Handler:           srv,
		ReadHeaderTimeout: 10 * time.Second,
		BaseContext:       func(net.Listener) context.Context { return ctx },
	}

	serveErr := make(chan error, 1)
	go func() {
		if err := httpSrv.Serve(listener); err != nil && err != http.ErrServerClosed {
			serveErr <- err
		}
	}()

	// Graceful shutdown
	select {
	case <-ctx.Done():
		log.Info("shutting down")
	case err := <-serveErr:
		log.Error("server error", "error", err)
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := httpSrv.Shutdown(shutdownCtx); err != nil {
		log.Error("shutdown error", "error", err)
	}
	log.Info("server stopped")
}

// runStdio serves MCP on stdin/stdout for a desktop client. Logs go to
// stderr so they do not corrupt the protocol stream.
func runStdio(configPath, remote string) error {
	log := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelInfo}))
	token := os.Getenv("GYMDESK_TOKEN")
	if token == "" {
		return fmt.Errorf("GYMDESK_TOKEN is required for -mcp-stdio")
	}
	ctx := context.Background()

	var (
		ds mcp.DataSource
		id auth.Identity
	)
	if remote != "" {
		c := client.New(remote, token)
		me, err := c.Me(ctx)
		if err != nil {
			return fmt.Errorf("resolving identity: %w", err)
		}
		ds, id = c, me
	} else {
		cfg, err := config.Load(configPath)
		if err != nil {
			return err
		}
		id, err = auth.NewVerifier(cfg.Auth.JWTSecret).Verify(token)
		if err != nil {
			return fmt.Errorf("GYMDESK_TOKEN: %w", err)
		}
		db, err := storage.Open(ctx, cfg.Database, log)
		if err != nil {
			return err
		}
		defer db.Close()
		ds = db
	}

	log.Info("serving MCP on stdio", "user", id.UserID, "tenant", id.TenantID, "remote", remote != "")
	return mcpserver.ServeStdio(mcp.New(ds, Version, log),
		mcpserver.WithStdioContextFunc(func(ctx context.Context) context.Context {
			return auth.WithIdentity(ctx, id)
		}),
	)
}
