// Copyright (c) 2025-2026 SphereLink
// SPDX-License-Identifier: GPL-3.0-or-later

package main

import (
	"context"
	"database/sql"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/joho/godotenv"

	"github.com/spherelink/spherelink/internal/cache"
	"github.com/spherelink/spherelink/internal/config"
	"github.com/spherelink/spherelink/internal/handler"
	"github.com/spherelink/spherelink/internal/logging"
	"github.com/spherelink/spherelink/internal/mailer"
	"github.com/spherelink/spherelink/internal/middleware"
	"github.com/spherelink/spherelink/internal/scheduler"
	"github.com/spherelink/spherelink/internal/session"
	"github.com/spherelink/spherelink/internal/store"
	"github.com/spherelink/spherelink/internal/transfer"
	"github.com/spherelink/spherelink/internal/version"
)

// Version information - injected at build time via ldflags
var (
	appVersion   = "dev"
	appGitCommit = "unknown"
	appBuildTime = "unknown"
)

func main() {
	showVersion := flag.Bool("version", false, "Show version information")
	flag.BoolVar(showVersion, "v", false, "Show version information (shorthand)")
	showHelp := flag.Bool("help", false, "Show help information")
	flag.BoolVar(showHelp, "h", false, "Show help information (shorthand)")
	doMigrate := flag.Bool("migrate", false, "Apply pending database migrations and exit")
	doSeed := flag.Bool("seed", false, "Seed baseline data and exit (idempotent)")
	doFlush := flag.Bool("flush", false, "Delete all application data (requires -yes)")
	confirm := flag.Bool("yes", false, "Confirm a destructive operation")
	dumpPath := flag.String("dump", "", "Export a JSON snapshot to the given file and exit")
	loadPath := flag.String("load", "", "Import a JSON snapshot from the given file and exit")
	ignoreUnknown := flag.Bool("ignore-unknown", false, "Accept snapshot fields this version does not recognize")
	dryRun := flag.Bool("dry-run", false, "Validate a snapshot without writing anything")

	flag.Usage = func() {
		_, _ = fmt.Fprintf(os.Stderr, "SphereLink - Institutional Event Management\n\n")
		_, _ = fmt.Fprintf(os.Stderr, "Usage: %s [options]\n\n", os.Args[0])
		_, _ = fmt.Fprintf(os.Stderr, "Options:\n")
		flag.PrintDefaults()
		_, _ = fmt.Fprintf(os.Stderr, "\nEnvironment Variables:\n")
		_, _ = fmt.Fprintf(os.Stderr, "  SPHERELINK_SESSION_SECRET  Session encryption key (required, min 32 bytes)\n")
		_, _ = fmt.Fprintf(os.Stderr, "  SPHERELINK_DB_PATH         SQLite database path (default: ./data/spherelink.db)\n")
		_, _ = fmt.Fprintf(os.Stderr, "  SPHERELINK_SERVER_PORT     Server port (default: 8080)\n")
		_, _ = fmt.Fprintf(os.Stderr, "  SPHERELINK_ENV             Environment: development|production (default: development)\n")
		_, _ = fmt.Fprintf(os.Stderr, "  SPHERELINK_SMTP_HOST       SMTP server; mail is disabled when empty\n")
		_, _ = fmt.Fprintf(os.Stderr, "  SPHERELINK_REDIS_URL       Redis URL for distributed caching (optional)\n")
		_, _ = fmt.Fprintf(os.Stderr, "  SPHERELINK_DO_SEED         Seed baseline data on startup (default: false)\n")
	}

	flag.Parse()

	if *showHelp {
		flag.Usage()
		os.Exit(0)
	}
	if *showVersion {
		_, _ = fmt.Printf("spherelink %s (commit: %s, built: %s)\n", appVersion, appGitCommit, appBuildTime)
		os.Exit(0)
	}

	var err error
	switch {
	case *doMigrate:
		err = withDB(func(ctx context.Context, db *sql.DB, _ *config.Config) error {
			slog.Info("migrations applied")
			return nil
		})
	case *doSeed || *doFlush:
		if *doFlush && !*confirm {
			_, _ = fmt.Fprintln(os.Stderr, "refusing to flush without -yes: this deletes ALL application data")
			os.Exit(1)
		}
		err = withDB(func(ctx context.Context, db *sql.DB, _ *config.Config) error {
			if *doFlush {
				if err := store.Flush(ctx, db); err != nil {
					return err
				}
			}
			if *doSeed {
				return store.Seed(ctx, db)
			}
			return nil
		})
	case *dumpPath != "":
		err = withDB(func(ctx context.Context, db *sql.DB, _ *config.Config) error {
			exporter := transfer.NewExporter(store.New(db), slog.Default())
			return exporter.ExportToFile(ctx, *dumpPath)
		})
	case *loadPath != "":
		err = withDB(func(ctx context.Context, db *sql.DB, _ *config.Config) error {
			return loadSnapshot(ctx, db, *loadPath, transfer.ImportOptions{
				IgnoreUnknown: *ignoreUnknown,
				DryRun:        *dryRun,
			})
		})
	default:
		err = run()
	}
	if err != nil {
		slog.Error("application error", "error", err)
		os.Exit(1)
	}
}

// withDB runs a maintenance operation against a migrated database.
func withDB(fn func(context.Context, *sql.DB, *config.Config) error) error {
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(cfg.DBPath), 0755); err != nil {
		return fmt.Errorf("creating data directory: %w", err)
	}

	db, err := store.NewDB(cfg.DBPath)
	if err != nil {
		return fmt.Errorf("opening database: %w", err)
	}
	defer func() { _ = db.Close() }()

	if err := store.Migrate(db); err != nil {
		return fmt.Errorf("running migrations: %w", err)
	}

	return fn(context.Background(), db, cfg)
}

// loadSnapshot imports a snapshot file, printing per-entity counts. A
// conflict with existing rows gets actionable advice instead of a bare
// constraint error.
func loadSnapshot(ctx context.Context, db *sql.DB, path string, opts transfer.ImportOptions) error {
	importer := transfer.NewImporter(store.New(db), db, slog.Default())

	result, err := importer.ImportFromFile(ctx, path, opts)
	if err != nil {
		if errors.Is(err, transfer.ErrConflict) {
			_, _ = fmt.Fprintln(os.Stderr,
				"snapshot conflicts with existing data; run with -flush -yes first to start from an empty database")
		}
		return err
	}

	for entity, count := range result.Imported {
		slog.Info("imported", "entity", entity, "count", count)
	}
	if result.DryRun {
		slog.Info("dry run: no changes were written")
	}
	return nil
}

func run() error {
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	versionInfo := version.Info{
		Version:   appVersion,
		GitCommit: appGitCommit,
		BuildTime: appBuildTime,
	}

	// Setup logger
	logLevel := slog.LevelInfo
	switch cfg.LogLevel {
	case "debug":
		logLevel = slog.LevelDebug
	case "warn":
		logLevel = slog.LevelWarn
	case "error":
		logLevel = slog.LevelError
	}

	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
		Level: logLevel,
	}))
	slog.SetDefault(logger)

	// Ensure data and uploads directories exist
	if err := os.MkdirAll(filepath.Dir(cfg.DBPath), 0755); err != nil {
		return fmt.Errorf("creating data directory: %w", err)
	}
	if err := os.MkdirAll(cfg.UploadsDir, 0755); err != nil {
		return fmt.Errorf("creating uploads directory: %w", err)
	}

	slog.Info("initializing database", "path", cfg.DBPath)
	db, err := store.NewDB(cfg.DBPath)
	if err != nil {
		return fmt.Errorf("initializing database: %w", err)
	}
	defer func(db *sql.DB) {
		if err := db.Close(); err != nil {
			slog.Error("error closing database connection", "error", err)
		}
	}(db)

	slog.Info("running database migrations")
	if err := store.Migrate(db); err != nil {
		return fmt.Errorf("running migrations: %w", err)
	}
	slog.Info("database ready")

	// Upgrade logger to also write WARN and ERROR logs to the audit log
	textHandler := slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: logLevel})
	logger = slog.New(logging.NewAuditLogHandler(textHandler, db))
	slog.SetDefault(logger)
	slog.Info("audit log integration enabled", "min_level", "warn")

	ctx := context.Background()
	if cfg.DoSeed {
		if err := store.Seed(ctx, db); err != nil {
			return fmt.Errorf("seeding database: %w", err)
		}
	}

	// Session manager backed by the sessions table
	sessionManager := session.New(db, cfg.IsDevelopment())
	slog.Info("session manager initialized")

	// Cache: Redis when configured, in-process memory otherwise
	appCache, err := cache.New(*cfg)
	if err != nil {
		return fmt.Errorf("initializing cache: %w", err)
	}
	defer func() { _ = appCache.Close() }()

	// Mailer for confirmations, invitations, and contact notices
	appMailer := mailer.New(*cfg, cfg.BaseURL)
	if appMailer.Enabled() {
		slog.Info("mailer initialized", "smtp", cfg.SMTPAddr(), "from", cfg.SMTPFrom)
	} else {
		slog.Info("mail sending disabled: SPHERELINK_SMTP_HOST is empty")
	}

	// Start background jobs: event purging, invitation expiry, audit trim
	sched := scheduler.New(db, logger)
	if err := sched.Start(); err != nil {
		return fmt.Errorf("starting scheduler: %w", err)
	}
	defer sched.Stop()

	apiHandler := handler.New(db, *cfg, sessionManager, appCache, appMailer, versionInfo)

	// Router and middleware stack
	r := chi.NewRouter()
	r.Use(chimw.RequestID)
	r.Use(chimw.RealIP)
	r.Use(chimw.Logger)
	r.Use(chimw.Recoverer)
	r.Use(chimw.Compress(5))
	r.Use(chimw.GetHead)
	r.Use(chimw.Timeout(30 * time.Second))
	r.Use(middleware.Metrics)
	r.Use(sessionManager.LoadAndSave)

	// CSRF protection via Fetch metadata; non-browser API clients are
	// unaffected since they send no Sec-Fetch-Site header.
	r.Use(middleware.CSRF([]byte(cfg.SessionSecret), cfg.IsDevelopment()))
	slog.Info("CSRF protection initialized", "secure", !cfg.IsDevelopment())

	// Bearer tokens first, then session cookies; whichever resolves a
	// user first wins.
	r.Use(middleware.JWTAuth(db, cfg.TokenSecret()))
	r.Use(middleware.LoadUser(sessionManager, db))

	// Global per-IP rate limit as defense-in-depth; login gets its own
	// stricter limiter inside the routes.
	rateLimiter := middleware.NewGlobalRateLimiter(10.0, 20)
	r.Use(rateLimiter.Middleware())
	r.Use(middleware.UserRateLimit(20.0, 40))
	slog.Info("rate limiter initialized", "rate", "10 req/s", "burst", 20)

	r.Get("/health", apiHandler.Health)
	r.Get("/health/live", apiHandler.Liveness)
	r.Get("/health/ready", apiHandler.Readiness)
	r.Handle("/metrics", middleware.MetricsHandler())
	r.Mount("/api/v1", apiHandler.Routes())

	// Uploaded images (event banners, profile photos, org logos)
	uploadsFS := http.StripPrefix("/uploads/", http.FileServer(http.Dir(cfg.UploadsDir)))
	r.Get("/uploads/*", uploadsFS.ServeHTTP)

	srv := &http.Server{
		Addr:              cfg.ServerAddr(),
		Handler:           r,
		ReadTimeout:       15 * time.Second,
		ReadHeaderTimeout: 5 * time.Second,
		WriteTimeout:      60 * time.Second, // Longer to allow for large uploads and slow connections
		IdleTimeout:       60 * time.Second,
		MaxHeaderBytes:    1 << 20, // 1MB max header size
	}

	go func() {
		slog.Info("starting server", "addr", cfg.ServerAddr(), "env", cfg.Env, "version", appVersion)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("server error", "error", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	slog.Info("shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server shutdown: %w", err)
	}

	slog.Info("server stopped")
	return nil
}
