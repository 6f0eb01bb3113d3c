// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Lockbird Contributors

package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/samber/oops"
	"github.com/spf13/cobra"

	"github.com/lockbird/lockbird/internal/auth"
	"github.com/lockbird/lockbird/internal/auth/postgres"
	"github.com/lockbird/lockbird/internal/config"
	"github.com/lockbird/lockbird/internal/httpapi"
	"github.com/lockbird/lockbird/internal/logging"
	"github.com/lockbird/lockbird/internal/mail"
	"github.com/lockbird/lockbird/internal/observability"
	"github.com/lockbird/lockbird/internal/store"
)

// NewServeCmd creates the serve subcommand.
func NewServeCmd() *cobra.Command {
	var autoMigrate bool

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the authentication API server",
		Long: `Start the HTTP API server, serving the authentication endpoints
on server.addr and metrics/health probes on server.metrics_addr.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			return runServe(cmd.Context(), cfg, autoMigrate, cmd)
		},
	}

	cmd.Flags().BoolVar(&autoMigrate, "auto-migrate", false, "apply pending database migrations at startup")
	cmd.Flags().String("server.addr", "", "API listen address")
	cmd.Flags().String("server.metrics_addr", "", "metrics/health listen address (empty = disabled)")
	cmd.Flags().String("server.frontend_url", "", "base URL for links in outbound email")
	cmd.Flags().String("database.url", "", "PostgreSQL connection string")
	cmd.Flags().String("log.format", "", "log format (json or text)")
	cmd.Flags().String("log.level", "", "log level (debug, info, warn, error)")

	return cmd
}

func runServe(ctx context.Context, cfg config.Config, autoMigrate bool, cmd *cobra.Command) error {
	logging.SetDefault("lockbird", version, cfg.Log.Format, cfg.Log.Level)
	logger := slog.Default()

	logger.Info("starting lockbird",
		"addr", cfg.Server.Addr,
		"metrics_addr", cfg.Server.MetricsAddr,
	)

	pool, err := store.Connect(ctx, cfg.Database.URL)
	if err != nil {
		return err
	}
	defer pool.Close()
	logger.Info("connected to database")

	if autoMigrate {
		if err := applyMigrations(cfg.Database.URL, logger); err != nil {
			return err
		}
	}

	repos := postgres.Repos(pool)
	uow := postgres.NewUnitOfWork(pool)
	hasher := auth.NewArgon2idHasher(cfg.Auth.Argon2.Params())

	var mailer auth.Mailer
	if cfg.SMTP.Host == "" {
		logger.Warn("smtp.host not set, outbound email is logged instead of sent")
		mailer = mail.NewLogSender(logger)
	} else {
		mailer = mail.NewSender(cfg.SMTP.Host, cfg.SMTP.Port, cfg.SMTP.Username,
			cfg.SMTP.Password, cfg.SMTP.From, cfg.Server.FrontendURL)
	}

	sessions, err := auth.NewSessionService(repos.Sessions, logger)
	if err != nil {
		return err
	}
	verification, err := auth.NewVerificationService(repos.Users, repos.Verifications, uow, mailer, cfg.Auth.VerificationTTL, logger)
	if err != nil {
		return err
	}
	resets, err := auth.NewPasswordResetService(repos.Users, repos.Resets, uow, hasher, mailer, cfg.Auth.ResetTTL, logger)
	if err != nil {
		return err
	}
	svc, err := auth.NewService(repos.Users, sessions, verification, hasher, cfg.Auth.SessionTTL, logger)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	var obsServer *observability.Server
	var apiServer *httpapi.Server

	apiCfg := httpapi.Config{
		CookieName:   cfg.Cookie.Name,
		CookieSecret: cfg.Cookie.Secret,
		CookieDomain: cfg.Cookie.Domain,
		CookieSecure: cfg.Cookie.Secure,
	}

	if cfg.Server.MetricsAddr != "" {
		obsServer = observability.NewServer(cfg.Server.MetricsAddr, version, func() bool {
			pingCtx, pingCancel := context.WithTimeout(context.Background(), 2*time.Second)
			defer pingCancel()
			return pool.Ping(pingCtx) == nil
		})
		apiServer, err = httpapi.NewServer(apiCfg, svc, verification, resets, sessions, logger, obsServer.Registry())
	} else {
		apiServer, err = httpapi.NewServer(apiCfg, svc, verification, resets, sessions, logger, nil)
	}
	if err != nil {
		return err
	}
	defer apiServer.Close()

	if obsServer != nil {
		obsErrChan, obsErr := obsServer.Start()
		if obsErr != nil {
			return obsErr
		}
		go monitorServerErrors(ctx, cancel, obsErrChan, "observability")
	}

	httpSrv := &http.Server{
		Addr:              cfg.Server.Addr,
		Handler:           apiServer.Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errChan := make(chan error, 1)
	go func() {
		if serveErr := httpSrv.ListenAndServe(); serveErr != nil && serveErr != http.ErrServerClosed {
			errChan <- serveErr
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigChan)

	cmd.Println("Lockbird started")
	logger.Info("api server listening", "addr", cfg.Server.Addr)

	select {
	case sig := <-sigChan:
		logger.Info("received shutdown signal", "signal", sig.String())
	case err := <-errChan:
		return oops.Code("SERVER_FAILED").With("addr", cfg.Server.Addr).Wrap(err)
	case <-ctx.Done():
		logger.Info("context cancelled, shutting down")
	}

	logger.Info("shutting down...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := httpSrv.Shutdown(shutdownCtx); err != nil {
		logger.Warn("error stopping api server", "error", err)
	}
	if obsServer != nil {
		if err := obsServer.Stop(shutdownCtx); err != nil {
			logger.Warn("error stopping observability server", "error", err)
		}
	}

	logger.Info("shutdown complete")
	return nil
}

// applyMigrations runs all pending migrations at startup.
func applyMigrations(databaseURL string, logger *slog.Logger) error {
	migrator, err := store.NewMigrator(databaseURL)
	if err != nil {
		return err
	}
	defer func() {
		if closeErr := migrator.Close(); closeErr != nil {
			logger.Warn("error closing migrator", "error", closeErr)
		}
	}()

	pending, err := migrator.PendingMigrations()
	if err != nil {
		return err
	}
	if len(pending) == 0 {
		logger.Info("database schema up to date")
		return nil
	}

	logger.Info("applying migrations", "pending", len(pending))
	if err := migrator.Up(); err != nil {
		return err
	}
	logger.Info("migrations applied")
	return nil
}

// monitorServerErrors cancels the context when an auxiliary server fails,
// triggering graceful shutdown of the whole process. It exits when an
// error arrives, the channel closes, or the context is cancelled.
func monitorServerErrors(ctx context.Context, cancel context.CancelFunc, errCh <-chan error, serverName string) {
	select {
	case err, ok := <-errCh:
		if !ok {
			return
		}
		if err != nil {
			slog.Error("server error, triggering shutdown",
				"server", serverName,
				"error", err,
			)
			cancel()
		}
	case <-ctx.Done():
	}
}
