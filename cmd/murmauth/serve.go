// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Murmauth Contributors

package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/tendollarbond/murmauth/internal/auth"
	"github.com/tendollarbond/murmauth/internal/config"
	"github.com/tendollarbond/murmauth/internal/directory"
	"github.com/tendollarbond/murmauth/internal/guest"
	"github.com/tendollarbond/murmauth/internal/logging"
	"github.com/tendollarbond/murmauth/internal/observability"
	"github.com/tendollarbond/murmauth/internal/rpc"
	"github.com/tendollarbond/murmauth/internal/web"
	"github.com/tendollarbond/murmauth/internal/xdg"
)

func fileExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}

// Default values for serve command flags. The configuration file can set the
// same keys; explicit flags win.
const (
	defaultRPCAddr     = "127.0.0.1:6502"
	defaultHTTPAddr    = ":8080"
	defaultMetricsAddr = "127.0.0.1:9100"
	defaultLogFormat   = "json"
	defaultLDAPHost    = "127.0.0.1"
	defaultLDAPPort    = 389

	warmUpTimeout   = 30 * time.Second
	shutdownTimeout = 5 * time.Second
)

// newServeCmd creates the serve subcommand with all flags configured.
func newServeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the authentication server",
		Long: `Start the authentication server: the JSON API the voice server calls to
authenticate users, the guest web flow, and the metrics endpoint.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			path := configFile
			if path == "" {
				if p := xdg.DefaultConfigFile(); fileExists(p) {
					path = p
				}
			}

			cfg, err := config.Load(path, cmd.Flags())
			if err != nil {
				return fmt.Errorf("failed to load configuration: %w", err)
			}
			return runServe(cmd.Context(), cfg, cmd)
		},
	}

	// Register flags
	cmd.Flags().String("rpc-addr", defaultRPCAddr, "authentication API listen address")
	cmd.Flags().String("http-addr", defaultHTTPAddr, "guest web flow listen address")
	cmd.Flags().String("metrics-addr", defaultMetricsAddr, "metrics/health HTTP address (empty = disabled)")
	cmd.Flags().String("log-format", defaultLogFormat, "log format (json or text)")
	cmd.Flags().String("ldap-host", defaultLDAPHost, "directory server host")
	cmd.Flags().Int("ldap-port", defaultLDAPPort, "directory server port")

	return cmd
}

// runServe starts the authentication server.
func runServe(ctx context.Context, cfg *config.Config, cmd *cobra.Command) error {
	logging.SetDefault("murmauth", version, cfg.Server.LogFormat)

	slog.Info("starting murmauth",
		"rpc_addr", cfg.Server.RPCAddr,
		"http_addr", cfg.Server.HTTPAddr,
		"ldap_host", cfg.LDAP.Host,
		"ldap_port", cfg.LDAP.Port,
	)

	dirCfg := directory.Config{
		Host:                 cfg.LDAP.Host,
		Port:                 cfg.LDAP.Port,
		UserBase:             cfg.LDAP.UserBase,
		UsernameAttribute:    cfg.LDAP.UsernameAttribute,
		UserFilter:           cfg.LDAP.UserFilter,
		GroupBase:            cfg.LDAP.GroupBase,
		GroupMemberAttribute: cfg.LDAP.GroupMemberAttribute,
	}

	pool := directory.NewPool(directory.Dialer(dirCfg), cfg.LDAP.PoolSize)
	defer pool.Close()

	// Refuse to come up without a reachable directory. A server that starts
	// anyway would silently reject every directory user.
	warmCtx, warmCancel := context.WithTimeout(ctx, warmUpTimeout)
	defer warmCancel()
	if err := pool.WarmUp(warmCtx); err != nil {
		return fmt.Errorf("failed to reach directory server: %w", err)
	}
	slog.Info("directory connection pool ready", "connections", pool.Open())

	client, err := directory.NewClient(dirCfg, pool)
	if err != nil {
		return fmt.Errorf("failed to build directory client: %w", err)
	}

	guestManager := guest.NewManager(guest.Config{
		TTL:        cfg.Guest.SessionTTL,
		NamePrefix: cfg.Guest.NamePrefix,
	}, slog.Default())

	// Directory users take precedence; guests only see credentials the
	// directory rejected.
	dispatcher := auth.NewDispatcher(
		auth.NewDirectoryAuthenticator(client, slog.Default()),
		guestManager,
	)

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	rpcServer := rpc.NewServer(cfg.Server.RPCAddr, dispatcher)
	rpcErrCh, err := rpcServer.Start()
	if err != nil {
		return fmt.Errorf("failed to start rpc server: %w", err)
	}

	webHandler, err := web.NewHandler(guestManager, cfg.Guest.PublicHost, slog.Default())
	if err != nil {
		stopServer(rpcServer.Stop)
		return fmt.Errorf("failed to build web handler: %w", err)
	}

	webServer := web.NewServer(cfg.Server.HTTPAddr, webHandler)
	webErrCh, err := webServer.Start()
	if err != nil {
		stopServer(rpcServer.Stop)
		return fmt.Errorf("failed to start web server: %w", err)
	}

	// Start observability server if configured
	var obsServer *observability.Server
	if cfg.Server.MetricsAddr != "" {
		obsServer = observability.NewServer(cfg.Server.MetricsAddr, func() bool {
			return pool.Open() > 0
		})
		if _, err := obsServer.Start(); err != nil {
			stopServer(webServer.Stop)
			stopServer(rpcServer.Stop)
			return fmt.Errorf("failed to start observability server: %w", err)
		}
	}

	// Handle signals
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	cmd.Println("Murmauth started")
	slog.Info("murmauth ready",
		"rpc_addr", rpcServer.Addr(),
		"http_addr", webServer.Addr(),
	)

	// Wait for shutdown signal or server failure
	select {
	case sig := <-sigChan:
		slog.Info("received shutdown signal", "signal", sig)
	case serveErr := <-rpcErrCh:
		if serveErr != nil {
			slog.Error("rpc server failed", "error", serveErr)
		}
	case serveErr := <-webErrCh:
		if serveErr != nil {
			slog.Error("web server failed", "error", serveErr)
		}
	case <-ctx.Done():
		slog.Info("context cancelled, shutting down")
	}

	// Graceful shutdown
	slog.Info("shutting down...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer shutdownCancel()

	if obsServer != nil {
		if err := obsServer.Stop(shutdownCtx); err != nil {
			slog.Warn("error stopping observability server", "error", err)
		}
	}
	if err := webServer.Stop(shutdownCtx); err != nil {
		slog.Warn("error stopping web server", "error", err)
	}
	if err := rpcServer.Stop(shutdownCtx); err != nil {
		slog.Warn("error stopping rpc server", "error", err)
	}

	slog.Info("shutdown complete")
	return nil
}

// stopServer stops a server with a bounded timeout during error unwinding.
func stopServer(stop func(context.Context) error) {
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := stop(ctx); err != nil {
		slog.Warn("error stopping server", "error", err)
	}
}
