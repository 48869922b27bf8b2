package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/spf13/cobra"

	"github.com/odvcencio/gitserve/pkg/actor"
	"github.com/odvcencio/gitserve/pkg/auth"
	"github.com/odvcencio/gitserve/pkg/cache"
	"github.com/odvcencio/gitserve/pkg/router"
)

// Default timings, grounded on the same shutdown/read-header timeout split
// bufbuild-buf's httpserver.Runner uses.
const (
	defaultShutdownTimeout   = 10 * time.Second
	defaultReadHeaderTimeout = 30 * time.Second
)

// ServerConfig is the TOML shape loaded by --config:
//
//	addr     = ":8080"
//	base_dir = "/srv/gitserve/repos"
//	auth_file = "/srv/gitserve/users.toml"   # optional; omit for AllowAll
//	cache_ttl = "24h"                        # optional; omit for pkg/cache's DefaultTTL
type ServerConfig struct {
	Addr     string `toml:"addr"`
	BaseDir  string `toml:"base_dir"`
	AuthFile string `toml:"auth_file"`
	CacheTTL string `toml:"cache_ttl"`
}

func loadServerConfig(path string) (ServerConfig, error) {
	cfg := ServerConfig{Addr: ":8080"}
	if path == "" {
		return cfg, nil
	}
	if _, err := toml.DecodeFile(path, &cfg); err != nil {
		return ServerConfig{}, fmt.Errorf("load server config: %w", err)
	}
	return cfg, nil
}

func newServeCmd() *cobra.Command {
	var configPath string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the Git Smart HTTP server",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadServerConfig(configPath)
			if err != nil {
				return err
			}
			if cfg.BaseDir == "" {
				return fmt.Errorf("serve: base_dir is required (set it in --config)")
			}

			authz, err := buildAuthZ(cfg)
			if err != nil {
				return err
			}

			ttl, err := parseCacheTTL(cfg.CacheTTL)
			if err != nil {
				return err
			}

			registry := actor.NewRegistry(cfg.BaseDir)
			resultCache := cache.New(ttl)
			handler := router.New(registry, authz, resultCache)

			return runServer(cmd.Context(), cfg.Addr, handler, cmd.ErrOrStderr())
		},
	}

	cmd.Flags().StringVar(&configPath, "config", "", "path to a TOML server config file")
	return cmd
}

func buildAuthZ(cfg ServerConfig) (auth.AuthZ, error) {
	if cfg.AuthFile == "" {
		return auth.AllowAll{}, nil
	}
	return auth.LoadBasicFileAuthZ(cfg.AuthFile)
}

func parseCacheTTL(raw string) (time.Duration, error) {
	if raw == "" {
		return 0, nil // cache.New(0) falls back to cache.DefaultTTL
	}
	d, err := time.ParseDuration(raw)
	if err != nil {
		return 0, fmt.Errorf("parse cache_ttl %q: %w", raw, err)
	}
	return d, nil
}

func runServer(ctx context.Context, addr string, handler http.Handler, stderr io.Writer) error {
	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	srv := &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: defaultReadHeaderTimeout,
	}

	serveErr := make(chan error, 1)
	go func() {
		fmt.Fprintf(stderr, "gitserve listening on %s\n", addr)
		serveErr <- srv.ListenAndServe()
	}()

	select {
	case err := <-serveErr:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), defaultShutdownTimeout)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	}
}
