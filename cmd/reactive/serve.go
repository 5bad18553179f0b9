package main

import (
	"context"
	stderrors "errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"
	"github.com/vango-dev/reactive/internal/config"
	"github.com/vango-dev/reactive/internal/errors"
	"github.com/vango-dev/reactive/pkg/reactive"
	"github.com/vango-dev/reactive/pkg/server"
	"github.com/vango-dev/reactive/pkg/sheet"
	"github.com/vango-dev/reactive/pkg/store"
	"github.com/vango-dev/reactive/pkg/telemetry"
)

func serveCmd(configPath *string) *cobra.Command {
	var (
		port    int
		host    string
		backend string
		debug   bool
	)

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve a sheet over HTTP and WebSocket",
		Long: `Start the sheet server.

Endpoints:
  GET    /cells          List every entry
  GET    /cells/{name}   Read one entry
  PUT    /cells/{name}   Set an entry: {"raw": "=A+1"}
  DELETE /cells/{name}   Remove an entry
  GET    /ws             Live updates; send {"op":"set","name":"A","raw":"1"}
  GET    /metrics        Prometheus metrics (if enabled)
  GET    /healthz        Health check

Examples:
  reactive serve
  reactive serve --port=9000
  reactive serve --store=s3 --config=prod.json
  REACTIVE_SERVER_PORT=9000 REACTIVE_STORE_BACKEND=sqlite REACTIVE_STORE_PATH=sheet.db reactive serve

Precedence: flags, then REACTIVE_* environment variables, then reactive.json.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(*configPath, cmd.ErrOrStderr())
			if err != nil {
				return err
			}
			applied, err := cfg.ApplyEnv()
			if err != nil {
				return err
			}
			for _, key := range applied {
				info(cmd.ErrOrStderr(), "%s set from %s", key, config.EnvName(key))
			}
			if port > 0 {
				cfg.Server.Port = port
			}
			if host != "" {
				cfg.Server.Host = host
			}
			if backend != "" {
				cfg.Store.Backend = backend
			}
			if debug {
				cfg.Engine.LogLevel = "debug"
			}
			if err := cfg.Validate(); err != nil {
				return err
			}
			return runServe(cmd.Context(), cfg, cmd.OutOrStdout(), cmd.ErrOrStderr())
		},
	}

	cmd.Flags().IntVarP(&port, "port", "p", 0, "Port to listen on (default from reactive.json)")
	cmd.Flags().StringVarP(&host, "host", "H", "", "Host to bind to (default from reactive.json)")
	cmd.Flags().StringVar(&backend, "store", "", `Snapshot backend: "memory", "s3" or "sqlite"`)
	cmd.Flags().BoolVar(&debug, "debug", false, "Log at debug level")

	return cmd
}

// loadConfig reads the config at path, or searches for one. A missing file
// falls back to the defaults when no explicit path was given.
func loadConfig(path string, stderr io.Writer) (*config.Config, error) {
	if path != "" {
		return config.LoadFile(path)
	}
	cfg, err := config.LoadFromWorkingDir()
	var e *errors.Error
	if stderrors.As(err, &e) && e.Code == "E140" {
		warn(stderr, "No %s found, using defaults", config.ConfigFileName)
		return config.New(), nil
	}
	return cfg, err
}

func newLogger(cfg *config.Config, w io.Writer) *slog.Logger {
	opts := &slog.HandlerOptions{Level: cfg.LogLevel()}
	if cfg.Engine.LogFormat == "json" {
		return slog.New(slog.NewJSONHandler(w, opts))
	}
	return slog.New(slog.NewTextHandler(w, opts))
}

// openStore builds the snapshot backend named by cfg.
func openStore(ctx context.Context, cfg *config.Config) (store.Store, error) {
	switch cfg.Store.Backend {
	case config.BackendMemory:
		return store.NewMemoryStore(), nil
	case config.BackendS3:
		client := store.NewS3Client(cfg.Store.Region, cfg.Store.Endpoint, cfg.Store.PathStyle)
		return store.NewS3Store(client, cfg.Store.Bucket, cfg.Store.Prefix), nil
	case config.BackendSQLite:
		st, err := store.OpenSQLite(ctx, cfg.Store.Path)
		if err != nil {
			return nil, errors.New("E152").Wrap(err)
		}
		return st, nil
	default:
		return nil, errors.New("E152").WithDetail("Unknown store backend " + cfg.Store.Backend)
	}
}

// observers returns the engine observers enabled by cfg, and the gatherer
// that serves /metrics when metrics are on.
func observers(cfg *config.Config) (reactive.Observer, prometheus.Gatherer) {
	var (
		obs      []reactive.Observer
		gatherer prometheus.Gatherer
	)
	if cfg.Metrics.Enabled {
		reg := prometheus.NewRegistry()
		obs = append(obs, telemetry.NewMetrics(
			telemetry.WithRegistry(reg),
			telemetry.WithNamespace(cfg.Metrics.Namespace),
		))
		gatherer = reg
	}
	if cfg.Tracing.Enabled {
		obs = append(obs, telemetry.NewTracer(
			telemetry.WithTracerName(cfg.Tracing.TracerName),
			telemetry.WithMinDuration(cfg.TraceMinDuration()),
		))
	}
	if len(obs) == 0 {
		return nil, nil
	}
	return telemetry.Multi(obs...), gatherer
}

// originChecker accepts same-origin upgrades plus the configured origins.
func originChecker(allowed []string) func(*http.Request) bool {
	if len(allowed) == 0 {
		return server.SameOriginCheck
	}
	set := make(map[string]bool, len(allowed))
	for _, o := range allowed {
		set[o] = true
	}
	return func(r *http.Request) bool {
		return set[r.Header.Get("Origin")] || server.SameOriginCheck(r)
	}
}

func runServe(ctx context.Context, cfg *config.Config, stdout, stderr io.Writer) error {
	logger := newLogger(cfg, stderr)

	st, err := openStore(ctx, cfg)
	if err != nil {
		return err
	}
	defer st.Close()

	observer, gatherer := observers(cfg)
	rt := reactive.NewRuntime(
		reactive.WithLogger(logger),
		reactive.WithObserver(observer),
		reactive.WithMaxFlushRounds(cfg.Engine.MaxFlushRounds),
	)
	root := rt.NewScope()
	sh := sheet.New(root)

	srv := server.New(&server.Config{
		Address:         cfg.Address(),
		ShutdownTimeout: cfg.ShutdownTimeout(),
		CallTimeout:     cfg.CallTimeout(),
		CheckOrigin:     originChecker(cfg.Server.AllowedOrigins),
		SnapshotKey:     cfg.Store.Key,
		Gatherer:        gatherer,
	}, rt, sh, st)

	printBanner(stdout)
	fmt.Fprintln(stdout, "  serve")
	fmt.Fprintln(stdout)
	info(stdout, "Address:  http://%s", cfg.Address())
	info(stdout, "Store:    %s", cfg.Store.Backend)
	info(stdout, "Metrics:  %v", cfg.Metrics.Enabled)
	info(stdout, "Tracing:  %v", cfg.Tracing.Enabled)
	fmt.Fprintln(stdout)

	if err := srv.Run(ctx); err != nil {
		switch {
		case stderrors.Is(err, syscall.EADDRINUSE):
			return errors.New("E162").Wrap(err)
		default:
			return errors.FromError(err, "E161")
		}
	}
	success(stdout, "Server stopped")
	return nil
}
