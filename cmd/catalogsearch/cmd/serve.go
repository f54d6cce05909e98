package cmd

import (
	"context"
	stderrors "errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/shopfront/catalogsearch/internal/config"
	"github.com/shopfront/catalogsearch/internal/logging"
	"github.com/shopfront/catalogsearch/internal/transport/httpapi"
	"github.com/shopfront/catalogsearch/pkg/version"
)

type serveOptions struct {
	addr    string
	catalog string
	index   string
	seed    bool
	reindex bool
}

func newServeCmd() *cobra.Command {
	var opts serveOptions

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the search HTTP API",
		Long: `Serve the catalog search HTTP API.

Examples:
  catalogsearch serve
  catalogsearch serve --addr :9090 --catalog ./shop.db --index ./index
  catalogsearch serve --seed`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			opts.apply(cmd, cfg)
			return runServe(cmd.Context(), cfg, opts, nil)
		},
	}

	cmd.Flags().StringVar(&opts.addr, "addr", "", "Listen address (default from config, :8080)")
	cmd.Flags().StringVar(&opts.catalog, "catalog", "", "Catalog database path")
	cmd.Flags().StringVar(&opts.index, "index", "", "Index directory (empty config value keeps it in memory)")
	cmd.Flags().BoolVar(&opts.seed, "seed", false, "Load the demo catalog and reindex on start")
	cmd.Flags().BoolVar(&opts.reindex, "reindex", false, "Rebuild the index from the catalog on start")

	return cmd
}

// apply overlays explicitly set flags onto cfg.
func (o serveOptions) apply(cmd *cobra.Command, cfg *config.Config) {
	if cmd.Flags().Changed("addr") {
		cfg.Server.Addr = o.addr
	}
	if cmd.Flags().Changed("catalog") {
		cfg.Catalog.Path = config.ExpandHome(o.catalog)
	}
	if cmd.Flags().Changed("index") {
		cfg.Index.Path = config.ExpandHome(o.index)
	}
}

// runServe runs the HTTP server until ctx is cancelled. When ready is not
// nil it receives the bound address once the listener is open.
func runServe(ctx context.Context, cfg *config.Config, opts serveOptions, ready chan<- string) error {
	logger := slog.Default()
	if !debugMode {
		l, cleanup, err := logging.Setup(logging.Config{Level: cfg.Server.LogLevel, WriteToStderr: true})
		if err != nil {
			return err
		}
		defer cleanup()
		logger = l
	}

	a, err := openApp(ctx, cfg, logger, appOptions{catalog: true, seed: opts.seed})
	if err != nil {
		return err
	}
	defer func() { _ = a.Close() }()

	if opts.seed || opts.reindex {
		n, err := a.reindex(ctx)
		if err != nil {
			return err
		}
		logger.Info("startup_reindex_complete", slog.Int("documents", n))
	}

	handler := httpapi.NewHandler(a.service, a.catalog,
		httpapi.WithRetry(cfg.Retry()),
		httpapi.WithHandlerLogger(logger))

	srv := &http.Server{
		Handler:      httpapi.NewRouter(handler, a.metrics, logger),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		ErrorLog:     slog.NewLogLogger(logger.Handler(), slog.LevelError),
	}

	ln, err := net.Listen("tcp", cfg.Server.Addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", cfg.Server.Addr, err)
	}
	logger.Info("server_started",
		slog.String("addr", ln.Addr().String()),
		slog.String("index", a.store.Location()),
		slog.String("catalog", a.catalog.Path()),
		slog.String("version", version.Version))
	if ready != nil {
		ready <- ln.Addr().String()
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		if err := srv.Serve(ln); err != nil && !stderrors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), cfg.Server.ShutdownTimeout)
		defer cancel()
		logger.Info("server_stopping")
		return srv.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		return err
	}
	logger.Info("server_stopped")
	return nil
}
