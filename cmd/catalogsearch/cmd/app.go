package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/shopfront/catalogsearch/internal/catalog"
	"github.com/shopfront/catalogsearch/internal/config"
	"github.com/shopfront/catalogsearch/internal/metrics"
	"github.com/shopfront/catalogsearch/internal/search"
	"github.com/shopfront/catalogsearch/internal/store"
	"github.com/shopfront/catalogsearch/internal/telemetry"
	"github.com/shopfront/catalogsearch/pkg/indexer"
	"github.com/shopfront/catalogsearch/pkg/searcher"
)

// loadConfig loads configuration for the working directory and the
// --config flag.
func loadConfig() (*config.Config, error) {
	wd, err := os.Getwd()
	if err != nil {
		wd = "."
	}
	return config.Load(wd, configPath)
}

// appOptions selects the optional parts of an app.
type appOptions struct {
	// catalog opens the primary store.
	catalog bool
	// seed loads the demo fixture into the catalog. Implies catalog.
	seed bool
}

// app is the wired set of components one command works against.
type app struct {
	cfg     *config.Config
	logger  *slog.Logger
	metrics *metrics.Metrics
	store   *store.Store
	writer  *indexer.Writer
	service *search.Service
	catalog *catalog.Catalog
}

// openApp opens the index store and builds the search service over it.
// Close releases everything that was opened, even on a partial failure.
func openApp(ctx context.Context, cfg *config.Config, logger *slog.Logger, opts appOptions) (_ *app, err error) {
	if logger == nil {
		logger = slog.Default()
	}
	a := &app{cfg: cfg, logger: logger, metrics: metrics.New()}
	defer func() {
		if err != nil {
			_ = a.Close()
		}
	}()

	a.store, err = store.Open(cfg.Index.Path, store.Options{
		RecoverCorrupt: cfg.Index.RecoverCorrupt,
		Logger:         logger,
	})
	if err != nil {
		return nil, err
	}

	a.writer, err = indexer.NewWriter(indexer.WithStore(a.store), indexer.WithLogger(logger))
	if err != nil {
		return nil, err
	}
	reader, err := searcher.New(searcher.WithStore(a.store), searcher.WithLogger(logger))
	if err != nil {
		return nil, err
	}

	svcOpts := []search.Option{
		search.WithMetrics(a.metrics),
		search.WithLogger(logger),
	}
	if cc := cfg.ResultCache(); cc != nil {
		svcOpts = append(svcOpts, search.WithCache(*cc))
	}
	if cfg.Search.Insights {
		svcOpts = append(svcOpts, search.WithInsights(telemetry.New(telemetry.DefaultConfig())))
	}
	a.service, err = search.NewService(a.writer, reader, cfg.SearchService(), svcOpts...)
	if err != nil {
		return nil, err
	}

	if opts.catalog || opts.seed {
		a.catalog, err = catalog.Open(cfg.Catalog.Path, logger)
		if err != nil {
			return nil, err
		}
		if err = a.catalog.EnsureSchema(ctx); err != nil {
			return nil, err
		}
		if opts.seed {
			if err = a.catalog.Seed(ctx, catalog.DemoFixture()); err != nil {
				return nil, err
			}
			logger.Info("catalog_seeded", slog.String("path", a.catalog.Path()))
		}
	}
	return a, nil
}

// reindex replaces the index with every catalog item in one commit.
func (a *app) reindex(ctx context.Context) (int, error) {
	if a.catalog == nil {
		return 0, fmt.Errorf("catalog is not open")
	}
	docs, err := a.catalog.Documents(ctx)
	if err != nil {
		return 0, err
	}
	if err := a.service.ReindexAll(ctx, docs); err != nil {
		return 0, err
	}
	return len(docs), nil
}

// Close releases the catalog, the writer and the store.
func (a *app) Close() error {
	var firstErr error
	keep := func(err error) {
		if err != nil && firstErr == nil {
			firstErr = err
		}
	}
	if a.catalog != nil {
		keep(a.catalog.Close())
	}
	if a.writer != nil {
		keep(a.writer.Close())
	}
	if a.store != nil {
		keep(a.store.Close())
	}
	return firstErr
}
