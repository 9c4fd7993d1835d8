// Package app wires the catalog, connectors and query service from
// configuration.
package app

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"

	"duck-connect/internal/config"
	"duck-connect/internal/connector"
	"duck-connect/internal/connector/file"
	"duck-connect/internal/connector/kvmap"
	"duck-connect/internal/connector/testsrc"
	"duck-connect/internal/dataflow"
	"duck-connect/internal/db/repository"
	"duck-connect/internal/declarative"
	"duck-connect/internal/domain"
	"duck-connect/internal/kvstore"
	"duck-connect/internal/service/catalog"
	"duck-connect/internal/service/query"
)

// Deps holds what main() must provide.
type Deps struct {
	Cfg *config.Config
	// WriteDB is the metastore write pool. Required when Cfg.CatalogStore
	// is "sqlite".
	WriteDB *sql.DB
	// ReadDB backs the readiness check. Optional.
	ReadDB *sql.DB
	Logger *slog.Logger
}

// App is the fully wired application.
type App struct {
	Catalog    *catalog.ExternalCatalog
	Query      *query.Service
	Jobs       *query.JobManager
	Connectors *connector.Registry
	Maps       *kvstore.Store

	readDB *sql.DB
}

// New wires connectors, the definition store, the catalog, the query
// service and the job manager, then applies Cfg.TablesFile when set.
func New(ctx context.Context, deps Deps) (*App, error) {
	cfg := deps.Cfg
	logger := deps.Logger

	maps := kvstore.New()
	registry, err := connector.NewRegistry(
		file.New(logger, file.WithParallelism(cfg.ScanParallelism)),
		kvmap.New(logger, maps, kvmap.WithParallelism(cfg.ScanParallelism)),
		testsrc.NewBatch(logger),
		testsrc.NewStream(logger),
	)
	if err != nil {
		return nil, fmt.Errorf("register connectors: %w", err)
	}

	var store domain.TableDefinitionStore
	switch cfg.CatalogStore {
	case config.StoreMemory:
		store = kvstore.NewDefinitionStore(maps)
	default:
		if deps.WriteDB == nil {
			return nil, fmt.Errorf("catalog store %q needs a metastore connection", cfg.CatalogStore)
		}
		store = repository.NewExternalTableStore(deps.WriteDB)
	}

	cat := catalog.NewExternalCatalog(store, registry, logger, catalog.WithSchemaName(cfg.DefaultSchema))
	queries := query.NewService(cat, logger, cfg.QueryTimeout, dataflow.WithMember(cfg.MemberIndex, cfg.MemberCount))
	a := &App{
		Catalog:    cat,
		Query:      queries,
		Jobs:       query.NewJobManager(queries, logger),
		Connectors: registry,
		Maps:       maps,
		readDB:     deps.ReadDB,
	}

	if cfg.TablesFile != "" {
		docs, err := declarative.LoadPath(cfg.TablesFile, declarative.LoadOptions{})
		if err != nil {
			return nil, err
		}
		plan, err := declarative.ApplyDocuments(ctx, cat, docs, declarative.DiffOptions{}, logger)
		if err != nil {
			return nil, fmt.Errorf("apply %s: %w", cfg.TablesFile, err)
		}
		s := plan.Summary()
		logger.Info("table file applied", "path", cfg.TablesFile, "created", s.Creates, "replaced", s.Updates)
	}
	return a, nil
}
