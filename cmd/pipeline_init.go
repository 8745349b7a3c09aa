package main

import (
	"context"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sipwell/nutrition-pipeline/internal/dispatch"
	"github.com/sipwell/nutrition-pipeline/internal/monitoring"
	"github.com/sipwell/nutrition-pipeline/internal/pipeline"
	"github.com/sipwell/nutrition-pipeline/internal/source"
	"github.com/sipwell/nutrition-pipeline/internal/storage"
	"github.com/sipwell/nutrition-pipeline/internal/store"
)

// pipelineEnv holds the initialized store, medallion storage, and pipeline
// needed by the run/serve commands.
type pipelineEnv struct {
	Store    store.Store
	Storage  *storage.Store
	Alerter  *monitoring.Alerter
	Pipeline *pipeline.Pipeline
}

// Close releases resources held by the pipeline environment.
func (pe *pipelineEnv) Close() {
	if pe.Store != nil {
		_ = pe.Store.Close()
	}
}

// initStore opens the run-ledger database named by the configured driver.
func initStore(ctx context.Context) (store.Store, error) {
	switch cfg.Store.Driver {
	case "sqlite":
		dsn := cfg.Store.DatabaseURL
		if dsn == "" {
			dsn = "nutrition-pipeline.db"
		}
		return store.NewSQLite(dsn)
	case "postgres":
		return store.NewPostgres(ctx, cfg.Store.DatabaseURL)
	default:
		return nil, eris.Errorf("unsupported store driver: %s", cfg.Store.Driver)
	}
}

// initProvider selects the feed provider named by the configured source kind.
func initProvider() (source.Provider, error) {
	switch cfg.Source.Kind {
	case "dir":
		return source.NewDirProvider("."), nil
	case "http":
		return source.NewHTTPProvider(cfg.Source), nil
	default:
		return nil, eris.Errorf("unsupported source kind: %s", cfg.Source.Kind)
	}
}

// initPipeline sets up the store, medallion storage, feed provider, and
// dispatcher, and builds the Pipeline. Callers should defer env.Close().
func initPipeline(ctx context.Context) (*pipelineEnv, error) {
	st, err := initStore(ctx)
	if err != nil {
		return nil, err
	}

	if err := st.Migrate(ctx); err != nil {
		_ = st.Close()
		return nil, eris.Wrap(err, "migrate store")
	}

	provider, err := initProvider()
	if err != nil {
		_ = st.Close()
		return nil, err
	}

	medallion := storage.New(cfg.Storage.Root)
	alerter := monitoring.NewAlerter(cfg.Monitoring)
	dispatcher := dispatch.New(cfg.Dispatch, alerter)

	if cfg.Dispatch.Endpoint == "" {
		zap.L().Info("no dispatch endpoint configured, running in dry-run mode")
	}

	p := pipeline.New(cfg, st, medallion, provider, dispatcher)

	return &pipelineEnv{
		Store:    st,
		Storage:  medallion,
		Alerter:  alerter,
		Pipeline: p,
	}, nil
}
