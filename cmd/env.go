package main

import (
	"context"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/credent-works/certverify-cli/internal/pipeline"
	"github.com/credent-works/certverify-cli/internal/registry"
	"github.com/credent-works/certverify-cli/internal/store"
	"github.com/credent-works/certverify-cli/internal/visual"
	"github.com/credent-works/certverify-cli/pkg/clip"
)

// pipelineEnv bundles the wired dependencies a command needs to run
// verifications.
type pipelineEnv struct {
	Store    store.Store
	Registry *registry.Registry
	Pipeline *pipeline.Pipeline
}

func (e *pipelineEnv) Close() {
	if e.Store != nil {
		_ = e.Store.Close()
	}
}

func initStore(ctx context.Context) (store.Store, error) {
	switch cfg.Store.Driver {
	case "sqlite":
		dsn := cfg.Store.DatabaseURL
		if dsn == "" {
			dsn = "certverify.db"
		}
		return store.NewSQLite(dsn)
	case "postgres":
		return store.NewPostgres(ctx, cfg.Store.DatabaseURL, nil)
	default:
		return nil, eris.Errorf("unsupported store driver: %s", cfg.Store.Driver)
	}
}

func loadRegistry() (*registry.Registry, error) {
	return registry.Load(cfg.Registry.Path, registry.Options{
		SheetName: cfg.Registry.SheetName,
		SkipRows:  cfg.Registry.SkipRows,
	})
}

func initPipeline(ctx context.Context) (*pipelineEnv, error) {
	st, err := initStore(ctx)
	if err != nil {
		return nil, err
	}
	if err := st.Migrate(ctx); err != nil {
		st.Close()
		return nil, eris.Wrap(err, "migrate store")
	}

	reg, err := loadRegistry()
	if err != nil {
		st.Close()
		return nil, eris.Wrap(err, "load registry")
	}

	clipClient := clip.NewClient(cfg.Clip.BaseURL,
		clip.WithModel(cfg.Clip.Model),
		clip.WithRateLimit(cfg.Clip.RateLimit, 1),
	)
	verifier := visual.NewVerifier(ctx, clipClient)
	if !verifier.ClipAvailable() {
		zap.L().Warn("clip backend unreachable, logo checks fall back to keypoint matching")
	}

	var overrides pipeline.SectionAliases
	if cfg.Aliases.Path != "" {
		overrides, err = pipeline.LoadAliasOverrides(cfg.Aliases.Path)
		if err != nil {
			st.Close()
			return nil, eris.Wrap(err, "load alias overrides")
		}
	}
	canon := pipeline.NewCanonicalizer(overrides)

	return &pipelineEnv{
		Store:    st,
		Registry: reg,
		Pipeline: pipeline.New(cfg, st, reg, verifier, canon),
	}, nil
}
