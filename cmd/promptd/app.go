package main

import (
	"fmt"

	"github.com/rs/zerolog/log"

	"promptd/internal/catalog"
	"promptd/internal/config"
	"promptd/internal/convert"
	"promptd/internal/fetch"
	"promptd/internal/locator"
	"promptd/internal/manager"
	"promptd/internal/runner"
	"promptd/internal/store"
)

// buildCatalog merges the built-in descriptors with the configured catalog
// file and, when enabled, stray GGUF files in the models dir.
func buildCatalog(cfg config.Config) (*catalog.Catalog, error) {
	cat := catalog.Builtin()
	if cfg.CatalogFile != "" {
		descs, err := catalog.LoadFile(cfg.CatalogFile)
		if err != nil {
			return nil, fmt.Errorf("catalog file: %w", err)
		}
		if err := cat.Merge(descs...); err != nil {
			return nil, fmt.Errorf("catalog file: %w", err)
		}
	}
	if cfg.ScanLocal {
		descs, err := catalog.ScanDir(cfg.ModelsDir, cat)
		if err != nil {
			return nil, fmt.Errorf("scan %s: %w", cfg.ModelsDir, err)
		}
		if err := cat.Merge(descs...); err != nil {
			return nil, err
		}
		if len(descs) > 0 {
			log.Debug().Int("count", len(descs)).Str("dir", cfg.ModelsDir).Msg("registered local models")
		}
	}
	return cat, nil
}

// managerOptions tweaks collaborators for a single command.
type managerOptions struct {
	onProgress func(name string, written, total int64)
}

// newManager wires every component from cfg.
func newManager(cfg config.Config, mo managerOptions) (*manager.Manager, error) {
	cat, err := buildCatalog(cfg)
	if err != nil {
		return nil, err
	}
	st, err := store.New(cfg.ModelsDir)
	if err != nil {
		return nil, err
	}
	strategy, err := runner.ParseStrategy(cfg.Strategy)
	if err != nil {
		return nil, err
	}
	loc := locator.New(cfg.LlamaBin)

	f := fetch.New(st)
	if cfg.HubURL != "" {
		f.BaseURL = cfg.HubURL
	}
	f.OnProgress = mo.onProgress

	srv := runner.NewServer(cfg.ServerHost, cfg.ServerPort)
	srv.ReadyAttempts = cfg.ReadyAttempts
	srv.ReadyInterval = cfg.ReadyInterval()

	return manager.NewWithConfig(manager.ManagerConfig{
		Catalog:      cat,
		Store:        st,
		DefaultModel: cfg.DefaultModel,
		Fetcher:      f,
		Converter:    convert.New(st, loc),
		Runner:       runner.New(strategy, srv),
		Locator:      loc,
		Strategy:     strategy,
		Params:       cfg.Params(),
		IdleTimeout:  cfg.IdleTimeout(),
	})
}
