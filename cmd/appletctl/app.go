package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/prometheus/client_golang/prometheus"

	"appletcore/internal/archive"
	"appletcore/internal/blob"
	"appletcore/internal/config"
	"appletcore/internal/core"
	"appletcore/internal/observability"
)

// app holds what a single command invocation needs.
type app struct {
	svc      *core.Service
	store    core.PersistentStore
	archive  *archive.Archiver
	logger   *slog.Logger
	registry *prometheus.Registry
}

func openApp(ctx context.Context, configPath string, logOut io.Writer) (*app, error) {
	cfg, err := config.FromEnvironment(configPath)
	if err != nil {
		return nil, err
	}
	logger := observability.NewLogger(cfg.Log, logOut)

	store, err := core.OpenPersistentStore(cfg.Storage, core.NewDefaultRulesEngine())
	if err != nil {
		return nil, fmt.Errorf("open store: %w", err)
	}
	registry := prometheus.NewRegistry()
	metrics, err := observability.NewPrometheusMetrics(registry)
	if err != nil {
		_ = store.Close()
		return nil, err
	}
	opts, err := core.OptionsFromConfig(cfg.Core)
	if err != nil {
		_ = store.Close()
		return nil, err
	}
	opts = append(opts,
		core.WithLogger(logger),
		core.WithAuditRecorder(observability.NewSlogAudit(logger)),
		core.WithMetricsRecorder(metrics),
		core.WithTracer(observability.NewOTelTracer(nil)),
	)

	a := &app{store: store, logger: logger, registry: registry}
	blobs, err := blob.Open(ctx, cfg.Blob)
	if err != nil {
		_ = store.Close()
		return nil, fmt.Errorf("open blob store: %w", err)
	}
	if blobs != nil {
		a.archive = archive.New(blobs)
		opts = append(opts, core.WithArchiver(a.archive))
	}
	a.svc = core.NewService(store, opts...)
	logger.Debug("appletctl ready", "storage", cfg.Storage.Driver, "blob", cfg.Blob.Driver)
	return a, nil
}

// close releases the store and, when path is set, dumps the metrics the
// invocation produced.
func (a *app) close(metricsPath string) error {
	var errs []error
	if metricsPath != "" {
		f, err := os.Create(metricsPath) //nolint:gosec // operator supplied path
		if err != nil {
			errs = append(errs, err)
		} else {
			errs = append(errs, observability.WriteText(f, a.registry), f.Close())
		}
	}
	errs = append(errs, a.store.Close())
	return errors.Join(errs...)
}
