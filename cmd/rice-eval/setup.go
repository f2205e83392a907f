package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/ricesearch/rice-eval/internal/config"
	"github.com/ricesearch/rice-eval/internal/embedder"
	"github.com/ricesearch/rice-eval/internal/evaluation"
	"github.com/ricesearch/rice-eval/internal/metrics"
	"github.com/ricesearch/rice-eval/internal/observability"
	rcontext "github.com/ricesearch/rice-eval/internal/pkg/context"
	"github.com/ricesearch/rice-eval/internal/pkg/logger"
	"github.com/ricesearch/rice-eval/internal/vectorstore"
)

// app bundles what every command needs.
type app struct {
	cfg    *config.Config
	log    *logger.Logger
	format string
}

func newApp(cmd *cobra.Command) (*app, error) {
	configPath, _ := cmd.Flags().GetString("config")
	verbose, _ := cmd.Flags().GetBool("verbose")
	format, _ := cmd.Flags().GetString("format")

	if format != "text" && format != "json" {
		return nil, fmt.Errorf("invalid format %q (must be text or json)", format)
	}

	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	if err := cfg.ValidateForCLI(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	level := cfg.Log.Level
	if verbose {
		level = "debug"
	}

	return &app{
		cfg:    cfg,
		log:    logger.NewWithWriter(os.Stderr, level, cfg.Log.Format),
		format: format,
	}, nil
}

// runContext is cancelled on SIGINT or SIGTERM and carries a fresh run id.
func runContext() (context.Context, context.CancelFunc) {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	return rcontext.WithNewRunID(ctx), cancel
}

// newEmbedder builds the live embedder, wrapped by the Qdrant store when enabled.
// The returned cleanup closes the store.
func (a *app) newEmbedder(rec *metrics.Recorder) (evaluation.Embedder, func(), error) {
	var cacheMetrics embedder.CacheMetrics
	if rec != nil {
		cacheMetrics = rec
	}

	live, err := embedder.NewFromConfig(a.cfg.Embedder, a.log, cacheMetrics)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create embedder: %w", err)
	}
	if !a.cfg.Qdrant.Enabled {
		return live, func() {}, nil
	}

	store, err := a.newStore()
	if err != nil {
		return nil, nil, err
	}

	var fallback evaluation.Embedder
	if a.cfg.Qdrant.Fallback {
		fallback = live
	}
	return vectorstore.NewEmbedder(store, fallback, a.log), func() { _ = store.Close() }, nil
}

func (a *app) newStore() (*vectorstore.Store, error) {
	qcfg := vectorstore.DefaultClientConfig()
	qcfg.Host = a.cfg.Qdrant.Host
	qcfg.Port = a.cfg.Qdrant.Port
	qcfg.APIKey = a.cfg.Qdrant.APIKey
	qcfg.UseTLS = a.cfg.Qdrant.UseTLS

	store, err := vectorstore.New(qcfg, a.cfg.Qdrant.Collection)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to Qdrant: %w", err)
	}
	a.log.Info("Connected to Qdrant", "host", qcfg.Host, "port", qcfg.Port, "collection", store.Collection())
	return store, nil
}

// setupTracing installs the OTLP exporter when an endpoint is configured.
func (a *app) setupTracing(ctx context.Context) (observability.ShutdownFunc, error) {
	_, shutdown, err := observability.Setup(ctx, observability.TraceConfig{
		ServiceName:    "rice-eval",
		ServiceVersion: version,
		Endpoint:       a.cfg.Tracing.Endpoint,
		SamplingRate:   a.cfg.Tracing.SamplingRate,
		Insecure:       a.cfg.Tracing.Insecure,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to set up tracing: %w", err)
	}
	if a.cfg.Tracing.Endpoint != "" {
		a.log.Info("Exporting traces", "endpoint", a.cfg.Tracing.Endpoint)
	}
	return shutdown, nil
}

func (a *app) evalConfig(name string) evaluation.Config {
	e := a.cfg.Eval
	return evaluation.Config{
		Name:               name,
		QueryChunkSize:     e.QueryChunkSize,
		CorpusChunkSize:    e.CorpusChunkSize,
		AccuracyAtK:        e.AccuracyAtK,
		PrecisionRecallAtK: e.PrecisionRecallAtK,
		MRRAtK:             e.MRRAtK,
		NDCGAtK:            e.NDCGAtK,
		MAPAtK:             e.MAPAtK,
		BatchSize:          e.BatchSize,
	}
}

func (a *app) historyTTL() time.Duration {
	return time.Duration(a.cfg.History.TTLHours) * time.Hour
}
