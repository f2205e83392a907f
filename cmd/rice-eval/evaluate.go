package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/ricesearch/rice-eval/internal/bus"
	"github.com/ricesearch/rice-eval/internal/dataset"
	"github.com/ricesearch/rice-eval/internal/evaluation"
	"github.com/ricesearch/rice-eval/internal/history"
	"github.com/ricesearch/rice-eval/internal/metrics"
)

func evaluateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "evaluate",
		Short: "Evaluate the configured embedder on a dataset",
		Long: `Embed queries and corpus of a BEIR-style dataset, rank the corpus for every
query and report the retrieval metrics.

Results go to the log, the CSV report (when an output directory is set) and every
enabled sink: Redis history, the event bus and the Prometheus textfile.`,
		RunE: runEvaluate,
	}

	cmd.Flags().String("dataset", "", "dataset directory (overrides config)")
	cmd.Flags().String("split", "", "qrels split (overrides config)")
	cmd.Flags().String("name", "", "evaluator name (default: dataset directory name)")
	cmd.Flags().StringP("output", "o", "", "CSV report directory (overrides config)")
	cmd.Flags().Int("epoch", -1, "training epoch label")
	cmd.Flags().Int("steps", -1, "training steps label")

	return cmd
}

func runEvaluate(cmd *cobra.Command, _ []string) error {
	a, err := newApp(cmd)
	if err != nil {
		return err
	}
	if err := applyEvalFlags(cmd, a); err != nil {
		return err
	}

	ctx, cancel := runContext()
	defer cancel()

	shutdownTracing, err := a.setupTracing(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = shutdownTracing(context.WithoutCancel(ctx)) }()

	ds, err := dataset.Load(a.cfg.Eval.DatasetDir, a.cfg.Eval.Split)
	if err != nil {
		return fmt.Errorf("failed to load dataset: %w", err)
	}
	a.log.Info("Loaded dataset",
		"dataset", ds.Name,
		"split", ds.Split,
		"queries", len(ds.Queries),
		"corpus", len(ds.Corpus),
	)

	var rec *metrics.Recorder
	if a.cfg.Metrics.Enabled {
		rec = metrics.New()
	}

	emb, closeEmbedder, err := a.newEmbedder(rec)
	if err != nil {
		return err
	}
	defer closeEmbedder()

	var sinks []evaluation.ReportSink

	if a.cfg.History.Enabled {
		store, err := history.New(a.cfg.History.RedisURL, a.historyTTL())
		if err != nil {
			return fmt.Errorf("failed to connect to history store: %w", err)
		}
		defer func() { _ = store.Close() }()
		sinks = append(sinks, store)
		a.log.Info("Recording run history", "ttl_hours", a.cfg.History.TTLHours)
	}

	eventBus, err := bus.NewBus(a.cfg.Bus, a.log)
	if err != nil {
		return fmt.Errorf("failed to create event bus: %w", err)
	}
	if eventBus != nil {
		defer func() { _ = eventBus.Close() }()
		if rec != nil {
			eventBus = bus.NewInstrumentedBus(eventBus, rec)
		}
		sinks = append(sinks, bus.NewSink(eventBus, a.cfg.Bus.Topic))
		a.log.Info("Publishing results", "bus", a.cfg.Bus.Type, "topic", a.cfg.Bus.Topic)
	}

	// Registered last so the textfile reflects bus publishes of this run.
	if rec != nil {
		sinks = append(sinks, rec)
	}

	name := a.cfg.Eval.Name
	if name == "" {
		name = ds.Name
	}

	evaluator, err := evaluation.New(ds.Queries, ds.Corpus, ds.Relevance, a.evalConfig(name),
		evaluation.WithLogger(a.log),
		evaluation.WithSinks(sinks...),
	)
	if err != nil {
		return err
	}

	info := evaluation.DefaultRunInfo()
	info.Epoch, _ = cmd.Flags().GetInt("epoch")
	info.Steps, _ = cmd.Flags().GetInt("steps")
	info.OutputPath = a.cfg.Eval.OutputDir

	result, err := evaluator.Run(ctx, emb, info)
	if err != nil {
		return err
	}

	if rec != nil && a.cfg.Metrics.Textfile != "" {
		if err := rec.WriteTextfile(a.cfg.Metrics.Textfile); err != nil {
			return fmt.Errorf("failed to write metrics textfile: %w", err)
		}
		a.log.Debug("Wrote metrics textfile", "path", a.cfg.Metrics.Textfile)
	}

	return printResult(a.format, result)
}

func applyEvalFlags(cmd *cobra.Command, a *app) error {
	overrides := map[string]*string{
		"dataset": &a.cfg.Eval.DatasetDir,
		"split":   &a.cfg.Eval.Split,
		"name":    &a.cfg.Eval.Name,
		"output":  &a.cfg.Eval.OutputDir,
	}
	for flag, target := range overrides {
		if cmd.Flags().Changed(flag) {
			*target, _ = cmd.Flags().GetString(flag)
		}
	}
	if a.cfg.Eval.DatasetDir == "" {
		return fmt.Errorf("no dataset directory (use --dataset or eval.dataset_dir)")
	}
	return nil
}

func printResult(format string, r *evaluation.Result) error {
	if format == "json" {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(r)
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	header, row := evaluation.Header(r), evaluation.Row(r)
	for i := 2; i < len(header); i++ {
		fmt.Fprintf(w, "%s\t%s\n", header[i], row[i])
	}
	fmt.Fprintf(w, "score\t%.4f\n", r.Score())
	return w.Flush()
}
