package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/ricesearch/rice-eval/internal/bus"
	"github.com/ricesearch/rice-eval/internal/evaluation"
	"github.com/ricesearch/rice-eval/internal/history"
)

func watchCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Follow evaluation results published on the event bus",
		Long: `Consume evaluation.completed events from Kafka and print one line per
result. With history enabled, every result is also stored in Redis, so runs
published by training jobs on other machines show up in 'rice-eval history'.`,
		RunE: runWatch,
	}

	cmd.Flags().String("topic", "", "topic to consume (overrides config)")

	return cmd
}

func runWatch(cmd *cobra.Command, _ []string) error {
	a, err := newApp(cmd)
	if err != nil {
		return err
	}
	if a.cfg.Bus.Type != "kafka" {
		return fmt.Errorf("watch needs the kafka bus (bus.type is %q)", a.cfg.Bus.Type)
	}

	topic := a.cfg.Bus.Topic
	if cmd.Flags().Changed("topic") {
		topic, _ = cmd.Flags().GetString("topic")
	}

	ctx, cancel := runContext()
	defer cancel()

	eventBus, err := bus.NewBus(a.cfg.Bus, a.log)
	if err != nil {
		return fmt.Errorf("failed to create event bus: %w", err)
	}
	defer func() { _ = eventBus.Close() }()

	sinks := []evaluation.ReportSink{printSink(os.Stdout, a.format)}
	if a.cfg.History.Enabled {
		store, err := history.New(a.cfg.History.RedisURL, a.historyTTL())
		if err != nil {
			return fmt.Errorf("failed to connect to history store: %w", err)
		}
		defer func() { _ = store.Close() }()
		sinks = append(sinks, store)
	}

	if err := bus.Forward(ctx, eventBus, topic, sinks...); err != nil {
		return err
	}
	a.log.Info("Watching evaluation results", "topic", topic, "history", a.cfg.History.Enabled)

	<-ctx.Done()
	return nil
}

// printSink writes one line (or one JSON document) per result to w.
func printSink(w io.Writer, format string) evaluation.ReportSink {
	return evaluation.ReportSinkFunc(func(_ context.Context, r *evaluation.Result) error {
		if format == "json" {
			return json.NewEncoder(w).Encode(r)
		}
		_, err := fmt.Fprintf(w, "%s\t%s\tepoch=%d\tsteps=%d\tqueries=%d\tscore=%.4f\n",
			r.CompletedAt.Format(time.RFC3339), r.Name, r.Epoch, r.Steps, r.Queries, r.Score())
		return err
	})
}
