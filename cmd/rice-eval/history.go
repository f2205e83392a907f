package main

import (
	"encoding/json"
	"fmt"
	"os"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/ricesearch/rice-eval/internal/history"
)

func historyCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "history [name]",
		Short: "List past evaluation runs",
		Long: `List evaluation runs recorded in Redis. Without a name, list the
evaluators that have history.`,
		Args: cobra.MaximumNArgs(1),
		RunE: runHistory,
	}

	cmd.Flags().Duration("since", 0, "only runs completed within this duration")
	cmd.Flags().Bool("latest", false, "only the most recent run")
	cmd.Flags().Bool("delete", false, "delete the history of the named evaluator")

	return cmd
}

func runHistory(cmd *cobra.Command, args []string) error {
	a, err := newApp(cmd)
	if err != nil {
		return err
	}

	ctx, cancel := runContext()
	defer cancel()

	store, err := history.New(a.cfg.History.RedisURL, a.historyTTL())
	if err != nil {
		return fmt.Errorf("failed to connect to history store: %w", err)
	}
	defer func() { _ = store.Close() }()

	if len(args) == 0 {
		names, err := store.Names(ctx)
		if err != nil {
			return err
		}
		if a.format == "json" {
			return json.NewEncoder(os.Stdout).Encode(names)
		}
		for _, name := range names {
			fmt.Println(name)
		}
		return nil
	}
	name := args[0]

	if del, _ := cmd.Flags().GetBool("delete"); del {
		if err := store.Delete(ctx, name); err != nil {
			return err
		}
		fmt.Printf("Deleted history of %s\n", name)
		return nil
	}

	var records []history.Record
	if latest, _ := cmd.Flags().GetBool("latest"); latest {
		rec, err := store.Latest(ctx, name)
		if err != nil {
			return err
		}
		records = []history.Record{*rec}
	} else {
		var since time.Time
		if d, _ := cmd.Flags().GetDuration("since"); d > 0 {
			since = time.Now().Add(-d)
		}
		if records, err = store.List(ctx, name, since); err != nil {
			return err
		}
	}

	if a.format == "json" {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(records)
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "COMPLETED\tEPOCH\tSTEPS\tQUERIES\tSCORE\tRUN")
	for _, r := range records {
		fmt.Fprintf(w, "%s\t%d\t%d\t%d\t%.4f\t%s\n",
			r.Result.CompletedAt.Format(time.RFC3339),
			r.Result.Epoch, r.Result.Steps, r.Result.Queries, r.Result.Score(), r.ID)
	}
	return w.Flush()
}
