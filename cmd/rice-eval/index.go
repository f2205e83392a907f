package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/ricesearch/rice-eval/internal/dataset"
	"github.com/ricesearch/rice-eval/internal/embedder"
	"github.com/ricesearch/rice-eval/internal/vectorstore"
)

func indexCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "index",
		Short: "Pre-compute dataset embeddings into Qdrant",
		Long: `Embed every query and corpus document of a dataset with the configured
embedder and store the vectors in Qdrant, so later evaluations can read them
instead of calling the embedding backend.`,
		RunE: runIndex,
	}

	cmd.Flags().String("dataset", "", "dataset directory (overrides config)")
	cmd.Flags().String("split", "", "qrels split (overrides config)")
	cmd.Flags().Bool("recreate", false, "delete the collection before indexing")

	return cmd
}

func runIndex(cmd *cobra.Command, _ []string) error {
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

	live, err := embedder.NewFromConfig(a.cfg.Embedder, a.log, nil)
	if err != nil {
		return fmt.Errorf("failed to create embedder: %w", err)
	}

	store, err := a.newStore()
	if err != nil {
		return err
	}
	defer func() { _ = store.Close() }()

	if recreate, _ := cmd.Flags().GetBool("recreate"); recreate {
		if err := store.DeleteCollection(ctx); err != nil {
			return err
		}
		a.log.Info("Deleted collection", "collection", store.Collection())
	}

	texts := make([]string, 0, len(ds.Queries)+len(ds.Corpus))
	for _, q := range ds.Queries {
		texts = append(texts, q.Text)
	}
	for _, d := range ds.Corpus {
		texts = append(texts, d.Text)
	}

	a.log.Info("Indexing embeddings", "dataset", ds.Name, "texts", len(texts))
	if err := vectorstore.Index(ctx, store, live, texts, a.cfg.Eval.BatchSize); err != nil {
		return err
	}

	count, err := store.Count(ctx)
	if err != nil {
		return err
	}
	fmt.Printf("Indexed %d texts into %s (%d points)\n", len(texts), store.Collection(), count)
	return nil
}
