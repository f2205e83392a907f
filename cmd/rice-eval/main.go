// Package main provides the rice-eval binary.
// It evaluates embedding models on BEIR-style retrieval benchmarks.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "rice-eval",
		Short: "Rice Eval - information retrieval evaluation for embedding models",
		Long: `Rice Eval ranks a corpus for every query by cosine similarity of their
embeddings and reports Accuracy@k, Precision@k, Recall@k, MRR@k and NDCG@k.

Examples:
  rice-eval evaluate --dataset ./scifact            # Evaluate the test split
  rice-eval evaluate --dataset ./scifact --split dev
  rice-eval index --dataset ./scifact               # Pre-compute embeddings into Qdrant
  rice-eval history scifact --since 168h            # Past runs from Redis
  rice-eval watch                                   # Follow results published to Kafka`,
		SilenceUsage: true,
	}

	// Global flags
	rootCmd.PersistentFlags().StringP("config", "c", "", "config file path")
	rootCmd.PersistentFlags().BoolP("verbose", "v", false, "verbose output")
	rootCmd.PersistentFlags().String("format", "text", "output format (text, json)")

	rootCmd.AddCommand(
		evaluateCmd(),
		indexCmd(),
		historyCmd(),
		watchCmd(),
		versionCmd(),
	)

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func versionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("rice-eval %s\n", version)
			fmt.Printf("  commit: %s\n", commit)
			fmt.Printf("  built:  %s\n", date)
		},
	}
}
