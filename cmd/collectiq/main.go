package main

import (
	"fmt"
	"os"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

const (
	appName = "collectiq"
	version = "v1.3.0"
)

var configPath string

func main() {
	zerolog.TimeFieldFormat = time.RFC3339
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.Kitchen})

	rootCmd := &cobra.Command{
		Use:     appName,
		Short:   "Trading card identification, pricing, and authenticity pipeline",
		Version: version,
		Long: `CollectIQ analyzes submitted trading card photos: it extracts visual
features, identifies the card with AI-assisted OCR, values it against
recent market comparables, and scores how likely it is genuine.`,
	}
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "Path to YAML config file")

	workerCmd := &cobra.Command{
		Use:   "worker",
		Short: "Run the pipeline worker",
		Long:  "Consumes CardCreated events and runs the full analysis pipeline for each, with the ops HTTP surface alongside",
		RunE:  runWorker,
	}

	analyzeCmd := &cobra.Command{
		Use:   "analyze",
		Short: "Analyze a single card submission",
		Long:  "Runs the full pipeline once for a stored image and prints the resulting card as JSON",
		RunE:  runAnalyze,
	}
	analyzeCmd.Flags().String("user", "", "Owning user id")
	analyzeCmd.Flags().String("card", "", "Card id")
	analyzeCmd.Flags().String("image", "", "Object-store key of the front image")
	analyzeCmd.Flags().Bool("update", false, "Update an existing card instead of upserting")
	analyzeCmd.Flags().String("expected-set", "", "Set name hint when OCR cannot determine it")
	analyzeCmd.Flags().String("expected-rarity", "", "Rarity hint when OCR cannot determine it")
	analyzeCmd.Flags().Bool("force", false, "Re-run even when this request was already processed")
	_ = analyzeCmd.MarkFlagRequired("user")
	_ = analyzeCmd.MarkFlagRequired("card")
	_ = analyzeCmd.MarkFlagRequired("image")

	revalueCmd := &cobra.Command{
		Use:   "revalue",
		Short: "Re-analyze an existing card",
		Long:  "Re-runs the full pipeline against the stored front image and updates the existing card record",
		RunE:  runRevalue,
	}
	revalueCmd.Flags().String("user", "", "Owning user id")
	revalueCmd.Flags().String("card", "", "Card id")
	revalueCmd.Flags().Bool("force", false, "Re-run even when this request was already processed")
	_ = revalueCmd.MarkFlagRequired("user")
	_ = revalueCmd.MarkFlagRequired("card")

	rootCmd.AddCommand(workerCmd, analyzeCmd, revalueCmd)

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
