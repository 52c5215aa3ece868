package main

import (
	"encoding/json"
	"errors"
	"os"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/collectiq/collectiq/internal/pipeline"
)

func runAnalyze(cmd *cobra.Command, _ []string) error {
	userID, _ := cmd.Flags().GetString("user")
	cardID, _ := cmd.Flags().GetString("card")
	imageRef, _ := cmd.Flags().GetString("image")
	update, _ := cmd.Flags().GetBool("update")
	expectedSet, _ := cmd.Flags().GetString("expected-set")
	expectedRarity, _ := cmd.Flags().GetString("expected-rarity")
	force, _ := cmd.Flags().GetBool("force")

	ctx := cmd.Context()
	a, err := buildApp(ctx)
	if err != nil {
		return err
	}
	defer a.Close()

	return runPipeline(a, cmd, pipeline.Request{
		RequestID:      uuid.NewString(),
		UserID:         userID,
		CardID:         cardID,
		FrontImageRef:  imageRef,
		SkipCardFetch:  !update,
		ExpectedSet:    expectedSet,
		ExpectedRarity: expectedRarity,
		ForceRefresh:   force,
	})
}

// runRevalue re-runs the full pipeline against the stored front image. It
// goes through the orchestrator like every other invocation path, so the
// idempotency gate, the aggregator's verified-update write, and the
// completion event all apply.
func runRevalue(cmd *cobra.Command, _ []string) error {
	userID, _ := cmd.Flags().GetString("user")
	cardID, _ := cmd.Flags().GetString("card")
	force, _ := cmd.Flags().GetBool("force")

	ctx := cmd.Context()
	a, err := buildApp(ctx)
	if err != nil {
		return err
	}
	defer a.Close()

	// FrontImageRef is left empty; the orchestrator resolves it from the
	// stored row on the verified-update path.
	return runPipeline(a, cmd, pipeline.Request{
		RequestID:     uuid.NewString(),
		UserID:        userID,
		CardID:        cardID,
		SkipCardFetch: false,
		ForceRefresh:  force,
	})
}

func runPipeline(a *app, cmd *cobra.Command, req pipeline.Request) error {
	card, err := a.orchestrator.Run(cmd.Context(), req)
	if errors.Is(err, pipeline.ErrDuplicateDelivery) && card != nil {
		return printJSON(card)
	}
	if err != nil {
		return err
	}
	return printJSON(card)
}

func printJSON(v interface{}) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
