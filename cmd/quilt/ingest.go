package main

import (
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/quiltmoney/quilt/internal/common"
	"github.com/quiltmoney/quilt/internal/model"
)

func ingestCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "ingest [file]",
		Short: "Ingest a structured transaction and correlate it",
		Long: `Read one structured transaction record (the output of the upstream
extraction step) from a JSON file or stdin, correlate it against the owner's
existing records, and print whether it was created or merged.`,
		Args: cobra.MaximumNArgs(1),
		RunE: runIngest,
	}

	return cmd
}

func runIngest(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	var reader io.Reader = os.Stdin
	if len(args) == 1 {
		file, err := os.Open(args[0])
		if err != nil {
			return fmt.Errorf("failed to open input file: %w", err)
		}
		defer func() { _ = file.Close() }()
		reader = file
	}

	var txn model.Transaction
	if err := json.NewDecoder(reader).Decode(&txn); err != nil {
		return common.NewUserError("input is not a valid transaction record", err)
	}

	store, err := initStorage(ctx)
	if err != nil {
		return fmt.Errorf("failed to initialize storage: %w", err)
	}
	defer func() { _ = store.Close() }()

	correlator, err := initCorrelator(store)
	if err != nil {
		return err
	}

	outcome, err := correlator.Process(ctx, txn)
	if err != nil {
		return fmt.Errorf("correlation failed: %w", err)
	}

	switch outcome.Kind {
	case model.OutcomeMerged:
		slog.Info("transaction merged into existing record",
			"winner_id", outcome.TransactionID,
			"confidence", outcome.Confidence,
			"classification", outcome.Classification)
	default:
		slog.Info("transaction created",
			"transaction_id", outcome.TransactionID)
	}

	encoded, err := json.MarshalIndent(outcome, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode outcome: %w", err)
	}
	fmt.Println(string(encoded))

	return nil
}
