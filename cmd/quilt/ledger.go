package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/quiltmoney/quilt/internal/model"
)

func ledgerCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "ledger",
		Short: "Show the correlation ledger",
		Long: `List merges recorded in the correlation ledger, most recent first.

With --transaction, only merges into that surviving record are shown.`,
		RunE: runLedger,
	}

	cmd.Flags().String("transaction", "", "Show merge history for one surviving transaction id")
	cmd.Flags().Int("limit", 20, "Maximum number of entries to show")

	return cmd
}

func runLedger(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()
	transactionID, _ := cmd.Flags().GetString("transaction")
	limit, _ := cmd.Flags().GetInt("limit")

	store, err := initStorage(ctx)
	if err != nil {
		return fmt.Errorf("failed to initialize storage: %w", err)
	}
	defer func() { _ = store.Close() }()

	var entries []model.LedgerEntry
	if transactionID != "" {
		entries, err = store.ListLedgerEntries(ctx, transactionID)
	} else {
		entries, err = store.ListRecentLedgerEntries(ctx, limit)
	}
	if err != nil {
		return fmt.Errorf("failed to read ledger: %w", err)
	}

	if len(entries) == 0 {
		fmt.Println("No merges recorded.")
		return nil
	}

	for _, entry := range entries {
		fmt.Printf("%s  %s <- %s  confidence=%d  %s\n",
			entry.CreatedAt.Format("2006-01-02 15:04:05"),
			entry.MergedInto,
			entry.Absorbed,
			entry.Confidence,
			entry.Classification)
	}

	return nil
}
