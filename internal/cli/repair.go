package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
)

var repairCmd = &cobra.Command{
	Use:   "repair",
	Short: "Embed items whose embedding never completed",
	Long: `Re-run the embedding step for items that were stored but never linked
to a vector, typically because the embedding model was unreachable
during ingestion. Duplicate submissions of such items do not retry on
their own; this pass does.`,
	RunE: runRepair,
}

func init() {
	rootCmd.AddCommand(repairCmd)
}

func runRepair(cmd *cobra.Command, args []string) error {
	cfg := GetConfig()

	st, err := openStorage(cfg)
	if err != nil {
		return err
	}
	defer st.Close()

	ing, err := newIngestor(cfg, st)
	if err != nil {
		return err
	}

	result, err := ing.Repair(context.Background())
	if err != nil {
		return fmt.Errorf("repair failed: %w", err)
	}

	if err := ing.Save(); err != nil {
		return fmt.Errorf("failed to save indices: %w", err)
	}

	fmt.Printf("Repair complete:\n")
	fmt.Printf("  Scanned:  %d\n", result.Scanned)
	fmt.Printf("  Repaired: %d\n", result.Repaired)
	fmt.Printf("  Failed:   %d\n", result.Failed)

	if len(result.Errors) > 0 {
		fmt.Printf("\nWarnings:\n")
		for _, e := range result.Errors {
			fmt.Printf("  - %s\n", e)
		}
	}

	return nil
}
