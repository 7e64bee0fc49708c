package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/DouaBoudokhan/MedTech-AIMinds/internal/usecase"
)

var checkCmd = &cobra.Command{
	Use:   "check",
	Short: "Check index and metadata consistency",
	Long: `Cross-reference the vector indices against the metadata store. A crash
between an index write and its row link, or an exit before saving the
indices, leaves gaps this command reports. Exits non-zero when the
state is inconsistent; 'minds repair' fixes unembedded items.`,
	RunE: runCheck,
}

func init() {
	rootCmd.AddCommand(checkCmd)
}

func runCheck(cmd *cobra.Command, args []string) error {
	cfg := GetConfig()

	st, err := openStorage(cfg)
	if err != nil {
		return err
	}
	defer st.Close()

	maintainer := usecase.NewMaintainer(st.store, st.textIndex, st.visualIndex)
	report, err := maintainer.Check(context.Background())
	if err != nil {
		return fmt.Errorf("consistency check failed: %w", err)
	}

	fmt.Printf("Text vectors:      %d in index, %d linked rows\n", report.TextVectors, report.LinkedTextRows)
	fmt.Printf("Visual vectors:    %d in index, %d linked rows\n", report.VisualVectors, report.LinkedVisualRows)
	fmt.Printf("Repair candidates: %d\n", report.RepairCandidates)

	if !report.Consistent() {
		fmt.Println("\nState is inconsistent.")
		if report.RepairCandidates > 0 {
			fmt.Println("Run 'minds repair' to embed the waiting items.")
		}
		return fmt.Errorf("consistency check found mismatches")
	}

	fmt.Println("\nState is consistent.")
	return nil
}
