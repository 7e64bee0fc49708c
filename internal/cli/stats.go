package cli

import (
	"context"
	"fmt"
	"sort"

	"github.com/spf13/cobra"

	"github.com/DouaBoudokhan/MedTech-AIMinds/internal/usecase"
)

var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show storage statistics",
	RunE:  runStats,
}

func init() {
	rootCmd.AddCommand(statsCmd)
}

func runStats(cmd *cobra.Command, args []string) error {
	cfg := GetConfig()

	st, err := openStorage(cfg)
	if err != nil {
		return err
	}
	defer st.Close()

	maintainer := usecase.NewMaintainer(st.store, st.textIndex, st.visualIndex)
	stats, err := maintainer.Stats(context.Background())
	if err != nil {
		return fmt.Errorf("failed to collect stats: %w", err)
	}

	fmt.Printf("Storage: %s\n\n", cfg.Storage.DataDir)
	fmt.Printf("  Memory items:   %d\n", stats.MemoryItems)
	fmt.Printf("  Chunks:         %d\n", stats.Chunks)
	fmt.Printf("  Visual items:   %d\n", stats.VisualItems)
	fmt.Printf("  Text vectors:   %d (%s, %d-dim)\n", stats.TextVectors, st.textIndex.Metric(), st.textIndex.Dimension())
	fmt.Printf("  Visual vectors: %d (%s, %d-dim)\n", stats.VisualVectors, st.visualIndex.Metric(), st.visualIndex.Dimension())

	if len(stats.BySource) > 0 {
		fmt.Printf("\nBy source:\n")
		sources := make([]string, 0, len(stats.BySource))
		for source := range stats.BySource {
			sources = append(sources, source)
		}
		sort.Strings(sources)
		for _, source := range sources {
			fmt.Printf("  %-16s %d\n", source, stats.BySource[source])
		}
	}

	return nil
}
