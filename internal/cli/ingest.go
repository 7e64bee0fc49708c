package cli

import (
	"context"
	"fmt"
	"path/filepath"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"

	"github.com/DouaBoudokhan/MedTech-AIMinds/internal/usecase"
)

var (
	ingestBrowser string
	ingestNote    string
	ingestSource  string
)

var ingestCmd = &cobra.Command{
	Use:   "ingest [path...]",
	Short: "Ingest files, directories, notes, or browser history",
	Long: `Ingest content into the knowledge base. Directory arguments are walked
with the configured include/exclude patterns; file arguments are ingested
directly. Images go to the visual index, everything else through text
extraction.

Examples:
  minds ingest ~/Documents ~/Pictures
  minds ingest report.txt
  minds ingest --browser history.json
  minds ingest --note "call dentist tuesday" --source note`,
	Args: cobra.ArbitraryArgs,
	RunE: runIngest,
}

func init() {
	rootCmd.AddCommand(ingestCmd)
	ingestCmd.Flags().StringVar(&ingestBrowser, "browser", "", "browser history export (JSON) to ingest")
	ingestCmd.Flags().StringVar(&ingestNote, "note", "", "text to ingest directly")
	ingestCmd.Flags().StringVar(&ingestSource, "source", "note", "source tag for --note")
}

func runIngest(cmd *cobra.Command, args []string) error {
	if len(args) == 0 && ingestBrowser == "" && ingestNote == "" {
		return fmt.Errorf("nothing to ingest: give a path, --browser, or --note")
	}

	cfg := GetConfig()
	ctx := context.Background()

	st, err := openStorage(cfg)
	if err != nil {
		return err
	}
	defer st.Close()

	ing, err := newIngestor(cfg, st)
	if err != nil {
		return err
	}

	runID := ulid.Make().String()
	logger.Info("starting ingestion run", "run_id", runID)

	total := &usecase.IngestResult{}

	if ingestNote != "" {
		out, err := ing.IngestText(ctx, ingestNote, ingestSource, nil)
		if err != nil {
			return fmt.Errorf("failed to ingest note: %w", err)
		}
		if out.Deduplicated {
			total.Deduplicated++
			fmt.Printf("Already known (item %d)\n", out.MemoryItemID)
		} else {
			total.Ingested++
			total.Chunks += out.Chunks
			total.Vectors += out.Vectors
			fmt.Printf("Ingested as item %d\n", out.MemoryItemID)
		}
	}

	if ingestBrowser != "" {
		fmt.Printf("Ingesting browser history from %s...\n", ingestBrowser)
		result, err := ing.IngestBrowserHistory(ctx, ingestBrowser)
		if err != nil {
			return fmt.Errorf("failed to ingest browser history: %w", err)
		}
		total.Merge(result)
	}

	for _, arg := range args {
		path, err := filepath.Abs(arg)
		if err != nil {
			return fmt.Errorf("invalid path: %w", err)
		}

		fmt.Printf("Scanning %s...\n", path)
		result, err := ing.IngestPath(ctx, path, newIngestProgress())
		if err != nil {
			return fmt.Errorf("failed to ingest %s: %w", path, err)
		}
		total.Merge(result)
	}

	if err := ing.Save(); err != nil {
		return fmt.Errorf("failed to save indices: %w", err)
	}

	fmt.Printf("\nIngestion complete (run %s):\n", runID)
	fmt.Printf("  Items ingested: %d\n", total.Ingested)
	fmt.Printf("  Deduplicated:   %d (unchanged)\n", total.Deduplicated)
	fmt.Printf("  Failed:         %d\n", total.Failed)
	fmt.Printf("  Chunks created: %d\n", total.Chunks)
	fmt.Printf("  Vectors added:  %d\n", total.Vectors)

	if len(total.Errors) > 0 {
		fmt.Printf("\nWarnings:\n")
		for _, e := range total.Errors {
			fmt.Printf("  - %s\n", e)
		}
		for _, s := range total.Suppressed {
			fmt.Printf("  - %s\n", s)
		}
	}

	fmt.Printf("\nData stored in: %s\n", cfg.Storage.DataDir)
	return nil
}

// newIngestProgress builds a per-directory progress callback that lazily
// creates its bar once the file total is known.
func newIngestProgress() usecase.ProgressFunc {
	var bar *progressbar.ProgressBar
	var mu sync.Mutex
	var startTime time.Time

	return func(processed, total int, currentFile string) {
		mu.Lock()
		defer mu.Unlock()

		if bar == nil {
			startTime = time.Now()
			bar = progressbar.NewOptions(total,
				progressbar.OptionEnableColorCodes(true),
				progressbar.OptionShowBytes(false),
				progressbar.OptionSetWidth(40),
				progressbar.OptionShowCount(),
				progressbar.OptionSetDescription("[cyan]Ingesting[reset]"),
				progressbar.OptionSetTheme(progressbar.Theme{
					Saucer:        "[green]=[reset]",
					SaucerHead:    "[green]>[reset]",
					SaucerPadding: " ",
					BarStart:      "[",
					BarEnd:        "]",
				}),
				progressbar.OptionOnCompletion(func() {
					fmt.Println()
				}),
			)
		}

		bar.Set(processed)

		if processed > 0 {
			elapsed := time.Since(startTime)
			rate := float64(processed) / elapsed.Seconds()
			remaining := total - processed
			if rate > 0 {
				eta := time.Duration(float64(remaining)/rate) * time.Second
				bar.Describe(fmt.Sprintf("[cyan]Ingesting[reset] ETA: %s", formatDuration(eta)))
			}
		}
	}
}

// formatDuration renders an ETA compactly.
func formatDuration(d time.Duration) string {
	if d < time.Minute {
		return fmt.Sprintf("%ds", int(d.Seconds()))
	}
	if d < time.Hour {
		return fmt.Sprintf("%dm%ds", int(d.Minutes()), int(d.Seconds())%60)
	}
	return fmt.Sprintf("%dh%dm", int(d.Hours()), int(d.Minutes())%60)
}
