package cmd

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/abhisek/satprep/internal/stats"
	"github.com/abhisek/satprep/internal/store"
)

var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show answer statistics by domain and skill",
	RunE: func(cmd *cobra.Command, args []string) error {
		exportPath, _ := cmd.Flags().GetString("export")
		since, _ := cmd.Flags().GetDuration("since")

		st, err := openStore(cmd)
		if err != nil {
			return err
		}
		defer st.Close()

		var opts store.QueryOpts
		if since > 0 {
			opts.From = time.Now().Add(-since)
		}
		records, err := stats.Query(cmd.Context(), st.StatsRepo(), opts)
		if err != nil {
			return fmt.Errorf("query statistics: %w", err)
		}

		if exportPath != "" {
			return exportRecords(exportPath, records)
		}

		if len(records) == 0 {
			fmt.Println("No answers recorded yet.")
			return nil
		}

		sum := stats.Summarize(records)
		fmt.Printf("%d answered, %d correct (%.0f%%), avg %s per question\n\n",
			sum.Overall.Attempted, sum.Overall.Correct, sum.Overall.Accuracy()*100,
			sum.Overall.AverageTime().Round(time.Second))
		printBuckets("Domain", sum.ByDomain)
		fmt.Println()
		printBuckets("Skill", sum.BySkill)
		return nil
	},
}

func printBuckets(title string, buckets []stats.Bucket) {
	fmt.Printf("%-12s  %9s  %7s  %8s  %8s\n", title, "Attempted", "Correct", "Accuracy", "Avg time")
	fmt.Println(strings.Repeat("─", 52))
	for _, b := range buckets {
		fmt.Printf("%-12s  %9d  %7d  %7.0f%%  %8s\n",
			truncate(b.Key, 12), b.Attempted, b.Correct, b.Accuracy()*100, b.AverageTime().Round(time.Second))
	}
}

func exportRecords(path string, records []stats.Record) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create export file: %w", err)
	}
	if err := stats.Export(f, records); err != nil {
		f.Close()
		return fmt.Errorf("export statistics: %w", err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("write export file: %w", err)
	}
	fmt.Printf("Exported %d answers to %s\n", len(records), path)
	return nil
}

func init() {
	statsCmd.Flags().String("export", "", "Write the statistics to this .xlsx file instead of printing them")
	statsCmd.Flags().Duration("since", 0, "Only include answers from this long ago, e.g. 168h")
}
