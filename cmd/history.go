package cmd

import (
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/abhisek/satprep/internal/session"
)

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "List finished sessions, most recent first",
	RunE: func(cmd *cobra.Command, args []string) error {
		limit, _ := cmd.Flags().GetInt("limit")
		verbose, _ := cmd.Flags().GetBool("skills")

		st, err := openStore(cmd)
		if err != nil {
			return err
		}
		defer st.Close()

		logger, closeLog, err := newLogger(false)
		if err != nil {
			return err
		}
		defer closeLog()

		p := session.NewPersister(st.SessionRepo(), session.PersisterConfig{HistoryLimit: cfg.Session.HistoryLimit}, logger)
		defer p.Stop()
		hist, err := p.ListHistory(cmd.Context())
		if err != nil {
			return fmt.Errorf("list history: %w", err)
		}
		if len(hist) == 0 {
			fmt.Println("No sessions yet.")
			return nil
		}

		slices.Reverse(hist)
		if limit > 0 && len(hist) > limit {
			hist = hist[:limit]
		}

		fmt.Printf("%-16s  %-9s  %8s  %8s  %7s  %s\n",
			"Started", "Status", "Duration", "Answered", "Correct", "Selections")
		fmt.Println(strings.Repeat("─", 96))
		for _, s := range hist {
			sum := session.BuildSummary(s)
			fmt.Printf("%-16s  %-9s  %8s  %8d  %6.0f%%  %s\n",
				s.StartedAt.Local().Format("2006-01-02 15:04"),
				statusLabel(s.Status),
				sum.Duration.Round(time.Second),
				sum.Answered,
				sum.Accuracy*100,
				s.Selections,
			)
			if verbose {
				for _, r := range sum.SkillResults {
					fmt.Printf("    %-10s %3d/%-3d %4.0f%%\n", r.SkillCd, r.Correct, r.Attempted, r.Accuracy()*100)
				}
			}
		}
		return nil
	},
}

func statusLabel(s session.Status) string {
	switch s {
	case session.StatusCompleted:
		return "completed"
	case session.StatusAbandoned:
		return "ended"
	default:
		return "active"
	}
}

func init() {
	historyCmd.Flags().IntP("limit", "n", 0, "Show at most this many sessions")
	historyCmd.Flags().Bool("skills", false, "Break each session down by skill")
}
