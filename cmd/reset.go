package cmd

import (
	"bufio"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/abhisek/satprep/internal/session"
)

var resetCmd = &cobra.Command{
	Use:   "reset",
	Short: "End the session in progress",
	Long: `End the session in progress. It is kept in history as ended and its
answers stay in the statistics.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		yes, _ := cmd.Flags().GetBool("yes")

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

		cur, err := p.Restore(ctx)
		if err != nil {
			fmt.Println("No session in progress.")
			return nil
		}

		if !yes {
			fmt.Printf("End the session started %s (%s, %d answered)? [y/N] ",
				cur.StartedAt.Local().Format("2006-01-02 15:04"), cur.Selections, len(cur.QuestionAnswers))
			line, _ := bufio.NewReader(os.Stdin).ReadString('\n')
			if a := strings.ToLower(strings.TrimSpace(line)); a != "y" && a != "yes" {
				fmt.Println("Nothing changed.")
				return nil
			}
		}

		if err := p.Abandon(ctx, cur, time.Now()); err != nil {
			return fmt.Errorf("end session: %w", err)
		}
		fmt.Println("Session ended.")
		return nil
	},
}

func init() {
	resetCmd.Flags().BoolP("yes", "y", false, "Do not ask for confirmation")
}
