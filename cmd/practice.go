package cmd

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/abhisek/satprep/internal/app"
	"github.com/abhisek/satprep/internal/session"
)

var practiceCmd = &cobra.Command{
	Use:   "practice",
	Short: "Start a practice session",
	Long: `Start a practice session for the given selections. A stored session
with the same selections is resumed; one with different selections is
ended and kept in history.`,
	Example: `  satprep practice --domain H --skill H.A.1,H.A.2 --difficulty E,M
  satprep practice --subject reading-writing --domain INI --skill CID --random`,
	RunE: func(cmd *cobra.Command, args []string) error {
		sel, err := selectionsFromFlags(cmd)
		if err != nil {
			return err
		}
		return runTUI(cmd, app.Options{Practice: &sel})
	},
}

var resumeCmd = &cobra.Command{
	Use:   "resume",
	Short: "Continue the session in progress",
	RunE: func(cmd *cobra.Command, args []string) error {
		return runTUI(cmd, app.Options{Resume: true})
	},
}

func init() {
	addSelectionFlags(practiceCmd)
}

// addSelectionFlags defines the flags read by selectionsFromFlags.
func addSelectionFlags(cmd *cobra.Command) {
	f := cmd.Flags()
	f.String("assessment", "SAT", "Assessment: SAT, PSAT/NMSQT or PSAT 8/9")
	f.String("subject", "math", "Subject: math or reading-writing")
	f.StringSlice("domain", nil, "Domain codes, e.g. H,P (required)")
	f.StringSlice("skill", nil, "Skill codes, e.g. H.A.1 (required)")
	f.StringSlice("difficulty", []string{"E", "M", "H"}, "Difficulties to include: E, M, H")
	f.Bool("random", false, "Shuffle questions instead of serving them in bank order")
	f.StringSlice("question-id", nil, "Practice only these question ids")
	_ = cmd.MarkFlagRequired("domain")
	_ = cmd.MarkFlagRequired("skill")
}

// selectionsFromFlags builds and validates the selections given to
// practiceCmd.
func selectionsFromFlags(cmd *cobra.Command) (session.Selections, error) {
	f := cmd.Flags()
	assessment, _ := f.GetString("assessment")
	subject, _ := f.GetString("subject")
	domains, _ := f.GetStringSlice("domain")
	skills, _ := f.GetStringSlice("skill")
	difficulties, _ := f.GetStringSlice("difficulty")
	random, _ := f.GetBool("random")
	ids, _ := f.GetStringSlice("question-id")

	sel := session.Selections{
		Assessment:   assessment,
		Subject:      subject,
		Domains:      normalize(domains, strings.ToUpper),
		Skills:       normalize(skills, nil),
		Difficulties: normalize(difficulties, strings.ToUpper),
		Randomize:    random,
		QuestionIDs:  normalize(ids, nil),
	}
	if err := sel.Validate(); err != nil {
		return session.Selections{}, fmt.Errorf("invalid selections: %w", err)
	}
	return sel, nil
}

// normalize trims items, drops blanks and applies fn when given.
func normalize(items []string, fn func(string) string) []string {
	var out []string
	for _, it := range items {
		it = strings.TrimSpace(it)
		if it == "" {
			continue
		}
		if fn != nil {
			it = fn(it)
		}
		out = append(out, it)
	}
	return out
}
