package cmd

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"

	"github.com/spf13/cobra"

	"github.com/abhisek/satprep/internal/questionbank"
	"github.com/abhisek/satprep/internal/session"
	"github.com/abhisek/satprep/internal/tutor"
)

var explainCmd = &cobra.Command{
	Use:   "explain <question-id>",
	Short: "Ask the tutor to walk through a question you answered",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		rt, err := openRuntime(cmd, false)
		if err != nil {
			return err
		}
		defer rt.Close()

		if rt.tutor == nil {
			return errors.New("no LLM provider configured; set SATPREP_LLM_PROVIDER and SATPREP_LLM_API_KEY")
		}

		answered, err := findAnswer(ctx, rt.persister, args[0])
		if err != nil {
			return err
		}

		q, err := rt.source.Fetch(ctx, questionbank.Reference{
			QuestionID:     answered.QuestionID,
			ExternalID:     answered.ExternalID,
			IBN:            answered.IBN,
			Difficulty:     answered.Difficulty,
			PrimaryClassCd: answered.PrimaryClassCd,
			SkillCd:        answered.SkillCd,
		})
		if err != nil {
			return fmt.Errorf("fetch question %s: %w", answered.QuestionID, err)
		}

		exp, err := rt.tutor.Explain(ctx, tutor.Input{
			Question:  q,
			Answer:    answered.Answer,
			IsCorrect: answered.IsCorrect,
			TimeMs:    answered.TimeMs,
		})
		if err != nil {
			return fmt.Errorf("explain question: %w", err)
		}
		printExplanation(q, answered, exp)
		return nil
	},
}

// findAnswer looks for questionID in the current session, then in
// history from the most recent session back.
func findAnswer(ctx context.Context, p *session.Persister, questionID string) (session.AnsweredQuestion, error) {
	var sessions []session.Session
	if cur, err := p.Restore(ctx); err == nil {
		sessions = append(sessions, cur)
	}
	hist, err := p.ListHistory(ctx)
	if err != nil {
		return session.AnsweredQuestion{}, fmt.Errorf("list history: %w", err)
	}
	slices.Reverse(hist)
	sessions = append(sessions, hist...)

	for _, s := range sessions {
		for _, a := range s.AnsweredQuestions {
			if a.QuestionID == questionID {
				return a, nil
			}
		}
	}
	return session.AnsweredQuestion{}, fmt.Errorf("question %s has not been answered in any stored session", questionID)
}

func printExplanation(q *questionbank.Question, a session.AnsweredQuestion, exp *tutor.Explanation) {
	sep := strings.Repeat("─", 60)

	fmt.Printf("Question:  %s (%s)\n", q.QuestionID, q.SkillCd)
	if q.Stimulus != "" {
		fmt.Println()
		fmt.Println(questionbank.PlainText(q.Stimulus))
	}
	fmt.Println()
	fmt.Println(questionbank.PlainText(q.Stem))
	fmt.Println()
	mark := "✓"
	if !a.IsCorrect {
		mark = "✗"
	}
	fmt.Printf("Your answer:     %s %s\n", a.Answer, mark)
	fmt.Printf("Correct answer:  %s\n", strings.Join(q.CorrectAnswer, " or "))

	fmt.Println(sep)
	fmt.Println(exp.Explanation)
	if len(exp.Steps) > 0 {
		fmt.Println()
		for i, s := range exp.Steps {
			fmt.Printf("%d. %s\n", i+1, s)
		}
	}
	if exp.KeyConcept != "" {
		fmt.Printf("\nKey concept: %s\n", exp.KeyConcept)
	}
	if exp.Mistake != "" {
		fmt.Printf("Watch out: %s\n", exp.Mistake)
	}
}
