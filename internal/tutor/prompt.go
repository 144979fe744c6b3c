package tutor

import (
	"fmt"
	"strings"

	"github.com/abhisek/satprep/internal/questionbank"
)

const explainSystemPrompt = `You are a calm, precise SAT and PSAT tutor. A high school student has just checked their answer to a practice question and wants to understand it.`

// maxFieldLen bounds each question field copied into the prompt. Bank
// stimuli can carry large inline tables and images.
const maxFieldLen = 4000

func buildExplainUserMessage(in Input) string {
	q := in.Question
	var b strings.Builder

	b.WriteString(fmt.Sprintf("Skill: %s (domain %s, difficulty %s)\n", q.SkillCd, q.PrimaryClassCd, difficultyName(q.Difficulty)))
	if q.Stimulus != "" {
		b.WriteString(fmt.Sprintf("\nPassage:\n%s\n", clip(questionbank.PlainText(q.Stimulus))))
	}
	b.WriteString(fmt.Sprintf("\nQuestion:\n%s\n", clip(questionbank.PlainText(q.Stem))))

	if len(q.Options) > 0 {
		b.WriteString("\nChoices:\n")
		for _, o := range q.Options {
			b.WriteString(fmt.Sprintf("%s) %s\n", o.Key, clip(questionbank.PlainText(o.Content))))
		}
	}

	b.WriteString(fmt.Sprintf("\nCorrect answer: %s\n", strings.Join(q.CorrectAnswer, " or ")))
	switch {
	case in.Answer == "":
		b.WriteString("Student answer: none\n")
	case in.IsCorrect:
		b.WriteString(fmt.Sprintf("Student answer: %s (correct)\n", in.Answer))
	default:
		b.WriteString(fmt.Sprintf("Student answer: %s (incorrect)\n", in.Answer))
	}
	if in.TimeMs > 0 {
		b.WriteString(fmt.Sprintf("Time spent: %ds\n", in.TimeMs/1000))
	}
	if q.Rationale != "" {
		b.WriteString(fmt.Sprintf("\nOfficial rationale:\n%s\n", clip(questionbank.PlainText(q.Rationale))))
	}

	b.WriteString(`
Instructions:
1. Explain in 2-4 sentences why the correct answer is right. Do not contradict the correct answer given above.
2. List the solution as short ordered steps a student could follow on test day.
3. Name the key concept the question tests.
4. If the student was wrong, say what most likely led to their answer. Leave it empty otherwise.
5. Use plain ASCII text for all math. No LaTeX. Use / for fractions, * for multiplication, ^ for powers.`)

	return b.String()
}

func difficultyName(code string) string {
	switch code {
	case "E":
		return "easy"
	case "M":
		return "medium"
	case "H":
		return "hard"
	}
	return "unknown"
}

func clip(s string) string {
	if len(s) <= maxFieldLen {
		return s
	}
	return s[:maxFieldLen] + "..."
}
