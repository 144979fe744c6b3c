package session

import (
	"slices"
	"time"
)

// SkillResult aggregates the answers given for one skill.
type SkillResult struct {
	SkillCd   string
	Attempted int
	Correct   int
	TotalTime time.Duration
}

// Accuracy returns the fraction answered correctly.
func (r SkillResult) Accuracy() float64 {
	if r.Attempted == 0 {
		return 0
	}
	return float64(r.Correct) / float64(r.Attempted)
}

// SessionSummary holds the data displayed when a session ends.
type SessionSummary struct {
	SessionID    string
	Status       Status
	Duration     time.Duration
	Answered     int
	TotalCorrect int
	Accuracy     float64
	AverageTime  time.Duration
	SkillResults []SkillResult
}

// BuildSummary creates a SessionSummary from a session snapshot. Skills
// are listed in the order they were first answered.
func BuildSummary(s Session) SessionSummary {
	var results []SkillResult
	index := map[string]int{}
	for _, a := range s.AnsweredQuestions {
		i, ok := index[a.SkillCd]
		if !ok {
			i = len(results)
			index[a.SkillCd] = i
			results = append(results, SkillResult{SkillCd: a.SkillCd})
		}
		results[i].Attempted++
		if a.IsCorrect {
			results[i].Correct++
		}
		results[i].TotalTime += time.Duration(s.QuestionTimes[a.QuestionID]) * time.Millisecond
	}

	sum := SessionSummary{
		SessionID:    s.SessionID,
		Status:       s.Status,
		Duration:     time.Duration(s.TotalTimeSpent) * time.Millisecond,
		Answered:     len(s.QuestionAnswers),
		TotalCorrect: s.Correct(),
		AverageTime:  time.Duration(s.AverageTimePerQuestion) * time.Millisecond,
		SkillResults: slices.Clip(results),
	}
	if sum.Answered > 0 {
		sum.Accuracy = float64(sum.TotalCorrect) / float64(sum.Answered)
	}
	return sum
}
