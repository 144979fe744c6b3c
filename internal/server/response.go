package server

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/abhisek/satprep/internal/questionbank"
	"github.com/abhisek/satprep/internal/session"
	"github.com/abhisek/satprep/internal/stats"
)

type progressResponse struct {
	Hydrated  int `json:"hydrated"`
	Attempted int `json:"attempted"`
	Dropped   int `json:"dropped"`
	Total     int `json:"total"`
}

type questionResponse struct {
	QuestionID    string                      `json:"questionId"`
	Type          questionbank.QuestionType   `json:"type"`
	Stem          string                      `json:"stem"`
	Stimulus      string                      `json:"stimulus,omitempty"`
	Options       []questionbank.AnswerOption `json:"answerOptions,omitempty"`
	SkillCd       string                      `json:"skillCd"`
	Difficulty    string                      `json:"difficulty"`
	Mode          session.Mode                `json:"mode"`
	Selected      string                      `json:"selected"`
	Checked       bool                        `json:"checked"`
	IsCorrect     bool                        `json:"isCorrect"`
	CorrectAnswer []string                    `json:"correctAnswer,omitempty"`
	Rationale     string                      `json:"rationale,omitempty"`
	ElapsedMs     int64                       `json:"elapsedMs"`
}

type signalsResponse struct {
	SessionID string            `json:"sessionId,omitempty"`
	Status    session.Status    `json:"status,omitempty"`
	Phase     session.Phase     `json:"phase"`
	Progress  progressResponse  `json:"progress"`
	Saving    bool              `json:"saving"`
	Question  *questionResponse `json:"question,omitempty"`
	Notice    string            `json:"notice,omitempty"`
	Batch     int               `json:"batch"`
	Step      int               `json:"step"`
	BatchLen  int               `json:"batchLen"`
	HasMore   bool              `json:"hasMore"`
	Answered  int               `json:"answered"`
	Correct   int               `json:"correct"`
}

func newSignalsResponse(sig session.Signals) signalsResponse {
	out := signalsResponse{
		SessionID: sig.SessionID,
		Status:    sig.Status,
		Phase:     sig.Phase,
		Progress: progressResponse{
			Hydrated:  sig.Progress.Hydrated,
			Attempted: sig.Progress.Attempted,
			Dropped:   sig.Progress.Dropped,
			Total:     sig.Progress.Total,
		},
		Saving:   sig.Saving,
		Notice:   sig.Notice,
		Batch:    sig.Batch,
		Step:     sig.Step,
		BatchLen: sig.BatchLen,
		HasMore:  sig.HasMore,
		Answered: sig.Answered,
		Correct:  sig.Correct,
	}
	if q := sig.Question; q != nil {
		out.Question = &questionResponse{
			QuestionID:    q.QuestionID,
			Type:          q.Type,
			Stem:          q.Stem,
			Stimulus:      q.Stimulus,
			Options:       q.Options,
			SkillCd:       q.SkillCd,
			Difficulty:    q.Difficulty,
			Mode:          q.Mode,
			Selected:      q.Selected,
			Checked:       q.Checked,
			IsCorrect:     q.IsCorrect,
			CorrectAnswer: q.CorrectAnswer,
			Rationale:     q.Rationale,
			ElapsedMs:     q.Elapsed.Milliseconds(),
		}
	}
	return out
}

type skillResponse struct {
	Key         string  `json:"key"`
	Attempted   int     `json:"attempted"`
	Correct     int     `json:"correct"`
	Accuracy    float64 `json:"accuracy"`
	AverageTime int64   `json:"averageTimeMs"`
}

type summaryResponse struct {
	SessionID    string          `json:"sessionId"`
	Status       session.Status  `json:"status"`
	DurationMs   int64           `json:"durationMs"`
	Answered     int             `json:"answered"`
	TotalCorrect int             `json:"totalCorrect"`
	Accuracy     float64         `json:"accuracy"`
	AverageTime  int64           `json:"averageTimeMs"`
	Skills       []skillResponse `json:"skills"`
}

func newSummaryResponse(s session.SessionSummary) summaryResponse {
	out := summaryResponse{
		SessionID:    s.SessionID,
		Status:       s.Status,
		DurationMs:   s.Duration.Milliseconds(),
		Answered:     s.Answered,
		TotalCorrect: s.TotalCorrect,
		Accuracy:     s.Accuracy,
		AverageTime:  s.AverageTime.Milliseconds(),
		Skills:       []skillResponse{},
	}
	for _, r := range s.SkillResults {
		out.Skills = append(out.Skills, skillResponse{
			Key:         r.SkillCd,
			Attempted:   r.Attempted,
			Correct:     r.Correct,
			Accuracy:    r.Accuracy(),
			AverageTime: averageMs(r.TotalTime, r.Attempted),
		})
	}
	return out
}

type statsResponse struct {
	Overall  skillResponse   `json:"overall"`
	BySkill  []skillResponse `json:"bySkill"`
	ByDomain []skillResponse `json:"byDomain"`
}

func newStatsResponse(sum stats.Summary) statsResponse {
	conv := func(bs []stats.Bucket) []skillResponse {
		out := make([]skillResponse, 0, len(bs))
		for _, b := range bs {
			out = append(out, bucketResponse(b))
		}
		return out
	}
	return statsResponse{
		Overall:  bucketResponse(sum.Overall),
		BySkill:  conv(sum.BySkill),
		ByDomain: conv(sum.ByDomain),
	}
}

func bucketResponse(b stats.Bucket) skillResponse {
	return skillResponse{
		Key:         b.Key,
		Attempted:   b.Attempted,
		Correct:     b.Correct,
		Accuracy:    b.Accuracy(),
		AverageTime: b.AverageTime().Milliseconds(),
	}
}

func averageMs(total time.Duration, n int) int64 {
	if n == 0 {
		return 0
	}
	return (total / time.Duration(n)).Milliseconds()
}

func respondJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if v != nil {
		_ = json.NewEncoder(w).Encode(v)
	}
}

func respondError(w http.ResponseWriter, status int, msg string) {
	respondJSON(w, status, map[string]string{"error": msg})
}
