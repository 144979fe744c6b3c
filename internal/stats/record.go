// Package stats records one entry per checked answer in a long-lived
// performance log and summarizes it.
package stats

import (
	"context"
	"time"

	"github.com/abhisek/satprep/internal/store"
)

// Record is the statistics entry emitted for every first-time check.
type Record struct {
	SessionID      string    `json:"sessionId,omitempty"`
	Assessment     string    `json:"assessment"`
	PrimaryClassCd string    `json:"primaryClassCd"`
	SkillCd        string    `json:"skillCd"`
	QuestionID     string    `json:"questionId"`
	ExternalID     string    `json:"externalId,omitempty"`
	IBN            string    `json:"ibn,omitempty"`
	Statistic      Statistic `json:"statistic"`
	RecordedAt     time.Time `json:"recordedAt"`
}

// Statistic is the per-answer measurement.
type Statistic struct {
	Time       int64  `json:"time"` // milliseconds
	Answer     string `json:"answer"`
	IsCorrect  bool   `json:"isCorrect"`
	ExternalID string `json:"externalId,omitempty"`
	IBN        string `json:"ibn,omitempty"`
}

func (r Record) toStore() store.StatisticRecord {
	return store.StatisticRecord{
		SessionID:      r.SessionID,
		Assessment:     r.Assessment,
		PrimaryClassCd: r.PrimaryClassCd,
		SkillCd:        r.SkillCd,
		QuestionID:     r.QuestionID,
		ExternalID:     r.ExternalID,
		IBN:            r.IBN,
		Answer:         r.Statistic.Answer,
		IsCorrect:      r.Statistic.IsCorrect,
		TimeMs:         r.Statistic.Time,
		RecordedAt:     r.RecordedAt,
	}
}

// FromStore converts a stored row back into a Record.
func FromStore(s store.StatisticRecord) Record {
	return Record{
		SessionID:      s.SessionID,
		Assessment:     s.Assessment,
		PrimaryClassCd: s.PrimaryClassCd,
		SkillCd:        s.SkillCd,
		QuestionID:     s.QuestionID,
		ExternalID:     s.ExternalID,
		IBN:            s.IBN,
		Statistic: Statistic{
			Time:       s.TimeMs,
			Answer:     s.Answer,
			IsCorrect:  s.IsCorrect,
			ExternalID: s.ExternalID,
			IBN:        s.IBN,
		},
		RecordedAt: s.RecordedAt,
	}
}

// Query loads the stored records matching opts.
func Query(ctx context.Context, repo store.StatsRepo, opts store.QueryOpts) ([]Record, error) {
	rows, err := repo.QueryStatistics(ctx, opts)
	if err != nil {
		return nil, err
	}
	recs := make([]Record, 0, len(rows))
	for _, row := range rows {
		recs = append(recs, FromStore(row))
	}
	return recs, nil
}
