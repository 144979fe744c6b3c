package store

import (
	"context"
	"fmt"
	"time"

	entsql "entgo.io/ent/dialect/sql"
	"github.com/jmoiron/sqlx"
)

// statsRepo implements StatsRepo backed by the answer_statistics table.
type statsRepo struct {
	db  *sqlx.DB
	seq *sequenceCounter
}

type statisticRow struct {
	Sequence       int64  `db:"sequence"`
	SessionID      string `db:"session_id"`
	Assessment     string `db:"assessment"`
	PrimaryClassCd string `db:"primary_class_cd"`
	SkillCd        string `db:"skill_cd"`
	QuestionID     string `db:"question_id"`
	ExternalID     string `db:"external_id"`
	IBN            string `db:"ibn"`
	Answer         string `db:"answer"`
	IsCorrect      bool   `db:"is_correct"`
	TimeMs         int64  `db:"time_ms"`
	RecordedAt     int64  `db:"recorded_at"`
}

var statisticColumns = []string{
	"sequence", "session_id", "assessment", "primary_class_cd", "skill_cd",
	"question_id", "external_id", "ibn", "answer", "is_correct", "time_ms",
	"recorded_at",
}

func (r *statsRepo) AppendStatistic(ctx context.Context, rec StatisticRecord) error {
	seqNum, err := r.seq.Next(ctx, nil)
	if err != nil {
		return err
	}

	recordedAt := rec.RecordedAt
	if recordedAt.IsZero() {
		recordedAt = time.Now()
	}

	query, args := builder().Insert("answer_statistics").
		Columns(statisticColumns...).
		Values(seqNum, rec.SessionID, rec.Assessment, rec.PrimaryClassCd, rec.SkillCd,
			rec.QuestionID, rec.ExternalID, rec.IBN, rec.Answer, rec.IsCorrect,
			rec.TimeMs, recordedAt.UnixMilli()).
		Query()
	if _, err := r.db.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("save statistic: %w", err)
	}
	return nil
}

func (r *statsRepo) QueryStatistics(ctx context.Context, opts QueryOpts) ([]StatisticRecord, error) {
	b := builder()
	sel := b.Select(statisticColumns...).
		From(b.Table("answer_statistics")).
		OrderBy(entsql.Asc("sequence"))
	applyOpts(sel, opts, "recorded_at")

	query, args := sel.Query()
	var rows []statisticRow
	if err := r.db.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, fmt.Errorf("query statistics: %w", err)
	}

	out := make([]StatisticRecord, 0, len(rows))
	for _, row := range rows {
		out = append(out, StatisticRecord{
			Sequence:       row.Sequence,
			SessionID:      row.SessionID,
			Assessment:     row.Assessment,
			PrimaryClassCd: row.PrimaryClassCd,
			SkillCd:        row.SkillCd,
			QuestionID:     row.QuestionID,
			ExternalID:     row.ExternalID,
			IBN:            row.IBN,
			Answer:         row.Answer,
			IsCorrect:      row.IsCorrect,
			TimeMs:         row.TimeMs,
			RecordedAt:     time.UnixMilli(row.RecordedAt),
		})
	}
	return out, nil
}
