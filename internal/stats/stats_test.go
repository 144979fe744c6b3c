package stats

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"testing"
	"time"

	"github.com/rabbitmq/amqp091-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"github.com/abhisek/satprep/internal/store"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.DiscardHandler)
}

func record(q, skill string, correct bool, ms int64) Record {
	return Record{
		SessionID:      "s1",
		Assessment:     "SAT",
		PrimaryClassCd: skill[:1],
		SkillCd:        skill,
		QuestionID:     q,
		ExternalID:     "ext-" + q,
		Statistic:      Statistic{Time: ms, Answer: "B", IsCorrect: correct, ExternalID: "ext-" + q},
		RecordedAt:     time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC),
	}
}

func TestStoreSinkRoundTrip(t *testing.T) {
	repo := store.NewMemoryRepo()
	sink := NewStoreSink(repo)
	ctx := context.Background()

	require.NoError(t, sink.Append(ctx, record("q1", "H.A.1", false, 4200)))

	rows, err := repo.QueryStatistics(ctx, store.QueryOpts{})
	require.NoError(t, err)
	require.Len(t, rows, 1)

	got := FromStore(rows[0])
	assert.Equal(t, "q1", got.QuestionID)
	assert.False(t, got.Statistic.IsCorrect)
	assert.Equal(t, int64(4200), got.Statistic.Time)
	assert.Equal(t, "ext-q1", got.Statistic.ExternalID)
}

func TestMultiSinkAttemptsAll(t *testing.T) {
	var calls int
	ok := SinkFunc(func(context.Context, Record) error { calls++; return nil })
	bad := SinkFunc(func(context.Context, Record) error { calls++; return errors.New("down") })

	err := MultiSink{bad, nil, ok}.Append(context.Background(), record("q1", "H.A.1", true, 1))
	require.EqualError(t, err, "down")
	assert.Equal(t, 2, calls)
}

type fakeChannel struct {
	exchange, key string
	msg           amqp091.Publishing
	closed        bool
}

func (f *fakeChannel) PublishWithContext(_ context.Context, exchange, key string, _, _ bool, msg amqp091.Publishing) error {
	f.exchange, f.key, f.msg = exchange, key, msg
	return nil
}

func (f *fakeChannel) Close() error {
	f.closed = true
	return nil
}

func TestAMQPSinkPublishesJSON(t *testing.T) {
	ch := &fakeChannel{}
	sink := newAMQPSink(ch, "satprep.statistics", "answer.checked", discardLogger())

	require.NoError(t, sink.Append(context.Background(), record("q7", "P.C.2", true, 900)))
	assert.Equal(t, "satprep.statistics", ch.exchange)
	assert.Equal(t, "answer.checked", ch.key)
	assert.Equal(t, "application/json", ch.msg.ContentType)
	assert.Equal(t, amqp091.Persistent, ch.msg.DeliveryMode)
	assert.JSONEq(t, `{
		"sessionId":"s1","assessment":"SAT","primaryClassCd":"P","skillCd":"P.C.2",
		"questionId":"q7","externalId":"ext-q7",
		"statistic":{"time":900,"answer":"B","isCorrect":true,"externalId":"ext-q7"},
		"recordedAt":"2026-03-01T10:00:00Z"
	}`, string(ch.msg.Body))

	require.NoError(t, sink.Close())
	assert.True(t, ch.closed)
}

func TestDialAMQPDisabled(t *testing.T) {
	sink, err := DialAMQP("", "x", "y", discardLogger())
	require.NoError(t, err)
	assert.Nil(t, sink)
}

func TestSummarize(t *testing.T) {
	sum := Summarize([]Record{
		record("q1", "H.A.1", true, 1000),
		record("q2", "H.A.1", false, 3000),
		record("q3", "P.B.1", true, 2000),
	})

	assert.Equal(t, 3, sum.Overall.Attempted)
	assert.Equal(t, 2, sum.Overall.Correct)
	assert.Equal(t, 2*time.Second, sum.Overall.AverageTime())

	require.Len(t, sum.BySkill, 2)
	assert.Equal(t, "H.A.1", sum.BySkill[0].Key)
	assert.InDelta(t, 0.5, sum.BySkill[0].Accuracy(), 1e-9)
	require.Len(t, sum.ByDomain, 2)
	assert.Equal(t, "P", sum.ByDomain[1].Key)

	assert.Zero(t, Bucket{}.Accuracy())
}

func TestExportWorkbook(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, Export(&buf, []Record{
		record("q1", "H.A.1", true, 1500),
		record("q2", "P.B.1", false, 2500),
	}))

	f, err := excelize.OpenReader(&buf)
	require.NoError(t, err)
	defer f.Close()

	rows, err := f.GetRows(answersSheet)
	require.NoError(t, err)
	require.Len(t, rows, 3)
	assert.Equal(t, "Question", rows[0][5])
	assert.Equal(t, "q2", rows[2][5])
	assert.Equal(t, "FALSE", rows[2][7])

	skills, err := f.GetRows(skillsSheet)
	require.NoError(t, err)
	require.Len(t, skills, 3)
	assert.Equal(t, "H.A.1", skills[1][0])
}
