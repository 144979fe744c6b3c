package store

import (
	"context"
	"time"
)

// QueryOpts configures record queries with filtering and pagination.
type QueryOpts struct {
	Limit  int       // max results (0 = unlimited)
	After  int64     // sequence > After
	Before int64     // sequence < Before
	From   time.Time // timestamp >= From
	To     time.Time // timestamp <= To
}

// SessionRecord is one persisted session document. Data is the JSON
// encoded session exactly as the session layer wrote it; the store never
// interprets it so that corrupted records survive until validation.
type SessionRecord struct {
	SessionID string
	Sequence  int64
	Status    string
	Data      []byte
	UpdatedAt time.Time
}

// SessionRepo owns the "current session" slot and the bounded history.
type SessionRepo interface {
	// LoadCurrent returns the raw current session document, or nil if the
	// slot is empty.
	LoadCurrent(ctx context.Context) ([]byte, error)

	// SaveCurrent overwrites the current slot with rec and upserts rec into
	// history (matched by session id), keeping the newest keep entries.
	SaveCurrent(ctx context.Context, rec SessionRecord, keep int) error

	// Finalize upserts rec into history and clears the current slot.
	Finalize(ctx context.Context, rec SessionRecord, keep int) error

	// ClearCurrent empties the current slot.
	ClearCurrent(ctx context.Context) error

	// ListHistory returns up to limit history entries, most recent last.
	ListHistory(ctx context.Context, limit int) ([]SessionRecord, error)
}

// StatisticRecord is one row of the long-lived per-answer performance log.
type StatisticRecord struct {
	Sequence       int64
	SessionID      string
	Assessment     string
	PrimaryClassCd string
	SkillCd        string
	QuestionID     string
	ExternalID     string
	IBN            string
	Answer         string
	IsCorrect      bool
	TimeMs         int64
	RecordedAt     time.Time
}

// StatsRepo provides append and query access to the statistics log.
type StatsRepo interface {
	AppendStatistic(ctx context.Context, rec StatisticRecord) error
	QueryStatistics(ctx context.Context, opts QueryOpts) ([]StatisticRecord, error)
}

// LLMRequestEventData captures the data for a single LLM request event.
type LLMRequestEventData struct {
	Provider     string
	Model        string
	Purpose      string
	InputTokens  int
	OutputTokens int
	LatencyMs    int64
	Success      bool
	ErrorMessage string
}

// LLMEventRecord is an LLM request event read back from the store.
type LLMEventRecord struct {
	Sequence   int64
	RecordedAt time.Time
	LLMRequestEventData
}

// EventRepo provides append access to LLM request events.
type EventRepo interface {
	// AppendLLMRequest records an LLM API call event.
	AppendLLMRequest(ctx context.Context, data LLMRequestEventData) error

	// QueryLLMEvents returns recent LLM events, newest first.
	QueryLLMEvents(ctx context.Context, opts QueryOpts) ([]LLMEventRecord, error)
}
