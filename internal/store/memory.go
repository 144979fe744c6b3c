package store

import (
	"context"
	"slices"
	"sync"
	"time"
)

// MemoryRepo is an in-process implementation of SessionRepo, StatsRepo and
// EventRepo. It backs tests and the --db=:memory: mode.
type MemoryRepo struct {
	mu      sync.Mutex
	current []byte
	history []SessionRecord
	stats   []StatisticRecord
	events  []LLMEventRecord
	seq     int64

	// WriteHook, when set, runs before every mutating call. A non-nil
	// error aborts the write and is returned to the caller.
	WriteHook func(op string) error
}

// NewMemoryRepo returns an empty MemoryRepo.
func NewMemoryRepo() *MemoryRepo {
	return &MemoryRepo{}
}

func (m *MemoryRepo) hook(op string) error {
	m.mu.Lock()
	h := m.WriteHook
	m.mu.Unlock()
	if h == nil {
		return nil
	}
	return h(op)
}

// SetWriteHook replaces the write hook under the repo lock.
func (m *MemoryRepo) SetWriteHook(h func(op string) error) {
	m.mu.Lock()
	m.WriteHook = h
	m.mu.Unlock()
}

// PutCurrent stores raw bytes in the current slot without touching history.
func (m *MemoryRepo) PutCurrent(data []byte) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.current = slices.Clone(data)
}

func (m *MemoryRepo) LoadCurrent(_ context.Context) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.current == nil {
		return nil, nil
	}
	return slices.Clone(m.current), nil
}

func (m *MemoryRepo) SaveCurrent(_ context.Context, rec SessionRecord, keep int) error {
	if err := m.hook("save"); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.current = slices.Clone(rec.Data)
	m.upsertHistory(rec, keep)
	return nil
}

func (m *MemoryRepo) Finalize(_ context.Context, rec SessionRecord, keep int) error {
	if err := m.hook("finalize"); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.upsertHistory(rec, keep)
	m.current = nil
	return nil
}

func (m *MemoryRepo) ClearCurrent(_ context.Context) error {
	if err := m.hook("clear"); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.current = nil
	return nil
}

func (m *MemoryRepo) ListHistory(_ context.Context, limit int) ([]SessionRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := slices.Clone(m.history)
	if limit > 0 && len(out) > limit {
		out = out[len(out)-limit:]
	}
	return out, nil
}

// upsertHistory moves rec to the end of history. Caller holds m.mu.
func (m *MemoryRepo) upsertHistory(rec SessionRecord, keep int) {
	m.seq++
	rec.Sequence = m.seq
	rec.Data = slices.Clone(rec.Data)
	m.history = slices.DeleteFunc(m.history, func(r SessionRecord) bool {
		return r.SessionID == rec.SessionID
	})
	m.history = append(m.history, rec)
	if keep > 0 && len(m.history) > keep {
		m.history = m.history[len(m.history)-keep:]
	}
}

func (m *MemoryRepo) AppendStatistic(_ context.Context, rec StatisticRecord) error {
	if err := m.hook("statistic"); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.seq++
	rec.Sequence = m.seq
	m.stats = append(m.stats, rec)
	return nil
}

func (m *MemoryRepo) QueryStatistics(_ context.Context, opts QueryOpts) ([]StatisticRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []StatisticRecord
	for _, s := range m.stats {
		if !matchOpts(opts, s.Sequence, s.RecordedAt.UnixMilli()) {
			continue
		}
		out = append(out, s)
		if opts.Limit > 0 && len(out) == opts.Limit {
			break
		}
	}
	return out, nil
}

func (m *MemoryRepo) AppendLLMRequest(_ context.Context, data LLMRequestEventData) error {
	if err := m.hook("llm_request"); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.seq++
	m.events = append(m.events, LLMEventRecord{Sequence: m.seq, RecordedAt: time.Now(), LLMRequestEventData: data})
	return nil
}

func (m *MemoryRepo) QueryLLMEvents(_ context.Context, opts QueryOpts) ([]LLMEventRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []LLMEventRecord
	for i := len(m.events) - 1; i >= 0; i-- {
		e := m.events[i]
		if !matchOpts(opts, e.Sequence, e.RecordedAt.UnixMilli()) {
			continue
		}
		out = append(out, e)
		if opts.Limit > 0 && len(out) == opts.Limit {
			break
		}
	}
	return out, nil
}

func matchOpts(opts QueryOpts, seq, tsMillis int64) bool {
	if opts.After > 0 && seq <= opts.After {
		return false
	}
	if opts.Before > 0 && seq >= opts.Before {
		return false
	}
	if !opts.From.IsZero() && tsMillis < opts.From.UnixMilli() {
		return false
	}
	if !opts.To.IsZero() && tsMillis > opts.To.UnixMilli() {
		return false
	}
	return true
}

var (
	_ SessionRepo = (*MemoryRepo)(nil)
	_ StatsRepo   = (*MemoryRepo)(nil)
	_ EventRepo   = (*MemoryRepo)(nil)
)
