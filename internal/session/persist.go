package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/go-co-op/gocron"

	"github.com/abhisek/satprep/internal/store"
)

// ErrSaveSuppressed is returned when a save overlaps a write in flight.
// The snapshot stays pending and the next trigger writes it.
var ErrSaveSuppressed = errors.New("save suppressed: write in flight")

// PersisterConfig tunes when snapshots are written.
type PersisterConfig struct {
	HistoryLimit int
	Debounce     time.Duration
	Heartbeat    time.Duration
}

// DefaultPersisterConfig returns the standard timings.
func DefaultPersisterConfig() PersisterConfig {
	return PersisterConfig{
		HistoryLimit: 20,
		Debounce:     time.Second,
		Heartbeat:    30 * time.Second,
	}
}

// Persister is the only writer of the current session slot and the
// history. A single in-flight guard keeps the debounce timer, eager saves
// and the heartbeat from interleaving writes.
type Persister struct {
	repo   store.SessionRepo
	cfg    PersisterConfig
	logger *slog.Logger

	guard  sync.Mutex
	saving atomic.Bool

	mu        sync.Mutex
	latest    *Session
	version   uint64
	written   uint64
	timer     *time.Timer
	finalized map[string]bool

	sched *gocron.Scheduler
}

// NewPersister creates a Persister over repo.
func NewPersister(repo store.SessionRepo, cfg PersisterConfig, logger *slog.Logger) *Persister {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	if cfg.HistoryLimit <= 0 {
		cfg.HistoryLimit = DefaultPersisterConfig().HistoryLimit
	}
	return &Persister{
		repo:      repo,
		cfg:       cfg,
		logger:    logger,
		finalized: map[string]bool{},
	}
}

// Saving reports whether a write is in progress.
func (p *Persister) Saving() bool {
	return p.saving.Load()
}

// Save writes s immediately unless another write is in flight, in which
// case s is written by the debounce timer instead.
func (p *Persister) Save(ctx context.Context, s Session) error {
	p.submit(s)
	err := p.write(ctx, false)
	if errors.Is(err, ErrSaveSuppressed) {
		p.arm()
	}
	return err
}

// SaveDebounced records s and writes it once no newer snapshot has
// arrived for the debounce interval.
func (p *Persister) SaveDebounced(s Session) {
	p.submit(s)
	p.arm()
}

// arm restarts the debounce timer. A timed write that overlaps another
// write re-arms.
func (p *Persister) arm() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.timer != nil {
		p.timer.Stop()
	}
	p.timer = time.AfterFunc(p.cfg.Debounce, func() {
		if errors.Is(p.write(context.Background(), false), ErrSaveSuppressed) {
			p.arm()
		}
	})
}

// Flush synchronously writes any pending snapshot, waiting for a write in
// flight. Used on shutdown; failures are logged only.
func (p *Persister) Flush(ctx context.Context) {
	p.stopTimer()
	_ = p.write(ctx, true)
}

// Finalize writes the terminal snapshot into history and clears the
// current slot. It waits for any write in flight and discards pending
// snapshots of the same session.
func (p *Persister) Finalize(ctx context.Context, s Session) error {
	p.guard.Lock()
	defer p.guard.Unlock()

	p.mu.Lock()
	if p.timer != nil {
		p.timer.Stop()
		p.timer = nil
	}
	if p.latest != nil && p.latest.SessionID == s.SessionID {
		p.latest = nil
		p.written = p.version
	}
	p.finalized[s.SessionID] = true
	p.mu.Unlock()

	p.saving.Store(true)
	defer p.saving.Store(false)

	rec, err := toRecord(s)
	if err != nil {
		p.logger.Error("encode session", slog.String("session_id", s.SessionID), slog.Any("error", err))
		return err
	}
	if err := p.repo.Finalize(ctx, rec, p.cfg.HistoryLimit); err != nil {
		p.logger.Error("finalize session failed",
			slog.String("session_id", s.SessionID),
			slog.String("status", string(s.Status)),
			slog.Any("error", err),
		)
		return fmt.Errorf("finalize session: %w", err)
	}
	p.logger.Info("session finalized",
		slog.String("session_id", s.SessionID),
		slog.String("status", string(s.Status)),
		slog.Int("answered", len(s.QuestionAnswers)),
	)
	return nil
}

// Abandon finalizes s as ABANDONED at the given time.
func (p *Persister) Abandon(ctx context.Context, s Session, at time.Time) error {
	return p.Finalize(ctx, s.ended(StatusAbandoned, at))
}

// Restore reads the current slot and validates it. Any validation failure
// deletes the record and returns a *RestoreError.
func (p *Persister) Restore(ctx context.Context) (Session, error) {
	raw, err := p.repo.LoadCurrent(ctx)
	if err != nil {
		return Session{}, fmt.Errorf("load current session: %w", err)
	}

	sess, err := ValidateRecord(raw)
	if err == nil {
		return sess, nil
	}

	var rerr *RestoreError
	if errors.As(err, &rerr) && raw != nil {
		if cerr := p.repo.ClearCurrent(ctx); cerr != nil {
			p.logger.Error("clear rejected session", slog.Any("error", cerr))
		}
		p.logger.Warn("discarded saved session", slog.String("reason", rerr.Reason.Message()), slog.Any("error", rerr.Err))
	}
	return Session{}, err
}

// Clear empties the current slot without touching history.
func (p *Persister) Clear(ctx context.Context) error {
	p.mu.Lock()
	if p.latest != nil {
		p.finalized[p.latest.SessionID] = true
	}
	p.latest = nil
	p.written = p.version
	p.mu.Unlock()
	p.stopTimer()
	return p.repo.ClearCurrent(ctx)
}

// ListHistory returns up to the configured number of past sessions, most
// recent last. Undecodable entries are skipped.
func (p *Persister) ListHistory(ctx context.Context) ([]Session, error) {
	recs, err := p.repo.ListHistory(ctx, p.cfg.HistoryLimit)
	if err != nil {
		return nil, err
	}
	out := make([]Session, 0, len(recs))
	for _, r := range recs {
		var s Session
		if err := json.Unmarshal(r.Data, &s); err != nil {
			p.logger.Warn("skip undecodable history entry", slog.String("session_id", r.SessionID), slog.Any("error", err))
			continue
		}
		out = append(out, s)
	}
	return out, nil
}

// StartHeartbeat writes the latest pending snapshot every Heartbeat
// interval until Stop.
func (p *Persister) StartHeartbeat() error {
	if p.cfg.Heartbeat <= 0 {
		return nil
	}
	s := gocron.NewScheduler(time.UTC)
	s.SingletonModeAll()
	if _, err := s.Every(p.cfg.Heartbeat).WaitForSchedule().Do(p.heartbeat); err != nil {
		return fmt.Errorf("schedule heartbeat: %w", err)
	}
	s.StartAsync()

	p.mu.Lock()
	p.sched = s
	p.mu.Unlock()
	return nil
}

// Stop halts the heartbeat and any pending debounce timer.
func (p *Persister) Stop() {
	p.mu.Lock()
	s := p.sched
	p.sched = nil
	p.mu.Unlock()
	if s != nil {
		s.Stop()
	}
	p.stopTimer()
}

func (p *Persister) heartbeat() {
	_ = p.write(context.Background(), false)
}

func (p *Persister) submit(s Session) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.finalized[s.SessionID] {
		return
	}
	snap := s.Clone()
	p.latest = &snap
	p.version++
}

func (p *Persister) stopTimer() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.timer != nil {
		p.timer.Stop()
		p.timer = nil
	}
}

// write stores the latest snapshot if it has not been written yet. With
// wait false an overlapping call returns ErrSaveSuppressed.
func (p *Persister) write(ctx context.Context, wait bool) error {
	if wait {
		p.guard.Lock()
	} else if !p.guard.TryLock() {
		p.logger.Debug("save suppressed, write in flight")
		return ErrSaveSuppressed
	}
	defer p.guard.Unlock()

	p.mu.Lock()
	if p.latest == nil || p.written >= p.version || p.finalized[p.latest.SessionID] {
		p.mu.Unlock()
		return nil
	}
	snap, ver := *p.latest, p.version
	p.mu.Unlock()

	p.saving.Store(true)
	defer p.saving.Store(false)

	rec, err := toRecord(snap)
	if err != nil {
		p.logger.Error("encode session", slog.String("session_id", snap.SessionID), slog.Any("error", err))
		return err
	}
	if err := p.repo.SaveCurrent(ctx, rec, p.cfg.HistoryLimit); err != nil {
		p.logger.Error("save session failed", slog.String("session_id", snap.SessionID), slog.Any("error", err))
		return fmt.Errorf("save session: %w", err)
	}

	p.mu.Lock()
	if ver > p.written {
		p.written = ver
	}
	p.mu.Unlock()
	p.logger.Debug("session saved", slog.String("session_id", snap.SessionID), slog.Int("step", snap.CurrentQuestionStep))
	return nil
}

func toRecord(s Session) (store.SessionRecord, error) {
	data, err := json.Marshal(s)
	if err != nil {
		return store.SessionRecord{}, fmt.Errorf("marshal session: %w", err)
	}
	return store.SessionRecord{
		SessionID: s.SessionID,
		Status:    string(s.Status),
		Data:      data,
		UpdatedAt: s.UpdatedAt,
	}, nil
}
