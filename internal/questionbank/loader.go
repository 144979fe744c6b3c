package questionbank

import (
	"context"
	"fmt"
	"hash/fnv"
	"log/slog"
	"math/rand/v2"
	"sync"
)

// DefaultBatchSize is the nominal number of references hydrated per batch.
const DefaultBatchSize = 22

// Selection narrows the filter result on the client side. Empty lists
// match everything.
type Selection struct {
	FilterRequest
	Skills       []string
	Difficulties []string
	QuestionIDs  []string
	Randomize    bool
}

// Progress reports hydration of one batch. It is delivered after every
// attempted reference.
type Progress struct {
	Hydrated  int
	Attempted int
	Dropped   int
	Total     int
}

// Done reports whether every reference of the batch has been attempted.
func (p Progress) Done() bool {
	return p.Attempted >= p.Total
}

// Batch is the result of one hydration pass.
type Batch struct {
	// Number is the 1-based batch counter after this pass.
	Number int

	// Questions holds the hydrated questions in reference order.
	Questions []*Question

	// Dropped holds the references that failed hydration.
	Dropped []Reference

	// Consumed is the number of filter references consumed so far.
	Consumed int

	// HasMore is true when references remain beyond Consumed.
	HasMore bool
}

// LoaderOption configures a Loader.
type LoaderOption func(*Loader)

// WithBatchSize overrides DefaultBatchSize.
func WithBatchSize(n int) LoaderOption {
	return func(l *Loader) {
		if n > 0 {
			l.batchSize = n
		}
	}
}

// WithSeed sets the shuffle seed used when randomizing. Seeding from the
// session id gives a resumed session the same order.
func WithSeed(seed string) LoaderOption {
	return func(l *Loader) { l.seed = seed }
}

// WithLogger sets the logger for dropped items.
func WithLogger(logger *slog.Logger) LoaderOption {
	return func(l *Loader) { l.logger = logger }
}

// Loader pages through the filter result one batch at a time. A Loader
// issues at most one filter query over its lifetime and is not safe for
// concurrent LoadNextBatch calls.
type Loader struct {
	src       Source
	sel       Selection
	batchSize int
	seed      string
	logger    *slog.Logger

	mu        sync.Mutex
	filtered  bool
	filterErr error
	refs      []Reference
	consumed  int
	batch     int
}

// NewLoader creates a Loader for sel.
func NewLoader(src Source, sel Selection, opts ...LoaderOption) *Loader {
	l := &Loader{
		src:       src,
		sel:       sel,
		batchSize: DefaultBatchSize,
		logger:    slog.New(slog.DiscardHandler),
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Restore positions the cursor for a resumed session.
func (l *Loader) Restore(consumed, batch int) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.consumed = max(consumed, 0)
	l.batch = max(batch, 0)
}

// BatchNumber returns the counter of the last completed batch.
func (l *Loader) BatchNumber() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.batch
}

// Remaining returns the number of unconsumed references, or -1 before the
// filter query has run.
func (l *Loader) Remaining() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	if !l.filtered || l.filterErr != nil {
		return -1
	}
	return max(len(l.refs)-l.consumed, 0)
}

// LoadNextBatch hydrates the next slice of references. The batch counter
// and cursor only advance when the pass completes; a cancelled pass
// returns ctx.Err() and leaves both untouched. With nothing left it
// returns an empty batch with HasMore false.
func (l *Loader) LoadNextBatch(ctx context.Context, onProgress func(Progress)) (Batch, error) {
	if err := l.ensureRefs(ctx); err != nil {
		return Batch{}, err
	}

	l.mu.Lock()
	start := l.consumed
	end := min(start+l.batchSize, len(l.refs))
	slice := l.refs[start:end]
	number := l.batch
	l.mu.Unlock()

	if len(slice) == 0 {
		return Batch{Number: number, Consumed: start}, nil
	}

	qs, dropped, err := l.hydrate(ctx, slice, onProgress)
	if err != nil {
		return Batch{}, err
	}

	l.mu.Lock()
	l.consumed = end
	l.batch++
	b := Batch{
		Number:    l.batch,
		Questions: qs,
		Dropped:   dropped,
		Consumed:  end,
		HasMore:   end < len(l.refs),
	}
	l.mu.Unlock()
	return b, nil
}

// Rehydrate fetches the bodies for refs again, for a resumed session,
// without moving the cursor. It still runs the filter query so HasMore is
// known.
func (l *Loader) Rehydrate(ctx context.Context, refs []Reference, onProgress func(Progress)) (Batch, error) {
	if err := l.ensureRefs(ctx); err != nil {
		return Batch{}, err
	}

	qs, dropped, err := l.hydrate(ctx, refs, onProgress)
	if err != nil {
		return Batch{}, err
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	return Batch{
		Number:    l.batch,
		Questions: qs,
		Dropped:   dropped,
		Consumed:  l.consumed,
		HasMore:   l.consumed < len(l.refs),
	}, nil
}

// ensureRefs runs the filter query on first use. The lock is not held
// across the request so Remaining stays responsive.
func (l *Loader) ensureRefs(ctx context.Context) error {
	l.mu.Lock()
	done, ferr := l.filtered, l.filterErr
	l.mu.Unlock()
	if done {
		return ferr
	}

	refs, err := l.src.Filter(ctx, l.sel.FilterRequest)
	if err != nil {
		err = fmt.Errorf("%w: %w", ErrFilter, err)
	}
	narrowed := l.narrow(refs)

	l.mu.Lock()
	defer l.mu.Unlock()
	l.filtered = true
	l.filterErr = err
	if err != nil {
		return err
	}
	l.refs = narrowed
	l.logger.Info("question pool ready",
		slog.Int("matched", len(refs)),
		slog.Int("selected", len(narrowed)),
	)
	return nil
}

// narrow applies the client-side filters and the optional shuffle.
func (l *Loader) narrow(refs []Reference) []Reference {
	skills := toSet(l.sel.Skills)
	diffs := toSet(l.sel.Difficulties)
	domains := toSet(l.sel.Domains)
	allow := toSet(l.sel.QuestionIDs)

	out := make([]Reference, 0, len(refs))
	seen := make(map[string]bool, len(refs))
	for _, r := range refs {
		if r.QuestionID == "" || seen[r.QuestionID] {
			continue
		}
		if !matches(skills, r.SkillCd) || !matches(diffs, r.Difficulty) || !matches(domains, r.PrimaryClassCd) {
			continue
		}
		if len(allow) > 0 && !allow[r.QuestionID] && !allow[r.ExternalID] {
			continue
		}
		seen[r.QuestionID] = true
		out = append(out, r)
	}

	if l.sel.Randomize {
		h := fnv.New64a()
		h.Write([]byte(l.seed))
		rng := rand.New(rand.NewPCG(h.Sum64(), 0))
		rng.Shuffle(len(out), func(i, j int) { out[i], out[j] = out[j], out[i] })
	}
	return out
}

// hydrate fetches refs one at a time. Failed items are dropped and never
// retried. Only cancellation of ctx aborts the pass.
func (l *Loader) hydrate(ctx context.Context, refs []Reference, onProgress func(Progress)) ([]*Question, []Reference, error) {
	p := Progress{Total: len(refs)}
	qs := make([]*Question, 0, len(refs))
	var dropped []Reference

	for _, ref := range refs {
		if err := ctx.Err(); err != nil {
			return nil, nil, err
		}

		q, err := l.src.Fetch(ctx, ref)
		if err == nil {
			if verr := CheckStructure(q); verr != nil {
				err = verr
			}
		}
		if err != nil && ctx.Err() != nil {
			return nil, nil, ctx.Err()
		}

		p.Attempted++
		if err != nil {
			p.Dropped++
			dropped = append(dropped, ref)
			l.logger.Warn("dropping question",
				slog.String("question_id", ref.QuestionID),
				slog.String("error", err.Error()),
			)
		} else {
			p.Hydrated++
			qs = append(qs, q)
		}
		if onProgress != nil {
			onProgress(p)
		}
	}
	return qs, dropped, nil
}

func toSet(items []string) map[string]bool {
	if len(items) == 0 {
		return nil
	}
	s := make(map[string]bool, len(items))
	for _, it := range items {
		s[it] = true
	}
	return s
}

func matches(set map[string]bool, v string) bool {
	return len(set) == 0 || set[v]
}

// QuestionIDs returns the ids of qs in order.
func QuestionIDs(qs []*Question) []string {
	ids := make([]string, len(qs))
	for i, q := range qs {
		ids[i] = q.QuestionID
	}
	return ids
}
