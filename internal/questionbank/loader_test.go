package questionbank

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeSource serves refs from memory. Questions listed in broken come back
// without an answer key; failing ones return a transport error.
type fakeSource struct {
	mu        sync.Mutex
	refs      []Reference
	broken    map[string]bool
	failing   map[string]bool
	filterErr error
	filters   int
	fetches   []string

	// onFetch runs before each fetch returns.
	onFetch func(ref Reference)
}

func newFakeSource(n int) *fakeSource {
	src := &fakeSource{broken: map[string]bool{}, failing: map[string]bool{}}
	for i := 1; i <= n; i++ {
		src.refs = append(src.refs, Reference{
			QuestionID:     fmt.Sprintf("q%d", i),
			ExternalID:     fmt.Sprintf("ext-%d", i),
			Difficulty:     []string{"E", "M", "H"}[i%3],
			PrimaryClassCd: "H",
			SkillCd:        "H.A.1",
		})
	}
	return src
}

func (f *fakeSource) Filter(_ context.Context, _ FilterRequest) ([]Reference, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.filters++
	if f.filterErr != nil {
		return nil, f.filterErr
	}
	return append([]Reference(nil), f.refs...), nil
}

func (f *fakeSource) Fetch(_ context.Context, ref Reference) (*Question, error) {
	f.mu.Lock()
	f.fetches = append(f.fetches, ref.QuestionID)
	broken, failing, hook := f.broken[ref.QuestionID], f.failing[ref.QuestionID], f.onFetch
	f.mu.Unlock()

	if hook != nil {
		hook(ref)
	}
	if failing {
		return nil, errors.New("connection reset")
	}
	q := &Question{
		Reference:     ref,
		Type:          TypeMultipleChoice,
		Stem:          "stem " + ref.QuestionID,
		Options:       []AnswerOption{{Key: "A", Content: "1"}, {Key: "B", Content: "2"}},
		CorrectAnswer: []string{"A"},
	}
	if broken {
		q.CorrectAnswer = nil
	}
	return q, nil
}

func mathSelection() Selection {
	return Selection{
		FilterRequest: FilterRequest{Assessment: "SAT", Subject: "math", Domains: []string{"H"}},
		Skills:        []string{"H.A.1"},
		Difficulties:  []string{"E", "M", "H"},
	}
}

func TestLoaderFirstBatchDropsMissingAnswers(t *testing.T) {
	src := newFakeSource(30)
	src.broken["q5"] = true
	l := NewLoader(src, mathSelection())

	var progress []Progress
	b, err := l.LoadNextBatch(context.Background(), func(p Progress) { progress = append(progress, p) })
	require.NoError(t, err)

	assert.Equal(t, 1, b.Number)
	assert.Len(t, b.Questions, 21)
	require.Len(t, b.Dropped, 1)
	assert.Equal(t, "q5", b.Dropped[0].QuestionID)
	assert.Equal(t, 22, b.Consumed)
	assert.True(t, b.HasMore)
	assert.NotContains(t, QuestionIDs(b.Questions), "q5")

	require.Len(t, progress, 22)
	last := progress[len(progress)-1]
	assert.Equal(t, Progress{Hydrated: 21, Attempted: 22, Dropped: 1, Total: 22}, last)
	assert.True(t, last.Done())
	for i := 1; i < len(progress); i++ {
		assert.Greater(t, progress[i].Attempted, progress[i-1].Attempted)
	}
}

func TestLoaderPagesAndStopsIdempotently(t *testing.T) {
	src := newFakeSource(30)
	l := NewLoader(src, mathSelection())
	ctx := context.Background()

	_, err := l.LoadNextBatch(ctx, nil)
	require.NoError(t, err)

	b, err := l.LoadNextBatch(ctx, nil)
	require.NoError(t, err)
	assert.Equal(t, 2, b.Number)
	assert.Len(t, b.Questions, 8)
	assert.False(t, b.HasMore)
	assert.Equal(t, 0, l.Remaining())

	for range 2 {
		b, err = l.LoadNextBatch(ctx, nil)
		require.NoError(t, err)
		assert.Empty(t, b.Questions)
		assert.False(t, b.HasMore)
		assert.Equal(t, 2, b.Number, "an empty pass does not advance the counter")
	}
	assert.Equal(t, 1, src.filters, "one filter query per loader")
	assert.Len(t, src.fetches, 30)
}

func TestLoaderFailedItemsAreNotRetried(t *testing.T) {
	src := newFakeSource(3)
	src.failing["q2"] = true
	l := NewLoader(src, mathSelection())

	b, err := l.LoadNextBatch(context.Background(), nil)
	require.NoError(t, err)
	assert.Equal(t, []string{"q1", "q3"}, QuestionIDs(b.Questions))
	assert.Equal(t, []string{"q1", "q2", "q3"}, src.fetches)
}

func TestLoaderCancelLeavesCountersUnchanged(t *testing.T) {
	src := newFakeSource(30)
	ctx, cancel := context.WithCancel(context.Background())
	src.onFetch = func(ref Reference) {
		if ref.QuestionID == "q3" {
			cancel()
		}
	}
	l := NewLoader(src, mathSelection())

	_, err := l.LoadNextBatch(ctx, nil)
	require.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 0, l.BatchNumber())
	assert.Equal(t, 30, l.Remaining())
	assert.Len(t, src.fetches, 3, "no request is issued after cancellation")
}

func TestLoaderFilterFailureIsFatal(t *testing.T) {
	src := newFakeSource(5)
	src.filterErr = &HTTPError{URL: "x", StatusCode: 503}
	l := NewLoader(src, mathSelection())

	_, err := l.LoadNextBatch(context.Background(), nil)
	require.ErrorIs(t, err, ErrFilter)
	var httpErr *HTTPError
	require.ErrorAs(t, err, &httpErr)
	assert.Equal(t, 503, httpErr.StatusCode)

	_, err = l.LoadNextBatch(context.Background(), nil)
	require.ErrorIs(t, err, ErrFilter)
	assert.Equal(t, 1, src.filters)
	assert.Equal(t, -1, l.Remaining())
}

func TestLoaderClientSideFilters(t *testing.T) {
	src := newFakeSource(6)
	src.refs[0].SkillCd = "H.B.2"
	src.refs = append(src.refs, src.refs[1]) // duplicate id

	sel := mathSelection()
	sel.Difficulties = []string{"M"}
	l := NewLoader(src, sel)

	b, err := l.LoadNextBatch(context.Background(), nil)
	require.NoError(t, err)
	// Difficulty M is every i%3 == 1: q1, q4. q1 has another skill.
	assert.Equal(t, []string{"q4"}, QuestionIDs(b.Questions))

	sel = mathSelection()
	sel.QuestionIDs = []string{"q2", "ext-3"}
	l = NewLoader(newFakeSource(6), sel)
	b, err = l.LoadNextBatch(context.Background(), nil)
	require.NoError(t, err)
	assert.Equal(t, []string{"q2", "q3"}, QuestionIDs(b.Questions))
}

func TestLoaderShuffleIsSeeded(t *testing.T) {
	sel := mathSelection()
	sel.Randomize = true

	load := func(seed string) []string {
		l := NewLoader(newFakeSource(30), sel, WithSeed(seed), WithBatchSize(30))
		b, err := l.LoadNextBatch(context.Background(), nil)
		require.NoError(t, err)
		return QuestionIDs(b.Questions)
	}

	a, b := load("session-1"), load("session-1")
	assert.Equal(t, a, b)
	assert.ElementsMatch(t, a, load("session-2"))
}

func TestLoaderRehydrateAndRestore(t *testing.T) {
	src := newFakeSource(30)
	l := NewLoader(src, mathSelection())
	l.Restore(22, 1)

	refs := src.refs[:3]
	b, err := l.Rehydrate(context.Background(), refs, nil)
	require.NoError(t, err)
	assert.Equal(t, 1, b.Number)
	assert.Equal(t, []string{"q1", "q2", "q3"}, QuestionIDs(b.Questions))
	assert.True(t, b.HasMore)
	assert.Equal(t, 8, l.Remaining())

	next, err := l.LoadNextBatch(context.Background(), nil)
	require.NoError(t, err)
	assert.Equal(t, 2, next.Number)
	assert.Equal(t, "q23", next.Questions[0].QuestionID)
}

func TestIsCorrectTrims(t *testing.T) {
	q := &Question{CorrectAnswer: []string{"B ", " 3/4", "0.75"}}
	tests := []struct {
		answer string
		want   bool
	}{
		{"B", true},
		{" B", true},
		{"3/4", true},
		{".75", false},
		{"b", false},
		{"   ", false},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, q.IsCorrect(tt.answer), "answer %q", tt.answer)
	}
}

func TestCheckStructure(t *testing.T) {
	mcq := &Question{Type: TypeMultipleChoice, CorrectAnswer: []string{"A"}}
	require.NotNil(t, CheckStructure(mcq), "mcq without options")

	spr := &Question{Type: TypeFreeResponse, CorrectAnswer: []string{"12"}}
	assert.Nil(t, CheckStructure(spr))

	blank := &Question{Type: TypeFreeResponse, CorrectAnswer: []string{" "}}
	assert.NotNil(t, CheckStructure(blank))
}
