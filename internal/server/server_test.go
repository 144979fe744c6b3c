package server

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/abhisek/satprep/internal/config"
	"github.com/abhisek/satprep/internal/llm"
	"github.com/abhisek/satprep/internal/questionbank"
	"github.com/abhisek/satprep/internal/session"
	"github.com/abhisek/satprep/internal/stats"
	"github.com/abhisek/satprep/internal/store"
	"github.com/abhisek/satprep/internal/tutor"
)

func bank(n int) *questionbank.Static {
	qs := make([]*questionbank.Question, n)
	for i := range qs {
		id := fmt.Sprintf("q%d", i+1)
		qs[i] = &questionbank.Question{
			Reference: questionbank.Reference{
				QuestionID:     id,
				ExternalID:     "ext-" + id,
				Difficulty:     "M",
				PrimaryClassCd: "H",
				SkillCd:        "H.A.1",
			},
			Type:          questionbank.TypeMultipleChoice,
			Stem:          "Stem of " + id,
			Options:       []questionbank.AnswerOption{{Key: "A", Content: "1"}, {Key: "B", Content: "2"}},
			CorrectAnswer: []string{"A"},
		}
	}
	return questionbank.NewStatic(qs)
}

var practice = session.Selections{
	Assessment:   "SAT",
	Subject:      "math",
	Domains:      []string{"H"},
	Skills:       []string{"H.A.1"},
	Difficulties: []string{"M"},
}

type fixture struct {
	engine *session.Engine
	repo   *store.MemoryRepo
	stub   *llm.Stub
	srv    *httptest.Server
}

func newFixture(t *testing.T, withTutor bool) *fixture {
	t.Helper()
	repo := store.NewMemoryRepo()
	p := session.NewPersister(repo, session.PersisterConfig{HistoryLimit: 20, Debounce: 10 * time.Millisecond}, nil)
	f := &fixture{
		engine: session.NewEngine(bank(3), p, stats.NewStoreSink(repo)),
		repo:   repo,
		stub:   llm.NewStub(),
	}
	deps := Deps{Engine: f.engine, Persister: p, Stats: repo}
	if withTutor {
		deps.Tutor = tutor.NewService(f.stub, tutor.DefaultConfig())
	}
	s := New(config.ServerConfig{CORSOrigins: []string{"http://localhost:5173"}}, deps)
	f.srv = httptest.NewServer(s.Handler())
	t.Cleanup(func() {
		f.srv.Close()
		f.engine.Close(context.Background())
	})
	return f
}

func (f *fixture) do(t *testing.T, method, path string, body any) *http.Response {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req, err := http.NewRequest(method, f.srv.URL+path, &buf)
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func decode[T any](t *testing.T, resp *http.Response) T {
	t.Helper()
	var v T
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&v))
	return v
}

func (f *fixture) signals(t *testing.T) map[string]any {
	resp := f.do(t, http.MethodGet, "/api/signals", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	return decode[map[string]any](t, resp)
}

func (f *fixture) start(t *testing.T) {
	resp := f.do(t, http.MethodPost, "/api/session/start", practice)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	out := decode[startResponse](t, resp)
	assert.False(t, out.Resumed)
	f.engine.Wait()
}

func TestHealthz(t *testing.T) {
	f := newFixture(t, false)
	resp := f.do(t, http.MethodGet, "/healthz", nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestPracticeFlow(t *testing.T) {
	f := newFixture(t, false)
	f.start(t)

	sig := f.signals(t)
	assert.Equal(t, "answering", sig["phase"])
	assert.EqualValues(t, 3, sig["batchLen"])
	q := sig["question"].(map[string]any)
	assert.Equal(t, "q1", q["questionId"])
	assert.Equal(t, "first_attempt", q["mode"])
	assert.NotContains(t, q, "correctAnswer")

	resp := f.do(t, http.MethodPost, "/api/session/select", map[string]string{"answer": "B"})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	resp = f.do(t, http.MethodPost, "/api/session/check", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	sig = decode[map[string]any](t, resp)
	assert.Equal(t, "checked", sig["phase"])
	q = sig["question"].(map[string]any)
	assert.Equal(t, false, q["isCorrect"])
	assert.Equal(t, []any{"A"}, q["correctAnswer"])

	resp = f.do(t, http.MethodPost, "/api/session/goto", map[string]int{"step": 2})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.EqualValues(t, 2, decode[map[string]any](t, resp)["step"])

	resp = f.do(t, http.MethodPost, "/api/session/previous", nil)
	assert.EqualValues(t, 1, decode[map[string]any](t, resp)["step"])

	resp = f.do(t, http.MethodGet, "/api/session/summary", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	sum := decode[summaryResponse](t, resp)
	assert.Equal(t, 1, sum.Answered)
	assert.Equal(t, 0, sum.TotalCorrect)
	require.Len(t, sum.Skills, 1)
	assert.Equal(t, "H.A.1", sum.Skills[0].Key)

	resp = f.do(t, http.MethodPost, "/api/session/exit", nil)
	assert.Equal(t, "abandoned", decode[map[string]any](t, resp)["phase"])

	resp = f.do(t, http.MethodGet, "/api/history", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	hist := decode[[]historyItem](t, resp)
	require.Len(t, hist, 1)
	assert.Equal(t, session.StatusAbandoned, hist[0].Status)
	assert.Equal(t, 1, hist[0].Answered)

	resp = f.do(t, http.MethodGet, "/api/stats", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	st := decode[statsResponse](t, resp)
	assert.Equal(t, 1, st.Overall.Attempted)
	assert.Equal(t, 0, st.Overall.Correct)
}

func TestStartValidatesSelections(t *testing.T) {
	f := newFixture(t, false)

	bad := practice
	bad.Skills = nil
	resp := f.do(t, http.MethodPost, "/api/session/start", bad)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	bad = practice
	bad.Assessment = "ACT"
	resp = f.do(t, http.MethodPost, "/api/session/start", bad)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	req, err := http.NewRequest(http.MethodPost, f.srv.URL+"/api/session/start", bytes.NewBufferString("{"))
	require.NoError(t, err)
	raw, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer raw.Body.Close()
	assert.Equal(t, http.StatusBadRequest, raw.StatusCode)
}

func TestStartTwiceResumesSameSelections(t *testing.T) {
	f := newFixture(t, false)
	f.start(t)
	id := f.signals(t)["sessionId"]

	resp := f.do(t, http.MethodPost, "/api/session/start", practice)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	out := decode[startResponse](t, resp)
	assert.True(t, out.Resumed)
	assert.Equal(t, id, out.Signals.SessionID)
}

func TestResumeWithoutSession(t *testing.T) {
	f := newFixture(t, false)
	resp := f.do(t, http.MethodPost, "/api/session/resume", nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	f.repo.PutCurrent([]byte(`{"sessionId":`))
	resp = f.do(t, http.MethodPost, "/api/session/resume", nil)
	assert.Equal(t, http.StatusConflict, resp.StatusCode)
	assert.Equal(t, session.ReasonMalformed.Message(), decode[map[string]string](t, resp)["error"])
}

func TestResumeAfterRestart(t *testing.T) {
	f := newFixture(t, false)
	f.start(t)
	f.do(t, http.MethodPost, "/api/session/select", map[string]string{"answer": "A"})
	f.do(t, http.MethodPost, "/api/session/check", nil)
	f.engine.Close(context.Background())

	p := session.NewPersister(f.repo, session.PersisterConfig{HistoryLimit: 20, Debounce: 10 * time.Millisecond}, nil)
	engine := session.NewEngine(bank(3), p, nil)
	t.Cleanup(func() { engine.Close(context.Background()) })
	srv := httptest.NewServer(New(config.ServerConfig{}, Deps{Engine: engine, Persister: p, Stats: f.repo}).Handler())
	t.Cleanup(srv.Close)

	resp, err := http.Post(srv.URL+"/api/session/resume", "application/json", nil)
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)
	engine.Wait()

	sig := engine.Signals()
	assert.Equal(t, session.PhaseChecked, sig.Phase)
	assert.Equal(t, 1, sig.Correct)
}

func TestExplain(t *testing.T) {
	f := newFixture(t, true)
	f.start(t)

	resp := f.do(t, http.MethodPost, "/api/session/explain", nil)
	assert.Equal(t, http.StatusConflict, resp.StatusCode)

	f.do(t, http.MethodPost, "/api/session/select", map[string]string{"answer": "B"})
	f.do(t, http.MethodPost, "/api/session/check", nil)

	f.stub.Push(llm.StubReply{Content: json.RawMessage(`{"explanation":"Because.","steps":["one"],"keyConcept":"ratios"}`)})
	resp = f.do(t, http.MethodPost, "/api/session/explain", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	exp := decode[tutor.Explanation](t, resp)
	assert.Equal(t, "q1", exp.QuestionID)
	assert.Equal(t, "ratios", exp.KeyConcept)
	require.Len(t, f.stub.Calls(), 1)
	assert.Contains(t, f.stub.Calls()[0].Messages[0].Content, "Student answer: B (incorrect)")

	// Script exhausted: the provider is down.
	f.do(t, http.MethodPost, "/api/session/next", nil)
	f.do(t, http.MethodPost, "/api/session/select", map[string]string{"answer": "A"})
	f.do(t, http.MethodPost, "/api/session/check", nil)
	resp = f.do(t, http.MethodPost, "/api/session/explain", nil)
	assert.Equal(t, http.StatusBadGateway, resp.StatusCode)
}

func TestExplainWithoutTutor(t *testing.T) {
	f := newFixture(t, false)
	resp := f.do(t, http.MethodPost, "/api/session/explain", nil)
	assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)
}

func TestResetClearsSlot(t *testing.T) {
	f := newFixture(t, false)
	f.start(t)

	resp := f.do(t, http.MethodDelete, "/api/session", nil)
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)
	raw, err := f.repo.LoadCurrent(context.Background())
	require.NoError(t, err)
	assert.Nil(t, raw)

	resp = f.do(t, http.MethodDelete, "/api/session", nil)
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)
}

func TestStatsExport(t *testing.T) {
	f := newFixture(t, false)
	f.start(t)
	f.do(t, http.MethodPost, "/api/session/select", map[string]string{"answer": "A"})
	f.do(t, http.MethodPost, "/api/session/check", nil)

	resp := f.do(t, http.MethodGet, "/api/stats/export", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, resp.Header.Get("Content-Disposition"), "satprep-stats.xlsx")
	var body bytes.Buffer
	_, err := body.ReadFrom(resp.Body)
	require.NoError(t, err)
	assert.Equal(t, "PK", body.String()[:2])

	resp = f.do(t, http.MethodGet, "/api/stats?from=yesterday", nil)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestCORSPreflight(t *testing.T) {
	f := newFixture(t, false)
	req, err := http.NewRequest(http.MethodOptions, f.srv.URL+"/api/session/check", nil)
	require.NoError(t, err)
	req.Header.Set("Origin", "http://localhost:5173")
	req.Header.Set("Access-Control-Request-Method", "POST")
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, "http://localhost:5173", resp.Header.Get("Access-Control-Allow-Origin"))
}
