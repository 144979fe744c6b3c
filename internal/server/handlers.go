package server

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/abhisek/satprep/internal/session"
	"github.com/abhisek/satprep/internal/stats"
	"github.com/abhisek/satprep/internal/store"
	"github.com/abhisek/satprep/internal/tutor"
)

func (s *Server) handleSignals(w http.ResponseWriter, _ *http.Request) {
	respondJSON(w, http.StatusOK, newSignalsResponse(s.deps.Engine.Signals()))
}

// action adapts an argument-free engine method to a handler returning the
// resulting signals.
func (s *Server) action(fn func(*session.Engine)) http.HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) {
		fn(s.deps.Engine)
		respondJSON(w, http.StatusOK, newSignalsResponse(s.deps.Engine.Signals()))
	}
}

type startResponse struct {
	Resumed bool            `json:"resumed"`
	Signals signalsResponse `json:"signals"`
}

func (s *Server) handleStart(w http.ResponseWriter, r *http.Request) {
	var sel session.Selections
	if err := json.NewDecoder(r.Body).Decode(&sel); err != nil {
		respondError(w, http.StatusBadRequest, "bad json")
		return
	}
	if err := sel.Validate(); err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	resumed, err := s.deps.Engine.StartOrResume(r.Context(), sel)
	if err != nil {
		respondError(w, http.StatusConflict, err.Error())
		return
	}
	respondJSON(w, http.StatusOK, startResponse{
		Resumed: resumed,
		Signals: newSignalsResponse(s.deps.Engine.Signals()),
	})
}

func (s *Server) handleResume(w http.ResponseWriter, r *http.Request) {
	if s.deps.Engine.Signals().Phase.Live() {
		respondError(w, http.StatusConflict, "a session is already running")
		return
	}
	err := s.deps.Engine.ResumeCurrent(r.Context())
	var rerr *session.RestoreError
	switch {
	case errors.As(err, &rerr) && rerr.Reason == session.ReasonEmpty:
		respondError(w, http.StatusNotFound, rerr.Reason.Message())
		return
	case errors.As(err, &rerr):
		respondError(w, http.StatusConflict, rerr.Reason.Message())
		return
	case err != nil:
		s.logger.Error("resume session", slog.Any("error", err))
		respondError(w, http.StatusInternalServerError, "could not resume session")
		return
	}
	respondJSON(w, http.StatusOK, newSignalsResponse(s.deps.Engine.Signals()))
}

func (s *Server) handleSelect(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Answer string `json:"answer"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "bad json")
		return
	}
	s.deps.Engine.Select(req.Answer)
	respondJSON(w, http.StatusOK, newSignalsResponse(s.deps.Engine.Signals()))
}

func (s *Server) handleGoTo(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Step *int `json:"step"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Step == nil {
		respondError(w, http.StatusBadRequest, "step required")
		return
	}
	s.deps.Engine.GoTo(*req.Step)
	respondJSON(w, http.StatusOK, newSignalsResponse(s.deps.Engine.Signals()))
}

func (s *Server) handleExplain(w http.ResponseWriter, r *http.Request) {
	if s.deps.Tutor == nil {
		respondError(w, http.StatusServiceUnavailable, "no tutor configured")
		return
	}
	st := s.deps.Engine.State()
	q := st.Question()
	if st.Phase != session.PhaseChecked || q == nil {
		respondError(w, http.StatusConflict, "check an answer first")
		return
	}

	exp, err := s.deps.Tutor.Explain(r.Context(), tutor.Input{
		Question:  q,
		Answer:    st.Active.Selected,
		IsCorrect: st.Active.Correct,
		TimeMs:    st.Session.QuestionTimes[q.QuestionID],
	})
	if err != nil {
		s.logger.Error("explain question", slog.String("question_id", q.QuestionID), slog.Any("error", err))
		respondError(w, http.StatusBadGateway, "tutor unavailable")
		return
	}
	respondJSON(w, http.StatusOK, exp)
}

func (s *Server) handleSummary(w http.ResponseWriter, _ *http.Request) {
	st := s.deps.Engine.State()
	if st.Session.SessionID == "" {
		respondError(w, http.StatusNotFound, "no session")
		return
	}
	respondJSON(w, http.StatusOK, newSummaryResponse(session.BuildSummary(st.Session)))
}

func (s *Server) handleReset(w http.ResponseWriter, r *http.Request) {
	if s.deps.Engine.Signals().Phase.Live() {
		s.deps.Engine.Exit()
	} else if err := s.deps.Persister.Clear(r.Context()); err != nil {
		s.logger.Error("clear session", slog.Any("error", err))
		respondError(w, http.StatusInternalServerError, "could not clear session")
		return
	}
	respondJSON(w, http.StatusNoContent, nil)
}

type historyItem struct {
	SessionID      string             `json:"sessionId"`
	Status         session.Status     `json:"status"`
	Selections     session.Selections `json:"practiceSelections"`
	TotalQuestions int                `json:"totalQuestions"`
	Answered       int                `json:"answered"`
	Correct        int                `json:"correct"`
	TotalTimeSpent int64              `json:"totalTimeSpent"`
	StartedAt      time.Time          `json:"startedAt"`
	EndedAt        *time.Time         `json:"endedAt,omitempty"`
}

func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request) {
	hist, err := s.deps.Persister.ListHistory(r.Context())
	if err != nil {
		s.logger.Error("list history", slog.Any("error", err))
		respondError(w, http.StatusInternalServerError, "could not list history")
		return
	}
	items := make([]historyItem, 0, len(hist))
	// Most recent first.
	for i := len(hist) - 1; i >= 0; i-- {
		h := hist[i]
		items = append(items, historyItem{
			SessionID:      h.SessionID,
			Status:         h.Status,
			Selections:     h.Selections,
			TotalQuestions: h.TotalQuestions,
			Answered:       len(h.QuestionAnswers),
			Correct:        h.Correct(),
			TotalTimeSpent: h.TotalTimeSpent,
			StartedAt:      h.StartedAt,
			EndedAt:        h.EndedAt,
		})
	}
	respondJSON(w, http.StatusOK, items)
}

func (s *Server) records(r *http.Request) ([]stats.Record, error) {
	opts := store.QueryOpts{}
	if from := r.URL.Query().Get("from"); from != "" {
		t, err := time.Parse(time.RFC3339, from)
		if err != nil {
			return nil, errBadFrom
		}
		opts.From = t
	}
	return stats.Query(r.Context(), s.deps.Stats, opts)
}

var errBadFrom = errors.New("from must be RFC 3339")

func (s *Server) statsError(w http.ResponseWriter, err error) {
	if errors.Is(err, errBadFrom) {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	s.logger.Error("query statistics", slog.Any("error", err))
	respondError(w, http.StatusInternalServerError, "could not load statistics")
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	recs, err := s.records(r)
	if err != nil {
		s.statsError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, newStatsResponse(stats.Summarize(recs)))
}

func (s *Server) handleExport(w http.ResponseWriter, r *http.Request) {
	recs, err := s.records(r)
	if err != nil {
		s.statsError(w, err)
		return
	}
	w.Header().Set("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	w.Header().Set("Content-Disposition", `attachment; filename="satprep-stats.xlsx"`)
	if err := stats.Export(w, recs); err != nil {
		s.logger.Error("export statistics", slog.Any("error", err))
	}
}
