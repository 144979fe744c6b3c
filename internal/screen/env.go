package screen

import (
	"github.com/abhisek/satprep/internal/session"
	"github.com/abhisek/satprep/internal/store"
	"github.com/abhisek/satprep/internal/tutor"
)

// Env carries the services screens drive.
type Env struct {
	Engine    *session.Engine
	Persister *session.Persister
	Stats     store.StatsRepo

	// Tutor is nil when no LLM provider is configured.
	Tutor *tutor.Service
}

// EngineChangedMsg is delivered after the engine changed state off the
// UI goroutine, e.g. when a batch finished loading.
type EngineChangedMsg struct{}
