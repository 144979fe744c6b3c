package practice

import (
	"time"

	"github.com/abhisek/satprep/internal/tutor"
)

// startedMsg is sent once the engine has started or resumed a session.
type startedMsg struct {
	Resumed bool
	Err     error
}

// explainedMsg carries the tutor's answer for a question.
type explainedMsg struct {
	QuestionID  string
	Explanation *tutor.Explanation
	Err         error
}

// timerTickMsg is sent every second to refresh the stopwatch.
type timerTickMsg time.Time
