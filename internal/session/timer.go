package session

import (
	"fmt"
	"time"
)

// Clock abstracts time for the engine and its tests.
type Clock interface {
	Now() time.Time
}

type systemClock struct{}

func (systemClock) Now() time.Time { return time.Now() }

// SystemClock is the wall clock.
var SystemClock Clock = systemClock{}

// Stopwatch measures the time spent on one question. It is live while
// StartedAt is non-zero; Carried holds time accumulated in earlier visits.
type Stopwatch struct {
	Carried   time.Duration
	StartedAt time.Time
}

// StartStopwatch returns a live stopwatch resuming from carried.
func StartStopwatch(carried time.Duration, at time.Time) Stopwatch {
	return Stopwatch{Carried: carried, StartedAt: at}
}

// Running reports whether the stopwatch is live.
func (w Stopwatch) Running() bool {
	return !w.StartedAt.IsZero()
}

// Elapsed returns the total measured time at now. A clock running
// backwards never reduces the result below Carried.
func (w Stopwatch) Elapsed(now time.Time) time.Duration {
	if !w.Running() {
		return w.Carried
	}
	live := now.Sub(w.StartedAt)
	if live < 0 {
		live = 0
	}
	return w.Carried + live
}

// Stop freezes the stopwatch at now.
func (w Stopwatch) Stop(now time.Time) Stopwatch {
	return Stopwatch{Carried: w.Elapsed(now)}
}

// FormatElapsed renders d rounded to whole seconds as m:ss, or h:mm:ss
// past an hour.
func FormatElapsed(d time.Duration) string {
	if d < 0 {
		d = 0
	}
	secs := int64(d.Round(time.Second) / time.Second)
	h, m, s := secs/3600, (secs%3600)/60, secs%60
	if h > 0 {
		return fmt.Sprintf("%d:%02d:%02d", h, m, s)
	}
	return fmt.Sprintf("%d:%02d", m, s)
}
