package questionbank

import (
	"errors"
	"fmt"
)

// ErrFilter marks a failed filter query. No batch can start without it,
// so it is surfaced to the user rather than absorbed.
var ErrFilter = errors.New("could not load questions")

// HTTPError is returned for non-2xx responses from the question bank.
type HTTPError struct {
	URL        string
	StatusCode int
	Body       string
}

func (e *HTTPError) Error() string {
	return fmt.Sprintf("question bank %s: HTTP %d", e.URL, e.StatusCode)
}

// ValidationError describes a hydrated body that cannot enter a session.
type ValidationError struct {
	Validator  string
	QuestionID string
	Message    string
	Err        error
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("question %s failed %s validation: %s", e.QuestionID, e.Validator, e.Message)
}

func (e *ValidationError) Unwrap() error {
	return e.Err
}
