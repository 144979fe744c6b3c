package session

import (
	"bytes"
	"embed"
	"encoding/json"
	"fmt"
	"strings"
	"sync"

	"github.com/santhosh-tekuri/jsonschema/v6"
	"golang.org/x/mod/semver"

	"github.com/abhisek/satprep/internal/questionbank"
)

// Reason identifies which restoration check failed.
type Reason int

const (
	ReasonEmpty Reason = iota + 1
	ReasonMalformed
	ReasonShape
	ReasonVersion
	ReasonFinished
	ReasonSelections
	ReasonSessionID
	ReasonNoDomains
	ReasonNoSkills
)

// Message is the user-facing explanation for r.
func (r Reason) Message() string {
	switch r {
	case ReasonEmpty:
		return "No saved session to resume."
	case ReasonMalformed:
		return "The saved session is corrupted and was discarded."
	case ReasonShape:
		return "The saved session is incomplete and was discarded."
	case ReasonVersion:
		return "The saved session was written by an incompatible version and was discarded."
	case ReasonFinished:
		return "The saved session has already ended."
	case ReasonSelections:
		return "The saved session's practice settings are invalid and it was discarded."
	case ReasonSessionID:
		return "The saved session has no id and was discarded."
	case ReasonNoDomains:
		return "The saved session has no domains selected and was discarded."
	case ReasonNoSkills:
		return "The saved session has no skills selected and was discarded."
	}
	return "The saved session could not be restored."
}

// RestoreError is returned when the current record cannot be resumed.
type RestoreError struct {
	Reason Reason
	Err    error
}

func (e *RestoreError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s (%v)", e.Reason.Message(), e.Err)
	}
	return e.Reason.Message()
}

func (e *RestoreError) Unwrap() error {
	return e.Err
}

//go:embed schemas/*.json
var schemaFS embed.FS

type restoreSchemas struct {
	session    *jsonschema.Schema
	selections *jsonschema.Schema
}

var loadRestoreSchemas = sync.OnceValues(func() (restoreSchemas, error) {
	c := jsonschema.NewCompiler()
	compile := func(name string) (*jsonschema.Schema, error) {
		raw, err := schemaFS.ReadFile("schemas/" + name + ".json")
		if err != nil {
			return nil, err
		}
		doc, err := jsonschema.UnmarshalJSON(bytes.NewReader(raw))
		if err != nil {
			return nil, fmt.Errorf("parse schema %s: %w", name, err)
		}
		url := fmt.Sprintf("schema://session/%s.json", name)
		if err := c.AddResource(url, doc); err != nil {
			return nil, fmt.Errorf("add resource %s: %w", name, err)
		}
		return c.Compile(url)
	}

	var out restoreSchemas
	var err error
	if out.session, err = compile("session"); err != nil {
		return out, err
	}
	if out.selections, err = compile("selections"); err != nil {
		return out, err
	}
	return out, nil
})

// envelope defers decoding of the selections until their own check.
type envelope struct {
	Session
	Selections json.RawMessage `json:"practiceSelections"`
}

// ValidateRecord runs the restoration checks on raw in order and returns
// the resumable session. Failures are *RestoreError.
func ValidateRecord(raw []byte) (Session, error) {
	schemas, err := loadRestoreSchemas()
	if err != nil {
		return Session{}, fmt.Errorf("load session schemas: %w", err)
	}

	// 1. Present and parseable.
	if len(bytes.TrimSpace(raw)) == 0 {
		return Session{}, &RestoreError{Reason: ReasonEmpty}
	}
	doc, err := jsonschema.UnmarshalJSON(bytes.NewReader(raw))
	if err != nil {
		return Session{}, &RestoreError{Reason: ReasonMalformed, Err: err}
	}

	// 2. Session shape.
	if err := schemas.session.Validate(doc); err != nil {
		return Session{}, &RestoreError{Reason: ReasonShape, Err: err}
	}
	var env envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return Session{}, &RestoreError{Reason: ReasonShape, Err: err}
	}
	sess := env.Session
	applyDefaults(&sess)
	if err := checkVersion(sess.SchemaVersion); err != nil {
		return Session{}, &RestoreError{Reason: ReasonVersion, Err: err}
	}
	if err := checkAnswerKeys(sess); err != nil {
		return Session{}, &RestoreError{Reason: ReasonShape, Err: err}
	}

	// 3. Still in progress.
	if sess.Status.Terminal() {
		return Session{}, &RestoreError{Reason: ReasonFinished, Err: fmt.Errorf("status %s", sess.Status)}
	}

	// 4. Selections shape.
	selDoc, err := jsonschema.UnmarshalJSON(bytes.NewReader(env.Selections))
	if err != nil {
		return Session{}, &RestoreError{Reason: ReasonSelections, Err: err}
	}
	if err := schemas.selections.Validate(selDoc); err != nil {
		return Session{}, &RestoreError{Reason: ReasonSelections, Err: err}
	}
	if err := json.Unmarshal(env.Selections, &sess.Selections); err != nil {
		return Session{}, &RestoreError{Reason: ReasonSelections, Err: err}
	}

	// 5. Session id.
	if strings.TrimSpace(sess.SessionID) == "" {
		return Session{}, &RestoreError{Reason: ReasonSessionID}
	}

	// 6. Something to practice.
	if len(sess.Selections.Domains) == 0 {
		return Session{}, &RestoreError{Reason: ReasonNoDomains}
	}
	if len(sess.Selections.Skills) == 0 {
		return Session{}, &RestoreError{Reason: ReasonNoSkills}
	}

	return sess, nil
}

// checkVersion accepts any version sharing SchemaVersion's major.
func checkVersion(v string) error {
	if !strings.HasPrefix(v, "v") {
		v = "v" + v
	}
	if !semver.IsValid(v) {
		return fmt.Errorf("invalid schemaVersion %q", v)
	}
	if semver.Major(v) != semver.Major(SchemaVersion) {
		return fmt.Errorf("unsupported schemaVersion %s", v)
	}
	return nil
}

// applyDefaults fills fields that older records may lack.
func applyDefaults(s *Session) {
	if s.SchemaVersion == "" {
		s.SchemaVersion = SchemaVersion
	}
	if s.QuestionAnswers == nil {
		s.QuestionAnswers = map[string]string{}
	}
	if s.QuestionTimes == nil {
		s.QuestionTimes = map[string]int64{}
	}
	if s.AnsweredQuestions == nil {
		s.AnsweredQuestions = []AnsweredQuestion{}
	}
	if s.BatchRefs == nil {
		s.BatchRefs = []questionbank.Reference{}
	}
}

func checkAnswerKeys(s Session) error {
	if len(s.QuestionAnswers) != len(s.QuestionTimes) {
		return fmt.Errorf("%d answers but %d times", len(s.QuestionAnswers), len(s.QuestionTimes))
	}
	for id := range s.QuestionAnswers {
		if _, ok := s.QuestionTimes[id]; !ok {
			return fmt.Errorf("answer %s has no time", id)
		}
	}
	return nil
}
