package session

import (
	"errors"
	"fmt"
	"slices"
	"strings"

	"github.com/abhisek/satprep/internal/questionbank"
)

// Selections is the practice configuration chosen before a session
// starts. It never changes for the lifetime of a session.
type Selections struct {
	Assessment   string   `json:"assessment"`
	Subject      string   `json:"subject"`
	Domains      []string `json:"domains"`
	Skills       []string `json:"skills"`
	Difficulties []string `json:"difficulties"`
	Randomize    bool     `json:"randomize"`
	QuestionIDs  []string `json:"questionIds,omitempty"`
}

// Equal reports whether s and o describe the same configuration. List
// fields compare as sets.
func (s Selections) Equal(o Selections) bool {
	return s.Assessment == o.Assessment &&
		s.Subject == o.Subject &&
		s.Randomize == o.Randomize &&
		sameSet(s.Domains, o.Domains) &&
		sameSet(s.Skills, o.Skills) &&
		sameSet(s.Difficulties, o.Difficulties) &&
		sameSet(s.QuestionIDs, o.QuestionIDs)
}

// Validate reports the first reason sel cannot start a session.
func (s Selections) Validate() error {
	if _, err := questionbank.AssessmentID(s.Assessment); err != nil {
		return err
	}
	if _, err := questionbank.SubjectID(s.Subject); err != nil {
		return err
	}
	if len(s.Domains) == 0 {
		return errors.New("at least one domain is required")
	}
	if len(s.Skills) == 0 {
		return errors.New("at least one skill is required")
	}
	for _, d := range s.Difficulties {
		if d != "E" && d != "M" && d != "H" {
			return fmt.Errorf("unknown difficulty %q", d)
		}
	}
	return nil
}

// String renders s on one line, e.g. "SAT math · H · H.A.1,H.A.2 · E,M".
func (s Selections) String() string {
	parts := []string{s.Assessment + " " + s.Subject, strings.Join(s.Domains, ",")}
	if len(s.QuestionIDs) > 0 {
		parts = append(parts, fmt.Sprintf("%d picked", len(s.QuestionIDs)))
	} else {
		parts = append(parts, strings.Join(s.Skills, ","))
	}
	diffs := "any difficulty"
	if len(s.Difficulties) > 0 {
		diffs = strings.Join(s.Difficulties, ",")
	}
	parts = append(parts, diffs)
	if s.Randomize {
		parts = append(parts, "random")
	}
	return strings.Join(parts, " · ")
}

// LoaderSelection converts s into the loader's filter.
func (s Selections) LoaderSelection() questionbank.Selection {
	return questionbank.Selection{
		FilterRequest: questionbank.FilterRequest{
			Assessment: s.Assessment,
			Subject:    s.Subject,
			Domains:    slices.Clone(s.Domains),
		},
		Skills:       slices.Clone(s.Skills),
		Difficulties: slices.Clone(s.Difficulties),
		QuestionIDs:  slices.Clone(s.QuestionIDs),
		Randomize:    s.Randomize,
	}
}

func (s Selections) clone() Selections {
	s.Domains = slices.Clone(s.Domains)
	s.Skills = slices.Clone(s.Skills)
	s.Difficulties = slices.Clone(s.Difficulties)
	s.QuestionIDs = slices.Clone(s.QuestionIDs)
	return s
}

func sameSet(a, b []string) bool {
	as, bs := slices.Clone(a), slices.Clone(b)
	slices.Sort(as)
	slices.Sort(bs)
	return slices.Equal(slices.Compact(as), slices.Compact(bs))
}
