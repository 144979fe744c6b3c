package session

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSelectionsEqualIgnoresOrder(t *testing.T) {
	a := testSelections()
	b := testSelections()
	b.Difficulties = []string{"M", "E"}
	a.Difficulties = []string{"E", "M", "E"}
	assert.True(t, a.Equal(b))

	b.Randomize = true
	assert.False(t, a.Equal(b))
}

func TestSelectionsValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Selections)
		err    string
	}{
		{name: "valid", mutate: func(*Selections) {}},
		{name: "assessment", mutate: func(s *Selections) { s.Assessment = "ACT" }, err: "assessment"},
		{name: "subject", mutate: func(s *Selections) { s.Subject = "history" }, err: "subject"},
		{name: "domains", mutate: func(s *Selections) { s.Domains = nil }, err: "domain"},
		{name: "skills", mutate: func(s *Selections) { s.Skills = nil }, err: "skill"},
		{name: "difficulty", mutate: func(s *Selections) { s.Difficulties = []string{"X"} }, err: "difficulty"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sel := testSelections()
			tt.mutate(&sel)
			err := sel.Validate()
			if tt.err == "" {
				assert.NoError(t, err)
				return
			}
			assert.ErrorContains(t, err, tt.err)
		})
	}
}

func TestSelectionsString(t *testing.T) {
	sel := Selections{
		Assessment:   "SAT",
		Subject:      "math",
		Domains:      []string{"H"},
		Skills:       []string{"H.A.1", "H.A.2"},
		Difficulties: []string{"E", "M"},
		Randomize:    true,
	}
	assert.Equal(t, "SAT math · H · H.A.1,H.A.2 · E,M · random", sel.String())

	sel.Difficulties = nil
	sel.Randomize = false
	sel.QuestionIDs = []string{"q1", "q2"}
	assert.Equal(t, "SAT math · H · 2 picked · any difficulty", sel.String())
}
