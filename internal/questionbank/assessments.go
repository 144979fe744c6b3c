package questionbank

import (
	"fmt"
	"strings"
)

// Assessment event ids understood by the filter endpoint.
var assessmentIDs = map[string]int{
	"SAT":        99,
	"PSAT/NMSQT": 100,
	"PSAT":       100,
	"PSAT 8/9":   102,
	"PSAT89":     102,
}

// Subject ids understood by the filter endpoint.
var subjectIDs = map[string]int{
	"math":            2,
	"reading-writing": 1,
	"english":         1,
}

// AssessmentID resolves an assessment name such as "SAT" to the bank's id.
func AssessmentID(name string) (int, error) {
	id, ok := assessmentIDs[strings.ToUpper(strings.TrimSpace(name))]
	if !ok {
		return 0, fmt.Errorf("unknown assessment %q", name)
	}
	return id, nil
}

// SubjectID resolves a subject name such as "math" to the bank's test id.
func SubjectID(name string) (int, error) {
	id, ok := subjectIDs[strings.ToLower(strings.TrimSpace(name))]
	if !ok {
		return 0, fmt.Errorf("unknown subject %q", name)
	}
	return id, nil
}

// Assessments lists the canonical assessment names.
func Assessments() []string {
	return []string{"SAT", "PSAT/NMSQT", "PSAT 8/9"}
}

// Subjects lists the canonical subject names.
func Subjects() []string {
	return []string{"math", "reading-writing"}
}
