package tutor

import "github.com/abhisek/satprep/internal/questionbank"

// Input is everything the tutor needs to explain one checked question.
type Input struct {
	Question *questionbank.Question

	// Answer is what the student submitted. Empty means they have not
	// answered, in which case the walkthrough is generic.
	Answer    string
	TimeMs    int64
	IsCorrect bool
}

// Explanation is the tutor's walkthrough of a question.
type Explanation struct {
	QuestionID  string   `json:"questionId"`
	Explanation string   `json:"explanation"`
	Steps       []string `json:"steps"`
	KeyConcept  string   `json:"keyConcept"`
	Mistake     string   `json:"mistake,omitempty"`
	Confidence  string   `json:"confidence,omitempty"`
}
