package tutor

import "github.com/abhisek/satprep/internal/llm"

// ExplanationSchema defines the JSON schema for a question walkthrough.
var ExplanationSchema = &llm.Schema{
	Name:        "question-explanation",
	Description: "Walkthrough of an SAT/PSAT question for a student who just answered it",
	Definition: map[string]any{
		"type": "object",
		"properties": map[string]any{
			"explanation": map[string]any{
				"type":        "string",
				"description": "2-4 sentence explanation of why the correct answer is right",
			},
			"steps": map[string]any{
				"type":        "array",
				"items":       map[string]any{"type": "string"},
				"description": "Ordered solution steps, one short sentence each",
			},
			"keyConcept": map[string]any{
				"type":        "string",
				"description": "The concept or rule the question tests (3-8 words)",
			},
			"mistake": map[string]any{
				"type":        "string",
				"description": "What likely led to the student's answer, empty when they were right",
			},
			"confidence": map[string]any{
				"type": "string",
				"enum": []any{"low", "medium", "high"},
			},
		},
		"required":             []any{"explanation", "steps", "keyConcept"},
		"additionalProperties": false,
	},
}
