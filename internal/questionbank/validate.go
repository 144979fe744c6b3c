package questionbank

import (
	"bytes"
	"embed"
	"fmt"
	"strings"
	"sync"

	"github.com/santhosh-tekuri/jsonschema/v6"
)

//go:embed schemas/*.json
var schemaFS embed.FS

const (
	questionSchema  = "question"
	disclosedSchema = "disclosed"
)

var compileSchemas = sync.OnceValues(func() (map[string]*jsonschema.Schema, error) {
	c := jsonschema.NewCompiler()
	out := make(map[string]*jsonschema.Schema)
	for _, name := range []string{questionSchema, disclosedSchema} {
		raw, err := schemaFS.ReadFile("schemas/" + name + ".json")
		if err != nil {
			return nil, err
		}
		doc, err := jsonschema.UnmarshalJSON(bytes.NewReader(raw))
		if err != nil {
			return nil, fmt.Errorf("parse schema %s: %w", name, err)
		}
		url := fmt.Sprintf("schema://questionbank/%s.json", name)
		if err := c.AddResource(url, doc); err != nil {
			return nil, fmt.Errorf("add resource %s: %w", name, err)
		}
		compiled, err := c.Compile(url)
		if err != nil {
			return nil, fmt.Errorf("compile %s: %w", name, err)
		}
		out[name] = compiled
	}
	return out, nil
})

// validateShape checks raw against the named schema.
func validateShape(name, questionID string, raw []byte) error {
	schemas, err := compileSchemas()
	if err != nil {
		return fmt.Errorf("load schemas: %w", err)
	}
	doc, err := jsonschema.UnmarshalJSON(bytes.NewReader(raw))
	if err != nil {
		return &ValidationError{
			Validator:  "json",
			QuestionID: questionID,
			Message:    "malformed body",
			Err:        err,
		}
	}
	if err := schemas[name].Validate(doc); err != nil {
		return &ValidationError{
			Validator:  "schema",
			QuestionID: questionID,
			Message:    "body does not match the " + name + " shape",
			Err:        err,
		}
	}
	return nil
}

// CheckStructure rejects questions that cannot be answered or scored: an
// answer key with no non-blank entry, or a multiple choice question
// without options.
func CheckStructure(q *Question) *ValidationError {
	if !hasAnswerKey(q.CorrectAnswer) {
		return &ValidationError{
			Validator:  "structural",
			QuestionID: q.QuestionID,
			Message:    "correct_answer is empty",
		}
	}
	if !q.IsFreeResponse() && len(q.Options) == 0 {
		return &ValidationError{
			Validator:  "structural",
			QuestionID: q.QuestionID,
			Message:    "multiple choice question has no answer options",
		}
	}
	return nil
}

func hasAnswerKey(answers []string) bool {
	for _, a := range answers {
		if strings.TrimSpace(a) != "" {
			return true
		}
	}
	return false
}
