package llm

import (
	"encoding/json"
	"errors"
	"testing"
)

func explanationTestSchema() *Schema {
	return &Schema{
		Name:        "test-explanation",
		Description: "An explanation",
		Definition: map[string]any{
			"type": "object",
			"properties": map[string]any{
				"explanation": map[string]any{"type": "string"},
				"steps":       map[string]any{"type": "array", "items": map[string]any{"type": "string"}},
				"keyConcept":  map[string]any{"type": "string"},
				"confidence":  map[string]any{"type": "string", "enum": []any{"low", "medium", "high"}},
			},
			"required": []any{"explanation", "steps", "keyConcept"},
		},
	}
}

func TestValidateOutput(t *testing.T) {
	tests := []struct {
		name    string
		raw     string
		wantErr bool
	}{
		{"valid", `{"explanation":"a","steps":["b"],"keyConcept":"c"}`, false},
		{"optional enum", `{"explanation":"a","steps":[],"keyConcept":"c","confidence":"high"}`, false},
		{"missing required", `{"explanation":"a"}`, true},
		{"wrong type", `{"explanation":"a","steps":"b","keyConcept":"c"}`, true},
		{"bad enum", `{"explanation":"a","steps":[],"keyConcept":"c","confidence":"total"}`, true},
		{"not json", `explanation: a`, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := validateOutput(explanationTestSchema(), json.RawMessage(tt.raw))
			if !tt.wantErr {
				if err != nil {
					t.Fatalf("unexpected error: %v", err)
				}
				return
			}
			var inv *InvalidOutputError
			if !errors.As(err, &inv) {
				t.Fatalf("expected InvalidOutputError, got %T (%v)", err, err)
			}
			if string(inv.Content) != tt.raw {
				t.Fatalf("content not preserved: %s", inv.Content)
			}
		})
	}
}

func TestDecode(t *testing.T) {
	resp := &Response{Content: json.RawMessage(`{"keyConcept":"slope"}`)}
	v, err := Decode[struct {
		KeyConcept string `json:"keyConcept"`
	}](resp)
	if err != nil || v.KeyConcept != "slope" {
		t.Fatalf("Decode = %+v, %v", v, err)
	}

	_, err = Decode[int](resp)
	var inv *InvalidOutputError
	if !errors.As(err, &inv) {
		t.Fatalf("expected InvalidOutputError, got %T", err)
	}
}
