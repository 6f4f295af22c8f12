package validation

import (
	"errors"
	"testing"
)

var textSchema = map[string]any{
	"type": "object",
	"properties": map[string]any{
		"body": map[string]any{"type": "string"},
	},
	"required": []any{"body"},
}

func TestValidatorAcceptsMatchingPayload(t *testing.T) {
	v := NewValidator()
	if err := v.Register("TextPlugin", textSchema); err != nil {
		t.Fatalf("register: %v", err)
	}
	if err := v.Validate("TextPlugin", map[string]any{"body": "hello"}); err != nil {
		t.Fatalf("expected payload to validate, got %v", err)
	}
}

func TestValidatorReportsIssues(t *testing.T) {
	v := NewValidator()
	if err := v.Register("TextPlugin", textSchema); err != nil {
		t.Fatalf("register: %v", err)
	}
	err := v.Validate("TextPlugin", map[string]any{"body": 42})
	if !errors.Is(err, ErrSchemaValidation) {
		t.Fatalf("expected ErrSchemaValidation, got %v", err)
	}
	if len(Issues(err)) == 0 {
		t.Fatal("expected at least one issue")
	}
}

func TestValidatorUnknownNameAcceptsAnything(t *testing.T) {
	if err := NewValidator().Validate("Unknown", map[string]any{"x": 1}); err != nil {
		t.Fatalf("expected nil error, got %v", err)
	}
}

func TestWithoutRequiredAllowsEmptyPayload(t *testing.T) {
	if err := ValidatePayload(textSchema, map[string]any{}); err == nil {
		t.Fatal("expected required body to fail")
	}
	if err := ValidatePayload(WithoutRequired(textSchema), map[string]any{}); err != nil {
		t.Fatalf("expected relaxed schema to pass, got %v", err)
	}
	if _, ok := textSchema["required"]; !ok {
		t.Fatal("expected original schema to keep required")
	}
}

func TestRegisterRejectsInvalidSchema(t *testing.T) {
	err := NewValidator().Register("Broken", map[string]any{"type": 12})
	if !errors.Is(err, ErrSchemaInvalid) {
		t.Fatalf("expected ErrSchemaInvalid, got %v", err)
	}
}
