package placeholders

import (
	"errors"
	"testing"

	"github.com/goliatone/go-cms-admin/internal/validation"
)

func TestDefaultRegistryTypes(t *testing.T) {
	r := DefaultRegistry()
	names := r.Names()
	if len(names) != 4 {
		t.Fatalf("expected 4 default types, got %v", names)
	}
	text, ok := r.Lookup(TypeText)
	if !ok || text.Model != "text" {
		t.Fatalf("expected text model for TextPlugin, got %+v", text)
	}
	ref, _ := r.Lookup(TypePlaceholder)
	if !ref.Reference || ref.Model != "placeholder_reference" {
		t.Fatalf("expected reference type, got %+v", ref)
	}
	multi, _ := r.Lookup(TypeMultiColumn)
	if !multi.Accepts(TypeColumn) || multi.Accepts(TypeText) {
		t.Fatalf("expected multi column to accept only columns")
	}
	if !multi.RequiresReload(ActionMove) || text.RequiresReload(ActionMove) {
		t.Fatalf("unexpected reload flags")
	}
}

func TestRegistryRejectsDuplicates(t *testing.T) {
	r := DefaultRegistry()
	if err := r.Register(Type{Name: TypeText}); !errors.Is(err, ErrPluginTypeExists) {
		t.Fatalf("expected duplicate error, got %v", err)
	}
	if err := r.Register(Type{}); !errors.Is(err, ErrPluginTypeRequired) {
		t.Fatalf("expected name required, got %v", err)
	}
}

func TestRegistryDerivesModelFromName(t *testing.T) {
	r := NewRegistry()
	if err := r.Register(Type{Name: "LinkPlugin"}); err != nil {
		t.Fatalf("register: %v", err)
	}
	link, _ := r.Lookup("LinkPlugin")
	if link.Model != "link" {
		t.Fatalf("expected derived model link, got %q", link.Model)
	}
}

func TestRegistryValidation(t *testing.T) {
	r := DefaultRegistry()
	if err := r.Validate(TypeText, map[string]any{"body": "hi"}); err != nil {
		t.Fatalf("expected valid payload, got %v", err)
	}
	err := r.Validate(TypeText, map[string]any{})
	if !errors.Is(err, validation.ErrSchemaValidation) {
		t.Fatalf("expected schema validation error, got %v", err)
	}
	if err := r.ValidatePartial(TypeText, map[string]any{}); err != nil {
		t.Fatalf("expected partial validation to skip required, got %v", err)
	}
	if err := r.ValidatePartial(TypeText, map[string]any{"body": 3}); err == nil {
		t.Fatalf("expected type mismatch to fail partial validation")
	}
	if err := r.Validate(TypeColumn, map[string]any{"width": "abc"}); err == nil {
		t.Fatalf("expected width pattern to be enforced")
	}
	if err := r.Validate("Missing", nil); !errors.Is(err, ErrPluginTypeUnknown) {
		t.Fatalf("expected unknown type, got %v", err)
	}
}
