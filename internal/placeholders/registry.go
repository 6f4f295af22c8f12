package placeholders

import (
	"fmt"
	"slices"
	"sort"
	"strings"
	"sync"

	"github.com/goliatone/go-cms-admin/internal/validation"
)

const partialSuffix = ".partial"

// Action names a plugin operation a type may need a page reload for.
type Action string

const (
	ActionAdd    Action = "add"
	ActionEdit   Action = "edit"
	ActionMove   Action = "move"
	ActionDelete Action = "delete"
)

// Built in plugin type names.
const (
	TypeText        = "TextPlugin"
	TypeMultiColumn = "MultiColumnPlugin"
	TypeColumn      = "ColumnPlugin"
	TypePlaceholder = "PlaceholderPlugin"
)

// Type describes a plugin kind. Model is the resource name used for model
// permissions (text:create). Schema validates plugin data on edit.
type Type struct {
	Name          string
	Model         string
	Schema        map[string]any
	AllowChildren bool
	ChildTypes    []string
	ParentTypes   []string
	ReloadOn      []Action
	Reference     bool
}

// RequiresReload reports whether the editor should reload after action.
func (t Type) RequiresReload(action Action) bool {
	return slices.Contains(t.ReloadOn, action)
}

// Accepts reports whether a child of type child may be nested below t.
func (t Type) Accepts(child string) bool {
	if !t.AllowChildren {
		return false
	}
	return len(t.ChildTypes) == 0 || slices.Contains(t.ChildTypes, child)
}

// Registry holds the plugin types known to the admin.
type Registry struct {
	mu        sync.RWMutex
	types     map[string]Type
	validator *validation.Validator
}

func NewRegistry() *Registry {
	return &Registry{
		types:     make(map[string]Type),
		validator: validation.NewValidator(),
	}
}

// DefaultRegistry returns a registry with text, column and reference types.
func DefaultRegistry() *Registry {
	r := NewRegistry()
	for _, t := range defaultTypes() {
		if err := r.Register(t); err != nil {
			panic(err)
		}
	}
	return r
}

func (r *Registry) Register(t Type) error {
	t.Name = strings.TrimSpace(t.Name)
	if t.Name == "" {
		return ErrPluginTypeRequired
	}
	if strings.TrimSpace(t.Model) == "" {
		t.Model = strings.ToLower(strings.TrimSuffix(t.Name, "Plugin"))
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.types[t.Name]; exists {
		return fmt.Errorf("%w: %s", ErrPluginTypeExists, t.Name)
	}
	if t.Schema != nil {
		if err := r.validator.Register(t.Name, t.Schema); err != nil {
			return err
		}
		if err := r.validator.Register(t.Name+partialSuffix, validation.WithoutRequired(t.Schema)); err != nil {
			return err
		}
	}
	r.types[t.Name] = t
	return nil
}

func (r *Registry) Lookup(name string) (Type, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	t, ok := r.types[strings.TrimSpace(name)]
	return t, ok
}

// Names lists registered types alphabetically.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]string, 0, len(r.types))
	for name := range r.types {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}

// Validate checks data against the schema registered for name.
func (r *Registry) Validate(name string, data map[string]any) error {
	t, ok := r.Lookup(name)
	if !ok {
		return fmt.Errorf("%w: %s", ErrPluginTypeUnknown, name)
	}
	if t.Schema == nil {
		return nil
	}
	return r.validator.Validate(t.Name, data)
}

// ValidatePartial checks data without enforcing required properties. New
// plugins may start out incomplete.
func (r *Registry) ValidatePartial(name string, data map[string]any) error {
	t, ok := r.Lookup(name)
	if !ok {
		return fmt.Errorf("%w: %s", ErrPluginTypeUnknown, name)
	}
	if t.Schema == nil {
		return nil
	}
	return r.validator.Validate(t.Name+partialSuffix, data)
}

func defaultTypes() []Type {
	return []Type{
		{
			Name:  TypeText,
			Model: "text",
			Schema: map[string]any{
				"type": "object",
				"properties": map[string]any{
					"body": map[string]any{"type": "string"},
				},
				"required": []any{"body"},
			},
		},
		{
			Name:          TypeMultiColumn,
			Model:         "multicolumns",
			AllowChildren: true,
			ChildTypes:    []string{TypeColumn},
			ReloadOn:      []Action{ActionMove, ActionDelete},
		},
		{
			Name:          TypeColumn,
			Model:         "column",
			AllowChildren: true,
			ParentTypes:   []string{TypeMultiColumn},
			Schema: map[string]any{
				"type": "object",
				"properties": map[string]any{
					"width": map[string]any{"type": "string", "pattern": "^[0-9]{1,3}%$"},
				},
			},
		},
		{
			Name:      TypePlaceholder,
			Model:     "placeholder_reference",
			Reference: true,
			ReloadOn:  []Action{ActionAdd, ActionMove, ActionDelete},
			Schema: map[string]any{
				"type": "object",
				"properties": map[string]any{
					"name": map[string]any{"type": "string"},
				},
			},
		},
	}
}
