package placeholders

import (
	"errors"
	"fmt"
	"maps"
	"time"

	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

var (
	ErrSlotRequired       = errors.New("placeholders: slot is required")
	ErrLanguageRequired   = errors.New("placeholders: language is required")
	ErrPluginTypeRequired = errors.New("placeholders: plugin type is required")
	ErrPluginTypeUnknown  = errors.New("placeholders: plugin type is not registered")
	ErrPluginTypeExists   = errors.New("placeholders: plugin type already registered")
	ErrParentMismatch     = errors.New("placeholders: parent plugin must live in the target placeholder and language")
	ErrChildNotAllowed    = errors.New("placeholders: plugin type is not allowed at this position")
	ErrSourceMismatch     = errors.New("placeholders: source plugin is not in the source placeholder and language")
	ErrPluginCycle        = errors.New("placeholders: plugin cannot be moved below itself")
	ErrPluginLimitReached = errors.New("placeholders: plugin limit reached")
	ErrSameLanguage       = errors.New("placeholders: source and target language must differ")
)

// Placeholder is a named slot. Placeholders without a page are clipboards
// or the targets of reference plugins.
type Placeholder struct {
	bun.BaseModel `bun:"table:placeholders,alias:ph"`

	ID        uuid.UUID  `bun:",pk,type:uuid" json:"id"`
	Slot      string     `bun:"slot,notnull" json:"slot"`
	PageID    *uuid.UUID `bun:"page_id,type:uuid" json:"page_id,omitempty"`
	CreatedAt time.Time  `bun:"created_at,nullzero,default:current_timestamp" json:"created_at"`
}

// Detached reports whether the placeholder belongs to no page.
func (p *Placeholder) Detached() bool {
	return p.PageID == nil || *p.PageID == uuid.Nil
}

// Plugin is a typed content node inside a placeholder. Siblings share
// placeholder, language and parent and are ordered by Position from zero.
type Plugin struct {
	bun.BaseModel `bun:"table:plugins,alias:pl"`

	ID                     uuid.UUID      `bun:",pk,type:uuid" json:"id"`
	PlaceholderID          uuid.UUID      `bun:"placeholder_id,notnull,type:uuid" json:"placeholder_id"`
	ParentID               *uuid.UUID     `bun:"parent_id,type:uuid" json:"parent_id,omitempty"`
	Position               int            `bun:"position,notnull" json:"position"`
	Language               string         `bun:"language,notnull" json:"language"`
	PluginType             string         `bun:"plugin_type,notnull" json:"plugin_type"`
	Data                   map[string]any `bun:"data,type:jsonb" json:"data,omitempty"`
	ReferencePlaceholderID *uuid.UUID     `bun:"reference_placeholder_id,type:uuid" json:"reference_placeholder_id,omitempty"`
	CreatedAt              time.Time      `bun:"created_at,nullzero,default:current_timestamp" json:"created_at"`
	UpdatedAt              time.Time      `bun:"updated_at,nullzero,default:current_timestamp" json:"updated_at"`
}

// Node is a plugin with its ordered children.
type Node struct {
	Plugin   *Plugin `json:"plugin"`
	Depth    int     `json:"depth"`
	Children []*Node `json:"children,omitempty"`
}

// NotFoundError is returned when a placeholder or plugin does not exist.
type NotFoundError struct {
	Resource string
	Key      string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s %q not found", e.Resource, e.Key)
}

// LimitError reports a slot limit violation. PluginType is empty when the
// slot wide limit was hit.
type LimitError struct {
	Slot       string
	PluginType string
	Limit      int
}

func (e *LimitError) Error() string {
	if e.PluginType == "" {
		return fmt.Sprintf("This placeholder already has the maximum number of plugins (%d).", e.Limit)
	}
	return fmt.Sprintf("This placeholder already has the maximum number (%d) of allowed %s plugins.", e.Limit, e.PluginType)
}

func (e *LimitError) Unwrap() error {
	return ErrPluginLimitReached
}

func clonePlaceholder(src *Placeholder) *Placeholder {
	if src == nil {
		return nil
	}
	out := *src
	out.PageID = cloneUUID(src.PageID)
	return &out
}

func clonePlugin(src *Plugin) *Plugin {
	if src == nil {
		return nil
	}
	out := *src
	out.ParentID = cloneUUID(src.ParentID)
	out.ReferencePlaceholderID = cloneUUID(src.ReferencePlaceholderID)
	out.Data = maps.Clone(src.Data)
	return &out
}

func cloneUUID(src *uuid.UUID) *uuid.UUID {
	if src == nil {
		return nil
	}
	v := *src
	return &v
}

func sameParent(a, b *uuid.UUID) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return *a == *b
}
