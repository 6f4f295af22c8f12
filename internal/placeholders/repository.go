package placeholders

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Repository persists placeholders and their plugins.
type Repository interface {
	CreatePlaceholder(ctx context.Context, placeholder *Placeholder) (*Placeholder, error)
	GetPlaceholder(ctx context.Context, id uuid.UUID) (*Placeholder, error)
	ListForPage(ctx context.Context, pageID uuid.UUID) ([]*Placeholder, error)
	// DeletePlaceholders removes the placeholders and every plugin in them.
	DeletePlaceholders(ctx context.Context, ids []uuid.UUID) error

	CreatePlugin(ctx context.Context, plugin *Plugin) (*Plugin, error)
	GetPlugin(ctx context.Context, id uuid.UUID) (*Plugin, error)
	UpdatePlugin(ctx context.Context, plugin *Plugin) (*Plugin, error)
	// ListPlugins returns the plugins of a placeholder, all languages when
	// language is empty.
	ListPlugins(ctx context.Context, placeholderID uuid.UUID, language string) ([]*Plugin, error)
	DeletePlugins(ctx context.Context, ids []uuid.UUID) error
}

// MemoryRepository is an in-memory Repository.
type MemoryRepository struct {
	mu           sync.RWMutex
	placeholders map[uuid.UUID]*Placeholder
	plugins      map[uuid.UUID]*Plugin
}

func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{
		placeholders: make(map[uuid.UUID]*Placeholder),
		plugins:      make(map[uuid.UUID]*Plugin),
	}
}

func (m *MemoryRepository) CreatePlaceholder(_ context.Context, placeholder *Placeholder) (*Placeholder, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	rec := clonePlaceholder(placeholder)
	if rec.ID == uuid.Nil {
		rec.ID = uuid.New()
	}
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = time.Now().UTC()
	}
	m.placeholders[rec.ID] = rec
	return clonePlaceholder(rec), nil
}

func (m *MemoryRepository) GetPlaceholder(_ context.Context, id uuid.UUID) (*Placeholder, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	rec, ok := m.placeholders[id]
	if !ok {
		return nil, &NotFoundError{Resource: "placeholder", Key: id.String()}
	}
	return clonePlaceholder(rec), nil
}

func (m *MemoryRepository) ListForPage(_ context.Context, pageID uuid.UUID) ([]*Placeholder, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []*Placeholder
	for _, rec := range m.placeholders {
		if rec.PageID != nil && *rec.PageID == pageID {
			out = append(out, clonePlaceholder(rec))
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Slot == out[j].Slot {
			return out[i].ID.String() < out[j].ID.String()
		}
		return out[i].Slot < out[j].Slot
	})
	return out, nil
}

func (m *MemoryRepository) DeletePlaceholders(_ context.Context, ids []uuid.UUID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	drop := make(map[uuid.UUID]struct{}, len(ids))
	for _, id := range ids {
		drop[id] = struct{}{}
		delete(m.placeholders, id)
	}
	for id, plugin := range m.plugins {
		if _, ok := drop[plugin.PlaceholderID]; ok {
			delete(m.plugins, id)
		}
	}
	return nil
}

func (m *MemoryRepository) CreatePlugin(_ context.Context, plugin *Plugin) (*Plugin, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	rec := clonePlugin(plugin)
	if rec.ID == uuid.Nil {
		rec.ID = uuid.New()
	}
	now := time.Now().UTC()
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = now
	}
	rec.UpdatedAt = now
	m.plugins[rec.ID] = rec
	return clonePlugin(rec), nil
}

func (m *MemoryRepository) GetPlugin(_ context.Context, id uuid.UUID) (*Plugin, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	rec, ok := m.plugins[id]
	if !ok {
		return nil, &NotFoundError{Resource: "plugin", Key: id.String()}
	}
	return clonePlugin(rec), nil
}

func (m *MemoryRepository) UpdatePlugin(_ context.Context, plugin *Plugin) (*Plugin, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.plugins[plugin.ID]; !ok {
		return nil, &NotFoundError{Resource: "plugin", Key: plugin.ID.String()}
	}
	rec := clonePlugin(plugin)
	rec.UpdatedAt = time.Now().UTC()
	m.plugins[rec.ID] = rec
	return clonePlugin(rec), nil
}

func (m *MemoryRepository) ListPlugins(_ context.Context, placeholderID uuid.UUID, language string) ([]*Plugin, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []*Plugin
	for _, rec := range m.plugins {
		if rec.PlaceholderID != placeholderID {
			continue
		}
		if language != "" && rec.Language != language {
			continue
		}
		out = append(out, clonePlugin(rec))
	}
	sortPlugins(out)
	return out, nil
}

func (m *MemoryRepository) DeletePlugins(_ context.Context, ids []uuid.UUID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, id := range ids {
		delete(m.plugins, id)
	}
	return nil
}

func sortPlugins(plugins []*Plugin) {
	sort.SliceStable(plugins, func(i, j int) bool {
		if plugins[i].Position != plugins[j].Position {
			return plugins[i].Position < plugins[j].Position
		}
		return plugins[i].CreatedAt.Before(plugins[j].CreatedAt)
	})
}
