package permissions

import (
	"context"
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"
)

// MemoryGrantRepository keeps grants in process memory.
type MemoryGrantRepository struct {
	mu      sync.RWMutex
	pages   map[uuid.UUID]*PagePermission
	globals map[uuid.UUID]*GlobalPagePermission
	order   []uuid.UUID
}

func NewMemoryGrantRepository() *MemoryGrantRepository {
	return &MemoryGrantRepository{
		pages:   map[uuid.UUID]*PagePermission{},
		globals: map[uuid.UUID]*GlobalPagePermission{},
	}
}

func (m *MemoryGrantRepository) CreatePagePermission(_ context.Context, record *PagePermission) (*PagePermission, error) {
	if err := validatePagePermission(record); err != nil {
		return nil, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	copied := *record
	if copied.ID == uuid.Nil {
		copied.ID = uuid.New()
	}
	stamp(&copied.CreatedAt, &copied.UpdatedAt)
	m.pages[copied.ID] = &copied
	m.order = append(m.order, copied.ID)
	out := copied
	return &out, nil
}

func (m *MemoryGrantRepository) UpdatePagePermission(_ context.Context, record *PagePermission) (*PagePermission, error) {
	if err := validatePagePermission(record); err != nil {
		return nil, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	current, ok := m.pages[record.ID]
	if !ok {
		return nil, &NotFoundError{Resource: "page_permission", Key: record.ID.String()}
	}
	updated := *current
	updated.Capabilities = record.Capabilities
	updated.GrantOn = record.GrantOn
	updated.UpdatedAt = time.Now().UTC()
	m.pages[record.ID] = &updated
	out := updated
	return &out, nil
}

func (m *MemoryGrantRepository) ListPagePermissionsForUser(_ context.Context, userID uuid.UUID) ([]*PagePermission, error) {
	return m.filterPages(func(p *PagePermission) bool { return p.UserID == userID }), nil
}

func (m *MemoryGrantRepository) ListPagePermissionsForPage(_ context.Context, pageID uuid.UUID) ([]*PagePermission, error) {
	return m.filterPages(func(p *PagePermission) bool { return p.PageID == pageID }), nil
}

func (m *MemoryGrantRepository) DeletePagePermissionsForPage(_ context.Context, pageID uuid.UUID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for id, record := range m.pages {
		if record.PageID == pageID {
			delete(m.pages, id)
		}
	}
	m.order = slices.DeleteFunc(m.order, func(id uuid.UUID) bool {
		_, ok := m.pages[id]
		_, global := m.globals[id]
		return !ok && !global
	})
	return nil
}

func (m *MemoryGrantRepository) CreateGlobalPermission(_ context.Context, record *GlobalPagePermission) (*GlobalPagePermission, error) {
	if record.UserID == uuid.Nil {
		return nil, ErrGrantUserRequired
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	copied := *record
	copied.SiteIDs = slices.Clone(record.SiteIDs)
	if copied.ID == uuid.Nil {
		copied.ID = uuid.New()
	}
	stamp(&copied.CreatedAt, &copied.UpdatedAt)
	m.globals[copied.ID] = &copied
	m.order = append(m.order, copied.ID)
	out := copied
	out.SiteIDs = slices.Clone(copied.SiteIDs)
	return &out, nil
}

func (m *MemoryGrantRepository) ListGlobalPermissionsForUser(_ context.Context, userID uuid.UUID) ([]*GlobalPagePermission, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []*GlobalPagePermission
	for _, id := range m.order {
		record, ok := m.globals[id]
		if !ok || record.UserID != userID {
			continue
		}
		copied := *record
		copied.SiteIDs = slices.Clone(record.SiteIDs)
		out = append(out, &copied)
	}
	return out, nil
}

func (m *MemoryGrantRepository) filterPages(match func(*PagePermission) bool) []*PagePermission {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []*PagePermission
	for _, id := range m.order {
		record, ok := m.pages[id]
		if !ok || !match(record) {
			continue
		}
		copied := *record
		out = append(out, &copied)
	}
	return out
}

func stamp(created, updated *time.Time) {
	now := time.Now().UTC()
	if created.IsZero() {
		*created = now
	}
	if updated.IsZero() {
		*updated = now
	}
}
