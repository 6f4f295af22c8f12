package pages

import (
	"context"
	"strings"
	"sync"

	"github.com/google/uuid"
)

// Repository persists pages and their titles.
type Repository interface {
	CreatePage(ctx context.Context, page *Page) (*Page, error)
	GetPage(ctx context.Context, id uuid.UUID) (*Page, error)
	UpdatePage(ctx context.Context, page *Page) (*Page, error)
	DeletePage(ctx context.Context, id uuid.UUID) error
	// ListPages returns the drafts of siteID ordered by position.
	ListPages(ctx context.Context, siteID uuid.UUID) ([]*Page, error)

	CreateTitle(ctx context.Context, title *Title) (*Title, error)
	GetTitle(ctx context.Context, pageID uuid.UUID, language string) (*Title, error)
	UpdateTitle(ctx context.Context, title *Title) (*Title, error)
	DeleteTitle(ctx context.Context, id uuid.UUID) error
	ListTitles(ctx context.Context, pageID uuid.UUID) ([]*Title, error)
}

type MemoryRepository struct {
	mu     sync.RWMutex
	pages  map[uuid.UUID]*Page
	titles map[uuid.UUID]*Title
}

func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{
		pages:  make(map[uuid.UUID]*Page),
		titles: make(map[uuid.UUID]*Title),
	}
}

func (m *MemoryRepository) CreatePage(_ context.Context, page *Page) (*Page, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	record := clonePage(page)
	if record.ID == uuid.Nil {
		record.ID = uuid.New()
	}
	if record.LineageID == uuid.Nil {
		record.LineageID = record.ID
	}
	m.pages[record.ID] = record
	return clonePage(record), nil
}

func (m *MemoryRepository) GetPage(_ context.Context, id uuid.UUID) (*Page, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	page, ok := m.pages[id]
	if !ok {
		return nil, &NotFoundError{Resource: "page", Key: id.String()}
	}
	return clonePage(page), nil
}

func (m *MemoryRepository) UpdatePage(_ context.Context, page *Page) (*Page, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.pages[page.ID]; !ok {
		return nil, &NotFoundError{Resource: "page", Key: page.ID.String()}
	}
	record := clonePage(page)
	m.pages[record.ID] = record
	return clonePage(record), nil
}

func (m *MemoryRepository) DeletePage(_ context.Context, id uuid.UUID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.pages, id)
	return nil
}

func (m *MemoryRepository) ListPages(_ context.Context, siteID uuid.UUID) ([]*Page, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]*Page, 0, len(m.pages))
	for _, page := range m.pages {
		if page.PublisherIsDraft && page.SiteID == siteID {
			out = append(out, clonePage(page))
		}
	}
	sortPages(out)
	return out, nil
}

func (m *MemoryRepository) CreateTitle(_ context.Context, title *Title) (*Title, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	record := cloneTitle(title)
	if record.ID == uuid.Nil {
		record.ID = uuid.New()
	}
	m.titles[record.ID] = record
	return cloneTitle(record), nil
}

func (m *MemoryRepository) GetTitle(_ context.Context, pageID uuid.UUID, language string) (*Title, error) {
	language = strings.TrimSpace(language)
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, title := range m.titles {
		if title.PageID == pageID && title.Language == language {
			return cloneTitle(title), nil
		}
	}
	return nil, &NotFoundError{Resource: "title", Key: pageID.String() + ":" + language}
}

func (m *MemoryRepository) UpdateTitle(_ context.Context, title *Title) (*Title, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.titles[title.ID]; !ok {
		return nil, &NotFoundError{Resource: "title", Key: title.ID.String()}
	}
	record := cloneTitle(title)
	m.titles[record.ID] = record
	return cloneTitle(record), nil
}

func (m *MemoryRepository) DeleteTitle(_ context.Context, id uuid.UUID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.titles, id)
	return nil
}

func (m *MemoryRepository) ListTitles(_ context.Context, pageID uuid.UUID) ([]*Title, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]*Title, 0, 2)
	for _, title := range m.titles {
		if title.PageID == pageID {
			out = append(out, cloneTitle(title))
		}
	}
	sortTitles(out)
	return out, nil
}
