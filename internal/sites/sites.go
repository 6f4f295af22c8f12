package sites

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"sort"
	"strings"
	"sync"
	"time"

	goerrors "github.com/goliatone/go-errors"
	repository "github.com/goliatone/go-repository-bun"
	"github.com/goliatone/go-repository-cache/cache"
	repositorycache "github.com/goliatone/go-repository-cache/repositorycache"
	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

// Site is a domain served by the CMS. Pages belong to exactly one site.
type Site struct {
	bun.BaseModel `bun:"table:sites,alias:s"`

	ID        uuid.UUID `bun:",pk,type:uuid" json:"id"`
	Domain    string    `bun:"domain,notnull,unique" json:"domain"`
	Name      string    `bun:"name,notnull" json:"name"`
	CreatedAt time.Time `bun:"created_at,nullzero,default:current_timestamp" json:"created_at"`
}

var ErrDomainRequired = errors.New("sites: domain required")

type NotFoundError struct {
	Key string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("site %q not found", e.Key)
}

// AbsoluteURL joins the site domain and a path into an http URL.
func AbsoluteURL(domain, path string) string {
	u := url.URL{Scheme: "http", Host: strings.TrimSpace(domain), Path: "/" + strings.TrimLeft(path, "/")}
	return u.String()
}

type Repository interface {
	Create(ctx context.Context, site *Site) (*Site, error)
	GetByID(ctx context.Context, id uuid.UUID) (*Site, error)
	List(ctx context.Context) ([]*Site, error)
}

type MemoryRepository struct {
	mu    sync.RWMutex
	sites map[uuid.UUID]*Site
}

func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{sites: map[uuid.UUID]*Site{}}
}

func (m *MemoryRepository) Create(_ context.Context, site *Site) (*Site, error) {
	if strings.TrimSpace(site.Domain) == "" {
		return nil, ErrDomainRequired
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	copied := *site
	if copied.ID == uuid.Nil {
		copied.ID = uuid.New()
	}
	m.sites[copied.ID] = &copied
	out := copied
	return &out, nil
}

func (m *MemoryRepository) GetByID(_ context.Context, id uuid.UUID) (*Site, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	site, ok := m.sites[id]
	if !ok {
		return nil, &NotFoundError{Key: id.String()}
	}
	out := *site
	return &out, nil
}

func (m *MemoryRepository) List(_ context.Context) ([]*Site, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]*Site, 0, len(m.sites))
	for _, site := range m.sites {
		copied := *site
		out = append(out, &copied)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Domain < out[j].Domain })
	return out, nil
}

type BunRepository struct {
	repo repository.Repository[*Site]
}

func NewBunRepository(db *bun.DB) *BunRepository {
	return NewBunRepositoryWithCache(db, nil, nil)
}

func NewBunRepositoryWithCache(db *bun.DB, cacheService cache.CacheService, keySerializer cache.KeySerializer) *BunRepository {
	base := repository.MustNewRepository(db, repository.ModelHandlers[*Site]{
		NewRecord:          func() *Site { return &Site{} },
		GetID:              func(s *Site) uuid.UUID { return s.ID },
		SetID:              func(s *Site, id uuid.UUID) { s.ID = id },
		GetIdentifier:      func() string { return "domain" },
		GetIdentifierValue: func(s *Site) string { return s.Domain },
	})
	if cacheService != nil && keySerializer != nil {
		base = repositorycache.New(base, cacheService, keySerializer)
	}
	return &BunRepository{repo: base}
}

func (r *BunRepository) Create(ctx context.Context, site *Site) (*Site, error) {
	if strings.TrimSpace(site.Domain) == "" {
		return nil, ErrDomainRequired
	}
	if site.ID == uuid.Nil {
		site.ID = uuid.New()
	}
	return r.repo.Create(ctx, site)
}

func (r *BunRepository) GetByID(ctx context.Context, id uuid.UUID) (*Site, error) {
	site, err := r.repo.GetByID(ctx, id.String())
	if err != nil {
		if goerrors.IsCategory(err, repository.CategoryDatabaseNotFound) {
			return nil, &NotFoundError{Key: id.String()}
		}
		return nil, fmt.Errorf("site repository error: %w", err)
	}
	return site, nil
}

func (r *BunRepository) List(ctx context.Context) ([]*Site, error) {
	records, _, err := r.repo.List(ctx, repository.SelectRawProcessor(func(q *bun.SelectQuery) *bun.SelectQuery {
		return q.OrderExpr("?TableAlias.domain ASC")
	}))
	return records, err
}
