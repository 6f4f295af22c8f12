package permissions

import (
	"context"
	"fmt"
	"time"

	"github.com/goliatone/go-cms-admin/internal/transaction"
	repository "github.com/goliatone/go-repository-bun"
	"github.com/goliatone/go-repository-cache/cache"
	repositorycache "github.com/goliatone/go-repository-cache/repositorycache"
	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

// BunGrantRepository persists grants through go-repository-bun.
type BunGrantRepository struct {
	pages   repository.Repository[*PagePermission]
	globals repository.Repository[*GlobalPagePermission]
}

func NewBunGrantRepository(db *bun.DB) *BunGrantRepository {
	return NewBunGrantRepositoryWithCache(db, nil, nil)
}

// NewBunGrantRepositoryWithCache wraps the repositories with go-repository-cache when a cache service is supplied.
func NewBunGrantRepositoryWithCache(db *bun.DB, cacheService cache.CacheService, keySerializer cache.KeySerializer) *BunGrantRepository {
	pages := repository.MustNewRepository(db, repository.ModelHandlers[*PagePermission]{
		NewRecord:          func() *PagePermission { return &PagePermission{} },
		GetID:              func(p *PagePermission) uuid.UUID { return p.ID },
		SetID:              func(p *PagePermission, id uuid.UUID) { p.ID = id },
		GetIdentifier:      func() string { return "id" },
		GetIdentifierValue: func(p *PagePermission) string { return p.ID.String() },
	})
	globals := repository.MustNewRepository(db, repository.ModelHandlers[*GlobalPagePermission]{
		NewRecord:          func() *GlobalPagePermission { return &GlobalPagePermission{} },
		GetID:              func(p *GlobalPagePermission) uuid.UUID { return p.ID },
		SetID:              func(p *GlobalPagePermission, id uuid.UUID) { p.ID = id },
		GetIdentifier:      func() string { return "id" },
		GetIdentifierValue: func(p *GlobalPagePermission) string { return p.ID.String() },
	})
	return &BunGrantRepository{
		pages:   withCache(pages, cacheService, keySerializer),
		globals: withCache(globals, cacheService, keySerializer),
	}
}

func (r *BunGrantRepository) CreatePagePermission(ctx context.Context, record *PagePermission) (*PagePermission, error) {
	if err := validatePagePermission(record); err != nil {
		return nil, err
	}
	if record.ID == uuid.Nil {
		record.ID = uuid.New()
	}
	return transaction.Create(ctx, r.pages, record)
}

func (r *BunGrantRepository) UpdatePagePermission(ctx context.Context, record *PagePermission) (*PagePermission, error) {
	if err := validatePagePermission(record); err != nil {
		return nil, err
	}
	record.UpdatedAt = time.Now().UTC()
	return transaction.Update(ctx, r.pages, record,
		repository.UpdateByID(record.ID.String()),
		repository.UpdateColumns("capabilities", "grant_on", "updated_at"),
	)
}

func (r *BunGrantRepository) ListPagePermissionsForUser(ctx context.Context, userID uuid.UUID) ([]*PagePermission, error) {
	records, _, err := transaction.List(ctx, r.pages, repository.SelectRawProcessor(func(q *bun.SelectQuery) *bun.SelectQuery {
		return q.Where("?TableAlias.user_id = ?", userID).OrderExpr("?TableAlias.created_at ASC")
	}))
	return records, err
}

func (r *BunGrantRepository) ListPagePermissionsForPage(ctx context.Context, pageID uuid.UUID) ([]*PagePermission, error) {
	records, _, err := transaction.List(ctx, r.pages, repository.SelectRawProcessor(func(q *bun.SelectQuery) *bun.SelectQuery {
		return q.Where("?TableAlias.page_id = ?", pageID).OrderExpr("?TableAlias.created_at ASC")
	}))
	return records, err
}

func (r *BunGrantRepository) DeletePagePermissionsForPage(ctx context.Context, pageID uuid.UUID) error {
	records, err := r.ListPagePermissionsForPage(ctx, pageID)
	if err != nil {
		return err
	}
	for _, record := range records {
		if err := transaction.Delete(ctx, r.pages, record); err != nil {
			return fmt.Errorf("delete page permission %s: %w", record.ID, err)
		}
	}
	return nil
}

func (r *BunGrantRepository) CreateGlobalPermission(ctx context.Context, record *GlobalPagePermission) (*GlobalPagePermission, error) {
	if record.UserID == uuid.Nil {
		return nil, ErrGrantUserRequired
	}
	if record.ID == uuid.Nil {
		record.ID = uuid.New()
	}
	return transaction.Create(ctx, r.globals, record)
}

func (r *BunGrantRepository) ListGlobalPermissionsForUser(ctx context.Context, userID uuid.UUID) ([]*GlobalPagePermission, error) {
	records, _, err := transaction.List(ctx, r.globals, repository.SelectRawProcessor(func(q *bun.SelectQuery) *bun.SelectQuery {
		return q.Where("?TableAlias.user_id = ?", userID).OrderExpr("?TableAlias.created_at ASC")
	}))
	return records, err
}

func withCache[T any](base repository.Repository[T], cacheService cache.CacheService, keySerializer cache.KeySerializer) repository.Repository[T] {
	if cacheService == nil || keySerializer == nil {
		return base
	}
	return repositorycache.New(base, cacheService, keySerializer)
}
