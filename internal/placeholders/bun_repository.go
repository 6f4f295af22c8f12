package placeholders

import (
	"context"
	"fmt"
	"time"

	goerrors "github.com/goliatone/go-errors"
	"github.com/goliatone/go-cms-admin/internal/transaction"
	repository "github.com/goliatone/go-repository-bun"
	"github.com/goliatone/go-repository-cache/cache"
	repositorycache "github.com/goliatone/go-repository-cache/repositorycache"
	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

// BunRepository persists placeholders and plugins through go-repository-bun.
type BunRepository struct {
	placeholders repository.Repository[*Placeholder]
	plugins      repository.Repository[*Plugin]
}

func NewBunRepository(db *bun.DB) *BunRepository {
	return NewBunRepositoryWithCache(db, nil, nil)
}

func NewBunRepositoryWithCache(db *bun.DB, cacheService cache.CacheService, keySerializer cache.KeySerializer) *BunRepository {
	placeholders := repository.MustNewRepository(db, repository.ModelHandlers[*Placeholder]{
		NewRecord:          func() *Placeholder { return &Placeholder{} },
		GetID:              func(p *Placeholder) uuid.UUID { return p.ID },
		SetID:              func(p *Placeholder, id uuid.UUID) { p.ID = id },
		GetIdentifier:      func() string { return "id" },
		GetIdentifierValue: func(p *Placeholder) string { return p.ID.String() },
	})
	plugins := repository.MustNewRepository(db, repository.ModelHandlers[*Plugin]{
		NewRecord:          func() *Plugin { return &Plugin{} },
		GetID:              func(p *Plugin) uuid.UUID { return p.ID },
		SetID:              func(p *Plugin, id uuid.UUID) { p.ID = id },
		GetIdentifier:      func() string { return "id" },
		GetIdentifierValue: func(p *Plugin) string { return p.ID.String() },
	})
	if cacheService != nil && keySerializer != nil {
		placeholders = repositorycache.New(placeholders, cacheService, keySerializer)
		plugins = repositorycache.New(plugins, cacheService, keySerializer)
	}
	return &BunRepository{placeholders: placeholders, plugins: plugins}
}

func (r *BunRepository) CreatePlaceholder(ctx context.Context, placeholder *Placeholder) (*Placeholder, error) {
	if placeholder.ID == uuid.Nil {
		placeholder.ID = uuid.New()
	}
	return transaction.Create(ctx, r.placeholders, placeholder)
}

func (r *BunRepository) GetPlaceholder(ctx context.Context, id uuid.UUID) (*Placeholder, error) {
	rec, err := transaction.GetByID(ctx, r.placeholders, id.String())
	if err != nil {
		return nil, mapError(err, "placeholder", id.String())
	}
	return rec, nil
}

func (r *BunRepository) ListForPage(ctx context.Context, pageID uuid.UUID) ([]*Placeholder, error) {
	records, _, err := transaction.List(ctx, r.placeholders, repository.SelectRawProcessor(func(q *bun.SelectQuery) *bun.SelectQuery {
		return q.Where("?TableAlias.page_id = ?", pageID).OrderExpr("?TableAlias.slot ASC")
	}))
	return records, err
}

func (r *BunRepository) DeletePlaceholders(ctx context.Context, ids []uuid.UUID) error {
	for _, id := range ids {
		plugins, err := r.ListPlugins(ctx, id, "")
		if err != nil {
			return err
		}
		if err := r.deletePlugins(ctx, plugins); err != nil {
			return err
		}
		if err := transaction.Delete(ctx, r.placeholders, &Placeholder{ID: id}); err != nil && !isNotFound(err) {
			return fmt.Errorf("delete placeholder %s: %w", id, err)
		}
	}
	return nil
}

func (r *BunRepository) CreatePlugin(ctx context.Context, plugin *Plugin) (*Plugin, error) {
	if plugin.ID == uuid.Nil {
		plugin.ID = uuid.New()
	}
	return transaction.Create(ctx, r.plugins, plugin)
}

func (r *BunRepository) GetPlugin(ctx context.Context, id uuid.UUID) (*Plugin, error) {
	rec, err := transaction.GetByID(ctx, r.plugins, id.String())
	if err != nil {
		return nil, mapError(err, "plugin", id.String())
	}
	return rec, nil
}

func (r *BunRepository) UpdatePlugin(ctx context.Context, plugin *Plugin) (*Plugin, error) {
	plugin.UpdatedAt = time.Now().UTC()
	updated, err := transaction.Update(ctx, r.plugins, plugin,
		repository.UpdateByID(plugin.ID.String()),
		repository.UpdateColumns(
			"placeholder_id",
			"parent_id",
			"position",
			"language",
			"data",
			"reference_placeholder_id",
			"updated_at",
		),
	)
	if err != nil {
		return nil, mapError(err, "plugin", plugin.ID.String())
	}
	return updated, nil
}

func (r *BunRepository) ListPlugins(ctx context.Context, placeholderID uuid.UUID, language string) ([]*Plugin, error) {
	records, _, err := transaction.List(ctx, r.plugins, repository.SelectRawProcessor(func(q *bun.SelectQuery) *bun.SelectQuery {
		q = q.Where("?TableAlias.placeholder_id = ?", placeholderID)
		if language != "" {
			q = q.Where("?TableAlias.language = ?", language)
		}
		return q.OrderExpr("?TableAlias.position ASC, ?TableAlias.created_at ASC")
	}))
	return records, err
}

func (r *BunRepository) DeletePlugins(ctx context.Context, ids []uuid.UUID) error {
	records := make([]*Plugin, 0, len(ids))
	for _, id := range ids {
		records = append(records, &Plugin{ID: id})
	}
	return r.deletePlugins(ctx, records)
}

func (r *BunRepository) deletePlugins(ctx context.Context, records []*Plugin) error {
	for _, rec := range records {
		if err := transaction.Delete(ctx, r.plugins, rec); err != nil && !isNotFound(err) {
			return fmt.Errorf("delete plugin %s: %w", rec.ID, err)
		}
	}
	return nil
}

func isNotFound(err error) bool {
	return goerrors.IsCategory(err, repository.CategoryDatabaseNotFound)
}

func mapError(err error, resource, key string) error {
	if isNotFound(err) {
		return &NotFoundError{Resource: resource, Key: key}
	}
	return fmt.Errorf("%s repository error: %w", resource, err)
}
