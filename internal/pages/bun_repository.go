package pages

import (
	"context"
	"fmt"
	"strings"

	goerrors "github.com/goliatone/go-errors"
	"github.com/goliatone/go-cms-admin/internal/transaction"
	repository "github.com/goliatone/go-repository-bun"
	"github.com/goliatone/go-repository-cache/cache"
	repositorycache "github.com/goliatone/go-repository-cache/repositorycache"
	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

type BunRepository struct {
	pages  repository.Repository[*Page]
	titles repository.Repository[*Title]
}

func NewBunRepository(db *bun.DB) *BunRepository {
	return NewBunRepositoryWithCache(db, nil, nil)
}

// NewBunRepositoryWithCache wraps both tables with go-repository-cache when
// a cache service is supplied.
func NewBunRepositoryWithCache(db *bun.DB, cacheService cache.CacheService, keySerializer cache.KeySerializer) *BunRepository {
	pages := repository.MustNewRepository(db, repository.ModelHandlers[*Page]{
		NewRecord:          func() *Page { return &Page{} },
		GetID:              func(p *Page) uuid.UUID { return p.ID },
		SetID:              func(p *Page, id uuid.UUID) { p.ID = id },
		GetIdentifier:      func() string { return "id" },
		GetIdentifierValue: func(p *Page) string { return p.ID.String() },
	})
	titles := repository.MustNewRepository(db, repository.ModelHandlers[*Title]{
		NewRecord:          func() *Title { return &Title{} },
		GetID:              func(t *Title) uuid.UUID { return t.ID },
		SetID:              func(t *Title, id uuid.UUID) { t.ID = id },
		GetIdentifier:      func() string { return "id" },
		GetIdentifierValue: func(t *Title) string { return t.ID.String() },
	})
	if cacheService != nil && keySerializer != nil {
		pages = repositorycache.New(pages, cacheService, keySerializer)
		titles = repositorycache.New(titles, cacheService, keySerializer)
	}
	return &BunRepository{pages: pages, titles: titles}
}

func (r *BunRepository) CreatePage(ctx context.Context, page *Page) (*Page, error) {
	if page.ID == uuid.Nil {
		page.ID = uuid.New()
	}
	if page.LineageID == uuid.Nil {
		page.LineageID = page.ID
	}
	return transaction.Create(ctx, r.pages, page)
}

func (r *BunRepository) GetPage(ctx context.Context, id uuid.UUID) (*Page, error) {
	page, err := transaction.GetByID(ctx, r.pages, id.String())
	if err != nil {
		return nil, mapError(err, "page", id.String())
	}
	return page, nil
}

func (r *BunRepository) UpdatePage(ctx context.Context, page *Page) (*Page, error) {
	updated, err := transaction.Update(ctx, r.pages, page,
		repository.UpdateByID(page.ID.String()),
		repository.UpdateColumns(
			"public_id",
			"parent_id",
			"template",
			"in_navigation",
			"reverse_id",
			"application_urls",
			"publication_date",
			"publication_end_date",
			"position",
			"changed_by",
			"updated_at",
		),
	)
	if err != nil {
		return nil, mapError(err, "page", page.ID.String())
	}
	return updated, nil
}

func (r *BunRepository) DeletePage(ctx context.Context, id uuid.UUID) error {
	if err := transaction.Delete(ctx, r.pages, &Page{ID: id}); err != nil && !isNotFound(err) {
		return fmt.Errorf("delete page %s: %w", id, err)
	}
	return nil
}

func (r *BunRepository) ListPages(ctx context.Context, siteID uuid.UUID) ([]*Page, error) {
	records, _, err := transaction.List(ctx, r.pages, repository.SelectRawProcessor(func(q *bun.SelectQuery) *bun.SelectQuery {
		return q.Where("?TableAlias.site_id = ?", siteID).
			Where("?TableAlias.publisher_is_draft = ?", true).
			OrderExpr("?TableAlias.position ASC, ?TableAlias.created_at ASC")
	}))
	return records, err
}

func (r *BunRepository) CreateTitle(ctx context.Context, title *Title) (*Title, error) {
	if title.ID == uuid.Nil {
		title.ID = uuid.New()
	}
	return transaction.Create(ctx, r.titles, title)
}

func (r *BunRepository) GetTitle(ctx context.Context, pageID uuid.UUID, language string) (*Title, error) {
	language = strings.TrimSpace(language)
	records, _, err := transaction.List(ctx, r.titles,
		repository.SelectRawProcessor(func(q *bun.SelectQuery) *bun.SelectQuery {
			return q.Where("?TableAlias.page_id = ?", pageID).Where("?TableAlias.language = ?", language)
		}),
		repository.SelectPaginate(1, 0),
	)
	if err != nil {
		return nil, mapError(err, "title", pageID.String()+":"+language)
	}
	if len(records) == 0 {
		return nil, &NotFoundError{Resource: "title", Key: pageID.String() + ":" + language}
	}
	return records[0], nil
}

func (r *BunRepository) UpdateTitle(ctx context.Context, title *Title) (*Title, error) {
	updated, err := transaction.Update(ctx, r.titles, title,
		repository.UpdateByID(title.ID.String()),
		repository.UpdateColumns(
			"title",
			"slug",
			"path",
			"has_url_overwrite",
			"published",
			"publisher_state",
			"menu_title",
			"page_title",
			"meta_description",
			"updated_at",
		),
	)
	if err != nil {
		return nil, mapError(err, "title", title.ID.String())
	}
	return updated, nil
}

func (r *BunRepository) DeleteTitle(ctx context.Context, id uuid.UUID) error {
	if err := transaction.Delete(ctx, r.titles, &Title{ID: id}); err != nil && !isNotFound(err) {
		return fmt.Errorf("delete title %s: %w", id, err)
	}
	return nil
}

func (r *BunRepository) ListTitles(ctx context.Context, pageID uuid.UUID) ([]*Title, error) {
	records, _, err := transaction.List(ctx, r.titles, repository.SelectRawProcessor(func(q *bun.SelectQuery) *bun.SelectQuery {
		return q.Where("?TableAlias.page_id = ?", pageID).OrderExpr("?TableAlias.language ASC")
	}))
	return records, err
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
