package pages_test

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/goliatone/go-cms-admin/internal/identity"
	"github.com/goliatone/go-cms-admin/internal/pages"
	"github.com/goliatone/go-cms-admin/internal/permissions"
	"github.com/goliatone/go-cms-admin/internal/placeholders"
	"github.com/goliatone/go-cms-admin/internal/transaction"
	"github.com/goliatone/go-cms-admin/pkg/testsupport"
	"github.com/google/uuid"
)

var errTitleWrite = errors.New("title write failed")

// failingTitles fails draft title updates once armed.
type failingTitles struct {
	pages.Repository
	armed bool
}

func (r *failingTitles) UpdateTitle(ctx context.Context, title *pages.Title) (*pages.Title, error) {
	if r.armed && title.PublisherIsDraft {
		return nil, errTitleWrite
	}
	return r.Repository.UpdateTitle(ctx, title)
}

func TestPublishRollsBackWhenALateWriteFails(t *testing.T) {
	db := testsupport.NewBunDB(t,
		(*pages.Page)(nil),
		(*pages.Title)(nil),
		(*placeholders.Placeholder)(nil),
		(*placeholders.Plugin)(nil),
	)
	ctx := context.Background()
	tx := transaction.NewBunRunner(db)
	repo := &failingTitles{Repository: pages.NewBunRepository(db)}
	contents := placeholders.NewService(placeholders.NewBunRepository(db), placeholders.WithTransactions(tx))
	svc := pages.NewService(repo, pages.WithContents(contents), pages.WithTransactions(tx))
	contents.AttachPageHooks(svc)
	admin := permissions.Principal{ID: uuid.New(), Active: true, Staff: true, Superuser: true}

	page, err := svc.Create(ctx, admin, pages.CreatePageRequest{Language: "en", Title: "Home"})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if _, err := contents.AddPlugin(ctx, admin, placeholders.AddPluginRequest{
		PlaceholderID: identity.PagePlaceholderUUID(page.ID, "body"),
		PluginType:    placeholders.TypeText,
		Language:      "en",
		Data:          map[string]any{"body": "draft"},
	}); err != nil {
		t.Fatalf("add plugin: %v", err)
	}

	repo.armed = true
	if _, err := svc.Publish(ctx, admin, page.ID, "en"); !errors.Is(err, errTitleWrite) {
		t.Fatalf("expected title write failure, got %v", err)
	}

	var notFound *pages.NotFoundError
	publicID := identity.PublicPageUUID(page.ID)
	if _, err := svc.Get(ctx, publicID); !errors.As(err, &notFound) {
		t.Fatalf("expected no public page after rollback, got %v", err)
	}
	if _, err := svc.GetTitle(ctx, publicID, "en"); !errors.As(err, &notFound) {
		t.Fatalf("expected no public title after rollback, got %v", err)
	}
	if slots, err := contents.PlaceholdersForPage(ctx, publicID); err != nil || len(slots) != 0 {
		t.Fatalf("expected no public placeholders after rollback, got %d (%v)", len(slots), err)
	}
	draft, err := svc.Get(ctx, page.ID)
	if err != nil {
		t.Fatalf("get draft: %v", err)
	}
	if draft.PublicID != nil {
		t.Fatalf("expected draft not linked to a public copy")
	}
	if published, _ := svc.IsPublished(ctx, page.ID, "en"); published {
		t.Fatalf("expected draft to stay unpublished")
	}

	repo.armed = false
	public, err := svc.Publish(ctx, admin, page.ID, "en")
	if err != nil {
		t.Fatalf("publish after recovery: %v", err)
	}
	if public.ID != publicID {
		t.Fatalf("expected public copy %s, got %s", publicID, public.ID)
	}
}

func TestDeleteRollsBackWhenContentRemovalFails(t *testing.T) {
	db := testsupport.NewBunDB(t,
		(*pages.Page)(nil),
		(*pages.Title)(nil),
		(*placeholders.Placeholder)(nil),
		(*placeholders.Plugin)(nil),
	)
	ctx := context.Background()
	tx := transaction.NewBunRunner(db)
	contents := &failingContents{Service: placeholders.NewService(placeholders.NewBunRepository(db), placeholders.WithTransactions(tx))}
	svc := pages.NewService(pages.NewBunRepository(db), pages.WithContents(contents), pages.WithTransactions(tx))
	contents.AttachPageHooks(svc)
	admin := permissions.Principal{ID: uuid.New(), Active: true, Staff: true, Superuser: true}

	page, err := svc.Create(ctx, admin, pages.CreatePageRequest{Language: "en", Title: "Home"})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	contents.armed = true
	if err := svc.Delete(ctx, admin, page.ID); !errors.Is(err, errContentsGone) {
		t.Fatalf("expected content removal failure, got %v", err)
	}
	if _, err := svc.Get(ctx, page.ID); err != nil {
		t.Fatalf("expected page kept after rollback, got %v", err)
	}
	if _, err := svc.GetTitle(ctx, page.ID, "en"); err != nil {
		t.Fatalf("expected title kept after rollback, got %v", err)
	}
}

var errContentsGone = errors.New("content removal failed")

type failingContents struct {
	placeholders.Service
	armed bool
}

func (c *failingContents) DeletePageContents(ctx context.Context, pageID uuid.UUID) error {
	if c.armed {
		return errContentsGone
	}
	return c.Service.DeletePageContents(ctx, pageID)
}

func TestConcurrentTogglesReadTheLatestDraft(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	page := f.createPage(t, "Home", nil)

	const toggles = 20
	var wg sync.WaitGroup
	errs := make(chan error, toggles)
	for range toggles {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := f.svc.ToggleNavigation(ctx, f.admin, page.ID); err != nil {
				errs <- err
			}
		}()
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		t.Fatalf("toggle: %v", err)
	}

	got, err := f.svc.Get(ctx, page.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.InNavigation != page.InNavigation {
		t.Fatalf("expected an even number of toggles to restore navigation %v, got %v", page.InNavigation, got.InNavigation)
	}
}
