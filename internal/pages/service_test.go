package pages_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/goliatone/go-cms-admin/internal/identity"
	"github.com/goliatone/go-cms-admin/internal/pages"
	"github.com/goliatone/go-cms-admin/internal/permissions"
	"github.com/goliatone/go-cms-admin/internal/placeholders"
	"github.com/goliatone/go-cms-admin/internal/runtimeconfig"
	"github.com/goliatone/go-cms-admin/internal/sites"
	"github.com/goliatone/go-cms-admin/pkg/activity"
	"github.com/goliatone/go-cms-admin/pkg/activity/usersink"
	"github.com/google/uuid"
)

type fixture struct {
	cfg       runtimeconfig.Config
	repo      *pages.MemoryRepository
	svc       pages.Service
	contents  placeholders.Service
	grants    *permissions.MemoryGrantRepository
	evaluator *permissions.Evaluator
	sites     *sites.MemoryRepository
	sink      *activity.MemorySink
	admin     permissions.Principal
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	ctx := context.Background()

	cfg := runtimeconfig.DefaultConfig()
	cfg.Languages = []string{"en", "de"}

	siteRepo := sites.NewMemoryRepository()
	if _, err := siteRepo.Create(ctx, &sites.Site{ID: cfg.SiteID, Domain: "example.com", Name: "Example"}); err != nil {
		t.Fatalf("create site: %v", err)
	}

	grants := permissions.NewMemoryGrantRepository()
	evaluator := permissions.NewEvaluator(grants)
	sink := activity.NewMemorySink()
	emitter := activity.NewEmitter(activity.Hooks{usersink.Hook{Sink: sink}})

	contents := placeholders.NewService(placeholders.NewMemoryRepository(),
		placeholders.WithAuthorizer(evaluator),
		placeholders.WithLimits(cfg.Placeholders.Limits),
	)
	repo := pages.NewMemoryRepository()
	svc := pages.NewService(repo,
		pages.WithConfig(cfg),
		pages.WithContents(contents),
		pages.WithAuthorizer(evaluator),
		pages.WithGrantStore(evaluator),
		pages.WithSites(siteRepo),
		pages.WithActivity(emitter),
	)
	contents.AttachPageHooks(svc)

	return &fixture{
		cfg:       cfg,
		repo:      repo,
		svc:       svc,
		contents:  contents,
		grants:    grants,
		evaluator: evaluator,
		sites:     siteRepo,
		sink:      sink,
		admin:     permissions.Principal{ID: uuid.New(), Username: "admin", Active: true, Staff: true, Superuser: true},
	}
}

func (f *fixture) createPage(t *testing.T, title string, parent *uuid.UUID) *pages.Page {
	t.Helper()
	page, err := f.svc.Create(context.Background(), f.admin, pages.CreatePageRequest{
		ParentID: parent,
		Language: "en",
		Title:    title,
	})
	if err != nil {
		t.Fatalf("create page %q: %v", title, err)
	}
	return page
}

func (f *fixture) addText(t *testing.T, pageID uuid.UUID, language, body string) *placeholders.Plugin {
	t.Helper()
	ctx := context.Background()
	slots, err := f.contents.PlaceholdersForPage(ctx, pageID)
	if err != nil || len(slots) == 0 {
		t.Fatalf("expected placeholders for page, got %v (%v)", slots, err)
	}
	plugin, err := f.contents.AddPlugin(ctx, f.admin, placeholders.AddPluginRequest{
		PlaceholderID: identity.PagePlaceholderUUID(pageID, "body"),
		PluginType:    placeholders.TypeText,
		Language:      language,
		Data:          map[string]any{"body": body},
	})
	if err != nil {
		t.Fatalf("add plugin: %v", err)
	}
	return plugin
}

func (f *fixture) bodyTexts(t *testing.T, pageID uuid.UUID, language string) []string {
	t.Helper()
	plugins, err := f.contents.Plugins(context.Background(), identity.PagePlaceholderUUID(pageID, "body"), language)
	if err != nil {
		t.Fatalf("plugins: %v", err)
	}
	out := make([]string, 0, len(plugins))
	for _, p := range plugins {
		body, _ := p.Data["body"].(string)
		out = append(out, body)
	}
	return out
}

func editor(perms ...string) permissions.Principal {
	return permissions.Principal{
		ID:          uuid.New(),
		Username:    "editor",
		Active:      true,
		Staff:       true,
		Permissions: permissions.NewSet(perms...),
	}
}

func TestCreateDerivesSlugAndPlaceholders(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	root := f.createPage(t, "About Us", nil)
	if !root.PublisherIsDraft || root.LineageID != root.ID {
		t.Fatalf("expected a draft with its own lineage, got %+v", root)
	}
	if root.Template != "nav_playground.html" {
		t.Fatalf("expected default template, got %q", root.Template)
	}
	title, err := f.svc.GetTitle(ctx, root.ID, "en")
	if err != nil {
		t.Fatalf("get title: %v", err)
	}
	if title.Slug != "about-us" || title.Path != "about-us" {
		t.Fatalf("expected derived slug and path, got %q %q", title.Slug, title.Path)
	}
	if !title.Dirty() || title.Published {
		t.Fatalf("expected new title to be dirty and unpublished")
	}
	slots, err := f.contents.PlaceholdersForPage(ctx, root.ID)
	if err != nil || len(slots) != 2 {
		t.Fatalf("expected two placeholders, got %d (%v)", len(slots), err)
	}

	child := f.createPage(t, "Team", &root.ID)
	childTitle, _ := f.svc.GetTitle(ctx, child.ID, "en")
	if childTitle.Path != "about-us/team" {
		t.Fatalf("expected nested path, got %q", childTitle.Path)
	}
	if f.sink.Count("created") != 2 {
		t.Fatalf("expected two created entries, got %d", f.sink.Count("created"))
	}
}

func TestCreateRejectsParentOnAnotherSite(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	other, err := f.sites.Create(ctx, &sites.Site{Domain: "other.example.com", Name: "Other"})
	if err != nil {
		t.Fatalf("create site: %v", err)
	}
	root := f.createPage(t, "Home", nil)

	_, err = f.svc.Create(ctx, f.admin, pages.CreatePageRequest{
		SiteID:   other.ID,
		ParentID: &root.ID,
		Language: "en",
		Title:    "Stray",
	})
	var formErr *pages.FormError
	if !errors.As(err, &formErr) {
		t.Fatalf("expected form error, got %v", err)
	}
	if got := formErr.Fields()["site"]; got != "Site doesn't match the parent's page site" {
		t.Fatalf("expected site mismatch message, got %q", got)
	}
}

func TestCreateValidatesForm(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.createPage(t, "Home", nil)

	_, err := f.svc.Create(ctx, f.admin, pages.CreatePageRequest{Language: "en", Title: "Home"})
	var formErr *pages.FormError
	if !errors.As(err, &formErr) || formErr.Fields()["slug"] == "" {
		t.Fatalf("expected duplicate slug error, got %v", err)
	}

	_, err = f.svc.Create(ctx, f.admin, pages.CreatePageRequest{Language: "fr", Title: "Accueil", Template: "missing.html"})
	if !errors.As(err, &formErr) {
		t.Fatalf("expected form error, got %v", err)
	}
	fields := formErr.Fields()
	if fields["language"] == "" || fields["template"] == "" {
		t.Fatalf("expected language and template errors, got %v", fields)
	}
	if !pages.IsClientError(err) {
		t.Fatalf("expected form errors to count as client errors")
	}

	_, err = f.svc.Create(ctx, f.admin, pages.CreatePageRequest{Language: "en", Title: "Contact", Slug: "not a slug"})
	if !errors.As(err, &formErr) || formErr.Fields()["slug"] == "" {
		t.Fatalf("expected invalid slug error, got %v", err)
	}
}

func TestCreateRequiresAddPermission(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	root := f.createPage(t, "Home", nil)

	user := editor(permissions.Join(permissions.ResourcePages, permissions.ActionCreate))
	_, err := f.svc.Create(ctx, user, pages.CreatePageRequest{ParentID: &root.ID, Language: "en", Title: "Blog"})
	if !errors.Is(err, permissions.ErrPermissionDenied) {
		t.Fatalf("expected permission denied without grant, got %v", err)
	}

	if _, err := f.evaluator.AssignUserToPage(ctx, root.ID, user.ID, false); err != nil {
		t.Fatalf("assign: %v", err)
	}
	if _, err := f.svc.Create(ctx, user, pages.CreatePageRequest{ParentID: &root.ID, Language: "en", Title: "Blog"}); err != nil {
		t.Fatalf("expected child creation with page grant, got %v", err)
	}
	if _, err := f.svc.Create(ctx, user, pages.CreatePageRequest{Language: "en", Title: "Root"}); !errors.Is(err, permissions.ErrPermissionDenied) {
		t.Fatalf("expected root creation to need a global grant, got %v", err)
	}
}

func TestUpdateKeepsAdvancedFieldsForRegularEditors(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	page := f.createPage(t, "Home", nil)

	reverse := "home"
	apps := "SampleApp"
	overwrite := "/landing/"
	if _, err := f.svc.Update(ctx, f.admin, pages.UpdatePageRequest{
		PageID:          page.ID,
		Language:        "en",
		Title:           "Home",
		ReverseID:       &reverse,
		ApplicationURLs: &apps,
		OverwriteURL:    &overwrite,
	}); err != nil {
		t.Fatalf("admin update: %v", err)
	}

	user := editor(permissions.Join(permissions.ResourcePages, permissions.ActionUpdate))
	if _, err := f.evaluator.AssignUserToPage(ctx, page.ID, user.ID, false); err != nil {
		t.Fatalf("assign: %v", err)
	}
	cleared := ""
	updated, err := f.svc.Update(ctx, user, pages.UpdatePageRequest{
		PageID:          page.ID,
		Language:        "en",
		Title:           "Welcome",
		ReverseID:       &cleared,
		ApplicationURLs: &cleared,
		OverwriteURL:    &cleared,
	})
	if err != nil {
		t.Fatalf("editor update: %v", err)
	}
	if updated.ReverseID == nil || *updated.ReverseID != "home" {
		t.Fatalf("expected reverse id to survive, got %v", updated.ReverseID)
	}
	if updated.ApplicationURLs == nil || *updated.ApplicationURLs != "SampleApp" {
		t.Fatalf("expected application urls to survive, got %v", updated.ApplicationURLs)
	}
	title, _ := f.svc.GetTitle(ctx, page.ID, "en")
	if title.Title != "Welcome" || !title.HasURLOverwrite || title.Path != "landing" {
		t.Fatalf("expected title change with kept overwrite, got %+v", title)
	}

	updated, err = f.svc.Update(ctx, f.admin, pages.UpdatePageRequest{
		PageID:          page.ID,
		Language:        "en",
		Title:           "Welcome",
		ReverseID:       &cleared,
		ApplicationURLs: &cleared,
		OverwriteURL:    &cleared,
	})
	if err != nil {
		t.Fatalf("admin clear: %v", err)
	}
	if updated.ReverseID != nil || updated.ApplicationURLs != nil {
		t.Fatalf("expected advanced fields cleared by admin")
	}
	title, _ = f.svc.GetTitle(ctx, page.ID, "en")
	if title.HasURLOverwrite || title.Path != "welcome" {
		t.Fatalf("expected overwrite removed and slug path restored, got %+v", title)
	}
}

func TestUpdateAdvancedRejectsDuplicateReverseID(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	first := f.createPage(t, "First", nil)
	second := f.createPage(t, "Second", nil)

	if _, err := f.svc.UpdateAdvanced(ctx, f.admin, pages.AdvancedSettingsRequest{PageID: first.ID, ReverseID: "id1"}); err != nil {
		t.Fatalf("advanced: %v", err)
	}
	_, err := f.svc.UpdateAdvanced(ctx, f.admin, pages.AdvancedSettingsRequest{PageID: second.ID, ReverseID: "id1"})
	var formErr *pages.FormError
	if !errors.As(err, &formErr) {
		t.Fatalf("expected form error, got %v", err)
	}
	if got := formErr.Fields()["reverse_id"]; got != "A page with this reverse URL id exists already." {
		t.Fatalf("unexpected reverse id message %q", got)
	}

	user := editor(permissions.Join(permissions.ResourcePages, permissions.ActionUpdate))
	if _, err := f.evaluator.AssignUserToPage(ctx, second.ID, user.ID, false); err != nil {
		t.Fatalf("assign: %v", err)
	}
	if _, err := f.svc.UpdateAdvanced(ctx, user, pages.AdvancedSettingsRequest{PageID: second.ID, ReverseID: "id2"}); !errors.Is(err, permissions.ErrPermissionDenied) {
		t.Fatalf("expected advanced settings to be denied, got %v", err)
	}
}

func TestPageLevelChangesMarkTitlesDirty(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	page := f.createPage(t, "Home", nil)
	if _, err := f.svc.Publish(ctx, f.admin, page.ID, "en"); err != nil {
		t.Fatalf("publish: %v", err)
	}

	if _, err := f.svc.ChangeTemplate(ctx, f.admin, page.ID, "missing.html"); !errors.Is(err, pages.ErrTemplateUnknown) {
		t.Fatalf("expected unknown template, got %v", err)
	}
	changed, err := f.svc.ChangeTemplate(ctx, f.admin, page.ID, "col_two.html")
	if err != nil || changed.Template != "col_two.html" {
		t.Fatalf("expected template change, got %v (%v)", changed, err)
	}
	if dirty, _ := f.svc.IsDirty(ctx, page.ID, "en"); !dirty {
		t.Fatalf("expected template change to dirty the title")
	}

	toggled, err := f.svc.ToggleNavigation(ctx, f.admin, page.ID)
	if err != nil || toggled.InNavigation == page.InNavigation {
		t.Fatalf("expected navigation flag flipped, got %v (%v)", toggled, err)
	}

	start := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	end := start.Add(-time.Hour)
	_, err = f.svc.ChangeDates(ctx, f.admin, pages.DatesRequest{PageID: page.ID, PublicationDate: &start, PublicationEndDate: &end})
	var formErr *pages.FormError
	if !errors.As(err, &formErr) || formErr.Fields()["publication_end_date"] == "" {
		t.Fatalf("expected publication window error, got %v", err)
	}
	end = start.Add(time.Hour)
	dated, err := f.svc.ChangeDates(ctx, f.admin, pages.DatesRequest{PageID: page.ID, PublicationDate: &start, PublicationEndDate: &end})
	if err != nil {
		t.Fatalf("change dates: %v", err)
	}
	if dated.IsVisible(start.Add(-time.Minute)) || !dated.IsVisible(start) || dated.IsVisible(end) {
		t.Fatalf("unexpected visibility window for %v - %v", start, end)
	}
}

func TestEditTitleFieldsMarksDirty(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	page := f.createPage(t, "Home", nil)
	if _, err := f.svc.Publish(ctx, f.admin, page.ID, "en"); err != nil {
		t.Fatalf("publish: %v", err)
	}
	menu := "Start"
	title, err := f.svc.EditTitleFields(ctx, f.admin, page.ID, "en", pages.TitleFields{MenuTitle: &menu})
	if err != nil {
		t.Fatalf("edit title: %v", err)
	}
	if title.MenuTitle != "Start" || !title.Dirty() {
		t.Fatalf("expected dirty title with menu title, got %+v", title)
	}

	user := editor()
	if _, err := f.svc.EditTitleFields(ctx, user, page.ID, "en", pages.TitleFields{MenuTitle: &menu}); !errors.Is(err, permissions.ErrPermissionDenied) {
		t.Fatalf("expected denial, got %v", err)
	}
	if _, err := f.svc.EditTitleFields(ctx, f.admin, page.ID, "de", pages.TitleFields{MenuTitle: &menu}); err == nil {
		t.Fatalf("expected missing translation error")
	}
}

func TestListFiltersByChangePermission(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	root := f.createPage(t, "Home", nil)
	child := f.createPage(t, "Child", &root.ID)
	f.createPage(t, "Other", nil)

	user := editor(permissions.Join(permissions.ResourcePages, permissions.ActionUpdate))
	if _, err := f.svc.List(ctx, user, uuid.Nil); !errors.Is(err, permissions.ErrPermissionDenied) {
		t.Fatalf("expected changelist to be denied, got %v", err)
	}

	if _, err := f.grants.CreatePagePermission(ctx, &permissions.PagePermission{
		UserID:       user.ID,
		PageID:       child.ID,
		Capabilities: permissions.CanChange,
		GrantOn:      permissions.GrantOnPage,
	}); err != nil {
		t.Fatalf("grant: %v", err)
	}
	entries, err := f.svc.List(ctx, user, uuid.Nil)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(entries) != 1 || entries[0].Page.ID != child.ID || entries[0].Depth != 1 {
		t.Fatalf("expected only the granted child, got %d entries", len(entries))
	}

	all, err := f.svc.List(ctx, f.admin, uuid.Nil)
	if err != nil || len(all) != 3 {
		t.Fatalf("expected full tree for admin, got %d (%v)", len(all), err)
	}
	if all[0].Page.ID != root.ID || all[1].Page.ID != child.ID {
		t.Fatalf("expected depth first order")
	}
}

func TestMoveRejectsCyclesAndRefreshesPaths(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	root := f.createPage(t, "Docs", nil)
	child := f.createPage(t, "Guide", &root.ID)
	other := f.createPage(t, "Blog", nil)

	if _, err := f.svc.Move(ctx, f.admin, pages.MovePageRequest{PageID: root.ID, ParentID: &child.ID}); !errors.Is(err, pages.ErrMoveIntoDescendant) {
		t.Fatalf("expected cycle rejection, got %v", err)
	}

	if _, err := f.svc.Move(ctx, f.admin, pages.MovePageRequest{PageID: root.ID, ParentID: &other.ID}); err != nil {
		t.Fatalf("move: %v", err)
	}
	title, _ := f.svc.GetTitle(ctx, child.ID, "en")
	if title.Path != "blog/docs/guide" {
		t.Fatalf("expected descendant path refresh, got %q", title.Path)
	}
	roots, _ := f.svc.Children(ctx, other.ID)
	if len(roots) != 1 || roots[0].ID != root.ID {
		t.Fatalf("expected moved page under blog")
	}
	refreshed, _ := f.svc.Get(ctx, other.ID)
	if refreshed.Position != 0 {
		t.Fatalf("expected remaining root recompacted, got position %d", refreshed.Position)
	}
}

func TestPreviewURL(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	root := f.createPage(t, "Home", nil)
	child := f.createPage(t, "Contact", &root.ID)

	got, err := f.svc.Preview(ctx, child.ID, "en", f.cfg.SiteID)
	if err != nil {
		t.Fatalf("preview: %v", err)
	}
	if got != "/en/home/contact/?edit&language=en" {
		t.Fatalf("unexpected preview url %q", got)
	}

	got, err = f.svc.Preview(ctx, child.ID, "en", uuid.New())
	if err != nil {
		t.Fatalf("preview: %v", err)
	}
	if got != "http://example.com/en/home/contact/?edit&language=en" {
		t.Fatalf("unexpected absolute preview url %q", got)
	}

	var notFound *pages.NotFoundError
	if _, err := f.svc.Preview(ctx, child.ID, "de", f.cfg.SiteID); !errors.As(err, &notFound) {
		t.Fatalf("expected missing translation, got %v", err)
	}
}

func TestDetailExposesCapabilities(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	page := f.createPage(t, "Home", nil)

	detail, err := f.svc.Detail(ctx, f.admin, page.ID)
	if err != nil {
		t.Fatalf("detail: %v", err)
	}
	if !detail.ShowAdvanced || !detail.ShowPermissions || len(detail.Placeholders) != 2 {
		t.Fatalf("expected full admin detail, got %+v", detail)
	}

	user := editor(permissions.Join(permissions.ResourcePages, permissions.ActionUpdate))
	if _, err := f.evaluator.AssignUserToPage(ctx, page.ID, user.ID, false); err != nil {
		t.Fatalf("assign: %v", err)
	}
	detail, err = f.svc.Detail(ctx, user, page.ID)
	if err != nil {
		t.Fatalf("detail: %v", err)
	}
	if detail.ShowAdvanced || detail.ShowPermissions {
		t.Fatalf("expected editor to see neither advanced nor permission settings")
	}
	if _, err := f.svc.Grants(ctx, user, page.ID); !errors.Is(err, permissions.ErrPermissionDenied) {
		t.Fatalf("expected grants listing to be denied, got %v", err)
	}
	grants, err := f.svc.Grants(ctx, f.admin, page.ID)
	if err != nil || len(grants) != 1 {
		t.Fatalf("expected one grant, got %d (%v)", len(grants), err)
	}
}
