package placeholders

import (
	"context"
	"errors"
	"testing"

	"github.com/goliatone/go-cms-admin/internal/permissions"
	"github.com/goliatone/go-cms-admin/internal/runtimeconfig"
	"github.com/goliatone/go-cms-admin/internal/validation"
	"github.com/goliatone/go-cms-admin/pkg/activity"
	"github.com/goliatone/go-cms-admin/pkg/activity/usersink"
	"github.com/google/uuid"
)

type stubHooks struct {
	dirty   []string
	missing map[uuid.UUID]bool
}

func (h *stubHooks) PermissionTarget(_ context.Context, pageID uuid.UUID) (*permissions.Target, error) {
	if h.missing[pageID] {
		return nil, &NotFoundError{Resource: "page", Key: pageID.String()}
	}
	return &permissions.Target{PageID: pageID}, nil
}

func (h *stubHooks) MarkDirty(_ context.Context, pageID uuid.UUID, language string) error {
	h.dirty = append(h.dirty, pageID.String()+":"+language)
	return nil
}

func superuser() permissions.Principal {
	return permissions.Principal{ID: uuid.New(), Username: "admin", Active: true, Staff: true, Superuser: true}
}

func staff(perms ...string) permissions.Principal {
	return permissions.Principal{
		ID:          uuid.New(),
		Username:    "staff",
		Active:      true,
		Staff:       true,
		Permissions: permissions.NewSet(perms...),
	}
}

type fixture struct {
	repo  *MemoryRepository
	svc   Service
	hooks *stubHooks
	page  uuid.UUID
	body  *Placeholder
	right *Placeholder
}

func newFixture(t *testing.T, opts ...ServiceOption) *fixture {
	t.Helper()
	repo := NewMemoryRepository()
	hooks := &stubHooks{missing: map[uuid.UUID]bool{}}
	svc := NewService(repo, append([]ServiceOption{WithPageHooks(hooks)}, opts...)...)
	page := uuid.New()
	created, err := svc.CreatePagePlaceholders(context.Background(), page, []string{"body", "right-column"})
	if err != nil {
		t.Fatalf("create placeholders: %v", err)
	}
	f := &fixture{repo: repo, svc: svc, hooks: hooks, page: page}
	for _, ph := range created {
		switch ph.Slot {
		case "body":
			f.body = ph
		case "right-column":
			f.right = ph
		}
	}
	if f.body == nil || f.right == nil {
		t.Fatalf("expected body and right-column placeholders, got %d", len(created))
	}
	return f
}

func (f *fixture) add(t *testing.T, ph *Placeholder, pluginType, language string, parent *Plugin, data map[string]any) *Plugin {
	t.Helper()
	req := AddPluginRequest{PlaceholderID: ph.ID, PluginType: pluginType, Language: language, Data: data}
	if parent != nil {
		req.ParentID = &parent.ID
	}
	plugin, err := f.svc.AddPlugin(context.Background(), superuser(), req)
	if err != nil {
		t.Fatalf("add %s: %v", pluginType, err)
	}
	return plugin
}

func (f *fixture) pluginCount() int {
	f.repo.mu.RLock()
	defer f.repo.mu.RUnlock()
	return len(f.repo.plugins)
}

func (f *fixture) placeholderCount() int {
	f.repo.mu.RLock()
	defer f.repo.mu.RUnlock()
	return len(f.repo.placeholders)
}

func TestCreatePagePlaceholdersIsIdempotent(t *testing.T) {
	f := newFixture(t)
	again, err := f.svc.CreatePagePlaceholders(context.Background(), f.page, []string{"body", "right-column", "footer"})
	if err != nil {
		t.Fatalf("create placeholders: %v", err)
	}
	if len(again) != 3 {
		t.Fatalf("expected 3 placeholders, got %d", len(again))
	}
	if f.placeholderCount() != 3 {
		t.Fatalf("expected 3 stored placeholders, got %d", f.placeholderCount())
	}
}

func TestAddPluginAppendsToSiblings(t *testing.T) {
	f := newFixture(t)
	first := f.add(t, f.body, TypeText, "en", nil, map[string]any{"body": "one"})
	second := f.add(t, f.body, TypeText, "en", nil, nil)
	other := f.add(t, f.body, TypeText, "de", nil, nil)

	if first.Position != 0 || second.Position != 1 {
		t.Fatalf("expected positions 0 and 1, got %d and %d", first.Position, second.Position)
	}
	if other.Position != 0 {
		t.Fatalf("expected languages to order independently, got %d", other.Position)
	}
	if len(f.hooks.dirty) != 3 || f.hooks.dirty[0] != f.page.String()+":en" {
		t.Fatalf("expected page marked dirty per add, got %v", f.hooks.dirty)
	}
}

func TestAddPluginEnforcesGlobalLimit(t *testing.T) {
	f := newFixture(t, WithLimits(map[string]map[string]int{
		"body": {runtimeconfig.GlobalLimitKey: 1},
	}))
	f.add(t, f.body, TypeText, "en", nil, nil)

	_, err := f.svc.AddPlugin(context.Background(), superuser(), AddPluginRequest{
		PlaceholderID: f.body.ID, PluginType: TypeText, Language: "en",
	})
	var limitErr *LimitError
	if !errors.As(err, &limitErr) {
		t.Fatalf("expected LimitError, got %v", err)
	}
	if limitErr.PluginType != "" || limitErr.Limit != 1 {
		t.Fatalf("unexpected limit error: %+v", limitErr)
	}
	if !errors.Is(err, ErrPluginLimitReached) || !IsClientError(err) {
		t.Fatalf("expected limit error to classify as client error")
	}

	if _, err := f.svc.AddPlugin(context.Background(), superuser(), AddPluginRequest{
		PlaceholderID: f.right.ID, PluginType: TypeText, Language: "en",
	}); err != nil {
		t.Fatalf("expected other slots to be unlimited, got %v", err)
	}
}

func TestAddPluginEnforcesTypeLimit(t *testing.T) {
	f := newFixture(t, WithLimits(map[string]map[string]int{
		"body": {TypeText: 1},
	}))
	f.add(t, f.body, TypeText, "en", nil, nil)

	_, err := f.svc.AddPlugin(context.Background(), superuser(), AddPluginRequest{
		PlaceholderID: f.body.ID, PluginType: TypeText, Language: "en",
	})
	var limitErr *LimitError
	if !errors.As(err, &limitErr) || limitErr.PluginType != TypeText {
		t.Fatalf("expected type limit error, got %v", err)
	}
	f.add(t, f.body, TypeMultiColumn, "en", nil, nil)
}

func TestAddPluginRequiresModelAndPagePermissions(t *testing.T) {
	f := newFixture(t)
	req := AddPluginRequest{PlaceholderID: f.body.ID, PluginType: TypeText, Language: "en"}

	_, err := f.svc.AddPlugin(context.Background(), staff(permissions.PagesUpdate), req)
	var permErr permissions.Error
	if !errors.As(err, &permErr) || permErr.Permission != "text:create" {
		t.Fatalf("expected text:create denial, got %v", err)
	}
	if _, err := f.svc.AddPlugin(context.Background(), staff("text:create"), req); !errors.Is(err, permissions.ErrPermissionDenied) {
		t.Fatalf("expected page change denial, got %v", err)
	}
	if _, err := f.svc.AddPlugin(context.Background(), staff("text:create", permissions.PagesUpdate), req); err != nil {
		t.Fatalf("expected add with both permissions, got %v", err)
	}
}

func TestAddPluginValidatesNesting(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	if _, err := f.svc.AddPlugin(ctx, superuser(), AddPluginRequest{
		PlaceholderID: f.body.ID, PluginType: TypeColumn, Language: "en",
	}); !errors.Is(err, ErrChildNotAllowed) {
		t.Fatalf("expected column without parent to be rejected, got %v", err)
	}
	text := f.add(t, f.body, TypeText, "en", nil, nil)
	if _, err := f.svc.AddPlugin(ctx, superuser(), AddPluginRequest{
		PlaceholderID: f.body.ID, PluginType: TypeText, Language: "en", ParentID: &text.ID,
	}); !errors.Is(err, ErrChildNotAllowed) {
		t.Fatalf("expected text to reject children, got %v", err)
	}
	multi := f.add(t, f.body, TypeMultiColumn, "en", nil, nil)
	if _, err := f.svc.AddPlugin(ctx, superuser(), AddPluginRequest{
		PlaceholderID: f.body.ID, PluginType: TypeColumn, Language: "de", ParentID: &multi.ID,
	}); !errors.Is(err, ErrParentMismatch) {
		t.Fatalf("expected language mismatch to be rejected, got %v", err)
	}
	missing := uuid.New()
	_, err := f.svc.AddPlugin(ctx, superuser(), AddPluginRequest{
		PlaceholderID: f.body.ID, PluginType: TypeColumn, Language: "en", ParentID: &missing,
	})
	var notFound *NotFoundError
	if !errors.As(err, &notFound) {
		t.Fatalf("expected missing parent to be not found, got %v", err)
	}
	f.add(t, f.body, TypeColumn, "en", multi, nil)
}

func TestAddPluginUnknownType(t *testing.T) {
	f := newFixture(t)
	_, err := f.svc.AddPlugin(context.Background(), superuser(), AddPluginRequest{
		PlaceholderID: f.body.ID, PluginType: "LinkPlugin", Language: "en",
	})
	if !errors.Is(err, ErrPluginTypeUnknown) {
		t.Fatalf("expected unknown type error, got %v", err)
	}
}

func TestEditPluginValidatesSchema(t *testing.T) {
	f := newFixture(t)
	plugin := f.add(t, f.body, TypeText, "en", nil, nil)

	_, err := f.svc.EditPlugin(context.Background(), superuser(), EditPluginRequest{PluginID: plugin.ID, Data: map[string]any{}})
	var payloadErr *validation.PayloadValidationError
	if !errors.As(err, &payloadErr) {
		t.Fatalf("expected payload validation error, got %v", err)
	}

	updated, err := f.svc.EditPlugin(context.Background(), superuser(), EditPluginRequest{
		PluginID: plugin.ID, Data: map[string]any{"body": "hello"},
	})
	if err != nil {
		t.Fatalf("edit: %v", err)
	}
	if updated.Data["body"] != "hello" {
		t.Fatalf("expected body to be stored, got %v", updated.Data)
	}

	if _, err := f.svc.EditPlugin(context.Background(), staff(permissions.PagesUpdate), EditPluginRequest{
		PluginID: plugin.ID, Data: map[string]any{"body": "x"},
	}); !errors.Is(err, permissions.ErrPermissionDenied) {
		t.Fatalf("expected text:update denial, got %v", err)
	}
}

func TestMovePluginAcrossLanguages(t *testing.T) {
	f := newFixture(t)
	col := f.add(t, f.body, TypeMultiColumn, "en", nil, nil)
	sub := f.add(t, f.body, TypeColumn, "en", col, nil)
	nested := f.add(t, f.body, TypeText, "en", sub, nil)
	col2 := f.add(t, f.body, TypeMultiColumn, "de", nil, nil)

	result, err := f.svc.MovePlugin(context.Background(), superuser(), MovePluginRequest{
		PluginID:      sub.ID,
		PlaceholderID: f.body.ID,
		ParentID:      &col2.ID,
		Language:      "de",
	})
	if err != nil {
		t.Fatalf("move: %v", err)
	}
	if result.Reload {
		t.Fatalf("expected column move to not require reload")
	}

	moved, _ := f.svc.GetPlugin(context.Background(), sub.ID)
	if moved.Language != "de" || moved.ParentID == nil || *moved.ParentID != col2.ID {
		t.Fatalf("expected column under col2 in de, got %+v", moved)
	}
	child, _ := f.svc.GetPlugin(context.Background(), nested.ID)
	if child.Language != "de" {
		t.Fatalf("expected descendants to follow the language, got %s", child.Language)
	}
}

func TestMovePluginReordersSiblings(t *testing.T) {
	f := newFixture(t)
	a := f.add(t, f.body, TypeText, "en", nil, nil)
	b := f.add(t, f.body, TypeText, "en", nil, nil)
	c := f.add(t, f.body, TypeText, "en", nil, nil)

	zero := 0
	if _, err := f.svc.MovePlugin(context.Background(), superuser(), MovePluginRequest{
		PluginID: c.ID, PlaceholderID: f.body.ID, Position: &zero,
	}); err != nil {
		t.Fatalf("move: %v", err)
	}
	plugins, err := f.svc.Plugins(context.Background(), f.body.ID, "en")
	if err != nil {
		t.Fatalf("plugins: %v", err)
	}
	want := []uuid.UUID{c.ID, a.ID, b.ID}
	for i, p := range plugins {
		if p.ID != want[i] || p.Position != i {
			t.Fatalf("unexpected order at %d: %s pos %d", i, p.ID, p.Position)
		}
	}
}

func TestMovePluginToOtherPlaceholderCompactsSource(t *testing.T) {
	f := newFixture(t)
	a := f.add(t, f.body, TypeText, "en", nil, nil)
	b := f.add(t, f.body, TypeText, "en", nil, nil)

	result, err := f.svc.MovePlugin(context.Background(), superuser(), MovePluginRequest{
		PluginID: a.ID, PlaceholderID: f.right.ID,
	})
	if err != nil {
		t.Fatalf("move: %v", err)
	}
	if result.Plugin.PlaceholderID != f.right.ID || result.Plugin.Position != 0 {
		t.Fatalf("unexpected moved plugin: %+v", result.Plugin)
	}
	remaining, _ := f.svc.GetPlugin(context.Background(), b.ID)
	if remaining.Position != 0 {
		t.Fatalf("expected source siblings to be compacted, got %d", remaining.Position)
	}
}

func TestMovePluginRejectsCycles(t *testing.T) {
	f := newFixture(t)
	multi := f.add(t, f.body, TypeMultiColumn, "en", nil, nil)
	col := f.add(t, f.body, TypeColumn, "en", multi, nil)

	_, err := f.svc.MovePlugin(context.Background(), superuser(), MovePluginRequest{
		PluginID: multi.ID, PlaceholderID: f.body.ID, ParentID: &col.ID,
	})
	if !errors.Is(err, ErrPluginCycle) {
		t.Fatalf("expected cycle error, got %v", err)
	}
}

func TestMovePluginRequiresPermission(t *testing.T) {
	f := newFixture(t)
	plugin := f.add(t, f.body, TypeText, "en", nil, nil)

	_, err := f.svc.MovePlugin(context.Background(), staff(), MovePluginRequest{PluginID: plugin.ID, PlaceholderID: f.right.ID})
	if !errors.Is(err, permissions.ErrPermissionDenied) {
		t.Fatalf("expected permless move to be denied, got %v", err)
	}
	if _, err := f.svc.MovePlugin(context.Background(), staff("text:update", permissions.PagesUpdate), MovePluginRequest{
		PluginID: plugin.ID, PlaceholderID: f.right.ID,
	}); err != nil {
		t.Fatalf("expected move with permissions, got %v", err)
	}
}

func TestMovePluginRespectsTargetLimits(t *testing.T) {
	f := newFixture(t, WithLimits(map[string]map[string]int{
		"right-column": {runtimeconfig.GlobalLimitKey: 1},
	}))
	f.add(t, f.right, TypeText, "en", nil, nil)
	plugin := f.add(t, f.body, TypeText, "en", nil, nil)

	_, err := f.svc.MovePlugin(context.Background(), superuser(), MovePluginRequest{PluginID: plugin.ID, PlaceholderID: f.right.ID})
	if !errors.Is(err, ErrPluginLimitReached) {
		t.Fatalf("expected limit error, got %v", err)
	}
}

func TestCopyPlaceholderIntoClipboardAndBack(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.add(t, f.body, TypeText, "en", nil, map[string]any{"body": "one"})
	f.add(t, f.body, TypeText, "en", nil, map[string]any{"body": "two"})

	clipboard, err := f.svc.CreatePlaceholder(ctx, "clipboard", nil)
	if err != nil {
		t.Fatalf("create clipboard: %v", err)
	}
	if f.placeholderCount() != 3 {
		t.Fatalf("expected 3 placeholders, got %d", f.placeholderCount())
	}

	result, err := f.svc.CopyPlugins(ctx, superuser(), CopyPluginsRequest{
		SourcePlaceholderID: f.body.ID,
		SourceLanguage:      "en",
		TargetPlaceholderID: clipboard.ID,
		TargetLanguage:      "en",
	})
	if err != nil {
		t.Fatalf("copy into clipboard: %v", err)
	}
	if f.pluginCount() != 5 {
		t.Fatalf("expected 5 plugins, got %d", f.pluginCount())
	}
	clipboardPlugins, _ := f.svc.Plugins(ctx, clipboard.ID, "")
	if len(clipboardPlugins) != 1 || clipboardPlugins[0].PluginType != TypePlaceholder {
		t.Fatalf("expected a single reference plugin in the clipboard, got %+v", clipboardPlugins)
	}
	if result.Reference == nil {
		t.Fatalf("expected reference placeholder in result")
	}
	referenced, _ := f.svc.Plugins(ctx, result.Reference.ID, "")
	if len(referenced) != 2 {
		t.Fatalf("expected 2 copied plugins in the reference placeholder, got %d", len(referenced))
	}

	refPlugin := clipboardPlugins[0].ID
	if _, err := f.svc.CopyPlugins(ctx, superuser(), CopyPluginsRequest{
		SourcePlaceholderID: clipboard.ID,
		SourcePluginID:      &refPlugin,
		SourceLanguage:      "en",
		TargetPlaceholderID: f.body.ID,
		TargetLanguage:      "fr",
	}); err != nil {
		t.Fatalf("copy reference into page: %v", err)
	}
	french, _ := f.svc.Plugins(ctx, f.body.ID, "fr")
	if len(french) != 2 {
		t.Fatalf("expected reference to expand into 2 plugins, got %d", len(french))
	}
	for _, p := range french {
		if p.PluginType != TypeText {
			t.Fatalf("expected expanded content, got %s", p.PluginType)
		}
	}
	if f.pluginCount() != 7 || f.placeholderCount() != 4 {
		t.Fatalf("expected 7 plugins and 4 placeholders, got %d and %d", f.pluginCount(), f.placeholderCount())
	}

	removed, err := f.svc.ClearPlaceholder(ctx, superuser(), clipboard.ID, "")
	if err != nil {
		t.Fatalf("clear: %v", err)
	}
	if removed != 1 {
		t.Fatalf("expected 1 top level removal, got %d", removed)
	}
	if f.pluginCount() != 4 || f.placeholderCount() != 3 {
		t.Fatalf("expected 4 plugins and 3 placeholders after clear, got %d and %d", f.pluginCount(), f.placeholderCount())
	}
}

func TestCopyPluginsRequiresCreatePermission(t *testing.T) {
	f := newFixture(t)
	plugin := f.add(t, f.body, TypeText, "en", nil, map[string]any{"body": "x"})
	req := CopyPluginsRequest{
		SourcePlaceholderID: f.body.ID,
		SourcePluginID:      &plugin.ID,
		SourceLanguage:      "en",
		TargetPlaceholderID: f.body.ID,
		TargetLanguage:      "fr",
	}

	if _, err := f.svc.CopyPlugins(context.Background(), staff(permissions.PagesUpdate), req); !errors.Is(err, permissions.ErrPermissionDenied) {
		t.Fatalf("expected copy to be denied, got %v", err)
	}
	result, err := f.svc.CopyPlugins(context.Background(), staff(permissions.PagesUpdate, "text:create"), req)
	if err != nil {
		t.Fatalf("expected copy with permissions, got %v", err)
	}
	if len(result.Plugins) != 1 || result.Plugins[0].Language != "fr" {
		t.Fatalf("unexpected copy result: %+v", result.Plugins)
	}
}

func TestCopyPluginsDeepClonesSubtree(t *testing.T) {
	f := newFixture(t)
	multi := f.add(t, f.body, TypeMultiColumn, "en", nil, nil)
	col := f.add(t, f.body, TypeColumn, "en", multi, nil)
	f.add(t, f.body, TypeText, "en", col, map[string]any{"body": "deep"})

	result, err := f.svc.CopyPlugins(context.Background(), superuser(), CopyPluginsRequest{
		SourcePlaceholderID: f.body.ID,
		SourcePluginID:      &multi.ID,
		SourceLanguage:      "en",
		TargetPlaceholderID: f.right.ID,
		TargetLanguage:      "en",
	})
	if err != nil {
		t.Fatalf("copy: %v", err)
	}
	if len(result.Plugins) != 3 {
		t.Fatalf("expected 3 copied plugins, got %d", len(result.Plugins))
	}
	tree, _ := f.svc.Tree(context.Background(), f.right.ID, "en")
	if len(tree) != 1 || len(tree[0].Children) != 1 || len(tree[0].Children[0].Children) != 1 {
		t.Fatalf("expected copied tree to keep its shape")
	}
	if tree[0].Children[0].Children[0].Depth != 2 {
		t.Fatalf("expected depth 2 for nested text, got %d", tree[0].Children[0].Children[0].Depth)
	}
	if tree[0].Plugin.ID == multi.ID {
		t.Fatalf("expected new ids for copies")
	}
}

func TestCopyLanguage(t *testing.T) {
	f := newFixture(t)
	f.add(t, f.body, TypeText, "en", nil, map[string]any{"body": "x"})
	req := CopyLanguageRequest{PageID: f.page, SourceLanguage: "en", TargetLanguage: "fr"}

	if _, err := f.svc.CopyLanguage(context.Background(), staff(permissions.PagesUpdate), req); !errors.Is(err, permissions.ErrPermissionDenied) {
		t.Fatalf("expected copy language to be denied, got %v", err)
	}
	created, err := f.svc.CopyLanguage(context.Background(), staff(permissions.PagesUpdate, "text:create"), req)
	if err != nil {
		t.Fatalf("copy language: %v", err)
	}
	if len(created) != 1 || f.pluginCount() != 2 {
		t.Fatalf("expected one copied plugin, got %d (total %d)", len(created), f.pluginCount())
	}
	if _, err := f.svc.CopyLanguage(context.Background(), superuser(), CopyLanguageRequest{
		PageID: f.page, SourceLanguage: "en", TargetLanguage: "en",
	}); !errors.Is(err, ErrSameLanguage) {
		t.Fatalf("expected same language error, got %v", err)
	}
}

func TestCopyLanguageUnknownPage(t *testing.T) {
	f := newFixture(t)
	missing := uuid.New()
	f.hooks.missing[missing] = true

	_, err := f.svc.CopyLanguage(context.Background(), superuser(), CopyLanguageRequest{
		PageID: missing, SourceLanguage: "en", TargetLanguage: "de",
	})
	var notFound *NotFoundError
	if !errors.As(err, &notFound) {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestDeletePluginRemovesDescendantsAndCompacts(t *testing.T) {
	f := newFixture(t)
	first := f.add(t, f.body, TypeText, "en", nil, nil)
	multi := f.add(t, f.body, TypeMultiColumn, "en", nil, nil)
	f.add(t, f.body, TypeColumn, "en", multi, nil)
	last := f.add(t, f.body, TypeText, "en", nil, nil)

	if _, err := f.svc.DeletePlugin(context.Background(), superuser(), multi.ID); err != nil {
		t.Fatalf("delete: %v", err)
	}
	plugins, _ := f.svc.Plugins(context.Background(), f.body.ID, "en")
	if len(plugins) != 2 {
		t.Fatalf("expected 2 remaining plugins, got %d", len(plugins))
	}
	if plugins[0].ID != first.ID || plugins[1].ID != last.ID || plugins[1].Position != 1 {
		t.Fatalf("expected compacted order, got %+v", plugins)
	}
}

func TestDeletePluginRequiresPermission(t *testing.T) {
	f := newFixture(t)
	plugin := f.add(t, f.body, TypeText, "en", nil, nil)
	if _, err := f.svc.DeletePlugin(context.Background(), staff(permissions.PagesUpdate), plugin.ID); !errors.Is(err, permissions.ErrPermissionDenied) {
		t.Fatalf("expected delete to be denied, got %v", err)
	}
	if _, err := f.svc.DeletePlugin(context.Background(), staff(permissions.PagesUpdate, "text:delete"), plugin.ID); err != nil {
		t.Fatalf("expected delete with permission, got %v", err)
	}
}

func TestViewPluginAppliesFormPermissions(t *testing.T) {
	f := newFixture(t)
	plugin := f.add(t, f.body, TypeText, "en", nil, map[string]any{"body": "draft"})
	ctx := context.Background()

	if _, err := f.svc.ViewPlugin(ctx, permissions.Principal{}, uuid.New(), permissions.ActionUpdate); !errors.Is(err, permissions.ErrPermissionDenied) {
		t.Fatalf("expected anonymous lookup to be denied before loading, got %v", err)
	}
	if _, err := f.svc.ViewPlugin(ctx, staff(permissions.PagesUpdate), plugin.ID, permissions.ActionUpdate); !errors.Is(err, permissions.ErrPermissionDenied) {
		t.Fatalf("expected missing model permission to be denied, got %v", err)
	}
	if _, err := f.svc.ViewPlugin(ctx, staff(permissions.PagesUpdate, "text:update"), plugin.ID, permissions.ActionDelete); !errors.Is(err, permissions.ErrPermissionDenied) {
		t.Fatalf("expected delete form to need the delete permission, got %v", err)
	}
	got, err := f.svc.ViewPlugin(ctx, staff(permissions.PagesUpdate, "text:update"), plugin.ID, permissions.ActionUpdate)
	if err != nil {
		t.Fatalf("view plugin: %v", err)
	}
	if got.Data["body"] != "draft" {
		t.Fatalf("unexpected plugin data %v", got.Data)
	}
}

func TestCopyPageContentsMirrorsLanguage(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.add(t, f.body, TypeText, "en", nil, map[string]any{"body": "draft"})
	f.add(t, f.body, TypeText, "de", nil, map[string]any{"body": "entwurf"})
	public := uuid.New()

	if err := f.svc.CopyPageContents(ctx, f.page, public, "en"); err != nil {
		t.Fatalf("copy page contents: %v", err)
	}
	if err := f.svc.CopyPageContents(ctx, f.page, public, "en"); err != nil {
		t.Fatalf("copy page contents again: %v", err)
	}
	targets, _ := f.svc.PlaceholdersForPage(ctx, public)
	if len(targets) != 2 {
		t.Fatalf("expected public placeholders per slot, got %d", len(targets))
	}
	var publicBody *Placeholder
	for _, ph := range targets {
		if ph.Slot == "body" {
			publicBody = ph
		}
	}
	en, _ := f.svc.Plugins(ctx, publicBody.ID, "en")
	de, _ := f.svc.Plugins(ctx, publicBody.ID, "de")
	if len(en) != 1 || len(de) != 0 {
		t.Fatalf("expected only en content mirrored once, got en=%d de=%d", len(en), len(de))
	}

	if err := f.svc.DeletePageLanguage(ctx, public, "en"); err != nil {
		t.Fatalf("delete language: %v", err)
	}
	en, _ = f.svc.Plugins(ctx, publicBody.ID, "en")
	if len(en) != 0 {
		t.Fatalf("expected public en content removed, got %d", len(en))
	}

	if err := f.svc.DeletePageContents(ctx, f.page); err != nil {
		t.Fatalf("delete page contents: %v", err)
	}
	remaining, _ := f.svc.PlaceholdersForPage(ctx, f.page)
	if len(remaining) != 0 || f.pluginCount() != 0 {
		t.Fatalf("expected page content removed, got %d placeholders and %d plugins", len(remaining), f.pluginCount())
	}
}

func TestPluginActionsEmitActivity(t *testing.T) {
	sink := activity.NewMemorySink()
	f := newFixture(t, WithActivity(activity.NewEmitter(activity.Hooks{usersink.Hook{Sink: sink}})))
	plugin := f.add(t, f.body, TypeText, "en", nil, nil)
	if _, err := f.svc.DeletePlugin(context.Background(), superuser(), plugin.ID); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if sink.Count("add") != 1 || sink.Count("delete") != 1 {
		t.Fatalf("expected add and delete records, got %+v", sink.List())
	}
	if sink.List()[0].ObjectType != "plugin" {
		t.Fatalf("expected plugin object type, got %s", sink.List()[0].ObjectType)
	}
}
