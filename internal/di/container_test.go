package di

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/goliatone/go-cms-admin/internal/accounts"
	"github.com/goliatone/go-cms-admin/internal/commands/pagescmd"
	cmshttp "github.com/goliatone/go-cms-admin/internal/http"
	"github.com/goliatone/go-cms-admin/internal/logging/gologger"
	"github.com/goliatone/go-cms-admin/internal/pages"
	"github.com/goliatone/go-cms-admin/internal/runtimeconfig"
	"github.com/goliatone/go-cms-admin/internal/sites"
	"github.com/goliatone/go-cms-admin/internal/storage"
	"github.com/goliatone/go-cms-admin/pkg/activity"
	"github.com/goliatone/go-cms-admin/pkg/activity/bunsink"
	"github.com/goliatone/go-command/dispatcher"
)

func newTestContainer(t *testing.T, cfg runtimeconfig.Config, opts ...Option) *Container {
	t.Helper()
	container, err := NewContainer(cfg, opts...)
	if err != nil {
		t.Fatalf("NewContainer returned error: %v", err)
	}
	t.Cleanup(func() { _ = container.Close(context.Background()) })
	if _, err := container.SiteRepository().Create(context.Background(), &sites.Site{ID: cfg.SiteID, Domain: "example.com", Name: "Example"}); err != nil {
		t.Fatalf("seed site: %v", err)
	}
	return container
}

func newAdmin(t *testing.T, c *Container) *accounts.User {
	t.Helper()
	admin, err := c.AccountService().CreateUser(context.Background(), accounts.CreateUserRequest{
		Username:  "admin",
		Staff:     true,
		Superuser: true,
	})
	if err != nil {
		t.Fatalf("create admin: %v", err)
	}
	return admin
}

func TestNewContainerRejectsInvalidConfig(t *testing.T) {
	cfg := runtimeconfig.DefaultConfig()
	cfg.Templates = nil
	if _, err := NewContainer(cfg); err == nil {
		t.Fatal("expected invalid config to be rejected")
	}
}

func TestContainerWiresMemoryServices(t *testing.T) {
	c := newTestContainer(t, runtimeconfig.DefaultConfig())
	if c.BunDB() != nil {
		t.Fatalf("expected memory container without bun db")
	}
	if !c.Evaluator().Enabled() {
		t.Fatalf("expected page permissions enabled by default")
	}
	admin := newAdmin(t, c)
	ctx := context.Background()

	page, err := c.PageService().Create(ctx, admin.Principal(), pages.CreatePageRequest{Language: "en", Title: "Home"})
	if err != nil {
		t.Fatalf("create page: %v", err)
	}
	slots, err := c.PlaceholderService().PlaceholdersForPage(ctx, page.ID)
	if err != nil {
		t.Fatalf("placeholders: %v", err)
	}
	if len(slots) != len(c.Config.Placeholders.Slots) {
		t.Fatalf("expected %d placeholders, got %d", len(c.Config.Placeholders.Slots), len(slots))
	}
	if _, err := c.PageService().Publish(ctx, admin.Principal(), page.ID, "en"); err != nil {
		t.Fatalf("publish: %v", err)
	}

	sink, ok := c.ActivitySink().(*activity.MemorySink)
	if !ok {
		t.Fatalf("expected memory activity sink, got %T", c.ActivitySink())
	}
	if sink.Count("created") != 1 || sink.Count("published") != 1 {
		t.Fatalf("expected created and published activity, got %+v", sink.List())
	}
}

func TestConfigureLoggerProviderUsesGoLoggerAdapter(t *testing.T) {
	cfg := runtimeconfig.DefaultConfig()
	cfg.Logging.Provider = "gologger"
	cfg.Logging.Level = "debug"
	cfg.Logging.Format = "json"

	c := newTestContainer(t, cfg)
	provider, ok := c.LoggerProvider().(*gologger.Provider)
	if !ok {
		t.Fatalf("expected go-logger provider, got %T", c.LoggerProvider())
	}
	if provider.GetLogger("cms.test") == nil {
		t.Fatal("expected logger from go-logger provider, got nil")
	}
}

func TestContainerUsesBunRepositoriesWithCache(t *testing.T) {
	cfg := runtimeconfig.DefaultConfig()
	cfg.Storage = runtimeconfig.StorageConfig{
		Provider: "bun",
		Dialect:  "sqlite",
		DSN:      fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name()),
	}
	cfg.Cache.Enabled = true

	db, err := storage.Open(cfg.Storage)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })
	if err := storage.Migrate(context.Background(), db); err != nil {
		t.Fatalf("migrate: %v", err)
	}

	c := newTestContainer(t, cfg, WithBunDB(db))
	if c.cacheService == nil || c.keySerializer == nil {
		t.Fatalf("expected cache defaults to be configured")
	}
	if _, ok := c.ActivitySink().(*bunsink.Sink); !ok {
		t.Fatalf("expected bun activity sink, got %T", c.ActivitySink())
	}

	admin := newAdmin(t, c)
	ctx := context.Background()
	page, err := c.PageService().Create(ctx, admin.Principal(), pages.CreatePageRequest{Language: "en", Title: "Stored"})
	if err != nil {
		t.Fatalf("create page: %v", err)
	}
	got, err := c.PageService().Get(ctx, page.ID)
	if err != nil || got.ID != page.ID {
		t.Fatalf("expected page reloaded from bun, got %v (%v)", got, err)
	}
	entries, err := c.ActivitySink().(*bunsink.Sink).ListForObject(ctx, "page", page.ID.String())
	if err != nil || len(entries) != 1 {
		t.Fatalf("expected one persisted activity entry, got %d (%v)", len(entries), err)
	}
}

func TestSubscribeCommandsDispatchesToServices(t *testing.T) {
	c := newTestContainer(t, runtimeconfig.DefaultConfig())
	c.SubscribeCommands()
	c.SubscribeCommands()
	admin := newAdmin(t, c)
	ctx := context.Background()

	page, err := c.PageService().Create(ctx, admin.Principal(), pages.CreatePageRequest{Language: "en", Title: "Home"})
	if err != nil {
		t.Fatalf("create page: %v", err)
	}
	if err := dispatcher.Dispatch(ctx, pagescmd.PublishPageCommand{Actor: admin.Principal(), PageID: page.ID, Language: "en"}); err != nil {
		t.Fatalf("dispatch publish: %v", err)
	}
	if published, _ := c.PageService().IsPublished(ctx, page.ID, "en"); !published {
		t.Fatalf("expected dispatched command to publish the page")
	}
	if got := c.ActivitySink().(*activity.MemorySink).Count("published"); got != 1 {
		t.Fatalf("expected a single publish, got %d", got)
	}
}

func TestAdminAPIResolvesHeaderUsers(t *testing.T) {
	cfg := runtimeconfig.DefaultConfig()
	cfg.Admin.TrustUserHeader = true
	c := newTestContainer(t, cfg)
	newAdmin(t, c)
	handler, err := c.AdminAPI().Handler()
	if err != nil {
		t.Fatalf("handler: %v", err)
	}

	anonymous := httptest.NewRecorder()
	handler.ServeHTTP(anonymous, httptest.NewRequest(http.MethodGet, c.Config.Admin.BasePath+"/pages", nil))
	if anonymous.Code != http.StatusForbidden {
		t.Fatalf("expected anonymous changelist to be forbidden, got %d", anonymous.Code)
	}

	req := httptest.NewRequest(http.MethodGet, c.Config.Admin.BasePath+"/pages", nil)
	req.Header.Set(cmshttp.DefaultUserHeader, "admin")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected admin changelist, got %d: %s", rec.Code, rec.Body.String())
	}
}

func TestAdminAPIIgnoresUserHeaderUnlessTrusted(t *testing.T) {
	cfg := runtimeconfig.DefaultConfig()
	cfg.Admin.JWTSecret = "top-secret"
	c := newTestContainer(t, cfg)
	admin := newAdmin(t, c)
	page, err := c.PageService().Create(context.Background(), admin.Principal(), pages.CreatePageRequest{Language: "en", Title: "Home"})
	if err != nil {
		t.Fatalf("create page: %v", err)
	}
	handler, err := c.AdminAPI().Handler()
	if err != nil {
		t.Fatalf("handler: %v", err)
	}

	deletePath := fmt.Sprintf("%s/pages/%s/delete", cfg.Admin.BasePath, page.ID)
	req := httptest.NewRequest(http.MethodPost, deletePath, nil)
	req.Header.Set(cmshttp.DefaultUserHeader, "admin")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	if rec.Code != http.StatusForbidden {
		t.Fatalf("expected header-only delete to be forbidden, got %d", rec.Code)
	}
	if _, err := c.PageService().Get(context.Background(), page.ID); err != nil {
		t.Fatalf("expected page to survive, got %v", err)
	}

	token, err := cmshttp.IssueToken([]byte("top-secret"), "", admin.ID.String(), time.Minute)
	if err != nil {
		t.Fatalf("issue token: %v", err)
	}
	req = httptest.NewRequest(http.MethodGet, cfg.Admin.BasePath+"/pages", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected bearer changelist, got %d: %s", rec.Code, rec.Body.String())
	}
}
