package cms

import (
	"context"
	"errors"
	"net/http"

	"github.com/goliatone/go-cms-admin/internal/accounts"
	"github.com/goliatone/go-cms-admin/internal/di"
	cmshttp "github.com/goliatone/go-cms-admin/internal/http"
	"github.com/goliatone/go-cms-admin/internal/pages"
	"github.com/goliatone/go-cms-admin/internal/permissions"
	"github.com/goliatone/go-cms-admin/internal/placeholders"
	"github.com/goliatone/go-cms-admin/internal/sites"
	"github.com/goliatone/go-cms-admin/internal/storage"
	"github.com/goliatone/go-cms-admin/pkg/interfaces"
	"github.com/uptrace/bun"
)

// PageService exports the page admin contract.
type PageService = pages.Service

// PlaceholderService exports the placeholder and plugin contract.
type PlaceholderService = placeholders.Service

// AccountService exports the user account contract.
type AccountService = accounts.Service

// Principal is the user a request acts as.
type Principal = permissions.Principal

// Capability is a bit set of page permissions.
type Capability = permissions.Capability

type Option = di.Option

var (
	WithBunDB          = di.WithBunDB
	WithCache          = di.WithCache
	WithLoggerProvider = di.WithLoggerProvider
	WithActivitySink   = di.WithActivitySink
	WithClock          = di.WithClock
)

// Module represents the top level CMS admin runtime.
type Module struct {
	container *di.Container
}

// New constructs a module using cfg and optional DI overrides.
func New(cfg Config, opts ...Option) (*Module, error) {
	container, err := di.NewContainer(cfg, opts...)
	if err != nil {
		return nil, err
	}
	return &Module{container: container}, nil
}

// OpenDatabase connects to and migrates the database named by cfg.Storage.
// The caller owns the returned handle.
func OpenDatabase(ctx context.Context, cfg Config) (*bun.DB, error) {
	db, err := storage.Open(cfg.Storage)
	if err != nil {
		return nil, err
	}
	if err := storage.Migrate(ctx, db); err != nil {
		return nil, errors.Join(err, db.Close())
	}
	return db, nil
}

// Container exposes the underlying DI container for advanced integrations.
func (m *Module) Container() *di.Container {
	return m.container
}

func (m *Module) Config() Config {
	return m.container.Config
}

// Pages returns the configured page service.
func (m *Module) Pages() PageService {
	return m.container.PageService()
}

// Placeholders returns the configured placeholder service.
func (m *Module) Placeholders() PlaceholderService {
	return m.container.PlaceholderService()
}

func (m *Module) Accounts() AccountService {
	return m.container.AccountService()
}

func (m *Module) Sites() sites.Repository {
	return m.container.SiteRepository()
}

// Permissions returns the evaluator shared by every service.
func (m *Module) Permissions() *permissions.Evaluator {
	return m.container.Evaluator()
}

// Grants returns the store of page and global grants.
func (m *Module) Grants() permissions.GrantRepository {
	return m.container.GrantRepository()
}

func (m *Module) Logger(name string) interfaces.Logger {
	return m.container.Logger(name)
}

// Admin returns the admin API.
func (m *Module) Admin() *cmshttp.AdminAPI {
	return m.container.AdminAPI()
}

// AdminHandler returns an http.Handler serving the admin API.
func (m *Module) AdminHandler() (http.Handler, error) {
	return m.container.AdminAPI().Handler()
}

// SubscribeCommands registers command handlers with the global dispatcher.
func (m *Module) SubscribeCommands() {
	m.container.SubscribeCommands()
}

// Close releases dispatcher subscriptions.
func (m *Module) Close(ctx context.Context) error {
	return m.container.Close(ctx)
}
