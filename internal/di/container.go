package di

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/goliatone/go-cms-admin/internal/accounts"
	"github.com/goliatone/go-cms-admin/internal/commands"
	"github.com/goliatone/go-cms-admin/internal/commands/pagescmd"
	"github.com/goliatone/go-cms-admin/internal/commands/placeholderscmd"
	cmshttp "github.com/goliatone/go-cms-admin/internal/http"
	"github.com/goliatone/go-cms-admin/internal/logging"
	"github.com/goliatone/go-cms-admin/internal/logging/console"
	"github.com/goliatone/go-cms-admin/internal/logging/gologger"
	"github.com/goliatone/go-cms-admin/internal/pages"
	"github.com/goliatone/go-cms-admin/internal/permissions"
	"github.com/goliatone/go-cms-admin/internal/placeholders"
	"github.com/goliatone/go-cms-admin/internal/runtimeconfig"
	"github.com/goliatone/go-cms-admin/internal/sites"
	"github.com/goliatone/go-cms-admin/internal/transaction"
	"github.com/goliatone/go-cms-admin/pkg/activity"
	"github.com/goliatone/go-cms-admin/pkg/activity/bunsink"
	"github.com/goliatone/go-cms-admin/pkg/activity/usersink"
	"github.com/goliatone/go-cms-admin/pkg/interfaces"
	"github.com/goliatone/go-command/runner"
	repocache "github.com/goliatone/go-repository-cache/cache"
	"github.com/uptrace/bun"
)

// Container wires repositories, services and the admin surface.
type Container struct {
	Config runtimeconfig.Config

	bunDB          *bun.DB
	cacheService   repocache.CacheService
	keySerializer  repocache.KeySerializer
	loggerProvider interfaces.LoggerProvider
	activitySink   interfaces.ActivitySink
	clock          func() time.Time

	userRepo        accounts.Repository
	siteRepo        sites.Repository
	grantRepo       permissions.GrantRepository
	pageRepo        pages.Repository
	placeholderRepo placeholders.Repository

	evaluator      *permissions.Evaluator
	emitter        *activity.Emitter
	accountSvc     accounts.Service
	pageSvc        pages.Service
	placeholderSvc placeholders.Service
	admin          *cmshttp.AdminAPI

	subsMu        sync.Mutex
	subscriptions []commands.Subscription
}

// Option mutates the container before it is finalised.
type Option func(*Container)

// WithBunDB switches every repository to the bun backend.
func WithBunDB(db *bun.DB) Option {
	return func(c *Container) {
		c.bunDB = db
	}
}

// WithCache overrides the cache used to wrap bun repositories.
func WithCache(service repocache.CacheService, serializer repocache.KeySerializer) Option {
	return func(c *Container) {
		c.cacheService = service
		c.keySerializer = serializer
	}
}

// WithLoggerProvider overrides the provider selected by Config.Logging.
func WithLoggerProvider(provider interfaces.LoggerProvider) Option {
	return func(c *Container) {
		c.loggerProvider = provider
	}
}

// WithActivitySink overrides where admin activity is recorded.
func WithActivitySink(sink interfaces.ActivitySink) Option {
	return func(c *Container) {
		c.activitySink = sink
	}
}

func WithClock(clock func() time.Time) Option {
	return func(c *Container) {
		if clock != nil {
			c.clock = clock
		}
	}
}

// NewContainer validates cfg and builds the service graph.
func NewContainer(cfg runtimeconfig.Config, opts ...Option) (*Container, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	c := &Container{
		Config: cfg,
		clock:  time.Now,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(c)
		}
	}

	if err := c.configureLoggerProvider(); err != nil {
		return nil, err
	}
	if err := c.configureCacheDefaults(); err != nil {
		return nil, err
	}
	c.configureRepositories()
	c.configureActivity()
	c.configureServices()
	c.configureAdmin()
	return c, nil
}

func (c *Container) configureLoggerProvider() error {
	if c.loggerProvider != nil {
		return nil
	}
	logCfg := c.Config.Logging
	switch strings.ToLower(strings.TrimSpace(logCfg.Provider)) {
	case "gologger":
		provider, err := gologger.NewProvider(gologger.Config{
			Level:     logCfg.Level,
			Format:    logCfg.Format,
			AddSource: logCfg.AddSource,
			Focus:     logCfg.Focus,
		})
		if err != nil {
			return fmt.Errorf("di: logger provider: %w", err)
		}
		c.loggerProvider = provider
	default:
		level := console.ParseLevel(logCfg.Level)
		c.loggerProvider = console.NewProvider(console.Options{MinLevel: &level})
	}
	return nil
}

func (c *Container) configureCacheDefaults() error {
	if !c.Config.Cache.Enabled || c.bunDB == nil {
		return nil
	}
	if c.cacheService == nil {
		cfg := repocache.DefaultConfig()
		if c.Config.Cache.TTL > 0 {
			cfg.TTL = c.Config.Cache.TTL
		}
		service, err := repocache.NewCacheService(cfg)
		if err != nil {
			return fmt.Errorf("di: cache service: %w", err)
		}
		c.cacheService = service
	}
	if c.keySerializer == nil {
		c.keySerializer = repocache.NewDefaultKeySerializer()
	}
	return nil
}

func (c *Container) configureRepositories() {
	if c.bunDB == nil {
		c.userRepo = accounts.NewMemoryRepository()
		c.siteRepo = sites.NewMemoryRepository()
		c.grantRepo = permissions.NewMemoryGrantRepository()
		c.pageRepo = pages.NewMemoryRepository()
		c.placeholderRepo = placeholders.NewMemoryRepository()
		return
	}
	c.userRepo = accounts.NewBunRepositoryWithCache(c.bunDB, c.cacheService, c.keySerializer)
	c.siteRepo = sites.NewBunRepositoryWithCache(c.bunDB, c.cacheService, c.keySerializer)
	c.grantRepo = permissions.NewBunGrantRepositoryWithCache(c.bunDB, c.cacheService, c.keySerializer)
	c.pageRepo = pages.NewBunRepositoryWithCache(c.bunDB, c.cacheService, c.keySerializer)
	c.placeholderRepo = placeholders.NewBunRepositoryWithCache(c.bunDB, c.cacheService, c.keySerializer)
}

func (c *Container) configureActivity() {
	if c.activitySink == nil {
		if c.bunDB != nil {
			c.activitySink = bunsink.New(c.bunDB)
		} else {
			c.activitySink = activity.NewMemorySink()
		}
	}
	c.emitter = activity.NewEmitter(
		activity.Hooks{usersink.Hook{Sink: c.activitySink}},
		activity.WithClock(c.clock),
	)
}

func (c *Container) configureServices() {
	c.evaluator = permissions.NewEvaluator(c.grantRepo,
		permissions.WithPagePermissions(c.Config.Permissions.Enabled),
		permissions.WithLogger(logging.PermissionsLogger(c.loggerProvider)),
	)
	c.accountSvc = accounts.NewService(c.userRepo, accounts.WithClock(c.clock))

	tx := transaction.NoOp()
	if c.bunDB != nil {
		tx = transaction.NewBunRunner(c.bunDB)
	}
	c.placeholderSvc = placeholders.NewService(c.placeholderRepo,
		placeholders.WithLimits(c.Config.Placeholders.Limits),
		placeholders.WithAuthorizer(c.evaluator),
		placeholders.WithActivity(c.emitter),
		placeholders.WithLogger(logging.PlaceholdersLogger(c.loggerProvider)),
		placeholders.WithTransactions(tx),
	)
	c.pageSvc = pages.NewService(c.pageRepo,
		pages.WithConfig(c.Config),
		pages.WithContents(c.placeholderSvc),
		pages.WithAuthorizer(c.evaluator),
		pages.WithGrantStore(c.evaluator),
		pages.WithSites(c.siteRepo),
		pages.WithActivity(c.emitter),
		pages.WithLogger(logging.PagesLogger(c.loggerProvider)),
		pages.WithClock(c.clock),
		pages.WithTransactions(tx),
	)
	c.placeholderSvc.AttachPageHooks(c.pageSvc)
}

func (c *Container) configureAdmin() {
	var resolvers []cmshttp.UserResolver
	if secret := strings.TrimSpace(c.Config.Admin.JWTSecret); secret != "" {
		resolvers = append(resolvers, cmshttp.JWTUserResolver{Users: c.accountSvc, Secret: []byte(secret)})
	}
	if c.Config.Admin.TrustUserHeader {
		resolvers = append(resolvers, cmshttp.HeaderUserResolver{Users: c.accountSvc})
	}
	if len(resolvers) == 0 {
		logging.AdminLogger(c.loggerProvider).Warn("admin.auth.unconfigured",
			"hint", "set a JWT secret or trust the user header; every request is anonymous")
	}
	resolver := cmshttp.ChainResolvers(resolvers...)
	c.admin = cmshttp.NewAdminAPI(
		cmshttp.WithConfig(c.Config),
		cmshttp.WithPageService(c.pageSvc),
		cmshttp.WithPlaceholderService(c.placeholderSvc),
		cmshttp.WithUserResolver(resolver),
		cmshttp.WithLogger(logging.AdminLogger(c.loggerProvider)),
	)
}

// SubscribeCommands registers the page and placeholder command handlers with
// the global dispatcher. Calling it again is a no-op until Close.
func (c *Container) SubscribeCommands(opts ...runner.Option) {
	c.subsMu.Lock()
	defer c.subsMu.Unlock()
	if len(c.subscriptions) > 0 {
		return
	}
	logger := logging.ModuleLogger(c.loggerProvider, "cms.commands")
	c.subscriptions = append(c.subscriptions, pagescmd.Subscribe(c.pageSvc, logger, opts...)...)
	c.subscriptions = append(c.subscriptions, placeholderscmd.Subscribe(c.placeholderSvc, logger, opts...)...)
}

// Close detaches command handlers. The bun database is owned by the caller.
func (c *Container) Close(context.Context) error {
	c.subsMu.Lock()
	defer c.subsMu.Unlock()
	commands.Unsubscribe(c.subscriptions)
	c.subscriptions = nil
	return nil
}

func (c *Container) LoggerProvider() interfaces.LoggerProvider {
	return c.loggerProvider
}

// Logger returns a named logger from the configured provider.
func (c *Container) Logger(name string) interfaces.Logger {
	return logging.ModuleLogger(c.loggerProvider, name)
}

func (c *Container) BunDB() *bun.DB {
	return c.bunDB
}

func (c *Container) Evaluator() *permissions.Evaluator {
	return c.evaluator
}

// GrantRepository exposes page and global grants for seeding and tooling.
func (c *Container) GrantRepository() permissions.GrantRepository {
	return c.grantRepo
}

func (c *Container) SiteRepository() sites.Repository {
	return c.siteRepo
}

func (c *Container) AccountService() accounts.Service {
	return c.accountSvc
}

func (c *Container) PageService() pages.Service {
	return c.pageSvc
}

func (c *Container) PlaceholderService() placeholders.Service {
	return c.placeholderSvc
}

func (c *Container) Activity() *activity.Emitter {
	return c.emitter
}

func (c *Container) ActivitySink() interfaces.ActivitySink {
	return c.activitySink
}

func (c *Container) AdminAPI() *cmshttp.AdminAPI {
	return c.admin
}
