package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/goliatone/go-cms-admin/internal/accounts"
	"github.com/goliatone/go-cms-admin/internal/pages"
	"github.com/goliatone/go-cms-admin/internal/permissions"
	"github.com/goliatone/go-cms-admin/internal/placeholders"
	"github.com/goliatone/go-cms-admin/internal/runtimeconfig"
	"github.com/goliatone/go-cms-admin/internal/sites"
	"github.com/goliatone/go-cms-admin/pkg/activity/bunsink"
	_ "github.com/lib/pq"
	_ "github.com/mattn/go-sqlite3"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/pgdialect"
	"github.com/uptrace/bun/dialect/sqlitedialect"
)

var ErrMemoryProvider = errors.New("storage: memory provider has no database")

// Open connects to the database described by cfg.
func Open(cfg runtimeconfig.StorageConfig) (*bun.DB, error) {
	if !strings.EqualFold(strings.TrimSpace(cfg.Provider), "bun") {
		return nil, ErrMemoryProvider
	}
	dsn := strings.TrimSpace(cfg.DSN)
	switch strings.ToLower(strings.TrimSpace(cfg.Dialect)) {
	case "sqlite":
		sqlDB, err := sql.Open("sqlite3", dsn)
		if err != nil {
			return nil, fmt.Errorf("storage: open sqlite: %w", err)
		}
		// sqlite serialises writers; a single connection avoids SQLITE_BUSY.
		sqlDB.SetMaxOpenConns(1)
		return bun.NewDB(sqlDB, sqlitedialect.New()), nil
	case "postgres":
		sqlDB, err := sql.Open("postgres", dsn)
		if err != nil {
			return nil, fmt.Errorf("storage: open postgres: %w", err)
		}
		return bun.NewDB(sqlDB, pgdialect.New()), nil
	default:
		return nil, fmt.Errorf("%w: %q", runtimeconfig.ErrStorageDialectUnknown, cfg.Dialect)
	}
}

// Models lists every persisted model in creation order.
func Models() []any {
	return []any{
		(*sites.Site)(nil),
		(*accounts.User)(nil),
		(*permissions.PagePermission)(nil),
		(*permissions.GlobalPagePermission)(nil),
		(*pages.Page)(nil),
		(*pages.Title)(nil),
		(*placeholders.Placeholder)(nil),
		(*placeholders.Plugin)(nil),
		(*bunsink.LogEntry)(nil),
	}
}

type index struct {
	model  any
	name   string
	unique bool
	cols   []string
}

var indexes = []index{
	{model: (*pages.Page)(nil), name: "pages_site_parent_idx", cols: []string{"site_id", "parent_id"}},
	{model: (*pages.Page)(nil), name: "pages_lineage_idx", cols: []string{"lineage_id"}},
	{model: (*pages.Title)(nil), name: "titles_page_language_idx", unique: true, cols: []string{"page_id", "language"}},
	{model: (*placeholders.Placeholder)(nil), name: "placeholders_page_idx", cols: []string{"page_id"}},
	{model: (*placeholders.Plugin)(nil), name: "plugins_placeholder_language_idx", cols: []string{"placeholder_id", "language"}},
	{model: (*permissions.PagePermission)(nil), name: "page_permissions_user_idx", cols: []string{"user_id"}},
}

// Migrate creates the tables and indexes that do not exist yet.
func Migrate(ctx context.Context, db *bun.DB) error {
	if db == nil {
		return errors.New("storage: db is required")
	}
	for _, model := range Models() {
		if _, err := db.NewCreateTable().Model(model).IfNotExists().Exec(ctx); err != nil {
			return fmt.Errorf("storage: create table %T: %w", model, err)
		}
	}
	for _, idx := range indexes {
		query := db.NewCreateIndex().Model(idx.model).Index(idx.name).Column(idx.cols...).IfNotExists()
		if idx.unique {
			query = query.Unique()
		}
		if _, err := query.Exec(ctx); err != nil {
			return fmt.Errorf("storage: create index %s: %w", idx.name, err)
		}
	}
	return nil
}
