package permissions

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

var (
	ErrGrantUserRequired = errors.New("permissions: grant user required")
	ErrGrantPageRequired = errors.New("permissions: grant page required")
	ErrGrantOnInvalid    = errors.New("permissions: grant_on invalid")
)

// PagePermission grants a user capabilities on a page and, depending on
// GrantOn, on pages below it.
type PagePermission struct {
	bun.BaseModel `bun:"table:page_permissions,alias:pp"`

	ID           uuid.UUID  `bun:",pk,type:uuid" json:"id"`
	UserID       uuid.UUID  `bun:"user_id,notnull,type:uuid" json:"user_id"`
	PageID       uuid.UUID  `bun:"page_id,notnull,type:uuid" json:"page_id"`
	Capabilities Capability `bun:"capabilities,notnull" json:"capabilities"`
	GrantOn      GrantOn    `bun:"grant_on,notnull" json:"grant_on"`
	CreatedAt    time.Time  `bun:"created_at,nullzero,default:current_timestamp" json:"created_at"`
	UpdatedAt    time.Time  `bun:"updated_at,nullzero,default:current_timestamp" json:"updated_at"`
}

// GlobalPagePermission grants capabilities on every page of the listed sites.
// An empty site list covers all sites.
type GlobalPagePermission struct {
	bun.BaseModel `bun:"table:global_page_permissions,alias:gpp"`

	ID           uuid.UUID   `bun:",pk,type:uuid" json:"id"`
	UserID       uuid.UUID   `bun:"user_id,notnull,type:uuid" json:"user_id"`
	SiteIDs      []uuid.UUID `bun:"site_ids,type:jsonb" json:"site_ids,omitempty"`
	Capabilities Capability  `bun:"capabilities,notnull" json:"capabilities"`
	CreatedAt    time.Time   `bun:"created_at,nullzero,default:current_timestamp" json:"created_at"`
	UpdatedAt    time.Time   `bun:"updated_at,nullzero,default:current_timestamp" json:"updated_at"`
}

// CoversSite reports whether the grant applies to siteID.
func (g *GlobalPagePermission) CoversSite(siteID uuid.UUID) bool {
	if g == nil {
		return false
	}
	if len(g.SiteIDs) == 0 {
		return true
	}
	for _, id := range g.SiteIDs {
		if id == siteID {
			return true
		}
	}
	return false
}

// GrantRepository stores page and global grants.
type GrantRepository interface {
	CreatePagePermission(ctx context.Context, record *PagePermission) (*PagePermission, error)
	UpdatePagePermission(ctx context.Context, record *PagePermission) (*PagePermission, error)
	ListPagePermissionsForUser(ctx context.Context, userID uuid.UUID) ([]*PagePermission, error)
	ListPagePermissionsForPage(ctx context.Context, pageID uuid.UUID) ([]*PagePermission, error)
	DeletePagePermissionsForPage(ctx context.Context, pageID uuid.UUID) error
	CreateGlobalPermission(ctx context.Context, record *GlobalPagePermission) (*GlobalPagePermission, error)
	ListGlobalPermissionsForUser(ctx context.Context, userID uuid.UUID) ([]*GlobalPagePermission, error)
}

// NotFoundError is returned when a grant does not exist.
type NotFoundError struct {
	Resource string
	Key      string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s %q not found", e.Resource, e.Key)
}

func validatePagePermission(record *PagePermission) error {
	if record.UserID == uuid.Nil {
		return ErrGrantUserRequired
	}
	if record.PageID == uuid.Nil {
		return ErrGrantPageRequired
	}
	if record.GrantOn == "" {
		record.GrantOn = GrantOnPageAndDescendants
	}
	if !record.GrantOn.Valid() {
		return ErrGrantOnInvalid
	}
	return nil
}
