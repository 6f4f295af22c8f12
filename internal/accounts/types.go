package accounts

import (
	"errors"
	"fmt"
	"time"

	"github.com/goliatone/go-cms-admin/internal/permissions"
	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

// User is an admin account. Permissions holds model level tokens such as
// "pages:update" or "text:create".
type User struct {
	bun.BaseModel `bun:"table:users,alias:u"`

	ID          uuid.UUID `bun:",pk,type:uuid" json:"id"`
	Username    string    `bun:"username,notnull,unique" json:"username"`
	Email       string    `bun:"email" json:"email,omitempty"`
	IsActive    bool      `bun:"is_active,notnull" json:"is_active"`
	IsStaff     bool      `bun:"is_staff,notnull" json:"is_staff"`
	IsSuperuser bool      `bun:"is_superuser,notnull" json:"is_superuser"`
	Permissions []string  `bun:"permissions,type:jsonb" json:"permissions,omitempty"`
	CreatedAt   time.Time `bun:"created_at,nullzero,default:current_timestamp" json:"created_at"`
	UpdatedAt   time.Time `bun:"updated_at,nullzero,default:current_timestamp" json:"updated_at"`
}

// Principal converts the account into the value permission checks work on.
func (u *User) Principal() permissions.Principal {
	if u == nil {
		return permissions.Principal{}
	}
	return permissions.Principal{
		ID:          u.ID,
		Username:    u.Username,
		Active:      u.IsActive,
		Staff:       u.IsStaff,
		Superuser:   u.IsSuperuser,
		Permissions: permissions.NewSet(u.Permissions...),
	}
}

// Checker exposes the user's model permissions to permissions.Require.
func (u *User) Checker() permissions.Checker {
	return permissions.CheckerFunc(u.Principal().HasPermission)
}

var (
	ErrUsernameRequired = errors.New("accounts: username required")
	ErrUsernameExists   = errors.New("accounts: username already exists")
)

// NotFoundError reports a missing account.
type NotFoundError struct {
	Key string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("user %q not found", e.Key)
}

func cloneUser(u *User) *User {
	if u == nil {
		return nil
	}
	copied := *u
	copied.Permissions = append([]string(nil), u.Permissions...)
	return &copied
}
