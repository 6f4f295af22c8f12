package permissions

import (
	"context"
	"errors"
	"strings"
)

type Action string

const (
	ActionRead     Action = "read"
	ActionCreate   Action = "create"
	ActionUpdate   Action = "update"
	ActionDelete   Action = "delete"
	ActionPublish  Action = "publish"
	ActionAdvanced Action = "advanced"
	ActionMove     Action = "move"
)

const (
	ResourcePages           = "pages"
	ResourceTitles          = "titles"
	ResourcePagePermissions = "page_permissions"
	ResourcePlaceholders    = "placeholders"
)

const (
	PagesRead   = "pages:read"
	PagesCreate = "pages:create"
	PagesUpdate = "pages:update"
	PagesDelete = "pages:delete"

	PagePermissionsUpdate = "page_permissions:update"
)

var ErrPermissionDenied = errors.New("permissions: denied")

// Error reports the token or capability that was denied.
type Error struct {
	Permission string
}

func (e Error) Error() string {
	if strings.TrimSpace(e.Permission) == "" {
		return "permission denied"
	}
	return "permission denied: " + e.Permission
}

func (e Error) Unwrap() error {
	return ErrPermissionDenied
}

// Join builds a "resource:action" token.
func Join(resource string, action Action) string {
	res := normalize(resource)
	act := normalize(string(action))
	if res == "" || act == "" {
		return ""
	}
	return res + ":" + act
}

type Checker interface {
	Allowed(permission string) bool
}

type CheckerFunc func(permission string) bool

func (fn CheckerFunc) Allowed(permission string) bool {
	return fn(permission)
}

// Set is a static token set supporting "resource:*" and "*" wildcards.
type Set map[string]struct{}

func NewSet(perms ...string) Set {
	set := Set{}
	for _, perm := range perms {
		if normalized := normalize(perm); normalized != "" {
			set[normalized] = struct{}{}
		}
	}
	return set
}

func (s Set) Allowed(permission string) bool {
	if len(s) == 0 {
		return false
	}
	normalized := normalize(permission)
	if normalized == "" {
		return false
	}
	if _, ok := s[normalized]; ok {
		return true
	}
	if resource, _, found := strings.Cut(normalized, ":"); found {
		if _, ok := s[resource+":*"]; ok {
			return true
		}
	}
	_, ok := s["*"]
	return ok
}

// List returns the tokens in the set.
func (s Set) List() []string {
	out := make([]string, 0, len(s))
	for perm := range s {
		out = append(out, perm)
	}
	return out
}

type Permissioner interface {
	HasPermission(permission string) bool
}

type contextKey struct{}

// WithChecker stores a checker on the context.
func WithChecker(ctx context.Context, checker Checker) context.Context {
	if ctx == nil || checker == nil {
		return ctx
	}
	return context.WithValue(ctx, contextKey{}, checker)
}

// WithPermissions stores a static token set on the context.
func WithPermissions(ctx context.Context, perms ...string) context.Context {
	if ctx == nil || len(perms) == 0 {
		return ctx
	}
	return WithChecker(ctx, NewSet(perms...))
}

// WithPrincipal stores a principal on the context so model level checks
// resolve against its tokens.
func WithPrincipal(ctx context.Context, principal Principal) context.Context {
	if ctx == nil {
		return ctx
	}
	return context.WithValue(ctx, contextKey{}, principal)
}

// CheckerFromContext returns the checker stored on ctx, if any.
func CheckerFromContext(ctx context.Context) Checker {
	if ctx == nil {
		return nil
	}
	switch typed := ctx.Value(contextKey{}).(type) {
	case Checker:
		return typed
	case Permissioner:
		return CheckerFunc(typed.HasPermission)
	default:
		return nil
	}
}

// PrincipalFromContext returns the principal stored on ctx.
func PrincipalFromContext(ctx context.Context) (Principal, bool) {
	if ctx == nil {
		return Principal{}, false
	}
	principal, ok := ctx.Value(contextKey{}).(Principal)
	return principal, ok
}

// Allowed reports whether the context allows permission. Contexts without a
// checker allow everything.
func Allowed(ctx context.Context, permission string) bool {
	return Require(ctx, permission) == nil
}

// Require returns an Error when the context checker denies permission.
func Require(ctx context.Context, permission string) error {
	normalized := normalize(permission)
	if normalized == "" {
		return nil
	}
	checker := CheckerFromContext(ctx)
	if checker == nil || checker.Allowed(normalized) {
		return nil
	}
	return Error{Permission: normalized}
}

func normalize(value string) string {
	return strings.ToLower(strings.TrimSpace(value))
}
