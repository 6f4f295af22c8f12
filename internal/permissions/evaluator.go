package permissions

import (
	"context"

	"github.com/goliatone/go-cms-admin/internal/logging"
	"github.com/goliatone/go-cms-admin/pkg/interfaces"
	"github.com/google/uuid"
)

// Target identifies the page a capability is checked against. AncestorIDs
// runs from the direct parent up to the root.
type Target struct {
	PageID      uuid.UUID
	SiteID      uuid.UUID
	AncestorIDs []uuid.UUID
}

// Authorizer answers page capability questions. *Evaluator implements it.
type Authorizer interface {
	Has(ctx context.Context, principal Principal, target *Target, capability Capability) (bool, error)
	Require(ctx context.Context, principal Principal, target *Target, capability Capability) error
	Capabilities(ctx context.Context, principal Principal, target *Target) (Capability, error)
	HasAnywhere(ctx context.Context, principal Principal, capability Capability) (bool, error)
}

// Evaluator resolves page capabilities for a principal.
//
// Inactive users are denied and superusers allowed outright. Everyone else
// needs staff status and the model level token first; with page permissions
// disabled that token is enough. Otherwise the capability must come from a
// grant on the page, a grant on an ancestor whose scope reaches the page, or
// a global grant covering the page's site. Anything else is denied.
type Evaluator struct {
	grants  GrantRepository
	enabled bool
	logger  interfaces.Logger
}

type EvaluatorOption func(*Evaluator)

// WithPagePermissions toggles per-page grant resolution (default enabled).
func WithPagePermissions(enabled bool) EvaluatorOption {
	return func(e *Evaluator) {
		e.enabled = enabled
	}
}

func WithLogger(logger interfaces.Logger) EvaluatorOption {
	return func(e *Evaluator) {
		e.logger = logging.Ensure(logger)
	}
}

func NewEvaluator(grants GrantRepository, opts ...EvaluatorOption) *Evaluator {
	e := &Evaluator{
		grants:  grants,
		enabled: true,
		logger:  logging.NoOp(),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(e)
		}
	}
	if e.grants == nil {
		e.grants = NewMemoryGrantRepository()
	}
	return e
}

// Enabled reports whether per-page grants are resolved.
func (e *Evaluator) Enabled() bool {
	return e.enabled
}

// Has reports whether principal holds capability on target. A nil target
// asks about global rights on any site.
func (e *Evaluator) Has(ctx context.Context, principal Principal, target *Target, capability Capability) (bool, error) {
	if !principal.Active || principal.Anonymous() {
		return false, nil
	}
	if principal.Superuser {
		return true, nil
	}
	if !principal.Staff || !principal.HasPermission(capability.ModelPermission()) {
		return false, nil
	}
	if !e.enabled {
		return true, nil
	}
	granted, err := e.grantedOn(ctx, principal.ID, target)
	if err != nil {
		return false, err
	}
	return granted.Has(capability), nil
}

// Require returns an Error naming the capability when it is not held.
func (e *Evaluator) Require(ctx context.Context, principal Principal, target *Target, capability Capability) error {
	ok, err := e.Has(ctx, principal, target, capability)
	if err != nil {
		return err
	}
	if !ok {
		e.logger.Debug("permissions.denied",
			"user_id", principal.ID,
			"capability", capability.String(),
		)
		return Error{Permission: "page:" + capability.String()}
	}
	return nil
}

// Capabilities returns every capability principal holds on target.
func (e *Evaluator) Capabilities(ctx context.Context, principal Principal, target *Target) (Capability, error) {
	if !principal.Active || principal.Anonymous() {
		return 0, nil
	}
	if principal.Superuser {
		return All, nil
	}
	if !principal.Staff {
		return 0, nil
	}
	granted := All
	if e.enabled {
		var err error
		if granted, err = e.grantedOn(ctx, principal.ID, target); err != nil {
			return 0, err
		}
	}
	var out Capability
	for _, entry := range capabilityNames {
		if granted.Has(entry.cap) && principal.HasPermission(entry.cap.ModelPermission()) {
			out |= entry.cap
		}
	}
	return out, nil
}

// HasAnywhere reports whether principal holds capability on at least one
// page, through any page grant or a global grant.
func (e *Evaluator) HasAnywhere(ctx context.Context, principal Principal, capability Capability) (bool, error) {
	if !principal.Active || principal.Anonymous() {
		return false, nil
	}
	if principal.Superuser {
		return true, nil
	}
	if !principal.Staff || !principal.HasPermission(capability.ModelPermission()) {
		return false, nil
	}
	if !e.enabled {
		return true, nil
	}
	globals, err := e.grants.ListGlobalPermissionsForUser(ctx, principal.ID)
	if err != nil {
		return false, err
	}
	for _, g := range globals {
		if g.Capabilities.Has(capability) {
			return true, nil
		}
	}
	pages, err := e.grants.ListPagePermissionsForUser(ctx, principal.ID)
	if err != nil {
		return false, err
	}
	for _, p := range pages {
		if p.Capabilities.Has(capability) {
			return true, nil
		}
	}
	return false, nil
}

// AssignUserToPage gives userID a page_and_descendants grant on pageID.
// grantAll adds the advanced settings and permission management rights.
func (e *Evaluator) AssignUserToPage(ctx context.Context, pageID, userID uuid.UUID, grantAll bool) (*PagePermission, error) {
	capabilities := DefaultPageGrant
	if grantAll {
		capabilities = All
	}
	return e.grants.CreatePagePermission(ctx, &PagePermission{
		UserID:       userID,
		PageID:       pageID,
		Capabilities: capabilities,
		GrantOn:      GrantOnPageAndDescendants,
	})
}

// PageGrants lists the grants attached to pageID.
func (e *Evaluator) PageGrants(ctx context.Context, pageID uuid.UUID) ([]*PagePermission, error) {
	return e.grants.ListPagePermissionsForPage(ctx, pageID)
}

// ForgetPage drops every grant attached to pageID.
func (e *Evaluator) ForgetPage(ctx context.Context, pageID uuid.UUID) error {
	return e.grants.DeletePagePermissionsForPage(ctx, pageID)
}

func (e *Evaluator) grantedOn(ctx context.Context, userID uuid.UUID, target *Target) (Capability, error) {
	var granted Capability
	if target != nil && target.PageID != uuid.Nil {
		pageGrants, err := e.grants.ListPagePermissionsForUser(ctx, userID)
		if err != nil {
			return 0, err
		}
		granted |= coveringGrants(pageGrants, target)
		if granted == All {
			return granted, nil
		}
	}

	globals, err := e.grants.ListGlobalPermissionsForUser(ctx, userID)
	if err != nil {
		return 0, err
	}
	for _, g := range globals {
		if target == nil || target.SiteID == uuid.Nil || g.CoversSite(target.SiteID) {
			granted |= g.Capabilities
		}
	}
	return granted, nil
}

// coveringGrants merges the grants on the page itself with the ancestor
// grants whose scope reaches down to it.
func coveringGrants(grants []*PagePermission, target *Target) Capability {
	depthOf := make(map[uuid.UUID]int, len(target.AncestorIDs)+1)
	depthOf[target.PageID] = 0
	for i, id := range target.AncestorIDs {
		if _, seen := depthOf[id]; !seen {
			depthOf[id] = i + 1
		}
	}
	var granted Capability
	for _, g := range grants {
		depth, ok := depthOf[g.PageID]
		if ok && g.GrantOn.Covers(depth) {
			granted |= g.Capabilities
		}
	}
	return granted
}
