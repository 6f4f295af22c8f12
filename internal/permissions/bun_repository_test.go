package permissions

import (
	"context"
	"testing"

	"github.com/goliatone/go-cms-admin/pkg/testsupport"
	"github.com/google/uuid"
)

func TestBunGrantRepositoryRoundTrip(t *testing.T) {
	db := testsupport.NewBunDB(t, (*PagePermission)(nil), (*GlobalPagePermission)(nil))
	repo := NewBunGrantRepository(db)
	ctx := context.Background()
	user, page, site := uuid.New(), uuid.New(), uuid.New()

	grant, err := repo.CreatePagePermission(ctx, &PagePermission{UserID: user, PageID: page, Capabilities: CanView | CanChange})
	if err != nil {
		t.Fatalf("create page permission: %v", err)
	}
	if grant.GrantOn != GrantOnPageAndDescendants {
		t.Fatalf("expected default grant_on, got %q", grant.GrantOn)
	}
	grant.Capabilities |= CanPublish
	grant.GrantOn = GrantOnPage
	if _, err := repo.UpdatePagePermission(ctx, grant); err != nil {
		t.Fatalf("update page permission: %v", err)
	}
	forUser, err := repo.ListPagePermissionsForUser(ctx, user)
	if err != nil || len(forUser) != 1 {
		t.Fatalf("expected one grant for user, got %d (%v)", len(forUser), err)
	}
	if !forUser[0].Capabilities.Has(CanPublish) || forUser[0].GrantOn != GrantOnPage {
		t.Fatalf("expected updated grant, got %+v", forUser[0])
	}

	if _, err := repo.CreateGlobalPermission(ctx, &GlobalPagePermission{UserID: user, SiteIDs: []uuid.UUID{site}, Capabilities: CanAdd}); err != nil {
		t.Fatalf("create global permission: %v", err)
	}
	globals, err := repo.ListGlobalPermissionsForUser(ctx, user)
	if err != nil || len(globals) != 1 {
		t.Fatalf("expected one global grant, got %d (%v)", len(globals), err)
	}
	if !globals[0].CoversSite(site) || globals[0].CoversSite(uuid.New()) {
		t.Fatalf("expected global grant scoped to its site, got %+v", globals[0].SiteIDs)
	}

	if err := repo.DeletePagePermissionsForPage(ctx, page); err != nil {
		t.Fatalf("delete page permissions: %v", err)
	}
	if left, _ := repo.ListPagePermissionsForPage(ctx, page); len(left) != 0 {
		t.Fatalf("expected page grants removed, got %d", len(left))
	}
}
