package placeholderscmd_test

import (
	"context"
	"testing"

	"github.com/goliatone/go-cms-admin/internal/commands/placeholderscmd"
	"github.com/goliatone/go-cms-admin/internal/identity"
	"github.com/goliatone/go-cms-admin/internal/pages"
	"github.com/goliatone/go-cms-admin/internal/permissions"
	"github.com/goliatone/go-cms-admin/internal/placeholders"
	"github.com/goliatone/go-cms-admin/internal/runtimeconfig"
	goerrors "github.com/goliatone/go-errors"
	"github.com/google/uuid"
)

func TestCopyLanguageAndClear(t *testing.T) {
	ctx := context.Background()
	cfg := runtimeconfig.DefaultConfig()
	cfg.Languages = []string{"en", "de"}
	contents := placeholders.NewService(placeholders.NewMemoryRepository())
	svc := pages.NewService(pages.NewMemoryRepository(), pages.WithConfig(cfg), pages.WithContents(contents))
	contents.AttachPageHooks(svc)
	admin := permissions.Principal{ID: uuid.New(), Active: true, Staff: true, Superuser: true}

	page, err := svc.Create(ctx, admin, pages.CreatePageRequest{Language: "en", Title: "Home"})
	if err != nil {
		t.Fatalf("create page: %v", err)
	}
	body := identity.PagePlaceholderUUID(page.ID, "body")
	for _, text := range []string{"one", "two"} {
		if _, err := contents.AddPlugin(ctx, admin, placeholders.AddPluginRequest{
			PlaceholderID: body,
			PluginType:    placeholders.TypeText,
			Language:      "en",
			Data:          map[string]any{"body": text},
		}); err != nil {
			t.Fatalf("add plugin: %v", err)
		}
	}

	copyHandler := placeholderscmd.NewCopyLanguageHandler(contents, nil)
	if err := copyHandler.Execute(ctx, placeholderscmd.CopyLanguageCommand{Actor: admin, PageID: page.ID, SourceLanguage: "en", TargetLanguage: "de"}); err != nil {
		t.Fatalf("copy language: %v", err)
	}
	copied, err := contents.Plugins(ctx, body, "de")
	if err != nil || len(copied) != 2 {
		t.Fatalf("expected 2 german plugins, got %d (%v)", len(copied), err)
	}

	clearHandler := placeholderscmd.NewClearPlaceholderHandler(contents, nil)
	if err := clearHandler.Execute(ctx, placeholderscmd.ClearPlaceholderCommand{Actor: admin, PlaceholderID: body, Language: "de"}); err != nil {
		t.Fatalf("clear: %v", err)
	}
	if remaining, _ := contents.Plugins(ctx, body, "de"); len(remaining) != 0 {
		t.Fatalf("expected german plugins cleared, got %d", len(remaining))
	}
	if kept, _ := contents.Plugins(ctx, body, "en"); len(kept) != 2 {
		t.Fatalf("expected english plugins kept, got %d", len(kept))
	}
}

func TestCopyLanguageRejectsSameLanguage(t *testing.T) {
	cmd := placeholderscmd.CopyLanguageCommand{PageID: uuid.New(), SourceLanguage: "en", TargetLanguage: "en"}
	if err := cmd.Validate(); err == nil {
		t.Fatal("expected validation error for identical languages")
	}

	handler := placeholderscmd.NewCopyLanguageHandler(placeholders.NewService(placeholders.NewMemoryRepository()), nil)
	if err := handler.Execute(context.Background(), cmd); !goerrors.IsCategory(err, goerrors.CategoryValidation) {
		t.Fatalf("expected validation category, got %v", err)
	}
}

func TestClearPlaceholderRequiresID(t *testing.T) {
	if err := (placeholderscmd.ClearPlaceholderCommand{}).Validate(); err == nil {
		t.Fatal("expected missing placeholder id to fail validation")
	}
}
