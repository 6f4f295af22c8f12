package cms_test

import (
	"errors"
	"testing"

	cms "github.com/goliatone/go-cms-admin"
)

func TestConfigValidateDefaultLanguageMustBeListed(t *testing.T) {
	cfg := cms.DefaultConfig()
	cfg.DefaultLanguage = "fr"
	if err := cfg.Validate(); !errors.Is(err, cms.ErrDefaultLanguageUnknown) {
		t.Fatalf("expected ErrDefaultLanguageUnknown, got %v", err)
	}
}

func TestConfigValidateRequiresTemplates(t *testing.T) {
	cfg := cms.DefaultConfig()
	cfg.Templates = nil
	if err := cfg.Validate(); !errors.Is(err, cms.ErrTemplatesRequired) {
		t.Fatalf("expected ErrTemplatesRequired, got %v", err)
	}
}

func TestConfigValidateBunRequiresDSN(t *testing.T) {
	cfg := cms.DefaultConfig()
	cfg.Storage.Provider = "bun"
	cfg.Storage.DSN = ""
	if err := cfg.Validate(); !errors.Is(err, cms.ErrStorageDSNRequired) {
		t.Fatalf("expected ErrStorageDSNRequired, got %v", err)
	}
}

func TestConfigValidateRejectsNonPositiveLimits(t *testing.T) {
	cfg := cms.DefaultConfig()
	cfg.Placeholders.Limits = map[string]map[string]int{"body": {cms.GlobalLimitKey: 0}}
	if err := cfg.Validate(); !errors.Is(err, cms.ErrPlaceholderLimitInvalid) {
		t.Fatalf("expected ErrPlaceholderLimitInvalid, got %v", err)
	}
}

func TestConfigValidateAdminBasePath(t *testing.T) {
	cfg := cms.DefaultConfig()
	cfg.Admin.BasePath = "admin"
	if err := cfg.Validate(); !errors.Is(err, cms.ErrAdminBasePathInvalid) {
		t.Fatalf("expected ErrAdminBasePathInvalid, got %v", err)
	}
}
