package runtimeconfig

import (
	"errors"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/google/uuid"
)

var (
	ErrDefaultLanguageRequired = errors.New("cms config: default language is required")
	ErrDefaultLanguageUnknown  = errors.New("cms config: default language must be listed in languages")
	ErrTemplatesRequired       = errors.New("cms config: at least one template is required")
	ErrStorageProviderUnknown  = errors.New("cms config: storage provider is invalid")
	ErrStorageDialectUnknown   = errors.New("cms config: storage dialect is invalid")
	ErrStorageDSNRequired      = errors.New("cms config: storage dsn is required for bun provider")
	ErrLoggingProviderUnknown  = errors.New("cms config: logging provider is invalid")
	ErrLoggingLevelInvalid     = errors.New("cms config: logging level is invalid")
	ErrLoggingFormatInvalid    = errors.New("cms config: logging format is invalid")
	ErrPlaceholderLimitInvalid = errors.New("cms config: placeholder limits must be positive")
	ErrAdminBasePathInvalid    = errors.New("cms config: admin base path must start with /")
)

// GlobalLimitKey is the Limits key that caps every plugin type in a slot.
const GlobalLimitKey = "global"

// Config collects the runtime settings of the admin module.
type Config struct {
	SiteID          uuid.UUID
	DefaultLanguage string
	Languages       []string
	Templates       []string
	Permissions     PermissionsConfig
	Placeholders    PlaceholdersConfig
	Storage         StorageConfig
	Cache           CacheConfig
	Logging         LoggingConfig
	Admin           AdminConfig
}

// PermissionsConfig toggles per-page permission resolution. When disabled
// the model level permissions of staff users are sufficient.
type PermissionsConfig struct {
	Enabled bool
}

// PlaceholdersConfig lists the slots created with every page and the plugin
// limits applied per slot.
type PlaceholdersConfig struct {
	Slots  []string
	Limits map[string]map[string]int
}

// StorageConfig selects the repository backend.
type StorageConfig struct {
	Provider string
	Dialect  string
	DSN      string
}

// CacheConfig controls the repository cache wrapping bun repositories.
type CacheConfig struct {
	Enabled bool
	TTL     time.Duration
}

// LoggingConfig selects the logger provider and its options.
type LoggingConfig struct {
	Provider  string
	Level     string
	Format    string
	AddSource bool
	Focus     []string
}

// AdminConfig captures admin HTTP surface settings.
type AdminConfig struct {
	BasePath       string
	ToolbarEditOn  string
	ToolbarEditOff string
	JWTSecret      string
	// TrustUserHeader accepts the user named in the X-CMS-User header. Only
	// enable it behind a proxy that authenticates and sets the header.
	TrustUserHeader bool
}

// DefaultConfig returns an in-memory setup with permissions enabled.
func DefaultConfig() Config {
	return Config{
		SiteID:          uuid.MustParse("00000000-0000-0000-0000-000000000001"),
		DefaultLanguage: "en",
		Languages:       []string{"en"},
		Templates:       []string{"nav_playground.html", "col_two.html"},
		Permissions:     PermissionsConfig{Enabled: true},
		Placeholders: PlaceholdersConfig{
			Slots:  []string{"body", "right-column"},
			Limits: map[string]map[string]int{},
		},
		Storage: StorageConfig{Provider: "memory", Dialect: "sqlite"},
		Cache:   CacheConfig{TTL: time.Minute},
		Logging: LoggingConfig{Provider: "console", Level: "info", Format: "console"},
		Admin: AdminConfig{
			BasePath:       "/admin/cms",
			ToolbarEditOn:  "edit",
			ToolbarEditOff: "edit_off",
		},
	}
}

// DefaultTemplate returns the first configured template.
func (c Config) DefaultTemplate() string {
	if len(c.Templates) == 0 {
		return ""
	}
	return c.Templates[0]
}

// HasTemplate reports whether name is a configured template.
func (c Config) HasTemplate(name string) bool {
	return slices.Contains(c.Templates, strings.TrimSpace(name))
}

// HasLanguage reports whether code is a configured language.
func (c Config) HasLanguage(code string) bool {
	return slices.Contains(c.Languages, strings.TrimSpace(code))
}

// Validate checks the configuration for inconsistent values.
func (c Config) Validate() error {
	lang := strings.TrimSpace(c.DefaultLanguage)
	if lang == "" {
		return ErrDefaultLanguageRequired
	}
	if !c.HasLanguage(lang) {
		return ErrDefaultLanguageUnknown
	}
	if len(c.Templates) == 0 {
		return ErrTemplatesRequired
	}
	for slot, limits := range c.Placeholders.Limits {
		for pluginType, limit := range limits {
			if limit <= 0 {
				return fmt.Errorf("%w: %s/%s", ErrPlaceholderLimitInvalid, slot, pluginType)
			}
		}
	}
	if err := c.Storage.validate(); err != nil {
		return err
	}
	if err := c.Logging.validate(); err != nil {
		return err
	}
	if base := strings.TrimSpace(c.Admin.BasePath); base != "" && !strings.HasPrefix(base, "/") {
		return ErrAdminBasePathInvalid
	}
	return nil
}

func (s StorageConfig) validate() error {
	switch strings.ToLower(strings.TrimSpace(s.Provider)) {
	case "", "memory":
		return nil
	case "bun":
	default:
		return ErrStorageProviderUnknown
	}
	switch strings.ToLower(strings.TrimSpace(s.Dialect)) {
	case "sqlite", "postgres":
	default:
		return ErrStorageDialectUnknown
	}
	if strings.TrimSpace(s.DSN) == "" {
		return ErrStorageDSNRequired
	}
	return nil
}

func (l LoggingConfig) validate() error {
	provider := strings.ToLower(strings.TrimSpace(l.Provider))
	switch provider {
	case "", "console", "gologger":
	default:
		return ErrLoggingProviderUnknown
	}
	switch strings.ToLower(strings.TrimSpace(l.Level)) {
	case "", "trace", "debug", "info", "warn", "warning", "error", "fatal":
	default:
		return ErrLoggingLevelInvalid
	}
	if provider == "gologger" {
		switch strings.ToLower(strings.TrimSpace(l.Format)) {
		case "", "json", "console", "pretty":
		default:
			return ErrLoggingFormatInvalid
		}
	}
	return nil
}
