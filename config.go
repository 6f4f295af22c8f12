package cms

import "github.com/goliatone/go-cms-admin/internal/runtimeconfig"

var (
	ErrDefaultLanguageRequired = runtimeconfig.ErrDefaultLanguageRequired
	ErrDefaultLanguageUnknown  = runtimeconfig.ErrDefaultLanguageUnknown
	ErrTemplatesRequired       = runtimeconfig.ErrTemplatesRequired
	ErrStorageProviderUnknown  = runtimeconfig.ErrStorageProviderUnknown
	ErrStorageDialectUnknown   = runtimeconfig.ErrStorageDialectUnknown
	ErrStorageDSNRequired      = runtimeconfig.ErrStorageDSNRequired
	ErrLoggingProviderUnknown  = runtimeconfig.ErrLoggingProviderUnknown
	ErrLoggingLevelInvalid     = runtimeconfig.ErrLoggingLevelInvalid
	ErrLoggingFormatInvalid    = runtimeconfig.ErrLoggingFormatInvalid
	ErrPlaceholderLimitInvalid = runtimeconfig.ErrPlaceholderLimitInvalid
	ErrAdminBasePathInvalid    = runtimeconfig.ErrAdminBasePathInvalid
)

// GlobalLimitKey caps every plugin type of a slot in PlaceholdersConfig.Limits.
const GlobalLimitKey = runtimeconfig.GlobalLimitKey

type (
	Config             = runtimeconfig.Config
	PermissionsConfig  = runtimeconfig.PermissionsConfig
	PlaceholdersConfig = runtimeconfig.PlaceholdersConfig
	StorageConfig      = runtimeconfig.StorageConfig
	CacheConfig        = runtimeconfig.CacheConfig
	LoggingConfig      = runtimeconfig.LoggingConfig
	AdminConfig        = runtimeconfig.AdminConfig
)

func DefaultConfig() Config {
	return runtimeconfig.DefaultConfig()
}
