package logging

import (
	"context"
	"strings"

	"github.com/goliatone/go-cms-admin/pkg/interfaces"
)

const (
	rootModule         = "cms"
	pagesModule        = "cms.pages"
	placeholdersModule = "cms.placeholders"
	permissionsModule  = "cms.permissions"
	adminModule        = "cms.admin"
	activityModule     = "cms.activity"
)

const (
	fieldPageID   = "page_id"
	fieldLanguage = "language"
	fieldUserID   = "user_id"
)

// ModuleLogger resolves the named logger from provider and stamps it with a
// module field. A nil provider yields a no-op logger.
func ModuleLogger(provider interfaces.LoggerProvider, module string) interfaces.Logger {
	module = strings.TrimSpace(module)
	if module == "" {
		module = rootModule
	}

	var logger interfaces.Logger = noopLogger{}
	if provider != nil {
		if resolved := provider.GetLogger(module); resolved != nil {
			logger = resolved
		}
	}
	return WithFields(logger, map[string]any{"module": module})
}

// PagesLogger returns the logger for the page workflow.
func PagesLogger(provider interfaces.LoggerProvider) interfaces.Logger {
	return ModuleLogger(provider, pagesModule)
}

// PlaceholdersLogger returns the logger for plugin tree operations.
func PlaceholdersLogger(provider interfaces.LoggerProvider) interfaces.Logger {
	return ModuleLogger(provider, placeholdersModule)
}

// PermissionsLogger returns the logger for the permission evaluator.
func PermissionsLogger(provider interfaces.LoggerProvider) interfaces.Logger {
	return ModuleLogger(provider, permissionsModule)
}

// AdminLogger returns the logger for the admin HTTP handlers.
func AdminLogger(provider interfaces.LoggerProvider) interfaces.Logger {
	return ModuleLogger(provider, adminModule)
}

// ActivityLogger returns the logger for admin log entry recording.
func ActivityLogger(provider interfaces.LoggerProvider) interfaces.Logger {
	return ModuleLogger(provider, activityModule)
}

// WithPageContext attaches page, language and user identifiers. Empty values
// are skipped.
func WithPageContext(logger interfaces.Logger, pageID, language, userID string) interfaces.Logger {
	fields := map[string]any{}
	if v := strings.TrimSpace(pageID); v != "" {
		fields[fieldPageID] = v
	}
	if v := strings.TrimSpace(language); v != "" {
		fields[fieldLanguage] = v
	}
	if v := strings.TrimSpace(userID); v != "" {
		fields[fieldUserID] = v
	}
	return WithFields(logger, fields)
}

// NoOp returns a logger that discards everything.
func NoOp() interfaces.Logger {
	return noopLogger{}
}

type noopLogger struct{}

var (
	_ interfaces.Logger       = noopLogger{}
	_ interfaces.FieldsLogger = noopLogger{}
)

func (noopLogger) Trace(string, ...any) {}
func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Info(string, ...any)  {}
func (noopLogger) Warn(string, ...any)  {}
func (noopLogger) Error(string, ...any) {}
func (noopLogger) Fatal(string, ...any) {}

func (n noopLogger) WithFields(map[string]any) interfaces.Logger { return n }

func (n noopLogger) WithContext(context.Context) interfaces.Logger { return n }
