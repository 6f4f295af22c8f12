package http

import (
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/goliatone/go-cms-admin/internal/logging"
	"github.com/goliatone/go-cms-admin/internal/pages"
	"github.com/goliatone/go-cms-admin/internal/permissions"
	"github.com/goliatone/go-cms-admin/internal/placeholders"
	"github.com/goliatone/go-cms-admin/internal/runtimeconfig"
	"github.com/goliatone/go-cms-admin/pkg/interfaces"
	"github.com/google/uuid"
)

// AdminAPI registers the page and plugin admin actions.
type AdminAPI struct {
	basePath     string
	editOff      string
	siteID       uuid.UUID
	pages        pages.Service
	placeholders placeholders.Service
	resolver     UserResolver
	logger       interfaces.Logger
}

// AdminOption mutates the AdminAPI configuration.
type AdminOption func(*AdminAPI)

func NewAdminAPI(opts ...AdminOption) *AdminAPI {
	defaults := runtimeconfig.DefaultConfig()
	api := &AdminAPI{
		basePath: defaults.Admin.BasePath,
		editOff:  defaults.Admin.ToolbarEditOff,
		siteID:   defaults.SiteID,
		logger:   logging.NoOp(),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(api)
		}
	}
	return api
}

// WithConfig applies the admin base path, toolbar switches and current site.
func WithConfig(cfg runtimeconfig.Config) AdminOption {
	return func(api *AdminAPI) {
		if trimmed := strings.TrimSpace(cfg.Admin.BasePath); trimmed != "" {
			api.basePath = trimmed
		}
		if cfg.Admin.ToolbarEditOff != "" {
			api.editOff = cfg.Admin.ToolbarEditOff
		}
		if cfg.SiteID != uuid.Nil {
			api.siteID = cfg.SiteID
		}
	}
}

// WithBasePath overrides the mount point (defaults to "/admin/cms").
func WithBasePath(path string) AdminOption {
	return func(api *AdminAPI) {
		if trimmed := strings.TrimSpace(path); trimmed != "" {
			api.basePath = trimmed
		}
	}
}

func WithPageService(service pages.Service) AdminOption {
	return func(api *AdminAPI) {
		api.pages = service
	}
}

func WithPlaceholderService(service placeholders.Service) AdminOption {
	return func(api *AdminAPI) {
		api.placeholders = service
	}
}

// WithUserResolver sets how request actors are identified. Without one every
// request is anonymous.
func WithUserResolver(resolver UserResolver) AdminOption {
	return func(api *AdminAPI) {
		api.resolver = resolver
	}
}

func WithLogger(logger interfaces.Logger) AdminOption {
	return func(api *AdminAPI) {
		api.logger = logging.Ensure(logger)
	}
}

// Register attaches the admin endpoints to the provided mux.
func (api *AdminAPI) Register(mux *http.ServeMux) error {
	if mux == nil {
		return fmt.Errorf("http: mux is required")
	}
	if api == nil {
		return fmt.Errorf("http: admin api is nil")
	}
	if api.pages == nil || api.placeholders == nil {
		return fmt.Errorf("http: page and placeholder services are required")
	}

	base := joinPath(api.basePath, "")
	api.registerPageRoutes(mux, base)
	api.registerPluginRoutes(mux, base)
	return nil
}

// Handler returns a mux serving only the admin endpoints.
func (api *AdminAPI) Handler() (http.Handler, error) {
	mux := http.NewServeMux()
	if err := api.Register(mux); err != nil {
		return nil, err
	}
	return mux, nil
}

func (api *AdminAPI) actor(w http.ResponseWriter, r *http.Request) (permissions.Principal, bool) {
	if api.resolver == nil {
		return permissions.Principal{}, true
	}
	principal, err := api.resolver.Resolve(r)
	if err != nil {
		if errors.Is(err, ErrInvalidToken) {
			writeJSON(w, http.StatusUnauthorized, errorResponse{Error: "unauthorized", Message: err.Error()})
			return permissions.Principal{}, false
		}
		api.logger.Error("admin.resolve_user.failed", "error", err)
		writeError(w, err)
		return permissions.Principal{}, false
	}
	return principal, true
}

func (api *AdminAPI) changelistURL() string {
	return joinPath(api.basePath, "pages")
}

func (api *AdminAPI) pageURL(id uuid.UUID) string {
	return joinPath(api.basePath, "pages/"+id.String())
}

// editPluginURL is the plugin change form a freshly added plugin opens.
func (api *AdminAPI) editPluginURL(id uuid.UUID) string {
	return joinPath(api.basePath, "plugins/edit-plugin/"+id.String()) + "/"
}

// nextURL honours a local ?redirect= target and falls back otherwise.
func nextURL(r *http.Request, fallback string) string {
	target := strings.TrimSpace(r.URL.Query().Get("redirect"))
	if !strings.HasPrefix(target, "/") || strings.HasPrefix(target, "//") || strings.ContainsAny(target, "\\\r\n\t") {
		return fallback
	}
	parsed, err := url.Parse(target)
	if err != nil || parsed.Scheme != "" || parsed.Host != "" {
		return fallback
	}
	return target
}

func (api *AdminAPI) fail(w http.ResponseWriter, operation string, err error) {
	status, _ := mapError(err)
	if status >= http.StatusInternalServerError {
		api.logger.Error("admin."+operation+".failed", "error", err)
	} else {
		api.logger.Debug("admin."+operation+".rejected", "status", status, "error", err)
	}
	writeError(w, err)
}
