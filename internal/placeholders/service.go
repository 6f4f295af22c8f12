package placeholders

import (
	"context"
	"errors"
	"fmt"
	"maps"
	"slices"
	"strings"
	"sync"

	"github.com/goliatone/go-cms-admin/internal/logging"
	"github.com/goliatone/go-cms-admin/internal/permissions"
	"github.com/goliatone/go-cms-admin/internal/runtimeconfig"
	"github.com/goliatone/go-cms-admin/internal/transaction"
	"github.com/goliatone/go-cms-admin/pkg/activity"
	"github.com/goliatone/go-cms-admin/pkg/interfaces"
	"github.com/google/uuid"
)

// PageHooks lets placeholders consult the page owning a placeholder.
type PageHooks interface {
	PermissionTarget(ctx context.Context, pageID uuid.UUID) (*permissions.Target, error)
	MarkDirty(ctx context.Context, pageID uuid.UUID, language string) error
}

// ActivityEmitter records admin actions.
type ActivityEmitter interface {
	Emit(ctx context.Context, event activity.Event) error
}

// Service manages placeholders and the plugin trees inside them.
type Service interface {
	CreatePlaceholder(ctx context.Context, slot string, pageID *uuid.UUID) (*Placeholder, error)
	Get(ctx context.Context, id uuid.UUID) (*Placeholder, error)
	PlaceholdersForPage(ctx context.Context, pageID uuid.UUID) ([]*Placeholder, error)
	GetPlugin(ctx context.Context, id uuid.UUID) (*Plugin, error)
	ViewPlugin(ctx context.Context, actor permissions.Principal, id uuid.UUID, action permissions.Action) (*Plugin, error)
	Plugins(ctx context.Context, placeholderID uuid.UUID, language string) ([]*Plugin, error)
	Tree(ctx context.Context, placeholderID uuid.UUID, language string) ([]*Node, error)
	PluginType(name string) (Type, bool)

	AddPlugin(ctx context.Context, actor permissions.Principal, req AddPluginRequest) (*Plugin, error)
	EditPlugin(ctx context.Context, actor permissions.Principal, req EditPluginRequest) (*Plugin, error)
	MovePlugin(ctx context.Context, actor permissions.Principal, req MovePluginRequest) (*MoveResult, error)
	CopyPlugins(ctx context.Context, actor permissions.Principal, req CopyPluginsRequest) (*CopyResult, error)
	CopyLanguage(ctx context.Context, actor permissions.Principal, req CopyLanguageRequest) ([]*Plugin, error)
	DeletePlugin(ctx context.Context, actor permissions.Principal, id uuid.UUID) (*Plugin, error)
	ClearPlaceholder(ctx context.Context, actor permissions.Principal, placeholderID uuid.UUID, language string) (int, error)

	CreatePagePlaceholders(ctx context.Context, pageID uuid.UUID, slots []string) ([]*Placeholder, error)
	CopyPageContents(ctx context.Context, fromPageID, toPageID uuid.UUID, language string) error
	CopyPlaceholderContents(ctx context.Context, sourceID, targetID uuid.UUID, language string) error
	DeleteLanguage(ctx context.Context, placeholderIDs []uuid.UUID, language string) error
	DeletePageContents(ctx context.Context, pageID uuid.UUID) error
	DeletePageLanguage(ctx context.Context, pageID uuid.UUID, language string) error

	AttachPageHooks(hooks PageHooks)
}

// AddPluginRequest adds a plugin at the end of its siblings.
type AddPluginRequest struct {
	PlaceholderID uuid.UUID
	PluginType    string
	Language      string
	ParentID      *uuid.UUID
	Data          map[string]any
}

type EditPluginRequest struct {
	PluginID uuid.UUID
	Data     map[string]any
}

// MovePluginRequest relocates a plugin and its descendants. An empty
// Language keeps the plugin's language; a nil Position appends.
type MovePluginRequest struct {
	PluginID      uuid.UUID
	PlaceholderID uuid.UUID
	ParentID      *uuid.UUID
	Language      string
	Position      *int
}

type MoveResult struct {
	Plugin *Plugin `json:"plugin"`
	Reload bool    `json:"reload"`
}

// CopyPluginsRequest copies one plugin subtree, or the whole source
// language when SourcePluginID is nil.
type CopyPluginsRequest struct {
	SourcePlaceholderID uuid.UUID
	SourcePluginID      *uuid.UUID
	SourceLanguage      string
	TargetPlaceholderID uuid.UUID
	TargetLanguage      string
}

// CopyResult lists created plugins. Reference is set when the copy was
// wrapped into a reference placeholder.
type CopyResult struct {
	Plugins   []*Plugin    `json:"plugins"`
	Reference *Placeholder `json:"reference,omitempty"`
}

type CopyLanguageRequest struct {
	PageID         uuid.UUID
	SourceLanguage string
	TargetLanguage string
}

type ServiceOption func(*service)

func WithRegistry(registry *Registry) ServiceOption {
	return func(s *service) {
		if registry != nil {
			s.registry = registry
		}
	}
}

func WithAuthorizer(authorizer permissions.Authorizer) ServiceOption {
	return func(s *service) {
		if authorizer != nil {
			s.authorizer = authorizer
		}
	}
}

func WithPageHooks(hooks PageHooks) ServiceOption {
	return func(s *service) {
		s.hooks = hooks
	}
}

// WithLimits sets per slot plugin limits keyed by plugin type or
// runtimeconfig.GlobalLimitKey.
func WithLimits(limits map[string]map[string]int) ServiceOption {
	return func(s *service) {
		s.limits = make(map[string]map[string]int, len(limits))
		for slot, perType := range limits {
			s.limits[slot] = maps.Clone(perType)
		}
	}
}

func WithActivity(emitter ActivityEmitter) ServiceOption {
	return func(s *service) {
		s.activity = emitter
	}
}

// WithTransactions runs multi-record changes through runner.
func WithTransactions(runner transaction.Runner) ServiceOption {
	return func(s *service) {
		if runner != nil {
			s.tx = runner
		}
	}
}

func WithLogger(logger interfaces.Logger) ServiceOption {
	return func(s *service) {
		s.logger = logging.Ensure(logger)
	}
}

type service struct {
	mu         sync.Mutex
	repo       Repository
	registry   *Registry
	authorizer permissions.Authorizer
	hooks      PageHooks
	limits     map[string]map[string]int
	activity   ActivityEmitter
	logger     interfaces.Logger
	tx         transaction.Runner
}

func NewService(repo Repository, opts ...ServiceOption) Service {
	s := &service{
		repo:   repo,
		limits: map[string]map[string]int{},
		logger: logging.NoOp(),
		tx:     transaction.NoOp(),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(s)
		}
	}
	if s.registry == nil {
		s.registry = DefaultRegistry()
	}
	if s.authorizer == nil {
		s.authorizer = permissions.NewEvaluator(nil, permissions.WithPagePermissions(false))
	}
	return s
}

func (s *service) AttachPageHooks(hooks PageHooks) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.hooks = hooks
}

func (s *service) CreatePlaceholder(ctx context.Context, slot string, pageID *uuid.UUID) (*Placeholder, error) {
	slot = strings.TrimSpace(slot)
	if slot == "" {
		return nil, ErrSlotRequired
	}
	return s.repo.CreatePlaceholder(ctx, &Placeholder{Slot: slot, PageID: cloneUUID(pageID)})
}

func (s *service) Get(ctx context.Context, id uuid.UUID) (*Placeholder, error) {
	return s.repo.GetPlaceholder(ctx, id)
}

func (s *service) PlaceholdersForPage(ctx context.Context, pageID uuid.UUID) ([]*Placeholder, error) {
	return s.repo.ListForPage(ctx, pageID)
}

func (s *service) GetPlugin(ctx context.Context, id uuid.UUID) (*Plugin, error) {
	return s.repo.GetPlugin(ctx, id)
}

// ViewPlugin loads a plugin for an admin form, applying the same checks as
// the change that form submits.
func (s *service) ViewPlugin(ctx context.Context, actor permissions.Principal, id uuid.UUID, action permissions.Action) (*Plugin, error) {
	if err := s.requireBaseline(actor); err != nil {
		return nil, err
	}
	plugin, err := s.repo.GetPlugin(ctx, id)
	if err != nil {
		return nil, err
	}
	typ, err := s.lookup(plugin.PluginType)
	if err != nil {
		return nil, err
	}
	if err := requireModel(actor, typ.Model, action); err != nil {
		return nil, err
	}
	placeholder, err := s.repo.GetPlaceholder(ctx, plugin.PlaceholderID)
	if err != nil {
		return nil, err
	}
	if err := s.requireChange(ctx, actor, placeholder); err != nil {
		return nil, err
	}
	return plugin, nil
}

// Plugins returns the plugins of a placeholder in depth first tree order.
func (s *service) Plugins(ctx context.Context, placeholderID uuid.UUID, language string) ([]*Plugin, error) {
	nodes, err := s.Tree(ctx, placeholderID, language)
	if err != nil {
		return nil, err
	}
	return flatten(nodes), nil
}

func (s *service) Tree(ctx context.Context, placeholderID uuid.UUID, language string) ([]*Node, error) {
	if _, err := s.repo.GetPlaceholder(ctx, placeholderID); err != nil {
		return nil, err
	}
	plugins, err := s.repo.ListPlugins(ctx, placeholderID, strings.TrimSpace(language))
	if err != nil {
		return nil, err
	}
	return buildTree(plugins), nil
}

func (s *service) PluginType(name string) (Type, bool) {
	return s.registry.Lookup(name)
}

func (s *service) AddPlugin(ctx context.Context, actor permissions.Principal, req AddPluginRequest) (*Plugin, error) {
	language := strings.TrimSpace(req.Language)
	if language == "" {
		return nil, ErrLanguageRequired
	}
	typ, err := s.lookup(req.PluginType)
	if err != nil {
		return nil, err
	}
	placeholder, err := s.repo.GetPlaceholder(ctx, req.PlaceholderID)
	if err != nil {
		return nil, err
	}
	if err := requireModel(actor, typ.Model, permissions.ActionCreate); err != nil {
		return nil, err
	}
	if err := s.requireChange(ctx, actor, placeholder); err != nil {
		return nil, err
	}
	if len(req.Data) > 0 {
		if err := s.registry.ValidatePartial(typ.Name, req.Data); err != nil {
			return nil, err
		}
	}

	var created *Plugin
	err = s.locked(ctx, func(ctx context.Context) error {
		existing, err := s.repo.ListPlugins(ctx, placeholder.ID, language)
		if err != nil {
			return err
		}
		parent, err := s.resolveParent(ctx, existing, req.ParentID)
		if err != nil {
			return err
		}
		if err := s.checkNesting(typ, parent); err != nil {
			return err
		}
		if err := s.checkLimits(placeholder, existing, typ.Name, 1); err != nil {
			return err
		}

		plugin := &Plugin{
			PlaceholderID: placeholder.ID,
			ParentID:      cloneUUID(req.ParentID),
			Position:      len(siblingsOf(existing, req.ParentID, uuid.Nil)),
			Language:      language,
			PluginType:    typ.Name,
			Data:          maps.Clone(req.Data),
		}
		if typ.Reference {
			ref, err := s.repo.CreatePlaceholder(ctx, &Placeholder{Slot: placeholder.Slot})
			if err != nil {
				return err
			}
			plugin.ReferencePlaceholderID = &ref.ID
		}
		created, err = s.repo.CreatePlugin(ctx, plugin)
		return err
	})
	if err != nil {
		return nil, err
	}

	s.touch(ctx, placeholder, language)
	s.emit(ctx, actor, "add", created, nil)
	s.logger.Debug("placeholders.plugin.added",
		"plugin_id", created.ID,
		"plugin_type", created.PluginType,
		"placeholder_id", placeholder.ID,
		"language", language,
	)
	return created, nil
}

func (s *service) EditPlugin(ctx context.Context, actor permissions.Principal, req EditPluginRequest) (*Plugin, error) {
	plugin, err := s.repo.GetPlugin(ctx, req.PluginID)
	if err != nil {
		return nil, err
	}
	typ, err := s.lookup(plugin.PluginType)
	if err != nil {
		return nil, err
	}
	placeholder, err := s.repo.GetPlaceholder(ctx, plugin.PlaceholderID)
	if err != nil {
		return nil, err
	}
	if err := requireModel(actor, typ.Model, permissions.ActionUpdate); err != nil {
		return nil, err
	}
	if err := s.requireChange(ctx, actor, placeholder); err != nil {
		return nil, err
	}
	data := req.Data
	if data == nil {
		data = map[string]any{}
	}
	if err := s.registry.Validate(typ.Name, data); err != nil {
		return nil, err
	}

	var updated *Plugin
	err = s.locked(ctx, func(ctx context.Context) error {
		current, err := s.repo.GetPlugin(ctx, plugin.ID)
		if err != nil {
			return err
		}
		current.Data = maps.Clone(data)
		updated, err = s.repo.UpdatePlugin(ctx, current)
		return err
	})
	if err != nil {
		return nil, err
	}
	s.touch(ctx, placeholder, plugin.Language)
	s.emit(ctx, actor, "edit", updated, nil)
	return updated, nil
}

func (s *service) MovePlugin(ctx context.Context, actor permissions.Principal, req MovePluginRequest) (*MoveResult, error) {
	plugin, err := s.repo.GetPlugin(ctx, req.PluginID)
	if err != nil {
		return nil, err
	}
	typ, err := s.lookup(plugin.PluginType)
	if err != nil {
		return nil, err
	}
	source, err := s.repo.GetPlaceholder(ctx, plugin.PlaceholderID)
	if err != nil {
		return nil, err
	}
	target := source
	if req.PlaceholderID != uuid.Nil && req.PlaceholderID != source.ID {
		if target, err = s.repo.GetPlaceholder(ctx, req.PlaceholderID); err != nil {
			return nil, err
		}
	}
	language := strings.TrimSpace(req.Language)
	if language == "" {
		language = plugin.Language
	}

	if err := requireModel(actor, typ.Model, permissions.ActionUpdate); err != nil {
		return nil, err
	}
	if err := s.requireChange(ctx, actor, source); err != nil {
		return nil, err
	}
	if target.ID != source.ID {
		if err := s.requireChange(ctx, actor, target); err != nil {
			return nil, err
		}
	}

	oldLanguage := plugin.Language
	var (
		moving     []*Plugin
		relocating bool
	)
	err = s.locked(ctx, func(ctx context.Context) error {
		sourcePlugins, err := s.repo.ListPlugins(ctx, source.ID, plugin.Language)
		if err != nil {
			return err
		}
		subtree := findNode(buildTree(sourcePlugins), plugin.ID)
		if subtree == nil {
			return &NotFoundError{Resource: "plugin", Key: plugin.ID.String()}
		}
		moving = flatten([]*Node{subtree})

		targetPlugins := sourcePlugins
		relocating = target.ID != source.ID || language != plugin.Language
		if relocating {
			if targetPlugins, err = s.repo.ListPlugins(ctx, target.ID, language); err != nil {
				return err
			}
		}
		parent, err := s.resolveParent(ctx, targetPlugins, req.ParentID)
		if err != nil {
			return err
		}
		if parent != nil && slices.ContainsFunc(moving, func(p *Plugin) bool { return p.ID == parent.ID }) {
			return ErrPluginCycle
		}
		if err := s.checkNesting(typ, parent); err != nil {
			return err
		}
		if relocating {
			if err := s.checkLimits(target, targetPlugins, typ.Name, 1); err != nil {
				return err
			}
		}

		oldParent := cloneUUID(plugin.ParentID)
		oldSiblings := siblingsOf(sourcePlugins, oldParent, plugin.ID)
		newSiblings := siblingsOf(targetPlugins, req.ParentID, plugin.ID)

		plugin.PlaceholderID = target.ID
		plugin.ParentID = cloneUUID(req.ParentID)
		plugin.Language = language

		if relocating || !sameParent(oldParent, req.ParentID) {
			if err := s.persistOrder(ctx, oldSiblings, uuid.Nil); err != nil {
				return err
			}
		}
		if err := s.persistOrder(ctx, insertAt(newSiblings, plugin, req.Position), plugin.ID); err != nil {
			return err
		}
		if relocating {
			for _, child := range moving[1:] {
				child.PlaceholderID = target.ID
				child.Language = language
				if _, err := s.repo.UpdatePlugin(ctx, child); err != nil {
					return err
				}
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.touch(ctx, source, oldLanguage)
	if relocating {
		s.touch(ctx, target, language)
	}
	s.emit(ctx, actor, "move", plugin, map[string]any{"placeholder_id": target.ID.String()})
	return &MoveResult{Plugin: plugin, Reload: typ.RequiresReload(ActionMove)}, nil
}

func (s *service) CopyPlugins(ctx context.Context, actor permissions.Principal, req CopyPluginsRequest) (*CopyResult, error) {
	sourceLanguage := strings.TrimSpace(req.SourceLanguage)
	if sourceLanguage == "" {
		return nil, ErrLanguageRequired
	}
	targetLanguage := strings.TrimSpace(req.TargetLanguage)
	if targetLanguage == "" {
		targetLanguage = sourceLanguage
	}
	source, err := s.repo.GetPlaceholder(ctx, req.SourcePlaceholderID)
	if err != nil {
		return nil, err
	}
	target, err := s.repo.GetPlaceholder(ctx, req.TargetPlaceholderID)
	if err != nil {
		return nil, err
	}

	sourcePlugins, err := s.repo.ListPlugins(ctx, source.ID, sourceLanguage)
	if err != nil {
		return nil, err
	}
	forest := buildTree(sourcePlugins)
	if req.SourcePluginID != nil {
		node := findNode(forest, *req.SourcePluginID)
		if node == nil {
			if _, err := s.repo.GetPlugin(ctx, *req.SourcePluginID); err != nil {
				return nil, err
			}
			return nil, ErrSourceMismatch
		}
		forest = []*Node{node}
	}

	wrap := target.Detached() && req.SourcePluginID == nil
	expand := !target.Detached()
	typesUsed, err := s.collectTypes(ctx, forest, expand)
	if err != nil {
		return nil, err
	}
	if wrap {
		typesUsed = appendUnique(typesUsed, TypePlaceholder)
	}
	if err := s.requireModels(actor, typesUsed, permissions.ActionCreate); err != nil {
		return nil, err
	}
	if err := s.requireChange(ctx, actor, target); err != nil {
		return nil, err
	}

	result := &CopyResult{}
	err = s.locked(ctx, func(ctx context.Context) error {
		if wrap {
			ref, err := s.repo.CreatePlaceholder(ctx, &Placeholder{Slot: source.Slot})
			if err != nil {
				return err
			}
			copied, _, err := s.copyNodes(ctx, forest, ref.ID, targetLanguage, nil, 0, false)
			if err != nil {
				return err
			}
			existing, err := s.repo.ListPlugins(ctx, target.ID, targetLanguage)
			if err != nil {
				return err
			}
			wrapper, err := s.repo.CreatePlugin(ctx, &Plugin{
				PlaceholderID:          target.ID,
				Position:               len(siblingsOf(existing, nil, uuid.Nil)),
				Language:               targetLanguage,
				PluginType:             TypePlaceholder,
				Data:                   map[string]any{"name": source.Slot},
				ReferencePlaceholderID: &ref.ID,
			})
			if err != nil {
				return err
			}
			result.Plugins = append([]*Plugin{wrapper}, copied...)
			result.Reference = ref
		} else {
			existing, err := s.repo.ListPlugins(ctx, target.ID, targetLanguage)
			if err != nil {
				return err
			}
			start := len(siblingsOf(existing, nil, uuid.Nil))
			if result.Plugins, _, err = s.copyNodes(ctx, forest, target.ID, targetLanguage, nil, start, expand); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.touch(ctx, target, targetLanguage)
	s.emitPlaceholder(ctx, actor, "copy", target, map[string]any{
		"source_placeholder_id": source.ID.String(),
		"source_language":       sourceLanguage,
		"target_language":       targetLanguage,
		"count":                 len(result.Plugins),
	})
	return result, nil
}

func (s *service) CopyLanguage(ctx context.Context, actor permissions.Principal, req CopyLanguageRequest) ([]*Plugin, error) {
	sourceLanguage := strings.TrimSpace(req.SourceLanguage)
	targetLanguage := strings.TrimSpace(req.TargetLanguage)
	if sourceLanguage == "" || targetLanguage == "" {
		return nil, ErrLanguageRequired
	}
	if sourceLanguage == targetLanguage {
		return nil, ErrSameLanguage
	}
	target, err := s.pageTarget(ctx, req.PageID)
	if err != nil {
		return nil, err
	}
	placeholders, err := s.repo.ListForPage(ctx, req.PageID)
	if err != nil {
		return nil, err
	}

	forests := make([][]*Node, len(placeholders))
	var typesUsed []string
	for i, ph := range placeholders {
		plugins, err := s.repo.ListPlugins(ctx, ph.ID, sourceLanguage)
		if err != nil {
			return nil, err
		}
		forests[i] = buildTree(plugins)
		used, err := s.collectTypes(ctx, forests[i], false)
		if err != nil {
			return nil, err
		}
		for _, name := range used {
			typesUsed = appendUnique(typesUsed, name)
		}
	}
	if err := s.requireModels(actor, typesUsed, permissions.ActionCreate); err != nil {
		return nil, err
	}
	if err := s.requireBaseline(actor); err != nil {
		return nil, err
	}
	if err := s.authorizer.Require(ctx, actor, target, permissions.CanChange); err != nil {
		return nil, err
	}

	var created []*Plugin
	err = s.locked(ctx, func(ctx context.Context) error {
		for i, ph := range placeholders {
			if len(forests[i]) == 0 {
				continue
			}
			existing, err := s.repo.ListPlugins(ctx, ph.ID, targetLanguage)
			if err != nil {
				return err
			}
			copied, _, err := s.copyNodes(ctx, forests[i], ph.ID, targetLanguage, nil, len(siblingsOf(existing, nil, uuid.Nil)), false)
			if err != nil {
				return err
			}
			created = append(created, copied...)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	if s.hooks != nil {
		if err := s.hooks.MarkDirty(ctx, req.PageID, targetLanguage); err != nil {
			s.logger.Warn("placeholders.mark_dirty_failed", "page_id", req.PageID, "error", err)
		}
	}
	s.emitEvent(ctx, actor, activity.Event{
		Verb:       "copy_language",
		ObjectType: "page",
		ObjectID:   req.PageID.String(),
		Metadata: map[string]any{
			"source_language": sourceLanguage,
			"target_language": targetLanguage,
			"count":           len(created),
		},
	})
	return created, nil
}

func (s *service) DeletePlugin(ctx context.Context, actor permissions.Principal, id uuid.UUID) (*Plugin, error) {
	plugin, err := s.repo.GetPlugin(ctx, id)
	if err != nil {
		return nil, err
	}
	typ, err := s.lookup(plugin.PluginType)
	if err != nil {
		return nil, err
	}
	placeholder, err := s.repo.GetPlaceholder(ctx, plugin.PlaceholderID)
	if err != nil {
		return nil, err
	}
	if err := requireModel(actor, typ.Model, permissions.ActionDelete); err != nil {
		return nil, err
	}
	if err := s.requireChange(ctx, actor, placeholder); err != nil {
		return nil, err
	}

	var removed []*Plugin
	err = s.locked(ctx, func(ctx context.Context) error {
		plugins, err := s.repo.ListPlugins(ctx, placeholder.ID, plugin.Language)
		if err != nil {
			return err
		}
		node := findNode(buildTree(plugins), plugin.ID)
		if node == nil {
			return &NotFoundError{Resource: "plugin", Key: plugin.ID.String()}
		}
		removed = flatten([]*Node{node})
		if err := s.removePlugins(ctx, removed); err != nil {
			return err
		}
		return s.persistOrder(ctx, siblingsOf(plugins, plugin.ParentID, plugin.ID), uuid.Nil)
	})
	if err != nil {
		return nil, err
	}

	s.touch(ctx, placeholder, plugin.Language)
	s.emit(ctx, actor, "delete", plugin, map[string]any{"removed": len(removed)})
	return plugin, nil
}

// ClearPlaceholder removes the plugins of one language, or of every
// language when language is empty, with the reference placeholders they own.
func (s *service) ClearPlaceholder(ctx context.Context, actor permissions.Principal, placeholderID uuid.UUID, language string) (int, error) {
	placeholder, err := s.repo.GetPlaceholder(ctx, placeholderID)
	if err != nil {
		return 0, err
	}
	language = strings.TrimSpace(language)
	plugins, err := s.repo.ListPlugins(ctx, placeholder.ID, language)
	if err != nil {
		return 0, err
	}
	var typesUsed []string
	for _, p := range plugins {
		typesUsed = appendUnique(typesUsed, p.PluginType)
	}
	if err := s.requireModels(actor, typesUsed, permissions.ActionDelete); err != nil {
		return 0, err
	}
	if err := s.requireChange(ctx, actor, placeholder); err != nil {
		return 0, err
	}

	err = s.locked(ctx, func(ctx context.Context) error {
		return s.removePlugins(ctx, plugins)
	})
	if err != nil {
		return 0, err
	}
	languages := make([]string, 0)
	for _, p := range plugins {
		languages = appendUnique(languages, p.Language)
	}
	for _, lang := range languages {
		s.touch(ctx, placeholder, lang)
	}
	s.emitPlaceholder(ctx, actor, "clear", placeholder, map[string]any{"language": language, "removed": len(plugins)})
	return len(plugins), nil
}

// locked runs fn inside a unit of work while holding the tree lock. The
// transaction is opened first so page operations that already hold one
// keep a single lock order.
func (s *service) locked(ctx context.Context, fn func(ctx context.Context) error) error {
	return s.tx.RunInTx(ctx, func(ctx context.Context) error {
		s.mu.Lock()
		defer s.mu.Unlock()
		return fn(ctx)
	})
}

// persistOrder renumbers plugins from zero, writing the ones whose position
// changed and always the one matching force.
func (s *service) persistOrder(ctx context.Context, plugins []*Plugin, force uuid.UUID) error {
	for i, p := range plugins {
		if p.Position == i && p.ID != force {
			continue
		}
		p.Position = i
		if _, err := s.repo.UpdatePlugin(ctx, p); err != nil {
			return err
		}
	}
	return nil
}

func (s *service) resolveParent(ctx context.Context, scope []*Plugin, parentID *uuid.UUID) (*Plugin, error) {
	if parentID == nil {
		return nil, nil
	}
	for _, p := range scope {
		if p.ID == *parentID {
			return p, nil
		}
	}
	if _, err := s.repo.GetPlugin(ctx, *parentID); err != nil {
		return nil, err
	}
	return nil, ErrParentMismatch
}

func (s *service) checkNesting(typ Type, parent *Plugin) error {
	if parent == nil {
		if len(typ.ParentTypes) > 0 {
			return fmt.Errorf("%w: %s requires a parent", ErrChildNotAllowed, typ.Name)
		}
		return nil
	}
	parentType, ok := s.registry.Lookup(parent.PluginType)
	if !ok || !parentType.Accepts(typ.Name) {
		return fmt.Errorf("%w: %s below %s", ErrChildNotAllowed, typ.Name, parent.PluginType)
	}
	if len(typ.ParentTypes) > 0 && !slices.Contains(typ.ParentTypes, parent.PluginType) {
		return fmt.Errorf("%w: %s below %s", ErrChildNotAllowed, typ.Name, parent.PluginType)
	}
	return nil
}

// checkLimits rejects adding incoming plugins of pluginType when the slot
// wide or per type limit of the placeholder's slot would be exceeded.
func (s *service) checkLimits(placeholder *Placeholder, existing []*Plugin, pluginType string, incoming int) error {
	limits := s.limits[placeholder.Slot]
	if len(limits) == 0 {
		return nil
	}
	if limit, ok := limits[runtimeconfig.GlobalLimitKey]; ok && len(existing)+incoming > limit {
		return &LimitError{Slot: placeholder.Slot, Limit: limit}
	}
	if limit, ok := limits[pluginType]; ok {
		count := 0
		for _, p := range existing {
			if p.PluginType == pluginType {
				count++
			}
		}
		if count+incoming > limit {
			return &LimitError{Slot: placeholder.Slot, PluginType: pluginType, Limit: limit}
		}
	}
	return nil
}

func (s *service) collectTypes(ctx context.Context, nodes []*Node, expand bool) ([]string, error) {
	var out []string
	for _, p := range flatten(nodes) {
		if p.ReferencePlaceholderID != nil && expand {
			referenced, err := s.repo.ListPlugins(ctx, *p.ReferencePlaceholderID, "")
			if err != nil {
				return nil, err
			}
			nested, err := s.collectTypes(ctx, buildTree(referenced), expand)
			if err != nil {
				return nil, err
			}
			for _, name := range nested {
				out = appendUnique(out, name)
			}
			continue
		}
		out = appendUnique(out, p.PluginType)
	}
	return out, nil
}

func (s *service) lookup(name string) (Type, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return Type{}, ErrPluginTypeRequired
	}
	typ, ok := s.registry.Lookup(name)
	if !ok {
		return Type{}, fmt.Errorf("%w: %s", ErrPluginTypeUnknown, name)
	}
	return typ, nil
}

func (s *service) requireModels(actor permissions.Principal, typeNames []string, action permissions.Action) error {
	for _, name := range typeNames {
		typ, err := s.lookup(name)
		if err != nil {
			return err
		}
		if err := requireModel(actor, typ.Model, action); err != nil {
			return err
		}
	}
	return nil
}

// requireChange checks the actor may edit placeholder content: staff for
// detached placeholders, CanChange on the owning page otherwise.
func (s *service) requireChange(ctx context.Context, actor permissions.Principal, placeholder *Placeholder) error {
	if err := s.requireBaseline(actor); err != nil {
		return err
	}
	if placeholder.Detached() {
		return nil
	}
	target, err := s.pageTarget(ctx, *placeholder.PageID)
	if err != nil {
		return err
	}
	return s.authorizer.Require(ctx, actor, target, permissions.CanChange)
}

func (s *service) requireBaseline(actor permissions.Principal) error {
	if actor.Active && (actor.Staff || actor.Superuser) {
		return nil
	}
	return permissions.Error{Permission: permissions.Join(permissions.ResourcePlaceholders, permissions.ActionUpdate)}
}

func (s *service) pageTarget(ctx context.Context, pageID uuid.UUID) (*permissions.Target, error) {
	if s.hooks == nil {
		return &permissions.Target{PageID: pageID}, nil
	}
	return s.hooks.PermissionTarget(ctx, pageID)
}

func (s *service) touch(ctx context.Context, placeholder *Placeholder, language string) {
	if s.hooks == nil || placeholder.Detached() {
		return
	}
	if err := s.hooks.MarkDirty(ctx, *placeholder.PageID, language); err != nil {
		s.logger.Warn("placeholders.mark_dirty_failed",
			"page_id", *placeholder.PageID,
			"language", language,
			"error", err,
		)
	}
}

func (s *service) emit(ctx context.Context, actor permissions.Principal, verb string, plugin *Plugin, extra map[string]any) {
	meta := map[string]any{
		"plugin_type":    plugin.PluginType,
		"placeholder_id": plugin.PlaceholderID.String(),
		"language":       plugin.Language,
	}
	maps.Copy(meta, extra)
	s.emitEvent(ctx, actor, activity.Event{
		Verb:       verb,
		ObjectType: "plugin",
		ObjectID:   plugin.ID.String(),
		Metadata:   meta,
	})
}

func (s *service) emitPlaceholder(ctx context.Context, actor permissions.Principal, verb string, placeholder *Placeholder, meta map[string]any) {
	s.emitEvent(ctx, actor, activity.Event{
		Verb:       verb,
		ObjectType: "placeholder",
		ObjectID:   placeholder.ID.String(),
		Metadata:   meta,
	})
}

func (s *service) emitEvent(ctx context.Context, actor permissions.Principal, event activity.Event) {
	if s.activity == nil {
		return
	}
	event.ActorID = actor.ID.String()
	if err := s.activity.Emit(ctx, event); err != nil {
		s.logger.Warn("placeholders.activity_failed", "verb", event.Verb, "error", err)
	}
}

// requireModel checks the model level token for a plugin type.
func requireModel(actor permissions.Principal, model string, action permissions.Action) error {
	token := permissions.Join(model, action)
	if actor.Active && (actor.Staff || actor.Superuser) && actor.HasPermission(token) {
		return nil
	}
	return permissions.Error{Permission: token}
}

func appendUnique(list []string, value string) []string {
	if slices.Contains(list, value) {
		return list
	}
	return append(list, value)
}

// IsClientError reports whether err stems from invalid input rather than a
// missing record or a storage failure.
func IsClientError(err error) bool {
	var limit *LimitError
	return errors.As(err, &limit) ||
		errors.Is(err, ErrSlotRequired) ||
		errors.Is(err, ErrLanguageRequired) ||
		errors.Is(err, ErrPluginTypeRequired) ||
		errors.Is(err, ErrPluginTypeUnknown) ||
		errors.Is(err, ErrParentMismatch) ||
		errors.Is(err, ErrSourceMismatch) ||
		errors.Is(err, ErrChildNotAllowed) ||
		errors.Is(err, ErrPluginCycle) ||
		errors.Is(err, ErrSameLanguage)
}
