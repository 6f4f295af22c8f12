package pages

import (
	"context"
	"errors"
	"slices"
	"strings"
	"sync"
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/goliatone/go-cms-admin/internal/logging"
	"github.com/goliatone/go-cms-admin/internal/permissions"
	"github.com/goliatone/go-cms-admin/internal/placeholders"
	"github.com/goliatone/go-cms-admin/internal/runtimeconfig"
	"github.com/goliatone/go-cms-admin/internal/sites"
	"github.com/goliatone/go-cms-admin/internal/transaction"
	"github.com/goliatone/go-cms-admin/pkg/activity"
	"github.com/goliatone/go-cms-admin/pkg/interfaces"
	"github.com/google/uuid"
)

// Contents is the slice of the placeholder service pages rely on.
type Contents interface {
	CreatePagePlaceholders(ctx context.Context, pageID uuid.UUID, slots []string) ([]*placeholders.Placeholder, error)
	PlaceholdersForPage(ctx context.Context, pageID uuid.UUID) ([]*placeholders.Placeholder, error)
	CopyPageContents(ctx context.Context, fromPageID, toPageID uuid.UUID, language string) error
	DeletePageContents(ctx context.Context, pageID uuid.UUID) error
	DeletePageLanguage(ctx context.Context, pageID uuid.UUID, language string) error
}

// GrantStore exposes the page grants kept by the permission evaluator.
type GrantStore interface {
	PageGrants(ctx context.Context, pageID uuid.UUID) ([]*permissions.PagePermission, error)
	ForgetPage(ctx context.Context, pageID uuid.UUID) error
}

type SiteLookup interface {
	GetByID(ctx context.Context, id uuid.UUID) (*sites.Site, error)
}

type ActivityEmitter interface {
	Emit(ctx context.Context, event activity.Event) error
}

// Service runs the page admin: forms, tree queries and the draft/public
// publishing workflow. Operations taking an actor check page capabilities.
type Service interface {
	Create(ctx context.Context, actor permissions.Principal, req CreatePageRequest) (*Page, error)
	Get(ctx context.Context, id uuid.UUID) (*Page, error)
	GetTitle(ctx context.Context, pageID uuid.UUID, language string) (*Title, error)
	Titles(ctx context.Context, pageID uuid.UUID) ([]*Title, error)
	Detail(ctx context.Context, actor permissions.Principal, id uuid.UUID) (*Detail, error)
	List(ctx context.Context, actor permissions.Principal, siteID uuid.UUID) ([]*ListEntry, error)
	Children(ctx context.Context, pageID uuid.UUID) ([]*Page, error)
	Descendants(ctx context.Context, pageID uuid.UUID) ([]*Page, error)

	Update(ctx context.Context, actor permissions.Principal, req UpdatePageRequest) (*Page, error)
	UpdateAdvanced(ctx context.Context, actor permissions.Principal, req AdvancedSettingsRequest) (*Page, error)
	ChangeTemplate(ctx context.Context, actor permissions.Principal, pageID uuid.UUID, template string) (*Page, error)
	ToggleNavigation(ctx context.Context, actor permissions.Principal, pageID uuid.UUID) (*Page, error)
	ChangeDates(ctx context.Context, actor permissions.Principal, req DatesRequest) (*Page, error)
	EditTitleFields(ctx context.Context, actor permissions.Principal, pageID uuid.UUID, language string, fields TitleFields) (*Title, error)
	Move(ctx context.Context, actor permissions.Principal, req MovePageRequest) (*Page, error)

	Publish(ctx context.Context, actor permissions.Principal, pageID uuid.UUID, language string) (*Page, error)
	Unpublish(ctx context.Context, actor permissions.Principal, pageID uuid.UUID, language string) error
	Revert(ctx context.Context, actor permissions.Principal, pageID uuid.UUID, language string) error
	Delete(ctx context.Context, actor permissions.Principal, pageID uuid.UUID) error
	DeleteTranslation(ctx context.Context, actor permissions.Principal, pageID uuid.UUID, language string) error

	Preview(ctx context.Context, pageID uuid.UUID, language string, currentSiteID uuid.UUID) (string, error)
	IsPublished(ctx context.Context, pageID uuid.UUID, language string) (bool, error)
	IsDirty(ctx context.Context, pageID uuid.UUID, language string) (bool, error)
	Capabilities(ctx context.Context, actor permissions.Principal, pageID uuid.UUID) (permissions.Capability, error)
	Grants(ctx context.Context, actor permissions.Principal, pageID uuid.UUID) ([]*permissions.PagePermission, error)

	PermissionTarget(ctx context.Context, pageID uuid.UUID) (*permissions.Target, error)
	MarkDirty(ctx context.Context, pageID uuid.UUID, language string) error
}

// Detail is the change form view of a draft page.
type Detail struct {
	Page            *Page                       `json:"page"`
	Titles          []*Title                    `json:"titles"`
	Placeholders    []*placeholders.Placeholder `json:"placeholders"`
	Capabilities    permissions.Capability      `json:"capabilities"`
	ShowAdvanced    bool                        `json:"show_advanced"`
	ShowPermissions bool                        `json:"show_permissions"`
}

// ListEntry is one row of the page tree changelist.
type ListEntry struct {
	Page         *Page                  `json:"page"`
	Depth        int                    `json:"depth"`
	Titles       []*Title               `json:"titles"`
	Capabilities permissions.Capability `json:"capabilities"`
}

type ServiceOption func(*service)

func WithConfig(cfg runtimeconfig.Config) ServiceOption {
	return func(s *service) {
		s.cfg = cfg
	}
}

func WithContents(contents Contents) ServiceOption {
	return func(s *service) {
		if contents != nil {
			s.contents = contents
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

func WithGrantStore(grants GrantStore) ServiceOption {
	return func(s *service) {
		s.grants = grants
	}
}

func WithSites(lookup SiteLookup) ServiceOption {
	return func(s *service) {
		s.sites = lookup
	}
}

func WithActivity(emitter ActivityEmitter) ServiceOption {
	return func(s *service) {
		s.activity = emitter
	}
}

func WithLogger(logger interfaces.Logger) ServiceOption {
	return func(s *service) {
		s.logger = logging.Ensure(logger)
	}
}

// WithTransactions runs multi-record changes through runner. The contents
// and grant stores must use repositories that join its transactions.
func WithTransactions(runner transaction.Runner) ServiceOption {
	return func(s *service) {
		if runner != nil {
			s.tx = runner
		}
	}
}

func WithClock(clock func() time.Time) ServiceOption {
	return func(s *service) {
		if clock != nil {
			s.now = clock
		}
	}
}

type service struct {
	mu         sync.Mutex
	repo       Repository
	cfg        runtimeconfig.Config
	contents   Contents
	authorizer permissions.Authorizer
	grants     GrantStore
	sites      SiteLookup
	activity   ActivityEmitter
	logger     interfaces.Logger
	tx         transaction.Runner
	now        func() time.Time
}

func NewService(repo Repository, opts ...ServiceOption) Service {
	s := &service{
		repo:   repo,
		cfg:    runtimeconfig.DefaultConfig(),
		logger: logging.NoOp(),
		tx:     transaction.NoOp(),
		now:    time.Now,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(s)
		}
	}
	if s.authorizer == nil {
		evaluator := permissions.NewEvaluator(nil, permissions.WithPagePermissions(false))
		s.authorizer = evaluator
		if s.grants == nil {
			s.grants = evaluator
		}
	}
	if s.contents == nil {
		s.contents = placeholders.NewService(placeholders.NewMemoryRepository())
	}
	return s
}

func (s *service) Create(ctx context.Context, actor permissions.Principal, req CreatePageRequest) (*Page, error) {
	req.normalize(s.cfg.DefaultLanguage, s.cfg.DefaultTemplate())
	if req.SiteID == uuid.Nil {
		req.SiteID = s.cfg.SiteID
	}

	extra := validation.Errors{}
	var parent *Page
	if req.ParentID != nil {
		found, err := s.draft(ctx, *req.ParentID)
		switch {
		case err == nil:
			parent = found
			if parent.SiteID != req.SiteID {
				extra["site"] = errors.New(msgSiteMismatch)
			}
		case isNotFoundErr(err):
			extra["parent"] = errors.New("Select a valid choice. That choice is not one of the available choices.")
		default:
			return nil, err
		}
	}

	target := &permissions.Target{SiteID: req.SiteID}
	if parent != nil {
		var err error
		if target, err = s.targetFor(ctx, parent); err != nil {
			return nil, err
		}
	}
	if err := s.authorizer.Require(ctx, actor, target, permissions.CanAdd); err != nil {
		return nil, err
	}

	if s.sites != nil {
		if _, err := s.sites.GetByID(ctx, req.SiteID); err != nil {
			var missing *sites.NotFoundError
			if !errors.As(err, &missing) {
				return nil, err
			}
			extra["site"] = errors.New("Select a valid choice. That choice is not one of the available choices.")
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	siblings, err := s.siblings(ctx, req.SiteID, req.ParentID, uuid.Nil)
	if err != nil {
		return nil, err
	}
	if req.Slug != "" && req.OverwriteURL == "" {
		taken, err := s.slugTaken(ctx, siblings, req.Language, req.Slug)
		if err != nil {
			return nil, err
		}
		if taken {
			extra["slug"] = errors.New(msgSlugTaken)
		}
	}
	if err := asFormError(req.validate(s.rules()), extra); err != nil {
		return nil, err
	}

	now := s.now().UTC()
	var (
		page *Page
		path string
	)
	err = s.tx.RunInTx(ctx, func(ctx context.Context) error {
		var err error
		page, err = s.repo.CreatePage(ctx, &Page{
			ID:               uuid.New(),
			PublisherIsDraft: true,
			SiteID:           req.SiteID,
			ParentID:         cloneUUID(req.ParentID),
			Template:         req.Template,
			InNavigation:     req.InNavigation,
			Position:         len(siblings),
			CreatedBy:        actor.ID,
			ChangedBy:        actor.ID,
			CreatedAt:        now,
			UpdatedAt:        now,
		})
		if err != nil {
			return err
		}

		var overwrite bool
		path, overwrite, err = s.computePath(ctx, page.ParentID, req.Language, req.Slug, req.OverwriteURL)
		if err != nil {
			return err
		}
		if _, err := s.repo.CreateTitle(ctx, &Title{
			ID:               uuid.New(),
			PageID:           page.ID,
			Language:         req.Language,
			Title:            req.Title,
			Slug:             req.Slug,
			Path:             path,
			HasURLOverwrite:  overwrite,
			PublisherIsDraft: true,
			PublisherState:   StateDirty,
			MenuTitle:        strings.TrimSpace(req.MenuTitle),
			PageTitle:        strings.TrimSpace(req.PageTitle),
			MetaDescription:  strings.TrimSpace(req.MetaDescription),
			CreatedAt:        now,
			UpdatedAt:        now,
		}); err != nil {
			return err
		}
		_, err = s.contents.CreatePagePlaceholders(ctx, page.ID, s.cfg.Placeholders.Slots)
		return err
	})
	if err != nil {
		return nil, err
	}

	s.emit(ctx, actor, "created", page, req.Language)
	s.pageLogger(page.ID, req.Language, actor).Info("pages.create.success", "path", path)
	return page, nil
}

func (s *service) Get(ctx context.Context, id uuid.UUID) (*Page, error) {
	return s.repo.GetPage(ctx, id)
}

func (s *service) GetTitle(ctx context.Context, pageID uuid.UUID, language string) (*Title, error) {
	return s.repo.GetTitle(ctx, pageID, language)
}

func (s *service) Titles(ctx context.Context, pageID uuid.UUID) ([]*Title, error) {
	return s.repo.ListTitles(ctx, pageID)
}

func (s *service) Detail(ctx context.Context, actor permissions.Principal, id uuid.UUID) (*Detail, error) {
	page, err := s.draft(ctx, id)
	if err != nil {
		return nil, err
	}
	target, err := s.targetFor(ctx, page)
	if err != nil {
		return nil, err
	}
	if err := s.authorizer.Require(ctx, actor, target, permissions.CanChange); err != nil {
		return nil, err
	}
	caps, err := s.authorizer.Capabilities(ctx, actor, target)
	if err != nil {
		return nil, err
	}
	titles, err := s.repo.ListTitles(ctx, page.ID)
	if err != nil {
		return nil, err
	}
	slots, err := s.contents.PlaceholdersForPage(ctx, page.ID)
	if err != nil {
		return nil, err
	}
	return &Detail{
		Page:            page,
		Titles:          titles,
		Placeholders:    slots,
		Capabilities:    caps,
		ShowAdvanced:    caps.Has(permissions.CanChangeAdvancedSettings),
		ShowPermissions: s.cfg.Permissions.Enabled && caps.Has(permissions.CanChangePermissions),
	}, nil
}

// List returns the draft tree of siteID limited to pages the actor may
// change. Actors without change rights anywhere are denied.
func (s *service) List(ctx context.Context, actor permissions.Principal, siteID uuid.UUID) ([]*ListEntry, error) {
	ok, err := s.authorizer.HasAnywhere(ctx, actor, permissions.CanChange)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, permissions.Error{Permission: "page:" + permissions.CanChange.String()}
	}
	if siteID == uuid.Nil {
		siteID = s.cfg.SiteID
	}
	all, err := s.repo.ListPages(ctx, siteID)
	if err != nil {
		return nil, err
	}

	byParent := make(map[uuid.UUID][]*Page)
	for _, page := range all {
		key := uuid.Nil
		if page.ParentID != nil {
			key = *page.ParentID
		}
		byParent[key] = append(byParent[key], page)
	}

	var out []*ListEntry
	var walk func(parent uuid.UUID, depth int, ancestors []uuid.UUID) error
	walk = func(parent uuid.UUID, depth int, ancestors []uuid.UUID) error {
		for _, page := range byParent[parent] {
			target := &permissions.Target{PageID: page.ID, SiteID: page.SiteID, AncestorIDs: ancestors}
			caps, err := s.authorizer.Capabilities(ctx, actor, target)
			if err != nil {
				return err
			}
			if caps.Has(permissions.CanChange) {
				titles, err := s.repo.ListTitles(ctx, page.ID)
				if err != nil {
					return err
				}
				out = append(out, &ListEntry{Page: page, Depth: depth, Titles: titles, Capabilities: caps})
			}
			next := append([]uuid.UUID{page.ID}, ancestors...)
			if err := walk(page.ID, depth+1, next); err != nil {
				return err
			}
		}
		return nil
	}
	if err := walk(uuid.Nil, 0, nil); err != nil {
		return nil, err
	}
	return out, nil
}

// Children returns the direct children of pageID ordered by position.
func (s *service) Children(ctx context.Context, pageID uuid.UUID) ([]*Page, error) {
	page, err := s.draft(ctx, pageID)
	if err != nil {
		return nil, err
	}
	return s.siblings(ctx, page.SiteID, &page.ID, uuid.Nil)
}

// Descendants returns every page below pageID in depth first order.
func (s *service) Descendants(ctx context.Context, pageID uuid.UUID) ([]*Page, error) {
	page, err := s.draft(ctx, pageID)
	if err != nil {
		return nil, err
	}
	all, err := s.repo.ListPages(ctx, page.SiteID)
	if err != nil {
		return nil, err
	}
	return descendantsOf(all, page.ID), nil
}

func (s *service) Update(ctx context.Context, actor permissions.Principal, req UpdatePageRequest) (*Page, error) {
	checked, target, err := s.authorize(ctx, actor, req.PageID, permissions.CanChange)
	if err != nil {
		return nil, err
	}
	caps, err := s.authorizer.Capabilities(ctx, actor, target)
	if err != nil {
		return nil, err
	}
	advanced := caps.Has(permissions.CanChangeAdvancedSettings)
	if req.Language == "" {
		req.Language = s.cfg.DefaultLanguage
	}
	req.normalize()

	var updated *Page
	_, err = s.withDraft(ctx, checked.ID, func(ctx context.Context, page *Page) error {
		extra := validation.Errors{}
		overwriting := advanced && req.OverwriteURL != nil && *req.OverwriteURL != ""
		if req.Slug != "" && !overwriting {
			siblings, err := s.siblings(ctx, page.SiteID, page.ParentID, page.ID)
			if err != nil {
				return err
			}
			taken, err := s.slugTaken(ctx, siblings, req.Language, req.Slug)
			if err != nil {
				return err
			}
			if taken {
				extra["slug"] = errors.New(msgSlugTaken)
			}
		}
		if advanced && req.ReverseID != nil {
			if err := s.checkReverseID(ctx, page, nilIfBlank(req.ReverseID), extra); err != nil {
				return err
			}
		}
		if err := asFormError(req.validate(s.rules()), extra); err != nil {
			return err
		}

		now := s.now().UTC()
		title, err := s.repo.GetTitle(ctx, page.ID, req.Language)
		creating := isNotFoundErr(err)
		if err != nil && !creating {
			return err
		}
		if creating {
			title = &Title{
				ID:               uuid.New(),
				PageID:           page.ID,
				Language:         req.Language,
				PublisherIsDraft: true,
				CreatedAt:        now,
			}
		}
		previousPath := title.Path
		title.Title = req.Title
		title.Slug = req.Slug
		if req.MenuTitle != nil {
			title.MenuTitle = strings.TrimSpace(*req.MenuTitle)
		}
		if req.PageTitle != nil {
			title.PageTitle = strings.TrimSpace(*req.PageTitle)
		}
		if req.MetaDescription != nil {
			title.MetaDescription = strings.TrimSpace(*req.MetaDescription)
		}
		overwrite := ""
		if title.HasURLOverwrite {
			overwrite = title.Path
		}
		if advanced && req.OverwriteURL != nil {
			overwrite = *req.OverwriteURL
		}
		if title.Path, title.HasURLOverwrite, err = s.computePath(ctx, page.ParentID, req.Language, title.Slug, overwrite); err != nil {
			return err
		}
		title.PublisherState = StateDirty
		title.UpdatedAt = now
		if creating {
			_, err = s.repo.CreateTitle(ctx, title)
		} else {
			_, err = s.repo.UpdateTitle(ctx, title)
		}
		if err != nil {
			return err
		}

		if req.InNavigation != nil {
			page.InNavigation = *req.InNavigation
		}
		if advanced {
			if req.ReverseID != nil {
				page.ReverseID = nilIfBlank(req.ReverseID)
			}
			if req.ApplicationURLs != nil {
				page.ApplicationURLs = nilIfBlank(req.ApplicationURLs)
			}
		}
		page.ChangedBy = actor.ID
		page.UpdatedAt = now
		if updated, err = s.repo.UpdatePage(ctx, page); err != nil {
			return err
		}
		if title.Path != previousPath {
			return s.refreshPaths(ctx, page, req.Language, title.Path)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.emit(ctx, actor, "changed", updated, req.Language)
	s.pageLogger(updated.ID, req.Language, actor).Info("pages.update.success", "advanced", advanced)
	return updated, nil
}

func (s *service) UpdateAdvanced(ctx context.Context, actor permissions.Principal, req AdvancedSettingsRequest) (*Page, error) {
	checked, _, err := s.authorize(ctx, actor, req.PageID, permissions.CanChangeAdvancedSettings)
	if err != nil {
		return nil, err
	}
	req.Template = strings.TrimSpace(req.Template)
	req.Language = strings.TrimSpace(req.Language)
	if req.Language == "" {
		req.Language = s.cfg.DefaultLanguage
	}
	req.OverwriteURL = cleanPath(req.OverwriteURL)
	reverseID := nilIfBlank(&req.ReverseID)

	var updated *Page
	_, err = s.withDraft(ctx, checked.ID, func(ctx context.Context, page *Page) error {
		extra := validation.Errors{}
		if err := s.checkReverseID(ctx, page, reverseID, extra); err != nil {
			return err
		}
		if err := asFormError(req.validate(s.rules()), extra); err != nil {
			return err
		}

		now := s.now().UTC()
		if req.Template != "" {
			page.Template = req.Template
		}
		page.ReverseID = reverseID
		page.ApplicationURLs = nilIfBlank(&req.ApplicationURLs)
		page.ChangedBy = actor.ID
		page.UpdatedAt = now
		var err error
		if updated, err = s.repo.UpdatePage(ctx, page); err != nil {
			return err
		}

		title, err := s.repo.GetTitle(ctx, page.ID, req.Language)
		switch {
		case err == nil:
			previous := title.Path
			if title.Path, title.HasURLOverwrite, err = s.computePath(ctx, page.ParentID, title.Language, title.Slug, req.OverwriteURL); err != nil {
				return err
			}
			title.UpdatedAt = now
			if _, err := s.repo.UpdateTitle(ctx, title); err != nil {
				return err
			}
			if title.Path != previous {
				if err := s.refreshPaths(ctx, page, title.Language, title.Path); err != nil {
					return err
				}
			}
		case !isNotFoundErr(err):
			return err
		}
		return s.markTitlesDirty(ctx, page.ID)
	})
	if err != nil {
		return nil, err
	}

	s.emit(ctx, actor, "advanced_settings_changed", updated, req.Language)
	return updated, nil
}

func (s *service) ChangeTemplate(ctx context.Context, actor permissions.Principal, pageID uuid.UUID, template string) (*Page, error) {
	template = strings.TrimSpace(template)
	page, _, err := s.authorize(ctx, actor, pageID, permissions.CanChange)
	if err != nil {
		return nil, err
	}
	if !s.cfg.HasTemplate(template) {
		return nil, ErrTemplateUnknown
	}
	return s.touchPage(ctx, actor, page.ID, "template_changed", func(p *Page) {
		p.Template = template
	})
}

func (s *service) ToggleNavigation(ctx context.Context, actor permissions.Principal, pageID uuid.UUID) (*Page, error) {
	page, _, err := s.authorize(ctx, actor, pageID, permissions.CanChange)
	if err != nil {
		return nil, err
	}
	return s.touchPage(ctx, actor, page.ID, "navigation_toggled", func(p *Page) {
		p.InNavigation = !p.InNavigation
	})
}

func (s *service) ChangeDates(ctx context.Context, actor permissions.Principal, req DatesRequest) (*Page, error) {
	page, _, err := s.authorize(ctx, actor, req.PageID, permissions.CanChange)
	if err != nil {
		return nil, err
	}
	if err := req.validate(); err != nil {
		return nil, err
	}
	return s.touchPage(ctx, actor, page.ID, "dates_changed", func(p *Page) {
		p.PublicationDate = cloneTime(req.PublicationDate)
		p.PublicationEndDate = cloneTime(req.PublicationEndDate)
	})
}

func (s *service) EditTitleFields(ctx context.Context, actor permissions.Principal, pageID uuid.UUID, language string, fields TitleFields) (*Title, error) {
	checked, _, err := s.authorize(ctx, actor, pageID, permissions.CanChange)
	if err != nil {
		return nil, err
	}
	if fields.Title != nil && strings.TrimSpace(*fields.Title) == "" {
		return nil, fieldError("title", validation.ErrRequired.Error())
	}

	var updated *Title
	page, err := s.withDraft(ctx, checked.ID, func(ctx context.Context, page *Page) error {
		title, err := s.repo.GetTitle(ctx, page.ID, strings.TrimSpace(language))
		if err != nil {
			return err
		}
		if fields.Title != nil {
			title.Title = strings.TrimSpace(*fields.Title)
		}
		if fields.MenuTitle != nil {
			title.MenuTitle = strings.TrimSpace(*fields.MenuTitle)
		}
		if fields.PageTitle != nil {
			title.PageTitle = strings.TrimSpace(*fields.PageTitle)
		}
		if fields.MetaDescription != nil {
			title.MetaDescription = strings.TrimSpace(*fields.MetaDescription)
		}
		title.PublisherState = StateDirty
		title.UpdatedAt = s.now().UTC()
		updated, err = s.repo.UpdateTitle(ctx, title)
		return err
	})
	if err != nil {
		return nil, err
	}
	s.emit(ctx, actor, "title_changed", page, updated.Language)
	return updated, nil
}

// Move relocates a page below a new parent. The actor needs CanMove on the
// page and CanAdd where it lands.
func (s *service) Move(ctx context.Context, actor permissions.Principal, req MovePageRequest) (*Page, error) {
	checked, _, err := s.authorize(ctx, actor, req.PageID, permissions.CanMove)
	if err != nil {
		return nil, err
	}
	destination := &permissions.Target{SiteID: checked.SiteID}
	var parentID *uuid.UUID
	if req.ParentID != nil {
		parent, err := s.draft(ctx, *req.ParentID)
		if err != nil {
			return nil, err
		}
		if parent.SiteID != checked.SiteID {
			return nil, ErrSiteMismatch
		}
		if destination, err = s.targetFor(ctx, parent); err != nil {
			return nil, err
		}
		if parent.ID == checked.ID || slices.Contains(destination.AncestorIDs, checked.ID) {
			return nil, ErrMoveIntoDescendant
		}
		parentID = &parent.ID
	}
	if err := s.authorizer.Require(ctx, actor, destination, permissions.CanAdd); err != nil {
		return nil, err
	}

	moved, err := s.withDraft(ctx, checked.ID, func(ctx context.Context, page *Page) error {
		if parentID != nil {
			parent, err := s.repo.GetPage(ctx, *parentID)
			if err != nil {
				return err
			}
			current, err := s.targetFor(ctx, parent)
			if err != nil {
				return err
			}
			if parent.ID == page.ID || slices.Contains(current.AncestorIDs, page.ID) {
				return ErrMoveIntoDescendant
			}
		}
		if !sameParent(page.ParentID, parentID) {
			old, err := s.siblings(ctx, page.SiteID, page.ParentID, page.ID)
			if err != nil {
				return err
			}
			if err := s.persistPositions(ctx, old, uuid.Nil); err != nil {
				return err
			}
		}
		siblings, err := s.siblings(ctx, page.SiteID, parentID, page.ID)
		if err != nil {
			return err
		}
		page.ParentID = cloneUUID(parentID)
		page.ChangedBy = actor.ID
		page.UpdatedAt = s.now().UTC()
		ordered := insertPage(siblings, page, req.Position)
		if err := s.persistPositions(ctx, ordered, page.ID); err != nil {
			return err
		}

		titles, err := s.repo.ListTitles(ctx, page.ID)
		if err != nil {
			return err
		}
		for _, title := range titles {
			if !title.HasURLOverwrite {
				if title.Path, _, err = s.computePath(ctx, page.ParentID, title.Language, title.Slug, ""); err != nil {
					return err
				}
			}
			title.PublisherState = StateDirty
			title.UpdatedAt = page.UpdatedAt
			if _, err := s.repo.UpdateTitle(ctx, title); err != nil {
				return err
			}
			if err := s.refreshPaths(ctx, page, title.Language, title.Path); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.emit(ctx, actor, "moved", moved, "")
	return moved, nil
}

func (s *service) Capabilities(ctx context.Context, actor permissions.Principal, pageID uuid.UUID) (permissions.Capability, error) {
	target, err := s.PermissionTarget(ctx, pageID)
	if err != nil {
		return 0, err
	}
	return s.authorizer.Capabilities(ctx, actor, target)
}

func (s *service) Grants(ctx context.Context, actor permissions.Principal, pageID uuid.UUID) ([]*permissions.PagePermission, error) {
	page, _, err := s.authorize(ctx, actor, pageID, permissions.CanChangePermissions)
	if err != nil {
		return nil, err
	}
	if s.grants == nil {
		return nil, nil
	}
	return s.grants.PageGrants(ctx, page.ID)
}

// PermissionTarget describes pageID, or the draft behind a public copy,
// for capability checks.
func (s *service) PermissionTarget(ctx context.Context, pageID uuid.UUID) (*permissions.Target, error) {
	page, err := s.draft(ctx, pageID)
	if err != nil {
		return nil, err
	}
	return s.targetFor(ctx, page)
}

// MarkDirty flags the draft title of language as changed. It runs inside
// placeholder mutations and therefore never takes the service lock.
func (s *service) MarkDirty(ctx context.Context, pageID uuid.UUID, language string) error {
	page, err := s.repo.GetPage(ctx, pageID)
	if err != nil {
		return err
	}
	if !page.PublisherIsDraft {
		return nil
	}
	title, err := s.repo.GetTitle(ctx, page.ID, language)
	if err != nil {
		if isNotFoundErr(err) {
			return nil
		}
		return err
	}
	if title.Dirty() {
		return nil
	}
	title.PublisherState = StateDirty
	title.UpdatedAt = s.now().UTC()
	_, err = s.repo.UpdateTitle(ctx, title)
	return err
}

// authorize loads the draft for id and requires capability on it.
func (s *service) authorize(ctx context.Context, actor permissions.Principal, id uuid.UUID, capability permissions.Capability) (*Page, *permissions.Target, error) {
	page, err := s.draft(ctx, id)
	if err != nil {
		return nil, nil, err
	}
	target, err := s.targetFor(ctx, page)
	if err != nil {
		return nil, nil, err
	}
	if err := s.authorizer.Require(ctx, actor, target, capability); err != nil {
		return nil, nil, err
	}
	return page, target, nil
}

// draft resolves id to the draft page, following public copies back to
// their lineage.
func (s *service) draft(ctx context.Context, id uuid.UUID) (*Page, error) {
	page, err := s.repo.GetPage(ctx, id)
	if err != nil {
		return nil, err
	}
	if page.PublisherIsDraft {
		return page, nil
	}
	return s.repo.GetPage(ctx, page.LineageID)
}

func (s *service) targetFor(ctx context.Context, page *Page) (*permissions.Target, error) {
	target := &permissions.Target{PageID: page.ID, SiteID: page.SiteID}
	seen := map[uuid.UUID]bool{page.ID: true}
	parentID := page.ParentID
	for parentID != nil && !seen[*parentID] {
		seen[*parentID] = true
		parent, err := s.repo.GetPage(ctx, *parentID)
		if err != nil {
			if isNotFoundErr(err) {
				break
			}
			return nil, err
		}
		target.AncestorIDs = append(target.AncestorIDs, parent.ID)
		parentID = parent.ParentID
	}
	return target, nil
}

func (s *service) siblings(ctx context.Context, siteID uuid.UUID, parentID *uuid.UUID, exclude uuid.UUID) ([]*Page, error) {
	all, err := s.repo.ListPages(ctx, siteID)
	if err != nil {
		return nil, err
	}
	out := make([]*Page, 0, len(all))
	for _, page := range all {
		if page.ID != exclude && sameParent(page.ParentID, parentID) {
			out = append(out, page)
		}
	}
	return out, nil
}

func (s *service) slugTaken(ctx context.Context, siblings []*Page, language, slug string) (bool, error) {
	for _, sibling := range siblings {
		title, err := s.repo.GetTitle(ctx, sibling.ID, language)
		if err != nil {
			if isNotFoundErr(err) {
				continue
			}
			return false, err
		}
		if !title.HasURLOverwrite && title.Slug == slug {
			return true, nil
		}
	}
	return false, nil
}

// checkReverseID records a form error when another draft of the site
// already uses reverseID.
func (s *service) checkReverseID(ctx context.Context, page *Page, reverseID *string, errs validation.Errors) error {
	if reverseID == nil {
		return nil
	}
	all, err := s.repo.ListPages(ctx, page.SiteID)
	if err != nil {
		return err
	}
	for _, other := range all {
		if other.ID != page.ID && other.ReverseID != nil && *other.ReverseID == *reverseID {
			errs["reverse_id"] = errors.New(msgReverseIDTaken)
			return nil
		}
	}
	return nil
}

// computePath joins the parent path and slug for language, or returns the
// cleaned overwrite when one is set.
func (s *service) computePath(ctx context.Context, parentID *uuid.UUID, language, slug, overwrite string) (string, bool, error) {
	if overwrite = cleanPath(overwrite); overwrite != "" {
		return overwrite, true, nil
	}
	if parentID == nil {
		return slug, false, nil
	}
	parentTitle, err := s.repo.GetTitle(ctx, *parentID, language)
	if err != nil {
		if isNotFoundErr(err) {
			return slug, false, nil
		}
		return "", false, err
	}
	if parentTitle.Path == "" {
		return slug, false, nil
	}
	return parentTitle.Path + "/" + slug, false, nil
}

// refreshPaths recomputes the language paths below page after its path
// changed. Titles with an overwrite keep their path and stop the descent.
func (s *service) refreshPaths(ctx context.Context, page *Page, language, path string) error {
	children, err := s.siblings(ctx, page.SiteID, &page.ID, uuid.Nil)
	if err != nil {
		return err
	}
	for _, child := range children {
		title, err := s.repo.GetTitle(ctx, child.ID, language)
		if err != nil {
			if isNotFoundErr(err) {
				continue
			}
			return err
		}
		if title.HasURLOverwrite {
			continue
		}
		next := title.Slug
		if path != "" {
			next = path + "/" + title.Slug
		}
		if title.Path != next {
			title.Path = next
			if _, err := s.repo.UpdateTitle(ctx, title); err != nil {
				return err
			}
		}
		if err := s.refreshPaths(ctx, child, language, next); err != nil {
			return err
		}
	}
	return nil
}

// persistPositions writes contiguous positions, always saving force.
func (s *service) persistPositions(ctx context.Context, ordered []*Page, force uuid.UUID) error {
	for i, page := range ordered {
		if page.Position == i && page.ID != force {
			continue
		}
		page.Position = i
		if _, err := s.repo.UpdatePage(ctx, page); err != nil {
			return err
		}
	}
	return nil
}

// withDraft reloads the draft id under the service lock and runs fn on it
// as one unit of work. The returned page reflects the changes fn made.
func (s *service) withDraft(ctx context.Context, id uuid.UUID, fn func(ctx context.Context, draft *Page) error) (*Page, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var draft *Page
	err := s.tx.RunInTx(ctx, func(ctx context.Context) error {
		var err error
		if draft, err = s.repo.GetPage(ctx, id); err != nil {
			return err
		}
		return fn(ctx, draft)
	})
	if err != nil {
		return nil, err
	}
	return draft, nil
}

// touchPage applies a page level change and marks every draft title dirty.
func (s *service) touchPage(ctx context.Context, actor permissions.Principal, pageID uuid.UUID, verb string, apply func(*Page)) (*Page, error) {
	var updated *Page
	_, err := s.withDraft(ctx, pageID, func(ctx context.Context, page *Page) error {
		apply(page)
		page.ChangedBy = actor.ID
		page.UpdatedAt = s.now().UTC()
		var err error
		if updated, err = s.repo.UpdatePage(ctx, page); err != nil {
			return err
		}
		return s.markTitlesDirty(ctx, page.ID)
	})
	if err != nil {
		return nil, err
	}
	s.emit(ctx, actor, verb, updated, "")
	return updated, nil
}

func (s *service) markTitlesDirty(ctx context.Context, pageID uuid.UUID) error {
	titles, err := s.repo.ListTitles(ctx, pageID)
	if err != nil {
		return err
	}
	for _, title := range titles {
		if title.Dirty() {
			continue
		}
		title.PublisherState = StateDirty
		if _, err := s.repo.UpdateTitle(ctx, title); err != nil {
			return err
		}
	}
	return nil
}

func (s *service) rules() formRules {
	return formRules{languages: toAny(s.cfg.Languages), templates: toAny(s.cfg.Templates)}
}

func (s *service) emit(ctx context.Context, actor permissions.Principal, verb string, page *Page, language string) {
	if s.activity == nil {
		return
	}
	meta := map[string]any{"site_id": page.SiteID.String()}
	if language != "" {
		meta["language"] = language
	}
	err := s.activity.Emit(ctx, activity.Event{
		Verb:       verb,
		ActorID:    actor.ID.String(),
		ObjectType: "page",
		ObjectID:   page.ID.String(),
		Metadata:   meta,
	})
	if err != nil {
		s.logger.Warn("pages.activity_failed", "verb", verb, "error", err)
	}
}

func (s *service) pageLogger(pageID uuid.UUID, language string, actor permissions.Principal) interfaces.Logger {
	return logging.WithPageContext(s.logger, pageID.String(), language, actor.ID.String())
}

// descendantsOf walks pages depth first below root.
func descendantsOf(all []*Page, root uuid.UUID) []*Page {
	byParent := make(map[uuid.UUID][]*Page)
	for _, page := range all {
		if page.ParentID != nil {
			byParent[*page.ParentID] = append(byParent[*page.ParentID], page)
		}
	}
	var out []*Page
	var walk func(id uuid.UUID)
	walk = func(id uuid.UUID) {
		for _, child := range byParent[id] {
			out = append(out, child)
			walk(child.ID)
		}
	}
	walk(root)
	return out
}

// insertPage places page among siblings at position, appending when
// position is nil or out of range.
func insertPage(siblings []*Page, page *Page, position *int) []*Page {
	idx := len(siblings)
	if position != nil && *position >= 0 && *position < len(siblings) {
		idx = *position
	}
	out := make([]*Page, 0, len(siblings)+1)
	out = append(out, siblings[:idx]...)
	out = append(out, page)
	return append(out, siblings[idx:]...)
}

func isNotFoundErr(err error) bool {
	var nf *NotFoundError
	return errors.As(err, &nf)
}
