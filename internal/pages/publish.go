package pages

import (
	"context"
	"errors"
	"net/url"
	"strings"

	"github.com/goliatone/go-cms-admin/internal/identity"
	"github.com/goliatone/go-cms-admin/internal/permissions"
	"github.com/goliatone/go-cms-admin/internal/sites"
	"github.com/google/uuid"
)

// Publish copies the draft page, its language title and placeholder content
// onto the public copy, creating it on first publish. The draft title is
// left published and clean.
func (s *service) Publish(ctx context.Context, actor permissions.Principal, pageID uuid.UUID, language string) (*Page, error) {
	language = strings.TrimSpace(language)
	checked, _, err := s.authorize(ctx, actor, pageID, permissions.CanPublish)
	if err != nil {
		return nil, err
	}
	logger := s.pageLogger(checked.ID, language, actor)

	var public *Page
	draft, err := s.withDraft(ctx, checked.ID, func(ctx context.Context, draft *Page) error {
		var err error
		public, err = s.publish(ctx, actor, draft, language)
		return err
	})
	if err != nil {
		if !IsClientError(err) && !isNotFoundErr(err) {
			logger.Error("pages.publish.failed", "error", err)
		}
		return nil, err
	}

	s.emit(ctx, actor, "published", draft, language)
	logger.Info("pages.publish.success", "public_id", public.ID)
	return public, nil
}

func (s *service) publish(ctx context.Context, actor permissions.Principal, draft *Page, language string) (*Page, error) {
	draftTitle, err := s.repo.GetTitle(ctx, draft.ID, language)
	if err != nil {
		return nil, err
	}
	now := s.now().UTC()

	publicID := identity.PublicPageUUID(draft.ID)
	public, err := s.repo.GetPage(ctx, publicID)
	creating := isNotFoundErr(err)
	if err != nil && !creating {
		return nil, err
	}
	mirror := clonePage(draft)
	mirror.ID = publicID
	mirror.LineageID = draft.ID
	mirror.PublisherIsDraft = false
	mirror.PublicID = nil
	mirror.ChangedBy = actor.ID
	mirror.UpdatedAt = now
	if creating {
		mirror.CreatedAt = now
		public, err = s.repo.CreatePage(ctx, mirror)
	} else {
		mirror.CreatedAt = public.CreatedAt
		public, err = s.repo.UpdatePage(ctx, mirror)
	}
	if err != nil {
		return nil, err
	}

	publicTitle := cloneTitle(draftTitle)
	publicTitle.ID = identity.PublicTitleUUID(draft.ID, language)
	publicTitle.PageID = public.ID
	publicTitle.PublisherIsDraft = false
	publicTitle.Published = true
	publicTitle.PublisherState = StateClean
	publicTitle.UpdatedAt = now
	if _, err := s.repo.GetTitle(ctx, public.ID, language); err != nil {
		if !isNotFoundErr(err) {
			return nil, err
		}
		publicTitle.CreatedAt = now
		if _, err := s.repo.CreateTitle(ctx, publicTitle); err != nil {
			return nil, err
		}
	} else if _, err := s.repo.UpdateTitle(ctx, publicTitle); err != nil {
		return nil, err
	}

	if err := s.contents.CopyPageContents(ctx, draft.ID, public.ID, language); err != nil {
		return nil, err
	}

	if draft.PublicID == nil || *draft.PublicID != public.ID {
		draft.PublicID = &public.ID
		draft.UpdatedAt = now
		if _, err := s.repo.UpdatePage(ctx, draft); err != nil {
			return nil, err
		}
	}
	draftTitle.Published = true
	draftTitle.PublisherState = StateClean
	draftTitle.UpdatedAt = now
	if _, err := s.repo.UpdateTitle(ctx, draftTitle); err != nil {
		return nil, err
	}
	return public, nil
}

// Unpublish removes the public title and content of language. The public
// page goes away with its last title. The draft stays, unpublished and
// dirty.
func (s *service) Unpublish(ctx context.Context, actor permissions.Principal, pageID uuid.UUID, language string) error {
	language = strings.TrimSpace(language)
	checked, _, err := s.authorize(ctx, actor, pageID, permissions.CanPublish)
	if err != nil {
		return err
	}

	draft, err := s.withDraft(ctx, checked.ID, func(ctx context.Context, draft *Page) error {
		publicTitle, err := s.publicTitle(ctx, draft, language)
		if err != nil {
			return err
		}
		if err := s.dropPublicLanguage(ctx, draft, publicTitle); err != nil {
			return err
		}
		draftTitle, err := s.repo.GetTitle(ctx, draft.ID, language)
		if err != nil {
			if isNotFoundErr(err) {
				return nil
			}
			return err
		}
		draftTitle.Published = false
		draftTitle.PublisherState = StateDirty
		draftTitle.UpdatedAt = s.now().UTC()
		_, err = s.repo.UpdateTitle(ctx, draftTitle)
		return err
	})
	if err != nil {
		return err
	}

	s.emit(ctx, actor, "unpublished", draft, language)
	s.pageLogger(draft.ID, language, actor).Info("pages.unpublish.success")
	return nil
}

// Revert discards draft changes of language by copying the public title and
// content back onto the draft.
func (s *service) Revert(ctx context.Context, actor permissions.Principal, pageID uuid.UUID, language string) error {
	language = strings.TrimSpace(language)
	checked, _, err := s.authorize(ctx, actor, pageID, permissions.CanChange)
	if err != nil {
		return err
	}

	draft, err := s.withDraft(ctx, checked.ID, func(ctx context.Context, draft *Page) error {
		publicTitle, err := s.publicTitle(ctx, draft, language)
		if err != nil {
			return err
		}
		draftTitle, err := s.repo.GetTitle(ctx, draft.ID, language)
		if err != nil {
			return err
		}
		draftTitle.Title = publicTitle.Title
		draftTitle.Slug = publicTitle.Slug
		draftTitle.Path = publicTitle.Path
		draftTitle.HasURLOverwrite = publicTitle.HasURLOverwrite
		draftTitle.MenuTitle = publicTitle.MenuTitle
		draftTitle.PageTitle = publicTitle.PageTitle
		draftTitle.MetaDescription = publicTitle.MetaDescription
		draftTitle.Published = true
		draftTitle.PublisherState = StateClean
		draftTitle.UpdatedAt = s.now().UTC()

		if err := s.contents.CopyPageContents(ctx, publicTitle.PageID, draft.ID, language); err != nil {
			return err
		}
		_, err = s.repo.UpdateTitle(ctx, draftTitle)
		return err
	})
	if err != nil {
		return err
	}

	s.emit(ctx, actor, "reverted", draft, language)
	s.pageLogger(draft.ID, language, actor).Info("pages.revert.success")
	return nil
}

// Delete removes a page with its descendants, public copies, titles,
// placeholder content and page grants.
func (s *service) Delete(ctx context.Context, actor permissions.Principal, pageID uuid.UUID) error {
	checked, _, err := s.authorize(ctx, actor, pageID, permissions.CanDelete)
	if err != nil {
		return err
	}

	var doomed []*Page
	page, err := s.withDraft(ctx, checked.ID, func(ctx context.Context, page *Page) error {
		all, err := s.repo.ListPages(ctx, page.SiteID)
		if err != nil {
			return err
		}
		doomed = descendantsOf(all, page.ID)
		for i := len(doomed) - 1; i >= 0; i-- {
			if err := s.removePage(ctx, doomed[i]); err != nil {
				return err
			}
		}
		if err := s.removePage(ctx, page); err != nil {
			return err
		}
		remaining, err := s.siblings(ctx, page.SiteID, page.ParentID, page.ID)
		if err != nil {
			return err
		}
		return s.persistPositions(ctx, remaining, uuid.Nil)
	})
	if err != nil {
		return err
	}

	s.emit(ctx, actor, "deleted", page, "")
	s.pageLogger(page.ID, "", actor).Info("pages.delete.success", "descendants", len(doomed))
	return nil
}

// DeleteTranslation removes one language of a page, draft and public. The
// last remaining translation cannot be deleted.
func (s *service) DeleteTranslation(ctx context.Context, actor permissions.Principal, pageID uuid.UUID, language string) error {
	language = strings.TrimSpace(language)
	checked, _, err := s.authorize(ctx, actor, pageID, permissions.CanDelete)
	if err != nil {
		return err
	}

	draft, err := s.withDraft(ctx, checked.ID, func(ctx context.Context, draft *Page) error {
		titles, err := s.repo.ListTitles(ctx, draft.ID)
		if err != nil {
			return err
		}
		var doomed *Title
		for _, title := range titles {
			if title.Language == language {
				doomed = title
				break
			}
		}
		if doomed == nil {
			return &NotFoundError{Resource: "title", Key: draft.ID.String() + ":" + language}
		}
		if len(titles) == 1 {
			return ErrLastTranslation
		}

		if publicTitle, err := s.publicTitle(ctx, draft, language); err == nil {
			if err := s.dropPublicLanguage(ctx, draft, publicTitle); err != nil {
				return err
			}
		} else if !isNotFoundErr(err) && !errors.Is(err, ErrNotPublished) {
			return err
		}
		if err := s.repo.DeleteTitle(ctx, doomed.ID); err != nil {
			return err
		}
		return s.contents.DeletePageLanguage(ctx, draft.ID, language)
	})
	if err != nil {
		return err
	}

	s.emit(ctx, actor, "translation_deleted", draft, language)
	s.pageLogger(draft.ID, language, actor).Info("pages.delete_translation.success")
	return nil
}

// Preview returns the editing url of the page in language. Pages of another
// site than currentSiteID get an absolute url on their own domain.
func (s *service) Preview(ctx context.Context, pageID uuid.UUID, language string, currentSiteID uuid.UUID) (string, error) {
	language = strings.TrimSpace(language)
	if language == "" {
		language = s.cfg.DefaultLanguage
	}
	page, err := s.draft(ctx, pageID)
	if err != nil {
		return "", err
	}
	title, err := s.repo.GetTitle(ctx, page.ID, language)
	if err != nil {
		return "", err
	}

	path := "/" + language + "/"
	if title.Path != "" {
		path += title.Path + "/"
	}
	query := s.cfg.Admin.ToolbarEditOn + "&language=" + url.QueryEscape(language)

	if s.sites != nil && currentSiteID != uuid.Nil && page.SiteID != currentSiteID {
		site, err := s.sites.GetByID(ctx, page.SiteID)
		if err != nil {
			return "", err
		}
		return sites.AbsoluteURL(site.Domain, path) + "?" + query, nil
	}
	return path + "?" + query, nil
}

// IsPublished reports whether a public title exists for language.
func (s *service) IsPublished(ctx context.Context, pageID uuid.UUID, language string) (bool, error) {
	page, err := s.draft(ctx, pageID)
	if err != nil {
		return false, err
	}
	if _, err := s.publicTitle(ctx, page, strings.TrimSpace(language)); err != nil {
		if isNotFoundErr(err) || errors.Is(err, ErrNotPublished) {
			return false, nil
		}
		return false, err
	}
	return true, nil
}

// IsDirty reports whether the draft title of language changed since it was
// last published.
func (s *service) IsDirty(ctx context.Context, pageID uuid.UUID, language string) (bool, error) {
	page, err := s.draft(ctx, pageID)
	if err != nil {
		return false, err
	}
	title, err := s.repo.GetTitle(ctx, page.ID, strings.TrimSpace(language))
	if err != nil {
		return false, err
	}
	return title.Dirty(), nil
}

func (s *service) publicTitle(ctx context.Context, draft *Page, language string) (*Title, error) {
	if draft.PublicID == nil {
		return nil, ErrNotPublished
	}
	title, err := s.repo.GetTitle(ctx, *draft.PublicID, language)
	if err != nil {
		if isNotFoundErr(err) {
			return nil, ErrNotPublished
		}
		return nil, err
	}
	return title, nil
}

// dropPublicLanguage deletes a public title with its content, and the public
// page once no title is left on it.
func (s *service) dropPublicLanguage(ctx context.Context, draft *Page, publicTitle *Title) error {
	publicID := publicTitle.PageID
	if err := s.repo.DeleteTitle(ctx, publicTitle.ID); err != nil {
		return err
	}
	if err := s.contents.DeletePageLanguage(ctx, publicID, publicTitle.Language); err != nil {
		return err
	}
	left, err := s.repo.ListTitles(ctx, publicID)
	if err != nil {
		return err
	}
	if len(left) > 0 {
		return nil
	}
	if err := s.contents.DeletePageContents(ctx, publicID); err != nil {
		return err
	}
	if err := s.repo.DeletePage(ctx, publicID); err != nil {
		return err
	}
	draft.PublicID = nil
	draft.UpdatedAt = s.now().UTC()
	_, err = s.repo.UpdatePage(ctx, draft)
	return err
}

// removePage deletes one draft page and everything hanging off it.
func (s *service) removePage(ctx context.Context, page *Page) error {
	if page.PublicID != nil {
		if err := s.removeRecords(ctx, *page.PublicID); err != nil {
			return err
		}
	}
	if err := s.removeRecords(ctx, page.ID); err != nil {
		return err
	}
	if s.grants != nil {
		if err := s.grants.ForgetPage(ctx, page.ID); err != nil {
			return err
		}
	}
	return nil
}

func (s *service) removeRecords(ctx context.Context, pageID uuid.UUID) error {
	titles, err := s.repo.ListTitles(ctx, pageID)
	if err != nil {
		return err
	}
	for _, title := range titles {
		if err := s.repo.DeleteTitle(ctx, title.ID); err != nil {
			return err
		}
	}
	if err := s.contents.DeletePageContents(ctx, pageID); err != nil {
		return err
	}
	return s.repo.DeletePage(ctx, pageID)
}
