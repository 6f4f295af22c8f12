package placeholders

import (
	"context"
	"maps"
	"strings"

	"github.com/goliatone/go-cms-admin/internal/identity"
	"github.com/google/uuid"
)

// CreatePagePlaceholders ensures pageID owns a placeholder for every slot.
func (s *service) CreatePagePlaceholders(ctx context.Context, pageID uuid.UUID, slots []string) ([]*Placeholder, error) {
	var created []*Placeholder
	err := s.locked(ctx, func(ctx context.Context) error {
		var err error
		created, err = s.ensurePagePlaceholders(ctx, pageID, slots)
		return err
	})
	if err != nil {
		return nil, err
	}
	return created, nil
}

// CopyPageContents mirrors one language of every placeholder of fromPageID
// onto the placeholder with the same slot on toPageID.
func (s *service) CopyPageContents(ctx context.Context, fromPageID, toPageID uuid.UUID, language string) error {
	language = strings.TrimSpace(language)
	if language == "" {
		return ErrLanguageRequired
	}
	return s.locked(ctx, func(ctx context.Context) error {
		sources, err := s.repo.ListForPage(ctx, fromPageID)
		if err != nil {
			return err
		}
		slots := make([]string, 0, len(sources))
		for _, ph := range sources {
			slots = append(slots, ph.Slot)
		}
		targets, err := s.ensurePagePlaceholders(ctx, toPageID, slots)
		if err != nil {
			return err
		}
		bySlot := make(map[string]*Placeholder, len(sources))
		for _, ph := range sources {
			bySlot[ph.Slot] = ph
		}
		for _, dst := range targets {
			if src, ok := bySlot[dst.Slot]; ok {
				if err := s.replaceContents(ctx, src.ID, dst.ID, language); err != nil {
					return err
				}
				continue
			}
			if err := s.deleteLanguage(ctx, dst.ID, language); err != nil {
				return err
			}
		}
		return nil
	})
}

func (s *service) CopyPlaceholderContents(ctx context.Context, sourceID, targetID uuid.UUID, language string) error {
	language = strings.TrimSpace(language)
	if language == "" {
		return ErrLanguageRequired
	}
	return s.locked(ctx, func(ctx context.Context) error {
		return s.replaceContents(ctx, sourceID, targetID, language)
	})
}

func (s *service) DeleteLanguage(ctx context.Context, placeholderIDs []uuid.UUID, language string) error {
	language = strings.TrimSpace(language)
	if language == "" {
		return ErrLanguageRequired
	}
	return s.locked(ctx, func(ctx context.Context) error {
		for _, id := range placeholderIDs {
			if err := s.deleteLanguage(ctx, id, language); err != nil {
				return err
			}
		}
		return nil
	})
}

func (s *service) DeletePageContents(ctx context.Context, pageID uuid.UUID) error {
	return s.locked(ctx, func(ctx context.Context) error {
		placeholders, err := s.repo.ListForPage(ctx, pageID)
		if err != nil {
			return err
		}
		ids := make([]uuid.UUID, 0, len(placeholders))
		for _, ph := range placeholders {
			plugins, err := s.repo.ListPlugins(ctx, ph.ID, "")
			if err != nil {
				return err
			}
			if err := s.dropReferences(ctx, plugins); err != nil {
				return err
			}
			ids = append(ids, ph.ID)
		}
		return s.repo.DeletePlaceholders(ctx, ids)
	})
}

func (s *service) DeletePageLanguage(ctx context.Context, pageID uuid.UUID, language string) error {
	placeholders, err := s.repo.ListForPage(ctx, pageID)
	if err != nil {
		return err
	}
	ids := make([]uuid.UUID, 0, len(placeholders))
	for _, ph := range placeholders {
		ids = append(ids, ph.ID)
	}
	return s.DeleteLanguage(ctx, ids, language)
}

func (s *service) ensurePagePlaceholders(ctx context.Context, pageID uuid.UUID, slots []string) ([]*Placeholder, error) {
	existing, err := s.repo.ListForPage(ctx, pageID)
	if err != nil {
		return nil, err
	}
	have := make(map[string]bool, len(existing))
	for _, ph := range existing {
		have[ph.Slot] = true
	}
	for _, slot := range slots {
		slot = strings.TrimSpace(slot)
		if slot == "" || have[slot] {
			continue
		}
		owner := pageID
		created, err := s.repo.CreatePlaceholder(ctx, &Placeholder{
			ID:     identity.PagePlaceholderUUID(pageID, slot),
			Slot:   slot,
			PageID: &owner,
		})
		if err != nil {
			return nil, err
		}
		existing = append(existing, created)
		have[slot] = true
	}
	return existing, nil
}

func (s *service) replaceContents(ctx context.Context, sourceID, targetID uuid.UUID, language string) error {
	if err := s.deleteLanguage(ctx, targetID, language); err != nil {
		return err
	}
	plugins, err := s.repo.ListPlugins(ctx, sourceID, language)
	if err != nil {
		return err
	}
	_, _, err = s.copyNodes(ctx, buildTree(plugins), targetID, language, nil, 0, false)
	return err
}

func (s *service) deleteLanguage(ctx context.Context, placeholderID uuid.UUID, language string) error {
	plugins, err := s.repo.ListPlugins(ctx, placeholderID, language)
	if err != nil {
		return err
	}
	return s.removePlugins(ctx, plugins)
}

// copyNodes clones nodes below parentID starting at position start and
// returns the created plugins plus the next free position. With expand set,
// reference plugins are replaced by the content they point at; otherwise
// the referenced placeholder is cloned as well.
func (s *service) copyNodes(ctx context.Context, nodes []*Node, placeholderID uuid.UUID, language string, parentID *uuid.UUID, start int, expand bool) ([]*Plugin, int, error) {
	position := start
	var out []*Plugin
	for _, node := range nodes {
		src := node.Plugin
		if src.ReferencePlaceholderID != nil && expand {
			referenced, err := s.repo.ListPlugins(ctx, *src.ReferencePlaceholderID, "")
			if err != nil {
				return nil, 0, err
			}
			created, next, err := s.copyNodes(ctx, buildTree(referenced), placeholderID, language, parentID, position, expand)
			if err != nil {
				return nil, 0, err
			}
			out = append(out, created...)
			position = next
			continue
		}

		clone := &Plugin{
			PlaceholderID: placeholderID,
			ParentID:      cloneUUID(parentID),
			Position:      position,
			Language:      language,
			PluginType:    src.PluginType,
			Data:          maps.Clone(src.Data),
		}
		if src.ReferencePlaceholderID != nil {
			ref, err := s.cloneReference(ctx, *src.ReferencePlaceholderID, language)
			if err != nil {
				return nil, 0, err
			}
			clone.ReferencePlaceholderID = &ref.ID
		}
		created, err := s.repo.CreatePlugin(ctx, clone)
		if err != nil {
			return nil, 0, err
		}
		out = append(out, created)
		children, _, err := s.copyNodes(ctx, node.Children, placeholderID, language, &created.ID, 0, expand)
		if err != nil {
			return nil, 0, err
		}
		out = append(out, children...)
		position++
	}
	return out, position, nil
}

func (s *service) cloneReference(ctx context.Context, referenceID uuid.UUID, language string) (*Placeholder, error) {
	original, err := s.repo.GetPlaceholder(ctx, referenceID)
	if err != nil {
		return nil, err
	}
	ref, err := s.repo.CreatePlaceholder(ctx, &Placeholder{Slot: original.Slot})
	if err != nil {
		return nil, err
	}
	plugins, err := s.repo.ListPlugins(ctx, referenceID, "")
	if err != nil {
		return nil, err
	}
	if _, _, err := s.copyNodes(ctx, buildTree(plugins), ref.ID, language, nil, 0, false); err != nil {
		return nil, err
	}
	return ref, nil
}

// removePlugins deletes plugins together with the reference placeholders
// they point at.
func (s *service) removePlugins(ctx context.Context, plugins []*Plugin) error {
	if len(plugins) == 0 {
		return nil
	}
	if err := s.dropReferences(ctx, plugins); err != nil {
		return err
	}
	ids := make([]uuid.UUID, 0, len(plugins))
	for _, p := range plugins {
		ids = append(ids, p.ID)
	}
	return s.repo.DeletePlugins(ctx, ids)
}

func (s *service) dropReferences(ctx context.Context, plugins []*Plugin) error {
	var refs []uuid.UUID
	for _, p := range plugins {
		if p.ReferencePlaceholderID == nil {
			continue
		}
		nested, err := s.repo.ListPlugins(ctx, *p.ReferencePlaceholderID, "")
		if err != nil {
			return err
		}
		if err := s.dropReferences(ctx, nested); err != nil {
			return err
		}
		refs = append(refs, *p.ReferencePlaceholderID)
	}
	if len(refs) == 0 {
		return nil
	}
	return s.repo.DeletePlaceholders(ctx, refs)
}
