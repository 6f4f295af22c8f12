package pagescmd

import (
	"strings"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/goliatone/go-cms-admin/internal/permissions"
	"github.com/google/uuid"
)

const (
	publishPageMessageType       = "cms.pages.publish"
	unpublishPageMessageType     = "cms.pages.unpublish"
	revertPageMessageType        = "cms.pages.revert"
	deleteTranslationMessageType = "cms.pages.translation.delete"
)

// PublishPageCommand publishes one language of a draft page.
type PublishPageCommand struct {
	Actor    permissions.Principal `json:"-"`
	PageID   uuid.UUID             `json:"page_id"`
	Language string                `json:"language"`
}

func (PublishPageCommand) Type() string { return publishPageMessageType }

func (m PublishPageCommand) Validate() error {
	return validatePageLanguage("cms.pages.publish", m.PageID, m.Language)
}

// UnpublishPageCommand withdraws the public copy of one language.
type UnpublishPageCommand struct {
	Actor    permissions.Principal `json:"-"`
	PageID   uuid.UUID             `json:"page_id"`
	Language string                `json:"language"`
}

func (UnpublishPageCommand) Type() string { return unpublishPageMessageType }

func (m UnpublishPageCommand) Validate() error {
	return validatePageLanguage("cms.pages.unpublish", m.PageID, m.Language)
}

// RevertPageCommand restores the draft of one language from its public copy.
type RevertPageCommand struct {
	Actor    permissions.Principal `json:"-"`
	PageID   uuid.UUID             `json:"page_id"`
	Language string                `json:"language"`
}

func (RevertPageCommand) Type() string { return revertPageMessageType }

func (m RevertPageCommand) Validate() error {
	return validatePageLanguage("cms.pages.revert", m.PageID, m.Language)
}

type DeleteTranslationCommand struct {
	Actor    permissions.Principal `json:"-"`
	PageID   uuid.UUID             `json:"page_id"`
	Language string                `json:"language"`
}

func (DeleteTranslationCommand) Type() string { return deleteTranslationMessageType }

func (m DeleteTranslationCommand) Validate() error {
	return validatePageLanguage("cms.pages.translation.delete", m.PageID, m.Language)
}

func validatePageLanguage(prefix string, pageID uuid.UUID, language string) error {
	errs := validation.Errors{}
	if pageID == uuid.Nil {
		errs["page_id"] = validation.NewError(prefix+".page_id_required", "page_id is required")
	}
	if strings.TrimSpace(language) == "" {
		errs["language"] = validation.NewError(prefix+".language_required", "language is required")
	}
	if len(errs) > 0 {
		return errs
	}
	return nil
}

func messageFields(pageID uuid.UUID, language string, actor permissions.Principal) map[string]any {
	fields := map[string]any{}
	if pageID != uuid.Nil {
		fields["page_id"] = pageID
	}
	if trimmed := strings.TrimSpace(language); trimmed != "" {
		fields["language"] = trimmed
	}
	if actor.ID != uuid.Nil {
		fields["actor_id"] = actor.ID
	}
	return fields
}
