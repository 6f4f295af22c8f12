package pages

import (
	"regexp"
	"strings"
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/goliatone/go-slug"
	"github.com/google/uuid"
)

var slugPattern = regexp.MustCompile(`^[0-9A-Za-z_-]+$`)

const (
	msgSiteMismatch     = "Site doesn't match the parent's page site"
	msgSlugTaken        = "Another page with this slug already exists"
	msgReverseIDTaken   = "A page with this reverse URL id exists already."
	msgTemplateUnknown  = "Select a valid choice. That choice is not one of the available choices."
	msgPublicationOrder = "The publication end date must be after the start date."
)

// CreatePageRequest is the add page form.
type CreatePageRequest struct {
	SiteID          uuid.UUID  `json:"site" schema:"site"`
	ParentID        *uuid.UUID `json:"parent,omitempty" schema:"parent"`
	Language        string     `json:"language" schema:"language"`
	Title           string     `json:"title" schema:"title"`
	Slug            string     `json:"slug" schema:"slug"`
	Template        string     `json:"template" schema:"template"`
	OverwriteURL    string     `json:"overwrite_url,omitempty" schema:"overwrite_url"`
	InNavigation    bool       `json:"in_navigation" schema:"in_navigation"`
	MenuTitle       string     `json:"menu_title,omitempty" schema:"menu_title"`
	PageTitle       string     `json:"page_title,omitempty" schema:"page_title"`
	MetaDescription string     `json:"meta_description,omitempty" schema:"meta_description"`
}

// UpdatePageRequest is the change form. Pointer fields left nil keep their
// stored value. ReverseID, ApplicationURLs and OverwriteURL are only
// applied for users allowed to change advanced settings.
type UpdatePageRequest struct {
	PageID          uuid.UUID `json:"-" schema:"-"`
	Language        string    `json:"language" schema:"language"`
	Title           string    `json:"title" schema:"title"`
	Slug            string    `json:"slug" schema:"slug"`
	MenuTitle       *string   `json:"menu_title,omitempty" schema:"menu_title"`
	PageTitle       *string   `json:"page_title,omitempty" schema:"page_title"`
	MetaDescription *string   `json:"meta_description,omitempty" schema:"meta_description"`
	InNavigation    *bool     `json:"in_navigation,omitempty" schema:"in_navigation"`
	OverwriteURL    *string   `json:"overwrite_url,omitempty" schema:"overwrite_url"`
	ReverseID       *string   `json:"reverse_id,omitempty" schema:"reverse_id"`
	ApplicationURLs *string   `json:"application_urls,omitempty" schema:"application_urls"`
}

// AdvancedSettingsRequest is the advanced settings form. Empty strings
// clear the optional fields.
type AdvancedSettingsRequest struct {
	PageID          uuid.UUID `json:"-" schema:"-"`
	Template        string    `json:"template" schema:"template"`
	ReverseID       string    `json:"reverse_id" schema:"reverse_id"`
	ApplicationURLs string    `json:"application_urls" schema:"application_urls"`
	OverwriteURL    string    `json:"overwrite_url" schema:"overwrite_url"`
	Language        string    `json:"language" schema:"language"`
}

// DatesRequest sets the publication window.
type DatesRequest struct {
	PageID             uuid.UUID  `json:"-" schema:"-"`
	PublicationDate    *time.Time `json:"publication_date" schema:"publication_date"`
	PublicationEndDate *time.Time `json:"publication_end_date" schema:"publication_end_date"`
}

// TitleFields holds the per field edits of a title.
type TitleFields struct {
	Title           *string `json:"title,omitempty" schema:"title"`
	MenuTitle       *string `json:"menu_title,omitempty" schema:"menu_title"`
	PageTitle       *string `json:"page_title,omitempty" schema:"page_title"`
	MetaDescription *string `json:"meta_description,omitempty" schema:"meta_description"`
}

// MovePageRequest relocates a page below ParentID. A nil Position appends.
type MovePageRequest struct {
	PageID   uuid.UUID  `json:"-" schema:"-"`
	ParentID *uuid.UUID `json:"parent,omitempty" schema:"parent"`
	Position *int       `json:"position,omitempty" schema:"position"`
}

type formRules struct {
	languages []any
	templates []any
}

func (r *CreatePageRequest) normalize(defaultLanguage, defaultTemplate string) {
	r.Title = strings.TrimSpace(r.Title)
	r.Language = strings.TrimSpace(r.Language)
	if r.Language == "" {
		r.Language = defaultLanguage
	}
	r.Template = strings.TrimSpace(r.Template)
	if r.Template == "" {
		r.Template = defaultTemplate
	}
	r.Slug = strings.TrimSpace(r.Slug)
	if r.Slug == "" && r.Title != "" {
		r.Slug = deriveSlug(r.Title)
	}
	r.OverwriteURL = cleanPath(r.OverwriteURL)
}

func (r CreatePageRequest) validate(rules formRules) error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.Title, validation.Required, validation.Length(1, 255)),
		validation.Field(&r.Slug, validation.Required, validation.Length(1, 255), validation.Match(slugPattern)),
		validation.Field(&r.Language, validation.Required, validation.In(rules.languages...)),
		validation.Field(&r.Template, validation.In(rules.templates...).Error(msgTemplateUnknown)),
	)
}

func (r *UpdatePageRequest) normalize() {
	r.Title = strings.TrimSpace(r.Title)
	r.Language = strings.TrimSpace(r.Language)
	r.Slug = strings.TrimSpace(r.Slug)
	if r.Slug == "" && r.Title != "" {
		r.Slug = deriveSlug(r.Title)
	}
	if r.OverwriteURL != nil {
		cleaned := cleanPath(*r.OverwriteURL)
		r.OverwriteURL = &cleaned
	}
}

func (r UpdatePageRequest) validate(rules formRules) error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.Title, validation.Required, validation.Length(1, 255)),
		validation.Field(&r.Slug, validation.Required, validation.Length(1, 255), validation.Match(slugPattern)),
		validation.Field(&r.Language, validation.Required, validation.In(rules.languages...)),
	)
}

func (r AdvancedSettingsRequest) validate(rules formRules) error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.Template, validation.In(rules.templates...).Error(msgTemplateUnknown)),
		validation.Field(&r.ReverseID, validation.Length(0, 40)),
		validation.Field(&r.Language, validation.In(rules.languages...)),
	)
}

func (r DatesRequest) validate() error {
	if r.PublicationDate != nil && r.PublicationEndDate != nil && !r.PublicationDate.Before(*r.PublicationEndDate) {
		return fieldError("publication_end_date", msgPublicationOrder)
	}
	return nil
}

// deriveSlug normalizes a title into a url slug.
func deriveSlug(title string) string {
	normalized, err := slug.Normalize(title)
	if err != nil || normalized == "" {
		return strings.ToLower(strings.ReplaceAll(strings.TrimSpace(title), " ", "-"))
	}
	return normalized
}

// cleanPath strips surrounding slashes and whitespace from a url path.
func cleanPath(value string) string {
	return strings.Trim(strings.TrimSpace(value), "/")
}

func toAny(values []string) []any {
	out := make([]any, 0, len(values))
	for _, v := range values {
		out = append(out, v)
	}
	return out
}
