package pages

import (
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

var (
	ErrInvalidForm        = errors.New("pages: invalid form")
	ErrTemplateUnknown    = errors.New("pages: template is not configured")
	ErrNotPublished       = errors.New("pages: page is not published in this language")
	ErrLastTranslation    = errors.New("pages: cannot delete the last translation of a page")
	ErrMoveIntoDescendant = errors.New("pages: page cannot be moved below itself")
	ErrSiteMismatch       = errors.New("pages: site doesn't match the parent's page site")
)

// PublisherState tracks whether a draft title diverged from its public copy.
type PublisherState string

const (
	StateClean PublisherState = "clean"
	StateDirty PublisherState = "dirty"
)

// Page is one copy of a page. Drafts carry PublisherIsDraft; the public
// copy shares the draft id as LineageID. ParentID always points at a draft.
type Page struct {
	bun.BaseModel `bun:"table:pages,alias:p"`

	ID                 uuid.UUID  `bun:",pk,type:uuid" json:"id"`
	LineageID          uuid.UUID  `bun:"lineage_id,notnull,type:uuid" json:"lineage_id"`
	PublisherIsDraft   bool       `bun:"publisher_is_draft,notnull" json:"publisher_is_draft"`
	PublicID           *uuid.UUID `bun:"public_id,type:uuid" json:"public_id,omitempty"`
	SiteID             uuid.UUID  `bun:"site_id,notnull,type:uuid" json:"site_id"`
	ParentID           *uuid.UUID `bun:"parent_id,type:uuid" json:"parent_id,omitempty"`
	Template           string     `bun:"template,notnull" json:"template"`
	InNavigation       bool       `bun:"in_navigation,notnull" json:"in_navigation"`
	ReverseID          *string    `bun:"reverse_id" json:"reverse_id,omitempty"`
	ApplicationURLs    *string    `bun:"application_urls" json:"application_urls,omitempty"`
	PublicationDate    *time.Time `bun:"publication_date" json:"publication_date,omitempty"`
	PublicationEndDate *time.Time `bun:"publication_end_date" json:"publication_end_date,omitempty"`
	Position           int        `bun:"position,notnull" json:"position"`
	CreatedBy          uuid.UUID  `bun:"created_by,type:uuid" json:"created_by"`
	ChangedBy          uuid.UUID  `bun:"changed_by,type:uuid" json:"changed_by"`
	CreatedAt          time.Time  `bun:"created_at,nullzero,default:current_timestamp" json:"created_at"`
	UpdatedAt          time.Time  `bun:"updated_at,nullzero,default:current_timestamp" json:"updated_at"`
}

// IsVisible reports whether now falls inside the publication window.
func (p *Page) IsVisible(now time.Time) bool {
	if p.PublicationDate != nil && now.Before(*p.PublicationDate) {
		return false
	}
	if p.PublicationEndDate != nil && !now.Before(*p.PublicationEndDate) {
		return false
	}
	return true
}

// Title holds the per language text of a page.
type Title struct {
	bun.BaseModel `bun:"table:titles,alias:t"`

	ID               uuid.UUID      `bun:",pk,type:uuid" json:"id"`
	PageID           uuid.UUID      `bun:"page_id,notnull,type:uuid" json:"page_id"`
	Language         string         `bun:"language,notnull" json:"language"`
	Title            string         `bun:"title,notnull" json:"title"`
	Slug             string         `bun:"slug,notnull" json:"slug"`
	Path             string         `bun:"path,notnull" json:"path"`
	HasURLOverwrite  bool           `bun:"has_url_overwrite,notnull" json:"has_url_overwrite"`
	Published        bool           `bun:"published,notnull" json:"published"`
	PublisherIsDraft bool           `bun:"publisher_is_draft,notnull" json:"publisher_is_draft"`
	PublisherState   PublisherState `bun:"publisher_state,notnull" json:"publisher_state"`
	MenuTitle        string         `bun:"menu_title" json:"menu_title,omitempty"`
	PageTitle        string         `bun:"page_title" json:"page_title,omitempty"`
	MetaDescription  string         `bun:"meta_description" json:"meta_description,omitempty"`
	CreatedAt        time.Time      `bun:"created_at,nullzero,default:current_timestamp" json:"created_at"`
	UpdatedAt        time.Time      `bun:"updated_at,nullzero,default:current_timestamp" json:"updated_at"`
}

// Dirty reports whether the title changed since it was last published.
func (t *Title) Dirty() bool {
	return t.PublisherState == StateDirty
}

type NotFoundError struct {
	Resource string
	Key      string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s %q not found", e.Resource, e.Key)
}

// FormError carries field level validation messages keyed by form field.
type FormError struct {
	Errors validation.Errors
}

func (e *FormError) Error() string {
	return "pages: invalid form: " + e.Errors.Error()
}

func (e *FormError) Unwrap() error {
	return ErrInvalidForm
}

// Fields flattens the errors into field/message pairs.
func (e *FormError) Fields() map[string]string {
	out := make(map[string]string, len(e.Errors))
	for field, err := range e.Errors {
		if err != nil {
			out[field] = err.Error()
		}
	}
	return out
}

// fieldError builds a FormError for a single field.
func fieldError(field, message string) *FormError {
	return &FormError{Errors: validation.Errors{field: errors.New(message)}}
}

// asFormError merges ozzo validation output and extra field errors.
func asFormError(err error, extra validation.Errors) error {
	merged := validation.Errors{}
	if err != nil {
		var ve validation.Errors
		if !errors.As(err, &ve) {
			return err
		}
		for k, v := range ve {
			merged[k] = v
		}
	}
	for k, v := range extra {
		if v != nil {
			if _, exists := merged[k]; !exists {
				merged[k] = v
			}
		}
	}
	if len(merged) == 0 {
		return nil
	}
	return &FormError{Errors: merged}
}

// IsClientError reports whether err stems from invalid input.
func IsClientError(err error) bool {
	return errors.Is(err, ErrInvalidForm) ||
		errors.Is(err, ErrTemplateUnknown) ||
		errors.Is(err, ErrNotPublished) ||
		errors.Is(err, ErrLastTranslation) ||
		errors.Is(err, ErrMoveIntoDescendant) ||
		errors.Is(err, ErrSiteMismatch)
}

func clonePage(src *Page) *Page {
	if src == nil {
		return nil
	}
	out := *src
	out.PublicID = cloneUUID(src.PublicID)
	out.ParentID = cloneUUID(src.ParentID)
	out.ReverseID = cloneString(src.ReverseID)
	out.ApplicationURLs = cloneString(src.ApplicationURLs)
	out.PublicationDate = cloneTime(src.PublicationDate)
	out.PublicationEndDate = cloneTime(src.PublicationEndDate)
	return &out
}

func cloneTitle(src *Title) *Title {
	if src == nil {
		return nil
	}
	out := *src
	return &out
}

func cloneUUID(src *uuid.UUID) *uuid.UUID {
	if src == nil {
		return nil
	}
	v := *src
	return &v
}

func cloneString(src *string) *string {
	if src == nil {
		return nil
	}
	v := *src
	return &v
}

func cloneTime(src *time.Time) *time.Time {
	if src == nil {
		return nil
	}
	v := *src
	return &v
}

func sameParent(a, b *uuid.UUID) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return *a == *b
}

// nilIfBlank trims value and returns nil for empty strings.
func nilIfBlank(value *string) *string {
	if value == nil {
		return nil
	}
	trimmed := strings.TrimSpace(*value)
	if trimmed == "" {
		return nil
	}
	return &trimmed
}

func sortPages(pages []*Page) {
	sort.SliceStable(pages, func(i, j int) bool {
		if pages[i].Position != pages[j].Position {
			return pages[i].Position < pages[j].Position
		}
		return pages[i].CreatedAt.Before(pages[j].CreatedAt)
	})
}

func sortTitles(titles []*Title) {
	sort.Slice(titles, func(i, j int) bool { return titles[i].Language < titles[j].Language })
}
