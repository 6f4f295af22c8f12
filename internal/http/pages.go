package http

import (
	"net/http"
	"strings"

	"github.com/goliatone/go-cms-admin/internal/pages"
	"github.com/goliatone/go-cms-admin/internal/permissions"
	"github.com/goliatone/go-cms-admin/internal/placeholders"
	"github.com/google/uuid"
)

type templatePayload struct {
	Template string `json:"template" schema:"template"`
}

type copyLanguagePayload struct {
	SourceLanguage string `json:"source_language" schema:"source_language"`
	TargetLanguage string `json:"target_language" schema:"target_language"`
}

type languageState struct {
	Language  string `json:"language"`
	Title     string `json:"title"`
	Published bool   `json:"published"`
	Dirty     bool   `json:"dirty"`
}

type moderationResponse struct {
	PageID    uuid.UUID       `json:"page_id"`
	Languages []languageState `json:"languages"`
}

type deleteConfirmation struct {
	Page        *pages.Page   `json:"page"`
	Descendants []*pages.Page `json:"descendants"`
}

func (api *AdminAPI) registerPageRoutes(mux *http.ServeMux, base string) {
	root := joinPath(base, "pages")
	mux.HandleFunc("GET "+root, api.handlePageList)
	mux.HandleFunc("POST "+root, api.handlePageCreate)
	mux.HandleFunc("GET "+root+"/{id}", api.handlePageDetail)
	mux.HandleFunc("POST "+root+"/{id}", api.handlePageUpdate)
	mux.HandleFunc("POST "+root+"/{id}/advanced", api.handlePageAdvanced)
	mux.HandleFunc("POST "+root+"/{id}/template", api.handlePageTemplate)
	mux.HandleFunc("POST "+root+"/{id}/navigation", api.handlePageNavigation)
	mux.HandleFunc("POST "+root+"/{id}/dates", api.handlePageDates)
	mux.HandleFunc("POST "+root+"/{id}/move", api.handlePageMove)
	mux.HandleFunc("POST "+root+"/{id}/publish/{language}", api.handlePagePublish)
	mux.HandleFunc("POST "+root+"/{id}/unpublish/{language}", api.handlePageUnpublish)
	mux.HandleFunc("GET "+root+"/{id}/revert/{language}", api.handlePageRevert)
	mux.HandleFunc("POST "+root+"/{id}/revert/{language}", api.handlePageRevert)
	mux.HandleFunc("GET "+root+"/{id}/preview/{language}", api.handlePagePreview)
	mux.HandleFunc("GET "+root+"/{id}/descendants", api.handlePageDescendants)
	mux.HandleFunc("GET "+root+"/{id}/delete", api.handlePageDeleteConfirm)
	mux.HandleFunc("POST "+root+"/{id}/delete", api.handlePageDelete)
	mux.HandleFunc("GET "+root+"/{id}/delete-translation", api.handleTranslationDeleteConfirm)
	mux.HandleFunc("POST "+root+"/{id}/delete-translation", api.handleTranslationDelete)
	mux.HandleFunc("GET "+root+"/{id}/edit-title/{language}", api.handleTitleGet)
	mux.HandleFunc("POST "+root+"/{id}/edit-title/{language}", api.handleTitleEdit)
	mux.HandleFunc("GET "+root+"/{id}/permissions", api.handlePagePermissions)
	mux.HandleFunc("GET "+root+"/{id}/moderation", api.handlePageModeration)
	mux.HandleFunc("POST "+root+"/{id}/copy-language", api.handleCopyLanguage)
}

func (api *AdminAPI) handlePageList(w http.ResponseWriter, r *http.Request) {
	actor, ok := api.actor(w, r)
	if !ok {
		return
	}
	siteID := api.siteID
	if raw := strings.TrimSpace(r.URL.Query().Get("site")); raw != "" {
		parsed, err := parseUUID(raw)
		if err != nil {
			writeBadRequest(w, "invalid site")
			return
		}
		siteID = parsed
	}
	entries, err := api.pages.List(r.Context(), actor, siteID)
	if err != nil {
		api.fail(w, "pages.list", err)
		return
	}
	if entries == nil {
		entries = []*pages.ListEntry{}
	}
	writeJSON(w, http.StatusOK, entries)
}

func (api *AdminAPI) handlePageCreate(w http.ResponseWriter, r *http.Request) {
	actor, ok := api.actor(w, r)
	if !ok {
		return
	}
	var req pages.CreatePageRequest
	if err := decodeBody(r, &req); err != nil {
		writeBadRequest(w, err.Error())
		return
	}
	req.ParentID = nilIfZero(req.ParentID)
	if _, err := api.pages.Create(r.Context(), actor, req); err != nil {
		api.fail(w, "pages.create", err)
		return
	}
	redirect(w, r, nextURL(r, api.changelistURL()))
}

func (api *AdminAPI) handlePageDetail(w http.ResponseWriter, r *http.Request) {
	actor, ok := api.actor(w, r)
	if !ok {
		return
	}
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	detail, err := api.pages.Detail(r.Context(), actor, id)
	if err != nil {
		api.fail(w, "pages.detail", err)
		return
	}
	writeJSON(w, http.StatusOK, detail)
}

func (api *AdminAPI) handlePageUpdate(w http.ResponseWriter, r *http.Request) {
	actor, ok := api.actor(w, r)
	if !ok {
		return
	}
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	var req pages.UpdatePageRequest
	if err := decodeBody(r, &req); err != nil {
		writeBadRequest(w, err.Error())
		return
	}
	req.PageID = id
	if _, err := api.pages.Update(r.Context(), actor, req); err != nil {
		api.fail(w, "pages.update", err)
		return
	}
	redirect(w, r, nextURL(r, api.changelistURL()))
}

func (api *AdminAPI) handlePageAdvanced(w http.ResponseWriter, r *http.Request) {
	actor, ok := api.actor(w, r)
	if !ok {
		return
	}
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	var req pages.AdvancedSettingsRequest
	if err := decodeBody(r, &req); err != nil {
		writeBadRequest(w, err.Error())
		return
	}
	req.PageID = id
	if _, err := api.pages.UpdateAdvanced(r.Context(), actor, req); err != nil {
		api.fail(w, "pages.advanced", err)
		return
	}
	redirect(w, r, nextURL(r, api.pageURL(id)))
}

func (api *AdminAPI) handlePageTemplate(w http.ResponseWriter, r *http.Request) {
	actor, ok := api.actor(w, r)
	if !ok {
		return
	}
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	var payload templatePayload
	if err := decodeBody(r, &payload); err != nil {
		writeBadRequest(w, err.Error())
		return
	}
	page, err := api.pages.ChangeTemplate(r.Context(), actor, id, payload.Template)
	if err != nil {
		api.fail(w, "pages.template", err)
		return
	}
	writeJSON(w, http.StatusOK, page)
}

func (api *AdminAPI) handlePageNavigation(w http.ResponseWriter, r *http.Request) {
	actor, ok := api.actor(w, r)
	if !ok {
		return
	}
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	page, err := api.pages.ToggleNavigation(r.Context(), actor, id)
	if err != nil {
		api.fail(w, "pages.navigation", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"in_navigation": page.InNavigation})
}

func (api *AdminAPI) handlePageDates(w http.ResponseWriter, r *http.Request) {
	actor, ok := api.actor(w, r)
	if !ok {
		return
	}
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	var req pages.DatesRequest
	if err := decodeBody(r, &req); err != nil {
		writeBadRequest(w, err.Error())
		return
	}
	req.PageID = id
	if _, err := api.pages.ChangeDates(r.Context(), actor, req); err != nil {
		api.fail(w, "pages.dates", err)
		return
	}
	redirect(w, r, nextURL(r, api.pageURL(id)))
}

func (api *AdminAPI) handlePageMove(w http.ResponseWriter, r *http.Request) {
	actor, ok := api.actor(w, r)
	if !ok {
		return
	}
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	var req pages.MovePageRequest
	if err := decodeBody(r, &req); err != nil {
		writeBadRequest(w, err.Error())
		return
	}
	req.PageID = id
	req.ParentID = nilIfZero(req.ParentID)
	page, err := api.pages.Move(r.Context(), actor, req)
	if err != nil {
		api.fail(w, "pages.move", err)
		return
	}
	writeJSON(w, http.StatusOK, page)
}

func (api *AdminAPI) handlePagePublish(w http.ResponseWriter, r *http.Request) {
	actor, ok := api.actor(w, r)
	if !ok {
		return
	}
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	if _, err := api.pages.Publish(r.Context(), actor, id, r.PathValue("language")); err != nil {
		api.fail(w, "pages.publish", err)
		return
	}
	redirect(w, r, nextURL(r, api.changelistURL()))
}

func (api *AdminAPI) handlePageUnpublish(w http.ResponseWriter, r *http.Request) {
	actor, ok := api.actor(w, r)
	if !ok {
		return
	}
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	language := r.PathValue("language")
	if err := api.pages.Unpublish(r.Context(), actor, id, language); err != nil {
		api.fail(w, "pages.unpublish", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"page_id": id, "language": language, "published": false})
}

func (api *AdminAPI) handlePageRevert(w http.ResponseWriter, r *http.Request) {
	actor, ok := api.actor(w, r)
	if !ok {
		return
	}
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	language := r.PathValue("language")
	if err := api.pages.Revert(r.Context(), actor, id, language); err != nil {
		api.fail(w, "pages.revert", err)
		return
	}
	preview, err := api.pages.Preview(r.Context(), id, language, api.siteID)
	if err != nil {
		api.fail(w, "pages.revert", err)
		return
	}
	location, _, _ := strings.Cut(preview, "?")
	redirect(w, r, location+"?"+api.editOff)
}

func (api *AdminAPI) handlePagePreview(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	target, err := api.pages.Preview(r.Context(), id, r.PathValue("language"), api.siteID)
	if err != nil {
		api.fail(w, "pages.preview", err)
		return
	}
	redirect(w, r, target)
}

func (api *AdminAPI) handlePageDescendants(w http.ResponseWriter, r *http.Request) {
	actor, ok := api.actor(w, r)
	if !ok {
		return
	}
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	if _, err := api.pages.Detail(r.Context(), actor, id); err != nil {
		api.fail(w, "pages.descendants", err)
		return
	}
	children, err := api.pages.Children(r.Context(), id)
	if err != nil {
		api.fail(w, "pages.descendants", err)
		return
	}
	if children == nil {
		children = []*pages.Page{}
	}
	writeJSON(w, http.StatusOK, children)
}

func (api *AdminAPI) handlePageDeleteConfirm(w http.ResponseWriter, r *http.Request) {
	actor, ok := api.actor(w, r)
	if !ok {
		return
	}
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	detail, err := api.pages.Detail(r.Context(), actor, id)
	if err != nil {
		api.fail(w, "pages.delete", err)
		return
	}
	if !detail.Capabilities.Has(permissions.CanDelete) {
		writeError(w, permissions.Error{Permission: "page:" + permissions.CanDelete.String()})
		return
	}
	descendants, err := api.pages.Descendants(r.Context(), id)
	if err != nil {
		api.fail(w, "pages.delete", err)
		return
	}
	writeJSON(w, http.StatusOK, deleteConfirmation{Page: detail.Page, Descendants: descendants})
}

func (api *AdminAPI) handlePageDelete(w http.ResponseWriter, r *http.Request) {
	actor, ok := api.actor(w, r)
	if !ok {
		return
	}
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	if err := api.pages.Delete(r.Context(), actor, id); err != nil {
		api.fail(w, "pages.delete", err)
		return
	}
	redirect(w, r, nextURL(r, api.changelistURL()))
}

func (api *AdminAPI) handleTranslationDeleteConfirm(w http.ResponseWriter, r *http.Request) {
	actor, ok := api.actor(w, r)
	if !ok {
		return
	}
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	language := strings.TrimSpace(r.URL.Query().Get("language"))
	if language == "" {
		writeBadRequest(w, "language is required")
		return
	}
	detail, err := api.pages.Detail(r.Context(), actor, id)
	if err != nil {
		api.fail(w, "pages.delete_translation", err)
		return
	}
	if !detail.Capabilities.Has(permissions.CanDelete) {
		writeError(w, permissions.Error{Permission: "page:" + permissions.CanDelete.String()})
		return
	}
	title, err := api.pages.GetTitle(r.Context(), id, language)
	if err != nil {
		api.fail(w, "pages.delete_translation", err)
		return
	}
	writeJSON(w, http.StatusOK, title)
}

func (api *AdminAPI) handleTranslationDelete(w http.ResponseWriter, r *http.Request) {
	actor, ok := api.actor(w, r)
	if !ok {
		return
	}
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	language := strings.TrimSpace(r.URL.Query().Get("language"))
	if language == "" {
		writeBadRequest(w, "language is required")
		return
	}
	if err := api.pages.DeleteTranslation(r.Context(), actor, id, language); err != nil {
		api.fail(w, "pages.delete_translation", err)
		return
	}
	redirect(w, r, nextURL(r, api.changelistURL()))
}

func (api *AdminAPI) handleTitleGet(w http.ResponseWriter, r *http.Request) {
	actor, ok := api.actor(w, r)
	if !ok {
		return
	}
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	caps, err := api.pages.Capabilities(r.Context(), actor, id)
	if err != nil {
		api.fail(w, "pages.edit_title", err)
		return
	}
	if !caps.Has(permissions.CanChange) {
		writeError(w, permissions.Error{Permission: "page:" + permissions.CanChange.String()})
		return
	}
	title, err := api.pages.GetTitle(r.Context(), id, r.PathValue("language"))
	if err != nil {
		api.fail(w, "pages.edit_title", err)
		return
	}
	writeJSON(w, http.StatusOK, title)
}

func (api *AdminAPI) handleTitleEdit(w http.ResponseWriter, r *http.Request) {
	actor, ok := api.actor(w, r)
	if !ok {
		return
	}
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	var fields pages.TitleFields
	if err := decodeBody(r, &fields); err != nil {
		writeBadRequest(w, err.Error())
		return
	}
	title, err := api.pages.EditTitleFields(r.Context(), actor, id, r.PathValue("language"), fields)
	if err != nil {
		api.fail(w, "pages.edit_title", err)
		return
	}
	writeJSON(w, http.StatusOK, title)
}

func (api *AdminAPI) handlePagePermissions(w http.ResponseWriter, r *http.Request) {
	actor, ok := api.actor(w, r)
	if !ok {
		return
	}
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	grants, err := api.pages.Grants(r.Context(), actor, id)
	if err != nil {
		api.fail(w, "pages.permissions", err)
		return
	}
	writeJSON(w, http.StatusOK, grants)
}

func (api *AdminAPI) handlePageModeration(w http.ResponseWriter, r *http.Request) {
	actor, ok := api.actor(w, r)
	if !ok {
		return
	}
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	detail, err := api.pages.Detail(r.Context(), actor, id)
	if err != nil {
		api.fail(w, "pages.moderation", err)
		return
	}
	out := moderationResponse{PageID: detail.Page.ID, Languages: make([]languageState, 0, len(detail.Titles))}
	for _, title := range detail.Titles {
		published, err := api.pages.IsPublished(r.Context(), id, title.Language)
		if err != nil {
			api.fail(w, "pages.moderation", err)
			return
		}
		out.Languages = append(out.Languages, languageState{
			Language:  title.Language,
			Title:     title.Title,
			Published: published,
			Dirty:     title.Dirty(),
		})
	}
	writeJSON(w, http.StatusOK, out)
}

func (api *AdminAPI) handleCopyLanguage(w http.ResponseWriter, r *http.Request) {
	actor, ok := api.actor(w, r)
	if !ok {
		return
	}
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	var payload copyLanguagePayload
	if err := decodeBody(r, &payload); err != nil {
		writeBadRequest(w, err.Error())
		return
	}
	copied, err := api.placeholders.CopyLanguage(r.Context(), actor, placeholders.CopyLanguageRequest{
		PageID:         id,
		SourceLanguage: payload.SourceLanguage,
		TargetLanguage: payload.TargetLanguage,
	})
	if err != nil {
		api.fail(w, "pages.copy_language", err)
		return
	}
	if copied == nil {
		copied = []*placeholders.Plugin{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"copied": len(copied), "plugins": copied})
}
