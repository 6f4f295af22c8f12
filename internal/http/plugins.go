package http

import (
	"mime"
	"net/http"
	"strings"

	"github.com/goliatone/go-cms-admin/internal/permissions"
	"github.com/goliatone/go-cms-admin/internal/placeholders"
	"github.com/google/uuid"
)

type addPluginPayload struct {
	PlaceholderID uuid.UUID      `json:"placeholder_id" schema:"placeholder_id"`
	PluginType    string         `json:"plugin_type" schema:"plugin_type"`
	Language      string         `json:"plugin_language" schema:"plugin_language"`
	ParentID      *uuid.UUID     `json:"plugin_parent,omitempty" schema:"plugin_parent"`
	Data          map[string]any `json:"data,omitempty" schema:"-"`
}

type addPluginResponse struct {
	URL       string               `json:"url"`
	DeleteURL string               `json:"delete"`
	Plugin    *placeholders.Plugin `json:"plugin"`
}

type editPluginPayload struct {
	Data map[string]any `json:"data" schema:"-"`
}

type movePluginPayload struct {
	PluginID      uuid.UUID  `json:"plugin_id" schema:"plugin_id"`
	PlaceholderID uuid.UUID  `json:"placeholder_id" schema:"placeholder_id"`
	ParentID      *uuid.UUID `json:"plugin_parent,omitempty" schema:"plugin_parent"`
	Language      string     `json:"plugin_language" schema:"plugin_language"`
	Position      *int       `json:"plugin_order,omitempty" schema:"plugin_order"`
}

type copyPluginsPayload struct {
	SourcePlaceholderID uuid.UUID  `json:"source_placeholder_id" schema:"source_placeholder_id"`
	SourcePluginID      *uuid.UUID `json:"source_plugin_id,omitempty" schema:"source_plugin_id"`
	SourceLanguage      string     `json:"source_language" schema:"source_language"`
	TargetPlaceholderID uuid.UUID  `json:"target_placeholder_id" schema:"target_placeholder_id"`
	TargetLanguage      string     `json:"target_language" schema:"target_language"`
}

type clearPlaceholderPayload struct {
	Language string `json:"language" schema:"language"`
}

func (api *AdminAPI) registerPluginRoutes(mux *http.ServeMux, base string) {
	plugins := joinPath(base, "plugins")
	mux.HandleFunc("POST "+plugins+"/add", api.handlePluginAdd)
	mux.HandleFunc("POST "+plugins+"/move", api.handlePluginMove)
	mux.HandleFunc("POST "+plugins+"/copy", api.handlePluginCopy)
	mux.HandleFunc("GET "+plugins+"/{id}/edit", api.handlePluginGet)
	mux.HandleFunc("POST "+plugins+"/{id}/edit", api.handlePluginEdit)
	mux.HandleFunc("GET "+plugins+"/edit-plugin/{id}/{$}", api.handlePluginGet)
	mux.HandleFunc("POST "+plugins+"/edit-plugin/{id}/{$}", api.handlePluginEdit)
	mux.HandleFunc("GET "+plugins+"/{id}/delete", api.handlePluginDeleteConfirm)
	mux.HandleFunc("POST "+plugins+"/{id}/delete", api.handlePluginDelete)

	placeholderRoot := joinPath(base, "placeholders")
	mux.HandleFunc("POST "+placeholderRoot+"/{id}/clear", api.handlePlaceholderClear)
}

func (api *AdminAPI) handlePluginAdd(w http.ResponseWriter, r *http.Request) {
	actor, ok := api.actor(w, r)
	if !ok {
		return
	}
	var payload addPluginPayload
	if err := decodeBody(r, &payload); err != nil {
		writeBadRequest(w, err.Error())
		return
	}
	if payload.PlaceholderID == uuid.Nil || strings.TrimSpace(payload.PluginType) == "" {
		writeBadRequest(w, "placeholder_id and plugin_type are required")
		return
	}
	if payload.Data == nil {
		payload.Data = extraFormValues(r, "placeholder_id", "plugin_type", "plugin_language", "plugin_parent")
	}
	plugin, err := api.placeholders.AddPlugin(r.Context(), actor, placeholders.AddPluginRequest{
		PlaceholderID: payload.PlaceholderID,
		PluginType:    payload.PluginType,
		Language:      payload.Language,
		ParentID:      nilIfZero(payload.ParentID),
		Data:          payload.Data,
	})
	if err != nil {
		api.fail(w, "plugins.add", err)
		return
	}
	writeJSON(w, http.StatusOK, addPluginResponse{
		URL:       api.editPluginURL(plugin.ID),
		DeleteURL: joinPath(api.basePath, "plugins/"+plugin.ID.String()+"/delete"),
		Plugin:    plugin,
	})
}

func (api *AdminAPI) handlePluginGet(w http.ResponseWriter, r *http.Request) {
	actor, ok := api.actor(w, r)
	if !ok {
		return
	}
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	plugin, err := api.placeholders.ViewPlugin(r.Context(), actor, id, permissions.ActionUpdate)
	if err != nil {
		api.fail(w, "plugins.get", err)
		return
	}
	writeJSON(w, http.StatusOK, plugin)
}

func (api *AdminAPI) handlePluginEdit(w http.ResponseWriter, r *http.Request) {
	actor, ok := api.actor(w, r)
	if !ok {
		return
	}
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	var payload editPluginPayload
	if err := decodeBody(r, &payload); err != nil {
		writeBadRequest(w, err.Error())
		return
	}
	if payload.Data == nil {
		payload.Data = extraFormValues(r)
	}
	plugin, err := api.placeholders.EditPlugin(r.Context(), actor, placeholders.EditPluginRequest{PluginID: id, Data: payload.Data})
	if err != nil {
		api.fail(w, "plugins.edit", err)
		return
	}
	writeJSON(w, http.StatusOK, plugin)
}

func (api *AdminAPI) handlePluginMove(w http.ResponseWriter, r *http.Request) {
	actor, ok := api.actor(w, r)
	if !ok {
		return
	}
	var payload movePluginPayload
	if err := decodeBody(r, &payload); err != nil {
		writeBadRequest(w, err.Error())
		return
	}
	if payload.PluginID == uuid.Nil || payload.PlaceholderID == uuid.Nil {
		writeBadRequest(w, "plugin_id and placeholder_id are required")
		return
	}
	result, err := api.placeholders.MovePlugin(r.Context(), actor, placeholders.MovePluginRequest{
		PluginID:      payload.PluginID,
		PlaceholderID: payload.PlaceholderID,
		ParentID:      nilIfZero(payload.ParentID),
		Language:      payload.Language,
		Position:      payload.Position,
	})
	if err != nil {
		api.fail(w, "plugins.move", err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func (api *AdminAPI) handlePluginCopy(w http.ResponseWriter, r *http.Request) {
	actor, ok := api.actor(w, r)
	if !ok {
		return
	}
	var payload copyPluginsPayload
	if err := decodeBody(r, &payload); err != nil {
		writeBadRequest(w, err.Error())
		return
	}
	if payload.SourcePlaceholderID == uuid.Nil || payload.TargetPlaceholderID == uuid.Nil {
		writeBadRequest(w, "source_placeholder_id and target_placeholder_id are required")
		return
	}
	result, err := api.placeholders.CopyPlugins(r.Context(), actor, placeholders.CopyPluginsRequest{
		SourcePlaceholderID: payload.SourcePlaceholderID,
		SourcePluginID:      nilIfZero(payload.SourcePluginID),
		SourceLanguage:      payload.SourceLanguage,
		TargetPlaceholderID: payload.TargetPlaceholderID,
		TargetLanguage:      payload.TargetLanguage,
	})
	if err != nil {
		api.fail(w, "plugins.copy", err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func (api *AdminAPI) handlePluginDeleteConfirm(w http.ResponseWriter, r *http.Request) {
	actor, ok := api.actor(w, r)
	if !ok {
		return
	}
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	plugin, err := api.placeholders.ViewPlugin(r.Context(), actor, id, permissions.ActionDelete)
	if err != nil {
		api.fail(w, "plugins.delete", err)
		return
	}
	writeJSON(w, http.StatusOK, plugin)
}

func (api *AdminAPI) handlePluginDelete(w http.ResponseWriter, r *http.Request) {
	actor, ok := api.actor(w, r)
	if !ok {
		return
	}
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	if _, err := api.placeholders.DeletePlugin(r.Context(), actor, id); err != nil {
		api.fail(w, "plugins.delete", err)
		return
	}
	redirect(w, r, nextURL(r, api.changelistURL()))
}

func (api *AdminAPI) handlePlaceholderClear(w http.ResponseWriter, r *http.Request) {
	actor, ok := api.actor(w, r)
	if !ok {
		return
	}
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	var payload clearPlaceholderPayload
	if err := decodeBody(r, &payload); err != nil {
		writeBadRequest(w, err.Error())
		return
	}
	if payload.Language == "" {
		payload.Language = r.URL.Query().Get("language")
	}
	if _, err := api.placeholders.ClearPlaceholder(r.Context(), actor, id, payload.Language); err != nil {
		api.fail(w, "placeholders.clear", err)
		return
	}
	redirect(w, r, nextURL(r, api.changelistURL()))
}

// extraFormValues collects form fields other than skip as plugin data.
func extraFormValues(r *http.Request, skip ...string) map[string]any {
	mediaType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if mediaType == "application/json" || r.PostForm == nil {
		return nil
	}
	data := map[string]any{}
	for key, values := range r.PostForm {
		if len(values) == 0 || containsString(skip, key) {
			continue
		}
		data[key] = values[len(values)-1]
	}
	return data
}

func containsString(values []string, value string) bool {
	for _, candidate := range values {
		if candidate == value {
			return true
		}
	}
	return false
}
