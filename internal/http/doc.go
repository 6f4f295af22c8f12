// Package http provides the CMS page admin actions over net/http.
//
// Routes mount under the admin base path (default /admin/cms):
//   - Page tree and forms: /pages, /pages/{id}, /pages/{id}/advanced,
//     /pages/{id}/template, /pages/{id}/navigation, /pages/{id}/dates,
//     /pages/{id}/move, /pages/{id}/edit-title/{language}
//   - Workflow: /pages/{id}/publish/{language}, /pages/{id}/unpublish/{language},
//     /pages/{id}/revert/{language}, /pages/{id}/preview/{language},
//     /pages/{id}/delete, /pages/{id}/delete-translation
//   - Page info: /pages/{id}/descendants, /pages/{id}/permissions,
//     /pages/{id}/moderation, /pages/{id}/copy-language
//   - Plugins: /plugins/add, /plugins/{id}/edit, /plugins/{id}/delete,
//     /plugins/move, /plugins/copy, /plugins/edit-plugin/{id}/
//   - Placeholders: /placeholders/{id}/clear
//
// Host applications register the handlers on their own mux.
package http
