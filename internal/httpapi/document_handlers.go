package httpapi

import (
	"errors"
	"io"
	"net/http"
	"strings"

	"docdesk.org/internal/content"
	"docdesk.org/internal/directory"
	"docdesk.org/internal/document"
)

type saveTextRequest struct {
	Text string `json:"text"`
}

func (a *API) handleDocumentsCollection(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		records, err := a.documents.ListByCategory(r.Context(), r.URL.Query().Get("category"))
		if err != nil {
			handleDocumentError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"items": records})
	case http.MethodPost:
		a.createDocument(w, r)
	default:
		methodNotAllowed(w, r, http.MethodGet, http.MethodPost)
	}
}

// createDocument takes a multipart form: metadata fields plus the content
// under "file". The authenticated actor becomes the author.
func (a *API) createDocument(w http.ResponseWriter, r *http.Request) {
	actor, ok := directory.ActorFromContext(r.Context())
	if !ok {
		writeError(w, r, http.StatusUnauthorized, "authentication required")
		return
	}

	if err := r.ParseMultipartForm(26 << 20); err != nil {
		writeError(w, r, http.StatusBadRequest, "multipart form required")
		return
	}
	file, header, err := r.FormFile("file")
	if err != nil {
		writeError(w, r, http.StatusBadRequest, "file is required")
		return
	}
	defer file.Close()
	data, err := io.ReadAll(file)
	if err != nil {
		writeError(w, r, http.StatusBadRequest, "unreadable file")
		return
	}

	in := document.CreateInput{
		Title:            r.FormValue("title"),
		Category:         r.FormValue("category"),
		Description:      r.FormValue("description"),
		Visibility:       r.FormValue("visibility"),
		Filename:         header.Filename,
		ConfirmDuplicate: r.FormValue("confirm") == "true",
	}
	doc, err := a.documents.Create(r.Context(), in, data, actor.ID)
	if err != nil {
		handleDocumentError(w, r, err)
		return
	}

	a.audit(r.Context(), "document.create", map[string]any{
		"locator":  doc.Locator,
		"title":    doc.Title,
		"category": doc.Category,
	})
	w.Header().Set("Location", "/v1/documents/"+doc.Locator)
	writeJSON(w, http.StatusCreated, doc)
}

func (a *API) handleDocumentSearch(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w, r, http.MethodGet)
		return
	}
	term := strings.TrimSpace(r.URL.Query().Get("q"))
	if term == "" {
		writeError(w, r, http.StatusBadRequest, "q query parameter is required")
		return
	}
	records, err := a.documents.Search(r.Context(), term)
	if err != nil {
		handleDocumentError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"items": records, "term": term})
}

func (a *API) handleDocumentResource(w http.ResponseWriter, r *http.Request) {
	path := strings.Trim(strings.TrimPrefix(r.URL.Path, "/v1/documents/"), "/")
	// Locators always carry a category segment.
	if !strings.Contains(path, "/") {
		writeError(w, r, http.StatusNotFound, "resource not found")
		return
	}

	if locator, ok := strings.CutSuffix(path, "/text"); ok {
		a.handleDocumentText(w, r, locator)
		return
	}
	if locator, ok := strings.CutSuffix(path, "/view"); ok {
		a.viewDocument(w, r, locator)
		return
	}

	switch r.Method {
	case http.MethodGet:
		a.downloadDocument(w, r, path)
	case http.MethodDelete:
		a.deleteDocument(w, r, path)
	default:
		methodNotAllowed(w, r, http.MethodGet, http.MethodDelete)
	}
}

func (a *API) downloadDocument(w http.ResponseWriter, r *http.Request, locator string) {
	doc, data, err := a.documents.FetchContent(r.Context(), locator)
	if err != nil {
		handleDocumentError(w, r, err)
		return
	}
	w.Header().Set("Content-Type", "application/octet-stream")
	w.Header().Set("Content-Disposition", `attachment; filename="`+doc.Title+`"`)
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(data)
}

func (a *API) deleteDocument(w http.ResponseWriter, r *http.Request, locator string) {
	if !a.requireAdmin(w, r) {
		return
	}
	if err := a.documents.Delete(r.Context(), locator); err != nil {
		handleDocumentError(w, r, err)
		return
	}
	a.audit(r.Context(), "document.delete", map[string]any{"locator": locator})
	writeJSON(w, http.StatusOK, map[string]any{"status": "deleted"})
}

func (a *API) handleDocumentText(w http.ResponseWriter, r *http.Request, locator string) {
	switch r.Method {
	case http.MethodGet:
		if _, err := a.documents.Find(r.Context(), locator); err != nil {
			handleDocumentError(w, r, err)
			return
		}
		text, err := a.content.FetchText(r.Context(), locator)
		if err != nil {
			handleContentError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"locator": locator, "text": text})
	case http.MethodPut:
		var req saveTextRequest
		if err := decodeJSON(w, r, &req); err != nil {
			writeError(w, r, http.StatusBadRequest, err.Error())
			return
		}
		if _, err := a.documents.Find(r.Context(), locator); err != nil {
			handleDocumentError(w, r, err)
			return
		}
		if err := a.content.SaveText(r.Context(), locator, req.Text); err != nil {
			handleContentError(w, r, err)
			return
		}
		a.audit(r.Context(), "document.text.save", map[string]any{"locator": locator})
		writeJSON(w, http.StatusOK, map[string]any{"status": "saved"})
	default:
		methodNotAllowed(w, r, http.MethodGet, http.MethodPut)
	}
}

func (a *API) viewDocument(w http.ResponseWriter, r *http.Request, locator string) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w, r, http.MethodGet)
		return
	}
	if _, err := a.documents.Find(r.Context(), locator); err != nil {
		handleDocumentError(w, r, err)
		return
	}
	data, contentType, err := a.content.ViewArtifact(r.Context(), locator)
	if err != nil {
		handleContentError(w, r, err)
		return
	}
	w.Header().Set("Content-Type", contentType)
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(data)
}

func (a *API) handleMonthlyReport(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w, r, http.MethodGet)
		return
	}
	histogram, err := a.documents.MonthlyHistogram(r.Context())
	if err != nil {
		handleDocumentError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"months": histogram})
}

func handleDocumentError(w http.ResponseWriter, r *http.Request, err error) {
	var dup *document.DuplicateTitleError
	switch {
	case errors.As(err, &dup):
		payload := map[string]any{"error": dup.Error(), "count": dup.Count}
		writeJSON(w, http.StatusConflict, payload)
	case errors.Is(err, document.ErrValidation),
		errors.Is(err, document.ErrInvalidCategory),
		errors.Is(err, document.ErrUnsupportedFormat):
		writeError(w, r, http.StatusBadRequest, err.Error())
	case errors.Is(err, document.ErrContentTooLarge):
		writeError(w, r, http.StatusRequestEntityTooLarge, err.Error())
	case errors.Is(err, document.ErrNotFound):
		writeError(w, r, http.StatusNotFound, err.Error())
	default:
		writeError(w, r, http.StatusInternalServerError, "internal error")
	}
}

func handleContentError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, content.ErrViewUnsupported):
		writeError(w, r, http.StatusBadRequest, err.Error())
	case errors.Is(err, document.ErrNotFound):
		writeError(w, r, http.StatusNotFound, err.Error())
	case errors.Is(err, document.ErrValidation):
		writeError(w, r, http.StatusBadRequest, err.Error())
	default:
		writeError(w, r, http.StatusInternalServerError, "internal error")
	}
}
