package httpapi

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/dkarpov/papersync/internal/identity"
	"github.com/dkarpov/papersync/internal/server/models"
	"github.com/dkarpov/papersync/internal/server/services"
	"github.com/gorilla/mux"
)

// DocumentHandler serves the sync API: optimistic-concurrency writes,
// tombstoning deletes, and incremental listing.
type DocumentHandler struct {
	documents *services.DocumentService
}

func NewDocumentHandler(documents *services.DocumentService) *DocumentHandler {
	return &DocumentHandler{documents: documents}
}

type putDocumentRequest struct {
	Document    models.Document     `json:"document"`
	Attachments []models.Attachment `json:"attachments"`
}

type putDocumentResponse struct {
	Version int64 `json:"version"`
}

func (h *DocumentHandler) Put(w http.ResponseWriter, r *http.Request) {
	syncID, err := identity.ValidateOrFail(mux.Vars(r)["syncId"])
	if err != nil {
		writeError(w, err)
		return
	}

	var req putDocumentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeErrorStatus(w, http.StatusBadRequest, "invalid request payload")
		return
	}
	// the path, not the body, names the document
	req.Document.SyncID = syncID

	version, err := h.documents.Put(r.Context(), GetUserID(r), req.Document, req.Attachments)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, putDocumentResponse{Version: version})
}

func (h *DocumentHandler) Get(w http.ResponseWriter, r *http.Request) {
	syncID, err := identity.ValidateOrFail(mux.Vars(r)["syncId"])
	if err != nil {
		writeError(w, err)
		return
	}

	doc, err := h.documents.Get(r.Context(), GetUserID(r), syncID)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, doc)
}

func (h *DocumentHandler) Delete(w http.ResponseWriter, r *http.Request) {
	syncID, err := identity.ValidateOrFail(mux.Vars(r)["syncId"])
	if err != nil {
		writeError(w, err)
		return
	}

	version, _ := strconv.ParseInt(r.URL.Query().Get("version"), 10, 64)

	if err := h.documents.Delete(r.Context(), GetUserID(r), syncID, version); err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, nil)
}

func (h *DocumentHandler) List(w http.ResponseWriter, r *http.Request) {
	var since int64
	if raw := r.URL.Query().Get("since"); raw != "" {
		parsed, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			writeErrorStatus(w, http.StatusBadRequest, "invalid since parameter")
			return
		}
		since = parsed
	}

	docs, err := h.documents.List(r.Context(), GetUserID(r), since)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, docs)
}
