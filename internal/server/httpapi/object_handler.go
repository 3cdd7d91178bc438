package httpapi

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/dkarpov/papersync/internal/common"
	"github.com/dkarpov/papersync/internal/server/services"
	"github.com/go-playground/validator/v10"
)

// ObjectHandler hands out presigned URLs for attachment content. Keys are
// owner-scoped; reaching outside the caller's namespace is forbidden.
type ObjectHandler struct {
	objects  *services.ObjectService
	validate *validator.Validate
}

func NewObjectHandler(objects *services.ObjectService) *ObjectHandler {
	return &ObjectHandler{objects: objects, validate: validator.New()}
}

type objectKeyRequest struct {
	Key string `json:"key" validate:"required"`
}

type presignResponse struct {
	URL string `json:"url"`
}

func (h *ObjectHandler) key(w http.ResponseWriter, r *http.Request) (string, bool) {
	var req objectKeyRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeErrorStatus(w, http.StatusBadRequest, "invalid request payload")
		return "", false
	}
	if err := h.validate.Struct(req); err != nil {
		writeErrorStatus(w, http.StatusBadRequest, err.Error())
		return "", false
	}
	if err := h.objects.ValidateKey(GetUserID(r), req.Key); err != nil {
		if errors.Is(err, common.ErrUnauthorized) {
			writeErrorStatus(w, http.StatusForbidden, err.Error())
			return "", false
		}
		writeError(w, err)
		return "", false
	}
	return req.Key, true
}

func (h *ObjectHandler) PresignPut(w http.ResponseWriter, r *http.Request) {
	key, ok := h.key(w, r)
	if !ok {
		return
	}

	url, err := h.objects.GetPresignedPutURL(r.Context(), key)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, presignResponse{URL: url})
}

func (h *ObjectHandler) PresignGet(w http.ResponseWriter, r *http.Request) {
	key, ok := h.key(w, r)
	if !ok {
		return
	}

	url, err := h.objects.GetPresignedGetURL(r.Context(), key)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, presignResponse{URL: url})
}

func (h *ObjectHandler) Delete(w http.ResponseWriter, r *http.Request) {
	key, ok := h.key(w, r)
	if !ok {
		return
	}

	if err := h.objects.DeleteObject(r.Context(), key); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, nil)
}
