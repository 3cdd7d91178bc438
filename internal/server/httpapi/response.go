// Package httpapi exposes the server's HTTP surface: authentication,
// the document sync API, and presigned object URLs.
package httpapi

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/dkarpov/papersync/internal/common"
)

type errorBody struct {
	Error string `json:"error"`
}

func writeJSON(w http.ResponseWriter, statusCode int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	if data != nil {
		_ = json.NewEncoder(w).Encode(data)
	}
}

func writeErrorStatus(w http.ResponseWriter, statusCode int, msg string) {
	writeJSON(w, statusCode, errorBody{Error: msg})
}

// writeError maps sentinel errors onto the API's status codes.
func writeError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, common.ErrValidation), errors.Is(err, common.ErrInvalidIdentifier),
		errors.Is(err, common.ErrDuplicateID):
		writeErrorStatus(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, common.ErrUnauthorized), errors.Is(err, common.ErrInvalidToken):
		writeErrorStatus(w, http.StatusUnauthorized, err.Error())
	case errors.Is(err, common.ErrNotFound):
		writeErrorStatus(w, http.StatusNotFound, err.Error())
	case errors.Is(err, common.ErrVersionConflict):
		writeErrorStatus(w, http.StatusConflict, err.Error())
	case errors.Is(err, common.ErrTombstoned):
		writeErrorStatus(w, http.StatusGone, err.Error())
	default:
		writeErrorStatus(w, http.StatusInternalServerError, "internal error")
	}
}
