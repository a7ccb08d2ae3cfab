package handlers

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/alextreichler/luxestore/internal/media"
	"github.com/alextreichler/luxestore/internal/models"
	"github.com/alextreichler/luxestore/internal/order"
	"github.com/alextreichler/luxestore/internal/store"
)

func respondJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if v == nil {
		return
	}
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("Failed to write response", "error", err)
	}
}

type errorBody struct {
	Error string `json:"error"`
}

func respondError(w http.ResponseWriter, status int, msg string) {
	respondJSON(w, status, errorBody{Error: msg})
}

// respondErr maps domain errors onto status codes. Anything unexpected is
// logged and hidden behind a 500.
func respondErr(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, store.ErrNotFound),
		errors.Is(err, media.ErrItemNotFound),
		errors.Is(err, media.ErrPreviewNotFound):
		respondError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, store.ErrUserExists):
		respondError(w, http.StatusConflict, err.Error())
	case errors.Is(err, models.ErrInvalidProduct),
		errors.Is(err, order.ErrInvalidOrder):
		respondError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, order.ErrOutOfStock):
		respondError(w, http.StatusConflict, err.Error())
	case errors.Is(err, order.ErrNoRecipient):
		respondError(w, http.StatusServiceUnavailable, err.Error())
	case errors.Is(err, media.ErrUploadsPending), errors.Is(err, media.ErrSessionSealed):
		respondError(w, http.StatusConflict, err.Error())
	case errors.Is(err, media.ErrSessionClosed):
		respondError(w, http.StatusGone, err.Error())
	default:
		slog.Error("Request failed", "method", r.Method, "path", r.URL.Path, "error", err)
		respondError(w, http.StatusInternalServerError, "Internal Server Error")
	}
}

func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, 1<<20)
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		respondError(w, http.StatusBadRequest, "Invalid request body: "+err.Error())
		return false
	}
	return true
}
