package handlers

import (
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/alextreichler/luxestore/internal/media"
)

// CreateUploadSession opens an image list for a product form. Passing a
// product id seeds it with the images that product already has.
func (h *AdminHandler) CreateUploadSession(w http.ResponseWriter, r *http.Request) {
	var existing []string
	if id := r.URL.Query().Get("product_id"); id != "" {
		p, err := h.Store.GetProduct(r.Context(), id)
		if err != nil {
			respondErr(w, r, err)
			return
		}
		existing = p.Images
	}
	s := h.Uploads.Create(existing)
	respondJSON(w, http.StatusCreated, s.View())
}

func (h *AdminHandler) session(w http.ResponseWriter, r *http.Request) (*media.Session, bool) {
	s, ok := h.Uploads.Get(r.PathValue("id"))
	if !ok {
		respondError(w, http.StatusNotFound, "Upload session not found")
		return nil, false
	}
	return s, true
}

func (h *AdminHandler) GetUploadSession(w http.ResponseWriter, r *http.Request) {
	s, ok := h.session(w, r)
	if !ok {
		return
	}
	respondJSON(w, http.StatusOK, s.View())
}

// AddUploadFiles accepts the multipart "files" field. Every file gets a preview
// URL right away; compression and upload continue in the background.
func (h *AdminHandler) AddUploadFiles(w http.ResponseWriter, r *http.Request) {
	s, ok := h.session(w, r)
	if !ok {
		return
	}

	limit := h.Config.Current().Media.MaxUploadSize
	r.Body = http.MaxBytesReader(w, r.Body, limit)
	if err := r.ParseMultipartForm(32 << 20); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			respondError(w, http.StatusRequestEntityTooLarge, fmt.Sprintf("Upload too large. Max %d MB.", limit>>20))
			return
		}
		respondError(w, http.StatusBadRequest, "Invalid multipart form.")
		return
	}
	defer r.MultipartForm.RemoveAll()

	headers := r.MultipartForm.File["files"]
	if len(headers) == 0 {
		respondError(w, http.StatusBadRequest, "No files selected.")
		return
	}

	files := make([]media.File, 0, len(headers))
	for _, fh := range headers {
		f, err := fh.Open()
		if err != nil {
			respondErr(w, r, err)
			return
		}
		data, err := io.ReadAll(f)
		f.Close()
		if err != nil {
			respondErr(w, r, err)
			return
		}
		files = append(files, media.File{Name: fh.Filename, Data: data})
	}

	created, err := s.Accept(r.Context(), files)
	if err != nil {
		respondErr(w, r, err)
		return
	}
	respondJSON(w, http.StatusAccepted, created)
}

func (h *AdminHandler) RemoveUploadItem(w http.ResponseWriter, r *http.Request) {
	s, ok := h.session(w, r)
	if !ok {
		return
	}
	if err := s.Remove(r.PathValue("item")); err != nil {
		respondErr(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// DiscardUploadSession is called when a product form is closed without saving.
func (h *AdminHandler) DiscardUploadSession(w http.ResponseWriter, r *http.Request) {
	if _, ok := h.session(w, r); !ok {
		return
	}
	h.Uploads.Discard(r.PathValue("id"))
	w.WriteHeader(http.StatusNoContent)
}
