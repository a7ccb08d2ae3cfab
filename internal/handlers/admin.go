package handlers

import (
	"log/slog"
	"net/http"
	"strings"

	"github.com/alextreichler/luxestore/internal/config"
	"github.com/alextreichler/luxestore/internal/media"
	"github.com/alextreichler/luxestore/internal/models"
	"github.com/alextreichler/luxestore/internal/store"
	"github.com/shopspring/decimal"
)

type AdminHandler struct {
	Store   store.Store
	Uploads *media.Manager
	Config  *config.Manager
}

type productInput struct {
	Name        string          `json:"name"`
	Price       decimal.Decimal `json:"price"`
	Stock       int             `json:"stock"`
	Description string          `json:"description"`
	Images      []string        `json:"images"`
	// UploadSession takes the image list from an upload session instead of Images.
	UploadSession string `json:"upload_session,omitempty"`
}

func (h *AdminHandler) Dashboard(w http.ResponseWriter, r *http.Request) {
	stats, err := h.Store.GetDashboardStats(r.Context())
	if err != nil {
		respondErr(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, stats)
}

func (h *AdminHandler) ListProducts(w http.ResponseWriter, r *http.Request) {
	products, err := h.Store.ListProducts(r.Context())
	if err != nil {
		respondErr(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, products)
}

// resolveImages picks the image list for a product write. Saving while an
// upload is still running would silently drop that image, so it is refused.
// A returned session is sealed until finishSession runs.
func (h *AdminHandler) resolveImages(in productInput) ([]string, *media.Session, error) {
	if in.UploadSession == "" {
		return cleanImages(in.Images), nil, nil
	}
	s, ok := h.Uploads.Get(in.UploadSession)
	if !ok {
		return nil, nil, store.ErrNotFound
	}
	images, err := s.Take()
	if err != nil {
		return nil, nil, err
	}
	return images, s, nil
}

// finishSession discards a saved upload session, or reopens it so the form
// can be fixed and submitted again.
func (h *AdminHandler) finishSession(s *media.Session, saved bool) {
	if s == nil {
		return
	}
	if saved {
		h.Uploads.Discard(s.ID())
		return
	}
	s.Unseal()
}

func cleanImages(in []string) []string {
	out := make([]string, 0, len(in))
	for _, img := range in {
		img = strings.TrimSpace(img)
		if img == "" || media.IsLocal(img) {
			continue
		}
		out = append(out, img)
	}
	return out
}

func (h *AdminHandler) CreateProduct(w http.ResponseWriter, r *http.Request) {
	var in productInput
	if !decodeJSON(w, r, &in) {
		return
	}
	images, session, err := h.resolveImages(in)
	if err != nil {
		respondErr(w, r, err)
		return
	}
	saved := false
	defer func() { h.finishSession(session, saved) }()

	p := &models.Product{
		Name:        strings.TrimSpace(in.Name),
		Price:       in.Price,
		Stock:       in.Stock,
		Description: in.Description,
		Images:      images,
	}
	if err := p.Validate(); err != nil {
		respondErr(w, r, err)
		return
	}
	if err := h.Store.CreateProduct(r.Context(), p); err != nil {
		respondErr(w, r, err)
		return
	}
	saved = true

	slog.Info("Product created", "product_id", p.ID, "images", len(p.Images), "user_id", CurrentUser(r).ID)
	respondJSON(w, http.StatusCreated, p)
}

func (h *AdminHandler) UpdateProduct(w http.ResponseWriter, r *http.Request) {
	existing, err := h.Store.GetProduct(r.Context(), r.PathValue("id"))
	if err != nil {
		respondErr(w, r, err)
		return
	}

	var in productInput
	if !decodeJSON(w, r, &in) {
		return
	}
	images, session, err := h.resolveImages(in)
	if err != nil {
		respondErr(w, r, err)
		return
	}
	saved := false
	defer func() { h.finishSession(session, saved) }()

	existing.Name = strings.TrimSpace(in.Name)
	existing.Price = in.Price
	existing.Stock = in.Stock
	existing.Description = in.Description
	existing.Images = images
	if err := existing.Validate(); err != nil {
		respondErr(w, r, err)
		return
	}
	if err := h.Store.UpdateProduct(r.Context(), existing); err != nil {
		respondErr(w, r, err)
		return
	}
	saved = true

	slog.Info("Product updated", "product_id", existing.ID, "user_id", CurrentUser(r).ID)
	respondJSON(w, http.StatusOK, existing)
}

func (h *AdminHandler) DeleteProduct(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if err := h.Store.DeleteProduct(r.Context(), id); err != nil {
		respondErr(w, r, err)
		return
	}
	slog.Info("Product deleted", "product_id", id, "user_id", CurrentUser(r).ID)
	w.WriteHeader(http.StatusNoContent)
}
