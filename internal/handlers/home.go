package handlers

import (
	"net/http"

	"github.com/alextreichler/luxestore/internal/config"
	"github.com/alextreichler/luxestore/internal/media"
	"github.com/alextreichler/luxestore/internal/models"
	"github.com/alextreichler/luxestore/internal/order"
	"github.com/alextreichler/luxestore/internal/store"
)

// CatalogHandler serves the public storefront data.
type CatalogHandler struct {
	Products store.ProductStore
	Settings store.SettingsStore
	Config   *config.Manager
}

type productCard struct {
	ID         string `json:"id"`
	Name       string `json:"name"`
	Price      string `json:"price"`
	PriceLabel string `json:"price_label"`
	Stock      int    `json:"stock"`
	InStock    bool   `json:"in_stock"`
	Image      string `json:"image,omitempty"`
}

type productDetail struct {
	models.Product
	PriceLabel   string   `json:"price_label"`
	InStock      bool     `json:"in_stock"`
	DetailImages []string `json:"detail_images"`
	FullImages   []string `json:"full_images"`
}

func transformer(cfg *config.Manager) *media.Transformer {
	return media.NewTransformer(cfg.Current().Media.Hosts...)
}

func (h *CatalogHandler) ListProducts(w http.ResponseWriter, r *http.Request) {
	products, err := h.Products.ListProducts(r.Context())
	if err != nil {
		respondErr(w, r, err)
		return
	}

	t := transformer(h.Config)
	cards := make([]productCard, 0, len(products))
	for _, p := range products {
		cards = append(cards, productCard{
			ID:         p.ID,
			Name:       p.Name,
			Price:      p.Price.String(),
			PriceLabel: order.FormatRs(p.Price),
			Stock:      p.Stock,
			InStock:    p.InStock(),
			Image:      t.CardImage(p.MainImage()),
		})
	}
	respondJSON(w, http.StatusOK, cards)
}

func (h *CatalogHandler) GetProduct(w http.ResponseWriter, r *http.Request) {
	p, err := h.Products.GetProduct(r.Context(), r.PathValue("id"))
	if err != nil {
		respondErr(w, r, err)
		return
	}

	t := transformer(h.Config)
	detail := productDetail{
		Product:      *p,
		PriceLabel:   order.FormatPKR(p.Price),
		InStock:      p.InStock(),
		DetailImages: make([]string, len(p.Images)),
		FullImages:   make([]string, len(p.Images)),
	}
	for i, img := range p.Images {
		detail.DetailImages[i] = t.DetailImage(img)
		detail.FullImages[i] = t.FullImage(img)
	}
	respondJSON(w, http.StatusOK, detail)
}

// SiteSettings is what every page needs for its header, footer and banner.
// The discount poster is only included while it is enabled.
func (h *CatalogHandler) SiteSettings(w http.ResponseWriter, r *http.Request) {
	s, err := h.Settings.GetSettings(r.Context())
	if err != nil {
		respondErr(w, r, err)
		return
	}

	out := struct {
		SiteName       string                 `json:"site_name"`
		LogoURL        string                 `json:"logo_url"`
		FaviconURL     string                 `json:"favicon_url"`
		FooterContent  string                 `json:"footer_content"`
		DiscountPoster *models.DiscountPoster `json:"discount_poster,omitempty"`
		CanOrder       bool                   `json:"can_order"`
	}{
		SiteName:      s.SiteName,
		LogoURL:       s.LogoURL,
		FaviconURL:    s.FaviconURL,
		FooterContent: s.FooterContent,
		CanOrder:      s.WhatsAppNumber != "",
	}
	if s.DiscountPoster.Enabled {
		out.DiscountPoster = &s.DiscountPoster
	}
	respondJSON(w, http.StatusOK, out)
}

// PreviewHandler serves images that are still on their way to the media host.
type PreviewHandler struct {
	Previews media.PreviewStore
}

func (h *PreviewHandler) Serve(w http.ResponseWriter, r *http.Request) {
	p, err := h.Previews.Open(r.Context(), r.PathValue("id"))
	if err != nil {
		respondErr(w, r, err)
		return
	}
	w.Header().Set("Content-Type", p.ContentType)
	w.Header().Set("Cache-Control", "private, no-store")
	w.Write(p.Data)
}
