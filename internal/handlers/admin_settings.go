package handlers

import (
	"log/slog"
	"net/http"
	"strings"
	"sync"

	"github.com/alextreichler/luxestore/internal/config"
	"github.com/alextreichler/luxestore/internal/models"
	"github.com/google/uuid"
)

// settingsMu serializes read-modify-write cycles on the settings document
// within this process only; other server processes are not covered.
var settingsMu sync.Mutex

func (h *AdminHandler) GetSettings(w http.ResponseWriter, r *http.Request) {
	s, err := h.Store.GetSettings(r.Context())
	if err != nil {
		respondErr(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, s)
}

// updateSettings applies fn to the stored settings and saves the result.
func (h *AdminHandler) updateSettings(w http.ResponseWriter, r *http.Request, status int, fn func(s *models.SiteSettings) (any, bool)) {
	settingsMu.Lock()
	defer settingsMu.Unlock()

	s, err := h.Store.GetSettings(r.Context())
	if err != nil {
		respondErr(w, r, err)
		return
	}
	out, ok := fn(&s)
	if !ok {
		return
	}
	if err := h.Store.SaveSettings(r.Context(), s); err != nil {
		respondErr(w, r, err)
		return
	}
	if out == nil {
		w.WriteHeader(status)
		return
	}
	respondJSON(w, status, out)
}

type siteInput struct {
	SiteName       string `json:"site_name"`
	LogoURL        string `json:"logo_url"`
	FaviconURL     string `json:"favicon_url"`
	FooterContent  string `json:"footer_content"`
	WhatsAppNumber string `json:"whatsapp_number"`
}

func (h *AdminHandler) UpdateSiteSettings(w http.ResponseWriter, r *http.Request) {
	var in siteInput
	if !decodeJSON(w, r, &in) {
		return
	}
	if strings.TrimSpace(in.SiteName) == "" {
		respondError(w, http.StatusBadRequest, "Site name is required.")
		return
	}
	h.updateSettings(w, r, http.StatusOK, func(s *models.SiteSettings) (any, bool) {
		s.SiteName = strings.TrimSpace(in.SiteName)
		s.LogoURL = in.LogoURL
		s.FaviconURL = in.FaviconURL
		s.FooterContent = in.FooterContent
		s.WhatsAppNumber = strings.TrimSpace(in.WhatsAppNumber)
		slog.Info("Site settings updated", "user_id", CurrentUser(r).ID)
		return s, true
	})
}

type paymentInput struct {
	Name           string `json:"name"`
	ReceiverName   string `json:"receiver_name"`
	ReceiverNumber string `json:"receiver_number"`
}

func (in paymentInput) valid(w http.ResponseWriter) bool {
	if strings.TrimSpace(in.Name) == "" {
		respondError(w, http.StatusBadRequest, "Payment method name is required.")
		return false
	}
	return true
}

func (h *AdminHandler) AddPaymentMethod(w http.ResponseWriter, r *http.Request) {
	var in paymentInput
	if !decodeJSON(w, r, &in) || !in.valid(w) {
		return
	}
	h.updateSettings(w, r, http.StatusCreated, func(s *models.SiteSettings) (any, bool) {
		m := models.PaymentMethod{
			ID:             uuid.New().String(),
			Name:           strings.TrimSpace(in.Name),
			ReceiverName:   in.ReceiverName,
			ReceiverNumber: in.ReceiverNumber,
		}
		s.PaymentMethods = append(s.PaymentMethods, m)
		return m, true
	})
}

func (h *AdminHandler) UpdatePaymentMethod(w http.ResponseWriter, r *http.Request) {
	var in paymentInput
	if !decodeJSON(w, r, &in) || !in.valid(w) {
		return
	}
	id := r.PathValue("id")
	h.updateSettings(w, r, http.StatusOK, func(s *models.SiteSettings) (any, bool) {
		for i := range s.PaymentMethods {
			if s.PaymentMethods[i].ID == id {
				s.PaymentMethods[i] = models.PaymentMethod{
					ID:             id,
					Name:           strings.TrimSpace(in.Name),
					ReceiverName:   in.ReceiverName,
					ReceiverNumber: in.ReceiverNumber,
				}
				return s.PaymentMethods[i], true
			}
		}
		respondError(w, http.StatusNotFound, "Payment method not found")
		return nil, false
	})
}

func (h *AdminHandler) DeletePaymentMethod(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	h.updateSettings(w, r, http.StatusNoContent, func(s *models.SiteSettings) (any, bool) {
		kept := s.PaymentMethods[:0]
		for _, m := range s.PaymentMethods {
			if m.ID != id {
				kept = append(kept, m)
			}
		}
		if len(kept) == len(s.PaymentMethods) {
			respondError(w, http.StatusNotFound, "Payment method not found")
			return nil, false
		}
		s.PaymentMethods = kept
		return nil, true
	})
}

func (h *AdminHandler) UpdateDiscountPoster(w http.ResponseWriter, r *http.Request) {
	var in models.DiscountPoster
	if !decodeJSON(w, r, &in) {
		return
	}
	h.updateSettings(w, r, http.StatusOK, func(s *models.SiteSettings) (any, bool) {
		s.DiscountPoster = in
		return s.DiscountPoster, true
	})
}

type mediaView struct {
	CloudName     string   `json:"cloud_name"`
	UploadPreset  string   `json:"upload_preset"`
	Hosts         []string `json:"hosts"`
	Format        string   `json:"format"`
	MaxWidth      int      `json:"max_width"`
	MaxHeight     int      `json:"max_height"`
	Quality       float64  `json:"quality"`
	UploadWorkers int      `json:"upload_workers"`
}

func (h *AdminHandler) GetMediaSettings(w http.ResponseWriter, r *http.Request) {
	mc := h.Config.Current().Media
	respondJSON(w, http.StatusOK, mediaView{
		CloudName:     mc.CloudName,
		UploadPreset:  mc.UploadPreset,
		Hosts:         mc.Hosts,
		Format:        mc.Format,
		MaxWidth:      mc.MaxWidth,
		MaxHeight:     mc.MaxHeight,
		Quality:       mc.Quality,
		UploadWorkers: mc.UploadWorkers,
	})
}

// UpdateMediaSettings switches the media account. Uploads started afterwards
// use the new account; running ones finish against the old one.
func (h *AdminHandler) UpdateMediaSettings(w http.ResponseWriter, r *http.Request) {
	var in struct {
		CloudName string `json:"cloud_name"`
	}
	if !decodeJSON(w, r, &in) {
		return
	}
	if err := h.Config.SetCloudName(strings.TrimSpace(in.CloudName)); err != nil {
		respondErr(w, r, err)
		return
	}
	slog.Info("Media account changed", "cloud_name", h.Config.Current().Media.CloudName, "user_id", CurrentUser(r).ID)
	h.GetMediaSettings(w, r)
}

type restartView struct {
	RestartRequired bool `json:"restart_required"`
}

// UpdateStoreSettings stores a document store override. The open connection is
// kept, so the answer tells whether a restart is needed to use it.
func (h *AdminHandler) UpdateStoreSettings(w http.ResponseWriter, r *http.Request) {
	var in config.StoreConfig
	if !decodeJSON(w, r, &in) {
		return
	}
	if in.Driver != "sqlite" && in.Driver != "mongo" {
		respondError(w, http.StatusBadRequest, "Driver must be sqlite or mongo.")
		return
	}
	restart, err := h.Config.SetStoreOverride(&in)
	if err != nil {
		respondErr(w, r, err)
		return
	}
	slog.Warn("Store override saved", "driver", in.Driver, "restart_required", restart, "user_id", CurrentUser(r).ID)
	respondJSON(w, http.StatusOK, restartView{RestartRequired: restart})
}

func (h *AdminHandler) ClearStoreSettings(w http.ResponseWriter, r *http.Request) {
	restart, err := h.Config.SetStoreOverride(nil)
	if err != nil {
		respondErr(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, restartView{RestartRequired: restart})
}

func (h *AdminHandler) ReloadConfig(w http.ResponseWriter, r *http.Request) {
	restart, err := h.Config.Reload()
	if err != nil {
		respondErr(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, restartView{RestartRequired: restart})
}
