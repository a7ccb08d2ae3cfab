package handlers

import (
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/alextreichler/luxestore/internal/config"
	"github.com/alextreichler/luxestore/internal/models"
	"github.com/alextreichler/luxestore/internal/order"
	"github.com/alextreichler/luxestore/internal/store"
	"github.com/shopspring/decimal"
)

type OrderHandler struct {
	Products store.ProductStore
	Settings store.SettingsStore
	Config   *config.Manager
	Checkout *order.Checkout
}

type checkoutInfo struct {
	ProductID      string                 `json:"product_id"`
	Name           string                 `json:"name"`
	Image          string                 `json:"image,omitempty"`
	PriceLabel     string                 `json:"price_label"`
	Quantity       int                    `json:"quantity"`
	MaxQuantity    int                    `json:"max_quantity"`
	TotalLabel     string                 `json:"total_label"`
	PaymentMethods []models.PaymentMethod `json:"payment_methods"`
}

// CheckoutInfo returns what the order form shows for a product. The requested
// quantity is clamped to the available stock.
func (h *OrderHandler) CheckoutInfo(w http.ResponseWriter, r *http.Request) {
	p, err := h.Products.GetProduct(r.Context(), r.PathValue("id"))
	if err != nil {
		respondErr(w, r, err)
		return
	}
	if !p.InStock() {
		respondErr(w, r, order.ErrOutOfStock)
		return
	}
	settings, err := h.Settings.GetSettings(r.Context())
	if err != nil {
		respondErr(w, r, err)
		return
	}

	qty := 1
	if q := r.URL.Query().Get("qty"); q != "" {
		if n, err := strconv.Atoi(q); err == nil {
			qty = n
		}
	}
	qty = order.ClampQuantity(qty, p.Stock)

	respondJSON(w, http.StatusOK, checkoutInfo{
		ProductID:      p.ID,
		Name:           p.Name,
		Image:          transformer(h.Config).OrderPageImage(p.MainImage()),
		PriceLabel:     order.FormatPKR(p.Price),
		Quantity:       qty,
		MaxQuantity:    p.Stock,
		TotalLabel:     order.FormatPKR(p.Price.Mul(decimal.NewFromInt(int64(qty)))),
		PaymentMethods: settings.PaymentMethods,
	})
}

// PlaceOrder builds the order message and hands the buyer to WhatsApp.
// Browsers get a redirect, API clients the link itself.
func (h *OrderHandler) PlaceOrder(w http.ResponseWriter, r *http.Request) {
	var req models.OrderRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	req.ProductID = r.PathValue("id")

	p, err := h.Products.GetProduct(r.Context(), req.ProductID)
	if err != nil {
		respondErr(w, r, err)
		return
	}
	settings, err := h.Settings.GetSettings(r.Context())
	if err != nil {
		respondErr(w, r, err)
		return
	}

	placed, err := h.Checkout.Place(p, &settings, req)
	if err != nil {
		respondErr(w, r, err)
		return
	}

	user := CurrentUser(r)
	slog.Info("Order handed off", "order_id", placed.OrderID, "product_id", p.ID, "quantity", placed.Quantity, "user_id", user.ID)

	if strings.Contains(r.Header.Get("Accept"), "application/json") {
		respondJSON(w, http.StatusOK, placed)
		return
	}
	http.Redirect(w, r, placed.Link, http.StatusSeeOther)
}
