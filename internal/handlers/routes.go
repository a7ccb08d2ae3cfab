package handlers

import (
	"net/http"
)

// Router bundles the handlers that make up the HTTP surface.
type Router struct {
	Auth     *AuthHandler
	Catalog  *CatalogHandler
	Orders   *OrderHandler
	Admin    *AdminHandler
	Previews *PreviewHandler
	Limiter  *RateLimiter
}

// Handler registers every route and attaches the signed-in user to each request.
// CSRF protection and request logging wrap this from the outside.
func (rt *Router) Handler() http.Handler {
	mux := http.NewServeMux()

	// Public
	mux.HandleFunc("GET /api/products", rt.Catalog.ListProducts)
	mux.HandleFunc("GET /api/products/{id}", rt.Catalog.GetProduct)
	mux.HandleFunc("GET /api/settings", rt.Catalog.SiteSettings)
	mux.HandleFunc("GET /previews/{id}", rt.Previews.Serve)

	mux.HandleFunc("POST /signup", rt.Auth.Signup)
	mux.HandleFunc("POST /login", rt.Auth.Login)
	mux.HandleFunc("POST /logout", rt.Auth.Logout)
	mux.HandleFunc("GET /api/me", rt.Auth.Me)

	mux.HandleFunc("GET /api/order/{id}", rt.Orders.CheckoutInfo)
	var place http.HandlerFunc = rt.Orders.PlaceOrder
	if rt.Limiter != nil {
		place = rt.Limiter.Middleware(place)
	}
	mux.HandleFunc("POST /api/order/{id}", RequireUser(place))

	// Admin
	a := rt.Admin
	mux.HandleFunc("GET /admin/api/dashboard", RequireAdmin(a.Dashboard))
	mux.HandleFunc("GET /admin/api/products", RequireAdmin(a.ListProducts))
	mux.HandleFunc("POST /admin/api/products", RequireAdmin(a.CreateProduct))
	mux.HandleFunc("PUT /admin/api/products/{id}", RequireAdmin(a.UpdateProduct))
	mux.HandleFunc("DELETE /admin/api/products/{id}", RequireAdmin(a.DeleteProduct))

	mux.HandleFunc("POST /admin/uploads", RequireAdmin(a.CreateUploadSession))
	mux.HandleFunc("GET /admin/uploads/{id}", RequireAdmin(a.GetUploadSession))
	mux.HandleFunc("DELETE /admin/uploads/{id}", RequireAdmin(a.DiscardUploadSession))
	mux.HandleFunc("POST /admin/uploads/{id}/files", RequireAdmin(a.AddUploadFiles))
	mux.HandleFunc("DELETE /admin/uploads/{id}/items/{item}", RequireAdmin(a.RemoveUploadItem))

	mux.HandleFunc("GET /admin/api/settings", RequireAdmin(a.GetSettings))
	mux.HandleFunc("PUT /admin/api/settings", RequireAdmin(a.UpdateSiteSettings))
	mux.HandleFunc("POST /admin/api/payment-methods", RequireAdmin(a.AddPaymentMethod))
	mux.HandleFunc("PUT /admin/api/payment-methods/{id}", RequireAdmin(a.UpdatePaymentMethod))
	mux.HandleFunc("DELETE /admin/api/payment-methods/{id}", RequireAdmin(a.DeletePaymentMethod))
	mux.HandleFunc("PUT /admin/api/discount-poster", RequireAdmin(a.UpdateDiscountPoster))

	mux.HandleFunc("GET /admin/api/media", RequireAdmin(a.GetMediaSettings))
	mux.HandleFunc("PUT /admin/api/media", RequireAdmin(a.UpdateMediaSettings))
	mux.HandleFunc("PUT /admin/api/store", RequireAdmin(a.UpdateStoreSettings))
	mux.HandleFunc("DELETE /admin/api/store", RequireAdmin(a.ClearStoreSettings))
	mux.HandleFunc("POST /admin/api/config/reload", RequireAdmin(a.ReloadConfig))

	return rt.Auth.LoadUser(mux)
}
