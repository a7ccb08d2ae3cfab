package handlers

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/alextreichler/luxestore/internal/media"
	"github.com/alextreichler/luxestore/internal/models"
	"github.com/alextreichler/luxestore/internal/store"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAdminProductCRUD(t *testing.T) {
	env := newTestEnv(t)
	admin := withCookies(env.signIn("owner", models.RoleAdmin))

	rec := env.do(http.MethodPost, "/admin/api/products", map[string]any{
		"name":   " Tote ",
		"price":  "4500",
		"stock":  2,
		"images": []string{"https://res.cloudinary.com/demo/image/upload/v1/a.webp", "/previews/stale", ""},
	}, admin)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	created := decodeBody[models.Product](t, rec)
	assert.Equal(t, "Tote", created.Name)
	assert.Equal(t, []string{"https://res.cloudinary.com/demo/image/upload/v1/a.webp"}, created.Images)

	rec = env.do(http.MethodPut, "/admin/api/products/"+created.ID, map[string]any{
		"name":  "Tote Bag",
		"price": "5000",
		"stock": 0,
	}, admin)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	updated := decodeBody[models.Product](t, rec)
	assert.Equal(t, "Tote Bag", updated.Name)
	assert.Empty(t, updated.Images)

	stats := decodeBody[store.DashboardStats](t, env.do(http.MethodGet, "/admin/api/dashboard", nil, admin))
	assert.Equal(t, 1, stats.TotalProducts)
	assert.Equal(t, 1, stats.OutOfStock)

	assert.Equal(t, http.StatusNoContent, env.do(http.MethodDelete, "/admin/api/products/"+created.ID, nil, admin).Code)
	assert.Equal(t, http.StatusNotFound, env.do(http.MethodGet, "/api/products/"+created.ID, nil).Code)
	assert.Equal(t, http.StatusNotFound, env.do(http.MethodDelete, "/admin/api/products/"+created.ID, nil, admin).Code)
}

func TestAdminProductValidation(t *testing.T) {
	env := newTestEnv(t)
	admin := withCookies(env.signIn("owner", models.RoleAdmin))

	tests := []struct {
		name string
		body map[string]any
	}{
		{"missing name", map[string]any{"name": "  ", "price": "10", "stock": 1}},
		{"negative stock", map[string]any{"name": "Tote", "price": "10", "stock": -1}},
		{"negative price", map[string]any{"name": "Tote", "price": "-1", "stock": 1}},
		{"unknown field", map[string]any{"name": "Tote", "price": "10", "colour": "red"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := env.do(http.MethodPost, "/admin/api/products", tt.body, admin)
			assert.Equal(t, http.StatusBadRequest, rec.Code, rec.Body.String())
		})
	}

	rec := env.do(http.MethodPut, "/admin/api/products/missing", map[string]any{"name": "x", "price": "1"}, admin)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func (e *testEnv) uploadFiles(sessionID string, cookies reqOpt, names ...string) *httptest.ResponseRecorder {
	e.t.Helper()
	body, contentType := multipartFiles(e.t, names...)
	req := httptest.NewRequest(http.MethodPost, "/admin/uploads/"+sessionID+"/files", body)
	req.Header.Set("Content-Type", contentType)
	cookies(req)
	rec := httptest.NewRecorder()
	e.handler.ServeHTTP(rec, req)
	return rec
}

func TestAdminProductFromUploadSession(t *testing.T) {
	env := newTestEnv(t)
	admin := withCookies(env.signIn("owner", models.RoleAdmin))

	rec := env.do(http.MethodPost, "/admin/uploads", nil, admin)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	session := decodeBody[media.View](t, rec)
	assert.Empty(t, session.Items)

	rec = env.uploadFiles(session.ID, admin, "front.png", "back.png")
	require.Equal(t, http.StatusAccepted, rec.Code, rec.Body.String())
	items := decodeBody[[]models.ImageItem](t, rec)
	require.Len(t, items, 2)
	for _, it := range items {
		assert.True(t, strings.HasPrefix(it.URL, "/previews/"))
		assert.True(t, it.IsLocal)
	}

	s, ok := env.uploads.Get(session.ID)
	require.True(t, ok)
	s.Wait()

	view := decodeBody[media.View](t, env.do(http.MethodGet, "/admin/uploads/"+session.ID, nil, admin))
	assert.False(t, view.Pending)
	assert.Empty(t, view.Failures)
	require.Len(t, view.Images, 2)

	rec = env.do(http.MethodPost, "/admin/api/products", map[string]any{
		"name":           "Tote",
		"price":          "4500",
		"stock":          1,
		"upload_session": session.ID,
	}, admin)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	p := decodeBody[models.Product](t, rec)
	assert.Equal(t, view.Images, p.Images)
	for _, img := range p.Images {
		assert.True(t, strings.HasPrefix(img, "https://res.cloudinary.com/"), img)
	}

	// saving consumes the session and every preview is gone
	assert.Equal(t, http.StatusNotFound, env.do(http.MethodGet, "/admin/uploads/"+session.ID, nil, admin).Code)
	assert.Zero(t, env.previews.Len())
}

func TestAdminProductRefusedWhileUploading(t *testing.T) {
	env := newTestEnv(t)
	env.uploader.gate = make(chan struct{})
	admin := withCookies(env.signIn("owner", models.RoleAdmin))

	existing := env.seedProduct("Tote", 1, "https://res.cloudinary.com/demo/image/upload/v1/old.webp")

	rec := env.do(http.MethodPost, "/admin/uploads?product_id="+existing.ID, nil, admin)
	require.Equal(t, http.StatusCreated, rec.Code)
	session := decodeBody[media.View](t, rec)
	assert.Equal(t, existing.Images, session.Images)

	require.Equal(t, http.StatusAccepted, env.uploadFiles(session.ID, admin, "new.png").Code)

	update := map[string]any{"name": "Tote", "price": "4500", "stock": 1, "upload_session": session.ID}
	rec = env.do(http.MethodPut, "/admin/api/products/"+existing.ID, update, admin)
	assert.Equal(t, http.StatusConflict, rec.Code)

	close(env.uploader.gate)
	s, ok := env.uploads.Get(session.ID)
	require.True(t, ok)
	s.Wait()

	rec = env.do(http.MethodPut, "/admin/api/products/"+existing.ID, update, admin)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	p := decodeBody[models.Product](t, rec)
	assert.Equal(t, []string{
		"https://res.cloudinary.com/demo/image/upload/v1/old.webp",
		"https://res.cloudinary.com/demo/image/upload/v1/new.png",
	}, p.Images)
}

func TestAdminProductRejectedSaveKeepsSessionOpen(t *testing.T) {
	env := newTestEnv(t)
	admin := withCookies(env.signIn("owner", models.RoleAdmin))

	session := decodeBody[media.View](t, env.do(http.MethodPost, "/admin/uploads", nil, admin))
	require.Equal(t, http.StatusAccepted, env.uploadFiles(session.ID, admin, "front.png").Code)
	s, ok := env.uploads.Get(session.ID)
	require.True(t, ok)
	s.Wait()

	// missing name fails validation after the images were taken
	rec := env.do(http.MethodPost, "/admin/api/products", map[string]any{
		"price":          "4500",
		"upload_session": session.ID,
	}, admin)
	require.Equal(t, http.StatusBadRequest, rec.Code)

	// the session accepts files again and the corrected form saves
	require.Equal(t, http.StatusAccepted, env.uploadFiles(session.ID, admin, "back.png").Code)
	s.Wait()
	rec = env.do(http.MethodPost, "/admin/api/products", map[string]any{
		"name":           "Tote",
		"price":          "4500",
		"upload_session": session.ID,
	}, admin)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	assert.Len(t, decodeBody[models.Product](t, rec).Images, 2)
}

func TestAdminUploadSessionItems(t *testing.T) {
	env := newTestEnv(t)
	admin := withCookies(env.signIn("owner", models.RoleAdmin))

	session := decodeBody[media.View](t, env.do(http.MethodPost, "/admin/uploads", nil, admin))
	items := decodeBody[[]models.ImageItem](t, env.uploadFiles(session.ID, admin, "a.png"))
	require.Len(t, items, 1)

	s, ok := env.uploads.Get(session.ID)
	require.True(t, ok)
	s.Wait()

	assert.Equal(t, http.StatusNoContent, env.do(http.MethodDelete, "/admin/uploads/"+session.ID+"/items/"+items[0].ID, nil, admin).Code)
	assert.Equal(t, http.StatusNotFound, env.do(http.MethodDelete, "/admin/uploads/"+session.ID+"/items/"+items[0].ID, nil, admin).Code)

	view := decodeBody[media.View](t, env.do(http.MethodGet, "/admin/uploads/"+session.ID, nil, admin))
	assert.Empty(t, view.Items)

	assert.Equal(t, http.StatusNoContent, env.do(http.MethodDelete, "/admin/uploads/"+session.ID, nil, admin).Code)
	assert.Equal(t, http.StatusNotFound, env.do(http.MethodDelete, "/admin/uploads/"+session.ID, nil, admin).Code)
	assert.Zero(t, env.previews.Len())
}

func TestAdminUploadRejectsEmptyForm(t *testing.T) {
	env := newTestEnv(t)
	admin := withCookies(env.signIn("owner", models.RoleAdmin))
	session := decodeBody[media.View](t, env.do(http.MethodPost, "/admin/uploads", nil, admin))

	assert.Equal(t, http.StatusBadRequest, env.uploadFiles(session.ID, admin).Code)
	assert.Equal(t, http.StatusNotFound, env.uploadFiles("missing", admin, "a.png").Code)
}
