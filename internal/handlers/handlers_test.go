package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"image"
	"image/color"
	"image/png"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/alextreichler/luxestore/internal/config"
	"github.com/alextreichler/luxestore/internal/media"
	"github.com/alextreichler/luxestore/internal/models"
	"github.com/alextreichler/luxestore/internal/order"
	"github.com/alextreichler/luxestore/internal/store"
	"github.com/gorilla/sessions"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

// stubUploader pretends to be the media host. When gate is set every upload
// waits for it to be closed.
type stubUploader struct {
	gate chan struct{}
}

func (u *stubUploader) Upload(ctx context.Context, _ *media.Blob, filename string, onProgress media.ProgressFunc) (string, error) {
	if u.gate != nil {
		select {
		case <-u.gate:
		case <-ctx.Done():
			return "", &media.UploadError{Err: ctx.Err()}
		}
	}
	if onProgress != nil {
		onProgress(models.UploadProgress{Loaded: 1, Total: 1, Percent: 100})
	}
	return "https://res.cloudinary.com/demo/image/upload/v1/" + filename, nil
}

type testEnv struct {
	t        *testing.T
	store    store.Store
	cfg      *config.Manager
	previews *media.MemoryPreviews
	uploads  *media.Manager
	uploader *stubUploader
	handler  http.Handler
	seeded   int
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	dir := t.TempDir()

	base := &config.Config{
		Store: config.StoreConfig{Driver: "sqlite", DBPath: filepath.Join(dir, "test.db")},
		Media: config.MediaConfig{
			CloudName:     "demo",
			UploadPreset:  "ml_default",
			Hosts:         []string{"res.cloudinary.com"},
			MaxWidth:      64,
			MaxHeight:     64,
			Quality:       0.8,
			Format:        "png",
			UploadWorkers: 2,
			MaxUploadSize: 1 << 20,
		},
		SiteURL:       "https://luxre.test",
		OrderPrefix:   "LUXRE",
		OverridesPath: filepath.Join(dir, "overrides.yaml"),
	}
	load := func() (*config.Config, error) {
		next := *base
		ov, err := config.ReadOverrides(next.OverridesPath)
		if err != nil {
			return nil, err
		}
		ov.Apply(&next)
		return &next, nil
	}
	cfg := config.NewManagerWithLoader(base, load)

	st, err := store.Open(context.Background(), base.Store)
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() })

	env := &testEnv{
		t:        t,
		store:    st,
		cfg:      cfg,
		previews: media.NewMemoryPreviews(),
		uploader: &stubUploader{},
	}
	env.uploads = media.NewManager(env.previews, env.uploader, cfg, time.Hour)

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	go env.uploads.Run(ctx)

	rt := &Router{
		Auth:     &AuthHandler{Users: st, Sessions: sessions.NewCookieStore(bytes.Repeat([]byte("k"), 32))},
		Catalog:  &CatalogHandler{Products: st, Settings: st, Config: cfg},
		Orders:   &OrderHandler{Products: st, Settings: st, Config: cfg, Checkout: &order.Checkout{Prefix: "LUXRE", SiteURL: base.SiteURL}},
		Admin:    &AdminHandler{Store: st, Uploads: env.uploads, Config: cfg},
		Previews: &PreviewHandler{Previews: env.previews},
	}
	env.handler = rt.Handler()
	return env
}

type reqOpt func(*http.Request)

func withCookies(cookies []*http.Cookie) reqOpt {
	return func(r *http.Request) {
		for _, c := range cookies {
			r.AddCookie(c)
		}
	}
}

func withHeader(k, v string) reqOpt {
	return func(r *http.Request) { r.Header.Set(k, v) }
}

func (e *testEnv) do(method, path string, body any, opts ...reqOpt) *httptest.ResponseRecorder {
	e.t.Helper()
	var rd io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		require.NoError(e.t, err)
		rd = bytes.NewReader(data)
	}
	req := httptest.NewRequest(method, path, rd)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	for _, o := range opts {
		o(req)
	}
	rec := httptest.NewRecorder()
	e.handler.ServeHTTP(rec, req)
	return rec
}

// signIn creates an account with the given role and returns its session cookies.
func (e *testEnv) signIn(username, role string) []*http.Cookie {
	e.t.Helper()
	hashed, err := bcrypt.GenerateFromPassword([]byte("password1"), bcrypt.MinCost)
	require.NoError(e.t, err)
	require.NoError(e.t, e.store.CreateUser(context.Background(), &models.User{
		Username: username,
		Password: string(hashed),
		Role:     role,
	}))
	rec := e.do(http.MethodPost, "/login", credentials{Username: username, Password: "password1"})
	require.Equal(e.t, http.StatusOK, rec.Code, rec.Body.String())
	cookies := rec.Result().Cookies()
	require.NotEmpty(e.t, cookies)
	return cookies
}

func (e *testEnv) seedProduct(name string, stock int, images ...string) *models.Product {
	e.t.Helper()
	if images == nil {
		images = []string{}
	}
	e.seeded++
	p := &models.Product{
		Name:      name,
		Price:     decimal.NewFromInt(4500),
		Stock:     stock,
		Images:    images,
		CreatedAt: time.Date(2024, 6, 1, 0, 0, e.seeded, 0, time.UTC),
	}
	require.NoError(e.t, e.store.CreateProduct(context.Background(), p))
	return p
}

func decodeBody[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &v), rec.Body.String())
	return v
}

func pngFile(t *testing.T) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, 120, 80))
	for x := 0; x < 120; x++ {
		img.Set(x, x%80, color.RGBA{R: 200, G: 10, B: uint8(x), A: 255})
	}
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

func multipartFiles(t *testing.T, names ...string) (*bytes.Buffer, string) {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	for _, name := range names {
		fw, err := mw.CreateFormFile("files", name)
		require.NoError(t, err)
		_, err = fw.Write(pngFile(t))
		require.NoError(t, err)
	}
	require.NoError(t, mw.Close())
	return &buf, mw.FormDataContentType()
}
