package media

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"net/url"
	"path/filepath"
	"strings"

	"github.com/alextreichler/luxestore/internal/config"
	"github.com/alextreichler/luxestore/internal/models"
)

// ProgressFunc receives upload samples; Loaded never decreases between calls.
type ProgressFunc func(models.UploadProgress)

type Uploader interface {
	Upload(ctx context.Context, blob *Blob, filename string, onProgress ProgressFunc) (string, error)
}

// CloudinaryUploader posts unsigned uploads to a Cloudinary compatible API.
// The account is looked up on every call so a config reload applies at once.
type CloudinaryUploader struct {
	cfg    *config.Manager
	client *http.Client
}

func NewCloudinaryUploader(cfg *config.Manager, client *http.Client) *CloudinaryUploader {
	if client == nil {
		client = http.DefaultClient
	}
	return &CloudinaryUploader{cfg: cfg, client: client}
}

type uploadResponse struct {
	SecureURL string `json:"secure_url"`
}

func (u *CloudinaryUploader) Upload(ctx context.Context, blob *Blob, filename string, onProgress ProgressFunc) (string, error) {
	mc := u.cfg.Current().Media
	endpoint := fmt.Sprintf("%s/v1_1/%s/image/upload", strings.TrimRight(mc.APIBase, "/"), url.PathEscape(mc.CloudName))

	body, contentType, err := buildUploadBody(blob, UploadFilename(filename, blob.Format), mc.UploadPreset)
	if err != nil {
		return "", &UploadError{Err: err}
	}

	reader := &progressReader{r: bytes.NewReader(body), total: int64(len(body)), onProgress: onProgress}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, reader)
	if err != nil {
		return "", &UploadError{Err: err}
	}
	req.ContentLength = int64(len(body))
	req.Header.Set("Content-Type", contentType)

	resp, err := u.client.Do(req)
	if err != nil {
		return "", &UploadError{Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return "", &UploadError{StatusCode: resp.StatusCode, Err: fmt.Errorf("media host said: %s", strings.TrimSpace(string(snippet)))}
	}

	var out uploadResponse
	if err := json.NewDecoder(io.LimitReader(resp.Body, 1<<20)).Decode(&out); err != nil {
		return "", &UploadError{StatusCode: resp.StatusCode, Err: fmt.Errorf("malformed response: %w", err)}
	}
	if out.SecureURL == "" {
		return "", &UploadError{StatusCode: resp.StatusCode, Err: errors.New("malformed response: missing secure_url")}
	}
	return out.SecureURL, nil
}

// UploadFilename swaps the extension of the original file name for the one of
// the encoded format.
func UploadFilename(name string, format Format) string {
	base := filepath.Base(name)
	base = strings.TrimSuffix(base, filepath.Ext(base))
	if base == "" || base == "." || base == "/" {
		base = "image"
	}
	return base + format.Extension()
}

func buildUploadBody(blob *Blob, filename, preset string) ([]byte, string, error) {
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)

	h := make(textproto.MIMEHeader)
	h.Set("Content-Disposition", fmt.Sprintf(`form-data; name="file"; filename="%s"`, escapeQuotes(filename)))
	h.Set("Content-Type", blob.ContentType())
	part, err := mw.CreatePart(h)
	if err != nil {
		return nil, "", err
	}
	if _, err := part.Write(blob.Data); err != nil {
		return nil, "", err
	}
	if err := mw.WriteField("upload_preset", preset); err != nil {
		return nil, "", err
	}
	if err := mw.Close(); err != nil {
		return nil, "", err
	}
	return buf.Bytes(), mw.FormDataContentType(), nil
}

var quoteEscaper = strings.NewReplacer("\\", "\\\\", `"`, "\\\"")

func escapeQuotes(s string) string {
	return quoteEscaper.Replace(s)
}

type progressReader struct {
	r          io.Reader
	loaded     int64
	total      int64
	lastPct    int
	onProgress ProgressFunc
}

func (p *progressReader) Read(b []byte) (int, error) {
	n, err := p.r.Read(b)
	if n > 0 {
		p.loaded += int64(n)
		p.report()
	}
	return n, err
}

func (p *progressReader) report() {
	// Without a known total there is nothing meaningful to report.
	if p.onProgress == nil || p.total <= 0 {
		return
	}
	pct := int(math.Round(float64(p.loaded) / float64(p.total) * 100))
	if pct == p.lastPct && p.loaded < p.total {
		return
	}
	p.lastPct = pct
	p.onProgress(models.UploadProgress{Loaded: p.loaded, Total: p.total, Percent: pct})
}
