package media

import (
	"fmt"
	"net/url"
	"strings"
)

type TransformOptions struct {
	Width   int
	Quality string // "auto", "auto:best", ...
}

// Transformer rewrites media host URLs to request resized, auto-format variants.
type Transformer struct {
	hosts []string
}

func NewTransformer(hosts ...string) *Transformer {
	return &Transformer{hosts: hosts}
}

const uploadSegment = "/upload/"

// Cloudinary transformation parameter names, as in "c_fill,h_300,w_300".
var directiveKeys = map[string]bool{
	"a": true, "ar": true, "b": true, "bo": true, "c": true, "d": true,
	"dpr": true, "e": true, "f": true, "fl": true, "g": true, "h": true,
	"l": true, "o": true, "pg": true, "q": true, "r": true, "t": true,
	"u": true, "w": true, "x": true, "y": true, "z": true,
}

// isDirectiveSegment reports whether a path segment is made only of
// transformation directives. File names such as "img_2024.jpg" are not.
func isDirectiveSegment(seg string) bool {
	if seg == "" {
		return false
	}
	for _, tok := range strings.Split(seg, ",") {
		key, val, ok := strings.Cut(tok, "_")
		if !ok || val == "" || !directiveKeys[key] {
			return false
		}
	}
	return true
}

// URL inserts f_auto,q_<quality>,w_<width> right after /upload/. URLs that are
// not on the media host, or already carry directives, come back unchanged.
func (t *Transformer) URL(raw string, opts TransformOptions) string {
	if opts.Width <= 0 {
		opts.Width = 400
	}
	if opts.Quality == "" {
		opts.Quality = "auto"
	}

	if raw == "" || !t.onMediaHost(raw) {
		return raw
	}
	if strings.Count(raw, uploadSegment) != 1 {
		return raw
	}
	head, tail, _ := strings.Cut(raw, uploadSegment)
	// directives are always followed by the public id, never the last segment
	first, rest, found := strings.Cut(tail, "/")
	if found && rest != "" && isDirectiveSegment(first) {
		return raw
	}

	quality := strings.ReplaceAll(opts.Quality, ":", "_")
	return fmt.Sprintf("%s%sf_auto,q_%s,w_%d/%s", head, uploadSegment, quality, opts.Width, tail)
}

func (t *Transformer) onMediaHost(raw string) bool {
	u, err := url.Parse(raw)
	if err != nil {
		return false
	}
	host := u.Hostname()
	for _, h := range t.hosts {
		if host == h || strings.HasSuffix(host, "."+h) {
			return true
		}
	}
	return false
}

// CardImage is used on product cards.
func (t *Transformer) CardImage(raw string) string {
	return t.URL(raw, TransformOptions{Width: 400, Quality: "auto"})
}

func (t *Transformer) DetailImage(raw string) string {
	return t.URL(raw, TransformOptions{Width: 1200, Quality: "auto:best"})
}

// FullImage is the zoom / fullscreen variant.
func (t *Transformer) FullImage(raw string) string {
	return t.URL(raw, TransformOptions{Width: 1600, Quality: "auto:best"})
}

func (t *Transformer) OrderPageImage(raw string) string {
	return t.URL(raw, TransformOptions{Width: 300, Quality: "auto"})
}
