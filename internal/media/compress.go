package media

import (
	"bytes"
	"fmt"
	"image"
	_ "image/gif" // decoders for accepted uploads
	"image/jpeg"
	"image/png"
	"io"
	"math"

	"github.com/chai2010/webp"
	"github.com/nfnt/resize"
	_ "golang.org/x/image/webp"
)

type Format string

const (
	FormatWebP Format = "webp"
	FormatJPEG Format = "jpeg"
	FormatPNG  Format = "png"
)

func ParseFormat(s string) (Format, error) {
	switch s {
	case "webp", "image/webp":
		return FormatWebP, nil
	case "jpeg", "jpg", "image/jpeg":
		return FormatJPEG, nil
	case "png", "image/png":
		return FormatPNG, nil
	}
	return "", fmt.Errorf("unsupported image format %q", s)
}

func (f Format) Extension() string {
	switch f {
	case FormatJPEG:
		return ".jpg"
	case FormatPNG:
		return ".png"
	default:
		return ".webp"
	}
}

func (f Format) ContentType() string {
	return "image/" + string(f)
}

type CompressOptions struct {
	MaxWidth  int
	MaxHeight int
	Quality   float64 // (0,1]
	Format    Format
}

func DefaultCompressOptions() CompressOptions {
	return CompressOptions{
		MaxWidth:  1600,
		MaxHeight: 1600,
		Quality:   0.82,
		Format:    FormatWebP,
	}
}

func (o CompressOptions) withDefaults() CompressOptions {
	d := DefaultCompressOptions()
	if o.MaxWidth <= 0 {
		o.MaxWidth = d.MaxWidth
	}
	if o.MaxHeight <= 0 {
		o.MaxHeight = d.MaxHeight
	}
	if o.Quality <= 0 || o.Quality > 1 {
		o.Quality = d.Quality
	}
	if o.Format == "" {
		o.Format = d.Format
	}
	return o
}

// Blob is a re-encoded image ready to be uploaded.
type Blob struct {
	Data   []byte
	Format Format
	Width  int
	Height int
}

func (b *Blob) ContentType() string {
	return b.Format.ContentType()
}

func (b *Blob) Size() int {
	return len(b.Data)
}

// ScaleDimensions fits w x h inside maxW x maxH keeping the aspect ratio.
// Images already inside the bounds are returned unchanged.
func ScaleDimensions(w, h, maxW, maxH int) (int, int) {
	if w <= maxW && h <= maxH {
		return w, h
	}
	ratio := math.Min(float64(maxW)/float64(w), float64(maxH)/float64(h))
	sw := int(math.Round(float64(w) * ratio))
	sh := int(math.Round(float64(h) * ratio))
	return max(sw, 1), max(sh, 1)
}

// Compress decodes an image, scales it down to the configured bounds and
// re-encodes it. It never retries; both error kinds are final for the file.
func Compress(r io.Reader, opts CompressOptions) (*Blob, error) {
	opts = opts.withDefaults()

	src, _, err := image.Decode(r)
	if err != nil {
		return nil, &DecodeError{Err: err}
	}

	bounds := src.Bounds()
	w, h := ScaleDimensions(bounds.Dx(), bounds.Dy(), opts.MaxWidth, opts.MaxHeight)
	img := src
	if w != bounds.Dx() || h != bounds.Dy() {
		img = resize.Resize(uint(w), uint(h), src, resize.Lanczos3)
	}

	var buf bytes.Buffer
	if err := encode(&buf, img, opts); err != nil {
		return nil, &EncodeError{Format: opts.Format, Err: err}
	}

	return &Blob{
		Data:   buf.Bytes(),
		Format: opts.Format,
		Width:  w,
		Height: h,
	}, nil
}

func encode(w io.Writer, img image.Image, opts CompressOptions) error {
	switch opts.Format {
	case FormatWebP:
		return webp.Encode(w, img, &webp.Options{Quality: float32(opts.Quality * 100)})
	case FormatJPEG:
		return jpeg.Encode(w, img, &jpeg.Options{Quality: int(math.Round(opts.Quality * 100))})
	case FormatPNG:
		enc := png.Encoder{CompressionLevel: png.BestCompression}
		return enc.Encode(w, img)
	}
	return fmt.Errorf("unsupported image format %q", opts.Format)
}
