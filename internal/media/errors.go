package media

import (
	"errors"
	"fmt"
)

var (
	ErrPreviewNotFound = errors.New("preview not found")
	ErrItemNotFound    = errors.New("image item not found")
	ErrSessionClosed   = errors.New("upload session closed")
	ErrUploadsPending  = errors.New("images are still uploading")
	ErrSessionSealed   = errors.New("upload session is being saved")
)

// DecodeError means the bytes could not be read as an image.
type DecodeError struct {
	Err error
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("decode image: %v", e.Err)
}

func (e *DecodeError) Unwrap() error { return e.Err }

type EncodeError struct {
	Format Format
	Err    error
}

func (e *EncodeError) Error() string {
	return fmt.Sprintf("encode %s: %v", e.Format, e.Err)
}

func (e *EncodeError) Unwrap() error { return e.Err }

// UploadError covers every way a transfer to the media host can fail:
// transport errors, non-2xx answers and bodies without a usable URL.
type UploadError struct {
	StatusCode int // 0 when no response was received
	Err        error
}

func (e *UploadError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("upload failed with status %d: %v", e.StatusCode, e.Err)
	}
	return fmt.Sprintf("upload failed: %v", e.Err)
}

func (e *UploadError) Unwrap() error { return e.Err }
