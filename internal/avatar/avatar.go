// Package avatar validates profile pictures and stores them.
package avatar

import (
	"bytes"
	"context"
	"image"
	_ "image/jpeg" // register JPEG decoder
	"image/png"
	"net/http"
	"path/filepath"
	"strings"

	"github.com/isdelr/task-manager-be/internal/errs"
	"golang.org/x/image/draw"
)

const (
	// MaxUploadBytes is the largest accepted upload.
	MaxUploadBytes = 1_000_000
	// Size is the edge length of a stored avatar in pixels.
	Size = 250
	// ContentType of every stored avatar.
	ContentType = "image/png"
)

// Store keeps one PNG avatar per user.
type Store interface {
	Put(ctx context.Context, userID string, data []byte) error
	// Get returns a NOT_FOUND error when the user has no avatar.
	Get(ctx context.Context, userID string) ([]byte, error)
	// Delete is a no-op when there is nothing to delete.
	Delete(ctx context.Context, userID string) error
}

var allowedExtensions = map[string]bool{".jpg": true, ".jpeg": true, ".png": true}

// Normalize checks an uploaded image and converts it to a Size x Size PNG.
func Normalize(filename string, data []byte) ([]byte, error) {
	if len(data) == 0 {
		return nil, errs.Validation("please upload an image")
	}
	if len(data) > MaxUploadBytes {
		return nil, errs.Validation("file must be at most %d bytes", MaxUploadBytes)
	}
	if !allowedExtensions[strings.ToLower(filepath.Ext(filename))] {
		return nil, errs.Validation("please upload a jpg, jpeg or png image")
	}
	switch http.DetectContentType(data) {
	case "image/jpeg", "image/png":
	default:
		return nil, errs.Validation("please upload a jpg, jpeg or png image")
	}

	src, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, errs.Validation("could not decode image")
	}

	dst := image.NewRGBA(image.Rect(0, 0, Size, Size))
	draw.CatmullRom.Scale(dst, dst.Bounds(), src, src.Bounds(), draw.Over, nil)

	var buf bytes.Buffer
	if err := png.Encode(&buf, dst); err != nil {
		return nil, errs.Internal("encode avatar", err)
	}
	return buf.Bytes(), nil
}
