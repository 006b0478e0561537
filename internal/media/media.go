package media

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
)

var (
	// ErrTooLarge maps to the upstream 413 surfaced for oversized uploads.
	ErrTooLarge = errors.New("image too large")
	// ErrBadImage is returned for payloads that are not a decodable data URL.
	ErrBadImage = errors.New("invalid image payload")
)

// Store turns an uploaded image payload into a servable URL. The chat core
// never re-derives the URL; whatever Put returns is what gets persisted.
type Store interface {
	// Put accepts a "data:image/...;base64,..." payload and returns the URL
	// of the stored object.
	Put(ctx context.Context, dataURL string) (string, error)
}

// Disk writes uploads under Dir and serves them at BaseURL.
type Disk struct {
	Dir      string
	BaseURL  string
	MaxBytes int64
}

func NewDisk(dir, baseURL string, maxBytes int64) (*Disk, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, err
	}
	return &Disk{Dir: dir, BaseURL: strings.TrimRight(baseURL, "/"), MaxBytes: maxBytes}, nil
}

func (d *Disk) Put(ctx context.Context, dataURL string) (string, error) {
	mime, b64, err := splitDataURL(dataURL)
	if err != nil {
		return "", err
	}
	// Base64 inflates by 4/3; cheap pre-check before decoding.
	if d.MaxBytes > 0 && int64(len(b64)) > d.MaxBytes*4/3+4 {
		return "", ErrTooLarge
	}
	raw, err := base64.StdEncoding.DecodeString(b64)
	if err != nil {
		return "", ErrBadImage
	}
	if d.MaxBytes > 0 && int64(len(raw)) > d.MaxBytes {
		return "", ErrTooLarge
	}

	name := uuid.NewString() + extFor(mime)
	if err := os.WriteFile(filepath.Join(d.Dir, name), raw, 0o644); err != nil {
		return "", err
	}
	return d.BaseURL + "/" + name, nil
}

func splitDataURL(s string) (mime, b64 string, err error) {
	if !strings.HasPrefix(s, "data:") {
		return "", "", ErrBadImage
	}
	rest := s[len("data:"):]
	i := strings.Index(rest, ";base64,")
	if i < 0 {
		return "", "", ErrBadImage
	}
	mime = rest[:i]
	b64 = rest[i+len(";base64,"):]
	if mime == "" || b64 == "" {
		return "", "", ErrBadImage
	}
	if !strings.HasPrefix(mime, "image/") {
		return "", "", fmt.Errorf("%w: unsupported type %q", ErrBadImage, mime)
	}
	return mime, b64, nil
}

func extFor(mime string) string {
	switch mime {
	case "image/png":
		return ".png"
	case "image/gif":
		return ".gif"
	case "image/webp":
		return ".webp"
	default:
		return ".jpg"
	}
}
