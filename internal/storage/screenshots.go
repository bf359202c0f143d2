package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
)

// ScreenshotStore persists payment-screenshot blobs and hands back a
// publicly servable URL.
type ScreenshotStore interface {
	Save(ctx context.Context, orderComponent string, filename string, r io.Reader) (string, error)
}

var ErrUnsupportedType = errors.New("unsupported screenshot type")

type DiskStore struct {
	dir     string
	baseURL string
}

func NewDiskStore(dir, baseURL string) (*DiskStore, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create upload dir: %w", err)
	}

	return &DiskStore{
		dir:     dir,
		baseURL: strings.TrimRight(baseURL, "/"),
	}, nil
}

// Dir is the on-disk root, exposed so the router can serve it statically.
func (s *DiskStore) Dir() string {
	return s.dir
}

func (s *DiskStore) Save(ctx context.Context, orderComponent string, filename string, r io.Reader) (string, error) {
	ext := strings.ToLower(filepath.Ext(filename))

	switch ext {
	case ".png", ".jpg", ".jpeg", ".webp":
	default:
		return "", ErrUnsupportedType
	}

	// caller-supplied names never reach the filesystem
	name := fmt.Sprintf("%s_%d_%s%s", orderComponent, time.Now().UnixMilli(), uuid.NewString()[:8], ext)

	f, err := os.Create(filepath.Join(s.dir, name))
	if err != nil {
		return "", err
	}

	_, err = io.Copy(f, r)

	if cerr := f.Close(); err == nil {
		err = cerr
	}

	if err != nil {
		_ = os.Remove(filepath.Join(s.dir, name))
		return "", err
	}

	// baseURL may be absolute; path.Join would collapse the scheme's "//"
	return s.baseURL + "/" + name, nil
}
