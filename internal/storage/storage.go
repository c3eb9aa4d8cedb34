// Package storage provides the object storage layer backing media uploads.
package storage

import (
	"context"
	"fmt"
	"os"
	"path"
	"path/filepath"
	"strings"

	"portal/internal/middleware"

	"github.com/google/uuid"
)

// ObjectStore abstracts bucket-style media storage: upload by path, remove by
// path, and a public URL per object that the path can be derived back from.
type ObjectStore interface {
	Upload(ctx context.Context, objectPath string, content []byte, contentType string) (string, error)
	Remove(ctx context.Context, objectPath string) error
	PublicURL(objectPath string) string
	PathFromURL(url string) (string, bool)
}

// DiskStore stores objects on the local filesystem and serves them under
// baseURL + "/media/".
type DiskStore struct {
	root    string
	baseURL string
}

// NewDiskStore returns a DiskStore rooted at dir with public URLs built from baseURL.
func NewDiskStore(dir, baseURL string) *DiskStore {
	return &DiskStore{
		root:    dir,
		baseURL: strings.TrimRight(baseURL, "/"),
	}
}

// Root returns the directory objects are written under.
func (s *DiskStore) Root() string {
	return s.root
}

func (s *DiskStore) Upload(ctx context.Context, objectPath string, content []byte, contentType string) (string, error) {
	clean, err := s.cleanPath(objectPath)
	if err != nil {
		middleware.StorageErrors.WithLabelValues("upload").Inc()
		return "", err
	}

	full := filepath.Join(s.root, filepath.FromSlash(clean))
	if err := os.MkdirAll(filepath.Dir(full), 0o755); err != nil {
		middleware.StorageErrors.WithLabelValues("upload").Inc()
		return "", fmt.Errorf("create storage directory: %w", err)
	}
	if err := os.WriteFile(full, content, 0o644); err != nil {
		middleware.StorageErrors.WithLabelValues("upload").Inc()
		return "", fmt.Errorf("write object %s: %w", clean, err)
	}

	return s.PublicURL(clean), nil
}

func (s *DiskStore) Remove(ctx context.Context, objectPath string) error {
	clean, err := s.cleanPath(objectPath)
	if err != nil {
		middleware.StorageErrors.WithLabelValues("remove").Inc()
		return err
	}

	full := filepath.Join(s.root, filepath.FromSlash(clean))
	if err := os.Remove(full); err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		middleware.StorageErrors.WithLabelValues("remove").Inc()
		return fmt.Errorf("remove object %s: %w", clean, err)
	}
	return nil
}

func (s *DiskStore) PublicURL(objectPath string) string {
	return s.baseURL + "/media/" + strings.TrimLeft(objectPath, "/")
}

// PathFromURL derives the storage path back out of a public URL, the inverse
// of PublicURL. Returns false when the URL does not belong to this store.
func (s *DiskStore) PathFromURL(url string) (string, bool) {
	prefix := s.baseURL + "/media/"
	if !strings.HasPrefix(url, prefix) {
		return "", false
	}
	p := strings.TrimPrefix(url, prefix)
	if p == "" || strings.Contains(p, "..") {
		return "", false
	}
	return p, true
}

// cleanPath rejects traversal attempts and normalizes the object path.
func (s *DiskStore) cleanPath(objectPath string) (string, error) {
	clean := path.Clean("/" + objectPath)
	if clean == "/" || strings.Contains(clean, "..") {
		return "", fmt.Errorf("invalid object path %q", objectPath)
	}
	return strings.TrimPrefix(clean, "/"), nil
}

// ObjectName builds a unique object path under folder, keeping the original
// file extension.
func ObjectName(folder, filename string) string {
	ext := strings.ToLower(filepath.Ext(filename))
	return fmt.Sprintf("%s/%s%s", folder, uuid.New().String(), ext)
}

// IsAllowedMediaMIME reports whether the content type is an accepted upload
// type for post attachments (images and videos only).
func IsAllowedMediaMIME(contentType string) bool {
	ct := strings.ToLower(strings.TrimSpace(contentType))
	if i := strings.Index(ct, ";"); i >= 0 {
		ct = strings.TrimSpace(ct[:i])
	}
	return strings.HasPrefix(ct, "image/") || strings.HasPrefix(ct, "video/")
}

// IsImageMIME reports whether the content type is an image type.
func IsImageMIME(contentType string) bool {
	ct := strings.ToLower(strings.TrimSpace(contentType))
	return strings.HasPrefix(ct, "image/")
}
