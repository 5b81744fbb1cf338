package storage

import (
	"brokerdesk/backend/internal/models"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
)

// FileStore keeps attachment bytes on local disk and serves them under BaseURL.
type FileStore struct {
	Dir     string
	BaseURL string
}

// NewFileStore creates the upload directory if needed.
func NewFileStore(dir, baseURL string) (*FileStore, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create upload directory: %w", err)
	}
	return &FileStore{Dir: dir, BaseURL: strings.TrimRight(baseURL, "/")}, nil
}

// Save writes r under a unique name and returns the attachment metadata.
// The returned attachment is not yet bound to a message.
func (f *FileStore) Save(name string, r io.Reader, mimeType string) (*models.Attachment, error) {
	original := sanitizeFileName(name)
	stored := uuid.New().String() + "_" + original

	dst, err := os.Create(filepath.Join(f.Dir, stored))
	if err != nil {
		return nil, fmt.Errorf("failed to create %s: %w", stored, err)
	}
	defer dst.Close()

	size, err := io.Copy(dst, r)
	if err != nil {
		os.Remove(dst.Name())
		return nil, fmt.Errorf("failed to write %s: %w", stored, err)
	}

	if mimeType == "" {
		mimeType = "application/octet-stream"
	}
	return &models.Attachment{
		Name:     original,
		Size:     size,
		MimeType: mimeType,
		URL:      f.BaseURL + "/" + stored,
	}, nil
}

// Remove deletes the stored bytes of an attachment that never got bound to a
// message.
func (f *FileStore) Remove(att *models.Attachment) error {
	stored := filepath.Base(strings.TrimPrefix(att.URL, f.BaseURL+"/"))
	if err := os.Remove(filepath.Join(f.Dir, stored)); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to remove %s: %w", stored, err)
	}
	return nil
}

func sanitizeFileName(name string) string {
	base := filepath.Base(strings.ReplaceAll(name, "\\", "/"))
	if base == "." || base == "/" || base == "" {
		return "file"
	}
	return strings.ReplaceAll(base, " ", "_")
}
