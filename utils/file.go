package utils

import (
	"context"
	"fmt"
	"io"
	"mime/multipart"
	"os"
	"path/filepath"
	"strings"

	"github.com/samber/oops"
)

// LocalStorage writes assets under a directory on disk. Files are served
// back at BaseURL + "/uploads/" + key.
type LocalStorage struct {
	dir     string
	baseURL string
}

// NewLocalStorage creates dir if it doesn't exist.
func NewLocalStorage(dir, baseURL string) (*LocalStorage, error) {
	if err := EnsureUploadDir(dir); err != nil {
		return nil, err
	}
	return &LocalStorage{dir: dir, baseURL: strings.TrimRight(baseURL, "/")}, nil
}

// EnsureUploadDir creates the uploads directory if it doesn't exist
func EnsureUploadDir(dir string) error {
	if err := os.MkdirAll(dir, os.ModePerm); err != nil {
		return oops.Code("UPLOAD_DIR_FAILED").With("dir", dir).Wrap(err)
	}
	return nil
}

// Dir returns the directory assets are written to.
func (l *LocalStorage) Dir() string {
	return l.dir
}

// Upload writes data to dir/key, replacing any existing file.
func (l *LocalStorage) Upload(ctx context.Context, key string, data []byte, _ string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	clean := filepath.Clean("/" + key)
	destPath := filepath.Join(l.dir, filepath.FromSlash(clean))

	if err := os.MkdirAll(filepath.Dir(destPath), os.ModePerm); err != nil {
		return "", oops.Code("LOCAL_UPLOAD_FAILED").With("key", key).Wrap(err)
	}
	if err := os.WriteFile(destPath, data, 0o644); err != nil {
		return "", oops.Code("LOCAL_UPLOAD_FAILED").With("key", key).Wrap(err)
	}
	return fmt.Sprintf("%s/uploads%s", l.baseURL, filepath.ToSlash(clean)), nil
}

// ReadFormFile reads an uploaded multipart file fully into memory.
func ReadFormFile(fileHeader *multipart.FileHeader) ([]byte, error) {
	file, err := fileHeader.Open()
	if err != nil {
		return nil, fmt.Errorf("failed to open file: %w", err)
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		return nil, fmt.Errorf("failed to read file: %w", err)
	}
	return data, nil
}
