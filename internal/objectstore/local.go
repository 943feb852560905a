package objectstore

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
)

// LocalUploader складывает файлы на диск, используется в локальном окружении.
// Раздачу файлов по baseURL обеспечивает сервер (см. cmd/server)
type LocalUploader struct {
	dir     string
	baseURL string
}

func NewLocalUploader(dir, baseURL string) *LocalUploader {
	return &LocalUploader{dir: dir, baseURL: baseURL}
}

func (u *LocalUploader) Upload(ctx context.Context, data []byte, path, contentType string) (string, error) {
	object, err := cleanPath(path)
	if err != nil {
		return "", err
	}
	if err := ctx.Err(); err != nil {
		return "", err
	}

	full := filepath.Join(u.dir, filepath.FromSlash(object))
	if err := os.MkdirAll(filepath.Dir(full), 0o755); err != nil {
		return "", fmt.Errorf("objectstore: mkdir for %s: %w", object, err)
	}
	// пишем во временный файл и переименовываем, чтобы не отдавать недописанный счет
	tmp := full + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return "", fmt.Errorf("objectstore: write %s: %w", object, err)
	}
	if err := os.Rename(tmp, full); err != nil {
		return "", fmt.Errorf("objectstore: rename %s: %w", object, err)
	}
	return joinURL(u.baseURL, object), nil
}
