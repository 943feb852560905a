// Package objectstore сохраняет файлы (счета) и возвращает ссылку на них.
package objectstore

import (
	"context"
	"errors"
	"strings"
)

// Uploader — общий интерфейс для GCS и локального диска
type Uploader interface {
	Upload(ctx context.Context, data []byte, path, contentType string) (string, error)
}

var (
	errEmptyPath = errors.New("objectstore: object path is required")
	errBadPath   = errors.New("objectstore: object path must be relative and must not contain '..'")
)

func cleanPath(path string) (string, error) {
	path = strings.TrimSpace(path)
	if path == "" {
		return "", errEmptyPath
	}
	if strings.HasPrefix(path, "/") || strings.Contains(path, "..") {
		return "", errBadPath
	}
	return path, nil
}

func joinURL(base, path string) string {
	return strings.TrimRight(base, "/") + "/" + path
}
