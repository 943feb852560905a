package objectstore_test

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/linemk/dental-mall/internal/objectstore"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLocalUploader_Upload(t *testing.T) {
	dir := t.TempDir()
	u := objectstore.NewLocalUploader(dir, "http://localhost:8080/files/")

	url, err := u.Upload(context.Background(), []byte("%PDF-1.3 test"), "invoices/2026/DM-2026-000001.pdf", "application/pdf")
	require.NoError(t, err)
	assert.Equal(t, "http://localhost:8080/files/invoices/2026/DM-2026-000001.pdf", url)

	data, err := os.ReadFile(filepath.Join(dir, "invoices", "2026", "DM-2026-000001.pdf"))
	require.NoError(t, err)
	assert.Equal(t, "%PDF-1.3 test", string(data))
}

func TestLocalUploader_RejectsBadPaths(t *testing.T) {
	u := objectstore.NewLocalUploader(t.TempDir(), "http://localhost/files")

	for _, path := range []string{"", "  ", "/etc/passwd", "invoices/../../secret"} {
		_, err := u.Upload(context.Background(), []byte("x"), path, "text/plain")
		assert.Error(t, err, "path %q should be rejected", path)
	}
}

func TestLocalUploader_CancelledContext(t *testing.T) {
	u := objectstore.NewLocalUploader(t.TempDir(), "http://localhost/files")
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := u.Upload(ctx, []byte("x"), "a.pdf", "application/pdf")
	assert.ErrorIs(t, err, context.Canceled)
}
