package scratch

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vbonduro/lootbot/internal/domain"
)

var testLogger = slog.New(slog.NewTextHandler(io.Discard, nil))

func newServer(t *testing.T) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("/ok.png", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("fake png data"))
	})
	mux.HandleFunc("/gone.png", func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "not found", http.StatusNotFound)
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func listDir(t *testing.T, dir string) []string {
	t.Helper()
	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	names := make([]string, 0, len(entries))
	for _, e := range entries {
		names = append(names, e.Name())
	}
	return names
}

func TestSaveAndRemove(t *testing.T) {
	srv := newServer(t)
	dir := filepath.Join(t.TempDir(), "temp")
	store := NewStore(dir, testLogger)

	path, err := store.Save(context.Background(), domain.Attachment{
		Filename: "loot.png",
		URL:      srv.URL + "/ok.png",
	})
	require.NoError(t, err)

	assert.Equal(t, dir, filepath.Dir(path))
	assert.True(t, strings.HasSuffix(filepath.Base(path), "_loot.png"))
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "fake png data", string(data))

	store.Remove(path)
	assert.Empty(t, listDir(t, dir))

	// Removing twice is harmless.
	store.Remove(path)
}

func TestSaveUniqueNames(t *testing.T) {
	srv := newServer(t)
	store := NewStore(t.TempDir(), testLogger)
	att := domain.Attachment{Filename: "loot.png", URL: srv.URL + "/ok.png"}

	first, err := store.Save(context.Background(), att)
	require.NoError(t, err)
	second, err := store.Save(context.Background(), att)
	require.NoError(t, err)

	assert.NotEqual(t, first, second)
}

func TestSaveDownloadFailure(t *testing.T) {
	srv := newServer(t)
	dir := t.TempDir()
	store := NewStore(dir, testLogger)

	_, err := store.Save(context.Background(), domain.Attachment{
		Filename: "gone.png",
		URL:      srv.URL + "/gone.png",
	})
	assert.ErrorIs(t, err, ErrDownload)
	assert.Empty(t, listDir(t, dir), "failed download must not leave a file behind")
}

func TestSaveCancelledContext(t *testing.T) {
	srv := newServer(t)
	dir := t.TempDir()
	store := NewStore(dir, testLogger)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := store.Save(ctx, domain.Attachment{Filename: "loot.png", URL: srv.URL + "/ok.png"})
	assert.ErrorIs(t, err, ErrDownload)
	assert.Empty(t, listDir(t, dir))
}

func TestSaveStripsDirectories(t *testing.T) {
	srv := newServer(t)
	dir := t.TempDir()
	store := NewStore(dir, testLogger)

	path, err := store.Save(context.Background(), domain.Attachment{
		Filename: "../../etc/passwd",
		URL:      srv.URL + "/ok.png",
	})
	require.NoError(t, err)
	assert.Equal(t, dir, filepath.Dir(path))
	assert.True(t, strings.HasSuffix(path, "_passwd"))
}

func TestSafeJoinRejectsTraversal(t *testing.T) {
	store := NewStore(t.TempDir(), testLogger)

	tests := []struct {
		name    string
		input   string
		wantErr bool
	}{
		{name: "plain file", input: "abc_loot.png"},
		{name: "parent directory", input: "../loot.png", wantErr: true},
		{name: "nested escape", input: "a/../../loot.png", wantErr: true},
		{name: "base itself", input: ".", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := store.safeJoin(tt.input)
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestBaseName(t *testing.T) {
	assert.Equal(t, "loot.png", baseName("loot.png"))
	assert.Equal(t, "loot.png", baseName(`C:\Users\rook\loot.png`))
	assert.Equal(t, "attachment", baseName(""))
	assert.Equal(t, "attachment", baseName(".."))
}
