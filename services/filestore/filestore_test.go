package filestore

import (
	"bytes"
	"context"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/studylab/core"
)

func TestSniff(t *testing.T) {
	pdf := append([]byte("%PDF-1.4\n"), bytes.Repeat([]byte("x"), 5000)...)
	png := []byte("\x89PNG\r\n\x1a\nIHDR")

	tests := []struct {
		name     string
		filename string
		content  []byte
		want     string
		wantErr  bool
	}{
		{"pdf longer than the sniffed head", "report.pdf", pdf, "application/pdf", false},
		{"upper case extension", "REPORT.PDF", pdf, "application/pdf", false},
		{"short text", "notes.txt", []byte("hello"), "text/plain", false},
		{"text under any extension", "notes.md", []byte("# hello"), "text/plain", false},
		{"no extension", "report", png, "image/png", false},
		{"unknown extension", "drawing.xyz", png, "image/png", false},
		{"png named pdf", "report.pdf", png, "", true},
		{"pdf named txt", "notes.txt", pdf, "", true},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			ct, full, err := sniff(tc.filename, bytes.NewReader(tc.content))
			if tc.wantErr {
				var valErr *core.ValidationError
				require.ErrorAs(t, err, &valErr)
				assert.Contains(t, valErr.Error(), "does not match its extension")
				return
			}
			require.NoError(t, err)
			assert.True(t, strings.HasPrefix(ct, tc.want), ct)

			got, err := io.ReadAll(full)
			require.NoError(t, err)
			assert.Equal(t, len(tc.content), len(got))
		})
	}
}

func TestLocalStore_Save(t *testing.T) {
	dir := t.TempDir()
	store := NewLocalStore(dir, "http://localhost:8000/uploads/")

	url, err := store.Save(context.Background(), "submissions/e1/f.txt", strings.NewReader("my essay"))
	require.NoError(t, err)
	assert.Equal(t, "http://localhost:8000/uploads/submissions/e1/f.txt", url)

	b, err := os.ReadFile(filepath.Join(dir, "submissions", "e1", "f.txt"))
	require.NoError(t, err)
	assert.Equal(t, "my essay", string(b))
}

func TestLocalStore_SaveStaysInDir(t *testing.T) {
	dir := t.TempDir()
	store := NewLocalStore(filepath.Join(dir, "uploads"), "http://x")

	url, err := store.Save(context.Background(), "../../escape.txt", strings.NewReader("x"))
	require.NoError(t, err)
	assert.Equal(t, "http://x/escape.txt", url)
	assert.FileExists(t, filepath.Join(dir, "uploads", "escape.txt"))
}

func TestLocalStore_SaveRejectsMismatchedContent(t *testing.T) {
	dir := t.TempDir()
	store := NewLocalStore(dir, "http://x")

	_, err := store.Save(context.Background(), "submissions/e1/f.pdf", strings.NewReader("\x89PNG\r\n\x1a\nIHDR"))
	assert.IsType(t, &core.ValidationError{}, err)
	assert.NoFileExists(t, filepath.Join(dir, "submissions", "e1", "f.pdf"))
}

func TestLocalStore_Delete(t *testing.T) {
	dir := t.TempDir()
	store := NewLocalStore(dir, "http://x")
	ctx := context.Background()

	_, err := store.Save(ctx, "submissions/e1/f.txt", strings.NewReader("my essay"))
	require.NoError(t, err)
	require.FileExists(t, filepath.Join(dir, "submissions", "e1", "f.txt"))

	require.NoError(t, store.Delete(ctx, "submissions/e1/f.txt"))
	assert.NoFileExists(t, filepath.Join(dir, "submissions", "e1", "f.txt"))

	// already gone
	assert.NoError(t, store.Delete(ctx, "submissions/e1/f.txt"))
	assert.Error(t, store.Delete(ctx, "/"))
}

func TestNew(t *testing.T) {
	conf := core.NewTestConfig()
	conf.Storage.Backend = "local"
	fs, err := New(conf)
	require.NoError(t, err)
	assert.IsType(t, &LocalStore{}, fs)

	conf.Storage.Backend = "s3"
	_, err = New(conf)
	assert.Error(t, err)
}
