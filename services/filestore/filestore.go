package filestore

import (
	"bytes"
	"io"
	"mime"
	"path"
	"strings"

	"github.com/gabriel-vasile/mimetype"
	"github.com/pkg/errors"

	"github.com/trezcool/studylab/core"
)

// sniffLen is how many leading bytes are read to detect the content type.
const sniffLen = 3072

// sniff detects the content type of the file name read from r, and returns a reader replaying the whole content.
// Content contradicting the extension of name is rejected with a core.ValidationError.
func sniff(name string, r io.Reader) (contentType string, full io.Reader, err error) {
	head := make([]byte, sniffLen)
	n, err := io.ReadFull(r, head)
	if err != nil && !errors.Is(err, io.ErrUnexpectedEOF) && !errors.Is(err, io.EOF) {
		return "", nil, errors.Wrap(err, "reading file head")
	}
	head = head[:n]

	detected := mimetype.Detect(head)
	ext := strings.ToLower(path.Ext(name))
	if !matchesExtension(detected, ext) {
		return "", nil, core.NewValidationError(errors.Errorf(
			"file content (%s) does not match its extension '%s'", detected.String(), strings.TrimPrefix(ext, ".")))
	}
	return detected.String(), io.MultiReader(bytes.NewReader(head), r), nil
}

// matchesExtension reports whether content of the detected type may be stored under ext.
// Plain text and undetected binary content match any extension, as does an extension with no known type.
func matchesExtension(detected *mimetype.MIME, ext string) bool {
	if ext == "" || detected.Is("application/octet-stream") {
		return true
	}
	for m := detected; m != nil; m = m.Parent() {
		if m.Extension() == ext || m.Is("text/plain") {
			return true
		}
	}

	mediaType, _, err := mime.ParseMediaType(mime.TypeByExtension(ext))
	if err != nil {
		return true
	}
	expected := mimetype.Lookup(mediaType)
	if expected == nil {
		return true
	}
	// e.g. a .docx sniffed as its zip container
	for m := expected; m != nil; m = m.Parent() {
		if m.Is(detected.String()) && !m.Is("application/octet-stream") {
			return true
		}
	}
	return false
}

// New returns the file store selected by conf.Storage.Backend.
func New(conf *core.Config) (core.FileStore, error) {
	switch conf.Storage.Backend {
	case "", "local":
		return NewLocalStore(conf.Storage.LocalDir, conf.Storage.BaseURL), nil
	case "gcs":
		return NewGCSStore(conf.Storage.GCSBucket, conf.Storage.BaseURL)
	default:
		return nil, errors.Errorf("unknown storage backend %q", conf.Storage.Backend)
	}
}
