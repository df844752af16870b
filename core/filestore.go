package core

import (
	"context"
	"io"
)

// FileStore saves uploaded files and returns a public URL to them.
type FileStore interface {
	Save(ctx context.Context, name string, r io.Reader) (url string, err error)
	// Delete removes a saved file; deleting a missing file is not an error.
	Delete(ctx context.Context, name string) error
}
