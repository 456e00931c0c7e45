// Package storage mirrors finalized uploads to an S3-compatible object store.
// The local public root stays authoritative; the mirror is a best-effort copy.
package storage

import (
	"context"
	"fmt"
	"io"
	"os"
	"time"
)

// PutObjectOptions define optional parameters for uploading objects.
// Size should be the exact number of bytes if known, -1 otherwise.
type PutObjectOptions struct {
	Size        int64
	ContentType string
	// DownloadName is offered to browsers as the attachment filename.
	DownloadName string
	Metadata     map[string]string
}

// ObjectInfo contains basic information about an object in storage.
type ObjectInfo struct {
	Key          string
	Size         int64
	ETag         string
	ContentType  string
	LastModified time.Time
	Metadata     map[string]string
}

// Mirror is the subset of an object store the upload pipeline needs.
type Mirror interface {
	// Put uploads an object under the given key using the provided reader and options.
	Put(ctx context.Context, key string, r io.Reader, opt PutObjectOptions) (ObjectInfo, error)
	// Delete removes an object by key. Deleting a missing key is not an error.
	Delete(ctx context.Context, key string) error
}

// PutFile streams the file at path into m under key.
func PutFile(ctx context.Context, m Mirror, key, path string, opt PutObjectOptions) (ObjectInfo, error) {
	f, err := os.Open(path)
	if err != nil {
		return ObjectInfo{}, fmt.Errorf("open %s: %w", key, err)
	}
	defer f.Close()

	st, err := f.Stat()
	if err != nil {
		return ObjectInfo{}, fmt.Errorf("stat %s: %w", key, err)
	}
	opt.Size = st.Size()
	return m.Put(ctx, key, f, opt)
}
