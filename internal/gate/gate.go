package gate

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"os"
	"path"
	"path/filepath"
	"strings"
	"time"

	"deptportal/internal/category"
	"deptportal/internal/fsutil"
	"deptportal/internal/model"
	"deptportal/internal/resolver"
)

var (
	ErrUnsupportedMediaType = errors.New("file type is not allowed for this category")
	ErrFileTooLarge         = errors.New("file exceeds the category size limit")
	ErrNoContent            = errors.New("file content is missing")
)

// sniffLen matches what http.DetectContentType looks at.
const sniffLen = 512

// Gate validates an upload against its category policy and streams it onto disk.
// Nothing is written until the owner, declared type, declared size and sniffed type pass
// and the stored extension names the sniffed type.
type Gate struct {
	resolver *resolver.Resolver
	now      func() time.Time
}

// Option configures a Gate.
type Option func(*Gate)

// WithClock overrides the clock used for filename timestamps.
func WithClock(now func() time.Time) Option {
	return func(g *Gate) { g.now = now }
}

// New constructs a Gate writing under the resolver's root.
func New(r *resolver.Resolver, opts ...Option) *Gate {
	g := &Gate{resolver: r, now: time.Now}
	for _, o := range opts {
		o(g)
	}
	return g
}

// Accept validates req and writes it to {dir}/{base}_{millis}{ext}.
// On any error no file is left at the destination and no temp file remains.
func (g *Gate) Accept(ctx context.Context, req model.UploadRequest) (model.StoredFile, error) {
	p, err := category.Lookup(req.Category)
	if err != nil {
		return model.StoredFile{}, err
	}

	dest, err := g.resolver.Plan(p, req.Owner)
	if err != nil {
		return model.StoredFile{}, err
	}

	if !p.Allows(req.File.MimeType) {
		return model.StoredFile{}, fmt.Errorf("%w: declared %q", ErrUnsupportedMediaType, req.File.MimeType)
	}
	if req.File.SizeBytes > p.MaxSizeBytes {
		return model.StoredFile{}, fmt.Errorf("%w: declared %d bytes, limit %d", ErrFileTooLarge, req.File.SizeBytes, p.MaxSizeBytes)
	}
	if req.File.Reader == nil {
		return model.StoredFile{}, ErrNoContent
	}

	src := &ctxReader{ctx: ctx, r: req.File.Reader}

	head := make([]byte, sniffLen)
	n, err := io.ReadFull(src, head)
	if err != nil && !errors.Is(err, io.EOF) && !errors.Is(err, io.ErrUnexpectedEOF) {
		return model.StoredFile{}, fmt.Errorf("read upload: %w", err)
	}
	head = head[:n]
	sniffed := http.DetectContentType(head)
	if !p.Allows(sniffed) {
		return model.StoredFile{}, fmt.Errorf("%w: detected %q", ErrUnsupportedMediaType, sniffed)
	}

	now := g.now()
	filename := resolver.Filename(req.File.OriginalName, now)
	if ext := path.Ext(filename); mediaType(mime.TypeByExtension(strings.ToLower(ext))) != mediaType(sniffed) {
		return model.StoredFile{}, fmt.Errorf("%w: extension %q but detected %q", ErrUnsupportedMediaType, ext, sniffed)
	}

	if err := g.resolver.Ensure(dest); err != nil {
		return model.StoredFile{}, err
	}

	finalPath := filepath.Join(dest.Dir, filename)

	written, err := g.stream(dest.Dir, finalPath, io.MultiReader(bytes.NewReader(head), src), p.MaxSizeBytes)
	if err != nil {
		return model.StoredFile{}, err
	}

	return model.StoredFile{
		AbsolutePath:    finalPath,
		RelativePath:    path.Join(dest.RelDir, filename),
		Category:        string(p.Category),
		OwnerID:         dest.OwnerID,
		MimeType:        sniffed,
		SizeBytes:       written,
		CreatedAtMillis: now.UnixMilli(),
	}, nil
}

// stream copies r into a sibling temp file, stopping as soon as limit is exceeded, and
// renames the temp file into finalPath only once every byte landed.
func (g *Gate) stream(dir, finalPath string, r io.Reader, limit int64) (int64, error) {
	tmp, err := os.CreateTemp(dir, fsutil.UploadTempPrefix+"*")
	if err != nil {
		return 0, fmt.Errorf("create temp file: %w", err)
	}
	tmpPath := tmp.Name()
	committed := false
	defer func() {
		if !committed {
			_ = tmp.Close()
			_ = fsutil.RemoveQuietly(tmpPath)
		}
	}()

	written, err := io.Copy(tmp, io.LimitReader(r, limit+1))
	if err != nil {
		return 0, fmt.Errorf("write upload: %w", err)
	}
	if written > limit {
		return 0, fmt.Errorf("%w: limit %d bytes", ErrFileTooLarge, limit)
	}
	if err := tmp.Sync(); err != nil {
		return 0, fmt.Errorf("sync upload: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return 0, fmt.Errorf("close upload: %w", err)
	}
	// Two uploads landing in the same millisecond rename over each other; the last one wins
	// and neither is ever observed half written.
	if err := fsutil.ReplaceFile(tmpPath, finalPath); err != nil {
		return 0, fmt.Errorf("finalize upload: %w", err)
	}
	committed = true
	return written, nil
}

// ctxReader stops a copy as soon as the request context is done.
type ctxReader struct {
	ctx context.Context
	r   io.Reader
}

func (c *ctxReader) Read(p []byte) (int, error) {
	if err := c.ctx.Err(); err != nil {
		return 0, err
	}
	return c.r.Read(p)
}

// mediaType drops any parameters from a content type.
func mediaType(ct string) string {
	t, _, _ := strings.Cut(ct, ";")
	return strings.ToLower(strings.TrimSpace(t))
}
