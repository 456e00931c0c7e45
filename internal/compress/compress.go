package compress

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"deptportal/internal/fsutil"
	"deptportal/internal/model"
)

var ErrCompressionFailed = errors.New("compression failed")

var tracer = otel.Tracer("deptportal/internal/compress")

const (
	DefaultMaxImageDimension = 2048
	DefaultJPEGQuality       = 80
)

// Options configures a Pipeline.
type Options struct {
	MaxImageDimension int
	JPEGQuality       int
	// PDF compresses documents. A nil PDF makes documents pass through untouched.
	PDF *Ghostscript
}

// Pipeline post-processes accepted files in place, choosing the image or document path by
// file extension. A failed attempt never modifies the original file.
type Pipeline struct {
	images *ImageCompressor
	pdf    *Ghostscript
	log    *slog.Logger
}

// New constructs a Pipeline. A nil logger falls back to slog.Default().
func New(opts Options, logger *slog.Logger) *Pipeline {
	if logger == nil {
		logger = slog.Default()
	}
	return &Pipeline{
		images: NewImageCompressor(opts.MaxImageDimension, opts.JPEGQuality),
		pdf:    opts.PDF,
		log:    logger.With("component", "compress"),
	}
}

type kind int

const (
	kindOther kind = iota
	kindImage
	kindPDF
)

func (k kind) String() string {
	switch k {
	case kindImage:
		return "image"
	case kindPDF:
		return "pdf"
	default:
		return "other"
	}
}

func kindOf(p string) kind {
	switch strings.ToLower(strings.TrimPrefix(filepath.Ext(p), ".")) {
	case "jpg", "jpeg", "png":
		return kindImage
	case "pdf":
		return kindPDF
	default:
		return kindOther
	}
}

// Compress shrinks sf in place. Files that are neither images nor PDFs pass through.
func (p *Pipeline) Compress(ctx context.Context, sf model.StoredFile) (res model.CompressionResult, err error) {
	k := kindOf(sf.AbsolutePath)
	ctx, span := tracer.Start(ctx, "compress."+k.String(), trace.WithAttributes(
		attribute.String("upload.path", sf.RelativePath),
	))
	defer func() {
		span.SetAttributes(
			attribute.Int64("compress.original_bytes", res.OriginalSizeBytes),
			attribute.Int64("compress.final_bytes", res.FinalSizeBytes),
			attribute.Bool("compress.succeeded", res.Succeeded),
		)
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, "compression failed")
		}
		span.End()
	}()

	info, err := os.Stat(sf.AbsolutePath)
	if err != nil {
		return model.CompressionResult{}, fmt.Errorf("%w: stat original: %v", ErrCompressionFailed, err)
	}
	before := info.Size()
	start := time.Now()

	var tmp string
	switch k {
	case kindImage:
		tmp, err = p.images.Compress(ctx, sf.AbsolutePath)
	case kindPDF:
		if p.pdf == nil {
			return passThrough(before), nil
		}
		tmp, err = p.pdf.Compress(ctx, sf.AbsolutePath)
	default:
		return passThrough(before), nil
	}
	if err != nil {
		p.log.Warn("compression failed",
			"path", sf.RelativePath,
			"error", err,
			"duration_ms", time.Since(start).Milliseconds(),
		)
		return model.CompressionResult{OriginalSizeBytes: before, FinalSizeBytes: before}, err
	}

	after, err := p.commit(tmp, sf.AbsolutePath, before)
	if err != nil {
		return model.CompressionResult{OriginalSizeBytes: before, FinalSizeBytes: before}, err
	}

	p.log.Info("compressed",
		"path", sf.RelativePath,
		"original_bytes", before,
		"final_bytes", after,
		"duration_ms", time.Since(start).Milliseconds(),
	)
	return model.CompressionResult{OriginalSizeBytes: before, FinalSizeBytes: after, Succeeded: true}, nil
}

// commit swaps the compressed temp file in only when it is actually smaller.
func (p *Pipeline) commit(tmp, dst string, before int64) (int64, error) {
	info, err := os.Stat(tmp)
	if err != nil {
		_ = fsutil.RemoveQuietly(tmp)
		return 0, fmt.Errorf("%w: stat output: %v", ErrCompressionFailed, err)
	}
	if info.Size() == 0 {
		_ = fsutil.RemoveQuietly(tmp)
		return 0, fmt.Errorf("%w: empty output", ErrCompressionFailed)
	}
	if info.Size() >= before {
		_ = fsutil.RemoveQuietly(tmp)
		return before, nil
	}
	if err := fsutil.ReplaceFile(tmp, dst); err != nil {
		_ = fsutil.RemoveQuietly(tmp)
		return 0, fmt.Errorf("%w: replace original: %v", ErrCompressionFailed, err)
	}
	return info.Size(), nil
}

func passThrough(size int64) model.CompressionResult {
	return model.CompressionResult{OriginalSizeBytes: size, FinalSizeBytes: size, Succeeded: true}
}

// siblingTemp reserves an empty temp file next to src, keeping src's extension so tools that
// infer the format from the name still work.
func siblingTemp(src string) (string, error) {
	f, err := os.CreateTemp(filepath.Dir(src), fsutil.CompressTempPrefix+"*"+filepath.Ext(src))
	if err != nil {
		return "", err
	}
	name := f.Name()
	if err := f.Close(); err != nil {
		_ = fsutil.RemoveQuietly(name)
		return "", err
	}
	return name, nil
}
