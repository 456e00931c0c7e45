package compress

import (
	"context"
	"fmt"
	"image"
	"image/png"
	"os"
	"path/filepath"
	"strings"

	"github.com/disintegration/imaging"

	"deptportal/internal/fsutil"
)

// ImageCompressor fits images inside a square bound and re-encodes them.
type ImageCompressor struct {
	maxDim  int
	quality int
}

// NewImageCompressor returns an ImageCompressor; non-positive values fall back to defaults.
func NewImageCompressor(maxDim, quality int) *ImageCompressor {
	if maxDim <= 0 {
		maxDim = DefaultMaxImageDimension
	}
	if quality <= 0 || quality > 100 {
		quality = DefaultJPEGQuality
	}
	return &ImageCompressor{maxDim: maxDim, quality: quality}
}

// Compress writes a resized, re-encoded copy of src to a sibling temp file and returns its path.
// src is only read.
func (c *ImageCompressor) Compress(ctx context.Context, src string) (string, error) {
	format, err := imaging.FormatFromFilename(src)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrCompressionFailed, err)
	}
	actual, err := contentFormat(src)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrCompressionFailed, err)
	}
	if actual != format {
		return "", fmt.Errorf("%w: %s named %s", ErrCompressionFailed, actual, strings.ToLower(filepath.Ext(src)))
	}

	img, err := imaging.Open(src, imaging.AutoOrientation(true))
	if err != nil {
		return "", fmt.Errorf("%w: decode %s: %v", ErrCompressionFailed, strings.ToLower(filepath.Ext(src)), err)
	}
	if err := ctx.Err(); err != nil {
		return "", fmt.Errorf("%w: %v", ErrCompressionFailed, err)
	}

	// Fit never upscales: smaller images come back at their original size.
	fitted := imaging.Fit(img, c.maxDim, c.maxDim, imaging.Lanczos)

	tmp, err := siblingTemp(src)
	if err != nil {
		return "", fmt.Errorf("%w: create temp: %v", ErrCompressionFailed, err)
	}

	out, err := os.OpenFile(tmp, os.O_WRONLY|os.O_TRUNC, 0o600)
	if err != nil {
		_ = fsutil.RemoveQuietly(tmp)
		return "", fmt.Errorf("%w: open temp: %v", ErrCompressionFailed, err)
	}
	encErr := imaging.Encode(out, fitted, format,
		imaging.JPEGQuality(c.quality),
		imaging.PNGCompressionLevel(png.BestCompression),
	)
	closeErr := out.Close()
	if encErr != nil || closeErr != nil {
		_ = fsutil.RemoveQuietly(tmp)
		if encErr == nil {
			encErr = closeErr
		}
		return "", fmt.Errorf("%w: encode: %v", ErrCompressionFailed, encErr)
	}
	return tmp, nil
}

// contentFormat reports the format the file's header declares.
func contentFormat(src string) (imaging.Format, error) {
	f, err := os.Open(src)
	if err != nil {
		return 0, err
	}
	defer f.Close()

	_, name, err := image.DecodeConfig(f)
	if err != nil {
		return 0, fmt.Errorf("read header: %w", err)
	}
	return imaging.FormatFromExtension(name)
}
