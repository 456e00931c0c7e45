package compress

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strings"
	"time"

	"deptportal/internal/fsutil"
)

const DefaultPDFTimeout = 30 * time.Second

// ResolveGhostscript picks the Ghostscript executable for goos. An override always wins.
// The bare name is looked up on PATH once; an empty result means no Ghostscript is
// installed and PDFs should pass through uncompressed.
func ResolveGhostscript(goos, override string) string {
	if override != "" {
		return override
	}
	name := "gs"
	if goos == "windows" {
		name = "gswin64c"
	}
	if p, err := lookPath(name); err == nil {
		return p
	}
	return ""
}

var lookPath = exec.LookPath

// Ghostscript recompresses PDFs with the ebook preset by running gs as a subprocess.
type Ghostscript struct {
	binary  string
	timeout time.Duration
}

// NewGhostscript returns a runner for the given executable. A non-positive timeout uses
// DefaultPDFTimeout.
func NewGhostscript(binary string, timeout time.Duration) *Ghostscript {
	if timeout <= 0 {
		timeout = DefaultPDFTimeout
	}
	return &Ghostscript{binary: binary, timeout: timeout}
}

// Binary returns the resolved executable.
func (g *Ghostscript) Binary() string { return g.binary }

// Args builds the fixed argument list for one conversion.
func Args(in, out string) []string {
	return []string{
		"-sDEVICE=pdfwrite",
		"-dCompatibilityLevel=1.4",
		"-dPDFSETTINGS=/ebook",
		"-dNOPAUSE",
		"-dQUIET",
		"-dBATCH",
		"-sOutputFile=" + out,
		in,
	}
}

// Compress converts src into a sibling temp file and returns its path. src is only read.
func (g *Ghostscript) Compress(ctx context.Context, src string) (string, error) {
	tmp, err := siblingTemp(src)
	if err != nil {
		return "", fmt.Errorf("%w: create temp: %v", ErrCompressionFailed, err)
	}

	ctx, cancel := context.WithTimeout(ctx, g.timeout)
	defer cancel()

	var stderr bytes.Buffer
	cmd := exec.CommandContext(ctx, g.binary, Args(src, tmp)...)
	cmd.Stderr = &stderr
	cmd.WaitDelay = time.Second

	if err := cmd.Run(); err != nil {
		_ = fsutil.RemoveQuietly(tmp)
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return "", fmt.Errorf("%w: ghostscript timed out after %s", ErrCompressionFailed, g.timeout)
		}
		return "", fmt.Errorf("%w: ghostscript: %v: %s", ErrCompressionFailed, err, lastLine(stderr.String()))
	}
	return tmp, nil
}

func lastLine(s string) string {
	s = strings.TrimSpace(s)
	if i := strings.LastIndexByte(s, '\n'); i >= 0 {
		return s[i+1:]
	}
	return s
}
