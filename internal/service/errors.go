package service

import (
	"errors"

	"deptportal/internal/compress"
	"deptportal/internal/gate"
	"deptportal/internal/resolver"
)

var (
	ErrIDRequired = errors.New("id is required")
	ErrNotFound   = errors.New("upload not found")
	ErrForbidden  = errors.New("not allowed to manage this upload")
)

// Kind classifies why an upload failed.
type Kind string

const (
	KindMissingOwnerIdentifier Kind = "MissingOwnerIdentifier"
	KindUnsupportedMediaType   Kind = "UnsupportedMediaType"
	KindFileTooLarge           Kind = "FileTooLarge"
	KindCompressionFailed      Kind = "CompressionFailed"
	KindFilesystemError        Kind = "FilesystemError"
)

// Failure is the error AcceptAndStore returns for a failed upload.
// Error() is safe to show to end users; the cause is only reachable through Unwrap.
type Failure struct {
	Kind  Kind
	cause error
}

func (f *Failure) Error() string {
	switch f.Kind {
	case KindMissingOwnerIdentifier:
		return "owner identifier is required"
	case KindUnsupportedMediaType:
		return "file type is not allowed for this category"
	case KindFileTooLarge:
		return "file exceeds the size limit for this category"
	case KindCompressionFailed:
		return "file could not be compressed"
	default:
		return "file could not be stored"
	}
}

func (f *Failure) Unwrap() error { return f.cause }

// Cause returns the underlying error for internal logs.
func (f *Failure) Cause() error { return f.cause }

// KindOf reports the failure kind carried by err, if any.
func KindOf(err error) (Kind, bool) {
	var f *Failure
	if errors.As(err, &f) {
		return f.Kind, true
	}
	return "", false
}

// classify maps a pipeline error onto a Failure. Anything unrecognised, including
// cancellation and persistence errors, is a filesystem failure.
func classify(err error) *Failure {
	var f *Failure
	if errors.As(err, &f) {
		return f
	}
	kind := KindFilesystemError
	switch {
	case errors.Is(err, resolver.ErrMissingOwnerIdentifier):
		kind = KindMissingOwnerIdentifier
	case errors.Is(err, gate.ErrUnsupportedMediaType):
		kind = KindUnsupportedMediaType
	case errors.Is(err, gate.ErrFileTooLarge):
		kind = KindFileTooLarge
	case errors.Is(err, compress.ErrCompressionFailed):
		kind = KindCompressionFailed
	}
	return &Failure{Kind: kind, cause: err}
}
