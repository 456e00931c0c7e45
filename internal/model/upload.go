package model

import (
	"io"
	"time"
)

// OwnerSources carries every place an owner identifier may come from for one request.
// The resolver tries them in field order: Route, Body, Query, Session.
type OwnerSources struct {
	Route   string
	Body    string
	Query   string
	Session string
}

// RawFile is the incoming file as seen by the HTTP layer.
// SizeBytes is -1 when the client did not declare a size.
type RawFile struct {
	OriginalName string
	MimeType     string
	SizeBytes    int64
	Reader       io.Reader
}

// UploadRequest is a single upload before anything touches the disk.
type UploadRequest struct {
	Category string
	Owner    OwnerSources
	File     RawFile
}

// StoredFile is a file the gate accepted onto disk.
type StoredFile struct {
	AbsolutePath    string
	RelativePath    string
	Category        string
	OwnerID         string
	MimeType        string
	SizeBytes       int64
	CreatedAtMillis int64
}

// CompressionResult reports what the compression stage did to a stored file.
type CompressionResult struct {
	OriginalSizeBytes int64
	FinalSizeBytes    int64
	Succeeded         bool
}

// Upload is the persisted metadata record that references a stored file.
type Upload struct {
	ID                string    `json:"id"`
	Category          string    `json:"category"`
	OwnerID           string    `json:"owner_id"`
	OriginalName      string    `json:"original_name"`
	RelativePath      string    `json:"relative_path"`
	MimeType          string    `json:"mime_type"`
	SizeBytes         int64     `json:"size_bytes"`
	OriginalSizeBytes int64     `json:"original_size_bytes"`
	Compressed        bool      `json:"compressed"`
	CreatedAt         time.Time `json:"created_at"`
}

// Receipt is returned to the caller once an upload is finalized.
type Receipt struct {
	ID                string `json:"id"`
	Category          string `json:"category"`
	OwnerID           string `json:"owner_id"`
	RelativePath      string `json:"relative_path"`
	URL               string `json:"url"`
	SizeBytes         int64  `json:"size_bytes"`
	OriginalSizeBytes int64  `json:"original_size_bytes"`
	Compressed        bool   `json:"compressed"`
}
