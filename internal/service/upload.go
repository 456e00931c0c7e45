package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"deptportal/internal/category"
	"deptportal/internal/fsutil"
	"deptportal/internal/model"
	"deptportal/internal/repository"
	"deptportal/internal/resolver"
	"deptportal/internal/storage"
)

const (
	defaultPageSize = 10
	maxPageSize     = 100
)

var tracer = otel.Tracer("deptportal/internal/service")

// UploadListResult is the service-level DTO for paginated uploads.
type UploadListResult struct {
	Items []model.Upload `json:"data"`
	Total int            `json:"total"`
}

// ListFilter narrows List. Category accepts a category name or its route slug.
type ListFilter struct {
	Category string
	OwnerID  string
}

// Actor is the authenticated caller of a management operation.
type Actor struct {
	OwnerID string
	Role    string
}

// CanManage reports whether a may delete u: department admins always, otherwise only the
// owner with the role that owns the category.
func (a Actor) CanManage(u *model.Upload) bool {
	if a.Role == category.OwnerDepartment.SessionRole() {
		return true
	}
	if a.OwnerID == "" || resolver.SanitizeOwnerID(strings.TrimSpace(a.OwnerID)) != u.OwnerID {
		return false
	}
	p, err := category.Lookup(u.Category)
	if err != nil {
		return false
	}
	return a.Role == p.OwnerKind.SessionRole()
}

// Acceptor validates an incoming upload and writes it under the public root.
type Acceptor interface {
	Accept(ctx context.Context, req model.UploadRequest) (model.StoredFile, error)
}

// Compressor shrinks an accepted file in place.
type Compressor interface {
	Compress(ctx context.Context, sf model.StoredFile) (model.CompressionResult, error)
}

// UploadService defines the use cases for handling uploads.
type UploadService interface {
	// AcceptAndStore runs one upload through the gate and the compressor and records it.
	// Failures are *Failure values; an unknown category returns category.ErrUnknownCategory.
	AcceptAndStore(ctx context.Context, req model.UploadRequest) (*model.Receipt, error)

	// List returns uploads matching f using limit/offset and a total count.
	List(ctx context.Context, f ListFilter, limit, offset int) (*UploadListResult, error)

	// Get returns a single upload by its ID.
	Get(ctx context.Context, id string) (*model.Upload, error)

	// Delete removes an upload's file, its mirrored copy and its record.
	Delete(ctx context.Context, id string, actor Actor) error
}

// Options carries the configuration-driven parts of the service.
type Options struct {
	// PublicRoot is the directory RelativePath values are relative to.
	PublicRoot string
	// PublicURLPrefix is prepended to RelativePath to build receipt URLs.
	PublicURLPrefix string
	// BestEffort keeps uploads whose compression failed instead of rejecting them. When
	// false the accepted file is removed before CompressionFailed is reported, unless a
	// concurrent upload has already replaced it at the same path.
	BestEffort bool
	// Mirror optionally copies finalized files to object storage.
	Mirror storage.Mirror
	Logger *slog.Logger
}

type uploadService struct {
	gate       Acceptor
	compressor Compressor
	repo       repository.UploadRepository
	metrics    *Metrics
	mirror     storage.Mirror
	root       string
	urlPrefix  string
	bestEffort bool
	log        *slog.Logger
}

// NewUploadService constructs a new UploadService.
func NewUploadService(g Acceptor, c Compressor, repo repository.UploadRepository, m *Metrics, opts Options) UploadService {
	log := opts.Logger
	if log == nil {
		log = slog.Default()
	}
	return &uploadService{
		gate:       g,
		compressor: c,
		repo:       repo,
		metrics:    m,
		mirror:     opts.Mirror,
		root:       opts.PublicRoot,
		urlPrefix:  opts.PublicURLPrefix,
		bestEffort: opts.BestEffort,
		log:        log.With("component", "upload"),
	}
}

func (s *uploadService) AcceptAndStore(ctx context.Context, req model.UploadRequest) (*model.Receipt, error) {
	p, err := category.Lookup(req.Category)
	if err != nil {
		return nil, err
	}
	cat := string(p.Category)
	id := uuid.NewString()

	ctx, span := tracer.Start(ctx, "upload.AcceptAndStore", trace.WithAttributes(
		attribute.String("upload.id", id),
		attribute.String("upload.category", cat),
	))
	defer span.End()

	log := s.log.With("upload_id", id, "category", cat)
	if sc := span.SpanContext(); sc.HasTraceID() {
		log = log.With("trace_id", sc.TraceID().String())
	}
	run := newTracker(log)

	fail := func(err error) error {
		f := classify(err)
		run.fail(f)
		s.metrics.failed(cat, f.Kind)
		span.RecordError(err)
		span.SetStatus(codes.Error, string(f.Kind))
		return f
	}

	owner, err := resolver.ResolveOwner(req.Owner)
	if err != nil {
		return nil, fail(err)
	}
	run.advance(StateOwnerResolved, "owner_id", owner)

	sf, err := s.gate.Accept(ctx, req)
	if err != nil {
		return nil, fail(err)
	}
	accepted, _ := os.Stat(sf.AbsolutePath)
	span.SetAttributes(attribute.String("upload.path", sf.RelativePath), attribute.Int64("upload.bytes", sf.SizeBytes))
	run.advance(StateAccepted, "path", sf.RelativePath, "bytes", sf.SizeBytes, "mime", sf.MimeType)

	run.advance(StateCompressing)
	start := time.Now()
	res, err := s.compressor.Compress(ctx, sf)
	s.metrics.compressed(cat, err == nil, time.Since(start).Seconds())
	if err != nil {
		if !s.bestEffort {
			if rmErr := fsutil.RemoveIfSame(sf.AbsolutePath, accepted); rmErr != nil {
				log.Error("remove uncompressed upload", "path", sf.RelativePath, "error", rmErr)
			}
			return nil, fail(err)
		}
		log.Warn("compression failed, keeping original", "path", sf.RelativePath, "error", err)
		res = model.CompressionResult{OriginalSizeBytes: sf.SizeBytes, FinalSizeBytes: sf.SizeBytes}
	}

	rec := &model.Upload{
		ID:                id,
		Category:          cat,
		OwnerID:           sf.OwnerID,
		OriginalName:      req.File.OriginalName,
		RelativePath:      sf.RelativePath,
		MimeType:          sf.MimeType,
		SizeBytes:         res.FinalSizeBytes,
		OriginalSizeBytes: res.OriginalSizeBytes,
		Compressed:        res.Succeeded,
		CreatedAt:         time.UnixMilli(sf.CreatedAtMillis).UTC(),
	}
	stored, err := s.repo.Create(ctx, rec)
	if err != nil {
		// Rollback: the file must not outlive a failed insert.
		if rmErr := fsutil.RemoveQuietly(sf.AbsolutePath); rmErr != nil {
			return nil, fail(fmt.Errorf("db save failed: %v; rollback delete failed: %v", err, rmErr))
		}
		return nil, fail(fmt.Errorf("db save failed: %w", err))
	}

	s.mirrorPut(ctx, log, stored)

	run.advance(StateFinalized, "original_bytes", res.OriginalSizeBytes, "final_bytes", res.FinalSizeBytes)
	s.metrics.finalized(cat, res.OriginalSizeBytes, res.FinalSizeBytes)

	return &model.Receipt{
		ID:                stored.ID,
		Category:          stored.Category,
		OwnerID:           stored.OwnerID,
		RelativePath:      stored.RelativePath,
		URL:               PublicURL(s.urlPrefix, stored.RelativePath),
		SizeBytes:         stored.SizeBytes,
		OriginalSizeBytes: stored.OriginalSizeBytes,
		Compressed:        stored.Compressed,
	}, nil
}

func (s *uploadService) mirrorPut(ctx context.Context, log *slog.Logger, u *model.Upload) {
	if s.mirror == nil {
		return
	}
	_, err := storage.PutFile(ctx, s.mirror, u.RelativePath, s.abs(u.RelativePath), storage.PutObjectOptions{
		ContentType:  u.MimeType,
		DownloadName: u.OriginalName,
		Metadata: map[string]string{
			"original-filename": u.OriginalName,
			"owner-id":          u.OwnerID,
			"category":          u.Category,
		},
	})
	if err != nil {
		s.metrics.mirrorFailures.Inc()
		log.Warn("mirror upload failed", "key", u.RelativePath, "error", err)
	}
}

// List returns paginated uploads without exposing repository types.
func (s *uploadService) List(ctx context.Context, f ListFilter, limit, offset int) (*UploadListResult, error) {
	if limit <= 0 {
		limit = defaultPageSize
	}
	if limit > maxPageSize {
		limit = maxPageSize
	}
	if offset < 0 {
		offset = 0
	}

	rf := repository.ListFilter{}
	if f.Category != "" {
		p, err := category.Lookup(f.Category)
		if err != nil {
			return nil, err
		}
		rf.Category = string(p.Category)
	}
	if owner := strings.TrimSpace(f.OwnerID); owner != "" {
		rf.OwnerID = resolver.SanitizeOwnerID(owner)
	}

	res, err := s.repo.List(ctx, rf, repository.PageQuery{Limit: limit, Offset: offset})
	if err != nil {
		return nil, err
	}
	return &UploadListResult{Items: res.Items, Total: res.Total}, nil
}

// Get returns an upload by ID.
func (s *uploadService) Get(ctx context.Context, id string) (*model.Upload, error) {
	if id == "" {
		return nil, ErrIDRequired
	}
	u, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return u, nil
}

// Delete removes the local file first; if that fails the record is kept so the file stays
// reachable for another attempt.
func (s *uploadService) Delete(ctx context.Context, id string, actor Actor) error {
	u, err := s.Get(ctx, id)
	if err != nil {
		return err
	}
	if !actor.CanManage(u) {
		return ErrForbidden
	}

	if err := os.Remove(s.abs(u.RelativePath)); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("delete file: %w", err)
	}
	if s.mirror != nil {
		if err := s.mirror.Delete(ctx, u.RelativePath); err != nil {
			s.metrics.mirrorFailures.Inc()
			s.log.Warn("mirror delete failed", "upload_id", id, "key", u.RelativePath, "error", err)
		}
	}
	if err := s.repo.Delete(ctx, id); err != nil {
		return err
	}
	s.log.Info("upload deleted", "upload_id", id, "path", u.RelativePath, "by", actor.OwnerID, "role", actor.Role)
	return nil
}

func (s *uploadService) abs(rel string) string {
	return filepath.Join(s.root, filepath.FromSlash(rel))
}

// PublicURL joins prefix and a slash-separated relative path, escaping each segment.
// prefix may be a path ("/public") or an absolute URL.
func PublicURL(prefix, rel string) string {
	segs := strings.Split(path.Clean("/"+rel)[1:], "/")
	for i, seg := range segs {
		segs[i] = url.PathEscape(seg)
	}
	return strings.TrimRight(prefix, "/") + "/" + strings.Join(segs, "/")
}
