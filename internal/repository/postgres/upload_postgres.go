package postgres

import (
	"context"
	"database/sql"

	"deptportal/internal/model"
	"deptportal/internal/repository"
)

// UploadPostgres is a PostgreSQL implementation of repository.UploadRepository.
type UploadPostgres struct {
	db *sql.DB
}

// NewUploadPostgres creates a new UploadPostgres repository.
func NewUploadPostgres(db *sql.DB) *UploadPostgres {
	return &UploadPostgres{db: db}
}

var _ repository.UploadRepository = (*UploadPostgres)(nil)

const uploadColumns = `id, category, owner_id, original_name, relative_path, mime_type, size_bytes, original_size_bytes, compressed, created_at`

type scanner interface {
	Scan(dest ...any) error
}

func scanUpload(s scanner, u *model.Upload) error {
	return s.Scan(
		&u.ID,
		&u.Category,
		&u.OwnerID,
		&u.OriginalName,
		&u.RelativePath,
		&u.MimeType,
		&u.SizeBytes,
		&u.OriginalSizeBytes,
		&u.Compressed,
		&u.CreatedAt,
	)
}

// Create inserts a new upload row and returns the stored record.
func (r *UploadPostgres) Create(ctx context.Context, u *model.Upload) (*model.Upload, error) {
	const q = `
		INSERT INTO uploads (` + uploadColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		ON CONFLICT (relative_path) DO UPDATE SET
			id = EXCLUDED.id,
			original_name = EXCLUDED.original_name,
			mime_type = EXCLUDED.mime_type,
			size_bytes = EXCLUDED.size_bytes,
			original_size_bytes = EXCLUDED.original_size_bytes,
			compressed = EXCLUDED.compressed,
			created_at = EXCLUDED.created_at
		RETURNING ` + uploadColumns
	row := r.db.QueryRowContext(ctx, q,
		u.ID,
		u.Category,
		u.OwnerID,
		u.OriginalName,
		u.RelativePath,
		u.MimeType,
		u.SizeBytes,
		u.OriginalSizeBytes,
		u.Compressed,
		u.CreatedAt,
	)
	var out model.Upload
	if err := scanUpload(row, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// FindByID fetches a single upload by its ID.
func (r *UploadPostgres) FindByID(ctx context.Context, id string) (*model.Upload, error) {
	const q = `SELECT ` + uploadColumns + ` FROM uploads WHERE id = $1`
	var u model.Upload
	if err := scanUpload(r.db.QueryRowContext(ctx, q, id), &u); err != nil {
		return nil, err
	}
	return &u, nil
}

// List returns uploads matching f using LIMIT/OFFSET pagination and the filtered total.
func (r *UploadPostgres) List(ctx context.Context, f repository.ListFilter, pq repository.PageQuery) (*repository.PageResult[model.Upload], error) {
	const where = `WHERE ($1 = '' OR category = $1) AND ($2 = '' OR owner_id = $2)`

	var total int
	if err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM uploads `+where, f.Category, f.OwnerID).Scan(&total); err != nil {
		return nil, err
	}

	const qList = `SELECT ` + uploadColumns + ` FROM uploads ` + where + `
		ORDER BY created_at DESC, id DESC
		LIMIT $3 OFFSET $4`
	rows, err := r.db.QueryContext(ctx, qList, f.Category, f.OwnerID, pq.Limit, pq.Offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	items := make([]model.Upload, 0)
	for rows.Next() {
		var u model.Upload
		if err := scanUpload(rows, &u); err != nil {
			return nil, err
		}
		items = append(items, u)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	return &repository.PageResult[model.Upload]{
		Items: items,
		Total: total,
	}, nil
}

// Delete removes an upload by ID. A missing row is not an error.
func (r *UploadPostgres) Delete(ctx context.Context, id string) error {
	_, err := r.db.ExecContext(ctx, `DELETE FROM uploads WHERE id = $1`, id)
	return err
}
