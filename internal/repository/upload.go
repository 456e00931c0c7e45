// Package repository contains data access layer abstractions.
// Implementations live in subpackages (e.g., postgres).
package repository

import (
	"context"

	"deptportal/internal/model"
)

// UploadRepository persists upload metadata. No business logic here.
type UploadRepository interface {
	// Create inserts a new upload record and returns the stored row.
	Create(ctx context.Context, u *model.Upload) (*model.Upload, error)

	// FindByID returns an upload by its ID, or sql.ErrNoRows.
	FindByID(ctx context.Context, id string) (*model.Upload, error)

	// List returns a filtered page of uploads, newest first, and the filtered total.
	List(ctx context.Context, f ListFilter, pq PageQuery) (*PageResult[model.Upload], error)

	// Delete removes an upload by ID. It returns nil if the row was deleted or did not exist.
	Delete(ctx context.Context, id string) error
}

// ListFilter narrows List. Empty fields match everything.
type ListFilter struct {
	Category string
	OwnerID  string
}

// PageQuery holds limit/offset pagination parameters.
type PageQuery struct {
	Limit  int
	Offset int
}

// PageResult is a generic pagination result wrapper.
type PageResult[T any] struct {
	Items []T
	Total int
}
