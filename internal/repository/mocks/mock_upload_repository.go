package mocks

import (
	"context"

	"deptportal/internal/model"
	"deptportal/internal/repository"
	"github.com/stretchr/testify/mock"
)

type MockUploadRepository struct {
	mock.Mock
}

func (m *MockUploadRepository) Create(ctx context.Context, u *model.Upload) (*model.Upload, error) {
	args := m.Called(ctx, u)
	if f, ok := args.Get(0).(func(context.Context, *model.Upload) *model.Upload); ok {
		return f(ctx, u), args.Error(1)
	}
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Upload), args.Error(1)
}

func (m *MockUploadRepository) FindByID(ctx context.Context, id string) (*model.Upload, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Upload), args.Error(1)
}

func (m *MockUploadRepository) List(ctx context.Context, f repository.ListFilter, pq repository.PageQuery) (*repository.PageResult[model.Upload], error) {
	args := m.Called(ctx, f, pq)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*repository.PageResult[model.Upload]), args.Error(1)
}

func (m *MockUploadRepository) Delete(ctx context.Context, id string) error {
	args := m.Called(ctx, id)
	return args.Error(0)
}
