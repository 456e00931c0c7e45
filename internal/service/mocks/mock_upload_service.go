package mocks

import (
	"context"

	"deptportal/internal/model"
	"deptportal/internal/service"
	"github.com/stretchr/testify/mock"
)

type MockUploadService struct {
	mock.Mock
}

func (m *MockUploadService) AcceptAndStore(ctx context.Context, req model.UploadRequest) (*model.Receipt, error) {
	args := m.Called(ctx, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Receipt), args.Error(1)
}

func (m *MockUploadService) List(ctx context.Context, f service.ListFilter, limit, offset int) (*service.UploadListResult, error) {
	args := m.Called(ctx, f, limit, offset)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*service.UploadListResult), args.Error(1)
}

func (m *MockUploadService) Get(ctx context.Context, id string) (*model.Upload, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Upload), args.Error(1)
}

func (m *MockUploadService) Delete(ctx context.Context, id string, actor service.Actor) error {
	args := m.Called(ctx, id, actor)
	return args.Error(0)
}
