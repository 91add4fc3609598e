package mocks

import (
	"context"
	"time"

	"github.com/stretchr/testify/mock"

	"docvoice/internal/model"
	"docvoice/internal/repository"
)

type MockJobRepository struct {
	mock.Mock
}

func (m *MockJobRepository) Create(ctx context.Context, job model.ConversionJob) (model.ConversionJob, error) {
	args := m.Called(ctx, job)
	return args.Get(0).(model.ConversionJob), args.Error(1)
}

func (m *MockJobRepository) FindByID(ctx context.Context, id string) (model.ConversionJob, error) {
	args := m.Called(ctx, id)
	return args.Get(0).(model.ConversionJob), args.Error(1)
}

func (m *MockJobRepository) ListByUser(ctx context.Context, userID string, pq repository.PageQuery) (*repository.PageResult[model.ConversionJob], error) {
	args := m.Called(ctx, userID, pq)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*repository.PageResult[model.ConversionJob]), args.Error(1)
}

func (m *MockJobRepository) Update(ctx context.Context, job model.ConversionJob, expected model.JobStatus) error {
	args := m.Called(ctx, job, expected)
	return args.Error(0)
}

func (m *MockJobRepository) Delete(ctx context.Context, id string) error {
	args := m.Called(ctx, id)
	return args.Error(0)
}

type MockUsageRepository struct {
	mock.Mock
}

func (m *MockUsageRepository) ReserveForDay(ctx context.Context, userID string, day time.Time, limit int) (bool, error) {
	args := m.Called(ctx, userID, day, limit)
	return args.Bool(0), args.Error(1)
}

func (m *MockUsageRepository) ReleaseForDay(ctx context.Context, userID string, day time.Time) error {
	args := m.Called(ctx, userID, day)
	return args.Error(0)
}
