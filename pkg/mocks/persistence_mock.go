package mocks

import (
	"context"

	"github.com/stretchr/testify/mock"

	"github.com/nova-hud/nova/pkg/models"
)

// MockPersistence is a mock implementation of persistence.Persistence interface.
type MockPersistence struct {
	mock.Mock
}

func (m *MockPersistence) Missions(ctx context.Context) ([]*models.Mission, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}

	return args.Get(0).([]*models.Mission), args.Error(1)
}

func (m *MockPersistence) MissionByID(ctx context.Context, id string) (*models.Mission, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}

	return args.Get(0).(*models.Mission), args.Error(1)
}

func (m *MockPersistence) SaveMission(ctx context.Context, mission *models.Mission) error {
	args := m.Called(ctx, mission)

	return args.Error(0)
}

func (m *MockPersistence) DeleteMission(ctx context.Context, id string) error {
	args := m.Called(ctx, id)

	return args.Error(0)
}

func (m *MockPersistence) SaveRun(ctx context.Context, run *models.RunRecord) error {
	args := m.Called(ctx, run)

	return args.Error(0)
}

func (m *MockPersistence) LastRun(ctx context.Context, missionID string) (*models.RunRecord, error) {
	args := m.Called(ctx, missionID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}

	return args.Get(0).(*models.RunRecord), args.Error(1)
}

func (m *MockPersistence) RunByKey(ctx context.Context, runKey string) (*models.RunRecord, error) {
	args := m.Called(ctx, runKey)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}

	return args.Get(0).(*models.RunRecord), args.Error(1)
}

func (m *MockPersistence) Runs(ctx context.Context, missionID string, limit int) ([]*models.RunRecord, error) {
	args := m.Called(ctx, missionID, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}

	return args.Get(0).([]*models.RunRecord), args.Error(1)
}

func (m *MockPersistence) HealthCheck(ctx context.Context) error {
	args := m.Called(ctx)

	return args.Error(0)
}

func (m *MockPersistence) Close(ctx context.Context) error {
	args := m.Called(ctx)

	return args.Error(0)
}
