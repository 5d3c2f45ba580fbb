package storagemock

import (
	"context"
	"time"

	"github.com/raterudder/citysim/pkg/storage"
	"github.com/raterudder/citysim/pkg/types"
	"github.com/stretchr/testify/mock"
)

type MockDatabase struct {
	mock.Mock
}

var _ storage.Database = (*MockDatabase)(nil)

func (m *MockDatabase) GetSettings(ctx context.Context, siteID string) (types.Settings, int, error) {
	args := m.Called(ctx, siteID)
	if len(args) > 0 {
		return args.Get(0).(types.Settings), args.Int(1), args.Error(2)
	}
	return types.Settings{}, 0, nil
}

func (m *MockDatabase) SetSettings(ctx context.Context, siteID string, settings types.Settings, version int) error {
	args := m.Called(ctx, siteID, settings, version)
	return args.Error(0)
}

func (m *MockDatabase) InsertRun(ctx context.Context, siteID string, run types.RunSummary) error {
	args := m.Called(ctx, siteID, run)
	return args.Error(0)
}

func (m *MockDatabase) GetRun(ctx context.Context, siteID, runID string) (types.RunSummary, error) {
	args := m.Called(ctx, siteID, runID)
	return args.Get(0).(types.RunSummary), args.Error(1)
}

func (m *MockDatabase) ListRuns(ctx context.Context, siteID string, start, end time.Time) ([]types.RunSummary, error) {
	args := m.Called(ctx, siteID, start, end)
	if v := args.Get(0); v != nil {
		return v.([]types.RunSummary), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *MockDatabase) Close() error {
	args := m.Called()
	return args.Error(0)
}
