package storage

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/raterudder/citysim/pkg/types"
)

// MemoryProvider keeps everything in process memory. It backs the offline
// CLI and local development where no Firestore is available.
type MemoryProvider struct {
	mu       sync.RWMutex
	settings map[string]memorySettings
	runs     map[string]map[string]types.RunSummary
}

type memorySettings struct {
	settings types.Settings
	version  int
}

var _ Database = (*MemoryProvider)(nil)

// NewMemory returns an empty in-memory database.
func NewMemory() *MemoryProvider {
	return &MemoryProvider{
		settings: make(map[string]memorySettings),
		runs:     make(map[string]map[string]types.RunSummary),
	}
}

func (m *MemoryProvider) GetSettings(_ context.Context, siteID string) (types.Settings, int, error) {
	if siteID == "" {
		return types.Settings{}, 0, fmt.Errorf("siteID cannot be empty")
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	s := m.settings[siteID]
	return s.settings, s.version, nil
}

func (m *MemoryProvider) SetSettings(_ context.Context, siteID string, settings types.Settings, version int) error {
	if siteID == "" {
		return fmt.Errorf("siteID cannot be empty")
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.settings[siteID] = memorySettings{settings: settings, version: version}
	return nil
}

func (m *MemoryProvider) InsertRun(_ context.Context, siteID string, run types.RunSummary) error {
	if siteID == "" {
		return fmt.Errorf("siteID cannot be empty")
	}
	if run.ID == "" {
		return fmt.Errorf("run id cannot be empty")
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.runs[siteID] == nil {
		m.runs[siteID] = make(map[string]types.RunSummary)
	}
	m.runs[siteID][run.ID] = run
	return nil
}

func (m *MemoryProvider) GetRun(_ context.Context, siteID, runID string) (types.RunSummary, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	run, ok := m.runs[siteID][runID]
	if !ok {
		return types.RunSummary{}, fmt.Errorf("%w: %s", ErrRunNotFound, runID)
	}
	return run, nil
}

func (m *MemoryProvider) ListRuns(_ context.Context, siteID string, start, end time.Time) ([]types.RunSummary, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var runs []types.RunSummary
	for _, run := range m.runs[siteID] {
		if run.CreatedAt.Before(start) || !run.CreatedAt.Before(end) {
			continue
		}
		runs = append(runs, run)
	}
	sort.Slice(runs, func(i, j int) bool {
		return runs[i].CreatedAt.After(runs[j].CreatedAt)
	})
	return runs, nil
}

func (m *MemoryProvider) Close() error {
	return nil
}
