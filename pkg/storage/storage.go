package storage

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/levenlabs/go-lflag"
	"github.com/raterudder/citysim/pkg/types"
)

var (
	ErrRunNotFound = errors.New("run not found")
)

// Database defines the interface for persisting settings and run summaries.
type Database interface {
	// Settings
	GetSettings(ctx context.Context, siteID string) (types.Settings, int, error)
	SetSettings(ctx context.Context, siteID string, settings types.Settings, version int) error

	// Runs
	InsertRun(ctx context.Context, siteID string, run types.RunSummary) error
	GetRun(ctx context.Context, siteID, runID string) (types.RunSummary, error)
	// ListRuns returns runs created in [start, end), newest first.
	ListRuns(ctx context.Context, siteID string, start, end time.Time) ([]types.RunSummary, error)

	// Lifecycle
	Close() error
}

// Configured sets up the Storage provider based on flags. defaultProvider is
// used when the flag is not given.
func Configured(defaultProvider string) Database {
	provider := lflag.String("storage-provider", defaultProvider, "Storage provider to use (available: firestore, memory)")

	var p struct{ Database }

	fs := configuredFirestore()

	lflag.Do(func() {
		switch *provider {
		case "firestore":
			if err := fs.Validate(); err != nil {
				panic(fmt.Sprintf("firestore validation failed: %v", err))
			}
			p.Database = fs
			if err := fs.Init(context.Background()); err != nil {
				panic(fmt.Sprintf("firestore init failed: %v", err))
			}
		case "memory":
			p.Database = NewMemory()
		default:
			panic(fmt.Sprintf("unknown storage provider: %s", *provider))
		}
	})

	return &p
}
