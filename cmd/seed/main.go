package main

import (
	"context"
	"fmt"
	"math/rand"
	"os"
	"time"

	"github.com/levenlabs/go-lflag"
	"github.com/raterudder/citysim/pkg/log"
	"github.com/raterudder/citysim/pkg/scenario"
	"github.com/raterudder/citysim/pkg/storage"
	"github.com/raterudder/citysim/pkg/types"
)

func main() {
	os.Setenv("FIRESTORE_EMULATOR_HOST", "127.0.0.1:8087")
	s := storage.Configured("firestore")
	days := lflag.Int("days", 7, "Number of days of demo runs to seed")
	lflag.Configure()

	ctx := context.Background()

	log.Ctx(ctx).InfoContext(ctx, "seeding demo runs")

	rng := rand.New(rand.NewSource(time.Now().UnixNano()))
	settings := types.DefaultSettings()
	if err := s.SetSettings(ctx, types.SiteIDNone, settings, types.CurrentSettingsVersion); err != nil {
		panic(fmt.Errorf("failed to set settings: %w", err))
	}

	now := time.Now().UTC()
	for day := range *days {
		// vary the storage thresholds so the runs differ
		run := settings
		run.BufferLow = 0.05 + rng.Float64()*0.3
		run.BufferHigh = 0.7 + rng.Float64()*0.28

		c, err := scenario.Build(ctx, scenario.Demo(), run)
		if err != nil {
			panic(fmt.Errorf("failed to build demo: %w", err))
		}
		summary, err := c.Simulate(ctx)
		if err != nil {
			log.Ctx(ctx).WarnContext(ctx, "demo run failed", "error", err, "bufferLow", run.BufferLow)
		}
		summary.CreatedAt = now.Add(-time.Duration(day) * 24 * time.Hour)

		if err := s.InsertRun(ctx, types.SiteIDNone, summary); err != nil {
			panic(fmt.Errorf("failed to insert run: %w", err))
		}
	}

	if err := s.Close(); err != nil {
		panic(fmt.Errorf("failed to close storage: %w", err))
	}
	log.Ctx(ctx).InfoContext(ctx, "seeding complete", "runs", *days)
}
