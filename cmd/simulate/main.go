package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/levenlabs/go-lflag"
	"github.com/raterudder/citysim/pkg/city"
	"github.com/raterudder/citysim/pkg/log"
	"github.com/raterudder/citysim/pkg/scenario"
	"github.com/raterudder/citysim/pkg/storage"
	"github.com/raterudder/citysim/pkg/types"
)

func main() {
	s := storage.Configured("memory")
	scenarioPath := lflag.String("scenario", "", "Path to a JSON or YAML scenario file")
	demo := lflag.Bool("demo", false, "Simulate the built-in demo district instead of a scenario file")
	csvDir := lflag.String("csv-dir", "", "Directory to write one timestep CSV per building into")
	persist := lflag.Bool("persist", false, "Store the run summary with the storage provider")
	siteID := lflag.String("site-id", types.SiteIDNone, "Site the run and settings belong to")
	lflag.Configure()

	// stdout carries the summary
	log.SetOutput(os.Stderr)

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	code := 0
	if err := run(ctx, s, options{
		scenarioPath: *scenarioPath,
		demo:         *demo,
		csvDir:       *csvDir,
		persist:      *persist,
		siteID:       *siteID,
	}); err != nil {
		log.Ctx(ctx).ErrorContext(ctx, "simulation failed", slog.Any("error", err))
		code = 1
	}
	if err := s.Close(); err != nil {
		log.Ctx(ctx).ErrorContext(ctx, "failed to close storage", slog.Any("error", err))
	}
	os.Exit(code)
}

type options struct {
	scenarioPath string
	demo         bool
	csvDir       string
	persist      bool
	siteID       string
}

func run(ctx context.Context, db storage.Database, o options) error {
	var sc types.Scenario
	switch {
	case o.demo:
		sc = scenario.Demo()
	case o.scenarioPath != "":
		var err error
		sc, err = scenario.Load(o.scenarioPath)
		if err != nil {
			return err
		}
	default:
		return errors.New("one of -scenario or -demo is required")
	}

	settings, version, err := db.GetSettings(ctx, o.siteID)
	if err != nil {
		return fmt.Errorf("failed to get settings: %w", err)
	}
	settings, _, err = types.MigrateSettings(settings, version)
	if err != nil {
		return fmt.Errorf("failed to migrate settings: %w", err)
	}

	c, err := scenario.Build(ctx, sc, settings)
	if err != nil {
		return err
	}
	summary, simErr := c.Simulate(ctx)

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(summary); err != nil {
		return fmt.Errorf("failed to write summary: %w", err)
	}

	if o.persist {
		if err := db.InsertRun(ctx, o.siteID, summary); err != nil {
			return fmt.Errorf("failed to save run: %w", err)
		}
	}
	if simErr != nil {
		return simErr
	}
	if o.csvDir != "" {
		if err := exportCSV(c, o.csvDir); err != nil {
			return err
		}
	}
	log.Ctx(ctx).InfoContext(ctx, "simulation finished", slog.String("runID", summary.ID), slog.Duration("duration", summary.Duration))
	return nil
}

func exportCSV(c *city.City, dir string) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("failed to create csv directory: %w", err)
	}
	for _, b := range c.Buildings() {
		f, err := os.Create(filepath.Join(dir, b.ID()+".csv"))
		if err != nil {
			return fmt.Errorf("failed to create csv for %s: %w", b.ID(), err)
		}
		if err := b.WriteCSV(f); err != nil {
			f.Close()
			return fmt.Errorf("failed to write csv for %s: %w", b.ID(), err)
		}
		if err := f.Close(); err != nil {
			return fmt.Errorf("failed to close csv for %s: %w", b.ID(), err)
		}
	}
	return nil
}
