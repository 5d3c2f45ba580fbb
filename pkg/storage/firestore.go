package storage

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"time"

	"cloud.google.com/go/firestore"
	"github.com/levenlabs/go-lflag"
	"github.com/raterudder/citysim/pkg/log"
	"github.com/raterudder/citysim/pkg/types"
	"google.golang.org/api/iterator"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

// FirestoreProvider implements Database using Google Cloud Firestore.
// Every document stores its payload as a JSON string under "json" so the
// schema can evolve without migrations of the documents themselves.
type FirestoreProvider struct {
	client    *firestore.Client
	projectID string
	database  string
}

// configuredFirestore sets up the Firestore provider.
// It registers flags for configuration.
func configuredFirestore() *FirestoreProvider {
	projectID := lflag.String("firestore-project-id", "", "Google Cloud Project ID for Firestore")
	database := lflag.String("firestore-database", "", "Google Cloud Firestore Database")
	emulator := lflag.String("firestore-emulator", "", "Use Firestore emulator")

	f := &FirestoreProvider{}

	lflag.Do(func() {
		f.projectID = *projectID
		f.database = *database

		// the client only reads the emulator address from the environment
		if *emulator != "" {
			os.Setenv("FIRESTORE_EMULATOR_HOST", *emulator)
		}
	})

	return f
}

// Validate checks if the provider is properly configured.
func (f *FirestoreProvider) Validate() error {
	// an empty project ID is detected from the environment
	return nil
}

// Init initializes the Firestore client.
// This must be called before using the provider methods.
func (f *FirestoreProvider) Init(ctx context.Context) error {
	projectID := f.projectID
	if projectID == "" {
		projectID = firestore.DetectProjectID
	}
	database := f.database
	if database == "" {
		database = firestore.DefaultDatabaseID
	}
	client, err := firestore.NewClientWithDatabase(ctx, projectID, database)
	if err != nil {
		return fmt.Errorf("failed to create firestore client (project=%s, database=%s): %w", projectID, database, err)
	}
	f.client = client
	return nil
}

// Close closes the Firestore client connection.
func (f *FirestoreProvider) Close() error {
	if f.client != nil {
		return f.client.Close()
	}
	return nil
}

func (f *FirestoreProvider) getCollection(siteID, name string) (*firestore.CollectionRef, error) {
	if siteID == "" {
		return nil, fmt.Errorf("siteID cannot be empty")
	}
	return f.client.Collection("sites").Doc(siteID).Collection(name), nil
}

// GetSettings retrieves the run configuration from the "config/settings"
// document. A missing document returns zero settings at version 0.
func (f *FirestoreProvider) GetSettings(ctx context.Context, siteID string) (types.Settings, int, error) {
	coll, err := f.getCollection(siteID, "config")
	if err != nil {
		return types.Settings{}, 0, err
	}
	doc, err := coll.Doc("settings").Get(ctx)
	if err != nil {
		if status.Code(err) == codes.NotFound {
			return types.Settings{}, 0, nil
		}
		return types.Settings{}, 0, fmt.Errorf("failed to fetch settings doc: %w", err)
	}

	var version int
	if v, err := doc.DataAt("version"); err == nil {
		if vInt, ok := v.(int64); ok {
			version = int(vInt)
		}
	}

	var s types.Settings
	if err := decodeJSONField(ctx, doc, &s); err != nil {
		return types.Settings{}, 0, fmt.Errorf("settings: %w", err)
	}
	return s, version, nil
}

// SetSettings saves the run configuration to the "config/settings" document.
func (f *FirestoreProvider) SetSettings(ctx context.Context, siteID string, settings types.Settings, version int) error {
	jsonBytes, err := json.Marshal(settings)
	if err != nil {
		return fmt.Errorf("failed to marshal settings: %w", err)
	}

	coll, err := f.getCollection(siteID, "config")
	if err != nil {
		return err
	}
	_, err = coll.Doc("settings").Set(ctx, map[string]interface{}{
		"json":    string(jsonBytes),
		"version": version,
	})
	if err != nil {
		return fmt.Errorf("failed to save settings: %w", err)
	}
	return nil
}

// InsertRun stores a run summary in the "runs" collection keyed by the run
// ID. The creation time is kept as a native timestamp for range queries.
func (f *FirestoreProvider) InsertRun(ctx context.Context, siteID string, run types.RunSummary) error {
	if run.ID == "" {
		return fmt.Errorf("run id cannot be empty")
	}
	jsonBytes, err := json.Marshal(run)
	if err != nil {
		return fmt.Errorf("failed to marshal run: %w", err)
	}

	coll, err := f.getCollection(siteID, "runs")
	if err != nil {
		return err
	}
	_, err = coll.Doc(run.ID).Set(ctx, map[string]interface{}{
		"json":      string(jsonBytes),
		"createdAt": run.CreatedAt,
		"scenario":  run.Scenario,
		"failed":    run.Failure != nil,
	})
	if err != nil {
		return fmt.Errorf("failed to insert run: %w", err)
	}
	return nil
}

// GetRun retrieves one run summary.
func (f *FirestoreProvider) GetRun(ctx context.Context, siteID, runID string) (types.RunSummary, error) {
	coll, err := f.getCollection(siteID, "runs")
	if err != nil {
		return types.RunSummary{}, err
	}
	if runID == "" {
		return types.RunSummary{}, fmt.Errorf("%w: empty id", ErrRunNotFound)
	}
	doc, err := coll.Doc(runID).Get(ctx)
	if err != nil {
		if status.Code(err) == codes.NotFound {
			return types.RunSummary{}, fmt.Errorf("%w: %s", ErrRunNotFound, runID)
		}
		return types.RunSummary{}, fmt.Errorf("failed to fetch run doc: %w", err)
	}
	var run types.RunSummary
	if err := decodeJSONField(ctx, doc, &run); err != nil {
		return types.RunSummary{}, fmt.Errorf("run %s: %w", runID, err)
	}
	return run, nil
}

// ListRuns retrieves the runs created within [start, end), newest first.
func (f *FirestoreProvider) ListRuns(ctx context.Context, siteID string, start, end time.Time) ([]types.RunSummary, error) {
	coll, err := f.getCollection(siteID, "runs")
	if err != nil {
		return nil, err
	}
	iter := coll.
		Where("createdAt", ">=", start).
		Where("createdAt", "<", end).
		OrderBy("createdAt", firestore.Desc).
		Documents(ctx)
	defer iter.Stop()

	var runs []types.RunSummary
	for {
		doc, err := iter.Next()
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("failed to iterate runs: %w", err)
		}
		var run types.RunSummary
		if err := decodeJSONField(ctx, doc, &run); err != nil {
			// one corrupt document should not hide the others
			continue
		}
		runs = append(runs, run)
	}
	return runs, nil
}

func decodeJSONField(ctx context.Context, doc *firestore.DocumentSnapshot, v any) error {
	val, err := doc.DataAt("json")
	if err != nil {
		log.Ctx(ctx).WarnContext(ctx, "doc missing json", slog.String("path", doc.Ref.Path))
		return fmt.Errorf("document missing 'json' field: %w", err)
	}
	jsonStr, ok := val.(string)
	if !ok {
		log.Ctx(ctx).WarnContext(ctx, "doc json not string", slog.String("path", doc.Ref.Path))
		return fmt.Errorf("'json' field is not a string")
	}
	if err := json.Unmarshal([]byte(jsonStr), v); err != nil {
		log.Ctx(ctx).WarnContext(ctx, "failed to unmarshal doc json", slog.String("path", doc.Ref.Path), slog.Any("err", err))
		return fmt.Errorf("failed to unmarshal json: %w", err)
	}
	return nil
}
