package server

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"

	"github.com/raterudder/citysim/pkg/log"
	"github.com/raterudder/citysim/pkg/scenario"
	"github.com/raterudder/citysim/pkg/types"
)

type simulateRequest struct {
	SiteID string `json:"siteID"`
	// Scenario is ignored when Demo is set.
	Scenario types.Scenario `json:"scenario"`
	Demo     bool           `json:"demo"`
	// Persist stores the summary, including failed runs.
	Persist bool `json:"persist"`
}

func (s *Server) handleSimulate(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	siteID := s.getSiteID(r)

	body, err := io.ReadAll(r.Body)
	if err != nil {
		http.Error(w, "invalid request", http.StatusBadRequest)
		return
	}
	var req simulateRequest
	dec := json.NewDecoder(bytes.NewReader(body))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&req); err != nil {
		log.Ctx(ctx).WarnContext(ctx, "failed to decode simulate request", slog.Any("error", err))
		writeJSONError(w, fmt.Sprintf("invalid request body: %v", err), http.StatusBadRequest)
		return
	}
	sc := req.Scenario
	if req.Demo {
		sc = scenario.Demo()
	}

	settings, err := s.getSettingsWithMigration(ctx, siteID)
	if err != nil {
		log.Ctx(ctx).ErrorContext(ctx, "failed to get settings", slog.Any("error", err))
		writeJSONError(w, "failed to get settings", http.StatusInternalServerError)
		return
	}

	if s.simulateTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.simulateTimeout)
		defer cancel()
	}

	c, err := scenario.Build(ctx, sc, settings)
	if err != nil {
		log.Ctx(ctx).WarnContext(ctx, "invalid scenario", slog.Any("error", err))
		writeJSONError(w, fmt.Sprintf("invalid scenario: %v", err), http.StatusBadRequest)
		return
	}

	summary, simErr := c.Simulate(ctx)
	code := http.StatusOK
	if simErr != nil {
		var be *types.EnergyBalanceError
		switch {
		case errors.As(simErr, &be):
			code = http.StatusUnprocessableEntity
		case errors.Is(simErr, context.DeadlineExceeded):
			writeJSONError(w, "simulation timed out", http.StatusGatewayTimeout)
			return
		default:
			log.Ctx(ctx).ErrorContext(ctx, "simulation failed", slog.Any("error", simErr))
			writeJSONError(w, "simulation failed", http.StatusInternalServerError)
			return
		}
	}

	if req.Persist {
		if err := s.storage.InsertRun(ctx, siteID, summary); err != nil {
			log.Ctx(ctx).ErrorContext(ctx, "failed to save run", slog.Any("error", err))
			writeJSONError(w, "failed to save run", http.StatusInternalServerError)
			return
		}
	}

	log.Ctx(ctx).InfoContext(
		ctx,
		"simulation request finished",
		slog.String("runID", summary.ID),
		slog.Bool("failed", summary.Failure != nil),
		slog.Duration("duration", summary.Duration),
	)
	w.Header().Set("Cache-Control", "no-store")
	writeJSON(w, summary, code)
}
