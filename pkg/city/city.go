package city

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"time"

	"github.com/google/uuid"
	"github.com/raterudder/citysim/pkg/common"
	"github.com/raterudder/citysim/pkg/dispatch"
	"github.com/raterudder/citysim/pkg/log"
	"github.com/raterudder/citysim/pkg/types"
	"golang.org/x/sync/errgroup"
)

// Config describes a district ready to be simulated.
type Config struct {
	Scenario  string
	Settings  types.Settings
	Timer     types.Timer
	Buildings []*dispatch.Building
	Networks  []types.NetworkSpec
}

// network is a validated heating network with its buildings resolved.
type network struct {
	spec      types.NetworkSpec
	feeders   []*dispatch.Building
	consumers []*dispatch.Building
	demand    types.TimeSeries
}

// City dispatches a set of buildings, some of them connected by local heating
// networks. Each network and each unconnected building is an independent unit
// that may run in parallel with the others.
type City struct {
	scenario  string
	settings  types.Settings
	timer     types.Timer
	buildings []*dispatch.Building
	networks  []*network
	// networkOf maps a building ID to the network it belongs to.
	networkOf map[string]string
	ran       bool
}

// New validates the networks against the buildings and returns a city ready
// to simulate.
func New(cfg Config) (*City, error) {
	if err := cfg.Settings.Validate(); err != nil {
		return nil, err
	}
	byID := make(map[string]*dispatch.Building, len(cfg.Buildings))
	for _, b := range cfg.Buildings {
		if _, ok := byID[b.ID()]; ok {
			return nil, fmt.Errorf("duplicate building id: %s", b.ID())
		}
		byID[b.ID()] = b
	}

	c := &City{
		scenario:  cfg.Scenario,
		settings:  cfg.Settings,
		timer:     cfg.Timer,
		buildings: cfg.Buildings,
		networkOf: make(map[string]string),
	}
	seen := make(map[string]bool, len(cfg.Networks))
	for _, spec := range cfg.Networks {
		if spec.ID == "" {
			return nil, fmt.Errorf("network id cannot be empty")
		}
		if seen[spec.ID] {
			return nil, fmt.Errorf("duplicate network id: %s", spec.ID)
		}
		seen[spec.ID] = true
		n, err := c.resolve(spec, byID)
		if err != nil {
			return nil, fmt.Errorf("network %s: %w", spec.ID, err)
		}
		c.networks = append(c.networks, n)
	}
	return c, nil
}

func (c *City) resolve(spec types.NetworkSpec, byID map[string]*dispatch.Building) (*network, error) {
	if spec.Kind != types.NetworkHeating {
		return nil, fmt.Errorf("%w: %q", types.ErrUnknownNetwork, spec.Kind)
	}
	if len(spec.Feeders) == 0 {
		return nil, fmt.Errorf("at least one feeder is required")
	}
	if spec.LossFraction < 0 || math.IsNaN(spec.LossFraction) || math.IsInf(spec.LossFraction, 0) {
		return nil, fmt.Errorf("loss fraction must be a non-negative number")
	}

	n := &network{spec: spec}
	member := func(id string) (*dispatch.Building, error) {
		b, ok := byID[id]
		if !ok {
			return nil, fmt.Errorf("unknown building %s", id)
		}
		if other, ok := c.networkOf[id]; ok {
			return nil, fmt.Errorf("building %s already belongs to network %s", id, other)
		}
		c.networkOf[id] = spec.ID
		return b, nil
	}
	for _, id := range spec.Feeders {
		b, err := member(id)
		if err != nil {
			return nil, err
		}
		if !b.HasThermalSupply() {
			return nil, fmt.Errorf("feeder %s has no thermal supply", id)
		}
		n.feeders = append(n.feeders, b)
	}
	n.demand = types.NewTimeSeries(c.timer)
	for _, id := range spec.Consumers {
		b, err := member(id)
		if err != nil {
			return nil, err
		}
		if b.HasThermalSupply() {
			return nil, fmt.Errorf("consumer %s has its own thermal supply", id)
		}
		n.consumers = append(n.consumers, b)
		sh, dhw := b.ThermalDemand()
		n.demand = types.Add(n.demand, sh, dhw)
	}
	n.demand = n.demand.Scale(1 + spec.LossFraction)
	return n, nil
}

// Buildings returns the buildings in scenario order.
func (c *City) Buildings() []*dispatch.Building {
	return c.buildings
}

// Simulate dispatches every building over the simulated year. Independent
// units run in parallel bounded by the parallelism setting. The first failure
// cancels the remaining units; the returned summary then holds the partial
// results and the failure.
func (c *City) Simulate(ctx context.Context) (types.RunSummary, error) {
	if c.ran {
		return types.RunSummary{}, fmt.Errorf("city has already been simulated")
	}
	c.ran = true

	summary := types.RunSummary{
		ID:            uuid.NewString(),
		Scenario:      c.scenario,
		CreatedAt:     time.Now().UTC(),
		EngineVersion: common.Version(),
		Settings:      c.settings,
	}
	ctx = log.WithAttrs(ctx, slog.String("runID", summary.ID))
	log.Ctx(ctx).InfoContext(
		ctx,
		"simulation started",
		slog.String("scenario", c.scenario),
		slog.Int("buildings", len(c.buildings)),
		slog.Int("networks", len(c.networks)),
		slog.Int("timestep", c.timer.Timestep),
	)

	start := time.Now()
	eg, egCtx := errgroup.WithContext(ctx)
	eg.SetLimit(max(1, c.settings.Parallelism))
	for _, n := range c.networks {
		eg.Go(func() error {
			return c.runNetwork(egCtx, n)
		})
	}
	for _, b := range c.buildings {
		if _, ok := c.networkOf[b.ID()]; ok {
			continue
		}
		eg.Go(func() error {
			_, err := b.Run(egCtx, dispatch.RunOptions{})
			return err
		})
	}
	err := eg.Wait()
	summary.Duration = time.Since(start)

	for _, b := range c.buildings {
		s := b.Summary()
		s.NetworkID = c.networkOf[b.ID()]
		summary.Buildings = append(summary.Buildings, s)
	}
	for _, n := range c.networks {
		summary.Networks = append(summary.Networks, n.summary(c.timer))
	}

	if err != nil {
		summary.Failure = failure(err)
		log.Ctx(ctx).ErrorContext(
			ctx,
			"simulation failed",
			slog.String("buildingID", summary.Failure.BuildingID),
			slog.Int("timestep", summary.Failure.Timestep),
			slog.Any("error", err),
		)
		return summary, err
	}
	log.Ctx(ctx).InfoContext(ctx, "simulation finished", slog.Duration("duration", summary.Duration))
	return summary, nil
}

// runNetwork dispatches the consumers' electrical balance and then the
// feeders in order, each passing the network demand it left to the next.
func (c *City) runNetwork(ctx context.Context, n *network) error {
	ctx = log.WithAttrs(ctx, slog.String("networkID", n.spec.ID))
	for _, b := range n.consumers {
		if _, err := b.Run(ctx, dispatch.RunOptions{FromNetwork: true}); err != nil {
			return err
		}
	}
	remaining := n.demand
	for i, b := range n.feeders {
		left, err := b.Run(ctx, dispatch.RunOptions{
			Network: remaining,
			Partial: i < len(n.feeders)-1,
		})
		if err != nil {
			return err
		}
		remaining = left
	}
	return nil
}

func (n *network) summary(timer types.Timer) types.NetworkSummary {
	s := types.NetworkSummary{
		ID:        n.spec.ID,
		Feeders:   n.spec.Feeders,
		Consumers: n.spec.Consumers,
		DemandKWH: n.demand.EnergyKWH(timer),
		ServedKWH: make(map[string]float64, len(n.feeders)),
	}
	for _, b := range n.feeders {
		s.ServedKWH[b.ID()] = b.NetworkServed().EnergyKWH(timer)
	}
	return s
}

func failure(err error) *types.RunFailure {
	var be *types.EnergyBalanceError
	if errors.As(err, &be) {
		return &types.RunFailure{
			BuildingID: be.BuildingID,
			Timestep:   be.Timestep,
			Message:    be.Error(),
		}
	}
	var pe *types.PreconditionError
	if errors.As(err, &pe) {
		return &types.RunFailure{
			BuildingID: pe.BuildingID,
			Timestep:   pe.Timestep,
			Message:    err.Error(),
		}
	}
	return &types.RunFailure{Message: err.Error()}
}
