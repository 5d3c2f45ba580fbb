package dispatch

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/raterudder/citysim/pkg/device"
	"github.com/raterudder/citysim/pkg/log"
	"github.com/raterudder/citysim/pkg/types"
)

// BuildingConfig holds everything needed to dispatch one building.
type BuildingConfig struct {
	ID           string
	Settings     types.Settings
	Timer        types.Timer
	Devices      *device.Set
	SpaceHeating types.TimeSeries
	DHW          types.TimeSeries
	Electric     types.TimeSeries
}

// Building dispatches the devices of one building over the simulated year.
// A Building is driven by a single goroutine and can only be run once.
type Building struct {
	id       string
	settings types.Settings
	timer    types.Timer
	devices  *device.Set
	config   Configuration
	order    []stage

	spaceHeating types.TimeSeries
	dhw          types.TimeSeries
	electric     types.TimeSeries

	networkDemand types.TimeSeries
	networkServed types.TimeSeries
	fromNetwork   bool
	ran           bool

	electrical *ElectricalResults
}

// NewBuilding validates the demands, classifies the device set and returns
// a building ready to run. Overridden device defaults are logged as
// warnings.
func NewBuilding(ctx context.Context, cfg BuildingConfig) (*Building, error) {
	if cfg.ID == "" {
		return nil, fmt.Errorf("building id cannot be empty")
	}
	if err := cfg.Settings.Validate(); err != nil {
		return nil, fmt.Errorf("building %s: %w", cfg.ID, err)
	}
	for _, d := range []struct {
		name string
		ts   types.TimeSeries
	}{
		{"space heating demand", cfg.SpaceHeating},
		{"hot water demand", cfg.DHW},
		{"electrical demand", cfg.Electric},
	} {
		if err := d.ts.Validate(cfg.Timer, d.name); err != nil {
			return nil, fmt.Errorf("building %s: %w", cfg.ID, err)
		}
	}
	if cfg.Devices == nil {
		cfg.Devices = &device.Set{}
	}
	config, err := DetectConfiguration(cfg.Devices)
	if err != nil {
		return nil, fmt.Errorf("building %s: %w", cfg.ID, err)
	}

	ctx = log.WithAttrs(ctx, slog.String("buildingID", cfg.ID))
	b := &Building{
		id:            cfg.ID,
		settings:      cfg.Settings,
		timer:         cfg.Timer,
		devices:       cfg.Devices,
		config:        config,
		order:         meritOrder(config, cfg.Devices),
		spaceHeating:  cfg.SpaceHeating,
		dhw:           cfg.DHW,
		electric:      cfg.Electric,
		networkServed: types.NewTimeSeries(cfg.Timer),
		electrical:    newElectricalResults(cfg.Timer),
	}
	b.warnConfiguration(ctx)
	return b, nil
}

// warnConfiguration adjusts and reports settings that would keep the
// building from following its demand.
func (b *Building) warnConfiguration(ctx context.Context) {
	if b.config == ConfigDirect {
		// without storage nothing absorbs the gap below the activation limit
		for _, st := range b.order {
			if lal := st.device.LowerActivationLimit(); lal > 0 {
				log.Ctx(ctx).WarnContext(
					ctx,
					"resetting lower activation limit to allow full part load operation",
					slog.String("device", string(st.device.Kind())),
					slog.Float64("lowerActivationLimit", lal),
				)
				st.device.SetLowerActivationLimit(0)
			}
		}
	}
	if hp := b.devices.HeatPump; hp != nil && !hp.ServesDHW() && b.devices.Heater == nil && b.dhw.Max() > 0 {
		log.Ctx(ctx).WarnContext(
			ctx,
			"heat pump cannot reach hot water temperature and no electric heater is installed",
			slog.Float64("dhwTemperature", b.settings.DHWTemperature),
		)
	}
}

// ID returns the building identifier.
func (b *Building) ID() string {
	return b.id
}

// Configuration returns the detected supply layout.
func (b *Building) Configuration() Configuration {
	return b.config
}

// Devices returns the building's equipment and their result series.
func (b *Building) Devices() *device.Set {
	return b.devices
}

// Electrical returns the electrical dispatch results.
func (b *Building) Electrical() *ElectricalResults {
	return b.electrical
}

// ThermalDemand returns the space heating and hot water series.
func (b *Building) ThermalDemand() (types.TimeSeries, types.TimeSeries) {
	return b.spaceHeating, b.dhw
}

// NetworkServed is the network demand this building supplied per
// timestep when acting as a feeder.
func (b *Building) NetworkServed() types.TimeSeries {
	return b.networkServed
}

// HasThermalSupply reports whether the building can produce heat.
func (b *Building) HasThermalSupply() bool {
	return b.config != ConfigNone
}

// RunOptions connects a building to a heating network.
type RunOptions struct {
	// Network is the demand relayed from a heating network that this
	// building feeds, nil when it feeds none.
	Network types.TimeSeries
	// Partial lets the building leave network demand it cannot cover for
	// the next feeder.
	Partial bool
	// FromNetwork marks a network consumer. Its heat demand is met by the
	// feeders so only its electrical balance is dispatched here.
	FromNetwork bool
}

// Run dispatches every timestep in order and returns the network demand
// left unserved. An EnergyBalanceError stops the run; the results of
// earlier timesteps are kept.
func (b *Building) Run(ctx context.Context, opts RunOptions) (types.TimeSeries, error) {
	if b.ran {
		return nil, fmt.Errorf("building %s has already been run", b.id)
	}
	b.ran = true
	b.fromNetwork = opts.FromNetwork
	if opts.Network != nil {
		if err := opts.Network.Validate(b.timer, "network demand"); err != nil {
			return nil, fmt.Errorf("building %s: %w", b.id, err)
		}
		b.networkDemand = opts.Network
	}

	ctx = log.WithAttrs(ctx, slog.String("buildingID", b.id))
	log.Ctx(ctx).DebugContext(
		ctx,
		"dispatching building",
		slog.String("configuration", b.config.String()),
		slog.Bool("feeder", opts.Network != nil),
		slog.Bool("partial", opts.Partial),
		slog.Bool("fromNetwork", opts.FromNetwork),
	)

	steps := b.timer.Steps()
	stepsPerDay := max(1, 86400/b.timer.Timestep)
	remaining := types.NewTimeSeries(b.timer)
	for t := 0; t < steps; t++ {
		if t%stepsPerDay == 0 {
			if err := ctx.Err(); err != nil {
				return remaining, err
			}
		}
		if !opts.FromNetwork {
			var network float64
			if b.networkDemand != nil {
				network = b.networkDemand[t]
			}
			left, err := b.dispatchThermal(ctx, t, network, opts.Partial)
			if err != nil {
				return remaining, err
			}
			remaining[t] = left
			b.networkServed[t] = network - left
		}
		if err := b.dispatchElectrical(t); err != nil {
			return remaining, err
		}
	}
	return remaining, nil
}

// deviceError tags a device precondition failure with the building it
// happened in.
func (b *Building) deviceError(err error) error {
	var pe *types.PreconditionError
	if errors.As(err, &pe) {
		pe.BuildingID = b.id
		return err
	}
	return fmt.Errorf("building %s: %w", b.id, err)
}

func (b *Building) balanceError(t int, remaining float64, format string, args ...any) error {
	return &types.EnergyBalanceError{
		BuildingID: b.id,
		Timestep:   t,
		Remaining:  remaining,
		Message:    fmt.Sprintf(format, args...),
	}
}
