package dispatch

import (
	"fmt"

	"github.com/raterudder/citysim/pkg/device"
	"github.com/raterudder/citysim/pkg/types"
)

// Configuration is the supply layout of a building. It fixes the merit
// order the thermal dispatcher follows.
type Configuration int

const (
	// ConfigNone has no thermal supply. Only valid for buildings whose heat
	// comes from a network.
	ConfigNone Configuration = iota
	// ConfigCHPStorage is a CHP unit with thermal storage and optional
	// boiler and electric heater backup.
	ConfigCHPStorage
	// ConfigHeatPumpStorage is a heat pump with thermal storage and an
	// optional electric heater.
	ConfigHeatPumpStorage
	// ConfigBoilerStorage is a boiler and/or electric heater with thermal
	// storage.
	ConfigBoilerStorage
	// ConfigDirect is a boiler and/or electric heater without storage.
	ConfigDirect
)

func (c Configuration) String() string {
	switch c {
	case ConfigNone:
		return "none"
	case ConfigCHPStorage:
		return "chpStorage"
	case ConfigHeatPumpStorage:
		return "heatPumpStorage"
	case ConfigBoilerStorage:
		return "boilerStorage"
	case ConfigDirect:
		return "direct"
	}
	return "unknown"
}

// DetectConfiguration classifies a device set. Sets that match no layout
// return an error wrapping types.ErrUnsupportedConfiguration.
func DetectConfiguration(s *device.Set) (Configuration, error) {
	hasStorage := s.Storage != nil
	hasCHP := s.CHP != nil
	hasHP := s.HeatPump != nil
	hasDirect := s.Boiler != nil || s.Heater != nil

	switch {
	case !hasCHP && !hasHP && !hasDirect:
		if hasStorage {
			return 0, fmt.Errorf("%w: thermal storage without any supply device", types.ErrUnsupportedConfiguration)
		}
		return ConfigNone, nil
	case hasCHP && hasHP:
		return 0, fmt.Errorf("%w: chp and heat pump in the same building", types.ErrUnsupportedConfiguration)
	case hasCHP:
		if !hasStorage {
			return 0, fmt.Errorf("%w: chp requires thermal storage", types.ErrUnsupportedConfiguration)
		}
		return ConfigCHPStorage, nil
	case hasHP:
		if !hasStorage {
			return 0, fmt.Errorf("%w: heat pump requires thermal storage", types.ErrUnsupportedConfiguration)
		}
		if s.Boiler != nil {
			return 0, fmt.Errorf("%w: heat pump with boiler backup", types.ErrUnsupportedConfiguration)
		}
		return ConfigHeatPumpStorage, nil
	case hasStorage:
		return ConfigBoilerStorage, nil
	}
	return ConfigDirect, nil
}

// stage is one entry of the merit order. A nil device stands for the
// storage discharge.
type stage struct {
	device    device.ThermalDevice
	efficient bool
	// dhw is false for heat pumps that cannot reach the hot water
	// temperature.
	dhw bool
}

func (s stage) isStorage() bool {
	return s.device == nil
}

// meritOrder returns the stages for the configuration, highest priority
// first.
func meritOrder(c Configuration, s *device.Set) []stage {
	var order []stage
	add := func(d device.ThermalDevice, efficient, dhw bool) {
		order = append(order, stage{device: d, efficient: efficient, dhw: dhw})
	}
	direct := func() {
		if s.Boiler != nil {
			add(s.Boiler, false, true)
		}
		if s.Heater != nil {
			add(s.Heater, false, true)
		}
	}
	storage := func() {
		order = append(order, stage{dhw: true})
	}

	switch c {
	case ConfigCHPStorage:
		add(s.CHP, true, true)
		storage()
		direct()
	case ConfigHeatPumpStorage:
		add(s.HeatPump, true, s.HeatPump.ServesDHW())
		storage()
		direct()
	case ConfigBoilerStorage:
		direct()
		storage()
	case ConfigDirect:
		direct()
	}
	return order
}
