package device

import (
	"fmt"

	"github.com/raterudder/citysim/pkg/types"
)

// Set is the equipment of one building. Each kind appears at most once.
type Set struct {
	Boiler   *Boiler
	CHP      *CHP
	HeatPump *HeatPump
	Heater   *ElectricHeater
	Storage  *ThermalStorage
	Battery  *Battery
	PV       *PV
}

// NewSet validates the specs and builds the devices for env.
func NewSet(env types.Environment, dhwTemp float64, specs []types.DeviceSpec) (*Set, error) {
	var s Set
	seen := make(map[types.DeviceKind]bool, len(specs))
	for _, spec := range specs {
		spec = spec.WithDefaults()
		if err := spec.Validate(); err != nil {
			return nil, err
		}
		if seen[spec.Kind] {
			return nil, fmt.Errorf("%w: more than one %s", types.ErrUnsupportedConfiguration, spec.Kind)
		}
		seen[spec.Kind] = true

		timer := env.Timer
		switch spec.Kind {
		case types.DeviceBoiler:
			s.Boiler = NewBoiler(timer, spec.QNominal, spec.Eta, spec.LowerActivationLimit)
		case types.DeviceElectricHeater:
			s.Heater = NewElectricHeater(timer, spec.QNominal, spec.Eta, spec.LowerActivationLimit)
		case types.DeviceCHP:
			s.CHP = NewCHP(timer, spec.QNominal, spec.PNominal, spec.EtaTotal, spec.LowerActivationLimit)
		case types.DeviceHeatPump:
			s.HeatPump = NewHeatPump(timer, spec, env.OutdoorTemperature, dhwTemp)
		case types.DeviceThermalStorage:
			s.Storage = NewThermalStorage(timer, spec)
		case types.DeviceBattery:
			s.Battery = NewBattery(timer, spec)
		case types.DevicePV:
			s.PV = NewPV(timer, spec, env.SolarRadiation)
		}
	}
	return &s, nil
}

// Supplies returns the thermal supply devices that are present.
func (s *Set) Supplies() []ThermalDevice {
	var out []ThermalDevice
	if s.CHP != nil {
		out = append(out, s.CHP)
	}
	if s.HeatPump != nil {
		out = append(out, s.HeatPump)
	}
	if s.Boiler != nil {
		out = append(out, s.Boiler)
	}
	if s.Heater != nil {
		out = append(out, s.Heater)
	}
	return out
}
