package types

import (
	"fmt"
)

// DeviceKind identifies a supply, storage or generation device.
type DeviceKind string

const (
	DeviceBoiler         DeviceKind = "boiler"
	DeviceCHP            DeviceKind = "chp"
	DeviceHeatPump       DeviceKind = "heatPump"
	DeviceElectricHeater DeviceKind = "electricHeater"
	DeviceThermalStorage DeviceKind = "thermalStorage"
	DeviceBattery        DeviceKind = "battery"
	DevicePV             DeviceKind = "pv"
)

// DeviceSpec is the serialized parameter set for one device of a building.
// Only the fields relevant to Kind are read. All powers are in W, all
// temperatures in degrees Celsius.
type DeviceSpec struct {
	Kind DeviceKind `json:"kind" yaml:"kind"`

	// Thermal supply devices
	QNominal             float64 `json:"qNominal,omitempty" yaml:"qNominal,omitempty"`
	LowerActivationLimit float64 `json:"lowerActivationLimit,omitempty" yaml:"lowerActivationLimit,omitempty"`
	// Eta is the thermal efficiency for boilers and electric heaters and
	// the module efficiency for PV.
	Eta float64 `json:"eta,omitempty" yaml:"eta,omitempty"`

	// CHP
	PNominal float64 `json:"pNominal,omitempty" yaml:"pNominal,omitempty"`
	EtaTotal float64 `json:"etaTotal,omitempty" yaml:"etaTotal,omitempty"`

	// Heat pump
	QualityGrade       float64 `json:"qualityGrade,omitempty" yaml:"qualityGrade,omitempty"`
	FlowTemperature    float64 `json:"flowTemperature,omitempty" yaml:"flowTemperature,omitempty"`
	MaxFlowTemperature float64 `json:"maxFlowTemperature,omitempty" yaml:"maxFlowTemperature,omitempty"`
	MaxCOP             float64 `json:"maxCOP,omitempty" yaml:"maxCOP,omitempty"`

	// Thermal storage
	Mass                   float64 `json:"mass,omitempty" yaml:"mass,omitempty"`
	SpecificHeat           float64 `json:"specificHeat,omitempty" yaml:"specificHeat,omitempty"`
	Density                float64 `json:"density,omitempty" yaml:"density,omitempty"`
	TInit                  float64 `json:"tInit,omitempty" yaml:"tInit,omitempty"`
	TMin                   float64 `json:"tMin,omitempty" yaml:"tMin,omitempty"`
	TMax                   float64 `json:"tMax,omitempty" yaml:"tMax,omitempty"`
	LossCoefficient        float64 `json:"lossCoefficient,omitempty" yaml:"lossCoefficient,omitempty"`
	SurroundingTemperature float64 `json:"surroundingTemperature,omitempty" yaml:"surroundingTemperature,omitempty"`
	HeightDiameterRatio    float64 `json:"heightDiameterRatio,omitempty" yaml:"heightDiameterRatio,omitempty"`

	// Battery
	CapacityKWH       float64 `json:"capacityKWH,omitempty" yaml:"capacityKWH,omitempty"`
	SOCInit           float64 `json:"socInit,omitempty" yaml:"socInit,omitempty"`
	EtaCharge         float64 `json:"etaCharge,omitempty" yaml:"etaCharge,omitempty"`
	EtaDischarge      float64 `json:"etaDischarge,omitempty" yaml:"etaDischarge,omitempty"`
	SelfDischarge     float64 `json:"selfDischarge,omitempty" yaml:"selfDischarge,omitempty"`
	MaxChargePower    float64 `json:"maxChargePower,omitempty" yaml:"maxChargePower,omitempty"`
	MaxDischargePower float64 `json:"maxDischargePower,omitempty" yaml:"maxDischargePower,omitempty"`

	// PV
	Area        float64 `json:"area,omitempty" yaml:"area,omitempty"`
	InverterEta float64 `json:"inverterEta,omitempty" yaml:"inverterEta,omitempty"`
}

// WithDefaults fills in the physical constants most scenarios leave out.
func (d DeviceSpec) WithDefaults() DeviceSpec {
	switch d.Kind {
	case DeviceBoiler, DeviceElectricHeater:
		if d.Eta == 0 {
			d.Eta = 1
		}
	case DeviceCHP:
		if d.EtaTotal == 0 {
			d.EtaTotal = 0.87
		}
	case DeviceHeatPump:
		if d.QualityGrade == 0 {
			d.QualityGrade = 0.36
		}
		if d.FlowTemperature == 0 {
			d.FlowTemperature = 35
		}
		if d.MaxFlowTemperature == 0 {
			d.MaxFlowTemperature = 55
		}
		if d.MaxCOP == 0 {
			d.MaxCOP = 7
		}
	case DeviceThermalStorage:
		if d.SpecificHeat == 0 {
			d.SpecificHeat = 4180
		}
		if d.Density == 0 {
			d.Density = 1000
		}
		if d.HeightDiameterRatio == 0 {
			d.HeightDiameterRatio = 3.5
		}
		if d.LossCoefficient == 0 {
			d.LossCoefficient = 0.3
		}
	case DeviceBattery:
		if d.EtaCharge == 0 {
			d.EtaCharge = 0.95
		}
		if d.EtaDischarge == 0 {
			d.EtaDischarge = 0.9
		}
	case DevicePV:
		if d.Eta == 0 {
			d.Eta = 0.15
		}
		if d.InverterEta == 0 {
			d.InverterEta = 0.96
		}
	}
	return d
}

func unit(name string, v float64) error {
	if v < 0 || v > 1 {
		return fmt.Errorf("%s must be within [0,1], got %f", name, v)
	}
	return nil
}

func positive(name string, v float64) error {
	if v <= 0 {
		return fmt.Errorf("%s must be positive, got %f", name, v)
	}
	return nil
}

// Validate checks the parameters for Kind. Unrecognised kinds return an
// error wrapping ErrUnknownDevice.
func (d DeviceSpec) Validate() error {
	var errs []error
	switch d.Kind {
	case DeviceBoiler, DeviceElectricHeater:
		errs = append(errs,
			positive("qNominal", d.QNominal),
			positive("eta", d.Eta),
			unit("eta", d.Eta),
			unit("lowerActivationLimit", d.LowerActivationLimit),
		)
	case DeviceCHP:
		errs = append(errs,
			positive("qNominal", d.QNominal),
			positive("etaTotal", d.EtaTotal),
			unit("etaTotal", d.EtaTotal),
			unit("lowerActivationLimit", d.LowerActivationLimit),
		)
		if d.PNominal < 0 {
			errs = append(errs, fmt.Errorf("pNominal cannot be negative"))
		}
	case DeviceHeatPump:
		errs = append(errs,
			positive("qNominal", d.QNominal),
			positive("qualityGrade", d.QualityGrade),
			unit("qualityGrade", d.QualityGrade),
			unit("lowerActivationLimit", d.LowerActivationLimit),
		)
		if d.MaxCOP < 1 {
			errs = append(errs, fmt.Errorf("maxCOP must be at least 1, got %f", d.MaxCOP))
		}
		if d.MaxFlowTemperature < d.FlowTemperature {
			errs = append(errs, fmt.Errorf("maxFlowTemperature %f is below flowTemperature %f", d.MaxFlowTemperature, d.FlowTemperature))
		}
	case DeviceThermalStorage:
		errs = append(errs,
			positive("mass", d.Mass),
			positive("specificHeat", d.SpecificHeat),
			positive("density", d.Density),
			positive("heightDiameterRatio", d.HeightDiameterRatio),
		)
		if d.LossCoefficient < 0 {
			errs = append(errs, fmt.Errorf("lossCoefficient cannot be negative"))
		}
		if d.TMax <= d.TMin {
			errs = append(errs, fmt.Errorf("tMax %f must exceed tMin %f", d.TMax, d.TMin))
		}
		if d.TInit < d.TMin || d.TInit > d.TMax {
			errs = append(errs, fmt.Errorf("tInit %f must be within [%f, %f]", d.TInit, d.TMin, d.TMax))
		}
		if d.SurroundingTemperature > d.TMax {
			errs = append(errs, fmt.Errorf("surroundingTemperature %f exceeds tMax %f", d.SurroundingTemperature, d.TMax))
		}
	case DeviceBattery:
		errs = append(errs,
			positive("capacityKWH", d.CapacityKWH),
			positive("etaCharge", d.EtaCharge),
			positive("etaDischarge", d.EtaDischarge),
			unit("etaCharge", d.EtaCharge),
			unit("etaDischarge", d.EtaDischarge),
			unit("socInit", d.SOCInit),
			unit("selfDischarge", d.SelfDischarge),
			positive("maxChargePower", d.MaxChargePower),
			positive("maxDischargePower", d.MaxDischargePower),
		)
	case DevicePV:
		errs = append(errs,
			positive("area", d.Area),
			positive("eta", d.Eta),
			unit("eta", d.Eta),
			positive("inverterEta", d.InverterEta),
			unit("inverterEta", d.InverterEta),
		)
	default:
		return fmt.Errorf("%w: %q", ErrUnknownDevice, d.Kind)
	}
	for _, err := range errs {
		if err != nil {
			return fmt.Errorf("invalid %s: %w", d.Kind, err)
		}
	}
	return nil
}

// IsThermalSupply reports whether the device produces heat on demand.
func (k DeviceKind) IsThermalSupply() bool {
	switch k {
	case DeviceBoiler, DeviceCHP, DeviceHeatPump, DeviceElectricHeater:
		return true
	}
	return false
}
